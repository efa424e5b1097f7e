// ABOUTME: Per-station fault taxonomy
// ABOUTME: Fault wraps the underlying error with the station and fault kind
package station

import "fmt"

// FaultKind classifies what went wrong for a station
type FaultKind string

const (
	// FaultStream: the stream could not be opened, decoded or kept alive
	FaultStream FaultKind = "stream"
	// FaultCommand: a play command was rejected
	FaultCommand FaultKind = "command"
	// FaultCapture: the sampling tap could not be established
	FaultCapture FaultKind = "capture"
	// FaultUpload: a segment could not be encoded or delivered
	FaultUpload FaultKind = "upload"
)

// Fault is an error contained to one station
type Fault struct {
	StationID string
	Kind      FaultKind
	Err       error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("station %s: %s fault: %v", f.StationID, f.Kind, f.Err)
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// NewFault creates a fault for a station
func NewFault(stationID string, kind FaultKind, err error) *Fault {
	return &Fault{StationID: stationID, Kind: kind, Err: err}
}
