// ABOUTME: Stream status enumeration and AudioState snapshots
// ABOUTME: Defines the defaults returned for stations that are not configured
package station

import (
	"fmt"
	"strings"
)

// Status is the lifecycle of one station's network stream
type Status int

const (
	StatusLoading Status = iota
	StatusPlaying
	StatusPaused
	StatusError
)

var statusNames = [...]string{"loading", "playing", "paused", "error"}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("status(%d)", int(s))
	}
	return statusNames[s]
}

// MarshalText encodes the status as its lowercase name
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a lowercase status name
func (s *Status) UnmarshalText(text []byte) error {
	name := strings.ToLower(string(text))
	for i, n := range statusNames {
		if n == name {
			*s = Status(i)
			return nil
		}
	}
	return fmt.Errorf("unknown status: %q", text)
}

// DefaultVolume is the volume every station starts at
const DefaultVolume = 0.5

// AudioState is the observable per-station state
type AudioState struct {
	Volume    float64 `json:"volume"`
	Status    Status  `json:"status"`
	IsFocused bool    `json:"isFocused"`
	// Gain is the effective playback gain after focus and global mute
	Gain float64 `json:"gain"`
	// LastError describes the most recent fault, empty when none
	LastError string `json:"lastError,omitempty"`
}

// DefaultState is returned for unknown stations
func DefaultState() AudioState {
	return AudioState{
		Volume: DefaultVolume,
		Status: StatusLoading,
		Gain:   DefaultVolume,
	}
}

// Silent reports whether the station is inaudible
func (a AudioState) Silent() bool {
	return a.Gain == 0
}
