// ABOUTME: Captured segment type and upload outcome records
// ABOUTME: Defines the filename and timestamp formats used by the upload contract
package sampling

import (
	"context"
	"time"

	"github.com/harperreed/radiowatch/pkg/audio"
)

// TimestampFormat is ISO-8601 UTC with millisecond precision
const TimestampFormat = "2006-01-02T15:04:05.000Z"

// filenameTimeFormat is the compact form used inside file names
const filenameTimeFormat = "20060102T150405.000Z"

// Segment is one captured stretch of decoded audio
type Segment struct {
	ID         string
	StationID  string
	CapturedAt time.Time
	Duration   time.Duration
	Format     audio.Format
	Samples    []int32
}

// Buffer returns the segment audio as a PCM buffer
func (s Segment) Buffer() audio.Buffer {
	return audio.Buffer{At: s.CapturedAt, Samples: s.Samples, Format: s.Format}
}

// Timestamp returns CapturedAt in the upload timestamp format
func (s Segment) Timestamp() string {
	return s.CapturedAt.UTC().Format(TimestampFormat)
}

// Filename returns "{stationID}_{yyyymmddThhmmss.mmmZ}.{ext}"
func (s Segment) Filename(ext string) string {
	return s.StationID + "_" + s.CapturedAt.UTC().Format(filenameTimeFormat) + "." + ext
}

// Receipt describes a delivered segment
type Receipt struct {
	Filename    string
	ContentType string
	Bytes       int
	StatusCode  int
}

// Uploader delivers a segment to the ingestion service
type Uploader interface {
	Upload(ctx context.Context, seg Segment) (Receipt, error)
}

// Outcome is the result of one upload attempt
type Outcome struct {
	SegmentID  string        `json:"segmentId"`
	StationID  string        `json:"stationId"`
	CapturedAt time.Time     `json:"capturedAt"`
	Duration   time.Duration `json:"duration"`
	Filename   string        `json:"filename"`
	Bytes      int           `json:"bytes"`
	StatusCode int           `json:"statusCode"`
	Err        error         `json:"-"`
	FinishedAt time.Time     `json:"finishedAt"`
}

// OK reports whether the upload succeeded
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Stats are per-station sampling counters
type Stats struct {
	Active         bool      `json:"active"`
	Captured       int       `json:"captured"`
	Uploaded       int       `json:"uploaded"`
	Failed         int       `json:"failed"`
	Bytes          int64     `json:"bytes"`
	Dropped        int64     `json:"dropped"`
	LastCapturedAt time.Time `json:"lastCapturedAt,omitempty"`
	LastError      string    `json:"lastError,omitempty"`
}
