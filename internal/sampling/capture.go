// ABOUTME: In-flight capture buffering a fixed number of decoded frames
// ABOUTME: Finalizes into a Segment once the target frame count is reached
package sampling

import (
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/radiowatch/pkg/audio"
)

type capture struct {
	stationID string
	startedAt time.Time
	duration  time.Duration
	format    audio.Format
	target    int // interleaved samples
	samples   []int32
}

func newCapture(stationID string, startedAt time.Time, duration time.Duration) *capture {
	return &capture{stationID: stationID, startedAt: startedAt, duration: duration}
}

// add appends buf and reports whether the capture is complete. A layout
// change mid-capture restarts it with the new format.
func (c *capture) add(buf audio.Buffer) bool {
	if buf.Format.IsZero() {
		return false
	}

	if c.format.IsZero() || !c.format.SameLayout(buf.Format) {
		c.format = buf.Format
		c.target = audio.DurationSamples(c.duration, buf.Format)
		c.samples = make([]int32, 0, c.target)
	}

	need := c.target - len(c.samples)
	if need > len(buf.Samples) {
		need = len(buf.Samples)
	}
	c.samples = append(c.samples, buf.Samples[:need]...)
	return len(c.samples) >= c.target
}

// restart discards buffered audio; the capture now begins at t
func (c *capture) restart(t time.Time) {
	c.startedAt = t
	c.samples = c.samples[:0]
}

func (c *capture) segment() Segment {
	return Segment{
		ID:         uuid.NewString(),
		StationID:  c.stationID,
		CapturedAt: c.startedAt,
		Duration:   audio.FramesDuration(len(c.samples)/c.format.Channels, c.format.SampleRate),
		Format:     c.format,
		Samples:    c.samples,
	}
}
