// ABOUTME: Audio output interface definition
// ABOUTME: Common interface for audio playback backends and their voices
package output

import (
	"errors"

	"github.com/harperreed/radiowatch/pkg/audio"
)

// ErrClosed is returned when writing to a closed voice or output
var ErrClosed = errors.New("output closed")

// Output represents an audio output device shared by all stations
type Output interface {
	// NewVoice opens a playback voice for PCM in the given format
	NewVoice(format audio.Format) (Voice, error)

	// Close releases output resources
	Close() error
}

// Voice is one station's playback channel
type Voice interface {
	// Write outputs audio samples (blocks until written)
	Write(samples []int32) error

	// SetGain sets the playback gain in [0, 1]
	SetGain(gain float64)

	// Gain returns the current playback gain
	Gain() float64

	// Close stops playback and releases the voice
	Close() error
}
