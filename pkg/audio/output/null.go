// ABOUTME: Silent output for headless runs and tests
// ABOUTME: Accepts writes, tracks gain and counts frames without a sound device
package output

import (
	"sync"

	"github.com/harperreed/radiowatch/pkg/audio"
)

// Null discards audio
type Null struct {
	mu     sync.Mutex
	voices []*NullVoice
	closed bool
}

// NewNull creates a silent output
func NewNull() *Null {
	return &Null{}
}

// NewVoice creates a silent voice
func (n *Null) NewVoice(format audio.Format) (Voice, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return nil, ErrClosed
	}

	v := &NullVoice{format: format, gain: 1.0}
	n.voices = append(n.voices, v)
	return v, nil
}

// Voices returns every voice created so far
func (n *Null) Voices() []*NullVoice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]*NullVoice(nil), n.voices...)
}

// Close closes every voice
func (n *Null) Close() error {
	n.mu.Lock()
	voices := n.voices
	n.closed = true
	n.mu.Unlock()

	for _, v := range voices {
		v.Close()
	}
	return nil
}

// NullVoice records what would have been played
type NullVoice struct {
	mu     sync.Mutex
	format audio.Format
	gain   float64
	frames int
	peak   int32
	closed bool
}

// Write counts frames and tracks the loudest sample after gain
func (v *NullVoice) Write(samples []int32) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return ErrClosed
	}

	for _, s := range audio.ApplyGain(samples, v.gain) {
		if s < 0 {
			s = -s
		}
		if s > v.peak {
			v.peak = s
		}
	}
	if v.format.Channels > 0 {
		v.frames += len(samples) / v.format.Channels
	}
	return nil
}

// SetGain sets the voice gain
func (v *NullVoice) SetGain(gain float64) {
	v.mu.Lock()
	v.gain = audio.ClampGain(gain)
	v.mu.Unlock()
}

// Gain returns the voice gain
func (v *NullVoice) Gain() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.gain
}

// Frames returns how many frames were written
func (v *NullVoice) Frames() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.frames
}

// Peak returns the loudest sample written after gain
func (v *NullVoice) Peak() int32 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.peak
}

// Closed reports whether the voice was closed
func (v *NullVoice) Closed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.closed
}

// Close marks the voice closed
func (v *NullVoice) Close() error {
	v.mu.Lock()
	v.closed = true
	v.mu.Unlock()
	return nil
}
