// ABOUTME: Oto-based audio output implementation
// ABOUTME: Handles per-station PCM playback with software gain using the oto library
package output

import (
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/ebitengine/oto/v3"
	"github.com/harperreed/radiowatch/pkg/audio"
	"github.com/harperreed/radiowatch/pkg/audio/resample"
)

// Oto output implementation using oto library. oto allows one context per
// process, so every voice is a player on the same context and voices in
// other formats are resampled to it.
type Oto struct {
	mu         sync.Mutex
	otoCtx     *oto.Context
	sampleRate int
	channels   int
	voices     map[*otoVoice]struct{}
	closed     bool
}

// NewOto creates a new Oto output; the device opens on the first voice
func NewOto(sampleRate, channels int) *Oto {
	return &Oto{
		sampleRate: sampleRate,
		channels:   channels,
		voices:     make(map[*otoVoice]struct{}),
	}
}

func (o *Oto) open() error {
	if o.otoCtx != nil {
		return nil
	}

	op := &oto.NewContextOptions{
		SampleRate:   o.sampleRate,
		ChannelCount: o.channels,
		Format:       oto.FormatSignedInt16LE,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return fmt.Errorf("failed to create oto context: %w", err)
	}

	<-readyChan

	o.otoCtx = ctx
	log.Printf("Audio output initialized: %dHz, %d channels", o.sampleRate, o.channels)
	return nil
}

// NewVoice creates a player fed through a pipe
func (o *Oto) NewVoice(format audio.Format) (Voice, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return nil, ErrClosed
	}
	if err := o.open(); err != nil {
		return nil, err
	}

	v := &otoVoice{
		owner:    o,
		format:   format,
		channels: o.channels,
		gain:     1.0,
	}
	if format.SampleRate != o.sampleRate {
		v.resampler = resample.New(format.SampleRate, o.sampleRate, format.Channels)
	}

	// Create pipe for continuous streaming
	v.pipeReader, v.pipeWriter = io.Pipe()

	// Create persistent player that reads from the pipe
	v.player = o.otoCtx.NewPlayer(v.pipeReader)
	v.player.Play()

	o.voices[v] = struct{}{}
	return v, nil
}

func (o *Oto) release(v *otoVoice) {
	o.mu.Lock()
	delete(o.voices, v)
	o.mu.Unlock()
}

// Close releases output resources
func (o *Oto) Close() error {
	o.mu.Lock()
	voices := make([]*otoVoice, 0, len(o.voices))
	for v := range o.voices {
		voices = append(voices, v)
	}
	o.closed = true
	o.mu.Unlock()

	for _, v := range voices {
		v.Close()
	}

	if o.otoCtx != nil {
		return o.otoCtx.Suspend()
	}
	return nil
}

type otoVoice struct {
	owner      *Oto
	format     audio.Format
	channels   int
	resampler  *resample.Resampler
	player     *oto.Player
	pipeReader *io.PipeReader
	pipeWriter *io.PipeWriter

	mu     sync.Mutex
	gain   float64
	closed bool
}

// Write outputs audio samples (blocks until the device consumes them)
func (v *otoVoice) Write(samples []int32) error {
	v.mu.Lock()
	gain, closed := v.gain, v.closed
	v.mu.Unlock()
	if closed {
		return ErrClosed
	}

	if v.resampler != nil {
		out := make([]int32, v.resampler.OutputSamplesNeeded(len(samples)))
		n := v.resampler.Resample(samples, out)
		samples = out[:n]
	}
	samples = mapChannels(samples, v.format.Channels, v.channels)

	// Apply gain on a copy; the caller's buffer is shared with the sampling tap
	scaled := audio.ApplyGain(samples, gain)

	// Convert to 16-bit little-endian for oto
	output := make([]byte, len(scaled)*2)
	for i, s := range scaled {
		binary.LittleEndian.PutUint16(output[i*2:], uint16(audio.SampleToInt16(s)))
	}

	// Write to pipe (which feeds the persistent player)
	if _, err := v.pipeWriter.Write(output); err != nil {
		return fmt.Errorf("pipe write failed: %w", err)
	}
	return nil
}

// SetGain sets the voice gain
func (v *otoVoice) SetGain(gain float64) {
	v.mu.Lock()
	v.gain = audio.ClampGain(gain)
	v.mu.Unlock()
}

// Gain returns the voice gain
func (v *otoVoice) Gain() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.gain
}

// Close stops the player and unblocks any pending Write
func (v *otoVoice) Close() error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return nil
	}
	v.closed = true
	v.mu.Unlock()

	v.pipeWriter.Close()
	v.pipeReader.Close()
	err := v.player.Close()
	v.owner.release(v)
	return err
}

// mapChannels converts interleaved samples between channel layouts
func mapChannels(samples []int32, from, to int) []int32 {
	if from == to || from <= 0 || to <= 0 {
		return samples
	}

	frames := len(samples) / from
	out := make([]int32, frames*to)
	for i := 0; i < frames; i++ {
		for ch := 0; ch < to; ch++ {
			src := ch
			if src >= from {
				src = from - 1
			}
			out[i*to+ch] = samples[i*from+src]
		}
	}
	return out
}
