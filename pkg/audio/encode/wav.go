// ABOUTME: WAV segment encoder
// ABOUTME: Writes 16-bit RIFF/WAVE files in memory using beep's wav package
package encode

import (
	"errors"
	"fmt"
	"io"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
	"github.com/harperreed/radiowatch/pkg/audio"
)

// WAVEncoder encodes 16-bit WAV
type WAVEncoder struct{}

// NewWAV creates a new WAV encoder
func NewWAV() Encoder {
	return WAVEncoder{}
}

// Encode converts int32 samples to a WAV file
func (WAVEncoder) Encode(buf audio.Buffer) ([]byte, error) {
	if buf.Frames() == 0 {
		return nil, ErrEmptySegment
	}

	samples, channels := fitChannels(buf)
	format := beep.Format{
		SampleRate:  beep.SampleRate(buf.Format.SampleRate),
		NumChannels: channels,
		Precision:   2,
	}

	var file memFile
	if err := wav.Encode(&file, &sampleStreamer{samples: samples, channels: channels}, format); err != nil {
		return nil, fmt.Errorf("wav encode error: %w", err)
	}
	return file.buf, nil
}

// ContentType returns the WAV MIME type
func (WAVEncoder) ContentType() string { return "audio/wav" }

// Extension returns the WAV file extension
func (WAVEncoder) Extension() string { return "wav" }

// sampleStreamer feeds interleaved int32 samples to beep
type sampleStreamer struct {
	samples  []int32
	channels int
	pos      int
}

func (s *sampleStreamer) Stream(out [][2]float64) (int, bool) {
	n := 0
	for n < len(out) && s.pos < len(s.samples) {
		left := float64(s.samples[s.pos]) / (1 << 23)
		right := left
		if s.channels == 2 {
			right = float64(s.samples[s.pos+1]) / (1 << 23)
		}
		out[n] = [2]float64{left, right}
		s.pos += s.channels
		n++
	}
	return n, n > 0
}

func (s *sampleStreamer) Err() error { return nil }

// memFile is an in-memory io.WriteSeeker; wav.Encode patches the header sizes last
type memFile struct {
	buf []byte
	pos int
}

func (m *memFile) Write(p []byte) (int, error) {
	end := m.pos + len(p)
	if end > len(m.buf) {
		m.buf = append(m.buf, make([]byte, end-len(m.buf))...)
	}
	copy(m.buf[m.pos:end], p)
	m.pos = end
	return len(p), nil
}

func (m *memFile) Seek(offset int64, whence int) (int64, error) {
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = int64(m.pos) + offset
	case io.SeekEnd:
		pos = int64(len(m.buf)) + offset
	default:
		return 0, errors.New("memfile: invalid whence")
	}
	if pos < 0 {
		return 0, errors.New("memfile: negative position")
	}
	m.pos = int(pos)
	return pos, nil
}
