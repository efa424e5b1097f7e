// ABOUTME: WAV stream decoder
// ABOUTME: Decodes RIFF/WAVE PCM to int32 samples using beep's wav package
package decode

import (
	"fmt"
	"io"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
	"github.com/harperreed/radiowatch/pkg/audio"
)

const wavChunkFrames = 1024

// WAVStream decodes WAV audio
type WAVStream struct {
	streamer beep.StreamSeekCloser
	format   audio.Format
	buf      [][2]float64
}

// NewWAV creates a new WAV stream decoder
func NewWAV(r io.ReadCloser) (Stream, error) {
	streamer, format, err := wav.Decode(r)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("failed to create wav decoder: %w", err)
	}

	return &WAVStream{
		streamer: streamer,
		format: audio.Format{
			Codec:      CodecWAV,
			SampleRate: int(format.SampleRate),
			Channels:   format.NumChannels,
			BitDepth:   format.Precision * 8,
		},
		buf: make([][2]float64, wavChunkFrames),
	}, nil
}

// Read decodes the next chunk
func (s *WAVStream) Read() (audio.Buffer, error) {
	n, ok := s.streamer.Stream(s.buf)
	if !ok || n == 0 {
		if err := s.streamer.Err(); err != nil {
			return audio.Buffer{}, fmt.Errorf("wav decode error: %w", err)
		}
		return audio.Buffer{}, io.EOF
	}

	channels := s.format.Channels
	samples := make([]int32, n*channels)
	for i := 0; i < n; i++ {
		for ch := 0; ch < channels && ch < 2; ch++ {
			samples[i*channels+ch] = floatTo24(s.buf[i][ch])
		}
	}

	return audio.Buffer{Samples: samples, Format: s.format}, nil
}

// Close releases decoder resources; beep closes the underlying reader
func (s *WAVStream) Close() error {
	return s.streamer.Close()
}
