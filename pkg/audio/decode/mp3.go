// ABOUTME: MP3 stream decoder
// ABOUTME: Decodes MP3 audio to int32 samples using go-mp3
package decode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"
	"github.com/harperreed/radiowatch/pkg/audio"
)

// go-mp3 always produces 16-bit stereo; one MP3 frame is 1152 samples
const mp3ChunkBytes = 1152 * 4

// MP3Stream decodes MP3 audio
type MP3Stream struct {
	decoder *mp3.Decoder
	closer  io.Closer
	format  audio.Format
	buf     []byte
	done    bool
}

// NewMP3 creates a new MP3 stream decoder
func NewMP3(r io.ReadCloser) (Stream, error) {
	decoder, err := mp3.NewDecoder(r)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("failed to create mp3 decoder: %w", err)
	}
	if decoder.SampleRate() <= 0 {
		r.Close()
		return nil, errors.New("mp3: invalid sample rate")
	}

	return &MP3Stream{
		decoder: decoder,
		closer:  r,
		format: audio.Format{
			Codec:      CodecMP3,
			SampleRate: decoder.SampleRate(),
			Channels:   2,
			BitDepth:   16,
		},
		buf: make([]byte, mp3ChunkBytes),
	}, nil
}

// Read decodes the next chunk
func (s *MP3Stream) Read() (audio.Buffer, error) {
	if s.done {
		return audio.Buffer{}, io.EOF
	}

	n, err := io.ReadFull(s.decoder, s.buf)
	if err != nil {
		if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
			return audio.Buffer{}, fmt.Errorf("mp3 decode error: %w", err)
		}
		s.done = true
	}

	// Drop a trailing partial sample
	n -= n % 2
	if n == 0 {
		return audio.Buffer{}, io.EOF
	}

	samples := make([]int32, n/2)
	for i := range samples {
		sample16 := int16(binary.LittleEndian.Uint16(s.buf[i*2:]))
		samples[i] = audio.SampleFromInt16(sample16)
	}

	return audio.Buffer{Samples: samples, Format: s.format}, nil
}

// Close releases decoder resources
func (s *MP3Stream) Close() error {
	return s.closer.Close()
}
