// ABOUTME: FLAC stream decoder
// ABOUTME: Decodes FLAC frames to int32 samples using mewkiz/flac
package decode

import (
	"errors"
	"fmt"
	"io"

	"github.com/harperreed/radiowatch/pkg/audio"
	"github.com/mewkiz/flac"
)

// FLACStream decodes FLAC audio frame by frame
type FLACStream struct {
	stream *flac.Stream
	closer io.Closer
	format audio.Format
}

// NewFLAC creates a new FLAC stream decoder
func NewFLAC(r io.ReadCloser) (Stream, error) {
	stream, err := flac.New(r)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("failed to create flac decoder: %w", err)
	}

	info := stream.Info
	return &FLACStream{
		stream: stream,
		closer: r,
		format: audio.Format{
			Codec:      CodecFLAC,
			SampleRate: int(info.SampleRate),
			Channels:   int(info.NChannels),
			BitDepth:   int(info.BitsPerSample),
		},
	}, nil
}

// Read decodes the next FLAC frame
func (s *FLACStream) Read() (audio.Buffer, error) {
	frame, err := s.stream.ParseNext()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return audio.Buffer{}, io.EOF
		}
		return audio.Buffer{}, fmt.Errorf("flac decode error: %w", err)
	}

	channels := s.format.Channels
	if len(frame.Subframes) < channels {
		return audio.Buffer{}, fmt.Errorf("flac frame has %d subframes, expected %d", len(frame.Subframes), channels)
	}

	blockSize := int(frame.BlockSize)
	samples := make([]int32, blockSize*channels)
	for i := 0; i < blockSize; i++ {
		for ch := 0; ch < channels; ch++ {
			samples[i*channels+ch] = scaleTo24(frame.Subframes[ch].Samples[i], s.format.BitDepth)
		}
	}

	return audio.Buffer{Samples: samples, Format: s.format}, nil
}

// Close releases decoder resources
func (s *FLACStream) Close() error {
	return s.closer.Close()
}
