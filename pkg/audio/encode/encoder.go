// ABOUTME: Encoder interface definition
// ABOUTME: Common interface for all segment encoders plus channel layout helpers
package encode

import (
	"errors"
	"fmt"

	"github.com/harperreed/radiowatch/pkg/audio"
)

// Supported output codecs
const (
	CodecOpus = "opus"
	CodecWAV  = "wav"
)

// ErrEmptySegment is returned when there is no audio to encode
var ErrEmptySegment = errors.New("no audio to encode")

// Encoder encodes a captured PCM buffer into a complete audio file
type Encoder interface {
	// Encode converts PCM samples to a self-contained encoded file
	Encode(buf audio.Buffer) ([]byte, error)

	// ContentType is the MIME type of the encoded file
	ContentType() string

	// Extension is the file extension without a dot
	Extension() string
}

// New creates an encoder for the codec name
func New(codec string, bitrate int) (Encoder, error) {
	switch codec {
	case CodecOpus, "":
		return NewOpus(bitrate), nil
	case CodecWAV:
		return NewWAV(), nil
	default:
		return nil, fmt.Errorf("unsupported output codec: %s", codec)
	}
}

// fitChannels reduces a buffer to at most two channels
func fitChannels(buf audio.Buffer) ([]int32, int) {
	channels := buf.Format.Channels
	if channels <= 2 {
		return buf.Samples, channels
	}

	frames := buf.Frames()
	out := make([]int32, frames*2)
	for i := 0; i < frames; i++ {
		out[i*2] = buf.Samples[i*channels]
		out[i*2+1] = buf.Samples[i*channels+1]
	}
	return out, 2
}
