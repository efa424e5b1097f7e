// ABOUTME: Stream interface and codec detection
// ABOUTME: Maps HTTP content types and URL extensions to decoders
package decode

import (
	"errors"
	"fmt"
	"io"
	"math"
	"mime"
	"net/url"
	"path"
	"strings"

	"github.com/harperreed/radiowatch/pkg/audio"
)

// Supported codecs
const (
	CodecMP3  = "mp3"
	CodecFLAC = "flac"
	CodecOgg  = "ogg"
	CodecWAV  = "wav"
)

// ErrUnsupportedFormat is returned when no decoder handles a stream
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Stream decodes an audio byte stream into PCM buffers
type Stream interface {
	// Read returns the next chunk of decoded audio, or io.EOF at end of stream.
	// Format may change between chunks for chained streams.
	Read() (audio.Buffer, error)

	// Close releases decoder resources and the underlying reader
	Close() error
}

var contentTypes = map[string]string{
	"audio/mpeg":      CodecMP3,
	"audio/mp3":       CodecMP3,
	"audio/mpeg3":     CodecMP3,
	"audio/x-mpeg":    CodecMP3,
	"audio/flac":      CodecFLAC,
	"audio/x-flac":    CodecFLAC,
	"audio/ogg":       CodecOgg,
	"audio/vorbis":    CodecOgg,
	"audio/opus":      CodecOgg,
	"application/ogg": CodecOgg,
	"audio/wav":       CodecWAV,
	"audio/wave":      CodecWAV,
	"audio/x-wav":     CodecWAV,
	"audio/vnd.wave":  CodecWAV,
}

var extensions = map[string]string{
	".mp3":  CodecMP3,
	".flac": CodecFLAC,
	".ogg":  CodecOgg,
	".oga":  CodecOgg,
	".opus": CodecOgg,
	".wav":  CodecWAV,
}

// CodecFor picks a codec from the response content type, falling back to
// the extension of the stream location.
func CodecFor(contentType, location string) (string, error) {
	if contentType != "" {
		mediaType, _, err := mime.ParseMediaType(contentType)
		if err == nil {
			if codec, ok := contentTypes[strings.ToLower(mediaType)]; ok {
				return codec, nil
			}
		}
	}

	p := location
	if u, err := url.Parse(location); err == nil {
		p = u.Path
	}
	if codec, ok := extensions[strings.ToLower(path.Ext(p))]; ok {
		return codec, nil
	}

	return "", fmt.Errorf("%w: content type %q", ErrUnsupportedFormat, contentType)
}

// Open creates a Stream for the given codec over r
func Open(r io.ReadCloser, codec string) (Stream, error) {
	switch codec {
	case CodecMP3:
		return NewMP3(r)
	case CodecFLAC:
		return NewFLAC(r)
	case CodecOgg:
		return NewOgg(r)
	case CodecWAV:
		return NewWAV(r)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, codec)
	}
}

// scaleTo24 moves a sample of the given bit depth into 24-bit range
func scaleTo24(sample int32, bitDepth int) int32 {
	shift := bitDepth - 24
	if shift > 0 {
		return sample >> shift
	}
	return sample << -shift
}

// floatTo24 converts a [-1, 1] float sample into 24-bit range
func floatTo24(v float64) int32 {
	if v > 1 {
		v = 1
	} else if v < -1 {
		v = -1
	}
	return int32(math.Round(v * audio.Max24Bit))
}
