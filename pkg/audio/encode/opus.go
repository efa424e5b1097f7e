// ABOUTME: Ogg/Opus segment encoder
// ABOUTME: Resamples to 48kHz, encodes 20ms Opus frames and muxes them into Ogg pages
package encode

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
	"github.com/harperreed/radiowatch/pkg/audio"
	"github.com/harperreed/radiowatch/pkg/audio/ogg"
	"github.com/harperreed/radiowatch/pkg/audio/resample"
	"gopkg.in/hraban/opus.v2"
)

const (
	opusSampleRate = 48000
	opusFrameSize  = opusSampleRate / 50 // 20ms frame
	opusPreSkip    = 312
	opusMaxPacket  = 4000
	opusVendor     = "radiowatch"
)

// OpusEncoder encodes Ogg/Opus files
type OpusEncoder struct {
	bitrate int
}

// NewOpus creates a new Opus encoder; bitrate 0 keeps the libopus default
func NewOpus(bitrate int) Encoder {
	return &OpusEncoder{bitrate: bitrate}
}

// ContentType returns the Ogg/Opus MIME type
func (e *OpusEncoder) ContentType() string { return "audio/ogg; codecs=opus" }

// Extension returns the Ogg/Opus file extension
func (e *OpusEncoder) Extension() string { return "ogg" }

// Encode converts int32 samples to a complete Ogg/Opus file
func (e *OpusEncoder) Encode(buf audio.Buffer) ([]byte, error) {
	if buf.Frames() == 0 {
		return nil, ErrEmptySegment
	}

	samples, channels := fitChannels(buf)
	if buf.Format.SampleRate != opusSampleRate {
		samples = resample.Convert(samples, buf.Format.SampleRate, opusSampleRate, channels)
	}

	encoder, err := opus.NewEncoder(opusSampleRate, channels, opus.AppAudio)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus encoder: %w", err)
	}
	if e.bitrate > 0 {
		if err := encoder.SetBitrate(e.bitrate); err != nil {
			return nil, fmt.Errorf("failed to set opus bitrate: %w", err)
		}
	}

	var out bytes.Buffer
	id := uuid.New()
	w := ogg.NewWriter(&out, binary.BigEndian.Uint32(id[:4]))

	if err := w.WritePage([][]byte{opusHead(channels, buf.Format.SampleRate)}, 0, false); err != nil {
		return nil, err
	}
	if err := w.WritePage([][]byte{opusTags()}, 0, false); err != nil {
		return nil, err
	}

	totalFrames := len(samples) / channels
	frameLen := opusFrameSize * channels
	pcm := make([]int16, frameLen)

	var (
		page     [][]byte
		segments int
		encoded  int64
	)
	for offset := 0; offset < len(samples); offset += frameLen {
		// Zero-pad the final frame
		end := min(offset+frameLen, len(samples))
		for i := range pcm {
			pcm[i] = 0
		}
		for i, s := range samples[offset:end] {
			pcm[i] = audio.SampleToInt16(s)
		}

		data := make([]byte, opusMaxPacket)
		n, err := encoder.Encode(pcm, data)
		if err != nil {
			return nil, fmt.Errorf("opus encode error: %w", err)
		}
		packet := data[:n]

		if segments+ogg.SegmentsFor(len(packet)) > ogg.MaxSegments {
			if err := w.WritePage(page, opusPreSkip+encoded, false); err != nil {
				return nil, err
			}
			page, segments = nil, 0
		}

		page = append(page, packet)
		segments += ogg.SegmentsFor(len(packet))
		encoded += opusFrameSize
	}

	// The last granule counts real samples only so players trim the padding
	if err := w.WritePage(page, opusPreSkip+int64(totalFrames), true); err != nil {
		return nil, err
	}

	return out.Bytes(), nil
}

func opusHead(channels, inputRate int) []byte {
	head := make([]byte, 19)
	copy(head, "OpusHead")
	head[8] = 1
	head[9] = byte(channels)
	binary.LittleEndian.PutUint16(head[10:12], opusPreSkip)
	binary.LittleEndian.PutUint32(head[12:16], uint32(inputRate))
	// output gain [16:18] and mapping family [18] stay zero
	return head
}

func opusTags() []byte {
	tags := make([]byte, 0, 8+4+len(opusVendor)+4)
	tags = append(tags, "OpusTags"...)
	tags = binary.LittleEndian.AppendUint32(tags, uint32(len(opusVendor)))
	tags = append(tags, opusVendor...)
	tags = binary.LittleEndian.AppendUint32(tags, 0)
	return tags
}
