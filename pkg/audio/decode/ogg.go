// ABOUTME: Ogg stream decoder for Vorbis and Opus radio streams
// ABOUTME: Re-detects the codec at every chained-stream boundary
package decode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/harperreed/radiowatch/pkg/audio"
	"github.com/harperreed/radiowatch/pkg/audio/ogg"
	"github.com/jfreymuth/vorbis"
	"gopkg.in/hraban/opus.v2"
)

const (
	opusSampleRate = 48000
	// 120ms at 48kHz, the longest Opus packet
	opusMaxFrame = 5760
)

var (
	errUnknownOggCodec     = errors.New("ogg: unknown codec (not Opus or Vorbis)")
	errInvalidOpusHead     = errors.New("opus: invalid OpusHead packet")
	errInvalidVorbisHeader = errors.New("vorbis: invalid identification header")
)

// oggCodec decodes the packets of one logical Ogg stream
type oggCodec interface {
	format() audio.Format
	// header consumes a header packet and reports whether all headers are in
	header(packet []byte) (bool, error)
	decode(packet []byte) ([]int32, error)
}

// OggStream decodes Ogg-encapsulated Vorbis or Opus audio
type OggStream struct {
	reader *ogg.Reader
	closer io.Closer
	codec  oggCodec
}

// NewOgg creates a new Ogg stream decoder and reads the stream headers
func NewOgg(r io.ReadCloser) (Stream, error) {
	s := &OggStream{
		reader: ogg.NewReader(r),
		closer: r,
	}

	first, err := s.reader.ReadPacket()
	if err == nil {
		err = s.begin(first)
	}
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("failed to create ogg decoder: %w", err)
	}

	return s, nil
}

// begin sets up a codec from the first packet of a logical stream
func (s *OggStream) begin(first ogg.Packet) error {
	codec, err := detectOggCodec(first.Data)
	if err != nil {
		return err
	}

	for {
		complete, err := codec.header(nil)
		if err != nil {
			return err
		}
		if complete {
			break
		}

		p, err := s.reader.ReadPacket()
		if err != nil {
			return err
		}
		if _, err := codec.header(p.Data); err != nil {
			return err
		}
	}

	s.codec = codec
	return nil
}

// Read decodes packets until one yields audio
func (s *OggStream) Read() (audio.Buffer, error) {
	for {
		p, err := s.reader.ReadPacket()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return audio.Buffer{}, io.EOF
			}
			return audio.Buffer{}, fmt.Errorf("ogg read error: %w", err)
		}

		if p.BOS {
			if err := s.begin(p); err != nil {
				return audio.Buffer{}, fmt.Errorf("ogg chain error: %w", err)
			}
			continue
		}

		samples, err := s.codec.decode(p.Data)
		if err != nil {
			return audio.Buffer{}, fmt.Errorf("ogg decode error: %w", err)
		}
		if len(samples) == 0 {
			continue
		}

		return audio.Buffer{Samples: samples, Format: s.codec.format()}, nil
	}
}

// Close releases decoder resources
func (s *OggStream) Close() error {
	return s.closer.Close()
}

func detectOggCodec(packet []byte) (oggCodec, error) {
	if len(packet) >= 8 && string(packet[:8]) == "OpusHead" {
		return newOpusCodec(packet)
	}
	if len(packet) >= 7 && packet[0] == 0x01 && string(packet[1:7]) == "vorbis" {
		return newVorbisCodec(packet)
	}
	return nil, errUnknownOggCodec
}

// opusCodec decodes Opus packets with libopus
type opusCodec struct {
	decoder   *opus.Decoder
	channels  int
	preSkip   int
	tagsSeen  bool
	pcm       []int16
	inputRate int
}

func newOpusCodec(packet []byte) (*opusCodec, error) {
	if len(packet) < 19 || packet[8] != 1 {
		return nil, errInvalidOpusHead
	}

	channels := int(packet[9])
	if channels < 1 || channels > 2 {
		return nil, fmt.Errorf("opus: unsupported channel count %d", channels)
	}

	decoder, err := opus.NewDecoder(opusSampleRate, channels)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus decoder: %w", err)
	}

	return &opusCodec{
		decoder:   decoder,
		channels:  channels,
		preSkip:   int(binary.LittleEndian.Uint16(packet[10:12])),
		inputRate: int(binary.LittleEndian.Uint32(packet[12:16])),
		pcm:       make([]int16, opusMaxFrame*channels),
	}, nil
}

func (c *opusCodec) format() audio.Format {
	return audio.Format{Codec: "opus", SampleRate: opusSampleRate, Channels: c.channels, BitDepth: 16}
}

// header expects a single OpusTags packet after OpusHead
func (c *opusCodec) header(packet []byte) (bool, error) {
	if packet == nil {
		return c.tagsSeen, nil
	}
	if len(packet) < 8 || string(packet[:8]) != "OpusTags" {
		return false, errors.New("opus: missing OpusTags packet")
	}
	c.tagsSeen = true
	return true, nil
}

func (c *opusCodec) decode(packet []byte) ([]int32, error) {
	n, err := c.decoder.Decode(packet, c.pcm)
	if err != nil {
		return nil, err
	}

	skip := 0
	if c.preSkip > 0 {
		skip = min(c.preSkip, n)
		c.preSkip -= skip
	}

	pcm := c.pcm[skip*c.channels : n*c.channels]
	samples := make([]int32, len(pcm))
	for i, v := range pcm {
		samples[i] = audio.SampleFromInt16(v)
	}
	return samples, nil
}

// vorbisCodec decodes Vorbis packets
type vorbisCodec struct {
	decoder    vorbis.Decoder
	channels   int
	sampleRate int
	headers    int
}

func newVorbisCodec(packet []byte) (*vorbisCodec, error) {
	// [7:11] version, [11] channels, [12:16] sample rate
	if len(packet) < 16 || binary.LittleEndian.Uint32(packet[7:11]) != 0 {
		return nil, errInvalidVorbisHeader
	}

	c := &vorbisCodec{
		channels:   int(packet[11]),
		sampleRate: int(binary.LittleEndian.Uint32(packet[12:16])),
	}
	if err := c.decoder.ReadHeader(packet); err != nil {
		return nil, fmt.Errorf("vorbis: %w", err)
	}
	c.headers = 1
	return c, nil
}

func (c *vorbisCodec) format() audio.Format {
	return audio.Format{Codec: "vorbis", SampleRate: c.sampleRate, Channels: c.channels, BitDepth: 16}
}

// header collects the comment and setup headers
func (c *vorbisCodec) header(packet []byte) (bool, error) {
	if packet != nil {
		if err := c.decoder.ReadHeader(packet); err != nil {
			return false, fmt.Errorf("vorbis: %w", err)
		}
		c.headers++
	}
	return c.headers >= 3, nil
}

func (c *vorbisCodec) decode(packet []byte) ([]int32, error) {
	pcm, err := c.decoder.Decode(packet)
	if err != nil {
		return nil, err
	}

	samples := make([]int32, len(pcm))
	for i, v := range pcm {
		samples[i] = floatTo24(float64(v))
	}
	return samples, nil
}
