// ABOUTME: Tests for segment encoders
// ABOUTME: Encodes synthetic tones and decodes them back through the stream decoders
package encode

import (
	"bytes"
	"errors"
	"io"
	"math"
	"testing"

	"github.com/harperreed/radiowatch/pkg/audio"
	"github.com/harperreed/radiowatch/pkg/audio/decode"
)

func tone(seconds float64, sampleRate, channels int) audio.Buffer {
	frames := int(seconds * float64(sampleRate))
	samples := make([]int32, frames*channels)
	for i := 0; i < frames; i++ {
		v := int32(math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate)) * 0.5 * audio.Max24Bit)
		for ch := 0; ch < channels; ch++ {
			samples[i*channels+ch] = v
		}
	}
	return audio.Buffer{
		Samples: samples,
		Format:  audio.Format{Codec: "mp3", SampleRate: sampleRate, Channels: channels, BitDepth: 16},
	}
}

func decodeAll(t *testing.T, data []byte, codec string) ([]int32, audio.Format) {
	t.Helper()

	stream, err := decode.Open(io.NopCloser(bytes.NewReader(data)), codec)
	if err != nil {
		t.Fatalf("failed to open encoded data: %v", err)
	}
	defer stream.Close()

	var samples []int32
	var format audio.Format
	for {
		buf, err := stream.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		samples = append(samples, buf.Samples...)
		format = buf.Format
	}
	return samples, format
}

func TestNew(t *testing.T) {
	tests := []struct {
		codec       string
		contentType string
		extension   string
	}{
		{CodecOpus, "audio/ogg; codecs=opus", "ogg"},
		{"", "audio/ogg; codecs=opus", "ogg"},
		{CodecWAV, "audio/wav", "wav"},
	}

	for _, tt := range tests {
		enc, err := New(tt.codec, 64000)
		if err != nil {
			t.Fatalf("New(%q) failed: %v", tt.codec, err)
		}
		if enc.ContentType() != tt.contentType {
			t.Errorf("expected content type %q, got %q", tt.contentType, enc.ContentType())
		}
		if enc.Extension() != tt.extension {
			t.Errorf("expected extension %q, got %q", tt.extension, enc.Extension())
		}
	}
}

func TestNewUnsupported(t *testing.T) {
	if _, err := New("aac", 0); err == nil {
		t.Fatal("expected error for unsupported codec")
	}
}

func TestEmptySegment(t *testing.T) {
	for _, enc := range []Encoder{NewOpus(0), NewWAV()} {
		_, err := enc.Encode(audio.Buffer{Format: audio.Format{SampleRate: 48000, Channels: 2}})
		if !errors.Is(err, ErrEmptySegment) {
			t.Errorf("%T: expected ErrEmptySegment, got %v", enc, err)
		}
	}
}

func TestOpusProducesDecodableOgg(t *testing.T) {
	data, err := NewOpus(64000).Encode(tone(1, 44100, 2))
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	if !bytes.HasPrefix(data, []byte("OggS")) {
		t.Fatal("expected ogg capture pattern")
	}
	if !bytes.Contains(data, []byte("OpusHead")) || !bytes.Contains(data, []byte("OpusTags")) {
		t.Fatal("expected opus headers")
	}

	samples, format := decodeAll(t, data, decode.CodecOgg)
	if format.SampleRate != 48000 || format.Channels != 2 {
		t.Fatalf("unexpected decoded format %+v", format)
	}

	frames := len(samples) / 2
	if frames < 47000 || frames > 48000 {
		t.Errorf("expected about one second of audio, got %d frames", frames)
	}
}

func TestOpusLongSegmentSpansPages(t *testing.T) {
	// 8s of 20ms packets cannot fit in a single page
	data, err := NewOpus(0).Encode(tone(8, 48000, 1))
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	if pages := bytes.Count(data, []byte("OggS")); pages < 4 {
		t.Errorf("expected at least 4 pages, got %d", pages)
	}

	samples, format := decodeAll(t, data, decode.CodecOgg)
	if format.Channels != 1 {
		t.Errorf("expected mono, got %d channels", format.Channels)
	}
	if len(samples) < 8*48000-960 {
		t.Errorf("expected about 8s of audio, got %d samples", len(samples))
	}
}

func TestWAVRoundTrip(t *testing.T) {
	buf := tone(0.25, 22050, 2)

	data, err := NewWAV().Encode(buf)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("RIFF")) {
		t.Fatal("expected RIFF header")
	}

	samples, format := decodeAll(t, data, decode.CodecWAV)
	if format.SampleRate != 22050 || format.Channels != 2 {
		t.Fatalf("unexpected decoded format %+v", format)
	}
	if len(samples) != len(buf.Samples) {
		t.Fatalf("expected %d samples, got %d", len(buf.Samples), len(samples))
	}

	for i := range samples {
		diff := samples[i] - buf.Samples[i]
		if diff < -1024 || diff > 1024 {
			t.Fatalf("sample %d: expected about %d, got %d", i, buf.Samples[i], samples[i])
		}
	}
}

func TestFitChannelsDropsExtraChannels(t *testing.T) {
	buf := audio.Buffer{
		Samples: []int32{1, 2, 3, 4, 5, 6},
		Format:  audio.Format{SampleRate: 48000, Channels: 3},
	}

	samples, channels := fitChannels(buf)
	if channels != 2 {
		t.Fatalf("expected 2 channels, got %d", channels)
	}
	expected := []int32{1, 2, 4, 5}
	for i := range expected {
		if samples[i] != expected[i] {
			t.Errorf("sample %d: expected %d, got %d", i, expected[i], samples[i])
		}
	}
}

func TestMemFileSeekAndOverwrite(t *testing.T) {
	var f memFile
	f.Write([]byte("hello world"))
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		t.Fatalf("seek failed: %v", err)
	}
	f.Write([]byte("HELLO"))

	if string(f.buf) != "HELLO world" {
		t.Errorf("expected %q, got %q", "HELLO world", string(f.buf))
	}
	if _, err := f.Seek(-1, io.SeekStart); err == nil {
		t.Error("expected error for negative seek")
	}
}
