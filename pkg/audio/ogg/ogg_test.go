// ABOUTME: Tests for Ogg page framing
// ABOUTME: Covers checksums, lacing, and packets continued across pages
package ogg

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadPackets(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, 42)

	require.NoError(t, w.WritePage([][]byte{[]byte("head")}, 0, false))
	require.NoError(t, w.WritePage([][]byte{[]byte("one"), bytes.Repeat([]byte{7}, 600)}, 960, false))
	require.NoError(t, w.WritePage([][]byte{[]byte("last")}, 1920, true))

	r := NewReader(&buf)

	p, err := r.ReadPacket()
	require.NoError(t, err)
	assert.Equal(t, "head", string(p.Data))
	assert.True(t, p.BOS)
	assert.Equal(t, uint32(42), p.Serial)

	p, err = r.ReadPacket()
	require.NoError(t, err)
	assert.Equal(t, "one", string(p.Data))
	assert.False(t, p.BOS)
	assert.Equal(t, int64(-1), p.Granule)

	p, err = r.ReadPacket()
	require.NoError(t, err)
	assert.Len(t, p.Data, 600)
	assert.Equal(t, int64(960), p.Granule)

	p, err = r.ReadPacket()
	require.NoError(t, err)
	assert.Equal(t, "last", string(p.Data))

	_, err = r.ReadPacket()
	assert.ErrorIs(t, err, io.EOF)
}

func TestPageFlags(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, 1)
	require.NoError(t, w.WritePage([][]byte{[]byte("a")}, 0, false))
	require.NoError(t, w.WritePage([][]byte{[]byte("b")}, 0, true))

	r := NewReader(&buf)
	first, err := r.ReadPage()
	require.NoError(t, err)
	assert.True(t, first.BOS())
	assert.False(t, first.EOS())
	assert.Equal(t, uint32(0), first.Sequence)

	second, err := r.ReadPage()
	require.NoError(t, err)
	assert.False(t, second.BOS())
	assert.True(t, second.EOS())
	assert.Equal(t, uint32(1), second.Sequence)
}

func TestChecksumMismatch(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, 1)
	require.NoError(t, w.WritePage([][]byte{[]byte("payload")}, 0, false))

	data := buf.Bytes()
	data[len(data)-1] ^= 0xff

	_, err := NewReader(bytes.NewReader(data)).ReadPage()
	assert.ErrorIs(t, err, ErrChecksum)
}

func TestInvalidMagic(t *testing.T) {
	data := bytes.Repeat([]byte{'x'}, headerSize)
	_, err := NewReader(bytes.NewReader(data)).ReadPage()
	assert.True(t, errors.Is(err, ErrInvalidMagic))
}

func TestTruncatedPage(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, 1)
	require.NoError(t, w.WritePage([][]byte{[]byte("payload")}, 0, false))

	data := buf.Bytes()[:buf.Len()-3]
	_, err := NewReader(bytes.NewReader(data)).ReadPage()
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestPacketSpanningPages(t *testing.T) {
	big := bytes.Repeat([]byte{9}, 300)

	// Hand-build two pages: the first ends mid-packet with a 255 lacing value
	first := &Page{HeaderType: FlagBOS, Serial: 5, Sequence: 0, Lacing: []uint8{255}, Body: big[:255]}
	second := &Page{HeaderType: FlagContinued, Serial: 5, Sequence: 1, GranulePos: 100, Lacing: []uint8{45}, Body: big[255:]}

	var buf bytes.Buffer
	buf.Write(first.Bytes())
	buf.Write(second.Bytes())

	p, err := NewReader(&buf).ReadPacket()
	require.NoError(t, err)
	assert.Equal(t, big, p.Data)
	assert.Equal(t, int64(100), p.Granule)
}

func TestTooManySegments(t *testing.T) {
	w := NewWriter(io.Discard, 1)
	err := w.WritePage([][]byte{make([]byte, 255*255)}, 0, false)
	assert.ErrorIs(t, err, ErrPacketTooLarge)
}

func TestLacingFor(t *testing.T) {
	assert.Equal(t, []uint8{0}, lacingFor(0))
	assert.Equal(t, []uint8{10}, lacingFor(10))
	assert.Equal(t, []uint8{255, 0}, lacingFor(255))
	assert.Equal(t, []uint8{255, 45}, lacingFor(300))
	assert.Equal(t, 2, SegmentsFor(300))
}
