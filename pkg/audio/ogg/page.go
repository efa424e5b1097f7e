// ABOUTME: Ogg page layout, header flags and checksum
// ABOUTME: Shared by Reader and Writer
package ogg

import (
	"encoding/binary"
	"errors"
)

// Header type flags
const (
	FlagContinued = 0x01
	FlagBOS       = 0x02
	FlagEOS       = 0x04
)

const (
	headerSize  = 27
	maxSegments = 255
	maxLacing   = 255
)

var (
	ErrInvalidMagic   = errors.New("ogg: invalid capture pattern")
	ErrInvalidVersion = errors.New("ogg: unsupported version")
	ErrChecksum       = errors.New("ogg: checksum mismatch")
	ErrPacketTooLarge = errors.New("ogg: packets do not fit in one page")
)

// Page is one Ogg page
type Page struct {
	HeaderType byte
	GranulePos int64
	Serial     uint32
	Sequence   uint32
	Lacing     []uint8
	Body       []byte
}

// BOS reports whether the page begins a logical stream
func (p *Page) BOS() bool { return p.HeaderType&FlagBOS != 0 }

// EOS reports whether the page ends a logical stream
func (p *Page) EOS() bool { return p.HeaderType&FlagEOS != 0 }

// Continued reports whether the first packet continues one from the previous page
func (p *Page) Continued() bool { return p.HeaderType&FlagContinued != 0 }

// Bytes serializes the page including its checksum
func (p *Page) Bytes() []byte {
	buf := make([]byte, headerSize+len(p.Lacing)+len(p.Body))
	copy(buf[0:4], "OggS")
	buf[4] = 0
	buf[5] = p.HeaderType
	binary.LittleEndian.PutUint64(buf[6:14], uint64(p.GranulePos))
	binary.LittleEndian.PutUint32(buf[14:18], p.Serial)
	binary.LittleEndian.PutUint32(buf[18:22], p.Sequence)
	buf[26] = byte(len(p.Lacing))
	copy(buf[headerSize:], p.Lacing)
	copy(buf[headerSize+len(p.Lacing):], p.Body)

	binary.LittleEndian.PutUint32(buf[22:26], checksum(buf))
	return buf
}

// lacingFor returns the lacing values for one packet of length n
func lacingFor(n int) []uint8 {
	lacing := make([]uint8, 0, n/maxLacing+1)
	for n >= maxLacing {
		lacing = append(lacing, maxLacing)
		n -= maxLacing
	}
	return append(lacing, uint8(n))
}

var crcTable = func() [256]uint32 {
	var table [256]uint32
	for i := range table {
		r := uint32(i) << 24
		for j := 0; j < 8; j++ {
			if r&0x80000000 != 0 {
				r = (r << 1) ^ 0x04c11db7
			} else {
				r <<= 1
			}
		}
		table[i] = r
	}
	return table
}()

// checksum computes the page CRC with the checksum field treated as zero
func checksum(page []byte) uint32 {
	var crc uint32
	for i, b := range page {
		if i >= 22 && i < 26 {
			b = 0
		}
		crc = (crc << 8) ^ crcTable[byte(crc>>24)^b]
	}
	return crc
}
