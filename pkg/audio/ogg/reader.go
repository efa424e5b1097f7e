// ABOUTME: Ogg page and packet reader for live streams
// ABOUTME: Validates checksums and joins packets continued across pages
package ogg

import (
	"encoding/binary"
	"io"
)

// Packet is one complete logical packet
type Packet struct {
	Data   []byte
	Serial uint32
	// BOS is set on the first packet of a logical stream; chained
	// internet radio streams start a new one at every track change.
	BOS bool
	// Granule is the page granule position when this packet ends a page, -1 otherwise
	Granule int64
}

// Reader reads pages and packets from an Ogg byte stream
type Reader struct {
	r       io.Reader
	partial []byte
	pending []Packet
}

// NewReader creates a reader over r
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// ReadPage reads and validates the next page
func (r *Reader) ReadPage() (*Page, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(r.r, hdr[:]); err != nil {
		return nil, err
	}

	if string(hdr[0:4]) != "OggS" {
		return nil, ErrInvalidMagic
	}
	if hdr[4] != 0 {
		return nil, ErrInvalidVersion
	}

	page := &Page{
		HeaderType: hdr[5],
		GranulePos: int64(binary.LittleEndian.Uint64(hdr[6:14])),
		Serial:     binary.LittleEndian.Uint32(hdr[14:18]),
		Sequence:   binary.LittleEndian.Uint32(hdr[18:22]),
		Lacing:     make([]uint8, hdr[26]),
	}
	if _, err := io.ReadFull(r.r, page.Lacing); err != nil {
		return nil, unexpected(err)
	}

	bodyLen := 0
	for _, l := range page.Lacing {
		bodyLen += int(l)
	}
	page.Body = make([]byte, bodyLen)
	if _, err := io.ReadFull(r.r, page.Body); err != nil {
		return nil, unexpected(err)
	}

	want := binary.LittleEndian.Uint32(hdr[22:26])
	if got := binary.LittleEndian.Uint32(page.Bytes()[22:26]); got != want {
		return nil, ErrChecksum
	}

	return page, nil
}

// ReadPacket returns the next complete packet
func (r *Reader) ReadPacket() (Packet, error) {
	for len(r.pending) == 0 {
		page, err := r.ReadPage()
		if err != nil {
			return Packet{}, err
		}
		r.split(page)
	}

	p := r.pending[0]
	r.pending = r.pending[1:]
	return p, nil
}

func (r *Reader) split(page *Page) {
	if !page.Continued() {
		r.partial = nil
	}

	first := true
	start, end := 0, 0
	for i, lace := range page.Lacing {
		end += int(lace)
		if lace == maxLacing {
			continue
		}

		data := append(r.partial, page.Body[start:end]...)
		r.partial = nil

		granule := int64(-1)
		if i == lastComplete(page.Lacing) {
			granule = page.GranulePos
		}

		r.pending = append(r.pending, Packet{
			Data:    data,
			Serial:  page.Serial,
			BOS:     page.BOS() && first,
			Granule: granule,
		})
		first = false
		start = end
	}

	if start < end {
		r.partial = append(r.partial, page.Body[start:end]...)
	}
}

// lastComplete returns the lacing index that ends the last complete packet
func lastComplete(lacing []uint8) int {
	for i := len(lacing) - 1; i >= 0; i-- {
		if lacing[i] < maxLacing {
			return i
		}
	}
	return -1
}

func unexpected(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
