// ABOUTME: Ogg page writer
// ABOUTME: Packs packets into pages with lacing values, sequence numbers and checksums
package ogg

import (
	"fmt"
	"io"
)

// Writer writes one logical Ogg stream
type Writer struct {
	w        io.Writer
	serial   uint32
	sequence uint32
	started  bool
}

// NewWriter creates a writer for the logical stream with the given serial
func NewWriter(w io.Writer, serial uint32) *Writer {
	return &Writer{w: w, serial: serial}
}

// SegmentsFor returns how many lacing values a packet of n bytes needs
func SegmentsFor(n int) int {
	return n/maxLacing + 1
}

// MaxSegments is the number of lacing values one page can hold
const MaxSegments = maxSegments

// WritePage writes packets as a single page. The first page written is
// flagged BOS; eos marks the last one.
func (w *Writer) WritePage(packets [][]byte, granule int64, eos bool) error {
	page := &Page{
		GranulePos: granule,
		Serial:     w.serial,
		Sequence:   w.sequence,
	}
	if !w.started {
		page.HeaderType |= FlagBOS
	}
	if eos {
		page.HeaderType |= FlagEOS
	}

	for _, p := range packets {
		page.Lacing = append(page.Lacing, lacingFor(len(p))...)
		page.Body = append(page.Body, p...)
	}
	if len(page.Lacing) > maxSegments {
		return fmt.Errorf("%w: %d segments", ErrPacketTooLarge, len(page.Lacing))
	}

	if _, err := w.w.Write(page.Bytes()); err != nil {
		return fmt.Errorf("failed to write ogg page: %w", err)
	}

	w.started = true
	w.sequence++
	return nil
}
