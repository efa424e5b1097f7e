// ABOUTME: Ogg container package for reading and writing pages and packets
// ABOUTME: Used by the Ogg stream decoder and the Ogg/Opus segment encoder
// Package ogg implements the Ogg bitstream framing (RFC 3533).
//
// Reader splits a live byte stream into pages and reassembles packets that
// span page boundaries. Writer lays packets out into pages with correct
// lacing values and CRC checksums.
package ogg
