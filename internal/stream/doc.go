// ABOUTME: Playback handles for live radio streams
// ABOUTME: Each handle owns one connection, decoder, playback voice and sampling tap
// Package stream implements the per-station playback handle.
//
// A Handle runs one pump goroutine while playing:
//
//	open → decode → tap (pre-gain) → gain → voice
//
// Lifecycle signals (loadstart, playing, waiting, pause, error) are delivered
// to a single listener in strict order. Signals from a pump that has since
// been paused or replaced are dropped.
package stream
