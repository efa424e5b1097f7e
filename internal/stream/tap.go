// ABOUTME: Fan-out of decoded audio to sampling subscribers
// ABOUTME: Publishing never blocks the pump; slow subscribers lose chunks
package stream

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/harperreed/radiowatch/pkg/audio"
)

// ErrTapClosed is returned when subscribing to a released handle's tap
var ErrTapClosed = errors.New("tap closed")

// Tap distributes the full-fidelity decoded signal, before any gain
type Tap struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

// Chunk is one published buffer as seen by a subscriber
type Chunk struct {
	audio.Buffer
	// Gap is set on the first chunk delivered after dropped ones; the
	// signal is discontinuous between the previous chunk and this one
	Gap bool
}

// Subscription receives published buffers until closed
type Subscription struct {
	C       <-chan Chunk
	ch      chan Chunk
	tap     *Tap
	dropped atomic.Int64
	gap     bool // guarded by tap.mu
}

// NewTap creates an open tap
func NewTap() *Tap {
	return &Tap{subs: make(map[*Subscription]struct{})}
}

// Subscribe adds a subscriber with the given channel capacity
func (t *Tap) Subscribe(capacity int) (*Subscription, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, ErrTapClosed
	}

	ch := make(chan Chunk, capacity)
	s := &Subscription{C: ch, ch: ch, tap: t}
	t.subs[s] = struct{}{}
	return s, nil
}

// Publish hands buf to every subscriber without blocking
func (t *Tap) Publish(buf audio.Buffer) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for s := range t.subs {
		select {
		case s.ch <- Chunk{Buffer: buf, Gap: s.gap}:
			s.gap = false
		default:
			// Subscriber buffer full, skip this chunk
			s.dropped.Add(1)
			s.gap = true
		}
	}
}

// Subscribers returns the current subscriber count
func (t *Tap) Subscribers() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}

// Close closes every subscription and rejects new ones
func (t *Tap) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}
	t.closed = true
	for s := range t.subs {
		close(s.ch)
		delete(t.subs, s)
	}
}

// Close unsubscribes; safe to call more than once
func (s *Subscription) Close() {
	t := s.tap
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.subs[s]; ok {
		delete(t.subs, s)
		close(s.ch)
	}
}

// Dropped returns how many chunks were skipped because the subscriber lagged
func (s *Subscription) Dropped() int64 {
	return s.dropped.Load()
}
