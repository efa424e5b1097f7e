// ABOUTME: Sampling pipeline running one capture loop per playing station
// ABOUTME: Schedules captures on a ticker, never overlaps them, and uploads fire-and-forget
package sampling

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/harperreed/radiowatch/internal/station"
	"github.com/harperreed/radiowatch/internal/stream"
)

const (
	DefaultDuration = 8 * time.Second
	DefaultInterval = 20 * time.Second
	MaxDuration     = 60 * time.Second
	defaultBuffer   = 256
)

// ErrClosed is returned by Start after Close
var ErrClosed = errors.New("sampling pipeline closed")

// Config holds the capture cadence
type Config struct {
	Duration time.Duration
	Interval time.Duration
	// Buffer is the tap subscription capacity in chunks
	Buffer int
	Debug  bool
}

// Validate checks the capture parameters
func (c Config) Validate() error {
	if c.Duration <= 0 {
		return fmt.Errorf("sample duration must be positive, got %v", c.Duration)
	}
	if c.Duration > MaxDuration {
		return fmt.Errorf("sample duration must be at most %v, got %v", MaxDuration, c.Duration)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("sample interval must be positive, got %v", c.Interval)
	}
	return nil
}

// TapSource resolves a station's pre-gain tap
type TapSource interface {
	Tap(id string) (*stream.Tap, error)
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithClock replaces the wall clock, for tests
func WithClock(c clock.Clock) Option {
	return func(p *Pipeline) {
		p.clock = c
	}
}

// Pipeline is the arena of per-station sampling sessions
type Pipeline struct {
	cfg      Config
	taps     TapSource
	uploader Uploader
	clock    clock.Clock

	ctx    context.Context
	cancel context.CancelFunc

	opMu     sync.Mutex // serializes Start/Stop
	mu       sync.Mutex
	sessions map[string]*session
	stats    map[string]*Stats
	hooks    []func(Outcome)
	closed   bool

	uploads sync.WaitGroup
}

type session struct {
	stationID string
	sub       *stream.Subscription
	ticker    *clock.Ticker
	cancel    context.CancelFunc
	done      chan struct{}
}

// New creates a pipeline; Config must be valid
func New(cfg Config, taps TapSource, uploader Uploader, opts ...Option) *Pipeline {
	if cfg.Buffer <= 0 {
		cfg.Buffer = defaultBuffer
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pipeline{
		cfg:      cfg,
		taps:     taps,
		uploader: uploader,
		clock:    clock.New(),
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*session),
		stats:    make(map[string]*Stats),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// OnOutcome registers fn for every finished upload
func (p *Pipeline) OnOutcome(fn func(Outcome)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hooks = append(p.hooks, fn)
}

// Start begins sampling a station, replacing any session it already has.
// The first capture starts immediately; later ones on every interval tick.
// A tap failure is a capture fault: logged, and the station plays on unsampled.
func (p *Pipeline) Start(id string) error {
	p.opMu.Lock()
	defer p.opMu.Unlock()

	p.stopLocked(id)

	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return ErrClosed
	}

	tap, err := p.taps.Tap(id)
	var sub *stream.Subscription
	if err == nil {
		sub, err = tap.Subscribe(p.cfg.Buffer)
	}
	if err != nil {
		fault := station.NewFault(id, station.FaultCapture, err)
		log.Printf("Sampling disabled: %v", fault)
		p.updateStats(id, func(s *Stats) { s.LastError = fault.Error() })
		return fault
	}

	ctx, cancel := context.WithCancel(p.ctx)
	s := &session{
		stationID: id,
		sub:       sub,
		ticker:    p.clock.Ticker(p.cfg.Interval),
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	p.mu.Lock()
	p.sessions[id] = s
	p.mu.Unlock()
	p.updateStats(id, func(st *Stats) { st.Active = true })

	go p.run(ctx, s)

	log.Printf("Sampling started for %s (every %v, %v per segment)", id, p.cfg.Interval, p.cfg.Duration)
	return nil
}

// Stop cancels a station's ticker and discards any partial capture. It
// returns once the session is gone; stopping an idle station is a no-op.
func (p *Pipeline) Stop(id string) {
	p.opMu.Lock()
	defer p.opMu.Unlock()

	if p.stopLocked(id) {
		log.Printf("Sampling stopped for %s", id)
	}
}

func (p *Pipeline) stopLocked(id string) bool {
	p.mu.Lock()
	s, ok := p.sessions[id]
	delete(p.sessions, id)
	p.mu.Unlock()

	if !ok {
		return false
	}

	s.cancel()
	<-s.done
	p.updateStats(id, func(st *Stats) { st.Active = false })
	return true
}

// StopAll stops every session
func (p *Pipeline) StopAll() {
	p.opMu.Lock()
	defer p.opMu.Unlock()

	p.mu.Lock()
	ids := make([]string, 0, len(p.sessions))
	for id := range p.sessions {
		ids = append(ids, id)
	}
	p.mu.Unlock()

	for _, id := range ids {
		p.stopLocked(id)
	}
	if len(ids) > 0 {
		log.Printf("Sampling stopped for %d stations", len(ids))
	}
}

// Active reports whether a station has a sampling session
func (p *Pipeline) Active(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.sessions[id]
	return ok
}

// Stats returns a station's counters
func (p *Pipeline) Stats(id string) Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	if s, ok := p.stats[id]; ok {
		return *s
	}
	return Stats{}
}

// Close stops every session and waits for in-flight uploads until ctx is
// done, after which they are cancelled.
func (p *Pipeline) Close(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.StopAll()

	done := make(chan struct{})
	go func() {
		p.uploads.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return ctx.Err()
	}
}

// run is the per-station capture loop
func (p *Pipeline) run(ctx context.Context, s *session) {
	defer close(s.done)
	defer s.sub.Close()
	defer s.ticker.Stop()

	current := newCapture(s.stationID, p.clock.Now(), p.cfg.Duration)
	pending := false
	var seenDropped int64

	for {
		select {
		case <-ctx.Done():
			if current != nil && p.cfg.Debug {
				log.Printf("[DEBUG] Discarding partial capture for %s", s.stationID)
			}
			return

		case <-s.ticker.C:
			if current != nil {
				// Never overlap: serve this tick when the capture completes
				pending = true
				continue
			}
			current = newCapture(s.stationID, p.clock.Now(), p.cfg.Duration)

		case chunk, ok := <-s.sub.C:
			if !ok {
				return
			}
			if chunk.Gap {
				dropped := s.sub.Dropped()
				p.updateStats(s.stationID, func(st *Stats) { st.Dropped += dropped - seenDropped })
				seenDropped = dropped
				if current != nil {
					// Never splice across lost audio
					log.Printf("Sampling for %s lagged, restarting capture", s.stationID)
					current.restart(p.clock.Now())
				}
			}
			if current == nil || !current.add(chunk.Buffer) {
				continue
			}

			p.handOff(current.segment())
			current = nil
			if pending {
				pending = false
				current = newCapture(s.stationID, p.clock.Now(), p.cfg.Duration)
			}
		}
	}
}

// handOff uploads a finished segment without blocking the capture loop
func (p *Pipeline) handOff(seg Segment) {
	p.updateStats(seg.StationID, func(s *Stats) {
		s.Captured++
		s.LastCapturedAt = seg.CapturedAt
	})

	if p.cfg.Debug {
		log.Printf("[DEBUG] Captured %v segment %s for %s", seg.Duration, seg.ID, seg.StationID)
	}

	p.uploads.Add(1)
	go func() {
		defer p.uploads.Done()

		receipt, err := p.uploader.Upload(p.ctx, seg)
		outcome := Outcome{
			SegmentID:  seg.ID,
			StationID:  seg.StationID,
			CapturedAt: seg.CapturedAt,
			Duration:   seg.Duration,
			Filename:   receipt.Filename,
			Bytes:      receipt.Bytes,
			StatusCode: receipt.StatusCode,
			FinishedAt: p.clock.Now(),
		}

		if err != nil {
			outcome.Err = station.NewFault(seg.StationID, station.FaultUpload, err)
			log.Printf("Upload failed: %v", outcome.Err)
			p.updateStats(seg.StationID, func(s *Stats) {
				s.Failed++
				s.LastError = outcome.Err.Error()
			})
		} else {
			p.updateStats(seg.StationID, func(s *Stats) {
				s.Uploaded++
				s.Bytes += int64(receipt.Bytes)
			})
		}

		p.mu.Lock()
		hooks := p.hooks
		p.mu.Unlock()
		for _, fn := range hooks {
			fn(outcome)
		}
	}()
}

func (p *Pipeline) updateStats(id string, fn func(*Stats)) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.stats[id]
	if !ok {
		s = &Stats{}
		p.stats[id] = s
	}
	fn(s)
}
