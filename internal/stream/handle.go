// ABOUTME: Per-station playback handle with a single pump goroutine
// ABOUTME: Serializes commands and emits ordered lifecycle signals with a stall watchdog
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/harperreed/radiowatch/internal/station"
	"github.com/harperreed/radiowatch/pkg/audio"
	"github.com/harperreed/radiowatch/pkg/audio/output"
)

var (
	// ErrReleased is returned by commands on a released handle
	ErrReleased = errors.New("handle released")
	// ErrStreamEnded is reported when a live stream closes
	ErrStreamEnded = errors.New("stream ended")
)

// Signal is a lifecycle signal emitted by a handle
type Signal int

const (
	SignalLoadStart Signal = iota
	SignalPlaying
	SignalWaiting
	SignalPause
	SignalError
)

var signalNames = [...]string{"loadstart", "playing", "waiting", "pause", "error"}

func (s Signal) String() string {
	if s < 0 || int(s) >= len(signalNames) {
		return fmt.Sprintf("signal(%d)", int(s))
	}
	return signalNames[s]
}

// Event is delivered to the handle's listener
type Event struct {
	Signal Signal
	// Kind and Err are set for SignalError
	Kind station.FaultKind
	Err  error
}

// Listener receives a handle's events in order. It must not call back into
// the handle's commands.
type Listener func(Event)

// Config configures a handle
type Config struct {
	StationID    string
	URL          string
	Opener       Opener
	Output       output.Output
	StallTimeout time.Duration
}

// Handle owns one station's connection, decoder, voice and tap
type Handle struct {
	cfg      Config
	listener Listener
	tap      *Tap

	opMu   sync.Mutex // serializes Play/Pause/Stop/Release
	emitMu sync.Mutex // keeps listener calls ordered

	mu          sync.Mutex
	gen         uint64
	cancel      context.CancelFunc
	done        chan struct{}
	voice       output.Voice
	voiceFormat audio.Format
	gain        float64
	released    bool
}

// NewHandle creates an idle handle
func NewHandle(cfg Config, listener Listener) *Handle {
	if listener == nil {
		listener = func(Event) {}
	}
	return &Handle{
		cfg:      cfg,
		listener: listener,
		tap:      NewTap(),
		gain:     station.DefaultVolume,
	}
}

// StationID returns the station this handle plays
func (h *Handle) StationID() string {
	return h.cfg.StationID
}

// Tap returns the pre-gain audio tap
func (h *Handle) Tap() *Tap {
	return h.tap
}

// Running reports whether a pump is active (connecting, playing or stalled)
func (h *Handle) Running() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.done != nil
}

// SetGain sets the playback gain; the tap is unaffected
func (h *Handle) SetGain(gain float64) {
	h.mu.Lock()
	h.gain = audio.ClampGain(gain)
	voice := h.voice
	h.mu.Unlock()

	if voice != nil {
		voice.SetGain(gain)
	}
}

// Gain returns the playback gain
func (h *Handle) Gain() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.gain
}

// Play connects and starts the pump. It returns once audio is flowing, the
// attempt failed, or ctx is done; failures are also emitted as SignalError.
// Playing an already running handle is a no-op.
func (h *Handle) Play(ctx context.Context) error {
	h.opMu.Lock()

	h.mu.Lock()
	if h.released {
		h.mu.Unlock()
		h.opMu.Unlock()
		return ErrReleased
	}
	if h.done != nil {
		h.mu.Unlock()
		h.opMu.Unlock()
		return nil
	}
	h.gen++
	gen := h.gen
	pumpCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	h.cancel = cancel
	h.done = done
	h.mu.Unlock()

	h.emit(gen, Event{Signal: SignalLoadStart})

	ready := make(chan error, 1)
	go h.pump(pumpCtx, gen, done, ready)
	h.opMu.Unlock()

	select {
	case err := <-ready:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pause halts the pump and drops the connection; the voice is kept so
// resuming reconnects at the live edge.
func (h *Handle) Pause() {
	h.opMu.Lock()
	defer h.opMu.Unlock()

	gen, ok := h.halt(false)
	if ok {
		h.emit(gen, Event{Signal: SignalPause})
	}
}

// Stop halts the pump, releases the connection and drops buffered playback
func (h *Handle) Stop() {
	h.opMu.Lock()
	defer h.opMu.Unlock()

	gen, ok := h.halt(true)
	if ok {
		h.emit(gen, Event{Signal: SignalPause})
	}
}

// Release stops everything and closes the tap; the handle is unusable afterwards
func (h *Handle) Release() {
	h.opMu.Lock()
	defer h.opMu.Unlock()

	if _, ok := h.halt(true); !ok {
		return
	}

	h.mu.Lock()
	h.released = true
	h.mu.Unlock()
	h.tap.Close()
}

// halt stops the running pump and bumps the generation so its late signals
// are dropped. It returns false on a released handle.
func (h *Handle) halt(dropVoice bool) (uint64, bool) {
	h.mu.Lock()
	if h.released {
		h.mu.Unlock()
		return 0, false
	}
	h.gen++
	gen := h.gen
	cancel, done := h.cancel, h.done
	h.cancel, h.done = nil, nil
	if cancel != nil {
		cancel()
	}
	var voice output.Voice
	if dropVoice {
		voice, h.voice = h.voice, nil
	}
	h.mu.Unlock()

	// Closing the voice first unblocks a pump stuck writing to the device
	if voice != nil {
		voice.Close()
	}
	if done != nil {
		<-done
	}
	return gen, true
}

// emit delivers ev if gen is still current
func (h *Handle) emit(gen uint64, ev Event) {
	h.emitMu.Lock()
	defer h.emitMu.Unlock()

	h.mu.Lock()
	current := h.gen == gen && !h.released
	h.mu.Unlock()

	if current {
		h.listener(ev)
	}
}

// fail marks the handle idle and then reports the fault, so a listener
// reacting to the error already sees a handle that can be played again
func (h *Handle) fail(gen uint64, kind station.FaultKind, err error) {
	log.Printf("Station %s: %s fault: %v", h.cfg.StationID, kind, err)
	h.finished(gen)
	h.emit(gen, Event{Signal: SignalError, Kind: kind, Err: err})
}

// pump reads, decodes, taps and plays until cancelled or the stream fails
func (h *Handle) pump(ctx context.Context, gen uint64, done chan struct{}, ready chan<- error) {
	defer close(done)
	defer h.finished(gen)

	started := false
	settle := func(err error) {
		if !started {
			started = true
			ready <- err
		}
	}

	src, err := h.cfg.Opener.Open(ctx, h.cfg.URL)
	if err != nil {
		if ctx.Err() != nil {
			settle(ctx.Err())
			return
		}
		h.fail(gen, station.FaultStream, err)
		settle(err)
		return
	}
	defer src.Close()

	watchdog := newWatchdog(h.cfg.StallTimeout, func() {
		h.emit(gen, Event{Signal: SignalWaiting})
	})
	defer watchdog.stop()

	for {
		buf, err := src.Read()
		if err != nil {
			if ctx.Err() != nil {
				settle(ctx.Err())
				return
			}
			if errors.Is(err, io.EOF) {
				err = ErrStreamEnded
			}
			h.fail(gen, station.FaultStream, err)
			settle(err)
			return
		}
		buf.At = time.Now()

		if watchdog.kick() {
			h.emit(gen, Event{Signal: SignalPlaying})
		}

		h.tap.Publish(buf)

		voice, err := h.voiceFor(gen, buf.Format)
		if err != nil {
			if ctx.Err() != nil {
				settle(ctx.Err())
				return
			}
			h.fail(gen, station.FaultCommand, err)
			settle(err)
			return
		}

		if err := voice.Write(buf.Samples); err != nil {
			if ctx.Err() != nil {
				settle(ctx.Err())
				return
			}
			h.fail(gen, station.FaultStream, err)
			settle(err)
			return
		}

		if !started {
			h.emit(gen, Event{Signal: SignalPlaying})
			settle(nil)
		}
	}
}

// finished marks the handle idle when its pump exits on its own
func (h *Handle) finished(gen uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.gen == gen && h.cancel != nil {
		h.cancel()
		h.cancel, h.done = nil, nil
	}
}

// voiceFor returns a voice matching format, replacing one opened for another layout
func (h *Handle) voiceFor(gen uint64, format audio.Format) (output.Voice, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.gen != gen {
		return nil, context.Canceled
	}

	if h.voice != nil && h.voiceFormat.SameLayout(format) {
		return h.voice, nil
	}
	if h.voice != nil {
		h.voice.Close()
		h.voice = nil
	}

	voice, err := h.cfg.Output.NewVoice(format)
	if err != nil {
		return nil, fmt.Errorf("playback rejected: %w", err)
	}
	voice.SetGain(h.gain)
	h.voice = voice
	h.voiceFormat = format
	return voice, nil
}
