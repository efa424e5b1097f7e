// ABOUTME: Stream session registry owning one handle and one AudioState per station
// ABOUTME: Applies handle signals through the transition table and notifies observers
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/harperreed/radiowatch/internal/station"
	"github.com/harperreed/radiowatch/internal/stream"
	"github.com/harperreed/radiowatch/pkg/audio/output"
	"golang.org/x/sync/errgroup"
)

// ErrUnknownStation is returned for station IDs that are not configured
var ErrUnknownStation = errors.New("unknown station")

// Transition describes one status change of one station
type Transition struct {
	StationID string
	From      station.Status
	To        station.Status
	// Fault is set when the transition was caused by an error signal
	Fault *station.Fault
	// Removed is set when the station was released by teardown
	Removed bool
	At      time.Time
}

// StationState pairs a station with its current state
type StationState struct {
	Station station.Station    `json:"station"`
	State   station.AudioState `json:"state"`
}

// Summary holds counts derived from the current states
type Summary struct {
	Total      int  `json:"total"`
	Active     int  `json:"active"`
	Errors     int  `json:"errors"`
	Paused     int  `json:"paused"`
	Loading    int  `json:"loading"`
	AllPlaying bool `json:"allPlaying"`
	AllMuted   bool `json:"allMuted"`
}

// Config configures the registry's handles
type Config struct {
	Opener       stream.Opener
	Output       output.Output
	StallTimeout time.Duration
	// DefaultVolume is every station's initial volume; zero means station.DefaultVolume
	DefaultVolume float64
	Debug         bool
}

type entry struct {
	station station.Station
	handle  *stream.Handle
	state   station.AudioState
}

// Registry owns the handles and states of the configured stations
type Registry struct {
	cfg Config

	mu         sync.RWMutex
	order      []string
	entries    map[string]*entry
	globalMute bool

	hooksMu     sync.RWMutex
	transitions []func(Transition)
	changes     []func()
}

// NewRegistry creates an empty registry
func NewRegistry(cfg Config) *Registry {
	return &Registry{
		cfg:     cfg,
		entries: make(map[string]*entry),
	}
}

// OnTransition registers fn for every status change. Calls for one station
// arrive in order; there is no ordering across stations.
func (r *Registry) OnTransition(fn func(Transition)) {
	r.hooksMu.Lock()
	defer r.hooksMu.Unlock()
	r.transitions = append(r.transitions, fn)
}

// OnChange registers fn for any state mutation
func (r *Registry) OnChange(fn func()) {
	r.hooksMu.Lock()
	defer r.hooksMu.Unlock()
	r.changes = append(r.changes, fn)
}

// Initialize replaces the station list and starts playback of every
// station concurrently. It returns once every play attempt settled; a
// failing station ends up in error without affecting the others.
func (r *Registry) Initialize(ctx context.Context, stations []station.Station) error {
	if err := station.ValidateAll(stations); err != nil {
		return err
	}

	r.Teardown()

	r.mu.Lock()
	r.order = make([]string, 0, len(stations))
	for _, s := range stations {
		e := &entry{station: s, state: r.initialState()}
		e.handle = stream.NewHandle(stream.Config{
			StationID:    s.ID,
			URL:          s.StreamURL,
			Opener:       r.cfg.Opener,
			Output:       r.cfg.Output,
			StallTimeout: r.cfg.StallTimeout,
		}, r.listener(e))
		e.handle.SetGain(e.state.Gain)

		r.entries[s.ID] = e
		r.order = append(r.order, s.ID)
	}
	handles := r.handlesLocked()
	r.mu.Unlock()

	log.Printf("Registry initialized with %d stations", len(stations))
	r.notifyChange()

	r.playSettled(ctx, handles)
	return nil
}

func (r *Registry) initialState() station.AudioState {
	st := station.DefaultState()
	if r.cfg.DefaultVolume > 0 {
		st.Volume = r.cfg.DefaultVolume
		st.Gain = r.cfg.DefaultVolume
	}
	return st
}

// Teardown releases every handle and forgets every station. Safe to call repeatedly.
func (r *Registry) Teardown() {
	r.mu.Lock()
	order := r.order
	entries := r.entries
	from := make(map[string]station.Status, len(order))
	for _, id := range order {
		from[id] = entries[id].state.Status
	}
	r.order = nil
	r.entries = make(map[string]*entry)
	r.globalMute = false
	r.mu.Unlock()

	if len(order) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, id := range order {
		wg.Add(1)
		go func(e *entry) {
			defer wg.Done()
			e.handle.Release()
		}(entries[id])
	}
	wg.Wait()

	now := time.Now()
	for _, id := range order {
		r.notifyTransition(Transition{
			StationID: id,
			From:      from[id],
			To:        station.StatusPaused,
			Removed:   true,
			At:        now,
		})
	}

	log.Printf("Registry released %d stations", len(order))
	r.notifyChange()
}

// State returns the last snapshot, or the default state for unknown IDs
func (r *Registry) State(id string) station.AudioState {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if e, ok := r.entries[id]; ok {
		return e.state
	}
	return station.DefaultState()
}

// States returns every station with its state in configured order
func (r *Registry) States() []StationState {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]StationState, 0, len(r.order))
	for _, id := range r.order {
		e := r.entries[id]
		out = append(out, StationState{Station: e.station, State: e.state})
	}
	return out
}

// Station returns a configured station
func (r *Registry) Station(id string) (station.Station, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return station.Station{}, false
	}
	return e.station, true
}

// Tap returns the pre-gain audio tap of a station
func (r *Registry) Tap(id string) (*stream.Tap, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStation, id)
	}
	return e.handle.Tap(), nil
}

// Summary derives aggregate counts from the current states
func (r *Registry) Summary() Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Summary{Total: len(r.order)}
	muted := 0
	for _, id := range r.order {
		st := r.entries[id].state
		switch st.Status {
		case station.StatusPlaying:
			s.Active++
		case station.StatusError:
			s.Errors++
		case station.StatusPaused:
			s.Paused++
		case station.StatusLoading:
			s.Loading++
		}
		if st.Silent() {
			muted++
		}
	}
	s.AllPlaying = s.Total > 0 && s.Active == s.Total
	s.AllMuted = s.Total > 0 && muted == s.Total
	return s
}

// listener applies a handle's signals to its entry
func (r *Registry) listener(e *entry) stream.Listener {
	return func(ev stream.Event) {
		r.mu.Lock()
		// Ignore handles from a previous station list
		if r.entries[e.station.ID] != e {
			r.mu.Unlock()
			return
		}

		from := e.state.Status
		to := Next(from, ev.Signal)
		e.state.Status = to

		var fault *station.Fault
		if ev.Signal == stream.SignalError {
			fault = station.NewFault(e.station.ID, ev.Kind, ev.Err)
			e.state.LastError = fault.Error()
		} else if to == station.StatusPlaying {
			e.state.LastError = ""
		}
		r.mu.Unlock()

		if from != to || fault != nil {
			if fault != nil {
				log.Printf("Station %s: %s -> %s (%v)", e.station.ID, from, to, fault)
			} else {
				log.Printf("Station %s: %s -> %s", e.station.ID, from, to)
			}
			r.notifyTransition(Transition{
				StationID: e.station.ID,
				From:      from,
				To:        to,
				Fault:     fault,
				At:        time.Now(),
			})
			r.notifyChange()
		}
	}
}

func (r *Registry) notifyTransition(t Transition) {
	r.hooksMu.RLock()
	hooks := r.transitions
	r.hooksMu.RUnlock()

	for _, fn := range hooks {
		fn(t)
	}
}

func (r *Registry) notifyChange() {
	r.hooksMu.RLock()
	hooks := r.changes
	r.hooksMu.RUnlock()

	for _, fn := range hooks {
		fn()
	}
}

// lookup returns the entry for id
func (r *Registry) lookup(id string) (*entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStation, id)
	}
	return e, nil
}

func (r *Registry) handlesLocked() []*stream.Handle {
	handles := make([]*stream.Handle, 0, len(r.order))
	for _, id := range r.order {
		handles = append(handles, r.entries[id].handle)
	}
	return handles
}

// effectiveGainLocked applies the gain rule: silent when globally muted or
// when another station holds focus, otherwise the station's volume
func (r *Registry) effectiveGainLocked(e *entry) float64 {
	if r.globalMute {
		return 0
	}
	for _, id := range r.order {
		other := r.entries[id]
		if other != e && other.state.IsFocused {
			return 0
		}
	}
	return e.state.Volume
}

// applyGains recomputes every station's gain and pushes it to the handles
func (r *Registry) applyGains() {
	type update struct {
		handle *stream.Handle
		gain   float64
	}

	r.mu.Lock()
	updates := make([]update, 0, len(r.order))
	for _, id := range r.order {
		e := r.entries[id]
		e.state.Gain = r.effectiveGainLocked(e)
		updates = append(updates, update{e.handle, e.state.Gain})
	}
	r.mu.Unlock()

	for _, u := range updates {
		u.handle.SetGain(u.gain)
	}
	r.notifyChange()
}

// playSettled plays every handle concurrently and waits for all of them
func (r *Registry) playSettled(ctx context.Context, handles []*stream.Handle) {
	var g errgroup.Group
	for _, h := range handles {
		g.Go(func() error {
			// Failures surface as error signals on the station
			if err := h.Play(ctx); err != nil && r.cfg.Debug {
				log.Printf("[DEBUG] Station %s: play settled with %v", h.StationID(), err)
			}
			return nil
		})
	}
	g.Wait()
}

// forEachSettled runs fn on every handle concurrently and waits for all of them
func forEachSettled(handles []*stream.Handle, fn func(*stream.Handle)) {
	var g errgroup.Group
	for _, h := range handles {
		g.Go(func() error {
			fn(h)
			return nil
		})
	}
	g.Wait()
}
