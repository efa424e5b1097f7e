// ABOUTME: Session couples the registry's status changes to the sampling pipeline
// ABOUTME: Sampling runs exactly while a station is playing
package session

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/harperreed/radiowatch/internal/sampling"
	"github.com/harperreed/radiowatch/internal/station"
)

// ErrSessionClosed is returned by Start after Close
var ErrSessionClosed = errors.New("session closed")

// Session is one monitoring run: stations, controls and sampling
type Session struct {
	*Controller
	Registry *Registry
	Sampler  *sampling.Pipeline

	mu       sync.Mutex
	closed   bool
	starting sync.WaitGroup
}

// New wires a registry to a sampling pipeline built from scfg and uploader.
// A nil uploader leaves sampling off for the whole session.
func New(cfg Config, scfg sampling.Config, uploader sampling.Uploader, opts ...sampling.Option) *Session {
	reg := NewRegistry(cfg)
	s := &Session{
		Controller: NewController(reg),
		Registry:   reg,
		Sampler:    sampling.New(scfg, reg, uploader, opts...),
	}
	if uploader != nil {
		reg.OnTransition(s.follow)
	}
	return s
}

// follow starts sampling on entry to playing and stops it on exit
func (s *Session) follow(t Transition) {
	switch {
	case t.Removed:
		s.Sampler.Stop(t.StationID)
	case t.To == station.StatusPlaying && t.From != station.StatusPlaying:
		// A capture fault is logged by the pipeline; playback continues
		_ = s.Sampler.Start(t.StationID)
	case t.From == station.StatusPlaying && t.To != station.StatusPlaying:
		s.Sampler.Stop(t.StationID)
	}
}

// Start loads the stations and begins playback of all of them
func (s *Session) Start(ctx context.Context, stations []station.Station) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.starting.Add(1)
	s.mu.Unlock()
	defer s.starting.Done()

	return s.Registry.Initialize(ctx, stations)
}

// Close waits for a Start in progress, releases every station and drains
// in-flight uploads until ctx is done. Cancel the Start context first to
// cut a slow startup short.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.starting.Wait()

	s.Registry.Teardown()
	err := s.Sampler.Close(ctx)
	log.Printf("Session closed")
	return err
}
