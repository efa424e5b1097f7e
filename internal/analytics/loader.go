// ABOUTME: Loads analytics documents from files or HTTP URLs
// ABOUTME: Keeps the last good copy of each document until a reload succeeds
package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/harperreed/radiowatch/internal/version"
)

// ErrNotLoaded is returned for a document that is not configured or failed to load
var ErrNotLoaded = errors.New("analytics not loaded")

// maxDocument bounds a fetched document
const maxDocument = 32 << 20

// Config names the document sources; each is a file path or http(s) URL
type Config struct {
	Artists      string
	MultiChannel string
}

// Service holds the loaded documents
type Service struct {
	cfg  Config
	http *http.Client

	mu           sync.RWMutex
	artists      *ArtistReport
	multiChannel *MultiChannelReport
	loadedAt     time.Time
}

// NewService creates an empty service; call Load to populate it
func NewService(cfg Config) *Service {
	return &Service{
		cfg:  cfg,
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

// Load fetches every configured document. A failed document keeps its
// previous copy; the returned error joins every failure.
func (s *Service) Load(ctx context.Context) error {
	var errs []error

	if s.cfg.Artists != "" {
		var report ArtistReport
		if err := s.fetch(ctx, s.cfg.Artists, &report); err != nil {
			errs = append(errs, fmt.Errorf("artists: %w", err))
		} else {
			s.mu.Lock()
			s.artists = &report
			s.mu.Unlock()
			log.Printf("Loaded analytics for %d artists", len(report.Artists))
		}
	}

	if s.cfg.MultiChannel != "" {
		var report MultiChannelReport
		if err := s.fetch(ctx, s.cfg.MultiChannel, &report); err != nil {
			errs = append(errs, fmt.Errorf("multi-channel: %w", err))
		} else {
			s.mu.Lock()
			s.multiChannel = &report
			s.mu.Unlock()
			log.Printf("Loaded multi-channel analytics for %d artists", len(report.Artists))
		}
	}

	s.mu.Lock()
	s.loadedAt = time.Now()
	s.mu.Unlock()

	return errors.Join(errs...)
}

// Artists returns the single-channel report
func (s *Service) Artists() (*ArtistReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.artists == nil {
		return nil, ErrNotLoaded
	}
	return s.artists, nil
}

// MultiChannel returns the multi-channel report
func (s *Service) MultiChannel() (*MultiChannelReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.multiChannel == nil {
		return nil, ErrNotLoaded
	}
	return s.multiChannel, nil
}

// LoadedAt returns when Load last ran
func (s *Service) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}

func (s *Service) fetch(ctx context.Context, source string, v any) error {
	var r io.ReadCloser
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("User-Agent", version.UserAgent())

		resp, err := s.http.Do(req)
		if err != nil {
			return fmt.Errorf("failed to fetch %s: %w", source, err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return fmt.Errorf("failed to fetch %s: HTTP %d", source, resp.StatusCode)
		}
		r = resp.Body
	} else {
		f, err := os.Open(source)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", source, err)
		}
		r = f
	}
	defer r.Close()

	if err := json.NewDecoder(io.LimitReader(r, maxDocument)).Decode(v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", source, err)
	}
	return nil
}
