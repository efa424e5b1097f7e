// ABOUTME: Station definitions and per-station observable audio state
// ABOUTME: Includes validation of configured station lists
package station

import (
	"errors"
	"fmt"
	"net/url"
)

// Station is a configured internet radio stream. Stations are immutable.
type Station struct {
	ID          string `json:"id" koanf:"id"`
	Name        string `json:"name" koanf:"name"`
	StreamURL   string `json:"streamUrl" koanf:"stream_url"`
	Logo        string `json:"logo,omitempty" koanf:"logo"`
	Description string `json:"description,omitempty" koanf:"description"`
}

// Validate checks a single station definition
func (s Station) Validate() error {
	if s.ID == "" {
		return errors.New("station id is required")
	}

	u, err := url.Parse(s.StreamURL)
	if err != nil {
		return fmt.Errorf("station %s: invalid stream url: %w", s.ID, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("station %s: stream url must be an absolute http(s) url", s.ID)
	}

	return nil
}

// ValidateAll checks every station and rejects duplicate IDs
func ValidateAll(stations []Station) error {
	seen := make(map[string]bool, len(stations))
	for _, s := range stations {
		if err := s.Validate(); err != nil {
			return err
		}
		if seen[s.ID] {
			return fmt.Errorf("duplicate station id: %s", s.ID)
		}
		seen[s.ID] = true
	}
	return nil
}
