// ABOUTME: Configuration loading with koanf from TOML or YAML files
// ABOUTME: Applies defaults, searches XDG and working directory paths, validates
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/harperreed/radiowatch/internal/ingest"
	"github.com/harperreed/radiowatch/internal/sampling"
	"github.com/harperreed/radiowatch/internal/station"
	"github.com/harperreed/radiowatch/internal/store"
	"github.com/harperreed/radiowatch/internal/version"
	"github.com/harperreed/radiowatch/pkg/audio/encode"
)

// Output backends
const (
	OutputOto  = "oto"
	OutputNull = "null"
)

// Config is the full monitor configuration
type Config struct {
	Listen    string            `koanf:"listen"`
	Stations  []station.Station `koanf:"stations"`
	Playback  PlaybackConfig    `koanf:"playback"`
	Sampling  SamplingConfig    `koanf:"sampling"`
	Ingest    IngestConfig      `koanf:"ingest"`
	Store     StoreConfig       `koanf:"store"`
	Analytics AnalyticsConfig   `koanf:"analytics"`
	Logos     LogosConfig       `koanf:"logos"`
	Discovery DiscoveryConfig   `koanf:"discovery"`
	Log       LogConfig         `koanf:"log"`

	// Path is the file the configuration was loaded from, empty for defaults
	Path string `koanf:"-"`
}

// PlaybackConfig controls stream connections and audio output
type PlaybackConfig struct {
	Output         string        `koanf:"output"` // "oto" or "null"
	DefaultVolume  float64       `koanf:"default_volume"`
	ConnectTimeout time.Duration `koanf:"connect_timeout"`
	StallTimeout   time.Duration `koanf:"stall_timeout"`
	UserAgent      string        `koanf:"user_agent"`
}

// SamplingConfig controls periodic capture
type SamplingConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Duration time.Duration `koanf:"duration"`
	Interval time.Duration `koanf:"interval"`
	Codec    string        `koanf:"codec"` // "opus" or "wav"
	Bitrate  int           `koanf:"bitrate"`
}

// IngestConfig names the upload endpoint
type IngestConfig struct {
	URL     string        `koanf:"url"`
	Field   string        `koanf:"field"`
	Timeout time.Duration `koanf:"timeout"`
}

// StoreConfig selects the upload history database; an empty driver disables it
type StoreConfig struct {
	Driver string `koanf:"driver"`
	DSN    string `koanf:"dsn"`
}

// AnalyticsConfig names the analytics documents (file paths or URLs)
type AnalyticsConfig struct {
	Artists      string `koanf:"artists"`
	MultiChannel string `koanf:"multi_channel"`
}

// LogosConfig controls the station logo cache
type LogosConfig struct {
	CacheDir string `koanf:"cache_dir"`
}

// DiscoveryConfig controls mDNS advertisement
type DiscoveryConfig struct {
	Enabled bool   `koanf:"enabled"`
	Name    string `koanf:"name"`
}

// LogConfig controls log output
type LogConfig struct {
	File  string `koanf:"file"`
	Debug bool   `koanf:"debug"`
}

// Default returns the configuration used when a key is not set
func Default() *Config {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = version.Product
	}

	return &Config{
		Listen: ":8080",
		Playback: PlaybackConfig{
			Output:         OutputOto,
			DefaultVolume:  station.DefaultVolume,
			ConnectTimeout: 10 * time.Second,
			StallTimeout:   15 * time.Second,
			UserAgent:      version.UserAgent(),
		},
		Sampling: SamplingConfig{
			Enabled:  true,
			Duration: sampling.DefaultDuration,
			Interval: sampling.DefaultInterval,
			Codec:    encode.CodecOpus,
			Bitrate:  64000,
		},
		Ingest: IngestConfig{
			Field:   ingest.DefaultField,
			Timeout: ingest.DefaultTimeout,
		},
		Store: StoreConfig{
			Driver: store.DriverSQLite,
			DSN:    filepath.Join(xdg.DataHome, version.Product, "history.db"),
		},
		Discovery: DiscoveryConfig{
			Name: fmt.Sprintf("%s-%s", version.Product, hostname),
		},
		Log: LogConfig{
			File: version.Product + ".log",
		},
	}
}

// SearchPaths lists the files tried when no path is given, in order
func SearchPaths() []string {
	var paths []string
	for _, name := range []string{"config.toml", "config.yaml", "config.yml"} {
		paths = append(paths, filepath.Join(xdg.ConfigHome, version.Product, name))
	}
	return append(paths, "config.toml", "config.yaml")
}

// Find returns the first existing search path
func Find() (string, bool) {
	for _, path := range SearchPaths() {
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	return "", false
}

// Load reads path, or the first file found on the search paths when path
// is empty, over the defaults. No file at all yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		found, ok := Find()
		if !ok {
			return Default(), nil
		}
		path = found
	}

	parser, err := parserFor(path)
	if err != nil {
		return nil, err
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	cfg.Path = path

	cfg.Logos.CacheDir = expandPath(cfg.Logos.CacheDir)
	cfg.Log.File = expandPath(cfg.Log.File)
	cfg.Analytics.Artists = expandPath(cfg.Analytics.Artists)
	cfg.Analytics.MultiChannel = expandPath(cfg.Analytics.MultiChannel)
	if cfg.Store.Driver == store.DriverSQLite {
		cfg.Store.DSN = expandPath(cfg.Store.DSN)
	}

	return cfg, nil
}

func parserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return toml.Parser(), nil
	case ".yaml", ".yml":
		return YAMLParser(), nil
	default:
		return nil, fmt.Errorf("unsupported config format: %s", path)
	}
}

func expandPath(path string) string {
	if path != "" && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// Validate reports the first invalid setting
func (c *Config) Validate() error {
	if len(c.Stations) == 0 {
		return errors.New("no stations configured")
	}
	if err := station.ValidateAll(c.Stations); err != nil {
		return err
	}

	switch c.Playback.Output {
	case OutputOto, OutputNull:
	default:
		return fmt.Errorf("playback.output must be %q or %q, got %q", OutputOto, OutputNull, c.Playback.Output)
	}
	if c.Playback.DefaultVolume < 0 || c.Playback.DefaultVolume > 1 {
		return fmt.Errorf("playback.default_volume must be within [0, 1], got %v", c.Playback.DefaultVolume)
	}
	if c.Playback.ConnectTimeout <= 0 {
		return fmt.Errorf("playback.connect_timeout must be positive, got %v", c.Playback.ConnectTimeout)
	}
	if c.Playback.StallTimeout <= 0 {
		return fmt.Errorf("playback.stall_timeout must be positive, got %v", c.Playback.StallTimeout)
	}

	if c.Sampling.Enabled {
		if err := c.SamplingParams().Validate(); err != nil {
			return fmt.Errorf("sampling: %w", err)
		}
		if _, err := encode.New(c.Sampling.Codec, c.Sampling.Bitrate); err != nil {
			return fmt.Errorf("sampling: %w", err)
		}
		if err := c.IngestParams().Validate(); err != nil {
			return fmt.Errorf("ingest: %w", err)
		}
	}

	if c.Store.Driver != "" {
		if err := (store.Config{Driver: c.Store.Driver, DSN: c.Store.DSN}).Validate(); err != nil {
			return err
		}
	}

	return nil
}

// SamplingParams converts the sampling section for the pipeline
func (c *Config) SamplingParams() sampling.Config {
	return sampling.Config{
		Duration: c.Sampling.Duration,
		Interval: c.Sampling.Interval,
		Debug:    c.Log.Debug,
	}
}

// IngestParams converts the ingest and sampling sections for the upload client
func (c *Config) IngestParams() ingest.Config {
	return ingest.Config{
		URL:     c.Ingest.URL,
		Field:   c.Ingest.Field,
		Timeout: c.Ingest.Timeout,
		Codec:   c.Sampling.Codec,
		Bitrate: c.Sampling.Bitrate,
		Debug:   c.Log.Debug,
	}
}

// StationLogos lists every configured logo URL
func (c *Config) StationLogos() []string {
	var urls []string
	for _, s := range c.Stations {
		if s.Logo != "" {
			urls = append(urls, s.Logo)
		}
	}
	return urls
}
