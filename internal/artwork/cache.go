// ABOUTME: Station logo cache backed by the user cache directory
// ABOUTME: Downloads each logo URL once and serves it from disk afterwards
package artwork

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/harperreed/radiowatch/internal/version"
	"golang.org/x/sync/singleflight"
)

// maxLogoSize bounds a downloaded logo
const maxLogoSize = 5 << 20

// Cache stores station logos on disk
type Cache struct {
	dir    string
	client *http.Client
	group  singleflight.Group
	debug  bool
}

// DefaultDir is the logo cache under the XDG cache home
func DefaultDir() string {
	return filepath.Join(xdg.CacheHome, version.Product, "logos")
}

// NewCache creates a cache in dir, or DefaultDir when empty
func NewCache(dir string, debug bool) (*Cache, error) {
	if dir == "" {
		dir = DefaultDir()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	return &Cache{
		dir:    dir,
		client: &http.Client{Timeout: 15 * time.Second},
		debug:  debug,
	}, nil
}

// Dir returns the cache directory
func (c *Cache) Dir() string {
	return c.dir
}

// Path returns the cached file for url, downloading it on first use.
// Concurrent requests for the same url share one download.
func (c *Cache) Path(ctx context.Context, url string) (string, error) {
	if url == "" {
		return "", fmt.Errorf("no logo url")
	}

	cachePath := filepath.Join(c.dir, cacheName(url))
	if _, err := os.Stat(cachePath); err == nil {
		if c.debug {
			log.Printf("[DEBUG] Logo cache hit: %s", cachePath)
		}
		return cachePath, nil
	}

	v, err, _ := c.group.Do(cachePath, func() (any, error) {
		return cachePath, c.download(ctx, url, cachePath)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Warm downloads every url, logging failures
func (c *Cache) Warm(ctx context.Context, urls []string) {
	for _, url := range urls {
		if url == "" {
			continue
		}
		if _, err := c.Path(ctx, url); err != nil {
			log.Printf("Logo download failed: %v", err)
		}
	}
}

func (c *Cache) download(ctx context.Context, url, cachePath string) error {
	log.Printf("Downloading logo: %s", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create logo request: %w", err)
	}
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download logo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("logo download failed: HTTP %d", resp.StatusCode)
	}

	// Write to a temp file first so readers never see a partial logo
	f, err := os.CreateTemp(c.dir, ".logo-*")
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}
	tmp := f.Name()

	if _, err := io.Copy(f, io.LimitReader(resp.Body, maxLogoSize)); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to save logo: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to save logo: %w", err)
	}
	if err := os.Rename(tmp, cachePath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to save logo: %w", err)
	}

	log.Printf("Logo saved: %s", cachePath)
	return nil
}

// cacheName derives a stable file name from the URL
func cacheName(url string) string {
	hash := sha256.Sum256([]byte(url))
	return fmt.Sprintf("%x%s", hash[:8], extension(url))
}

// extension extracts the file extension from a URL
func extension(url string) string {
	url = strings.Split(url, "?")[0]

	ext := strings.ToLower(filepath.Ext(url))
	switch ext {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp", ".svg":
		return ext
	default:
		return ".img"
	}
}

// Cleanup removes every cached logo
func (c *Cache) Cleanup() error {
	return os.RemoveAll(c.dir)
}
