// ABOUTME: HTTP stream opener with connect and header timeouts
// ABOUTME: Picks a decoder from the response content type or URL extension
package stream

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/harperreed/radiowatch/pkg/audio/decode"
)

// Opener connects to a stream URL and returns decoded PCM. The stream lives
// until ctx is cancelled or it is closed.
type Opener interface {
	Open(ctx context.Context, rawURL string) (decode.Stream, error)
}

// OpenError reports a stream that could not be opened
type OpenError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *OpenError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("open %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("open %s: %v", e.URL, e.Err)
}

func (e *OpenError) Unwrap() error {
	return e.Err
}

// HTTPConfig configures the HTTP opener
type HTTPConfig struct {
	ConnectTimeout time.Duration
	HeaderTimeout  time.Duration
	UserAgent      string
	Headers        map[string]string
}

// HTTPOpener opens internet radio streams over HTTP
type HTTPOpener struct {
	cfg    HTTPConfig
	client *http.Client
}

// NewHTTPOpener creates an opener; there is no total timeout since streams never end
func NewHTTPOpener(cfg HTTPConfig) *HTTPOpener {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ResponseHeaderTimeout: cfg.HeaderTimeout,
		DisableCompression:    true,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &HTTPOpener{
		cfg: cfg,
		client: &http.Client{
			Transport: transport,
			Timeout:   0, // No total timeout for streaming
		},
	}
}

// Open connects to rawURL and starts decoding
func (h *HTTPOpener) Open(ctx context.Context, rawURL string) (decode.Stream, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &OpenError{URL: rawURL, Err: fmt.Errorf("create request: %w", err)}
	}

	// Plain audio only, no interleaved ICY metadata
	req.Header.Set("Icy-MetaData", "0")
	if h.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", h.cfg.UserAgent)
	}
	for k, v := range h.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, &OpenError{URL: rawURL, Err: fmt.Errorf("http request: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, &OpenError{URL: rawURL, StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected status: %d", resp.StatusCode)}
	}

	codec, err := decode.CodecFor(resp.Header.Get("Content-Type"), rawURL)
	if err != nil {
		resp.Body.Close()
		return nil, &OpenError{URL: rawURL, Err: err}
	}

	stream, err := decode.Open(resp.Body, codec)
	if err != nil {
		return nil, &OpenError{URL: rawURL, Err: err}
	}

	return stream, nil
}
