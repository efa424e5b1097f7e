// ABOUTME: Multipart upload client for captured segments
// ABOUTME: Encodes each segment and POSTs it with station and timestamp fields
package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/harperreed/radiowatch/internal/sampling"
	"github.com/harperreed/radiowatch/internal/version"
	"github.com/harperreed/radiowatch/pkg/audio/encode"
)

const (
	DefaultField   = "file"
	DefaultTimeout = 30 * time.Second

	// maxErrorBody bounds how much of a failed response is kept
	maxErrorBody = 512
)

// StatusError is returned for non-2xx responses
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("ingest responded %d", e.StatusCode)
	}
	return fmt.Sprintf("ingest responded %d: %s", e.StatusCode, e.Body)
}

// Config holds upload settings
type Config struct {
	URL     string
	Field   string
	Timeout time.Duration
	Codec   string
	Bitrate int
	Debug   bool
}

// Validate checks the upload endpoint
func (c Config) Validate() error {
	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("invalid ingest url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("ingest url must be an absolute http(s) url, got %q", c.URL)
	}
	return nil
}

// Client uploads segments; it implements sampling.Uploader
type Client struct {
	cfg     Config
	encoder encode.Encoder
	http    *http.Client
}

// NewClient creates a client for cfg
func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Field == "" {
		cfg.Field = DefaultField
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	enc, err := encode.New(cfg.Codec, cfg.Bitrate)
	if err != nil {
		return nil, err
	}

	return &Client{
		cfg:     cfg,
		encoder: enc,
		http:    &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Upload encodes seg and POSTs it
func (c *Client) Upload(ctx context.Context, seg sampling.Segment) (sampling.Receipt, error) {
	data, err := c.encoder.Encode(seg.Buffer())
	if err != nil {
		return sampling.Receipt{}, fmt.Errorf("failed to encode segment: %w", err)
	}

	receipt := sampling.Receipt{
		Filename:    seg.Filename(c.encoder.Extension()),
		ContentType: c.encoder.ContentType(),
		Bytes:       len(data),
	}

	body, contentType, err := c.form(seg, receipt, data)
	if err != nil {
		return receipt, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, body)
	if err != nil {
		return receipt, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("X-Station-ID", seg.StationID)
	req.Header.Set("X-Segment-ID", seg.ID)

	resp, err := c.http.Do(req)
	if err != nil {
		return receipt, fmt.Errorf("upload failed: %w", err)
	}
	defer resp.Body.Close()

	receipt.StatusCode = resp.StatusCode
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return receipt, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	io.Copy(io.Discard, resp.Body)

	if c.cfg.Debug {
		log.Printf("[DEBUG] Uploaded %s (%d bytes) for %s: %d", receipt.Filename, receipt.Bytes, seg.StationID, resp.StatusCode)
	}
	return receipt, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// form builds the multipart body: the encoded file plus station_id and timestamp
func (c *Client) form(seg sampling.Segment, receipt sampling.Receipt, data []byte) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(c.cfg.Field), quoteEscaper.Replace(receipt.Filename)))
	h.Set("Content-Type", receipt.ContentType)

	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create file part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", fmt.Errorf("failed to write file part: %w", err)
	}

	if err := w.WriteField("station_id", seg.StationID); err != nil {
		return nil, "", fmt.Errorf("failed to write station_id: %w", err)
	}
	if err := w.WriteField("timestamp", seg.Timestamp()); err != nil {
		return nil, "", fmt.Errorf("failed to write timestamp: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finish form: %w", err)
	}

	return &buf, w.FormDataContentType(), nil
}
