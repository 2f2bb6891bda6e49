// Package fetch is the HTTP client shared by the remote readers.
//
// Requests are paced by a token bucket, advertise zstd, brotli and gzip,
// and have their bodies decoded transparently. Non-2xx responses become
// *StatusError.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"oceangateway/internal/logging"

	"golang.org/x/time/rate"
)

// ErrNotFound is wrapped by StatusError for 404 responses.
var ErrNotFound = errors.New("not found")

// StatusError reports a non-2xx response.
type StatusError struct {
	URL    string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("GET %s: status %d: %s", e.URL, e.Status, e.Body)
	}
	return fmt.Sprintf("GET %s: status %d", e.URL, e.Status)
}

func (e *StatusError) Unwrap() error {
	if e.Status == http.StatusNotFound {
		return ErrNotFound
	}
	return nil
}

// Config configures a Client.
type Config struct {
	// HTTP is the underlying client. Defaults to one with a 60s timeout.
	HTTP *http.Client

	// Rate is the sustained request rate per second; zero means no limit.
	Rate float64

	// Burst is the token bucket size. Defaults to 1 when Rate is set.
	Burst int

	// UserAgent is sent on every request.
	UserAgent string

	Logger *slog.Logger
}

// Client fetches documents over HTTP.
type Client struct {
	http      *http.Client
	limiter   *rate.Limiter
	userAgent string
	logger    *slog.Logger
}

// New creates a Client.
func New(cfg Config) *Client {
	c := &Client{
		http:      cfg.HTTP,
		userAgent: cfg.UserAgent,
		logger:    logging.Default(cfg.Logger).With("component", "fetch"),
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 60 * time.Second}
	}
	if cfg.Rate > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.Rate), burst)
	}
	return c
}

// URL joins base, a path and query parameters.
func URL(base, p string, query url.Values) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse %q: %w", base, err)
	}
	u = u.JoinPath(p)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String(), nil
}

// Get fetches rawURL and returns the decoded body. The caller must close it.
func (c *Client) Get(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept-Encoding", acceptEncoding)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", rawURL, err)
	}
	c.logger.Debug("fetched", "url", rawURL, "status", resp.StatusCode,
		"encoding", resp.Header.Get("Content-Encoding"), "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, &StatusError{URL: rawURL, Status: resp.StatusCode, Body: string(snippet)}
	}
	return Decompress(resp.Body, resp.Header.Get("Content-Encoding"))
}

// GetJSON fetches rawURL and decodes the JSON body into v.
func (c *Client) GetJSON(ctx context.Context, rawURL string, v any) error {
	body, err := c.Get(ctx, rawURL)
	if err != nil {
		return err
	}
	defer body.Close()
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", rawURL, err)
	}
	return nil
}

// GetBytes fetches rawURL and returns the whole decoded body.
func (c *Client) GetBytes(ctx context.Context, rawURL string) ([]byte, error) {
	body, err := c.Get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	b, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rawURL, err)
	}
	return b, nil
}
