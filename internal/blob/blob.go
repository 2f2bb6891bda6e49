// Package blob opens data files held in object stores.
//
// Objects are addressed by URL: s3://bucket/key, gs://bucket/key and
// az://container/blob. Keys may contain doublestar globs, which are
// expanded by listing the bucket under the glob's static prefix.
package blob

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"sync"

	"oceangateway/internal/logging"

	"github.com/bmatcuk/doublestar/v4"
)

// Schemes with built-in backends.
const (
	SchemeS3    = "s3"
	SchemeGCS   = "gs"
	SchemeAzure = "az"
)

// Backend reads and lists objects in one kind of store.
type Backend interface {
	Open(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	List(ctx context.Context, bucket, prefix string) ([]string, error)
}

// Config carries credentials and endpoints for the built-in backends.
// Empty fields fall back to each SDK's default credential chain.
type Config struct {
	S3Region    string
	S3Endpoint  string // for S3-compatible stores; enables path-style
	S3AccessKey string
	S3SecretKey string

	GCSAnonymous       bool
	GCSCredentialsFile string

	AzureAccountURL       string // https://<account>.blob.core.windows.net, optionally with a SAS query
	AzureConnectionString string

	Logger *slog.Logger
}

// Opener resolves object URLs to backends, creating each built-in backend
// on first use.
type Opener struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	backends map[string]Backend
}

// NewOpener creates an Opener.
func NewOpener(cfg Config) *Opener {
	return &Opener{
		cfg:      cfg,
		logger:   logging.Default(cfg.Logger).With("component", "blob"),
		backends: map[string]Backend{},
	}
}

// Register installs b for scheme, replacing any built-in backend.
func (o *Opener) Register(scheme string, b Backend) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.backends[scheme] = b
}

func (o *Opener) backend(ctx context.Context, scheme string) (Backend, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if b, ok := o.backends[scheme]; ok {
		return b, nil
	}
	var (
		b   Backend
		err error
	)
	switch scheme {
	case SchemeS3:
		b, err = newS3(ctx, o.cfg)
	case SchemeGCS:
		b, err = newGCS(ctx, o.cfg)
	case SchemeAzure:
		b, err = newAzure(o.cfg)
	default:
		return nil, fmt.Errorf("unsupported object store scheme %q", scheme)
	}
	if err != nil {
		return nil, fmt.Errorf("%s backend: %w", scheme, err)
	}
	o.logger.Debug("backend ready", "scheme", scheme)
	o.backends[scheme] = b
	return b, nil
}

// IsURL reports whether name is an object store URL.
func IsURL(name string) bool {
	for _, s := range []string{SchemeS3, SchemeGCS, SchemeAzure} {
		if strings.HasPrefix(name, s+"://") {
			return true
		}
	}
	return false
}

// Location is a parsed object URL.
type Location struct {
	Scheme string
	Bucket string
	Key    string
}

func (l Location) String() string {
	return l.Scheme + "://" + l.Bucket + "/" + l.Key
}

// Parse splits an object URL.
func Parse(raw string) (Location, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, fmt.Errorf("parse object url %q: %w", raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return Location{}, fmt.Errorf("object url %q: want scheme://bucket/key", raw)
	}
	return Location{Scheme: u.Scheme, Bucket: u.Host, Key: strings.TrimPrefix(u.Path, "/")}, nil
}

// Open opens one object.
func (o *Opener) Open(ctx context.Context, raw string) (io.ReadCloser, error) {
	loc, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	b, err := o.backend(ctx, loc.Scheme)
	if err != nil {
		return nil, err
	}
	r, err := b.Open(ctx, loc.Bucket, loc.Key)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", raw, err)
	}
	return r, nil
}

// Glob expands a URL whose key may contain glob characters. A key without
// glob characters is returned as is, without checking it exists.
func (o *Opener) Glob(ctx context.Context, raw string) ([]string, error) {
	loc, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	if !strings.ContainsAny(loc.Key, "*?[{") {
		return []string{loc.String()}, nil
	}
	if !doublestar.ValidatePattern(loc.Key) {
		return nil, fmt.Errorf("invalid glob %q", loc.Key)
	}
	b, err := o.backend(ctx, loc.Scheme)
	if err != nil {
		return nil, err
	}
	keys, err := b.List(ctx, loc.Bucket, staticPrefix(loc.Key))
	if err != nil {
		return nil, fmt.Errorf("list %s://%s: %w", loc.Scheme, loc.Bucket, err)
	}

	var out []string
	for _, k := range keys {
		if ok, _ := doublestar.Match(loc.Key, k); ok {
			out = append(out, Location{Scheme: loc.Scheme, Bucket: loc.Bucket, Key: k}.String())
		}
	}
	slices.Sort(out)
	return out, nil
}

// staticPrefix returns the key prefix before the first glob character, cut
// back to the last '/'.
func staticPrefix(pattern string) string {
	i := strings.IndexAny(pattern, "*?[{")
	if i < 0 {
		return pattern
	}
	if j := strings.LastIndex(pattern[:i], "/"); j >= 0 {
		return pattern[:j+1]
	}
	return ""
}
