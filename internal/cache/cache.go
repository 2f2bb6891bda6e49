// Package cache keeps slow-changing remote listings (server search results,
// variable lists) on disk between runs.
//
// Each entry is one file named by the SHA-1 of its key, holding a
// zstd-compressed msgpack record with the time it was stored. Entries older
// than the TTL are refetched. Concurrent misses for one key share a single
// fetch.
package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"oceangateway/internal/callgroup"
	"oceangateway/internal/logging"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
)

var (
	encoder *zstd.Encoder
	decoder *zstd.Decoder
)

func init() {
	var err error
	encoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("cache: init zstd encoder: " + err.Error())
	}
	decoder, err = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0), zstd.WithDecoderMaxMemory(256<<20))
	if err != nil {
		panic("cache: init zstd decoder: " + err.Error())
	}
}

// record is the on-disk entry.
type record struct {
	Key     string    `msgpack:"key"`
	Stored  time.Time `msgpack:"stored"`
	Payload []byte    `msgpack:"payload"`
}

// Cache is a TTL file cache. A nil *Cache is valid and caches nothing.
type Cache struct {
	dir    string
	ttl    time.Duration
	now    func() time.Time
	group  callgroup.Group[string, []byte]
	logger *slog.Logger
}

// New creates a cache rooted at dir. A ttl of zero never expires entries.
func New(dir string, ttl time.Duration, logger *slog.Logger) *Cache {
	return &Cache{
		dir:    dir,
		ttl:    ttl,
		now:    time.Now,
		logger: logging.Default(logger).With("component", "cache"),
	}
}

func (c *Cache) path(key string) string {
	sum := sha1.Sum([]byte(key))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:])+".msgpack.zst")
}

// load returns the payload for key if present and fresh.
func (c *Cache) load(key string) ([]byte, bool) {
	data, err := os.ReadFile(c.path(key))
	if err != nil {
		return nil, false
	}
	raw, err := decoder.DecodeAll(data, nil)
	if err != nil {
		c.logger.Warn("corrupt cache entry", "key", key, "error", err)
		return nil, false
	}
	var rec record
	if err := msgpack.Unmarshal(raw, &rec); err != nil || rec.Key != key {
		return nil, false
	}
	if c.ttl > 0 && c.now().Sub(rec.Stored) > c.ttl {
		c.logger.Debug("cache entry expired", "key", key, "stored", rec.Stored)
		return nil, false
	}
	return rec.Payload, true
}

func (c *Cache) store(key string, payload []byte) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}
	raw, err := msgpack.Marshal(record{Key: key, Stored: c.now().UTC(), Payload: payload})
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	p := c.path(key)
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, encoder.EncodeAll(raw, nil), 0o644); err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	if err := os.Rename(tmp, p); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename cache entry: %w", err)
	}
	return nil
}

// Clear drops every entry and reports how many were removed.
func (c *Cache) Clear() (int, error) {
	if c == nil {
		return 0, nil
	}
	matches, err := filepath.Glob(filepath.Join(c.dir, "*.msgpack.zst"))
	if err != nil {
		return 0, err
	}
	n := 0
	for _, m := range matches {
		err := os.Remove(m)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return n, err
		}
		n++
	}
	if n > 0 {
		c.logger.Info("cache cleared", "entries", n)
	}
	return n, nil
}

// Get returns the cached value for key, calling fetch on a miss and
// storing its result. Fetch errors are returned and never cached. A failure
// to write the cache is logged and the fetched value still returned.
//
// The shared fetch runs detached from the cancellation of whichever caller
// started it; each caller still stops waiting when its own ctx ends.
func Get[T any](ctx context.Context, c *Cache, key string, fetch func(context.Context) (T, error)) (T, error) {
	var zero T
	if c == nil {
		return fetch(ctx)
	}
	if payload, ok := c.load(key); ok {
		var v T
		if err := msgpack.Unmarshal(payload, &v); err == nil {
			c.logger.Debug("cache hit", "key", key)
			return v, nil
		}
	}

	shared := context.WithoutCancel(ctx)
	payload, err := c.group.Do(ctx, key, func() ([]byte, error) {
		v, err := fetch(shared)
		if err != nil {
			return nil, err
		}
		b, err := msgpack.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode %q: %w", key, err)
		}
		if err := c.store(key, b); err != nil {
			c.logger.Warn("cache write failed", "key", key, "error", err)
		}
		return b, nil
	})
	if err != nil {
		return zero, err
	}
	var v T
	if err := msgpack.Unmarshal(payload, &v); err != nil {
		return zero, fmt.Errorf("decode %q: %w", key, err)
	}
	return v, nil
}
