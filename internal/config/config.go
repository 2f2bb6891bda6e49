// Package config parses and validates the gateway configuration.
//
// A configuration is a single nested mapping:
//
//	approach: region            # or stations
//	kw: {min_lon: -124, max_lon: -123, min_lat: 38, max_lat: 39,
//	     min_time: 2021-4-1, max_time: 2021-4-2}
//	parallel: true
//	readers: [erddap, local]
//	erddap: {known_server: [ioos], variables: [[sea_water_temperature]]}
//
// The four global keys are fixed. Every other top-level key must name a
// known source type and carries that source's own options. Anything else is
// rejected before any reader exists.
//
// Parse produces an immutable Config. Stores (file, memory) persist the raw
// mapping; they do not validate it.
package config

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Global configuration keys.
const (
	KeyApproach = "approach"
	KeyKW       = "kw"
	KeyParallel = "parallel"
	KeyReaders  = "readers"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Error describes one rejected configuration key.
type Error struct {
	Key    string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config %q: %s", e.Key, e.Reason)
}

func (e *Error) Unwrap() error { return ErrInvalidConfig }

func errorf(key, format string, args ...any) error {
	return &Error{Key: key, Reason: fmt.Sprintf(format, args...)}
}

// Approach selects how readers query their source.
type Approach string

const (
	ApproachRegion   Approach = "region"
	ApproachStations Approach = "stations"
)

// ParseApproach accepts "region" or "stations".
func ParseApproach(s string) (Approach, error) {
	switch a := Approach(s); a {
	case ApproachRegion, ApproachStations:
		return a, nil
	}
	return "", errorf(KeyApproach, "must be %q or %q, got %q", ApproachRegion, ApproachStations, s)
}

// Store persists the raw configuration mapping.
type Store interface {
	// Load returns the stored mapping, or nil if nothing has been saved.
	Load(ctx context.Context) (map[string]any, error)
	Save(ctx context.Context, raw map[string]any) error
}

// Config is a validated gateway configuration. It is not modified after
// Parse returns.
type Config struct {
	Approach Approach

	// KW is the bounding box and time range; nil when not configured.
	KW *KW

	// Parallel is the global default; a source may override it with its
	// own "parallel" key.
	Parallel bool

	// Readers restricts and orders the source types; nil means all known
	// types in table order, an empty list means none.
	Readers []string

	// Sources holds each configured source type's own options.
	Sources map[string]map[string]any
}

// Parse validates raw against the known source type names and returns the
// configuration. Keys are checked in sorted order so the first reported
// error is deterministic.
func Parse(raw map[string]any, known []string) (*Config, error) {
	raw, _ = Normalize(raw).(map[string]any)
	cfg := &Config{
		Approach: ApproachRegion,
		Parallel: true,
		Sources:  map[string]map[string]any{},
	}

	for _, key := range slices.Sorted(maps.Keys(raw)) {
		val := raw[key]
		switch key {
		case KeyApproach:
			s, ok := val.(string)
			if !ok {
				return nil, errorf(key, "must be a string, got %T", val)
			}
			a, err := ParseApproach(strings.TrimSpace(s))
			if err != nil {
				return nil, err
			}
			cfg.Approach = a

		case KeyKW:
			if val == nil {
				continue
			}
			kw, err := ParseKW(val)
			if err != nil {
				return nil, err
			}
			cfg.KW = &kw

		case KeyParallel:
			b, ok := val.(bool)
			if !ok {
				return nil, errorf(key, "must be a boolean, got %T", val)
			}
			cfg.Parallel = b

		case KeyReaders:
			readers, err := parseReaders(val, known)
			if err != nil {
				return nil, err
			}
			cfg.Readers = readers

		default:
			if !slices.Contains(known, key) {
				return nil, errorf(key, "unknown configuration key")
			}
			switch v := val.(type) {
			case nil:
				cfg.Sources[key] = map[string]any{}
			case map[string]any:
				cfg.Sources[key] = v
			default:
				return nil, errorf(key, "source options must be a mapping, got %T", val)
			}
		}
	}
	return cfg, nil
}

func parseReaders(val any, known []string) ([]string, error) {
	names := []string{}
	switch v := val.(type) {
	case string:
		names = []string{v}
	case []any:
		for _, e := range v {
			s, ok := e.(string)
			if !ok {
				return nil, errorf(KeyReaders, "entries must be strings, got %T", e)
			}
			names = append(names, s)
		}
	case []string:
		names = slices.Clone(v)
	default:
		return nil, errorf(KeyReaders, "must be a string or list, got %T", val)
	}
	seen := map[string]bool{}
	for _, n := range names {
		if !slices.Contains(known, n) {
			return nil, errorf(KeyReaders, "unknown source type %q (known: %s)", n, strings.Join(known, ", "))
		}
		if seen[n] {
			return nil, errorf(KeyReaders, "source type %q listed twice", n)
		}
		seen[n] = true
	}
	return names, nil
}

// Globals returns the global options merged into every resolved query
// specification. All four keys are always present.
func (c *Config) Globals() map[string]any {
	g := map[string]any{
		KeyApproach: c.Approach,
		KeyParallel: c.Parallel,
		KeyKW:       nil,
		KeyReaders:  slices.Clone(c.Readers),
	}
	if c.KW != nil {
		g[KeyKW] = *c.KW
	}
	return g
}

// Map renders the configuration back into its raw form.
func (c *Config) Map() map[string]any {
	m := map[string]any{
		KeyApproach: string(c.Approach),
		KeyParallel: c.Parallel,
	}
	if c.KW != nil {
		m[KeyKW] = c.KW.Map()
	}
	if c.Readers != nil {
		readers := make([]any, len(c.Readers))
		for i, r := range c.Readers {
			readers[i] = r
		}
		m[KeyReaders] = readers
	}
	for name, opts := range c.Sources {
		m[name] = Clone(opts)
	}
	return m
}

// FromStore loads and parses the stored configuration. A store with nothing
// saved yields the default configuration.
func FromStore(ctx context.Context, s Store, known []string) (*Config, error) {
	raw, err := s.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return Parse(raw, known)
}

// Normalize converts the map[interface{}]interface{} values produced by
// YAML decoding into map[string]any, recursively. Other values are returned
// unchanged.
func Normalize(v any) any {
	switch x := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[fmt.Sprint(k)] = Normalize(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = Normalize(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = Normalize(e)
		}
		return out
	}
	return v
}

// Clone deep-copies a raw mapping.
func Clone(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out, _ := Normalize(m).(map[string]any)
	return out
}
