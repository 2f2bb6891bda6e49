// Package source defines the contract between the gateway and the readers
// that talk to individual data providers.
//
// A source type (erddap, axds, local, delta, ...) implements Type: two
// factories selected by the configured approach. Each factory call receives
// one fully resolved Spec and returns a Reader bound to it. Readers expose
// the discovered dataset ids, per-dataset metadata, and the datasets
// themselves.
package source

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"oceangateway/internal/config"
	"oceangateway/internal/dataset"
)

// Keys the gateway sets on every resolved spec.
const (
	KeyVariables  = "variables"
	KeyDatasetIDs = "dataset_ids"
)

// Reader is one configured connection to a source.
//
// Implementations must return fully materialized results in a stable order
// and may do I/O on every call; the gateway memoizes.
type Reader interface {
	DatasetIDs(ctx context.Context) ([]string, error)
	Meta(ctx context.Context) (Meta, error)
	Data(ctx context.Context) (map[string]dataset.Dataset, error)
}

// Type builds readers for one kind of source.
type Type interface {
	// Region builds a reader that searches by bounding box and time range.
	Region(spec Spec) (Reader, error)

	// Stations builds a reader that looks up named stations or datasets.
	Stations(spec Spec) (Reader, error)
}

// Build dispatches to Region or Stations according to the spec's approach.
func Build(t Type, spec Spec) (Reader, error) {
	switch a := spec.Approach(); a {
	case config.ApproachRegion:
		return t.Region(spec)
	case config.ApproachStations:
		return t.Stations(spec)
	default:
		return nil, fmt.Errorf("approach %q: %w", a, config.ErrInvalidConfig)
	}
}

// DatasetMeta describes one dataset a reader can return.
type DatasetMeta struct {
	ID    string `json:"id"`
	Title string `json:"title"`

	HasBBox bool    `json:"has_bbox"`
	MinLon  float64 `json:"min_lon"`
	MaxLon  float64 `json:"max_lon"`
	MinLat  float64 `json:"min_lat"`
	MaxLat  float64 `json:"max_lat"`

	Start time.Time `json:"start"`
	End   time.Time `json:"end"`

	Variables []string          `json:"variables,omitempty"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// FromExtent fills the coverage fields from a computed extent.
func (m *DatasetMeta) FromExtent(e dataset.Extent) {
	m.HasBBox = e.HasBBox
	m.MinLon, m.MaxLon, m.MinLat, m.MaxLat = e.MinLon, e.MaxLon, e.MinLat, e.MaxLat
	if e.HasTime {
		m.Start, m.End = e.Start, e.End
	}
}

// Meta is per-dataset metadata keyed by dataset id.
type Meta map[string]DatasetMeta

// IDs returns the dataset ids in sorted order.
func (m Meta) IDs() []string {
	return slices.Sorted(maps.Keys(m))
}

// Spec is one resolved query specification: the global options, the
// source's own options, and the selected option, variables and dataset ids.
// A Spec is immutable; accessors return copies.
type Spec struct {
	m map[string]any
}

// NewSpec copies m into a Spec.
func NewSpec(m map[string]any) Spec {
	return Spec{m: config.Clone(m)}
}

// Get returns the raw value for key.
func (s Spec) Get(key string) (any, bool) {
	v, ok := s.m[key]
	if !ok {
		return nil, false
	}
	if m, isMap := v.(map[string]any); isMap {
		return config.Clone(m), true
	}
	return config.Normalize(v), true
}

// Has reports whether key is present, even with a nil value.
func (s Spec) Has(key string) bool {
	_, ok := s.m[key]
	return ok
}

// String returns the value for key if it is a string.
func (s Spec) String(key string) string {
	v, _ := s.m[key].(string)
	return v
}

// Strings returns the value for key as a list of strings. A single string
// is a one-element list; nil or absent is nil.
func (s Spec) Strings(key string) ([]string, error) {
	switch v := s.m[key].(type) {
	case nil:
		return nil, nil
	case string:
		return []string{v}, nil
	case []string:
		return slices.Clone(v), nil
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			str, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("%s: entries must be strings, got %T: %w", key, e, config.ErrInvalidConfig)
			}
			out = append(out, str)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%s: must be a string or list, got %T: %w", key, v, config.ErrInvalidConfig)
	}
}

// Bool returns the value for key if it is a bool, else def.
func (s Spec) Bool(key string, def bool) bool {
	if v, ok := s.m[key].(bool); ok {
		return v
	}
	return def
}

// Approach returns the query approach, region when unset.
func (s Spec) Approach() config.Approach {
	switch v := s.m[config.KeyApproach].(type) {
	case config.Approach:
		return v
	case string:
		return config.Approach(v)
	}
	return config.ApproachRegion
}

// KW returns the bounding box and time range, if configured. A kw that
// does not parse is an error, not an absent kw.
func (s Spec) KW() (config.KW, bool, error) {
	switch v := s.m[config.KeyKW].(type) {
	case nil:
		return config.KW{}, false, nil
	case config.KW:
		return v, true, nil
	case *config.KW:
		if v == nil {
			return config.KW{}, false, nil
		}
		return *v, true, nil
	default:
		kw, err := config.ParseKW(v)
		if err != nil {
			return config.KW{}, false, err
		}
		return kw, true, nil
	}
}

// Parallel reports whether the reader may fetch datasets concurrently.
func (s Spec) Parallel() bool { return s.Bool(config.KeyParallel, true) }

// Variables returns the requested variables, nil for all.
func (s Spec) Variables() ([]string, error) { return s.Strings(KeyVariables) }

// DatasetIDs returns the requested dataset ids, nil for discovery.
func (s Spec) DatasetIDs() ([]string, error) { return s.Strings(KeyDatasetIDs) }

// Keys lists the spec's keys in sorted order.
func (s Spec) Keys() []string {
	return slices.Sorted(maps.Keys(s.m))
}

// Map returns a copy of the underlying mapping.
func (s Spec) Map() map[string]any {
	return config.Clone(s.m)
}
