// Package axds reads datasets from the Axiom Data Science search API.
//
// Search results are walked with JSONPath. Platforms (axds_type
// "platform2") are fixed or mobile stations served as gzipped CSV; layer
// groups ("layer_group") are model output served as CF-JSON.
package axds

import (
	"fmt"
	"log/slog"

	"oceangateway/internal/config"
	"oceangateway/internal/reader"
	"oceangateway/internal/source"
)

// Name is the source type's configuration key.
const Name = "axds"

// Spec keys read by this source type.
const (
	KeyType      = "axds_type"
	KeySearchURL = "search_url"
	KeyStations  = "stations"
	KeyPageSize  = "page_size"
)

// Search result kinds.
const (
	TypePlatform   = "platform2"
	TypeLayerGroup = "layer_group"
)

// DefaultSearchURL is the public search endpoint.
const DefaultSearchURL = "https://search.axds.co/v2/search"

// DefaultTypes are the built-in option values, in expansion order.
var DefaultTypes = []any{TypePlatform, TypeLayerGroup}

// Type is the axds source type.
type Type struct {
	deps   reader.Deps
	logger *slog.Logger
}

var _ source.Type = (*Type)(nil)

// New creates the axds source type.
func New(deps reader.Deps) *Type {
	deps = deps.WithDefaults()
	return &Type{deps: deps, logger: deps.Logger.With("component", "axds")}
}

// Definition registers the type in a source table.
func Definition(deps reader.Deps) source.Definition {
	return source.Definition{
		Name:      Name,
		OptionKey: KeyType,
		Options:   DefaultTypes,
		Type:      New(deps),
	}
}

func (t *Type) Region(spec source.Spec) (source.Reader, error) {
	r, err := t.newReader(spec)
	if err != nil {
		return nil, err
	}
	if !r.hasKW && len(r.ids) == 0 {
		return nil, &config.Error{Key: config.KeyKW, Reason: "axds region search requires kw"}
	}
	return r, nil
}

func (t *Type) Stations(spec source.Spec) (source.Reader, error) {
	r, err := t.newReader(spec)
	if err != nil {
		return nil, err
	}
	if len(r.ids) == 0 && len(r.stations) == 0 {
		return nil, &config.Error{Key: Name + "." + KeyStations, Reason: "stations approach requires stations or dataset_ids"}
	}
	return r, nil
}

func (t *Type) newReader(spec source.Spec) (*Reader, error) {
	kind := spec.String(KeyType)
	p, ok := pathsByType[kind]
	if !ok {
		return nil, &config.Error{Key: Name + "." + KeyType, Reason: fmt.Sprintf("unknown type %q: use %s or %s", kind, TypePlatform, TypeLayerGroup)}
	}
	vars, err := spec.Variables()
	if err != nil {
		return nil, err
	}
	ids, err := spec.DatasetIDs()
	if err != nil {
		return nil, err
	}
	stations, err := spec.Strings(KeyStations)
	if err != nil {
		return nil, err
	}
	pageSize := defaultPageSize
	if v, ok := spec.Get(KeyPageSize); ok {
		n, isInt := positiveInt(v)
		if !isInt {
			return nil, &config.Error{Key: Name + "." + KeyPageSize, Reason: fmt.Sprintf("must be a positive integer, got %v", v)}
		}
		pageSize = n
	}
	searchURL := spec.String(KeySearchURL)
	if searchURL == "" {
		searchURL = DefaultSearchURL
	}
	kw, hasKW, err := spec.KW()
	if err != nil {
		return nil, err
	}
	return &Reader{
		kind:      kind,
		paths:     p,
		searchURL: searchURL,
		pageSize:  pageSize,
		approach:  spec.Approach(),
		kw:        kw,
		hasKW:     hasKW,
		variables: vars,
		ids:       ids,
		stations:  stations,
		workers:   reader.Workers(spec),
		deps:      t.deps,
		logger:    t.logger.With("type", kind),
	}, nil
}

// positiveInt accepts YAML ints and whole JSON numbers.
func positiveInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, n > 0
	case int64:
		return int(n), n > 0
	case float64:
		return int(n), n > 0 && n == float64(int(n))
	}
	return 0, false
}
