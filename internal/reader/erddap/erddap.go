// Package erddap reads tabular datasets from ERDDAP servers.
//
// Discovery uses the advanced search (region) or a full-text search per
// station name (stations). Metadata comes from /info/<id>/index.json and
// data from /tabledap/<id>.csv, whose second header row carries units.
package erddap

import (
	"fmt"
	"log/slog"
	"strings"

	"oceangateway/internal/config"
	"oceangateway/internal/reader"
	"oceangateway/internal/source"
)

// Spec keys read by this source type.
const (
	KeyServer   = "known_server"
	KeyStations = "stations"
)

// Name is the source type's configuration key.
const Name = "erddap"

// KnownServers maps the built-in aliases to server base URLs.
var KnownServers = map[string]string{
	"ioos":       "https://erddap.sensors.ioos.us/erddap",
	"coastwatch": "https://coastwatch.pfeg.noaa.gov/erddap",
}

// DefaultServers are the built-in option values, in expansion order.
var DefaultServers = []any{"ioos", "coastwatch"}

// Type is the erddap source type.
type Type struct {
	deps   reader.Deps
	logger *slog.Logger
}

var (
	_ source.Type           = (*Type)(nil)
	_ source.VariableLister = (*Type)(nil)
)

// New creates the erddap source type.
func New(deps reader.Deps) *Type {
	deps = deps.WithDefaults()
	return &Type{deps: deps, logger: deps.Logger.With("component", "erddap")}
}

// Definition registers the type in a source table.
func Definition(deps reader.Deps) source.Definition {
	return source.Definition{
		Name:      Name,
		OptionKey: KeyServer,
		Options:   DefaultServers,
		Type:      New(deps),
	}
}

// ResolveServer turns an alias or URL into a base URL.
func ResolveServer(v string) (string, error) {
	if u, ok := KnownServers[strings.ToLower(v)]; ok {
		return u, nil
	}
	if strings.HasPrefix(v, "http://") || strings.HasPrefix(v, "https://") {
		return strings.TrimSuffix(v, "/"), nil
	}
	return "", &config.Error{Key: Name + "." + KeyServer, Reason: fmt.Sprintf("unknown server %q: use a URL or one of ioos, coastwatch", v)}
}

func (t *Type) Region(spec source.Spec) (source.Reader, error) {
	r, err := t.newReader(spec)
	if err != nil {
		return nil, err
	}
	if !r.hasKW {
		return nil, &config.Error{Key: config.KeyKW, Reason: "erddap region search requires kw"}
	}
	r.search = r.searchRegion
	return r, nil
}

func (t *Type) Stations(spec source.Spec) (source.Reader, error) {
	r, err := t.newReader(spec)
	if err != nil {
		return nil, err
	}
	stations, err := spec.Strings(KeyStations)
	if err != nil {
		return nil, err
	}
	if len(r.ids) == 0 && len(stations) == 0 {
		return nil, &config.Error{Key: Name + "." + KeyStations, Reason: "stations approach requires stations or dataset_ids"}
	}
	r.stations = stations
	r.search = r.searchStations
	return r, nil
}

func (t *Type) newReader(spec source.Spec) (*Reader, error) {
	alias := spec.String(KeyServer)
	if alias == "" {
		return nil, &config.Error{Key: Name + "." + KeyServer, Reason: "required"}
	}
	server, err := ResolveServer(alias)
	if err != nil {
		return nil, err
	}
	vars, err := spec.Variables()
	if err != nil {
		return nil, err
	}
	ids, err := spec.DatasetIDs()
	if err != nil {
		return nil, err
	}
	kw, hasKW, err := spec.KW()
	if err != nil {
		return nil, err
	}
	return &Reader{
		server:    server,
		approach:  spec.Approach(),
		kw:        kw,
		hasKW:     hasKW,
		variables: vars,
		ids:       ids,
		workers:   reader.Workers(spec),
		deps:      t.deps,
		logger:    t.logger.With("server", alias),
	}, nil
}
