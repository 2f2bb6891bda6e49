// Package delta reads tables published over the Delta Sharing protocol.
// Every shared table the profile can see is one tabular dataset, named
// share.schema.table.
package delta

import (
	"context"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"

	"oceangateway/internal/config"
	"oceangateway/internal/dataset"
	"oceangateway/internal/reader"
	"oceangateway/internal/source"
)

// Name is the source type's configuration key.
const Name = "delta"

// Spec keys read by this source type.
const (
	KeyProfile = "profile"
	KeyTables  = "tables"
)

// Type is the delta source type.
type Type struct {
	deps    reader.Deps
	logger  *slog.Logger
	connect func(profile string) (sharing, error)
}

var _ source.Type = (*Type)(nil)

// New creates the delta source type.
func New(deps reader.Deps) *Type {
	deps = deps.WithDefaults()
	return &Type{deps: deps, logger: deps.Logger.With("component", "delta"), connect: dial}
}

// Definition registers the type in a source table.
func Definition(deps reader.Deps) source.Definition {
	return source.Definition{Name: Name, Type: New(deps)}
}

func (t *Type) Region(spec source.Spec) (source.Reader, error) {
	r, err := t.newReader(spec)
	if err != nil {
		return nil, err
	}
	r.region = true
	return r, nil
}

func (t *Type) Stations(spec source.Spec) (source.Reader, error) {
	return t.newReader(spec)
}

func (t *Type) newReader(spec source.Spec) (*Reader, error) {
	profile, err := loadProfile(spec.String(KeyProfile))
	if err != nil {
		return nil, err
	}
	tables, err := spec.Strings(KeyTables)
	if err != nil {
		return nil, err
	}
	ids, err := spec.DatasetIDs()
	if err != nil {
		return nil, err
	}
	vars, err := spec.Variables()
	if err != nil {
		return nil, err
	}
	kw, hasKW, err := spec.KW()
	if err != nil {
		return nil, err
	}
	return &Reader{
		profile:   profile,
		tables:    append(tables, ids...),
		kw:        kw,
		hasKW:     hasKW,
		variables: vars,
		workers:   reader.Workers(spec),
		connect:   t.connect,
		logger:    t.logger,
	}, nil
}

// loadProfile accepts an inline JSON profile or a path to one.
func loadProfile(v string) (string, error) {
	v = strings.TrimSpace(v)
	switch {
	case v == "":
		return "", &config.Error{Key: Name + "." + KeyProfile, Reason: "required"}
	case strings.HasPrefix(v, "{"):
		return v, nil
	}
	b, err := os.ReadFile(v) //nolint:gosec // G304: user-configured profile path
	if err != nil {
		return "", &config.Error{Key: Name + "." + KeyProfile, Reason: err.Error()}
	}
	return string(b), nil
}

// Reader loads the shared tables once, on first use.
type Reader struct {
	profile   string
	tables    []string
	region    bool
	kw        config.KW
	hasKW     bool
	variables []string
	workers   int
	connect   func(profile string) (sharing, error)
	logger    *slog.Logger

	mu      sync.Mutex
	loaded  bool
	ids     []string
	data    map[string]*dataset.Tabular
	extents map[string]source.DatasetMeta
}

var _ source.Reader = (*Reader)(nil)

func (r *Reader) load(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loaded {
		return nil
	}

	c, err := r.connect(r.profile)
	if err != nil {
		return err
	}
	refs, err := c.Tables(ctx)
	if err != nil {
		return err
	}
	byID := make(map[string]TableRef, len(refs))
	var wanted []string
	for _, ref := range refs {
		id := ref.ID()
		if len(r.tables) > 0 && !slices.Contains(r.tables, id) {
			continue
		}
		byID[id] = ref
		wanted = append(wanted, id)
	}

	data, err := reader.Collect(ctx, wanted, r.workers, func(ctx context.Context, id string) (*dataset.Tabular, error) {
		return c.Load(ctx, byID[id])
	})
	if err != nil {
		return err
	}

	r.data = make(map[string]*dataset.Tabular, len(wanted))
	r.extents = make(map[string]source.DatasetMeta, len(wanted))
	for _, id := range wanted {
		ref := byID[id]
		m := source.DatasetMeta{
			ID:        id,
			Title:     ref.Name,
			Variables: data[id].Names(),
			Extra:     map[string]string{"share": ref.Share, "schema": ref.Schema},
		}
		m.FromExtent(dataset.ExtentOf(data[id]))
		if r.region && r.hasKW && !reader.InRegion(r.kw, m) {
			continue
		}
		r.ids = append(r.ids, id)
		r.data[id] = data[id]
		r.extents[id] = m
	}
	r.logger.Debug("loaded shared tables", "count", len(r.ids))
	r.loaded = true
	return nil
}

func (r *Reader) DatasetIDs(ctx context.Context) ([]string, error) {
	if err := r.load(ctx); err != nil {
		return nil, err
	}
	return slices.Clone(r.ids), nil
}

func (r *Reader) Meta(ctx context.Context) (source.Meta, error) {
	if err := r.load(ctx); err != nil {
		return nil, err
	}
	m := make(source.Meta, len(r.ids))
	for _, id := range r.ids {
		m[id] = r.extents[id]
	}
	return m, nil
}

func (r *Reader) Data(ctx context.Context) (map[string]dataset.Dataset, error) {
	if err := r.load(ctx); err != nil {
		return nil, err
	}
	out := make(map[string]dataset.Dataset, len(r.ids))
	for _, id := range r.ids {
		ds, err := reader.Variables(r.data[id], r.variables)
		if err != nil {
			return nil, err
		}
		out[id] = ds
	}
	return out, nil
}
