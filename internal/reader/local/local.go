// Package local reads datasets from files: CSV (optionally gzip or zstd
// compressed), Parquet, and CF-JSON. Files may live on disk or in an
// object store; both accept doublestar globs.
package local

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"oceangateway/internal/blob"
	"oceangateway/internal/config"
	"oceangateway/internal/dataset"
	"oceangateway/internal/fetch"
	"oceangateway/internal/reader"
	"oceangateway/internal/source"
)

// Name is the source type's configuration key.
const Name = "local"

// KeyFilenames lists the files or globs to read.
const KeyFilenames = "filenames"

// Type is the local source type.
type Type struct {
	deps   reader.Deps
	logger *slog.Logger
}

var _ source.Type = (*Type)(nil)

// New creates the local source type.
func New(deps reader.Deps) *Type {
	deps = deps.WithDefaults()
	return &Type{deps: deps, logger: deps.Logger.With("component", "local")}
}

// Definition registers the type in a source table.
func Definition(deps reader.Deps) source.Definition {
	return source.Definition{Name: Name, Type: New(deps)}
}

// Region keeps the files whose data intersects kw.
func (t *Type) Region(spec source.Spec) (source.Reader, error) {
	r, err := t.newReader(spec)
	if err != nil {
		return nil, err
	}
	r.region = true
	return r, nil
}

// Stations keeps every file, or those named by dataset_ids.
func (t *Type) Stations(spec source.Spec) (source.Reader, error) {
	return t.newReader(spec)
}

func (t *Type) newReader(spec source.Spec) (*Reader, error) {
	patterns, err := spec.Strings(KeyFilenames)
	if err != nil {
		return nil, err
	}
	if len(patterns) == 0 {
		return nil, &config.Error{Key: Name + "." + KeyFilenames, Reason: "required"}
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
		patterns:  patterns,
		kw:        kw,
		hasKW:     hasKW,
		variables: vars,
		ids:       ids,
		workers:   reader.Workers(spec),
		deps:      t.deps,
		logger:    t.logger,
	}, nil
}

// Reader loads its files once, on first use.
type Reader struct {
	patterns  []string
	region    bool
	kw        config.KW
	hasKW     bool
	variables []string
	ids       []string
	workers   int

	deps   reader.Deps
	logger *slog.Logger

	mu      sync.Mutex
	entries []entry
	scanned bool
}

var _ source.Reader = (*Reader)(nil)

type entry struct {
	id   string
	path string
	ds   dataset.Dataset
	meta source.DatasetMeta
}

func (r *Reader) scan(ctx context.Context) ([]entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.scanned {
		return r.entries, nil
	}

	paths, err := Discover(ctx, r.deps.Blob, r.patterns)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		r.logger.Warn("no files matched", "patterns", r.patterns)
	}
	ids := assignIDs(paths)
	byID := make(map[string]string, len(paths))
	var wanted []string
	for i, p := range paths {
		if len(r.ids) > 0 && !slices.Contains(r.ids, ids[i]) {
			continue
		}
		byID[ids[i]] = p
		wanted = append(wanted, ids[i])
	}

	loaded, err := reader.Collect(ctx, wanted, r.workers, func(ctx context.Context, id string) (dataset.Dataset, error) {
		return Load(ctx, r.deps.Blob, byID[id])
	})
	if err != nil {
		return nil, err
	}

	var entries []entry
	for _, id := range wanted {
		ds := loaded[id]
		m := source.DatasetMeta{
			ID:        id,
			Title:     displayBase(byID[id]),
			Variables: ds.Names(),
			Extra:     map[string]string{"path": byID[id], "kind": ds.Kind().String()},
		}
		m.FromExtent(dataset.ExtentOf(ds))
		if r.region && r.hasKW && !reader.InRegion(r.kw, m) {
			r.logger.Debug("outside region", "dataset", id)
			continue
		}
		entries = append(entries, entry{id: id, path: byID[id], ds: ds, meta: m})
	}
	r.entries, r.scanned = entries, true
	return entries, nil
}

func (r *Reader) DatasetIDs(ctx context.Context) ([]string, error) {
	entries, err := r.scan(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.id
	}
	return ids, nil
}

func (r *Reader) Meta(ctx context.Context) (source.Meta, error) {
	entries, err := r.scan(ctx)
	if err != nil {
		return nil, err
	}
	m := make(source.Meta, len(entries))
	for _, e := range entries {
		m[e.id] = e.meta
	}
	return m, nil
}

func (r *Reader) Data(ctx context.Context) (map[string]dataset.Dataset, error) {
	entries, err := r.scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]dataset.Dataset, len(entries))
	for _, e := range entries {
		ds, err := reader.Variables(e.ds, r.variables)
		if err != nil {
			return nil, fmt.Errorf("dataset %s: %w", e.id, err)
		}
		out[e.id] = ds
	}
	return out, nil
}

// Load opens and parses one file. Compression is taken from the last
// extension and the format from the one before it.
func Load(ctx context.Context, opener *blob.Opener, p string) (dataset.Dataset, error) {
	var (
		f   io.ReadCloser
		err error
	)
	if blob.IsURL(p) {
		f, err = opener.Open(ctx, p)
	} else {
		f, err = os.Open(p) //nolint:gosec // G304: user-configured data files
	}
	if err != nil {
		return nil, err
	}
	enc, base := fetch.EncodingForName(p)
	rc, err := fetch.Decompress(f, enc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	defer rc.Close()

	var ds dataset.Dataset
	switch ext := strings.ToLower(path.Ext(base)); ext {
	case ".csv", ".txt":
		ds, err = dataset.ReadCSV(rc, dataset.CSVOptions{})
	case ".json":
		ds, err = dataset.ReadCFJSON(rc)
	case ".parquet":
		var b []byte
		if b, err = io.ReadAll(rc); err == nil {
			ds, err = dataset.ReadParquet(ctx, bytes.NewReader(b))
		}
	default:
		return nil, fmt.Errorf("%s: unsupported file type %q", p, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	return ds, nil
}

// assignIDs names each file after its base name without extensions. When
// two files share a base name both fall back to their full path.
func assignIDs(paths []string) []string {
	ids := make([]string, len(paths))
	count := map[string]int{}
	for i, p := range paths {
		ids[i] = stem(p)
		count[ids[i]]++
	}
	for i, p := range paths {
		if count[ids[i]] > 1 {
			ids[i] = p
		}
	}
	return ids
}

func stem(p string) string {
	_, base := fetch.EncodingForName(displayBase(p))
	return strings.TrimSuffix(base, path.Ext(base))
}

func displayBase(p string) string {
	if blob.IsURL(p) {
		return path.Base(p)
	}
	return filepath.Base(p)
}
