// Package reader holds what the concrete source types share: their
// dependencies, per-dataset fan-out, and region filtering.
package reader

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"oceangateway/internal/blob"
	"oceangateway/internal/cache"
	"oceangateway/internal/config"
	"oceangateway/internal/dataset"
	"oceangateway/internal/fetch"
	"oceangateway/internal/logging"
	"oceangateway/internal/source"

	"golang.org/x/sync/errgroup"
)

// ParallelWorkers is the fan-out used when a spec enables parallel reads.
const ParallelWorkers = 4

// Deps are the shared clients handed to every source type.
type Deps struct {
	Fetch  *fetch.Client
	Cache  *cache.Cache // nil disables listing caching
	Blob   *blob.Opener
	Logger *slog.Logger
}

// WithDefaults fills unset clients.
func (d Deps) WithDefaults() Deps {
	d.Logger = logging.Default(d.Logger)
	if d.Fetch == nil {
		d.Fetch = fetch.New(fetch.Config{Logger: d.Logger})
	}
	if d.Blob == nil {
		d.Blob = blob.NewOpener(blob.Config{Logger: d.Logger})
	}
	return d
}

// Workers returns the per-dataset concurrency for spec.
func Workers(spec source.Spec) int {
	if spec.Parallel() {
		return ParallelWorkers
	}
	return 1
}

// Collect calls fn for every id with at most workers in flight and gathers
// the results by id. The first error cancels the rest and is returned
// wrapped with its id.
func Collect[T any](ctx context.Context, ids []string, workers int, fn func(ctx context.Context, id string) (T, error)) (map[string]T, error) {
	var (
		mu  sync.Mutex
		out = make(map[string]T, len(ids))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for _, id := range ids {
		g.Go(func() error {
			v, err := fn(gctx, id)
			if err != nil {
				return fmt.Errorf("dataset %s: %w", id, err)
			}
			mu.Lock()
			out[id] = v
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// InRegion reports whether a dataset with the given coverage falls inside
// kw. Missing coverage counts as inside: it cannot be ruled out.
func InRegion(kw config.KW, m source.DatasetMeta) bool {
	if m.HasBBox && !kw.Intersects(m.MinLon, m.MaxLon, m.MinLat, m.MaxLat) {
		return false
	}
	if kw.HasTime() && !m.Start.IsZero() && !kw.Overlaps(m.Start, m.End) {
		return false
	}
	return true
}

// Variables narrows ds to the requested variables, keeping all when none
// are requested. Names the dataset lacks are skipped.
func Variables(ds dataset.Dataset, want []string) (dataset.Dataset, error) {
	if len(want) == 0 {
		return ds, nil
	}
	var keep []string
	for _, n := range want {
		if _, ok := ds.Variable(n); ok {
			keep = append(keep, n)
			continue
		}
		if name, ok := ds.Resolve(n); ok {
			keep = append(keep, name)
		}
	}
	return ds.Select(keep...)
}
