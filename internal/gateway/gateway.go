// Package gateway aggregates datasets from every configured source behind
// one interface and runs the QC pass over them.
//
// New expands the configuration into one reader per resolved spec. The
// DatasetIDs, Meta and Data views each hold one entry per reader, in
// expansion order, computed on first access and then kept for the life of
// the gateway. There is no invalidation: build a new Gateway to re-query.
//
// Views are guarded by a mutex, so concurrent first access is serialized.
// A reader failure fails the whole view and nothing is cached; a later call
// starts over.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"oceangateway/internal/catalog"
	"oceangateway/internal/config"
	"oceangateway/internal/dataset"
	"oceangateway/internal/logging"
	"oceangateway/internal/qc"
	"oceangateway/internal/source"

	petname "github.com/dustinkirkland/golang-petname"
)

// Options configures a Gateway.
type Options struct {
	// Catalog is the variable catalog for QC. Defaults to catalog.Default().
	Catalog *catalog.Catalog

	// Name identifies the session in logs and reports. Generated when empty.
	Name string

	// Logger is the base logger. Nil discards.
	Logger *slog.Logger
}

// ReaderError wraps a failure inside one reader.
type ReaderError struct {
	Source string
	Index  int
	Op     string
	Err    error
}

func (e *ReaderError) Error() string {
	return fmt.Sprintf("%s %s[%d]: %v", e.Op, e.Source, e.Index, e.Err)
}

func (e *ReaderError) Unwrap() error { return e.Err }

// Gateway owns the readers for one configuration and their cached results.
type Gateway struct {
	cfg     *config.Config
	plans   []Plan
	readers []source.Reader
	catalog *catalog.Catalog
	name    string
	logger  *slog.Logger

	mu     sync.Mutex
	ids    [][]string
	meta   []source.Meta
	data   []map[string]dataset.Dataset
	report *qc.Report
}

// New expands cfg against table and builds one reader per plan. Expansion
// errors are returned before any reader is constructed.
func New(cfg *config.Config, table source.Table, opts Options) (*Gateway, error) {
	plans, err := Expand(cfg, table)
	if err != nil {
		return nil, err
	}

	name := opts.Name
	if name == "" {
		name = petname.Generate(2, "-")
	}
	cat := opts.Catalog
	if cat == nil {
		cat = catalog.Default()
	}
	g := &Gateway{
		cfg:     cfg,
		plans:   plans,
		catalog: cat,
		name:    name,
		logger:  logging.Default(opts.Logger).With("component", "gateway", "session", name),
	}

	g.readers = make([]source.Reader, len(plans))
	for i, p := range plans {
		def, _ := table.Lookup(p.Source)
		r, err := source.Build(def.Type, p.Spec)
		if err != nil {
			return nil, fmt.Errorf("build %s[%d]: %w", p.Source, p.Index, err)
		}
		g.readers[i] = r
	}
	g.logger.Info("gateway ready", "approach", cfg.Approach, "readers", len(g.readers))
	return g, nil
}

// Name returns the session name.
func (g *Gateway) Name() string { return g.name }

// Plans returns the resolved specs, one per reader.
func (g *Gateway) Plans() []Plan { return g.plans }

// Config returns the configuration the gateway was built from.
func (g *Gateway) Config() *config.Config { return g.cfg }

func (g *Gateway) wrap(i int, op string, err error) error {
	p := g.plans[i]
	g.logger.Warn("reader failed", "source", p.Source, "index", p.Index, "op", op, "error", err)
	return &ReaderError{Source: p.Source, Index: p.Index, Op: op, Err: err}
}

// DatasetIDs returns each reader's dataset ids.
func (g *Gateway) DatasetIDs(ctx context.Context) ([][]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.ensureIDs(ctx); err != nil {
		return nil, err
	}
	return g.ids, nil
}

func (g *Gateway) ensureIDs(ctx context.Context) error {
	if g.ids != nil {
		return nil
	}
	out := make([][]string, len(g.readers))
	for i, r := range g.readers {
		ids, err := r.DatasetIDs(ctx)
		if err != nil {
			return g.wrap(i, "dataset_ids", err)
		}
		out[i] = ids
	}
	g.ids = out
	return nil
}

// Meta returns each reader's metadata.
func (g *Gateway) Meta(ctx context.Context) ([]source.Meta, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.ensureMeta(ctx); err != nil {
		return nil, err
	}
	return g.meta, nil
}

func (g *Gateway) ensureMeta(ctx context.Context) error {
	if g.meta != nil {
		return nil
	}
	out := make([]source.Meta, len(g.readers))
	for i, r := range g.readers {
		m, err := r.Meta(ctx)
		if err != nil {
			return g.wrap(i, "meta", err)
		}
		out[i] = m
	}
	g.meta = out
	return nil
}

// Data returns each reader's datasets keyed by dataset id.
func (g *Gateway) Data(ctx context.Context) ([]map[string]dataset.Dataset, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.ensureData(ctx); err != nil {
		return nil, err
	}
	return g.data, nil
}

func (g *Gateway) ensureData(ctx context.Context) error {
	if g.data != nil {
		return nil
	}
	out := make([]map[string]dataset.Dataset, len(g.readers))
	for i, r := range g.readers {
		d, err := r.Data(ctx)
		if err != nil {
			return g.wrap(i, "data", err)
		}
		if d == nil {
			d = map[string]dataset.Dataset{}
		}
		out[i] = d
	}
	g.data = out
	return nil
}

// QC runs the quality check over Data, replacing each dataset in place
// with its reduced, flagged form. It runs at most once; later calls return
// the same data and report.
func (g *Gateway) QC(ctx context.Context) ([]map[string]dataset.Dataset, qc.Report, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.ensureData(ctx); err != nil {
		return nil, qc.Report{}, err
	}
	if g.report != nil {
		return g.data, *g.report, nil
	}

	p := qc.New(g.catalog, g.logger)
	report := qc.Report{Session: g.name}
	for i, data := range g.data {
		r, err := p.Run(data)
		if err != nil {
			// Earlier sources were already rewritten; refetch next time.
			g.data = nil
			return nil, qc.Report{}, fmt.Errorf("qc %s[%d]: %w", g.plans[i].Source, g.plans[i].Index, err)
		}
		report.Merge(i, r)
	}
	g.report = &report
	g.logger.Info("qc complete", "variables", len(report.Results),
		"fail", report.Count(qc.FlagFail), "suspect", report.Count(qc.FlagSuspect))
	return g.data, report, nil
}
