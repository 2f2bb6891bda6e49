package axds

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"slices"
	"strconv"
	"time"

	"oceangateway/internal/cache"
	"oceangateway/internal/config"
	"oceangateway/internal/dataset"
	"oceangateway/internal/fetch"
	"oceangateway/internal/reader"
	"oceangateway/internal/source"
)

const defaultPageSize = 100

// Reader is bound to one result kind and one resolved spec.
type Reader struct {
	kind      string
	paths     resultPaths
	searchURL string
	pageSize  int
	approach  config.Approach
	kw        config.KW
	hasKW     bool
	variables []string
	ids       []string
	stations  []string
	workers   int

	deps   reader.Deps
	logger *slog.Logger
}

var _ source.Reader = (*Reader)(nil)

// results runs the searches the spec calls for and returns the hits in
// search order, deduplicated by id.
func (r *Reader) results(ctx context.Context) ([]result, error) {
	var queries []url.Values
	switch {
	case len(r.ids) > 0 || len(r.stations) > 0:
		for _, id := range r.ids {
			queries = append(queries, url.Values{"id": {id}})
		}
		for _, st := range r.stations {
			queries = append(queries, url.Values{"query": {st}})
		}
	default:
		queries = append(queries, r.regionQuery())
	}

	var out []result
	for _, q := range queries {
		hits, err := r.search(ctx, q)
		if err != nil {
			return nil, err
		}
		for _, h := range hits {
			if !slices.ContainsFunc(out, func(o result) bool { return o.ID == h.ID }) && r.keep(h) {
				out = append(out, h)
			}
		}
	}
	return out, nil
}

// search runs one query for the first page of results of r's kind.
func (r *Reader) search(ctx context.Context, q url.Values) ([]result, error) {
	q.Set("type", r.kind)
	q.Set("page", "1")
	q.Set("pageSize", strconv.Itoa(r.pageSize))
	q.Set("verbose", "true")
	u, err := fetch.URL(r.searchURL, "", q)
	if err != nil {
		return nil, err
	}
	return cache.Get(ctx, r.deps.Cache, "axds "+u, func(ctx context.Context) ([]result, error) {
		body, err := r.deps.Fetch.GetBytes(ctx, u)
		if err != nil {
			return nil, err
		}
		return parseResults(body, r.paths)
	})
}

func (r *Reader) regionQuery() url.Values {
	q := url.Values{}
	k := r.kw
	ring := [][2]float64{
		{k.MinLon, k.MinLat}, {k.MaxLon, k.MinLat}, {k.MaxLon, k.MaxLat}, {k.MinLon, k.MaxLat}, {k.MinLon, k.MinLat},
	}
	geom, _ := json.Marshal(map[string]any{"type": "Polygon", "coordinates": [][][2]float64{ring}})
	q.Set("geom", string(geom))
	if !k.MinTime.IsZero() {
		q.Set("startDateTime", k.MinTime.UTC().Format(time.RFC3339))
	}
	if !k.MaxTime.IsZero() {
		q.Set("endDateTime", k.MaxTime.UTC().Format(time.RFC3339))
	}
	return q
}

// keep applies the filters the search API cannot: region overlap and the
// requested variables.
func (r *Reader) keep(h result) bool {
	if r.approach == config.ApproachRegion && r.hasKW && !reader.InRegion(r.kw, h.meta()) {
		return false
	}
	if len(r.variables) == 0 || len(r.ids) > 0 {
		return true
	}
	for _, v := range r.variables {
		if slices.Contains(h.Variables, v) {
			return true
		}
	}
	return false
}

func (h result) meta() source.DatasetMeta {
	return source.DatasetMeta{
		ID:        h.ID,
		Title:     h.Title,
		HasBBox:   h.HasBBox,
		MinLon:    h.MinLon,
		MaxLon:    h.MaxLon,
		MinLat:    h.MinLat,
		MaxLat:    h.MaxLat,
		Start:     h.Start,
		End:       h.End,
		Variables: slices.Clone(h.Variables),
		Extra:     map[string]string{"data_url": h.DataURL},
	}
}

func (r *Reader) DatasetIDs(ctx context.Context) ([]string, error) {
	hits, err := r.results(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	return ids, nil
}

// Meta comes straight from the search results.
func (r *Reader) Meta(ctx context.Context) (source.Meta, error) {
	hits, err := r.results(ctx)
	if err != nil {
		return nil, err
	}
	m := make(source.Meta, len(hits))
	for _, h := range hits {
		meta := h.meta()
		meta.Extra["axds_type"] = r.kind
		m[h.ID] = meta
	}
	return m, nil
}

func (r *Reader) Data(ctx context.Context) (map[string]dataset.Dataset, error) {
	hits, err := r.results(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]result, len(hits))
	ids := make([]string, len(hits))
	for i, h := range hits {
		byID[h.ID] = h
		ids[i] = h.ID
	}
	return reader.Collect(ctx, ids, r.workers, func(ctx context.Context, id string) (dataset.Dataset, error) {
		ds, err := r.load(ctx, byID[id].DataURL)
		if err != nil {
			return nil, err
		}
		return reader.Variables(ds, r.variables)
	})
}

// load downloads one dataset. The file name decides the compression and
// the result kind decides the format.
func (r *Reader) load(ctx context.Context, dataURL string) (dataset.Dataset, error) {
	body, err := r.deps.Fetch.Get(ctx, dataURL)
	if err != nil {
		return nil, err
	}
	name := dataURL
	if u, err := url.Parse(dataURL); err == nil {
		name = path.Base(u.Path)
	}
	enc, _ := fetch.EncodingForName(name)
	rc, err := fetch.Decompress(body, enc) // closes body
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	switch r.kind {
	case TypePlatform:
		return dataset.ReadCSV(rc, dataset.CSVOptions{})
	case TypeLayerGroup:
		return dataset.ReadCFJSON(rc)
	default:
		return nil, fmt.Errorf("axds: no loader for type %q", r.kind)
	}
}
