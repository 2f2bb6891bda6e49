package erddap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"oceangateway/internal/cache"
	"oceangateway/internal/config"
	"oceangateway/internal/dataset"
	"oceangateway/internal/fetch"
	"oceangateway/internal/reader"
	"oceangateway/internal/source"
)

const (
	searchPageSize = 1000
	datasetIDCol   = "Dataset ID"
)

// Reader is bound to one server and one resolved spec.
type Reader struct {
	server    string
	approach  config.Approach
	kw        config.KW
	hasKW     bool
	variables []string
	ids       []string
	stations  []string
	workers   int

	search func(ctx context.Context) ([]string, error)

	deps   reader.Deps
	logger *slog.Logger
}

var _ source.Reader = (*Reader)(nil)

// DatasetIDs returns the configured dataset ids, or the search results when
// none are configured. Order follows the server's ranking.
func (r *Reader) DatasetIDs(ctx context.Context) ([]string, error) {
	if len(r.ids) > 0 && len(r.stations) == 0 {
		return slices.Clone(r.ids), nil
	}
	found, err := r.search(ctx)
	if err != nil {
		return nil, err
	}
	return appendUnique(slices.Clone(r.ids), found...), nil
}

func (r *Reader) searchRegion(ctx context.Context) ([]string, error) {
	terms := r.variables
	if len(terms) == 0 {
		terms = []string{""}
	}
	var ids []string
	for _, v := range terms {
		q := url.Values{}
		q.Set("page", "1")
		q.Set("itemsPerPage", strconv.Itoa(searchPageSize))
		q.Set("protocol", "tabledap")
		q.Set("minLon", formatFloat(r.kw.MinLon))
		q.Set("maxLon", formatFloat(r.kw.MaxLon))
		q.Set("minLat", formatFloat(r.kw.MinLat))
		q.Set("maxLat", formatFloat(r.kw.MaxLat))
		if !r.kw.MinTime.IsZero() {
			q.Set("minTime", r.kw.MinTime.UTC().Format(time.RFC3339))
		}
		if !r.kw.MaxTime.IsZero() {
			q.Set("maxTime", r.kw.MaxTime.UTC().Format(time.RFC3339))
		}
		if v != "" {
			q.Set("variableName", v)
		}
		found, err := r.searchIDs(ctx, "search/advanced.json", q)
		if err != nil {
			return nil, err
		}
		ids = appendUnique(ids, found...)
	}
	return ids, nil
}

func (r *Reader) searchStations(ctx context.Context) ([]string, error) {
	var ids []string
	for _, st := range r.stations {
		q := url.Values{}
		q.Set("page", "1")
		q.Set("itemsPerPage", strconv.Itoa(searchPageSize))
		q.Set("searchFor", st)
		found, err := r.searchIDs(ctx, "search/index.json", q)
		if err != nil {
			return nil, err
		}
		if len(found) == 0 {
			r.logger.Warn("station not found", "station", st)
		}
		ids = appendUnique(ids, found...)
	}
	return ids, nil
}

// searchIDs runs one search and returns the dataset ids. ERDDAP answers
// 404 when nothing matches, which is an empty result here.
func (r *Reader) searchIDs(ctx context.Context, p string, q url.Values) ([]string, error) {
	u, err := fetch.URL(r.server, p, q)
	if err != nil {
		return nil, err
	}
	return cache.Get(ctx, r.deps.Cache, "erddap "+u, func(ctx context.Context) ([]string, error) {
		var res table
		if err := r.deps.Fetch.GetJSON(ctx, u, &res); err != nil {
			if errors.Is(err, fetch.ErrNotFound) {
				return []string{}, nil
			}
			return nil, err
		}
		return res.strings(datasetIDCol)
	})
}

// Meta fetches each dataset's info document.
func (r *Reader) Meta(ctx context.Context) (source.Meta, error) {
	ids, err := r.DatasetIDs(ctx)
	if err != nil {
		return nil, err
	}
	out, err := reader.Collect(ctx, ids, r.workers, r.info)
	if err != nil {
		return nil, err
	}
	return source.Meta(out), nil
}

func (r *Reader) info(ctx context.Context, id string) (source.DatasetMeta, error) {
	u := r.server + "/info/" + url.PathEscape(id) + "/index.json"
	var res table
	if err := r.deps.Fetch.GetJSON(ctx, u, &res); err != nil {
		return source.DatasetMeta{}, err
	}
	cols := make([]int, 4)
	for i, name := range []string{"Row Type", "Variable Name", "Attribute Name", "Value"} {
		c, err := res.column(name)
		if err != nil {
			return source.DatasetMeta{}, err
		}
		cols[i] = c
	}

	m := source.DatasetMeta{ID: id, Extra: map[string]string{"server": r.server}}
	global := map[string]string{}
	for row := range res.Table.Rows {
		rowType, varName := res.cell(row, cols[0]), res.cell(row, cols[1])
		switch {
		case rowType == "variable":
			m.Variables = append(m.Variables, varName)
		case rowType == "attribute" && varName == "NC_GLOBAL":
			global[res.cell(row, cols[2])] = res.cell(row, cols[3])
		}
	}
	m.Title = global["title"]
	for _, k := range []string{"institution", "cdm_data_type", "infoUrl"} {
		if v, ok := global[k]; ok {
			m.Extra[k] = v
		}
	}

	west, okW := parseFloat(global["Westernmost_Easting"])
	east, okE := parseFloat(global["Easternmost_Easting"])
	south, okS := parseFloat(global["Southernmost_Northing"])
	north, okN := parseFloat(global["Northernmost_Northing"])
	if okW && okE && okS && okN {
		m.HasBBox = true
		m.MinLon, m.MaxLon, m.MinLat, m.MaxLat = west, east, south, north
	}
	if s, err := dataset.ParseTime(global["time_coverage_start"]); err == nil {
		m.Start = s
	}
	if e, err := dataset.ParseTime(global["time_coverage_end"]); err == nil {
		m.End = e
	}
	return m, nil
}

// Data downloads every dataset as CSV. Datasets with no rows inside the
// constraints are left out.
func (r *Reader) Data(ctx context.Context) (map[string]dataset.Dataset, error) {
	ids, err := r.DatasetIDs(ctx)
	if err != nil {
		return nil, err
	}
	got, err := reader.Collect(ctx, ids, r.workers, func(ctx context.Context, id string) (dataset.Dataset, error) {
		body, err := r.deps.Fetch.Get(ctx, r.dataURL(id))
		if errors.Is(err, fetch.ErrNotFound) {
			r.logger.Debug("no matching rows", "dataset", id)
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		defer body.Close()
		return dataset.ReadCSV(body, dataset.CSVOptions{UnitsRow: true})
	})
	if err != nil {
		return nil, err
	}
	maps.DeleteFunc(got, func(_ string, ds dataset.Dataset) bool { return ds == nil })
	return got, nil
}

// dataURL builds a tabledap request: the variable list, then one
// percent-encoded constraint per bound.
func (r *Reader) dataURL(id string) string {
	var vars []string
	if len(r.variables) > 0 {
		vars = appendUnique([]string{"time", "latitude", "longitude"}, r.variables...)
	}
	parts := []string{strings.Join(vars, ",")}
	if r.hasKW {
		if r.approach == config.ApproachRegion {
			parts = append(parts,
				"longitude>="+formatFloat(r.kw.MinLon),
				"longitude<="+formatFloat(r.kw.MaxLon),
				"latitude>="+formatFloat(r.kw.MinLat),
				"latitude<="+formatFloat(r.kw.MaxLat),
			)
		}
		if !r.kw.MinTime.IsZero() {
			parts = append(parts, "time>="+r.kw.MinTime.UTC().Format(time.RFC3339))
		}
		if !r.kw.MaxTime.IsZero() {
			parts = append(parts, "time<="+r.kw.MaxTime.UTC().Format(time.RFC3339))
		}
	}
	u := r.server + "/tabledap/" + url.PathEscape(id) + ".csv"
	if len(parts) == 1 && parts[0] == "" {
		return u
	}
	for i, p := range parts {
		parts[i] = url.QueryEscape(p)
	}
	return u + "?" + strings.Join(parts, "&")
}

func appendUnique(dst []string, items ...string) []string {
	for _, s := range items {
		if !slices.Contains(dst, s) {
			dst = append(dst, s)
		}
	}
	return dst
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func parseFloat(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func (r *Reader) String() string {
	return fmt.Sprintf("erddap(%s)", r.server)
}
