package axds

import (
	"encoding/json"
	"fmt"
	"time"

	"oceangateway/internal/dataset"

	"github.com/theory/jsonpath"
)

// resultPaths locates the fields of one search result.
type resultPaths struct {
	id, title  *jsonpath.Path
	start, end *jsonpath.Path
	minLon     *jsonpath.Path
	maxLon     *jsonpath.Path
	minLat     *jsonpath.Path
	maxLat     *jsonpath.Path
	variables  *jsonpath.Path
	dataURL    *jsonpath.Path
}

var resultsPath = jsonpath.MustParse("$.results[*]")

func common(variables, dataURL string) resultPaths {
	return resultPaths{
		id:        jsonpath.MustParse("$.uuid"),
		title:     jsonpath.MustParse("$.label"),
		start:     jsonpath.MustParse("$.start_date_time"),
		end:       jsonpath.MustParse("$.end_date_time"),
		minLon:    jsonpath.MustParse("$.data.geospatial_lon_min"),
		maxLon:    jsonpath.MustParse("$.data.geospatial_lon_max"),
		minLat:    jsonpath.MustParse("$.data.geospatial_lat_min"),
		maxLat:    jsonpath.MustParse("$.data.geospatial_lat_max"),
		variables: jsonpath.MustParse(variables),
		dataURL:   jsonpath.MustParse(dataURL),
	}
}

var pathsByType = map[string]resultPaths{
	TypePlatform:   common("$.data.variables[*].name", "$.source.files['data.csv.gz'].url"),
	TypeLayerGroup: common("$.data.layers[*].standard_name", "$.data.cf_json_url"),
}

// result is one search hit reduced to what the reader needs.
type result struct {
	ID        string    `msgpack:"id"`
	Title     string    `msgpack:"title"`
	DataURL   string    `msgpack:"data_url"`
	Start     time.Time `msgpack:"start"`
	End       time.Time `msgpack:"end"`
	HasBBox   bool      `msgpack:"has_bbox"`
	MinLon    float64   `msgpack:"min_lon"`
	MaxLon    float64   `msgpack:"max_lon"`
	MinLat    float64   `msgpack:"min_lat"`
	MaxLat    float64   `msgpack:"max_lat"`
	Variables []string  `msgpack:"variables"`
}

func firstString(p *jsonpath.Path, node any) string {
	for _, v := range p.Select(node) {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func firstFloat(p *jsonpath.Path, node any) (float64, bool) {
	for _, v := range p.Select(node) {
		switch f := v.(type) {
		case float64:
			return f, true
		case json.Number:
			x, err := f.Float64()
			return x, err == nil
		}
	}
	return 0, false
}

func allStrings(p *jsonpath.Path, node any) []string {
	var out []string
	for _, v := range p.Select(node) {
		if s, ok := v.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

// parseResults extracts every hit from a search response body. Hits
// without an id or data URL are dropped.
func parseResults(body []byte, p resultPaths) ([]result, error) {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	var out []result
	for _, node := range resultsPath.Select(doc) {
		r := result{
			ID:        firstString(p.id, node),
			Title:     firstString(p.title, node),
			DataURL:   firstString(p.dataURL, node),
			Variables: allStrings(p.variables, node),
		}
		if r.ID == "" || r.DataURL == "" {
			continue
		}
		if ts, err := dataset.ParseTime(firstString(p.start, node)); err == nil {
			r.Start = ts
		}
		if ts, err := dataset.ParseTime(firstString(p.end, node)); err == nil {
			r.End = ts
		}
		w, okW := firstFloat(p.minLon, node)
		e, okE := firstFloat(p.maxLon, node)
		s, okS := firstFloat(p.minLat, node)
		n, okN := firstFloat(p.maxLat, node)
		if okW && okE && okS && okN {
			r.HasBBox = true
			r.MinLon, r.MaxLon, r.MinLat, r.MaxLat = w, e, s, n
		}
		out = append(out, r)
	}
	return out, nil
}
