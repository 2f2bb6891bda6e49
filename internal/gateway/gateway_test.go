package gateway

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	"oceangateway/internal/catalog"
	"oceangateway/internal/config"
	"oceangateway/internal/dataset"
	"oceangateway/internal/source"
)

// fakeReader counts calls and returns canned results.
type fakeReader struct {
	spec source.Spec

	mu        sync.Mutex
	dataCalls int
	failData  error
	data      map[string]dataset.Dataset
}

func (r *fakeReader) DatasetIDs(context.Context) ([]string, error) {
	ids, _ := r.spec.DatasetIDs()
	if ids == nil {
		ids = []string{r.spec.String("server") + "-ds"}
	}
	return ids, nil
}

func (r *fakeReader) Meta(ctx context.Context) (source.Meta, error) {
	ids, _ := r.DatasetIDs(ctx)
	m := source.Meta{}
	for _, id := range ids {
		m[id] = source.DatasetMeta{ID: id}
	}
	return m, nil
}

func (r *fakeReader) Data(context.Context) (map[string]dataset.Dataset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dataCalls++
	if r.failData != nil {
		return nil, r.failData
	}
	return r.data, nil
}

// fakeType records every reader it builds.
type fakeType struct {
	mu       sync.Mutex
	region   []*fakeReader
	stations []*fakeReader
	newData  func() map[string]dataset.Dataset
}

func (f *fakeType) build(spec source.Spec) *fakeReader {
	r := &fakeReader{spec: spec}
	if f.newData != nil {
		r.data = f.newData()
	}
	return r
}

func (f *fakeType) Region(spec source.Spec) (source.Reader, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.build(spec)
	f.region = append(f.region, r)
	return r, nil
}

func (f *fakeType) Stations(spec source.Spec) (source.Reader, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.build(spec)
	f.stations = append(f.stations, r)
	return r, nil
}

func (f *fakeType) built() int { return len(f.region) + len(f.stations) }

func testTable(servers, files *fakeType) source.Table {
	return source.Table{Version: 1, Definitions: []source.Definition{
		{Name: "server", OptionKey: "server", Options: []any{"ioos", "coastwatch", "neracoos"}, Type: servers},
		{Name: "files", Type: files},
	}}
}

func parse(t *testing.T, raw map[string]any, table source.Table) *config.Config {
	t.Helper()
	cfg, err := config.Parse(raw, table.Names())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return cfg
}

func TestExpandDefaults(t *testing.T) {
	table := testTable(&fakeType{}, &fakeType{})
	plans, err := Expand(parse(t, nil, table), table)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(plans) != 4 {
		t.Fatalf("got %d plans, want 3 server + 1 files", len(plans))
	}

	for i, want := range []string{"ioos", "coastwatch", "neracoos"} {
		p := plans[i]
		if p.Source != "server" || p.Index != i || p.Spec.String("server") != want {
			t.Errorf("plan %d = %s[%d] server=%q", i, p.Source, p.Index, p.Spec.String("server"))
		}
		for _, k := range []string{source.KeyVariables, source.KeyDatasetIDs} {
			if v, ok := p.Spec.Get(k); !ok || v != nil {
				t.Errorf("plan %d %s = %v, %v; want present and nil", i, k, v, ok)
			}
		}
		for _, k := range []string{config.KeyApproach, config.KeyKW, config.KeyParallel, config.KeyReaders} {
			if !p.Spec.Has(k) {
				t.Errorf("plan %d missing global %q", i, k)
			}
		}
	}
	if plans[3].Source != "files" || plans[3].Spec.Has("server") {
		t.Errorf("files plan = %+v", plans[3])
	}

	// IDs are distinct and stable.
	again, _ := Expand(parse(t, nil, table), table)
	for i := range plans {
		if plans[i].ID != again[i].ID {
			t.Errorf("plan %d ID changed between expansions", i)
		}
		for j := range i {
			if plans[i].ID == plans[j].ID {
				t.Errorf("plans %d and %d share an ID", i, j)
			}
		}
	}
}

func TestExpandPositionalPairing(t *testing.T) {
	table := testTable(&fakeType{}, &fakeType{})
	cfg := parse(t, map[string]any{
		"readers": []any{"server"},
		"server": map[string]any{
			"variables": []any{[]any{"temp"}, []any{"salt"}, []any{"ssh"}},
		},
	}, table)

	plans, err := Expand(cfg, table)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(plans) != 3 {
		t.Fatalf("got %d plans", len(plans))
	}
	for i, want := range []string{"temp", "salt", "ssh"} {
		vars, err := plans[i].Spec.Variables()
		if err != nil || !slices.Equal(vars, []string{want}) {
			t.Errorf("plan %d variables = %v, %v; want [%s]", i, vars, err, want)
		}
	}
}

func TestExpandOverrideReplacesDefaults(t *testing.T) {
	table := testTable(&fakeType{}, &fakeType{})
	cfg := parse(t, map[string]any{
		"readers": "server",
		"server":  map[string]any{"server": "https://example.org/erddap", "dataset_ids": "abc"},
	}, table)

	plans, err := Expand(cfg, table)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(plans) != 1 || plans[0].Spec.String("server") != "https://example.org/erddap" {
		t.Fatalf("plans = %+v", plans)
	}
	ids, _ := plans[0].Spec.DatasetIDs()
	if !slices.Equal(ids, []string{"abc"}) {
		t.Errorf("dataset_ids = %v", ids)
	}
}

func TestExpandMergePriority(t *testing.T) {
	table := testTable(&fakeType{}, &fakeType{})
	cfg := parse(t, map[string]any{
		"parallel": true,
		"files": map[string]any{
			"parallel":  false,
			"filenames": "*.csv",
			"variables": "temp",
		},
	}, table)

	plans, err := Expand(cfg, table)
	if err != nil {
		t.Fatal(err)
	}
	files := plans[len(plans)-1].Spec
	if files.Parallel() {
		t.Error("source option should override global parallel")
	}
	if files.String("filenames") != "*.csv" {
		t.Errorf("filenames = %q", files.String("filenames"))
	}
	vars, _ := files.Variables()
	if !slices.Equal(vars, []string{"temp"}) {
		t.Errorf("variables = %v", vars)
	}
	if !plans[0].Spec.Parallel() {
		t.Error("other sources keep the global parallel")
	}
}

func TestExpandRejects(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
		key  string
	}{
		{"length mismatch", map[string]any{"server": map[string]any{"variables": []any{"a", "b"}}}, "server.variables"},
		{"ids mismatch", map[string]any{"files": map[string]any{"dataset_ids": []any{"a", "b"}}}, "files.dataset_ids"},
		{"empty options", map[string]any{"server": map[string]any{"server": []any{}}}, "server.server"},
		{"source approach", map[string]any{"files": map[string]any{"approach": "stations"}}, "files.approach"},
		{"source kw out of range", map[string]any{
			"kw":    validKW,
			"files": map[string]any{"kw": map[string]any{"min_lon": 10, "max_lon": -10, "min_lat": 95, "max_lat": 99}},
		}, "files.kw"},
		{"source kw missing key", map[string]any{
			"server": map[string]any{"kw": map[string]any{"min_lon": 0, "max_lon": 1, "min_lat": 0}},
		}, "server.kw.max_lat"},
		{"source parallel type", map[string]any{"files": map[string]any{"parallel": "nope"}}, "files.parallel"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			servers, files := &fakeType{}, &fakeType{}
			table := testTable(servers, files)
			_, err := New(parse(t, tt.raw, table), table, Options{})
			var ce *config.Error
			if !errors.As(err, &ce) || ce.Key != tt.key {
				t.Fatalf("error = %v, want config error on %q", err, tt.key)
			}
			if servers.built()+files.built() != 0 {
				t.Error("readers were built before validation finished")
			}
		})
	}
}

var validKW = map[string]any{"min_lon": -124, "max_lon": -122, "min_lat": 36, "max_lat": 38}

func TestExpandSourceKWParsed(t *testing.T) {
	table := testTable(&fakeType{}, &fakeType{})
	cfg := parse(t, map[string]any{
		"kw":    validKW,
		"files": map[string]any{"kw": map[string]any{"min_lon": 0, "max_lon": 1, "min_lat": 0, "max_lat": 1}},
	}, table)
	plans, err := Expand(cfg, table)
	if err != nil {
		t.Fatal(err)
	}
	files := plans[len(plans)-1].Spec
	kw, ok, err := files.KW()
	if err != nil || !ok || kw.MaxLon != 1 || kw.MaxLat != 1 {
		t.Errorf("files KW = %+v, %v, %v", kw, ok, err)
	}
	if v, _ := files.Get("kw"); v != kw {
		t.Errorf("source kw stored as %T, want parsed", v)
	}
	kw, ok, err = plans[0].Spec.KW()
	if err != nil || !ok || kw.MinLon != -124 {
		t.Errorf("server KW = %+v, %v, %v", kw, ok, err)
	}
}

func TestExpandNoReaders(t *testing.T) {
	servers, files := &fakeType{}, &fakeType{}
	table := testTable(servers, files)
	plans, err := Expand(parse(t, map[string]any{"readers": []any{}}, table), table)
	if err != nil {
		t.Fatal(err)
	}
	if len(plans) != 0 {
		t.Errorf("got %d plans for an empty readers list", len(plans))
	}
}

func TestParseRejectsBeforeReaders(t *testing.T) {
	servers, files := &fakeType{}, &fakeType{}
	table := testTable(servers, files)
	for _, raw := range []map[string]any{
		{"bogus_key": 1},
		{"approach": "area"},
	} {
		if _, err := config.Parse(raw, table.Names()); !errors.Is(err, config.ErrInvalidConfig) {
			t.Errorf("Parse(%v) error = %v", raw, err)
		}
	}
	if servers.built()+files.built() != 0 {
		t.Error("no reader may exist after a rejected configuration")
	}
}

func TestNewDispatchesByApproach(t *testing.T) {
	servers, files := &fakeType{}, &fakeType{}
	table := testTable(servers, files)

	if _, err := New(parse(t, map[string]any{"approach": "stations"}, table), table, Options{Name: "test"}); err != nil {
		t.Fatal(err)
	}
	if len(servers.stations) != 3 || len(servers.region) != 0 || len(files.stations) != 1 {
		t.Errorf("stations=%d region=%d files=%d", len(servers.stations), len(servers.region), len(files.stations))
	}
}

func TestViewsOrderedAndMemoized(t *testing.T) {
	servers := &fakeType{newData: func() map[string]dataset.Dataset {
		return map[string]dataset.Dataset{"x": &dataset.Tabular{}}
	}}
	files := &fakeType{}
	table := testTable(servers, files)
	g, err := New(parse(t, nil, table), table, Options{Name: "memo"})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	ids, err := g.DatasetIDs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := [][]string{{"ioos-ds"}, {"coastwatch-ds"}, {"neracoos-ds"}, {"-ds"}}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v", ids)
	}
	for i := range want {
		if !slices.Equal(ids[i], want[i]) {
			t.Errorf("ids[%d] = %v, want %v", i, ids[i], want[i])
		}
	}

	meta, err := g.Meta(ctx)
	if err != nil || len(meta) != 4 || meta[1]["coastwatch-ds"].ID != "coastwatch-ds" {
		t.Errorf("meta = %v, %v", meta, err)
	}

	first, err := g.Data(ctx)
	if err != nil {
		t.Fatal(err)
	}
	second, err := g.Data(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if &first[0] != &second[0] {
		t.Error("Data should return the cached slice")
	}
	if first[3] == nil {
		t.Error("nil reader data should become an empty map")
	}
	for i, r := range servers.region {
		if r.dataCalls != 1 {
			t.Errorf("reader %d Data called %d times", i, r.dataCalls)
		}
	}
}

func TestReaderFailureNotCached(t *testing.T) {
	servers, files := &fakeType{}, &fakeType{}
	table := testTable(servers, files)
	g, err := New(parse(t, map[string]any{"readers": []any{"files"}}, table), table, Options{})
	if err != nil {
		t.Fatal(err)
	}
	boom := errors.New("boom")
	files.region[0].failData = boom

	_, err = g.Data(context.Background())
	var re *ReaderError
	if !errors.Is(err, boom) || !errors.As(err, &re) || re.Source != "files" || re.Op != "data" {
		t.Fatalf("error = %v", err)
	}

	files.region[0].failData = nil
	if _, err := g.Data(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if files.region[0].dataCalls != 2 {
		t.Errorf("Data calls = %d, want 2", files.region[0].dataCalls)
	}
}

func TestQCRunsOnce(t *testing.T) {
	cat, err := catalog.New([]catalog.Definition{
		{Name: "temp", Units: "degC", FailSpan: catalog.Span{0, 40}, SuspectSpan: catalog.Span{2, 38}},
	})
	if err != nil {
		t.Fatal(err)
	}
	files := &fakeType{newData: func() map[string]dataset.Dataset {
		tab := &dataset.Tabular{}
		_ = tab.AddColumn("temp", "degC", []float64{-1, 5, 39, 41})
		_ = tab.AddColumn("station_depth", "m", []float64{1, 1, 1, 1})
		return map[string]dataset.Dataset{"buoy": tab}
	}}
	table := testTable(&fakeType{}, files)
	g, err := New(parse(t, map[string]any{"readers": "files"}, table), table, Options{Catalog: cat, Name: "qc"})
	if err != nil {
		t.Fatal(err)
	}

	data, report, err := g.QC(context.Background())
	if err != nil {
		t.Fatalf("QC: %v", err)
	}
	ds := data[0]["buoy"]
	if !slices.Equal(ds.Names(), []string{"temp", "temp_qc"}) {
		t.Errorf("names = %v", ds.Names())
	}
	flags, _ := ds.Variable("temp_qc")
	if !slices.Equal(flags.Values, []float64{4, 1, 3, 4}) {
		t.Errorf("flags = %v", flags.Values)
	}
	if report.Session != "qc" || len(report.Results) != 1 {
		t.Errorf("report = %+v", report)
	}

	// The pass mutated the cached data in place and does not run twice.
	cached, _ := g.Data(context.Background())
	if !slices.Equal(cached[0]["buoy"].Names(), []string{"temp", "temp_qc"}) {
		t.Errorf("cached data not flagged: %v", cached[0]["buoy"].Names())
	}
	_, again, err := g.QC(context.Background())
	if err != nil || len(again.Results) != 1 {
		t.Errorf("second QC = %+v, %v", again, err)
	}
}
