package qc

import (
	"errors"
	"math"
	"slices"
	"testing"

	"oceangateway/internal/catalog"
	"oceangateway/internal/dataset"
	"oceangateway/internal/units"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New([]catalog.Definition{
		{Name: "temp", Units: "degC", FailSpan: catalog.Span{0, 40}, SuspectSpan: catalog.Span{2, 38}},
		{Name: "salt", Units: "psu", FailSpan: catalog.Span{-10, 60}, SuspectSpan: catalog.Span{-1, 45},
			Patterns: []string{`(?i)^(sea_water_practical_salinity|sal)$`}},
	})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return c
}

func column(t *testing.T, ds dataset.Dataset, name string) dataset.Variable {
	t.Helper()
	v, ok := ds.Variable(name)
	if !ok {
		t.Fatalf("variable %q missing (have %v)", name, ds.Names())
	}
	return v
}

func TestGrossRange(t *testing.T) {
	fail, suspect := catalog.Span{0, 40}, catalog.Span{2, 38}

	got := GrossRange([]float64{-1, 5, 39, 41}, fail, suspect)
	want := []Flag{FlagFail, FlagGood, FlagSuspect, FlagFail}
	if !slices.Equal(got, want) {
		t.Errorf("GrossRange = %v, want %v", got, want)
	}

	// Bounds are inclusive, and severity never decreases moving outward.
	got = GrossRange([]float64{20, 38, 38.5, 40, 40.5, 2, 1.5, 0, -0.5}, fail, suspect)
	want = []Flag{FlagGood, FlagGood, FlagSuspect, FlagSuspect, FlagFail, FlagGood, FlagSuspect, FlagSuspect, FlagFail}
	if !slices.Equal(got, want) {
		t.Errorf("boundaries = %v, want %v", got, want)
	}

	got = GrossRange([]float64{math.NaN(), math.Inf(1), math.Inf(-1)}, fail, suspect)
	for i, f := range got {
		if f != FlagMissing {
			t.Errorf("non-finite value %d flagged %v", i, f)
		}
	}
}

func TestApplyTabularConvertsAndFlags(t *testing.T) {
	tab := &dataset.Tabular{}
	_ = tab.AddColumn("temp", "degF", []float64{41, 102, math.NaN()})
	_ = tab.AddColumn("sal", "1e-3", []float64{35, 50, 70})
	_ = tab.AddColumn("depth", "m", []float64{1, 2, 3})

	p := New(testCatalog(t), nil)
	out, results, err := p.Apply("ds1", tab)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	want := []string{"sal", "temp", "sal_qc", "temp_qc"}
	if !slices.Equal(out.Names(), want) {
		t.Errorf("names = %v, want %v", out.Names(), want)
	}

	temp := column(t, out, "temp")
	if temp.Units() != "degC" {
		t.Errorf("temp units = %q, want degC", temp.Units())
	}
	if math.Abs(temp.Values[0]-5) > 1e-9 || math.Abs(temp.Values[1]-38.888888888889) > 1e-6 {
		t.Errorf("converted temp = %v", temp.Values)
	}
	flags := column(t, out, "temp_qc")
	if !slices.Equal(flags.Values, []float64{1, 3, 9}) {
		t.Errorf("temp_qc = %v", flags.Values)
	}
	if flags.Attrs["flag_meanings"] == "" {
		t.Error("flag attributes missing")
	}

	sal := column(t, out, "sal")
	if sal.Units() != "psu" {
		t.Errorf("salinity units = %q, want psu after rewrite", sal.Units())
	}
	if !slices.Equal(sal.Values, []float64{35, 50, 70}) {
		t.Errorf("salinity values changed: %v", sal.Values)
	}
	if got := column(t, out, "sal_qc").Values; !slices.Equal(got, []float64{1, 3, 4}) {
		t.Errorf("sal_qc = %v", got)
	}

	// The input dataset is not modified.
	if _, ok := tab.Variable("temp_qc"); ok {
		t.Error("Apply modified its input")
	}

	if len(results) != 2 || results[1].Generic != "temp" || results[1].Good != 1 || results[1].Missing != 1 {
		t.Errorf("results = %+v", results)
	}
}

func TestApplyCanonicalUnitsUnchanged(t *testing.T) {
	tab := &dataset.Tabular{}
	in := []float64{12.25, 13.5, 40.0001}
	_ = tab.AddColumn("temp", "degree_Celsius", slices.Clone(in))

	out, _, err := New(testCatalog(t), nil).Apply("ds", tab)
	if err != nil {
		t.Fatal(err)
	}
	if got := column(t, out, "temp").Values; !slices.Equal(got, in) {
		t.Errorf("values = %v, want %v unchanged", got, in)
	}
}

func TestApplyOnlyRewritesExactAlias(t *testing.T) {
	tab := &dataset.Tabular{}
	_ = tab.AddColumn("sal", "0.001", []float64{35})

	_, _, err := New(testCatalog(t), nil).Apply("ds", tab)
	if !errors.Is(err, units.ErrIncompatible) {
		t.Errorf("error = %v, want ErrIncompatible", err)
	}
}

func TestApplyZeroMatchPassesThrough(t *testing.T) {
	tab := &dataset.Tabular{}
	_ = tab.AddColumn("wind_speed", "m/s", []float64{3})

	out, results, err := New(testCatalog(t), nil).Apply("ds", tab)
	if err != nil {
		t.Fatal(err)
	}
	if out != dataset.Dataset(tab) || results != nil {
		t.Errorf("expected the same dataset back, got %v, %v", out, results)
	}
	if slices.Contains(out.Names(), "wind_speed_qc") {
		t.Error("unexpected flag column")
	}
}

func TestAmbiguousMatchExcluded(t *testing.T) {
	tab := &dataset.Tabular{}
	_ = tab.AddColumn("temp_air", "degC", []float64{3})
	_ = tab.AddColumn("temp_water", "degC", []float64{4})
	_ = tab.AddColumn("sal", "psu", []float64{30})

	p := New(testCatalog(t), nil)
	m := p.Match(tab)
	if len(m) != 1 || m["salt"] != "sal" {
		t.Errorf("Match = %v", m)
	}
}

func TestIncompatibleUnitsFail(t *testing.T) {
	tab := &dataset.Tabular{}
	_ = tab.AddColumn("temp", "m", []float64{3})

	_, _, err := New(testCatalog(t), nil).Apply("ds", tab)
	var ce *units.ConversionError
	if !errors.As(err, &ce) || !errors.Is(err, units.ErrIncompatible) {
		t.Errorf("error = %v, want ConversionError", err)
	}
}

func TestApplyGridded(t *testing.T) {
	g := &dataset.Gridded{
		Dims: []dataset.Dim{{Name: "time", Size: 2}, {Name: "z", Size: 2}},
		Vars: []dataset.Variable{
			{Name: "TEMP1", Dims: []string{"time", "z"}, Values: []float64{1, 5, 39, 41},
				Attrs: map[string]string{"units": "degC", "standard_name": "temp"}},
			{Name: "TEMP2", Dims: []string{"time", "z"}, Values: []float64{0, 0, 0, 0},
				Attrs: map[string]string{"units": "degC", "standard_name": "temp"}},
			{Name: "S", Dims: []string{"z"}, Values: []float64{30, 31},
				Attrs: map[string]string{"units": "1e-3", "standard_name": "sea_water_practical_salinity"}},
		},
	}

	out, _, err := New(testCatalog(t), nil).Apply("grid", g)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !slices.Equal(out.Names(), []string{"S", "TEMP1", "S_qc", "TEMP1_qc"}) {
		t.Errorf("names = %v", out.Names())
	}
	tq := column(t, out, "TEMP1_qc")
	if !slices.Equal(tq.Dims, []string{"time", "z"}) || !slices.Equal(tq.Values, []float64{3, 1, 3, 4}) {
		t.Errorf("TEMP1_qc = %+v", tq)
	}
	if sq := column(t, out, "S_qc"); !slices.Equal(sq.Dims, []string{"z"}) {
		t.Errorf("S_qc dims = %v", sq.Dims)
	}
}

func TestRunReplacesInPlace(t *testing.T) {
	a := &dataset.Tabular{}
	_ = a.AddColumn("temp", "degC", []float64{-1, 5, 39, 41})
	b := &dataset.Tabular{}
	_ = b.AddColumn("pressure", "dbar", []float64{1})

	data := map[string]dataset.Dataset{"a": a, "b": b}
	report, err := New(testCatalog(t), nil).Run(data)
	if err != nil {
		t.Fatal(err)
	}
	if got := column(t, data["a"], "temp_qc").Values; !slices.Equal(got, []float64{4, 1, 3, 4}) {
		t.Errorf("a temp_qc = %v", got)
	}
	if data["b"] != dataset.Dataset(b) {
		t.Error("unmatched dataset should be untouched")
	}
	if report.Count(FlagFail) != 2 || report.Count(FlagGood) != 1 || len(report.Results) != 1 {
		t.Errorf("report = %+v", report)
	}

	var merged Report
	merged.Merge(3, report)
	if merged.Results[0].Source != 3 || merged.Results[0].Total() != 4 {
		t.Errorf("merged = %+v", merged)
	}
}
