package export

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"oceangateway/internal/dataset"

	"github.com/klauspost/compress/zstd"
)

const gridJSON = `{
  "dimensions": {"time": 1},
  "variables": {
    "time": {"shape": ["time"], "attributes": {"units": "seconds since 1970-01-01"}, "data": [1617235200]},
    "t": {"shape": ["time"], "attributes": {"standard_name": "sea_water_temperature", "units": "degC"}, "data": [12]}
  }
}`

func tabular(t *testing.T) *dataset.Tabular {
	t.Helper()
	tab := &dataset.Tabular{Time: []time.Time{
		time.Date(2021, 4, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2021, 4, 1, 1, 0, 0, 0, time.UTC),
	}}
	if err := tab.AddColumn("sea_water_temperature", "degC", []float64{11.2, 11.4}); err != nil {
		t.Fatal(err)
	}
	if err := tab.AddColumn("sea_water_temperature_qc", "", []float64{1, 3}); err != nil {
		t.Fatal(err)
	}
	return tab
}

func gridded(t *testing.T) *dataset.Gridded {
	t.Helper()
	g, err := dataset.ReadCFJSON(strings.NewReader(gridJSON))
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestWriteFormats(t *testing.T) {
	for _, f := range Formats {
		t.Run(string(f), func(t *testing.T) {
			dir := t.TempDir()
			paths, err := New(dir, f, nil).Write("erddap-0", map[string]dataset.Dataset{
				"station/a": tabular(t),
				"model":     gridded(t),
			})
			if err != nil {
				t.Fatal(err)
			}
			want := []string{
				filepath.Join(dir, "erddap-0", "model.json"),
				filepath.Join(dir, "erddap-0", "station_a."+string(f)),
			}
			if len(paths) != 2 || paths[0] != want[0] || paths[1] != want[1] {
				t.Fatalf("paths = %v, want %v", paths, want)
			}
			got := readBack(t, f, paths[1])
			qc, ok := got.Variable("sea_water_temperature_qc")
			if !ok || len(qc.Values) != 2 || qc.Values[1] != 3 {
				t.Errorf("qc column = %+v", qc)
			}
			if _, err := os.Stat(paths[1] + ".tmp"); !errors.Is(err, os.ErrNotExist) {
				t.Error("temp file left behind")
			}
		})
	}
}

func readBack(t *testing.T, f Format, path string) *dataset.Tabular {
	t.Helper()
	fh, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer fh.Close()

	var tab *dataset.Tabular
	switch f {
	case FormatParquet:
		tab, err = dataset.ReadParquet(context.Background(), fh)
	case FormatCSV:
		tab, err = dataset.ReadCSV(fh, dataset.CSVOptions{})
	case FormatCSVZstd:
		zr, zerr := zstd.NewReader(fh)
		if zerr != nil {
			t.Fatal(zerr)
		}
		defer zr.Close()
		tab, err = dataset.ReadCSV(zr, dataset.CSVOptions{})
	}
	if err != nil {
		t.Fatal(err)
	}
	return tab
}

func TestWriteAll(t *testing.T) {
	dir := t.TempDir()
	e := New(dir, FormatCSV, nil)
	paths, err := e.WriteAll([]string{"local-0", "local-1"}, []map[string]dataset.Dataset{
		{"a": tabular(t)},
		{"b": tabular(t)},
	})
	if err != nil || len(paths) != 2 {
		t.Fatalf("paths = %v, err = %v", paths, err)
	}
	if _, err := e.WriteAll([]string{"x"}, nil); err == nil {
		t.Error("mismatched labels accepted")
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat(" Parquet "); err != nil || f != FormatParquet {
		t.Errorf("ParseFormat = %q, %v", f, err)
	}
	if _, err := ParseFormat("xlsx"); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("err = %v", err)
	}
}

func TestFileName(t *testing.T) {
	cases := map[string]string{
		"edu_usf_marine_comps_c10": "edu_usf_marine_comps_c10",
		"a/b:c":                    "a_b_c",
		"..":                       "_",
		"":                         "_",
	}
	for in, want := range cases {
		if got := fileName(in); got != want {
			t.Errorf("fileName(%q) = %q, want %q", in, got, want)
		}
	}
}
