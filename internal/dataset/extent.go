package dataset

import (
	"math"
	"strings"
	"time"
)

// Extent is the spatial and temporal coverage of a dataset.
type Extent struct {
	MinLon, MaxLon float64
	MinLat, MaxLat float64
	Start, End     time.Time
	HasBBox        bool
	HasTime        bool
}

func isLon(v Variable) bool {
	n := strings.ToLower(v.Name)
	return v.StandardName() == "longitude" || n == "lon" || n == "longitude"
}

func isLat(v Variable) bool {
	n := strings.ToLower(v.Name)
	return v.StandardName() == "latitude" || n == "lat" || n == "latitude"
}

func finiteRange(values []float64) (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		lo, hi, ok = min(lo, v), max(hi, v), true
	}
	return lo, hi, ok
}

// ExtentOf computes the coverage of ds from its latitude, longitude and
// time variables. Gridded time coordinates must be in "seconds since
// 1970-01-01" to count.
func ExtentOf(ds Dataset) Extent {
	var vars []Variable
	var times []time.Time
	switch d := ds.(type) {
	case *Tabular:
		vars = d.Columns
		times = d.Time
	case *Gridded:
		vars = append(append(vars, d.Coords...), d.Vars...)
		for _, c := range d.Coords {
			if strings.EqualFold(c.Name, "time") && strings.HasPrefix(c.Units(), "seconds since 1970-01-01") {
				for _, s := range c.Values {
					if !math.IsNaN(s) {
						times = append(times, time.Unix(0, int64(s*1e9)).UTC())
					}
				}
			}
		}
	}

	var e Extent
	lonOK, latOK := false, false
	for _, v := range vars {
		switch {
		case isLon(v) && !lonOK:
			e.MinLon, e.MaxLon, lonOK = finiteRange(v.Values)
		case isLat(v) && !latOK:
			e.MinLat, e.MaxLat, latOK = finiteRange(v.Values)
		}
	}
	e.HasBBox = lonOK && latOK
	if !e.HasBBox {
		e.MinLon, e.MaxLon, e.MinLat, e.MaxLat = 0, 0, 0, 0
	}
	for i, ts := range times {
		if i == 0 || ts.Before(e.Start) {
			e.Start = ts
		}
		if i == 0 || ts.After(e.End) {
			e.End = ts
		}
	}
	e.HasTime = len(times) > 0
	return e
}
