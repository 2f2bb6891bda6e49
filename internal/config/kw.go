package config

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Keys accepted inside "kw".
const (
	kwMinLon  = "min_lon"
	kwMaxLon  = "max_lon"
	kwMinLat  = "min_lat"
	kwMaxLat  = "max_lat"
	kwMinTime = "min_time"
	kwMaxTime = "max_time"
)

var kwKeys = []string{kwMinLon, kwMaxLon, kwMinLat, kwMaxLat, kwMinTime, kwMaxTime}

// KW is a bounding box plus an optional time range. Zero times mean the
// range is open on that side.
type KW struct {
	MinLon, MaxLon float64
	MinLat, MaxLat float64
	MinTime        time.Time
	MaxTime        time.Time
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-1-2",
}

// ParseKW validates a "kw" mapping. All four bounding box keys are required.
func ParseKW(v any) (KW, error) {
	m, ok := Normalize(v).(map[string]any)
	if !ok {
		return KW{}, errorf(KeyKW, "must be a mapping, got %T", v)
	}
	for _, k := range slices.Sorted(maps.Keys(m)) {
		if !slices.Contains(kwKeys, k) {
			return KW{}, errorf(KeyKW+"."+k, "unknown key (accepted: %s)", strings.Join(kwKeys, ", "))
		}
	}

	var kw KW
	for key, dst := range map[string]*float64{
		kwMinLon: &kw.MinLon, kwMaxLon: &kw.MaxLon,
		kwMinLat: &kw.MinLat, kwMaxLat: &kw.MaxLat,
	} {
		raw, ok := m[key]
		if !ok {
			return KW{}, errorf(KeyKW+"."+key, "required")
		}
		f, err := toFloat(raw)
		if err != nil {
			return KW{}, errorf(KeyKW+"."+key, "%v", err)
		}
		*dst = f
	}
	for key, dst := range map[string]*time.Time{kwMinTime: &kw.MinTime, kwMaxTime: &kw.MaxTime} {
		raw, ok := m[key]
		if !ok || raw == nil {
			continue
		}
		t, err := toTime(raw)
		if err != nil {
			return KW{}, errorf(KeyKW+"."+key, "%v", err)
		}
		*dst = t
	}

	switch {
	case kw.MinLat > kw.MaxLat:
		return KW{}, errorf(KeyKW, "min_lat %g exceeds max_lat %g", kw.MinLat, kw.MaxLat)
	case kw.MinLat < -90 || kw.MaxLat > 90:
		return KW{}, errorf(KeyKW, "latitude outside [-90, 90]")
	case kw.MinLon > kw.MaxLon:
		return KW{}, errorf(KeyKW, "min_lon %g exceeds max_lon %g", kw.MinLon, kw.MaxLon)
	case !kw.MinTime.IsZero() && !kw.MaxTime.IsZero() && kw.MinTime.After(kw.MaxTime):
		return KW{}, errorf(KeyKW, "min_time is after max_time")
	}
	return kw, nil
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", x)
		}
		return f, nil
	}
	return 0, fmt.Errorf("not a number: %v (%T)", v, v)
}

func toTime(v any) (time.Time, error) {
	switch x := v.(type) {
	case time.Time:
		return x.UTC(), nil
	case string:
		s := strings.TrimSpace(x)
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("unrecognized time %q", x)
	}
	return time.Time{}, fmt.Errorf("not a time: %v (%T)", v, v)
}

// HasTime reports whether either end of the time range is set.
func (k KW) HasTime() bool { return !k.MinTime.IsZero() || !k.MaxTime.IsZero() }

// ContainsPoint reports whether (lon, lat) lies inside the box, inclusive.
func (k KW) ContainsPoint(lon, lat float64) bool {
	return lon >= k.MinLon && lon <= k.MaxLon && lat >= k.MinLat && lat <= k.MaxLat
}

// Intersects reports whether the box overlaps [minLon,maxLon]x[minLat,maxLat].
func (k KW) Intersects(minLon, maxLon, minLat, maxLat float64) bool {
	return minLon <= k.MaxLon && maxLon >= k.MinLon && minLat <= k.MaxLat && maxLat >= k.MinLat
}

// Overlaps reports whether [start, end] overlaps the time range.
func (k KW) Overlaps(start, end time.Time) bool {
	if !k.MinTime.IsZero() && end.Before(k.MinTime) {
		return false
	}
	if !k.MaxTime.IsZero() && start.After(k.MaxTime) {
		return false
	}
	return true
}

// Map renders k in its raw form, times as RFC 3339.
func (k KW) Map() map[string]any {
	m := map[string]any{
		kwMinLon: k.MinLon, kwMaxLon: k.MaxLon,
		kwMinLat: k.MinLat, kwMaxLat: k.MaxLat,
	}
	if !k.MinTime.IsZero() {
		m[kwMinTime] = k.MinTime.Format(time.RFC3339)
	}
	if !k.MaxTime.IsZero() {
		m[kwMaxTime] = k.MaxTime.Format(time.RFC3339)
	}
	return m
}
