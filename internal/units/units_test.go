package units

import (
	"errors"
	"math"
	"testing"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestParse(t *testing.T) {
	tests := []struct {
		in    string
		scale float64
		dims  dims
	}{
		{"m", 1, length},
		{"cm s-1", 0.01, speed},
		{"m/s", 1, speed},
		{"m s-1", 1, speed},
		{"m.s-1", 1, speed},
		{"m s^-1", 1, speed},
		{"m**2", 1, dims{dimLength: 2}},
		{"1e-3", 0.001, none},
		{"1", 1, none},
		{"", 1, none},
		{"psu", 1, salinity},
		{"PSS-78", 1, salinity},
		{"degrees_north", math.Pi / 180, angle},
		{"dbar", 1e4, pressure},
		{"knots", 1852.0 / 3600.0, speed},
		{"kg m-3", 1, dims{dimMass: 1, dimLength: -3}},
	}
	for _, tt := range tests {
		u, err := Parse(tt.in)
		if err != nil {
			t.Errorf("Parse(%q): %v", tt.in, err)
			continue
		}
		if !near(u.scale, tt.scale) || u.dims != tt.dims {
			t.Errorf("Parse(%q) = scale %v dims %v, want %v %v", tt.in, u.scale, u.dims, tt.scale, tt.dims)
		}
		if u.String() != tt.in {
			t.Errorf("Parse(%q).String() = %q", tt.in, u.String())
		}
	}
}

func TestParseErrors(t *testing.T) {
	for _, in := range []string{"furlongs", "m/", "degC/s", "m s-x"} {
		if _, err := Parse(in); !errors.Is(err, ErrUnknownUnit) {
			t.Errorf("Parse(%q) error = %v, want ErrUnknownUnit", in, err)
		}
	}
}

func TestConvert(t *testing.T) {
	tests := []struct {
		from, to string
		in, want float64
	}{
		{"degC", "K", 0, 273.15},
		{"K", "degree_Celsius", 300, 26.85},
		{"degF", "degC", 212, 100},
		{"degF", "degC", 32, 0},
		{"cm/s", "m s-1", 150, 1.5},
		{"knots", "m/s", 1, 0.514444444},
		{"ft", "m", 10, 3.048},
		{"dbar", "Pa", 1, 1e4},
		{"psu", "PSU", 35, 35},
	}
	for _, tt := range tests {
		out, err := Convert([]float64{tt.in}, MustParse(tt.from), MustParse(tt.to))
		if err != nil {
			t.Errorf("Convert %s->%s: %v", tt.from, tt.to, err)
			continue
		}
		if math.Abs(out[0]-tt.want) > 1e-6 {
			t.Errorf("Convert %v %s->%s = %v, want %v", tt.in, tt.from, tt.to, out[0], tt.want)
		}
	}
}

func TestConvertIncompatible(t *testing.T) {
	_, err := Convert([]float64{35}, MustParse("1e-3"), MustParse("psu"))
	if !errors.Is(err, ErrIncompatible) {
		t.Fatalf("error = %v, want ErrIncompatible", err)
	}
	var ce *ConversionError
	if !errors.As(err, &ce) {
		t.Fatalf("error %T is not *ConversionError", err)
	}
	if ce.From != "1e-3" || ce.To != "psu" {
		t.Errorf("ConversionError = %+v", ce)
	}
}

func TestConvertKeepsNaN(t *testing.T) {
	out, err := Convert([]float64{math.NaN(), 1}, MustParse("m"), MustParse("cm"))
	if err != nil {
		t.Fatal(err)
	}
	if !math.IsNaN(out[0]) || out[1] != 100 {
		t.Errorf("out = %v", out)
	}
}

func TestEqual(t *testing.T) {
	if !MustParse("degC").Equal(MustParse("degree_Celsius")) {
		t.Error("degC should equal degree_Celsius")
	}
	if !MustParse("m/s").Equal(MustParse("m s-1")) {
		t.Error("m/s should equal m s-1")
	}
	if MustParse("degC").Equal(MustParse("K")) {
		t.Error("degC should not equal K")
	}
	if MustParse("1e-3").Equal(MustParse("psu")) {
		t.Error("1e-3 should not equal psu")
	}
}

func TestQuantityRoundTrip(t *testing.T) {
	values := []float64{1.5, -2, math.Inf(1)}
	q, err := Quantify(values, "degC")
	if err != nil {
		t.Fatal(err)
	}
	got, unit := q.Dequantify()
	if unit != "degC" {
		t.Errorf("unit = %q, want degC", unit)
	}
	for i := range values {
		if got[i] != values[i] {
			t.Errorf("value %d = %v, want %v", i, got[i], values[i])
		}
	}
}

func TestQuantityTo(t *testing.T) {
	q, err := Quantify([]float64{10, 20}, "cm")
	if err != nil {
		t.Fatal(err)
	}
	m, err := q.To(MustParse("m"))
	if err != nil {
		t.Fatal(err)
	}
	vals, unit := m.Dequantify()
	if unit != "m" || !near(vals[0], 0.1) || !near(vals[1], 0.2) {
		t.Errorf("To(m) = %v %s", vals, unit)
	}
	if q.Values[0] != 10 {
		t.Error("To must not modify the source quantity")
	}

	if _, err := Quantify(nil, "bogus"); !errors.Is(err, ErrUnknownUnit) {
		t.Errorf("Quantify(bogus) error = %v", err)
	}
}
