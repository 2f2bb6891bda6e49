// Package units parses CF/UDUNITS-style unit strings and converts values
// between compatible units.
//
// A Unit is a scale and offset onto SI base units plus a dimension vector.
// Practical salinity is its own dimension, so "psu" and the bare factor
// "1e-3" that some servers report for salinity are not interchangeable.
package units

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	// ErrUnknownUnit reports a unit string that cannot be parsed.
	ErrUnknownUnit = errors.New("unknown unit")

	// ErrIncompatible reports a conversion between different dimensions.
	ErrIncompatible = errors.New("incompatible units")
)

// ConversionError describes a failed conversion.
type ConversionError struct {
	From string
	To   string
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("cannot convert from %q to %q: %v", e.From, e.To, ErrIncompatible)
}

func (e *ConversionError) Unwrap() error { return ErrIncompatible }

const (
	dimLength = iota
	dimMass
	dimTime
	dimTemperature
	dimSalinity
	dimAngle
	numDims
)

type dims [numDims]int8

// Unit is a parsed unit.
type Unit struct {
	symbol string
	scale  float64
	offset float64
	dims   dims
}

// String returns the unit as it was written.
func (u Unit) String() string { return u.symbol }

// Dimensionless reports whether u has no dimension.
func (u Unit) Dimensionless() bool { return u.dims == dims{} }

// Compatible reports whether values in u can be converted to o.
func (u Unit) Compatible(o Unit) bool { return u.dims == o.dims }

// Equal reports whether u and o denote the same unit, regardless of
// spelling ("degC" and "degree_Celsius" are equal).
func (u Unit) Equal(o Unit) bool {
	return u.dims == o.dims && approx(u.scale, o.scale) && approx(u.offset, o.offset)
}

func approx(a, b float64) bool {
	if a == b {
		return true
	}
	return math.Abs(a-b) <= 1e-12*math.Max(math.Abs(a), math.Abs(b))
}

// factor matches one term of a compound unit: a symbol with an optional
// integer exponent, e.g. "m", "s-1", "m^2", "m2".
var factor = regexp.MustCompile(`^([A-Za-z_%]+?)\^?(-?\d+)?$`)

// Parse parses a unit string. The empty string is dimensionless.
func Parse(s string) (Unit, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Unit{scale: 1}, nil
	}
	if u, ok := symbols[s]; ok {
		u.symbol = s
		return u, nil
	}

	u := Unit{symbol: s, scale: 1}
	expr := strings.ReplaceAll(s, "**", "^")
	for i, part := range strings.Split(expr, "/") {
		sign := 1
		if i > 0 {
			sign = -1
		}
		terms := splitTerms(part)
		if len(terms) == 0 {
			return Unit{}, fmt.Errorf("%w: %q", ErrUnknownUnit, s)
		}
		for _, term := range terms {
			if x, err := strconv.ParseFloat(term, 64); err == nil {
				u.scale *= math.Pow(x, float64(sign))
				continue
			}
			m := factor.FindStringSubmatch(term)
			if m == nil {
				return Unit{}, fmt.Errorf("%w: %q in %q", ErrUnknownUnit, term, s)
			}
			base, ok := symbols[m[1]]
			if !ok {
				return Unit{}, fmt.Errorf("%w: %q in %q", ErrUnknownUnit, m[1], s)
			}
			if base.offset != 0 {
				return Unit{}, fmt.Errorf("%w: offset unit %q cannot be combined in %q", ErrUnknownUnit, m[1], s)
			}
			exp := 1
			if m[2] != "" {
				exp, _ = strconv.Atoi(m[2])
			}
			exp *= sign
			u.scale *= math.Pow(base.scale, float64(exp))
			for d := range base.dims {
				u.dims[d] += base.dims[d] * int8(exp)
			}
		}
	}
	return u, nil
}

// splitTerms splits a product on spaces and '*', and on the UDUNITS '.'
// operator where the term is not a number ("m.s-1").
func splitTerms(part string) []string {
	var terms []string
	for _, t := range strings.FieldsFunc(part, func(r rune) bool { return r == ' ' || r == '*' }) {
		if _, err := strconv.ParseFloat(t, 64); err == nil || !strings.Contains(t, ".") {
			terms = append(terms, t)
			continue
		}
		for _, sub := range strings.Split(t, ".") {
			if sub != "" {
				terms = append(terms, sub)
			}
		}
	}
	return terms
}

// MustParse is Parse for known-good constants.
func MustParse(s string) Unit {
	u, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return u
}

// Convert returns values expressed in from converted to to.
// NaN stays NaN.
func Convert(values []float64, from, to Unit) ([]float64, error) {
	if !from.Compatible(to) {
		return nil, &ConversionError{From: from.symbol, To: to.symbol}
	}
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = (v*from.scale + from.offset - to.offset) / to.scale
	}
	return out, nil
}
