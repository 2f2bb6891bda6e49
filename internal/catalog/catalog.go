// Package catalog holds the variable catalog: generic variable names mapped
// to a canonical unit and the acceptable-value spans used by the gross
// range test.
//
// A Catalog is immutable once built and safe for concurrent use.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"oceangateway/internal/units"
)

// ErrInvalidDefinition reports a catalog entry that fails validation.
var ErrInvalidDefinition = errors.New("invalid variable definition")

// Span is an inclusive [low, high] range.
type Span [2]float64

// Low returns the lower bound.
func (s Span) Low() float64 { return s[0] }

// High returns the upper bound.
func (s Span) High() float64 { return s[1] }

// Contains reports whether low <= x <= high. NaN is never contained.
func (s Span) Contains(x float64) bool { return x >= s[0] && x <= s[1] }

// Within reports whether s lies inside outer.
func (s Span) Within(outer Span) bool { return s[0] >= outer[0] && s[1] <= outer[1] }

// Definition is one catalog entry.
type Definition struct {
	Name        string
	Units       string
	FailSpan    Span
	SuspectSpan Span

	// Patterns are regular expressions matched against candidate variable
	// names. Without patterns, a candidate matches when it contains Name,
	// ignoring case.
	Patterns []string

	unit     units.Unit
	compiled []*regexp.Regexp
}

// Unit returns the parsed canonical unit.
func (d Definition) Unit() units.Unit { return d.unit }

// Matches reports whether candidate names this variable.
func (d Definition) Matches(candidate string) bool {
	if len(d.compiled) == 0 {
		return strings.Contains(strings.ToLower(candidate), strings.ToLower(d.Name))
	}
	for _, re := range d.compiled {
		if re.MatchString(candidate) {
			return true
		}
	}
	return false
}

func (d *Definition) validate() error {
	if d.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidDefinition)
	}
	u, err := units.Parse(d.Units)
	if err != nil {
		return fmt.Errorf("%w: %s: units: %w", ErrInvalidDefinition, d.Name, err)
	}
	d.unit = u
	for _, span := range []struct {
		name string
		s    Span
	}{{"fail_span", d.FailSpan}, {"suspect_span", d.SuspectSpan}} {
		if span.s.Low() > span.s.High() {
			return fmt.Errorf("%w: %s: %s low %v exceeds high %v", ErrInvalidDefinition, d.Name, span.name, span.s.Low(), span.s.High())
		}
	}
	if !d.SuspectSpan.Within(d.FailSpan) {
		return fmt.Errorf("%w: %s: suspect_span %v not within fail_span %v", ErrInvalidDefinition, d.Name, d.SuspectSpan, d.FailSpan)
	}
	d.compiled = d.compiled[:0]
	for _, p := range d.Patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return fmt.Errorf("%w: %s: pattern %q: %w", ErrInvalidDefinition, d.Name, p, err)
		}
		d.compiled = append(d.compiled, re)
	}
	return nil
}

// Catalog is a validated set of definitions keyed by generic name.
type Catalog struct {
	defs  map[string]Definition
	names []string
}

// New validates defs and builds a Catalog. Names must be unique.
func New(defs []Definition) (*Catalog, error) {
	c := &Catalog{defs: make(map[string]Definition, len(defs))}
	for _, d := range defs {
		d.Patterns = slices.Clone(d.Patterns)
		if err := d.validate(); err != nil {
			return nil, err
		}
		if _, dup := c.defs[d.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate name %q", ErrInvalidDefinition, d.Name)
		}
		c.defs[d.Name] = d
		c.names = append(c.names, d.Name)
	}
	slices.Sort(c.names)
	return c, nil
}

// Names returns the generic names in sorted order.
func (c *Catalog) Names() []string { return slices.Clone(c.names) }

// Len returns the number of definitions.
func (c *Catalog) Len() int { return len(c.names) }

// Lookup returns the definition for a generic name.
func (c *Catalog) Lookup(name string) (Definition, bool) {
	d, ok := c.defs[name]
	return d, ok
}

// Definitions returns all definitions sorted by name.
func (c *Catalog) Definitions() []Definition {
	out := make([]Definition, 0, len(c.names))
	for _, n := range c.names {
		out = append(out, c.defs[n])
	}
	return out
}

// MatchAll matches every generic name against candidates and returns all
// matching candidates per name, in candidate order. Names with no match are
// omitted.
func (c *Catalog) MatchAll(candidates []string) map[string][]string {
	out := make(map[string][]string)
	for _, name := range c.names {
		d := c.defs[name]
		for _, cand := range candidates {
			if d.Matches(cand) {
				out[name] = append(out[name], cand)
			}
		}
	}
	return out
}

// Search returns the generic names whose name, units or patterns contain
// term, ignoring case.
func (c *Catalog) Search(term string) []string {
	term = strings.ToLower(term)
	var out []string
	for _, name := range c.names {
		d := c.defs[name]
		hay := append([]string{d.Name, d.Units}, d.Patterns...)
		if slices.ContainsFunc(hay, func(s string) bool { return strings.Contains(strings.ToLower(s), term) }) {
			out = append(out, name)
		}
	}
	return out
}

//go:embed defaults.json
var defaultsJSON []byte

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := Decode(defaultsJSON, FormatJSON)
	if err != nil {
		panic("catalog: built-in defaults: " + err.Error())
	}
	return c
}
