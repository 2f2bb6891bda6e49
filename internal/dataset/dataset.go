// Package dataset models the two data shapes readers return: tabular data
// (rows with named, unit-labelled columns) and gridded data (labelled
// multi-dimensional variables carrying CF attributes).
//
// Both satisfy Dataset, which is all the QC pipeline needs: list candidate
// names, resolve one to a variable, subset, read and replace variables, and
// attach a derived variable aligned to an existing one.
package dataset

import (
	"errors"
	"maps"
	"slices"
)

// Attribute keys used across both shapes.
const (
	AttrUnits        = "units"
	AttrStandardName = "standard_name"
	AttrLongName     = "long_name"
)

var (
	// ErrNoVariable reports a reference to a variable that does not exist.
	ErrNoVariable = errors.New("no such variable")

	// ErrShape reports values whose length does not fit the target.
	ErrShape = errors.New("shape mismatch")
)

// Kind distinguishes the two dataset shapes.
type Kind int

const (
	KindTabular Kind = iota + 1
	KindGridded
)

func (k Kind) String() string {
	switch k {
	case KindTabular:
		return "tabular"
	case KindGridded:
		return "gridded"
	default:
		return "unknown"
	}
}

// Variable is one numeric column or gridded variable. Dims is nil for
// tabular columns.
type Variable struct {
	Name   string
	Dims   []string
	Values []float64
	Attrs  map[string]string
}

// Units returns the "units" attribute.
func (v Variable) Units() string { return v.Attrs[AttrUnits] }

// StandardName returns the "standard_name" attribute.
func (v Variable) StandardName() string { return v.Attrs[AttrStandardName] }

// Clone returns a deep copy.
func (v Variable) Clone() Variable {
	return Variable{
		Name:   v.Name,
		Dims:   slices.Clone(v.Dims),
		Values: slices.Clone(v.Values),
		Attrs:  maps.Clone(v.Attrs),
	}
}

// Dataset is the common view over tabular and gridded data.
type Dataset interface {
	Kind() Kind

	// Candidates lists the names a variable catalog is matched against:
	// column names for tabular data, distinct standard names for gridded.
	Candidates() []string

	// Resolve maps a candidate back to the variable that carries it.
	Resolve(candidate string) (string, bool)

	// Names lists the numeric variables.
	Names() []string

	// Variable returns a copy of the named variable.
	Variable(name string) (Variable, bool)

	// Select returns a new dataset holding only the named variables
	// (plus the time index or coordinates). Values are copied.
	Select(names ...string) (Dataset, error)

	// Put replaces the named variable, or adds it when absent.
	Put(v Variable) error

	// Attach adds a variable with the same shape as like.
	Attach(name, like string, values []float64, attrs map[string]string) error
}
