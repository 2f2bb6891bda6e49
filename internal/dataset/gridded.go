package dataset

import (
	"fmt"
	"maps"
	"slices"
)

// Dim is a named dimension.
type Dim struct {
	Name string
	Size int
}

// Gridded is a set of variables over shared named dimensions. Coordinate
// variables are kept apart from data variables and never become QC
// candidates.
type Gridded struct {
	Dims   []Dim
	Coords []Variable
	Vars   []Variable
	Attrs  map[string]string
}

var _ Dataset = (*Gridded)(nil)

func (g *Gridded) Kind() Kind { return KindGridded }

// Size returns the number of elements spanned by dims.
func (g *Gridded) Size(dims []string) (int, error) {
	n := 1
	for _, d := range dims {
		i := slices.IndexFunc(g.Dims, func(x Dim) bool { return x.Name == d })
		if i < 0 {
			return 0, fmt.Errorf("unknown dimension %q: %w", d, ErrShape)
		}
		n *= g.Dims[i].Size
	}
	return n, nil
}

func (g *Gridded) index(name string) int {
	return slices.IndexFunc(g.Vars, func(v Variable) bool { return v.Name == name })
}

func (g *Gridded) Candidates() []string {
	var out []string
	for _, v := range g.Vars {
		if sn := v.StandardName(); sn != "" && !slices.Contains(out, sn) {
			out = append(out, sn)
		}
	}
	return out
}

// Resolve returns the first data variable whose standard_name is candidate.
func (g *Gridded) Resolve(candidate string) (string, bool) {
	for _, v := range g.Vars {
		if v.StandardName() == candidate {
			return v.Name, true
		}
	}
	return "", false
}

func (g *Gridded) Names() []string {
	names := make([]string, len(g.Vars))
	for i, v := range g.Vars {
		names[i] = v.Name
	}
	return names
}

// Variable looks in data variables first, then coordinates.
func (g *Gridded) Variable(name string) (Variable, bool) {
	if i := g.index(name); i >= 0 {
		return g.Vars[i].Clone(), true
	}
	for _, c := range g.Coords {
		if c.Name == name {
			return c.Clone(), true
		}
	}
	return Variable{}, false
}

func (g *Gridded) Select(names ...string) (Dataset, error) {
	out := &Gridded{
		Dims:  slices.Clone(g.Dims),
		Attrs: maps.Clone(g.Attrs),
	}
	for _, c := range g.Coords {
		out.Coords = append(out.Coords, c.Clone())
	}
	for _, n := range names {
		i := g.index(n)
		if i < 0 {
			return nil, fmt.Errorf("select %q: %w", n, ErrNoVariable)
		}
		out.Vars = append(out.Vars, g.Vars[i].Clone())
	}
	return out, nil
}

func (g *Gridded) Put(v Variable) error {
	n, err := g.Size(v.Dims)
	if err != nil {
		return fmt.Errorf("variable %q: %w", v.Name, err)
	}
	if len(v.Values) != n {
		return fmt.Errorf("variable %q: %d values for shape %v (%d): %w", v.Name, len(v.Values), v.Dims, n, ErrShape)
	}
	if v.Attrs == nil {
		v.Attrs = map[string]string{}
	}
	if i := g.index(v.Name); i >= 0 {
		g.Vars[i] = v
		return nil
	}
	g.Vars = append(g.Vars, v)
	return nil
}

func (g *Gridded) Attach(name, like string, values []float64, attrs map[string]string) error {
	i := g.index(like)
	if i < 0 {
		return fmt.Errorf("attach %q like %q: %w", name, like, ErrNoVariable)
	}
	return g.Put(Variable{
		Name:   name,
		Dims:   slices.Clone(g.Vars[i].Dims),
		Values: values,
		Attrs:  maps.Clone(attrs),
	})
}
