package dataset

import (
	"fmt"
	"maps"
	"slices"
	"time"
)

// TextColumn is a non-numeric column such as a station name.
type TextColumn struct {
	Name   string
	Units  string
	Values []string
}

// Tabular is a table with an optional time index, numeric columns labelled
// by (name, units), and text columns. Numeric gaps are NaN.
type Tabular struct {
	Time    []time.Time
	Columns []Variable
	Text    []TextColumn
}

var _ Dataset = (*Tabular)(nil)

func (t *Tabular) Kind() Kind { return KindTabular }

// Len returns the number of rows.
func (t *Tabular) Len() int {
	switch {
	case t.Time != nil:
		return len(t.Time)
	case len(t.Columns) > 0:
		return len(t.Columns[0].Values)
	case len(t.Text) > 0:
		return len(t.Text[0].Values)
	default:
		return 0
	}
}

func (t *Tabular) empty() bool {
	return t.Time == nil && len(t.Columns) == 0 && len(t.Text) == 0
}

func (t *Tabular) index(name string) int {
	return slices.IndexFunc(t.Columns, func(v Variable) bool { return v.Name == name })
}

func (t *Tabular) Candidates() []string { return t.Names() }

func (t *Tabular) Resolve(candidate string) (string, bool) {
	return candidate, t.index(candidate) >= 0
}

func (t *Tabular) Names() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

func (t *Tabular) Variable(name string) (Variable, bool) {
	i := t.index(name)
	if i < 0 {
		return Variable{}, false
	}
	return t.Columns[i].Clone(), true
}

func (t *Tabular) Select(names ...string) (Dataset, error) {
	out := &Tabular{Time: slices.Clone(t.Time)}
	for _, n := range names {
		i := t.index(n)
		if i < 0 {
			return nil, fmt.Errorf("select %q: %w", n, ErrNoVariable)
		}
		out.Columns = append(out.Columns, t.Columns[i].Clone())
	}
	return out, nil
}

func (t *Tabular) Put(v Variable) error {
	if !t.empty() && len(v.Values) != t.Len() {
		return fmt.Errorf("column %q: %d values for %d rows: %w", v.Name, len(v.Values), t.Len(), ErrShape)
	}
	v.Dims = nil
	if v.Attrs == nil {
		v.Attrs = map[string]string{}
	}
	if i := t.index(v.Name); i >= 0 {
		t.Columns[i] = v
		return nil
	}
	t.Columns = append(t.Columns, v)
	return nil
}

func (t *Tabular) Attach(name, like string, values []float64, attrs map[string]string) error {
	if t.index(like) < 0 {
		return fmt.Errorf("attach %q like %q: %w", name, like, ErrNoVariable)
	}
	return t.Put(Variable{Name: name, Values: values, Attrs: maps.Clone(attrs)})
}

// AddColumn appends a numeric column.
func (t *Tabular) AddColumn(name, units string, values []float64) error {
	return t.Put(Variable{Name: name, Values: values, Attrs: map[string]string{AttrUnits: units}})
}

// Append adds o's rows to t. Both tables must have the same numeric and
// text columns and agree on having a time index.
func (t *Tabular) Append(o *Tabular) error {
	if t.empty() {
		*t = Tabular{Time: slices.Clone(o.Time)}
		for _, c := range o.Columns {
			t.Columns = append(t.Columns, c.Clone())
		}
		for _, c := range o.Text {
			t.Text = append(t.Text, TextColumn{Name: c.Name, Units: c.Units, Values: slices.Clone(c.Values)})
		}
		return nil
	}
	if (t.Time == nil) != (o.Time == nil) {
		return fmt.Errorf("append: time index present in only one table: %w", ErrShape)
	}
	if !slices.Equal(t.Names(), o.Names()) || len(t.Text) != len(o.Text) {
		return fmt.Errorf("append: columns differ (%v vs %v): %w", t.Names(), o.Names(), ErrShape)
	}
	t.Time = append(t.Time, o.Time...)
	for i := range t.Columns {
		t.Columns[i].Values = append(t.Columns[i].Values, o.Columns[i].Values...)
	}
	for i := range t.Text {
		if t.Text[i].Name != o.Text[i].Name {
			return fmt.Errorf("append: text column %q vs %q: %w", t.Text[i].Name, o.Text[i].Name, ErrShape)
		}
		t.Text[i].Values = append(t.Text[i].Values, o.Text[i].Values...)
	}
	return nil
}
