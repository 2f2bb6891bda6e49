package dataset

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"math"
	"slices"
	"strconv"
)

// CF-JSON document layout:
//
//	{
//	  "attributes": {"title": "..."},
//	  "dimensions": {"time": 3, "depth": 2},
//	  "variables": {
//	    "temp": {
//	      "shape": ["time", "depth"],
//	      "attributes": {"units": "degC", "standard_name": "sea_water_temperature"},
//	      "data": [[1, 2], [3, 4], [5, null]]
//	    }
//	  }
//	}
type cfDocument struct {
	Attributes map[string]any        `json:"attributes,omitempty"`
	Dimensions map[string]int        `json:"dimensions"`
	Variables  map[string]cfVariable `json:"variables"`
}

type cfVariable struct {
	Shape      []string       `json:"shape"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Data       any            `json:"data"`
}

// ReadCFJSON decodes a CF-JSON document. A one-dimensional variable named
// after its own dimension is a coordinate; everything else is a data
// variable. Nulls become NaN. Dimensions and variables are ordered by name.
func ReadCFJSON(r io.Reader) (*Gridded, error) {
	var doc cfDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode cf-json: %w", err)
	}

	g := &Gridded{Attrs: stringifyAttrs(doc.Attributes)}
	for _, name := range slices.Sorted(maps.Keys(doc.Dimensions)) {
		size := doc.Dimensions[name]
		if size < 0 {
			return nil, fmt.Errorf("dimension %q: negative size %d", name, size)
		}
		g.Dims = append(g.Dims, Dim{Name: name, Size: size})
	}

	for _, name := range slices.Sorted(maps.Keys(doc.Variables)) {
		cv := doc.Variables[name]
		var values []float64
		if err := flatten(cv.Data, &values); err != nil {
			return nil, fmt.Errorf("variable %q: %w", name, err)
		}
		v := Variable{
			Name:   name,
			Dims:   slices.Clone(cv.Shape),
			Values: values,
			Attrs:  stringifyAttrs(cv.Attributes),
		}
		n, err := g.Size(v.Dims)
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", name, err)
		}
		if len(values) != n {
			return nil, fmt.Errorf("variable %q: %d values for shape %v: %w", name, len(values), v.Dims, ErrShape)
		}
		if len(v.Dims) == 1 && v.Dims[0] == name {
			g.Coords = append(g.Coords, v)
			continue
		}
		g.Vars = append(g.Vars, v)
	}
	return g, nil
}

func flatten(data any, out *[]float64) error {
	switch v := data.(type) {
	case nil:
		*out = append(*out, math.NaN())
	case float64:
		*out = append(*out, v)
	case []any:
		for _, e := range v {
			if err := flatten(e, out); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("non-numeric data element %v (%T)", v, v)
	}
	return nil
}

func stringifyAttrs(in map[string]any) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		switch x := v.(type) {
		case string:
			out[k] = x
		case float64:
			out[k] = strconv.FormatFloat(x, 'g', -1, 64)
		default:
			b, _ := json.Marshal(x)
			out[k] = string(b)
		}
	}
	return out
}

// WriteCFJSON encodes g as CF-JSON. NaN is written as null.
func WriteCFJSON(w io.Writer, g *Gridded) error {
	doc := cfDocument{
		Dimensions: make(map[string]int, len(g.Dims)),
		Variables:  make(map[string]cfVariable, len(g.Coords)+len(g.Vars)),
	}
	if len(g.Attrs) > 0 {
		doc.Attributes = make(map[string]any, len(g.Attrs))
		for k, v := range g.Attrs {
			doc.Attributes[k] = v
		}
	}
	for _, d := range g.Dims {
		doc.Dimensions[d.Name] = d.Size
	}
	for _, v := range slices.Concat(g.Coords, g.Vars) {
		sizes := make([]int, len(v.Dims))
		for i, d := range v.Dims {
			n, err := g.Size([]string{d})
			if err != nil {
				return fmt.Errorf("variable %q: %w", v.Name, err)
			}
			sizes[i] = n
		}
		attrs := make(map[string]any, len(v.Attrs))
		for k, a := range v.Attrs {
			attrs[k] = a
		}
		doc.Variables[v.Name] = cfVariable{
			Shape:      v.Dims,
			Attributes: attrs,
			Data:       nest(v.Values, sizes),
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// nest reshapes flat row-major values into nested slices.
func nest(values []float64, sizes []int) any {
	if len(sizes) == 0 {
		if len(values) == 0 {
			return nil
		}
		return jsonFloat(values[0])
	}
	stride := 1
	for _, s := range sizes[1:] {
		stride *= s
	}
	out := make([]any, sizes[0])
	for i := range out {
		out[i] = nest(values[i*stride:(i+1)*stride], sizes[1:])
	}
	return out
}

func jsonFloat(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}
