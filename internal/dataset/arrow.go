package dataset

import (
	"fmt"
	"math"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// unitsKey is the field metadata key carrying a column's units.
const unitsKey = "units"

func fieldUnits(f arrow.Field) (string, string) {
	if f.HasMetadata() {
		if i := f.Metadata.FindKey(unitsKey); i >= 0 {
			return f.Name, f.Metadata.Values()[i]
		}
	}
	return SplitHeader(f.Name)
}

func isNumeric(id arrow.Type) bool {
	switch id {
	case arrow.FLOAT64, arrow.FLOAT32,
		arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64:
		return true
	}
	return false
}

// floatAt reads a numeric array element; nulls are NaN.
func floatAt(arr arrow.Array, i int) float64 {
	if arr.IsNull(i) {
		return math.NaN()
	}
	switch a := arr.(type) {
	case *array.Float64:
		return a.Value(i)
	case *array.Float32:
		return float64(a.Value(i))
	case *array.Int8:
		return float64(a.Value(i))
	case *array.Int16:
		return float64(a.Value(i))
	case *array.Int32:
		return float64(a.Value(i))
	case *array.Int64:
		return float64(a.Value(i))
	case *array.Uint8:
		return float64(a.Value(i))
	case *array.Uint16:
		return float64(a.Value(i))
	case *array.Uint32:
		return float64(a.Value(i))
	case *array.Uint64:
		return float64(a.Value(i))
	}
	return math.NaN()
}

// FromArrow converts an Arrow table (from Parquet or Delta Sharing) into a
// Tabular. The first timestamp column becomes the time index, numeric
// columns become numeric columns, and everything else is rendered as text.
// Units come from the "units" field metadata or a "name (units)" field name.
func FromArrow(tbl arrow.Table) (*Tabular, error) {
	schema := tbl.Schema()
	fields := schema.Fields()

	timeCol := -1
	for i, f := range fields {
		if f.Type.ID() == arrow.TIMESTAMP {
			timeCol = i
			break
		}
	}

	t := &Tabular{}
	if timeCol >= 0 {
		t.Time = make([]time.Time, 0, tbl.NumRows())
	}
	numeric := map[int]int{}
	text := map[int]int{}
	for i, f := range fields {
		if i == timeCol {
			continue
		}
		name, units := fieldUnits(f)
		if isNumeric(f.Type.ID()) {
			numeric[i] = len(t.Columns)
			t.Columns = append(t.Columns, Variable{
				Name:   name,
				Values: make([]float64, 0, tbl.NumRows()),
				Attrs:  map[string]string{AttrUnits: units},
			})
			continue
		}
		text[i] = len(t.Text)
		t.Text = append(t.Text, TextColumn{Name: name, Units: units, Values: make([]string, 0, tbl.NumRows())})
	}

	if tbl.NumRows() == 0 {
		return t, nil
	}

	tr := array.NewTableReader(tbl, tbl.NumRows())
	defer tr.Release()
	for tr.Next() {
		rec := tr.Record()
		for i := 0; i < int(rec.NumCols()); i++ {
			col := rec.Column(i)
			for r := 0; r < col.Len(); r++ {
				switch {
				case i == timeCol:
					ts, ok := col.(*array.Timestamp)
					if !ok {
						return nil, fmt.Errorf("column %q: unexpected array %T", fields[i].Name, col)
					}
					unit := fields[i].Type.(*arrow.TimestampType).Unit
					t.Time = append(t.Time, ts.Value(r).ToTime(unit).UTC())
				case isNumeric(fields[i].Type.ID()):
					c := &t.Columns[numeric[i]]
					c.Values = append(c.Values, floatAt(col, r))
				default:
					c := &t.Text[text[i]]
					if col.IsNull(r) {
						c.Values = append(c.Values, "")
					} else {
						c.Values = append(c.Values, col.ValueStr(r))
					}
				}
			}
		}
	}
	return t, nil
}

// ToArrow builds an Arrow table from t. Units are stored as field
// metadata; NaN becomes null.
func (t *Tabular) ToArrow(mem memory.Allocator) arrow.Table {
	var (
		fields []arrow.Field
		arrays []arrow.Array
	)
	withUnits := func(units string) arrow.Metadata {
		return arrow.NewMetadata([]string{unitsKey}, []string{units})
	}

	if t.Time != nil {
		tsType := &arrow.TimestampType{Unit: arrow.Nanosecond, TimeZone: "UTC"}
		b := array.NewTimestampBuilder(mem, tsType)
		for _, ts := range t.Time {
			b.Append(arrow.Timestamp(ts.UnixNano()))
		}
		fields = append(fields, arrow.Field{Name: "time", Type: tsType, Metadata: withUnits("UTC")})
		arrays = append(arrays, b.NewArray())
		b.Release()
	}
	for _, c := range t.Columns {
		b := array.NewFloat64Builder(mem)
		for _, v := range c.Values {
			if math.IsNaN(v) {
				b.AppendNull()
			} else {
				b.Append(v)
			}
		}
		fields = append(fields, arrow.Field{Name: c.Name, Type: arrow.PrimitiveTypes.Float64, Nullable: true, Metadata: withUnits(c.Units())})
		arrays = append(arrays, b.NewArray())
		b.Release()
	}
	for _, c := range t.Text {
		b := array.NewStringBuilder(mem)
		for _, v := range c.Values {
			b.Append(v)
		}
		fields = append(fields, arrow.Field{Name: c.Name, Type: arrow.BinaryTypes.String, Metadata: withUnits(c.Units)})
		arrays = append(arrays, b.NewArray())
		b.Release()
	}

	schema := arrow.NewSchema(fields, nil)
	cols := make([]arrow.Column, len(fields))
	for i, f := range fields {
		chunked := arrow.NewChunked(f.Type, []arrow.Array{arrays[i]})
		cols[i] = *arrow.NewColumn(f, chunked)
		chunked.Release()
		arrays[i].Release()
	}
	tbl := array.NewTable(schema, cols, int64(t.Len()))
	for i := range cols {
		cols[i].Release()
	}
	return tbl
}
