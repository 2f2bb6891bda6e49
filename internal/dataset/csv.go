package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// CSVOptions controls ReadCSV.
type CSVOptions struct {
	// UnitsRow means the second row holds units, as in ERDDAP tabledap
	// output. Otherwise units are read from "name (units)" or
	// "name [units]" headers.
	UnitsRow bool
}

var headerUnits = regexp.MustCompile(`^(.*?)\s*[\(\[]([^\)\]]*)[\)\]]\s*$`)

// SplitHeader splits "temp (degC)" into ("temp", "degC"). Headers without
// a units suffix return empty units.
func SplitHeader(h string) (name, units string) {
	h = strings.TrimSpace(h)
	if m := headerUnits.FindStringSubmatch(h); m != nil && m[1] != "" {
		return m[1], strings.TrimSpace(m[2])
	}
	return h, ""
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTime parses the timestamp forms found in CSV exports. Times without
// a zone are UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}

func isTimeColumn(name, units string) bool {
	return strings.EqualFold(name, "time") || units == "UTC"
}

func isMissing(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "nan", "na", "null":
		return true
	}
	return false
}

// ReadCSV parses a CSV document into a Tabular. The first column that looks
// like time and parses as timestamps becomes the index; columns whose
// non-missing cells all parse as numbers become numeric columns; anything
// else is kept as text.
func ReadCSV(r io.Reader, opts CSVOptions) (*Tabular, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = false

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read csv header: empty document")
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	names := make([]string, len(header))
	unitsOf := make([]string, len(header))
	if opts.UnitsRow {
		unitRow, err := cr.Read()
		if err != nil {
			return nil, fmt.Errorf("read csv units row: %w", err)
		}
		for i, h := range header {
			names[i] = strings.TrimSpace(h)
			if i < len(unitRow) {
				unitsOf[i] = strings.TrimSpace(unitRow[i])
			}
		}
	} else {
		for i, h := range header {
			names[i], unitsOf[i] = SplitHeader(h)
		}
	}

	cells := make([][]string, len(header))
	line := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row %d: %w", line+1, err)
		}
		line++
		for i := range cells {
			cells[i] = append(cells[i], rec[i])
		}
	}

	t := &Tabular{}
	haveTime := false
	for i, name := range names {
		col := cells[i]
		if col == nil {
			col = []string{}
		}
		if !haveTime && isTimeColumn(name, unitsOf[i]) {
			if times, ok := parseTimes(col); ok {
				t.Time = times
				haveTime = true
				continue
			}
		}
		if values, ok := parseFloats(col); ok {
			t.Columns = append(t.Columns, Variable{
				Name:   name,
				Values: values,
				Attrs:  map[string]string{AttrUnits: unitsOf[i]},
			})
			continue
		}
		t.Text = append(t.Text, TextColumn{Name: name, Units: unitsOf[i], Values: col})
	}
	return t, nil
}

func parseTimes(col []string) ([]time.Time, bool) {
	out := make([]time.Time, len(col))
	for i, s := range col {
		ts, err := ParseTime(s)
		if err != nil {
			return nil, false
		}
		out[i] = ts
	}
	return out, true
}

func parseFloats(col []string) ([]float64, bool) {
	out := make([]float64, len(col))
	for i, s := range col {
		if isMissing(s) {
			out[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

// WriteCSV writes t with "name (units)" headers, the time index first.
// NaN is written as an empty cell.
func WriteCSV(w io.Writer, t *Tabular) error {
	cw := csv.NewWriter(w)
	header := []string{}
	if t.Time != nil {
		header = append(header, "time (UTC)")
	}
	for _, c := range t.Columns {
		header = append(header, joinHeader(c.Name, c.Units()))
	}
	for _, c := range t.Text {
		header = append(header, joinHeader(c.Name, c.Units))
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	row := make([]string, len(header))
	for r := range t.Len() {
		j := 0
		if t.Time != nil {
			row[j] = t.Time[r].UTC().Format(time.RFC3339)
			j++
		}
		for _, c := range t.Columns {
			v := c.Values[r]
			if math.IsNaN(v) {
				row[j] = ""
			} else {
				row[j] = strconv.FormatFloat(v, 'g', -1, 64)
			}
			j++
		}
		for _, c := range t.Text {
			row[j] = c.Values[r]
			j++
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %d: %w", r, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func joinHeader(name, units string) string {
	if units == "" {
		return name
	}
	return name + " (" + units + ")"
}
