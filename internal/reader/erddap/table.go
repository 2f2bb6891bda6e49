package erddap

import (
	"fmt"
	"slices"
	"strconv"
)

// table is ERDDAP's JSON table response:
//
//	{"table": {"columnNames": [...], "columnTypes": [...], "rows": [[...], ...]}}
type table struct {
	Table struct {
		ColumnNames []string `json:"columnNames"`
		Rows        [][]any  `json:"rows"`
	} `json:"table"`
}

func (t *table) column(name string) (int, error) {
	i := slices.Index(t.Table.ColumnNames, name)
	if i < 0 {
		return 0, fmt.Errorf("response has no %q column (have %v)", name, t.Table.ColumnNames)
	}
	return i, nil
}

// cell renders row r, column c as a string. Numbers use the shortest
// representation; nulls are empty.
func (t *table) cell(r, c int) string {
	row := t.Table.Rows[r]
	if c >= len(row) {
		return ""
	}
	switch v := row[c].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// strings returns every value in the named column.
func (t *table) strings(name string) ([]string, error) {
	c, err := t.column(name)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(t.Table.Rows))
	for r := range t.Table.Rows {
		out[r] = t.cell(r, c)
	}
	return out, nil
}
