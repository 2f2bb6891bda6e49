package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"oceangateway/internal/catalog"
	"oceangateway/internal/gateway"
	"oceangateway/internal/qc"
	"oceangateway/internal/source"
)

// printer handles table or JSON output.
type printer struct {
	format string
	w      io.Writer
}

func newPrinter(format string, w io.Writer) *printer {
	return &printer{format: format, w: w}
}

// json marshals v as indented JSON.
func (p *printer) json(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// table writes rows using tabwriter. header is the first row.
func (p *printer) table(header []string, rows [][]string) {
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, row := range rows {
		_, _ = fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	_ = tw.Flush()
}

// kv prints a key-value detail view.
func (p *printer) kv(pairs [][2]string) {
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	for _, pair := range pairs {
		_, _ = fmt.Fprintf(tw, "%s:\t%s\n", pair[0], pair[1])
	}
	_ = tw.Flush()
}

// reportJSON is the JSON form of a run: the report plus reader labels.
type reportJSON struct {
	Readers []string `json:"readers"`
	qc.Report
}

func (p *printer) report(plans []gateway.Plan, r qc.Report) error {
	labels := make([]string, len(plans))
	for i, pl := range plans {
		labels[i] = planLabel(pl)
	}
	if p.format == "json" {
		return p.json(reportJSON{Readers: labels, Report: r})
	}
	rows := make([][]string, len(r.Results))
	for i, res := range r.Results {
		rows[i] = []string{
			labels[res.Source], res.DatasetID, res.Generic, res.Variable, res.Units,
			strconv.Itoa(res.Good), strconv.Itoa(res.Suspect), strconv.Itoa(res.Fail), strconv.Itoa(res.Missing),
		}
	}
	p.table([]string{"READER", "DATASET", "GENERIC", "VARIABLE", "UNITS", "GOOD", "SUSPECT", "FAIL", "MISSING"}, rows)
	_, _ = fmt.Fprintf(p.w, "\nsession %s: %d variables, %d suspect, %d fail\n",
		r.Session, len(r.Results), r.Count(qc.FlagSuspect), r.Count(qc.FlagFail))
	return nil
}

type idsJSON struct {
	Reader string   `json:"reader"`
	IDs    []string `json:"dataset_ids"`
}

func (p *printer) ids(plans []gateway.Plan, ids [][]string) error {
	if p.format == "json" {
		out := make([]idsJSON, len(plans))
		for i, pl := range plans {
			out[i] = idsJSON{Reader: planLabel(pl), IDs: ids[i]}
			if out[i].IDs == nil {
				out[i].IDs = []string{}
			}
		}
		return p.json(out)
	}
	var rows [][]string
	for i, pl := range plans {
		for _, id := range ids[i] {
			rows = append(rows, []string{planLabel(pl), id})
		}
	}
	p.table([]string{"READER", "DATASET"}, rows)
	return nil
}

type metaJSON struct {
	Reader string `json:"reader"`
	source.DatasetMeta
}

func (p *printer) meta(plans []gateway.Plan, ids [][]string, meta []source.Meta) error {
	var (
		rows [][]string
		out  []metaJSON
	)
	for i, pl := range plans {
		for _, id := range ids[i] {
			m, ok := meta[i][id]
			if !ok {
				continue
			}
			out = append(out, metaJSON{Reader: planLabel(pl), DatasetMeta: m})
			rows = append(rows, []string{planLabel(pl), id, m.Title, bbox(m), formatTime(m.Start), formatTime(m.End)})
		}
	}
	if p.format == "json" {
		if out == nil {
			out = []metaJSON{}
		}
		return p.json(out)
	}
	p.table([]string{"READER", "DATASET", "TITLE", "BBOX", "START", "END"}, rows)
	return nil
}

func bbox(m source.DatasetMeta) string {
	if !m.HasBBox {
		return "-"
	}
	return fmt.Sprintf("%.2f,%.2f,%.2f,%.2f", m.MinLon, m.MinLat, m.MaxLon, m.MaxLat)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

type definitionJSON struct {
	Name     string     `json:"name"`
	Units    string     `json:"units"`
	Fail     [2]float64 `json:"fail_span"`
	Suspect  [2]float64 `json:"suspect_span"`
	Patterns []string   `json:"patterns,omitempty"`
}

func (p *printer) definitions(defs []catalog.Definition) error {
	if p.format == "json" {
		out := make([]definitionJSON, len(defs))
		for i, d := range defs {
			out[i] = definitionJSON{Name: d.Name, Units: d.Units, Fail: d.FailSpan, Suspect: d.SuspectSpan, Patterns: d.Patterns}
		}
		return p.json(out)
	}
	rows := make([][]string, len(defs))
	for i, d := range defs {
		rows[i] = []string{d.Name, d.Units, span(d.FailSpan), span(d.SuspectSpan), strings.Join(d.Patterns, " ")}
	}
	p.table([]string{"NAME", "UNITS", "FAIL", "SUSPECT", "PATTERNS"}, rows)
	return nil
}

func span(s catalog.Span) string {
	return fmt.Sprintf("[%g, %g]", s.Low(), s.High())
}

func (p *printer) variables(vars []source.VariableCount) error {
	if p.format == "json" {
		if vars == nil {
			vars = []source.VariableCount{}
		}
		return p.json(vars)
	}
	rows := make([][]string, len(vars))
	for i, v := range vars {
		rows[i] = []string{v.Name, strconv.Itoa(v.Count)}
	}
	p.table([]string{"VARIABLE", "DATASETS"}, rows)
	return nil
}
