package qc

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"oceangateway/internal/catalog"
	"oceangateway/internal/dataset"
	"oceangateway/internal/logging"
	"oceangateway/internal/units"
)

// Suffix is appended to a variable name to name its flags.
const Suffix = "_qc"

// salinityAlias is a non-standard practical salinity encoding seen upstream.
const salinityAlias = "1e-3"

// Pipeline checks datasets against a variable catalog.
type Pipeline struct {
	catalog *catalog.Catalog
	logger  *slog.Logger
}

// New creates a pipeline. A nil logger discards.
func New(c *catalog.Catalog, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		catalog: c,
		logger:  logging.Default(logger).With("component", "qc"),
	}
}

// Match maps catalog generic names to the dataset variables that carry
// them. A generic name is kept only when exactly one candidate matches it.
func (p *Pipeline) Match(ds dataset.Dataset) map[string]string {
	out := map[string]string{}
	claimed := map[string]string{}
	matches := p.catalog.MatchAll(ds.Candidates())
	for _, generic := range slices.Sorted(maps.Keys(matches)) {
		cands := matches[generic]
		if len(cands) != 1 {
			p.logger.Debug("ambiguous variable match skipped", "variable", generic, "candidates", cands)
			continue
		}
		name, ok := ds.Resolve(cands[0])
		if !ok {
			continue
		}
		if prev, taken := claimed[name]; taken {
			p.logger.Debug("variable already matched", "variable", name, "generic", generic, "kept", prev)
			continue
		}
		claimed[name] = generic
		out[generic] = name
	}
	return out
}

// Apply checks one dataset. The returned dataset holds only the matched
// variables, converted to canonical units, plus a flag variable for each.
// A dataset with no matched variables is returned unchanged with no
// results.
func (p *Pipeline) Apply(id string, ds dataset.Dataset) (dataset.Dataset, []Result, error) {
	matched := p.Match(ds)
	if len(matched) == 0 {
		p.logger.Debug("no catalog variables", "dataset", id)
		return ds, nil, nil
	}

	generics := slices.Sorted(maps.Keys(matched))
	names := make([]string, len(generics))
	for i, g := range generics {
		names[i] = matched[g]
	}
	sub, err := ds.Select(names...)
	if err != nil {
		return nil, nil, fmt.Errorf("dataset %s: %w", id, err)
	}

	results := make([]Result, 0, len(generics))
	for _, generic := range generics {
		name := matched[generic]
		def, _ := p.catalog.Lookup(generic)

		v, ok := sub.Variable(name)
		if !ok {
			return nil, nil, fmt.Errorf("dataset %s: %q: %w", id, name, dataset.ErrNoVariable)
		}
		declared := v.Units()
		if declared == salinityAlias {
			declared = "psu"
		}

		q, err := units.Quantify(v.Values, declared)
		if err != nil {
			return nil, nil, fmt.Errorf("dataset %s: variable %q: %w", id, name, err)
		}
		if !q.Unit.Equal(def.Unit()) {
			if q, err = q.To(def.Unit()); err != nil {
				return nil, nil, fmt.Errorf("dataset %s: variable %q: %w", id, name, err)
			}
		}
		values, symbol := q.Dequantify()

		v.Values = values
		if v.Attrs == nil {
			v.Attrs = map[string]string{}
		}
		v.Attrs[dataset.AttrUnits] = symbol
		if err := sub.Put(v); err != nil {
			return nil, nil, fmt.Errorf("dataset %s: %w", id, err)
		}

		flags := GrossRange(values, def.FailSpan, def.SuspectSpan)
		attrs := map[string]string{
			dataset.AttrLongName: fmt.Sprintf("QARTOD gross range flags for %s", name),
			"flag_values":        flagValues,
			"flag_meanings":      flagMeanings,
		}
		if err := sub.Attach(name+Suffix, name, Floats(flags), attrs); err != nil {
			return nil, nil, fmt.Errorf("dataset %s: %w", id, err)
		}

		results = append(results, newResult(id, generic, name, symbol, flags))
	}
	p.logger.Debug("dataset checked", "dataset", id, "variables", len(results))
	return sub, results, nil
}

// Run checks every dataset in data, replacing each entry in place. Datasets
// are visited in id order.
func (p *Pipeline) Run(data map[string]dataset.Dataset) (Report, error) {
	var report Report
	for _, id := range slices.Sorted(maps.Keys(data)) {
		out, results, err := p.Apply(id, data[id])
		if err != nil {
			return report, err
		}
		data[id] = out
		report.Results = append(report.Results, results...)
	}
	return report, nil
}
