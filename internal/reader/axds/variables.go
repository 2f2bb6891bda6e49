package axds

import (
	"context"
	"net/url"

	"oceangateway/internal/source"
)

var _ source.VariableLister = (*Type)(nil)

// ListVariables counts variable names over an unfiltered search of the
// spec's result kind. Only the first page_size results are seen.
func (t *Type) ListVariables(ctx context.Context, spec source.Spec) ([]source.VariableCount, error) {
	r, err := t.newReader(spec)
	if err != nil {
		return nil, err
	}
	hits, err := r.search(ctx, url.Values{})
	if err != nil {
		return nil, err
	}
	counts := map[string]int{}
	var order []string
	for _, h := range hits {
		seen := map[string]bool{}
		for _, v := range h.Variables {
			if seen[v] {
				continue
			}
			seen[v] = true
			if counts[v] == 0 {
				order = append(order, v)
			}
			counts[v]++
		}
	}
	out := make([]source.VariableCount, len(order))
	for i, name := range order {
		out[i] = source.VariableCount{Name: name, Count: counts[name]}
	}
	return out, nil
}
