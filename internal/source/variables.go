package source

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrNoListing is returned when a source type cannot enumerate the
// variables it serves.
var ErrNoListing = errors.New("source type does not list variables")

// ErrUnknownVariable is wrapped by CheckVariables failures.
var ErrUnknownVariable = errors.New("unknown variable")

// VariableCount is one variable name and the number of datasets that carry
// it on a server.
type VariableCount struct {
	Name  string `msgpack:"name" json:"name"`
	Count int    `msgpack:"count" json:"count"`
}

// VariableLister is implemented by source types that can list the
// variables available under a spec (for example one ERDDAP server).
type VariableLister interface {
	ListVariables(ctx context.Context, spec Spec) ([]VariableCount, error)
}

// ListVariables lists the variables t serves, sorted by name.
func ListVariables(ctx context.Context, t Type, spec Spec) ([]VariableCount, error) {
	vl, ok := t.(VariableLister)
	if !ok {
		return nil, ErrNoListing
	}
	vars, err := vl.ListVariables(ctx, spec)
	if err != nil {
		return nil, err
	}
	vars = slices.Clone(vars)
	slices.SortFunc(vars, func(a, b VariableCount) int { return cmp.Compare(a.Name, b.Name) })
	return vars, nil
}

// SearchVariables returns the entries whose name contains term, ignoring
// case.
func SearchVariables(all []VariableCount, term string) []VariableCount {
	term = strings.ToLower(term)
	var out []VariableCount
	for _, v := range all {
		if strings.Contains(strings.ToLower(v.Name), term) {
			out = append(out, v)
		}
	}
	return out
}

// CheckVariables verifies every name is served. The error lists each
// missing name with close matches.
func CheckVariables(all []VariableCount, names []string) error {
	var missing []string
	for _, n := range names {
		if slices.ContainsFunc(all, func(v VariableCount) bool { return v.Name == n }) {
			continue
		}
		var hints []string
		for _, v := range SearchVariables(all, n) {
			hints = append(hints, v.Name)
		}
		if len(hints) > 0 {
			missing = append(missing, fmt.Sprintf("%s (did you mean %s?)", n, strings.Join(hints, ", ")))
		} else {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrUnknownVariable, strings.Join(missing, "; "))
	}
	return nil
}
