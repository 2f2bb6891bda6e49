package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"

	"oceangateway/internal/config"
	"oceangateway/internal/source"

	"github.com/google/uuid"
)

// planNamespace scopes the name-based UUIDs given to plans.
var planNamespace = uuid.MustParse("6f1c2a8e-3b47-4d5e-9a0c-7e2f4b8d1c93")

// Plan is one resolved query specification for one source type.
type Plan struct {
	Source string
	Index  int

	// ID is derived from the source, index and spec contents, so the same
	// configuration always yields the same IDs.
	ID   uuid.UUID
	Spec source.Spec
}

// Keys a source may not override; they only make sense globally.
var globalOnly = []string{config.KeyApproach, config.KeyReaders}

// Expand resolves cfg against table into one Plan per reader instance, in
// reader order. Nothing is built; every check runs before any caller can
// construct a reader.
//
// Per source type, the primary option list is the user's value under the
// type's option key when given (replacing the built-in list), else the
// built-in list, else a single nil. The variables and dataset_ids lists
// pair with it position by position and must have the same length; when
// absent they are padded with nil. Each spec is the global options,
// overlaid by the source's own options, overlaid by the selected option,
// variables and dataset_ids.
func Expand(cfg *config.Config, table source.Table) ([]Plan, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}

	order := cfg.Readers
	if order == nil {
		order = table.Names()
	}
	for name := range cfg.Sources {
		if _, ok := table.Lookup(name); !ok {
			return nil, &config.Error{Key: name, Reason: "unknown configuration key"}
		}
	}

	globals := cfg.Globals()
	var plans []Plan
	for _, name := range order {
		def, ok := table.Lookup(name)
		if !ok {
			return nil, &config.Error{Key: config.KeyReaders, Reason: fmt.Sprintf("unknown source type %q", name)}
		}
		opts, err := sourceOptions(name, cfg.Sources[name])
		if err != nil {
			return nil, err
		}
		for _, k := range globalOnly {
			if _, set := opts[k]; set {
				return nil, &config.Error{Key: name + "." + k, Reason: "may only be set globally"}
			}
		}

		options := slices.Clone(def.Options)
		if def.OptionKey != "" {
			if v, set := opts[def.OptionKey]; set {
				options = asList(v)
				if len(options) == 0 {
					return nil, &config.Error{Key: name + "." + def.OptionKey, Reason: "empty option list"}
				}
			}
		}
		if len(options) == 0 {
			options = []any{nil}
		}

		variables, err := positional(name, source.KeyVariables, opts, len(options), def.OptionKey)
		if err != nil {
			return nil, err
		}
		datasetIDs, err := positional(name, source.KeyDatasetIDs, opts, len(options), def.OptionKey)
		if err != nil {
			return nil, err
		}

		for i, option := range options {
			m := maps.Clone(globals)
			for k, v := range opts {
				m[k] = v
			}
			if def.OptionKey != "" {
				m[def.OptionKey] = option
			}
			m[source.KeyVariables] = variables[i]
			m[source.KeyDatasetIDs] = datasetIDs[i]

			spec := source.NewSpec(m)
			id, err := planID(name, i, spec)
			if err != nil {
				return nil, fmt.Errorf("source %s[%d]: %w", name, i, err)
			}
			plans = append(plans, Plan{Source: name, Index: i, ID: id, Spec: spec})
		}
	}
	return plans, nil
}

// sourceOptions checks a source's overrides of the global keys Parse
// validates, so a bad override fails here rather than inside a reader. A
// kw override is stored parsed.
func sourceOptions(name string, opts map[string]any) (map[string]any, error) {
	if len(opts) == 0 {
		return opts, nil
	}
	out := maps.Clone(opts)
	if v := out[config.KeyKW]; v != nil {
		kw, err := config.ParseKW(v)
		if err != nil {
			var ce *config.Error
			if errors.As(err, &ce) {
				return nil, &config.Error{Key: name + "." + ce.Key, Reason: ce.Reason}
			}
			return nil, err
		}
		out[config.KeyKW] = kw
	}
	if v, set := out[config.KeyParallel]; set {
		if _, ok := v.(bool); !ok {
			return nil, &config.Error{Key: name + "." + config.KeyParallel, Reason: fmt.Sprintf("must be a boolean, got %T", v)}
		}
	}
	return out, nil
}

// asList wraps a non-list value in a one-element list. nil is an empty list.
func asList(v any) []any {
	switch x := v.(type) {
	case nil:
		return nil
	case []any:
		return slices.Clone(x)
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out
	default:
		return []any{v}
	}
}

// positional returns the per-instance values for key: the user's list when
// given, else n nils.
func positional(name, key string, opts map[string]any, n int, optionKey string) ([]any, error) {
	v, set := opts[key]
	if !set || v == nil {
		return make([]any, n), nil
	}
	list := asList(v)
	if len(list) != n {
		against := "the single reader instance"
		if optionKey != "" {
			against = fmt.Sprintf("%d %s entries", n, optionKey)
		}
		return nil, &config.Error{
			Key:    name + "." + key,
			Reason: fmt.Sprintf("has %d entries but must pair with %s", len(list), against),
		}
	}
	return list, nil
}

func planID(name string, index int, spec source.Spec) (uuid.UUID, error) {
	b, err := json.Marshal(spec.Map())
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.NewSHA1(planNamespace, fmt.Appendf(nil, "%s/%d/%s", name, index, b)), nil
}
