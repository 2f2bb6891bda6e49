package erddap

import (
	"context"

	"oceangateway/internal/cache"
	"oceangateway/internal/config"
	"oceangateway/internal/reader"
	"oceangateway/internal/source"
)

// ListVariables lists every variable name the server categorizes, with the
// number of datasets carrying it. The listing costs one request per
// variable, so it is cached when a cache is configured.
func (t *Type) ListVariables(ctx context.Context, spec source.Spec) ([]source.VariableCount, error) {
	alias := spec.String(KeyServer)
	if alias == "" {
		return nil, &config.Error{Key: Name + "." + KeyServer, Reason: "required to list variables"}
	}
	server, err := ResolveServer(alias)
	if err != nil {
		return nil, err
	}
	return cache.Get(ctx, t.deps.Cache, "erddap variables "+server, func(ctx context.Context) ([]source.VariableCount, error) {
		var cats table
		if err := t.deps.Fetch.GetJSON(ctx, server+"/categorize/variableName/index.json?page=1&itemsPerPage=100000", &cats); err != nil {
			return nil, err
		}
		names, err := cats.strings("Category")
		if err != nil {
			return nil, err
		}
		urls, err := cats.strings("URL")
		if err != nil {
			return nil, err
		}
		byName := make(map[string]string, len(names))
		for i, n := range names {
			byName[n] = urls[i]
		}

		counts, err := reader.Collect(ctx, names, reader.ParallelWorkers, func(ctx context.Context, name string) (int, error) {
			var res table
			if err := t.deps.Fetch.GetJSON(ctx, byName[name], &res); err != nil {
				return 0, err
			}
			return len(res.Table.Rows), nil
		})
		if err != nil {
			return nil, err
		}
		out := make([]source.VariableCount, 0, len(names))
		for _, n := range names {
			out = append(out, source.VariableCount{Name: n, Count: counts[n]})
		}
		t.logger.Debug("listed variables", "server", server, "count", len(out))
		return out, nil
	})
}
