// Package registry assembles the built-in source table.
package registry

import (
	"oceangateway/internal/reader"
	"oceangateway/internal/reader/axds"
	"oceangateway/internal/reader/delta"
	"oceangateway/internal/reader/erddap"
	"oceangateway/internal/reader/local"
	"oceangateway/internal/source"
)

// Version is bumped whenever a source type is added, removed or reordered.
const Version = 1

// Default returns every built-in source type, in expansion order.
func Default(deps reader.Deps) source.Table {
	return source.Table{
		Version: Version,
		Definitions: []source.Definition{
			erddap.Definition(deps),
			axds.Definition(deps),
			local.Definition(deps),
			delta.Definition(deps),
		},
	}
}
