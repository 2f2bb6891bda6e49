package source

import (
	"fmt"
	"slices"
)

// Definition registers one source type with the gateway.
type Definition struct {
	// Name is the configuration key for this source type.
	Name string

	// OptionKey names the primary option (for example "known_server").
	// Empty when the type has no primary option.
	OptionKey string

	// Options are the built-in values of the primary option. A user value
	// under OptionKey replaces them entirely.
	Options []any

	Type Type
}

// Table is the ordered set of source types a gateway can expand into.
// Version identifies the table layout for callers that persist it.
type Table struct {
	Version     int
	Definitions []Definition
}

// Validate checks names are unique and every definition is usable.
func (t Table) Validate() error {
	seen := map[string]bool{}
	for i, d := range t.Definitions {
		switch {
		case d.Name == "":
			return fmt.Errorf("source table entry %d: empty name", i)
		case seen[d.Name]:
			return fmt.Errorf("source table: duplicate type %q", d.Name)
		case d.Type == nil:
			return fmt.Errorf("source type %q: no implementation", d.Name)
		case len(d.Options) > 0 && d.OptionKey == "":
			return fmt.Errorf("source type %q: built-in options without an option key", d.Name)
		}
		seen[d.Name] = true
	}
	return nil
}

// Names returns the source type names in table order.
func (t Table) Names() []string {
	names := make([]string, len(t.Definitions))
	for i, d := range t.Definitions {
		names[i] = d.Name
	}
	return names
}

// Lookup finds a definition by name.
func (t Table) Lookup(name string) (Definition, bool) {
	i := slices.IndexFunc(t.Definitions, func(d Definition) bool { return d.Name == name })
	if i < 0 {
		return Definition{}, false
	}
	return t.Definitions[i], true
}
