package registry

import (
	"slices"
	"testing"

	"oceangateway/internal/reader"
)

func TestDefaultTable(t *testing.T) {
	table := Default(reader.Deps{})
	if err := table.Validate(); err != nil {
		t.Fatal(err)
	}
	if want := []string{"erddap", "axds", "local", "delta"}; !slices.Equal(table.Names(), want) {
		t.Errorf("names = %v, want %v", table.Names(), want)
	}
	def, ok := table.Lookup("erddap")
	if !ok || def.OptionKey != "known_server" || len(def.Options) != 2 {
		t.Errorf("erddap definition = %+v", def)
	}
	if def, _ := table.Lookup("local"); def.OptionKey != "" {
		t.Errorf("local has option key %q", def.OptionKey)
	}
}
