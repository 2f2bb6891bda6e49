package home

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	d, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	if filepath.Base(d.Root()) != "oceangateway" {
		t.Errorf("root = %s, want .../oceangateway", d.Root())
	}
}

func TestPaths(t *testing.T) {
	d := New("/data")
	cases := map[string]string{
		d.ConfigPath("yaml"): "/data/gateway.yaml",
		d.ConfigPath("json"): "/data/gateway.json",
		d.CatalogPath():      "/data/catalog.db",
		d.CacheDir():         "/data/cache",
		d.ExportDir():        "/data/exports",
	}
	for got, want := range cases {
		if got != want {
			t.Errorf("got %s, want %s", got, want)
		}
	}
}

func TestEnsureExists(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "oceangateway")
	d := New(root)
	if err := d.EnsureExists(); err != nil {
		t.Fatalf("EnsureExists: %v", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if !info.IsDir() {
		t.Error("expected directory")
	}
	if err := d.EnsureExists(); err != nil {
		t.Fatalf("second EnsureExists: %v", err)
	}
}

func TestInstanceNameIsStable(t *testing.T) {
	d := New(t.TempDir())

	first, err := d.InstanceName()
	if err != nil {
		t.Fatalf("InstanceName: %v", err)
	}
	if !strings.Contains(first, "-") {
		t.Errorf("instance name %q should be two hyphenated words", first)
	}

	second, err := d.InstanceName()
	if err != nil {
		t.Fatalf("InstanceName: %v", err)
	}
	if first != second {
		t.Errorf("instance name changed: %q then %q", first, second)
	}
}

func TestInstanceNameRespectsExistingFile(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "instance"), []byte("  salty-otter \n"), 0o640); err != nil {
		t.Fatal(err)
	}
	name, err := New(root).InstanceName()
	if err != nil {
		t.Fatalf("InstanceName: %v", err)
	}
	if name != "salty-otter" {
		t.Errorf("name = %q, want salty-otter", name)
	}
}
