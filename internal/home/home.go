// Package home manages the oceangateway state directory.
//
// Layout:
//
//	<root>/
//	  gateway.yaml   or  gateway.json   (saved gateway configuration)
//	  catalog.db                        (variable catalog, SQLite)
//	  instance                          (human-readable instance name)
//	  cache/                            (listing cache, msgpack+zstd)
//	  exports/                          (flagged datasets written by `run --export`)
package home

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	petname "github.com/dustinkirkland/golang-petname"
)

// Dir is an oceangateway home directory.
type Dir struct {
	root string
}

// New creates a Dir rooted at root.
func New(root string) Dir {
	return Dir{root: root}
}

// Default returns the platform config location, e.g. ~/.config/oceangateway
// on Linux.
func Default() (Dir, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return Dir{}, fmt.Errorf("determine config directory: %w", err)
	}
	return Dir{root: filepath.Join(base, "oceangateway")}, nil
}

// Root returns the home directory path.
func (d Dir) Root() string {
	return d.root
}

// ConfigPath returns the saved gateway configuration for the given format
// ("yaml" or "json").
func (d Dir) ConfigPath(format string) string {
	if format == "json" {
		return filepath.Join(d.root, "gateway.json")
	}
	return filepath.Join(d.root, "gateway.yaml")
}

// CatalogPath returns the SQLite variable catalog path.
func (d Dir) CatalogPath() string {
	return filepath.Join(d.root, "catalog.db")
}

// CacheDir returns the listing cache directory.
func (d Dir) CacheDir() string {
	return filepath.Join(d.root, "cache")
}

// ExportDir returns the default export directory.
func (d Dir) ExportDir() string {
	return filepath.Join(d.root, "exports")
}

// EnsureExists creates the home directory (and parents) if needed.
func (d Dir) EnsureExists() error {
	if err := os.MkdirAll(d.root, 0o750); err != nil {
		return fmt.Errorf("create home directory %s: %w", d.root, err)
	}
	return nil
}

// InstanceName returns the persistent instance name stored in
// <root>/instance, generating a two-word petname on first use. It tags log
// lines and published reports.
func (d Dir) InstanceName() (string, error) {
	return d.readOrCreate("instance", func() string {
		return petname.Generate(2, "-")
	})
}

// readOrCreate reads a single-line value from <root>/<filename>, persisting
// generate() when the file is missing or empty.
func (d Dir) readOrCreate(filename string, generate func() string) (string, error) {
	p := filepath.Join(d.root, filename)
	data, err := os.ReadFile(p) //nolint:gosec // G304: trusted home dir + constant filename
	if err == nil {
		if v := strings.TrimSpace(string(data)); v != "" {
			return v, nil
		}
	}
	v := generate()
	if err := os.WriteFile(p, []byte(v+"\n"), 0o640); err != nil { //nolint:gosec // G306: not a secret
		return "", fmt.Errorf("write %s: %w", filename, err)
	}
	return v, nil
}
