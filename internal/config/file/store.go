// Package file provides a file-based config.Store.
//
// Configuration is persisted as a versioned envelope, in YAML or JSON
// depending on the file extension:
//
//	version: 1
//	config:
//	  approach: region
//	  ...
//
// Save rewrites the whole file atomically through a temp file and rename.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"oceangateway/internal/config"

	"gopkg.in/yaml.v2"
)

const currentVersion = 1

// Formats selected by extension.
const (
	FormatYAML = "yaml"
	FormatJSON = "json"
)

// envelope is the versioned on-disk format.
type envelope struct {
	Version int            `json:"version" yaml:"version"`
	Config  map[string]any `json:"config" yaml:"config"`
}

// Store is a file-based config.Store.
type Store struct {
	path   string
	format string
}

var _ config.Store = (*Store)(nil)

// NewStore creates a store for path. Files ending in .json are JSON;
// everything else is YAML.
func NewStore(path string) *Store {
	return &Store{path: path, format: FormatFor(path)}
}

// FormatFor picks the encoding for path.
func FormatFor(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// Path returns the file the store reads and writes.
func (s *Store) Path() string { return s.path }

func decode(data []byte, format string) (envelope, error) {
	var env envelope
	var err error
	if format == FormatJSON {
		err = json.Unmarshal(data, &env)
	} else {
		err = yaml.Unmarshal(data, &env)
	}
	if err != nil {
		return envelope{}, err
	}
	env.Config = config.Clone(env.Config)
	return env, nil
}

func encode(env envelope, format string) ([]byte, error) {
	if format == FormatJSON {
		return json.MarshalIndent(env, "", "  ")
	}
	return yaml.Marshal(env)
}

// Load reads the configuration mapping from disk.
// Returns nil if the file does not exist.
func (s *Store) Load(ctx context.Context) (map[string]any, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	env, err := decode(data, s.format)
	if err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	if env.Version == 0 {
		return nil, fmt.Errorf("config file %s has no version; wrap it as {version: %d, config: ...}", s.path, currentVersion)
	}
	if env.Version > currentVersion {
		return nil, fmt.Errorf("config file version %d is newer than supported version %d", env.Version, currentVersion)
	}
	if env.Version < currentVersion {
		migrated, err := migrateFile(s.path, data, env, s.format)
		if err != nil {
			return nil, fmt.Errorf("migrate config: %w", err)
		}
		env = migrated
	}
	return env.Config, nil
}

// Save atomically writes raw to disk with round-trip validation.
func (s *Store) Save(ctx context.Context, raw map[string]any) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := encode(envelope{Version: currentVersion, Config: config.Clone(raw)}, s.format)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return writeAtomic(s.path, data, s.format)
}

func writeAtomic(path string, data []byte, format string) error {
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}

	// Re-read and decode before replacing the original.
	check, err := os.ReadFile(tmpPath)
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("read-back temp file: %w", err)
	}
	if _, err := decode(check, format); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("round-trip validation failed: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename config file: %w", err)
	}
	return nil
}
