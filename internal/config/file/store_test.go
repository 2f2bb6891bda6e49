package file

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"oceangateway/internal/config"
)

var known = []string{"erddap", "axds", "local"}

func TestStoreLoadNotExist(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "gateway.yaml"))
	raw, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if raw != nil {
		t.Fatalf("expected nil config, got %+v", raw)
	}

	cfg, err := config.FromStore(context.Background(), s, known)
	if err != nil {
		t.Fatalf("FromStore: %v", err)
	}
	if cfg.Approach != config.ApproachRegion {
		t.Errorf("empty store should give defaults, got %+v", cfg)
	}
}

func TestStoreSaveLoad(t *testing.T) {
	for _, name := range []string{"gateway.yaml", "gateway.json"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)
			s := NewStore(path)
			ctx := context.Background()

			original := map[string]any{
				"approach": "stations",
				"kw":       map[string]any{"min_lon": -124.0, "max_lon": -123.0, "min_lat": 38.0, "max_lat": 39.0},
				"erddap":   map[string]any{"known_server": []any{"ioos"}, "variables": []any{[]any{"sea_water_temperature"}}},
			}
			if err := s.Save(ctx, original); err != nil {
				t.Fatalf("save: %v", err)
			}
			if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
				t.Error("temp file left behind")
			}

			cfg, err := config.FromStore(ctx, s, known)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if cfg.Approach != config.ApproachStations {
				t.Errorf("approach = %q", cfg.Approach)
			}
			if cfg.KW == nil || cfg.KW.MaxLat != 39 {
				t.Errorf("kw = %+v", cfg.KW)
			}
			servers, _ := cfg.Sources["erddap"]["known_server"].([]any)
			if len(servers) != 1 || servers[0] != "ioos" {
				t.Errorf("erddap options = %v", cfg.Sources["erddap"])
			}
		})
	}
}

func TestStoreRejectsVersions(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	unversioned := filepath.Join(dir, "plain.yaml")
	os.WriteFile(unversioned, []byte("approach: region\n"), 0o644)
	if _, err := NewStore(unversioned).Load(ctx); err == nil || !strings.Contains(err.Error(), "no version") {
		t.Errorf("unversioned error = %v", err)
	}

	future := filepath.Join(dir, "future.json")
	os.WriteFile(future, []byte(`{"version": 99, "config": {}}`), 0o644)
	if _, err := NewStore(future).Load(ctx); err == nil || !strings.Contains(err.Error(), "newer") {
		t.Errorf("future version error = %v", err)
	}
}

func TestRunMigrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	old := []byte("version: 0\nconfig:\n  mode: region\n")
	os.WriteFile(path, old, 0o644)

	steps := []migration{{
		from: 0, to: 1,
		migrate: func(raw map[string]any) (map[string]any, error) {
			raw["approach"] = raw["mode"]
			delete(raw, "mode")
			return raw, nil
		},
	}}
	env, err := runMigrations(path, old, envelope{Version: 0, Config: map[string]any{"mode": "region"}}, FormatYAML, steps)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if env.Version != 1 || env.Config["approach"] != "region" {
		t.Errorf("migrated envelope = %+v", env)
	}
	if _, err := os.Stat(path + ".v0.bak"); err != nil {
		t.Errorf("backup missing: %v", err)
	}

	raw, err := NewStore(path).Load(context.Background())
	if err != nil || raw["approach"] != "region" {
		t.Errorf("reload after migration: %v, %v", raw, err)
	}

	if _, err := runMigrations(path, old, envelope{Version: 0}, FormatYAML, nil); err == nil {
		t.Error("expected error without a migration path")
	}
}
