package file

import (
	"fmt"
	"os"
)

// migration transforms a config mapping from one version to the next.
type migration struct {
	from    int
	to      int
	migrate func(raw map[string]any) (map[string]any, error)
}

// migrations is the ordered list of config migrations.
// Empty for now: version 1 is the initial format.
var migrations []migration

// migrateFile runs all necessary migrations on the config file and returns
// the migrated envelope. Before each step the current file is backed up.
func migrateFile(path string, data []byte, env envelope, format string) (envelope, error) {
	return runMigrations(path, data, env, format, migrations)
}

func runMigrations(path string, data []byte, env envelope, format string, steps []migration) (envelope, error) {
	from := env.Version
	for _, m := range steps {
		if m.from != env.Version {
			continue
		}

		backupPath := fmt.Sprintf("%s.v%d.bak", path, env.Version)
		if err := os.WriteFile(backupPath, data, 0o644); err != nil {
			return envelope{}, fmt.Errorf("backup before migration v%d→v%d: %w", m.from, m.to, err)
		}

		cfg, err := m.migrate(env.Config)
		if err != nil {
			return envelope{}, fmt.Errorf("migration v%d→v%d: %w", m.from, m.to, err)
		}
		env = envelope{Version: m.to, Config: cfg}

		data, err = encode(env, format)
		if err != nil {
			return envelope{}, fmt.Errorf("encode migrated config: %w", err)
		}
		if err := writeAtomic(path, data, format); err != nil {
			return envelope{}, fmt.Errorf("write migrated config: %w", err)
		}
	}

	if env.Version != currentVersion {
		return envelope{}, fmt.Errorf("no migration path from version %d to %d", from, currentVersion)
	}
	return env, nil
}
