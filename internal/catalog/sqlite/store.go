// Package sqlite persists the variable catalog in a SQLite database, one
// row per generic variable name.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"oceangateway/internal/catalog"
)

// Store is a SQLite-backed catalog store.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path and migrates it.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create catalog directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set journal_mode: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load reads every row into a Catalog. An empty table yields (nil, nil) so
// callers can fall back to the built-in catalog.
func (s *Store) Load(ctx context.Context) (*catalog.Catalog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, units, fail_low, fail_high, suspect_low, suspect_high, patterns
		FROM variables ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query variables: %w", err)
	}
	defer rows.Close()

	var defs []catalog.Definition
	for rows.Next() {
		var (
			d        catalog.Definition
			patterns string
		)
		if err := rows.Scan(&d.Name, &d.Units, &d.FailSpan[0], &d.FailSpan[1], &d.SuspectSpan[0], &d.SuspectSpan[1], &patterns); err != nil {
			return nil, fmt.Errorf("scan variable: %w", err)
		}
		if err := json.Unmarshal([]byte(patterns), &d.Patterns); err != nil {
			return nil, fmt.Errorf("variable %s: decode patterns: %w", d.Name, err)
		}
		defs = append(defs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate variables: %w", err)
	}
	if len(defs) == 0 {
		return nil, nil
	}
	return catalog.New(defs)
}

// Save upserts every definition of c. Rows for names not in c are kept
// unless replace is set, in which case the table is cleared first.
func (s *Store) Save(ctx context.Context, c *catalog.Catalog, replace bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if replace {
		if _, err := tx.ExecContext(ctx, "DELETE FROM variables"); err != nil {
			return fmt.Errorf("clear variables: %w", err)
		}
	}

	stamp := s.now().UTC().Format(time.RFC3339)
	for _, d := range c.Definitions() {
		patterns, err := json.Marshal(d.Patterns)
		if err != nil {
			return fmt.Errorf("variable %s: encode patterns: %w", d.Name, err)
		}
		if d.Patterns == nil {
			patterns = []byte("[]")
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO variables (name, units, fail_low, fail_high, suspect_low, suspect_high, patterns, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(name) DO UPDATE SET
				units = excluded.units,
				fail_low = excluded.fail_low,
				fail_high = excluded.fail_high,
				suspect_low = excluded.suspect_low,
				suspect_high = excluded.suspect_high,
				patterns = excluded.patterns,
				updated_at = excluded.updated_at`,
			d.Name, d.Units, d.FailSpan.Low(), d.FailSpan.High(), d.SuspectSpan.Low(), d.SuspectSpan.High(), string(patterns), stamp)
		if err != nil {
			return fmt.Errorf("upsert variable %s: %w", d.Name, err)
		}
	}
	return tx.Commit()
}

// Delete removes one variable. Missing names are not an error.
func (s *Store) Delete(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM variables WHERE name = ?", name); err != nil {
		return fmt.Errorf("delete variable %s: %w", name, err)
	}
	return nil
}
