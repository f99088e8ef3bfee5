// Package harness provides the E2E test environment for migration
// scenarios: a temp project directory with a real SQLite database and a
// migrations directory the tests mutate between runs.
package harness

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/Dicklesworthstone/strata"
	"github.com/Dicklesworthstone/strata/sqlexec"

	_ "modernc.org/sqlite"
)

// Env is an isolated migration-scenario environment.
type Env struct {
	T *testing.T

	// ProjectDir is the root of the temp project.
	ProjectDir string

	// MigrationsDir holds the scenario's migration files.
	MigrationsDir string

	// DB is the scenario database.
	DB *sql.DB

	// Exec adapts DB for the engine.
	Exec *sqlexec.Executor
}

// New creates an isolated environment with an empty database and an
// empty migrations directory.
func New(t *testing.T) *Env {
	t.Helper()

	projectDir := t.TempDir()
	migrationsDir := filepath.Join(projectDir, "migrations")
	if err := os.MkdirAll(migrationsDir, 0o755); err != nil {
		t.Fatalf("creating migrations dir: %v", err)
	}

	dbPath := filepath.Join(projectDir, "app.db")
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)", dbPath))
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Ping(); err != nil {
		t.Fatalf("pinging database: %v", err)
	}

	return &Env{
		T:             t,
		ProjectDir:    projectDir,
		MigrationsDir: migrationsDir,
		DB:            db,
		Exec:          sqlexec.New(db, sqlexec.SQLite),
	}
}

// WriteMigration writes (or replaces) a migration file.
func (e *Env) WriteMigration(name, sql string) {
	e.T.Helper()
	if err := os.WriteFile(filepath.Join(e.MigrationsDir, name), []byte(sql), 0o644); err != nil {
		e.T.Fatalf("writing migration %s: %v", name, err)
	}
}

// RemoveMigration deletes a migration file.
func (e *Env) RemoveMigration(name string) {
	e.T.Helper()
	if err := os.Remove(filepath.Join(e.MigrationsDir, name)); err != nil {
		e.T.Fatalf("removing migration %s: %v", name, err)
	}
}

// Load reads the current migration set from the migrations directory.
func (e *Env) Load() []*strata.Migration {
	e.T.Helper()
	migrations, err := strata.LoadDir(e.MigrationsDir)
	if err != nil {
		e.T.Fatalf("loading migrations: %v", err)
	}
	return migrations
}

// Run loads the migration set and runs the given runner configuration
// against the scenario database.
func (e *Env) Run(configure func(*strata.Runner) *strata.Runner) (*strata.Report, error) {
	e.T.Helper()
	runner := strata.NewRunner(e.Load())
	if configure != nil {
		runner = configure(runner)
	}
	return runner.Run(context.Background(), e.Exec)
}

// HistoryRow is one (version, name, checksum) row of the history table.
type HistoryRow struct {
	Version  int
	Name     string
	Checksum string
}

// History reads the history table, or nil when it does not exist yet.
func (e *Env) History() []HistoryRow {
	e.T.Helper()
	if !e.TableExists(strata.DefaultTableName) {
		return nil
	}
	rows, err := e.DB.Query(fmt.Sprintf("SELECT version, name, checksum FROM %s ORDER BY version ASC", strata.DefaultTableName))
	if err != nil {
		e.T.Fatalf("reading history: %v", err)
	}
	defer rows.Close()

	var out []HistoryRow
	for rows.Next() {
		var r HistoryRow
		if err := rows.Scan(&r.Version, &r.Name, &r.Checksum); err != nil {
			e.T.Fatalf("scanning history row: %v", err)
		}
		out = append(out, r)
	}
	if rows.Err() != nil {
		e.T.Fatalf("iterating history: %v", rows.Err())
	}
	return out
}

// TableExists reports whether a table exists in the scenario database.
func (e *Env) TableExists(name string) bool {
	e.T.Helper()
	var count int
	err := e.DB.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, name).Scan(&count)
	if err != nil {
		e.T.Fatalf("querying sqlite_master: %v", err)
	}
	return count > 0
}

// ColumnExists reports whether a column exists on a table.
func (e *Env) ColumnExists(table, column string) bool {
	e.T.Helper()
	rows, err := e.DB.Query(fmt.Sprintf(`PRAGMA table_info(%s)`, table))
	if err != nil {
		e.T.Fatalf("pragma table_info: %v", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			cid       int
			name, typ string
			notnull   int
			dflt      sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &typ, &notnull, &dflt, &pk); err != nil {
			e.T.Fatalf("scanning table_info: %v", err)
		}
		if name == column {
			return true
		}
	}
	return false
}
