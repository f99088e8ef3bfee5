package strata

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// DefaultTableName is the history table used when the caller does not
// override it.
const DefaultTableName = "strata_schema_history"

const assertTableQuery = `CREATE TABLE IF NOT EXISTS %s(
	version INT4 PRIMARY KEY,
	name VARCHAR(255),
	applied_on VARCHAR(255),
	checksum VARCHAR(255));`

const getAppliedQuery = `SELECT version, name, applied_on, checksum FROM %s ORDER BY version ASC;`

const getLastAppliedQuery = `SELECT version, name, applied_on, checksum FROM %s WHERE version=(SELECT MAX(version) FROM %s);`

// assertMigrationsTable creates the history table if it does not exist.
// Adapters for backends with non-standard DDL supply their own statement
// through TableAsserter.
func assertMigrationsTable(ctx context.Context, conn Conn, table string) error {
	query := fmt.Sprintf(assertTableQuery, table)
	if ta, ok := conn.(TableAsserter); ok {
		query = ta.AssertTableQuery(table)
	}
	if _, err := conn.ExecuteGrouped(ctx, []string{query}); err != nil {
		return errConnection("error asserting migrations table", err, nil)
	}
	return nil
}

// getAppliedMigrations reads the history rows ordered by version.
func getAppliedMigrations(ctx context.Context, conn Conn, table string) ([]*Migration, error) {
	applied, err := conn.QuerySchemaHistory(ctx, fmt.Sprintf(getAppliedQuery, table))
	if err != nil {
		return nil, errConnection("error getting applied migrations", err, nil)
	}
	return applied, nil
}

// getLastAppliedMigration reads the history row with the highest
// version, or nil when the table is empty.
func getLastAppliedMigration(ctx context.Context, conn Conn, table string) (*Migration, error) {
	applied, err := conn.QuerySchemaHistory(ctx, fmt.Sprintf(getLastAppliedQuery, table, table))
	if err != nil {
		return nil, errConnection("error getting last applied migration", err, nil)
	}
	if len(applied) == 0 {
		return nil, nil
	}
	return applied[len(applied)-1], nil
}

// insertMigrationQuery builds the history insert for a migration that
// was just stamped applied. Values are interpolated literally; the name
// is the only field that can carry quoting characters and is escaped.
func insertMigrationQuery(m *Migration, table string) string {
	return fmt.Sprintf(
		"INSERT INTO %s (version, name, applied_on, checksum) VALUES (%d, '%s', '%s', '%d')",
		table,
		m.Version(),
		strings.ReplaceAll(m.Name(), "'", "''"),
		m.AppliedOn().Format(time.RFC3339),
		m.Checksum(),
	)
}
