// Package sqlexec adapts any database/sql connection to the executor
// capability the strata engine consumes. Backend differences are
// confined to a Dialect: history-table DDL, transaction support and the
// isolation used for history reads.
package sqlexec

import (
	"database/sql"
	"fmt"
)

// Dialect captures what differs between SQL backends.
type Dialect struct {
	// name identifies the dialect in errors and logs.
	name string
	// assertTableFmt is the CREATE-if-absent statement for the history
	// table, with one %s verb for the table name (two for MSSQL).
	assertTableFmt string
	// transactional is false for backends with no transaction support at
	// all; statements then run bare.
	transactional bool
	// historyIsolation is the isolation level for history reads, or nil
	// to read outside a transaction.
	historyIsolation *sql.TxOptions
}

// Name returns the dialect name.
func (d Dialect) Name() string { return d.name }

var repeatableRead = &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}

const portableAssertTable = `CREATE TABLE IF NOT EXISTS %s(
	version INT4 PRIMARY KEY,
	name VARCHAR(255),
	applied_on VARCHAR(255),
	checksum VARCHAR(255));`

var (
	// Postgres covers PostgreSQL and wire-compatible servers.
	Postgres = Dialect{
		name:             "postgres",
		assertTableFmt:   portableAssertTable,
		transactional:    true,
		historyIsolation: repeatableRead,
	}

	// MySQL cannot roll back DDL; grouped mode works but a failed group
	// leaves already-run DDL in place.
	MySQL = Dialect{
		name:             "mysql",
		assertTableFmt:   portableAssertTable,
		transactional:    true,
		historyIsolation: repeatableRead,
	}

	// SQLite also serves libsql/Turso connections.
	SQLite = Dialect{
		name:           "sqlite",
		assertTableFmt: portableAssertTable,
		transactional:  true,
	}

	// MSSQL has no CREATE TABLE IF NOT EXISTS; the catalog is probed
	// instead.
	MSSQL = Dialect{
		name: "mssql",
		assertTableFmt: `IF NOT EXISTS(SELECT 1 FROM sys.Tables WHERE Name = N'%s')
	BEGIN
		CREATE TABLE %s(
			version INT PRIMARY KEY,
			name VARCHAR(255),
			applied_on VARCHAR(255),
			checksum VARCHAR(255));
	END`,
		transactional: true,
	}

	// ClickHouse has no transactions; every statement is final when it
	// returns. The history table keeps checksum as VARCHAR so all
	// dialects scan through one row shape.
	ClickHouse = Dialect{
		name: "clickhouse",
		assertTableFmt: `CREATE TABLE IF NOT EXISTS %s(
	version INT4,
	name VARCHAR(255),
	applied_on VARCHAR(255),
	checksum VARCHAR(255)) Engine=MergeTree() ORDER BY version;`,
		transactional: false,
	}
)

// assertTableQuery renders the dialect's history-table DDL.
func (d Dialect) assertTableQuery(table string) string {
	if d.name == "mssql" {
		return fmt.Sprintf(d.assertTableFmt, table, table)
	}
	return fmt.Sprintf(d.assertTableFmt, table)
}
