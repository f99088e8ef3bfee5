// Package strata is an embeddable schema-migration engine. Callers hand it
// an ordered set of migrations (typically loaded from an embedded
// filesystem) and a database connection; the engine decides which
// migrations remain, runs them under the selected transaction discipline,
// and records each one in a schema history table.
package strata

import (
	"fmt"
	"sort"
	"time"
)

// Prefix distinguishes the two migration families.
type Prefix int

const (
	// Versioned migrations participate in ordering and missing-version
	// checks. They come from files named V{version}__{name}.sql.
	Versioned Prefix = iota
	// Unversioned migrations use their version as an identifier only and
	// may be applied out of order. They come from U{version}__{name}.sql.
	Unversioned
)

func (p Prefix) String() string {
	if p == Unversioned {
		return "U"
	}
	return "V"
}

type state int

const (
	stateUnapplied state = iota
	stateApplied
)

// Content holds the executable part of an unapplied migration: the SQL
// and whether it must run outside a transaction.
type Content struct {
	sql           string
	noTransaction bool
}

// NewContent builds migration content. noTransaction should be true when
// the SQL cannot run inside a transaction (concurrent index builds and
// the like).
func NewContent(sql string, noTransaction bool) *Content {
	return &Content{sql: sql, noTransaction: noTransaction}
}

// SQL returns the migration's SQL text.
func (c *Content) SQL() string { return c.sql }

// NoTransaction reports whether the SQL must run outside a transaction.
func (c *Content) NoTransaction() bool { return c.noTransaction }

// Migration is a single schema change unit, either still to be applied or
// read back from the history table. The checksum is computed exactly once
// at construction and never recomputed from stored fields.
type Migration struct {
	state     state
	prefix    Prefix
	version   int32
	name      string
	checksum  uint64
	content   *Content
	appliedOn *time.Time
}

// Unapplied creates a migration from a file name (with or without the
// .sql extension) and its SQL. The no-transaction header, if present, is
// read from the SQL itself.
func Unapplied(inputName, sql string) (*Migration, error) {
	prefix, version, name, err := ParseName(inputName)
	if err != nil {
		return nil, err
	}
	return &Migration{
		state:    stateUnapplied,
		prefix:   prefix,
		version:  version,
		name:     name,
		checksum: checksum(name, version, sql),
		content:  NewContent(sql, scanNoTransaction(sql)),
	}, nil
}

// Applied reconstructs a migration from a history-table row. This is the
// only form the engine ever reads back from the database.
func Applied(version int32, name string, appliedOn time.Time, checksum uint64) *Migration {
	return &Migration{
		state: stateApplied,
		// applied migrations are always versioned
		prefix:    Versioned,
		version:   version,
		name:      name,
		checksum:  checksum,
		appliedOn: &appliedOn,
	}
}

// setApplied stamps the migration as applied now. Called immediately
// before the history insert is built so the recorded timestamp matches.
func (m *Migration) setApplied() {
	now := time.Now().UTC()
	m.appliedOn = &now
	m.state = stateApplied
}

// IsApplied reports whether the migration has been applied.
func (m *Migration) IsApplied() bool { return m.state == stateApplied }

// Prefix returns the migration family.
func (m *Migration) Prefix() Prefix { return m.prefix }

// Version returns the migration version.
func (m *Migration) Version() int32 { return m.version }

// Name returns the migration name.
func (m *Migration) Name() string { return m.name }

// Checksum returns the 64-bit checksum over name, version and SQL.
func (m *Migration) Checksum() uint64 { return m.checksum }

// Content returns the migration content, or nil for a migration read
// back from the history table. setApplied does not clear it, so a
// migration applied during a run keeps its content.
func (m *Migration) Content() *Content { return m.content }

// SQL returns the migration SQL, or the empty string when the migration
// has no content (a row read back from the history table).
func (m *Migration) SQL() string {
	if m.content == nil {
		return ""
	}
	return m.content.sql
}

// NoTransaction reports whether the migration runs outside a transaction.
func (m *Migration) NoTransaction() bool {
	return m.content != nil && m.content.noTransaction
}

// AppliedOn returns the application timestamp, or nil when unapplied.
func (m *Migration) AppliedOn() *time.Time { return m.appliedOn }

func (m *Migration) String() string {
	return fmt.Sprintf("%s%d__%s", m.prefix, m.version, m.name)
}

// equal reports value equality: two migrations are the same iff version,
// name and checksum all match.
func (m *Migration) equal(other *Migration) bool {
	return m.version == other.version && m.name == other.name && m.checksum == other.checksum
}

// sortMigrations orders migrations by version ascending, in place.
func sortMigrations(ms []*Migration) {
	sort.Slice(ms, func(i, j int) bool { return ms[i].version < ms[j].version })
}
