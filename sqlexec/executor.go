package sqlexec

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/Dicklesworthstone/strata"
)

// Executor implements strata's executor capability over a *sql.DB.
type Executor struct {
	db      *sql.DB
	dialect Dialect
}

// New wraps db for the given dialect. The caller keeps ownership of db.
func New(db *sql.DB, dialect Dialect) *Executor {
	return &Executor{db: db, dialect: dialect}
}

// DB returns the wrapped connection.
func (e *Executor) DB() *sql.DB { return e.db }

// AssertTableQuery supplies the dialect's history-table DDL to the
// engine.
func (e *Executor) AssertTableQuery(table string) string {
	return e.dialect.assertTableQuery(table)
}

// ExecuteGrouped runs all queries inside one transaction, or bare on
// backends with no transaction support.
func (e *Executor) ExecuteGrouped(ctx context.Context, queries []string) (int, error) {
	if !e.dialect.transactional {
		for _, q := range queries {
			if _, err := e.db.ExecContext(ctx, q); err != nil {
				return 0, err
			}
		}
		return len(queries), nil
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	for _, q := range queries {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			tx.Rollback()
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(queries), nil
}

// Execute runs each step in order: the migration SQL then its history
// insert, wrapped in one transaction per step unless the content opts
// out. Completed steps are durable; the count reports how many finished.
func (e *Executor) Execute(ctx context.Context, steps []strata.Step) (int, error) {
	count := 0
	for _, step := range steps {
		if step.Content == nil {
			return count, fmt.Errorf("step %d has no content", count)
		}
		if step.Content.NoTransaction() || !e.dialect.transactional {
			if err := e.executeBare(ctx, step); err != nil {
				return count, err
			}
		} else {
			if err := e.executeTx(ctx, step); err != nil {
				return count, err
			}
		}
		count++
	}
	return count, nil
}

func (e *Executor) executeBare(ctx context.Context, step strata.Step) error {
	if _, err := e.db.ExecContext(ctx, step.Content.SQL()); err != nil {
		return err
	}
	_, err := e.db.ExecContext(ctx, step.Update)
	return err
}

func (e *Executor) executeTx(ctx context.Context, step strata.Step) error {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, step.Content.SQL()); err != nil {
		tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx, step.Update); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// QuerySchemaHistory reads the four history columns, under the
// dialect's read isolation when one is configured.
func (e *Executor) QuerySchemaHistory(ctx context.Context, query string) ([]*strata.Migration, error) {
	if e.dialect.historyIsolation == nil {
		rows, err := e.db.QueryContext(ctx, query)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		return scanMigrations(rows)
	}

	tx, err := e.db.BeginTx(ctx, e.dialect.historyIsolation)
	if err != nil {
		return nil, err
	}
	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	migrations, err := scanMigrations(rows)
	rows.Close()
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return migrations, nil
}

func scanMigrations(rows *sql.Rows) ([]*strata.Migration, error) {
	var migrations []*strata.Migration
	for rows.Next() {
		var (
			version   int64
			name      string
			appliedOn string
			checksum  string
		)
		if err := rows.Scan(&version, &name, &appliedOn, &checksum); err != nil {
			return nil, err
		}
		ts, err := time.Parse(time.RFC3339, appliedOn)
		if err != nil {
			return nil, fmt.Errorf("parsing applied_on %q: %w", appliedOn, err)
		}
		sum, err := strconv.ParseUint(checksum, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing checksum %q: %w", checksum, err)
		}
		migrations = append(migrations, strata.Applied(int32(version), name, ts, sum))
	}
	return migrations, rows.Err()
}
