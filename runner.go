package strata

import (
	"context"
	"iter"

	"github.com/charmbracelet/log"
)

// Runner holds an immutable migration set plus the options of one
// migration cycle. Options follow the builder style: each setter returns
// the runner for chaining.
//
// A Run or RunIter call holds exclusive use of the supplied connection
// from entry to return; concurrent calls on the same connection are
// undefined.
type Runner struct {
	grouped                  bool
	abortDivergent           bool
	abortMissingOnFilesystem bool
	abortMissingOnApplied    bool
	migrations               []*Migration
	target                   Target
	tableName                string
	logger                   *log.Logger
}

// NewRunner creates a runner over the given migration set with defaults:
// per-migration mode, Latest target, all abort flags on, the default
// history table.
func NewRunner(migrations []*Migration) *Runner {
	ms := make([]*Migration, len(migrations))
	copy(ms, migrations)
	return &Runner{
		grouped:                  false,
		abortDivergent:           true,
		abortMissingOnFilesystem: true,
		abortMissingOnApplied:    true,
		migrations:               ms,
		target:                   Latest(),
		tableName:                DefaultTableName,
		logger:                   log.Default(),
	}
}

// GetMigrations returns the gathered migrations.
func (r *Runner) GetMigrations() []*Migration {
	return r.migrations
}

// SetTarget sets the version up to which the runner migrates. A version
// higher than the latest available is ignored. Fake targets only create
// and update the schema history table.
func (r *Runner) SetTarget(target Target) *Runner {
	r.target = target
	return r
}

// SetGrouped makes the runner apply all selected migrations in a single
// transaction. Off by default. On backends without transactional DDL a
// failed group cannot be unpicked automatically.
func (r *Runner) SetGrouped(grouped bool) *Runner {
	r.grouped = grouped
	return r
}

// SetAbortDivergent controls failing on applied migrations whose disk
// counterpart has the same version but a different name or checksum.
// On by default.
func (r *Runner) SetAbortDivergent(abort bool) *Runner {
	r.abortDivergent = abort
	return r
}

// SetAbortMissing sets both missing flags together, the legacy
// single-flag behaviour.
func (r *Runner) SetAbortMissing(abort bool) *Runner {
	r.abortMissingOnFilesystem = abort
	r.abortMissingOnApplied = abort
	return r
}

// SetAbortMissingOnFilesystem controls failing on applied migrations
// with no disk counterpart. On by default.
func (r *Runner) SetAbortMissingOnFilesystem(abort bool) *Runner {
	r.abortMissingOnFilesystem = abort
	return r
}

// SetAbortMissingOnApplied controls failing on versioned disk
// migrations whose version is at or below the current one yet were
// never applied. On by default.
func (r *Runner) SetAbortMissingOnApplied(abort bool) *Runner {
	r.abortMissingOnApplied = abort
	return r
}

// SetMigrationTableName overrides the history table name. Changing this
// on an existing project orphans the rows under the old name.
//
// Panics if name is empty.
func (r *Runner) SetMigrationTableName(name string) *Runner {
	if name == "" {
		panic("migration table name must not be empty")
	}
	r.tableName = name
	return r
}

// SetLogger replaces the runner's logger. The default is the package
// default logger.
func (r *Runner) SetLogger(logger *log.Logger) *Runner {
	r.logger = logger
	return r
}

// GetLastAppliedMigration queries the database for the last applied
// migration, or nil if none have been applied.
func (r *Runner) GetLastAppliedMigration(ctx context.Context, conn Conn) (*Migration, error) {
	return getLastAppliedMigration(ctx, conn, r.tableName)
}

// GetAppliedMigrations queries the database for all applied migrations,
// ordered by version.
func (r *Runner) GetAppliedMigrations(ctx context.Context, conn Conn) ([]*Migration, error) {
	return getAppliedMigrations(ctx, conn, r.tableName)
}

// getUnapplied asserts the history table, reads the applied rows and
// reconciles them against the runner's migration set.
func (r *Runner) getUnapplied(ctx context.Context, conn Conn) ([]*Migration, error) {
	if err := assertMigrationsTable(ctx, conn, r.tableName); err != nil {
		return nil, err
	}

	applied, err := getAppliedMigrations(ctx, conn, r.tableName)
	if err != nil {
		return nil, err
	}

	toApply, err := verifyMigrations(applied, r.migrations, r.abortDivergent, r.abortMissingOnFilesystem, r.abortMissingOnApplied, r.logger)
	if err != nil {
		return nil, err
	}
	if len(toApply) == 0 {
		r.logger.Info("no migrations to apply")
	}
	return toApply, nil
}

// Run applies the pending migrations on the supplied connection and
// returns a Report of what was applied. The call blocks only on SQL
// execution and history queries, honouring ctx at step boundaries.
func (r *Runner) Run(ctx context.Context, conn Conn) (*Report, error) {
	toApply, err := r.getUnapplied(ctx, conn)
	if err != nil {
		return nil, err
	}
	return migrate(ctx, conn, toApply, r.target, r.tableName, r.grouped, r.logger)
}

// RunIter returns a sequence that applies one pending migration per
// advance and yields it. Reconciliation runs eagerly on the first
// advance, so divergent or missing failures surface immediately. After
// the first yielded error the sequence terminates. Stopping iteration
// between steps is safe and leaves the database in the last committed
// state; nothing already applied is rolled back.
//
// Per-migration mode only: grouped runners and fake targets yield a
// single configuration error.
func (r *Runner) RunIter(ctx context.Context, conn Conn) iter.Seq2[*Migration, error] {
	return func(yield func(*Migration, error) bool) {
		if r.grouped || r.target.fake() {
			yield(nil, ConfigError("RunIter supports per-migration mode only"))
			return
		}

		toApply, err := r.getUnapplied(ctx, conn)
		if err != nil {
			yield(nil, err)
			return
		}

		var applied []*Migration
		for _, m := range toApply {
			if bound, ok := r.target.bound(); ok && bound < m.Version() {
				r.logger.Info("stopping at migration due to user option", "target", bound)
				return
			}

			r.logger.Info("applying migration", "migration", m.String())
			m.setApplied()
			step := Step{Content: m.Content(), Update: insertMigrationQuery(m, r.tableName)}
			if _, err := conn.Execute(ctx, []Step{step}); err != nil {
				yield(nil, errConnection("error applying migration "+m.String(), err, applied))
				return
			}
			applied = append(applied, m)
			if !yield(m, nil) {
				return
			}
		}
	}
}
