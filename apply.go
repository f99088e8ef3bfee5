package strata

import (
	"context"

	"github.com/charmbracelet/log"
)

// migrate applies the reconciled to-apply list in the requested mode.
// Fake targets force the grouped path so the history updates land in a
// single batch with no migration SQL.
func migrate(ctx context.Context, conn Conn, migrations []*Migration, target Target, table string, grouped bool, logger *log.Logger) (*Report, error) {
	if grouped || target.fake() {
		return migrateGrouped(ctx, conn, migrations, target, table, logger)
	}
	return migrateIndividual(ctx, conn, migrations, target, table, logger)
}

// migrateIndividual applies one migration per Execute step. A failure
// stops the cycle; the error carries a Report of the durable prefix.
func migrateIndividual(ctx context.Context, conn Conn, migrations []*Migration, target Target, table string, logger *log.Logger) (*Report, error) {
	var applied []*Migration

	for _, m := range migrations {
		if bound, ok := target.bound(); ok && bound < m.Version() {
			logger.Info("stopping at migration due to user option", "target", bound)
			break
		}

		logger.Info("applying migration", "migration", m.String())
		m.setApplied()
		step := Step{Content: m.Content(), Update: insertMigrationQuery(m, table)}
		if _, err := conn.Execute(ctx, []Step{step}); err != nil {
			return nil, errConnection("error applying migration "+m.String(), err, applied)
		}
		applied = append(applied, m)
	}

	return newReport(applied), nil
}

// migrateGrouped runs every selected statement in one ExecuteGrouped
// batch. For fake targets only the history inserts are batched.
func migrateGrouped(ctx context.Context, conn Conn, migrations []*Migration, target Target, table string, logger *log.Logger) (*Report, error) {
	var queries []string
	var applied []*Migration

	for _, m := range migrations {
		if bound, ok := target.bound(); ok && bound < m.Version() {
			break
		}

		m.setApplied()
		applied = append(applied, m)
		if !target.fake() {
			queries = append(queries, m.SQL())
		}
		queries = append(queries, insertMigrationQuery(m, table))
	}

	if target.fake() {
		logger.Info("not going to apply any migration as fake flag is enabled")
	} else {
		names := make([]string, len(applied))
		for i, m := range applied {
			names[i] = m.String()
		}
		logger.Info("going to apply batch migrations in single transaction", "migrations", names)
	}
	if bound, ok := target.bound(); ok {
		logger.Info("stopping at migration due to user option", "target", bound)
	}

	if _, err := conn.ExecuteGrouped(ctx, queries); err != nil {
		return nil, errConnection("error applying migrations", err, nil)
	}

	return newReport(applied), nil
}
