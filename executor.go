package strata

import "context"

// Step is one unit of per-migration application: the migration content
// followed by the SQL that records it in the history table. When the
// content's NoTransaction flag is set the two statements run bare;
// otherwise the adapter wraps them in one transaction.
type Step struct {
	Content *Content
	Update  string
}

// Executor is the write half of the capability the engine requires from
// a driver adapter.
type Executor interface {
	// ExecuteGrouped runs the queries inside a single database
	// transaction. On any failure the transaction is rolled back and no
	// statement is visible. Backends without transactional DDL cannot
	// honour the rollback for schema statements; that is a documented
	// property of those backends, not of the adapter.
	ExecuteGrouped(ctx context.Context, queries []string) (int, error)

	// Execute runs each step in order, honouring the per-step
	// transaction discipline described on Step. Steps completed before a
	// failure are durable; the returned count is the number of steps
	// that completed.
	Execute(ctx context.Context, steps []Step) (int, error)
}

// Querier is the read half of the capability: it runs a parameterless
// SELECT over the four history columns, under the isolation appropriate
// for the backend (repeatable read where available).
type Querier interface {
	QuerySchemaHistory(ctx context.Context, query string) ([]*Migration, error)
}

// Conn is the full capability a Runner needs.
type Conn interface {
	Executor
	Querier
}

// TableAsserter is optionally implemented by adapters whose backend
// needs non-standard DDL to create the history table (MSSQL's catalog
// guard, ClickHouse's engine clause). When absent the engine issues the
// portable CREATE TABLE IF NOT EXISTS form.
type TableAsserter interface {
	AssertTableQuery(table string) string
}
