package strata

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

// memConn is an in-memory Conn for exercising the runner without a
// database. It records what the engine asked it to do and can be told
// to fail at a given step.
type memConn struct {
	applied []*Migration

	groupedBatches [][]string
	steps          []Step

	failAtStep  int // 0-indexed; -1 disables
	failGrouped bool
	asserter    func(table string) string
}

func newMemConn() *memConn {
	return &memConn{failAtStep: -1}
}

func (c *memConn) ExecuteGrouped(ctx context.Context, queries []string) (int, error) {
	if c.failGrouped && len(queries) > 1 {
		return 0, errors.New("boom")
	}
	c.groupedBatches = append(c.groupedBatches, queries)
	return len(queries), nil
}

func (c *memConn) Execute(ctx context.Context, steps []Step) (int, error) {
	count := 0
	for _, s := range steps {
		if c.failAtStep >= 0 && len(c.steps) == c.failAtStep {
			return count, errors.New("boom")
		}
		c.steps = append(c.steps, s)
		count++
	}
	return count, nil
}

func (c *memConn) QuerySchemaHistory(ctx context.Context, query string) ([]*Migration, error) {
	if strings.Contains(query, "MAX(version)") && len(c.applied) > 0 {
		return c.applied[len(c.applied)-1:], nil
	}
	return c.applied, nil
}

func reportVersions(r *Report) []int32 {
	var vs []int32
	for _, m := range r.AppliedMigrations() {
		vs = append(vs, m.Version())
	}
	return vs
}

func wantVersions(t *testing.T, got []int32, want ...int32) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got versions %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("got versions %v, want %v", got, want)
		}
	}
}

// markApplied simulates history rows for migrations a prior run applied.
func (c *memConn) markApplied(report *Report) {
	for _, m := range report.AppliedMigrations() {
		c.applied = append(c.applied, Applied(m.Version(), m.Name(), *m.AppliedOn(), m.Checksum()))
	}
}

func TestRunAppliesAllPending(t *testing.T) {
	conn := newMemConn()
	migrations := testMigrations(t)

	report, err := NewRunner(migrations).Run(context.Background(), conn)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	wantVersions(t, reportVersions(report), 1, 2, 3, 4)

	// one table assert plus one step per migration
	if len(conn.groupedBatches) != 1 {
		t.Fatalf("expected 1 grouped batch (table assert), got %d", len(conn.groupedBatches))
	}
	if !strings.Contains(conn.groupedBatches[0][0], DefaultTableName) {
		t.Errorf("table assert query missing table name: %s", conn.groupedBatches[0][0])
	}
	if len(conn.steps) != 4 {
		t.Fatalf("expected 4 steps, got %d", len(conn.steps))
	}
	for i, s := range conn.steps {
		if !strings.Contains(s.Update, fmt.Sprintf("VALUES (%d,", i+1)) {
			t.Errorf("step %d history insert wrong: %s", i, s.Update)
		}
	}
}

func TestRunSecondCallIsNoOp(t *testing.T) {
	conn := newMemConn()
	migrations := testMigrations(t)
	runner := NewRunner(migrations)

	first, err := runner.Run(context.Background(), conn)
	if err != nil {
		t.Fatalf("first Run failed: %v", err)
	}
	conn.markApplied(first)
	conn.steps = nil

	second, err := runner.Run(context.Background(), conn)
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
	if len(second.AppliedMigrations()) != 0 {
		t.Fatalf("second run applied %d migrations", len(second.AppliedMigrations()))
	}
	if len(conn.steps) != 0 {
		t.Fatalf("second run executed %d steps", len(conn.steps))
	}
}

func TestRunPartialFailureCarriesReport(t *testing.T) {
	conn := newMemConn()
	conn.failAtStep = 2
	migrations := testMigrations(t)

	_, err := NewRunner(migrations).Run(context.Background(), conn)
	var serr *Error
	if !errors.As(err, &serr) || serr.Kind() != KindConnection {
		t.Fatalf("expected Connection error, got %v", err)
	}
	if serr.Report() == nil {
		t.Fatal("expected partial report")
	}
	wantVersions(t, reportVersions(serr.Report()), 1, 2)
	if len(conn.steps) != 2 {
		t.Fatalf("expected 2 durable steps, got %d", len(conn.steps))
	}
}

func TestRunGroupedSingleBatch(t *testing.T) {
	conn := newMemConn()
	migrations := testMigrations(t)

	report, err := NewRunner(migrations).SetGrouped(true).Run(context.Background(), conn)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	wantVersions(t, reportVersions(report), 1, 2, 3, 4)

	// table assert batch plus one batch of sql+insert pairs
	if len(conn.groupedBatches) != 2 {
		t.Fatalf("expected 2 grouped batches, got %d", len(conn.groupedBatches))
	}
	if got := len(conn.groupedBatches[1]); got != 8 {
		t.Fatalf("expected 8 grouped queries, got %d", got)
	}
	if len(conn.steps) != 0 {
		t.Fatalf("grouped run used per-migration steps")
	}
}

func TestRunGroupedFailureHasNoReport(t *testing.T) {
	conn := newMemConn()
	conn.failGrouped = true
	migrations := testMigrations(t)

	_, err := NewRunner(migrations).SetGrouped(true).Run(context.Background(), conn)
	var serr *Error
	if !errors.As(err, &serr) || serr.Kind() != KindConnection {
		t.Fatalf("expected Connection error, got %v", err)
	}
	if serr.Report() != nil {
		t.Fatal("grouped failure must not carry a report")
	}
}

func TestRunFakeOnlyWritesHistory(t *testing.T) {
	conn := newMemConn()
	migrations := testMigrations(t)

	report, err := NewRunner(migrations).SetTarget(Fake()).Run(context.Background(), conn)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	wantVersions(t, reportVersions(report), 1, 2, 3, 4)

	if len(conn.steps) != 0 {
		t.Fatal("fake run executed migration steps")
	}
	batch := conn.groupedBatches[len(conn.groupedBatches)-1]
	if len(batch) != 4 {
		t.Fatalf("expected 4 history inserts, got %d", len(batch))
	}
	for _, q := range batch {
		if !strings.HasPrefix(q, "INSERT INTO") {
			t.Errorf("fake batch ran non-insert query: %s", q)
		}
	}
}

func TestRunTargetVersionStops(t *testing.T) {
	conn := newMemConn()
	migrations := testMigrations(t)

	report, err := NewRunner(migrations).SetTarget(TargetVersion(2)).Run(context.Background(), conn)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	wantVersions(t, reportVersions(report), 1, 2)

	// a later default run picks up the rest
	conn.markApplied(report)
	rest, err := NewRunner(migrations).Run(context.Background(), conn)
	if err != nil {
		t.Fatalf("follow-up Run failed: %v", err)
	}
	wantVersions(t, reportVersions(rest), 3, 4)
}

func TestRunTargetBelowFirstAppliesNothing(t *testing.T) {
	conn := newMemConn()
	migrations := testMigrations(t)[1:] // first has version 2

	report, err := NewRunner(migrations).SetTarget(TargetVersion(1)).Run(context.Background(), conn)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(report.AppliedMigrations()) != 0 {
		t.Fatalf("expected zero applied, got %v", reportVersions(report))
	}
}

func TestRunFakeVersionBounded(t *testing.T) {
	conn := newMemConn()
	migrations := testMigrations(t)

	report, err := NewRunner(migrations).SetTarget(FakeVersion(2)).Run(context.Background(), conn)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	wantVersions(t, reportVersions(report), 1, 2)
	batch := conn.groupedBatches[len(conn.groupedBatches)-1]
	if len(batch) != 2 {
		t.Fatalf("expected 2 history inserts, got %d", len(batch))
	}
}

func TestRunNoTransactionFlagReachesExecutor(t *testing.T) {
	conn := newMemConn()
	m := mustUnapplied(t, "V1__concurrent_idx", "-- strata:no_transaction\nCREATE INDEX CONCURRENTLY idx ON t(x);")

	if _, err := NewRunner([]*Migration{m}).Run(context.Background(), conn); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(conn.steps) != 1 || !conn.steps[0].Content.NoTransaction() {
		t.Fatal("no-transaction flag lost on the way to the executor")
	}
}

func TestRunIterYieldsPerStep(t *testing.T) {
	conn := newMemConn()
	migrations := testMigrations(t)

	var got []int32
	for m, err := range NewRunner(migrations).RunIter(context.Background(), conn) {
		if err != nil {
			t.Fatalf("RunIter yielded error: %v", err)
		}
		got = append(got, m.Version())
	}
	wantVersions(t, got, 1, 2, 3, 4)
	if len(conn.steps) != 4 {
		t.Fatalf("expected 4 steps, got %d", len(conn.steps))
	}
}

func TestRunIterStopsAfterError(t *testing.T) {
	conn := newMemConn()
	conn.failAtStep = 1
	migrations := testMigrations(t)

	var got []int32
	var sawErr error
	yields := 0
	for m, err := range NewRunner(migrations).RunIter(context.Background(), conn) {
		yields++
		if err != nil {
			sawErr = err
			continue
		}
		got = append(got, m.Version())
	}
	if sawErr == nil {
		t.Fatal("expected an error yield")
	}
	if yields != 2 {
		t.Fatalf("expected 2 yields (one success, one error), got %d", yields)
	}
	wantVersions(t, got, 1)
}

func TestRunIterEarlyBreakLeavesRestPending(t *testing.T) {
	conn := newMemConn()
	migrations := testMigrations(t)

	for range NewRunner(migrations).RunIter(context.Background(), conn) {
		break
	}
	if len(conn.steps) != 1 {
		t.Fatalf("expected exactly 1 step after break, got %d", len(conn.steps))
	}
}

func TestRunIterRejectsGrouped(t *testing.T) {
	conn := newMemConn()
	migrations := testMigrations(t)

	for _, err := range NewRunner(migrations).SetGrouped(true).RunIter(context.Background(), conn) {
		var serr *Error
		if !errors.As(err, &serr) || serr.Kind() != KindConfig {
			t.Fatalf("expected config error, got %v", err)
		}
		return
	}
	t.Fatal("expected one yielded error")
}

func TestRunIterSurfacesReconcileFailureFirst(t *testing.T) {
	conn := newMemConn()
	migrations := testMigrations(t)
	divergent := mustUnapplied(t, "V1__initial_changed", "CREATE TABLE persons (id int);")
	conn.applied = []*Migration{Applied(1, divergent.Name(), *asApplied(divergent).AppliedOn(), divergent.Checksum())}

	for _, err := range NewRunner(migrations).RunIter(context.Background(), conn) {
		var serr *Error
		if !errors.As(err, &serr) || serr.Kind() != KindDivergentVersion {
			t.Fatalf("expected DivergentVersion, got %v", err)
		}
		return
	}
	t.Fatal("expected one yielded error")
}

func TestGetLastAppliedMigration(t *testing.T) {
	conn := newMemConn()
	migrations := testMigrations(t)
	runner := NewRunner(migrations)

	last, err := runner.GetLastAppliedMigration(context.Background(), conn)
	if err != nil {
		t.Fatalf("GetLastAppliedMigration failed: %v", err)
	}
	if last != nil {
		t.Fatalf("expected nil before any run, got %s", last)
	}

	report, err := runner.Run(context.Background(), conn)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	conn.markApplied(report)

	last, err = runner.GetLastAppliedMigration(context.Background(), conn)
	if err != nil {
		t.Fatalf("GetLastAppliedMigration failed: %v", err)
	}
	if last == nil || last.Version() != 4 {
		t.Fatalf("last = %v, want version 4", last)
	}
}

func TestSetMigrationTableNamePanicsOnEmpty(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on empty table name")
		}
	}()
	NewRunner(nil).SetMigrationTableName("")
}

func TestRunCustomTableName(t *testing.T) {
	conn := newMemConn()
	migrations := testMigrations(t)[:1]

	_, err := NewRunner(migrations).SetMigrationTableName("my_history").Run(context.Background(), conn)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !strings.Contains(conn.groupedBatches[0][0], "my_history") {
		t.Errorf("assert query ignored custom table: %s", conn.groupedBatches[0][0])
	}
	if !strings.Contains(conn.steps[0].Update, "my_history") {
		t.Errorf("insert query ignored custom table: %s", conn.steps[0].Update)
	}
}
