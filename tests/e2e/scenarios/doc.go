// Package scenarios contains end-to-end migration scenarios run against
// a real SQLite database: initial apply, re-run, divergence, grouped
// rollback, partial apply, fake targets, version targets and
// out-of-order merges.
package scenarios
