package strata

import (
	"github.com/charmbracelet/log"
)

// verifyMigrations compares the applied history rows against the
// migrations supplied by the caller and selects the ones left to apply.
// It fails when:
//   - abortDivergent is set and an applied row shares a version with a
//     supplied migration but differs in name or checksum;
//   - abortMissingOnFilesystem is set and an applied row has no supplied
//     counterpart (the file went missing);
//   - abortMissingOnApplied is set and a versioned supplied migration
//     sits at or below the current version yet was never applied;
//   - the same version appears twice among the migrations to apply.
//
// With the corresponding abort flag unset, divergent and missing
// situations are logged instead of raised. Unversioned migrations below
// the current version are admitted; that is the out-of-order merge path.
func verifyMigrations(applied, migrations []*Migration, abortDivergent, abortMissingOnFilesystem, abortMissingOnApplied bool, logger *log.Logger) ([]*Migration, error) {
	sortMigrations(migrations)

	for _, app := range applied {
		var match *Migration
		for _, m := range migrations {
			if m.Version() == app.Version() {
				match = m
				break
			}
		}
		if match == nil {
			if abortMissingOnFilesystem {
				return nil, errMissingVersion(app, "migration "+app.String()+" is missing from the filesystem")
			}
			logger.Warn("migration is missing from the filesystem", "migration", app.String())
			continue
		}
		if !match.equal(app) {
			if abortDivergent {
				return nil, errDivergentVersion(app, match)
			}
			logger.Warn("applied migration is different than filesystem one",
				"applied", app.String(), "filesystem", match.String())
		}
	}

	// use -1 as versions might start with 0
	current := int32(-1)
	if len(applied) > 0 {
		current = applied[len(applied)-1].Version()
		logger.Info("current version", "version", current)
	} else {
		logger.Info("schema history table is empty, going to apply all migrations")
	}

	var toApply []*Migration
	for _, m := range migrations {
		appliedAlready := false
		for _, app := range applied {
			if app.Version() == m.Version() {
				appliedAlready = true
				break
			}
		}
		if appliedAlready {
			continue
		}

		repeated := false
		for _, sel := range toApply {
			if sel.Version() == m.Version() {
				repeated = true
				break
			}
		}
		switch {
		case repeated:
			return nil, errRepeatedVersion(m)
		case m.Prefix() == Versioned && current >= m.Version():
			// the file was added after later versions were applied
			if abortMissingOnApplied {
				return nil, errMissingVersion(m, "found migration on file system "+m.String()+" not applied")
			}
			logger.Warn("found migration on file system not applied", "migration", m.String())
			toApply = append(toApply, m)
		default:
			toApply = append(toApply, m)
		}
	}

	return toApply, nil
}
