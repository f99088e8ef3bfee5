package strata

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strconv"

	"github.com/charmbracelet/log"
)

// LoadFS gathers SQL migrations from dir within fsys, which is typically
// an embedded filesystem:
//
//	//go:embed migrations
//	var migrations embed.FS
//
//	ms, err := strata.LoadFS(migrations, "migrations")
//
// Files whose names do not match the migration naming convention are
// skipped with a warning. Two files with the same version fail with a
// DuplicateVersion error. The result is ordered by version.
func LoadFS(fsys fs.FS, dir string) ([]*Migration, error) {
	var migrations []*Migration
	versions := make(map[int32]bool)

	err := fs.WalkDir(fsys, dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		name := path.Base(p)
		captures := migrationNameRe.FindStringSubmatch(name)
		if captures == nil || captures[4] != "sql" {
			log.Warn("file does not adhere to the migration naming convention, skipping",
				"file", name)
			return nil
		}
		sql, err := fs.ReadFile(fsys, p)
		if err != nil {
			return err
		}
		m, err := Unapplied(name, string(sql))
		if err != nil {
			return err
		}
		if versions[m.Version()] {
			return errDuplicateVersion(strconv.Itoa(int(m.Version())))
		}
		versions[m.Version()] = true
		migrations = append(migrations, m)
		return nil
	})
	if err != nil {
		if serr, ok := err.(*Error); ok {
			return nil, serr
		}
		return nil, errInvalidMigrationPath(dir, err)
	}

	sortMigrations(migrations)
	return migrations, nil
}

// LoadDir gathers SQL migrations from a directory on the local
// filesystem, recursively.
func LoadDir(dir string) ([]*Migration, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, errInvalidMigrationPath(dir, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, errInvalidMigrationPath(dir, err)
	}
	return LoadFS(os.DirFS(abs), ".")
}
