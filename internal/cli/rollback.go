package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	flagRollbackConfig string
	flagRollbackPath   string
	flagRollbackCount  uint32
	flagRollbackAll    bool
	flagRollbackTarget int32
)

func init() {
	rollbackCmd.Flags().StringVarP(&flagRollbackConfig, "config", "c", "./strata.toml", "config file location")
	rollbackCmd.Flags().StringVarP(&flagRollbackPath, "path", "p", "./migrations", "migrations directory path")
	rollbackCmd.Flags().Uint32Var(&flagRollbackCount, "count", 0, "roll back only this many migrations")
	rollbackCmd.Flags().BoolVar(&flagRollbackAll, "all", false, "roll back all migrations")
	rollbackCmd.Flags().Int32Var(&flagRollbackTarget, "target", -1, "roll back down to the given version")

	rootCmd.AddCommand(rollbackCmd)
}

var rollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Roll back applied migrations",
	Long: `Validate a rollback selection. The engine does not roll back
migrations: once the flags are validated the command exits with an error.

One of --count, --all or --target selects how far to roll back; they are
mutually exclusive. Without any, the selection is the last migration.`,
	RunE: runRollback,
}

// rollbackSelection validates the mutually exclusive rollback flags and
// returns a human-readable description of the selection.
func rollbackSelection(count uint32, all bool, target int32) (string, error) {
	set := 0
	if count > 0 {
		set++
	}
	if all {
		set++
	}
	if target >= 0 {
		set++
	}
	if set > 1 {
		return "", fmt.Errorf("only one of --count, --all or --target may be given")
	}

	switch {
	case all:
		return "all migrations", nil
	case target >= 0:
		return fmt.Sprintf("down to version %d", target), nil
	case count > 0:
		return fmt.Sprintf("last %d migration(s)", count), nil
	default:
		return "last migration", nil
	}
}

func runRollback(cmd *cobra.Command, args []string) error {
	selection, err := rollbackSelection(flagRollbackCount, flagRollbackAll, flagRollbackTarget)
	if err != nil {
		return err
	}

	// The engine's rollback algorithm is pending a separate design; the
	// command validates its surface and reports that clearly rather than
	// guessing at semantics.
	return fmt.Errorf("rollback of %s is not supported by this engine yet", selection)
}
