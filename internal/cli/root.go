// Package cli implements the strata command line interface.
package cli

import (
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "strata",
	Short: "Run schema migrations against a database",
	Long: `strata brings a database schema to a target version from an ordered
set of migration files, keeping an auditable history of what was applied.

Migration files are named (U|V){version}__{name}.sql. V migrations are
versioned and applied strictly in order; U migrations may be merged out
of order.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if flagVerbose {
			log.SetLevel(log.DebugLevel)
		}
	},
}

var flagVerbose bool

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the CLI. It returns a process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		log.Error(err.Error())
		return 1
	}
	return 0
}

// GetRootCmd exposes the root command for tests.
func GetRootCmd() *cobra.Command {
	return rootCmd
}
