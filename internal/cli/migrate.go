package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Dicklesworthstone/strata"
	"github.com/Dicklesworthstone/strata/internal/config"
	"github.com/Dicklesworthstone/strata/internal/output"
	"github.com/Dicklesworthstone/strata/sqlexec"
)

var (
	flagMigrateConfig      string
	flagMigratePath        string
	flagMigrateEnvVar      string
	flagMigrateGrouped     bool
	flagMigrateFake        bool
	flagMigrateTarget      int32
	flagMigrateTableName   string
	flagMigrateDivergent   bool
	flagMigrateMissingFS   bool
	flagMigrateMissingAppl bool
)

func init() {
	migrateCmd.Flags().StringVarP(&flagMigrateConfig, "config", "c", "./strata.toml", "config file location")
	migrateCmd.Flags().StringVarP(&flagMigratePath, "path", "p", "./migrations", "migrations directory path")
	migrateCmd.Flags().StringVarP(&flagMigrateEnvVar, "env-var", "e", "", "load the database URL from the given environment variable")
	migrateCmd.Flags().BoolVarP(&flagMigrateGrouped, "grouped", "g", false, "run all migrations in a single transaction")
	migrateCmd.Flags().BoolVar(&flagMigrateFake, "fake", false, "do not run migrations, only update the schema history table")
	migrateCmd.Flags().Int32Var(&flagMigrateTarget, "target", -1, "migrate up to the given version")
	migrateCmd.Flags().StringVar(&flagMigrateTableName, "table-name", strata.DefaultTableName, "schema history table name")
	migrateCmd.Flags().BoolVar(&flagMigrateDivergent, "divergent", false, "tolerate divergent migrations instead of aborting")
	migrateCmd.Flags().BoolVar(&flagMigrateMissingFS, "missing-on-filesystem", false, "tolerate migrations missing from the filesystem")
	migrateCmd.Flags().BoolVar(&flagMigrateMissingAppl, "missing-on-applied", false, "tolerate filesystem migrations never applied")

	rootCmd.AddCommand(migrateCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending migrations",
	Long: `Apply the pending migrations found under --path to the database
described by the config file (or by the URL in the environment variable
named with --env-var).

Examples:
  strata migrate -c strata.toml -p ./migrations
  strata migrate -e DATABASE_URL -p ./migrations --target 12
  strata migrate --fake`,
	RunE: runMigrate,
}

// loadCLIConfig resolves the CLI's database configuration: from the URL in
// the named environment variable when envVar is set (failing if that
// variable is unset or empty), otherwise from the config file.
func loadCLIConfig(configPath, envVar string) (*config.Config, error) {
	if envVar != "" {
		viper.AutomaticEnv()
		if v := viper.GetString(envVar); v != "" {
			return config.FromString(v)
		}
		return nil, strata.ConfigError(fmt.Sprintf("couldn't find %s environment variable", envVar))
	}
	return config.FromFile(configPath)
}

// migrateTarget combines the --fake and --target flags into a Target.
func migrateTarget(fake bool, target int32) strata.Target {
	switch {
	case fake && target >= 0:
		return strata.FakeVersion(target)
	case fake:
		return strata.Fake()
	case target >= 0:
		return strata.TargetVersion(target)
	default:
		return strata.Latest()
	}
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadCLIConfig(flagMigrateConfig, flagMigrateEnvVar)
	if err != nil {
		return err
	}

	migrations, err := strata.LoadDir(flagMigratePath)
	if err != nil {
		return err
	}
	log.Debug("loaded migrations", "count", len(migrations), "path", flagMigratePath)

	info, err := cfg.Conn()
	if err != nil {
		return err
	}

	db, err := sql.Open(info.Driver, info.DSN)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		return fmt.Errorf("pinging database: %w", err)
	}

	runner := strata.NewRunner(migrations).
		SetGrouped(flagMigrateGrouped).
		SetTarget(migrateTarget(flagMigrateFake, flagMigrateTarget)).
		SetAbortDivergent(!flagMigrateDivergent).
		SetAbortMissingOnFilesystem(!flagMigrateMissingFS).
		SetAbortMissingOnApplied(!flagMigrateMissingAppl).
		SetMigrationTableName(flagMigrateTableName)

	report, err := runner.Run(context.Background(), sqlexec.New(db, info.Dialect))
	out := output.New()
	if err != nil {
		var serr *strata.Error
		if errors.As(err, &serr) && serr.Report() != nil {
			for _, m := range serr.Report().AppliedMigrations() {
				out.Dimf("applied %s", m)
			}
		}
		return err
	}

	for _, m := range report.AppliedMigrations() {
		out.Plainf("applied %s", m)
	}
	out.Successf("%d migration(s) applied", len(report.AppliedMigrations()))
	return nil
}
