package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Dicklesworthstone/strata"
	"github.com/Dicklesworthstone/strata/internal/config"
	"github.com/Dicklesworthstone/strata/internal/output"
)

var flagSetupFile string

func init() {
	setupCmd.Flags().StringVarP(&flagSetupFile, "file", "f", "./strata.toml", "where to write the config file")
	rootCmd.AddCommand(setupCmd)
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactively generate the config file",
	Long: `Walk through the database connection settings and write them to a
strata.toml config file for later migrate runs.`,
	RunE: runSetup,
}

func runSetup(cmd *cobra.Command, args []string) error {
	cfg, err := configFromInput(bufio.NewReader(os.Stdin))
	if err != nil {
		return err
	}
	if err := cfg.WriteFile(flagSetupFile); err != nil {
		return err
	}
	output.New().Successf("wrote %s", flagSetupFile)
	return nil
}

func prompt(r *bufio.Reader, question string) (string, error) {
	fmt.Print(question)
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// promptPassword reads without echo when stdin is a terminal, falling
// back to a plain read otherwise (tests, pipes).
func promptPassword(r *bufio.Reader, question string) (string, error) {
	fmt.Print(question)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		raw, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(raw)), nil
	}
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func configFromInput(r *bufio.Reader) (*config.Config, error) {
	choice, err := prompt(r, "Select database 1) Mysql 2) Postgres 3) Sqlite 4) Mssql 5) Clickhouse 6) Turso: ")
	if err != nil {
		return nil, err
	}

	types := map[string]config.DBType{
		"1": config.Mysql,
		"2": config.Postgres,
		"3": config.Sqlite,
		"4": config.Mssql,
		"5": config.Clickhouse,
		"6": config.Turso,
	}
	dbType, ok := types[choice]
	if !ok {
		return nil, strata.ConfigError(fmt.Sprintf("invalid option %q", choice))
	}
	cfg := config.New(dbType)

	if dbType == config.Sqlite {
		path, err := prompt(r, "Enter database path: ")
		if err != nil {
			return nil, err
		}
		cfg.Main.DBPath = path
		return cfg, nil
	}
	if dbType == config.Turso {
		u, err := prompt(r, "Enter libsql database URL: ")
		if err != nil {
			return nil, err
		}
		cfg.Main.URL = u
		return cfg, nil
	}

	if cfg.Main.DBHost, err = prompt(r, "Enter database host: "); err != nil {
		return nil, err
	}
	if cfg.Main.DBPort, err = prompt(r, "Enter database port: "); err != nil {
		return nil, err
	}
	if cfg.Main.DBUser, err = prompt(r, "Enter database username: "); err != nil {
		return nil, err
	}
	if cfg.Main.DBPass, err = promptPassword(r, "Enter database password: "); err != nil {
		return nil, err
	}
	if cfg.Main.DBName, err = prompt(r, "Enter database name: "); err != nil {
		return nil, err
	}

	if dbType == config.Mssql {
		trust, err := prompt(r, "Trust server certificate? (y/N): ")
		if err != nil {
			return nil, err
		}
		cfg.Main.TrustCert = strings.EqualFold(trust, "y") || strings.EqualFold(trust, "yes")
	}

	return cfg, nil
}
