// Package config implements the strata.toml configuration file and the
// construction of driver connection strings from it.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/Dicklesworthstone/strata"
)

// DBType enumerates the supported backends.
type DBType string

const (
	Mysql      DBType = "Mysql"
	Postgres   DBType = "Postgres"
	Sqlite     DBType = "Sqlite"
	Mssql      DBType = "Mssql"
	Clickhouse DBType = "Clickhouse"
	Turso      DBType = "Turso"
)

// dbTypes maps lower-cased names to their canonical form.
var dbTypes = map[string]DBType{
	"mysql":      Mysql,
	"postgres":   Postgres,
	"sqlite":     Sqlite,
	"mssql":      Mssql,
	"clickhouse": Clickhouse,
	"turso":      Turso,
}

// ParseDBType resolves a db_type value case-insensitively.
func ParseDBType(s string) (DBType, error) {
	if t, ok := dbTypes[strings.ToLower(s)]; ok {
		return t, nil
	}
	return "", strata.ConfigError(fmt.Sprintf("unknown db_type %q", s))
}

// Config mirrors the strata.toml file.
type Config struct {
	Main Main `toml:"main"`
}

// Main is the [main] section of the config file.
type Main struct {
	DBType DBType `toml:"db_type"`
	DBPath string `toml:"db_path,omitempty"`
	DBHost string `toml:"db_host,omitempty"`
	DBPort string `toml:"db_port,omitempty"`
	DBUser string `toml:"db_user,omitempty"`
	DBPass string `toml:"db_pass,omitempty"`
	DBName string `toml:"db_name,omitempty"`
	// TrustCert skips server certificate validation. MSSQL only.
	TrustCert bool `toml:"trust_cert,omitempty"`
	// URL is set when the config came from a connection URL rather than
	// a file; it is passed to the driver verbatim.
	URL string `toml:"-"`
}

// New returns a config for the given backend with everything else left
// to be filled in.
func New(dbType DBType) *Config {
	return &Config{Main: Main{DBType: dbType}}
}

// FromFile reads a TOML config file. A relative sqlite db_path is
// resolved against the config file's directory and canonicalised.
func FromFile(location string) (*Config, error) {
	raw, err := os.ReadFile(location)
	if err != nil {
		return nil, strata.ConfigError(fmt.Sprintf("could not open config file, %v", err))
	}

	var cfg Config
	if err := toml.Unmarshal(raw, &cfg); err != nil {
		return nil, strata.ConfigError(fmt.Sprintf("could not parse config file, %v", err))
	}

	if _, err := ParseDBType(string(cfg.Main.DBType)); err != nil {
		return nil, err
	}

	if cfg.Main.DBType == Sqlite {
		if cfg.Main.DBPath == "" {
			return nil, strata.ConfigError("field db_path must be present for Sqlite database type")
		}
		if !filepath.IsAbs(cfg.Main.DBPath) {
			dir, err := filepath.Abs(filepath.Dir(location))
			if err != nil {
				return nil, strata.ConfigError(fmt.Sprintf("invalid sqlite db path, %v", err))
			}
			cfg.Main.DBPath = filepath.Clean(filepath.Join(dir, cfg.Main.DBPath))
		}
	}

	return &cfg, nil
}

// FromString builds a config from a connection URL. Accepted schemes:
// mysql, postgres, postgresql, sqlite, mssql, plus libsql for Turso.
func FromString(s string) (*Config, error) {
	u, err := url.Parse(s)
	if err != nil {
		return nil, strata.ConfigError(fmt.Sprintf("could not parse database URL, %v", err))
	}

	var dbType DBType
	switch u.Scheme {
	case "mysql":
		dbType = Mysql
	case "postgres", "postgresql":
		dbType = Postgres
	case "sqlite":
		dbType = Sqlite
	case "mssql":
		dbType = Mssql
	case "libsql":
		dbType = Turso
	default:
		return nil, strata.ConfigError(fmt.Sprintf("unsupported database URL scheme %q", u.Scheme))
	}

	cfg := New(dbType)
	cfg.Main.URL = s
	cfg.Main.DBHost = u.Hostname()
	cfg.Main.DBPort = u.Port()
	cfg.Main.DBName = strings.TrimPrefix(u.Path, "/")
	if u.User != nil {
		cfg.Main.DBUser = u.User.Username()
		cfg.Main.DBPass, _ = u.User.Password()
	}
	if dbType == Sqlite {
		cfg.Main.DBPath = u.Opaque
		if cfg.Main.DBPath == "" {
			cfg.Main.DBPath = strings.TrimPrefix(s, "sqlite://")
		}
	}
	return cfg, nil
}

// FromEnv builds a config from a connection URL held in the named
// environment variable.
func FromEnv(name string) (*Config, error) {
	value, ok := os.LookupEnv(name)
	if !ok || value == "" {
		return nil, strata.ConfigError(fmt.Sprintf("couldn't find %s environment variable", name))
	}
	return FromString(value)
}

// WriteFile writes the config as TOML to location.
func (c *Config) WriteFile(location string) error {
	f, err := os.Create(location)
	if err != nil {
		return strata.ConfigError(fmt.Sprintf("could not create config file, %v", err))
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(c); err != nil {
		return strata.ConfigError(fmt.Sprintf("could not write config file, %v", err))
	}
	return nil
}
