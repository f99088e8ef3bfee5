package config

import (
	"fmt"
	"net/url"

	"github.com/Dicklesworthstone/strata"
	"github.com/Dicklesworthstone/strata/sqlexec"
)

// ConnInfo is everything needed to open a database/sql connection for a
// config: the registered driver name, its DSN and the SQL dialect.
type ConnInfo struct {
	Driver  string
	DSN     string
	Dialect sqlexec.Dialect
}

// Conn builds the connection info for the config. Driver names match
// the registrations in cmd/strata.
func (c *Config) Conn() (*ConnInfo, error) {
	m := c.Main
	switch m.DBType {
	case Postgres:
		dsn := m.URL
		if dsn == "" {
			u := url.URL{
				Scheme: "postgres",
				User:   url.UserPassword(m.DBUser, m.DBPass),
				Host:   hostPort(m.DBHost, m.DBPort),
				Path:   "/" + m.DBName,
			}
			dsn = u.String()
		}
		return &ConnInfo{Driver: "pgx", DSN: dsn, Dialect: sqlexec.Postgres}, nil

	case Mysql:
		dsn := fmt.Sprintf("%s:%s@tcp(%s)/%s", m.DBUser, m.DBPass, hostPort(m.DBHost, m.DBPort), m.DBName)
		return &ConnInfo{Driver: "mysql", DSN: dsn, Dialect: sqlexec.MySQL}, nil

	case Sqlite:
		if m.DBPath == "" {
			return nil, strata.ConfigError("field db_path must be present for Sqlite database type")
		}
		// WAL and a busy timeout so concurrent readers don't trip the
		// migration writer.
		dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)", m.DBPath)
		return &ConnInfo{Driver: "sqlite", DSN: dsn, Dialect: sqlexec.SQLite}, nil

	case Mssql:
		q := url.Values{}
		q.Set("database", m.DBName)
		if m.TrustCert {
			q.Set("TrustServerCertificate", "true")
		}
		u := url.URL{
			Scheme:   "sqlserver",
			User:     url.UserPassword(m.DBUser, m.DBPass),
			Host:     hostPort(m.DBHost, m.DBPort),
			RawQuery: q.Encode(),
		}
		return &ConnInfo{Driver: "sqlserver", DSN: u.String(), Dialect: sqlexec.MSSQL}, nil

	case Clickhouse:
		q := url.Values{}
		if m.DBUser != "" {
			q.Set("username", m.DBUser)
		}
		if m.DBPass != "" {
			q.Set("password", m.DBPass)
		}
		u := url.URL{
			Scheme:   "clickhouse",
			Host:     hostPort(m.DBHost, m.DBPort),
			Path:     "/" + m.DBName,
			RawQuery: q.Encode(),
		}
		return &ConnInfo{Driver: "clickhouse", DSN: u.String(), Dialect: sqlexec.ClickHouse}, nil

	case Turso:
		if m.URL == "" {
			return nil, strata.ConfigError("Turso databases are configured from a libsql:// URL")
		}
		return &ConnInfo{Driver: "libsql", DSN: m.URL, Dialect: sqlexec.SQLite}, nil
	}

	return nil, strata.ConfigError(fmt.Sprintf("unknown db_type %q", m.DBType))
}

func hostPort(host, port string) string {
	if port == "" {
		return host
	}
	return host + ":" + port
}
