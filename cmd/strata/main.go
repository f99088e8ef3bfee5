package main

import (
	"os"

	"github.com/Dicklesworthstone/strata/internal/cli"

	// Register the database/sql drivers for every supported backend.
	_ "github.com/ClickHouse/clickhouse-go/v2"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/microsoft/go-mssqldb"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

func main() {
	os.Exit(cli.Execute())
}
