package duckdb

import "github.com/leapstack-labs/cohortsql/pkg/dialect"

func init() {
	dialect.Register(DuckDB)
}

// DuckDB is the DuckDB dialect.
var DuckDB = dialect.New(Config).
	DateAdd(dialect.QuotedIntervalDateAdd).
	Convert(dialect.CastConvert).
	Build()
