// Package duckdb provides the DuckDB dialect definition.
// This package is pure Go with no database driver dependencies.
package duckdb

import "github.com/leapstack-labs/cohortsql/pkg/core"

// Config is the DuckDB dialect configuration.
var Config = &core.DialectConfig{
	Name:          "duckdb",
	DefaultSchema: "main",
	Placeholder:   core.PlaceholderQuestion,
	Identifiers: core.IdentifierConfig{
		Quote:    `"`,
		QuoteEnd: `"`,
		Escape:   `""`,
	},
	Now:       "NOW()",
	Intersect: "INTERSECT",
	Except:    "EXCEPT",
	Types: map[core.ColumnType]string{
		core.ColumnString:  "VARCHAR",
		core.ColumnInteger: "INTEGER",
		core.ColumnDecimal: "DECIMAL(18,3)",
		core.ColumnDate:    "TIMESTAMP",
		core.ColumnBoolean: "BOOLEAN",
		core.ColumnGUID:    "UUID",
	},
}
