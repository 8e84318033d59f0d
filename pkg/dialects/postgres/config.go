// Package postgres provides the PostgreSQL dialect definition.
// This package is pure Go with no database driver dependencies.
package postgres

import "github.com/leapstack-labs/cohortsql/pkg/core"

// Config is the PostgreSQL dialect configuration.
var Config = &core.DialectConfig{
	Name:          "postgres",
	DefaultSchema: "public",
	Placeholder:   core.PlaceholderDollar,
	Identifiers: core.IdentifierConfig{
		Quote:    `"`,
		QuoteEnd: `"`,
		Escape:   `""`,
	},
	Now:       "NOW()",
	Intersect: "INTERSECT",
	Except:    "EXCEPT",
	Types: map[core.ColumnType]string{
		core.ColumnString:  "TEXT",
		core.ColumnInteger: "INTEGER",
		core.ColumnDecimal: "NUMERIC(18,3)",
		core.ColumnDate:    "TIMESTAMP",
		core.ColumnBoolean: "BOOLEAN",
		core.ColumnGUID:    "UUID",
	},
}
