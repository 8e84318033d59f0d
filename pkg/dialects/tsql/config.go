// Package tsql provides the Microsoft SQL Server dialect definition.
// This package is pure Go with no database driver dependencies.
package tsql

import "github.com/leapstack-labs/cohortsql/pkg/core"

// Config is the SQL Server dialect configuration.
var Config = &core.DialectConfig{
	Name:          "tsql",
	DefaultSchema: "dbo",
	Placeholder:   core.PlaceholderAtName,
	Identifiers: core.IdentifierConfig{
		Quote:    "[",
		QuoteEnd: "]",
		Escape:   "]]",
	},
	Now:       "GETDATE()",
	Intersect: "INTERSECT",
	Except:    "EXCEPT",
	Types: map[core.ColumnType]string{
		core.ColumnString:  "NVARCHAR(100)",
		core.ColumnInteger: "INT",
		core.ColumnDecimal: "DECIMAL(18,3)",
		core.ColumnDate:    "DATETIME",
		core.ColumnBoolean: "BIT",
		core.ColumnGUID:    "UNIQUEIDENTIFIER",
	},
}
