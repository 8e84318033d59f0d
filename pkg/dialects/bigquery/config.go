// Package bigquery provides the Google BigQuery dialect definition.
// This package is pure Go with no database driver dependencies.
package bigquery

import "github.com/leapstack-labs/cohortsql/pkg/core"

// Config is the BigQuery dialect configuration.
var Config = &core.DialectConfig{
	Name:        "bigquery",
	Placeholder: core.PlaceholderAtName,
	Identifiers: core.IdentifierConfig{
		Quote:    "`",
		QuoteEnd: "`",
		Escape:   "\\`",
	},
	Now:       "CURRENT_DATETIME()",
	Intersect: "INTERSECT DISTINCT",
	Except:    "EXCEPT DISTINCT",
	Types: map[core.ColumnType]string{
		core.ColumnString:  "STRING",
		core.ColumnInteger: "INT64",
		core.ColumnDecimal: "NUMERIC",
		core.ColumnDate:    "DATETIME",
		core.ColumnBoolean: "BOOL",
		core.ColumnGUID:    "STRING",
	},
}
