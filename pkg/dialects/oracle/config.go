// Package oracle provides the Oracle dialect definition.
// This package is pure Go with no database driver dependencies.
package oracle

import "github.com/leapstack-labs/cohortsql/pkg/core"

// Config is the Oracle dialect configuration.
var Config = &core.DialectConfig{
	Name:        "oracle",
	Placeholder: core.PlaceholderColonName,
	Identifiers: core.IdentifierConfig{
		Quote:    `"`,
		QuoteEnd: `"`,
		Escape:   `""`,
	},
	Now:       "SYSDATE",
	Intersect: "INTERSECT",
	Except:    "MINUS",

	OmitTableAliasAs: true,
	Types: map[core.ColumnType]string{
		core.ColumnString:  "NVARCHAR2(100)",
		core.ColumnInteger: "INTEGER",
		core.ColumnDecimal: "NUMBER(18,3)",
		core.ColumnDate:    "DATE",
		core.ColumnBoolean: "NUMBER(1)",
		core.ColumnGUID:    "CHAR(36)",
	},
}
