// Package mysql provides the MySQL and MariaDB dialect definitions.
// This package is pure Go with no database driver dependencies.
package mysql

import "github.com/leapstack-labs/cohortsql/pkg/core"

// Config is the MySQL dialect configuration.
// EXCEPT is left unset; older servers reject it. Types are column types;
// CONVERT maps them to cast targets.
var Config = &core.DialectConfig{
	Name:          "mysql",
	DefaultSchema: "",
	Placeholder:   core.PlaceholderQuestion,
	Identifiers: core.IdentifierConfig{
		Quote:    "`",
		QuoteEnd: "`",
		Escape:   "``",
	},
	Now:       "NOW()",
	Intersect: "INTERSECT",
	Types: map[core.ColumnType]string{
		core.ColumnString:  "VARCHAR(100)",
		core.ColumnInteger: "INT",
		core.ColumnDecimal: "DECIMAL(18,3)",
		core.ColumnDate:    "DATETIME",
		core.ColumnBoolean: "TINYINT(1)",
		core.ColumnGUID:    "CHAR(36)",
	},
}

// MariaDBConfig is the MariaDB dialect configuration.
var MariaDBConfig = func() *core.DialectConfig {
	cfg := *Config
	cfg.Name = "mariadb"
	return &cfg
}()
