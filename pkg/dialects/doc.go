// Package dialects registers every built-in dialect.
//
// Import this package with a blank identifier to make all dialects
// available through the dialect registry:
//
//	import _ "github.com/leapstack-labs/cohortsql/pkg/dialects"
package dialects

import (
	// Each dialect registers itself in init().
	_ "github.com/leapstack-labs/cohortsql/pkg/dialects/bigquery"
	_ "github.com/leapstack-labs/cohortsql/pkg/dialects/duckdb"
	_ "github.com/leapstack-labs/cohortsql/pkg/dialects/mysql"
	_ "github.com/leapstack-labs/cohortsql/pkg/dialects/oracle"
	_ "github.com/leapstack-labs/cohortsql/pkg/dialects/postgres"
	_ "github.com/leapstack-labs/cohortsql/pkg/dialects/tsql"
)
