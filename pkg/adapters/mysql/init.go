// Package mysql provides a MySQL and MariaDB warehouse adapter for cohortsql.
//
// This file registers the mysql and mariadb adapters with the adapter
// registry. Import this package with a blank identifier to register them:
//
//	import _ "github.com/leapstack-labs/cohortsql/pkg/adapters/mysql"
package mysql

import (
	"log/slog"

	"github.com/leapstack-labs/cohortsql/pkg/adapter"

	// Import dialect to ensure it's registered
	_ "github.com/leapstack-labs/cohortsql/pkg/dialects/mysql"
)

func init() {
	adapter.Register("mysql", func(logger *slog.Logger) adapter.Adapter { return New(logger) })
	adapter.Register("mariadb", func(logger *slog.Logger) adapter.Adapter { return NewMariaDB(logger) })
}
