// Package adapter provides the warehouse adapter contract for cohortsql.
//
// Compiled cohort and extract statements are executed through an Adapter.
// Concrete adapter implementations are in pkg/adapters/ subdirectories and
// register themselves on import.
package adapter

import (
	"context"
	"database/sql"

	"github.com/leapstack-labs/cohortsql/pkg/core"
)

type (
	// Config is an alias for core.AdapterConfig.
	Config = core.AdapterConfig

	// Rows is an alias for core.Rows.
	Rows = core.Rows
)

// Adapter defines the interface that all warehouse adapters must implement.
type Adapter interface {
	// Connect establishes a connection to the warehouse using the provided config.
	Connect(ctx context.Context, cfg Config) error

	// Close closes the connection and releases resources.
	Close() error

	// Exec executes a statement that doesn't return rows.
	Exec(ctx context.Context, sql string, args ...any) error

	// Query executes a statement that returns rows.
	Query(ctx context.Context, sql string, args ...any) (*Rows, error)

	// Conn returns a single pooled connection. Statements that share
	// session state (temporary tables, declared variables) run on one Conn.
	Conn(ctx context.Context) (*sql.Conn, error)

	// DialectName returns the name of the dialect compiled statements must target.
	DialectName() string
}
