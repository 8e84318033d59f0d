// Package mysql provides a MySQL and MariaDB warehouse adapter for cohortsql.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"github.com/go-sql-driver/mysql"

	"github.com/leapstack-labs/cohortsql/pkg/adapter"
)

// Adapter implements the adapter.Adapter interface for MySQL and MariaDB.
type Adapter struct {
	adapter.BaseSQLAdapter
	dialect string
}

// New creates a new MySQL adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	return newAdapter("mysql", logger)
}

// NewMariaDB creates an adapter that compiles for the MariaDB dialect.
func NewMariaDB(logger *slog.Logger) *Adapter {
	return newAdapter("mariadb", logger)
}

func newAdapter(dialect string, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger},
		dialect:        dialect,
	}
}

// DialectName returns the SQL dialect for this adapter.
func (a *Adapter) DialectName() string {
	return a.dialect
}

// Connect establishes a connection to MySQL.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	a.Logger.Debug("connecting to "+a.dialect, slog.String("host", cfg.Host), slog.String("database", cfg.Database))

	db, err := sql.Open("mysql", buildMySQLConfig(cfg).FormatDSN())
	if err != nil {
		return fmt.Errorf("failed to open %s connection: %w", a.dialect, err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping %s: %w", a.dialect, err)
	}

	a.DB = db
	a.Cfg = cfg
	return nil
}

// buildMySQLConfig maps the adapter config onto the driver config.
// Dates are parsed into time.Time; options become connection parameters.
func buildMySQLConfig(cfg adapter.Config) *mysql.Config {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 3306
	}

	mc := mysql.NewConfig()
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(host, strconv.Itoa(port))
	mc.DBName = cfg.Database
	mc.User = cfg.Username
	mc.Passwd = cfg.Password
	mc.ParseTime = true
	if len(cfg.Options) > 0 {
		mc.Params = make(map[string]string, len(cfg.Options))
		for k, v := range cfg.Options {
			mc.Params[k] = v
		}
	}
	return mc
}

// Ensure Adapter implements adapter.Adapter interface
var _ adapter.Adapter = (*Adapter)(nil)
