// Package engine executes compiled cohort and extract statements against a
// warehouse. It counts cohorts, caches them in the cohort store and runs
// shape extracts with their cohort prelude and epilogue.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/leapstack-labs/cohortsql/internal/state"
	"github.com/leapstack-labs/cohortsql/pkg/adapter"
	"github.com/leapstack-labs/cohortsql/pkg/core"
	"github.com/leapstack-labs/cohortsql/pkg/dialect"
)

// CohortStore persists counted cohorts.
type CohortStore interface {
	SaveCohort(ctx context.Context, queryID uuid.UUID, personIDs []string) (state.QueryRecord, error)
}

// Engine runs compiled statements on one warehouse.
type Engine struct {
	// Warehouse adapter (lazy initialized)
	db          adapter.Adapter
	dbConfig    adapter.Config
	dbConnected bool
	ownsDB      bool
	dbMu        sync.Mutex

	dialect  *dialect.Dialect
	store    CohortStore
	options  core.CompilerOptions
	strategy QueryStrategy
	parallel int
	logger   *slog.Logger
}

// Config holds engine configuration.
type Config struct {
	// AdapterConfig selects and configures the warehouse adapter.
	AdapterConfig adapter.Config
	// Adapter is an already connected adapter. When set, AdapterConfig is
	// ignored and Close leaves the adapter open.
	Adapter adapter.Adapter
	// Store caches counted cohorts (optional).
	Store CohortStore
	// Compiler configures panel compilation.
	Compiler core.CompilerOptions
	// Strategy selects how cohorts are counted. Empty means cte.
	Strategy QueryStrategy
	// Parallelism bounds concurrent panel queries for the parallel strategy.
	// Zero or less means one query per panel.
	Parallelism int
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// New creates an engine. The warehouse is connected on first use.
func New(cfg Config) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	strategy := cfg.Strategy
	if strategy == "" {
		strategy = StrategyCTE
	}
	if _, err := ParseQueryStrategy(string(strategy)); err != nil {
		return nil, err
	}

	e := &Engine{
		dbConfig: cfg.AdapterConfig,
		store:    cfg.Store,
		options:  cfg.Compiler.WithDefaults(),
		strategy: strategy,
		parallel: cfg.Parallelism,
		logger:   logger,
	}

	if cfg.Adapter != nil {
		d, err := dialect.Lookup(cfg.Adapter.DialectName())
		if err != nil {
			return nil, err
		}
		e.db = cfg.Adapter
		e.dialect = d
		e.dbConnected = true
		return e, nil
	}

	if e.dbConfig.Type == "" {
		return nil, errors.New("target type is required")
	}
	// The dialect is known before connecting so statements can be compiled offline.
	if d, ok := dialect.Get(e.dbConfig.Type); ok {
		e.dialect = d
	}

	logger.Debug("initialized engine", "target", e.dbConfig.Type, "strategy", string(strategy))
	return e, nil
}

// ensureDBConnected lazily connects to the warehouse.
func (e *Engine) ensureDBConnected(ctx context.Context) error {
	e.dbMu.Lock()
	defer e.dbMu.Unlock()

	if e.dbConnected {
		return nil
	}

	e.logger.Debug("connecting to warehouse", "adapter_type", e.dbConfig.Type)

	db, err := adapter.NewAdapter(e.dbConfig, e.logger)
	if err != nil {
		return fmt.Errorf("failed to create warehouse adapter: %w", err)
	}
	if err := db.Connect(ctx, e.dbConfig); err != nil {
		return fmt.Errorf("failed to connect to warehouse: %w", err)
	}

	d, err := dialect.Lookup(db.DialectName())
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("dialect not found for adapter type %q: %w", e.dbConfig.Type, err)
	}

	e.db = db
	e.dialect = d
	e.dbConnected = true
	e.ownsDB = true
	e.logger.Debug("warehouse connected", "dialect", d.GetName())
	return nil
}

// Dialect returns the warehouse dialect, or nil when the target type has
// no registered dialect and the warehouse is not yet connected.
func (e *Engine) Dialect() *dialect.Dialect {
	return e.dialect
}

// Options returns the effective compiler options.
func (e *Engine) Options() core.CompilerOptions {
	return e.options
}

// Close releases the warehouse connection if the engine opened it.
func (e *Engine) Close() error {
	e.dbMu.Lock()
	defer e.dbMu.Unlock()

	if e.db == nil || !e.ownsDB {
		return nil
	}
	e.logger.Debug("closing engine")
	err := e.db.Close()
	e.db = nil
	e.dbConnected = false
	return err
}
