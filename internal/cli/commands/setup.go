package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/cohortsql/internal/cli/config"
	"github.com/leapstack-labs/cohortsql/internal/cohort"
	"github.com/leapstack-labs/cohortsql/internal/compiler"
	"github.com/leapstack-labs/cohortsql/internal/dataset"
	"github.com/leapstack-labs/cohortsql/internal/definition"
	"github.com/leapstack-labs/cohortsql/internal/engine"
	"github.com/leapstack-labs/cohortsql/internal/state"
	"github.com/leapstack-labs/cohortsql/pkg/dialect"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg     *config.Config
	Logger  *slog.Logger
	Dialect *dialect.Dialect
	Out     io.Writer
}

// NewCommandContext resolves the configuration and dialect for cmd.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	cfg, err := getConfig(cmd)
	if err != nil {
		return nil, err
	}
	d, err := cfg.ResolveDialect()
	if err != nil {
		return nil, err
	}
	return &CommandContext{
		Cfg:     cfg,
		Logger:  config.GetLogger(cmd.Context()),
		Dialect: d,
		Out:     cmd.OutOrStdout(),
	}, nil
}

// getConfig returns the configuration loaded by the root command, or loads
// one when the command runs on its own.
func getConfig(cmd *cobra.Command) (*config.Config, error) {
	if cfg := config.FromContext(cmd.Context()); cfg != nil {
		return cfg, nil
	}
	return config.LoadConfig("", nil)
}

// loadQuery loads the definition at path. The configured session applies
// when the file declares none.
func (cc *CommandContext) loadQuery(path string) (*definition.Query, error) {
	q, err := definition.Load(path, cc.Logger)
	if err != nil {
		return nil, err
	}
	session, err := cc.Cfg.CoreSession()
	if err != nil {
		return nil, err
	}
	q.DefaultSession(session)
	return q, nil
}

func (cc *CommandContext) panelCompiler(q *definition.Query) (*compiler.PanelCompiler, error) {
	return compiler.New(cc.Dialect, cc.Cfg.Compiler, q.Context.Session, cc.Logger)
}

// openStore opens and migrates the local cohort store.
func (cc *CommandContext) openStore() (*state.SQLiteStore, error) {
	path := cc.Cfg.Cohort.StorePath
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return nil, fmt.Errorf("failed to create cohort store directory: %w", err)
			}
		}
	}

	store := state.NewSQLiteStore(cc.Cfg.Cohort.ExportLimit, cc.Logger)
	if err := store.Open(path); err != nil {
		return nil, err
	}
	if err := store.Migrate(); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// preparer returns the configured cohort preparer. Temporary-table cohorts
// are read from the local cohort store; the returned cleanup closes it.
func (cc *CommandContext) preparer() (cohort.Preparer, func(), error) {
	opts := cohort.Options{
		Strategy:  cohort.Strategy(cc.Cfg.Cohort.Strategy),
		Dialect:   cc.Dialect,
		Compiler:  cc.Cfg.Compiler,
		BatchSize: cc.Cfg.Cohort.BatchSize,
		Logger:    cc.Logger,
	}

	cleanup := func() {}
	if opts.Strategy == cohort.StrategyTempTable {
		store, err := cc.openStore()
		if err != nil {
			return nil, nil, err
		}
		opts.Fetcher = store
		cleanup = func() { _ = store.Close() }
	}

	p, err := cohort.New(opts)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return p, cleanup, nil
}

// newEngine creates an engine for the configured target. store may be nil.
func (cc *CommandContext) newEngine(store engine.CohortStore) (*engine.Engine, error) {
	strategy, err := engine.ParseQueryStrategy(cc.Cfg.QueryStrategy)
	if err != nil {
		return nil, err
	}
	return engine.New(engine.Config{
		AdapterConfig: cc.Cfg.Target.AdapterConfig(),
		Store:         store,
		Compiler:      cc.Cfg.Compiler,
		Strategy:      strategy,
		Parallelism:   cc.Cfg.Parallelism,
		Logger:        cc.Logger,
	})
}

// checkTargetDialect fails when statements compiled for cc.Dialect would
// run on a target speaking another dialect.
func (cc *CommandContext) checkTargetDialect(eng *engine.Engine) error {
	if d := eng.Dialect(); d != nil && d.GetName() != cc.Dialect.GetName() {
		return fmt.Errorf("statements are compiled for %s but target %s speaks %s",
			cc.Dialect.GetName(), cc.Cfg.Target.Type, d.GetName())
	}
	return nil
}

// extract executes a compiled extract on the target and renders its rows.
func (cc *CommandContext) extract(ctx context.Context, ec dataset.ExecutionContext, format string) error {
	eng, err := cc.newEngine(nil)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	if err := cc.checkTargetDialect(eng); err != nil {
		return err
	}
	tbl, err := eng.Extract(ctx, ec)
	if err != nil {
		return err
	}
	return renderRows(cc.Out, tbl.Columns, tbl.Rows, dataFormat(format, cc.Cfg.OutputFormat))
}
