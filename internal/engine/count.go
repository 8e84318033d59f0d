package engine

import (
	"context"
	"database/sql"
	"fmt"
	"maps"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/cohortsql/internal/compiler"
	"github.com/leapstack-labs/cohortsql/internal/state"
	"github.com/leapstack-labs/cohortsql/pkg/core"
	"github.com/leapstack-labs/cohortsql/pkg/sqlbuild"
)

// QueryStrategy selects how a cohort is counted.
type QueryStrategy string

// Query strategies.
const (
	// StrategyCTE runs the whole cohort as one statement.
	StrategyCTE QueryStrategy = "cte"
	// StrategyParallel runs each panel on its own and combines the person
	// sets in memory.
	StrategyParallel QueryStrategy = "parallel"
)

// ParseQueryStrategy parses a strategy name.
func ParseQueryStrategy(s string) (QueryStrategy, error) {
	switch QueryStrategy(s) {
	case StrategyCTE, StrategyParallel:
		return QueryStrategy(s), nil
	default:
		return "", core.Configurationf("unknown query strategy %q (expected %s or %s)", s, StrategyCTE, StrategyParallel)
	}
}

// CountResult is the outcome of counting a cohort.
type CountResult struct {
	QueryContext core.QueryContext
	PatientCount int
	// PersonIDs is the distinct cohort in the order it was read.
	PersonIDs []string
	Strategy  QueryStrategy
	Elapsed   time.Duration
	// Cached is set when the cohort was saved to the store.
	Cached *state.QueryRecord
}

// CountPatients compiles panels, runs them on the warehouse and caches the
// resulting cohort under qc.QueryID.
func (e *Engine) CountPatients(ctx context.Context, qc core.QueryContext, panels []core.Panel) (*CountResult, error) {
	if err := e.ensureDBConnected(ctx); err != nil {
		return nil, err
	}

	pc, err := compiler.New(e.dialect, e.options, qc.Session, e.logger)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var ids []string
	switch e.strategy {
	case StrategyParallel:
		ids, err = e.countParallel(ctx, pc, panels)
	default:
		ids, err = e.countCTE(ctx, pc, panels)
	}
	if err != nil {
		return nil, err
	}

	res := &CountResult{
		QueryContext: qc,
		PatientCount: len(ids),
		PersonIDs:    ids,
		Strategy:     e.strategy,
		Elapsed:      time.Since(start),
	}

	if e.store != nil {
		rec, err := e.store.SaveCohort(ctx, qc.QueryID, ids)
		if err != nil {
			return nil, fmt.Errorf("caching cohort %s: %w", qc.QueryID, err)
		}
		res.Cached = &rec
	}

	e.logger.Info("counted cohort",
		"query_id", qc.QueryID.String(),
		"patients", res.PatientCount,
		"strategy", string(e.strategy),
		"elapsed", res.Elapsed)
	return res, nil
}

func (e *Engine) countCTE(ctx context.Context, pc *compiler.PanelCompiler, panels []core.Panel) ([]string, error) {
	stmt, err := pc.BuildCohortSql(panels)
	if err != nil {
		return nil, err
	}
	ids, err := e.personIDs(ctx, stmt)
	if err != nil {
		return nil, err
	}
	return distinct(ids), nil
}

// countParallel runs every panel concurrently. Inclusion sets are
// intersected and exclusion sets subtracted.
func (e *Engine) countParallel(ctx context.Context, pc *compiler.PanelCompiler, panels []core.Panel) ([]string, error) {
	if !slices.ContainsFunc(panels, func(p core.Panel) bool { return p.IncludePanel }) {
		return nil, core.Configurationf("a cohort requires at least one inclusion panel")
	}

	stmts := make([]sqlbuild.Stmt, len(panels))
	for i, p := range panels {
		stmt, err := pc.BuildWrappedPanelSql(p)
		if err != nil {
			return nil, fmt.Errorf("panel %d: %w", p.Index, err)
		}
		stmts[i] = stmt
	}

	sets := make([][]string, len(panels))
	g, gctx := errgroup.WithContext(ctx)
	if e.parallel > 0 {
		g.SetLimit(e.parallel)
	}
	for i := range stmts {
		g.Go(func() error {
			ids, err := e.personIDs(gctx, stmts[i])
			if err != nil {
				return fmt.Errorf("panel %d: %w", panels[i].Index, err)
			}
			sets[i] = ids
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var (
		cohort   map[string]struct{}
		excluded = make(map[string]struct{})
	)
	for i, p := range panels {
		if !p.IncludePanel {
			for _, id := range sets[i] {
				excluded[id] = struct{}{}
			}
			continue
		}
		set := make(map[string]struct{}, len(sets[i]))
		for _, id := range sets[i] {
			if cohort == nil {
				set[id] = struct{}{}
			} else if _, ok := cohort[id]; ok {
				set[id] = struct{}{}
			}
		}
		cohort = set
	}
	maps.DeleteFunc(cohort, func(id string, _ struct{}) bool {
		_, ok := excluded[id]
		return ok
	})

	e.logger.Debug("combined panel sets", "panels", len(panels), "excluded", len(excluded))
	return slices.Sorted(maps.Keys(cohort)), nil
}

// personIDs runs stmt and reads its first column as person ids.
func (e *Engine) personIDs(ctx context.Context, stmt sqlbuild.Stmt) ([]string, error) {
	r, err := stmt.Resolve(e.dialect)
	if err != nil {
		return nil, err
	}

	rows, err := e.db.Query(ctx, r.SQL, r.Args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id sql.NullString
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan person id: %w", err)
		}
		if id.Valid {
			ids = append(ids, id.String)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating person ids: %w", err)
	}
	return ids, nil
}

func distinct(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
