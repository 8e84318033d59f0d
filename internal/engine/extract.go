package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/leapstack-labs/cohortsql/internal/dataset"
	"github.com/leapstack-labs/cohortsql/pkg/core"
)

// Table is a materialized extract.
type Table struct {
	Columns []string
	Rows    [][]any
}

// Extract runs ec on a single warehouse connection: the cohort prelude,
// the compiled query and then the epilogue. The epilogue runs even when
// the prelude or the query fails.
func (e *Engine) Extract(ctx context.Context, ec dataset.ExecutionContext) (tbl *Table, err error) {
	if err := e.ensureDBConnected(ctx); err != nil {
		return nil, err
	}

	conn, err := e.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = conn.Close() }()

	start := time.Now()
	defer func() {
		// the cohort must be released even if ctx was cancelled
		cleanup := context.WithoutCancel(ctx)
		for _, stmt := range ec.QueryEpilogue {
			if _, cerr := conn.ExecContext(cleanup, stmt); cerr != nil {
				e.logger.Warn("cohort epilogue failed", "query_id", ec.QueryContext.QueryID.String(), "error", cerr)
				err = errors.Join(err, fmt.Errorf("cohort epilogue: %w", cerr))
			}
		}
	}()

	for i, stmt := range ec.QueryPrelude {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("cohort prelude statement %d: %w", i+1, err)
		}
	}

	rows, err := conn.QueryContext(ctx, ec.CompiledQuery, e.bindArgs(ec)...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute extract: %w", err)
	}
	defer func() { _ = rows.Close() }()

	tbl, err = scanTable(rows)
	if err != nil {
		return nil, err
	}

	e.logger.Info("extracted dataset",
		"shape", ec.Shape.String(),
		"query_id", ec.QueryContext.QueryID.String(),
		"rows", len(tbl.Rows),
		"elapsed", time.Since(start))
	return tbl, nil
}

// bindArgs returns the driver arguments for ec. Named-placeholder dialects
// also receive the context parameters so admin SQL may reference them.
func (e *Engine) bindArgs(ec dataset.ExecutionContext) []any {
	args := ec.Args
	if e.dialect == nil || e.dialect.Placeholder != core.PlaceholderAtName {
		return args
	}

	bound := make(map[string]bool, len(args))
	for _, a := range args {
		if na, ok := a.(sql.NamedArg); ok {
			bound[na.Name] = true
		}
	}
	for _, p := range ec.Parameters {
		if !bound[p.Name] {
			args = append(args, sql.Named(p.Name, p.Value))
			bound[p.Name] = true
		}
	}
	return args
}

func scanTable(rows *sql.Rows) (*Table, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	tbl := &Table{Columns: cols}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		tbl.Rows = append(tbl.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return tbl, nil
}
