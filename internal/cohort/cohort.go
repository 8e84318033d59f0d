// Package cohort prepares cached cohorts for use as a CTE source.
//
// A cohort is cached per query id when it is counted. Dataset and
// demographic statements read it back through a Preparer instead of
// recompiling the panels: either in place from the application database
// (SharedPreparer) or copied into a temporary table on the warehouse
// (TempTablePreparer).
package cohort

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/leapstack-labs/cohortsql/pkg/core"
	"github.com/leapstack-labs/cohortsql/pkg/dialect"
	"github.com/leapstack-labs/cohortsql/pkg/sqlbuild"
)

const (
	// FieldInternalPersonID is the person id column exposed by CohortToCte.
	FieldInternalPersonID = "__personId__"
	// TempTableName is the base name of the temporary cohort table.
	TempTableName = "__cohort__"
	// DefaultBatchSize is the number of rows per temporary table INSERT.
	DefaultBatchSize = 1000
	// ParamQueryID is the parameter bound to the cohort's query id.
	ParamQueryID = "queryid"
)

// Record is one cached cohort row.
type Record struct {
	PersonID string
	Exported bool
	// Salt decorrelates exported rows from person ids. Nil when the cache has none.
	Salt *uuid.UUID
}

// Fetcher reads a cached cohort.
type Fetcher interface {
	FetchCohort(ctx context.Context, queryID uuid.UUID, exportedOnly bool) ([]Record, error)
}

// Preparer supplies a cached cohort to a statement. A Preparer holds the
// query it was set to and is used for one statement at a time.
type Preparer interface {
	// SetQueryCohort selects the cohort to prepare.
	SetQueryCohort(ctx context.Context, queryID uuid.UUID, exportedOnly bool) error
	// Prepare returns the statements that must run before the main query.
	Prepare(ctx context.Context) ([]string, error)
	// Complete returns the statements that must run after the main query.
	Complete() []string
	// CohortToCte returns a select of the cohort usable as a CTE body.
	CohortToCte() sqlbuild.Stmt
	// CohortToCteFrom returns the table the cohort is read from.
	CohortToCteFrom() string
	// CohortToCteWhere returns the predicate restricting CohortToCteFrom to
	// the cohort. It may be empty.
	CohortToCteWhere() sqlbuild.Stmt
	// FieldInternalPersonID returns the person id column name of CohortToCte.
	FieldInternalPersonID() string
}

// Strategy selects a Preparer implementation.
type Strategy string

// Strategies.
const (
	StrategyShared    Strategy = "shared"
	StrategyTempTable Strategy = "temp_table"
)

// Options configures a Preparer.
type Options struct {
	Strategy  Strategy
	Dialect   *dialect.Dialect
	Compiler  core.CompilerOptions
	Fetcher   Fetcher
	BatchSize int
	Logger    *slog.Logger
}

// New returns the Preparer for opts.Strategy. An empty strategy means shared.
func New(opts Options) (Preparer, error) {
	if opts.Dialect == nil {
		return nil, dialect.ErrDialectRequired
	}
	switch opts.Strategy {
	case "", StrategyShared:
		return NewSharedPreparer(opts.Dialect, opts.Compiler), nil
	case StrategyTempTable:
		return NewTempTablePreparer(opts.Dialect, opts.Fetcher, opts.BatchSize, opts.Logger)
	default:
		return nil, fmt.Errorf("unknown cohort strategy %q (expected %s or %s)", opts.Strategy, StrategyShared, StrategyTempTable)
	}
}

// cteSelect renders the common CohortToCte shape.
func cteSelect(from string, where sqlbuild.Stmt) sqlbuild.Stmt {
	return sqlbuild.NewSelect(sqlbuild.Text(from), "").
		WithColumns(
			sqlbuild.Text("PersonId AS "+FieldInternalPersonID),
			sqlbuild.Text("Exported"),
			sqlbuild.Text("Salt"),
		).
		WithWhere(where).
		Render()
}

// boolLiteral renders a boolean for d.
func boolLiteral(d *dialect.Dialect, v bool) string {
	switch d.GetName() {
	case "postgres", "duckdb", "bigquery":
		if v {
			return "TRUE"
		}
		return "FALSE"
	default:
		if v {
			return "1"
		}
		return "0"
	}
}
