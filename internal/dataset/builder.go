package dataset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/google/uuid"

	"github.com/leapstack-labs/cohortsql/internal/cohort"
	"github.com/leapstack-labs/cohortsql/internal/compiler"
	"github.com/leapstack-labs/cohortsql/pkg/core"
	"github.com/leapstack-labs/cohortsql/pkg/schema"
	"github.com/leapstack-labs/cohortsql/pkg/sqlbuild"
	"github.com/leapstack-labs/cohortsql/pkg/sqlguard"
)

// ErrPreparerRequired is returned when a shape compiler has no cohort preparer.
var ErrPreparerRequired = errors.New("cohort preparer is required")

// builder holds what every shape compiler shares.
type builder struct {
	compiler *compiler.PanelCompiler
	preparer cohort.Preparer
	logger   *slog.Logger
}

func newBuilder(pc *compiler.PanelCompiler, p cohort.Preparer, logger *slog.Logger) (builder, error) {
	if pc == nil {
		return builder{}, errors.New("panel compiler is required")
	}
	if p == nil {
		return builder{}, ErrPreparerRequired
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return builder{compiler: pc, preparer: p, logger: logger}, nil
}

// guard rejects admin-authored fragments.
func (b builder) guard(kind string, fragments ...string) error {
	err := sqlguard.Check(fragments...)
	if errors.Is(err, sqlguard.ErrIllegalCommand) {
		b.logger.Warn("rejected dataset sql", "kind", kind, "reason", "illegal command")
	}
	return err
}

// prepare selects and prepares the cohort, returning its prelude and epilogue.
func (b builder) prepare(ctx context.Context, queryID uuid.UUID, exportedOnly bool) (prelude, epilogue []string, err error) {
	if err := b.preparer.SetQueryCohort(ctx, queryID, exportedOnly); err != nil {
		return nil, nil, fmt.Errorf("setting cohort %s: %w", queryID, err)
	}
	prelude, err = b.preparer.Prepare(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("preparing cohort %s: %w", queryID, err)
	}
	return prelude, b.preparer.Complete(), nil
}

// personJoin joins filter rows to the cohort on person id.
func (b builder) personJoin(cols string) sqlbuild.Stmt {
	return sqlbuild.Textf("SELECT %s, filter.* FROM filter INNER JOIN cohort ON filter.%s = cohort.%s",
		cols, schema.ColumnPersonID, b.preparer.FieldInternalPersonID())
}

// dateFilter returns the filter CTE body restricting field to the query's
// bounds. An empty field or no bounds pass every row through.
func dateFilter(field string, qc core.QueryContext) sqlbuild.Stmt {
	all := sqlbuild.Text("SELECT * FROM dataset")
	if field == "" {
		return all
	}

	var pred sqlbuild.Stmt
	switch early, late := qc.EarlyBound, qc.LateBound; {
	case early != nil && late != nil:
		pred = sqlbuild.Between(field, sqlbuild.Slot(ParamEarly, *early), sqlbuild.Slot(ParamLate, *late))
	case early != nil:
		pred = sqlbuild.Compare(field, ">=", sqlbuild.Slot(ParamEarly, *early))
	case late != nil:
		pred = sqlbuild.Compare(field, "<=", sqlbuild.Slot(ParamLate, *late))
	default:
		return all
	}
	return sqlbuild.Concat(all, sqlbuild.Text(" WHERE "), pred)
}

// compose joins the four parts of an extract.
func compose(cohortCte, datasetCte, filterCte, sel sqlbuild.Stmt) sqlbuild.Stmt {
	return sqlbuild.Concat(
		sqlbuild.Text("WITH cohort AS ( "), cohortCte,
		sqlbuild.Text(" ), dataset AS ( "), datasetCte,
		sqlbuild.Text(" ), filter AS ( "), filterCte,
		sqlbuild.Text(" ) "), sel,
	)
}

// finish resolves stmt for the compiler's dialect and fills ec.
func (b builder) finish(ec *ExecutionContext, stmt sqlbuild.Stmt, prelude, epilogue []string) error {
	r, err := stmt.Resolve(b.compiler.Dialect())
	if err != nil {
		return err
	}

	params := r.Params
	if !slices.ContainsFunc(params, func(p core.QueryParameter) bool { return p.Name == cohort.ParamQueryID }) {
		params = append(params, core.QueryParameter{Name: cohort.ParamQueryID, Value: ec.QueryContext.QueryID})
	}
	params = append(params, b.compiler.BuildContextQueryParameters()...)

	ec.CompiledQuery = r.SQL
	ec.Args = r.Args
	ec.Parameters = params
	ec.QueryPrelude = prelude
	ec.QueryEpilogue = epilogue

	b.logger.Debug("compiled extract",
		"shape", ec.Shape.String(),
		"query_id", ec.QueryContext.QueryID.String(),
		"params", len(params),
		"prelude", len(prelude))
	return nil
}

// itemExtract compiles the item rows of panel against the exported cohort.
func (b builder) itemExtract(ctx context.Context, qc core.QueryContext, panel core.Panel) (ExecutionContext, error) {
	ec := ExecutionContext{Shape: schema.ShapeConcept, QueryContext: qc}

	datasetCte, err := b.compiler.BuildItemDatasetSql(panel)
	if err != nil {
		return ExecutionContext{}, err
	}

	prelude, epilogue, err := b.prepare(ctx, qc.QueryID, true)
	if err != nil {
		return ExecutionContext{}, err
	}

	stmt := compose(
		b.preparer.CohortToCte(),
		datasetCte,
		dateFilter(schema.ConceptDateField, qc),
		b.personJoin("cohort."+schema.ColumnSalt),
	)
	if err := b.finish(&ec, stmt, prelude, epilogue); err != nil {
		return ExecutionContext{}, err
	}
	return ec, nil
}
