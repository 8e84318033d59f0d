package dataset

import (
	"context"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/cohortsql/internal/cohort"
	"github.com/leapstack-labs/cohortsql/internal/compiler"
	"github.com/leapstack-labs/cohortsql/pkg/core"
	"github.com/leapstack-labs/cohortsql/pkg/schema"
	"github.com/leapstack-labs/cohortsql/pkg/sqlbuild"
)

// DatasetCompiler compiles stored dataset queries.
type DatasetCompiler struct {
	builder
}

// NewDatasetCompiler creates a DatasetCompiler.
func NewDatasetCompiler(pc *compiler.PanelCompiler, p cohort.Preparer, logger *slog.Logger) (*DatasetCompiler, error) {
	b, err := newBuilder(pc, p, logger)
	if err != nil {
		return nil, err
	}
	return &DatasetCompiler{builder: b}, nil
}

// BuildDatasetSql compiles dc's dataset over the exported cohort. Shaped
// datasets are date filtered on the shape's date column, dynamic datasets
// on their own.
func (c *DatasetCompiler) BuildDatasetSql(ctx context.Context, dc DatasetCompilerContext) (ExecutionContext, error) {
	q := dc.DatasetQuery
	if strings.TrimSpace(q.SQLStatement) == "" {
		return ExecutionContext{}, core.Configurationf("dataset %s has no sql statement", q.ID)
	}
	if err := c.guard("dataset", q.SQLStatement, q.SQLFieldDate); err != nil {
		return ExecutionContext{}, err
	}

	field, err := filterField(q)
	if err != nil {
		return ExecutionContext{}, err
	}

	prelude, epilogue, err := c.prepare(ctx, dc.QueryContext.QueryID, true)
	if err != nil {
		return ExecutionContext{}, err
	}

	var cohortCte, sel sqlbuild.Stmt
	if dc.JoinToPanel {
		cohortCte, err = c.compiler.BuildJoinedPanelSql(dc.Panel, compiler.CohortSource{
			From:  c.preparer.CohortToCteFrom(),
			Where: c.preparer.CohortToCteWhere(),
		})
		if err != nil {
			return ExecutionContext{}, err
		}
		sel = sqlbuild.Textf(
			"SELECT cohort.%[1]s, filter.* FROM filter INNER JOIN cohort ON filter.%[2]s = cohort.%[2]s AND filter.%[3]s = cohort.%[3]s",
			schema.ColumnSalt, schema.ColumnPersonID, schema.ColumnEncounterID)
	} else {
		cohortCte = c.preparer.CohortToCte()
		sel = c.personJoin("cohort." + schema.ColumnSalt)
	}

	ec := ExecutionContext{Shape: q.Shape, QueryContext: dc.QueryContext, DatasetID: q.ID}
	stmt := compose(cohortCte, sqlbuild.Text(q.SQLStatement), dateFilter(field, dc.QueryContext), sel)
	if err := c.finish(&ec, stmt, prelude, epilogue); err != nil {
		return ExecutionContext{}, err
	}
	return ec, nil
}

// filterField returns the column a dataset is date filtered on.
func filterField(q DatasetQuery) (string, error) {
	switch q.Shape {
	case schema.ShapeDynamic:
		return strings.TrimSpace(q.SQLFieldDate), nil
	case schema.ShapeDemographic:
		return "", core.Configurationf("dataset %s: demographic datasets compile with the demographic compiler", q.ID)
	default:
		field, err := schema.DateField(q.Shape)
		if err != nil {
			return "", core.Configurationf("dataset %s: %v", q.ID, err)
		}
		return field, nil
	}
}
