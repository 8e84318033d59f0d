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

// DemographicCompiler compiles the demographic extract over the whole cohort.
type DemographicCompiler struct {
	builder
}

// NewDemographicCompiler creates a DemographicCompiler.
func NewDemographicCompiler(pc *compiler.PanelCompiler, p cohort.Preparer, logger *slog.Logger) (*DemographicCompiler, error) {
	b, err := newBuilder(pc, p, logger)
	if err != nil {
		return nil, err
	}
	return &DemographicCompiler{builder: b}, nil
}

// BuildDemographicSql compiles the demographic extract. With restrictPhi the
// filter selects only the fields a restricted caller may see, and
// FieldSelectors lists them.
func (c *DemographicCompiler) BuildDemographicSql(ctx context.Context, dc DemographicCompilerContext, restrictPhi bool) (ExecutionContext, error) {
	sqlText := dc.DemographicQuery.SQLStatement
	if strings.TrimSpace(sqlText) == "" {
		return ExecutionContext{}, core.Configurationf("demographic query has no sql statement")
	}
	if err := c.guard("demographic", sqlText); err != nil {
		return ExecutionContext{}, err
	}

	prelude, epilogue, err := c.prepare(ctx, dc.QueryContext.QueryID, false)
	if err != nil {
		return ExecutionContext{}, err
	}

	fields := schema.SelectFields(schema.DemographicFields(), restrictPhi)
	filter := sqlbuild.Text("SELECT * FROM dataset")
	if restrictPhi {
		cols := make([]string, len(fields))
		for i, f := range fields {
			cols[i] = f.Column
		}
		filter = sqlbuild.Textf("SELECT %s FROM dataset", strings.Join(cols, ", "))
	}

	ec := ExecutionContext{
		Shape:          schema.ShapeDemographic,
		QueryContext:   dc.QueryContext,
		FieldSelectors: fields,
	}
	stmt := compose(
		c.preparer.CohortToCte(),
		sqlbuild.Text(sqlText),
		filter,
		c.personJoin("cohort."+schema.ColumnExported+", cohort."+schema.ColumnSalt),
	)
	if err := c.finish(&ec, stmt, prelude, epilogue); err != nil {
		return ExecutionContext{}, err
	}
	return ec, nil
}
