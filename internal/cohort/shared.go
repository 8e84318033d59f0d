package cohort

import (
	"context"

	"github.com/google/uuid"

	"github.com/leapstack-labs/cohortsql/pkg/core"
	"github.com/leapstack-labs/cohortsql/pkg/dialect"
	"github.com/leapstack-labs/cohortsql/pkg/sqlbuild"
)

// SharedPreparer reads the cohort in place from the application database.
// It needs no prelude or epilogue, so the warehouse must be able to reach
// the application database.
type SharedPreparer struct {
	dialect      *dialect.Dialect
	table        string
	queryID      uuid.UUID
	exportedOnly bool
}

// NewSharedPreparer creates a SharedPreparer reading opts.CohortTableRef().
func NewSharedPreparer(d *dialect.Dialect, opts core.CompilerOptions) *SharedPreparer {
	return &SharedPreparer{dialect: d, table: opts.WithDefaults().CohortTableRef()}
}

// SetQueryCohort implements Preparer.
func (p *SharedPreparer) SetQueryCohort(_ context.Context, queryID uuid.UUID, exportedOnly bool) error {
	p.queryID = queryID
	p.exportedOnly = exportedOnly
	return nil
}

// Prepare implements Preparer.
func (p *SharedPreparer) Prepare(context.Context) ([]string, error) { return nil, nil }

// Complete implements Preparer.
func (p *SharedPreparer) Complete() []string { return nil }

// CohortToCteFrom implements Preparer.
func (p *SharedPreparer) CohortToCteFrom() string { return p.table }

// CohortToCteWhere implements Preparer.
func (p *SharedPreparer) CohortToCteWhere() sqlbuild.Stmt {
	where := sqlbuild.Concat(sqlbuild.Text("QueryId = "), sqlbuild.Slot(ParamQueryID, p.queryID))
	if p.exportedOnly {
		where = sqlbuild.Concat(where, sqlbuild.Text(" AND Exported = "+boolLiteral(p.dialect, true)))
	}
	return where
}

// CohortToCte implements Preparer.
func (p *SharedPreparer) CohortToCte() sqlbuild.Stmt {
	return cteSelect(p.CohortToCteFrom(), p.CohortToCteWhere())
}

// FieldInternalPersonID implements Preparer.
func (p *SharedPreparer) FieldInternalPersonID() string { return FieldInternalPersonID }
