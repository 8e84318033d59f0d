package dataset

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/cohortsql/internal/cohort"
	"github.com/leapstack-labs/cohortsql/internal/testutil"
	"github.com/leapstack-labs/cohortsql/pkg/core"
	"github.com/leapstack-labs/cohortsql/pkg/dialects/tsql"
	"github.com/leapstack-labs/cohortsql/pkg/schema"
	"github.com/leapstack-labs/cohortsql/pkg/sqlguard"
)

const demographicSQL = "SELECT personId, birthDate, gender, mrn, name FROM dbo.Person"

func newDemographicCompiler(t *testing.T) *DemographicCompiler {
	t.Helper()
	pc := newPanelCompiler(t, tsql.TSQL)
	c, err := NewDemographicCompiler(pc, cohort.NewSharedPreparer(tsql.TSQL, pc.Options()), testutil.NewTestLogger(t))
	require.NoError(t, err)
	return c
}

func TestBuildDemographicSql(t *testing.T) {
	c := newDemographicCompiler(t)
	dc := DemographicCompilerContext{
		QueryContext:     core.QueryContext{QueryID: testQueryID},
		DemographicQuery: DemographicQuery{SQLStatement: demographicSQL},
	}

	ec, err := c.BuildDemographicSql(context.Background(), dc, false)
	require.NoError(t, err)

	assert.Equal(t,
		"WITH cohort AS ( "+sharedCohort+" ), "+
			"dataset AS ( "+demographicSQL+" ), "+
			"filter AS ( SELECT * FROM dataset ) "+
			"SELECT cohort.Exported, cohort.Salt, filter.* FROM filter INNER JOIN cohort ON filter.personId = cohort.__personId__",
		ec.CompiledQuery)
	assert.Equal(t, schema.ShapeDemographic, ec.Shape)
	assert.Equal(t, schema.DemographicFields(), ec.FieldSelectors)
	assert.Len(t, ec.Args, 1)
}

func TestBuildDemographicSql_RestrictPhi(t *testing.T) {
	c := newDemographicCompiler(t)
	dc := DemographicCompilerContext{
		QueryContext:     core.QueryContext{QueryID: testQueryID},
		DemographicQuery: DemographicQuery{SQLStatement: demographicSQL},
	}

	ec, err := c.BuildDemographicSql(context.Background(), dc, true)
	require.NoError(t, err)

	start := strings.Index(ec.CompiledQuery, "filter AS ( ")
	end := strings.Index(ec.CompiledQuery, " FROM dataset )")
	require.True(t, start >= 0 && end > start)
	filter := ec.CompiledQuery[start:end]

	assert.Contains(t, filter, "personId")
	assert.Contains(t, filter, "birthDate")
	assert.Contains(t, filter, "gender")
	assert.NotContains(t, filter, "mrn")
	assert.NotContains(t, filter, " name")
	assert.NotContains(t, filter, "*")

	require.NotEmpty(t, ec.FieldSelectors)
	for _, f := range ec.FieldSelectors {
		if f.Phi {
			assert.True(t, f.Required || f.Mask, f.Column)
		}
	}
	assert.Len(t, ec.FieldSelectors, len(schema.SelectFields(schema.DemographicFields(), true)))
}

func TestBuildDemographicSql_Errors(t *testing.T) {
	c := newDemographicCompiler(t)
	qc := core.QueryContext{QueryID: testQueryID}

	_, err := c.BuildDemographicSql(context.Background(), DemographicCompilerContext{QueryContext: qc}, true)
	require.Error(t, err)

	_, err = c.BuildDemographicSql(context.Background(), DemographicCompilerContext{
		QueryContext:     qc,
		DemographicQuery: DemographicQuery{SQLStatement: "SELECT * FROM dbo.Person; TRUNCATE TABLE dbo.Person"},
	}, false)
	require.ErrorIs(t, err, sqlguard.ErrIllegalCommand)
}
