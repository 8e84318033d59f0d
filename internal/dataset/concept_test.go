package dataset

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/cohortsql/internal/cohort"
	"github.com/leapstack-labs/cohortsql/pkg/core"
	"github.com/leapstack-labs/cohortsql/pkg/dialects/tsql"
	"github.com/leapstack-labs/cohortsql/pkg/schema"
)

func heartRate() core.Concept {
	return core.Concept{
		UniversalID:      "urn:leaf:concept:vitals:hr",
		IsEncounterBased: true,
		IsNumeric:        true,
		SQLSetFrom:       "dbo.Vitals",
		SQLSetWhere:      "@.Code = 'HR'",
		SQLFieldDate:     "@.TakenAt",
		SQLFieldNumeric:  "@.Value",
	}
}

func TestBuildConceptDatasetSql(t *testing.T) {
	pc := newPanelCompiler(t, tsql.TSQL)
	c, err := NewConceptDatasetCompiler(pc, cohort.NewSharedPreparer(tsql.TSQL, pc.Options()), nil)
	require.NoError(t, err)

	qc := core.QueryContext{QueryID: testQueryID, EarlyBound: date("2019-01-01")}
	ec, err := c.BuildConceptDatasetSql(context.Background(), ConceptDatasetCompilerContext{
		QueryContext:    qc,
		Concept:         heartRate(),
		Specializations: []core.Specialization{{SQLSetWhere: "@.Position = 'sitting'"}},
	})
	require.NoError(t, err)

	assert.Equal(t,
		"WITH cohort AS ( "+sharedCohort+" AND Exported = 1 ), "+
			"dataset AS ( SELECT CONVERT(NVARCHAR(100), _S000.PersonId) AS personId, CONVERT(NVARCHAR(100), _S000.EncounterId) AS encounterId, "+
			"_S000.TakenAt AS dateField, _S000.Value AS numberField FROM dbo.Vitals AS _S000 "+
			"WHERE (_S000.Code = 'HR') AND (_S000.Position = 'sitting') ), "+
			"filter AS ( SELECT * FROM dataset WHERE dateField >= @early ) "+
			"SELECT cohort.Salt, filter.* FROM filter INNER JOIN cohort ON filter.personId = cohort.__personId__",
		ec.CompiledQuery)
	assert.Equal(t, schema.ShapeConcept, ec.Shape)
	assert.Len(t, ec.Args, 2)
}

func TestBuildConceptDatasetSql_RequiresEncounterConcept(t *testing.T) {
	pc := newPanelCompiler(t, tsql.TSQL)
	c, err := NewConceptDatasetCompiler(pc, cohort.NewSharedPreparer(tsql.TSQL, pc.Options()), nil)
	require.NoError(t, err)

	concept := heartRate()
	concept.IsEncounterBased = false
	_, err = c.BuildConceptDatasetSql(context.Background(), ConceptDatasetCompilerContext{
		QueryContext: core.QueryContext{QueryID: testQueryID},
		Concept:      concept,
	})
	var cfgErr *core.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

func TestBuildPanelDatasetSql(t *testing.T) {
	pc := newPanelCompiler(t, tsql.TSQL)
	c, err := NewPanelDatasetCompiler(pc, cohort.NewSharedPreparer(tsql.TSQL, pc.Options()), nil)
	require.NoError(t, err)

	admit := core.Concept{
		UniversalID:      "urn:leaf:concept:admit",
		IsEncounterBased: true,
		SQLSetFrom:       "dbo.Encounter",
		SQLFieldDate:     "@.AdmitDate",
	}
	panel := core.Panel{
		Index:        2,
		Type:         core.PanelSequence,
		IncludePanel: true,
		SubPanels: []core.SubPanel{
			{Index: 0, IncludeSubPanel: true, Items: []core.PanelItem{{Concept: admit}}},
			{Index: 1, IncludeSubPanel: true, Items: []core.PanelItem{{Concept: heartRate()}}},
		},
	}

	ec, err := c.BuildPanelDatasetSql(context.Background(), PanelDatasetCompilerContext{
		QueryContext: core.QueryContext{QueryID: testQueryID},
		Panel:        panel,
	})
	require.NoError(t, err)

	assert.Contains(t, ec.CompiledQuery, "_S200.AdmitDate AS dateField, NULL AS numberField FROM dbo.Encounter AS _S200")
	assert.Contains(t, ec.CompiledQuery, " UNION ALL ")
	assert.Contains(t, ec.CompiledQuery, "_S210.Value AS numberField FROM dbo.Vitals AS _S210")
	assert.Contains(t, ec.CompiledQuery, "filter AS ( SELECT * FROM dataset )")
	assert.NotContains(t, ec.CompiledQuery, "JOIN ( ")

	_, err = c.BuildPanelDatasetSql(context.Background(), PanelDatasetCompilerContext{
		QueryContext: core.QueryContext{QueryID: testQueryID},
		Panel:        core.Panel{Index: 3, Type: core.PanelPatient, IncludePanel: true},
	})
	require.Error(t, err)
}
