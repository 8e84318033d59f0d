package compiler

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/leapstack-labs/cohortsql/pkg/core"
	"github.com/leapstack-labs/cohortsql/pkg/dialects/tsql"
	"github.com/leapstack-labs/cohortsql/pkg/sqlbuild"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sequencePanel(steps ...core.SubPanel) core.Panel {
	for i := range steps {
		steps[i].Index = i
		if len(steps[i].Items) == 0 {
			steps[i].Items = []core.PanelItem{{Concept: encounterConcept()}}
		}
	}
	return core.Panel{
		Type:         core.PanelSequence,
		IncludePanel: true,
		DateFilter: &core.DateFilter{
			Start: core.DateBoundary{Type: core.DateSpecific, Date: time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)},
			End:   core.DateBoundary{Type: core.DateSpecific, Date: time.Date(2021, 12, 31, 0, 0, 0, 0, time.UTC)},
		},
		SubPanels: steps,
	}
}

func included(seq core.JoinSequence) core.SubPanel {
	return core.SubPanel{IncludeSubPanel: true, JoinSequence: seq}
}

func TestSequencePanel_ThreeSteps(t *testing.T) {
	c := newTestCompiler(t)
	panel := sequencePanel(
		included(core.JoinSequence{}),
		included(core.JoinSequence{Type: core.SequenceAnytimeFollowing}),
		included(core.JoinSequence{Type: core.SequenceWithinFollowing, Increment: 30, DateIncrement: core.DateDay}),
	)

	stmt, err := c.BuildPanelSql(panel)
	require.NoError(t, err)
	sql := stmt.String()

	assert.Equal(t, 2, strings.Count(sql, "INNER JOIN"))
	assert.NotContains(t, sql, "LEFT JOIN")
	assert.True(t, strings.HasPrefix(sql,
		"SELECT _T0.PersonId FROM ( SELECT _S000.PersonId AS PersonId, _S000.EncounterId AS EncounterId, _S000.AdmitDate AS DateField, NULL AS EventId FROM dbo.Encounter AS _S000 WHERE _S000.AdmitDate BETWEEN {{p0_start}} AND {{p0_end}} ) AS _T0 INNER JOIN "),
		sql)
	assert.True(t, strings.HasSuffix(sql, " GROUP BY _T0.PersonId"), sql)

	// steps after the first use the lookback instead of the absolute range
	assert.Contains(t, sql, "WHERE _S010.AdmitDate >= DATEADD(MONTH, -6, {{p0_start}})")
	assert.Contains(t, sql, "WHERE _S020.AdmitDate >= DATEADD(MONTH, -6, {{p0_start}})")
	assert.NotContains(t, sql, "_S010.AdmitDate BETWEEN")
	assert.NotContains(t, sql, "_S020.AdmitDate BETWEEN")
	assert.Equal(t, 1, strings.Count(sql, "{{p0_end}}"))

	assert.Contains(t, sql, " ) AS _T1 ON _T1.PersonId = _T0.PersonId AND _T1.DateField > _T0.DateField")
	assert.Contains(t, sql, " ) AS _T2 ON _T2.PersonId = _T0.PersonId AND _T2.DateField BETWEEN _T1.DateField AND DATEADD(DAY, 30, _T1.DateField)")

	r, err := stmt.Resolve(tsql.TSQL)
	require.NoError(t, err)
	assert.Len(t, r.Params, 2)
}

func TestSequencePanel_JoinTypes(t *testing.T) {
	tests := []struct {
		name    string
		seq     core.JoinSequence
		want    string
		wantErr bool
	}{
		{
			name: "same encounter",
			seq:  core.JoinSequence{Type: core.SequenceEncounter},
			want: "_T1.EncounterId = _T0.EncounterId",
		},
		{
			name: "same event",
			seq:  core.JoinSequence{Type: core.SequenceEvent},
			want: "_T1.EventId = _T0.EventId",
		},
		{
			name: "plus minus",
			seq:  core.JoinSequence{Type: core.SequencePlusMinus, Increment: 2, DateIncrement: core.DateWeek},
			want: "_T1.DateField BETWEEN DATEADD(WEEK, -2, _T0.DateField) AND DATEADD(WEEK, 2, _T0.DateField)",
		},
		{
			name: "within following",
			seq:  core.JoinSequence{Type: core.SequenceWithinFollowing, Increment: 1, DateIncrement: core.DateYear},
			want: "_T1.DateField BETWEEN _T0.DateField AND DATEADD(YEAR, 1, _T0.DateField)",
		},
		{
			name: "anytime following",
			seq:  core.JoinSequence{Type: core.SequenceAnytimeFollowing},
			want: "_T1.DateField > _T0.DateField",
		},
		{
			name:    "unknown type",
			seq:     core.JoinSequence{Type: core.SequenceType(9)},
			wantErr: true,
		},
		{
			name:    "increment is not a unit",
			seq:     core.JoinSequence{Type: core.SequencePlusMinus, Increment: 1, DateIncrement: core.DateSpecific},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCompiler(t)
			stmt, err := c.BuildPanelSql(sequencePanel(included(core.JoinSequence{}), included(tt.seq)))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Contains(t, stmt.String(), "AS _T1 ON _T1.PersonId = _T0.PersonId AND "+tt.want)
		})
	}
}

func TestSequencePanel_ExcludedStep(t *testing.T) {
	c := newTestCompiler(t)
	panel := sequencePanel(
		included(core.JoinSequence{}),
		core.SubPanel{JoinSequence: core.JoinSequence{Type: core.SequenceAnytimeFollowing}},
		core.SubPanel{MinimumCount: 3, JoinSequence: core.JoinSequence{Type: core.SequenceAnytimeFollowing}},
		core.SubPanel{IncludeSubPanel: true, MinimumCount: 2, JoinSequence: core.JoinSequence{Type: core.SequenceAnytimeFollowing}},
	)

	stmt, err := c.BuildPanelSql(panel)
	require.NoError(t, err)
	sql := stmt.String()

	assert.Equal(t, 2, strings.Count(sql, "LEFT JOIN"))
	assert.Equal(t, 1, strings.Count(sql, "INNER JOIN"))
	assert.Contains(t, sql, "AS _T2 ON _T2.PersonId = _T0.PersonId AND (_T2.DateField > _T1.DateField OR _T1.PersonId IS NULL)")
	assert.Contains(t, sql, "AS _T3 ON _T3.PersonId = _T0.PersonId AND (_T3.DateField > _T2.DateField OR _T2.PersonId IS NULL)")
	assert.True(t, strings.HasSuffix(sql,
		" GROUP BY _T0.PersonId HAVING COUNT(DISTINCT _T1.DateField) = 0 AND COUNT(DISTINCT _T2.DateField) < 3 AND COUNT(DISTINCT _T3.DateField) >= 2"),
		sql)
}

func TestSequencePanel_Invalid(t *testing.T) {
	c := newTestCompiler(t)

	excludedFirst := sequencePanel(core.SubPanel{}, included(core.JoinSequence{}))
	_, err := c.BuildPanelSql(excludedFirst)
	requireConfigurationError(t, err)

	emptyStep := sequencePanel(included(core.JoinSequence{}))
	emptyStep.SubPanels = append(emptyStep.SubPanels, core.SubPanel{Index: 1, IncludeSubPanel: true})
	_, err = c.BuildPanelSql(emptyStep)
	requireConfigurationError(t, err)

	noSteps := core.Panel{Type: core.PanelSequence, IncludePanel: true}
	_, err = c.BuildPanelSql(noSteps)
	requireConfigurationError(t, err)
}

func TestSequencePanel_EventColumns(t *testing.T) {
	c := newTestCompiler(t)
	event := encounterConcept()
	event.IsEventBased = true
	event.SQLFieldEvent = "@.OrderId"
	plain := diagnosis("", nil)

	panel := sequencePanel(
		core.SubPanel{IncludeSubPanel: true, Items: []core.PanelItem{{Concept: event}}},
		core.SubPanel{IncludeSubPanel: true, Items: []core.PanelItem{{Concept: plain}}, JoinSequence: core.JoinSequence{Type: core.SequenceEvent}},
	)

	stmt, err := c.BuildPanelSql(panel)
	require.NoError(t, err)
	sql := stmt.String()
	assert.Contains(t, sql, "_S000.OrderId AS EventId")
	assert.Contains(t, sql, "SELECT _S010.PersonId AS PersonId, NULL AS EncounterId, NULL AS DateField, NULL AS EventId FROM Diagnosis AS _S010")
}

func TestBuildJoinedPanelSql(t *testing.T) {
	c := newTestCompiler(t)
	queryID := uuid.MustParse("7b6ab8e5-3a0c-4a6e-9b51-0d7f0b2a4c11")
	panel := sequencePanel(
		included(core.JoinSequence{}),
		included(core.JoinSequence{Type: core.SequenceEncounter}),
	)
	cohort := CohortSource{
		From: "LeafDB.app.Cohort",
		Where: sqlbuild.Concat(
			sqlbuild.Text("QueryId = "),
			sqlbuild.Slot("queryid", queryID),
			sqlbuild.Text(" AND Exported = 1"),
		),
	}

	stmt, err := c.BuildJoinedPanelSql(panel, cohort)
	require.NoError(t, err)
	sql := stmt.String()

	assert.True(t, strings.HasPrefix(sql,
		"SELECT _T1.PersonId AS personId, _T1.EncounterId AS encounterId, _TC.Salt FROM ( SELECT PersonId, Salt FROM LeafDB.app.Cohort WHERE QueryId = {{queryid}} AND Exported = 1 ) AS _TC INNER JOIN ( "),
		sql)
	assert.Contains(t, sql, " ) AS _T0 ON _T0.PersonId = _TC.PersonId INNER JOIN ( ")
	assert.Contains(t, sql, "AS _T1 ON _T1.PersonId = _T0.PersonId AND _T1.EncounterId = _T0.EncounterId")
	assert.True(t, strings.HasSuffix(sql, " GROUP BY _T1.PersonId, _T1.EncounterId, _TC.Salt"), sql)

	r, err := stmt.Resolve(tsql.TSQL)
	require.NoError(t, err)
	require.Len(t, r.Params, 3)
	assert.Equal(t, "queryid", r.Params[0].Name)
	assert.Equal(t, queryID, r.Params[0].Value)

	_, err = c.BuildJoinedPanelSql(panel, CohortSource{})
	requireConfigurationError(t, err)
}

func TestEstimatedCount(t *testing.T) {
	withCounts := func(counts ...*int) core.SubPanel {
		sp := core.SubPanel{IncludeSubPanel: true}
		for _, n := range counts {
			sp.Items = append(sp.Items, core.PanelItem{Concept: core.Concept{PatientCount: n}})
		}
		return sp
	}

	tests := []struct {
		name  string
		panel core.Panel
		want  int
	}{
		{
			name:  "patient sums items",
			panel: core.Panel{Type: core.PanelPatient, SubPanels: []core.SubPanel{withCounts(count(10), count(15))}},
			want:  25,
		},
		{
			name: "sequence takes smallest included step",
			panel: core.Panel{Type: core.PanelSequence, SubPanels: []core.SubPanel{
				withCounts(count(100)),
				withCounts(count(40), count(2)),
				{Items: []core.PanelItem{{Concept: core.Concept{PatientCount: count(1)}}}},
			}},
			want: 42,
		},
		{
			name:  "unknown count",
			panel: core.Panel{Type: core.PanelPatient, SubPanels: []core.SubPanel{withCounts(count(10), nil)}},
			want:  int(^uint(0) >> 1),
		},
		{
			name:  "no steps",
			panel: core.Panel{},
			want:  int(^uint(0) >> 1),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EstimatedCount(tt.panel))
		})
	}
}
