package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/cohortsql/internal/cli/config"
	"github.com/leapstack-labs/cohortsql/internal/state"

	_ "github.com/leapstack-labs/cohortsql/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/cohortsql/pkg/adapters/mysql"
	_ "github.com/leapstack-labs/cohortsql/pkg/adapters/postgres"
	_ "github.com/leapstack-labs/cohortsql/pkg/dialects"
)

const testQueryID = "5d1c7a3e-2b4f-4c6d-8e9f-0a1b2c3d4e5f"

const queryYAML = `
query_id: 5d1c7a3e-2b4f-4c6d-8e9f-0a1b2c3d4e5f
concepts:
  - universal_id: urn:leaf:concept:diag:e11
    sql_set_from: dbo.Diagnosis
    sql_set_where: "@.Code = 'E11'"
    patient_count: 1200
  - universal_id: urn:leaf:concept:enc:inpatient
    encounter_based: true
    sql_set_from: dbo.Encounter
    sql_field_date: "@.AdmitDate"
    patient_count: 300
panels:
  - index: 0
    subpanels:
      - index: 0
        items:
          - index: 0
            concept: urn:leaf:concept:diag:e11
  - index: 1
    subpanels:
      - index: 0
        items:
          - index: 0
            concept: urn:leaf:concept:enc:inpatient
  - index: 2
    include: false
    subpanels:
      - index: 0
        items:
          - index: 0
            concept: urn:leaf:concept:diag:e11
datasets:
  - name: labs
    shape: observation
    sql_statement: SELECT personId, encounterId, effectiveDate FROM dbo.Obs
demographic:
  sql_statement: SELECT personId, gender FROM dbo.Person
`

// setupProject writes a config and a query definition into a temporary
// project and returns the loaded config with the query path.
func setupProject(t *testing.T, cfgYAML string) (*config.Config, string) {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "cohortsql.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfgYAML), 0o600))
	queryPath := filepath.Join(dir, "query.yaml")
	require.NoError(t, os.WriteFile(queryPath, []byte(queryYAML), 0o600))

	cfg, err := config.LoadConfig(cfgPath, nil)
	require.NoError(t, err)
	return cfg, queryPath
}

func runCommand(t *testing.T, cfg *config.Config, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	cmd.SetContext(config.WithConfig(context.Background(), cfg))
	err := cmd.Execute()
	return buf.String(), err
}

func TestCompileCommand(t *testing.T) {
	cfg, query := setupProject(t, "dialect: tsql\n")

	tests := []struct {
		name     string
		args     []string
		contains []string
		absent   []string
	}{
		{
			name:     "cohort",
			args:     []string{query},
			contains: []string{" INTERSECT ", " EXCEPT ", "dbo.Diagnosis", "dbo.Encounter"},
		},
		{
			name:     "count",
			args:     []string{query, "--mode", "count"},
			contains: []string{"WITH cohort AS ( ", "SELECT COUNT(*) AS PatientCount FROM cohort"},
		},
		{
			name:     "single panel",
			args:     []string{query, "--mode", "panel", "--panel", "1"},
			contains: []string{"dbo.Encounter"},
			absent:   []string{"dbo.Diagnosis", " INTERSECT "},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runCommand(t, cfg, NewCompileCommand(), tt.args...)
			require.NoError(t, err)
			for _, s := range tt.contains {
				assert.Contains(t, out, s)
			}
			for _, s := range tt.absent {
				assert.NotContains(t, out, s)
			}
		})
	}
}

func TestCompileCommand_Errors(t *testing.T) {
	cfg, query := setupProject(t, "dialect: tsql\n")

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"unknown mode", []string{query, "--mode", "bogus"}, "unknown mode"},
		{"missing panel", []string{query, "--mode", "panel", "--panel", "7"}, "7"},
		{"missing file", []string{filepath.Join(t.TempDir(), "nope.yaml")}, "nope.yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCommand(t, cfg, NewCompileCommand(), tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCompileCommand_JSON(t *testing.T) {
	cfg, query := setupProject(t, "dialect: postgres\noutput: json\n")

	out, err := runCommand(t, cfg, NewCompileCommand(), query, "--mode", "cte")
	require.NoError(t, err)

	var got compileJSON
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "postgres", got.Dialect)
	assert.Equal(t, testQueryID, got.QueryID)
	assert.Equal(t, modeCTE, got.Mode)
	assert.Contains(t, got.SQL, "EXCEPT")
	assert.NotNil(t, got.Parameters)
}

func TestValidateCommand(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		cfg, query := setupProject(t, "dialect: tsql\n")
		out, err := runCommand(t, cfg, NewValidateCommand(), query)
		require.NoError(t, err)
		assert.Contains(t, out, "Query "+testQueryID+" is valid for tsql (3 panels)")
	})

	t.Run("json", func(t *testing.T) {
		cfg, query := setupProject(t, "dialect: tsql\noutput: json\n")
		out, err := runCommand(t, cfg, NewValidateCommand(), query)
		require.NoError(t, err)

		var got validateJSON
		require.NoError(t, json.Unmarshal([]byte(out), &got))
		assert.True(t, got.Valid)
		require.Len(t, got.Panels, 3)

		assert.True(t, got.Panels[0].Include)
		require.NotNil(t, got.Panels[0].Estimate)
		assert.Equal(t, 1200, *got.Panels[0].Estimate)
		require.NotNil(t, got.Panels[1].Estimate)
		assert.Equal(t, 300, *got.Panels[1].Estimate)
		assert.False(t, got.Panels[2].Include)
	})
}

func TestDialectsCommand(t *testing.T) {
	cfg, _ := setupProject(t, "output: json\n")

	out, err := runCommand(t, cfg, NewDialectsCommand())
	require.NoError(t, err)

	var infos []dialectInfo
	require.NoError(t, json.Unmarshal([]byte(out), &infos))

	byName := make(map[string]dialectInfo, len(infos))
	for _, d := range infos {
		byName[d.Name] = d
	}
	for _, name := range []string{"tsql", "postgres", "duckdb", "mysql", "oracle", "bigquery"} {
		assert.Contains(t, byName, name)
	}
	assert.True(t, byName["postgres"].Adapter)
	assert.False(t, byName["tsql"].Adapter)
	assert.True(t, byName["tsql"].Intersect)
}

func TestDatasetCommand_Shared(t *testing.T) {
	cfg, query := setupProject(t, "dialect: tsql\ncohort:\n  strategy: shared\n")

	out, err := runCommand(t, cfg, NewDatasetCommand(), query, "--name", "labs")
	require.NoError(t, err)

	assert.NotContains(t, out, "-- cohort prelude")
	assert.Contains(t, out, "LeafDB.app.Cohort")
	assert.Contains(t, out, "dbo.Obs")
	assert.Contains(t, out, "queryid")
}

func TestDatasetCommand_TempTable(t *testing.T) {
	cfg, query := setupProject(t, "dialect: postgres\ncohort:\n  strategy: temp_table\n  store: cohorts.db\n")

	store := state.NewSQLiteStore(0, nil)
	require.NoError(t, store.Open(cfg.Cohort.StorePath))
	require.NoError(t, store.Migrate())
	_, err := store.SaveCohort(context.Background(), uuid.MustParse(testQueryID), []string{"p1", "p2"})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	out, err := runCommand(t, cfg, NewDatasetCommand(), query, "--name", "labs")
	require.NoError(t, err)

	assert.Contains(t, out, "-- cohort prelude")
	assert.Contains(t, out, "CREATE TEMPORARY TABLE __cohort__")
	assert.Contains(t, out, "'p1'")
	assert.Contains(t, out, "-- cohort epilogue")
	assert.Contains(t, out, "DROP TABLE IF EXISTS __cohort__")
	assert.Less(t, strings.Index(out, "-- cohort prelude"), strings.Index(out, "-- cohort epilogue"))
}

func TestDatasetCommand_UnknownDataset(t *testing.T) {
	cfg, query := setupProject(t, "dialect: tsql\ncohort:\n  strategy: shared\n")

	_, err := runCommand(t, cfg, NewDatasetCommand(), query, "--name", "vitals")
	require.Error(t, err)
}

func TestDemographicsCommand_JSON(t *testing.T) {
	cfg, query := setupProject(t, "dialect: tsql\noutput: json\ncohort:\n  strategy: shared\n")

	out, err := runCommand(t, cfg, NewDemographicsCommand(), query)
	require.NoError(t, err)

	var got executionJSON
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, testQueryID, got.QueryID)
	assert.Contains(t, got.SQL, "dbo.Person")
	assert.Empty(t, got.Prelude)
	assert.Empty(t, got.Epilogue)
}

func TestCohortsCommand(t *testing.T) {
	cfg, _ := setupProject(t, "cohort:\n  store: cohorts.db\n  export_limit: 1\n")

	store := state.NewSQLiteStore(cfg.Cohort.ExportLimit, nil)
	require.NoError(t, store.Open(cfg.Cohort.StorePath))
	require.NoError(t, store.Migrate())
	_, err := store.SaveCohort(context.Background(), uuid.MustParse(testQueryID), []string{"p1", "p2"})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	out, err := runCommand(t, cfg, NewCohortsCommand(), "list", "--format", "csv")
	require.NoError(t, err)
	assert.Contains(t, out, "QueryId,CreatedAt,PatientCount,ExportLimit")
	assert.Contains(t, out, testQueryID+",")

	out, err = runCommand(t, cfg, NewCohortsCommand(), "show", testQueryID, "--exported", "--format", "csv")
	require.NoError(t, err)
	assert.Contains(t, out, "p1,true,")
	assert.NotContains(t, out, "p2")

	_, err = runCommand(t, cfg, NewCohortsCommand(), "show", "not-a-uuid")
	require.Error(t, err)

	out, err = runCommand(t, cfg, NewCohortsCommand(), "delete", testQueryID)
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted cohort "+testQueryID)

	_, err = runCommand(t, cfg, NewCohortsCommand(), "delete", testQueryID)
	require.ErrorIs(t, err, state.ErrQueryNotFound)
}

func TestRenderRows(t *testing.T) {
	cols := []string{"id", "note"}
	rows := [][]any{{1, "a,b"}, {2, nil}}

	tests := []struct {
		name   string
		format string
		want   []string
	}{
		{"csv", formatCSV, []string{"id,note", `1,"a,b"`, "2,NULL"}},
		{"markdown", formatMarkdown, []string{"| id | note |", "| --- | --- |", "| 2 | NULL |"}},
		{"table", formatTable, []string{"(2 rows)"}},
		{"json", formatJSON, []string{`"note": "a,b"`, `"note": null`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, renderRows(&buf, cols, rows, tt.format))
			for _, s := range tt.want {
				assert.Contains(t, buf.String(), s)
			}
		})
	}

	var buf bytes.Buffer
	require.Error(t, renderRows(&buf, cols, rows, "xml"))
}

func TestFormatHelpers(t *testing.T) {
	ts := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, "NULL", formatValue(nil))
	assert.Equal(t, "2020-01-02T03:04:05Z", formatValue(ts))
	assert.Equal(t, "42", formatValue(42))

	assert.Equal(t, "plain", escapeCSV("plain"))
	assert.Equal(t, `"say ""hi"""`, escapeCSV(`say "hi"`))

	assert.Equal(t, formatJSON, dataFormat("", config.OutputJSON))
	assert.Equal(t, formatTable, dataFormat("", config.OutputText))
	assert.Equal(t, formatCSV, dataFormat(formatCSV, config.OutputJSON))
}
