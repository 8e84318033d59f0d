package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rootQueryYAML = `
query_id: 0b7f3c2e-1d4a-4e5f-9a6b-7c8d9e0f1a2b
concepts:
  - universal_id: urn:leaf:concept:diag:i10
    sql_set_from: dbo.Diagnosis
    sql_set_where: "@.Code = 'I10'"
panels:
  - index: 0
    subpanels:
      - index: 0
        items:
          - index: 0
            concept: urn:leaf:concept:diag:i10
`

func executeRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var buf, errBuf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&errBuf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestRootCommand_Subcommands(t *testing.T) {
	cmd := NewRootCmd()
	names := make(map[string]bool)
	for _, c := range cmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{
		"version", "compile", "validate", "count", "dataset", "demographics",
		"concept-dataset", "panel-dataset", "cohorts", "dialects", "completion",
	} {
		assert.True(t, names[want], "missing command %s", want)
	}
}

func TestRootCommand_FlagsReachConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "cohortsql.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("dialect: postgres\n"), 0o600))
	queryPath := filepath.Join(dir, "query.yaml")
	require.NoError(t, os.WriteFile(queryPath, []byte(rootQueryYAML), 0o600))

	out, err := executeRoot(t, "--config", cfgPath, "--dialect", "tsql", "-o", "json", "compile", queryPath)
	require.NoError(t, err)

	var got struct {
		Dialect string `json:"dialect"`
		SQL     string `json:"sql"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "tsql", got.Dialect)
	assert.Contains(t, got.SQL, "dbo.Diagnosis")
}

func TestRootCommand_InvalidConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "cohortsql.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("query_strategy: sideways\n"), 0o600))

	_, err := executeRoot(t, "--config", cfgPath, "dialects")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestCompletionCommand(t *testing.T) {
	out, err := executeRoot(t, "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "cohortsql")
}
