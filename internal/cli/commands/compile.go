package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/cohortsql/internal/cli/config"
	"github.com/leapstack-labs/cohortsql/internal/compiler"
	"github.com/leapstack-labs/cohortsql/internal/definition"
	"github.com/leapstack-labs/cohortsql/pkg/sqlbuild"
)

// Compile modes.
const (
	modeCohort = "cohort"
	modeCTE    = "cte"
	modeCount  = "count"
	modePanel  = "panel"
)

// CompileOptions holds options for the compile command.
type CompileOptions struct {
	Mode  string
	Panel int
}

// NewCompileCommand creates the compile command.
func NewCompileCommand() *cobra.Command {
	opts := &CompileOptions{}

	cmd := &cobra.Command{
		Use:   "compile <query-file>",
		Short: "Compile a cohort query to SQL",
		Long: `Compile the panels of a query definition into SQL for the configured dialect.

Modes:
  cohort  select the distinct person ids of the cohort (default)
  cte     the bare cohort CTE body
  count   count the patients in the cohort
  panel   a single panel, chosen with --panel`,
		Example: `  # Cohort SQL for the target's dialect
  cohortsql compile diabetes.yaml

  # Patient count for SQL Server
  cohortsql compile diabetes.yaml --mode count --dialect tsql

  # One panel as JSON
  cohortsql compile diabetes.yaml --mode panel --panel 1 -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Mode, "mode", "m", modeCohort, "What to compile: cohort, cte, count, panel")
	cmd.Flags().IntVarP(&opts.Panel, "panel", "p", 0, "Panel index for --mode panel")

	_ = cmd.RegisterFlagCompletionFunc("mode", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{modeCohort, modeCTE, modeCount, modePanel}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

// compileJSON is the JSON output of compile.
type compileJSON struct {
	Dialect    string          `json:"dialect"`
	QueryID    string          `json:"query_id"`
	Mode       string          `json:"mode"`
	SQL        string          `json:"sql"`
	Parameters []parameterJSON `json:"parameters"`
}

func runCompile(cmd *cobra.Command, path string, opts *CompileOptions) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	q, err := cc.loadQuery(path)
	if err != nil {
		return err
	}
	pc, err := cc.panelCompiler(q)
	if err != nil {
		return err
	}

	stmt, err := compileMode(pc, q, opts)
	if err != nil {
		return err
	}
	r, err := stmt.Resolve(cc.Dialect)
	if err != nil {
		return err
	}

	if cc.Cfg.OutputFormat == config.OutputJSON {
		return renderJSON(cc.Out, compileJSON{
			Dialect:    cc.Dialect.GetName(),
			QueryID:    q.Context.QueryID.String(),
			Mode:       opts.Mode,
			SQL:        r.SQL,
			Parameters: parametersJSON(r.Params),
		})
	}

	_, _ = fmt.Fprintf(cc.Out, "%s;\n", r.SQL)
	renderParameters(cc.Out, r.Params)
	return nil
}

func compileMode(pc *compiler.PanelCompiler, q *definition.Query, opts *CompileOptions) (sqlbuild.Stmt, error) {
	switch opts.Mode {
	case modeCohort, "":
		return pc.BuildCohortSql(q.Panels)
	case modeCTE:
		return pc.BuildCteSql(q.Panels)
	case modeCount:
		return pc.BuildCountSql(q.Panels)
	case modePanel:
		panel, err := q.Panel(opts.Panel)
		if err != nil {
			return sqlbuild.Stmt{}, err
		}
		return pc.BuildPanelSql(panel)
	default:
		return sqlbuild.Stmt{}, fmt.Errorf("unknown mode %q (expected %s, %s, %s or %s)", opts.Mode, modeCohort, modeCTE, modeCount, modePanel)
	}
}
