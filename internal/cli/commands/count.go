package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/cohortsql/internal/cli/config"
	"github.com/leapstack-labs/cohortsql/internal/engine"
)

// CountOptions holds options for the count command.
type CountOptions struct {
	// NoCache skips saving the cohort to the local store.
	NoCache bool
}

// NewCountCommand creates the count command.
func NewCountCommand() *cobra.Command {
	opts := &CountOptions{}

	cmd := &cobra.Command{
		Use:   "count <query-file>",
		Short: "Count the patients of a cohort query on the target",
		Long: `Compile the query, run it on the target warehouse and cache the resulting
cohort in the local cohort store under the query id.

The cte strategy runs one statement. The parallel strategy runs every panel
concurrently and combines the person sets in memory.`,
		Example: `  cohortsql count diabetes.yaml
  cohortsql count diabetes.yaml --query-strategy parallel --parallelism 4`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCount(cmd, args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.NoCache, "no-cache", false, "Do not save the cohort to the cohort store")
	return cmd
}

type countJSON struct {
	QueryID      string `json:"query_id"`
	PatientCount int    `json:"patient_count"`
	Strategy     string `json:"strategy"`
	ElapsedMS    int64  `json:"elapsed_ms"`
	Cached       bool   `json:"cached"`
	Exported     int    `json:"exported,omitempty"`
}

func runCount(cmd *cobra.Command, path string, opts *CountOptions) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	q, err := cc.loadQuery(path)
	if err != nil {
		return err
	}

	var store engine.CohortStore
	if !opts.NoCache {
		s, err := cc.openStore()
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()
		store = s
	}

	eng, err := cc.newEngine(store)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()
	if err := cc.checkTargetDialect(eng); err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	res, err := eng.CountPatients(ctx, q.Context, q.Panels)
	if err != nil {
		return err
	}

	out := countJSON{
		QueryID:      res.QueryContext.QueryID.String(),
		PatientCount: res.PatientCount,
		Strategy:     string(res.Strategy),
		ElapsedMS:    res.Elapsed.Milliseconds(),
		Cached:       res.Cached != nil,
	}
	if res.Cached != nil {
		out.Exported = min(res.Cached.PatientCount, res.Cached.ExportLimit)
	}

	if cc.Cfg.OutputFormat == config.OutputJSON {
		return renderJSON(cc.Out, out)
	}

	_, _ = fmt.Fprintf(cc.Out, "Query:    %s\n", out.QueryID)
	_, _ = fmt.Fprintf(cc.Out, "Patients: %d\n", out.PatientCount)
	_, _ = fmt.Fprintf(cc.Out, "Strategy: %s (%s)\n", out.Strategy, res.Elapsed.Round(time.Millisecond))
	if out.Cached {
		_, _ = fmt.Fprintf(cc.Out, "Cached:   %d rows, %d exportable, in %s\n", res.Cached.PatientCount, out.Exported, cc.Cfg.Cohort.StorePath)
	}
	return nil
}
