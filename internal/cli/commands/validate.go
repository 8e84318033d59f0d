package commands

import (
	"fmt"
	"math"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/cohortsql/internal/cli/config"
	"github.com/leapstack-labs/cohortsql/internal/compiler"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <query-file>",
		Short: "Validate a cohort query definition",
		Long: `Load a query definition, drop empty panels and subpanels, and compile
every remaining panel for the configured dialect.

Reports each panel with its estimated patient count. Inclusion panels are
intersected in ascending order of the estimate.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, args[0])
		},
	}
}

type panelSummary struct {
	Index     int    `json:"index"`
	Type      string `json:"type"`
	Include   bool   `json:"include"`
	Domain    string `json:"domain,omitempty"`
	SubPanels int    `json:"subpanels"`
	Items     int    `json:"items"`
	// Estimate is nil when a concept has no cached count.
	Estimate *int `json:"estimate"`
}

type validateJSON struct {
	QueryID string         `json:"query_id"`
	Dialect string         `json:"dialect"`
	Valid   bool           `json:"valid"`
	Panels  []panelSummary `json:"panels"`
}

func runValidate(cmd *cobra.Command, path string) error {
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

	summaries := make([]panelSummary, 0, len(q.Panels))
	for _, p := range q.Panels {
		if _, err := pc.BuildPanelSql(p); err != nil {
			return fmt.Errorf("panel %d: %w", p.Index, err)
		}
		s := panelSummary{
			Index:     p.Index,
			Type:      p.Type.String(),
			Include:   p.IncludePanel,
			Domain:    p.Domain,
			SubPanels: len(p.SubPanels),
			Items:     p.ItemCount(),
		}
		if n := compiler.EstimatedCount(p); n != math.MaxInt {
			s.Estimate = &n
		}
		summaries = append(summaries, s)
	}
	if _, err := pc.BuildCteSql(q.Panels); err != nil {
		return err
	}

	if cc.Cfg.OutputFormat == config.OutputJSON {
		return renderJSON(cc.Out, validateJSON{
			QueryID: q.Context.QueryID.String(),
			Dialect: cc.Dialect.GetName(),
			Valid:   true,
			Panels:  summaries,
		})
	}

	t := table.NewWriter()
	t.SetOutputMirror(cc.Out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Panel", "Type", "Include", "SubPanels", "Items", "Estimate"})
	for _, s := range summaries {
		estimate := "unknown"
		if s.Estimate != nil {
			estimate = fmt.Sprintf("%d", *s.Estimate)
		}
		t.AppendRow(table.Row{s.Index, s.Type, s.Include, s.SubPanels, s.Items, estimate})
	}
	t.Render()
	_, _ = fmt.Fprintf(cc.Out, "Query %s is valid for %s (%d panels)\n", q.Context.QueryID, cc.Dialect.GetName(), len(summaries))
	return nil
}
