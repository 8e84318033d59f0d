package commands

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/cohortsql/internal/cohort"
	"github.com/leapstack-labs/cohortsql/internal/compiler"
	"github.com/leapstack-labs/cohortsql/internal/dataset"
	"github.com/leapstack-labs/cohortsql/internal/definition"
)

// ExtractOptions holds options shared by the extract commands.
type ExtractOptions struct {
	// Run executes the extract on the target instead of printing it.
	Run    bool
	Format string
}

func addExtractFlags(cmd *cobra.Command, opts *ExtractOptions) {
	cmd.Flags().BoolVar(&opts.Run, "run", false, "Execute the extract on the target and print its rows")
	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Row format with --run: table, json, csv, md")
}

// extractFunc compiles one extract for q.
type extractFunc func(ctx context.Context, cc *CommandContext, q *definition.Query, pc *compiler.PanelCompiler, p cohort.Preparer) (dataset.ExecutionContext, error)

// runExtractCommand loads path, compiles it with build and prints or runs
// the result.
func runExtractCommand(cmd *cobra.Command, path string, opts *ExtractOptions, build extractFunc) error {
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
	p, cleanup, err := cc.preparer()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	ec, err := build(ctx, cc, q, pc, p)
	if err != nil {
		return err
	}
	if opts.Run {
		return cc.extract(ctx, ec, opts.Format)
	}
	return renderExecution(cc.Out, ec, cc.Cfg.OutputFormat)
}

// NewDatasetCommand creates the dataset command.
func NewDatasetCommand() *cobra.Command {
	opts := &ExtractOptions{}
	var (
		name  string
		panel int
		join  bool
	)

	cmd := &cobra.Command{
		Use:   "dataset <query-file>",
		Short: "Compile a dataset extract over a cached cohort",
		Long: `Compile one of the query's datasets over its exported cohort.

The cohort must already be cached: in the local cohort store for the
temp_table strategy, or in the application database for shared.
With --join-panel the rows are restricted to the encounters matched by
the given panel.`,
		Example: `  cohortsql dataset diabetes.yaml --name Labs
  cohortsql dataset diabetes.yaml --name Labs --join-panel --panel 0
  cohortsql dataset diabetes.yaml --name Labs --run --format csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtractCommand(cmd, args[0], opts, func(ctx context.Context, cc *CommandContext, q *definition.Query, pc *compiler.PanelCompiler, p cohort.Preparer) (dataset.ExecutionContext, error) {
				ds, err := q.Dataset(name)
				if err != nil {
					return dataset.ExecutionContext{}, err
				}
				dc := dataset.DatasetCompilerContext{QueryContext: q.Context, DatasetQuery: ds.DatasetQuery}
				if join {
					if dc.Panel, err = q.Panel(panel); err != nil {
						return dataset.ExecutionContext{}, err
					}
					dc.JoinToPanel = true
				}
				c, err := dataset.NewDatasetCompiler(pc, p, cc.Logger)
				if err != nil {
					return dataset.ExecutionContext{}, err
				}
				return c.BuildDatasetSql(ctx, dc)
			})
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Dataset name, id or universal id")
	cmd.Flags().BoolVar(&join, "join-panel", false, "Align rows to the encounters of --panel")
	cmd.Flags().IntVarP(&panel, "panel", "p", 0, "Panel index for --join-panel")
	_ = cmd.MarkFlagRequired("name")
	addExtractFlags(cmd, opts)
	return cmd
}

// NewDemographicsCommand creates the demographics command.
func NewDemographicsCommand() *cobra.Command {
	opts := &ExtractOptions{}
	var restrictPhi bool

	cmd := &cobra.Command{
		Use:   "demographics <query-file>",
		Short: "Compile the demographic extract over a cached cohort",
		Long: `Compile the query's demographic statement over the whole cached cohort.

PHI fields are restricted unless the session is identified. Use
--restrict-phi to override.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtractCommand(cmd, args[0], opts, func(ctx context.Context, cc *CommandContext, q *definition.Query, pc *compiler.PanelCompiler, p cohort.Preparer) (dataset.ExecutionContext, error) {
				if q.Demographic == nil {
					return dataset.ExecutionContext{}, errors.New("query definition has no demographic statement")
				}
				restrict := !q.Context.Session.Identified
				if cmd.Flags().Changed("restrict-phi") {
					restrict = restrictPhi
				}
				c, err := dataset.NewDemographicCompiler(pc, p, cc.Logger)
				if err != nil {
					return dataset.ExecutionContext{}, err
				}
				return c.BuildDemographicSql(ctx, dataset.DemographicCompilerContext{
					QueryContext:     q.Context,
					DemographicQuery: *q.Demographic,
				}, restrict)
			})
		},
	}

	cmd.Flags().BoolVar(&restrictPhi, "restrict-phi", true, "Select only fields a de-identified caller may see")
	addExtractFlags(cmd, opts)
	return cmd
}

// NewConceptDatasetCommand creates the concept-dataset command.
func NewConceptDatasetCommand() *cobra.Command {
	opts := &ExtractOptions{}
	var (
		concept string
		specs   []string
	)

	cmd := &cobra.Command{
		Use:   "concept-dataset <query-file>",
		Short: "Compile the rows of one concept over a cached cohort",
		Long: `Compile the encounter rows matching a concept, optionally narrowed by
specializations, over the query's exported cohort.`,
		Example: `  cohortsql concept-dataset diabetes.yaml --concept urn:leaf:concept:lab:a1c --spec urn:leaf:spec:inpatient`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtractCommand(cmd, args[0], opts, func(ctx context.Context, cc *CommandContext, q *definition.Query, pc *compiler.PanelCompiler, p cohort.Preparer) (dataset.ExecutionContext, error) {
				c, _, err := q.Concept(concept)
				if err != nil {
					return dataset.ExecutionContext{}, err
				}
				selected, err := q.Specializations(concept, specs)
				if err != nil {
					return dataset.ExecutionContext{}, err
				}
				dc, err := dataset.NewConceptDatasetCompiler(pc, p, cc.Logger)
				if err != nil {
					return dataset.ExecutionContext{}, err
				}
				return dc.BuildConceptDatasetSql(ctx, dataset.ConceptDatasetCompilerContext{
					QueryContext:    q.Context,
					Concept:         c,
					Specializations: selected,
				})
			})
		},
	}

	cmd.Flags().StringVarP(&concept, "concept", "c", "", "Concept id or universal id")
	cmd.Flags().StringSliceVarP(&specs, "spec", "s", nil, "Specialization id or universal id (repeatable)")
	_ = cmd.MarkFlagRequired("concept")
	addExtractFlags(cmd, opts)
	return cmd
}

// NewPanelDatasetCommand creates the panel-dataset command.
func NewPanelDatasetCommand() *cobra.Command {
	opts := &ExtractOptions{}
	var panel int

	cmd := &cobra.Command{
		Use:   "panel-dataset <query-file>",
		Short: "Compile the item rows of one panel over a cached cohort",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtractCommand(cmd, args[0], opts, func(ctx context.Context, cc *CommandContext, q *definition.Query, pc *compiler.PanelCompiler, p cohort.Preparer) (dataset.ExecutionContext, error) {
				selected, err := q.Panel(panel)
				if err != nil {
					return dataset.ExecutionContext{}, err
				}
				c, err := dataset.NewPanelDatasetCompiler(pc, p, cc.Logger)
				if err != nil {
					return dataset.ExecutionContext{}, err
				}
				return c.BuildPanelDatasetSql(ctx, dataset.PanelDatasetCompilerContext{
					QueryContext: q.Context,
					Panel:        selected,
				})
			})
		},
	}

	cmd.Flags().IntVarP(&panel, "panel", "p", 0, "Panel index")
	addExtractFlags(cmd, opts)
	return cmd
}
