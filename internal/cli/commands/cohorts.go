package commands

import (
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/cohortsql/internal/cli/config"
	"github.com/leapstack-labs/cohortsql/internal/state"
)

// CohortsOptions holds options for the cohorts command.
type CohortsOptions struct {
	Format       string
	ExportedOnly bool
}

// NewCohortsCommand creates the cohorts command.
func NewCohortsCommand() *cobra.Command {
	opts := &CohortsOptions{}

	cmd := &cobra.Command{
		Use:   "cohorts",
		Short: "Inspect the local cohort store",
		Long: `Inspect the cohorts cached by the count command.

Each cohort row carries a random salt and an exported flag. Only the first
cohort.export_limit rows of a query are exported.`,
		Example: `  # List cached queries
  cohortsql cohorts list

  # Show the exported rows of one query as CSV
  cohortsql cohorts show 5d1c7a3e-2b4f-4c6d-8e9f-0a1b2c3d4e5f --exported --format csv`,
	}

	cmd.PersistentFlags().StringVarP(&opts.Format, "format", "f", "", "Output format: table, json, csv, md")

	cmd.AddCommand(newCohortsListCommand(opts))
	cmd.AddCommand(newCohortsShowCommand(opts))
	cmd.AddCommand(newCohortsDeleteCommand())
	return cmd
}

func newCohortsListCommand(opts *CohortsOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cached queries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, store, err := openCohortStore(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			records, err := store.ListQueries(cmd.Context())
			if err != nil {
				return err
			}
			return renderQueryRecords(cc.Out, records, dataFormat(opts.Format, cc.Cfg.OutputFormat))
		},
	}
}

func newCohortsShowCommand(opts *CohortsOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <query-id>",
		Short: "Show the cached cohort of a query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			queryID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid query id %q: %w", args[0], err)
			}
			cc, store, err := openCohortStore(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			records, err := store.FetchCohort(cmd.Context(), queryID, opts.ExportedOnly)
			if err != nil {
				return err
			}

			rows := make([][]any, len(records))
			for i, r := range records {
				var salt any
				if r.Salt != nil {
					salt = r.Salt.String()
				}
				rows[i] = []any{r.PersonID, r.Exported, salt}
			}
			return renderRows(cc.Out, []string{"PersonId", "Exported", "Salt"}, rows, dataFormat(opts.Format, cc.Cfg.OutputFormat))
		},
	}
	cmd.Flags().BoolVar(&opts.ExportedOnly, "exported", false, "Only rows marked exported")
	return cmd
}

func newCohortsDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <query-id>",
		Short: "Delete the cached cohort of a query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			queryID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid query id %q: %w", args[0], err)
			}
			cc, store, err := openCohortStore(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.DeleteQuery(cmd.Context(), queryID); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cc.Out, "Deleted cohort %s\n", queryID)
			return nil
		},
	}
}

func openCohortStore(cmd *cobra.Command) (*CommandContext, *state.SQLiteStore, error) {
	cfg, err := getConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	// The store does not depend on a dialect.
	cc := &CommandContext{Cfg: cfg, Logger: config.GetLogger(cmd.Context()), Out: cmd.OutOrStdout()}
	store, err := cc.openStore()
	if err != nil {
		return nil, nil, err
	}
	return cc, store, nil
}

func renderQueryRecords(w io.Writer, records []state.QueryRecord, format string) error {
	rows := make([][]any, len(records))
	for i, r := range records {
		rows[i] = []any{r.QueryID.String(), r.CreatedAt, r.PatientCount, r.ExportLimit}
	}
	return renderRows(w, []string{"QueryId", "CreatedAt", "PatientCount", "ExportLimit"}, rows, format)
}
