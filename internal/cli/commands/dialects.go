package commands

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/cohortsql/internal/cli/config"
	"github.com/leapstack-labs/cohortsql/pkg/adapter"
	"github.com/leapstack-labs/cohortsql/pkg/dialect"
)

type dialectInfo struct {
	Name          string `json:"name"`
	Placeholder   string `json:"placeholder"`
	Intersect     bool   `json:"intersect"`
	Except        bool   `json:"except"`
	DefaultSchema string `json:"default_schema,omitempty"`
	// Adapter reports whether statements can be executed, not only compiled.
	Adapter bool `json:"adapter"`
}

// NewDialectsCommand creates the dialects command.
func NewDialectsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "dialects",
		Short: "List supported SQL dialects",
		Long: `List the dialects statements can be compiled for, and whether a
warehouse adapter is available to execute them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := getConfig(cmd)
			if err != nil {
				return err
			}

			infos := listDialects()
			if cfg.OutputFormat == config.OutputJSON {
				return renderJSON(cmd.OutOrStdout(), infos)
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Dialect", "Placeholder", "Intersect", "Except", "Schema", "Adapter"})
			for _, d := range infos {
				t.AppendRow(table.Row{d.Name, d.Placeholder, yesNo(d.Intersect), yesNo(d.Except), d.DefaultSchema, yesNo(d.Adapter)})
			}
			t.Render()
			return nil
		},
	}
}

func listDialects() []dialectInfo {
	names := dialect.List()
	infos := make([]dialectInfo, 0, len(names))
	for _, name := range names {
		d, ok := dialect.Get(name)
		if !ok {
			continue
		}
		_, intersectErr := d.Intersect()
		_, exceptErr := d.Except()
		infos = append(infos, dialectInfo{
			Name:          name,
			Placeholder:   d.Placeholder.String(),
			Intersect:     intersectErr == nil,
			Except:        exceptErr == nil,
			DefaultSchema: d.DefaultSchema,
			Adapter:       adapter.IsRegistered(name),
		})
	}
	return infos
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "-"
}
