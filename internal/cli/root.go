// Package cli provides the command-line interface for cohortsql.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/cohortsql/internal/cli/commands"
	"github.com/leapstack-labs/cohortsql/internal/cli/config"

	// Register warehouse adapters and every compile dialect.
	_ "github.com/leapstack-labs/cohortsql/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/cohortsql/pkg/adapters/mysql"
	_ "github.com/leapstack-labs/cohortsql/pkg/adapters/postgres"
	_ "github.com/leapstack-labs/cohortsql/pkg/dialects"
)

var (
	cfgFile    string
	targetFlag string
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cohortsql",
		Short: "cohortsql - clinical cohort query compiler",
		Long: `cohortsql compiles clinical cohort definitions into SQL.

A query definition combines mapped concepts into panels. cohortsql compiles
the panels into one cohort statement for the target's dialect, counts and
caches cohorts on a warehouse, and compiles patient-level extracts over a
cached cohort.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip config loading for help and completion commands
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := config.LoadConfigWithTarget(cfgFile, targetFlag, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}

			level := slog.LevelWarn
			if cfg.Verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx = config.WithConfig(ctx, cfg)
			ctx = context.WithValue(ctx, config.LoggerKey(), logger)
			cmd.SetContext(ctx)

			if cfg.Verbose {
				if configFile := config.GetConfigFileUsed(); configFile != "" {
					_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Using config file: %s\n", configFile)
				}
				if targetFlag != "" {
					_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Using target: %s\n", targetFlag)
				}
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
`)

	// Global persistent flags
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: ./cohortsql.yaml)")
	flags.StringVarP(&targetFlag, "target", "t", "", "Target environment to use (e.g., dev, staging, prod)")
	flags.StringP("dialect", "d", "", "Compile for this dialect instead of the target's")
	flags.StringP("output", "o", "", "Output format (text|json)")
	flags.BoolP("verbose", "v", false, "Verbose output")
	flags.String("state", "", "Path to the local cohort store")
	flags.String("query-strategy", "", "Cohort count strategy (cte|parallel)")
	flags.Int("parallelism", 0, "Concurrent panel queries for the parallel strategy (0 = all)")
	flags.String("cohort-strategy", "", "How extracts read a cached cohort (shared|temp_table)")
	flags.Int("batch-size", 0, "Rows per temporary cohort table insert")
	flags.Int("export-limit", 0, "Cohort rows marked exported when caching")
	flags.Bool("identified", false, "Compile for an identified session")
	flags.String("session-type", "", "Session type (research|qi)")

	completions := map[string][]string{
		"output":          {config.OutputText, config.OutputJSON},
		"query-strategy":  {"cte", "parallel"},
		"cohort-strategy": {"shared", "temp_table"},
		"session-type":    {"research", "qi"},
	}
	for name, values := range completions {
		_ = rootCmd.RegisterFlagCompletionFunc(name, func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
			return values, cobra.ShellCompDirectiveNoFileComp
		})
	}
	_ = rootCmd.RegisterFlagCompletionFunc("target", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"dev", "staging", "prod"}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(commands.NewVersionCommand(Version))
	rootCmd.AddCommand(commands.NewCompileCommand())
	rootCmd.AddCommand(commands.NewValidateCommand())
	rootCmd.AddCommand(commands.NewCountCommand())
	rootCmd.AddCommand(commands.NewDatasetCommand())
	rootCmd.AddCommand(commands.NewDemographicsCommand())
	rootCmd.AddCommand(commands.NewConceptDatasetCommand())
	rootCmd.AddCommand(commands.NewPanelDatasetCommand())
	rootCmd.AddCommand(commands.NewCohortsCommand())
	rootCmd.AddCommand(commands.NewDialectsCommand())
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// NewCompletionCommand creates the completion command.
func NewCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for cohortsql.

To load completions:

Bash:
  $ source <(cohortsql completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ cohortsql completion bash > /etc/bash_completion.d/cohortsql
  # macOS:
  $ cohortsql completion bash > $(brew --prefix)/etc/bash_completion.d/cohortsql

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. Execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ cohortsql completion zsh > "${fpath[1]}/_cohortsql"

Fish:
  $ cohortsql completion fish | source

  # To load completions for each session, execute once:
  $ cohortsql completion fish > ~/.config/fish/completions/cohortsql.fish

PowerShell:
  PS> cohortsql completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}
	return cmd
}
