package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hirewire/pipeline-go/interfaces/api"
)

// serveOptions holds options for the serve command.
type serveOptions struct {
	configPath string
	rulesPath  string
	watch      bool
}

// newServeCmd creates the serve command.
func (a *App) newServeCmd() *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the pipeline orchestration service",
		Long: `Run the orchestration service: the durable scheduler ticks delayed
actions and elapsed-time triggers, approval escalations are scanned, and
rule files are hot-reloaded when watching is enabled.

Examples:
  # Run with defaults (in-memory storage)
  pipeline serve

  # Run with a configuration file
  pipeline serve -c config.yaml

  # Override the rule file path and watch it for changes
  pipeline serve -c config.yaml --rules rules/ --watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Path to configuration file")
	cmd.Flags().StringVar(&opts.rulesPath, "rules", "", "Path to rule definitions (file or directory)")
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "Reload rule definitions on change")

	return cmd
}

// serve runs the orchestrator until the context is cancelled.
func (a *App) serve(cmd *cobra.Command, opts *serveOptions) error {
	cfg := api.Config{}
	if opts.configPath != "" {
		loaded, err := api.LoadConfig(opts.configPath)
		if err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}
		cfg = *loaded
	} else {
		cfg = *api.DefaultConfig()
	}
	if opts.rulesPath != "" {
		cfg.Rules.Path = opts.rulesPath
	}
	if opts.watch {
		cfg.Rules.Watch = true
	}

	orch, err := api.New(api.WithConfig(&cfg))
	if err != nil {
		return fmt.Errorf("assemble orchestrator: %w", err)
	}
	defer orch.Close()

	ctx := cmd.Context()
	if err := orch.Start(ctx); err != nil {
		return err
	}

	fmt.Fprintf(a.stdout, "pipeline service running (storage=%s)\n", cfg.Storage.Backend)
	<-ctx.Done()
	fmt.Fprintln(a.stdout, "shutting down")
	return nil
}
