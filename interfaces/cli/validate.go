package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hirewire/pipeline-go/interfaces/api"
)

// validateOptions holds options for the validate command.
type validateOptions struct {
	configPath string
	rulesPath  string
}

// newValidateCmd creates the validate command.
func (a *App) newValidateCmd() *cobra.Command {
	opts := &validateOptions{}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration and rule files",
		Long: `Validate a service configuration file and/or rule definitions.

This command checks:
  - File format (YAML or JSON for configuration, YAML for rules)
  - Storage backend settings
  - Rule triggers, conditions and actions
  - Approval flow steps and escalation rules
  - Duplicate rule and flow IDs across a rule directory

Examples:
  # Validate a configuration file
  pipeline validate -c config.yaml

  # Validate a rule directory
  pipeline validate --rules rules/

  # Validate both
  pipeline validate -c config.yaml --rules rules/`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.configPath == "" && opts.rulesPath == "" {
				return fmt.Errorf("nothing to validate: pass -c and/or --rules")
			}
			if opts.configPath != "" {
				if err := a.validateConfig(opts.configPath); err != nil {
					return err
				}
			}
			if opts.rulesPath != "" {
				if err := a.validateRules(opts.rulesPath); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Path to configuration file")
	cmd.Flags().StringVar(&opts.rulesPath, "rules", "", "Path to rule definitions (file or directory)")

	return cmd
}

func (a *App) validateConfig(path string) error {
	cfg, err := api.LoadConfig(path)
	if err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}

	fmt.Fprintf(a.stdout, "✓ Configuration is valid\n")
	fmt.Fprintf(a.stdout, "  Storage backend: %s\n", cfg.Storage.Backend)
	fmt.Fprintf(a.stdout, "  Scheduler tick: %s\n", cfg.Scheduler.TickInterval)
	fmt.Fprintf(a.stdout, "  Max cascade depth: %d\n", cfg.Scheduler.MaxCascadeDepth)
	if cfg.Storage.Redis.Enabled {
		fmt.Fprintf(a.stdout, "  Snapshot cache: redis (%s)\n", cfg.Storage.Redis.Addr)
	}
	if cfg.Webhook.Endpoint != "" {
		fmt.Fprintf(a.stdout, "  Webhook endpoint: %s\n", cfg.Webhook.Endpoint)
	}
	if cfg.Rules.Path != "" {
		fmt.Fprintf(a.stdout, "  Rules path: %s (watch=%t)\n", cfg.Rules.Path, cfg.Rules.Watch)
	}
	return nil
}

func (a *App) validateRules(path string) error {
	rf, err := api.LoadRules(path)
	if err != nil {
		return fmt.Errorf("rules invalid: %w", err)
	}

	fmt.Fprintf(a.stdout, "✓ Rule definitions are valid\n")
	fmt.Fprintf(a.stdout, "  Rules: %d\n", len(rf.Rules))
	for _, r := range rf.Rules {
		state := "active"
		if !r.IsActive {
			state = "inactive"
		}
		fmt.Fprintf(a.stdout, "    - %s (%s, trigger=%s, actions=%d)\n", r.Name, state, r.Trigger.Kind, len(r.Actions))
	}
	if len(rf.Flows) > 0 {
		fmt.Fprintf(a.stdout, "  Approval flows: %d\n", len(rf.Flows))
		for _, f := range rf.Flows {
			fmt.Fprintf(a.stdout, "    - %s (%d steps)\n", f.Name, len(f.Steps))
		}
	}
	return nil
}
