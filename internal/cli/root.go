// Package cli implements the monitor command line.
package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/freshness/config"
)

const shutdownTimeout = 5 * time.Second

type rootOptions struct {
	configPath string
	logLevel   string
	apiBase    string
}

// NewRootCmd creates the root command. Subcommands share one environment
// (registry, coordinator, service) built from the config before they run.
func NewRootCmd(ver string) *cobra.Command {
	var opts rootOptions
	var env *environment

	cmd := &cobra.Command{
		Use:           "monitor",
		Short:         "Watch code activity of course repositories",
		Long:          "monitor: read course activity through a stale-while-revalidate cache and report changes",
		Version:       ver,
		SilenceUsage:  true,
		SilenceErrors: true,
		Example: `  # Print activity for one course
  monitor fetch --course algo-2024

  # Watch two courses, restricted to some students
  monitor watch --course algo-2024 --course db-2024 --student alice --student bob`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if opts.logLevel != "" {
				cfg.LogLevel = opts.logLevel
			}
			if opts.apiBase != "" {
				cfg.APIBase = opts.apiBase
			}
			env, err = newEnvironment(cfg, cmd.ErrOrStderr())
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if env == nil {
				return nil
			}
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return env.Close(ctx)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default "+config.DefaultPath+")")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	cmd.PersistentFlags().StringVar(&opts.apiBase, "api", "", "monitoring API base URL (overrides config)")

	current := func() *environment { return env }
	cmd.AddCommand(newFetchCmd(current), newWatchCmd(current))
	return cmd
}
