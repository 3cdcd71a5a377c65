package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"autotag/internal/app"
	"autotag/internal/logging"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var opts app.RunOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process the queue in the foreground until interrupted",
		Long: `Run loads the Tier 1 models, then processes pending queue items one at a
time until SIGINT or SIGTERM. Items left processing by a crashed run stay
processing; use "autotag queue reset-stuck" to requeue them.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			return app.Run(cmd.Context(), cfg, logger, opts)
		},
	}

	cmd.Flags().IntVar(&opts.Concurrency, "concurrency", 0, "Override workflow.concurrency")
	cmd.Flags().BoolVar(&opts.SkipPreflight, "skip-preflight", false, "Start without running preflight checks")
	return cmd
}
