package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"autotag/internal/app"
	"autotag/internal/preflight"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	var loadModels bool

	cmd := &cobra.Command{
		Use:   "deps",
		Short: "Check binaries, models, directories and stage readiness",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			writeSectionHeader(out, "Dependencies", colorize)
			for _, status := range preflight.CheckSystemDeps(cfg) {
				kind := statusOK
				message := status.Detail
				if !status.Available {
					kind = statusError
					if status.Optional {
						kind = statusWarn
					}
				}
				if message == "" {
					message = status.Description
				}
				fmt.Fprintln(out, renderStatusLine(status.Name, kind, message, colorize))
			}

			writeSectionHeader(out, "Preflight", colorize)
			results := preflight.RunAll(cmd.Context(), cfg)
			for _, result := range results {
				kind := statusOK
				if !result.Passed {
					kind = statusError
				}
				fmt.Fprintln(out, renderStatusLine(result.Name, kind, result.Detail, colorize))
			}

			writeSectionHeader(out, "Models", colorize)
			for _, asset := range preflight.ModelInventory(cfg) {
				kind := statusOK
				if !asset.Present {
					kind = statusWarn
				}
				fmt.Fprintln(out, renderStatusLine(string(asset.Name), kind, asset.Path, colorize))
			}

			return ctx.withApp(func(a *app.App) error {
				if loadModels {
					_ = a.InitTier1()
				}
				writeStageHealth(cmd, out, a, colorize)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&loadModels, "load-models", false, "Load Tier 1 models so the tier1 stage reports real readiness")
	return cmd
}

func writeStageHealth(cmd *cobra.Command, out io.Writer, a *app.App, colorize bool) {
	writeSectionHeader(out, "Stages", colorize)
	for _, health := range a.Workflow.Health(cmd.Context()) {
		kind := statusOK
		if !health.Ready {
			kind = statusWarn
		}
		fmt.Fprintln(out, renderStatusLine(health.Name, kind, health.Detail, colorize))
	}
	caps := a.Capabilities()
	fmt.Fprintln(out, renderStatusLine("capabilities", statusInfo,
		fmt.Sprintf("tier1=%s tier2=%s", yesNo(caps.Tier1), yesNo(caps.Tier2)), colorize))
}
