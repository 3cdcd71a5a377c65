package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"autotag/internal/app"
)

func newEnqueueCommand(ctx *commandContext) *cobra.Command {
	var priority int
	var all bool
	var untagged bool

	cmd := &cobra.Command{
		Use:   "enqueue [media-id...]",
		Short: "Add media to the tagging queue",
		Long: `Enqueue adds the given media ids, every media item without tags
(--untagged), or the whole library (--all). Media already queued is skipped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			modes := 0
			for _, set := range []bool{all, untagged, len(args) > 0} {
				if set {
					modes++
				}
			}
			if modes != 1 {
				return errors.New("specify media ids, --untagged, or --all")
			}
			var ids []int64
			if len(args) > 0 {
				parsed, err := parseMediaIDs(args)
				if err != nil {
					return err
				}
				ids = parsed
			}
			return ctx.withApp(func(a *app.App) error {
				var added int
				var err error
				switch {
				case all:
					added, err = a.Workflow.QueueAll(cmd.Context(), priority)
				case untagged:
					added, err = a.Workflow.QueueUntagged(cmd.Context(), priority)
				default:
					added, err = a.Workflow.QueueSpecific(cmd.Context(), ids, priority)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued %d media items\n", added)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&priority, "priority", "p", 0, "Queue priority (higher runs first)")
	cmd.Flags().BoolVar(&all, "all", false, "Queue every media item in the library")
	cmd.Flags().BoolVar(&untagged, "untagged", false, "Queue media with no linked tags")
	return cmd
}
