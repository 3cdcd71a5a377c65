package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"autotag/internal/app"
	"autotag/internal/queue"
)

func newStatsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show queue, review and NSFW distribution counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(func(a *app.App) error {
				stats, err := a.Reviews.Stats(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, stats)
				}

				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				writeSectionHeader(out, "Queue", colorize)
				countTable.write(out, buildQueueStatusRows(stats.Queue))

				writeSectionHeader(out, "Review", colorize)
				countTable.write(out, [][]string{
					{formatStatusLabel(string(queue.ReviewPending)), strconv.Itoa(stats.Review.Pending)},
					{formatStatusLabel(string(queue.ReviewApproved)), strconv.Itoa(stats.Review.Approved)},
					{formatStatusLabel(string(queue.ReviewRejected)), strconv.Itoa(stats.Review.Rejected)},
				})

				if len(stats.Review.NSFW) > 0 {
					writeSectionHeader(out, "NSFW categories", colorize)
					nsfwTable.write(out, buildNSFWRows(stats.Review.NSFW))
				}
				fmt.Fprintf(out, "Tag links created by approvals: %d\n", stats.AITagLinks)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

var nsfwTable = tableSpec{
	headers: []string{"Category", "Results"},
	aligns:  []columnAlignment{alignLeft, alignRight},
}

func buildNSFWRows(counts map[string]int) [][]string {
	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, []string{formatStatusLabel(key), strconv.Itoa(counts[key])})
	}
	return rows
}
