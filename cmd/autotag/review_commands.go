package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"autotag/internal/api"
	"autotag/internal/app"
	"autotag/internal/queue"
	"autotag/internal/review"
)

func newReviewCommand(ctx *commandContext) *cobra.Command {
	reviewCmd := &cobra.Command{
		Use:   "review",
		Short: "Review analysis results and apply approved tags",
	}

	reviewCmd.AddCommand(newReviewListCommand(ctx))
	reviewCmd.AddCommand(newReviewShowCommand(ctx))
	reviewCmd.AddCommand(newReviewApproveCommand(ctx))
	reviewCmd.AddCommand(newReviewRejectCommand(ctx))

	return reviewCmd
}

func newReviewListCommand(ctx *commandContext) *cobra.Command {
	var statusFlag string
	var page int
	var pageSize int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List analysis results awaiting review",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, ok := queue.ParseReviewStatus(statusFlag)
			if !ok {
				return fmt.Errorf("unknown review status %q", statusFlag)
			}
			return ctx.withApp(func(a *app.App) error {
				result, err := a.Reviews.ListByStatus(cmd.Context(), status, page, pageSize)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, api.FromReviewPage(result))
				}
				out := cmd.OutOrStdout()
				if len(result.Entries) == 0 {
					fmt.Fprintf(out, "No %s results\n", status)
					return nil
				}
				reviewListTable.write(out, buildReviewRows(result.Entries))
				fmt.Fprintf(out, "Page %d, %d of %d results\n", result.Page, len(result.Entries), result.Total)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&statusFlag, "status", "s", string(queue.ReviewPending), "Review status: pending, approved or rejected")
	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 20, "Results per page")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newReviewShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <media-id>",
		Short: "Show the full analysis result for one media item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseMediaIDs(args)
			if err != nil {
				return err
			}
			return ctx.withApp(func(a *app.App) error {
				result, err := a.Store.GetResult(cmd.Context(), ids[0])
				if err != nil {
					return err
				}
				if result == nil {
					return fmt.Errorf("no analysis result for media %d", ids[0])
				}
				entry := queue.ReviewEntry{Result: *result}
				if media, err := a.Library.MediaByID(cmd.Context(), result.MediaID); err == nil {
					entry.MediaPath = media.Path
					entry.MediaType = string(media.Type())
					entry.MediaTitle = media.Title.String
				}
				return writeJSON(cmd, api.FromReviewEntry(entry))
			})
		},
	}
}

func newReviewApproveCommand(ctx *commandContext) *cobra.Command {
	var tagIDs []int64
	var newTags []string
	var title string

	cmd := &cobra.Command{
		Use:   "approve <media-id...>",
		Short: "Approve results, linking their matched tags",
		Long: `Approve links each result's matched tags to its media. With --tag-id,
--new-tag or --title a single media id is approved with those edits:
--tag-id replaces the matched tags, --new-tag creates vocabulary entries,
and --title overrides the suggested title (an empty value skips it).`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseMediaIDs(args)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			edited := flags.Changed("tag-id") || flags.Changed("new-tag") || flags.Changed("title")
			if edited && len(ids) != 1 {
				return errors.New("edits apply to exactly one media id")
			}

			return ctx.withApp(func(a *app.App) error {
				out := cmd.OutOrStdout()
				if len(ids) > 1 {
					return reportBulk(out, "Approved", a.Reviews.ApproveMany(cmd.Context(), ids))
				}
				var edits review.Edits
				if flags.Changed("tag-id") {
					edits.TagIDs = append([]int64{}, tagIDs...)
				}
				edits.NewTags = newTags
				if flags.Changed("title") {
					edits.Title = &title
				}
				outcome, err := a.Reviews.ApproveWithEdits(cmd.Context(), ids[0], edits)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Approved media %d: %d tags, %d new links", outcome.MediaID, len(outcome.TagIDs), outcome.LinksCreated)
				if outcome.Title != "" {
					fmt.Fprintf(out, ", title %q", outcome.Title)
				}
				fmt.Fprintln(out)
				return nil
			})
		},
	}

	cmd.Flags().Int64SliceVar(&tagIDs, "tag-id", nil, "Vocabulary tag ids to link instead of the matched tags")
	cmd.Flags().StringSliceVar(&newTags, "new-tag", nil, "Tag names to create and link")
	cmd.Flags().StringVar(&title, "title", "", "Title to set on the media")
	return cmd
}

func newReviewRejectCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reject <media-id...>",
		Short: "Reject results without linking tags",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseMediaIDs(args)
			if err != nil {
				return err
			}
			return ctx.withApp(func(a *app.App) error {
				return reportBulk(cmd.OutOrStdout(), "Rejected", a.Reviews.RejectMany(cmd.Context(), ids))
			})
		},
	}
}

func reportBulk(out io.Writer, verb string, result review.BulkResult) error {
	for _, failure := range result.Failed {
		fmt.Fprintf(out, "Media %d: %s\n", failure.MediaID, failure.Error)
	}
	fmt.Fprintf(out, "%s %d media items\n", verb, result.Succeeded)
	if len(result.Failed) > 0 {
		return fmt.Errorf("%d of %d media items failed", len(result.Failed), len(result.Failed)+result.Succeeded)
	}
	return nil
}

var reviewListTable = tableSpec{
	headers: []string{"Media", "Path", "NSFW", "Content", "Matched", "Suggested", "Title"},
	aligns:  []columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
}

func buildReviewRows(entries []queue.ReviewEntry) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		matched := make([]string, 0, len(entry.MatchedTags))
		for _, tag := range entry.MatchedTags {
			matched = append(matched, tag.Name)
		}
		suggested := make([]string, 0, len(entry.Suggestions))
		for _, s := range entry.Suggestions {
			suggested = append(suggested, s.Name)
		}
		title := entry.MediaTitle
		if title == "" && entry.Tier2 != nil {
			title = entry.Tier2.Title
		}
		rows = append(rows, []string{
			strconv.FormatInt(entry.MediaID, 10),
			truncate(entry.MediaPath, 40),
			fmt.Sprintf("%s %.2f", entry.NSFWCategory, entry.NSFWConfidence),
			string(entry.ContentType),
			joinLimited(matched, 6),
			joinLimited(suggested, 4),
			truncate(title, 30),
		})
	}
	return rows
}
