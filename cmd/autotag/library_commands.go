package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"autotag/internal/app"
	"autotag/internal/config"
	"autotag/internal/tagging"
)

func newLibraryCommand(ctx *commandContext) *cobra.Command {
	libraryCmd := &cobra.Command{
		Use:   "library",
		Short: "Register media and manage the tag vocabulary",
	}

	libraryCmd.AddCommand(newLibraryAddCommand(ctx))
	libraryCmd.AddCommand(newLibraryTagsCommand(ctx))

	return libraryCmd
}

func newLibraryAddCommand(ctx *commandContext) *cobra.Command {
	var typeFlag string

	cmd := &cobra.Command{
		Use:   "add <path...>",
		Short: "Register media files with the library",
		Long: `Add registers files so they can be queued. The media type is taken
from --type or inferred from the file extension. Video durations are probed
when the item is processed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var forced tagging.MediaType
			if typeFlag != "" {
				mt, ok := tagging.ParseMediaType(typeFlag)
				if !ok {
					return fmt.Errorf("unknown media type %q", typeFlag)
				}
				forced = mt
			}
			return ctx.withApp(func(a *app.App) error {
				out := cmd.OutOrStdout()
				for _, arg := range args {
					path, err := config.ExpandPath(arg)
					if err != nil {
						return err
					}
					mediaType := forced
					if mediaType == "" {
						mt, ok := mediaTypeFromPath(path)
						if !ok {
							return fmt.Errorf("cannot infer media type for %s; pass --type", path)
						}
						mediaType = mt
					}
					id, err := a.Library.AddMedia(cmd.Context(), path, mediaType, 0)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Added media %d (%s) %s\n", id, mediaType, path)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&typeFlag, "type", "", "Media type: image, gif or video")
	return cmd
}

func newLibraryTagsCommand(ctx *commandContext) *cobra.Command {
	tagsCmd := &cobra.Command{
		Use:   "tags",
		Short: "List the tag vocabulary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(func(a *app.App) error {
				tags, err := a.Library.AllTags(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(tags) == 0 {
					fmt.Fprintln(out, "Vocabulary is empty")
					return nil
				}
				rows := make([][]string, 0, len(tags))
				for _, tag := range tags {
					rows = append(rows, []string{strconv.FormatInt(tag.ID, 10), tag.Name})
				}
				tagTable.write(out, rows)
				return nil
			})
		},
	}

	tagsCmd.AddCommand(&cobra.Command{
		Use:   "add <name...>",
		Short: "Add vocabulary entries, reusing existing names",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(func(a *app.App) error {
				ids, err := a.Resolver.CreateNewTags(cmd.Context(), args)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Vocabulary ids: %s\n", formatIDs(ids))
				return nil
			})
		},
	})

	return tagsCmd
}

var tagTable = tableSpec{
	headers: []string{"ID", "Name"},
	aligns:  []columnAlignment{alignRight, alignLeft},
}

func mediaTypeFromPath(path string) (tagging.MediaType, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png", ".webp", ".bmp", ".tif", ".tiff":
		return tagging.MediaImage, true
	case ".gif":
		return tagging.MediaGIF, true
	case ".mp4", ".m4v", ".mkv", ".mov", ".webm", ".avi", ".wmv", ".flv", ".mpg", ".mpeg", ".ts":
		return tagging.MediaVideo, true
	default:
		return "", false
	}
}

func formatIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ", ")
}
