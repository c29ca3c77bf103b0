package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"shelfmark/internal/api"
)

func newAddCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "add URL",
		Short: "Save a URL for enrichment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			bookmark, created, err := client.CreateBookmark(cmd.Context(), ctx.userID(), args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, api.BookmarkResponse{Bookmark: bookmark})
			}
			out := cmd.OutOrStdout()
			if created {
				fmt.Fprintf(out, "Queued bookmark #%d (%s)\n", bookmark.ID, bookmark.URL)
			} else {
				fmt.Fprintf(out, "Already saved as bookmark #%d (status: %s)\n", bookmark.ID, bookmark.Status)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON output")
	return cmd
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved bookmarks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			bookmarks, err := client.ListBookmarks(cmd.Context(), ctx.userID(), statuses...)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, api.BookmarkListResponse{Bookmarks: bookmarks})
			}
			out := cmd.OutOrStdout()
			if len(bookmarks) == 0 {
				fmt.Fprintln(out, "No bookmarks found.")
				return nil
			}
			fmt.Fprintln(out, renderTable(bookmarkColumns, bookmarkRows(bookmarks)))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Filter by status (repeatable)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON output")
	return cmd
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show ID",
		Short: "Show a bookmark with its cataloged entities",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseBookmarkID(args[0])
			if err != nil {
				return err
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			detail, err := client.GetBookmark(cmd.Context(), id)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, detail)
			}

			out := cmd.OutOrStdout()
			b := detail.Bookmark
			fmt.Fprintf(out, "Bookmark #%d\n", b.ID)
			fmt.Fprintf(out, "  URL:     %s\n", b.URL)
			fmt.Fprintf(out, "  Status:  %s\n", b.Status)
			if b.Title != "" {
				fmt.Fprintf(out, "  Title:   %s\n", b.Title)
			}
			if b.Summary != "" {
				fmt.Fprintf(out, "  Summary: %s\n", b.Summary)
			}
			if b.ErrorMessage != "" {
				fmt.Fprintf(out, "  Error:   %s\n", b.ErrorMessage)
			}

			if len(detail.Entities) > 0 {
				fmt.Fprintln(out)
				fmt.Fprintln(out, renderTable(entityLinkColumns, entityLinkRows(detail.Entities)))
			}
			if len(detail.Images) > 0 {
				fmt.Fprintf(out, "\n%d image(s) discovered\n", len(detail.Images))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON output")
	return cmd
}

func newRetryCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retry ID",
		Short: "Re-run enrichment for a failed bookmark",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseBookmarkID(args[0])
			if err != nil {
				return err
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			resp, err := client.RetryBookmark(cmd.Context(), id)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if resp.Retried {
				fmt.Fprintf(out, "Bookmark #%d queued for retry\n", id)
			} else {
				fmt.Fprintf(out, "Bookmark #%d is %s; only failed bookmarks can be retried\n", id, resp.Bookmark.Status)
			}
			return nil
		},
	}
	return cmd
}

func parseBookmarkID(arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid bookmark id %q", arg)
	}
	return id, nil
}

func bookmarkRows(bookmarks []api.Bookmark) [][]string {
	rows := make([][]string, 0, len(bookmarks))
	for _, b := range bookmarks {
		rows = append(rows, []string{
			strconv.FormatInt(b.ID, 10),
			b.Status,
			truncate(b.Title, 40),
			truncate(b.URL, 60),
			b.UpdatedAt,
		})
	}
	return rows
}

func entityLinkRows(links []api.EntityLink) [][]string {
	rows := make([][]string, 0, len(links))
	for _, link := range links {
		rows = append(rows, []string{
			link.EntityName,
			link.EntityType,
			fmt.Sprintf("%.2f", link.Confidence),
			link.Source,
		})
	}
	return rows
}

func truncate(value string, limit int) string {
	if limit <= 3 || len(value) <= limit {
		return value
	}
	return value[:limit-3] + "..."
}
