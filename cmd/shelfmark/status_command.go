package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"shelfmark/internal/api"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and queue status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			status, err := client.Status(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, status)
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, line := range statusLines(status, colorize) {
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON output")
	return cmd
}

func statusLines(status *api.DaemonStatus, colorize bool) []string {
	runningKind := statusError
	runningText := "stopped"
	if status.Running {
		runningKind = statusOK
		runningText = fmt.Sprintf("pid %d", status.PID)
	}

	queueKind := statusOK
	if status.Queue.Dead > 0 {
		queueKind = statusWarn
	}
	queueText := fmt.Sprintf("%d queued, %d processing, %d done, %d dead",
		status.Queue.Queued, status.Queue.Processing, status.Queue.Done, status.Queue.Dead)

	lines := []string{
		renderStatusLine("Daemon", runningKind, runningText, colorize),
		renderStatusLine("Queue", queueKind, queueText, colorize),
		renderStatusLine("Database", statusInfo, status.DatabasePath, colorize),
	}

	if len(status.BookmarkStats) > 0 {
		total := 0
		failed := status.BookmarkStats["failed"]
		for _, count := range status.BookmarkStats {
			total += count
		}
		kind := statusOK
		if failed > 0 {
			kind = statusWarn
		}
		text := fmt.Sprintf("%d total, %d done, %d failed",
			total, status.BookmarkStats["done"], failed)
		lines = append(lines, renderStatusLine("Bookmarks", kind, text, colorize))
	}
	return lines
}
