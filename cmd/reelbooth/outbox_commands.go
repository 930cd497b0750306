package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"reelbooth/internal/api"
	"reelbooth/internal/outbox"
)

func newOutboxCommand(ctx *commandContext) *cobra.Command {
	outboxCmd := &cobra.Command{
		Use:   "outbox",
		Short: "Inspect and retry artifact deliveries",
	}
	outboxCmd.AddCommand(newOutboxListCommand(ctx))
	outboxCmd.AddCommand(newOutboxRetryCommand(ctx))
	return outboxCmd
}

func newOutboxListCommand(ctx *commandContext) *cobra.Command {
	var statusFlags []string
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List outbox entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseOutboxStatuses(statusFlags)
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.Outbox(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				if len(resp.Entries) == 0 {
					fmt.Fprintln(out, "No outbox entries")
					return nil
				}
				fmt.Fprint(out, renderTable(outboxColumns, outboxRows(resp.Entries)))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&statusFlags, "status", "s", nil, "Filter by status (pending, uploading, uploaded, failed)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func newOutboxRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <id>",
		Short: "Schedule another delivery attempt for an entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				entry, err := client.RetryOutbox(cmd.Context(), strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Entry %s (%s) is %s\n", entry.ID, entry.Filename, entry.Status)
				return nil
			})
		},
	}
}

var outboxColumns = []column{
	{Header: "ID"},
	{Header: "File"},
	{Header: "Status"},
	{Header: "Size", Align: alignRight},
	{Header: "Attempts", Align: alignRight},
	{Header: "Updated"},
	{Header: "Detail", MaxWidth: 60},
}

func parseOutboxStatuses(values []string) ([]outbox.Status, error) {
	statuses := make([]outbox.Status, 0, len(values))
	for _, raw := range values {
		switch s := outbox.Status(strings.ToLower(strings.TrimSpace(raw))); s {
		case outbox.StatusPending, outbox.StatusUploading, outbox.StatusUploaded, outbox.StatusFailed:
			statuses = append(statuses, s)
		default:
			return nil, fmt.Errorf("unknown outbox status %q", raw)
		}
	}
	return statuses, nil
}

func outboxRows(entries []*outbox.Entry) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		detail := e.URL
		if e.Status == outbox.StatusFailed {
			detail = e.LastError
			if e.NextAttemptAt != nil {
				detail = fmt.Sprintf("%s (next attempt %s)", detail, e.NextAttemptAt.Local().Format(time.DateTime))
			}
		}
		rows = append(rows, []string{
			e.ID,
			e.Filename,
			string(e.Status),
			formatBytes(e.Size),
			strconv.Itoa(e.Attempts),
			e.UpdatedAt.Local().Format(time.DateTime),
			detail,
		})
	}
	return rows
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
