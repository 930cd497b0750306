package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"reelbooth/internal/probe"
)

func newProbeCommand() *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:         "probe <file>",
		Short:       "Inspect a recorded artifact's container and tracks",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := probe.File(args[0])
			if err != nil {
				return fmt.Errorf("probe %s: %w", args[0], err)
			}
			if jsonOut {
				return writeJSON(cmd, report)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Container: %s (%s)\n", report.Container, report.MIMEType)
			fmt.Fprintf(out, "Size:      %s\n", formatBytes(int64(report.Size)))
			fmt.Fprintf(out, "Duration:  %s\n", report.Duration.Round(time.Millisecond))
			if len(report.Tracks) == 0 {
				fmt.Fprintln(out, "No tracks found")
				return nil
			}
			rows := make([][]string, 0, len(report.Tracks))
			for _, t := range report.Tracks {
				rows = append(rows, []string{
					strconv.Itoa(t.ID),
					t.Kind,
					t.Codec,
					strconv.Itoa(t.Samples),
					t.Duration.Round(time.Millisecond).String(),
				})
			}
			fmt.Fprint(out, renderTable([]column{
				{Header: "Track", Align: alignRight},
				{Header: "Kind"},
				{Header: "Codec"},
				{Header: "Samples", Align: alignRight},
				{Header: "Duration", Align: alignRight},
			}, rows))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}
