package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"reelbooth/internal/api"
	"reelbooth/internal/recorder"
)

func newRecorderCommands(ctx *commandContext) []*cobra.Command {
	simple := func(use, short string, call func(*api.Client, context.Context) (recorder.Status, error)) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return ctx.withClient(func(client *api.Client) error {
					st, err := call(client, cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Recorder: %s\n", describeStatus(st))
					return nil
				})
			},
		}
	}

	activateCmd := simple("activate", "Open the camera and show the live preview", (*api.Client).Activate)
	beginCmd := simple("begin", "Start the countdown for a live recording", (*api.Client).Begin)
	stopCmd := simple("stop", "Stop the current live recording", (*api.Client).Stop)
	resetCmd := simple("reset", "Abandon the current session and return to idle", (*api.Client).Reset)

	editCmd := &cobra.Command{
		Use:   "edit <file>",
		Short: "Record a local video file with the edit overlays",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}
			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf("edit source: %w", err)
			}
			return ctx.withClient(func(client *api.Client) error {
				st, err := client.Edit(cmd.Context(), path)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Recorder: %s\n", describeStatus(st))
				return nil
			})
		},
	}

	return []*cobra.Command{activateCmd, beginCmd, stopCmd, resetCmd, editCmd, newRecordCommand(ctx)}
}

func newRecordCommand(ctx *commandContext) *cobra.Command {
	var duration time.Duration
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Run a live session end to end and wait for the artifact",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				return runRecording(cmd.Context(), client, cmd.OutOrStdout(), duration)
			})
		},
	}
	cmd.Flags().DurationVar(&duration, "duration", 0, "Stop after this long (defaults to the configured maximum)")
	return cmd
}

func runRecording(ctx context.Context, client *api.Client, out io.Writer, duration time.Duration) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan recorder.Event, 16)
	streamErr := make(chan error, 1)
	go func() {
		defer close(events)
		streamErr <- client.Events(ctx, func(ev recorder.Event) error {
			select {
			case events <- ev:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}()

	// The first event is the snapshot; once it arrives the subscription is live.
	select {
	case _, ok := <-events:
		if !ok {
			return <-streamErr
		}
	case <-ctx.Done():
		return ctx.Err()
	}

	if _, err := client.Activate(ctx); err != nil {
		return err
	}
	if _, err := client.Begin(ctx); err != nil {
		return err
	}

	var stopTimer <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stopTimer:
			stopTimer = nil
			if _, err := client.Stop(ctx); err != nil {
				return err
			}
		case ev, ok := <-events:
			if !ok {
				if err := <-streamErr; err != nil {
					return err
				}
				return errors.New("event stream closed before the recording finished")
			}
			fmt.Fprintln(out, formatEvent(ev))
			switch ev.Kind {
			case recorder.EventError:
				return fmt.Errorf("recording failed: %s", ev.Error)
			case recorder.EventArtifact:
				return nil
			case recorder.EventState:
				if ev.State == recorder.Capturing && duration > 0 && stopTimer == nil {
					stopTimer = time.After(duration)
				}
			}
		}
	}
}

func newEventsCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Follow recorder events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			return ctx.withClient(func(client *api.Client) error {
				return client.Events(cmd.Context(), func(ev recorder.Event) error {
					if jsonOut {
						return writeJSONLine(cmd, ev)
					}
					_, err := fmt.Fprintln(out, formatEvent(ev))
					return err
				})
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit one JSON object per event")
	return cmd
}

func newPreviewCommand(ctx *commandContext) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Save the current composed frame as PNG",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				data, err := client.Preview(cmd.Context())
				if err != nil {
					return err
				}
				if err := os.WriteFile(output, data, 0o644); err != nil {
					return fmt.Errorf("write preview: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote preview to %s\n", output)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "preview.png", "Destination PNG file")
	return cmd
}

func describeStatus(st recorder.Status) string {
	parts := []string{humanizeState(st.State)}
	if st.SessionID != "" {
		parts = append(parts, fmt.Sprintf("session %s", st.SessionID))
	}
	if st.Mode != "" {
		parts = append(parts, string(st.Mode))
	}
	return strings.Join(parts, ", ")
}

func formatEvent(ev recorder.Event) string {
	stamp := ev.Time.Local().Format("15:04:05")
	switch ev.Kind {
	case recorder.EventCountdown:
		return fmt.Sprintf("%s countdown %d", stamp, ev.Remaining)
	case recorder.EventProgress:
		return fmt.Sprintf("%s %s %.0f%% (%s)", stamp, humanizeState(ev.State), ev.Progress*100,
			(time.Duration(ev.ElapsedMS) * time.Millisecond).Round(100*time.Millisecond))
	case recorder.EventArtifact:
		if info := ev.ArtifactInfo; info != nil {
			return fmt.Sprintf("%s artifact %s (%s, %d bytes)", stamp, info.Filename, info.MIMEType, info.Size)
		}
		return fmt.Sprintf("%s artifact ready", stamp)
	case recorder.EventError:
		if ev.Hint != "" {
			return fmt.Sprintf("%s error: %s (hint: %s)", stamp, ev.Error, ev.Hint)
		}
		return fmt.Sprintf("%s error: %s", stamp, ev.Error)
	default:
		if ev.SessionID != "" {
			return fmt.Sprintf("%s %s (session %s)", stamp, humanizeState(ev.State), ev.SessionID)
		}
		return fmt.Sprintf("%s %s", stamp, humanizeState(ev.State))
	}
}
