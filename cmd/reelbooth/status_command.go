package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"reelbooth/internal/api"
	"reelbooth/internal/config"
	"reelbooth/internal/devices"
	"reelbooth/internal/outbox"
	"reelbooth/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	var sysfsRoot string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, recorder, and outbox status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			var status *api.DaemonStatus
			client, err := ctx.client()
			if err == nil {
				snapshot, statusErr := client.Status(cmd.Context())
				switch {
				case statusErr == nil:
					status = &snapshot
				case !api.IsAPIUnavailable(statusErr):
					return wrapAPIError(statusErr, ctx.apiAddress())
				}
			}

			if jsonOut {
				if status == nil {
					return writeJSON(cmd, api.DaemonStatus{})
				}
				return writeJSON(cmd, status)
			}

			for _, line := range renderSectionHeader("System Status", colorize) {
				fmt.Fprintln(stdout, line)
			}
			if status == nil {
				fmt.Fprintln(stdout, renderStatusLine("Daemon", statusError, "Not running", colorize))
				probe := preflight.ProbeCamera(cfg.Capture.Device, sysfsRoot)
				fmt.Fprintln(stdout, cameraStatusLine(api.CameraStatus{
					Device:   probe.Device,
					Name:     probe.Name,
					Detected: probe.Detected,
					Capture:  probe.Capture,
				}, colorize))
			} else {
				fmt.Fprintln(stdout, renderStatusLine("Daemon", statusOK, fmt.Sprintf("Running (pid %d)", status.PID), colorize))
				fmt.Fprintln(stdout, recorderStatusLine(status, colorize))
				fmt.Fprintln(stdout, cameraStatusLine(status.Camera, colorize))
				if status.HotplugMonitor {
					fmt.Fprintln(stdout, renderStatusLine("Hotplug", statusOK, "Netlink monitoring active", colorize))
				} else {
					fmt.Fprintln(stdout, renderStatusLine("Hotplug", statusInfo, "Inactive", colorize))
				}
			}
			fmt.Fprintln(stdout, uploadStatusLine(cfg, colorize))
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Dependencies", colorize) {
				fmt.Fprintln(stdout, line)
			}
			for _, line := range dependencyLines(preflight.CheckSystemDeps(cmd.Context(), cfg), colorize) {
				fmt.Fprintln(stdout, line)
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Paths", colorize) {
				fmt.Fprintln(stdout, line)
			}
			for _, check := range []preflight.Result{
				preflight.CheckDirectoryAccess("Artifacts", cfg.Paths.ArtifactDir),
				preflight.CheckDirectoryAccess("State", cfg.Paths.StateDir),
				preflight.CheckReadableDirectory("Assets", cfg.Paths.AssetDir),
			} {
				kind := statusOK
				if !check.Passed {
					kind = statusError
				}
				fmt.Fprintln(stdout, renderStatusLine(check.Name, kind, check.Detail, colorize))
			}

			if status == nil {
				return nil
			}
			fmt.Fprintln(stdout)
			for _, line := range renderSectionHeader("Outbox", colorize) {
				fmt.Fprintln(stdout, line)
			}
			writeOutboxSummary(stdout, status.Outbox)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output the daemon status as JSON")
	cmd.Flags().StringVar(&sysfsRoot, "sysfs", devices.DefaultSysfsRoot, "V4L2 sysfs class directory")
	_ = cmd.Flags().MarkHidden("sysfs")
	return cmd
}

func recorderStatusLine(status *api.DaemonStatus, colorize bool) string {
	rec := status.Recorder
	message := humanizeState(rec.State)
	if rec.SessionID != "" {
		message = fmt.Sprintf("%s (%s session %s)", message, rec.Mode, rec.SessionID)
	}
	if rec.ElapsedMS > 0 {
		message = fmt.Sprintf("%s, %s elapsed", message, (time.Duration(rec.ElapsedMS) * time.Millisecond).Round(time.Second))
	}
	if rec.LastError != "" && !rec.State.Active() {
		message = fmt.Sprintf("%s; last error: %s", message, rec.LastError)
	}
	return renderStatusLine("Recorder", recorderStateKind(rec.State, rec.LastError), message, colorize)
}

func cameraStatusLine(cam api.CameraStatus, colorize bool) string {
	if !cam.Detected {
		return renderStatusLine("Camera", statusError, fmt.Sprintf("%s (not detected)", cam.Device), colorize)
	}
	name := cam.Name
	if name == "" {
		name = "Unknown camera"
	}
	if !cam.Capture {
		return renderStatusLine("Camera", statusWarn, fmt.Sprintf("%s on %s (not a capture node)", name, cam.Device), colorize)
	}
	return renderStatusLine("Camera", statusOK, fmt.Sprintf("%s on %s", name, cam.Device), colorize)
}

func uploadStatusLine(cfg *config.Config, colorize bool) string {
	if cfg == nil {
		return renderStatusLine("Upload", statusInfo, "Unknown", colorize)
	}
	if !cfg.Upload.Enabled {
		return renderStatusLine("Upload", statusWarn, "Disabled (artifacts stay local)", colorize)
	}
	switch cfg.Upload.Sink {
	case config.SinkDir:
		return renderStatusLine("Upload", statusOK, "Directory sink "+cfg.Upload.Dir, colorize)
	default:
		return renderStatusLine("Upload", statusOK, "HTTP sink "+cfg.Upload.BaseURL, colorize)
	}
}

func writeOutboxSummary(w io.Writer, summary outbox.Summary) {
	if summary.Total == 0 {
		fmt.Fprintln(w, "Outbox is empty")
		return
	}
	rows := [][]string{
		{titleCaser.String(string(outbox.StatusPending)), strconv.Itoa(summary.Pending)},
		{titleCaser.String(string(outbox.StatusUploading)), strconv.Itoa(summary.Uploading)},
		{titleCaser.String(string(outbox.StatusFailed)), strconv.Itoa(summary.Failed)},
		{titleCaser.String(string(outbox.StatusUploaded)), strconv.Itoa(summary.Uploaded)},
	}
	fmt.Fprint(w, renderTable([]column{{Header: "Status"}, {Header: "Count", Align: alignRight}}, rows))
}
