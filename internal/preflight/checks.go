package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"reelbooth/internal/config"
	"reelbooth/internal/deps"
	"reelbooth/internal/encoding"
)

// CheckUploadEndpoint verifies the asset sink answers HTTP. Any response
// below 500 other than an auth rejection counts as reachable, since the
// backend only routes POST requests.
func CheckUploadEndpoint(ctx context.Context, baseURL, token string) Result {
	const name = "Upload endpoint"

	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return Result{Name: name, Detail: "missing base_url"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client := &http.Client{Timeout: 5 * time.Second}
	req, err := http.NewRequestWithContext(checkCtx, http.MethodHead, base, nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("reachability check failed (%v)", err)}
	}
	if token = strings.TrimSpace(token); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Detail: summarizeNetError(err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Result{Name: name, Detail: "auth failed (check upload.token)"}
	case resp.StatusCode >= 500:
		return Result{Name: name, Detail: fmt.Sprintf("server error (%d)", resp.StatusCode)}
	default:
		return Result{Name: name, Passed: true, Detail: base + " reachable"}
	}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	return checkDirectory(name, path, unix.R_OK|unix.W_OK|unix.X_OK, "read/write ok")
}

// CheckReadableDirectory verifies that the directory exists and is readable.
func CheckReadableDirectory(name, path string) Result {
	return checkDirectory(name, path, unix.R_OK|unix.X_OK, "readable")
}

func checkDirectory(name, path string, mode uint32, okDetail string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, mode); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%s)", path, okDetail)}
}

// CheckCamera verifies the capture device node exists and is read/writable
// by the current user. V4L2 requires write access to negotiate formats.
func CheckCamera(device string) Result {
	const name = "Camera"

	device = strings.TrimSpace(device)
	if device == "" {
		return Result{Name: name, Detail: "capture.device not configured"}
	}
	info, err := os.Stat(device)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (not connected)", device)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", device, err)}
	}
	if info.Mode()&os.ModeCharDevice == 0 {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not a character device)", device)}
	}
	if err := unix.Access(device, unix.R_OK|unix.W_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: permission denied; add the user to the video group)", device)}
	}
	probe := ProbeCamera(device, "")
	return Result{Name: name, Passed: true, Detail: probe.Detail()}
}

// CheckEncoder negotiates the encoding ladder against the installed ffmpeg.
func CheckEncoder(ctx context.Context, prober encoding.Prober, ladder []string) Result {
	const name = "Encoder"

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	profile, tried, err := encoding.Negotiate(checkCtx, prober, ladder)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	detail := profile.Name
	if len(tried) > 1 {
		detail += fmt.Sprintf(" (fell back from %s)", strings.Join(tried[:len(tried)-1], ", "))
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckSystemDeps evaluates all system-level dependencies for the given config.
// Both the daemon and the CLI status command use this to avoid duplicating
// the requirements list.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	results := []deps.Status{
		deps.CheckFFmpegTool(ctx, "FFmpeg", cfg.Encoding.FFmpegBinary, "Required for capture and encoding").Status,
		deps.CheckFFmpegTool(ctx, "FFprobe", cfg.Encoding.FFprobeBinary, "Required for imported clips").Status,
	}
	if cfg.Audio.MonitorEnabled {
		results = append(results, deps.CheckBinaries([]deps.Requirement{{
			Name:        "Audio monitor",
			Command:     cfg.Audio.MonitorPlayer,
			Description: "Plays the countdown cue and music through the booth speakers",
			Optional:    true,
		}})...)
	}
	return results
}

func summarizeNetError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "reachability check timed out"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "reachability check timed out"
	}
	return err.Error()
}
