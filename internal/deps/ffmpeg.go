package deps

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

// Tool describes an ffmpeg-family binary and the version it reports.
type Tool struct {
	Status
	Version string
}

// CheckFFmpegTool resolves binary and reads its version banner. Absolute
// paths must point at an executable file; bare names are looked up on PATH.
func CheckFFmpegTool(ctx context.Context, name, binary, description string) Tool {
	binary = strings.TrimSpace(binary)
	tool := Tool{Status: Status{Name: name, Command: binary, Description: description}}
	if binary == "" {
		tool.Detail = "command not configured"
		return tool
	}

	resolved, err := exec.LookPath(binary)
	if err != nil {
		if info, statErr := os.Stat(binary); statErr == nil && !isExecutable(info) {
			tool.Detail = fmt.Sprintf("%q is not executable", binary)
			return tool
		}
		tool.Detail = fmt.Sprintf("binary %q not found", binary)
		return tool
	}
	tool.Command = resolved
	tool.Available = true

	versionCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	out, err := exec.CommandContext(versionCtx, resolved, "-hide_banner", "-version").Output()
	if err != nil {
		tool.Detail = "version unavailable"
		return tool
	}
	tool.Version = parseVersion(out)
	tool.Detail = tool.Version
	return tool
}

// parseVersion extracts "6.1.1" from "ffmpeg version 6.1.1-3ubuntu5 Copyright ...".
func parseVersion(out []byte) string {
	scanner := bufio.NewScanner(bytes.NewReader(out))
	if !scanner.Scan() {
		return ""
	}
	fields := strings.Fields(scanner.Text())
	for i, field := range fields {
		if field == "version" && i+1 < len(fields) {
			version := fields[i+1]
			if cut, _, ok := strings.Cut(version, "-"); ok && cut != "" {
				return cut
			}
			return version
		}
	}
	return ""
}

func isExecutable(info os.FileInfo) bool {
	if info == nil {
		return false
	}
	if info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
