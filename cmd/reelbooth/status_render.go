package main

import (
	"cmp"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"reelbooth/internal/deps"
	"reelbooth/internal/recorder"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 20
	statusIndent     = "  "
)

var statusStyles = map[statusKind]struct{ label, color string }{
	statusInfo:  {"INFO", ansiBlue},
	statusOK:    {"OK", ansiGreen},
	statusWarn:  {"WARN", ansiYellow},
	statusError: {"ERROR", ansiRed},
}

var titleCaser = cases.Title(language.English)

// renderStatusLine formats "  Label:   [KIND] message" with the label padded
// to a fixed column.
func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	style, ok := statusStyles[kind]
	if !ok {
		style = statusStyles[statusInfo]
	}
	badge := "[" + style.label + "]"
	if message != "" {
		badge += " " + message
	}
	line := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", badge)
	if colorize {
		line = style.color + line + ansiReset
	}
	return line
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// humanizeState renders "webcam_preview" as "Webcam Preview".
func humanizeState(state recorder.State) string {
	return titleCaser.String(strings.ReplaceAll(state.String(), "_", " "))
}

func recorderStateKind(state recorder.State, lastError string) statusKind {
	switch {
	case state == recorder.Idle && lastError != "":
		return statusWarn
	case state == recorder.Idle:
		return statusInfo
	default:
		return statusOK
	}
}

func dependencyLines(statuses []deps.Status, colorize bool) []string {
	var body, missing []string
	requiredMissing := 0
	for _, dep := range statuses {
		if dep.Available {
			message := "Ready"
			if dep.Command != "" {
				message += " (command: " + dep.Command + ")"
			}
			body = append(body, renderStatusLine(dep.Name, statusOK, message, colorize))
			continue
		}
		detail := cmp.Or(strings.TrimSpace(dep.Detail), "not available")
		kind := statusWarn
		if !dep.Optional {
			kind = statusError
			requiredMissing++
		}
		body = append(body, renderStatusLine(dep.Name, kind, detail, colorize))
		missing = append(missing, dep.Name)
	}

	summary := renderStatusLine("Summary", statusOK, "All required dependencies available", colorize)
	if requiredMissing > 0 {
		summary = renderStatusLine("Summary", statusError, fmt.Sprintf("%d required dependencies missing", requiredMissing), colorize)
	}
	lines := append([]string{summary}, body...)
	if len(missing) > 0 {
		lines = append(lines, renderStatusLine("Missing dependencies", statusWarn, strings.Join(missing, ", "), colorize))
	}
	return lines
}
