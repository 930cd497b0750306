package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"reelbooth/internal/config"
)

// LogFileName is the daemon log written inside the configured log directory.
const LogFileName = "reelbooth.log"

// Options describes logger construction parameters.
type Options struct {
	Level       string
	Format      string
	OutputPaths []string
	Development bool
	// Color forces ANSI level colors on console output. When nil, color is
	// enabled only if the single output is a terminal.
	Color *bool
}

// New constructs a slog logger using the provided options.
func New(opts Options) (*slog.Logger, error) {
	level := parseLevel(opts.Level)
	levelVar := new(slog.LevelVar)
	levelVar.Set(level)

	outputWriter, err := openWriters(defaultSlice(opts.OutputPaths, []string{"stdout"}))
	if err != nil {
		return nil, err
	}

	addSource := opts.Development || level <= slog.LevelDebug

	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = "console"
	}

	var handler slog.Handler
	switch format {
	case "json":
		handler = newJSONHandler(outputWriter, levelVar, addSource)
	case "console":
		color := isTerminal(outputWriter)
		if opts.Color != nil {
			color = *opts.Color
		}
		handler = newPrettyHandler(outputWriter, levelVar, addSource, color)
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}

	return slog.New(handler), nil
}

// RunLogPattern matches the per-run daemon log files NewRunLogger creates.
const RunLogPattern = "reelbooth-*.log"

// RunLog names the files behind a daemon run logger.
type RunLog struct {
	// Path is this run's log file.
	Path string
	// Pointer is LogFileName in the log directory; it links to Path.
	Pointer string
}

// NewRunLogger logs to stdout and to a fresh reelbooth-<stamp>.log in
// cfg.Paths.LogDir, then repoints LogFileName at it so `tail -f` on the
// pointer follows the current run. Empty opts fields fall back to cfg.
// A pointer that cannot be updated is logged, not returned.
func NewRunLogger(cfg *config.Config, opts Options, now time.Time) (*slog.Logger, RunLog, error) {
	if cfg == nil {
		return nil, RunLog{}, fmt.Errorf("config is required")
	}
	if opts.Level == "" {
		opts.Level = cfg.Logging.Level
	}
	if opts.Format == "" {
		opts.Format = cfg.Logging.Format
	}
	run := RunLog{}
	opts.OutputPaths = []string{"stdout"}
	if dir := cfg.Paths.LogDir; dir != "" {
		stamp := now.UTC().Format("20060102T150405.000Z")
		run.Path = filepath.Join(dir, "reelbooth-"+stamp+".log")
		run.Pointer = filepath.Join(dir, LogFileName)
		opts.OutputPaths = append(opts.OutputPaths, run.Path)
	}
	logger, err := New(opts)
	if err != nil {
		return nil, RunLog{}, err
	}
	if run.Path != "" {
		if err := pointAt(run.Pointer, run.Path); err != nil {
			WarnWithContext(logger, "log pointer not updated", "log_pointer_failed",
				Error(err),
				String(FieldImpact, LogFileName+" still shows an older run"),
				String(FieldErrorHint, "check permissions on the log directory"),
			)
		}
	}
	return logger, run, nil
}

// pointAt replaces link with a symlink to target, falling back to a hard
// link on filesystems without symlinks.
func pointAt(link, target string) error {
	if err := os.Remove(link); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, link); err == nil {
		return nil
	}
	if err := os.Link(target, link); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func defaultSlice(value []string, fallback []string) []string {
	if len(value) == 0 {
		return append([]string(nil), fallback...)
	}
	return append([]string(nil), value...)
}

func openWriters(paths []string) (io.Writer, error) {
	seen := map[string]struct{}{}
	var writers []io.Writer

	for _, path := range paths {
		trimmed := strings.TrimSpace(path)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}

		switch trimmed {
		case "stdout":
			writers = append(writers, os.Stdout)
		case "stderr":
			writers = append(writers, os.Stderr)
		default:
			if err := ensureLogDir(trimmed); err != nil {
				return nil, err
			}
			file, err := os.OpenFile(trimmed, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664)
			if err != nil {
				return nil, fmt.Errorf("open log file %s: %w", trimmed, err)
			}
			writers = append(writers, file)
		}
	}

	switch len(writers) {
	case 0:
		return os.Stdout, nil
	case 1:
		return writers[0], nil
	default:
		return io.MultiWriter(writers...), nil
	}
}

func ensureLogDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
