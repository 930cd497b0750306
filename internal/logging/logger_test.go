package logging_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"reelbooth/internal/config"
	"reelbooth/internal/logging"
	"reelbooth/internal/services"
)

func readLog(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	return string(content)
}

func TestNewRunLoggerRepointsCurrentLog(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()
	first := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	logger, run, err := logging.NewRunLogger(&cfg, logging.Options{}, first)
	if err != nil {
		t.Fatalf("NewRunLogger returned error: %v", err)
	}
	logger.Info("first run ready")
	if filepath.Base(run.Path) != "reelbooth-20260301T100000.000Z.log" {
		t.Fatalf("unexpected run log %q", run.Path)
	}
	if matched, _ := filepath.Match(logging.RunLogPattern, filepath.Base(run.Path)); !matched {
		t.Fatalf("run log %q does not match %q", run.Path, logging.RunLogPattern)
	}

	logger, second, err := logging.NewRunLogger(&cfg, logging.Options{Level: "debug"}, first.Add(time.Minute))
	if err != nil {
		t.Fatalf("second NewRunLogger returned error: %v", err)
	}
	logger.Info("second run ready")

	current := readLog(t, filepath.Join(cfg.Paths.LogDir, logging.LogFileName))
	if !strings.Contains(current, "second run ready") || strings.Contains(current, "first run ready") {
		t.Fatalf("pointer should follow the newest run, got %q", current)
	}
	if second.Pointer != filepath.Join(cfg.Paths.LogDir, logging.LogFileName) {
		t.Fatalf("unexpected pointer %q", second.Pointer)
	}
	if !strings.Contains(readLog(t, run.Path), "first run ready") {
		t.Fatal("first run log lost its content")
	}
}

func TestConsoleLoggerOmitsCallerForInfo(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-info.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("message without caller")

	if content := readLog(t, logPath); strings.Contains(content, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", content)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-debug.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "debug", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("message with caller")

	if content := readLog(t, logPath); !strings.Contains(content, ".go:") {
		t.Fatalf("expected caller information in debug logs, got %q", content)
	}
}

func TestConsoleLoggerRendersSessionSubject(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "subject.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger = logging.NewComponentLogger(logger, "recorder")
	logger.Info("state changed",
		logging.String(logging.FieldSessionID, "0123456789abcdef"),
		logging.String(logging.FieldState, "capturing"),
		logging.Int("frames", 12),
	)

	content := readLog(t, logPath)
	for _, fragment := range []string{"[recorder]", "session 01234567 (capturing)", "state changed", "frames=12"} {
		if !strings.Contains(content, fragment) {
			t.Fatalf("expected %q in %q", fragment, content)
		}
	}
	if strings.Contains(content, "\x1b[") {
		t.Fatalf("expected no color codes for file output, got %q", content)
	}
}

func TestJSONLoggerRenamesFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "json.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("tick", logging.Duration("elapsed", 1500*time.Millisecond))

	var record map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(readLog(t, logPath))), &record); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	if _, ok := record["ts"]; !ok {
		t.Fatalf("expected ts key, got %v", record)
	}
	if record["level"] != "info" {
		t.Fatalf("expected lowercase level, got %v", record["level"])
	}
	if record["elapsed_ms"] != 1500.0 {
		t.Fatalf("expected elapsed_ms=1500, got %v", record["elapsed_ms"])
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWithContextAddsFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "ctx.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	ctx := services.WithSessionID(context.Background(), "abcd1234")
	ctx = services.WithRequestID(ctx, "req-9")
	logging.WithContext(ctx, logger).Info("with context")

	content := readLog(t, logPath)
	if !strings.Contains(content, "session abcd1234") || !strings.Contains(content, "correlation_id=req-9") {
		t.Fatalf("expected context fields in %q", content)
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "warn.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WarnWithContext(logger, "frame dropped", "frame_dropped")

	content := readLog(t, logPath)
	for _, key := range []string{"event_type=frame_dropped", "error_hint=", "impact="} {
		if !strings.Contains(content, key) {
			t.Fatalf("expected %q in %q", key, content)
		}
	}
}

func TestPruneOlderThan(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	old := filepath.Join(dir, "old.log")
	fresh := filepath.Join(dir, "fresh.log")
	kept := filepath.Join(dir, "reelbooth.log")
	other := filepath.Join(dir, "notes.txt")
	for _, path := range []string{old, fresh, kept, other} {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	past := now.Add(-72 * time.Hour)
	for _, path := range []string{old, kept, other} {
		if err := os.Chtimes(path, past, past); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	removed := logging.PruneOlderThan(logging.NewNop(), now, 24*time.Hour,
		logging.PruneTarget{Dir: dir, Pattern: "*.log", Keep: []string{kept}})
	if removed != 1 {
		t.Fatalf("expected one file removed, got %d", removed)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatal("expected old log to be removed")
	}
	for _, path := range []string{fresh, kept, other} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected %s to remain: %v", path, err)
		}
	}
}
