package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// PruneTarget selects files in Dir whose base name matches Pattern.
type PruneTarget struct {
	Dir     string
	Pattern string
	Keep    []string
}

// PruneOlderThan deletes matching files last modified before now-maxAge and
// returns how many were removed. A non-positive maxAge disables pruning.
func PruneOlderThan(logger *slog.Logger, now time.Time, maxAge time.Duration, targets ...PruneTarget) int {
	if maxAge <= 0 {
		return 0
	}
	cutoff := now.Add(-maxAge)
	removed := 0
	for _, target := range targets {
		if target.Dir == "" {
			continue
		}
		keep := make(map[string]struct{}, len(target.Keep))
		for _, name := range target.Keep {
			keep[filepath.Base(name)] = struct{}{}
		}
		entries, err := os.ReadDir(target.Dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			name := entry.Name()
			if _, skip := keep[name]; skip {
				continue
			}
			if target.Pattern != "" {
				if ok, err := filepath.Match(target.Pattern, name); err != nil || !ok {
					continue
				}
			}
			info, err := entry.Info()
			if err != nil || !info.ModTime().Before(cutoff) {
				continue
			}
			path := filepath.Join(target.Dir, name)
			if err := os.Remove(path); err != nil {
				WarnWithContext(logger, "prune failed; file remains", "prune_failed",
					String("path", path),
					Error(err),
					String(FieldErrorHint, "check directory permissions"),
					String(FieldImpact, "old file keeps using disk space"),
				)
				continue
			}
			removed++
			if logger != nil {
				logger.Debug("file pruned", String("path", path), String(FieldEventType, "file_pruned"))
			}
		}
	}
	return removed
}
