package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// RetentionTarget is a directory plus a glob of prunable file names. Exclude
// lists paths that must survive even when old (the file currently written).
type RetentionTarget struct {
	Dir     string
	Pattern string
	Exclude []string
}

// CleanupOldLogs removes matching files last modified more than retentionDays
// ago and returns how many were removed. retentionDays <= 0 disables pruning.
// The daemon uses it for daily logs and for database snapshots.
func CleanupOldLogs(logger *slog.Logger, retentionDays int, targets ...RetentionTarget) int {
	if retentionDays <= 0 {
		return 0
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	removed := 0
	for _, target := range targets {
		removed += pruneTarget(logger, target, cutoff)
	}
	return removed
}

func pruneTarget(logger *slog.Logger, target RetentionTarget, cutoff time.Time) int {
	dir := strings.TrimSpace(target.Dir)
	if dir == "" {
		return 0
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	keep := make(map[string]bool, len(target.Exclude))
	for _, path := range target.Exclude {
		keep[absPath(path)] = true
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if target.Pattern != "" {
			if ok, err := filepath.Match(target.Pattern, entry.Name()); err != nil || !ok {
				continue
			}
		}
		path := absPath(filepath.Join(dir, entry.Name()))
		if keep[path] {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			WarnWithContext(logger, "retention remove failed; file remains", "retention_failed",
				String("path", path),
				Error(err),
				String(FieldErrorHint, "check file permissions and directory ownership"),
				String(FieldImpact, "old file remains on disk"),
			)
			continue
		}
		removed++
		if logger != nil {
			logger.Info("file pruned", String("path", path), String(FieldEventType, "file_pruned"))
		}
	}
	return removed
}

func absPath(path string) string {
	path = strings.TrimSpace(path)
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
