package attendance

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"sam/internal/logging"
)

// BackupPattern matches snapshot files written by BackupTo.
const BackupPattern = "attendance-*.db"

// Backup writes a consistent snapshot of the database to path.
func (s *Store) Backup(ctx context.Context, path string) error {
	ctx = ensureContext(ctx)
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create backup directory: %w", err)
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("backup target %s already exists", path)
	}
	if _, err := s.execWithRetry(ctx, "VACUUM INTO ?", path); err != nil {
		return storageErr("backup", err)
	}
	return nil
}

// BackupTo snapshots into dir using a timestamped name and returns the path.
func (s *Store) BackupTo(ctx context.Context, dir string) (string, error) {
	path := filepath.Join(dir, "attendance-"+s.now().Format("20060102-150405")+".db")
	if err := s.Backup(ctx, path); err != nil {
		return "", err
	}
	s.logger.Info("database snapshot written", logging.String("path", path))
	return path, nil
}

// LastBackup returns the modification time of the newest snapshot in dir.
func LastBackup(dir string) (time.Time, bool) {
	matches, err := filepath.Glob(filepath.Join(dir, BackupPattern))
	if err != nil || len(matches) == 0 {
		return time.Time{}, false
	}
	var newest time.Time
	for _, path := range matches {
		if info, err := os.Stat(path); err == nil && info.ModTime().After(newest) {
			newest = info.ModTime()
		}
	}
	return newest, !newest.IsZero()
}
