// Package backup makes and reverts per-file snapshots supporting unit
// rollback. A snapshot is a sibling file with a reserved suffix; it
// exists for the entire time any mutation touching the original path is
// in flight, and is removed only after the unit fully commits.
package backup

import (
	"fmt"
	"io"
	"os"

	"photodate/internal/model"
)

// Suffix is appended to the original path to form the backup path.
// Scans must skip files carrying this suffix.
const Suffix = ".pdbackup"

// Manager implements engine.Backups against the real filesystem.
type Manager struct{}

func NewManager() *Manager { return &Manager{} }

// Snapshot copies the file's bytes to a sibling path. At most one live
// backup may exist per path; an existing backup file means a previous
// run did not clean up, and snapshotting fails rather than overwriting it.
func (m *Manager) Snapshot(path string) (*model.Backup, error) {
	backupPath := path + Suffix
	if _, err := os.Stat(backupPath); err == nil {
		return nil, fmt.Errorf("stale backup already exists: %s", backupPath)
	}

	src, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening source: %w", err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat source: %w", err)
	}

	dst, err := os.OpenFile(backupPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
	if err != nil {
		return nil, fmt.Errorf("creating backup: %w", err)
	}

	n, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(backupPath)
		return nil, fmt.Errorf("writing backup: %w", err)
	}

	return &model.Backup{
		OriginalPath: path,
		BackupPath:   backupPath,
		Size:         n,
		ModTime:      info.ModTime(),
	}, nil
}

// Restore overwrites the original path with the backup's bytes and
// reapplies the original mtime, undoing both metadata and timestamp
// changes. The backup file is left in place; the caller discards it
// after a clean restore.
func (m *Manager) Restore(b *model.Backup) error {
	src, err := os.Open(b.BackupPath)
	if err != nil {
		return fmt.Errorf("opening backup: %w", err)
	}
	defer src.Close()

	dst, err := os.OpenFile(b.OriginalPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("opening original for restore: %w", err)
	}

	n, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("writing restored content: %w", err)
	}
	if n != b.Size {
		return fmt.Errorf("restored %d bytes, backup recorded %d", n, b.Size)
	}

	if err := os.Chtimes(b.OriginalPath, b.ModTime, b.ModTime); err != nil {
		return fmt.Errorf("restoring timestamps: %w", err)
	}
	return nil
}

// Discard removes the backup file.
func (m *Manager) Discard(b *model.Backup) error {
	if err := os.Remove(b.BackupPath); err != nil {
		return fmt.Errorf("removing backup: %w", err)
	}
	return nil
}
