// Package fs performs the real-filesystem operations behind the engine
// and the scanner.
package fs

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// photoExts are the file extensions the scanner considers photos.
var photoExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".tiff": true,
	".tif":  true,
	".bmp":  true,
}

// OSFilesystem implements engine.Filesystem and photo discovery against
// the os package.
type OSFilesystem struct {
	ignore *IgnoreMatcher
}

// NewOSFilesystem creates a filesystem manager. ignorePatterns follow
// filepath.Match syntax and are applied to basenames (or relative paths
// when the pattern contains a slash) during discovery.
func NewOSFilesystem(ignorePatterns []string) *OSFilesystem {
	return &OSFilesystem{ignore: NewIgnoreMatcher(ignorePatterns)}
}

// Rename moves a file. Both paths must be on the same device; the engine
// relies on rename being atomic per file.
func (f *OSFilesystem) Rename(oldPath, newPath string) error {
	return os.Rename(oldPath, newPath)
}

// MkdirAll creates a directory and any missing parents.
func (f *OSFilesystem) MkdirAll(dir string) error {
	return os.MkdirAll(dir, 0755)
}

// Exists reports whether a path exists.
func (f *OSFilesystem) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Size returns the file's size in bytes.
func (f *OSFilesystem) Size(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("stat path: %w", err)
	}
	return info.Size(), nil
}

// FindPhotos walks root and returns the absolute paths of all regular
// photo files, skipping ignore patterns.
func (f *OSFilesystem) FindPhotos(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if !photoExts[strings.ToLower(filepath.Ext(p))] {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return fmt.Errorf("relativizing %s: %w", p, err)
		}
		if f.ignore.Match(rel) {
			return nil
		}
		paths = append(paths, p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking photo root: %w", err)
	}
	return paths, nil
}
