package workspace

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/xcodebuilder/internal/logfields"
)

// Scratch is a fixed-name directory that is emptied before use and removed after.
type Scratch struct {
	path string
}

// NewScratch returns a scratch directory named name under parent. Nothing is
// created until Reset.
func NewScratch(parent, name string) *Scratch {
	return &Scratch{path: filepath.Join(parent, name)}
}

// Path returns the scratch directory path.
func (s *Scratch) Path() string {
	return s.path
}

// Reset deletes any previous contents and recreates the directory empty.
func (s *Scratch) Reset() error {
	if err := os.RemoveAll(s.path); err != nil {
		return fmt.Errorf("failed to clear scratch directory: %w", err)
	}
	if err := os.MkdirAll(s.path, 0o750); err != nil {
		return fmt.Errorf("failed to create scratch directory: %w", err)
	}
	slog.Debug("Prepared scratch directory", logfields.Path(s.path))
	return nil
}

// Cleanup removes the scratch directory. A missing directory is not an error.
func (s *Scratch) Cleanup() error {
	if err := os.RemoveAll(s.path); err != nil {
		return fmt.Errorf("failed to cleanup scratch directory: %w", err)
	}
	slog.Debug("Removed scratch directory", logfields.Path(s.path))
	return nil
}

// Resolve returns p when absolute, otherwise p joined to base.
func Resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// EnsureDir creates dir and its parents.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// RemoveTrees deletes each path recursively, ignoring paths that do not exist.
func RemoveTrees(paths ...string) error {
	for _, p := range paths {
		if p == "" {
			continue
		}
		slog.Info("Cleaning directory", logfields.Path(p))
		if err := os.RemoveAll(p); err != nil {
			return fmt.Errorf("failed to remove %s: %w", p, err)
		}
	}
	return nil
}

// IsDir reports whether path exists and is a directory.
func IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
