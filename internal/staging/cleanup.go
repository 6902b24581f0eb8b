package staging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"satpipe/internal/logging"
)

// CleanStaleResult contains the outcome of a stale temp path sweep.
type CleanStaleResult struct {
	Removed []string
	Errors  []CleanupError
}

// CleanupError pairs a path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// CleanStale removes temp entries carrying the manager's prefix whose mtime
// is older than maxAge. These are leftovers from runs that crashed before
// their cleanup ran. Other entries in the root are never touched.
func (m *Manager) CleanStale(ctx context.Context, maxAge time.Duration, logger *slog.Logger) CleanStaleResult {
	result := CleanStaleResult{}
	if logger == nil {
		logger = logging.NewNop()
	}

	entries, err := os.ReadDir(m.root)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, CleanupError{Path: m.root, Error: err})
		}
		return result
	}

	cutoff := time.Now().Add(-maxAge)
	marker := m.prefix + "_"

	for _, entry := range entries {
		if ctx.Err() != nil {
			return result
		}
		if !strings.HasPrefix(entry.Name(), marker) {
			continue
		}

		entryPath := filepath.Join(m.root, entry.Name())
		info, err := entry.Info()
		if err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: entryPath, Error: err})
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		if err := m.Release(entryPath); err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: entryPath, Error: err})
			logging.WarnWithContext(logger, "failed to remove stale temp path", "staging_cleanup_failed",
				logging.String("path", entryPath),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check staging_dir permissions"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
			continue
		}
		result.Removed = append(result.Removed, entryPath)
		logger.Info("removed stale temp path",
			logging.String("path", entryPath),
			logging.Duration("age", time.Since(info.ModTime())),
			logging.String(logging.FieldEventType, "staging_cleanup"),
		)
	}

	return result
}

// Entry describes a temp path currently present in the staging root.
type Entry struct {
	Name    string
	Path    string
	ModTime time.Time
	Size    int64
	IsDir   bool
}

// List returns the temp entries carrying the manager's prefix.
func (m *Manager) List() ([]Entry, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	marker := m.prefix + "_"
	var out []Entry
	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name(), marker) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		entryPath := filepath.Join(m.root, entry.Name())
		size := info.Size()
		if entry.IsDir() {
			size, _ = dirSize(entryPath)
		}
		out = append(out, Entry{
			Name:    entry.Name(),
			Path:    entryPath,
			ModTime: info.ModTime(),
			Size:    size,
			IsDir:   entry.IsDir(),
		})
	}
	return out, nil
}

// dirSize calculates the total size of a directory recursively.
func dirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}
