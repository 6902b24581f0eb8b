package staging

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"satpipe/internal/logging"
)

func TestCleanStaleMissingRoot(t *testing.T) {
	m, err := NewManager(filepath.Join(t.TempDir(), "absent"), "")
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	result := m.CleanStale(context.Background(), time.Hour, logging.NewNop())
	if len(result.Removed) != 0 || len(result.Errors) != 0 {
		t.Fatalf("expected empty result, got %+v", result)
	}
}

func TestCleanStaleRemovesOldTempEntries(t *testing.T) {
	root := t.TempDir()
	m, err := NewManager(root, "tmp")
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	oldTime := time.Now().Add(-2 * time.Hour)

	oldDir := filepath.Join(root, "tmp_unzip_20240101T000000_unzip_dir")
	if err := os.Mkdir(oldDir, 0o755); err != nil {
		t.Fatalf("create old dir: %v", err)
	}
	oldFile := filepath.Join(root, "tmp_unzip_20240101T000000_archive")
	if err := os.WriteFile(oldFile, []byte("x"), 0o644); err != nil {
		t.Fatalf("create old file: %v", err)
	}
	foreign := filepath.Join(root, "keep-me")
	if err := os.Mkdir(foreign, 0o755); err != nil {
		t.Fatalf("create foreign dir: %v", err)
	}
	for _, p := range []string{oldDir, oldFile, foreign} {
		if err := os.Chtimes(p, oldTime, oldTime); err != nil {
			t.Fatalf("set old time: %v", err)
		}
	}
	recent := filepath.Join(root, "tmp_unzip_20240102T000000_unzip_dir")
	if err := os.Mkdir(recent, 0o755); err != nil {
		t.Fatalf("create recent dir: %v", err)
	}

	result := m.CleanStale(context.Background(), time.Hour, logging.NewNop())
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %+v", result.Errors)
	}
	if len(result.Removed) != 2 {
		t.Fatalf("expected 2 removed, got %v", result.Removed)
	}
	for _, p := range []string{oldDir, oldFile} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("%s should have been removed", p)
		}
	}
	for _, p := range []string{foreign, recent} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("%s should still exist: %v", p, err)
		}
	}
}

func TestListReportsTempEntries(t *testing.T) {
	root := t.TempDir()
	m, _ := NewManager(root, "tmp")
	dir := filepath.Join(root, "tmp_unzip_20240101T000000_out")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "a"), make([]byte, 10), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "unrelated"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	entries, err := m.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 || entries[0].Size != 10 || !entries[0].IsDir {
		t.Fatalf("unexpected entries %+v", entries)
	}
}
