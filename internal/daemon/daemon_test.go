package daemon_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"satpipe/internal/daemon"
	"satpipe/internal/logging"
	"satpipe/internal/metadata"
	"satpipe/internal/staging"
)

type blockingPoller struct {
	started chan struct{}
}

func (p *blockingPoller) Run(ctx context.Context) error {
	close(p.started)
	<-ctx.Done()
	return nil
}

func (p *blockingPoller) LastError() error { return nil }

type stuckStore struct {
	calls atomic.Int32
}

func (s *stuckStore) Stuck(context.Context, time.Duration) ([]*metadata.FileRecord, error) {
	s.calls.Add(1)
	return []*metadata.FileRecord{{ID: 42, ProductTypeID: 6}}, nil
}

func newDaemon(t *testing.T, lockPath string, poller daemon.Poller, stuck daemon.StuckFinder, temp *staging.Manager) *daemon.Daemon {
	t.Helper()
	d, err := daemon.New(poller, stuck, temp, daemon.Options{
		LockPath:      lockPath,
		SweepInterval: 10 * time.Millisecond,
		StaleAge:      time.Hour,
		StuckAfter:    time.Hour,
		StuckInterval: 10 * time.Millisecond,
	}, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	return d
}

func TestDaemonRunSweepsAndReleasesLock(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "staging")
	temp, err := staging.NewManager(root, "tmp")
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	stale := filepath.Join(root, "tmp_unzip_20240101T000000_unzip_dir")
	if err := os.MkdirAll(stale, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	old := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	lockPath := filepath.Join(base, "satpiped.lock")
	poller := &blockingPoller{started: make(chan struct{})}
	stuck := &stuckStore{}
	d := newDaemon(t, lockPath, poller, stuck, temp)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	select {
	case <-poller.started:
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not start")
	}

	// A second daemon on the same lock must refuse to run.
	second := newDaemon(t, lockPath, &blockingPoller{started: make(chan struct{})}, stuck, temp)
	if err := second.Run(context.Background()); err == nil {
		t.Fatal("expected second daemon to fail while the lock is held")
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(stale); errors.Is(err, os.ErrNotExist) && stuck.calls.Load() > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if _, err := os.Stat(stale); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected stale temp path to be swept, stat err = %v", err)
	}
	if stuck.calls.Load() == 0 {
		t.Fatal("expected stuck monitor to query the store")
	}
	if !d.Status().Running {
		t.Fatal("expected daemon to report running")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("daemon did not stop")
	}
	if d.Status().Running {
		t.Fatal("expected daemon to report stopped")
	}

	// The lock is free again.
	third := newDaemon(t, lockPath, &blockingPoller{started: make(chan struct{})}, stuck, temp)
	ctx3, cancel3 := context.WithCancel(context.Background())
	cancel3()
	if err := third.Run(ctx3); err != nil {
		t.Fatalf("expected lock to be reacquired, got %v", err)
	}
}

func TestNewRequiresDependencies(t *testing.T) {
	if _, err := daemon.New(nil, nil, nil, daemon.Options{}, nil); err == nil {
		t.Fatal("expected error for missing dependencies")
	}
}
