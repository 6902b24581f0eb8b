package preflight

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"satpipe/internal/artifact"
	"satpipe/internal/config"
	"satpipe/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckFreeSpace(t *testing.T) {
	dir := t.TempDir()
	if result := CheckFreeSpace("space", dir, 1); !result.Passed {
		t.Fatalf("expected pass with a 1 byte minimum, got %s", result.Detail)
	}
	if result := CheckFreeSpace("space", dir, ^uint64(0)); result.Passed {
		t.Fatal("expected failure with an impossible minimum")
	}
	if result := CheckFreeSpace("space", filepath.Join(dir, "missing"), 1); result.Passed {
		t.Fatal("expected failure for missing path")
	}
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestCheckStore(t *testing.T) {
	if r := CheckStore(context.Background(), nil); r.Passed {
		t.Fatal("nil store must fail")
	}
	if r := CheckStore(context.Background(), pinger{err: errors.New("refused")}); r.Passed || r.Detail != "refused" {
		t.Fatalf("unexpected result %+v", r)
	}
	if r := CheckStore(context.Background(), pinger{}); !r.Passed {
		t.Fatalf("expected pass, got %+v", r)
	}
}

func TestCheckArtifacts(t *testing.T) {
	if r := CheckArtifacts(context.Background(), nil); r.Passed {
		t.Fatal("nil artifact store must fail")
	}
	store, err := artifact.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	if r := CheckArtifacts(context.Background(), store); !r.Passed {
		t.Fatalf("expected pass, got %+v", r)
	}
}

func TestCheckWatchGroupsOverlap(t *testing.T) {
	cfg := config.Default()
	cfg.Watcher.Groups = []config.WatchGroup{
		{Name: "a", ProductTypeIDs: []int64{6}, Pipelines: []string{"p"}},
		{Name: "b", ProductTypeIDs: []int64{6}},
	}
	if r := CheckWatchGroups(&cfg); r.Passed {
		t.Fatal("expected overlapping groups to fail")
	}
	cfg.Watcher.Groups[1].ProductTypeIDs = []int64{7}
	r := CheckWatchGroups(&cfg)
	if !r.Passed || !strings.Contains(r.Detail, "1 pollable") {
		t.Fatalf("unexpected result %+v", r)
	}
}

func TestCheckPipelines(t *testing.T) {
	cfg := config.Default()
	cfg.Pipelines = []config.Pipeline{{Name: "p", TerminalStatus: "failed"}}
	if r := CheckPipelines(&cfg); r.Passed {
		t.Fatal("expected failed terminal status to be rejected")
	}
	cfg.Pipelines[0].TerminalStatus = "std"
	if r := CheckPipelines(&cfg); !r.Passed {
		t.Fatalf("expected pass, got %+v", r)
	}
}

func TestRunAllReportsMissingStageBinary(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithPipeline(config.Pipeline{
		Name:           "p",
		TerminalStatus: "std",
		Stages:         []config.Stage{{Name: "s", Command: []string{"clearly-not-present-binary"}}},
	}))
	store := testsupport.MustOpenStore(t, cfg)

	results := RunAll(context.Background(), cfg, store, store.Artifacts())
	failed := Failed(results)
	var names []string
	for _, r := range failed {
		names = append(names, r.Name)
	}
	found := false
	for _, r := range failed {
		if r.Name == "p/s" {
			found = true
		}
		if r.Name == "Metadata store" || r.Name == "Artifact store" || r.Name == "Staging directory" {
			t.Fatalf("unexpected failure %+v", r)
		}
	}
	if !found {
		t.Fatalf("expected missing stage binary to fail, failures: %v", names)
	}
}

func TestRunAllFindsStubbedStageBinary(t *testing.T) {
	cfg := testsupport.NewConfig(t,
		testsupport.WithStubbedBinaries("sat-unzip"),
		testsupport.WithPipeline(config.Pipeline{
			Name:           "proc_unzip",
			TerminalStatus: "to_delete",
			Stages:         []config.Stage{{Name: "unzip", Command: []string{"sat-unzip", "{{ zip }}"}}},
		}),
		testsupport.WithWatchGroups(config.WatchGroup{Name: "ingest", ProductTypeIDs: []int64{6}, Pipelines: []string{"proc_unzip"}}),
	)
	store := testsupport.MustOpenStore(t, cfg)

	for _, r := range RunAll(context.Background(), cfg, store, store.Artifacts()) {
		switch r.Name {
		case "proc_unzip/unzip", "Watch groups", "Pipelines":
			if !r.Passed {
				t.Fatalf("expected %s to pass, got %+v", r.Name, r)
			}
		}
	}
}
