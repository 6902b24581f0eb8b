package deps

import (
	"os"
	"path/filepath"
	"testing"

	"satpipe/internal/config"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Unset"},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available || results[0].Detail != "" {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary to be unavailable with detail, got %#v", results[1])
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}
	if results[2].Available || results[2].Detail != "command not configured" {
		t.Fatalf("unexpected result for unset command: %#v", results[2])
	}
}

func TestRequirementsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Runtime.Kind = config.RuntimeCommand
	cfg.Runtime.Command = []string{"airflow", "dags", "trigger"}
	cfg.Pipelines = []config.Pipeline{
		{Name: "a", Stages: []config.Stage{{Name: "unzip", Command: []string{"unzip", "-o"}}, {Name: "noop"}}},
		{Name: "b", Stages: []config.Stage{{Name: "unzip", Command: []string{"unzip"}}, {Name: "warp", Command: []string{"gdalwarp"}}}},
	}

	reqs := Requirements(&cfg)
	got := make([]string, 0, len(reqs))
	for _, r := range reqs {
		got = append(got, r.Command)
	}
	want := []string{"airflow", "unzip", "gdalwarp"}
	if len(got) != len(want) {
		t.Fatalf("requirements = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("requirements = %v, want %v", got, want)
		}
	}
	if reqs[1].Name != "a/unzip" {
		t.Fatalf("first stage requirement named %q", reqs[1].Name)
	}
}
