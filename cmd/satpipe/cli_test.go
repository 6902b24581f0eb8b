package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"satpipe/internal/testsupport"
)

type cliTestEnv struct {
	baseDir    string
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	base := testsupport.BaseDir(cfg)
	t.Setenv("HOME", filepath.Join(base, "home"))
	t.Setenv("NO_COLOR", "1")

	configPath := filepath.Join(base, "satpipe.toml")
	content := fmt.Sprintf(`[paths]
staging_dir = %q
log_dir = %q
state_dir = %q

[store]
driver = "sqlite"
path = %q

[artifacts]
backend = "local"
root = %q

[runtime]
kind = "log"

[[watcher.groups]]
name = "ingest"
product_type_ids = [6]
pipelines = ["convert"]

[[pipelines]]
name = "convert"
terminal_status = "to_delete"

[[pipelines.stages]]
name = "noop"
command = ["true"]
`,
		cfg.Paths.StagingDir,
		cfg.Paths.LogDir,
		cfg.Paths.StateDir,
		cfg.Store.Path,
		cfg.Artifacts.Root,
	)
	testsupport.WriteText(t, configPath, content)
	return &cliTestEnv{baseDir: base, configPath: configPath}
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", env.configPath, "--log-level", "error"}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "1 groups, 1 pollable")
	requireContains(t, out, "Configuration valid")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, env, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, env, "config", "init", "--path", target); err == nil {
		t.Fatal("expected init to refuse overwriting without --overwrite")
	}
}

func TestConfigShowRendersToml(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "[runtime]")
	requireContains(t, out, "convert")
}

func TestCatalogAndFilesLifecycle(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env, "catalog", "add-product", "6", "ntf")
	if err != nil {
		t.Fatalf("catalog add-product: %v", err)
	}
	requireContains(t, out, "Registered ntf as #6")

	out, _, err = runCLI(t, env, "catalog", "list")
	if err != nil {
		t.Fatalf("catalog list: %v", err)
	}
	requireContains(t, out, "ntf")

	src := filepath.Join(t.TempDir(), "granule.nc")
	testsupport.WriteText(t, src, "granule")
	out, _, err = runCLI(t, env, "files", "add", src, "--product", "ntf", "--date-time", "2024-01-01T00:00:00", "--status", "to_load")
	if err != nil {
		t.Fatalf("files add: %v", err)
	}
	requireContains(t, out, "Registered record 1")

	out, _, err = runCLI(t, env, "files", "list", "--status", "to_load")
	if err != nil {
		t.Fatalf("files list: %v", err)
	}
	requireContains(t, out, "2024-01-01T00:00:00")
	requireContains(t, out, "To Load")

	out, _, err = runCLI(t, env, "files", "set-status", "1", "to_load", "processing")
	if err != nil {
		t.Fatalf("files set-status: %v", err)
	}
	requireContains(t, out, "Record 1: To Load -> Processing")

	if _, _, err := runCLI(t, env, "files", "set-status", "1", "processing", "to_load"); err == nil {
		t.Fatal("expected processing -> to_load to be rejected by set-status")
	}

	out, _, err = runCLI(t, env, "files", "stats")
	if err != nil {
		t.Fatalf("files stats: %v", err)
	}
	requireContains(t, out, "1 records")

	out, _, err = runCLI(t, env, "files", "reset", "1")
	if err != nil {
		t.Fatalf("files reset: %v", err)
	}
	requireContains(t, out, "Record 1: Processing -> To Load")

	out, _, err = runCLI(t, env, "files", "show", "--selector", "product_type=ntf AND date_time=2024-01-01T00:00:00")
	if err != nil {
		t.Fatalf("files show: %v", err)
	}
	requireContains(t, out, "To Load")

	dest := filepath.Join(t.TempDir(), "copy.nc")
	if _, _, err := runCLI(t, env, "files", "extract", "id=1", dest); err != nil {
		t.Fatalf("files extract: %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read extracted file: %v", err)
	}
	if string(data) != "granule" {
		t.Fatalf("extracted %q, want granule", data)
	}
}

func TestPollDryRunClaimsCandidates(t *testing.T) {
	env := setupCLITestEnv(t)

	src := filepath.Join(t.TempDir(), "granule.nc")
	testsupport.WriteText(t, src, "granule")
	if _, _, err := runCLI(t, env, "files", "add", src, "--product-id", "6", "--date-time", "2024-01-01T00:00:00", "--status", "to_load"); err != nil {
		t.Fatalf("files add: %v", err)
	}

	out, _, err := runCLI(t, env, "poll", "--dry-run")
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	requireContains(t, out, "claimed: 1")
	requireContains(t, out, "triggered: 1")

	out, _, err = runCLI(t, env, "files", "list", "--status", "processing")
	if err != nil {
		t.Fatalf("files list: %v", err)
	}
	requireContains(t, out, "Processing")
}

func TestPipelineListAndRun(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env, "pipeline", "list")
	if err != nil {
		t.Fatalf("pipeline list: %v", err)
	}
	requireContains(t, out, "convert")
	requireContains(t, out, "To Delete")
	requireContains(t, out, "ingest")

	src := filepath.Join(t.TempDir(), "granule.nc")
	testsupport.WriteText(t, src, "granule")
	if _, _, err := runCLI(t, env, "files", "add", src, "--product-id", "6", "--date-time", "2024-01-01T00:00:00", "--status", "to_load"); err != nil {
		t.Fatalf("files add: %v", err)
	}
	if _, _, err := runCLI(t, env, "files", "set-status", "1", "to_load", "processing"); err != nil {
		t.Fatalf("files set-status: %v", err)
	}

	out, _, err = runCLI(t, env, "pipeline", "run", "convert", "--record-id", "1")
	if err != nil {
		t.Fatalf("pipeline run: %v", err)
	}
	requireContains(t, out, "Record 1 -> To Delete")

	if _, _, err := runCLI(t, env, "pipeline", "run", "missing", "--record-id", "1"); err == nil {
		t.Fatal("expected unknown pipeline to fail")
	}
}

func TestRunFlagsRequireKeyOrRecord(t *testing.T) {
	var flags runFlags
	if _, err := flags.request(); err == nil {
		t.Fatal("expected error without execution key or record id")
	}
	flags.executionKey = "2024-01-01T00:00:00"
	flags.areaID = "null"
	req, err := flags.request()
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if req.AreaID != nil {
		t.Fatalf("expected null area, got %v", *req.AreaID)
	}
	flags.areaID = "x"
	if _, err := flags.request(); err == nil {
		t.Fatal("expected invalid area id error")
	}
}
