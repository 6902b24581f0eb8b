package preflight

import (
	"context"
	"fmt"

	"satpipe/internal/artifact"
	"satpipe/internal/config"
	"satpipe/internal/pipeline"
	"satpipe/internal/watcher"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Pinger is satisfied by the metadata store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RunAll executes every check for cfg. store and artifacts may be nil when
// the caller could not open them; the corresponding check then fails.
func RunAll(ctx context.Context, cfg *config.Config, store Pinger, artifacts artifact.Store) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckFreeSpace("Staging free space", cfg.Paths.StagingDir, MinFreeBytes),
		CheckStore(ctx, store),
		CheckArtifacts(ctx, artifacts),
		CheckWatchGroups(cfg),
		CheckPipelines(cfg),
	}
	for _, dep := range CheckSystemDeps(cfg) {
		result := Result{Name: dep.Name, Passed: dep.Available, Detail: dep.Command}
		if !dep.Available {
			result.Detail = dep.Detail
		}
		results = append(results, result)
	}
	return results
}

// Failed returns the failed results.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}

// CheckWatchGroups validates watch group disjointness.
func CheckWatchGroups(cfg *config.Config) Result {
	const name = "Watch groups"
	groups := watcher.GroupsFromConfig(cfg.Watcher.Groups)
	if err := watcher.ValidateGroups(groups); err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	pollable := 0
	for _, g := range groups {
		if g.Pollable() {
			pollable++
		}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%d groups, %d pollable", len(groups), pollable)}
}

// CheckPipelines converts every configured pipeline.
func CheckPipelines(cfg *config.Config) Result {
	const name = "Pipelines"
	for _, p := range cfg.Pipelines {
		if _, err := pipeline.FromConfig(p); err != nil {
			return Result{Name: name, Detail: err.Error()}
		}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%d configured", len(cfg.Pipelines))}
}
