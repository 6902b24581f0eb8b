package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"satpipe/internal/config"
	"satpipe/internal/daemon"
	"satpipe/internal/logging"
	"satpipe/internal/metadata"
	"satpipe/internal/preflight"
	"satpipe/internal/staging"
	"satpipe/internal/trigger"
	"satpipe/internal/watcher"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	// SkipPreflight starts polling even when readiness checks fail.
	SkipPreflight bool
}

// Run starts the satpipe daemon and blocks until SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", filepath.Join(cfg.Paths.LogDir, logging.LogFileName)},
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	logging.PruneRunLogs(logger, cfg.RunLogDir(), cfg.Logging.RetentionDays)

	pidPath := filepath.Join(cfg.Paths.StateDir, "satpiped.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := metadata.Open(signalCtx, cfg)
	if err != nil {
		logger.Error("open metadata store", logging.Error(err))
		return err
	}
	defer store.Close()

	if err := runPreflight(signalCtx, cfg, store, logger); err != nil && !opts.SkipPreflight {
		return err
	}

	runtime, err := trigger.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("create runtime: %w", err)
	}
	defer runtime.Close()

	wopts := watcher.OptionsFromConfig(cfg.Watcher)
	wopts.Logger = logger
	w, err := watcher.New(store, runtime, watcher.GroupsFromConfig(cfg.Watcher.Groups), wopts)
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	temp, err := staging.NewManager(cfg.Paths.StagingDir, cfg.Staging.Prefix)
	if err != nil {
		return fmt.Errorf("create staging manager: %w", err)
	}

	d, err := daemon.New(w, store, temp, daemon.Options{
		LockPath:      cfg.LockPath(),
		SweepInterval: time.Duration(cfg.Staging.SweepInterval) * time.Second,
		StaleAge:      time.Duration(cfg.Staging.MaxAgeHours) * time.Hour,
		StuckAfter:    time.Duration(cfg.Watcher.StuckAfter) * time.Second,
	}, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}

	logger.Info("dependency snapshot",
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.String("store_driver", store.Driver()),
		logging.String("artifacts", store.Artifacts().Describe()),
		logging.String("runtime", cfg.Runtime.Kind),
		logging.Int("watch_groups", len(cfg.Watcher.Groups)),
	)

	if err := d.Run(signalCtx); err != nil {
		return err
	}
	logger.Info("satpipe daemon shutting down")
	return nil
}

func runPreflight(ctx context.Context, cfg *config.Config, store *metadata.Store, logger *slog.Logger) error {
	failed := preflight.Failed(preflight.RunAll(ctx, cfg, store, store.Artifacts()))
	for _, r := range failed {
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", r.Name),
			logging.String("detail", r.Detail),
			logging.String(logging.FieldErrorHint, "run `satpipe doctor` for the full report"),
			logging.String(logging.FieldImpact, "daemon refuses to start unless preflight is skipped"),
		)
	}
	if len(failed) > 0 {
		return fmt.Errorf("%d preflight checks failed", len(failed))
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
