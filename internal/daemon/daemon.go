package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"satpipe/internal/logging"
	"satpipe/internal/metadata"
	"satpipe/internal/staging"
)

// Poller is the watcher loop the daemon supervises.
type Poller interface {
	Run(ctx context.Context) error
	LastError() error
}

// StuckFinder lists records that have been processing for too long.
type StuckFinder interface {
	Stuck(ctx context.Context, olderThan time.Duration) ([]*metadata.FileRecord, error)
}

// Options tunes the background loops.
type Options struct {
	LockPath      string
	SweepInterval time.Duration
	StaleAge      time.Duration
	StuckAfter    time.Duration
	// StuckInterval defaults to StuckAfter.
	StuckInterval time.Duration
}

// Daemon runs the watcher, the staging sweeper and the stuck-record monitor
// and enforces one instance per state directory.
type Daemon struct {
	poller Poller
	stuck  StuckFinder
	temp   *staging.Manager
	opts   Options
	logger *slog.Logger
	lock   *flock.Flock

	running atomic.Bool
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool
	LockFilePath  string
	LastPollError string
}

// New constructs a daemon with initialized dependencies.
func New(poller Poller, stuck StuckFinder, temp *staging.Manager, opts Options, logger *slog.Logger) (*Daemon, error) {
	if poller == nil || stuck == nil || temp == nil {
		return nil, errors.New("daemon requires a poller, a store and a staging manager")
	}
	if opts.LockPath == "" {
		return nil, errors.New("daemon requires a lock path")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if opts.StuckInterval <= 0 {
		opts.StuckInterval = opts.StuckAfter
	}
	return &Daemon{
		poller: poller,
		stuck:  stuck,
		temp:   temp,
		opts:   opts,
		logger: logging.NewComponentLogger(logger, "daemon"),
		lock:   flock.New(opts.LockPath),
	}, nil
}

// Run acquires the instance lock and blocks until ctx is done or a loop
// fails. The lock is released on return.
func (d *Daemon) Run(ctx context.Context) error {
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another satpipe daemon holds %s", d.opts.LockPath)
	}
	defer func() {
		if err := d.lock.Unlock(); err != nil {
			logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_unlock_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "remove "+d.opts.LockPath+" if no daemon is running"),
			)
		}
	}()

	d.running.Store(true)
	defer d.running.Store(false)
	d.logger.Info("satpipe daemon started",
		logging.String(logging.FieldEventType, "daemon_start"),
		logging.String("lock", d.opts.LockPath),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return d.poller.Run(gctx) })
	if d.opts.SweepInterval > 0 && d.opts.StaleAge > 0 {
		g.Go(func() error { return d.every(gctx, d.opts.SweepInterval, d.sweep) })
	}
	if d.opts.StuckAfter > 0 {
		g.Go(func() error { return d.every(gctx, d.opts.StuckInterval, d.reportStuck) })
	}
	err = g.Wait()
	d.logger.Info("satpipe daemon stopped", logging.String(logging.FieldEventType, "daemon_stop"))
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Status returns the daemon's current state.
func (d *Daemon) Status() Status {
	status := Status{Running: d.running.Load(), LockFilePath: d.opts.LockPath}
	if err := d.poller.LastError(); err != nil {
		status.LastPollError = err.Error()
	}
	return status
}

// every runs fn immediately and then at each interval until ctx is done.
func (d *Daemon) every(ctx context.Context, interval time.Duration, fn func(context.Context)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		fn(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (d *Daemon) sweep(ctx context.Context) {
	result := d.temp.CleanStale(ctx, d.opts.StaleAge, d.logger)
	if len(result.Removed) > 0 || len(result.Errors) > 0 {
		d.logger.Info("staging sweep complete",
			logging.String(logging.FieldEventType, "staging_sweep"),
			logging.Int("removed", len(result.Removed)),
			logging.Int("failed", len(result.Errors)),
		)
	}
}

func (d *Daemon) reportStuck(ctx context.Context) {
	records, err := d.stuck.Stuck(ctx, d.opts.StuckAfter)
	if err != nil {
		if ctx.Err() == nil {
			logging.WarnWithContext(d.logger, "stuck record query failed", "stuck_query_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check metadata store access"),
			)
		}
		return
	}
	for _, rec := range records {
		logging.WarnWithContext(d.logger, "record stuck in processing", "record_stuck",
			logging.Int64(logging.FieldRecordID, rec.ID),
			logging.Int64("product_type_id", rec.ProductTypeID),
			logging.String("execution_key", rec.ExecutionKey()),
			logging.Duration("stuck_after", d.opts.StuckAfter),
			logging.String(logging.FieldErrorHint, "inspect the pipeline run, then `satpipe files reset` the record"),
			logging.String(logging.FieldImpact, "downstream products for this record are not produced"),
		)
	}
}
