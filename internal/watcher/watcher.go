package watcher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"satpipe/internal/filestate"
	"satpipe/internal/logging"
	"satpipe/internal/metadata"
	"satpipe/internal/services"
)

// Store is the subset of the metadata store the watcher polls and claims
// through.
type Store interface {
	Candidates(ctx context.Context, filter metadata.Filter) ([]*metadata.FileRecord, error)
	UpdateStatus(ctx context.Context, id int64, from, to filestate.Status) (bool, error)
}

// TriggerContext identifies the claimed record a pipeline run is for.
type TriggerContext struct {
	RecordID int64  `json:"id"`
	AreaID   *int64 `json:"area_id"`
}

// Runtime starts pipelines by name. Implementations live in the trigger
// package.
type Runtime interface {
	TriggerPipeline(ctx context.Context, name, executionKey string, tc TriggerContext) error
}

// Options tunes the poll loop.
type Options struct {
	PollInterval       time.Duration
	ErrorRetryInterval time.Duration
	// TriggerRate limits triggers per second. Zero disables limiting.
	TriggerRate  float64
	TriggerBurst int
	// BatchLimit caps candidates fetched per group per tick. Zero fetches all.
	BatchLimit int
	Logger     *slog.Logger
}

// TickResult counts what one tick did.
type TickResult struct {
	Candidates      int
	Claimed         int
	Lost            int
	Triggered       int
	TriggerFailures int
}

// Watcher claims to_load records and triggers their pipelines.
type Watcher struct {
	store   Store
	runtime Runtime
	groups  []Group
	opts    Options
	logger  *slog.Logger
	limiter *rate.Limiter

	tickMu sync.Mutex

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error
}

// New validates groups and builds a Watcher. Invalid groups fail here,
// before any tick can run.
func New(store Store, runtime Runtime, groups []Group, opts Options) (*Watcher, error) {
	if store == nil || runtime == nil {
		return nil, errors.New("watcher requires a store and a runtime")
	}
	if err := ValidateGroups(groups); err != nil {
		return nil, err
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 30 * time.Second
	}
	if opts.ErrorRetryInterval <= 0 {
		opts.ErrorRetryInterval = opts.PollInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	w := &Watcher{
		store:   store,
		runtime: runtime,
		groups:  groups,
		opts:    opts,
		logger:  logging.NewComponentLogger(logger, "watcher"),
	}
	if opts.TriggerRate > 0 {
		burst := opts.TriggerBurst
		if burst <= 0 {
			burst = 1
		}
		w.limiter = rate.NewLimiter(rate.Limit(opts.TriggerRate), burst)
	}
	return w, nil
}

// Tick runs one poll cycle over every pollable group. Concurrent calls are
// serialized. A group whose candidate query fails is logged and skipped;
// the remaining groups are still polled and the failures are returned
// joined. A failed trigger is logged and the record stays in processing.
func (w *Watcher) Tick(ctx context.Context) (TickResult, error) {
	w.tickMu.Lock()
	defer w.tickMu.Unlock()

	ctx = services.WithRequestID(ctx, uuid.NewString())
	logger := logging.WithContext(ctx, w.logger)

	var result TickResult
	var errs []error
	for _, group := range w.groups {
		if !group.Pollable() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := w.pollGroup(ctx, logger, group, &result); err != nil {
			if ctx.Err() != nil {
				return result, err
			}
			logging.WarnWithContext(logger, "group poll failed", "watcher_group_failed",
				logging.String("group", group.Name),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check metadata store access"),
				logging.String(logging.FieldImpact, "group skipped this tick; other groups still polled"),
			)
			errs = append(errs, err)
		}
	}
	if result.Candidates > 0 {
		logger.Info("watcher tick complete",
			logging.String(logging.FieldEventType, "watcher_tick"),
			logging.Int("candidates", result.Candidates),
			logging.Int("claimed", result.Claimed),
			logging.Int("lost", result.Lost),
			logging.Int("triggered", result.Triggered),
			logging.Int("trigger_failures", result.TriggerFailures),
		)
	}
	return result, errors.Join(errs...)
}

func (w *Watcher) pollGroup(ctx context.Context, logger *slog.Logger, group Group, result *TickResult) error {
	records, err := w.store.Candidates(ctx, metadata.Filter{
		Statuses:       []filestate.Status{filestate.StatusToLoad},
		ProductTypeIDs: group.ProductTypeIDs,
		AreaIDs:        group.AreaIDs,
		Limit:          w.opts.BatchLimit,
	})
	if err != nil {
		return services.Wrap(services.ErrTransient, "", "poll group "+group.Name, "query candidates", err)
	}
	result.Candidates += len(records)

	for i, record := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		// Trigger slots are reserved before the claim so a record is never
		// moved to processing without being triggered.
		if err := w.reserve(ctx, len(group.Pipelines)); err != nil {
			logging.WarnWithContext(logger, "trigger rate wait aborted", "watcher_rate_wait_aborted",
				logging.String("group", group.Name),
				logging.Int("unclaimed", len(records)-i),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "raise watcher.trigger_rate or watcher.trigger_burst"),
				logging.String(logging.FieldImpact, "remaining records stay in to_load and are retried next tick"),
			)
			return ctx.Err()
		}
		claimed, err := w.store.UpdateStatus(ctx, record.ID, filestate.StatusToLoad, filestate.StatusProcessing)
		if err != nil {
			logging.WarnWithContext(logger, "claim failed", "watcher_claim_failed",
				logging.Int64(logging.FieldRecordID, record.ID),
				logging.String("group", group.Name),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check metadata store connectivity"),
				logging.String(logging.FieldImpact, "record stays in to_load and is retried next tick"),
			)
			continue
		}
		if !claimed {
			result.Lost++
			logger.Debug("claim lost", logging.Int64(logging.FieldRecordID, record.ID))
			continue
		}
		result.Claimed++
		w.triggerAll(ctx, logger, group, record, result)
	}
	return nil
}

// reserve waits for n trigger slots. It fails without claiming anything when
// ctx ends or its deadline would pass first.
func (w *Watcher) reserve(ctx context.Context, n int) error {
	if w.limiter == nil {
		return nil
	}
	for i := 0; i < n; i++ {
		if err := w.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (w *Watcher) triggerAll(ctx context.Context, logger *slog.Logger, group Group, record *metadata.FileRecord, result *TickResult) {
	key := record.ExecutionKey()
	tc := TriggerContext{RecordID: record.ID, AreaID: record.AreaID}
	recordLogger := logger.With(
		logging.Int64(logging.FieldRecordID, record.ID),
		logging.String("execution_key", key),
		logging.String("group", group.Name),
	)
	for _, name := range group.Pipelines {
		if err := w.runtime.TriggerPipeline(ctx, name, key, tc); err != nil {
			result.TriggerFailures++
			logging.ErrorWithContext(recordLogger, "pipeline trigger failed", "pipeline_trigger_failed",
				logging.String(logging.FieldPipeline, name),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "record left in processing; reset it with `satpipe files reset` once the runtime is healthy"),
			)
			continue
		}
		result.Triggered++
		recordLogger.Info("pipeline triggered",
			logging.String(logging.FieldEventType, "pipeline_triggered"),
			logging.String(logging.FieldPipeline, name),
		)
	}
}

// Start runs the poll loop in the background until Stop or ctx is done.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return errors.New("watcher already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true
	w.wg.Add(1)
	w.mu.Unlock()

	go func() {
		defer w.wg.Done()
		_ = w.Run(runCtx)
	}()
	return nil
}

// Stop terminates the background loop and waits for the current tick.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	cancel := w.cancel
	w.running = false
	w.cancel = nil
	w.mu.Unlock()

	cancel()
	w.wg.Wait()
}

// Run polls until ctx is done. The next tick is scheduled only after the
// previous one returns.
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.Info("watcher started",
		logging.String(logging.FieldEventType, "watcher_start"),
		logging.Int("groups", len(w.groups)),
		logging.Duration("poll_interval", w.opts.PollInterval),
	)
	for {
		wait := w.opts.PollInterval
		if _, err := w.Tick(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.setLastError(err)
			w.logger.Error("watcher tick failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "watcher_tick_failed"),
				logging.String(logging.FieldErrorHint, "check metadata store access"),
			)
			wait = w.opts.ErrorRetryInterval
		} else {
			w.setLastError(nil)
		}

		select {
		case <-ctx.Done():
			w.logger.Info("watcher stopped", logging.String(logging.FieldEventType, "watcher_stop"))
			return nil
		case <-time.After(wait):
		}
	}
}

// LastError returns the error of the most recent failed tick, or nil once a
// tick succeeds again.
func (w *Watcher) LastError() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

func (w *Watcher) setLastError(err error) {
	w.mu.Lock()
	w.lastErr = err
	w.mu.Unlock()
}
