package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"satpipe/internal/command"
	"satpipe/internal/filestate"
	"satpipe/internal/lifecycle"
	"satpipe/internal/logging"
	"satpipe/internal/metadata"
	"satpipe/internal/services"
	"satpipe/internal/staging"
)

// finalizeTimeout bounds the terminal status update, which runs even when
// the run's own context has been cancelled.
const finalizeTimeout = 30 * time.Second

// Store is the subset of the metadata store a pipeline run uses.
type Store interface {
	lifecycle.Client
	Get(ctx context.Context, id int64) (*metadata.FileRecord, error)
	UpdateStatus(ctx context.Context, id int64, from, to filestate.Status) (bool, error)
}

// BodyFactory builds the body executed for a stage.
type BodyFactory func(Stage) lifecycle.Body

// Option configures a Runner.
type Option func(*Runner)

// WithBodyFactory replaces the subprocess body, mainly for tests.
func WithBodyFactory(factory BodyFactory) Option {
	return func(r *Runner) {
		if factory != nil {
			r.bodies = factory
		}
	}
}

// Request identifies one triggered pipeline run.
type Request struct {
	ExecutionKey string
	RecordID     int64
	AreaID       *int64
}

// StageOutcome reports what one stage registered.
type StageOutcome struct {
	Stage  string
	Loaded map[string]int64
}

// Outcome summarizes a pipeline run.
type Outcome struct {
	RequestID string
	Stages    []StageOutcome
	// Final is the status applied to the triggering record, empty when the
	// run had no record or the record was moved by someone else.
	Final filestate.Status
}

// Runner executes pipeline definitions through the lifecycle wrapper.
type Runner struct {
	store     Store
	lifecycle *lifecycle.Runner
	logger    *slog.Logger
	bodies    BodyFactory
}

// NewRunner builds a Runner backed by store and the temp manager.
func NewRunner(store Store, temp *staging.Manager, logger *slog.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	r := &Runner{
		store:     store,
		lifecycle: lifecycle.NewRunner(store, temp, logger),
		logger:    logger,
		bodies: func(s Stage) lifecycle.Body {
			return command.Body(s.Command, s.Timeout)
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes every stage of def in order. On success the triggering
// record moves processing -> def.TerminalStatus, on any stage failure it
// moves processing -> failed. A lost update is logged, not returned. When a
// group triggers several pipelines for one record, the first to finish sets
// its status and the later outcomes are lost updates.
func (r *Runner) Run(ctx context.Context, def Definition, req Request) (*Outcome, error) {
	outcome := &Outcome{RequestID: uuid.NewString()}
	ctx = services.WithPipeline(ctx, def.Name)
	ctx = services.WithRequestID(ctx, outcome.RequestID)
	if req.RecordID != 0 {
		ctx = services.WithRecordID(ctx, req.RecordID)
	}
	logger := logging.WithContext(ctx, r.logger)

	rc, err := r.runContext(ctx, def, req, outcome.RequestID)
	if err != nil {
		r.finalize(ctx, logger, req.RecordID, filestate.StatusFailed, outcome)
		return outcome, err
	}

	logger.Info("pipeline started",
		logging.String(logging.FieldEventType, "pipeline_start"),
		logging.String("execution_key", req.ExecutionKey),
		logging.Int("stages", len(def.Stages)),
	)
	started := time.Now()

	for _, stage := range def.Stages {
		result, err := r.lifecycle.Run(ctx, stage.Spec, rc, r.bodies(stage))
		if err != nil {
			logging.ErrorWithContext(logger, "pipeline stage failed", "pipeline_stage_failed",
				logging.String(logging.FieldStage, stage.Spec.Stage),
				logging.String("failure_kind", lifecycle.Kind(err)),
				logging.Bool("retryable", services.Retryable(err)),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, hintFor(err)),
			)
			r.finalize(ctx, logger, req.RecordID, filestate.StatusFailed, outcome)
			return outcome, fmt.Errorf("pipeline %s: %w", def.Name, err)
		}
		outcome.Stages = append(outcome.Stages, StageOutcome{Stage: stage.Spec.Stage, Loaded: result.Loaded})
	}

	r.finalize(ctx, logger, req.RecordID, def.TerminalStatus, outcome)
	logger.Info("pipeline completed",
		logging.String(logging.FieldEventType, "pipeline_complete"),
		logging.Duration("duration", time.Since(started)),
		logging.String("final_status", string(outcome.Final)),
	)
	return outcome, nil
}

// RunStage executes a single stage outside a pipeline run. The triggering
// record's status is never touched.
func (r *Runner) RunStage(ctx context.Context, def Definition, stageName string, req Request) (*StageOutcome, error) {
	stage, ok := def.Stage(stageName)
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, stageName, "run stage", fmt.Sprintf("pipeline %s has no such stage", def.Name), nil)
	}
	ctx = services.WithPipeline(ctx, def.Name)
	requestID := uuid.NewString()
	ctx = services.WithRequestID(ctx, requestID)
	rc, err := r.runContext(ctx, def, req, requestID)
	if err != nil {
		return nil, err
	}
	result, err := r.lifecycle.Run(ctx, stage.Spec, rc, r.bodies(stage))
	if err != nil {
		return nil, err
	}
	return &StageOutcome{Stage: stageName, Loaded: result.Loaded}, nil
}

// runContext scopes temp paths to the record and the request, so two runs
// sharing an execution date never share a path.
func (r *Runner) runContext(ctx context.Context, def Definition, req Request, requestID string) (lifecycle.RunContext, error) {
	rc := lifecycle.RunContext{
		RecordID: req.RecordID,
		AreaID:   req.AreaID,
		Params:   def.Params,
		RunID:    fmt.Sprintf("%d-%s", req.RecordID, shortID(requestID)),
	}

	var record *metadata.FileRecord
	if req.RecordID != 0 {
		rec, err := r.store.Get(ctx, req.RecordID)
		if err != nil {
			return rc, fmt.Errorf("pipeline %s: load triggering record: %w", def.Name, err)
		}
		record = rec
		if rc.AreaID == nil {
			rc.AreaID = record.AreaID
		}
	}

	switch {
	case req.ExecutionKey != "":
		dt, err := metadata.ParseDateTime(req.ExecutionKey)
		if err != nil {
			return rc, services.Wrap(services.ErrValidation, "", "pipeline "+def.Name, "execution key", err)
		}
		rc.ExecutionDate = dt
	case record != nil:
		rc.ExecutionDate = record.DateTime
	default:
		return rc, services.Wrap(services.ErrValidation, "", "pipeline "+def.Name, "an execution key or record id is required", nil)
	}
	return rc, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func (r *Runner) finalize(ctx context.Context, logger *slog.Logger, recordID int64, to filestate.Status, outcome *Outcome) {
	if recordID == 0 {
		return
	}
	finalizeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()

	ok, err := r.store.UpdateStatus(finalizeCtx, recordID, filestate.StatusProcessing, to)
	switch {
	case err != nil:
		logging.ErrorWithContext(logger, "failed to record pipeline outcome", "pipeline_finalize_failed",
			logging.String("target_status", string(to)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run `satpipe files reset` once the store is reachable"),
		)
	case !ok:
		logging.WarnWithContext(logger, "record was not in processing; outcome not applied", "pipeline_finalize_skipped",
			logging.String("target_status", string(to)),
			logging.String(logging.FieldErrorHint, "another run or an operator changed the record"),
			logging.String(logging.FieldImpact, "record status left unchanged"),
		)
	default:
		outcome.Final = to
	}
}

func hintFor(err error) string {
	var (
		inputErr  *lifecycle.InputResolutionError
		outputErr *lifecycle.OutputLoadError
	)
	switch {
	case errors.As(err, &inputErr):
		return "check the stage input selector and that the upstream record was loaded"
	case errors.As(err, &outputErr) && errors.Is(err, metadata.ErrConflict):
		return "an output for this execution already exists; reset or remove it before rerunning"
	case errors.Is(err, services.ErrTimeout):
		return "increase the stage timeout or inspect the tool"
	case errors.Is(err, services.ErrExternalTool):
		return "inspect the command output in the run log"
	}
	return "check logs for details"
}
