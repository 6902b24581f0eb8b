package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"satpipe/internal/logging"
	"satpipe/internal/metadata"
	"satpipe/internal/placeholder"
	"satpipe/internal/services"
	"satpipe/internal/staging"
)

// Client is the subset of the metadata store the wrapper needs.
type Client interface {
	Extract(ctx context.Context, selector, localPath string) (*metadata.FileRecord, error)
	Load(ctx context.Context, md metadata.Metadata, localPath string) (int64, error)
}

// Body is the domain logic of a stage.
type Body func(ctx context.Context, env Env) error

// Env is what a body sees: resolved temp paths, extracted input records and
// a renderer bound to the run.
type Env struct {
	Stage  string
	Paths  map[string]string
	Inputs map[string]*metadata.FileRecord
	Logger *slog.Logger

	resolver *placeholder.Resolver
}

// Path returns the temp path bound to key.
func (e Env) Path(key string) string { return e.Paths[key] }

// Render applies run placeholders and temp paths to tmpl.
func (e Env) Render(tmpl string) (string, error) { return e.resolver.Render(tmpl) }

// RenderArgs renders an argv slice.
func (e Env) RenderArgs(args []string) ([]string, error) { return e.resolver.RenderArgs(args) }

// Result summarizes a successful run.
type Result struct {
	Inputs map[string]int64
	Loaded map[string]int64
}

// Runner drives a stage through extract, execute, load and cleanup.
type Runner struct {
	client Client
	temp   *staging.Manager
	logger *slog.Logger
}

// NewRunner builds a Runner.
func NewRunner(client Client, temp *staging.Manager, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{client: client, temp: temp, logger: logger}
}

// Run executes body under the stage lifecycle. Temp paths resolved for the
// run are released on every exit path; release failures are logged and
// never replace the run's own result.
func (r *Runner) Run(ctx context.Context, spec StageSpec, rc RunContext, body Body) (*Result, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if body == nil {
		return nil, services.Wrap(services.ErrValidation, spec.Stage, "run stage", "stage body is required", nil)
	}

	ctx = services.WithStage(ctx, spec.Stage)
	if rc.RecordID != 0 {
		ctx = services.WithRecordID(ctx, rc.RecordID)
	}
	logger := logging.WithContext(ctx, r.logger)
	started := time.Now()

	resolver, err := placeholder.NewResolver(
		placeholder.RunConstants(rc.ExecutionDate, spec.Stage, rc.RecordID, rc.AreaID),
		rc.Params,
	)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, spec.Stage, "resolve params", "", err)
	}

	scope := r.temp.NewScope()
	defer r.cleanup(logger, scope)

	env := Env{
		Stage:    spec.Stage,
		Paths:    make(map[string]string),
		Inputs:   make(map[string]*metadata.FileRecord),
		Logger:   logger,
		resolver: resolver,
	}

	run := rc.run()
	keys := append(append(sortedKeys(spec.Inputs), sortedKeys(spec.Outputs)...), spec.TempDirs...)
	for _, key := range keys {
		path, err := scope.Path(spec.Stage, rc.ExecutionDate, run, key)
		if err != nil {
			return nil, &TempResourceError{Stage: spec.Stage, Key: key, Err: err}
		}
		if err := resolver.Bind(key, path); err != nil {
			return nil, &TempResourceError{Stage: spec.Stage, Key: key, Path: path, Err: err}
		}
		env.Paths[key] = path
	}

	for _, key := range spec.TempDirs {
		if err := r.temp.Provision(env.Paths[key]); err != nil {
			return nil, &TempResourceError{Stage: spec.Stage, Key: key, Path: env.Paths[key], Err: err}
		}
	}

	logger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("execution_date", rc.ExecutionDate.UTC().Format(metadata.DateTimeLayout)),
		logging.String("run", run),
		logging.Int("inputs", len(spec.Inputs)),
		logging.Int("outputs", len(spec.Outputs)),
	)

	result := &Result{Inputs: make(map[string]int64), Loaded: make(map[string]int64)}

	for _, key := range sortedKeys(spec.Inputs) {
		selector, err := resolver.Render(spec.Inputs[key])
		if err != nil {
			return nil, &InputResolutionError{Stage: spec.Stage, Key: key, Selector: spec.Inputs[key], Err: err}
		}
		record, err := r.client.Extract(ctx, selector, env.Paths[key])
		if err != nil {
			return nil, &InputResolutionError{Stage: spec.Stage, Key: key, Selector: selector, Err: err}
		}
		env.Inputs[key] = record
		result.Inputs[key] = record.ID
		logger.Debug("input extracted",
			logging.String("key", key),
			logging.Int64("input_record_id", record.ID),
			logging.String("path", env.Paths[key]),
		)
	}

	if err := body(ctx, env); err != nil {
		return nil, &DomainExecutionError{Stage: spec.Stage, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, &DomainExecutionError{Stage: spec.Stage, Err: err}
	}

	for _, key := range sortedKeys(spec.Outputs) {
		fields, err := resolver.RenderAll(spec.Outputs[key])
		if err != nil {
			return nil, &OutputLoadError{Stage: spec.Stage, Key: key, Err: err}
		}
		md, err := metadata.MetadataFromFields(fields)
		if err != nil {
			return nil, &OutputLoadError{Stage: spec.Stage, Key: key, Err: err}
		}
		id, err := r.client.Load(ctx, md, env.Paths[key])
		if err != nil {
			return nil, &OutputLoadError{Stage: spec.Stage, Key: key, Err: err}
		}
		result.Loaded[key] = id
		logger.Info("output loaded",
			logging.String("key", key),
			logging.Int64("output_record_id", id),
			logging.String(logging.FieldEventType, "output_loaded"),
		)
	}

	logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Duration("duration", time.Since(started)),
		logging.Int("loaded", len(result.Loaded)),
	)
	return result, nil
}

func (r *Runner) cleanup(logger *slog.Logger, scope *staging.Scope) {
	for _, failure := range scope.ReleaseAll() {
		logging.WarnWithContext(logger, "temp path cleanup failed", "temp_cleanup_failed",
			logging.String("path", failure.Path),
			logging.Error(failure.Error),
			logging.String(logging.FieldErrorHint, "remove the path manually or let the staging sweeper reclaim it"),
			logging.String(logging.FieldImpact, "disk space not reclaimed"),
		)
	}
}

// Kind names the lifecycle phase that produced err, for logs and exit
// summaries.
func Kind(err error) string {
	var (
		tempErr   *TempResourceError
		inputErr  *InputResolutionError
		domainErr *DomainExecutionError
		outputErr *OutputLoadError
	)
	switch {
	case errors.As(err, &tempErr):
		return "temp_resource"
	case errors.As(err, &inputErr):
		return "input_resolution"
	case errors.As(err, &domainErr):
		return "domain_execution"
	case errors.As(err, &outputErr):
		return "output_load"
	case err == nil:
		return ""
	case errors.Is(err, services.ErrValidation):
		return "validation"
	}
	return "other"
}
