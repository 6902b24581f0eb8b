package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"

	"satpipe/internal/logging"
	"satpipe/internal/services"
	"satpipe/internal/watcher"
)

// TemporalOptions configures the Temporal adapter.
type TemporalOptions struct {
	Address         string
	Namespace       string
	TaskQueue       string
	WorkflowTimeout time.Duration
}

// workflowStarter is the part of client.Client the adapter uses.
type workflowStarter interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error)
	Close()
}

// TemporalRuntime starts one workflow per triggered pipeline. The workflow
// type is the pipeline name and the single argument is the trigger context.
type TemporalRuntime struct {
	client workflowStarter
	opts   TemporalOptions
	logger *slog.Logger
}

// DialTemporal connects to the Temporal frontend.
func DialTemporal(opts TemporalOptions, logger *slog.Logger) (*TemporalRuntime, error) {
	c, err := client.Dial(client.Options{
		HostPort:  opts.Address,
		Namespace: opts.Namespace,
	})
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "", "runtime", "connect to Temporal at "+opts.Address, err)
	}
	return newTemporal(c, opts, logger), nil
}

func newTemporal(c workflowStarter, opts TemporalOptions, logger *slog.Logger) *TemporalRuntime {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &TemporalRuntime{client: c, opts: opts, logger: logger}
}

func (t *TemporalRuntime) workflowOptions(id string) client.StartWorkflowOptions {
	return client.StartWorkflowOptions{
		ID:                       id,
		TaskQueue:                t.opts.TaskQueue,
		WorkflowExecutionTimeout: t.opts.WorkflowTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Minute,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Minute,
			MaximumAttempts:    3,
		},
	}
}

// TriggerPipeline starts the workflow without waiting for it. A workflow
// already started under the same id counts as triggered.
func (t *TemporalRuntime) TriggerPipeline(ctx context.Context, name, executionKey string, tc watcher.TriggerContext) error {
	id := WorkflowID(name, executionKey, tc.RecordID)
	run, err := t.client.ExecuteWorkflow(ctx, t.workflowOptions(id), name, tc)
	if err != nil {
		if temporal.IsWorkflowExecutionAlreadyStartedError(err) {
			logging.WarnWithContext(logging.WithContext(ctx, t.logger), "workflow already started", "temporal_workflow_exists",
				logging.String("workflow_id", id),
				logging.String(logging.FieldErrorHint, "a previous claim of this record already triggered the pipeline"),
				logging.String(logging.FieldImpact, "no new workflow started"),
			)
			return nil
		}
		return services.Wrap(services.ErrTransient, "", "trigger "+name, fmt.Sprintf("start workflow %s", id), err)
	}
	attrs := []any{
		logging.String(logging.FieldEventType, "temporal_workflow_started"),
		logging.String(logging.FieldPipeline, name),
		logging.String("workflow_id", id),
	}
	if run != nil {
		attrs = append(attrs, logging.String("run_id", run.GetRunID()))
	}
	logging.WithContext(ctx, t.logger).Info("workflow started", attrs...)
	return nil
}

// Close releases the client connection.
func (t *TemporalRuntime) Close() error {
	t.client.Close()
	return nil
}
