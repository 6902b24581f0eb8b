package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"satpipe/internal/config"
	"satpipe/internal/logging"
	"satpipe/internal/services"
	"satpipe/internal/watcher"
)

// Runtime is a watcher.Runtime that may hold a connection.
type Runtime interface {
	watcher.Runtime
	Close() error
}

// New builds the runtime adapter selected by cfg.Runtime.Kind.
func New(cfg *config.Config, logger *slog.Logger) (Runtime, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "trigger")
	rt := cfg.Runtime
	switch rt.Kind {
	case config.RuntimeTemporal:
		return DialTemporal(TemporalOptions{
			Address:         rt.TemporalAddress,
			Namespace:       rt.TemporalNamespace,
			TaskQueue:       rt.TaskQueue,
			WorkflowTimeout: time.Duration(rt.WorkflowTimeout) * time.Second,
		}, logger)
	case config.RuntimeCommand:
		return NewCommand(rt.Command, time.Duration(rt.WorkflowTimeout)*time.Second, logger)
	case config.RuntimeLog, "":
		return NewLog(logger), nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "", "runtime", fmt.Sprintf("unsupported runtime kind %q", rt.Kind), nil)
	}
}

// WorkflowID names a pipeline run so that re-triggering the same record is
// rejected by engines that deduplicate on id.
func WorkflowID(pipeline, executionKey string, recordID int64) string {
	return pipeline + "__" + executionKey + "__" + strconv.FormatInt(recordID, 10)
}

func areaValue(areaID *int64) string {
	if areaID == nil {
		return "null"
	}
	return strconv.FormatInt(*areaID, 10)
}

// LogRuntime only records triggers. It backs dry runs and tests.
type LogRuntime struct {
	logger *slog.Logger
}

// NewLog returns a runtime that logs each trigger.
func NewLog(logger *slog.Logger) *LogRuntime {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &LogRuntime{logger: logger}
}

// TriggerPipeline logs the request.
func (l *LogRuntime) TriggerPipeline(ctx context.Context, name, executionKey string, tc watcher.TriggerContext) error {
	logging.WithContext(ctx, l.logger).Info("pipeline trigger recorded",
		logging.String(logging.FieldEventType, "pipeline_trigger_logged"),
		logging.String(logging.FieldPipeline, name),
		logging.String("execution_key", executionKey),
		logging.Int64(logging.FieldRecordID, tc.RecordID),
		logging.String("area_id", areaValue(tc.AreaID)),
	)
	return nil
}

// Close is a no-op.
func (l *LogRuntime) Close() error { return nil }
