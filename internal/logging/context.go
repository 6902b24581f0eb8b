package logging

import (
	"context"
	"log/slog"

	"satpipe/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldRecordID is the standardized structured logging key for file record identifiers.
	FieldRecordID = "record_id"
	// FieldStage is the standardized structured logging key for stage names.
	FieldStage = "stage"
	// FieldPipeline is the standardized structured logging key for pipeline names.
	FieldPipeline = "pipeline"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	trace := services.TraceFrom(ctx)
	fields := make([]slog.Attr, 0, 4)
	if trace.RecordID != 0 {
		fields = append(fields, slog.Int64(FieldRecordID, trace.RecordID))
	}
	if trace.Pipeline != "" {
		fields = append(fields, slog.String(FieldPipeline, trace.Pipeline))
	}
	if trace.Stage != "" {
		fields = append(fields, slog.String(FieldStage, trace.Stage))
	}
	if trace.RequestID != "" {
		fields = append(fields, slog.String(FieldCorrelationID, trace.RequestID))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
