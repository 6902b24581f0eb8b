package services

import "context"

// Trace holds the identifiers a unit of work is correlated by in logs. Zero
// fields are unset.
type Trace struct {
	RecordID  int64
	Pipeline  string
	Stage     string
	RequestID string
}

type traceKey struct{}

// TraceFrom returns the trace carried by ctx.
func TraceFrom(ctx context.Context) Trace {
	if ctx == nil {
		return Trace{}
	}
	t, _ := ctx.Value(traceKey{}).(Trace)
	return t
}

// Empty reports whether no identifier is set.
func (t Trace) Empty() bool { return t == Trace{} }

func withTrace(ctx context.Context, set func(*Trace)) context.Context {
	t := TraceFrom(ctx)
	set(&t)
	return context.WithValue(ctx, traceKey{}, t)
}

// WithRecordID scopes ctx to a file record. Zero leaves ctx untouched.
func WithRecordID(ctx context.Context, id int64) context.Context {
	if id == 0 {
		return ctx
	}
	return withTrace(ctx, func(t *Trace) { t.RecordID = id })
}

// WithPipeline scopes ctx to a pipeline run.
func WithPipeline(ctx context.Context, pipeline string) context.Context {
	if pipeline == "" {
		return ctx
	}
	return withTrace(ctx, func(t *Trace) { t.Pipeline = pipeline })
}

// WithStage scopes ctx to a stage.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return withTrace(ctx, func(t *Trace) { t.Stage = stage })
}

// WithRequestID sets the correlation id. A nested request replaces the
// outer one.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return withTrace(ctx, func(t *Trace) { t.RequestID = id })
}
