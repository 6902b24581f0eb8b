package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestNewFanoutHandlerNilHandlers(t *testing.T) {
	h := newFanoutHandler(nil, nil, nil)
	if _, ok := h.(NoopHandler); !ok {
		t.Errorf("expected NoopHandler for all nil handlers, got %T", h)
	}
}

func TestNewFanoutHandlerFiltersNil(t *testing.T) {
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, nil)

	if h := newFanoutHandler(nil, inner, nil); h != inner {
		t.Error("expected single non-nil handler to be returned unwrapped")
	}
}

func TestFanoutHandlerHandleRespectsLevel(t *testing.T) {
	var infoBuf, warnBuf bytes.Buffer
	infoHandler := slog.NewJSONHandler(&infoBuf, &slog.HandlerOptions{Level: slog.LevelInfo})
	warnHandler := slog.NewJSONHandler(&warnBuf, &slog.HandlerOptions{Level: slog.LevelWarn})

	logger := slog.New(newFanoutHandler(infoHandler, warnHandler))
	if !logger.Handler().Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("expected fanout to accept info")
	}
	if logger.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("expected fanout to reject debug")
	}

	logger.Info("claimed record")
	if !strings.Contains(infoBuf.String(), "claimed record") {
		t.Fatalf("info handler missing record: %q", infoBuf.String())
	}
	if warnBuf.Len() != 0 {
		t.Fatalf("warn handler should not receive info records: %q", warnBuf.String())
	}
}

func TestFanoutHandlerWithAttrsAndGroup(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	h := newFanoutHandler(slog.NewJSONHandler(&buf1, nil), slog.NewJSONHandler(&buf2, nil))

	logger := slog.New(h).With(slog.String("pipeline", "proc_unzip")).WithGroup("record")
	logger.Info("triggered", slog.Int64("id", 42))

	for i, out := range []string{buf1.String(), buf2.String()} {
		if !strings.Contains(out, `"pipeline":"proc_unzip"`) {
			t.Errorf("handler %d missing attr: %s", i, out)
		}
		if !strings.Contains(out, `"record":{"id":42}`) {
			t.Errorf("handler %d missing group: %s", i, out)
		}
	}
}

func TestTeeLogger(t *testing.T) {
	var baseBuf, teeBuf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&baseBuf, nil))

	logger := TeeLogger(base, slog.NewJSONHandler(&teeBuf, nil))
	logger.Info("stage finished")

	if !strings.Contains(baseBuf.String(), "stage finished") || !strings.Contains(teeBuf.String(), "stage finished") {
		t.Fatalf("expected both destinations to receive the record: base=%q tee=%q", baseBuf.String(), teeBuf.String())
	}
}

func TestTeeLoggerNilBase(t *testing.T) {
	var teeBuf bytes.Buffer
	logger := TeeLogger(nil, slog.NewJSONHandler(&teeBuf, nil))
	logger.Info("only tee")
	if !strings.Contains(teeBuf.String(), "only tee") {
		t.Fatalf("expected tee output, got %q", teeBuf.String())
	}
}
