package trigger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"go.temporal.io/sdk/client"

	"satpipe/internal/config"
	"satpipe/internal/logging"
	"satpipe/internal/services"
	"satpipe/internal/watcher"
)

func area(v int64) *int64 { return &v }

type startCall struct {
	opts     client.StartWorkflowOptions
	workflow interface{}
	args     []interface{}
}

type fakeStarter struct {
	calls  []startCall
	err    error
	closed bool
}

func (f *fakeStarter) ExecuteWorkflow(_ context.Context, opts client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error) {
	f.calls = append(f.calls, startCall{opts: opts, workflow: workflow, args: args})
	return nil, f.err
}

func (f *fakeStarter) Close() { f.closed = true }

func TestWorkflowID(t *testing.T) {
	if got := WorkflowID("proc_unzip", "2024-01-01T00:00:00", 42); got != "proc_unzip__2024-01-01T00:00:00__42" {
		t.Fatalf("WorkflowID = %q", got)
	}
}

func TestTemporalTriggerStartsWorkflow(t *testing.T) {
	starter := &fakeStarter{}
	rt := newTemporal(starter, TemporalOptions{TaskQueue: "satpipe", WorkflowTimeout: time.Hour}, logging.NewNop())

	tc := watcher.TriggerContext{RecordID: 42, AreaID: area(5)}
	if err := rt.TriggerPipeline(context.Background(), "proc_unzip", "2024-01-01T00:00:00", tc); err != nil {
		t.Fatalf("TriggerPipeline: %v", err)
	}
	if len(starter.calls) != 1 {
		t.Fatalf("expected one workflow start, got %d", len(starter.calls))
	}
	call := starter.calls[0]
	if call.opts.ID != "proc_unzip__2024-01-01T00:00:00__42" {
		t.Fatalf("workflow id = %q", call.opts.ID)
	}
	if call.opts.TaskQueue != "satpipe" || call.opts.WorkflowExecutionTimeout != time.Hour {
		t.Fatalf("unexpected options %+v", call.opts)
	}
	if call.opts.RetryPolicy == nil || call.opts.RetryPolicy.MaximumAttempts != 3 {
		t.Fatalf("expected retry policy, got %+v", call.opts.RetryPolicy)
	}
	if call.workflow != "proc_unzip" {
		t.Fatalf("workflow type = %v", call.workflow)
	}
	if len(call.args) != 1 || call.args[0] != tc {
		t.Fatalf("unexpected workflow args %+v", call.args)
	}

	if err := rt.Close(); err != nil || !starter.closed {
		t.Fatalf("Close: %v closed=%v", err, starter.closed)
	}
}

func TestTemporalTriggerWrapsStartError(t *testing.T) {
	starter := &fakeStarter{err: errors.New("frontend unavailable")}
	rt := newTemporal(starter, TemporalOptions{TaskQueue: "satpipe"}, nil)
	err := rt.TriggerPipeline(context.Background(), "proc_unzip", "2024-01-01T00:00:00", watcher.TriggerContext{RecordID: 1})
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestCommandArgs(t *testing.T) {
	rt, err := NewCommand([]string{"airflow", "dags", "trigger", "-e", "{{ execution_key }}", "-c", "{{ conf }}", "{{ pipeline }}"}, 0, nil)
	if err != nil {
		t.Fatalf("NewCommand: %v", err)
	}
	args, err := rt.Args("proc_unzip", "2024-01-01T00:00:00", watcher.TriggerContext{RecordID: 42, AreaID: area(5)})
	if err != nil {
		t.Fatalf("Args: %v", err)
	}
	want := []string{"airflow", "dags", "trigger", "-e", "2024-01-01T00:00:00", "-c", `{"id":42,"area_id":5}`, "proc_unzip"}
	if strings.Join(args, "|") != strings.Join(want, "|") {
		t.Fatalf("args = %q, want %q", args, want)
	}

	args, err = rt.Args("p", "k", watcher.TriggerContext{RecordID: 7})
	if err != nil {
		t.Fatalf("Args: %v", err)
	}
	if args[6] != `{"id":7,"area_id":null}` {
		t.Fatalf("conf without area = %q", args[6])
	}
}

func TestCommandRejectsUnknownPlaceholder(t *testing.T) {
	rt, err := NewCommand([]string{"trigger", "{{ dag_id }}"}, 0, nil)
	if err != nil {
		t.Fatalf("NewCommand: %v", err)
	}
	err = rt.TriggerPipeline(context.Background(), "p", "k", watcher.TriggerContext{RecordID: 1})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestNewCommandRequiresArgv(t *testing.T) {
	if _, err := NewCommand(nil, 0, nil); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func stubCommand(t *testing.T, mode string) {
	t.Helper()
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "TRIGGER_HELPER_MODE="+mode)
		return cmd
	}
	t.Cleanup(func() { commandContext = original })
}

func TestCommandTriggerRunsTool(t *testing.T) {
	stubCommand(t, "success")
	rt, err := NewCommand([]string{"airflow", "{{ pipeline }}"}, time.Minute, nil)
	if err != nil {
		t.Fatalf("NewCommand: %v", err)
	}
	if err := rt.TriggerPipeline(context.Background(), "p", "k", watcher.TriggerContext{RecordID: 1}); err != nil {
		t.Fatalf("TriggerPipeline: %v", err)
	}
}

func TestCommandTriggerFailure(t *testing.T) {
	stubCommand(t, "fail")
	rt, err := NewCommand([]string{"airflow", "{{ pipeline }}"}, time.Minute, nil)
	if err != nil {
		t.Fatalf("NewCommand: %v", err)
	}
	err = rt.TriggerPipeline(context.Background(), "p", "k", watcher.TriggerContext{RecordID: 1})
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if !strings.Contains(err.Error(), "dag not found") {
		t.Fatalf("expected tool output in error, got %v", err)
	}
}

func TestNewSelectsRuntime(t *testing.T) {
	cfg := config.Default()
	cfg.Runtime.Kind = config.RuntimeLog
	rt, err := New(&cfg, nil)
	if err != nil {
		t.Fatalf("New(log): %v", err)
	}
	if _, ok := rt.(*LogRuntime); !ok {
		t.Fatalf("expected log runtime, got %T", rt)
	}
	if err := rt.TriggerPipeline(context.Background(), "p", "k", watcher.TriggerContext{RecordID: 1}); err != nil {
		t.Fatalf("log trigger: %v", err)
	}

	cfg.Runtime.Kind = config.RuntimeCommand
	cfg.Runtime.Command = []string{"echo", "{{ pipeline }}"}
	rt, err = New(&cfg, nil)
	if err != nil {
		t.Fatalf("New(command): %v", err)
	}
	if _, ok := rt.(*CommandRuntime); !ok {
		t.Fatalf("expected command runtime, got %T", rt)
	}

	cfg.Runtime.Kind = "airflow-api"
	if _, err := New(&cfg, nil); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	switch os.Getenv("TRIGGER_HELPER_MODE") {
	case "fail":
		fmt.Fprintln(os.Stderr, "error: dag not found")
		os.Exit(2)
	default:
		os.Exit(0)
	}
}
