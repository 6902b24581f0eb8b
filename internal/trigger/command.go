package trigger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"satpipe/internal/logging"
	"satpipe/internal/placeholder"
	"satpipe/internal/services"
	"satpipe/internal/watcher"
)

var commandContext = exec.CommandContext

const defaultCommandTimeout = 2 * time.Minute

// CommandRuntime triggers pipelines by running an external CLI, for example
// `airflow dags trigger`. The argv may reference pipeline, execution_key,
// record_id, area_id and conf (the trigger context as JSON).
type CommandRuntime struct {
	argv    []string
	timeout time.Duration
	logger  *slog.Logger
}

// NewCommand validates argv and builds the adapter.
func NewCommand(argv []string, timeout time.Duration, logger *slog.Logger) (*CommandRuntime, error) {
	if len(argv) == 0 || strings.TrimSpace(argv[0]) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "", "runtime", "command runtime requires runtime.command", nil)
	}
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &CommandRuntime{argv: append([]string(nil), argv...), timeout: timeout, logger: logger}, nil
}

// Args renders the argv for one trigger.
func (c *CommandRuntime) Args(name, executionKey string, tc watcher.TriggerContext) ([]string, error) {
	conf, err := json.Marshal(tc)
	if err != nil {
		return nil, fmt.Errorf("encode trigger context: %w", err)
	}
	resolver, err := placeholder.NewResolver(map[string]string{
		"pipeline":      name,
		"execution_key": executionKey,
		"record_id":     strconv.FormatInt(tc.RecordID, 10),
		"area_id":       areaValue(tc.AreaID),
		"conf":          string(conf),
	}, nil)
	if err != nil {
		return nil, err
	}
	return resolver.RenderArgs(c.argv)
}

// TriggerPipeline runs the command and waits for it to exit.
func (c *CommandRuntime) TriggerPipeline(ctx context.Context, name, executionKey string, tc watcher.TriggerContext) error {
	args, err := c.Args(name, executionKey, tc)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "", "trigger "+name, "render runtime.command", err)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := commandContext(ctx, args[0], args[1:]...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		detail := strings.TrimSpace(string(output))
		if len(detail) > 512 {
			detail = detail[len(detail)-512:]
		}
		return services.Wrap(services.ErrExternalTool, "", "trigger "+name, fmt.Sprintf("%s failed: %s", args[0], detail), err)
	}
	logging.WithContext(ctx, c.logger).Info("pipeline triggered via command",
		logging.String(logging.FieldEventType, "command_trigger"),
		logging.String(logging.FieldPipeline, name),
		logging.String("execution_key", executionKey),
		logging.String("binary", args[0]),
	)
	return nil
}

// Close is a no-op.
func (c *CommandRuntime) Close() error { return nil }
