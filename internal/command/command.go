package command

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"satpipe/internal/lifecycle"
	"satpipe/internal/logging"
	"satpipe/internal/services"
)

var commandContext = exec.CommandContext

// outputTailBytes bounds how much subprocess output is kept for error
// messages and debug logs.
const outputTailBytes = 8 * 1024

// Body returns a lifecycle body that renders argv against the run and
// executes it. The tool is opaque: only its exit status matters. A zero
// timeout means no limit beyond the caller's context.
func Body(argv []string, timeout time.Duration) lifecycle.Body {
	template := append([]string(nil), argv...)
	return func(ctx context.Context, env lifecycle.Env) error {
		if len(template) == 0 || strings.TrimSpace(template[0]) == "" {
			return services.Wrap(services.ErrConfiguration, env.Stage, "run command", "command is empty", nil)
		}
		args, err := env.RenderArgs(template)
		if err != nil {
			return services.Wrap(services.ErrConfiguration, env.Stage, "render command", "", err)
		}

		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		logger := env.Logger
		if logger == nil {
			logger = logging.NewNop()
		}

		cmd := commandContext(ctx, args[0], args[1:]...) //nolint:gosec
		cmd.Env = append(cmd.Environ(), environment(env)...)
		output := &tailBuffer{limit: outputTailBytes}
		cmd.Stdout = output
		cmd.Stderr = output

		started := time.Now()
		logger.Info("command started",
			logging.String("binary", args[0]),
			logging.Int("args", len(args)-1),
			logging.String(logging.FieldEventType, "command_start"),
		)
		runErr := cmd.Run()
		tail := strings.TrimSpace(output.String())
		for _, line := range lastLines(tail, 20) {
			logger.Debug("command output", logging.String("line", line))
		}

		if runErr != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return services.Wrap(services.ErrTimeout, env.Stage, "run command",
					fmt.Sprintf("%s exceeded %s", args[0], timeout), runErr)
			}
			detail := args[0]
			if tail != "" {
				detail = fmt.Sprintf("%s: %s", args[0], lastLine(tail))
			}
			return services.Wrap(services.ErrExternalTool, env.Stage, "run command", detail, runErr)
		}

		logger.Info("command finished",
			logging.String("binary", args[0]),
			logging.Duration("duration", time.Since(started)),
			logging.String(logging.FieldEventType, "command_complete"),
		)
		return nil
	}
}

// environment exposes the stage name and temp paths to the subprocess as
// SATPIPE_STAGE and SATPIPE_PATH_<KEY>.
func environment(env lifecycle.Env) []string {
	vars := []string{"SATPIPE_STAGE=" + env.Stage}
	keys := make([]string, 0, len(env.Paths))
	for key := range env.Paths {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		vars = append(vars, "SATPIPE_PATH_"+strings.ToUpper(key)+"="+env.Paths[key])
	}
	return vars
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   bytes.Buffer
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := len(p)
	t.buf.Write(p)
	if over := t.buf.Len() - t.limit; over > 0 {
		t.buf.Next(over)
	}
	return n, nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buf.String()
}

func lastLines(text string, n int) []string {
	if text == "" {
		return nil
	}
	var lines []string
	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}

func lastLine(text string) string {
	lines := lastLines(text, 1)
	if len(lines) == 0 {
		return ""
	}
	return lines[0]
}
