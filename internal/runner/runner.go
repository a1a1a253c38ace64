package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"lessonflow/internal/telemetry"

	"go.uber.org/zap"
)

// Runner executes an external tool to completion.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (*Output, error)
}

// Output holds the captured streams of a finished process.
type Output struct {
	Stdout string
	Stderr string
}

// ProcessFailure is returned when the tool could not be started or exited non-zero.
// ExitCode is -1 when the process never ran.
type ProcessFailure struct {
	Command  string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ProcessFailure) Error() string {
	msg := fmt.Sprintf("%s exited with code %d", e.Command, e.ExitCode)
	if e.ExitCode < 0 {
		msg = fmt.Sprintf("%s failed to start", e.Command)
	}
	if tail := lastLines(e.Stderr, 5); tail != "" {
		msg += ": " + tail
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProcessFailure) Unwrap() error { return e.Err }

// ExecRunner runs tools as child processes of the service.
type ExecRunner struct{}

func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run blocks until the process exits. No retries are made here.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (*Output, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	out := &Output{Stdout: stdout.String(), Stderr: stderr.String()}

	if err != nil {
		failure := &ProcessFailure{Command: name, ExitCode: -1, Stderr: out.Stderr, Err: err}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			failure.ExitCode = exitErr.ExitCode()
		}
		telemetry.Logger.Debug("Process failed",
			zap.String("command", name),
			zap.Int("exit_code", failure.ExitCode),
			zap.Duration("elapsed", time.Since(start)),
		)
		return out, failure
	}

	telemetry.Logger.Debug("Process finished",
		zap.String("command", name),
		zap.Duration("elapsed", time.Since(start)),
	)
	return out, nil
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
