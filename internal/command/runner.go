// Package command provides the subprocess invocation seam used by the
// optimizer. Callers program against Runner so the encoder can be faked
// out in tests without spawning real processes.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// ErrTimeout reports that a command exceeded its wall-clock budget and
// was forcibly terminated.
var ErrTimeout = errors.New("command timed out")

// Result holds the outcome of a single command invocation.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner runs an external command with a hard timeout, capturing both
// output streams.
type Runner interface {
	Run(ctx context.Context, name string, args []string, timeout time.Duration) (Result, error)
}

// ExecRunner is the production Runner backed by os/exec.
type ExecRunner struct{}

// NewExecRunner returns a Runner that spawns real processes.
func NewExecRunner() ExecRunner {
	return ExecRunner{}
}

// Run executes name with args, enforcing timeout via context cancellation.
// The process is killed when the deadline fires and ErrTimeout is returned
// with whatever output was captured up to that point.
func (ExecRunner) Run(ctx context.Context, name string, args []string, timeout time.Duration) (Result, error) {
	runCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, name, args...)
	cmd.Stdin = nil

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	err := cmd.Run()

	result := Result{
		Stdout: stdoutBuf.String(),
		Stderr: stderrBuf.String(),
	}
	if cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
	}

	if err != nil {
		// A deadline kill surfaces as "signal: killed" from Wait; report it
		// distinctly so callers can tell a timeout from an encoder crash.
		if runCtx.Err() == context.DeadlineExceeded {
			return result, fmt.Errorf("%w after %s", ErrTimeout, timeout)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return result, fmt.Errorf("command %s exited with code %d", name, exitErr.ExitCode())
		}
		return result, fmt.Errorf("failed to start command %s: %w", name, err)
	}

	return result, nil
}
