// Package convert wraps the external conversion tools the archive depends on.
// Every tool is invoked with an argument vector, never through a shell,
// because file names reaching these commands come from clients.
package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"golang.org/x/sync/semaphore"
)

// Runner executes one external command and returns its combined output.
type Runner interface {
	Run(ctx context.Context, binary string, args []string) (output []byte, err error)
}

// ExecRunner runs commands with os/exec under a per-call timeout and a cap on
// the number of processes running at once.
type ExecRunner struct {
	timeout time.Duration
	sem     *semaphore.Weighted
}

// NewExecRunner returns an ExecRunner. A non-positive maxConcurrent leaves the
// process count unbounded.
func NewExecRunner(timeout time.Duration, maxConcurrent int) *ExecRunner {
	r := &ExecRunner{timeout: timeout}
	if maxConcurrent > 0 {
		r.sem = semaphore.NewWeighted(int64(maxConcurrent))
	}
	return r
}

// Run starts binary with args and waits for it. A non-zero exit, a failure to
// start and an expired timeout all come back as *ConversionError.
func (r *ExecRunner) Run(ctx context.Context, binary string, args []string) ([]byte, error) {
	if r.sem != nil {
		if err := r.sem.Acquire(ctx, 1); err != nil {
			return nil, &ConversionError{Tool: binary, Args: args, ExitCode: -1, Err: err}
		}
		defer r.sem.Release(1)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stdout = &out
	cmd.Stderr = &out

	runErr := cmd.Run()
	if runErr == nil {
		return out.Bytes(), nil
	}

	convErr := &ConversionError{Tool: binary, Args: args, ExitCode: -1, Output: out.String(), Err: runErr}
	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		convErr.ExitCode = exitErr.ExitCode()
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		convErr.Err = fmt.Errorf("timed out after %s: %w", r.timeout, context.DeadlineExceeded)
	}
	return out.Bytes(), convErr
}
