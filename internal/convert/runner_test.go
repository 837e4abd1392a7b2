package convert

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookPath(t *testing.T, name string) string {
	t.Helper()
	path, err := exec.LookPath(name)
	if err != nil {
		t.Skipf("%s not available: %v", name, err)
	}
	return path
}

func TestExecRunnerSuccess(t *testing.T) {
	bin := lookPath(t, "true")
	r := NewExecRunner(time.Second, 1)
	_, err := r.Run(context.Background(), bin, nil)
	assert.NoError(t, err)
}

func TestExecRunnerNonZeroExit(t *testing.T) {
	bin := lookPath(t, "false")
	r := NewExecRunner(time.Second, 0)
	_, err := r.Run(context.Background(), bin, []string{"ignored"})
	require.Error(t, err)

	var convErr *ConversionError
	require.True(t, errors.As(err, &convErr))
	assert.Equal(t, bin, convErr.Tool)
	assert.Equal(t, 1, convErr.ExitCode)
	assert.Equal(t, []string{"ignored"}, convErr.Args)
}

func TestExecRunnerMissingBinary(t *testing.T) {
	r := NewExecRunner(time.Second, 0)
	_, err := r.Run(context.Background(), "definitely-not-a-real-tool-binary", nil)
	var convErr *ConversionError
	require.True(t, errors.As(err, &convErr))
	assert.Equal(t, -1, convErr.ExitCode)
}

func TestExecRunnerTimeout(t *testing.T) {
	bin := lookPath(t, "sleep")
	r := NewExecRunner(50*time.Millisecond, 0)
	start := time.Now()
	_, err := r.Run(context.Background(), bin, []string{"5"})
	require.Error(t, err)
	assert.Less(t, time.Since(start), 4*time.Second)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Contains(t, err.Error(), "timed out")
}

func TestExecRunnerArgumentsAreNotShellInterpreted(t *testing.T) {
	bin := lookPath(t, "echo")
	r := NewExecRunner(time.Second, 0)
	out, err := r.Run(context.Background(), bin, []string{"a; rm -rf /tmp/x", "$(id)"})
	require.NoError(t, err)
	assert.Equal(t, "a; rm -rf /tmp/x $(id)\n", string(out))
}

func TestConversionErrorDiagnostic(t *testing.T) {
	err := &ConversionError{Tool: "convert", ExitCode: 1, Output: "  convert: no images defined\n", Err: errors.New("exit status 1")}
	assert.Equal(t, "convert: no images defined", err.Diagnostic())

	bare := &ConversionError{Tool: "unoconv", ExitCode: 2, Err: errors.New("exit status 2")}
	assert.Equal(t, "unoconv exited with code 2: exit status 2", bare.Diagnostic())
}
