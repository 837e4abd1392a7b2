package convert

import (
	"fmt"
	"strings"
)

// ConversionError is a failed external tool invocation. It carries the tool's
// own output so callers can report it verbatim.
type ConversionError struct {
	Tool     string
	Args     []string
	ExitCode int
	Output   string
	Err      error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("%s exited with code %d: %v", e.Tool, e.ExitCode, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// Diagnostic is the text shown to the client: the tool output when there is
// any, otherwise the error itself.
func (e *ConversionError) Diagnostic() string {
	if out := strings.TrimSpace(e.Output); out != "" {
		return out
	}
	return e.Error()
}
