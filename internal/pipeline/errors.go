package pipeline

import (
	"fmt"

	"github.com/vk/climadiag/internal/config"
)

// PhaseScriptError is the fatal failure of a script inside a fail-fast
// phase. It aborts the remaining scripts of the phase and every downstream
// phase.
type PhaseScriptError struct {
	Phase  config.Phase
	Script string
	Err    error
}

// Error implements the error interface.
func (e *PhaseScriptError) Error() string {
	return fmt.Sprintf("phase %s: script %q failed: %v", e.Phase, e.Script, e.Err)
}

// Unwrap exposes the underlying script error.
func (e *PhaseScriptError) Unwrap() error {
	return e.Err
}

// ScriptFailure records a non-fatal script failure in a collect-errors
// phase. Failures are summarized after the run without aborting it.
type ScriptFailure struct {
	Phase  config.Phase
	Script string
	Err    error
}

// String renders the failure for the end-of-run summary.
func (f ScriptFailure) String() string {
	return fmt.Sprintf("%s/%s: %v", f.Phase, f.Script, f.Err)
}
