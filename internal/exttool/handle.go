package exttool

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"time"
)

// State is the completion status of a launched tool.
type State int

const (
	Pending State = iota
	Succeeded
	Failed
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// ToolError reports a joined tool that exited non-zero. It is recorded and
// logged but never treated as fatal to the run.
type ToolError struct {
	Tool     string
	ExitCode int
}

// Error implements the error interface.
func (e *ToolError) Error() string {
	return fmt.Sprintf("external tool %s exited with code %d", e.Tool, e.ExitCode)
}

// Outcome is the result of joining a tool.
type Outcome struct {
	State    State
	ExitCode int
	Runtime  time.Duration
	Err      error
}

// Handle represents one launched external tool instance. The process handle
// is owned exclusively by the supervisor until the tool is joined or
// released.
type Handle struct {
	Tool        string
	LaunchedAt  time.Time
	cmd         *exec.Cmd
	logFile     io.Closer
	joinTimeout time.Duration
}

func (h *Handle) closeLog() {
	if h.logFile != nil {
		h.logFile.Close()
	}
}

// Join blocks until the tool's process exits and returns its outcome. With
// no configured join timeout it waits indefinitely; truncating a slow but
// scientifically meaningful computation is worse than a long wait.
func (h *Handle) Join(ctx context.Context) Outcome {
	done := make(chan error, 1)
	go func() { done <- h.cmd.Wait() }()

	var timeoutC <-chan time.Time
	if h.joinTimeout > 0 {
		timer := time.NewTimer(h.joinTimeout)
		defer timer.Stop()
		timeoutC = timer.C
	}

	select {
	case err := <-done:
		h.closeLog()
		runtime := time.Since(h.LaunchedAt)
		if err == nil {
			return Outcome{State: Succeeded, Runtime: runtime}
		}
		if exitErr, ok := err.(*exec.ExitError); ok {
			code := exitErr.ExitCode()
			return Outcome{
				State:    Failed,
				ExitCode: code,
				Runtime:  runtime,
				Err:      &ToolError{Tool: h.Tool, ExitCode: code},
			}
		}
		return Outcome{State: Failed, ExitCode: -1, Runtime: runtime, Err: err}
	case <-timeoutC:
		return Outcome{
			State:   Failed,
			Runtime: time.Since(h.LaunchedAt),
			Err:     fmt.Errorf("external tool %s did not finish within %s", h.Tool, h.joinTimeout),
		}
	case <-ctx.Done():
		return Outcome{State: Failed, Runtime: time.Since(h.LaunchedAt), Err: ctx.Err()}
	}
}

// Release detaches the handle from the tool's lifetime. A goroutine reaps
// the process when it eventually exits; the supervisor stops tracking it.
func (h *Handle) Release() {
	go func() {
		_ = h.cmd.Wait()
		h.closeLog()
	}()
}
