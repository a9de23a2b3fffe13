package testutil

import (
	"context"
	"sync"

	"github.com/vk/climadiag/internal/config"
	"github.com/zclconf/go-cty/cty"
)

// SpyCall records one invocation of a SpyScript.
type SpyCall struct {
	Script  string
	Overlay map[string]cty.Value
}

// SpyRecorder collects the invocations of all spy scripts sharing it, in
// call order.
type SpyRecorder struct {
	mu    sync.Mutex
	calls []SpyCall
}

// Calls returns a copy of the recorded invocations.
func (r *SpyRecorder) Calls() []SpyCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]SpyCall, len(r.calls))
	copy(out, r.calls)
	return out
}

// CallsFor returns the recorded invocations of one script.
func (r *SpyRecorder) CallsFor(script string) []SpyCall {
	var out []SpyCall
	for _, c := range r.Calls() {
		if c.Script == script {
			out = append(out, c)
		}
	}
	return out
}

func (r *SpyRecorder) record(c SpyCall) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
}

// SpyScript is a PhaseScript that records its invocations and returns a
// fixed error.
type SpyScript struct {
	Name     string
	Recorder *SpyRecorder
	Err      error
}

// Run implements the PhaseScript contract.
func (s *SpyScript) Run(ctx context.Context, cfg *config.Resolved, overlay map[string]cty.Value) error {
	s.Recorder.record(SpyCall{Script: s.Name, Overlay: overlay})
	return s.Err
}
