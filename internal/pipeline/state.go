package pipeline

import (
	"time"

	"github.com/google/uuid"
	"github.com/vk/climadiag/internal/config"
)

// Mode is the run's comparison mode.
type Mode int

const (
	// CompareObservations compares the model case against observational data.
	CompareObservations Mode = iota
	// CompareBaseline compares the model case against a baseline simulation.
	CompareBaseline
)

// String implements fmt.Stringer.
func (m Mode) String() string {
	if m == CompareBaseline {
		return "model-vs-baseline"
	}
	return "model-vs-observation"
}

// Stage names tracked in the run state, in macro order.
const (
	StageTimeSeries         = "TimeSeries"
	StageBaselineTimeSeries = "BaselineTimeSeries"
	StageToolLaunch         = "ExternalToolLaunch"
	StageClimatology        = "Climatology"
	StageObsCheck           = "ObsCheck"
	StageRegrid             = "Regrid"
	StageAnalyze            = "Analyze"
	StagePlot               = "Plot"
	StageReport             = "Report"
	StageToolJoin           = "ToolJoin"
)

// RunState is the transient, process-lifetime record of one pipeline run.
// It is threaded explicitly through the orchestrator's phase calls; there is
// no ambient run-global state.
type RunState struct {
	RunID     string
	Mode      Mode
	StartedAt time.Time

	// EarlyExit is set when observations were requested but none were found;
	// the run then skips the comparison phases and still reports success.
	EarlyExit bool

	// ObsDatasets counts the observation files matched to requested variables.
	ObsDatasets int

	completed    []string
	failures     []ScriptFailure
	toolFailures []error
}

func newRunState(cfg *config.Resolved) *RunState {
	mode := CompareBaseline
	if cfg.BasicInfo.CompareObs {
		mode = CompareObservations
	}
	return &RunState{
		RunID:     uuid.NewString(),
		Mode:      mode,
		StartedAt: time.Now(),
	}
}

func (s *RunState) markCompleted(stage string) {
	s.completed = append(s.completed, stage)
}

func (s *RunState) recordFailure(f ScriptFailure) {
	s.failures = append(s.failures, f)
}

// Completed returns the stages finished so far, in completion order.
func (s *RunState) Completed() []string {
	return s.completed
}

// CompletedStage reports whether the named stage has finished.
func (s *RunState) CompletedStage(stage string) bool {
	for _, c := range s.completed {
		if c == stage {
			return true
		}
	}
	return false
}

// Failures returns the non-fatal script failures collected during the run.
func (s *RunState) Failures() []ScriptFailure {
	return s.failures
}

func (s *RunState) recordToolFailure(err error) {
	s.toolFailures = append(s.toolFailures, err)
}

// ToolFailures returns external tool problems observed during the run.
// They are reported in the summary but never fail the run.
func (s *RunState) ToolFailures() []error {
	return s.toolFailures
}
