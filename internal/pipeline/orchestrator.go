package pipeline

import (
	"context"
	"fmt"

	"github.com/vk/climadiag/internal/config"
	"github.com/vk/climadiag/internal/ctxlog"
	"github.com/vk/climadiag/internal/exttool"
	"github.com/vk/climadiag/internal/obs"
	"github.com/vk/climadiag/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// Invocation-mode overlay values for the time-averaging scripts. The same
// script list serves both extraction and climatology; the overlay tells the
// script which transform to perform and against which case.
const (
	invokeTimeSeries  = "timeseries"
	invokeClimatology = "climatology"

	scopeModel    = "model"
	scopeBaseline = "baseline"
)

// Orchestrator sequences the pipeline phases over the resolved
// configuration. It owns the ResolvedConfig for the lifetime of the run and
// runs exactly once per process invocation.
type Orchestrator struct {
	cfg        *config.Resolved
	registry   *registry.Registry
	supervisor *exttool.Supervisor
}

// New creates an Orchestrator. The registry must already be populated and
// validated.
func New(cfg *config.Resolved, reg *registry.Registry, sup *exttool.Supervisor) *Orchestrator {
	return &Orchestrator{cfg: cfg, registry: reg, supervisor: sup}
}

// Run drives the state machine to completion and returns the final run
// state. A returned error is fatal (configuration, environment, or a
// fail-fast phase); collected script failures and external tool failures
// leave the error nil and are reported through the state.
func (o *Orchestrator) Run(ctx context.Context) (*RunState, error) {
	state := newRunState(o.cfg)
	logger := ctxlog.FromContext(ctx).With("run_id", state.RunID)
	ctx = ctxlog.WithLogger(ctx, logger)

	logger.Info("🚀 Diagnostics run starting.",
		"case", o.cfg.Simulation.CaseName,
		"mode", state.Mode.String(),
	)

	// TimeSeries: extract per-variable time series for the model case.
	if err := o.runPhase(ctx, state, config.PhaseTimeAveraging, o.overlay(invokeTimeSeries, scopeModel)); err != nil {
		return state, err
	}
	state.markCompleted(StageTimeSeries)

	// BaselineTimeSeries: same script list, baseline-scoped parameters.
	if state.Mode == CompareBaseline {
		if err := o.runPhase(ctx, state, config.PhaseTimeAveraging, o.overlay(invokeTimeSeries, scopeBaseline)); err != nil {
			return state, err
		}
		state.markCompleted(StageBaselineTimeSeries)
	}

	// ExternalToolLaunch happens before the long climatology and analysis
	// work so the coupled tool's computation overlaps the rest of the run.
	coupled := o.launchTools(ctx, state)
	state.markCompleted(StageToolLaunch)

	// Climatology: same scripts, climatology invocation mode.
	if err := o.runPhase(ctx, state, config.PhaseTimeAveraging, o.overlay(invokeClimatology, scopeModel)); err != nil {
		return state, o.joinAfterFatal(ctx, state, coupled, err)
	}
	if state.Mode == CompareBaseline {
		if err := o.runPhase(ctx, state, config.PhaseTimeAveraging, o.overlay(invokeClimatology, scopeBaseline)); err != nil {
			return state, o.joinAfterFatal(ctx, state, coupled, err)
		}
	}
	state.markCompleted(StageClimatology)

	// ObsCheck: in observation mode an empty intersection between requested
	// variables and available datasets ends the run successfully.
	if state.Mode == CompareObservations {
		datasets, err := obs.Discover(ctx, o.cfg.Observations.ObsPath, o.cfg.Observations.Variables)
		if err != nil {
			return state, o.joinAfterFatal(ctx, state, coupled, fmt.Errorf("observation discovery failed: %w", err))
		}
		state.ObsDatasets = len(datasets)
		state.markCompleted(StageObsCheck)
		if len(datasets) == 0 {
			logger.Info("✅ No observation datasets found for any requested variable; nothing to compare.",
				"variables_requested", len(o.cfg.Observations.Variables),
			)
			state.EarlyExit = true
			o.joinCoupledTool(ctx, state, coupled)
			o.finish(ctx, state)
			return state, nil
		}
		logger.Debug("Observation datasets discovered.", "count", len(datasets))
	}

	comparison := []struct {
		phase config.Phase
		stage string
	}{
		{config.PhaseRegridding, StageRegrid},
		{config.PhaseAnalysis, StageAnalyze},
		{config.PhasePlotting, StagePlot},
	}
	for _, c := range comparison {
		if err := o.runPhase(ctx, state, c.phase, o.scopeOverlay()); err != nil {
			return state, o.joinAfterFatal(ctx, state, coupled, err)
		}
		state.markCompleted(c.stage)
	}

	if o.cfg.BasicInfo.GenerateReport {
		if err := o.writeReport(ctx, state); err != nil {
			return state, o.joinAfterFatal(ctx, state, coupled, err)
		}
		state.markCompleted(StageReport)
	}

	o.joinCoupledTool(ctx, state, coupled)
	o.finish(ctx, state)
	return state, nil
}

// overlay builds the orchestrator-owned keyword arguments for a
// time-averaging invocation.
func (o *Orchestrator) overlay(mode, scope string) map[string]cty.Value {
	ov := map[string]cty.Value{
		"mode":  cty.StringVal(mode),
		"scope": cty.StringVal(scope),
	}
	switch mode {
	case invokeTimeSeries:
		ov["overwrite"] = cty.BoolVal(o.cfg.BasicInfo.OverwriteTS)
	case invokeClimatology:
		ov["overwrite"] = cty.BoolVal(o.cfg.BasicInfo.OverwriteClimo)
	}
	return ov
}

// scopeOverlay carries only the comparison target for the downstream phases.
func (o *Orchestrator) scopeOverlay() map[string]cty.Value {
	target := "observations"
	if o.cfg.Baseline != nil && !o.cfg.BasicInfo.CompareObs {
		target = o.cfg.Baseline.CaseName
	}
	return map[string]cty.Value{"target": cty.StringVal(target)}
}

// runPhase executes the phase's script list in insertion order under its
// failure policy. Fail-fast aborts on the first error; collect-errors
// records each failure on the state and keeps going.
func (o *Orchestrator) runPhase(ctx context.Context, state *RunState, phase config.Phase, phaseArgs map[string]cty.Value) error {
	logger := ctxlog.FromContext(ctx).With("phase", string(phase))

	scripts := o.registry.ScriptsFor(phase)
	if len(scripts) == 0 {
		logger.Debug("No scripts configured for phase, skipping.")
		return nil
	}

	policy := o.cfg.PolicyFor(phase)
	logger.Info("▶️ Phase starting.", "scripts", len(scripts))

	for _, name := range scripts {
		script, ok := o.registry.Lookup(name)
		if !ok {
			// Registry validation runs at startup; reaching this is a bug.
			return fmt.Errorf("phase %s: script %q has no registered handler", phase, name)
		}

		args := mergeArgs(o.cfg.ArgsFor(name), phaseArgs)
		logger.Debug("Running script.", "script", name)
		if err := script.Run(ctx, o.cfg, args); err != nil {
			if policy == config.FailFast {
				logger.Error("Script failed in fail-fast phase, aborting run.", "script", name, "error", err)
				return &PhaseScriptError{Phase: phase, Script: name, Err: err}
			}
			logger.Warn("Script failed, continuing phase.", "script", name, "error", err)
			state.recordFailure(ScriptFailure{Phase: phase, Script: name, Err: err})
			continue
		}
		logger.Debug("Script succeeded.", "script", name)
	}

	logger.Info("✅ Phase finished.")
	return nil
}

// mergeArgs layers the orchestrator's per-phase arguments over the
// configured per-script kwargs; the orchestrator's keys win.
func mergeArgs(scriptArgs, phaseArgs map[string]cty.Value) map[string]cty.Value {
	merged := make(map[string]cty.Value, len(scriptArgs)+len(phaseArgs))
	for k, v := range scriptArgs {
		merged[k] = v
	}
	for k, v := range phaseArgs {
		merged[k] = v
	}
	return merged
}

// launchTools evaluates both tool enable flags once. The stats engine is
// released immediately (fire-and-forget); the coupled diagnostics handle is
// returned for the join at the end of the run. Launch problems are recorded,
// never fatal.
func (o *Orchestrator) launchTools(ctx context.Context, state *RunState) *exttool.Handle {
	logger := ctxlog.FromContext(ctx)

	if h, err := o.supervisor.MaybeLaunch(ctx, config.ToolStatsEngine); err != nil {
		logger.Warn("Failed to launch secondary statistics tool.", "error", err)
		state.recordToolFailure(err)
	} else if h != nil {
		// Writes its own outputs; its completion is irrelevant to the report.
		h.Release()
	}

	coupled, err := o.supervisor.MaybeLaunch(ctx, config.ToolCoupledDiag)
	if err != nil {
		logger.Warn("Failed to launch coupled diagnostics tool.", "error", err)
		state.recordToolFailure(err)
		return nil
	}
	return coupled
}

// joinCoupledTool joins the retained handle, if any. It is the last
// operation before the terminal state, so every file-producing phase has
// flushed its outputs by the time the run reports completion.
func (o *Orchestrator) joinCoupledTool(ctx context.Context, state *RunState, coupled *exttool.Handle) {
	if coupled == nil {
		return
	}
	logger := ctxlog.FromContext(ctx).With("tool", coupled.Tool)

	logger.Info("⏳ Waiting for coupled diagnostics tool to finish.")
	outcome := coupled.Join(ctx)
	if outcome.Err != nil {
		logger.Warn("Coupled diagnostics tool failed.", "state", outcome.State.String(), "exit_code", outcome.ExitCode, "runtime", outcome.Runtime, "error", outcome.Err)
		state.recordToolFailure(outcome.Err)
	} else {
		logger.Info("✅ Coupled diagnostics tool finished.", "runtime", outcome.Runtime)
	}
	state.markCompleted(StageToolJoin)
}

// joinAfterFatal releases the coupled tool's handle when a fatal error
// aborts the run. The run must not block on a join it will no longer use,
// and the tool keeps running to completion on its own.
func (o *Orchestrator) joinAfterFatal(ctx context.Context, state *RunState, coupled *exttool.Handle, err error) error {
	if coupled != nil {
		ctxlog.FromContext(ctx).Warn("Run aborting; releasing coupled diagnostics tool.", "tool", coupled.Tool)
		coupled.Release()
	}
	return err
}

// finish logs the end-of-run summary of collected failures.
func (o *Orchestrator) finish(ctx context.Context, state *RunState) {
	logger := ctxlog.FromContext(ctx)

	for _, f := range state.Failures() {
		logger.Warn("Script failure recorded during run.", "phase", string(f.Phase), "script", f.Script, "error", f.Err)
	}
	for _, err := range state.ToolFailures() {
		logger.Warn("External tool failure recorded during run.", "error", err)
	}

	logger.Info("🏁 Diagnostics run finished.",
		"stages_completed", len(state.Completed()),
		"script_failures", len(state.Failures()),
		"tool_failures", len(state.ToolFailures()),
		"early_exit", state.EarlyExit,
	)
}
