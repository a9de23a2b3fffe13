package app

import (
	"context"
	"fmt"

	"github.com/vk/climadiag/internal/ctxlog"
	"github.com/vk/climadiag/internal/exttool"
	"github.com/vk/climadiag/internal/pipeline"
)

// Run executes the main application logic based on the provided configuration.
func (a *App) Run(ctx context.Context, appConfig *Config) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if appConfig.HealthcheckPort > 0 {
		a.startHealthcheckServer(appConfig.HealthcheckPort)
	}

	if appConfig.DryRun {
		a.logger.Info("✅ Dry run: configuration resolved and validated, nothing executed.",
			"case", a.resolved.Simulation.CaseName,
		)
		return nil
	}

	supervisor := exttool.New(a.resolved)
	orchestrator := pipeline.New(a.resolved, a.registry, supervisor)

	state, err := orchestrator.Run(ctx)
	if err != nil {
		return fmt.Errorf("pipeline execution failed: %w", err)
	}

	// Collected failures are summarized by the orchestrator and do not fail
	// the process; the run still reports overall success.
	a.logger.Debug("App.Run method finished.",
		"stages_completed", len(state.Completed()),
		"script_failures", len(state.Failures()),
	)
	return nil
}
