package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/vk/climadiag/internal/config"
	"github.com/vk/climadiag/internal/ctxlog"
	"github.com/vk/climadiag/internal/registry"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	resolved *config.Resolved
	registry *registry.Registry
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance with the configuration loaded, interpolated and
// validated, and the script registry populated.
func NewApp(outW io.Writer, appConfig *Config, modules ...registry.Module) *App {
	logger := newLogger(appConfig.LogLevel, appConfig.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	doc, err := config.LoadFile(appConfig.ConfigPath)
	if err != nil {
		// A failure to load config is a fatal startup error.
		panic(fmt.Errorf("failed to load configuration: %w", err))
	}
	logger.Debug("Configuration document loaded.", "path", appConfig.ConfigPath)

	resolved, err := config.Resolve(doc)
	if err != nil {
		panic(fmt.Errorf("failed to resolve configuration: %w", err))
	}
	logger.Debug("Interpolation tokens resolved.")

	if err := resolved.Validate(); err != nil {
		panic(fmt.Errorf("invalid configuration: %w", err))
	}
	logger.Debug("Configuration validation passed.")

	// Create and populate the registry with Go script handlers, then bind
	// every remaining configured name to its exec-backed default.
	reg := registry.New(resolved)
	for _, mod := range modules {
		mod.Register(reg)
	}
	logger.Debug("Go script modules registered.", "count", len(modules))
	reg.PopulateExecDefaults()

	if err := reg.ValidateRegistry(ctx); err != nil {
		// A mismatch between code and config is a programmer error.
		panic(err)
	}
	logger.Debug("Registry validation passed.")

	return &App{
		outW:     outW,
		logger:   logger,
		resolved: resolved,
		registry: reg,
	}
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Resolved returns the resolved configuration. This is primarily for testing.
func (a *App) Resolved() *config.Resolved {
	return a.resolved
}
