package registry

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/vk/climadiag/internal/config"
	"github.com/vk/climadiag/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
)

// PhaseScript is the uniform invocation contract for one named processing
// script. Implementations receive the read-only resolved configuration and
// an optional keyword-argument overlay and report success or failure.
type PhaseScript interface {
	Run(ctx context.Context, cfg *config.Resolved, overlay map[string]cty.Value) error
}

// Module is the interface for compiled-in script bundles that register
// their handlers with the registry at startup.
type Module interface {
	Register(r *Registry)
}

// Registry holds the script-name to handler mapping for a single
// application instance, backed by the resolved configuration's per-phase
// script lists.
type Registry struct {
	cfg     *config.Resolved
	scripts map[string]PhaseScript
}

// New creates a Registry over the given resolved configuration.
func New(cfg *config.Resolved) *Registry {
	return &Registry{
		cfg:     cfg,
		scripts: make(map[string]PhaseScript),
	}
}

// RegisterScript registers a Go handler for a script name.
func (r *Registry) RegisterScript(name string, script PhaseScript) {
	if _, exists := r.scripts[name]; exists {
		panic(fmt.Sprintf("script handler with name '%s' already registered", name))
	}
	slog.Debug("Registering script handler.", "name", name)
	r.scripts[name] = script
}

// ScriptsFor returns the ordered script names for a phase. Insertion order
// is execution order; an absent list yields an empty sequence.
func (r *Registry) ScriptsFor(phase config.Phase) []string {
	return r.cfg.ScriptsFor(phase)
}

// Lookup returns the handler registered for a script name.
func (r *Registry) Lookup(name string) (PhaseScript, bool) {
	s, ok := r.scripts[name]
	return s, ok
}

// PopulateExecDefaults binds every configured script name that has no Go
// handler to an exec-backed script in the phase's directory. Names already
// registered (including by an earlier phase list) are left untouched.
func (r *Registry) PopulateExecDefaults() {
	for _, phase := range config.Phases() {
		for _, name := range r.cfg.ScriptsFor(phase) {
			if _, exists := r.scripts[name]; exists {
				continue
			}
			path := filepath.Join(r.cfg.BasicInfo.ScriptsRoot, string(phase), name)
			r.scripts[name] = &ExecScript{Name: name, Path: path}
		}
	}
}

// ValidateRegistry checks that every script name referenced by a phase list
// has a handler. It runs after explicit registration and exec-default
// population.
func (r *Registry) ValidateRegistry(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	for _, phase := range config.Phases() {
		for _, name := range r.cfg.ScriptsFor(phase) {
			if _, ok := r.scripts[name]; !ok {
				return fmt.Errorf("phase %s references script %q but no handler is registered", phase, name)
			}
		}
	}
	logger.Debug("Registry integrity check passed.", "handlers", len(r.scripts))
	return nil
}
