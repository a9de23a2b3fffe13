package registry

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/vk/climadiag/internal/config"
	"github.com/vk/climadiag/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
)

// Environment variables of the exec-backed script contract.
const (
	// EnvConfigPath points the script at the resolved configuration, written
	// as YAML to a per-invocation temp file.
	EnvConfigPath = "CLIMADIAG_CONFIG"
	// EnvArgs carries the keyword-argument overlay as a JSON object.
	EnvArgs = "CLIMADIAG_ARGS"
)

// ExecScript runs an external executable per the uniform script contract:
// the resolved configuration is passed through CLIMADIAG_CONFIG, the overlay
// through CLIMADIAG_ARGS, and exit code zero means success.
type ExecScript struct {
	Name string
	Path string
}

// Run implements PhaseScript.
func (s *ExecScript) Run(ctx context.Context, cfg *config.Resolved, overlay map[string]cty.Value) error {
	logger := ctxlog.FromContext(ctx).With("script", s.Name)

	cfgYAML, err := cfg.ExportYAML()
	if err != nil {
		return fmt.Errorf("failed to export config for script %s: %w", s.Name, err)
	}
	cfgFile, err := os.CreateTemp("", "climadiag-cfg-"+filepath.Base(s.Name)+"-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create config temp file: %w", err)
	}
	defer os.Remove(cfgFile.Name())
	if _, err := cfgFile.Write(cfgYAML); err != nil {
		cfgFile.Close()
		return fmt.Errorf("failed to write config temp file: %w", err)
	}
	if err := cfgFile.Close(); err != nil {
		return fmt.Errorf("failed to close config temp file: %w", err)
	}

	argsJSON, err := config.ArgsJSON(overlay)
	if err != nil {
		return fmt.Errorf("failed to encode overlay args for script %s: %w", s.Name, err)
	}

	cmd := exec.CommandContext(ctx, s.Path)
	cmd.Env = append(os.Environ(),
		EnvConfigPath+"="+cfgFile.Name(),
		EnvArgs+"="+string(argsJSON),
	)

	logger.Debug("Invoking exec-backed script.", "path", s.Path, "args", string(argsJSON))
	out, err := cmd.CombinedOutput()
	if trimmed := strings.TrimSpace(string(out)); trimmed != "" {
		logger.Debug("Script output.", "output", trimmed)
	}
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return fmt.Errorf("script %s exited with code %d", s.Name, exitErr.ExitCode())
		}
		return fmt.Errorf("script %s failed to start: %w", s.Name, err)
	}
	return nil
}
