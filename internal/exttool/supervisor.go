package exttool

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/vk/climadiag/internal/config"
	"github.com/vk/climadiag/internal/ctxlog"
)

// Supervisor launches external tools per their resolved enable flags. It is
// evaluated once per tool per run.
type Supervisor struct {
	cfg *config.Resolved
}

// New creates a Supervisor over the resolved configuration.
func New(cfg *config.Resolved) *Supervisor {
	return &Supervisor{cfg: cfg}
}

// MaybeLaunch starts the named tool when its enable flag resolves true and
// returns its handle, or (nil, nil) when the tool is absent or disabled.
// The tool's parameter subset is translated into its own HCL configuration
// file inside the work directory before launch.
func (s *Supervisor) MaybeLaunch(ctx context.Context, name string) (*Handle, error) {
	logger := ctxlog.FromContext(ctx).With("tool", name)

	tool, ok := s.cfg.Tools[name]
	if !ok || !tool.Enabled {
		logger.Debug("External tool not enabled, skipping launch.")
		return nil, nil
	}

	workDir := tool.WorkDir
	if workDir == "" {
		workDir = filepath.Join(s.cfg.BasicInfo.OutputRoot, name)
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create work dir for tool %s: %w", name, err)
	}

	cfgPath, err := writeToolConfig(workDir, tool, s.cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to write config for tool %s: %w", name, err)
	}

	logFile, err := os.Create(filepath.Join(workDir, name+".log"))
	if err != nil {
		return nil, fmt.Errorf("failed to create log file for tool %s: %w", name, err)
	}

	// Deliberately not CommandContext: the tool's lifetime is decoupled from
	// any in-process phase and must survive until its own join point.
	cmd := exec.Command(tool.Executable, cfgPath)
	cmd.Dir = workDir
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	if err := cmd.Start(); err != nil {
		logFile.Close()
		return nil, fmt.Errorf("failed to start external tool %s: %w", name, err)
	}

	logger.Info("🚀 External tool launched.", "executable", tool.Executable, "config", cfgPath, "pid", cmd.Process.Pid)

	return &Handle{
		Tool:        name,
		LaunchedAt:  time.Now(),
		cmd:         cmd,
		logFile:     logFile,
		joinTimeout: tool.JoinTimeout,
	}, nil
}
