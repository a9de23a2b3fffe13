package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vk/climadiag/internal/ctxlog"
)

// runManifest is the machine-readable summary written by the report stage.
// The HTML renderer consumes it as an external collaborator.
type runManifest struct {
	RunID       string    `json:"run_id"`
	CaseName    string    `json:"case_name"`
	Mode        string    `json:"mode"`
	StartedAt   time.Time `json:"started_at"`
	WrittenAt   time.Time `json:"written_at"`
	Stages      []string  `json:"stages_completed"`
	ObsDatasets int       `json:"obs_datasets"`
	Failures    []string  `json:"script_failures,omitempty"`
}

// writeReport assembles the run manifest under the output root.
func (o *Orchestrator) writeReport(ctx context.Context, state *RunState) error {
	logger := ctxlog.FromContext(ctx)

	manifest := runManifest{
		RunID:       state.RunID,
		CaseName:    o.cfg.Simulation.CaseName,
		Mode:        state.Mode.String(),
		StartedAt:   state.StartedAt,
		WrittenAt:   time.Now(),
		Stages:      state.Completed(),
		ObsDatasets: state.ObsDatasets,
	}
	for _, f := range state.Failures() {
		manifest.Failures = append(manifest.Failures, f.String())
	}

	if err := os.MkdirAll(o.cfg.BasicInfo.OutputRoot, 0o755); err != nil {
		return fmt.Errorf("failed to create output root: %w", err)
	}
	path := filepath.Join(o.cfg.BasicInfo.OutputRoot, "run_manifest.json")
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode run manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write run manifest: %w", err)
	}

	logger.Info("📄 Run manifest written.", "path", path)
	return nil
}
