package app_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/climadiag/internal/app"
	"github.com/vk/climadiag/internal/registry"
	"github.com/vk/climadiag/internal/testutil"
)

// spyModule registers spy handlers for a fixed set of script names.
type spyModule struct {
	recorder *testutil.SpyRecorder
	names    []string
}

func (m *spyModule) Register(r *registry.Registry) {
	for _, name := range m.names {
		r.RegisterScript(name, &testutil.SpyScript{Name: name, Recorder: m.recorder})
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "diag.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestApp_EndToEndBaselineRun(t *testing.T) {
	outputRoot := t.TempDir()
	cfgPath := writeConfig(t, fmt.Sprintf(`
basic_info:
  case_name: control
  output_root: %s
  compare_obs: false
  generate_report: true
simulation:
  case_name: control
  climo_path: "${basic_info.output_root}/climo"
baseline:
  case_name: reference
time_averaging_scripts: [create_climo]
analysis_scripts: [amwg_table]
`, outputRoot))

	recorder := &testutil.SpyRecorder{}
	logBuf := &testutil.SafeBuffer{}
	appConfig, err := app.NewConfig(app.Config{
		ConfigPath: cfgPath,
		LogFormat:  "text",
		LogLevel:   "debug",
	})
	require.NoError(t, err)

	diagApp := app.NewApp(logBuf, appConfig, &spyModule{
		recorder: recorder,
		names:    []string{"create_climo", "amwg_table"},
	})

	require.NoError(t, diagApp.Run(context.Background(), appConfig))

	// Interpolation resolved before the pipeline saw the config.
	assert.Equal(t, outputRoot+"/climo", diagApp.Resolved().Simulation.ClimoPath)

	// Time averaging ran for both scopes, analysis once.
	assert.Len(t, recorder.CallsFor("create_climo"), 4)
	assert.Len(t, recorder.CallsFor("amwg_table"), 1)

	// The report stage produced the manifest.
	_, err = os.Stat(filepath.Join(outputRoot, "run_manifest.json"))
	require.NoError(t, err)

	logs := logBuf.String()
	assert.Contains(t, logs, "Diagnostics run starting")
	assert.Contains(t, logs, "Diagnostics run finished")
}

func TestApp_DryRunSkipsPipeline(t *testing.T) {
	cfgPath := writeConfig(t, fmt.Sprintf(`
basic_info:
  output_root: %s
  compare_obs: false
simulation:
  case_name: control
baseline:
  case_name: reference
analysis_scripts: [amwg_table]
`, t.TempDir()))

	recorder := &testutil.SpyRecorder{}
	logBuf := &testutil.SafeBuffer{}
	appConfig, err := app.NewConfig(app.Config{ConfigPath: cfgPath, DryRun: true})
	require.NoError(t, err)

	diagApp := app.NewApp(logBuf, appConfig, &spyModule{recorder: recorder, names: []string{"amwg_table"}})
	require.NoError(t, diagApp.Run(context.Background(), appConfig))

	assert.Empty(t, recorder.Calls(), "dry run must not execute any script")
	assert.Contains(t, logBuf.String(), "Dry run")
}

func TestNewApp_PanicsOnInvalidConfiguration(t *testing.T) {
	// compare_obs false with no baseline is a contradictory comparison setup.
	cfgPath := writeConfig(t, `
basic_info:
  output_root: /data/diag
  compare_obs: false
simulation:
  case_name: control
`)

	appConfig, err := app.NewConfig(app.Config{ConfigPath: cfgPath})
	require.NoError(t, err)

	assert.Panics(t, func() {
		app.NewApp(&testutil.SafeBuffer{}, appConfig)
	})
}

func TestNewApp_PanicsOnMissingFile(t *testing.T) {
	appConfig, err := app.NewConfig(app.Config{ConfigPath: filepath.Join(t.TempDir(), "absent.yaml")})
	require.NoError(t, err)

	assert.Panics(t, func() {
		app.NewApp(&testutil.SafeBuffer{}, appConfig)
	})
}

func TestNewConfig_RequiresConfigPath(t *testing.T) {
	_, err := app.NewConfig(app.Config{})
	require.Error(t, err)
}
