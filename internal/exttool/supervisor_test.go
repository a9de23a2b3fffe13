package exttool_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/climadiag/internal/config"
	"github.com/vk/climadiag/internal/exttool"
	"github.com/vk/climadiag/internal/testutil"
)

func toolConfig(t *testing.T, workDir, executable string, enabled bool) *config.Resolved {
	t.Helper()
	return testutil.ResolveYAML(t, fmt.Sprintf(`
basic_info:
  output_root: %s
  compare_obs: true
simulation:
  case_name: control
  history_path: /data/hist
  start_year: 1979
  end_year: 1998
observations:
  obs_path: /data/obs
external_tools:
  coupled_diag:
    enabled: %t
    executable: %s
    work_dir: %s
    tapes: [h0, h1]
    detrend: true
`, workDir, enabled, executable, workDir))
}

func writeTool(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "tool")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func TestMaybeLaunch_DisabledToolYieldsNoHandle(t *testing.T) {
	dir := t.TempDir()
	cfg := toolConfig(t, dir, writeTool(t, dir, "exit 0"), false)

	h, err := exttool.New(cfg).MaybeLaunch(context.Background(), config.ToolCoupledDiag)
	require.NoError(t, err)
	assert.Nil(t, h)
}

func TestMaybeLaunch_UnknownToolYieldsNoHandle(t *testing.T) {
	dir := t.TempDir()
	cfg := toolConfig(t, dir, writeTool(t, dir, "exit 0"), true)

	h, err := exttool.New(cfg).MaybeLaunch(context.Background(), "no_such_tool")
	require.NoError(t, err)
	assert.Nil(t, h)
}

func TestMaybeLaunch_WritesToolConfigAndJoins(t *testing.T) {
	dir := t.TempDir()
	// The tool checks it received its generated config as argv[1].
	executable := writeTool(t, dir, `
[ -f "$1" ] || exit 50
grep -q 'case_name' "$1" || exit 51
exit 0`)
	cfg := toolConfig(t, dir, executable, true)

	h, err := exttool.New(cfg).MaybeLaunch(context.Background(), config.ToolCoupledDiag)
	require.NoError(t, err)
	require.NotNil(t, h)

	outcome := h.Join(context.Background())
	assert.Equal(t, exttool.Succeeded, outcome.State)
	require.NoError(t, outcome.Err)

	// The generated HCL config carries the case parameters and the
	// free-form tool params.
	data, err := os.ReadFile(filepath.Join(dir, "coupled_diag.hcl"))
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "case_name")
	assert.Contains(t, text, `"control"`)
	assert.Contains(t, text, "start_year")
	assert.Contains(t, text, "tapes")
	assert.Contains(t, text, "detrend")
	assert.NotContains(t, text, "enabled", "supervisor keys stay out of the tool config")
}

func TestJoin_NonZeroExitIsToolError(t *testing.T) {
	dir := t.TempDir()
	cfg := toolConfig(t, dir, writeTool(t, dir, "exit 7"), true)

	h, err := exttool.New(cfg).MaybeLaunch(context.Background(), config.ToolCoupledDiag)
	require.NoError(t, err)
	require.NotNil(t, h)

	outcome := h.Join(context.Background())
	assert.Equal(t, exttool.Failed, outcome.State)
	assert.Equal(t, 7, outcome.ExitCode)

	var toolErr *exttool.ToolError
	require.ErrorAs(t, outcome.Err, &toolErr)
	assert.Equal(t, config.ToolCoupledDiag, toolErr.Tool)
}

func TestMaybeLaunch_MissingExecutableIsError(t *testing.T) {
	dir := t.TempDir()
	cfg := toolConfig(t, dir, filepath.Join(dir, "missing"), true)

	_, err := exttool.New(cfg).MaybeLaunch(context.Background(), config.ToolCoupledDiag)
	require.Error(t, err)
}

func TestRelease_DetachesHandle(t *testing.T) {
	dir := t.TempDir()
	cfg := toolConfig(t, dir, writeTool(t, dir, "exit 0"), true)

	h, err := exttool.New(cfg).MaybeLaunch(context.Background(), config.ToolCoupledDiag)
	require.NoError(t, err)
	require.NotNil(t, h)

	// Fire-and-forget: releasing must not block or panic.
	h.Release()
}
