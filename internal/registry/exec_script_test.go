package registry_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/climadiag/internal/registry"
	"github.com/vk/climadiag/internal/testutil"
	"github.com/zclconf/go-cty/cty"
)

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func TestExecScript_PassesContractEnvironment(t *testing.T) {
	cfg := testutil.ResolveYAML(t, doc)
	dir := t.TempDir()

	// The script asserts the contract: config file exists and args carry the mode.
	path := writeScript(t, dir, "check_contract", `
[ -f "$CLIMADIAG_CONFIG" ] || exit 40
grep -q "output_root" "$CLIMADIAG_CONFIG" || exit 41
echo "$CLIMADIAG_ARGS" | grep -q '"mode":"climatology"' || exit 42
exit 0`)

	script := &registry.ExecScript{Name: "check_contract", Path: path}
	err := script.Run(context.Background(), cfg, map[string]cty.Value{
		"mode": cty.StringVal("climatology"),
	})
	require.NoError(t, err)
}

func TestExecScript_NonZeroExitIsError(t *testing.T) {
	cfg := testutil.ResolveYAML(t, doc)
	dir := t.TempDir()
	path := writeScript(t, dir, "fail", "exit 3")

	script := &registry.ExecScript{Name: "fail", Path: path}
	err := script.Run(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exited with code 3")
}

func TestExecScript_MissingExecutableIsError(t *testing.T) {
	cfg := testutil.ResolveYAML(t, doc)

	script := &registry.ExecScript{Name: "ghost", Path: filepath.Join(t.TempDir(), "ghost")}
	err := script.Run(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start")
}
