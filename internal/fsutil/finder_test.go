package fsutil_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/climadiag/internal/fsutil"
)

func TestFindFilesByExtension(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.nc"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "b.nc"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.txt"), nil, 0o644))

	files, err := fsutil.FindFilesByExtension(dir, ".nc")
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestFindFilesByExtension_MissingRootYieldsNoFiles(t *testing.T) {
	files, err := fsutil.FindFilesByExtension(filepath.Join(t.TempDir(), "absent"), ".nc")
	require.NoError(t, err)
	assert.Nil(t, files)
}

func TestFindFilesByExtension_EmptyExtensionPanics(t *testing.T) {
	assert.Panics(t, func() {
		_, _ = fsutil.FindFilesByExtension(t.TempDir(), "")
	})
}
