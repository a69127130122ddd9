package fileutils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAtomicWriteFile_CreatesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.json")

	require.NoError(t, AtomicWriteFile(path, []byte(`{"a":1}`), 0o600))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(got))
}

func TestAtomicWriteFile_OverwritesExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.json")
	require.NoError(t, os.WriteFile(path, []byte("stale-and-longer-content"), 0o600))

	require.NoError(t, AtomicWriteFile(path, []byte("new"), 0o600))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new", string(got))
}

func TestAtomicWriteFile_NoLeftoverTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.json")
	require.NoError(t, AtomicWriteFile(path, []byte("x"), 0o600))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "out.json", entries[0].Name())
}

func TestAtomicWriteFile_MissingDirFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "out.json")
	err := AtomicWriteFile(path, []byte("x"), 0o600)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create temp file")
}

func TestAtomicInstallDir_RenamesIntoPlace(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "tmp-install")
	dest := filepath.Join(root, "final")
	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "bin.js"), []byte("x"), 0o644))

	require.NoError(t, AtomicInstallDir(src, dest))

	_, err := os.Stat(filepath.Join(dest, "bin.js"))
	require.NoError(t, err)
	_, err = os.Stat(src)
	assert.True(t, os.IsNotExist(err))
}

func TestAtomicInstallDir_LoserDiscardsSilently(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "tmp-install")
	dest := filepath.Join(root, "final")
	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, os.MkdirAll(dest, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dest, "winner.js"), []byte("first"), 0o644))

	require.NoError(t, AtomicInstallDir(src, dest))

	_, err := os.Stat(filepath.Join(dest, "winner.js"))
	require.NoError(t, err, "the already-installed entry must survive the losing rename")
	_, err = os.Stat(src)
	assert.True(t, os.IsNotExist(err))
}
