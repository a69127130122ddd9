package env

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDotenv(t *testing.T, dir, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".corepack.env"), []byte(contents), 0o600))
}

func TestLoad_FileFillsGapsOnly(t *testing.T) {
	dir := t.TempDir()
	writeDotenv(t, dir, "COREPACK_HOME=/from/file\n# comment\nCOREPACK_ENABLE_NETWORK=0\n")

	t.Setenv("COREPACK_HOME", "/from/process")
	t.Setenv("COREPACK_ENV_FILE", "")

	e := Load(dir)
	assert.Equal(t, "/from/process", e.Getenv("COREPACK_HOME"), "process env must win over dotenv")
	assert.Equal(t, "0", e.Getenv("COREPACK_ENABLE_NETWORK"), "dotenv fills keys absent from process env")
}

func TestLoad_EnvFileZeroDisablesFile(t *testing.T) {
	dir := t.TempDir()
	writeDotenv(t, dir, "COREPACK_HOME=/from/file\n")
	t.Setenv("COREPACK_ENV_FILE", "0")

	e := Load(dir)
	assert.Equal(t, "", e.Getenv("COREPACK_HOME"))
}

func TestLoad_CustomFileName(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "custom.env"), []byte("COREPACK_HOME=/custom\n"), 0o600))
	t.Setenv("COREPACK_ENV_FILE", "custom.env")

	e := Load(dir)
	assert.Equal(t, "/custom", e.Getenv("COREPACK_HOME"))
}

func TestLoad_MissingFileIsNotFatal(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("COREPACK_ENV_FILE", "")

	e := Load(dir)
	assert.Equal(t, "", e.Getenv("COREPACK_HOME"))
}

func TestProcessOnly_IgnoresDotenvForDownloadPrompt(t *testing.T) {
	dir := t.TempDir()
	writeDotenv(t, dir, "COREPACK_ENABLE_DOWNLOAD_PROMPT=1\n")
	t.Setenv("COREPACK_ENV_FILE", "")

	e := Load(dir)
	_, ok := e.ProcessOnly("COREPACK_ENABLE_DOWNLOAD_PROMPT")
	assert.False(t, ok, "a dotenv-only value must never satisfy ProcessOnly")

	assert.Equal(t, "1", e.Getenv("COREPACK_ENABLE_DOWNLOAD_PROMPT"), "sanity: the dotenv value is present in the merged view")
}
