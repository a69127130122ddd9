package toolspec

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup_KnownTool(t *testing.T) {
	e, ok := Lookup(NPM)
	require.True(t, ok)
	assert.Equal(t, "npm", e.RegistryPackage)
	assert.Equal(t, "bin/npm-cli.js", e.BinEntries[0].RelativePath)
}

func TestLookup_UnknownTool(t *testing.T) {
	_, ok := Lookup(Unknown)
	assert.False(t, ok)
}

func TestNameForCommand(t *testing.T) {
	name, ok := NameForCommand("yarnpkg")
	require.True(t, ok)
	assert.Equal(t, YarnClassic, name)

	_, ok = NameForCommand("does-not-exist")
	assert.False(t, ok)
}

func TestLoadOverride_MissingFileIsNoop(t *testing.T) {
	before := All()
	err := LoadOverride(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, before, All())
}

func TestLoadOverride_RejectsIncompleteEntry(t *testing.T) {
	defer func() { registry = All() }()
	path := filepath.Join(t.TempDir(), "override.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"entries":[{"name":"npm"}]}`), 0o600))

	err := LoadOverride(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing a defaultVersion")
}

func TestLoadOverride_ReplacesTable(t *testing.T) {
	saved := All()
	defer func() { registry = saved }()

	path := filepath.Join(t.TempDir(), "override.json")
	content := `{"entries":[{"name":"npm","defaultVersion":"1.0.0","registryPackage":"npm",
		"binEntries":[{"command":"npm","relativePath":"bin/npm-cli.js"}]}]}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	require.NoError(t, LoadOverride(path))
	e, ok := Lookup(NPM)
	require.True(t, ok)
	assert.Equal(t, "1.0.0", e.DefaultVersion)
}
