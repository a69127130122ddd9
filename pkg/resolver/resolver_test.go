package resolver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corepack-go/corepack/pkg/cache"
	"github.com/corepack-go/corepack/pkg/env"
	"github.com/corepack-go/corepack/pkg/toolspec"
)

func writeManifest(t *testing.T, dir, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "package.json"), []byte(contents), 0o644))
}

func TestResolve_ProjectManifestWins(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `{"packageManager": "yarn@1.22.4"}`)

	c := cache.New(t.TempDir())
	res, err := Resolve(env.StaticReader{}, c, toolspec.YarnClassic, "", dir, []string{"--version"})
	require.NoError(t, err)
	require.Equal(t, "1.22.4", res.ExactVersion)
}

func TestResolve_NestedManifestWinsOverParent(t *testing.T) {
	parent := t.TempDir()
	writeManifest(t, parent, `{"packageManager": "yarn@1.22.4"}`)
	child := filepath.Join(parent, "foo")
	require.NoError(t, os.MkdirAll(child, 0o755))
	writeManifest(t, child, `{"packageManager": "npm@6.14.2"}`)

	c := cache.New(t.TempDir())
	res, err := Resolve(env.StaticReader{}, c, toolspec.NPM, "", child, nil)
	require.NoError(t, err)
	require.Equal(t, "6.14.2", res.ExactVersion)
}

func TestResolve_NameMismatchFatalByDefault(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `{"packageManager": "yarn@1.22.4"}`)

	c := cache.New(t.TempDir())
	_, err := Resolve(env.StaticReader{}, c, toolspec.NPM, "", dir, []string{"install"})
	require.Error(t, err)
}

func TestResolve_NameMismatchDegradesWhenNotStrict(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `{"packageManager": "yarn@1.22.4"}`)

	c := cache.New(t.TempDir())
	e := env.StaticReader{"COREPACK_ENABLE_STRICT": "0"}
	res, err := Resolve(e, c, toolspec.NPM, "", dir, []string{"install"})
	require.NoError(t, err)
	require.Equal(t, "1.22.4", res.ExactVersion)
}

func TestResolve_TransparentCommandBypassesMismatch(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `{"packageManager": "yarn@1.22.4"}`)

	c := cache.New(t.TempDir())
	res, err := Resolve(env.StaticReader{}, c, toolspec.NPM, "", dir, []string{"--version"})
	require.NoError(t, err)
	require.Equal(t, "1.22.4", res.ExactVersion)
}

func TestResolve_DevEnginesMismatchError(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `{"devEngines": {"packageManager": {"name":"pnpm", "version":"10.x"}}, "packageManager": "pnpm@6.6.2"}`)

	c := cache.New(t.TempDir())
	_, err := Resolve(env.StaticReader{}, c, toolspec.PNPM, "", dir, nil)
	require.Error(t, err)
}

func TestResolve_DevEnginesMismatchWarn(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `{"devEngines": {"packageManager": {"name":"pnpm", "version":"10.x", "onFail": "warn"}}, "packageManager": "pnpm@6.6.2"}`)

	c := cache.New(t.TempDir())
	res, err := Resolve(env.StaticReader{}, c, toolspec.PNPM, "", dir, nil)
	var warn *WarnMismatch
	require.ErrorAs(t, err, &warn)
	require.Equal(t, "6.6.2", res.ExactVersion)
}

func TestResolve_GlobalPinUsedWhenNoManifest(t *testing.T) {
	dir := t.TempDir()
	home := t.TempDir()
	c := cache.New(home)
	c.LastKnownGood().Set(toolspec.NPM, "8.0.0")

	res, err := Resolve(env.StaticReader{}, c, toolspec.NPM, "", dir, nil)
	require.NoError(t, err)
	require.Equal(t, "8.0.0", res.ExactVersion)
}

func TestResolve_OneShotOverrideWins(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `{"packageManager": "yarn@1.22.4"}`)

	c := cache.New(t.TempDir())
	res, err := Resolve(env.StaticReader{}, c, toolspec.NPM, "npm@8.1.0", dir, nil)
	require.NoError(t, err)
	require.Equal(t, "8.1.0", res.ExactVersion)
	require.Equal(t, toolspec.NPM, res.Name)
}

func TestResolve_DevEnginesOnlyExactVersionIsSource(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `{"devEngines": {"packageManager": {"name":"pnpm", "version":"9.15.4"}}}`)

	c := cache.New(t.TempDir())
	res, err := Resolve(env.StaticReader{}, c, toolspec.PNPM, "", dir, nil)
	require.NoError(t, err)
	require.Equal(t, "9.15.4", res.ExactVersion)
}

func TestResolve_DevEnginesOnlyRangeIsStructuredError(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `{"devEngines": {"packageManager": {"name":"pnpm", "version":"9.x"}}}`)

	c := cache.New(t.TempDir())
	_, err := Resolve(env.StaticReader{}, c, toolspec.PNPM, "", dir, nil)
	require.Error(t, err)
}

func TestResolve_DevEnginesOnlyNoVersionFallsThroughToDefault(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `{"devEngines": {"packageManager": {"name":"pnpm"}}}`)

	c := cache.New(t.TempDir())
	res, err := Resolve(env.StaticReader{}, c, toolspec.PNPM, "", dir, nil)
	require.NoError(t, err)
	require.NotEmpty(t, res.ExactVersion)
}

func TestResolve_BuiltinDefaultWhenNothingElse(t *testing.T) {
	dir := t.TempDir()
	c := cache.New(t.TempDir())
	res, err := Resolve(env.StaticReader{}, c, toolspec.NPM, "", dir, nil)
	require.NoError(t, err)
	require.NotEmpty(t, res.ExactVersion)
}
