package specparser

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corepack-go/corepack/pkg/corepackerrors"
	"github.com/corepack-go/corepack/pkg/toolspec"
)

func TestParseVersionExpression_Exact(t *testing.T) {
	expr, err := ParseVersionExpression("1.22.4", false)
	require.NoError(t, err)
	assert.Equal(t, ExprExact, expr.Kind)
	assert.Equal(t, "1.22.4", expr.Exact)
}

func TestParseVersionExpression_ExactWithIntegrity(t *testing.T) {
	expr, err := ParseVersionExpression("1.22.4+sha1.deadbeef", false)
	require.NoError(t, err)
	assert.Equal(t, ExprExact, expr.Kind)
	assert.Equal(t, "1.22.4", expr.Exact)
	assert.Equal(t, "sha1", expr.IntegrityAlgo)
	assert.Equal(t, "deadbeef", expr.IntegrityHex)
}

func TestParseVersionExpression_Range(t *testing.T) {
	expr, err := ParseVersionExpression("10.x", false)
	require.NoError(t, err)
	assert.Equal(t, ExprRange, expr.Kind)
}

func TestParseVersionExpression_Tag(t *testing.T) {
	expr, err := ParseVersionExpression("latest", false)
	require.NoError(t, err)
	assert.Equal(t, ExprTag, expr.Kind)
}

func TestParseVersionExpression_URLDisallowed(t *testing.T) {
	_, err := ParseVersionExpression("https://example.com/npm.tgz", false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, corepackerrors.ErrURLForKnownTool))
}

func TestParseVersionExpression_URLAllowed(t *testing.T) {
	expr, err := ParseVersionExpression("https://example.com/npm.tgz", true)
	require.NoError(t, err)
	assert.Equal(t, ExprURL, expr.Kind)
}

func TestParseNameAtSpec(t *testing.T) {
	name, expr, err := ParseNameAtSpec("yarn@1.22.4")
	require.NoError(t, err)
	assert.Equal(t, toolspec.Name("yarn"), name)
	assert.Equal(t, "1.22.4", expr.Exact)
}

func TestManifestRequests_PackageManagerExact(t *testing.T) {
	raw := []byte(`{"packageManager": "yarn@1.22.4+sha1.deadbeef"}`)
	reqs, err := ManifestRequests("package.json", raw)
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, LocatorProjectManifest, reqs[0].Locator.Kind)
	assert.Equal(t, "deadbeef", reqs[0].Version.IntegrityHex)
}

func TestManifestRequests_PackageManagerURLForKnownToolIsFatal(t *testing.T) {
	raw := []byte(`{"packageManager": "npm@https://example.com/npm.tgz"}`)
	_, err := ManifestRequests("package.json", raw)
	require.Error(t, err)
	assert.True(t, errors.Is(err, corepackerrors.ErrURLForKnownTool))
}

func TestManifestRequests_PackageManagerRangeIsFatal(t *testing.T) {
	raw := []byte(`{"packageManager": "npm@10.x"}`)
	_, err := ManifestRequests("package.json", raw)
	require.Error(t, err)
	assert.True(t, errors.Is(err, corepackerrors.ErrSpecRange))
}

func TestManifestRequests_DevEngines(t *testing.T) {
	raw := []byte(`{"devEngines": {"packageManager": {"name": "pnpm", "version": "10.x", "onFail": "warn"}}}`)
	reqs, err := ManifestRequests("package.json", raw)
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, LocatorProjectDevEngines, reqs[0].Locator.Kind)
	assert.Equal(t, OnFailWarn, reqs[0].OnFail)
	assert.Equal(t, ExprRange, reqs[0].Version.Kind)
}

func TestManifestRequests_DevEnginesArrayIsIgnored(t *testing.T) {
	raw := []byte(`{"devEngines": {"packageManager": [{"name": "pnpm"}]}}`)
	reqs, err := ManifestRequests("package.json", raw)
	require.NoError(t, err)
	assert.Empty(t, reqs)
}

func TestManifestRequests_DevEnginesMissingNameIsIgnored(t *testing.T) {
	raw := []byte(`{"devEngines": {"packageManager": {"version": "10.x"}}}`)
	reqs, err := ManifestRequests("package.json", raw)
	require.NoError(t, err)
	assert.Empty(t, reqs)
}

func TestManifestRequests_BothFields(t *testing.T) {
	raw := []byte(`{
		"packageManager": "pnpm@6.6.2+sha1.7b4d0000000000000000000000000000000000",
		"devEngines": {"packageManager": {"name": "pnpm", "version": "10.x"}}
	}`)
	reqs, err := ManifestRequests("package.json", raw)
	require.NoError(t, err)
	require.Len(t, reqs, 2)
}

func TestManifestRequests_NoFields(t *testing.T) {
	raw := []byte(`{"name": "some-project", "version": "1.0.0"}`)
	reqs, err := ManifestRequests("package.json", raw)
	require.NoError(t, err)
	assert.Empty(t, reqs)
}
