package engine

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha512"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corepack-go/corepack/pkg/env"
	"github.com/corepack-go/corepack/pkg/registryclient"
	"github.com/corepack-go/corepack/pkg/resolver"
	"github.com/corepack-go/corepack/pkg/toolspec"
)

func buildTarball(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, content := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Mode: 0o755, Size: int64(len(content))}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func TestNew_DefaultsRegistryAndHome(t *testing.T) {
	home := t.TempDir()
	eng, err := New(env.StaticReader{"COREPACK_HOME": home})
	require.NoError(t, err)
	require.NotNil(t, eng.Cache)
	require.True(t, eng.NetworkEnabled)
	require.Nil(t, eng.KeyRing)
}

func TestNew_NetworkDisabled(t *testing.T) {
	eng, err := New(env.StaticReader{"COREPACK_HOME": t.TempDir(), "COREPACK_ENABLE_NETWORK": "0"})
	require.NoError(t, err)
	require.False(t, eng.NetworkEnabled)
}

func TestResolveAndInstall_UsesRegistryDocument(t *testing.T) {
	tarball := buildTarball(t, map[string]string{"bin/npm-cli.js": "ok"})
	sum := sha512.Sum512(tarball)
	integrityStr := "sha512-" + base64.StdEncoding.EncodeToString(sum[:])

	var tarballURL string
	mux := http.NewServeMux()
	mux.HandleFunc("/npm", func(w http.ResponseWriter, r *http.Request) {
		doc := map[string]any{
			"dist-tags": map[string]string{"latest": "10.0.0"},
			"versions": map[string]any{
				"10.0.0": map[string]any{
					"dist": map[string]any{
						"tarball":   tarballURL,
						"integrity": integrityStr,
					},
				},
			},
		}
		_ = json.NewEncoder(w).Encode(doc)
	})
	mux.HandleFunc("/tarball.tgz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(tarball)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	tarballURL = srv.URL + "/tarball.tgz"

	eng, err := New(env.StaticReader{
		"COREPACK_HOME":          t.TempDir(),
		"COREPACK_NPM_REGISTRY":  srv.URL,
		"COREPACK_INTEGRITY_KEYS": "0",
	})
	require.NoError(t, err)
	eng.HTTPClient = srv.Client()
	eng.Registry = registryclient.New(srv.URL, srv.Client(), true)

	res := resolver.Resolution{Name: toolspec.NPM, ExactVersion: "10.0.0"}
	dest, entry, err := eng.ResolveAndInstall(context.Background(), res)
	require.NoError(t, err)
	require.Equal(t, toolspec.NPM, entry.Name)
	require.True(t, eng.Cache.IsReady(toolspec.NPM, "10.0.0"))
	require.NotEmpty(t, dest)
}

func TestRecordSuccess_BlocksCrossMajor(t *testing.T) {
	eng, err := New(env.StaticReader{"COREPACK_HOME": t.TempDir()})
	require.NoError(t, err)

	eng.RecordSuccess(resolver.Resolution{Name: toolspec.NPM, ExactVersion: "8.0.0"})
	eng.RecordSuccess(resolver.Resolution{Name: toolspec.NPM, ExactVersion: "9.0.0"})

	v, ok := eng.Cache.LastKnownGood().Get(toolspec.NPM)
	require.True(t, ok)
	require.Equal(t, "8.0.0", v, "a cross-major pin attempt must never move the pin")
}

func TestRecordSuccess_AllowsSameMajor(t *testing.T) {
	eng, err := New(env.StaticReader{"COREPACK_HOME": t.TempDir()})
	require.NoError(t, err)

	eng.RecordSuccess(resolver.Resolution{Name: toolspec.NPM, ExactVersion: "8.0.0"})
	eng.RecordSuccess(resolver.Resolution{Name: toolspec.NPM, ExactVersion: "8.1.0"})

	v, ok := eng.Cache.LastKnownGood().Get(toolspec.NPM)
	require.True(t, ok)
	require.Equal(t, "8.1.0", v)
}
