package integrity

import (
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corepack-go/corepack/pkg/corepackerrors"
)

func TestParseDigest_HexSuffixForm(t *testing.T) {
	d, err := ParseDigest("sha1.deadbeef")
	require.NoError(t, err)
	assert.Equal(t, "sha1", d.Algo)
	assert.Equal(t, "deadbeef", hex.EncodeToString(d.Raw))
}

func TestParseDigest_Base64DistForm(t *testing.T) {
	sum := sha512.Sum512([]byte("hello"))
	b64 := base64.StdEncoding.EncodeToString(sum[:])
	d, err := ParseDigest("sha512-" + b64)
	require.NoError(t, err)
	assert.Equal(t, "sha512", d.Algo)
	assert.Equal(t, sum[:], d.Raw)
}

func TestParseDigest_Unrecognized(t *testing.T) {
	_, err := ParseDigest("not-a-digest")
	require.Error(t, err)
}

func TestVerify_Match(t *testing.T) {
	sum := sha512.Sum512([]byte("hello"))
	d := Digest{Algo: "sha512", Raw: sum[:]}
	require.NoError(t, d.Verify(sum[:]))
}

func TestVerify_Mismatch(t *testing.T) {
	d := Digest{Algo: "sha1", Raw: []byte{1, 2, 3}}
	err := d.Verify([]byte{4, 5, 6})
	require.Error(t, err)
	assert.ErrorIs(t, err, corepackerrors.ErrHashMismatch)
}

func TestVerifyAny_NoSignaturesIsNoCompatibleSig(t *testing.T) {
	kr, err := ParseKeyRing([]byte(`{}`))
	require.NoError(t, err)

	err = kr.VerifyAny("pkg@1.0.0:sha1.deadbeef", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, corepackerrors.ErrNoCompatibleSig)
}

func TestVerifySignature_UnknownKeyID(t *testing.T) {
	kr, err := ParseKeyRing([]byte(`{}`))
	require.NoError(t, err)

	err = kr.VerifySignature("pkg@1.0.0:sha1.deadbeef", "missing-key", "c2lnbmF0dXJl")
	require.Error(t, err)
	assert.ErrorIs(t, err, corepackerrors.ErrNoCompatibleSig)
}
