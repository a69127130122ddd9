// Package integrity implements C8: hash verification of a downloaded
// archive against a project-pinned or registry-supplied digest, and
// detached-signature verification over a package@version:integrity
// string against a set of pinned public keys.
package integrity

import (
	"crypto/sha1" //nolint:gosec // required: registry-published sha1 integrity strings must still verify
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"hash"
	"strings"

	"github.com/corepack-go/corepack/pkg/corepackerrors"
)

// Digest is a parsed "<algo>-<base64>" or "<algo>.<hex>" integrity value.
type Digest struct {
	Algo string
	Raw  []byte
}

// ParseDigest accepts either the npm-style "sha512-<base64>" dist.integrity
// form or the corepack-style "sha1.<hex>" suffix form.
func ParseDigest(s string) (Digest, error) {
	if idx := strings.Index(s, "-"); idx > 0 && isKnownAlgo(s[:idx]) {
		raw, err := base64.StdEncoding.DecodeString(s[idx+1:])
		if err != nil {
			return Digest{}, fmt.Errorf("malformed base64 integrity value %q: %w", s, err)
		}
		return Digest{Algo: s[:idx], Raw: raw}, nil
	}
	if idx := strings.Index(s, "."); idx > 0 && isKnownAlgo(s[:idx]) {
		raw, err := hex.DecodeString(s[idx+1:])
		if err != nil {
			return Digest{}, fmt.Errorf("malformed hex integrity value %q: %w", s, err)
		}
		return Digest{Algo: s[:idx], Raw: raw}, nil
	}
	return Digest{}, fmt.Errorf("unrecognized integrity value %q", s)
}

func isKnownAlgo(algo string) bool {
	switch algo {
	case "sha1", "sha224", "sha256", "sha512":
		return true
	default:
		return false
	}
}

// NewHasher returns a streaming hash.Hash for the digest's algorithm.
func (d Digest) NewHasher() (hash.Hash, error) {
	switch d.Algo {
	case "sha1":
		return sha1.New(), nil //nolint:gosec // matching registry-published algorithm choice, not used for anything security-load-bearing beyond exact-match comparison
	case "sha224":
		return sha256.New224(), nil
	case "sha256":
		return sha256.New(), nil
	case "sha512":
		return sha512.New(), nil
	default:
		return nil, fmt.Errorf("unsupported integrity algorithm %q", d.Algo)
	}
}

// Verify compares actual against the expected digest.
func (d Digest) Verify(actual []byte) error {
	if len(actual) != len(d.Raw) || !constantTimeEqual(actual, d.Raw) {
		return fmt.Errorf("%w. Expected %s.%s, got %s.%s",
			corepackerrors.ErrHashMismatch, d.Algo, hex.EncodeToString(d.Raw), d.Algo, hex.EncodeToString(actual))
	}
	return nil
}

func constantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var v byte
	for i := range a {
		v |= a[i] ^ b[i]
	}
	return v == 0
}
