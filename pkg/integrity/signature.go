package integrity

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/lestrrat-go/jwx/v3/jwk"

	"github.com/corepack-go/corepack/pkg/corepackerrors"
)

// KeyRing holds the pinned public keys signatures are checked against,
// indexed by keyid. Keys are represented as JWKs: this reuses the pack's
// existing JOSE/JWK stack rather than inventing a bespoke pinned-key file
// format.
type KeyRing struct {
	keys map[string]jwk.Key
}

// keyRingFile is the on-disk/env-supplied shape: a JSON object mapping
// keyid to a JWK.
type keyRingFile map[string]json.RawMessage

// ParseKeyRing parses a COREPACK_INTEGRITY_KEYS-style document: a JSON
// object whose values are JWK-shaped key material, keyed by keyid.
func ParseKeyRing(data []byte) (*KeyRing, error) {
	var raw keyRingFile
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse integrity key ring: %w", err)
	}

	keys := make(map[string]jwk.Key, len(raw))
	for keyID, keyData := range raw {
		key, err := jwk.ParseKey(keyData)
		if err != nil {
			return nil, fmt.Errorf("failed to parse key %q: %w", keyID, err)
		}
		keys[keyID] = key
	}
	return &KeyRing{keys: keys}, nil
}

// VerifySignature checks that at least one (keyid, sig) pair in
// signatures is a valid signature, by the named key, over message.
// message is always the literal string "<package>@<version>:<integrity>"
// per the registry's signing convention.
func (kr *KeyRing) VerifySignature(message string, keyID, sigBase64 string) error {
	key, ok := kr.keys[keyID]
	if !ok {
		return fmt.Errorf("%w: no pinned key for keyid %q", corepackerrors.ErrNoCompatibleSig, keyID)
	}

	sig, err := base64.StdEncoding.DecodeString(sigBase64)
	if err != nil {
		return fmt.Errorf("%w: malformed signature encoding", corepackerrors.ErrSignatureFail)
	}

	var rawKey any
	if err := jwk.Export(key, &rawKey); err != nil {
		return fmt.Errorf("failed to materialize key %q: %w", keyID, err)
	}

	digest := sha256.Sum256([]byte(message))

	switch pub := rawKey.(type) {
	case *ecdsa.PublicKey:
		if !ecdsa.VerifyASN1(pub, digest[:], sig) {
			return fmt.Errorf("%w for keyid %q", corepackerrors.ErrSignatureFail, keyID)
		}
	case *rsa.PublicKey:
		if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], sig); err != nil {
			return fmt.Errorf("%w for keyid %q: %v", corepackerrors.ErrSignatureFail, keyID, err)
		}
	default:
		return fmt.Errorf("unsupported key type for keyid %q: %T", keyID, rawKey)
	}
	return nil
}

// VerifyAny checks message against every supplied (keyid, sig) candidate,
// succeeding if any one of them verifies. Per §7, exhausting the list
// without a match is ErrNoCompatibleSig, distinct from a single explicit
// mismatch.
func (kr *KeyRing) VerifyAny(message string, candidates []Signature) error {
	if len(candidates) == 0 {
		return fmt.Errorf("%w: registry supplied no signatures", corepackerrors.ErrNoCompatibleSig)
	}
	var lastErr error
	for _, c := range candidates {
		if err := kr.VerifySignature(message, c.KeyID, c.Sig); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}
	return fmt.Errorf("%w: %v", corepackerrors.ErrNoCompatibleSig, lastErr)
}

// Signature is a single (keyid, base64 signature) candidate as published
// alongside a registry version's dist metadata.
type Signature struct {
	KeyID string
	Sig   string
}
