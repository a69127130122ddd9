// Package corepackerrors defines the error taxonomy shared across every
// resolution, verification, and dispatch stage, so callers can classify a
// failure with errors.Is/errors.As instead of matching message text.
package corepackerrors

import "errors"

// Kind identifies a class of error independent of the message text that
// ends up on stderr.
type Kind int

const (
	// KindUnknown is the zero value; never returned deliberately.
	KindUnknown Kind = iota
	KindSpecSyntax
	KindSpecRange
	KindDevEnginesShape
	KindNameMismatch
	KindDevEnginesMismatch
	KindURLForKnownTool
	KindHashMismatch
	KindSignatureFail
	KindNetworkDisabled
	KindCacheReadonly
)

// Sentinel errors, one per row of the error-kind table. Component code
// wraps one of these with fmt.Errorf("...: %w", ErrX) so the kind survives
// across package boundaries.
var (
	ErrSpecSyntax         = errors.New("expected a semver version")
	ErrSpecRange          = errors.New("expected a semver version")
	ErrDevEnginesShape    = errors.New("devEngines.packageManager is malformed")
	ErrNameMismatch       = errors.New("project is configured to use a different package manager")
	ErrDevEnginesMismatch = errors.New("does not match the value defined in \"devEngines.packageManager\"")
	ErrURLForKnownTool    = errors.New("Illegal use of URL for known package manager")
	ErrHashMismatch       = errors.New("Mismatch hashes")
	ErrSignatureFail      = errors.New("Signature does not match")
	ErrNoCompatibleSig    = errors.New("No compatible signature found")
	ErrNetworkDisabled    = errors.New("Network access disabled by the environment")
	ErrCacheReadonly      = errors.New("cache root is read-only")
)

var kindBySentinel = map[error]Kind{
	ErrSpecSyntax:         KindSpecSyntax,
	ErrSpecRange:          KindSpecRange,
	ErrDevEnginesShape:    KindDevEnginesShape,
	ErrNameMismatch:       KindNameMismatch,
	ErrDevEnginesMismatch: KindDevEnginesMismatch,
	ErrURLForKnownTool:    KindURLForKnownTool,
	ErrHashMismatch:       KindHashMismatch,
	ErrSignatureFail:      KindSignatureFail,
	ErrNoCompatibleSig:    KindSignatureFail,
	ErrNetworkDisabled:    KindNetworkDisabled,
	ErrCacheReadonly:      KindCacheReadonly,
}

// ClassOf walks the sentinel table looking for a match via errors.Is. It
// returns KindUnknown for errors that were never wrapped around one of the
// sentinels here (e.g. raw I/O errors from the child process).
func ClassOf(err error) Kind {
	for sentinel, kind := range kindBySentinel {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return KindUnknown
}

// Fatal reports whether a Kind always exits the process non-zero. Only
// DevEnginesShape is a pure warning; CacheReadonly is a silent degrade and
// never even reaches the caller as an error.
func (k Kind) Fatal() bool {
	return k != KindUnknown && k != KindDevEnginesShape && k != KindCacheReadonly
}

func (k Kind) String() string {
	switch k {
	case KindSpecSyntax:
		return "SpecSyntax"
	case KindSpecRange:
		return "SpecRange"
	case KindDevEnginesShape:
		return "DevEnginesShape"
	case KindNameMismatch:
		return "NameMismatch"
	case KindDevEnginesMismatch:
		return "DevEnginesMismatch"
	case KindURLForKnownTool:
		return "URLForKnownTool"
	case KindHashMismatch:
		return "HashMismatch"
	case KindSignatureFail:
		return "SignatureFail"
	case KindNetworkDisabled:
		return "NetworkDisabled"
	case KindCacheReadonly:
		return "CacheReadonly"
	default:
		return "Unknown"
	}
}
