// Package specparser parses a project's declared package-manager version
// out of its manifest: the packageManager string field and the
// devEngines.packageManager object, tolerating the type-polymorphic shapes
// Node manifests allow and ignoring everything else in the document.
package specparser

import "github.com/corepack-go/corepack/pkg/toolspec"

// LocatorKind tags where a SpecRequest's version expression came from.
type LocatorKind int

const (
	LocatorEnv LocatorKind = iota
	LocatorProjectManifest
	LocatorProjectDevEngines
	LocatorGlobalPin
	LocatorBuiltinDefault
)

func (k LocatorKind) String() string {
	switch k {
	case LocatorEnv:
		return "environment variable"
	case LocatorProjectManifest:
		return "package.json#packageManager"
	case LocatorProjectDevEngines:
		return "package.json#devEngines.packageManager"
	case LocatorGlobalPin:
		return "global pin"
	case LocatorBuiltinDefault:
		return "built-in default"
	default:
		return "unknown"
	}
}

// SpecLocator names where a version request originated, kept around only
// for diagnostics and precedence bookkeeping.
type SpecLocator struct {
	Kind LocatorKind
	Path string // file path, when Kind references a file on disk
}

// OnFail controls what happens when a devEngines constraint disagrees with
// the resolved version.
type OnFail string

const (
	OnFailError  OnFail = "error"
	OnFailWarn   OnFail = "warn"
	OnFailIgnore OnFail = "ignore"
)

// ExpressionKind tags which of the four legal shapes a VersionExpression
// holds.
type ExpressionKind int

const (
	ExprExact ExpressionKind = iota
	ExprRange
	ExprTag
	ExprURL
)

// VersionExpression is a tagged sum over the four shapes a version
// declaration may take. Only one of the fields matching Kind is set.
type VersionExpression struct {
	Kind ExpressionKind

	Exact          string // canonical-ish semver, as written
	IntegrityAlgo  string // set only when Exact carries a "+algo.hex" suffix
	IntegrityHex   string

	Range string // semver range or dist-tag text, when Kind == ExprRange/ExprTag

	URL string // when Kind == ExprURL
}

// SpecRequest is one candidate resolution input, produced by C4 from a
// single source (env var, manifest field, devEngines object, ...).
type SpecRequest struct {
	Name    toolspec.Name
	Version VersionExpression
	Locator SpecLocator
	OnFail  OnFail // only meaningful when Locator.Kind == LocatorProjectDevEngines
}
