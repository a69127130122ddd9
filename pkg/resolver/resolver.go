// Package resolver implements C6: combining the environment, project
// manifest(s), global pin, and built-in defaults into a single Resolution,
// enforcing name-mismatch and devEngines-mismatch rules along the way.
package resolver

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/corepack-go/corepack/pkg/cache"
	"github.com/corepack-go/corepack/pkg/corepackerrors"
	"github.com/corepack-go/corepack/pkg/env"
	"github.com/corepack-go/corepack/pkg/locator"
	"github.com/corepack-go/corepack/pkg/specparser"
	"github.com/corepack-go/corepack/pkg/toolspec"
)

// Resolution is the immutable output of resolving one invocation: exactly
// which tool, exact version, and (if known yet) integrity to run.
type Resolution struct {
	Name         toolspec.Name
	ExactVersion string
	Integrity    *Integrity
	// Source is the tarball URL the artifact will be (or was) fetched
	// from. Resolve leaves it empty, and the engine does not fill it in:
	// the URL it locates from the registry is used for the download only
	// and is not stored back on the Resolution.
	Source  string
	Locator specparser.SpecLocator
}

// Integrity is the project- or registry-pinned expected digest.
type Integrity struct {
	Algo string
	Hex  string
}

// Resolve decides what to run for invocationName (the basename the binary
// was invoked as) given the arguments following it. oneShotSpec is the
// "name@version" portion of an argv[0]-style override (a bare version is
// also accepted; the name part, when present, is dropped since
// invocationName already names the tool), or "" when none was given. args is the invocation's own argv (excluding the spec
// prefix), used only to check whether the first token is a transparent
// command that may bypass a name mismatch.
func Resolve(
	e env.Reader,
	c *cache.Cache,
	invocationName toolspec.Name,
	oneShotSpec string,
	startDir string,
	args []string,
) (Resolution, error) {
	projectEnabled := e.Getenv("COREPACK_ENABLE_PROJECT_SPEC") != "0"

	var manifestRequests []specparser.SpecRequest
	var manifestPath string
	if projectEnabled {
		found, err := locator.Locate(startDir)
		if err != nil {
			return Resolution{}, err
		}
		if found != nil {
			manifestPath = found.Path
			reqs, err := specparser.ManifestRequests(found.Path, found.Raw)
			if err != nil {
				return Resolution{}, err
			}
			manifestRequests = reqs
		}
	}

	var pmReq, deReq *specparser.SpecRequest
	for i := range manifestRequests {
		switch manifestRequests[i].Locator.Kind {
		case specparser.LocatorProjectManifest:
			pmReq = &manifestRequests[i]
		case specparser.LocatorProjectDevEngines:
			deReq = &manifestRequests[i]
		}
	}

	// One-shot argv[0] override (e.g. "npm@8.1.0 install") always wins,
	// and is itself required to be an exact version.
	if oneShotSpec != "" {
		versionPart := oneShotSpec
		if at := strings.LastIndex(versionPart, "@"); at > 0 {
			versionPart = versionPart[at+1:]
		}
		expr, err := specparser.ParseVersionExpression(versionPart, false)
		if err != nil {
			return Resolution{}, err
		}
		if err := specparser.RequireExact(expr); err != nil {
			return Resolution{}, err
		}
		return finalize(invocationName, expr, specparser.SpecLocator{Kind: specparser.LocatorEnv}, deReq)
	}

	if pmReq != nil {
		strict := e.Getenv("COREPACK_ENABLE_STRICT") != "0"
		if err := checkNameMismatch(invocationName, pmReq.Name, args, strict); err != nil {
			return Resolution{}, err
		}
		return finalize(invocationName, pmReq.Version, pmReq.Locator, deReq)
	}

	// Only devEngines.packageManager is present: per §4.6, its version must
	// be an exact version to act as the source of the resolution itself
	// (rather than merely an assertion against a packageManager-sourced
	// version); a bare range or tag there is a structured error, and a
	// devEngines entry with no version at all falls through to the pin/
	// default chain below exactly as if devEngines weren't present.
	if deReq != nil {
		switch {
		case deReq.Version.Kind == specparser.ExprExact && deReq.Version.Exact != "":
			strict := e.Getenv("COREPACK_ENABLE_STRICT") != "0"
			if err := checkNameMismatch(invocationName, deReq.Name, args, strict); err != nil {
				return Resolution{}, err
			}
			return finalize(invocationName, deReq.Version, deReq.Locator, nil)
		case deReq.Version.Kind == specparser.ExprRange || deReq.Version.Kind == specparser.ExprTag:
			return Resolution{}, fmt.Errorf("%s: %w", deReq.Version.Range, corepackerrors.ErrSpecRange)
		}
	}

	if globalPin, ok := c.LastKnownGood().Get(invocationName); ok {
		expr := specparser.VersionExpression{Kind: specparser.ExprExact, Exact: globalPin}
		return finalize(invocationName, expr, specparser.SpecLocator{Kind: specparser.LocatorGlobalPin}, deReq)
	}

	entry, known := toolspec.Lookup(invocationName)
	if !known {
		return Resolution{}, fmt.Errorf("%s: %w", invocationName, corepackerrors.ErrSpecSyntax)
	}
	expr, err := specparser.ParseVersionExpression(entry.DefaultVersion, false)
	if err != nil {
		return Resolution{}, err
	}
	_ = manifestPath
	return finalize(invocationName, expr, specparser.SpecLocator{Kind: specparser.LocatorBuiltinDefault}, deReq)
}

func finalize(
	name toolspec.Name,
	expr specparser.VersionExpression,
	loc specparser.SpecLocator,
	deReq *specparser.SpecRequest,
) (Resolution, error) {
	if expr.Kind != specparser.ExprExact {
		return Resolution{}, fmt.Errorf("%s: %w", name, corepackerrors.ErrSpecRange)
	}

	var warnErr error
	if deReq != nil {
		if err := checkDevEngines(name, expr.Exact, *deReq); err != nil {
			var warn *WarnMismatch
			if !errors.As(err, &warn) {
				return Resolution{}, err
			}
			warnErr = err
		}
	}

	res := Resolution{Name: name, ExactVersion: expr.Exact, Locator: loc}
	if expr.IntegrityAlgo != "" {
		res.Integrity = &Integrity{Algo: expr.IntegrityAlgo, Hex: expr.IntegrityHex}
	}
	return res, warnErr
}

func checkNameMismatch(invocationName, manifestName toolspec.Name, args []string, strict bool) error {
	if invocationName == "" || manifestName == invocationName {
		return nil
	}
	// "yarn-classic"/"yarn-berry" are distinct tool names here but both
	// appear as "yarn" in the manifest; compare by registry package, using
	// the manifest name itself as the package when it is not a tool name.
	invEntry, invKnown := toolspec.Lookup(invocationName)
	manEntry, manKnown := toolspec.Lookup(manifestName)
	if invKnown && manKnown && invEntry.RegistryPackage == manEntry.RegistryPackage {
		return nil
	}
	if invKnown && !manKnown && invEntry.RegistryPackage == string(manifestName) {
		return nil
	}

	if !strict {
		return nil
	}

	if invKnown && len(args) > 0 && isTransparentCommand(invEntry, args[0]) {
		return nil
	}

	return fmt.Errorf("This project is configured to use %s: %w", manifestName, corepackerrors.ErrNameMismatch)
}

func isTransparentCommand(entry toolspec.Entry, command string) bool {
	for _, c := range entry.TransparentCommands {
		if c == command {
			return true
		}
	}
	return false
}

func checkDevEngines(name toolspec.Name, exactVersion string, deReq specparser.SpecRequest) error {
	if deReq.Name != "" && deReq.Name != name {
		return nil // devEngines names a different tool; not applicable here
	}

	var satisfied bool
	var checkErr error
	switch deReq.Version.Kind {
	case specparser.ExprExact:
		if deReq.Version.Exact == "" {
			satisfied = true // no version declared; nothing to assert against
		} else {
			satisfied = canonicalSemver(deReq.Version.Exact) == canonicalSemver(exactVersion)
		}
	case specparser.ExprRange:
		satisfied, checkErr = rangeSatisfied(deReq.Version.Range, exactVersion)
	case specparser.ExprTag:
		// A tag-based devEngines constraint can't be checked against an
		// already-resolved exact version without a registry round trip;
		// treat as satisfied here. (When devEngines alone drives the
		// version, Resolve rejects a tag before this check is reached.)
		satisfied = true
	default:
		satisfied = true
	}
	if checkErr != nil {
		return checkErr
	}
	if satisfied {
		return nil
	}

	switch deReq.OnFail {
	case specparser.OnFailIgnore:
		return nil
	case specparser.OnFailWarn:
		return newWarnMismatch(name, exactVersion)
	default:
		return fmt.Errorf("%s: %w", exactVersion, corepackerrors.ErrDevEnginesMismatch)
	}
}

// WarnMismatch is returned (not as a hard error a caller should abort on)
// when devEngines disagrees but onFail is "warn": dispatch should still
// proceed, emitting the wrapped message to stderr prefixed with "!".
type WarnMismatch struct {
	Name    toolspec.Name
	Version string
}

func (w *WarnMismatch) Error() string {
	return fmt.Sprintf("%s@%s %s", w.Name, w.Version, corepackerrors.ErrDevEnginesMismatch.Error())
}

func newWarnMismatch(name toolspec.Name, version string) *WarnMismatch {
	return &WarnMismatch{Name: name, Version: version}
}

func canonicalSemver(v string) string {
	if v == "" {
		return ""
	}
	vv := v
	if vv[0] != 'v' {
		vv = "v" + vv
	}
	if !semver.IsValid(vv) {
		return v
	}
	return semver.Canonical(vv)
}

func rangeSatisfied(rangeExpr, exactVersion string) (bool, error) {
	constraint, err := newConstraint(rangeExpr)
	if err != nil {
		return false, err
	}
	return constraint.satisfies(exactVersion)
}
