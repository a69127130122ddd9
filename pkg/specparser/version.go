package specparser

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/corepack-go/corepack/pkg/corepackerrors"
	"github.com/corepack-go/corepack/pkg/toolspec"
)

var integritySuffix = regexp.MustCompile(`^(.*?)\+([a-z0-9]+)\.([0-9a-fA-F]+)$`)

// ParseNameAtSpec splits a "name@version-expression" string (as seen in the
// packageManager field, a one-shot "npm@8.1.0 install" invocation, or the
// `use` subcommand's argument) into a tool name and a VersionExpression.
func ParseNameAtSpec(s string) (toolspec.Name, VersionExpression, error) {
	at := strings.LastIndex(s, "@")
	if at <= 0 {
		return "", VersionExpression{}, fmt.Errorf("%q is not a name@version expression: %w", s, corepackerrors.ErrSpecSyntax)
	}
	name := toolspec.Name(s[:at])
	rest := s[at+1:]

	expr, err := ParseVersionExpression(rest, true)
	if err != nil {
		return "", VersionExpression{}, err
	}
	return name, expr, nil
}

// ParseVersionExpression classifies a raw version string into one of the
// four VersionExpression shapes. allowURL gates whether a bare URL is
// legal here at all (§4.6: URLs are only legal for unknown tools, or under
// the unsafe-custom-urls escape hatch); callers that disallow it pass
// false and get URLForKnownTool instead of an ExprURL result.
func ParseVersionExpression(raw string, allowURL bool) (VersionExpression, error) {
	raw = strings.TrimSpace(raw)

	if strings.Contains(raw, "://") {
		if !allowURL {
			return VersionExpression{}, fmt.Errorf("%s: %w", raw, corepackerrors.ErrURLForKnownTool)
		}
		return VersionExpression{Kind: ExprURL, URL: raw}, nil
	}

	body := raw
	algo, hex := "", ""
	if m := integritySuffix.FindStringSubmatch(raw); m != nil {
		body, algo, hex = m[1], m[2], m[3]
	}

	if isExactSemver(body) {
		return VersionExpression{
			Kind:          ExprExact,
			Exact:         body,
			IntegrityAlgo: algo,
			IntegrityHex:  hex,
		}, nil
	}

	if algo != "" {
		// An integrity suffix was present but the base wasn't an exact
		// version: illegal combination.
		return VersionExpression{}, fmt.Errorf("%s: %w", raw, corepackerrors.ErrSpecSyntax)
	}

	if isDistTag(body) {
		return VersionExpression{Kind: ExprTag, Range: body}, nil
	}

	return VersionExpression{Kind: ExprRange, Range: body}, nil
}

// isExactSemver reports whether s, once given a leading "v", is a fully
// specified semver the stdlib semver package accepts as canonical input.
func isExactSemver(s string) bool {
	if s == "" {
		return false
	}
	v := s
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return false
	}
	// semver.IsValid accepts partial versions like "v10"; an exact
	// version must carry a minor and patch component.
	return strings.Count(semver.Canonical(v), ".") == 2 && looksFullySpecified(s)
}

func looksFullySpecified(s string) bool {
	core := s
	if i := strings.IndexAny(core, "-+"); i >= 0 {
		core = core[:i]
	}
	return strings.Count(core, ".") == 2
}

var distTagPattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9._-]*$`)

func isDistTag(s string) bool {
	if s == "" || isExactSemver(s) {
		return false
	}
	return distTagPattern.MatchString(s) && !strings.ContainsAny(s, "^~*xX|")
}

// RequireExact rejects anything but an exact version, for locators where a
// range or tag is illegal (§4.6): the project's own packageManager field,
// the global pin, and one-shot name@spec overrides.
func RequireExact(expr VersionExpression) error {
	if expr.Kind != ExprExact {
		return corepackerrors.ErrSpecRange
	}
	return nil
}
