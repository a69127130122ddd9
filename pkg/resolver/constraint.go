package resolver

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// constraint wraps a Masterminds/semver range, used only to check a
// devEngines.packageManager.version range against an already-resolved
// exact version (§4.6): it never selects a version itself, that's C7's
// job against the registry's own version list.
type constraint struct {
	c *semver.Constraints
}

func newConstraint(rangeExpr string) (*constraint, error) {
	c, err := semver.NewConstraint(rangeExpr)
	if err != nil {
		return nil, fmt.Errorf("invalid devEngines.packageManager.version range %q: %w", rangeExpr, err)
	}
	return &constraint{c: c}, nil
}

func (c *constraint) satisfies(exactVersion string) (bool, error) {
	v, err := semver.NewVersion(exactVersion)
	if err != nil {
		return false, fmt.Errorf("invalid version %q: %w", exactVersion, err)
	}
	return c.c.Check(v), nil
}
