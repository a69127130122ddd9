// Package registryclient implements C7: fetching a package's metadata
// document from the configured registry and selecting the tarball +
// integrity + signatures for a requested exact version, range, or tag.
package registryclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/corepack-go/corepack/pkg/corepackerrors"
	"github.com/corepack-go/corepack/pkg/httpx"
	"github.com/corepack-go/corepack/pkg/toolspec"
)

// VersionDist is the "dist" sub-object of a single version entry.
type VersionDist struct {
	Tarball    string            `json:"tarball"`
	Integrity  string            `json:"integrity"`
	Signatures []VersionSignature `json:"signatures"`
}

// VersionSignature is one detached signature entry as published by the
// registry next to a version's dist info.
type VersionSignature struct {
	KeyID string `json:"keyid"`
	Sig   string `json:"sig"`
}

// VersionEntry is the subset of a registry document's versions[v] object
// this system inspects; everything else in the document is ignored.
type VersionEntry struct {
	Dist VersionDist `json:"dist"`
}

// Document is the subset of a package registry metadata document this
// system consumes.
type Document struct {
	DistTags map[string]string      `json:"dist-tags"`
	Versions map[string]VersionEntry `json:"versions"`
}

// Client fetches and selects registry versions.
type Client struct {
	registryURL    string
	httpClient     *http.Client
	networkEnabled bool
}

// New builds a Client. registryURL is the base registry (no trailing
// slash). networkEnabled gates every call: when false, every method fails
// fast with ErrNetworkDisabled instead of attempting a connection.
func New(registryURL string, httpClient *http.Client, networkEnabled bool) *Client {
	return &Client{registryURL: registryURL, httpClient: httpClient, networkEnabled: networkEnabled}
}

// FetchDocument retrieves and decodes the registry document for pkg.
func (c *Client) FetchDocument(ctx context.Context, pkg string) (*Document, error) {
	if !c.networkEnabled {
		return nil, corepackerrors.ErrNetworkDisabled
	}

	url := fmt.Sprintf("%s/%s", c.registryURL, pkg)
	data, err := httpx.Fetch(ctx, c.httpClient, url, httpx.WithMaxResponseSize(8<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch registry document for %s: %w", pkg, err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse registry document for %s: %w", pkg, err)
	}
	return &doc, nil
}

// Resolved is what selection against a Document yields: the exact
// version plus its dist metadata.
type Resolved struct {
	Version string
	Dist    VersionDist
}

// SelectExact looks up an exact version directly.
func (d *Document) SelectExact(version string) (Resolved, error) {
	entry, ok := d.Versions[version]
	if !ok {
		return Resolved{}, fmt.Errorf("version %s not found in registry document", version)
	}
	return Resolved{Version: version, Dist: entry.Dist}, nil
}

// SelectTag resolves a dist-tag (e.g. "latest") to its pinned version.
func (d *Document) SelectTag(tag string) (Resolved, error) {
	version, ok := d.DistTags[tag]
	if !ok {
		return Resolved{}, fmt.Errorf("dist-tag %q not found in registry document", tag)
	}
	return d.SelectExact(version)
}

// SelectRange resolves the highest version satisfying a semver range.
func (d *Document) SelectRange(rangeExpr string) (Resolved, error) {
	constraint, err := semver.NewConstraint(rangeExpr)
	if err != nil {
		return Resolved{}, fmt.Errorf("invalid range %q: %w", rangeExpr, err)
	}

	var best *semver.Version
	var bestRaw string
	for raw := range d.Versions {
		v, err := semver.NewVersion(raw)
		if err != nil {
			continue
		}
		if !constraint.Check(v) {
			continue
		}
		if best == nil || v.GreaterThan(best) {
			best, bestRaw = v, raw
		}
	}
	if best == nil {
		return Resolved{}, fmt.Errorf("no version satisfies range %q", rangeExpr)
	}
	return d.SelectExact(bestRaw)
}

// TarballTemplate substitutes {{version}} into a registry entry's static
// tarball URL template, used only when the document's own dist.tarball is
// unavailable for the tool (grounded on the builtin-default template in
// the toolspec store for yarn-berry, which is not published to a plain
// npm-style registry document the same way).
func TarballTemplate(entry toolspec.Entry, version string) string {
	return strings.ReplaceAll(entry.TarballTemplate, "{{version}}", version)
}
