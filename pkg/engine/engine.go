// Package engine wires C2 through C10 together into the two operations
// the rest of the system drives: resolving+installing a tool (shared by
// shim dispatch and the `install`/`use` management commands) and running
// the dispatched shim end to end.
package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/adrg/xdg"

	"github.com/corepack-go/corepack/pkg/cache"
	"github.com/corepack-go/corepack/pkg/corepackerrors"
	"github.com/corepack-go/corepack/pkg/dispatcher"
	"github.com/corepack-go/corepack/pkg/env"
	"github.com/corepack-go/corepack/pkg/fetcher"
	"github.com/corepack-go/corepack/pkg/httpx"
	"github.com/corepack-go/corepack/pkg/integrity"
	"github.com/corepack-go/corepack/pkg/logger"
	"github.com/corepack-go/corepack/pkg/registryclient"
	"github.com/corepack-go/corepack/pkg/resolver"
	"github.com/corepack-go/corepack/pkg/specparser"
	"github.com/corepack-go/corepack/pkg/toolspec"
)

const defaultRegistry = "https://registry.npmjs.org"

// Engine holds everything derived from the environment once per process:
// the cache root, registry client, and integrity key ring.
type Engine struct {
	Env        env.Reader
	Cache      *cache.Cache
	HTTPClient *http.Client
	Registry   *registryclient.Client
	KeyRing    *integrity.KeyRing

	NetworkEnabled   bool
	DefaultToLatest  bool
	DownloadPrompt   bool
	UnsafeCustomURLs bool
}

// New builds an Engine from the resolved environment. KeyRing is left nil
// (no signature checking) when COREPACK_INTEGRITY_KEYS is unset, empty, or
// "0"; any other value is parsed as a key ring.
func New(e env.Reader) (*Engine, error) {
	home := e.Getenv("COREPACK_HOME")
	if home == "" {
		var err error
		home, err = defaultHome()
		if err != nil {
			return nil, err
		}
	}

	networkEnabled := e.Getenv("COREPACK_ENABLE_NETWORK") != "0"

	builder := httpx.NewBuilder()
	if token := e.Getenv("COREPACK_NPM_TOKEN"); token != "" {
		builder = builder.WithBearerToken(token)
	} else if user := e.Getenv("COREPACK_NPM_USER"); user != "" {
		builder = builder.WithBasicAuth(user, e.Getenv("COREPACK_NPM_PASSWORD"))
	}
	httpClient := builder.Build()

	registryURL := e.Getenv("COREPACK_NPM_REGISTRY")
	if registryURL == "" {
		registryURL = defaultRegistry
	}

	var keyRing *integrity.KeyRing
	if raw, ok := e.LookupEnv("COREPACK_INTEGRITY_KEYS"); ok && raw != "" && raw != "0" {
		var err error
		keyRing, err = integrity.ParseKeyRing([]byte(raw))
		if err != nil {
			return nil, err
		}
	}

	downloadPrompt := false
	if pe, ok := e.(interface{ ProcessOnly(string) (string, bool) }); ok {
		if v, ok := pe.ProcessOnly("COREPACK_ENABLE_DOWNLOAD_PROMPT"); ok {
			downloadPrompt = v != "0" && v != ""
		}
	}

	return &Engine{
		Env:              e,
		Cache:            cache.New(home),
		HTTPClient:       httpClient,
		Registry:         registryclient.New(registryURL, httpClient, networkEnabled),
		KeyRing:          keyRing,
		NetworkEnabled:   networkEnabled,
		DefaultToLatest:  e.Getenv("COREPACK_DEFAULT_TO_LATEST") == "1",
		DownloadPrompt:   downloadPrompt,
		UnsafeCustomURLs: e.Getenv("COREPACK_ENABLE_UNSAFE_CUSTOM_URLS") == "1",
	}, nil
}

// defaultHome follows the XDG base directory spec via the same library
// the teacher uses for its own config/data paths, anchoring the cache
// under $XDG_CACHE_HOME (or its platform-specific equivalent).
func defaultHome() (string, error) {
	dir, err := xdg.CacheFile(filepath.Join("corepack", ".keep"))
	if err != nil {
		return "", fmt.Errorf("failed to determine cache directory: %w", err)
	}
	return filepath.Dir(dir), nil
}

// ResolveAndInstall runs C6 (via resolver.Resolve, already performed by the
// caller) and then C7/C8/C9: if the resolution doesn't already match a
// ready cache entry, look up the version's dist metadata, verify it, and
// install it. It returns the cache entry directory and the resolved
// toolspec.Entry describing its bin layout.
func (eng *Engine) ResolveAndInstall(ctx context.Context, res resolver.Resolution) (string, toolspec.Entry, error) {
	entry, known := toolspec.Lookup(res.Name)
	if !known {
		return "", toolspec.Entry{}, fmt.Errorf("%s: %w", res.Name, corepackerrors.ErrSpecSyntax)
	}

	if eng.Cache.IsReady(res.Name, res.ExactVersion) {
		return eng.Cache.EntryDir(res.Name, res.ExactVersion), entry, nil
	}

	tarballURL, digest, err := eng.resolveArtifact(ctx, entry, res)
	if err != nil {
		return "", toolspec.Entry{}, err
	}

	dest, err := fetcher.Ensure(ctx, eng.Cache, eng.HTTPClient, fetcher.Request{
		Name:           res.Name,
		ExactVersion:   res.ExactVersion,
		TarballURL:     tarballURL,
		Digest:         digest,
		NetworkEnabled: eng.NetworkEnabled,
		DownloadPrompt: eng.DownloadPrompt,
	})
	if err != nil {
		return "", toolspec.Entry{}, err
	}
	return dest, entry, nil
}

// resolveArtifact decides the tarball URL and expected digest for res. If
// the project pinned its own integrity suffix, that digest is authoritative
// and the signature check is bypassed entirely (the user asserted bit-exact
// content); the tarball URL is still looked up in the registry document,
// falling back to the entry's static template when the document cannot be
// fetched or has no dist URL for that version.
func (eng *Engine) resolveArtifact(ctx context.Context, entry toolspec.Entry, res resolver.Resolution) (string, integrity.Digest, error) {
	if res.Integrity != nil {
		digest, err := integrity.ParseDigest(res.Integrity.Algo + "." + res.Integrity.Hex)
		if err != nil {
			return "", integrity.Digest{}, err
		}

		url, err := eng.tarballURLFor(ctx, entry, res.ExactVersion)
		if err != nil {
			return "", integrity.Digest{}, err
		}
		return url, digest, nil
	}

	doc, err := eng.Registry.FetchDocument(ctx, entry.RegistryPackage)
	if err != nil {
		return "", integrity.Digest{}, err
	}
	selected, err := doc.SelectExact(res.ExactVersion)
	if err != nil {
		return "", integrity.Digest{}, err
	}

	digest, err := integrity.ParseDigest(selected.Dist.Integrity)
	if err != nil {
		return "", integrity.Digest{}, err
	}

	if err := eng.verifySignature(entry, res.ExactVersion, selected); err != nil {
		return "", integrity.Digest{}, err
	}

	url := selected.Dist.Tarball
	if url == "" {
		url = registryclient.TarballTemplate(entry, res.ExactVersion)
	}
	return url, digest, nil
}

func (eng *Engine) tarballURLFor(ctx context.Context, entry toolspec.Entry, version string) (string, error) {
	doc, err := eng.Registry.FetchDocument(ctx, entry.RegistryPackage)
	if err == nil {
		if selected, selErr := doc.SelectExact(version); selErr == nil && selected.Dist.Tarball != "" {
			return selected.Dist.Tarball, nil
		}
	}
	return registryclient.TarballTemplate(entry, version), nil
}

// verifySignature checks the registry-published detached signatures over
// "<package>@<version>:<integrity>" against the configured key ring. No
// built-in keys are shipped: an unset COREPACK_INTEGRITY_KEYS leaves the
// KeyRing nil just like an explicit empty or "0" value, and a nil KeyRing
// skips the check entirely.
func (eng *Engine) verifySignature(entry toolspec.Entry, version string, selected registryclient.Resolved) error {
	if eng.KeyRing == nil {
		return nil
	}
	message := fmt.Sprintf("%s@%s:%s", entry.RegistryPackage, version, selected.Dist.Integrity)
	candidates := make([]integrity.Signature, 0, len(selected.Dist.Signatures))
	for _, s := range selected.Dist.Signatures {
		candidates = append(candidates, integrity.Signature{KeyID: s.KeyID, Sig: s.Sig})
	}
	return eng.KeyRing.VerifyAny(message, candidates)
}

// RecordSuccess updates the lastKnownGood pin after a successful dispatch.
// It leaves an existing pin untouched when the new version has a different
// major; within the same major the pin moves to the new version, whether
// higher or lower.
func (eng *Engine) RecordSuccess(res resolver.Resolution) {
	pin := eng.Cache.LastKnownGood()
	current, ok := pin.Get(res.Name)
	if ok && majorOf(current) != majorOf(res.ExactVersion) {
		return
	}
	pin.Set(res.Name, res.ExactVersion)
}

func majorOf(version string) string {
	for i, c := range version {
		if c == '.' {
			return version[:i]
		}
	}
	return version
}

// RunShim resolves, installs if needed, dispatches, and updates the
// last-known-good pin on a clean exit. commandName is the name the shim
// was invoked as, e.g. "npx" or "yarnpkg" (used by the dispatcher to pick
// the right script/alias); fullArgs is everything
// after the invoked binary name, unparsed.
func RunShim(ctx context.Context, eng *Engine, res resolver.Resolution, commandName string, fullArgs []string) (int, error) {
	dest, entry, err := eng.ResolveAndInstall(ctx, res)
	if err != nil {
		return 1, err
	}
	logger.Debugw("dispatching", "tool", res.Name, "version", res.ExactVersion, "command", commandName)

	code, err := dispatcher.Run(entry, dest, commandName, fullArgs)
	if err != nil {
		return code, err
	}
	if code == 0 {
		eng.RecordSuccess(res)
	}
	return code, nil
}

// ResolveSpec turns a CLI-form "name[@versionOrRange]" expression into a
// concrete Resolution, resolving a range or dist-tag against the registry
// per §4.4 (CLI form is the one locator where that's legal). It does not
// install anything; call ResolveAndInstall on the result for that.
func (eng *Engine) ResolveSpec(ctx context.Context, name toolspec.Name, expr specparser.VersionExpression) (resolver.Resolution, error) {
	if expr.Kind == specparser.ExprExact {
		res := resolver.Resolution{Name: name, ExactVersion: expr.Exact}
		if expr.IntegrityAlgo != "" {
			res.Integrity = &resolver.Integrity{Algo: expr.IntegrityAlgo, Hex: expr.IntegrityHex}
		}
		return res, nil
	}

	entry, known := toolspec.Lookup(name)
	if !known {
		return resolver.Resolution{}, fmt.Errorf("%s: %w", name, corepackerrors.ErrSpecSyntax)
	}

	doc, err := eng.Registry.FetchDocument(ctx, entry.RegistryPackage)
	if err != nil {
		return resolver.Resolution{}, err
	}

	var selected registryclient.Resolved
	switch expr.Kind {
	case specparser.ExprTag:
		selected, err = doc.SelectTag(expr.Range)
	default:
		selected, err = doc.SelectRange(expr.Range)
	}
	if err != nil {
		return resolver.Resolution{}, err
	}

	return resolver.Resolution{Name: name, ExactVersion: selected.Version}, nil
}

// IsWarnMismatch reports whether err is the non-fatal devEngines warning
// produced by C6, and returns it if so.
func IsWarnMismatch(err error) (*resolver.WarnMismatch, bool) {
	var warn *resolver.WarnMismatch
	if errors.As(err, &warn) {
		return warn, true
	}
	return nil, false
}
