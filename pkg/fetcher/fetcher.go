// Package fetcher implements C9: downloading a resolved tool's tarball,
// verifying it against the expected integrity, and installing it into the
// cache under the atomic extract-then-rename discipline shared with C3.
package fetcher

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/corepack-go/corepack/pkg/cache"
	"github.com/corepack-go/corepack/pkg/corepackerrors"
	"github.com/corepack-go/corepack/pkg/integrity"
	"github.com/corepack-go/corepack/pkg/logger"
	"github.com/corepack-go/corepack/pkg/toolspec"
)

// Request is everything C9 needs to materialize one cache entry: where to
// download from, and what digest the bytes must match once downloaded.
type Request struct {
	Name         toolspec.Name
	ExactVersion string
	TarballURL   string
	Digest       integrity.Digest
	NetworkEnabled bool
	DownloadPrompt bool
}

// Ensure returns the cache directory for req, downloading and installing it
// first if it isn't already present. It implements the full 8-step
// protocol from the fetcher/installer design: cache-hit short circuit,
// download notice, streamed hash, mismatch handling, extract-to-temp,
// atomic rename, .ready write, offline degradation.
func Ensure(ctx context.Context, c *cache.Cache, client *http.Client, req Request) (string, error) {
	dest := c.EntryDir(req.Name, req.ExactVersion)
	if c.IsReady(req.Name, req.ExactVersion) {
		return dest, nil
	}

	if !req.NetworkEnabled {
		return "", fmt.Errorf("%s@%s: %w", req.Name, req.ExactVersion, corepackerrors.ErrNetworkDisabled)
	}

	if req.DownloadPrompt {
		fmt.Fprintf(os.Stderr, "Preparing %s@%s for first use...\n", req.Name, req.ExactVersion)
	}

	tempDir, err := c.TempInstallDir(req.Name, req.ExactVersion)
	if err != nil {
		return "", err
	}
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.RemoveAll(tempDir)
		}
	}()

	if err := downloadAndExtract(ctx, client, req, tempDir); err != nil {
		return "", err
	}

	if err := c.Commit(req.Name, req.ExactVersion, tempDir); err != nil {
		return "", err
	}
	cleanup = false

	logger.Infow("installed tool", "tool", req.Name, "version", req.ExactVersion)
	return dest, nil
}

// downloadAndExtract streams the tarball to a temp file while hashing it
// incrementally, verifies the digest before any bytes reach disk as
// extracted files, then extracts into tempDir. Hash verification
// completing strictly before extraction is the ordering guarantee; holding
// the whole body in a spooled temp file (rather than a tee'd pipe into the
// tar reader) is what makes that ordering simple to get right.
func downloadAndExtract(ctx context.Context, client *http.Client, req Request, tempDir string) error {
	spoolFile, err := os.CreateTemp(tempDir, ".download-*")
	if err != nil {
		return fmt.Errorf("failed to create download spool file: %w", err)
	}
	spoolPath := spoolFile.Name()
	defer func() {
		_ = os.Remove(spoolPath)
	}()

	if err := streamToFile(ctx, client, req, spoolFile); err != nil {
		_ = spoolFile.Close()
		return err
	}
	if err := spoolFile.Close(); err != nil {
		return fmt.Errorf("failed to close download spool file: %w", err)
	}

	archive, err := os.Open(spoolPath)
	if err != nil {
		return fmt.Errorf("failed to reopen download spool file: %w", err)
	}
	defer archive.Close()

	gz, err := gzip.NewReader(archive)
	if err != nil {
		return fmt.Errorf("failed to open tarball as gzip: %w", err)
	}
	defer gz.Close()

	return untar(gz, tempDir)
}

// streamToFile downloads req.TarballURL into dest while hashing every byte
// as it arrives, failing fast on a digest mismatch without ever having
// written a single extracted file.
func streamToFile(ctx context.Context, client *http.Client, req Request, dest *os.File) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.TarballURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build download request for %s: %w", req.TarballURL, err)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", req.TarballURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("download %s returned status %d", req.TarballURL, resp.StatusCode)
	}

	hasher, err := req.Digest.NewHasher()
	if err != nil {
		return err
	}

	if _, err := io.Copy(io.MultiWriter(dest, hasher), resp.Body); err != nil {
		return fmt.Errorf("failed to stream %s: %w", req.TarballURL, err)
	}

	return req.Digest.Verify(hasher.Sum(nil))
}

// untar extracts a tar stream into dest. Paths are cleaned and rejected if
// they would escape dest, guarding against a malicious archive using
// "../" segments.
func untar(r io.Reader, dest string) error {
	tr := tar.NewReader(r)
	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read tar header: %w", err)
		}

		target, err := safeJoin(dest, header.Name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", target, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("failed to prepare %s: %w", target, err)
			}
			if err := writeTarFile(tr, target, header); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("failed to prepare %s: %w", target, err)
			}
			if err := os.Symlink(header.Linkname, target); err != nil {
				return fmt.Errorf("failed to create symlink %s: %w", target, err)
			}
		default:
			// Device files, fifos, etc. are never part of a package
			// manager's published tarball; skip rather than fail.
			logger.Debugw("skipping unsupported tar entry", "name", header.Name, "type", header.Typeflag)
		}
	}
}

func writeTarFile(tr *tar.Reader, target string, header *tar.Header) error {
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(header.Mode))
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", target, err)
	}
	if _, err := io.Copy(out, tr); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to write %s: %w", target, err)
	}
	return out.Close()
}

// ArchiveEntry identifies one tool+version InstallArchive committed into
// the cache.
type ArchiveEntry struct {
	Name         toolspec.Name
	ExactVersion string
}

// InstallArchive extracts a pack archive (as written by the pack command)
// into the cache, committing each name/exact-version subtree it contains
// through the same TempInstallDir-then-Commit path Ensure uses for a
// network install. The archive's packed "corepack" executable entry is
// skipped; it is not a cache entry. Because both paths end at the same
// Commit call over the same directory layout, packing a tool and then
// installing the resulting archive leaves byte-identical cache entries to
// installing that tool directly.
func InstallArchive(c *cache.Cache, archivePath string) ([]ArchiveEntry, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", archivePath, err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s as gzip: %w", archivePath, err)
	}
	defer gz.Close()

	if err := os.MkdirAll(c.Home(), 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", corepackerrors.ErrCacheReadonly, err)
	}
	staging, err := os.MkdirTemp(c.Home(), ".unpack-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	if err := untar(gz, staging); err != nil {
		return nil, err
	}

	toolDirs, err := os.ReadDir(staging)
	if err != nil {
		return nil, fmt.Errorf("failed to read extracted archive: %w", err)
	}

	var installed []ArchiveEntry
	for _, toolDir := range toolDirs {
		if !toolDir.IsDir() {
			continue // the packed "corepack" executable; not a cache entry
		}
		name := toolspec.Name(toolDir.Name())
		versionDirs, err := os.ReadDir(filepath.Join(staging, toolDir.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read extracted archive: %w", err)
		}
		for _, versionDir := range versionDirs {
			if !versionDir.IsDir() {
				continue
			}
			version := versionDir.Name()
			src := filepath.Join(staging, toolDir.Name(), versionDir.Name())
			if err := commitExtractedDir(c, name, version, src); err != nil {
				return nil, err
			}
			installed = append(installed, ArchiveEntry{Name: name, ExactVersion: version})
			logger.Infow("installed tool from archive", "tool", name, "version", version)
		}
	}
	return installed, nil
}

// commitExtractedDir moves src (an already-extracted name/version tree,
// .ready marker included) into a fresh TempInstallDir and commits it,
// mirroring the rename-then-commit discipline Ensure uses for a freshly
// downloaded tarball.
func commitExtractedDir(c *cache.Cache, name toolspec.Name, version, src string) error {
	tempDir, err := c.TempInstallDir(name, version)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(tempDir); err != nil {
		return fmt.Errorf("failed to prepare staging directory: %w", err)
	}
	if err := os.Rename(src, tempDir); err != nil {
		return fmt.Errorf("failed to stage %s@%s: %w", name, version, err)
	}
	return c.Commit(name, version, tempDir)
}

func safeJoin(base, name string) (string, error) {
	cleaned := filepath.Join(base, filepath.FromSlash(name))
	rel, err := filepath.Rel(base, cleaned)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return "", fmt.Errorf("tar entry %q escapes extraction root", name)
	}
	return cleaned, nil
}
