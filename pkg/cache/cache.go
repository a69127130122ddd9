// Package cache implements the content-addressed cache layout (C3):
// <home>/<tool>/<version>/... with a .ready sentinel marking a complete,
// trusted install, plus the lastKnownGood.json pin file guarded by a
// sibling flock so concurrent writers never interleave.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/corepack-go/corepack/pkg/corepackerrors"
	"github.com/corepack-go/corepack/pkg/fileutils"
	"github.com/corepack-go/corepack/pkg/logger"
	"github.com/corepack-go/corepack/pkg/toolspec"
)

const readyMarker = ".ready"
const lockTimeout = 1 * time.Second
const lockPoll = 100 * time.Millisecond

// Cache is rooted at a COREPACK_HOME directory.
type Cache struct {
	home string
}

func New(home string) *Cache {
	return &Cache{home: home}
}

// Home returns the cache root directory.
func (c *Cache) Home() string {
	return c.home
}

// EntryDir returns the directory a given tool+version would live at,
// whether or not it has been installed yet.
func (c *Cache) EntryDir(name toolspec.Name, version string) string {
	return filepath.Join(c.home, string(name), version)
}

// IsReady reports whether a fully installed, trusted entry exists.
func (c *Cache) IsReady(name toolspec.Name, version string) bool {
	_, err := os.Stat(filepath.Join(c.EntryDir(name, version), readyMarker))
	return err == nil
}

// TempInstallDir allocates a fresh scratch directory under the cache root
// for C9 to extract into before the atomic rename into EntryDir.
func (c *Cache) TempInstallDir(name toolspec.Name, version string) (string, error) {
	base := filepath.Join(c.home, string(name))
	if err := os.MkdirAll(base, 0o755); err != nil {
		return "", fmt.Errorf("%w: %v", corepackerrors.ErrCacheReadonly, err)
	}
	dir, err := os.MkdirTemp(base, ".install-"+version+"-*")
	if err != nil {
		return "", fmt.Errorf("%w: %v", corepackerrors.ErrCacheReadonly, err)
	}
	return dir, nil
}

// Commit atomically installs tempDir as the entry for name/version and
// writes the .ready sentinel last, per the ordering guarantee that .ready
// only ever appears after every file is already in place.
func (c *Cache) Commit(name toolspec.Name, version, tempDir string) error {
	dest := c.EntryDir(name, version)
	if err := fileutils.AtomicInstallDir(tempDir, dest); err != nil {
		return err
	}
	readyPath := filepath.Join(dest, readyMarker)
	if err := fileutils.AtomicWriteFile(readyPath, []byte(time.Now().UTC().Format(time.RFC3339)), 0o644); err != nil {
		// Another installer may have already raced us to completion and
		// removed its own tempDir's sibling; a missing dest at this point
		// is not possible since AtomicInstallDir just guaranteed it exists.
		return fmt.Errorf("failed to write ready marker: %w", err)
	}
	return nil
}

// LastKnownGood is the {tool: exactVersion} pin file.
type LastKnownGood struct {
	c *Cache
}

func (c *Cache) LastKnownGood() *LastKnownGood {
	return &LastKnownGood{c: c}
}

func (l *LastKnownGood) path() string {
	return filepath.Join(l.c.home, "lastKnownGood.json")
}

// Get reads the current pin for name. A missing or unparsable file is
// never an error; it degrades to "no pin".
func (l *LastKnownGood) Get(name toolspec.Name) (string, bool) {
	pins, err := l.readAll()
	if err != nil {
		logger.Warnw("lastKnownGood.json is unreadable, treating as empty", "error", err)
		return "", false
	}
	v, ok := pins[string(name)]
	return v, ok
}

func (l *LastKnownGood) readAll() (map[string]string, error) {
	data, err := os.ReadFile(l.path())
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, err
	}
	var pins map[string]string
	if err := json.Unmarshal(data, &pins); err != nil {
		return map[string]string{}, nil
	}
	return pins, nil
}

// Set updates the pin for name to version, guarded by a sibling flock. A
// lock that can't be acquired within lockTimeout degrades to a logged
// warning rather than a fatal error: the pin update is best-effort.
func (l *LastKnownGood) Set(name toolspec.Name, version string) {
	lockPath := l.path() + ".lock"
	fileLock := flock.New(lockPath)

	lockCtx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()

	locked, err := fileLock.TryLockContext(lockCtx, lockPoll)
	if err != nil || !locked {
		logger.Warnw("could not acquire lastKnownGood.json lock, skipping pin update", "tool", name)
		return
	}
	defer fileLock.Unlock()

	pins, err := l.readAll()
	if err != nil {
		pins = map[string]string{}
	}
	pins[string(name)] = version

	data, err := json.MarshalIndent(pins, "", "  ")
	if err != nil {
		logger.Warnw("failed to marshal lastKnownGood.json, skipping pin update", "error", err)
		return
	}
	if err := fileutils.AtomicWriteFile(l.path(), data, 0o644); err != nil {
		logger.Warnw("failed to write lastKnownGood.json, skipping pin update", "error", err)
	}
}
