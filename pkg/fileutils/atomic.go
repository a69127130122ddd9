// Package fileutils holds filesystem primitives shared by the cache,
// config, and fetcher layers: atomic file writes and atomic directory
// installs, both built on write-to-temp-then-rename.
package fileutils

import (
	"fmt"
	"os"
	"path/filepath"
)

// AtomicWriteFile writes data to path by creating a temp file in the same
// directory, writing and syncing it, then renaming it over path. A reader
// never observes a partially written file. On any failure the temp file is
// removed; path is left untouched.
func AtomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file into place: %w", err)
	}
	return nil
}

// AtomicInstallDir moves the directory at srcDir so that it becomes destDir,
// as a single rename. If destDir already exists (a concurrent installer
// won the race), srcDir is discarded and no error is returned: the caller
// should treat the pre-existing destDir as the installed entry.
func AtomicInstallDir(srcDir, destDir string) error {
	if err := os.Rename(srcDir, destDir); err != nil {
		if os.IsExist(err) {
			_ = os.RemoveAll(srcDir)
			return nil
		}
		if _, statErr := os.Stat(destDir); statErr == nil {
			_ = os.RemoveAll(srcDir)
			return nil
		}
		return fmt.Errorf("failed to install directory atomically: %w", err)
	}
	return nil
}
