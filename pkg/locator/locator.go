// Package locator implements the project locator (C5): walking upward
// from the invocation directory to find the manifest that controls
// resolution, treating anything inside a node_modules segment as opaque.
package locator

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
)

const manifestName = "package.json"

// Found is the result of a successful ascent: the manifest's directory,
// its path, and its raw bytes.
type Found struct {
	Dir  string
	Path string
	Raw  []byte
}

// Locate ascends from startDir looking for the closest package.json that
// declares packageManager or devEngines.packageManager. A manifest whose
// path crosses a node_modules directory segment is never considered. A
// manifest lacking both fields is transparent: the walk continues past it
// as though it weren't there. The ascent stops at the filesystem root, or
// at the first .git directory it finds with no matching manifest alongside
// it (a safety bound against walking indefinitely through pathological
// mounts).
func Locate(startDir string) (*Found, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		if !underNodeModules(dir) {
			path := filepath.Join(dir, manifestName)
			if raw, err := os.ReadFile(path); err == nil {
				if hasRelevantFields(raw) {
					return &Found{Dir: dir, Path: path, Raw: raw}, nil
				}
			} else if !os.IsNotExist(err) {
				return nil, err
			}
		}

		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			break
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return nil, nil
}

// hasRelevantFields reports whether raw declares packageManager or
// devEngines.packageManager; every other manifest field is ignored.
func hasRelevantFields(raw []byte) bool {
	return gjson.GetBytes(raw, "packageManager").Exists() ||
		gjson.GetBytes(raw, "devEngines.packageManager").Exists()
}

func underNodeModules(dir string) bool {
	for _, seg := range strings.Split(filepath.ToSlash(dir), "/") {
		if seg == "node_modules" {
			return true
		}
	}
	return false
}
