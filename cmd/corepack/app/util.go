package app

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/corepack-go/corepack/pkg/fileutils"
)

func currentDir() (string, error) {
	return os.Getwd()
}

// setPackageManagerField round-trips raw through a generic map to set its
// packageManager field. gjson (the pack's JSON library elsewhere in this
// codebase) is read-only; there's no in-place JSON patch library in the
// example pack, so this one write path uses the standard library's
// encoding/json directly rather than reach for an unrelated new
// dependency for a single field update.
func setPackageManagerField(raw []byte, spec string) ([]byte, error) {
	var doc map[string]any
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	doc["packageManager"] = spec

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize manifest: %w", err)
	}
	return append(out, '\n'), nil
}

func writeManifest(path string, data []byte) error {
	return fileutils.AtomicWriteFile(path, data, 0o644)
}
