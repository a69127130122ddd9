package toolspec

import (
	"encoding/json"
	"fmt"
	"os"
)

// overrideFile is the on-disk shape of a sibling config file that replaces
// the compiled-in table. Validated field by field; a malformed entry is
// rejected wholesale rather than partially merged.
type overrideFile struct {
	Entries []Entry `json:"entries"`
}

// LoadOverride reads path (if it exists) and, if valid, replaces the
// in-memory registry with its contents. A missing file is not an error.
func LoadOverride(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read toolspec override %s: %w", path, err)
	}

	var of overrideFile
	if err := json.Unmarshal(data, &of); err != nil {
		return fmt.Errorf("failed to parse toolspec override %s: %w", path, err)
	}

	for i, e := range of.Entries {
		if e.Name == "" {
			return fmt.Errorf("toolspec override entry %d is missing a name", i)
		}
		if e.DefaultVersion == "" {
			return fmt.Errorf("toolspec override entry %q is missing a defaultVersion", e.Name)
		}
		if len(e.BinEntries) == 0 {
			return fmt.Errorf("toolspec override entry %q has no binEntries", e.Name)
		}
	}

	registry = of.Entries
	return nil
}
