package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/corepack-go/corepack/pkg/toolspec"
)

var enableInstallDirectory string

var enableCmd = &cobra.Command{
	Use:   "enable [<tool>...]",
	Short: "Create entrypoint shims for the managed package managers",
	Long: `Creates one entrypoint per bin alias of each named tool (every known tool
when none is named) in the install directory, each pointing back at the
currently running executable so that invoking it as that name dispatches
through the shim. Defaults to the directory containing the currently
running executable when --install-directory is omitted.`,
	RunE: enableCmdFunc,
}

func init() {
	enableCmd.Flags().StringVar(&enableInstallDirectory, "install-directory", "", "directory to create shims in (default: alongside the current executable)")
}

func enableCmdFunc(cmd *cobra.Command, args []string) error {
	entries, err := entriesFor(args)
	if err != nil {
		return err
	}

	dir, err := installDirectory(enableInstallDirectory)
	if err != nil {
		return err
	}

	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to locate current executable: %w", err)
	}

	for _, entry := range entries {
		for _, bin := range entry.BinEntries {
			shimPath := filepath.Join(dir, bin.Command)
			if err := installShim(self, shimPath); err != nil {
				return fmt.Errorf("failed to create shim %s: %w", shimPath, err)
			}
			fmt.Printf("Enabled %s -> %s\n", shimPath, self)
		}
	}
	return nil
}

func entriesFor(names []string) ([]toolspec.Entry, error) {
	if len(names) == 0 {
		return toolspec.All(), nil
	}
	entries := make([]toolspec.Entry, 0, len(names))
	for _, n := range names {
		entry, ok := toolspec.Lookup(toolspec.Name(n))
		if !ok {
			return nil, fmt.Errorf("unknown tool %q", n)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func installDirectory(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	self, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to locate current executable: %w", err)
	}
	return filepath.Dir(self), nil
}

// installShim points shimPath at self. A symlink is used where the
// platform supports it; a regular file copy is the portable fallback.
func installShim(self, shimPath string) error {
	_ = os.Remove(shimPath)
	if err := os.Symlink(self, shimPath); err == nil {
		return nil
	}
	return copyExecutable(self, shimPath)
}

func copyExecutable(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o755)
}
