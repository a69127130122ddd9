package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var disableInstallDirectory string

var disableCmd = &cobra.Command{
	Use:   "disable [<tool>...]",
	Short: "Remove entrypoint shims created by enable",
	Long: `Removes the shims enable created for the named tools (every known tool
when none is named) from the install directory, defaulting to the
directory containing the currently running executable.`,
	RunE: disableCmdFunc,
}

func init() {
	disableCmd.Flags().StringVar(&disableInstallDirectory, "install-directory", "", "directory to remove shims from (default: alongside the current executable)")
}

func disableCmdFunc(cmd *cobra.Command, args []string) error {
	entries, err := entriesFor(args)
	if err != nil {
		return err
	}

	dir, err := installDirectory(disableInstallDirectory)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		for _, bin := range entry.BinEntries {
			shimPath := filepath.Join(dir, bin.Command)
			if err := os.Remove(shimPath); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("failed to remove shim %s: %w", shimPath, err)
			}
			fmt.Printf("Disabled %s\n", shimPath)
		}
	}
	return nil
}
