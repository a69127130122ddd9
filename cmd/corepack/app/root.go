// Package app provides the corepack management command surface: install,
// use, pack, enable, and disable. Shim-mode dispatch never reaches this
// package; main.go routes it away before cobra parses anything.
package app

import (
	"github.com/spf13/cobra"

	"github.com/corepack-go/corepack/pkg/logger"
)

var debugFlag bool

var rootCmd = &cobra.Command{
	Use:               "corepack",
	DisableAutoGenTag: true,
	Short:             "Manage the package managers your projects depend on",
	Long: `corepack resolves, fetches, verifies, and runs the exact version of npm,
pnpm, or yarn a project declares, without requiring that version to be
installed globally ahead of time.`,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.Initialize(debugFlag)
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

// NewRootCmd builds the corepack management command tree.
func NewRootCmd() *cobra.Command {
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "enable debug logging")

	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(useCmd)
	rootCmd.AddCommand(packCmd)
	rootCmd.AddCommand(enableCmd)
	rootCmd.AddCommand(disableCmd)

	return rootCmd
}
