package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/corepack-go/corepack/pkg/engine"
	"github.com/corepack-go/corepack/pkg/env"
	"github.com/corepack-go/corepack/pkg/fetcher"
	"github.com/corepack-go/corepack/pkg/locator"
	"github.com/corepack-go/corepack/pkg/resolver"
	"github.com/corepack-go/corepack/pkg/specparser"
)

var installGlobal bool

var installCmd = &cobra.Command{
	Use:   "install [<spec>...]",
	Short: "Install one or more tools into the cache",
	Long: `With no arguments, installs the tool(s) pinned by the project found by
ascending from the current directory. With one or more name[@version]
arguments, installs exactly those, resolving a range or dist-tag against
the registry.`,
	RunE: installCmdFunc,
}

func init() {
	installCmd.Flags().BoolVarP(&installGlobal, "global", "g", false, "also update the global last-known-good pin")
}

func installCmdFunc(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	e := env.Load(".")

	eng, err := engine.New(e)
	if err != nil {
		return err
	}

	if len(args) == 1 && isArchivePath(args[0]) {
		return installFromArchive(eng, args[0])
	}

	specs := args
	if len(specs) == 0 {
		specs, err = pinnedSpecsFromProject()
		if err != nil {
			return err
		}
		if len(specs) == 0 {
			return fmt.Errorf("no pinned package manager found in the current project")
		}
	}

	for _, spec := range specs {
		name, expr, err := specparser.ParseNameAtSpec(spec)
		if err != nil {
			return err
		}

		res, err := eng.ResolveSpec(ctx, name, expr)
		if err != nil {
			return err
		}

		if _, _, err := eng.ResolveAndInstall(ctx, res); err != nil {
			return err
		}
		fmt.Printf("Installed %s@%s\n", res.Name, res.ExactVersion)

		if installGlobal {
			eng.RecordSuccess(res)
		}
	}
	return nil
}

// isArchivePath reports whether arg names an existing file with an
// archive extension rather than a name[@version] spec; no valid
// package-manager spec ever ends in one of these.
func isArchivePath(arg string) bool {
	switch strings.ToLower(filepath.Ext(arg)) {
	case ".tgz", ".tar", ".gz":
	default:
		return false
	}
	info, err := os.Stat(arg)
	return err == nil && !info.IsDir()
}

// installFromArchive extracts and commits the cache entries bundled into
// a pack archive, the install-side half of the pack/install round trip:
// every name/exact-version subtree pack wrote lands in the cache exactly
// as it would have from a direct install.
func installFromArchive(eng *engine.Engine, archivePath string) error {
	installed, err := fetcher.InstallArchive(eng.Cache, archivePath)
	if err != nil {
		return err
	}
	if len(installed) == 0 {
		return fmt.Errorf("%s: archive contains no packed tools", archivePath)
	}
	for _, entry := range installed {
		fmt.Printf("Installed %s@%s\n", entry.Name, entry.ExactVersion)
		if installGlobal {
			eng.RecordSuccess(resolver.Resolution{Name: entry.Name, ExactVersion: entry.ExactVersion})
		}
	}
	return nil
}

func pinnedSpecsFromProject() ([]string, error) {
	cwd, err := currentDir()
	if err != nil {
		return nil, err
	}
	found, err := locator.Locate(cwd)
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, nil
	}

	reqs, err := specparser.ManifestRequests(found.Path, found.Raw)
	if err != nil {
		return nil, err
	}

	var specs []string
	for _, r := range reqs {
		if r.Locator.Kind != specparser.LocatorProjectManifest {
			continue
		}
		specs = append(specs, fmt.Sprintf("%s@%s", r.Name, r.Version.Exact))
	}
	return specs, nil
}
