package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/corepack-go/corepack/pkg/engine"
	"github.com/corepack-go/corepack/pkg/env"
	"github.com/corepack-go/corepack/pkg/locator"
	"github.com/corepack-go/corepack/pkg/specparser"
)

var useCmd = &cobra.Command{
	Use:   "use <spec>",
	Short: "Pin the project to a resolved tool version",
	Long: `Resolves name[@versionOrRange] the same way install would, then writes
the resulting name@exact-version into the project manifest's
packageManager field, creating the manifest's directory context from the
current directory if none is found.`,
	Args: cobra.ExactArgs(1),
	RunE: useCmdFunc,
}

func useCmdFunc(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	e := env.Load(".")

	eng, err := engine.New(e)
	if err != nil {
		return err
	}

	name, expr, err := specparser.ParseNameAtSpec(args[0])
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

	cwd, err := currentDir()
	if err != nil {
		return err
	}
	found, err := locator.Locate(cwd)
	if err != nil {
		return err
	}
	manifestPath := cwd + "/package.json"
	raw := []byte("{}")
	if found != nil {
		manifestPath = found.Path
		raw = found.Raw
	}

	updated, err := setPackageManagerField(raw, fmt.Sprintf("%s@%s", res.Name, res.ExactVersion))
	if err != nil {
		return err
	}

	if err := writeManifest(manifestPath, updated); err != nil {
		return err
	}

	fmt.Printf("Pinned %s@%s in %s\n", res.Name, res.ExactVersion, manifestPath)
	return nil
}
