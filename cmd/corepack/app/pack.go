package app

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
	"github.com/spf13/cobra"

	"github.com/corepack-go/corepack/pkg/engine"
	"github.com/corepack-go/corepack/pkg/env"
	"github.com/corepack-go/corepack/pkg/specparser"
)

var packOutput string

var packCmd = &cobra.Command{
	Use:   "pack <spec>...",
	Short: "Bundle tools and the shim itself into a redistributable archive",
	Long: `Resolves and installs each spec the same way install would, then writes
corepack.tgz containing the current executable at the archive root plus
one name/exact-version subtree per packed spec, laid out identically to a
cache entry so that extracting it and running install -g on the result
reproduces the same cache bytes as a direct install.`,
	Args: cobra.MinimumNArgs(1),
	RunE: packCmdFunc,
}

func init() {
	packCmd.Flags().StringVarP(&packOutput, "output", "o", "corepack.tgz", "path to write the archive to")
}

func packCmdFunc(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	e := env.Load(".")

	eng, err := engine.New(e)
	if err != nil {
		return err
	}

	var entryDirs []string
	for _, spec := range args {
		name, expr, err := specparser.ParseNameAtSpec(spec)
		if err != nil {
			return err
		}
		res, err := eng.ResolveSpec(ctx, name, expr)
		if err != nil {
			return err
		}
		dest, _, err := eng.ResolveAndInstall(ctx, res)
		if err != nil {
			return err
		}
		entryDirs = append(entryDirs, dest)
	}

	selfPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to locate current executable: %w", err)
	}

	if err := writeArchive(packOutput, selfPath, eng.Cache.Home(), entryDirs); err != nil {
		return err
	}

	fmt.Printf("Wrote %s\n", packOutput)
	return nil
}

func writeArchive(outputPath, selfPath, cacheHome string, entryDirs []string) error {
	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", outputPath, err)
	}
	defer out.Close()

	gz := gzip.NewWriter(out)
	defer gz.Close()
	tw := tar.NewWriter(gz)
	defer tw.Close()

	if err := addFileToTar(tw, selfPath, "corepack"); err != nil {
		return err
	}

	for _, dir := range entryDirs {
		rel, err := filepath.Rel(cacheHome, dir)
		if err != nil {
			return fmt.Errorf("failed to relativize cache entry %s: %w", dir, err)
		}
		if err := addDirToTar(tw, dir, rel); err != nil {
			return err
		}
	}
	return nil
}

func addFileToTar(tw *tar.Writer, srcPath, archiveName string) error {
	info, err := os.Stat(srcPath)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", srcPath, err)
	}
	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	header.Name = archiveName
	if err := tw.WriteHeader(header); err != nil {
		return err
	}
	f, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(tw, f)
	return err
}

func addDirToTar(tw *tar.Writer, root, archivePrefix string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(filepath.Join(archivePrefix, rel))
		if info.IsDir() {
			if rel == "." {
				return nil
			}
			header, err := tar.FileInfoHeader(info, "")
			if err != nil {
				return err
			}
			header.Name = name + "/"
			return tw.WriteHeader(header)
		}
		return addFileToTar(tw, path, name)
	})
}
