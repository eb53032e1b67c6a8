package main

import (
	"fmt"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-pack/files"
	"github.com/wippyai/wasm-pack/internal/config"
	"github.com/wippyai/wasm-pack/js"
	"github.com/wippyai/wasm-pack/loader"
	"github.com/wippyai/wasm-pack/pack"
	"github.com/wippyai/wasm-pack/python"
)

// language is a binding target selectable from the command line.
type language struct {
	name     string
	alias    string
	short    string
	generate func(pkg *pack.Package, cfg config.Config) (*files.Files, error)
}

var javascript = language{
	name:  "javascript",
	alias: "js",
	short: "Generate an npm package",
	generate: func(pkg *pack.Package, cfg config.Config) (*files.Files, error) {
		return js.Generate(pkg, js.Options{WASIVersion: cfg.WASIVersion})
	},
}

var pythonLang = language{
	name:  "python",
	alias: "py",
	short: "Generate a Python package",
	generate: func(pkg *pack.Package, _ config.Config) (*files.Files, error) {
		return python.Generate(pkg, python.Options{})
	},
}

func newGenerateCmd(a *app, lang language) *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:     lang.name + " <input>",
		Aliases: []string{lang.alias},
		Short:   lang.short,
		Long: lang.short + ` from a WebAssembly container.

The input is either a container file or a directory with a wasmer.toml.
Generated files go to --out-dir, which defaults to "<namespace>/<name>".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("out-dir") {
				outDir = a.cfg.OutDir
			}
			return a.generate(cmd, lang, args[0], outDir)
		},
	}

	cmd.Flags().StringVarP(&outDir, "out-dir", "o", "", "directory to write the package to")
	return cmd
}

func (a *app) generate(cmd *cobra.Command, lang language, input, outDir string) error {
	pkg, err := loader.New().LoadPath(input)
	if err != nil {
		return err
	}

	tree, err := lang.generate(pkg, a.cfg)
	if err != nil {
		return err
	}

	if outDir == "" {
		outDir = filepath.FromSlash(pkg.Metadata().Name.String())
	}
	if err := tree.SaveToDisk(outDir); err != nil {
		return err
	}

	var size uint64
	for _, f := range tree.All() {
		size += uint64(f.Len())
	}

	a.log.Info("generated package",
		zap.String("language", lang.name),
		zap.String("package", pkg.Metadata().Name.String()),
		zap.String("out_dir", outDir))

	p := painter{enabled: isTerminal(cmd.OutOrStdout())}
	fmt.Fprintf(cmd.OutOrStdout(), "%s Wrote %d files (%s) for %s to %s\n",
		p.paint(successStyle, "✓"),
		tree.Len(),
		humanize.Bytes(size),
		p.paint(headingStyle, pkg.Metadata().Name.String()+"@"+pkg.Metadata().Version),
		outDir)
	return nil
}
