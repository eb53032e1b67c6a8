package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/wippyai/wasm-pack/bindgen"
	"github.com/wippyai/wasm-pack/idl"
	"github.com/wippyai/wasm-pack/internal/config"
	"github.com/wippyai/wasm-pack/loader"
	"github.com/wippyai/wasm-pack/pack"
)

type packageSummary struct {
	Name        string           `json:"name"`
	Version     string           `json:"version"`
	Description string           `json:"description,omitempty"`
	Libraries   []librarySummary `json:"libraries"`
	Commands    []commandSummary `json:"commands"`
}

type librarySummary struct {
	Interface string       `json:"interface"`
	Module    string       `json:"module"`
	Abi       string       `json:"abi"`
	Size      int          `json:"size"`
	Functions []string     `json:"functions"`
	Imports   []string     `json:"imports,omitempty"`
	Inspect   *moduleShape `json:"inspect,omitempty"`
}

type commandSummary struct {
	Name    string       `json:"name"`
	Size    int          `json:"size"`
	Inspect *moduleShape `json:"inspect,omitempty"`
}

func newShowCmd(a *app) *cobra.Command {
	var (
		format  string
		inspect bool
	)

	cmd := &cobra.Command{
		Use:   "show <input>",
		Short: "Describe the libraries and commands in a container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("format") {
				format = a.cfg.Format
			}
			cfg := config.Config{Format: format}
			if err := cfg.Validate(); err != nil {
				return err
			}

			pkg, err := loader.New().LoadPath(args[0])
			if err != nil {
				return err
			}
			summary, err := summarize(cmd, pkg, inspect)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if format == config.FormatJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(summary)
			}
			printSummary(out, summary, painter{enabled: isTerminal(out)})
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", config.FormatText, "output format: text or json")
	cmd.Flags().BoolVar(&inspect, "inspect", false, "compile every module and list its core exports and imports")
	return cmd
}

func summarize(cmd *cobra.Command, pkg *pack.Package, inspect bool) (*packageSummary, error) {
	meta := pkg.Metadata()
	s := &packageSummary{
		Name:        meta.Name.String(),
		Version:     meta.Version,
		Description: meta.Description,
		Libraries:   []librarySummary{},
		Commands:    []commandSummary{},
	}

	for _, lib := range pkg.Libraries() {
		ls := librarySummary{
			Interface: lib.InterfaceName(),
			Module:    lib.ModuleFilename(),
			Abi:       lib.Module.Abi.String(),
			Size:      len(lib.Module.Wasm),
		}
		def := lib.Exports.Definition()
		for _, fn := range def.Functions {
			ls.Functions = append(ls.Functions, signature(def, fn))
		}
		for _, imp := range lib.Imports {
			ls.Imports = append(ls.Imports, imp.Name())
		}
		if inspect {
			shape, err := inspectModule(cmd.Context(), lib.Module.Wasm)
			if err != nil {
				return nil, err
			}
			ls.Inspect = shape
		}
		s.Libraries = append(s.Libraries, ls)
	}

	for _, c := range pkg.Commands() {
		cs := commandSummary{Name: c.Name, Size: len(c.Wasm)}
		if inspect {
			shape, err := inspectModule(cmd.Context(), c.Wasm)
			if err != nil {
				return nil, err
			}
			cs.Inspect = shape
		}
		s.Commands = append(s.Commands, cs)
	}
	return s, nil
}

// signature renders fn as "name(a: t, b: u) -> r".
func signature(def *idl.Definition, fn *idl.Function) string {
	params := make([]string, len(fn.Params))
	for i, p := range fn.Params {
		params[i] = p.Name + ": " + bindgen.WITType(def, p.Type)
	}
	sig := fn.Name + "(" + strings.Join(params, ", ") + ")"

	switch len(fn.Results) {
	case 0:
	case 1:
		sig += " -> " + bindgen.WITType(def, fn.Results[0].Type)
	default:
		results := make([]string, len(fn.Results))
		for i, r := range fn.Results {
			results[i] = r.Name + ": " + bindgen.WITType(def, r.Type)
		}
		sig += " -> (" + strings.Join(results, ", ") + ")"
	}
	return sig
}

func printSummary(w io.Writer, s *packageSummary, p painter) {
	fmt.Fprintf(w, "%s %s\n", p.paint(titleStyle, s.Name), s.Version)
	if s.Description != "" {
		fmt.Fprintf(w, "%s\n", p.paint(helpStyle, s.Description))
	}

	if len(s.Libraries) > 0 {
		fmt.Fprintf(w, "\n%s\n", p.paint(headingStyle, "Libraries"))
	}
	for _, lib := range s.Libraries {
		fmt.Fprintf(w, "  %s  %s, %s, %s\n",
			p.paint(funcStyle, lib.Interface),
			lib.Module,
			humanize.Bytes(uint64(lib.Size)),
			lib.Abi)
		for _, fn := range lib.Functions {
			fmt.Fprintf(w, "    %s\n", p.paint(typeStyle, fn))
		}
		if len(lib.Imports) > 0 {
			fmt.Fprintf(w, "    imports: %s\n", strings.Join(lib.Imports, ", "))
		}
		printShape(w, lib.Inspect, p)
	}

	if len(s.Commands) > 0 {
		fmt.Fprintf(w, "\n%s\n", p.paint(headingStyle, "Commands"))
	}
	for _, c := range s.Commands {
		fmt.Fprintf(w, "  %s  %s\n", p.paint(funcStyle, c.Name), humanize.Bytes(uint64(c.Size)))
		printShape(w, c.Inspect, p)
	}
}

func printShape(w io.Writer, shape *moduleShape, p painter) {
	if shape == nil {
		return
	}
	for _, e := range shape.Exports {
		fmt.Fprintf(w, "    %s %s\n", p.paint(helpStyle, "export"), e)
	}
	for _, i := range shape.Imports {
		fmt.Fprintf(w, "    %s %s\n", p.paint(helpStyle, "import"), i)
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
