// Package js generates npm packages from a package description.
package js

import (
	"embed"
	"encoding/json"
	"strings"

	"github.com/iancoleman/strcase"
	"go.uber.org/zap"

	wasmpack "github.com/wippyai/wasm-pack"
	"github.com/wippyai/wasm-pack/bindgen"
	"github.com/wippyai/wasm-pack/errors"
	"github.com/wippyai/wasm-pack/files"
	"github.com/wippyai/wasm-pack/idl"
	"github.com/wippyai/wasm-pack/internal/tmpl"
	"github.com/wippyai/wasm-pack/pack"
)

// DefaultWASIVersion is the @wasmer/wasi range packages depend on.
const DefaultWASIVersion = "^1.1.2"

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = tmpl.Must(tmpl.Parse(templateFS, "templates/*.tmpl"))

// Options tweak the generated package.
type Options struct {
	// Generator is written into generated files. Defaults to wasmpack.Generator().
	Generator string
	// WASIVersion is the @wasmer/wasi dependency range. Defaults to DefaultWASIVersion.
	WASIVersion string
}

func (o Options) withDefaults() Options {
	if o.Generator == "" {
		o.Generator = wasmpack.Generator()
	}
	if o.WASIVersion == "" {
		o.WASIVersion = DefaultWASIVersion
	}
	return o
}

// Generate produces an npm package for pkg. Every path is rooted at
// "package/", matching the layout of an "npm pack" tarball.
func Generate(pkg *pack.Package, opts Options) (*files.Files, error) {
	opts = opts.withDefaults()
	log := Logger()
	src := files.New()

	if len(pkg.Libraries()) > 0 {
		bindings, err := generateBindings(pkg.Libraries())
		if err != nil {
			return nil, err
		}
		src.InsertChildDirectory("bindings", bindings)
	}

	if len(pkg.Commands()) > 0 {
		commands, err := generateCommands(pkg.Commands())
		if err != nil {
			return nil, err
		}
		src.InsertChildDirectory("commands", commands)
	}

	if err := generateTopLevel(src, pkg, opts); err != nil {
		return nil, err
	}

	manifest, err := packageJSON(pkg, opts)
	if err != nil {
		return nil, err
	}

	out := files.New()
	out.InsertChildDirectory("src", src)
	out.Insert("package.json", manifest)

	wrapped := files.New()
	wrapped.InsertChildDirectory("package", out)

	log.Debug("generated javascript package",
		zap.String("package", pkg.Metadata().Name.JavaScriptPackage()),
		zap.Int("libraries", len(pkg.Libraries())),
		zap.Int("commands", len(pkg.Commands())),
		zap.Int("files", wrapped.Len()))

	return wrapped, nil
}

type manifest struct {
	Name         string            `json:"name"`
	Version      string            `json:"version"`
	Description  string            `json:"description,omitempty"`
	Main         string            `json:"main"`
	Types        string            `json:"types"`
	Type         string            `json:"type"`
	Dependencies map[string]string `json:"dependencies"`
}

func packageJSON(pkg *pack.Package, opts Options) (files.SourceFile, error) {
	meta := pkg.Metadata()
	m := manifest{
		Name:         meta.Name.JavaScriptPackage(),
		Version:      meta.Version,
		Description:  meta.Description,
		Main:         "src/index.js",
		Types:        "src/index.d.ts",
		Type:         "module",
		Dependencies: map[string]string{},
	}
	if pkg.RequiresWASI() {
		m.Dependencies["@wasmer/wasi"] = opts.WASIVersion
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return files.SourceFile{}, errors.Generate("package.json", err)
	}
	return files.NewSourceFile(append(data, '\n')), nil
}

type importContext struct {
	Name     string
	Ident    string
	Class    string
	Function string
}

type libraryContext struct {
	Ident          string
	InterfaceName  string
	ClassName      string
	ModuleFilename string
	WASI           bool
	Imports        []importContext
}

type librariesContext struct {
	Libraries []libraryContext
	WASI      bool
}

func generateBindings(libraries []pack.Library) (*files.Files, error) {
	gen := bindgen.NewJavaScript()
	out := files.New()
	ctx := librariesContext{}

	for _, lib := range libraries {
		name := lib.InterfaceName()

		imports := make([]*idl.Definition, len(lib.Imports))
		importCtx := make([]importContext, len(lib.Imports))
		for i, imp := range lib.Imports {
			imports[i] = imp.Definition()
			importCtx[i] = importContext{
				Name:     imp.Name(),
				Ident:    strcase.ToSnake(imp.Name()),
				Class:    bindgen.ExportsClass(imp.Name()),
				Function: bindgen.ImportsFunction(imp.Name()),
			}
		}

		glue, err := gen.Generate(lib.Exports.Definition(), imports...)
		if err != nil {
			return nil, errors.Generate("bindings for "+name, err)
		}
		glue.Insert(lib.ModuleFilename(), files.NewSourceFile(lib.Module.Wasm))
		out.InsertChildDirectory(name, glue)

		ctx.Libraries = append(ctx.Libraries, libraryContext{
			Ident:          strcase.ToSnake(name),
			InterfaceName:  name,
			ClassName:      bindgen.ExportsClass(name),
			ModuleFilename: lib.ModuleFilename(),
			WASI:           lib.RequiresWASI(),
			Imports:        importCtx,
		})
		ctx.WASI = ctx.WASI || lib.RequiresWASI()

		Logger().Debug("generated library bindings",
			zap.String("interface", name),
			zap.String("module", lib.ModuleFilename()),
			zap.Stringer("abi", lib.Module.Abi))
	}

	if err := render(out, "index.js", "bindings.index.js", ctx); err != nil {
		return nil, err
	}
	if err := render(out, "index.d.ts", "bindings.index.d.ts", ctx); err != nil {
		return nil, err
	}
	return out, nil
}

type commandContext struct {
	Name           string
	Module         string
	Ident          string
	ModuleFilename string
}

func newCommandContext(cmd pack.Command) commandContext {
	return commandContext{
		Name:           cmd.Name,
		Module:         cmd.Name,
		Ident:          jsIdent(cmd.Name),
		ModuleFilename: cmd.Name + ".wasm",
	}
}

func generateCommands(commands []pack.Command) (*files.Files, error) {
	out := files.New()
	for _, cmd := range commands {
		ctx := newCommandContext(cmd)
		if err := render(out, cmd.Name+".js", "command.js", ctx); err != nil {
			return nil, err
		}
		if err := render(out, cmd.Name+".d.ts", "command.d.ts", ctx); err != nil {
			return nil, err
		}
		out.Insert(ctx.ModuleFilename, files.NewSourceFile(cmd.Wasm))
	}
	return out, nil
}

type topLevelContext struct {
	Generator string
	Libraries bool
	Commands  []commandContext
}

func generateTopLevel(src *files.Files, pkg *pack.Package, opts Options) error {
	ctx := topLevelContext{
		Generator: opts.Generator,
		Libraries: len(pkg.Libraries()) > 0,
	}
	for _, cmd := range pkg.Commands() {
		ctx.Commands = append(ctx.Commands, newCommandContext(cmd))
	}

	if err := render(src, "index.js", "top-level.index.js", ctx); err != nil {
		return err
	}
	return render(src, "index.d.ts", "top-level.index.d.ts", ctx)
}

func render(out *files.Files, filename, id string, ctx any) error {
	text, err := templates.Render(id, ctx)
	if err != nil {
		return errors.Generate(filename, err)
	}
	out.Insert(filename, files.FromString(text))
	return nil
}

// jsIdent turns a command name like "wasm-strip" into a valid identifier.
func jsIdent(name string) string {
	return strings.ReplaceAll(name, "-", "_")
}
