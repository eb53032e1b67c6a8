// Package python generates pip-installable packages from a package
// description.
package python

import (
	"embed"
	"strings"

	"github.com/iancoleman/strcase"
	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"

	wasmpack "github.com/wippyai/wasm-pack"
	"github.com/wippyai/wasm-pack/bindgen"
	"github.com/wippyai/wasm-pack/errors"
	"github.com/wippyai/wasm-pack/files"
	"github.com/wippyai/wasm-pack/idl"
	"github.com/wippyai/wasm-pack/internal/tmpl"
	"github.com/wippyai/wasm-pack/pack"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = tmpl.Must(tmpl.Parse(templateFS, "templates/*.tmpl"))

// Dependencies every generated distribution installs.
var Dependencies = []string{"wasmer", "wasmer_compiler_cranelift"}

// Options tweak the generated package.
type Options struct {
	// Generator is written into generated files. Defaults to wasmpack.Generator().
	Generator string
}

// Generate produces a Python distribution for pkg: pyproject.toml and
// MANIFEST.in at the root plus an import package named after the bare
// package name in snake case.
func Generate(pkg *pack.Package, opts Options) (*files.Files, error) {
	if opts.Generator == "" {
		opts.Generator = wasmpack.Generator()
	}

	meta := pkg.Metadata()
	name := meta.Name.PythonName()

	ctx := packageContext{
		PackageName: name,
		Name:        meta.Name.String(),
		Version:     meta.Version,
		Description: pyDocstring(meta.Description),
		Generator:   opts.Generator,
	}
	for _, lib := range pkg.Libraries() {
		ctx.Libraries = append(ctx.Libraries, newLibraryContext(lib))
	}
	for _, cmd := range pkg.Commands() {
		ctx.Commands = append(ctx.Commands, newCommandContext(cmd))
	}

	inner := files.New()

	if len(pkg.Libraries()) > 0 {
		bindings, err := generateBindings(pkg.Libraries(), ctx)
		if err != nil {
			return nil, err
		}
		inner.InsertChildDirectory("bindings", bindings)
	}

	if len(pkg.Commands()) > 0 {
		commands, err := generateCommands(pkg.Commands(), ctx)
		if err != nil {
			return nil, err
		}
		inner.InsertChildDirectory("commands", commands)
	}

	if err := render(inner, "__init__.py", "top_level.__init__.py", ctx); err != nil {
		return nil, err
	}
	inner.Insert("py.typed", files.Empty())

	out := files.New()
	out.InsertChildDirectory(name, inner)

	project, err := pyproject(meta)
	if err != nil {
		return nil, err
	}
	out.Insert("pyproject.toml", project)

	if err := render(out, "MANIFEST.in", "MANIFEST.in", ctx); err != nil {
		return nil, err
	}

	Logger().Debug("generated python package",
		zap.String("package", name),
		zap.Int("libraries", len(pkg.Libraries())),
		zap.Int("commands", len(pkg.Commands())),
		zap.Int("files", out.Len()))

	return out, nil
}

type pyprojectFile struct {
	Project     project     `toml:"project"`
	BuildSystem buildSystem `toml:"build-system"`
}

type project struct {
	Name         string   `toml:"name"`
	Version      string   `toml:"version"`
	Description  string   `toml:"description,omitempty"`
	Keywords     []string `toml:"keywords"`
	Dependencies []string `toml:"dependencies"`
}

type buildSystem struct {
	Requires     []string `toml:"requires"`
	BuildBackend string   `toml:"build-backend"`
}

func pyproject(meta pack.Metadata) (files.SourceFile, error) {
	doc := pyprojectFile{
		Project: project{
			Name:         meta.Name.PythonName(),
			Version:      meta.Version,
			Description:  meta.Description,
			Keywords:     []string{},
			Dependencies: Dependencies,
		},
		BuildSystem: buildSystem{
			Requires:     []string{"setuptools", "setuptools-scm"},
			BuildBackend: "setuptools.build_meta",
		},
	}

	data, err := toml.Marshal(doc)
	if err != nil {
		return files.SourceFile{}, errors.Generate("pyproject.toml", err)
	}
	return files.NewSourceFile(data), nil
}

type packageContext struct {
	PackageName string
	Name        string
	Version     string
	Description string
	Generator   string
	Libraries   []libraryContext
	Commands    []commandContext
}

type importContext struct {
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

func newLibraryContext(lib pack.Library) libraryContext {
	ctx := libraryContext{
		Ident:          strcase.ToSnake(lib.InterfaceName()),
		InterfaceName:  lib.InterfaceName(),
		ClassName:      bindgen.ExportsClass(lib.InterfaceName()),
		ModuleFilename: lib.ModuleFilename(),
		WASI:           lib.RequiresWASI(),
	}
	for _, imp := range lib.Imports {
		ctx.Imports = append(ctx.Imports, importContext{
			Ident:    strcase.ToSnake(imp.Name()),
			Class:    bindgen.ExportsClass(imp.Name()),
			Function: bindgen.PythonImportsFunction(imp.Name()),
		})
	}
	return ctx
}

func generateBindings(libraries []pack.Library, ctx packageContext) (*files.Files, error) {
	gen := bindgen.NewPython()
	out := files.New()

	for i, lib := range libraries {
		libCtx := ctx.Libraries[i]

		imports := make([]*idl.Definition, len(lib.Imports))
		for j, imp := range lib.Imports {
			imports[j] = imp.Definition()
		}

		glue, err := gen.Generate(lib.Exports.Definition(), imports...)
		if err != nil {
			return nil, errors.Generate("bindings for "+lib.InterfaceName(), err)
		}
		glue.Insert(libCtx.ModuleFilename, files.NewSourceFile(lib.Module.Wasm))
		if err := render(glue, "__init__.py", "library.__init__.py", libCtx); err != nil {
			return nil, err
		}
		out.InsertChildDirectory(libCtx.Ident, glue)

		Logger().Debug("generated library bindings",
			zap.String("interface", lib.InterfaceName()),
			zap.String("module", libCtx.ModuleFilename),
			zap.Stringer("abi", lib.Module.Abi))
	}

	if err := render(out, "__init__.py", "bindings.__init__.py", ctx); err != nil {
		return nil, err
	}
	return out, nil
}

type commandContext struct {
	Name           string
	Ident          string
	ModuleFilename string
}

func newCommandContext(cmd pack.Command) commandContext {
	ident := pyIdent(cmd.Name)
	return commandContext{
		Name:           cmd.Name,
		Ident:          ident,
		ModuleFilename: ident + ".wasm",
	}
}

func generateCommands(commands []pack.Command, ctx packageContext) (*files.Files, error) {
	out := files.New()
	for i, cmd := range commands {
		out.Insert(ctx.Commands[i].ModuleFilename, files.NewSourceFile(cmd.Wasm))
	}
	if err := render(out, "__init__.py", "commands.__init__.py", ctx); err != nil {
		return nil, err
	}
	return out, nil
}

func render(out *files.Files, filename, id string, ctx any) error {
	text, err := templates.Render(id, ctx)
	if err != nil {
		return errors.Generate(filename, err)
	}
	out.Insert(filename, files.FromString(text))
	return nil
}

// pyDocstring escapes s for use inside a triple-quoted docstring.
func pyDocstring(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"""`, `\"\"\"`)
}

// pyIdent turns a command name like "wasm-strip" into "wasm_strip".
func pyIdent(name string) string {
	return strings.ReplaceAll(name, "-", "_")
}
