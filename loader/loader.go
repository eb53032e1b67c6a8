package loader

import (
	"fmt"
	"os"
	"path"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-pack/container"
	"github.com/wippyai/wasm-pack/errors"
	"github.com/wippyai/wasm-pack/idl"
	"github.com/wippyai/wasm-pack/pack"
)

// Loader turns containers into packages.
type Loader struct {
	parser idl.Parser
}

// Option configures a Loader.
type Option func(*Loader)

// WithParser replaces the interface parser.
func WithParser(p idl.Parser) Option {
	return func(l *Loader) {
		l.parser = p
	}
}

// New creates a Loader using the default text interface parser unless
// overridden.
func New(opts ...Option) *Loader {
	l := &Loader{parser: idl.NewParser()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadBytes parses container bytes and loads the package they describe.
func (l *Loader) LoadBytes(data []byte) (*pack.Package, error) {
	c, err := container.Parse(data)
	if err != nil {
		return nil, errors.Load("parse container", err)
	}
	return l.Load(c)
}

// LoadPath loads a container file, or packs and loads a directory that
// holds a wasmer.toml.
func (l *Loader) LoadPath(p string) (*pack.Package, error) {
	info, err := os.Stat(p)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseLoad, errors.KindIO, err, "stat "+p)
	}

	var data []byte
	if info.IsDir() {
		Logger().Debug("packing directory", zap.String("dir", p))
		data, err = container.FromDirectory(p)
	} else {
		data, err = os.ReadFile(p)
	}
	if err != nil {
		return nil, errors.Load("read package "+p, err)
	}
	return l.LoadBytes(data)
}

// Load extracts metadata, libraries and commands from a container.
// The first failure aborts the load.
func (l *Loader) Load(r container.Reader) (*pack.Package, error) {
	log := Logger()
	pkgID := r.PackageID()
	log.Debug("loading package", zap.String("id", pkgID))

	metadata, err := loadMetadata(r, pkgID)
	if err != nil {
		return nil, err
	}

	var libraries []pack.Library
	for _, binding := range r.Manifest().Bindings {
		lib, err := l.loadLibrary(r, pkgID, binding)
		if err != nil {
			return nil, errors.Load(fmt.Sprintf("load library from binding %q", binding.Name), err)
		}
		log.Debug("loaded library",
			zap.String("interface", lib.InterfaceName()),
			zap.String("module", lib.Module.Name),
			zap.Stringer("abi", lib.Module.Abi),
			zap.Int("imports", len(lib.Imports)))
		libraries = append(libraries, lib)
	}

	commands, err := loadCommands(r, pkgID)
	if err != nil {
		return nil, err
	}

	return pack.New(metadata, libraries, commands)
}

func loadMetadata(r container.Reader, pkgID string) (pack.Metadata, error) {
	at := strings.LastIndexByte(pkgID, '@')
	if at < 0 {
		return pack.Metadata{}, errors.New(errors.PhaseLoad, errors.KindInvalidData).
			Value(pkgID).
			Detail("package id %q has no version", pkgID).
			Build()
	}

	name, err := pack.ParseName(pkgID[:at])
	if err != nil {
		return pack.Metadata{}, errors.Load("unable to parse the package name", err)
	}
	metadata := pack.NewMetadata(name, pkgID[at+1:])

	var wapm container.Wapm
	if ok, err := r.Manifest().PackageAnnotation(container.AnnotationWapm, &wapm); err != nil {
		return pack.Metadata{}, err
	} else if ok && wapm.Description != "" {
		metadata = metadata.WithDescription(wapm.Description)
	}

	return metadata, nil
}

func (l *Loader) loadLibrary(r container.Reader, pkgID string, binding container.Binding) (pack.Library, error) {
	exportsRef, err := binding.Exports()
	if err != nil {
		return pack.Library{}, err
	}
	exports, err := l.loadInterface(r, pkgID, exportsRef)
	if err != nil {
		return pack.Library{}, errors.Load("unable to load the exports interface", err)
	}

	var imports []pack.Interface
	for _, ref := range binding.Imports() {
		imp, err := l.loadInterface(r, pkgID, ref)
		if err != nil {
			return pack.Library{}, errors.Load("unable to load the imported interface "+ref, err)
		}
		imports = append(imports, imp)
	}

	moduleRef, err := binding.Module()
	if err != nil {
		return pack.Library{}, err
	}
	atomName := strings.TrimPrefix(moduleRef, "atoms://")
	wasm, err := r.Atom(pkgID, atomName)
	if err != nil {
		return pack.Library{}, errors.Load(fmt.Sprintf("unable to get the %q atom", moduleRef), err)
	}

	abi := pack.DetectAbi(wasm)
	Logger().Debug("detected abi", zap.String("atom", atomName), zap.Stringer("abi", abi))

	return pack.Library{
		Module: pack.Module{
			Name: moduleStem(atomName),
			Abi:  abi,
			Wasm: wasm,
		},
		Exports: exports,
		Imports: imports,
	}, nil
}

func (l *Loader) loadInterface(r container.Reader, pkgID, ref string) (pack.Interface, error) {
	volumeName, filePath, ok := container.SplitURI(ref)
	if !ok {
		return pack.Interface{}, errors.New(errors.PhaseLoad, errors.KindInvalidInput).
			Value(ref).
			Detail("interface reference %q is not of the form volume://path", ref).
			Build()
	}

	data, err := fileFromVolume(r, pkgID, volumeName, filePath)
	if err != nil {
		return pack.Interface{}, err
	}

	if !utf8.Valid(data) {
		return pack.Interface{}, errors.InvalidUTF8(errors.PhaseLoad, []string{volumeName, filePath}, data)
	}

	def, err := l.parser.Parse(filePath, string(data))
	if err != nil {
		return pack.Interface{}, errors.Load(fmt.Sprintf("unable to parse %q", filePath), err)
	}
	return pack.NewInterface(def), nil
}

func fileFromVolume(r container.Reader, pkgID, volumeName, filePath string) ([]byte, error) {
	vol, err := r.Volume(pkgID, volumeName)
	if err != nil {
		return nil, errors.Load(fmt.Sprintf("the container doesn't have a %q volume", volumeName), err)
	}

	data, err := vol.GetFile(filePath)
	if err == nil {
		return data, nil
	}

	if data, ok := legacyFlatFile(vol, filePath); ok {
		Logger().Debug("resolved file through flat volume index",
			zap.String("volume", volumeName),
			zap.String("path", filePath))
		return data, nil
	}

	return nil, errors.Load(fmt.Sprintf("unable to find %q in the %q volume", filePath, volumeName), err)
}

// legacyFlatFile looks a file up by its literal stored name. Older packers
// wrote nested files as a single root entry whose name contained '/', which
// a directory walk can never reach.
func legacyFlatFile(vol container.Volume, filePath string) ([]byte, bool) {
	entry, ok := vol.Entries()[filePath]
	if !ok || entry.Kind != container.EntryFile {
		return nil, false
	}
	data := vol.Data()
	if entry.Start > entry.End || entry.End > uint64(len(data)) {
		return nil, false
	}
	return data[entry.Start:entry.End], true
}

func loadCommands(r container.Reader, pkgID string) ([]pack.Command, error) {
	manifest := r.Manifest()
	var commands []pack.Command

	for _, name := range manifest.CommandNames() {
		atomName := name
		var wasi container.WasiAnnotation
		ok, err := manifest.Commands[name].Annotation(container.AnnotationWasi, &wasi)
		if err != nil {
			return nil, errors.Load(fmt.Sprintf("command %q", name), err)
		}
		if ok && wasi.Atom != "" {
			atomName = wasi.Atom
		}

		wasm, err := r.Atom(pkgID, atomName)
		if err != nil {
			return nil, errors.Load(fmt.Sprintf("unable to get the atom for command %q", name), err)
		}
		Logger().Debug("loaded command", zap.String("name", name), zap.String("atom", atomName))
		commands = append(commands, pack.Command{Name: name, Wasm: wasm})
	}

	return commands, nil
}

// moduleStem is the atom's file name up to its first '.'.
func moduleStem(atom string) string {
	base := path.Base(atom)
	if i := strings.IndexByte(base, '.'); i > 0 {
		return base[:i]
	}
	return base
}
