package pack

import (
	"path"
	"strings"

	"github.com/iancoleman/strcase"

	"github.com/wippyai/wasm-pack/errors"
	"github.com/wippyai/wasm-pack/idl"
)

// Metadata describes the package being generated.
type Metadata struct {
	Name PackageName
	// Version is passed through verbatim; it is not validated as semver.
	Version     string
	Description string
}

// NewMetadata creates metadata with all required fields.
func NewMetadata(name PackageName, version string) Metadata {
	return Metadata{Name: name, Version: version}
}

// WithDescription returns a copy with the description set.
func (m Metadata) WithDescription(description string) Metadata {
	m.Description = description
	return m
}

// Abi is the host contract a module expects.
type Abi uint8

const (
	AbiNone Abi = iota
	AbiWasi
)

// ParseAbi parses "none" or "wasi".
func ParseAbi(s string) (Abi, error) {
	switch s {
	case "none":
		return AbiNone, nil
	case "wasi":
		return AbiWasi, nil
	}
	return AbiNone, errors.New(errors.PhaseParse, errors.KindInvalidInput).
		Value(s).
		Detail("expected either \"none\" or \"wasi\", got %q", s).
		Build()
}

func (a Abi) String() string {
	if a == AbiWasi {
		return "wasi"
	}
	return "none"
}

// Module is a compiled WebAssembly module.
type Module struct {
	// Name refers to the module, e.g. "wasmer_pack_wasm".
	Name string
	Abi  Abi
	Wasm []byte
}

// Interface is a parsed interface definition.
type Interface struct {
	def *idl.Definition
}

// NewInterface wraps a parsed definition.
func NewInterface(def *idl.Definition) Interface {
	return Interface{def: def}
}

// Name returns the interface name, e.g. "wasmer-pack" for
// "wasmer-pack.exports.wai".
func (i Interface) Name() string {
	if i.def == nil {
		return ""
	}
	return i.def.Name
}

// Definition returns the typed definition for code generators.
func (i Interface) Definition() *idl.Definition {
	return i.def
}

// Library is a module together with the interface it exports and the
// interfaces it imports from the host.
type Library struct {
	Module  Module
	Exports Interface
	Imports []Interface
}

// InterfaceName is the name of the exported interface.
func (l Library) InterfaceName() string {
	return l.Exports.Name()
}

// ClassName is the interface name in Pascal case, e.g. "WasmerPack".
func (l Library) ClassName() string {
	return strcase.ToCamel(l.InterfaceName())
}

// ModuleFilename is the module's file name with a ".wasm" extension.
func (l Library) ModuleFilename() string {
	base := path.Base(l.Module.Name)
	if ext := path.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	return base + ".wasm"
}

// RequiresWASI reports whether the module needs a WASI host.
func (l Library) RequiresWASI() bool {
	return l.Module.Abi == AbiWasi
}

// Command is a standalone executable module.
type Command struct {
	Name string
	Wasm []byte
}

// Package is everything a binding generator needs: metadata, libraries
// and commands. Library interface names and command names are unique.
type Package struct {
	metadata  Metadata
	libraries []Library
	commands  []Command
}

// New creates a Package, rejecting duplicate library interface names or
// duplicate command names with a duplicate_name error.
func New(metadata Metadata, libraries []Library, commands []Command) (*Package, error) {
	libNames := make([]string, len(libraries))
	for i, lib := range libraries {
		libNames[i] = lib.InterfaceName()
	}
	if err := checkUnique("library", libNames); err != nil {
		return nil, err
	}

	cmdNames := make([]string, len(commands))
	for i, cmd := range commands {
		cmdNames[i] = cmd.Name
	}
	if err := checkUnique("command", cmdNames); err != nil {
		return nil, err
	}

	return &Package{
		metadata:  metadata,
		libraries: libraries,
		commands:  commands,
	}, nil
}

// MustNew is like New but panics when names are not unique.
func MustNew(metadata Metadata, libraries []Library, commands []Command) *Package {
	p, err := New(metadata, libraries, commands)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Package) Metadata() Metadata {
	return p.metadata
}

func (p *Package) Libraries() []Library {
	return p.libraries
}

func (p *Package) Commands() []Command {
	return p.commands
}

// RequiresWASI reports whether any part of the package needs a WASI host.
// Commands always run under WASI.
func (p *Package) RequiresWASI() bool {
	if len(p.commands) > 0 {
		return true
	}
	for _, lib := range p.libraries {
		if lib.RequiresWASI() {
			return true
		}
	}
	return false
}

func checkUnique(kind string, names []string) error {
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if _, dup := seen[name]; dup {
			return errors.DuplicateName(kind, name)
		}
		seen[name] = struct{}{}
	}
	return nil
}
