package container

import (
	"slices"
	"strings"

	"github.com/fxamacker/cbor/v2"

	"github.com/wippyai/wasm-pack/errors"
)

// Well-known annotation keys.
const (
	AnnotationWapm = "wapm"
	AnnotationWasi = "wasi"
	AnnotationWai  = "wai"
	AnnotationWit  = "wit"
)

// RunnerWasi is the runner URI recorded for WASI commands.
const RunnerWasi = "https://webc.org/runner/wasi/command@unstable_"

// Manifest describes a container's package, atoms, commands and bindings.
type Manifest struct {
	Package  map[string]cbor.RawMessage `cbor:"package,omitempty"`
	Atoms    map[string]AtomSignature   `cbor:"atoms,omitempty"`
	Commands map[string]Command         `cbor:"commands,omitempty"`
	Bindings []Binding                  `cbor:"bindings,omitempty"`
}

// AtomSignature identifies an atom's content.
type AtomSignature struct {
	Kind      string `cbor:"kind"`
	Signature string `cbor:"signature"`
}

// Command is a runnable entry point.
type Command struct {
	Runner      string                     `cbor:"runner"`
	Annotations map[string]cbor.RawMessage `cbor:"annotations,omitempty"`
}

// Binding declares the interface a library atom implements.
type Binding struct {
	Name        string             `cbor:"name"`
	Kind        string             `cbor:"kind"`
	Annotations BindingAnnotations `cbor:"annotations"`
}

// BindingAnnotations holds exactly one of the supported binding flavours.
type BindingAnnotations struct {
	Wai *WaiBindings `cbor:"wai,omitempty"`
	Wit *WitBindings `cbor:"wit,omitempty"`
}

// WaiBindings references interface files by "volume://path" and the module
// by "atoms://name". Wai bindings may also import host interfaces.
type WaiBindings struct {
	Exports string   `cbor:"exports"`
	Module  string   `cbor:"module"`
	Imports []string `cbor:"imports,omitempty"`
}

// WitBindings references an exported interface and its module.
type WitBindings struct {
	Exports string `cbor:"exports"`
	Module  string `cbor:"module"`
}

// Wapm is the "wapm" package annotation.
type Wapm struct {
	Name        string `cbor:"name"`
	Version     string `cbor:"version"`
	Description string `cbor:"description,omitempty"`
}

// WasiAnnotation is the "wasi" command annotation.
type WasiAnnotation struct {
	Atom     string `cbor:"atom"`
	Package  string `cbor:"package,omitempty"`
	MainArgs string `cbor:"main_args,omitempty"`
}

// PackageAnnotation decodes the named package annotation into v.
// It reports false when the annotation is absent.
func (m *Manifest) PackageAnnotation(name string, v any) (bool, error) {
	raw, ok := m.Package[name]
	if !ok {
		return false, nil
	}
	if err := cbor.Unmarshal(raw, v); err != nil {
		return true, errors.Load("decode package annotation "+name, err)
	}
	return true, nil
}

// CommandNames returns the declared command names, sorted.
func (m *Manifest) CommandNames() []string {
	names := make([]string, 0, len(m.Commands))
	for name := range m.Commands {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Annotation decodes the named command annotation into v.
func (c Command) Annotation(name string, v any) (bool, error) {
	raw, ok := c.Annotations[name]
	if !ok {
		return false, nil
	}
	if err := cbor.Unmarshal(raw, v); err != nil {
		return true, errors.Load("decode command annotation "+name, err)
	}
	return true, nil
}

// Exports returns the exported interface reference.
func (b Binding) Exports() (string, error) {
	switch {
	case b.Annotations.Wai != nil:
		return b.Annotations.Wai.Exports, nil
	case b.Annotations.Wit != nil:
		return b.Annotations.Wit.Exports, nil
	}
	return "", b.noAnnotations()
}

// Module returns the module reference.
func (b Binding) Module() (string, error) {
	switch {
	case b.Annotations.Wai != nil:
		return b.Annotations.Wai.Module, nil
	case b.Annotations.Wit != nil:
		return b.Annotations.Wit.Module, nil
	}
	return "", b.noAnnotations()
}

// Imports returns imported interface references. Only wai bindings have
// imports.
func (b Binding) Imports() []string {
	if b.Annotations.Wai != nil {
		return b.Annotations.Wai.Imports
	}
	return nil
}

func (b Binding) noAnnotations() error {
	return errors.New(errors.PhaseLoad, errors.KindInvalidData).
		Path("bindings", b.Name).
		Detail("binding %q has neither wai nor wit annotations", b.Name).
		Build()
}

// SplitURI splits "scheme://rest". ok is false when there is no scheme.
func SplitURI(uri string) (scheme, rest string, ok bool) {
	return strings.Cut(uri, "://")
}
