package container

import (
	"bytes"
	"encoding/hex"
	"maps"
	"slices"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"

	"github.com/wippyai/wasm-pack/errors"
)

// Builder assembles a container.
type Builder struct {
	wapm     Wapm
	atoms    map[string][]byte
	volumes  map[string]map[string][]byte
	commands map[string]Command
	bindings []Binding
	flat     bool
	checksum bool
	err      error
}

// NewBuilder starts a container for the package "name" at version.
func NewBuilder(name, version string) *Builder {
	return &Builder{
		wapm:     Wapm{Name: name, Version: version},
		atoms:    make(map[string][]byte),
		volumes:  make(map[string]map[string][]byte),
		commands: make(map[string]Command),
		checksum: true,
	}
}

// Description sets the package description.
func (b *Builder) Description(d string) *Builder {
	b.wapm.Description = d
	return b
}

// Atom adds a compiled module.
func (b *Builder) Atom(name string, wasm []byte) *Builder {
	b.atoms[name] = wasm
	return b
}

// File adds a file to a volume, creating the volume on first use.
func (b *Builder) File(volumeName, path string, data []byte) *Builder {
	v, ok := b.volumes[volumeName]
	if !ok {
		v = make(map[string][]byte)
		b.volumes[volumeName] = v
	}
	v[path] = data
	return b
}

// Command declares a WASI command backed by an atom.
func (b *Builder) Command(name, atom string) *Builder {
	wasi, err := encMode.Marshal(WasiAnnotation{Atom: atom, Package: b.wapm.Name})
	if err != nil && b.err == nil {
		b.err = err
	}
	b.commands[name] = Command{
		Runner:      RunnerWasi,
		Annotations: map[string]cbor.RawMessage{AnnotationWasi: wasi},
	}
	return b
}

// WaiBinding declares a wai library binding.
func (b *Builder) WaiBinding(name, version string, bindings WaiBindings) *Builder {
	b.bindings = append(b.bindings, Binding{
		Name:        name,
		Kind:        AnnotationWai + "@" + version,
		Annotations: BindingAnnotations{Wai: &bindings},
	})
	return b
}

// WitBinding declares a wit library binding.
func (b *Builder) WitBinding(name, version string, bindings WitBindings) *Builder {
	b.bindings = append(b.bindings, Binding{
		Name:        name,
		Kind:        AnnotationWit + "@" + version,
		Annotations: BindingAnnotations{Wit: &bindings},
	})
	return b
}

// LegacyFlatNames stores every volume file at the root under its full
// slash-separated name, reproducing containers written by older packers.
// Such files are only reachable through Volume.Entries.
func (b *Builder) LegacyFlatNames(flat bool) *Builder {
	b.flat = flat
	return b
}

// Checksum toggles the blake3 checksum. It is on by default.
func (b *Builder) Checksum(on bool) *Builder {
	b.checksum = on
	return b
}

// Manifest returns the manifest the container will carry.
func (b *Builder) Manifest() (Manifest, error) {
	if b.err != nil {
		return Manifest{}, b.err
	}

	wapm, err := encMode.Marshal(b.wapm)
	if err != nil {
		return Manifest{}, err
	}

	m := Manifest{
		Package:  map[string]cbor.RawMessage{AnnotationWapm: wapm},
		Atoms:    make(map[string]AtomSignature, len(b.atoms)),
		Commands: maps.Clone(b.commands),
		Bindings: slices.Clone(b.bindings),
	}
	for name, data := range b.atoms {
		sum := blake3.Sum256(data)
		m.Atoms[name] = AtomSignature{Kind: "https://webc.org/kind/wasm", Signature: "blake3:" + hex.EncodeToString(sum[:])}
	}
	return m, nil
}

// Encode serializes the container.
func (b *Builder) Encode() ([]byte, error) {
	manifest, err := b.Manifest()
	if err != nil {
		return nil, errors.Wrap(errors.PhaseWrite, errors.KindInvalidData, err, "encode manifest")
	}
	rawManifest, err := encMode.Marshal(manifest)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseWrite, errors.KindInvalidData, err, "encode manifest")
	}

	// Atoms always live at the root of their volume.
	atoms, err := encodeVolume(b.atoms, true)
	if err != nil {
		return nil, err
	}

	var body bytes.Buffer
	writeSection(&body, rawManifest)
	writeSection(&body, atoms)

	for _, name := range slices.Sorted(maps.Keys(b.volumes)) {
		v, err := encodeVolume(b.volumes[name], b.flat)
		if err != nil {
			return nil, err
		}
		writeSection(&body, []byte(name))
		writeSection(&body, v)
	}

	var out bytes.Buffer
	out.WriteString(Magic)
	out.WriteString(Version)
	if b.checksum {
		sum := blake3.Sum256(body.Bytes())
		out.Write(checksumBlake3)
		out.Write(sum[:])
	} else {
		out.Write(checksumNone)
		out.Write(make([]byte, checksumLen))
	}
	out.Write(body.Bytes())

	return out.Bytes(), nil
}

// Build encodes and parses the container in one step.
func (b *Builder) Build() (*Container, error) {
	data, err := b.Encode()
	if err != nil {
		return nil, err
	}
	return Parse(data)
}
