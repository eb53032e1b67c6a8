package container

import (
	"bytes"
	"fmt"
	"slices"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"

	"github.com/wippyai/wasm-pack/errors"
)

// Envelope constants.
const (
	Magic   = "\x00webc"
	Version = "001"

	checksumTagLen = 16
	checksumLen    = 32
	headerLen      = len(Magic) + len(Version) + checksumTagLen + checksumLen
)

var (
	checksumBlake3 = padTag("blake3")
	checksumNone   = padTag("")
)

var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("container: failed to create CBOR enc mode: %v", err))
	}
	encMode = em
}

// Reader is the view of a container the loader needs.
type Reader interface {
	// PackageID returns the fully-qualified "namespace/name@version" id.
	PackageID() string
	Manifest() *Manifest
	// Volume returns the named volume of a package.
	Volume(pkgID, name string) (Volume, error)
	// Atom returns the named atom of a package.
	Atom(pkgID, name string) ([]byte, error)
}

// Container is a parsed container held entirely in memory.
type Container struct {
	packageID string
	manifest  Manifest
	atoms     *volume
	volumes   map[string]*volume
}

var _ Reader = (*Container)(nil)

// Parse decodes a container. A blake3 checksum, when present, must match.
// The returned Container aliases data.
func Parse(data []byte) (*Container, error) {
	if len(data) < headerLen {
		return nil, invalid("container is %d bytes, shorter than its %d byte header", len(data), headerLen)
	}
	if string(data[:len(Magic)]) != Magic {
		return nil, invalid("bad magic %q", data[:len(Magic)])
	}
	data = data[len(Magic):]
	if v := string(data[:len(Version)]); v != Version {
		return nil, errors.New(errors.PhaseLoad, errors.KindUnsupported).
			Value(v).
			Detail("unsupported container version %q", v).
			Build()
	}
	data = data[len(Version):]

	tag := data[:checksumTagLen]
	sum := data[checksumTagLen:][:checksumLen]
	body := data[checksumTagLen+checksumLen:]

	switch {
	case bytes.Equal(tag, checksumBlake3):
		got := blake3.Sum256(body)
		if !bytes.Equal(got[:], sum) {
			return nil, errors.New(errors.PhaseLoad, errors.KindChecksum).
				Detail("blake3 checksum mismatch: header %x, computed %x", sum, got).
				Build()
		}
	case bytes.Equal(tag, checksumNone):
	default:
		return nil, errors.New(errors.PhaseLoad, errors.KindUnsupported).
			Value(string(tag)).
			Detail("unsupported checksum %q", bytes.TrimRight(tag, "-")).
			Build()
	}

	c := &Container{volumes: make(map[string]*volume)}

	manifest, rest, err := readSection(body, "manifest")
	if err != nil {
		return nil, err
	}
	if err := cbor.Unmarshal(manifest, &c.manifest); err != nil {
		return nil, errors.Load("decode manifest", err)
	}

	atoms, rest, err := readSection(rest, "atoms")
	if err != nil {
		return nil, err
	}
	if c.atoms, err = parseVolume("atoms", atoms); err != nil {
		return nil, err
	}

	for len(rest) > 0 {
		var name, raw []byte
		if name, rest, err = readSection(rest, "volume name"); err != nil {
			return nil, err
		}
		if raw, rest, err = readSection(rest, "volume "+string(name)); err != nil {
			return nil, err
		}
		if _, dup := c.volumes[string(name)]; dup {
			return nil, invalid("volume %q appears twice", name)
		}
		v, err := parseVolume(string(name), raw)
		if err != nil {
			return nil, err
		}
		c.volumes[string(name)] = v
	}

	var wapm Wapm
	if ok, err := c.manifest.PackageAnnotation(AnnotationWapm, &wapm); err != nil {
		return nil, err
	} else if ok {
		c.packageID = wapm.Name + "@" + wapm.Version
	}

	return c, nil
}

// PackageID returns "name@version" from the wapm annotation, or "" when the
// manifest has none.
func (c *Container) PackageID() string {
	return c.packageID
}

func (c *Container) Manifest() *Manifest {
	return &c.manifest
}

// VolumeNames lists the container's volumes in no particular order.
func (c *Container) VolumeNames() []string {
	names := make([]string, 0, len(c.volumes))
	for name := range c.volumes {
		names = append(names, name)
	}
	return names
}

func (c *Container) Volume(pkgID, name string) (Volume, error) {
	if err := c.checkPackage(pkgID); err != nil {
		return nil, err
	}
	v, ok := c.volumes[name]
	if !ok {
		return nil, errors.NotFound(errors.PhaseLoad, "volume", name)
	}
	return v, nil
}

func (c *Container) Atom(pkgID, name string) ([]byte, error) {
	if err := c.checkPackage(pkgID); err != nil {
		return nil, err
	}
	idx := slices.IndexFunc(c.atoms.root, func(n node) bool {
		return n.Name == name && n.Kind == EntryFile
	})
	if idx < 0 {
		return nil, errors.NotFound(errors.PhaseLoad, "atom", name)
	}
	n := c.atoms.root[idx]
	return c.atoms.data[n.Start:n.End], nil
}

// Atoms returns every atom name and its bytes.
func (c *Container) Atoms() map[string][]byte {
	atoms := make(map[string][]byte)
	for name, e := range c.atoms.Entries() {
		if e.Kind == EntryFile {
			atoms[name] = c.atoms.data[e.Start:e.End]
		}
	}
	return atoms
}

func (c *Container) checkPackage(pkgID string) error {
	if pkgID != c.packageID {
		return errors.NotFound(errors.PhaseLoad, "package", pkgID)
	}
	return nil
}

func padTag(name string) []byte {
	tag := bytes.Repeat([]byte{'-'}, checksumTagLen)
	copy(tag, name)
	return tag
}

func invalid(format string, args ...any) *errors.Error {
	return errors.New(errors.PhaseLoad, errors.KindInvalidData).Detail(format, args...).Build()
}
