package wasm

import (
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/wippyai/wasm-pack/wasm/internal/binary"
)

// Header errors returned by ParseImports.
var (
	ErrInvalidMagic   = errors.New("invalid wasm magic number")
	ErrInvalidVersion = errors.New("invalid wasm version")
)

// ParseImports reads the import section of a module binary.
// Sections before it are skipped by their declared size without being
// decoded; the walk stops once the import section has been read, so
// anything after it is never looked at.
func ParseImports(data []byte) ([]Import, error) {
	r := binary.NewReader(data)

	magic, err := r.ReadU32LE()
	if err != nil {
		return nil, r.WrapError("header", err)
	}
	if magic != Magic {
		return nil, ErrInvalidMagic
	}
	version, err := r.ReadU32LE()
	if err != nil {
		return nil, r.WrapError("header", err)
	}
	if version != Version {
		return nil, ErrInvalidVersion
	}

	for {
		sectionID, err := r.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, r.WrapError("section header", err)
		}

		sectionSize, err := r.ReadU32()
		if err != nil {
			return nil, r.WrapError("section size", err)
		}

		if sectionID != SectionImport {
			if err := r.Skip(int(sectionSize)); err != nil {
				return nil, r.WrapError("section data", err)
			}
			continue
		}

		body, err := r.ReadBytes(int(sectionSize))
		if err != nil {
			return nil, r.WrapError("section data", err)
		}
		imports, err := parseImportSection(binary.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("import section: %w", err)
		}
		return imports, nil
	}

	return nil, nil
}

// ImportModules returns the distinct host namespaces a module imports from,
// sorted.
func ImportModules(data []byte) ([]string, error) {
	imports, err := ParseImports(data)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, imp := range imports {
		if !slices.Contains(names, imp.Module) {
			names = append(names, imp.Module)
		}
	}
	slices.Sort(names)
	return names, nil
}

func parseImportSection(r *binary.Reader) ([]Import, error) {
	count, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	imports := make([]Import, 0, count)
	for i := uint32(0); i < count; i++ {
		module, err := r.ReadName()
		if err != nil {
			return nil, err
		}
		name, err := r.ReadName()
		if err != nil {
			return nil, err
		}
		kind, err := r.ReadByte()
		if err != nil {
			return nil, err
		}

		imp := Import{Module: module, Name: name, Kind: kind}

		switch kind {
		case KindFunc:
			imp.TypeIdx, err = r.ReadU32()
		case KindTable:
			err = skipTableType(r)
		case KindMemory:
			err = skipLimits(r)
		case KindGlobal:
			err = skipGlobalType(r)
		case KindTag:
			_, err = r.ReadByte()
			if err == nil {
				_, err = r.ReadU32()
			}
		default:
			return nil, fmt.Errorf("unknown import kind: %d", kind)
		}
		if err != nil {
			return nil, err
		}

		imports = append(imports, imp)
	}
	return imports, nil
}

func skipLimits(r *binary.Reader) error {
	flags, err := r.ReadByte()
	if err != nil {
		return err
	}
	read := func() error {
		if flags&LimitsMemory64 != 0 {
			_, err := r.ReadU64()
			return err
		}
		_, err := r.ReadU32()
		return err
	}
	if err := read(); err != nil {
		return err
	}
	if flags&LimitsHasMax != 0 {
		return read()
	}
	return nil
}

func skipTableType(r *binary.Reader) error {
	ref, err := r.ReadByte()
	if err != nil {
		return err
	}
	// (ref null ht) and (ref ht) carry a heap type index.
	if ref == 0x63 || ref == 0x64 {
		if _, err := r.ReadU64(); err != nil {
			return err
		}
	}
	return skipLimits(r)
}

func skipGlobalType(r *binary.Reader) error {
	vt, err := r.ReadByte()
	if err != nil {
		return err
	}
	if vt == 0x63 || vt == 0x64 {
		if _, err := r.ReadU64(); err != nil {
			return err
		}
	}
	_, err = r.ReadByte()
	return err
}
