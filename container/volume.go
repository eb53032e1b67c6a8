package container

import (
	"bytes"
	"encoding/binary"
	"path"
	"slices"
	"strings"

	"github.com/fxamacker/cbor/v2"

	"github.com/wippyai/wasm-pack/errors"
)

// EntryKind distinguishes files from directories in a volume index.
type EntryKind string

const (
	EntryFile EntryKind = "file"
	EntryDir  EntryKind = "dir"
)

// Entry locates a file's bytes within a volume's data section.
// Directories have zero offsets.
type Entry struct {
	Kind  EntryKind
	Start uint64
	End   uint64
}

// Volume is a read-only virtual filesystem inside a container.
type Volume interface {
	// GetFile walks the directory tree one path segment per level.
	GetFile(path string) ([]byte, error)
	// Entries returns every file and directory keyed by its full path,
	// with entry names joined by '/'.
	Entries() map[string]Entry
	// Data returns the raw data section the entries point into.
	Data() []byte
}

// node is one entry of the serialized volume tree.
type node struct {
	Name     string    `cbor:"name"`
	Kind     EntryKind `cbor:"kind"`
	Start    uint64    `cbor:"start,omitempty"`
	End      uint64    `cbor:"end,omitempty"`
	Children []node    `cbor:"children,omitempty"`
}

type volume struct {
	root []node
	data []byte
}

func parseVolume(name string, raw []byte) (*volume, error) {
	index, rest, err := readSection(raw, "volume "+name+" index")
	if err != nil {
		return nil, err
	}
	data, rest, err := readSection(rest, "volume "+name+" data")
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, invalid("volume %q has %d trailing bytes", name, len(rest))
	}

	v := &volume{data: data}
	if len(index) > 0 {
		if err := cbor.Unmarshal(index, &v.root); err != nil {
			return nil, errors.Load("decode volume "+name+" index", err)
		}
	}
	if err := v.checkBounds(v.root); err != nil {
		return nil, err
	}
	return v, nil
}

func (v *volume) checkBounds(nodes []node) error {
	for _, n := range nodes {
		if n.Kind == EntryFile && (n.Start > n.End || n.End > uint64(len(v.data))) {
			return invalid("entry %q points outside the volume data [%d, %d)", n.Name, n.Start, n.End)
		}
		if err := v.checkBounds(n.Children); err != nil {
			return err
		}
	}
	return nil
}

func (v *volume) GetFile(p string) ([]byte, error) {
	segments := strings.Split(strings.Trim(p, "/"), "/")
	level := v.root

	for i, seg := range segments {
		idx := slices.IndexFunc(level, func(n node) bool { return n.Name == seg })
		if idx < 0 {
			return nil, errors.NotFound(errors.PhaseLoad, "file", p)
		}
		n := level[idx]
		if i == len(segments)-1 {
			if n.Kind != EntryFile {
				return nil, errors.New(errors.PhaseLoad, errors.KindInvalidInput).
					Path(p).
					Detail("%q is a directory", p).
					Build()
			}
			return v.data[n.Start:n.End], nil
		}
		if n.Kind != EntryDir {
			return nil, errors.NotFound(errors.PhaseLoad, "file", p)
		}
		level = n.Children
	}

	return nil, errors.NotFound(errors.PhaseLoad, "file", p)
}

func (v *volume) Entries() map[string]Entry {
	entries := make(map[string]Entry)
	var walk func(prefix string, nodes []node)
	walk = func(prefix string, nodes []node) {
		for _, n := range nodes {
			full := n.Name
			if prefix != "" {
				full = prefix + "/" + n.Name
			}
			entries[full] = Entry{Kind: n.Kind, Start: n.Start, End: n.End}
			walk(full, n.Children)
		}
	}
	walk("", v.root)
	return entries
}

func (v *volume) Data() []byte {
	return v.data
}

// encodeVolume lays out files in sorted path order. With flat set, every
// file is stored at the root under its full slash-separated name.
func encodeVolume(files map[string][]byte, flat bool) ([]byte, error) {
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	slices.Sort(paths)

	var data bytes.Buffer
	var root []node

	for _, p := range paths {
		start := uint64(data.Len())
		data.Write(files[p])
		file := node{Name: p, Kind: EntryFile, Start: start, End: uint64(data.Len())}

		if flat {
			root = append(root, file)
			continue
		}

		dir, base := path.Split(p)
		file.Name = base
		parent := &root
		for _, seg := range strings.Split(strings.Trim(dir, "/"), "/") {
			if seg == "" {
				continue
			}
			idx := slices.IndexFunc(*parent, func(n node) bool { return n.Name == seg })
			if idx < 0 {
				*parent = append(*parent, node{Name: seg, Kind: EntryDir})
				idx = len(*parent) - 1
			}
			parent = &(*parent)[idx].Children
		}
		*parent = append(*parent, file)
	}

	index, err := encMode.Marshal(root)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseWrite, errors.KindInvalidData, err, "encode volume index")
	}

	var out bytes.Buffer
	writeSection(&out, index)
	writeSection(&out, data.Bytes())
	return out.Bytes(), nil
}

func readSection(raw []byte, what string) (section, rest []byte, err error) {
	if len(raw) < 8 {
		return nil, nil, invalid("truncated %s length", what)
	}
	n := binary.LittleEndian.Uint64(raw)
	raw = raw[8:]
	if n > uint64(len(raw)) {
		return nil, nil, invalid("%s claims %d bytes, only %d remain", what, n, len(raw))
	}
	return raw[:n], raw[n:], nil
}

func writeSection(w *bytes.Buffer, section []byte) {
	var length [8]byte
	binary.LittleEndian.PutUint64(length[:], uint64(len(section)))
	w.Write(length[:])
	w.Write(section)
}
