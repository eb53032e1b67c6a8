package files

import (
	"iter"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-pack/errors"
)

// SourceFile is a file held in memory.
type SourceFile struct {
	data []byte
}

// NewSourceFile wraps raw bytes. The slice is not copied.
func NewSourceFile(data []byte) SourceFile {
	return SourceFile{data: data}
}

// FromString creates a text file.
func FromString(s string) SourceFile {
	return SourceFile{data: []byte(s)}
}

// Empty returns a zero-length file.
func Empty() SourceFile {
	return SourceFile{}
}

// Bytes returns the file contents.
func (f SourceFile) Bytes() []byte {
	return f.data
}

// Len returns the size of the file in bytes.
func (f SourceFile) Len() int {
	return len(f.data)
}

// UTF8 returns the contents as text when they are valid UTF-8.
func (f SourceFile) UTF8() (string, bool) {
	if !utf8.Valid(f.data) {
		return "", false
	}
	return string(f.data), true
}

// String renders text files verbatim and binary files as a size summary.
func (f SourceFile) String() string {
	if s, ok := f.UTF8(); ok {
		return s
	}
	return "<binary " + strconv.Itoa(len(f.data)) + " bytes>"
}

// Files is an in-memory file tree keyed by slash-separated relative paths.
// Iteration is always in lexicographic path order.
// A Files value is not safe for concurrent mutation.
type Files struct {
	members map[string]SourceFile
}

// New creates an empty file tree.
func New() *Files {
	return &Files{members: make(map[string]SourceFile)}
}

// Insert adds a file, replacing any previous file at the same path.
func (f *Files) Insert(p string, file SourceFile) {
	f.members[normalize(p)] = file
}

// InsertChildDirectory merges every file of sub under dir.
// On path collisions the later merge wins, so callers keep prefixes disjoint.
func (f *Files) InsertChildDirectory(dir string, sub *Files) {
	if sub == nil {
		return
	}
	for p, file := range sub.members {
		f.Insert(path.Join(dir, p), file)
	}
}

// Get looks up a file by path.
func (f *Files) Get(p string) (SourceFile, bool) {
	file, ok := f.members[normalize(p)]
	return file, ok
}

// MustGet looks up a file and panics when it is absent.
// Intended for tests and debugging.
func (f *Files) MustGet(p string) SourceFile {
	file, ok := f.Get(p)
	if !ok {
		panic("no such file, \"" + p + "\"")
	}
	return file
}

// Len returns the number of files in the tree.
func (f *Files) Len() int {
	return len(f.members)
}

// Paths returns every path in lexicographic order.
func (f *Files) Paths() []string {
	paths := make([]string, 0, len(f.members))
	for p := range f.members {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	return paths
}

// All yields (path, file) pairs in lexicographic path order.
func (f *Files) All() iter.Seq2[string, SourceFile] {
	return func(yield func(string, SourceFile) bool) {
		for _, p := range f.Paths() {
			if !yield(p, f.members[p]) {
				return
			}
		}
	}
}

// SaveToDisk writes every file below root, creating parent directories as
// needed. The first failure aborts and names the offending path; files
// written before the failure are left in place.
func (f *Files) SaveToDisk(root string) error {
	log := Logger()

	for p, file := range f.All() {
		full := filepath.Join(root, filepath.FromSlash(p))
		dir := filepath.Dir(full)

		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Write(dir, "create directory", err)
		}
		if err := os.WriteFile(full, file.Bytes(), 0o644); err != nil {
			return errors.Write(full, "write file", err)
		}
		log.Debug("wrote file", zap.String("path", full), zap.Int("bytes", file.Len()))
	}

	return nil
}

func normalize(p string) string {
	p = path.Clean(filepath.ToSlash(p))
	p = strings.TrimPrefix(p, "/")
	if p == "." {
		return ""
	}
	return p
}
