package container

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wippyai/wasm-pack/errors"
)

func sampleBuilder() *Builder {
	return NewBuilder("wasmer/wasmer-pack", "0.7.0").
		Description("Generate bindings").
		Atom("wasmer-pack-wasm", []byte("\x00asm\x01\x00\x00\x00")).
		Atom("wat2wasm", []byte("\x00asm\x01\x00\x00\x00cmd")).
		File(MetadataVolume, "wasmer-pack.exports.wai", []byte("greet: func(name: string) -> string")).
		File(MetadataVolume, "interfaces/browser.wai", []byte("log: func(msg: string)")).
		WaiBinding("library-bindings", "0.2.0", WaiBindings{
			Exports: "metadata://wasmer-pack.exports.wai",
			Module:  "atoms://wasmer-pack-wasm",
			Imports: []string{"metadata://interfaces/browser.wai"},
		}).
		Command("wat2wasm", "wat2wasm")
}

func TestRoundTrip(t *testing.T) {
	c, err := sampleBuilder().Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if c.PackageID() != "wasmer/wasmer-pack@0.7.0" {
		t.Errorf("PackageID() = %q", c.PackageID())
	}

	var wapm Wapm
	ok, err := c.Manifest().PackageAnnotation(AnnotationWapm, &wapm)
	if err != nil || !ok {
		t.Fatalf("wapm annotation: ok=%v err=%v", ok, err)
	}
	if wapm.Description != "Generate bindings" {
		t.Errorf("description = %q", wapm.Description)
	}

	m := c.Manifest()
	if len(m.Bindings) != 1 {
		t.Fatalf("expected 1 binding, got %d", len(m.Bindings))
	}
	exports, err := m.Bindings[0].Exports()
	if err != nil || exports != "metadata://wasmer-pack.exports.wai" {
		t.Errorf("Exports() = %q, %v", exports, err)
	}
	if imports := m.Bindings[0].Imports(); len(imports) != 1 {
		t.Errorf("Imports() = %v", imports)
	}
	if m.Bindings[0].Kind != "wai@0.2.0" {
		t.Errorf("Kind = %q", m.Bindings[0].Kind)
	}
	if len(m.Atoms) != 2 || !strings.HasPrefix(m.Atoms["wat2wasm"].Signature, "blake3:") {
		t.Errorf("Atoms = %+v", m.Atoms)
	}

	names := m.CommandNames()
	if len(names) != 1 || names[0] != "wat2wasm" {
		t.Fatalf("CommandNames() = %v", names)
	}
	var wasi WasiAnnotation
	if ok, err := m.Commands["wat2wasm"].Annotation(AnnotationWasi, &wasi); !ok || err != nil {
		t.Fatalf("wasi annotation: ok=%v err=%v", ok, err)
	}
	if wasi.Atom != "wat2wasm" {
		t.Errorf("wasi atom = %q", wasi.Atom)
	}

	atom, err := c.Atom(c.PackageID(), "wat2wasm")
	if err != nil {
		t.Fatalf("Atom failed: %v", err)
	}
	if string(atom) != "\x00asm\x01\x00\x00\x00cmd" {
		t.Errorf("atom bytes = %q", atom)
	}
	if len(c.Atoms()) != 2 {
		t.Errorf("Atoms() = %d entries", len(c.Atoms()))
	}

	vol, err := c.Volume(c.PackageID(), MetadataVolume)
	if err != nil {
		t.Fatalf("Volume failed: %v", err)
	}
	data, err := vol.GetFile("interfaces/browser.wai")
	if err != nil {
		t.Fatalf("GetFile failed: %v", err)
	}
	if string(data) != "log: func(msg: string)" {
		t.Errorf("GetFile = %q", data)
	}

	entries := vol.Entries()
	if e, ok := entries["interfaces"]; !ok || e.Kind != EntryDir {
		t.Errorf("interfaces entry = %+v, %v", e, ok)
	}
	if e, ok := entries["interfaces/browser.wai"]; !ok || e.Kind != EntryFile {
		t.Errorf("browser.wai entry = %+v, %v", e, ok)
	}
}

func TestLookupErrors(t *testing.T) {
	c, err := sampleBuilder().Build()
	if err != nil {
		t.Fatal(err)
	}

	notFound := &errors.Error{Phase: errors.PhaseLoad, Kind: errors.KindNotFound}

	if _, err := c.Volume(c.PackageID(), "missing"); !stderrors.Is(err, notFound) {
		t.Errorf("missing volume: %v", err)
	}
	if _, err := c.Atom(c.PackageID(), "missing"); !stderrors.Is(err, notFound) {
		t.Errorf("missing atom: %v", err)
	}
	if _, err := c.Atom("other/pkg@1.0.0", "wat2wasm"); !stderrors.Is(err, notFound) {
		t.Errorf("foreign package: %v", err)
	}

	vol, _ := c.Volume(c.PackageID(), MetadataVolume)
	if _, err := vol.GetFile("interfaces/missing.wai"); !stderrors.Is(err, notFound) {
		t.Errorf("missing file: %v", err)
	}
	if _, err := vol.GetFile("interfaces"); err == nil {
		t.Error("GetFile on a directory should fail")
	}
}

func TestLegacyFlatNames(t *testing.T) {
	c, err := sampleBuilder().LegacyFlatNames(true).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	vol, err := c.Volume(c.PackageID(), MetadataVolume)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := vol.GetFile("interfaces/browser.wai"); err == nil {
		t.Fatal("a flat name containing '/' should not be reachable by tree walk")
	}

	e, ok := vol.Entries()["interfaces/browser.wai"]
	if !ok || e.Kind != EntryFile {
		t.Fatalf("flattened entry = %+v, %v", e, ok)
	}
	if got := string(vol.Data()[e.Start:e.End]); got != "log: func(msg: string)" {
		t.Errorf("flattened bytes = %q", got)
	}

	// Names without '/' still resolve directly.
	if _, err := vol.GetFile("wasmer-pack.exports.wai"); err != nil {
		t.Errorf("root file: %v", err)
	}
}

func TestParse_Errors(t *testing.T) {
	good, err := sampleBuilder().Encode()
	if err != nil {
		t.Fatal(err)
	}

	corrupt := append([]byte(nil), good...)
	corrupt[len(corrupt)-1] ^= 0xff

	badVersion := append([]byte(nil), good...)
	copy(badVersion[len(Magic):], "002")

	badTag := append([]byte(nil), good...)
	copy(badTag[len(Magic)+len(Version):], "sha256----------")

	tests := []struct {
		name string
		data []byte
		kind errors.Kind
	}{
		{"short", []byte("\x00webc001"), errors.KindInvalidData},
		{"bad magic", append([]byte("\x00wasm"), good[5:]...), errors.KindInvalidData},
		{"bad version", badVersion, errors.KindUnsupported},
		{"checksum mismatch", corrupt, errors.KindChecksum},
		{"unknown checksum", badTag, errors.KindUnsupported},
		{"truncated", good[:len(good)-3], errors.KindChecksum},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.data)
			var e *errors.Error
			if !stderrors.As(err, &e) {
				t.Fatalf("expected *errors.Error, got %v", err)
			}
			if e.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v (%v)", e.Kind, tt.kind, err)
			}
		})
	}

	t.Run("truncated without checksum", func(t *testing.T) {
		data, err := sampleBuilder().Checksum(false).Encode()
		if err != nil {
			t.Fatal(err)
		}
		if _, err := Parse(data); err != nil {
			t.Fatalf("unchecked container should parse: %v", err)
		}
		if _, err := Parse(data[:len(data)-3]); err == nil {
			t.Error("expected error for truncated volume")
		}
	})
}

func TestFromDirectory(t *testing.T) {
	dir := t.TempDir()
	write := func(rel, content string) {
		full := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	write("wasmer.toml", `
[package]
name = "wasmer/calc"
version = "1.2.3"
description = "A calculator"

[[module]]
name = "calc"
source = "target/calc.wasm"
abi = "none"

[module.bindings]
wai-version = "0.2.0"
exports = "calc.exports.wai"
imports = ["wai/host.wai"]

[[module]]
name = "repl"
source = "target/repl.wasm"
abi = "wasi"

[[command]]
name = "calc-repl"
module = "repl"
`)
	write("target/calc.wasm", "calc-bytes")
	write("target/repl.wasm", "repl-bytes")
	write("calc.exports.wai", "add: func(a: u32, b: u32) -> u32")
	write("wai/host.wai", "now: func() -> u64")

	data, err := FromDirectory(dir)
	if err != nil {
		t.Fatalf("FromDirectory failed: %v", err)
	}
	c, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if c.PackageID() != "wasmer/calc@1.2.3" {
		t.Errorf("PackageID() = %q", c.PackageID())
	}
	b := c.Manifest().Bindings
	if len(b) != 1 || b[0].Annotations.Wai == nil {
		t.Fatalf("bindings = %+v", b)
	}
	if b[0].Annotations.Wai.Module != "atoms://calc" {
		t.Errorf("module = %q", b[0].Annotations.Wai.Module)
	}
	if imports := b[0].Imports(); len(imports) != 1 || imports[0] != "metadata://wai/host.wai" {
		t.Errorf("imports = %v", imports)
	}

	vol, err := c.Volume(c.PackageID(), MetadataVolume)
	if err != nil {
		t.Fatal(err)
	}
	if host, err := vol.GetFile("wai/host.wai"); err != nil || string(host) != "now: func() -> u64" {
		t.Errorf("host.wai = %q, %v", host, err)
	}

	var wasi WasiAnnotation
	cmd, ok := c.Manifest().Commands["calc-repl"]
	if !ok {
		t.Fatal("calc-repl command missing")
	}
	if _, err := cmd.Annotation(AnnotationWasi, &wasi); err != nil || wasi.Atom != "repl" {
		t.Errorf("command atom = %q, %v", wasi.Atom, err)
	}
}

func TestFromDirectory_Errors(t *testing.T) {
	t.Run("no manifest", func(t *testing.T) {
		_, err := FromDirectory(t.TempDir())
		if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseLoad, Kind: errors.KindNotFound}) {
			t.Errorf("expected not_found, got %v", err)
		}
	})

	t.Run("legacy wapm.toml and unknown command module", func(t *testing.T) {
		dir := t.TempDir()
		manifest := "[package]\nname = \"x\"\nversion = \"0.1.0\"\n\n[[command]]\nname = \"run\"\nmodule = \"ghost\"\n"
		if err := os.WriteFile(filepath.Join(dir, "wapm.toml"), []byte(manifest), 0o644); err != nil {
			t.Fatal(err)
		}
		_, err := FromDirectory(dir)
		if err == nil || !strings.Contains(err.Error(), `module "ghost" not found`) {
			t.Errorf("expected missing module error, got %v", err)
		}
	})

	t.Run("bad toml", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, "wasmer.toml"), []byte("[package\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := FromDirectory(dir); !stderrors.Is(err, &errors.Error{Phase: errors.PhaseParse, Kind: errors.KindInvalidData}) {
			t.Errorf("expected parse error, got %v", err)
		}
	})
}
