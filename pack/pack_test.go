package pack

import (
	stderrors "errors"
	"testing"

	"github.com/wippyai/wasm-pack/errors"
	"github.com/wippyai/wasm-pack/idl"
	"github.com/wippyai/wasm-pack/wasm"
)

func TestParseName(t *testing.T) {
	tests := []struct {
		input string
		ok    bool
	}{
		{"package", true},
		{"namespace/package_name", true},
		{"_/package_name", true},
		{"name-space/package-name", true},
		{"n9/p21", true},
		{"wasmer/package", true},
		{"abcdefghijklmopqrstuvwxyz_ABCDEFGHIJKLMOPQRSTUVWXYZ0123456789/abcdefghijklmopqrstuvwxyz-ABCDEFGHIJKLMOPQRSTUVWXYZ0123456789", true},
		{"_wasmer/package", false},
		{"wasmer/_package", false},
		{"लाज/तोब", false},
		{"-wasmer/package", false},
		{"wasmer/-package", false},
		{"wasmer/-", false},
		{"wasmer/597d361e-f431-4960-9b2a-7e78ec0dbfeb", false},
		{"name space/name", false},
		{"@wasmer/package-name", false},
		{"a/b/c", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := ParseName(tt.input)
			if (err == nil) != tt.ok {
				t.Errorf("ParseName(%q) error = %v, want ok=%v", tt.input, err, tt.ok)
			}
			if err != nil && !stderrors.Is(err, &errors.Error{Phase: errors.PhaseParse, Kind: errors.KindInvalidInput}) {
				t.Errorf("unexpected error class: %v", err)
			}
		})
	}
}

func TestPackageName_RoundTrip(t *testing.T) {
	for _, s := range []string{"wasmer/wasmer-pack", "wabt", "Org_1/Name-2"} {
		if got := MustParseName(s).String(); got != s {
			t.Errorf("ParseName(%q).String() = %q", s, got)
		}
	}

	underscore := MustParseName("_/legacy")
	if underscore.Namespace().Kind != NamespaceUnderscore {
		t.Errorf("namespace kind = %v, want underscore", underscore.Namespace().Kind)
	}
	if underscore.String() != "legacy" {
		t.Errorf("underscore namespace should render bare, got %q", underscore.String())
	}
}

func TestPackageName_Ecosystems(t *testing.T) {
	tests := []struct {
		input  string
		npm    string
		python string
	}{
		{"wasmer/wasmer-pack", "@wasmer/wasmer-pack", "wasmer_pack"},
		{"Wasmer/WABT", "@wasmer/wabt", "wabt"},
		{"_/quick-js", "quick-js", "quick_js"},
		{"wit-pack", "wit-pack", "wit_pack"},
	}
	for _, tt := range tests {
		name := MustParseName(tt.input)
		if got := name.JavaScriptPackage(); got != tt.npm {
			t.Errorf("%q JavaScriptPackage() = %q, want %q", tt.input, got, tt.npm)
		}
		if got := name.PythonName(); got != tt.python {
			t.Errorf("%q PythonName() = %q, want %q", tt.input, got, tt.python)
		}
	}
}

func TestAbi(t *testing.T) {
	for _, s := range []string{"none", "wasi"} {
		a, err := ParseAbi(s)
		if err != nil {
			t.Fatalf("ParseAbi(%q): %v", s, err)
		}
		if a.String() != s {
			t.Errorf("String() = %q, want %q", a.String(), s)
		}
	}
	if _, err := ParseAbi("emscripten"); err == nil {
		t.Error("expected error for unknown ABI")
	}
}

func TestDetectAbi(t *testing.T) {
	wasi := &wasm.Module{
		Types:   []wasm.FuncType{{Params: []wasm.ValType{wasm.ValI32}}},
		Imports: []wasm.Import{{Module: wasm.WASISnapshotPreview, Name: "proc_exit"}},
	}
	unstable := &wasm.Module{
		Types:   []wasm.FuncType{{}},
		Imports: []wasm.Import{{Module: wasm.WASIUnstable, Name: "sched_yield"}},
	}
	env := &wasm.Module{
		Types:   []wasm.FuncType{{}},
		Imports: []wasm.Import{{Module: "env", Name: "abort"}},
	}

	tests := []struct {
		name string
		data []byte
		want Abi
	}{
		{"snapshot preview1", wasi.Encode(), AbiWasi},
		{"unstable", unstable.Encode(), AbiWasi},
		{"env imports only", env.Encode(), AbiNone},
		{"empty module", (&wasm.Module{}).Encode(), AbiNone},
		{"garbage", []byte("definitely not wasm"), AbiNone},
		{"nil", nil, AbiNone},
		{"truncated section after imports", append(wasi.Encode(), 0x00, 0x7f, 0x01), AbiWasi},
		{"truncated section without imports", append(env.Encode()[:8], 0x00, 0x7f, 0x01), AbiNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectAbi(tt.data); got != tt.want {
				t.Errorf("DetectAbi = %v, want %v", got, tt.want)
			}
		})
	}
}

func library(name string, abi Abi) Library {
	return Library{
		Module:  Module{Name: name, Abi: abi},
		Exports: NewInterface(&idl.Definition{Name: name}),
	}
}

func TestLibrary(t *testing.T) {
	lib := Library{
		Module:  Module{Name: "wasmer-pack-wasm"},
		Exports: NewInterface(&idl.Definition{Name: "wasmer-pack"}),
	}
	if lib.InterfaceName() != "wasmer-pack" {
		t.Errorf("InterfaceName() = %q", lib.InterfaceName())
	}
	if lib.ClassName() != "WasmerPack" {
		t.Errorf("ClassName() = %q", lib.ClassName())
	}
	if lib.ModuleFilename() != "wasmer-pack-wasm.wasm" {
		t.Errorf("ModuleFilename() = %q", lib.ModuleFilename())
	}

	lib.Module.Name = "dir/calc.wasm"
	if lib.ModuleFilename() != "calc.wasm" {
		t.Errorf("ModuleFilename() = %q, want calc.wasm", lib.ModuleFilename())
	}
}

func TestNew(t *testing.T) {
	meta := NewMetadata(MustParseName("wasmer/pkg"), "1.0.0")

	t.Run("unique names", func(t *testing.T) {
		p, err := New(meta,
			[]Library{library("a", AbiNone), library("b", AbiNone)},
			[]Command{{Name: "x"}, {Name: "y"}},
		)
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		if len(p.Libraries()) != 2 || len(p.Commands()) != 2 {
			t.Errorf("got %d libraries, %d commands", len(p.Libraries()), len(p.Commands()))
		}
	})

	t.Run("duplicate library", func(t *testing.T) {
		_, err := New(meta, []Library{library("a", AbiNone), library("a", AbiWasi)}, nil)
		var e *errors.Error
		if !stderrors.As(err, &e) || e.Kind != errors.KindDuplicateName {
			t.Fatalf("expected duplicate_name error, got %v", err)
		}
		if e.Value != "a" {
			t.Errorf("Value = %v, want a", e.Value)
		}
	})

	t.Run("duplicate command", func(t *testing.T) {
		_, err := New(meta, nil, []Command{{Name: "run"}, {Name: "run"}})
		if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseValidate, Kind: errors.KindDuplicateName}) {
			t.Fatalf("expected duplicate_name error, got %v", err)
		}
	})

	t.Run("library and command may share a name", func(t *testing.T) {
		if _, err := New(meta, []Library{library("wabt", AbiNone)}, []Command{{Name: "wabt"}}); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("MustNew panics", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Error("expected panic")
			}
		}()
		MustNew(meta, nil, []Command{{Name: "run"}, {Name: "run"}})
	})
}

func TestRequiresWASI(t *testing.T) {
	meta := NewMetadata(MustParseName("pkg"), "0.1.0").WithDescription("demo")
	if meta.Description != "demo" {
		t.Errorf("Description = %q", meta.Description)
	}

	tests := []struct {
		name      string
		libraries []Library
		commands  []Command
		want      bool
	}{
		{"empty", nil, nil, false},
		{"plain library", []Library{library("a", AbiNone)}, nil, false},
		{"wasi library", []Library{library("a", AbiNone), library("b", AbiWasi)}, nil, true},
		{"command only", nil, []Command{{Name: "run"}}, true},
		{"plain library and command", []Library{library("a", AbiNone)}, []Command{{Name: "run"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := MustNew(meta, tt.libraries, tt.commands)
			if got := p.RequiresWASI(); got != tt.want {
				t.Errorf("RequiresWASI() = %v, want %v", got, tt.want)
			}
		})
	}
}
