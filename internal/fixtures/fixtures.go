// Package fixtures builds modules and containers for tests and demos.
package fixtures

import (
	"github.com/wippyai/wasm-pack/container"
	"github.com/wippyai/wasm-pack/wasm"
)

// GreetInterface is a minimal exported interface.
const GreetInterface = `// Say hello.
greet: func(name: string) -> string
`

// CalcInterface exercises numbers, enums, records and lists.
const CalcInterface = `enum op { add, sub, mul }

record pair {
    a: s32,
    b: s32,
}

apply: func(o: op, a: s32, b: s32) -> s32
sum: func(values: list<s32>) -> s64
swap: func(p: pair) -> pair
ratio: func(a: f64, b: f64) -> f64
`

// HostInterface is imported by libraries that call back into the host.
const HostInterface = `log: func(message: string)
`

var (
	i32 = wasm.ValI32
	i64 = wasm.ValI64
	f64 = wasm.ValF64
)

// GreetModule returns a module exporting greet and the string allocator.
// With wasi set it also imports fd_write from wasi_snapshot_preview1.
func GreetModule(wasi bool) []byte {
	mem := uint32(1)
	m := &wasm.Module{
		Types: []wasm.FuncType{
			{Params: []wasm.ValType{i32, i32, i32, i32}, Results: []wasm.ValType{i32}}, // cabi_realloc, fd_write
			{Params: []wasm.ValType{i32, i32}, Results: []wasm.ValType{i32}},           // greet
		},
		Memory: &mem,
	}

	var imported uint32
	if wasi {
		m.Imports = []wasm.Import{{Module: wasm.WASISnapshotPreview, Name: "fd_write", TypeIdx: 0}}
		imported = 1
	}

	m.Funcs = []uint32{0, 1}
	m.Exports = []wasm.Export{
		{Name: "memory", Kind: wasm.KindMemory, Idx: 0},
		{Name: "cabi_realloc", Kind: wasm.KindFunc, Idx: imported},
		{Name: "greet", Kind: wasm.KindFunc, Idx: imported + 1},
	}
	return m.Encode()
}

// CalcModule returns a module matching CalcInterface.
func CalcModule() []byte {
	mem := uint32(1)
	m := &wasm.Module{
		Types: []wasm.FuncType{
			{Params: []wasm.ValType{i32, i32, i32, i32}, Results: []wasm.ValType{i32}}, // cabi_realloc
			{Params: []wasm.ValType{i32, i32, i32}, Results: []wasm.ValType{i32}},      // apply
			{Params: []wasm.ValType{i32, i32}, Results: []wasm.ValType{i64}},           // sum
			{Params: []wasm.ValType{i32, i32}, Results: []wasm.ValType{i32}},           // swap
			{Params: []wasm.ValType{f64, f64}, Results: []wasm.ValType{f64}},           // ratio
		},
		Funcs:  []uint32{0, 1, 2, 3, 4},
		Memory: &mem,
		Exports: []wasm.Export{
			{Name: "memory", Kind: wasm.KindMemory},
			{Name: "cabi_realloc", Kind: wasm.KindFunc, Idx: 0},
			{Name: "apply", Kind: wasm.KindFunc, Idx: 1},
			{Name: "sum", Kind: wasm.KindFunc, Idx: 2},
			{Name: "swap", Kind: wasm.KindFunc, Idx: 3},
			{Name: "ratio", Kind: wasm.KindFunc, Idx: 4},
		},
	}
	return m.Encode()
}

// CommandModule returns a WASI command exporting _start.
func CommandModule() []byte {
	mem := uint32(1)
	m := &wasm.Module{
		Types: []wasm.FuncType{
			{Params: []wasm.ValType{i32}},
			{},
		},
		Imports: []wasm.Import{{Module: wasm.WASISnapshotPreview, Name: "proc_exit", TypeIdx: 0}},
		Funcs:   []uint32{1},
		Memory:  &mem,
		Exports: []wasm.Export{
			{Name: "memory", Kind: wasm.KindMemory},
			{Name: "_start", Kind: wasm.KindFunc, Idx: 1},
		},
	}
	return m.Encode()
}

// GreetContainer builds "wasmer/greet@0.1.0" with a single greet library
// and no commands. legacy stores the interface under a flat
// "interfaces/greet.exports.wai" name.
func GreetContainer(wasi, legacy bool) []byte {
	b := container.NewBuilder("wasmer/greet", "0.1.0").
		Description("Greets people").
		Atom("greet", GreetModule(wasi)).
		File(container.MetadataVolume, "interfaces/greet.exports.wai", []byte(GreetInterface)).
		WaiBinding("library-bindings", "0.2.0", container.WaiBindings{
			Exports: "metadata://interfaces/greet.exports.wai",
			Module:  "atoms://greet",
		}).
		LegacyFlatNames(legacy)
	return mustEncode(b)
}

// WabtContainer builds "wasmer/wabt@1.0.0": a WASI library with an
// imported host interface plus two commands.
func WabtContainer() []byte {
	b := container.NewBuilder("wasmer/wabt", "1.0.0").
		Atom("wabt.wasm", GreetModule(true)).
		Atom("wat2wasm", CommandModule()).
		Atom("wasm-strip-atom", CommandModule()).
		File(container.MetadataVolume, "wabt.exports.wai", []byte(GreetInterface)).
		File(container.MetadataVolume, "host.wai", []byte(HostInterface)).
		WaiBinding("library-bindings", "0.2.0", container.WaiBindings{
			Exports: "metadata://wabt.exports.wai",
			Module:  "atoms://wabt.wasm",
			Imports: []string{"metadata://host.wai"},
		}).
		Command("wat2wasm", "wat2wasm").
		Command("wasm-strip", "wasm-strip-atom")
	return mustEncode(b)
}

func mustEncode(b *container.Builder) []byte {
	data, err := b.Encode()
	if err != nil {
		panic(err)
	}
	return data
}
