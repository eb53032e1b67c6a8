// Package wasm reads and writes the small part of the WebAssembly binary
// format that package generation needs.
//
// ParseImports walks a module's sections, decoding only the import section
// and skipping everything else by its declared size. ImportModules reduces
// that to the set of host namespaces, which is enough to tell a WASI module
// from a freestanding one:
//
//	names, err := wasm.ImportModules(data)
//	if slices.Contains(names, wasm.WASISnapshotPreview) { ... }
//
// Module.Encode produces valid binaries from a list of signatures, imports,
// functions, an optional memory and exports. It is used to build test
// fixtures and sample packages:
//
//	m := &wasm.Module{
//	    Types:   []wasm.FuncType{{Params: []wasm.ValType{wasm.ValI32}, Results: []wasm.ValType{wasm.ValI32}}},
//	    Funcs:   []uint32{0},
//	    Exports: []wasm.Export{{Name: "double", Kind: wasm.KindFunc, Idx: 0}},
//	}
//	data := m.Encode()
package wasm
