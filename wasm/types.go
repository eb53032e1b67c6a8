package wasm

// ValType is a core WebAssembly value type.
type ValType byte

// String returns the text-format name of the value type.
func (v ValType) String() string {
	switch v {
	case ValI32:
		return "i32"
	case ValI64:
		return "i64"
	case ValF32:
		return "f32"
	case ValF64:
		return "f64"
	default:
		return "unknown"
	}
}

// FuncType is a function signature.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

// Import represents an imported function, table, memory, global, or tag.
type Import struct {
	Module string
	Name   string
	Kind   byte
	// TypeIdx is the signature index for function imports.
	TypeIdx uint32
}

// Export describes an exported item.
// Kind uses KindFunc, KindTable, KindMemory, KindGlobal, or KindTag constants.
type Export struct {
	Name string
	Kind byte
	Idx  uint32
}

// Module is the subset of a WebAssembly module this package reads and writes:
// signatures, imports, defined functions, one optional memory and exports.
type Module struct {
	Types   []FuncType
	Imports []Import
	// Funcs holds the type index of each defined function.
	Funcs   []uint32
	Exports []Export
	// Memory is the minimum page count of the single defined memory,
	// or nil when the module defines none.
	Memory *uint32
}
