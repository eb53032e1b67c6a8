// Package bindgen generates the glue code that lets JavaScript and Python
// call a WebAssembly library through its interface.
//
// Interface functions are flattened to core wasm signatures following the
// canonical ABI (see CoreSignature). Strings, lists and records are copied
// through the guest's linear memory using the guest's cabi_realloc export;
// results that do not fit a single core value are read back through a
// return pointer. Types the glue cannot marshal still produce a function,
// one that fails when called, and a warning on the package logger.
//
// Both generators implement Generator:
//
//	tree, err := bindgen.NewJavaScript().Generate(exports, imports...)
//	tree, err := bindgen.NewPython().Generate(exports, imports...)
package bindgen
