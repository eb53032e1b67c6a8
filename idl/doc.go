// Package idl parses interface definitions into typed function signatures.
//
// A Definition lists the functions an interface exposes and the named types
// they use, expressed with the go.bytecodealliance.org/wit type model so the
// binding generators can flatten them to core WebAssembly signatures.
//
// The Parser interface is the seam the container loader parses through.
// TextParser is the default implementation:
//
//	def, err := idl.NewParser().Parse("greet.exports.wai", `
//	    record greeting { text: string, loud: bool }
//	    greet: func(name: string) -> greeting
//	`)
//
// The interface name comes from the file name up to its first '.', so the
// example above is named "greet".
package idl
