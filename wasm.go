package wasmpack

// Version is the wasm-pack release, embedded in generated packages.
const Version = "0.7.1"

// Generator identifies this tool in generated files, e.g. "wasm-pack v0.7.1".
func Generator() string {
	return "wasm-pack v" + Version
}
