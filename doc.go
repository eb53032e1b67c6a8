// Package wasmpack turns WebAssembly containers into installable npm and
// pip packages.
//
// A container bundles compiled modules with the interfaces they export.
// The loader extracts a package description from it, and a language
// generator turns that description into a virtual file tree which is then
// written to disk.
//
// # Architecture Overview
//
//	wasmpack/            Version and generator banner
//	├── container/       Container format: reader, builder, wasmer.toml packer
//	├── loader/          Container → package model
//	├── pack/            Package model and ABI detection
//	├── idl/             Interface definitions and the default parser
//	├── bindgen/         Marshalling glue for exported and imported interfaces
//	├── js/              npm package generator
//	├── python/          pip package generator
//	├── files/           Virtual file tree
//	├── wasm/            Core module encoding and import scanning
//	├── errors/          Structured error types
//	└── cmd/wasm-pack/   Command line interface
//
// # Quick Start
//
// Generate JavaScript bindings for a container:
//
//	pkg, err := loader.New().LoadBytes(data)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	tree, err := js.Generate(pkg, js.Options{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := tree.SaveToDisk("out"); err != nil {
//	    log.Fatal(err)
//	}
package wasmpack
