// Package container reads and writes the binary container format that
// bundles a package's compiled modules (atoms), its interface files
// (volumes) and a CBOR manifest.
//
// The layout is:
//
//	magic     "\x00webc"
//	version   "001"
//	checksum  16-byte tag ("blake3" padded with '-', or all '-') + 32-byte hash
//	manifest  u64 LE length + canonical CBOR
//	atoms     u64 LE length + volume
//	volumes   repeated: u64 LE name length + name, u64 LE length + volume
//
// A volume is a CBOR directory tree followed by a data section; each file
// node records the [start, end) range of its bytes within that section.
//
// Builder writes containers and FromDirectory packs a directory described
// by wasmer.toml. Parse reads them back into a Container, which satisfies
// the Reader interface the loader consumes.
package container
