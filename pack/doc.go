// Package pack is the in-memory model of a package to generate bindings for.
//
// A Package holds Metadata, an ordered list of Library values (a Module plus
// its exported and imported Interfaces) and an ordered list of Command
// values. It is built once, never mutated, and handed to one generator per
// target language.
package pack
