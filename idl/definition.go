package idl

import (
	"go.bytecodealliance.org/wit"
)

// DeclKind identifies the form of a named type declaration.
type DeclKind string

const (
	DeclRecord   DeclKind = "record"
	DeclEnum     DeclKind = "enum"
	DeclFlags    DeclKind = "flags"
	DeclVariant  DeclKind = "variant"
	DeclUnion    DeclKind = "union"
	DeclAlias    DeclKind = "type"
	DeclResource DeclKind = "resource"
)

// Definition is a parsed interface: its functions and the named types they
// refer to. Named types are *wit.TypeDef values shared by pointer, so every
// use of a name resolves to the same TypeDef.
type Definition struct {
	// Name is the interface name, derived from the file it was read from.
	Name string
	// Path is the location the source was read from.
	Path      string
	Functions []*Function
	Types     []*TypeDecl
}

// Function is a free function exported or imported through the interface.
type Function struct {
	Name    string
	Params  []Param
	Results []Param
}

// Param is a named (or, for results, possibly unnamed) value.
type Param struct {
	Name string
	Type wit.Type
}

// TypeDecl is a named type declaration.
type TypeDecl struct {
	Name string
	Kind DeclKind
	Def  *wit.TypeDef
}

// Function looks up a function by name.
func (d *Definition) Function(name string) (*Function, bool) {
	for _, f := range d.Functions {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

// Decl looks up a named type.
func (d *Definition) Decl(name string) (*TypeDecl, bool) {
	for _, t := range d.Types {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}

// NameOf returns the declared name of t when t is one of the definition's
// named types.
func (d *Definition) NameOf(t wit.Type) (string, bool) {
	td, ok := t.(*wit.TypeDef)
	if !ok {
		return "", false
	}
	for _, decl := range d.Types {
		if decl.Def == td {
			return decl.Name, true
		}
	}
	return "", false
}

// ParamTypes returns the parameter types in order.
func (f *Function) ParamTypes() []wit.Type {
	types := make([]wit.Type, len(f.Params))
	for i, p := range f.Params {
		types[i] = p.Type
	}
	return types
}

// ResultTypes returns the result types in order.
func (f *Function) ResultTypes() []wit.Type {
	types := make([]wit.Type, len(f.Results))
	for i, r := range f.Results {
		types[i] = r.Type
	}
	return types
}
