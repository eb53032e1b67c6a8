package pack

import (
	"strings"

	"github.com/iancoleman/strcase"

	"github.com/wippyai/wasm-pack/errors"
)

// NamespaceKind distinguishes the three namespace forms.
type NamespaceKind uint8

const (
	// NamespaceNone means no namespace was given; the registry resolves the
	// bare name as an alias.
	NamespaceNone NamespaceKind = iota
	// NamespaceSome is an explicit user or organisation namespace.
	NamespaceSome
	// NamespaceUnderscore is the legacy global "_" namespace.
	NamespaceUnderscore
)

// Namespace is the user or organisation a package belongs to.
type Namespace struct {
	Kind  NamespaceKind
	Value string
}

// String returns the namespace text, or "" when none is present.
// The "_" namespace renders as "" too.
func (n Namespace) String() string {
	if n.Kind == NamespaceSome {
		return n.Value
	}
	return ""
}

// PackageName is a registry package name with an optional namespace,
// e.g. "wasmer/wasmer-pack".
type PackageName struct {
	namespace Namespace
	name      string
}

// ParseName parses "name", "namespace/name" or "_/name".
// Identifiers start with an ASCII letter followed by ASCII letters, digits,
// '-' or '_'.
func ParseName(raw string) (PackageName, error) {
	ns, name, hasNS := strings.Cut(raw, "/")
	if !hasNS {
		if err := checkIdentifier(raw, "package name"); err != nil {
			return PackageName{}, err
		}
		return PackageName{name: raw}, nil
	}

	namespace := Namespace{Kind: NamespaceUnderscore}
	if ns != "_" {
		if err := checkIdentifier(ns, "namespace"); err != nil {
			return PackageName{}, err
		}
		namespace = Namespace{Kind: NamespaceSome, Value: ns}
	}

	if err := checkIdentifier(name, "package name"); err != nil {
		return PackageName{}, err
	}

	return PackageName{namespace: namespace, name: name}, nil
}

// MustParseName is like ParseName but panics on error.
func MustParseName(raw string) PackageName {
	n, err := ParseName(raw)
	if err != nil {
		panic(err)
	}
	return n
}

// Name returns the bare package name.
func (n PackageName) Name() string {
	return n.name
}

// Namespace returns the package namespace.
func (n PackageName) Namespace() Namespace {
	return n.namespace
}

// String renders "namespace/name", or just "name" when no explicit
// namespace is present.
func (n PackageName) String() string {
	if ns := n.namespace.String(); ns != "" {
		return ns + "/" + n.name
	}
	return n.name
}

// JavaScriptPackage returns the npm name: "@namespace/name" or "name",
// lower-cased.
func (n PackageName) JavaScriptPackage() string {
	if ns := n.namespace.String(); ns != "" {
		return strings.ToLower("@" + ns + "/" + n.name)
	}
	return strings.ToLower(n.name)
}

// PythonName returns the import-package name: the bare name in snake case.
func (n PackageName) PythonName() string {
	return strcase.ToSnake(n.name)
}

func checkIdentifier(s, what string) error {
	fail := func(detail string) error {
		return errors.New(errors.PhaseParse, errors.KindInvalidInput).
			Value(s).
			Detail("%q is not a valid %s: %s", s, what, detail).
			Build()
	}

	if s == "" {
		return fail("identifiers can't be empty")
	}
	if !isASCIILetter(s[0]) {
		return fail("identifiers must start with an ascii letter")
	}
	for i := 1; i < len(s); i++ {
		c := s[i]
		if !isASCIILetter(c) && !('0' <= c && c <= '9') && c != '-' && c != '_' {
			return fail("identifiers can only contain '-', '_', ascii numbers, and letters")
		}
	}
	return nil
}

func isASCIILetter(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}
