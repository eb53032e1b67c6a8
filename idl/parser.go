package idl

import (
	"path"
	"regexp"
	"strconv"
	"strings"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/wasm-pack/errors"
)

// Parser turns interface source text into a Definition.
type Parser interface {
	Parse(path, source string) (*Definition, error)
}

// ParserFunc adapts a function to the Parser interface.
type ParserFunc func(path, source string) (*Definition, error)

// Parse calls f(path, source).
func (f ParserFunc) Parse(path, source string) (*Definition, error) {
	return f(path, source)
}

// TextParser reads the line-oriented interface text format: free functions
// (`name: func(a: T) -> R`), record, enum, flags, variant, union and
// resource declarations, and `type x = T` aliases.
type TextParser struct{}

// NewParser returns the default text parser.
func NewParser() *TextParser {
	return &TextParser{}
}

var (
	funcPattern  = regexp.MustCompile(`(?m)^[ \t]*(?:export[ \t]+)?(%?[a-zA-Z][a-zA-Z0-9_-]*)[ \t]*:[ \t]*func[ \t]*\(([^)]*)\)(?:[ \t]*->[ \t]*([^\n;]+))?`)
	declPattern  = regexp.MustCompile(`(?m)^[ \t]*(record|enum|flags|variant|union|resource)[ \t]+(%?[a-zA-Z][a-zA-Z0-9_-]*)\s*(\{[^}]*\})?`)
	aliasPattern = regexp.MustCompile(`(?m)^[ \t]*type[ \t]+(%?[a-zA-Z][a-zA-Z0-9_-]*)[ \t]*=[ \t]*([^\n;]+)`)
	identPattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]*$`)
)

// InterfaceName derives an interface name from the file it was read from:
// the base name up to its first '.', so "greet.exports.wai" names "greet".
func InterfaceName(p string) string {
	base := path.Base(strings.ReplaceAll(p, "\\", "/"))
	if i := strings.IndexByte(base, '.'); i > 0 {
		return base[:i]
	}
	return base
}

type declSite struct {
	decl   *TypeDecl
	body   string
	offset int
}

type parseState struct {
	path  string
	text  string
	def   *Definition
	names map[string]*TypeDecl
}

// Parse parses source read from path.
func (p *TextParser) Parse(filePath, source string) (*Definition, error) {
	st := &parseState{
		path: filePath,
		text: stripComments(source),
		def: &Definition{
			Name: InterfaceName(filePath),
			Path: filePath,
		},
		names: make(map[string]*TypeDecl),
	}

	masked := []byte(st.text)
	var sites []declSite

	// Register every name first so declarations may refer to each other
	// regardless of order.
	for _, m := range declPattern.FindAllStringSubmatchIndex(st.text, -1) {
		kind := DeclKind(st.text[m[2]:m[3]])
		name := ident(st.text[m[4]:m[5]])
		body := ""
		if m[6] >= 0 {
			body = st.text[m[6]+1 : m[7]-1]
		} else if kind != DeclResource {
			return nil, st.errorAt(m[0], "%s %q has no body", kind, name)
		}
		decl, err := st.declare(name, kind, m[0])
		if err != nil {
			return nil, err
		}
		sites = append(sites, declSite{decl: decl, body: body, offset: m[0]})
		mask(masked, m[0], m[1])
	}
	for _, m := range aliasPattern.FindAllStringSubmatchIndex(st.text, -1) {
		name := ident(st.text[m[2]:m[3]])
		decl, err := st.declare(name, DeclAlias, m[0])
		if err != nil {
			return nil, err
		}
		sites = append(sites, declSite{decl: decl, body: st.text[m[4]:m[5]], offset: m[0]})
		mask(masked, m[0], m[1])
	}

	for _, site := range sites {
		if err := st.define(site); err != nil {
			return nil, err
		}
	}

	seen := make(map[string]bool)
	for _, m := range funcPattern.FindAllStringSubmatchIndex(string(masked), -1) {
		fn, err := st.function(masked, m)
		if err != nil {
			return nil, err
		}
		if seen[fn.Name] {
			return nil, st.errorAt(m[0], "duplicate function %q", fn.Name)
		}
		seen[fn.Name] = true
		st.def.Functions = append(st.def.Functions, fn)
	}

	return st.def, nil
}

func (st *parseState) declare(name string, kind DeclKind, offset int) (*TypeDecl, error) {
	if _, exists := st.names[name]; exists {
		return nil, st.errorAt(offset, "duplicate type %q", name)
	}
	decl := &TypeDecl{Name: name, Kind: kind, Def: &wit.TypeDef{}}
	st.names[name] = decl
	st.def.Types = append(st.def.Types, decl)
	return decl, nil
}

func (st *parseState) define(site declSite) error {
	decl := site.decl
	items := splitTop(strings.ReplaceAll(site.body, "\n", ","))

	switch decl.Kind {
	case DeclRecord:
		record := &wit.Record{}
		for _, item := range items {
			name, typ, err := st.namedType(item, site.offset)
			if err != nil {
				return err
			}
			record.Fields = append(record.Fields, wit.Field{Name: name, Type: typ})
		}
		decl.Def.Kind = record

	case DeclEnum:
		enum := &wit.Enum{}
		for _, item := range items {
			enum.Cases = append(enum.Cases, wit.EnumCase{Name: ident(item)})
		}
		decl.Def.Kind = enum

	case DeclFlags:
		flags := &wit.Flags{}
		for _, item := range items {
			flags.Flags = append(flags.Flags, wit.Flag{Name: ident(item)})
		}
		decl.Def.Kind = flags

	case DeclVariant:
		variant := &wit.Variant{}
		for _, item := range items {
			c := wit.Case{Name: ident(item)}
			if open := strings.IndexByte(item, '('); open >= 0 {
				if !strings.HasSuffix(item, ")") {
					return st.errorAt(site.offset, "malformed case %q", item)
				}
				c.Name = ident(item[:open])
				typ, err := st.parseType(item[open+1:len(item)-1], site.offset)
				if err != nil {
					return err
				}
				c.Type = typ
			}
			variant.Cases = append(variant.Cases, c)
		}
		decl.Def.Kind = variant

	case DeclUnion:
		variant := &wit.Variant{}
		for i, item := range items {
			typ, err := st.parseType(item, site.offset)
			if err != nil {
				return err
			}
			variant.Cases = append(variant.Cases, wit.Case{Name: caseName(i), Type: typ})
		}
		decl.Def.Kind = variant

	case DeclResource:
		// Resources cross the boundary as opaque u32 handles.
		decl.Def.Kind = wit.U32{}

	case DeclAlias:
		typ, err := st.parseType(site.body, site.offset)
		if err != nil {
			return err
		}
		if typ == decl.Def {
			return st.errorAt(site.offset, "type %q refers to itself", decl.Name)
		}
		kind, ok := typ.(wit.TypeDefKind)
		if !ok {
			return st.errorAt(site.offset, "type %q has no underlying type", decl.Name)
		}
		decl.Def.Kind = kind
	}

	return nil
}

func (st *parseState) function(masked []byte, m []int) (*Function, error) {
	text := string(masked)
	fn := &Function{Name: ident(text[m[2]:m[3]])}

	for _, item := range splitTop(text[m[4]:m[5]]) {
		name, typ, err := st.namedType(item, m[0])
		if err != nil {
			return nil, err
		}
		fn.Params = append(fn.Params, Param{Name: name, Type: typ})
	}

	if m[6] < 0 {
		return fn, nil
	}
	result := strings.TrimSpace(text[m[6]:m[7]])
	if result == "" || result == "()" {
		return fn, nil
	}

	if strings.HasPrefix(result, "(") && strings.HasSuffix(result, ")") {
		for _, item := range splitTop(result[1 : len(result)-1]) {
			if strings.Contains(item, ":") {
				name, typ, err := st.namedType(item, m[0])
				if err != nil {
					return nil, err
				}
				fn.Results = append(fn.Results, Param{Name: name, Type: typ})
				continue
			}
			typ, err := st.parseType(item, m[0])
			if err != nil {
				return nil, err
			}
			fn.Results = append(fn.Results, Param{Type: typ})
		}
		return fn, nil
	}

	typ, err := st.parseType(result, m[0])
	if err != nil {
		return nil, err
	}
	fn.Results = []Param{{Type: typ}}
	return fn, nil
}

func (st *parseState) namedType(item string, offset int) (string, wit.Type, error) {
	name, typ, ok := strings.Cut(item, ":")
	if !ok {
		return "", nil, st.errorAt(offset, "expected \"name: type\", got %q", item)
	}
	name = ident(name)
	if !identPattern.MatchString(name) {
		return "", nil, st.errorAt(offset, "invalid identifier %q", name)
	}
	t, err := st.parseType(typ, offset)
	if err != nil {
		return "", nil, err
	}
	if t == nil {
		return "", nil, st.errorAt(offset, "%q needs a type", name)
	}
	return name, t, nil
}

// parseType resolves a type expression. "_" yields nil, which is only
// meaningful inside result<...>.
func (st *parseState) parseType(s string, offset int) (wit.Type, error) {
	s = strings.TrimSpace(s)

	if s == "_" {
		return nil, nil
	}

	if open := strings.IndexByte(s, '<'); open > 0 && strings.HasSuffix(s, ">") {
		ctor := s[:open]
		args := splitTop(s[open+1 : len(s)-1])
		return st.generic(ctor, args, offset)
	}

	switch s {
	case "result", "expected":
		return &wit.TypeDef{Kind: &wit.Result{}}, nil
	case "float32":
		return wit.F32{}, nil
	case "float64":
		return wit.F64{}, nil
	}

	if rest, ok := strings.CutPrefix(s, "handle "); ok {
		return st.resource(strings.TrimSpace(rest), offset)
	}

	if t, err := wit.ParseType(s); err == nil {
		return t, nil
	}

	if decl, ok := st.names[ident(s)]; ok {
		return decl.Def, nil
	}

	return nil, st.errorAt(offset, "unknown type %q", s)
}

func (st *parseState) generic(ctor string, args []string, offset int) (wit.Type, error) {
	types := make([]wit.Type, len(args))
	if ctor != "own" && ctor != "borrow" {
		for i, arg := range args {
			t, err := st.parseType(arg, offset)
			if err != nil {
				return nil, err
			}
			types[i] = t
		}
	}

	arity := func(n int) error {
		if len(args) != n {
			return st.errorAt(offset, "%s takes %d type argument(s), got %d", ctor, n, len(args))
		}
		return nil
	}

	switch ctor {
	case "list":
		if err := arity(1); err != nil {
			return nil, err
		}
		return &wit.TypeDef{Kind: &wit.List{Type: types[0]}}, nil
	case "option":
		if err := arity(1); err != nil {
			return nil, err
		}
		return &wit.TypeDef{Kind: &wit.Option{Type: types[0]}}, nil
	case "result", "expected":
		switch len(types) {
		case 1:
			return &wit.TypeDef{Kind: &wit.Result{OK: types[0]}}, nil
		case 2:
			return &wit.TypeDef{Kind: &wit.Result{OK: types[0], Err: types[1]}}, nil
		}
		return nil, st.errorAt(offset, "%s takes 1 or 2 type arguments, got %d", ctor, len(args))
	case "tuple":
		return &wit.TypeDef{Kind: &wit.Tuple{Types: types}}, nil
	case "own", "borrow":
		if err := arity(1); err != nil {
			return nil, err
		}
		return st.resource(strings.TrimSpace(args[0]), offset)
	}

	return nil, st.errorAt(offset, "unsupported type constructor %q", ctor)
}

func (st *parseState) resource(name string, offset int) (wit.Type, error) {
	decl, ok := st.names[ident(name)]
	if !ok || decl.Kind != DeclResource {
		return nil, st.errorAt(offset, "unknown resource %q", name)
	}
	return decl.Def, nil
}

func (st *parseState) errorAt(offset int, format string, args ...any) error {
	line := strings.Count(st.text[:offset], "\n") + 1
	return errors.New(errors.PhaseParse, errors.KindInvalidData).
		Path(st.path).
		Value(line).
		Detail("line %d: "+format, append([]any{line}, args...)...).
		Build()
}

// stripComments blanks out // and /* */ comments, keeping newlines so
// offsets still map to source lines.
func stripComments(src string) string {
	out := []byte(src)
	for i := 0; i < len(out); i++ {
		if out[i] != '/' || i+1 >= len(out) {
			continue
		}
		switch out[i+1] {
		case '/':
			for ; i < len(out) && out[i] != '\n'; i++ {
				out[i] = ' '
			}
		case '*':
			end := strings.Index(string(out[i+2:]), "*/")
			stop := len(out)
			if end >= 0 {
				stop = i + 2 + end + 2
			}
			mask(out, i, stop)
			i = stop - 1
		}
	}
	return string(out)
}

func mask(buf []byte, start, end int) {
	for i := start; i < end; i++ {
		if buf[i] != '\n' {
			buf[i] = ' '
		}
	}
}

// splitTop splits a comma-separated list, ignoring commas nested inside
// <...> or (...). Empty items are dropped.
func splitTop(s string) []string {
	var result []string
	var current strings.Builder
	depth := 0

	for _, ch := range s {
		switch ch {
		case '(', '<':
			depth++
			current.WriteRune(ch)
		case ')', '>':
			depth--
			current.WriteRune(ch)
		case ',':
			if depth == 0 {
				if str := strings.TrimSpace(current.String()); str != "" {
					result = append(result, str)
				}
				current.Reset()
			} else {
				current.WriteRune(ch)
			}
		default:
			current.WriteRune(ch)
		}
	}

	if str := strings.TrimSpace(current.String()); str != "" {
		result = append(result, str)
	}

	return result
}

func ident(s string) string {
	return strings.TrimPrefix(strings.TrimSpace(s), "%")
}

func caseName(i int) string {
	return "c" + strconv.Itoa(i)
}
