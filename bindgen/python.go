package bindgen

import (
	_ "embed"
	"strconv"
	"strings"

	"github.com/iancoleman/strcase"
	"github.com/tetratelabs/wazero/api"
	"go.bytecodealliance.org/wit"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-pack/errors"
	"github.com/wippyai/wasm-pack/files"
	"github.com/wippyai/wasm-pack/idl"
)

//go:embed runtime/intrinsics.py
var pyIntrinsics string

// PythonBindingsFile is the single module the Python generator emits.
const PythonBindingsFile = "bindings.py"

var pyReserved = map[string]bool{
	"False": true, "None": true, "True": true, "and": true, "as": true,
	"assert": true, "async": true, "await": true, "break": true, "class": true,
	"continue": true, "def": true, "del": true, "elif": true, "else": true,
	"except": true, "finally": true, "for": true, "from": true, "global": true,
	"if": true, "import": true, "in": true, "is": true, "lambda": true,
	"nonlocal": true, "not": true, "or": true, "pass": true, "raise": true,
	"return": true, "try": true, "while": true, "with": true, "yield": true,
	// locals used by the generated method bodies
	"self": true, "memory": true, "realloc": true, "ret": true, "result": true,
}

// Python generates a single bindings.py module for the wasmer Python
// runtime. Imported interfaces become Protocol classes with an
// add_x_to_imports function; the exported interface becomes a class.
type Python struct{}

// NewPython creates a Python glue generator.
func NewPython() *Python {
	return &Python{}
}

// PythonImportsFunction is the name of the function registering a host
// implementation of an imported interface.
func PythonImportsFunction(iface string) string {
	return "add_" + strcase.ToSnake(iface) + "_to_imports"
}

// Generate implements Generator.
func (g *Python) Generate(exports *idl.Definition, imports ...*idl.Definition) (*files.Files, error) {
	src := newSource("    ")
	for _, line := range strings.Split(strings.TrimRight(pyIntrinsics, "\n"), "\n") {
		src.line("%s", line)
	}

	for _, imp := range imports {
		if err := g.imports(src, imp); err != nil {
			return nil, errors.Generate(PythonBindingsFile, err)
		}
	}
	if err := g.exports(src, exports); err != nil {
		return nil, errors.Generate(PythonBindingsFile, err)
	}

	out := files.New()
	out.Insert(PythonBindingsFile, files.FromString(src.String()))
	Logger().Debug("generated python glue", zap.String("interface", exports.Name))
	return out, nil
}

func (g *Python) exports(src *source, def *idl.Definition) error {
	d := pyDialect{}
	e := newEmitter(d, def)

	pyTypeDecls(src, def)

	src.line("")
	src.line("")
	src.line("class %s:", strcase.ToCamel(def.Name))
	src.in()
	src.line("instance: wasmer.Instance")
	src.line("")
	src.line("def __init__(self, store: wasmer.Store, imports: wasmer.ImportObject, module: wasmer.Module):")
	src.line("    self.instance = wasmer.Instance(module, imports)")
	src.line("")
	src.line("def _export(self, name: str) -> Any:")
	src.line("    return getattr(self.instance.exports, name)")
	src.line("")
	src.line("def _memory(self) -> wasmer.Memory:")
	src.line("    return self._export(\"memory\")")
	src.line("")
	src.line("def _realloc(self) -> Callable:")
	src.line("    try:")
	src.line("        return self._export(\"cabi_realloc\")")
	src.line("    except AttributeError:")
	src.line("        return self._export(\"canonical_abi_realloc\")")
	src.line("")
	src.line("def _post_return(self, name: str, ret: int) -> None:")
	src.line("    post = getattr(self.instance.exports, \"cabi_post_\" + name, None)")
	src.line("    if post is not None:")
	src.line("        post(ret)")

	for _, fn := range def.Functions {
		params := make([]string, len(fn.Params))
		for i, p := range fn.Params {
			params[i] = d.fieldName(p.Name)
		}

		src.line("")
		src.line("def %s(self%s) -> %s:", d.funcName(fn.Name), pyParams(def, fn), pyResult(def, fn))
		src.in()
		call, err := e.exportCall(fn, params)
		switch {
		case err != nil && isUnsupported(err):
			warnUnsupported("python", def, err)
			src.line("return _unsupported(%s)", strconv.Quote(unsupportedMessage(err)))
		case err != nil:
			return err
		default:
			src.line("memory = self._memory()")
			src.line("realloc = self._realloc()")
			for _, s := range call.stmts {
				src.line("%s", s)
			}
			invoke := "self._export(" + strconv.Quote(fn.Name) + ")(" + strings.Join(call.args, ", ") + ")"
			switch {
			case call.result == "":
				src.line("%s", invoke)
			case call.indirect:
				src.line("ret = %s", invoke)
				src.line("result = %s", call.result)
				src.line("self._post_return(%s, ret)", strconv.Quote(fn.Name))
				src.line("return result")
			default:
				src.line("ret = %s", invoke)
				src.line("return %s", call.result)
			}
		}
		src.out()
	}
	src.out()
	return nil
}

func (g *Python) imports(src *source, def *idl.Definition) error {
	d := pyDialect{}
	e := newEmitter(d, def)
	iface := strcase.ToCamel(def.Name)

	pyTypeDecls(src, def)

	src.line("")
	src.line("")
	src.line("class %s(Protocol):", iface)
	src.in()
	if len(def.Functions) == 0 {
		src.line("pass")
	}
	for i, fn := range def.Functions {
		if i > 0 {
			src.line("")
		}
		src.line("@abstractmethod")
		src.line("def %s(self%s) -> %s:", d.funcName(fn.Name), pyParams(def, fn), pyResult(def, fn))
		src.line("    raise NotImplementedError")
	}
	src.out()

	src.line("")
	src.line("")
	src.line("def %s(store: wasmer.Store, imports: wasmer.ImportObject, host: %s, get_export: Callable[[str], Any]) -> None:",
		PythonImportsFunction(def.Name), iface)
	src.in()
	src.line("functions = {}")

	for _, fn := range def.Functions {
		local := "_" + d.funcName(fn.Name)
		sig := CoreSignature(fn, Import)
		call, err := e.importCall(fn)

		src.line("")
		switch {
		case err != nil && isUnsupported(err):
			warnUnsupported("python", def, err)
			params := make([]string, len(sig.Params))
			for i := range params {
				params[i] = "arg" + strconv.Itoa(i)
			}
			src.line("def %s(%s) -> Any:", local, strings.Join(params, ", "))
			src.line("    return _unsupported(%s)", strconv.Quote(unsupportedMessage(err)))
		case err != nil:
			return err
		default:
			typed := make([]string, len(call.params))
			for i, p := range call.params {
				typed[i] = p + ": " + pyCoreType(sig.Params[i])
			}
			src.line("def %s(%s) -> %s:", local, strings.Join(typed, ", "), pyCoreResult(sig))
			src.in()
			src.line("memory = get_export(\"memory\")")
			src.line("realloc = get_export(\"cabi_realloc\")")
			invoke := "host." + d.funcName(fn.Name) + "(" + strings.Join(call.args, ", ") + ")"
			if call.lower == "" && call.store == "" {
				src.line("%s", invoke)
			} else {
				src.line("result = %s", invoke)
				for _, s := range call.stmts {
					src.line("%s", s)
				}
				if call.store != "" {
					src.line("%s", call.store)
				} else {
					src.line("return %s", call.lower)
				}
			}
			src.out()
		}
		src.line("functions[%s] = wasmer.Function(store, %s, %s)", strconv.Quote(fn.Name), local, pyFunctionType(sig))
	}

	src.line("")
	src.line("imports.register(%s, functions)", strconv.Quote(def.Name))
	src.out()
	return nil
}

// pyFunctionType renders the wasmer FunctionType of a core signature.
func pyFunctionType(sig Signature) string {
	render := func(types []CoreValType) string {
		parts := make([]string, len(types))
		for i, t := range types {
			parts[i] = "wasmer.Type." + strings.ToUpper(api.ValueTypeName(t))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return "wasmer.FunctionType(" + render(sig.Params) + ", " + render(sig.Results) + ")"
}

func pyCoreType(t CoreValType) string {
	switch t {
	case api.ValueTypeF32, api.ValueTypeF64:
		return "float"
	}
	return "int"
}

func pyCoreResult(sig Signature) string {
	if len(sig.Results) == 0 {
		return "None"
	}
	return pyCoreType(sig.Results[0])
}

func pyTypeDecls(src *source, def *idl.Definition) {
	var aliases []string
	for _, decl := range def.Types {
		name := strcase.ToCamel(decl.Name)
		switch kind := decl.Def.Kind.(type) {
		case *wit.Record:
			src.line("")
			src.line("")
			src.line("@dataclass")
			src.line("class %s:", name)
			if len(kind.Fields) == 0 {
				src.line("    pass")
			}
			for _, f := range kind.Fields {
				src.line("    %s: %s", pyIdent(strcase.ToSnake(f.Name)), pyType(def, f.Type))
			}
		case *wit.Enum:
			src.line("")
			src.line("")
			src.line("class %s(IntEnum):", name)
			for i, c := range kind.Cases {
				src.line("    %s = %d", strcase.ToScreamingSnake(c.Name), i)
			}
		case *wit.Flags:
			src.line("")
			src.line("")
			src.line("class %s(IntFlag):", name)
			if len(kind.Flags) == 0 {
				src.line("    pass")
			}
			for i, f := range kind.Flags {
				src.line("    %s = %s", strcase.ToScreamingSnake(f.Name), flagValue(i))
			}
		case *wit.Variant:
			members := make([]string, len(kind.Cases))
			for i, c := range kind.Cases {
				members[i] = name + strcase.ToCamel(c.Name)
				src.line("")
				src.line("")
				src.line("@dataclass")
				src.line("class %s:", members[i])
				if c.Type == nil {
					src.line("    pass")
				} else {
					src.line("    value: %s", pyType(def, c.Type))
				}
			}
			aliases = append(aliases, name+" = Union["+strings.Join(members, ", ")+"]")
		case wit.Type:
			aliases = append(aliases, name+" = "+pyType(def, kind))
		}
	}

	if len(aliases) > 0 {
		src.line("")
		src.line("")
		for _, a := range aliases {
			src.line("%s", a)
		}
	}
}

func pyParams(def *idl.Definition, fn *idl.Function) string {
	var b strings.Builder
	for _, p := range fn.Params {
		b.WriteString(", ")
		b.WriteString(pyIdent(strcase.ToSnake(p.Name)))
		b.WriteString(": ")
		b.WriteString(pyType(def, p.Type))
	}
	return b.String()
}

func pyResult(def *idl.Definition, fn *idl.Function) string {
	rt := resultType(fn)
	if rt == nil {
		return "None"
	}
	return pyType(def, rt)
}

// pyType renders t as a Python type hint.
func pyType(def *idl.Definition, t wit.Type) string {
	if t == nil {
		return "None"
	}
	if name, ok := def.NameOf(t); ok {
		return strcase.ToCamel(name)
	}
	switch primKind(t) {
	case "bool":
		return "bool"
	case "f32", "f64":
		return "float"
	case "char":
		return "str"
	case "":
	default:
		return "int"
	}
	if _, ok := t.(wit.String); ok {
		return "str"
	}

	td, ok := t.(*wit.TypeDef)
	if !ok {
		return "Any"
	}
	switch kind := td.Kind.(type) {
	case *wit.List:
		return "List[" + pyType(def, kind.Type) + "]"
	case *wit.Option:
		return "Optional[" + pyType(def, kind.Type) + "]"
	case *wit.Result:
		return "Result[" + pyType(def, kind.OK) + ", " + pyType(def, kind.Err) + "]"
	case *wit.Tuple:
		items := make([]string, len(kind.Types))
		for i, elem := range kind.Types {
			items[i] = pyType(def, elem)
		}
		return "Tuple[" + strings.Join(items, ", ") + "]"
	case wit.Type:
		return pyType(def, kind)
	}
	return "Any"
}

func pyIdent(name string) string {
	if pyReserved[name] {
		return name + "_"
	}
	return name
}

type pyDialect struct{}

func (pyDialect) funcName(name string) string  { return pyIdent(strcase.ToSnake(name)) }
func (pyDialect) fieldName(name string) string { return pyIdent(strcase.ToSnake(name)) }
func (pyDialect) helper(name string) string    { return "_" + strcase.ToSnake(name) }

func (pyDialect) lambda(params []string, body string) string {
	return "(lambda " + strings.Join(params, ", ") + ": " + body + ")"
}

func (pyDialect) cond(test, then, els string) string {
	return "(" + then + " if " + test + " else " + els + ")"
}

func (pyDialect) eq(a, b string) string { return a + " == " + b }
func (pyDialect) null() string          { return "None" }

func (d pyDialect) field(expr, name string) string {
	return expr + "." + d.fieldName(name)
}

func (d pyDialect) record(typeName string, fields []fieldExpr) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = d.fieldName(f.name) + "=" + f.expr
	}
	ctor := "dict"
	if typeName != "" {
		ctor = strcase.ToCamel(typeName)
	}
	return ctor + "(" + strings.Join(parts, ", ") + ")"
}

func (pyDialect) tuple(items []string) string {
	if len(items) == 1 {
		return "(" + items[0] + ",)"
	}
	return "(" + strings.Join(items, ", ") + ")"
}

func (pyDialect) assign(names []string, expr string) string {
	return strings.Join(names, ", ") + " = " + expr
}

func (pyDialect) liftPrim(kind, expr string) string {
	switch kind {
	case "bool":
		return "bool(" + expr + ")"
	case "char":
		return "chr(" + expr + ")"
	case "u8":
		return "(" + expr + " & 0xff)"
	case "u16":
		return "(" + expr + " & 0xffff)"
	case "u32":
		return "(" + expr + " & 0xffffffff)"
	case "u64":
		return "(" + expr + " & 0xffffffffffffffff)"
	case "s8":
		return "_signed(" + expr + ", 8)"
	case "s16":
		return "_signed(" + expr + ", 16)"
	}
	return expr
}

func (pyDialect) lowerPrim(kind, expr string) string {
	switch kind {
	case "bool":
		return "int(" + expr + ")"
	case "char":
		return "ord(" + expr + ")"
	}
	return expr
}

func (pyDialect) liftEnum(typeName string, _ []string, expr string) string {
	return strcase.ToCamel(typeName) + "(" + expr + ")"
}

func (pyDialect) lowerEnum(_ string, _ []string, expr string) string {
	return "int(" + expr + ")"
}

func (pyDialect) liftFlags(typeName, expr string) string {
	return strcase.ToCamel(typeName) + "(" + expr + ")"
}

func (pyDialect) lowerFlags(_, expr string) string {
	return "int(" + expr + ")"
}

func (pyDialect) ok(expr string) string  { return "Ok(" + expr + ")" }
func (pyDialect) err(expr string) string { return "Err(" + expr + ")" }

func (pyDialect) variantCase(typeName, caseName, payload string) string {
	return strcase.ToCamel(typeName) + strcase.ToCamel(caseName) + "(" + payload + ")"
}
