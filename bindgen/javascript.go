package bindgen

import (
	_ "embed"
	"regexp"
	"strconv"
	"strings"

	"github.com/iancoleman/strcase"
	"go.bytecodealliance.org/wit"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-pack/errors"
	"github.com/wippyai/wasm-pack/files"
	"github.com/wippyai/wasm-pack/idl"
)

//go:embed runtime/intrinsics.js
var jsIntrinsics []byte

// JSIntrinsicsFile is the module every generated JavaScript file imports
// its helpers from.
const JSIntrinsicsFile = "intrinsics.js"

var jsHelpers = []string{
	"load", "store",
	"encodeString", "decodeString", "loadString", "storeString",
	"lowerList", "liftList", "loadList", "storeList",
	"liftEnum", "lowerEnum", "unsupported",
}

var jsHelperPatterns = func() map[string]*regexp.Regexp {
	m := make(map[string]*regexp.Regexp, len(jsHelpers))
	for _, h := range jsHelpers {
		m[h] = regexp.MustCompile(`\b` + h + `\(`)
	}
	return m
}()

var jsReserved = map[string]bool{
	"break": true, "case": true, "catch": true, "class": true, "const": true,
	"continue": true, "debugger": true, "default": true, "delete": true, "do": true,
	"else": true, "export": true, "extends": true, "finally": true, "for": true,
	"function": true, "if": true, "import": true, "in": true, "instanceof": true,
	"new": true, "return": true, "super": true, "switch": true, "this": true,
	"throw": true, "try": true, "typeof": true, "var": true, "void": true,
	"while": true, "with": true, "yield": true, "let": true, "static": true,
	"enum": true, "await": true, "null": true, "true": true, "false": true,
}

// JavaScript generates ES module glue: a class wrapping the exported
// interface and an addXToImports function per imported interface.
type JavaScript struct{}

// NewJavaScript creates a JavaScript glue generator.
func NewJavaScript() *JavaScript {
	return &JavaScript{}
}

// ExportsClass is the name of the class wrapping an exported interface.
func ExportsClass(iface string) string {
	return strcase.ToCamel(iface)
}

// ImportsFunction is the name of the JavaScript function registering a host
// implementation of an imported interface.
func ImportsFunction(iface string) string {
	return "add" + strcase.ToCamel(iface) + "ToImports"
}

// Generate implements Generator. The tree holds <exports>.js, <exports>.d.ts,
// intrinsics.js and a .js/.d.ts pair per import, all at its root.
func (g *JavaScript) Generate(exports *idl.Definition, imports ...*idl.Definition) (*files.Files, error) {
	out := files.New()
	out.Insert(JSIntrinsicsFile, files.NewSourceFile(jsIntrinsics))

	js, dts, err := g.exports(exports)
	if err != nil {
		return nil, errors.Generate(exports.Name+".js", err)
	}
	out.Insert(exports.Name+".js", files.FromString(js))
	out.Insert(exports.Name+".d.ts", files.FromString(dts))

	for _, imp := range imports {
		js, dts, err := g.imports(imp)
		if err != nil {
			return nil, errors.Generate(imp.Name+".js", err)
		}
		out.Insert(imp.Name+".js", files.FromString(js))
		out.Insert(imp.Name+".d.ts", files.FromString(dts))
	}

	Logger().Debug("generated javascript glue", zap.String("interface", exports.Name), zap.Int("imports", len(imports)))
	return out, nil
}

func (g *JavaScript) exports(def *idl.Definition) (string, string, error) {
	d := jsDialect{}
	e := newEmitter(d, def)
	class := ExportsClass(def.Name)

	body := newSource("  ")
	jsFlagConstants(body, def)
	body.line("export class %s {", class)
	body.in()
	body.line("addToImports(imports) {")
	body.line("}")
	body.line("")
	body.line("async instantiate(module, imports) {")
	body.in()
	body.line("imports = imports || {};")
	body.line("this.addToImports(imports);")
	body.line("if (module instanceof WebAssembly.Instance) {")
	body.line("  this.instance = module;")
	body.line("} else if (module instanceof WebAssembly.Module) {")
	body.line("  this.instance = await WebAssembly.instantiate(module, imports);")
	body.line("} else {")
	body.line("  const { instance } = await WebAssembly.instantiate(module, imports);")
	body.line("  this.instance = instance;")
	body.line("}")
	body.line("this._exports = this.instance.exports;")
	body.out()
	body.line("}")
	body.line("")
	body.line("_memory() {")
	body.line("  return this._exports.memory;")
	body.line("}")
	body.line("")
	body.line("_realloc() {")
	body.line("  return this._exports.cabi_realloc || this._exports.canonical_abi_realloc;")
	body.line("}")
	body.line("")
	body.line("_postReturn(name, ret) {")
	body.line("  const post = this._exports[`cabi_post_${name}`];")
	body.line("  if (post) {")
	body.line("    post(ret);")
	body.line("  }")
	body.line("}")

	dts := newSource("  ")
	jsTypeDecls(dts, def)
	dts.line("export class %s {", class)
	dts.in()
	dts.line("addToImports(imports: any): void;")
	dts.line("instantiate(module: WebAssembly.Module | BufferSource | WebAssembly.Instance, imports?: any): Promise<void>;")

	for _, fn := range def.Functions {
		args := make([]string, len(fn.Params))
		for i := range fn.Params {
			args[i] = "arg" + strconv.Itoa(i)
		}

		body.line("")
		body.line("%s(%s) {", d.funcName(fn.Name), strings.Join(args, ", "))
		body.in()
		call, err := e.exportCall(fn, args)
		switch {
		case err != nil && isUnsupported(err):
			warnUnsupported("javascript", def, err)
			body.line("unsupported(%s);", strconv.Quote(unsupportedMessage(err)))
		case err != nil:
			return "", "", err
		default:
			body.line("const memory = this._memory();")
			body.line("const realloc = this._realloc();")
			for _, s := range call.stmts {
				body.line("%s", s)
			}
			invoke := "this._exports[" + strconv.Quote(fn.Name) + "](" + strings.Join(call.args, ", ") + ")"
			switch {
			case call.result == "":
				body.line("%s;", invoke)
			case call.indirect:
				body.line("const ret = %s;", invoke)
				body.line("const result = %s;", call.result)
				body.line("this._postReturn(%s, ret);", strconv.Quote(fn.Name))
				body.line("return result;")
			default:
				body.line("const ret = %s;", invoke)
				body.line("return %s;", call.result)
			}
		}
		body.out()
		body.line("}")

		dts.line("%s(%s): %s;", d.funcName(fn.Name), tsParams(def, fn), tsResult(def, fn))
	}

	body.out()
	body.line("}")
	dts.out()
	dts.line("}")

	return jsModule(body.String()), dts.String(), nil
}

func (g *JavaScript) imports(def *idl.Definition) (string, string, error) {
	d := jsDialect{}
	e := newEmitter(d, def)
	iface := ExportsClass(def.Name)
	ns := strconv.Quote(def.Name)

	body := newSource("  ")
	jsFlagConstants(body, def)
	body.line("export function %s(imports, obj, getExport) {", ImportsFunction(def.Name))
	body.in()
	body.line("if (!(%s in imports)) {", ns)
	body.line("  imports[%s] = {};", ns)
	body.line("}")

	dts := newSource("  ")
	jsTypeDecls(dts, def)
	dts.line("export function %s(imports: any, obj: %s, getExport: (name: string) => any): void;", ImportsFunction(def.Name), iface)
	dts.line("")
	dts.line("export interface %s {", iface)
	dts.in()

	for _, fn := range def.Functions {
		target := "imports[" + ns + "][" + strconv.Quote(fn.Name) + "]"
		call, err := e.importCall(fn)
		switch {
		case err != nil && isUnsupported(err):
			warnUnsupported("javascript", def, err)
			body.line("%s = function () {", target)
			body.line("  unsupported(%s);", strconv.Quote(unsupportedMessage(err)))
			body.line("};")
		case err != nil:
			return "", "", err
		default:
			body.line("%s = function %s(%s) {", target, jsIdent(d.funcName(fn.Name)), strings.Join(call.params, ", "))
			body.in()
			body.line("const memory = getExport(\"memory\");")
			body.line("const realloc = getExport(\"cabi_realloc\");")
			invoke := "obj." + d.funcName(fn.Name) + "(" + strings.Join(call.args, ", ") + ")"
			if call.lower == "" && call.store == "" {
				body.line("%s;", invoke)
			} else {
				body.line("const result = %s;", invoke)
				for _, s := range call.stmts {
					body.line("%s", s)
				}
				if call.store != "" {
					body.line("%s;", call.store)
				} else {
					body.line("return %s;", call.lower)
				}
			}
			body.out()
			body.line("};")
		}

		dts.line("%s(%s): %s;", d.funcName(fn.Name), tsParams(def, fn), tsResult(def, fn))
	}

	body.out()
	body.line("}")
	dts.out()
	dts.line("}")

	return jsModule(body.String()), dts.String(), nil
}

// jsModule prefixes body with an import of the helpers it uses.
func jsModule(body string) string {
	var used []string
	for _, h := range jsHelpers {
		if jsHelperPatterns[h].MatchString(body) {
			used = append(used, h)
		}
	}
	if len(used) == 0 {
		return body
	}
	return "import { " + strings.Join(used, ", ") + " } from \"./" + JSIntrinsicsFile + "\";\n\n" + body
}

func jsFlagConstants(src *source, def *idl.Definition) {
	for _, decl := range def.Types {
		flags, ok := decl.Def.Kind.(*wit.Flags)
		if !ok {
			continue
		}
		for i, f := range flags.Flags {
			src.line("export const %s = %s;", jsFlagName(decl.Name, f.Name), flagValue(i))
		}
		src.line("")
	}
}

func jsFlagName(typeName, flag string) string {
	return strcase.ToScreamingSnake(typeName + "-" + flag)
}

func flagValue(i int) string {
	return strconv.FormatUint(1<<uint(i), 10)
}

func jsTypeDecls(src *source, def *idl.Definition) {
	src.line("export type Result<T, E> = { tag: \"ok\", val: T } | { tag: \"err\", val: E };")
	src.line("")

	for _, decl := range def.Types {
		name := strcase.ToCamel(decl.Name)
		switch kind := decl.Def.Kind.(type) {
		case *wit.Record:
			src.line("export interface %s {", name)
			for _, f := range kind.Fields {
				src.line("  %s: %s,", strcase.ToLowerCamel(f.Name), tsType(def, f.Type))
			}
			src.line("}")
		case *wit.Enum:
			src.line("export type %s = %s;", name, strings.Join(quotedEach(enumCases(kind)), " | "))
		case *wit.Flags:
			src.line("export type %s = number;", name)
			for _, f := range kind.Flags {
				src.line("export const %s: number;", jsFlagName(decl.Name, f.Name))
			}
		case *wit.Variant:
			members := make([]string, len(kind.Cases))
			for i, c := range kind.Cases {
				members[i] = name + strcase.ToCamel(c.Name)
			}
			src.line("export type %s = %s;", name, strings.Join(members, " | "))
			for i, c := range kind.Cases {
				if c.Type == nil {
					src.line("export interface %s { tag: %s }", members[i], strconv.Quote(c.Name))
					continue
				}
				src.line("export interface %s { tag: %s, val: %s }", members[i], strconv.Quote(c.Name), tsType(def, c.Type))
			}
		case wit.Type:
			src.line("export type %s = %s;", name, tsType(def, kind))
		default:
			src.line("export type %s = unknown;", name)
		}
		src.line("")
	}
}

func quotedEach(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = strconv.Quote(n)
	}
	return out
}

func tsParams(def *idl.Definition, fn *idl.Function) string {
	params := make([]string, len(fn.Params))
	for i, p := range fn.Params {
		params[i] = jsIdent(strcase.ToLowerCamel(p.Name)) + ": " + tsType(def, p.Type)
	}
	return strings.Join(params, ", ")
}

func tsResult(def *idl.Definition, fn *idl.Function) string {
	rt := resultType(fn)
	if rt == nil {
		return "void"
	}
	return tsType(def, rt)
}

// tsType renders t as a TypeScript type.
func tsType(def *idl.Definition, t wit.Type) string {
	if t == nil {
		return "null"
	}
	if name, ok := def.NameOf(t); ok {
		return strcase.ToCamel(name)
	}
	switch primKind(t) {
	case "bool":
		return "boolean"
	case "u64", "s64":
		return "bigint"
	case "char":
		return "string"
	case "":
	default:
		return "number"
	}
	if _, ok := t.(wit.String); ok {
		return "string"
	}

	td, ok := t.(*wit.TypeDef)
	if !ok {
		return "unknown"
	}
	switch kind := td.Kind.(type) {
	case *wit.List:
		return "Array<" + tsType(def, kind.Type) + ">"
	case *wit.Option:
		return tsType(def, kind.Type) + " | null"
	case *wit.Result:
		return "Result<" + tsType(def, kind.OK) + ", " + tsType(def, kind.Err) + ">"
	case *wit.Tuple:
		items := make([]string, len(kind.Types))
		for i, elem := range kind.Types {
			items[i] = tsType(def, elem)
		}
		return "[" + strings.Join(items, ", ") + "]"
	case wit.Type:
		return tsType(def, kind)
	}
	return "unknown"
}

func jsIdent(name string) string {
	if jsReserved[name] {
		return name + "_"
	}
	return name
}

type jsDialect struct{}

func (jsDialect) funcName(name string) string  { return strcase.ToLowerCamel(name) }
func (jsDialect) fieldName(name string) string { return strcase.ToLowerCamel(name) }
func (jsDialect) helper(name string) string    { return name }

func (jsDialect) lambda(params []string, body string) string {
	return "(" + strings.Join(params, ", ") + ") => (" + body + ")"
}

func (jsDialect) cond(test, then, els string) string {
	return "(" + test + " ? " + then + " : " + els + ")"
}

func (jsDialect) eq(a, b string) string { return a + " === " + b }
func (jsDialect) null() string          { return "null" }

func (d jsDialect) field(expr, name string) string {
	return expr + "." + d.fieldName(name)
}

func (d jsDialect) record(_ string, fields []fieldExpr) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = d.fieldName(f.name) + ": " + f.expr
	}
	return "{ " + strings.Join(parts, ", ") + " }"
}

func (jsDialect) tuple(items []string) string {
	return "[" + strings.Join(items, ", ") + "]"
}

func (jsDialect) assign(names []string, expr string) string {
	if len(names) == 1 {
		return "const " + names[0] + " = " + expr + ";"
	}
	return "const [" + strings.Join(names, ", ") + "] = " + expr + ";"
}

func (jsDialect) liftPrim(kind, expr string) string {
	switch kind {
	case "bool":
		return "(" + expr + " !== 0)"
	case "char":
		return "String.fromCodePoint(" + expr + ")"
	case "u8":
		return "(" + expr + " & 0xff)"
	case "u16":
		return "(" + expr + " & 0xffff)"
	case "u32":
		return "(" + expr + " >>> 0)"
	case "s8":
		return "((" + expr + " << 24) >> 24)"
	case "s16":
		return "((" + expr + " << 16) >> 16)"
	case "u64":
		return "BigInt.asUintN(64, " + expr + ")"
	}
	return expr
}

func (jsDialect) lowerPrim(kind, expr string) string {
	switch kind {
	case "bool":
		return "(" + expr + " ? 1 : 0)"
	case "char":
		return expr + ".codePointAt(0)"
	case "u64", "s64":
		return "BigInt(" + expr + ")"
	}
	return expr
}

func (jsDialect) liftEnum(_ string, cases []string, expr string) string {
	return "liftEnum(" + quoted(cases) + ", " + expr + ")"
}

func (jsDialect) lowerEnum(_ string, cases []string, expr string) string {
	return "lowerEnum(" + quoted(cases) + ", " + expr + ")"
}

func (jsDialect) liftFlags(_, expr string) string  { return expr }
func (jsDialect) lowerFlags(_, expr string) string { return expr }

func (jsDialect) ok(expr string) string  { return "{ tag: \"ok\", val: " + expr + " }" }
func (jsDialect) err(expr string) string { return "{ tag: \"err\", val: " + expr + " }" }

func (jsDialect) variantCase(_, caseName, payload string) string {
	if payload == "" {
		return "{ tag: " + strconv.Quote(caseName) + " }"
	}
	return "{ tag: " + strconv.Quote(caseName) + ", val: " + payload + " }"
}
