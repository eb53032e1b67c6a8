package bindgen

import (
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wippyai/wasm-pack/idl"
	"github.com/wippyai/wasm-pack/internal/fixtures"
)

func parse(t *testing.T, path, source string) *idl.Definition {
	t.Helper()
	def, err := idl.NewParser().Parse(path, source)
	if err != nil {
		t.Fatalf("Parse(%s) failed: %v", path, err)
	}
	return def
}

func observe(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.WarnLevel)
	prev := Logger()
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(prev) })
	return logs
}

func assertContains(t *testing.T, text string, want ...string) {
	t.Helper()
	for _, w := range want {
		if !strings.Contains(text, w) {
			t.Errorf("generated code does not contain %q:\n%s", w, text)
		}
	}
}

func TestJavaScript_Greet(t *testing.T) {
	def := parse(t, "greet.exports.wai", fixtures.GreetInterface)

	tree, err := NewJavaScript().Generate(def)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	want := []string{"greet.d.ts", "greet.js", "intrinsics.js"}
	if got := tree.Paths(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("paths = %v, want %v", got, want)
	}

	js, _ := tree.MustGet("greet.js").UTF8()
	assertContains(t, js,
		`import { encodeString, loadString } from "./intrinsics.js";`,
		"export class Greet {",
		"greet(arg0) {",
		"const [ptr0, len1] = encodeString(memory, realloc, arg0);",
		`const ret = this._exports["greet"](ptr0, len1);`,
		"const result = loadString(memory, ret);",
		`this._postReturn("greet", ret);`,
	)

	dts, _ := tree.MustGet("greet.d.ts").UTF8()
	assertContains(t, dts,
		"export class Greet {",
		"greet(name: string): string;",
	)

	intrinsics, _ := tree.MustGet("intrinsics.js").UTF8()
	assertContains(t, intrinsics, "export function encodeString(", "export function loadString(")
}

func TestJavaScript_Calc(t *testing.T) {
	def := parse(t, "calc.exports.wai", fixtures.CalcInterface)

	tree, err := NewJavaScript().Generate(def)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	js, _ := tree.MustGet("calc.js").UTF8()
	assertContains(t, js,
		`this._exports["apply"](lowerEnum(["add", "sub", "mul"], arg0), arg1, arg2)`,
		`const [ptr2, len3] = lowerList(memory, realloc, arg0, 4, 4, (e0, base1) => (store(memory, "s32", base1, e0)));`,
		`this._exports["swap"](arg0.a, arg0.b)`,
		`const result = { a: load(memory, "s32", ret), b: load(memory, "s32", ret + 4) };`,
		`return ret;`,
	)

	dts, _ := tree.MustGet("calc.d.ts").UTF8()
	assertContains(t, dts,
		`export type Op = "add" | "sub" | "mul";`,
		"export interface Pair {",
		"apply(o: Op, a: number, b: number): number;",
		"sum(values: Array<number>): bigint;",
		"swap(p: Pair): Pair;",
	)
}

func TestJavaScript_Imports(t *testing.T) {
	exports := parse(t, "app.exports.wai", "run: func()")
	host := parse(t, "host.wai", fixtures.HostInterface+"now: func() -> u64\nname: func() -> string\n")

	tree, err := NewJavaScript().Generate(exports, host)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	js, _ := tree.MustGet("host.js").UTF8()
	assertContains(t, js,
		"export function addHostToImports(imports, obj, getExport) {",
		`imports["host"]["log"] = function log(arg0, arg1) {`,
		"obj.log(decodeString(memory, arg0, arg1));",
		"return BigInt(result);",
		`imports["host"]["name"] = function name(retptr) {`,
		"storeString(memory, realloc, retptr, result);",
	)

	dts, _ := tree.MustGet("host.d.ts").UTF8()
	assertContains(t, dts,
		"export interface Host {",
		"log(message: string): void;",
		"now(): bigint;",
	)

	app, _ := tree.MustGet("app.js").UTF8()
	assertContains(t, app, `this._exports["run"]();`)
	if strings.Contains(app, "import {") {
		t.Errorf("a function without marshalling should not import helpers:\n%s", app)
	}
}

func TestJavaScript_TypeDeclarations(t *testing.T) {
	def := parse(t, "shapes.wai", `
flags features { simd, threads }
variant shape { circle(f32), point }
type id = u32
get: func() -> option<string>
check: func() -> result<u8, string>
pick: func() -> shape
`)

	tree, err := NewJavaScript().Generate(def)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	js, _ := tree.MustGet("shapes.js").UTF8()
	assertContains(t, js,
		"export const FEATURES_SIMD = 1;",
		"export const FEATURES_THREADS = 2;",
		`(load(memory, "u8", ret) === 0 ? null : loadString(memory, ret + 4))`,
		`{ tag: "ok", val: (load(memory, "u8", ret + 4) & 0xff) }`,
		`{ tag: "circle", val: load(memory, "f32", ret + 4) }`,
		`{ tag: "point" }`,
	)

	dts, _ := tree.MustGet("shapes.d.ts").UTF8()
	assertContains(t, dts,
		"export type Features = number;",
		"export type Shape = ShapeCircle | ShapePoint;",
		`export interface ShapeCircle { tag: "circle", val: number }`,
		"export type Id = number;",
		"get(): string | null;",
		"check(): Result<number, string>;",
	)
}

func TestJavaScript_Unsupported(t *testing.T) {
	logs := observe(t)
	def := parse(t, "odd.wai", "maybe: func(x: option<string>)\nfine: func(a: u32)")

	tree, err := NewJavaScript().Generate(def)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	js, _ := tree.MustGet("odd.js").UTF8()
	assertContains(t, js,
		`unsupported("maybe: option<string> parameter is not supported by these bindings");`,
		`this._exports["fine"](arg0);`,
	)

	if logs.Len() != 1 {
		t.Fatalf("expected one warning, got %d", logs.Len())
	}
	if entry := logs.All()[0]; entry.ContextMap()["interface"] != "odd" {
		t.Errorf("warning context = %v", entry.ContextMap())
	}
}
