package js

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/wippyai/wasm-pack/files"
	"github.com/wippyai/wasm-pack/idl"
	"github.com/wippyai/wasm-pack/internal/fixtures"
	"github.com/wippyai/wasm-pack/loader"
	"github.com/wippyai/wasm-pack/pack"
)

func library(t *testing.T, name string, abi pack.Abi) pack.Library {
	t.Helper()
	def, err := idl.NewParser().Parse(name+".exports.wai", fixtures.GreetInterface)
	if err != nil {
		t.Fatalf("parse %s: %v", name, err)
	}
	return pack.Library{
		Module:  pack.Module{Name: name, Abi: abi, Wasm: fixtures.GreetModule(abi == pack.AbiWasi)},
		Exports: pack.NewInterface(def),
	}
}

func load(t *testing.T, data []byte) *pack.Package {
	t.Helper()
	pkg, err := loader.New().LoadBytes(data)
	if err != nil {
		t.Fatalf("load container: %v", err)
	}
	return pkg
}

func generate(t *testing.T, pkg *pack.Package, opts Options) *files.Files {
	t.Helper()
	out, err := Generate(pkg, opts)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	return out
}

func readManifest(t *testing.T, out *files.Files) manifest {
	t.Helper()
	var m manifest
	if err := json.Unmarshal(out.MustGet("package/package.json").Bytes(), &m); err != nil {
		t.Fatalf("package.json is not valid JSON: %v", err)
	}
	return m
}

func text(t *testing.T, out *files.Files, p string) string {
	t.Helper()
	s, ok := out.MustGet(p).UTF8()
	if !ok {
		t.Fatalf("%s is not UTF-8", p)
	}
	return s
}

func assertContains(t *testing.T, name, got string, want ...string) {
	t.Helper()
	for _, w := range want {
		if !strings.Contains(got, w) {
			t.Errorf("%s does not contain %q:\n%s", name, w, got)
		}
	}
}

func TestGenerate_ScenarioA(t *testing.T) {
	out := generate(t, load(t, fixtures.GreetContainer(false, false)), Options{})

	want := []string{
		"package/package.json",
		"package/src/bindings/greet/greet.d.ts",
		"package/src/bindings/greet/greet.js",
		"package/src/bindings/greet/greet.wasm",
		"package/src/bindings/greet/intrinsics.js",
		"package/src/bindings/index.d.ts",
		"package/src/bindings/index.js",
		"package/src/index.d.ts",
		"package/src/index.js",
	}
	if got := out.Paths(); !slices.Equal(got, want) {
		t.Errorf("paths:\n got %v\nwant %v", got, want)
	}

	m := readManifest(t, out)
	if m.Name != "@wasmer/greet" || m.Version != "0.1.0" {
		t.Errorf("name/version = %s@%s", m.Name, m.Version)
	}
	if m.Main != "src/index.js" || m.Types != "src/index.d.ts" || m.Type != "module" {
		t.Errorf("entry points = %+v", m)
	}
	if len(m.Dependencies) != 0 {
		t.Errorf("dependencies = %v, want none", m.Dependencies)
	}
	if m.Description != "Greets people" {
		t.Errorf("description = %q", m.Description)
	}

	index := text(t, out, "package/src/bindings/index.js")
	assertContains(t, "bindings/index.js", index,
		`import { Greet } from "./greet/greet.js";`,
		"export async function greet(options = {})",
		`loadModule("./greet/greet.wasm")`,
		"WebAssembly.compileStreaming",
		"const imports = {};",
	)
	if strings.Contains(index, "@wasmer/wasi") {
		t.Error("non-WASI bindings should not import @wasmer/wasi")
	}

	assertContains(t, "index.js", text(t, out, "package/src/index.js"),
		`export * as bindings from "./bindings/index.js";`,
		"Generated by wasm-pack v",
	)
	assertContains(t, "bindings/index.d.ts", text(t, out, "package/src/bindings/index.d.ts"),
		"export function greet(options?: LoadOptions): Promise<Greet>;",
	)

	wasm := out.MustGet("package/src/bindings/greet/greet.wasm").Bytes()
	if !slices.Equal(wasm, fixtures.GreetModule(false)) {
		t.Error("module bytes were not copied verbatim")
	}
}

func TestGenerate_ScenarioB(t *testing.T) {
	out := generate(t, load(t, fixtures.GreetContainer(true, false)), Options{})

	m := readManifest(t, out)
	if got := m.Dependencies["@wasmer/wasi"]; got != DefaultWASIVersion {
		t.Errorf("@wasmer/wasi = %q, want %q", got, DefaultWASIVersion)
	}

	assertContains(t, "bindings/index.js", text(t, out, "package/src/bindings/index.js"),
		`import { init, WASI } from "@wasmer/wasi";`,
		"await init();",
		"const imports = wasi.getImports(module);",
		"wasi.instantiate(wrapper.instance, {});",
	)
}

func TestGenerate_Commands(t *testing.T) {
	out := generate(t, load(t, fixtures.WabtContainer()), Options{})

	for _, p := range []string{
		"package/src/bindings/wabt/host.js",
		"package/src/bindings/wabt/host.d.ts",
		"package/src/bindings/wabt/wabt.wasm",
		"package/src/commands/wasm-strip.js",
		"package/src/commands/wasm-strip.d.ts",
		"package/src/commands/wasm-strip.wasm",
		"package/src/commands/wat2wasm.js",
		"package/src/commands/wat2wasm.d.ts",
		"package/src/commands/wat2wasm.wasm",
	} {
		if _, ok := out.Get(p); !ok {
			t.Errorf("missing %s", p)
		}
	}

	if _, ok := readManifest(t, out).Dependencies["@wasmer/wasi"]; !ok {
		t.Error("commands should pull in @wasmer/wasi")
	}

	assertContains(t, "commands/wasm-strip.js", text(t, out, "package/src/commands/wasm-strip.js"),
		"export async function wasm_strip(options = {})",
		`new URL("wasm-strip.wasm", import.meta.url)`,
		"const code = wasi.start(instance);",
	)
	assertContains(t, "index.js", text(t, out, "package/src/index.js"),
		`import { wasm_strip } from "./commands/wasm-strip.js";`,
		`import { wat2wasm } from "./commands/wat2wasm.js";`,
		"  wasm_strip,\n",
	)
	assertContains(t, "bindings/index.js", text(t, out, "package/src/bindings/index.js"),
		`import { addHostToImports } from "./wabt/host.js";`,
		"export async function wabt(host, options = {})",
		"addHostToImports(imports, host, name => wrapper.instance.exports[name]);",
	)
	assertContains(t, "bindings/index.d.ts", text(t, out, "package/src/bindings/index.d.ts"),
		`import { Host } from "./wabt/host.js";`,
		"export function wabt(host: Host, options?: LoadOptions): Promise<Wabt>;",
	)
}

func TestGenerate_LibraryIdent(t *testing.T) {
	pkg := pack.MustNew(
		pack.NewMetadata(pack.MustParseName("wasmer/wasmer-pack"), "0.7.0"),
		[]pack.Library{library(t, "WasmerPack", pack.AbiNone)},
		nil,
	)
	out := generate(t, pkg, Options{})

	assertContains(t, "bindings/index.js", text(t, out, "package/src/bindings/index.js"),
		"export async function wasmer_pack(options = {})",
		`from "./WasmerPack/WasmerPack.js";`,
	)
	assertContains(t, "bindings/index.d.ts", text(t, out, "package/src/bindings/index.d.ts"),
		"export function wasmer_pack(options?: LoadOptions): Promise<WasmerPack>;",
	)
}

func TestGenerate_Counts(t *testing.T) {
	tests := []struct {
		libraries int
		commands  int
	}{
		{0, 0},
		{1, 0},
		{0, 1},
		{2, 3},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d libraries %d commands", tt.libraries, tt.commands), func(t *testing.T) {
			var libs []pack.Library
			for i := range tt.libraries {
				libs = append(libs, library(t, fmt.Sprintf("lib-%d", i), pack.AbiNone))
			}
			var cmds []pack.Command
			for i := range tt.commands {
				cmds = append(cmds, pack.Command{Name: fmt.Sprintf("cmd-%d", i), Wasm: fixtures.CommandModule()})
			}
			pkg := pack.MustNew(pack.NewMetadata(pack.MustParseName("acme/things"), "1.2.3"), libs, cmds)

			out := generate(t, pkg, Options{})

			dirs := map[string]bool{}
			commandFiles := 0
			for _, p := range out.Paths() {
				if rest, ok := strings.CutPrefix(p, "package/src/bindings/"); ok {
					if dir, _, nested := strings.Cut(rest, "/"); nested {
						dirs[dir] = true
					}
				}
				if strings.HasPrefix(p, "package/src/commands/") {
					commandFiles++
				}
			}
			if len(dirs) != tt.libraries {
				t.Errorf("got %d library directories, want %d", len(dirs), tt.libraries)
			}
			if commandFiles != 3*tt.commands {
				t.Errorf("got %d command files, want %d", commandFiles, 3*tt.commands)
			}

			_, hasBindings := out.Get("package/src/bindings/index.js")
			if hasBindings != (tt.libraries > 0) {
				t.Errorf("bindings/index.js present = %v", hasBindings)
			}

			_, wasi := readManifest(t, out).Dependencies["@wasmer/wasi"]
			if wasi != pkg.RequiresWASI() {
				t.Errorf("@wasmer/wasi dependency = %v, RequiresWASI() = %v", wasi, pkg.RequiresWASI())
			}
		})
	}
}

func TestGenerate_Options(t *testing.T) {
	pkg := pack.MustNew(
		pack.NewMetadata(pack.MustParseName("Acme/Things"), "0.0.1"),
		[]pack.Library{library(t, "things", pack.AbiWasi)},
		nil,
	)
	out := generate(t, pkg, Options{Generator: "custom-gen", WASIVersion: "^2.0.0"})

	m := readManifest(t, out)
	if m.Name != "@acme/things" {
		t.Errorf("name = %q, want lower-cased scope", m.Name)
	}
	if m.Dependencies["@wasmer/wasi"] != "^2.0.0" {
		t.Errorf("dependencies = %v", m.Dependencies)
	}
	assertContains(t, "index.js", text(t, out, "package/src/index.js"), "Generated by custom-gen.")
}

func TestGenerate_Deterministic(t *testing.T) {
	pkg := load(t, fixtures.WabtContainer())
	first := generate(t, pkg, Options{})
	second := generate(t, pkg, Options{})

	if !slices.Equal(first.Paths(), second.Paths()) {
		t.Fatal("paths differ between runs")
	}
	for p, f := range first.All() {
		if !slices.Equal(f.Bytes(), second.MustGet(p).Bytes()) {
			t.Errorf("%s differs between runs", p)
		}
	}
}

func TestGenerate_Package(t *testing.T) {
	out := generate(t, load(t, fixtures.WabtContainer()), Options{})
	for _, p := range out.Paths() {
		if !strings.HasPrefix(p, "package/") {
			t.Errorf("%s is not under package/", p)
		}
	}
	data := out.MustGet("package/package.json").Bytes()
	if !strings.HasPrefix(string(data), "{\n  \"name\"") {
		t.Errorf("package.json is not pretty-printed: %s", data)
	}
}
