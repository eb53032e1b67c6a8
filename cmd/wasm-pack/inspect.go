package main

import (
	"context"
	"slices"
	"strings"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-pack/errors"
)

// moduleShape lists the core functions a module exports and imports.
type moduleShape struct {
	Exports []string `json:"exports"`
	Imports []string `json:"imports"`
}

// inspectModule compiles wasm without instantiating it.
func inspectModule(ctx context.Context, wasm []byte) (*moduleShape, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)

	compiled, err := rt.CompileModule(ctx, wasm)
	if err != nil {
		return nil, errors.ParseFailed("module", err)
	}
	defer compiled.Close(ctx)

	shape := &moduleShape{Exports: []string{}, Imports: []string{}}
	for name, def := range compiled.ExportedFunctions() {
		shape.Exports = append(shape.Exports, name+coreSignature(def))
	}
	for _, def := range compiled.ImportedFunctions() {
		module, name, _ := def.Import()
		shape.Imports = append(shape.Imports, module+"."+name+coreSignature(def))
	}
	slices.Sort(shape.Exports)
	slices.Sort(shape.Imports)
	return shape, nil
}

func coreSignature(def api.FunctionDefinition) string {
	return "(" + valueTypes(def.ParamTypes()) + ") -> (" + valueTypes(def.ResultTypes()) + ")"
}

func valueTypes(types []api.ValueType) string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = api.ValueTypeName(t)
	}
	return strings.Join(names, ", ")
}
