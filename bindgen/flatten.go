package bindgen

import (
	"github.com/tetratelabs/wazero/api"
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/wasm-pack/idl"
)

// Canonical ABI flattening limits
const (
	MaxFlatParams  = 16
	MaxFlatResults = 1
)

// CoreValType is a core wasm value type
type CoreValType = api.ValueType

// Signature is the core wasm signature of an interface function.
type Signature struct {
	Params  []CoreValType
	Results []CoreValType
	// IndirectParams is set when the flattened parameters exceed
	// MaxFlatParams and are passed through memory instead.
	IndirectParams bool
	// IndirectResults is set when the results exceed MaxFlatResults. For an
	// export the callee returns a pointer to them, for an import the caller
	// passes a pointer as the last parameter.
	IndirectResults bool
}

// Direction selects which side of the boundary owns the function.
type Direction int

const (
	// Export functions are implemented by the guest and called by the host.
	Export Direction = iota
	// Import functions are implemented by the host and called by the guest.
	Import
)

// CoreSignature flattens fn's parameters and results, applying the
// MaxFlatParams and MaxFlatResults limits for the given direction.
func CoreSignature(fn *idl.Function, dir Direction) Signature {
	sig := Signature{
		Params:  FlattenTypes(fn.ParamTypes()),
		Results: FlattenTypes(fn.ResultTypes()),
	}

	if len(sig.Params) > MaxFlatParams {
		sig.Params = []CoreValType{api.ValueTypeI32}
		sig.IndirectParams = true
	}

	if len(sig.Results) > MaxFlatResults {
		sig.IndirectResults = true
		switch dir {
		case Export:
			sig.Results = []CoreValType{api.ValueTypeI32}
		case Import:
			sig.Params = append(sig.Params, api.ValueTypeI32)
			sig.Results = nil
		}
	}

	return sig
}

// FlattenTypes flattens WIT types to core wasm types
func FlattenTypes(types []wit.Type) []CoreValType {
	var result []CoreValType
	for _, t := range types {
		result = append(result, FlattenType(t)...)
	}
	return result
}

// FlattenType flattens a WIT type to core wasm types
func FlattenType(t wit.Type) []CoreValType {
	if t == nil {
		return nil
	}

	switch v := t.(type) {
	case wit.Bool, wit.U8, wit.U16, wit.U32, wit.S8, wit.S16, wit.S32, wit.Char:
		return []CoreValType{api.ValueTypeI32}
	case wit.U64, wit.S64:
		return []CoreValType{api.ValueTypeI64}
	case wit.F32:
		return []CoreValType{api.ValueTypeF32}
	case wit.F64:
		return []CoreValType{api.ValueTypeF64}
	case wit.String:
		return []CoreValType{api.ValueTypeI32, api.ValueTypeI32} // ptr, len
	case *wit.TypeDef:
		return flattenTypeDef(v)
	default:
		return []CoreValType{api.ValueTypeI32}
	}
}

// flattenTypeDef flattens a TypeDef
func flattenTypeDef(td *wit.TypeDef) []CoreValType {
	if td == nil || td.Kind == nil {
		return []CoreValType{api.ValueTypeI32}
	}

	switch kind := td.Kind.(type) {
	case *wit.Record:
		var flat []CoreValType
		for _, field := range kind.Fields {
			flat = append(flat, FlattenType(field.Type)...)
		}
		return flat
	case *wit.List:
		return []CoreValType{api.ValueTypeI32, api.ValueTypeI32} // ptr, len
	case *wit.Tuple:
		return FlattenTypes(kind.Types)
	case *wit.Variant:
		var payloads [][]CoreValType
		for _, c := range kind.Cases {
			payloads = append(payloads, FlattenType(c.Type))
		}
		return append([]CoreValType{api.ValueTypeI32}, joinPayloads(payloads...)...)
	case *wit.Enum:
		return []CoreValType{api.ValueTypeI32}
	case *wit.Option:
		return append([]CoreValType{api.ValueTypeI32}, FlattenType(kind.Type)...)
	case *wit.Result:
		return append([]CoreValType{api.ValueTypeI32}, joinPayloads(FlattenType(kind.OK), FlattenType(kind.Err))...)
	case *wit.Flags:
		if len(kind.Flags) > 32 {
			return []CoreValType{api.ValueTypeI64}
		}
		return []CoreValType{api.ValueTypeI32}
	case *wit.Own, *wit.Borrow:
		return []CoreValType{api.ValueTypeI32} // resource handle
	case wit.Type:
		// Aliases and primitives wrapped in a TypeDef.
		return FlattenType(kind)
	default:
		return []CoreValType{api.ValueTypeI32}
	}
}

// joinPayloads overlays case payloads slot by slot
func joinPayloads(payloads ...[]CoreValType) []CoreValType {
	var joined []CoreValType
	for _, p := range payloads {
		for i, ft := range p {
			if i < len(joined) {
				joined[i] = joinTypes(joined[i], ft)
			} else {
				joined = append(joined, ft)
			}
		}
	}
	return joined
}

// joinTypes unions two core types for variant payloads
func joinTypes(a, b CoreValType) CoreValType {
	if a == b {
		return a
	}
	// 32-bit types can share storage
	if (a == api.ValueTypeI32 && b == api.ValueTypeF32) ||
		(a == api.ValueTypeF32 && b == api.ValueTypeI32) {
		return api.ValueTypeI32
	}
	// Different sizes require i64
	return api.ValueTypeI64
}
