package bindgen

import (
	"go.bytecodealliance.org/wit"
)

// underlying follows aliases until it reaches a primitive or a TypeDef
// with a composite kind.
func underlying(t wit.Type) wit.Type {
	for {
		td, ok := t.(*wit.TypeDef)
		if !ok || td.Kind == nil {
			return t
		}
		inner, ok := td.Kind.(wit.Type)
		if !ok {
			return td
		}
		t = inner
	}
}

// SizeAlign returns the canonical ABI size and alignment of t in linear
// memory.
func SizeAlign(t wit.Type) (size, align uint32) {
	switch v := underlying(t).(type) {
	case nil:
		return 0, 1
	case wit.Bool, wit.U8, wit.S8:
		return 1, 1
	case wit.U16, wit.S16:
		return 2, 2
	case wit.U32, wit.S32, wit.F32, wit.Char:
		return 4, 4
	case wit.U64, wit.S64, wit.F64:
		return 8, 8
	case wit.String:
		return 8, 4
	case *wit.TypeDef:
		return sizeAlignDef(v)
	}
	return 4, 4
}

func sizeAlignDef(td *wit.TypeDef) (uint32, uint32) {
	switch kind := td.Kind.(type) {
	case *wit.Record:
		types := make([]wit.Type, len(kind.Fields))
		for i, f := range kind.Fields {
			types[i] = f.Type
		}
		return structLayout(types)
	case *wit.Tuple:
		return structLayout(kind.Types)
	case *wit.List:
		return 8, 4
	case *wit.Enum:
		n := discriminantSize(len(kind.Cases))
		return n, n
	case *wit.Flags:
		return flagsSize(len(kind.Flags))
	case *wit.Option:
		return variantLayout([]wit.Type{nil, kind.Type})
	case *wit.Result:
		return variantLayout([]wit.Type{kind.OK, kind.Err})
	case *wit.Variant:
		cases := make([]wit.Type, len(kind.Cases))
		for i, c := range kind.Cases {
			cases[i] = c.Type
		}
		return variantLayout(cases)
	}
	return 4, 4
}

// FieldOffsets returns the byte offset of each member of a record or tuple
// laid out in order.
func FieldOffsets(types []wit.Type) []uint32 {
	offsets := make([]uint32, len(types))
	var off uint32
	for i, t := range types {
		size, align := SizeAlign(t)
		off = alignTo(off, align)
		offsets[i] = off
		off += size
	}
	return offsets
}

func structLayout(types []wit.Type) (uint32, uint32) {
	var size, maxAlign uint32 = 0, 1
	for _, t := range types {
		s, a := SizeAlign(t)
		size = alignTo(size, a) + s
		maxAlign = max(maxAlign, a)
	}
	return alignTo(size, maxAlign), maxAlign
}

// PayloadOffset is where the payload of a variant-like value starts.
func PayloadOffset(cases []wit.Type) uint32 {
	disc := discriminantSize(len(cases))
	var caseAlign uint32 = 1
	for _, c := range cases {
		_, a := SizeAlign(c)
		caseAlign = max(caseAlign, a)
	}
	return alignTo(disc, caseAlign)
}

func variantLayout(cases []wit.Type) (uint32, uint32) {
	disc := discriminantSize(len(cases))
	var caseSize, caseAlign uint32 = 0, 1
	for _, c := range cases {
		s, a := SizeAlign(c)
		caseSize = max(caseSize, s)
		caseAlign = max(caseAlign, a)
	}
	align := max(disc, caseAlign)
	return alignTo(alignTo(disc, caseAlign)+caseSize, align), align
}

func discriminantSize(n int) uint32 {
	switch {
	case n <= 1<<8:
		return 1
	case n <= 1<<16:
		return 2
	default:
		return 4
	}
}

func flagsSize(n int) (uint32, uint32) {
	switch {
	case n == 0:
		return 0, 1
	case n <= 8:
		return 1, 1
	case n <= 16:
		return 2, 2
	default:
		return 4 * uint32((n+31)/32), 4
	}
}

func alignTo(off, align uint32) uint32 {
	return (off + align - 1) / align * align
}
