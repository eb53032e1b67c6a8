package wasm

import (
	"github.com/wippyai/wasm-pack/wasm/internal/binary"
)

var header = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

// Encode encodes the module to WebAssembly binary format.
// Each defined function gets a body that returns zero values for its results,
// so the output validates under any conforming runtime.
func (m *Module) Encode() []byte {
	w := binary.NewWriter()
	w.WriteBytes(header)

	if len(m.Types) > 0 {
		sec := binary.NewWriter()
		sec.WriteVec(len(m.Types), func(i int) {
			sec.Byte(FuncTypeByte)
			writeValTypes(sec, m.Types[i].Params)
			writeValTypes(sec, m.Types[i].Results)
		})
		w.WriteSection(SectionType, sec.Bytes())
	}

	if len(m.Imports) > 0 {
		sec := binary.NewWriter()
		sec.WriteVec(len(m.Imports), func(i int) {
			imp := m.Imports[i]
			sec.WriteName(imp.Module)
			sec.WriteName(imp.Name)
			sec.Byte(KindFunc)
			sec.WriteU32(imp.TypeIdx)
		})
		w.WriteSection(SectionImport, sec.Bytes())
	}

	if len(m.Funcs) > 0 {
		sec := binary.NewWriter()
		sec.WriteVec(len(m.Funcs), func(i int) {
			sec.WriteU32(m.Funcs[i])
		})
		w.WriteSection(SectionFunction, sec.Bytes())
	}

	if m.Memory != nil {
		sec := binary.NewWriter()
		sec.WriteU32(1)
		sec.Byte(0x00)
		sec.WriteU32(*m.Memory)
		w.WriteSection(SectionMemory, sec.Bytes())
	}

	if len(m.Exports) > 0 {
		sec := binary.NewWriter()
		sec.WriteVec(len(m.Exports), func(i int) {
			exp := m.Exports[i]
			sec.WriteName(exp.Name)
			sec.Byte(exp.Kind)
			sec.WriteU32(exp.Idx)
		})
		w.WriteSection(SectionExport, sec.Bytes())
	}

	if len(m.Funcs) > 0 {
		sec := binary.NewWriter()
		sec.WriteVec(len(m.Funcs), func(i int) {
			var results []ValType
			if idx := int(m.Funcs[i]); idx < len(m.Types) {
				results = m.Types[idx].Results
			}
			body := zeroBody(results)
			sec.WriteU32(uint32(len(body)))
			sec.WriteBytes(body)
		})
		w.WriteSection(SectionCode, sec.Bytes())
	}

	return w.Bytes()
}

func writeValTypes(w *binary.Writer, types []ValType) {
	w.WriteVec(len(types), func(i int) {
		w.Byte(byte(types[i]))
	})
}

func zeroBody(results []ValType) []byte {
	w := binary.NewWriter()
	w.WriteU32(0) // no locals
	for _, vt := range results {
		switch vt {
		case ValI32:
			w.Byte(OpI32Const)
			w.Byte(0)
		case ValI64:
			w.Byte(OpI64Const)
			w.Byte(0)
		case ValF32:
			w.Byte(OpF32Const)
			w.WriteBytes(make([]byte, 4))
		case ValF64:
			w.Byte(OpF64Const)
			w.WriteBytes(make([]byte, 8))
		}
	}
	w.Byte(OpEnd)
	return w.Bytes()
}
