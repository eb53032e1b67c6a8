package bindgen

import (
	"testing"

	"go.bytecodealliance.org/wit"
)

func TestSizeAlign(t *testing.T) {
	pair := &wit.TypeDef{Kind: &wit.Record{Fields: []wit.Field{
		{Name: "flag", Type: wit.Bool{}},
		{Name: "value", Type: wit.U64{}},
	}}}

	tests := []struct {
		name        string
		typ         wit.Type
		size, align uint32
	}{
		{"u8", wit.U8{}, 1, 1},
		{"s16", wit.S16{}, 2, 2},
		{"char", wit.Char{}, 4, 4},
		{"f64", wit.F64{}, 8, 8},
		{"string", wit.String{}, 8, 4},
		{"list", &wit.TypeDef{Kind: &wit.List{Type: wit.U8{}}}, 8, 4},
		{"record pads to alignment", pair, 16, 8},
		{"tuple", &wit.TypeDef{Kind: &wit.Tuple{Types: []wit.Type{wit.U8{}, wit.U16{}}}}, 4, 2},
		{"enum", &wit.TypeDef{Kind: &wit.Enum{Cases: []wit.EnumCase{{Name: "a"}}}}, 1, 1},
		{"option<string>", &wit.TypeDef{Kind: &wit.Option{Type: wit.String{}}}, 12, 4},
		{"option<u64>", &wit.TypeDef{Kind: &wit.Option{Type: wit.U64{}}}, 16, 8},
		{"result<u8, string>", &wit.TypeDef{Kind: &wit.Result{OK: wit.U8{}, Err: wit.String{}}}, 12, 4},
		{"result<_, _>", &wit.TypeDef{Kind: &wit.Result{}}, 1, 1},
		{"alias", &wit.TypeDef{Kind: wit.U32{}}, 4, 4},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			size, align := SizeAlign(tc.typ)
			if size != tc.size || align != tc.align {
				t.Errorf("SizeAlign = (%d, %d), want (%d, %d)", size, align, tc.size, tc.align)
			}
		})
	}
}

func TestSizeAlign_Flags(t *testing.T) {
	tests := []struct {
		n           int
		size, align uint32
	}{
		{0, 0, 1},
		{3, 1, 1},
		{9, 2, 2},
		{17, 4, 4},
		{33, 8, 4},
	}
	for _, tc := range tests {
		f := &wit.Flags{}
		for i := 0; i < tc.n; i++ {
			f.Flags = append(f.Flags, wit.Flag{Name: caseLabel(i)})
		}
		size, align := SizeAlign(&wit.TypeDef{Kind: f})
		if size != tc.size || align != tc.align {
			t.Errorf("%d flags: (%d, %d), want (%d, %d)", tc.n, size, align, tc.size, tc.align)
		}
	}
}

func TestFieldOffsets(t *testing.T) {
	offsets := FieldOffsets([]wit.Type{wit.U8{}, wit.U32{}, wit.U16{}, wit.String{}})
	want := []uint32{0, 4, 8, 12}
	for i := range want {
		if offsets[i] != want[i] {
			t.Errorf("offset %d = %d, want %d", i, offsets[i], want[i])
		}
	}
}

func TestPayloadOffset(t *testing.T) {
	if off := PayloadOffset([]wit.Type{nil, wit.String{}}); off != 4 {
		t.Errorf("option<string> payload at %d, want 4", off)
	}
	if off := PayloadOffset([]wit.Type{wit.U8{}, nil}); off != 1 {
		t.Errorf("result<u8> payload at %d, want 1", off)
	}
}
