package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhaseLoad,
				Kind:   KindNotFound,
				Path:   []string{"metadata", "greet.wai"},
				Detail: "file not found",
			},
			contains: []string{"[load]", "not_found", "metadata/greet.wai", "file not found"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseParse,
				Kind:  KindInvalidData,
			},
			contains: []string{"[parse]", "invalid_data"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseWrite,
				Kind:   KindIO,
				Detail: "write file",
				Cause:  errors.New("disk full"),
			},
			contains: []string{"[write]", "io", "write file", "caused by", "disk full"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{
		Phase: PhaseLoad,
		Kind:  KindInvalidData,
		Cause: cause,
	}

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}

	if !errors.Is(errors.Unwrap(err), cause) {
		t.Error("errors.Unwrap did not return cause")
	}
}

func TestError_Is(t *testing.T) {
	err := &Error{
		Phase: PhaseValidate,
		Kind:  KindDuplicateName,
		Path:  []string{"greet"},
	}

	if !err.Is(&Error{Phase: PhaseValidate, Kind: KindDuplicateName}) {
		t.Error("Is should match same phase and kind")
	}

	if err.Is(&Error{Phase: PhaseLoad, Kind: KindDuplicateName}) {
		t.Error("Is should not match different phase")
	}

	if err.Is(&Error{Phase: PhaseValidate, Kind: KindNotFound}) {
		t.Error("Is should not match different kind")
	}

	wrapped := fmt.Errorf("outer: %w", err)
	if !errors.Is(wrapped, &Error{Phase: PhaseValidate, Kind: KindDuplicateName}) {
		t.Error("errors.Is should match through fmt wrapping")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseLoad, KindNotFound).
		Path("atoms", "greet").
		Value(42).
		Cause(cause).
		Detail("missing %s %q", "atom", "greet").
		Build()

	if err.Phase != PhaseLoad {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseLoad)
	}
	if err.Kind != KindNotFound {
		t.Errorf("Kind = %v, want %v", err.Kind, KindNotFound)
	}
	if len(err.Path) != 2 || err.Path[0] != "atoms" || err.Path[1] != "greet" {
		t.Errorf("Path = %v, want [atoms greet]", err.Path)
	}
	if err.Value != 42 {
		t.Errorf("Value = %v, want 42", err.Value)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != `missing atom "greet"` {
		t.Errorf("Detail = %v", err.Detail)
	}
}

func TestChain(t *testing.T) {
	root := errors.New("unexpected EOF")
	mid := ParseFailed("interface", root)
	top := Load("load library \"greet\"", mid)

	chain := Chain(top)
	if len(chain) != 3 {
		t.Fatalf("expected 3 links, got %d: %v", len(chain), chain)
	}
	if !strings.Contains(chain[0], "load library") {
		t.Errorf("outer link = %q", chain[0])
	}
	if strings.Contains(chain[0], "caused by") {
		t.Errorf("links should not repeat their causes: %q", chain[0])
	}
	if chain[2] != "unexpected EOF" {
		t.Errorf("root link = %q", chain[2])
	}
}

func TestConvenienceConstructors(t *testing.T) {
	t.Run("InvalidUTF8", func(t *testing.T) {
		data := []byte{0xff, 0xfe}
		err := InvalidUTF8(PhaseLoad, []string{"greet.wai"}, data)
		if err.Kind != KindInvalidUTF8 {
			t.Errorf("Kind = %v, want %v", err.Kind, KindInvalidUTF8)
		}
		if !strings.Contains(err.Detail, "fffe") {
			t.Errorf("Detail = %v, should contain preview", err.Detail)
		}
	})

	t.Run("DuplicateName", func(t *testing.T) {
		err := DuplicateName("library", "greet")
		if err.Phase != PhaseValidate || err.Kind != KindDuplicateName {
			t.Errorf("got %v/%v", err.Phase, err.Kind)
		}
		if err.Value != "greet" {
			t.Errorf("Value = %v, want greet", err.Value)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		err := NotFound(PhaseLoad, "volume", "metadata")
		if err.Kind != KindNotFound {
			t.Errorf("Kind = %v, want %v", err.Kind, KindNotFound)
		}
		if !strings.Contains(err.Error(), `volume "metadata" not found`) {
			t.Errorf("Error() = %v", err.Error())
		}
	})

	t.Run("Generate", func(t *testing.T) {
		err := Generate("package.json", errors.New("boom"))
		if err.Phase != PhaseGenerate {
			t.Errorf("Phase = %v", err.Phase)
		}
		if !strings.Contains(err.Error(), "package.json") {
			t.Errorf("Error() = %v, should name the artifact", err.Error())
		}
	})

	t.Run("Write", func(t *testing.T) {
		err := Write("out/package.json", "write file", errors.New("read-only"))
		if err.Kind != KindIO {
			t.Errorf("Kind = %v, want %v", err.Kind, KindIO)
		}
		if !strings.Contains(err.Error(), "out/package.json") {
			t.Errorf("Error() = %v, should name the path", err.Error())
		}
	})

	t.Run("Unsupported", func(t *testing.T) {
		err := Unsupported(PhaseGenerate, "resource types")
		if err.Kind != KindUnsupported {
			t.Errorf("Kind = %v, want %v", err.Kind, KindUnsupported)
		}
	})
}
