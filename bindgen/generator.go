package bindgen

import (
	stderrors "errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-pack/errors"
	"github.com/wippyai/wasm-pack/files"
	"github.com/wippyai/wasm-pack/idl"
)

// Generator produces the glue code for one library: the wrapper around its
// exported interface plus a host registration helper for every interface it
// imports.
type Generator interface {
	Generate(exports *idl.Definition, imports ...*idl.Definition) (*files.Files, error)
}

// source accumulates indented lines of generated code.
type source struct {
	b      strings.Builder
	indent int
	unit   string
}

func newSource(unit string) *source {
	return &source{unit: unit}
}

func (s *source) line(format string, args ...any) {
	if format == "" {
		s.b.WriteByte('\n')
		return
	}
	s.b.WriteString(strings.Repeat(s.unit, s.indent))
	if len(args) > 0 {
		fmt.Fprintf(&s.b, format, args...)
	} else {
		s.b.WriteString(format)
	}
	s.b.WriteByte('\n')
}

func (s *source) in()  { s.indent++ }
func (s *source) out() { s.indent-- }

func (s *source) String() string {
	return s.b.String()
}

// isUnsupported reports whether err only says a type cannot be marshalled,
// in which case the function is generated as a stub that fails when called.
func isUnsupported(err error) bool {
	return stderrors.Is(err, &errors.Error{Phase: errors.PhaseGenerate, Kind: errors.KindUnsupported})
}

func warnUnsupported(lang string, def *idl.Definition, err error) {
	Logger().Warn("generating stub for unsupported function",
		zap.String("language", lang),
		zap.String("interface", def.Name),
		zap.Error(err))
}

func unsupportedMessage(err error) string {
	var e *errors.Error
	if stderrors.As(err, &e) {
		return e.Detail + " is not supported by these bindings"
	}
	return err.Error()
}
