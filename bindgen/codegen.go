package bindgen

import (
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/wasm-pack/errors"
	"github.com/wippyai/wasm-pack/idl"
)

// dialect renders the language specific pieces of marshalling code. The
// emitter decides what has to happen to a value, the dialect decides how it
// is spelled.
type dialect interface {
	funcName(name string) string
	fieldName(name string) string
	helper(name string) string

	lambda(params []string, body string) string
	cond(test, then, els string) string
	eq(a, b string) string
	null() string
	field(expr, name string) string
	record(typeName string, fields []fieldExpr) string
	tuple(items []string) string
	assign(names []string, expr string) string

	liftPrim(kind, expr string) string
	lowerPrim(kind, expr string) string
	liftEnum(typeName string, cases []string, expr string) string
	lowerEnum(typeName string, cases []string, expr string) string
	liftFlags(typeName, expr string) string
	lowerFlags(typeName, expr string) string
	ok(expr string) string
	err(expr string) string
	variantCase(typeName, caseName, payload string) string
}

type fieldExpr struct {
	name string
	expr string
}

// emitter generates marshalling expressions for one interface.
type emitter struct {
	d       dialect
	def     *idl.Definition
	mem     string
	realloc string

	stmts []string
	tmp   int
}

func newEmitter(d dialect, def *idl.Definition) *emitter {
	return &emitter{
		d:       d,
		def:     def,
		mem:     "memory",
		realloc: "realloc",
	}
}

func (e *emitter) reset() {
	e.stmts = nil
	e.tmp = 0
}

func (e *emitter) fresh(prefix string) string {
	name := prefix + strconv.Itoa(e.tmp)
	e.tmp++
	return name
}

func (e *emitter) call(helper string, args ...string) string {
	return e.d.helper(helper) + "(" + strings.Join(args, ", ") + ")"
}

func (e *emitter) name(t wit.Type) string {
	if name, ok := e.def.NameOf(t); ok {
		return name
	}
	return ""
}

func unsupported(format string, args ...any) error {
	return errors.New(errors.PhaseGenerate, errors.KindUnsupported).Detail(format, args...).Build()
}

// primKind names the primitive type of t, or "" for anything else.
func primKind(t wit.Type) string {
	switch t.(type) {
	case wit.Bool:
		return "bool"
	case wit.U8:
		return "u8"
	case wit.S8:
		return "s8"
	case wit.U16:
		return "u16"
	case wit.S16:
		return "s16"
	case wit.U32:
		return "u32"
	case wit.S32:
		return "s32"
	case wit.U64:
		return "u64"
	case wit.S64:
		return "s64"
	case wit.F32:
		return "f32"
	case wit.F64:
		return "f64"
	case wit.Char:
		return "char"
	}
	return ""
}

// memKind is the load/store width used for a primitive in linear memory.
func memKind(kind string) string {
	switch kind {
	case "bool":
		return "u8"
	case "char":
		return "u32"
	}
	return kind
}

func intKind(size uint32) string {
	switch size {
	case 1:
		return "u8"
	case 2:
		return "u16"
	}
	return "u32"
}

func offset(addr string, off uint32) string {
	if off == 0 {
		return addr
	}
	return addr + " + " + strconv.FormatUint(uint64(off), 10)
}

func seq(exprs []string, empty string) string {
	switch len(exprs) {
	case 0:
		return empty
	case 1:
		return exprs[0]
	}
	return "(" + strings.Join(exprs, ", ") + ")"
}

func quoted(names []string) string {
	q := make([]string, len(names))
	for i, n := range names {
		q[i] = strconv.Quote(n)
	}
	return "[" + strings.Join(q, ", ") + "]"
}

func enumCases(e *wit.Enum) []string {
	names := make([]string, len(e.Cases))
	for i, c := range e.Cases {
		names[i] = c.Name
	}
	return names
}

func fieldTypes(r *wit.Record) []wit.Type {
	types := make([]wit.Type, len(r.Fields))
	for i, f := range r.Fields {
		types[i] = f.Type
	}
	return types
}

// lowerFlat converts a host value into flat core values, queueing any
// statements the conversion needs.
func (e *emitter) lowerFlat(t wit.Type, expr string) ([]string, error) {
	t = underlying(t)
	if kind := primKind(t); kind != "" {
		return []string{e.d.lowerPrim(kind, expr)}, nil
	}
	if _, ok := t.(wit.String); ok {
		ptr, length := e.fresh("ptr"), e.fresh("len")
		e.stmts = append(e.stmts, e.d.assign([]string{ptr, length}, e.call("encodeString", e.mem, e.realloc, expr)))
		return []string{ptr, length}, nil
	}

	td, ok := t.(*wit.TypeDef)
	if !ok {
		return nil, unsupported("%s value", witName(e.def, t))
	}

	switch kind := td.Kind.(type) {
	case *wit.Record:
		var flat []string
		for _, f := range kind.Fields {
			vals, err := e.lowerFlat(f.Type, e.d.field(expr, f.Name))
			if err != nil {
				return nil, err
			}
			flat = append(flat, vals...)
		}
		return flat, nil

	case *wit.Tuple:
		var flat []string
		for i, elem := range kind.Types {
			vals, err := e.lowerFlat(elem, expr+"["+strconv.Itoa(i)+"]")
			if err != nil {
				return nil, err
			}
			flat = append(flat, vals...)
		}
		return flat, nil

	case *wit.Enum:
		return []string{e.d.lowerEnum(e.name(td), enumCases(kind), expr)}, nil

	case *wit.Flags:
		if len(kind.Flags) > 32 {
			return nil, unsupported("flags %s with more than 32 members", e.name(td))
		}
		return []string{e.d.lowerFlags(e.name(td), expr)}, nil

	case *wit.List:
		size, align := SizeAlign(kind.Type)
		v, base := e.fresh("e"), e.fresh("base")
		store, err := e.storeExpr(kind.Type, v, base)
		if err != nil {
			return nil, err
		}
		ptr, length := e.fresh("ptr"), e.fresh("len")
		lower := e.call("lowerList", e.mem, e.realloc, expr, u32(size), u32(align), e.d.lambda([]string{v, base}, store))
		e.stmts = append(e.stmts, e.d.assign([]string{ptr, length}, lower))
		return []string{ptr, length}, nil
	}

	return nil, unsupported("%s parameter", witName(e.def, td))
}

// storeExpr writes a host value into linear memory at addr.
func (e *emitter) storeExpr(t wit.Type, val, addr string) (string, error) {
	t = underlying(t)
	if kind := primKind(t); kind != "" {
		return e.call("store", e.mem, strconv.Quote(memKind(kind)), addr, e.d.lowerPrim(kind, val)), nil
	}
	if _, ok := t.(wit.String); ok {
		return e.call("storeString", e.mem, e.realloc, addr, val), nil
	}

	td, ok := t.(*wit.TypeDef)
	if !ok {
		return "", unsupported("%s value", witName(e.def, t))
	}

	switch kind := td.Kind.(type) {
	case *wit.Record:
		types := fieldTypes(kind)
		offsets := FieldOffsets(types)
		stores := make([]string, len(types))
		for i, f := range kind.Fields {
			s, err := e.storeExpr(f.Type, e.d.field(val, f.Name), offset(addr, offsets[i]))
			if err != nil {
				return "", err
			}
			stores[i] = s
		}
		return seq(stores, e.d.null()), nil

	case *wit.Tuple:
		offsets := FieldOffsets(kind.Types)
		stores := make([]string, len(kind.Types))
		for i, elem := range kind.Types {
			s, err := e.storeExpr(elem, val+"["+strconv.Itoa(i)+"]", offset(addr, offsets[i]))
			if err != nil {
				return "", err
			}
			stores[i] = s
		}
		return seq(stores, e.d.null()), nil

	case *wit.Enum:
		disc := intKind(discriminantSize(len(kind.Cases)))
		return e.call("store", e.mem, strconv.Quote(disc), addr, e.d.lowerEnum(e.name(td), enumCases(kind), val)), nil

	case *wit.Flags:
		if len(kind.Flags) > 32 {
			return "", unsupported("flags %s with more than 32 members", e.name(td))
		}
		size, _ := flagsSize(len(kind.Flags))
		return e.call("store", e.mem, strconv.Quote(intKind(size)), addr, e.d.lowerFlags(e.name(td), val)), nil

	case *wit.List:
		size, align := SizeAlign(kind.Type)
		v, base := e.fresh("e"), e.fresh("base")
		store, err := e.storeExpr(kind.Type, v, base)
		if err != nil {
			return "", err
		}
		return e.call("storeList", e.mem, e.realloc, addr, val, u32(size), u32(align), e.d.lambda([]string{v, base}, store)), nil
	}

	return "", unsupported("%s value", witName(e.def, td))
}

// liftFlat rebuilds a host value from flat core values, consuming them from
// the front of vals.
func (e *emitter) liftFlat(t wit.Type, vals *[]string) (string, error) {
	take := func(n int) ([]string, error) {
		if len(*vals) < n {
			return nil, unsupported("%s needs %d core values", witName(e.def, t), n)
		}
		out := (*vals)[:n]
		*vals = (*vals)[n:]
		return out, nil
	}

	t = underlying(t)
	if kind := primKind(t); kind != "" {
		v, err := take(1)
		if err != nil {
			return "", err
		}
		return e.d.liftPrim(kind, v[0]), nil
	}
	if _, ok := t.(wit.String); ok {
		v, err := take(2)
		if err != nil {
			return "", err
		}
		return e.call("decodeString", e.mem, v[0], v[1]), nil
	}

	td, ok := t.(*wit.TypeDef)
	if !ok {
		return "", unsupported("%s value", witName(e.def, t))
	}

	switch kind := td.Kind.(type) {
	case *wit.Record:
		fields := make([]fieldExpr, len(kind.Fields))
		for i, f := range kind.Fields {
			expr, err := e.liftFlat(f.Type, vals)
			if err != nil {
				return "", err
			}
			fields[i] = fieldExpr{name: f.Name, expr: expr}
		}
		return e.d.record(e.name(td), fields), nil

	case *wit.Tuple:
		items := make([]string, len(kind.Types))
		for i, elem := range kind.Types {
			expr, err := e.liftFlat(elem, vals)
			if err != nil {
				return "", err
			}
			items[i] = expr
		}
		return e.d.tuple(items), nil

	case *wit.Enum:
		v, err := take(1)
		if err != nil {
			return "", err
		}
		return e.d.liftEnum(e.name(td), enumCases(kind), v[0]), nil

	case *wit.Flags:
		if len(kind.Flags) > 32 {
			return "", unsupported("flags %s with more than 32 members", e.name(td))
		}
		v, err := take(1)
		if err != nil {
			return "", err
		}
		return e.d.liftFlags(e.name(td), v[0]), nil

	case *wit.List:
		v, err := take(2)
		if err != nil {
			return "", err
		}
		size, _ := SizeAlign(kind.Type)
		base := e.fresh("base")
		load, err := e.loadExpr(kind.Type, base)
		if err != nil {
			return "", err
		}
		return e.call("liftList", e.mem, v[0], v[1], u32(size), e.d.lambda([]string{base}, load)), nil
	}

	return "", unsupported("%s value", witName(e.def, td))
}

// loadExpr reads a value of type t from linear memory at addr.
func (e *emitter) loadExpr(t wit.Type, addr string) (string, error) {
	t = underlying(t)
	if kind := primKind(t); kind != "" {
		return e.d.liftPrim(kind, e.call("load", e.mem, strconv.Quote(memKind(kind)), addr)), nil
	}
	if _, ok := t.(wit.String); ok {
		return e.call("loadString", e.mem, addr), nil
	}

	td, ok := t.(*wit.TypeDef)
	if !ok {
		return "", unsupported("%s value", witName(e.def, t))
	}

	switch kind := td.Kind.(type) {
	case *wit.Record:
		offsets := FieldOffsets(fieldTypes(kind))
		fields := make([]fieldExpr, len(kind.Fields))
		for i, f := range kind.Fields {
			expr, err := e.loadExpr(f.Type, offset(addr, offsets[i]))
			if err != nil {
				return "", err
			}
			fields[i] = fieldExpr{name: f.Name, expr: expr}
		}
		return e.d.record(e.name(td), fields), nil

	case *wit.Tuple:
		offsets := FieldOffsets(kind.Types)
		items := make([]string, len(kind.Types))
		for i, elem := range kind.Types {
			expr, err := e.loadExpr(elem, offset(addr, offsets[i]))
			if err != nil {
				return "", err
			}
			items[i] = expr
		}
		return e.d.tuple(items), nil

	case *wit.Enum:
		disc := e.loadDisc(len(kind.Cases), addr)
		return e.d.liftEnum(e.name(td), enumCases(kind), disc), nil

	case *wit.Flags:
		if len(kind.Flags) > 32 {
			return "", unsupported("flags %s with more than 32 members", e.name(td))
		}
		size, _ := flagsSize(len(kind.Flags))
		return e.d.liftFlags(e.name(td), e.call("load", e.mem, strconv.Quote(intKind(size)), addr)), nil

	case *wit.List:
		size, _ := SizeAlign(kind.Type)
		base := e.fresh("base")
		load, err := e.loadExpr(kind.Type, base)
		if err != nil {
			return "", err
		}
		return e.call("loadList", e.mem, addr, u32(size), e.d.lambda([]string{base}, load)), nil

	case *wit.Option:
		payload := offset(addr, PayloadOffset([]wit.Type{nil, kind.Type}))
		some, err := e.loadExpr(kind.Type, payload)
		if err != nil {
			return "", err
		}
		return e.d.cond(e.d.eq(e.loadDisc(2, addr), "0"), e.d.null(), some), nil

	case *wit.Result:
		payload := offset(addr, PayloadOffset([]wit.Type{kind.OK, kind.Err}))
		okVal, errVal := e.d.null(), e.d.null()
		var err error
		if kind.OK != nil {
			if okVal, err = e.loadExpr(kind.OK, payload); err != nil {
				return "", err
			}
		}
		if kind.Err != nil {
			if errVal, err = e.loadExpr(kind.Err, payload); err != nil {
				return "", err
			}
		}
		return e.d.cond(e.d.eq(e.loadDisc(2, addr), "0"), e.d.ok(okVal), e.d.err(errVal)), nil

	case *wit.Variant:
		if len(kind.Cases) == 0 {
			return "", unsupported("empty variant %s", e.name(td))
		}
		cases := make([]wit.Type, len(kind.Cases))
		for i, c := range kind.Cases {
			cases[i] = c.Type
		}
		payload := offset(addr, PayloadOffset(cases))
		values := make([]string, len(kind.Cases))
		for i, c := range kind.Cases {
			val := ""
			if c.Type != nil {
				v, err := e.loadExpr(c.Type, payload)
				if err != nil {
					return "", err
				}
				val = v
			}
			values[i] = e.d.variantCase(e.name(td), c.Name, val)
		}
		// The last case doubles as the fallback.
		expr := values[len(values)-1]
		for i := len(values) - 2; i >= 0; i-- {
			disc := e.loadDisc(len(kind.Cases), addr)
			expr = e.d.cond(e.d.eq(disc, strconv.Itoa(i)), values[i], expr)
		}
		return expr, nil
	}

	return "", unsupported("%s value", witName(e.def, td))
}

func (e *emitter) loadDisc(cases int, addr string) string {
	return e.call("load", e.mem, strconv.Quote(intKind(discriminantSize(cases))), addr)
}

func u32(v uint32) string {
	return strconv.FormatUint(uint64(v), 10)
}

// resultType folds a function's results into a single type: nil for none,
// the type itself for one, a tuple for several.
func resultType(fn *idl.Function) wit.Type {
	switch len(fn.Results) {
	case 0:
		return nil
	case 1:
		return fn.Results[0].Type
	}
	return &wit.TypeDef{Kind: &wit.Tuple{Types: fn.ResultTypes()}}
}

// exportCall is the host side of calling a guest export.
type exportCall struct {
	stmts []string
	args  []string
	// result lifts the return value held in "ret"; empty when the function
	// returns nothing.
	result string
	// indirect is set when ret points at the results in guest memory, in
	// which case the guest's post-return hook runs after lifting.
	indirect bool
}

func (e *emitter) exportCall(fn *idl.Function, params []string) (*exportCall, error) {
	e.reset()
	sig := CoreSignature(fn, Export)
	if sig.IndirectParams {
		return nil, unsupported("%s: more than %d flattened parameters", fn.Name, MaxFlatParams)
	}

	call := &exportCall{indirect: sig.IndirectResults}
	for i, p := range fn.Params {
		flat, err := e.lowerFlat(p.Type, params[i])
		if err != nil {
			return nil, wrapFunc(fn, err)
		}
		call.args = append(call.args, flat...)
	}

	if rt := resultType(fn); rt != nil {
		var err error
		if sig.IndirectResults {
			call.result, err = e.loadExpr(rt, "ret")
		} else {
			vals := []string{"ret"}
			call.result, err = e.liftFlat(rt, &vals)
		}
		if err != nil {
			return nil, wrapFunc(fn, err)
		}
	}

	call.stmts = e.stmts
	return call, nil
}

// importCall is the host side of a guest calling into a host function.
type importCall struct {
	// params are the core parameter names, including the result pointer
	// when results travel through memory.
	params []string
	// args are the lifted arguments passed to the host implementation.
	args []string
	// lower converts the host's "result" into the core return value;
	// store writes it through "retptr" instead. At most one is set.
	lower string
	store string
	stmts []string
}

func (e *emitter) importCall(fn *idl.Function) (*importCall, error) {
	e.reset()
	sig := CoreSignature(fn, Import)
	if sig.IndirectParams {
		return nil, unsupported("%s: more than %d flattened parameters", fn.Name, MaxFlatParams)
	}

	call := &importCall{}
	for i := range sig.Params {
		call.params = append(call.params, "arg"+strconv.Itoa(i))
	}
	vals := call.params
	if sig.IndirectResults {
		call.params[len(call.params)-1] = "retptr"
		vals = call.params[:len(call.params)-1]
	}

	for _, p := range fn.Params {
		arg, err := e.liftFlat(p.Type, &vals)
		if err != nil {
			return nil, wrapFunc(fn, err)
		}
		call.args = append(call.args, arg)
	}

	if rt := resultType(fn); rt != nil {
		if sig.IndirectResults {
			store, err := e.storeExpr(rt, "result", "retptr")
			if err != nil {
				return nil, wrapFunc(fn, err)
			}
			call.store = store
		} else {
			flat, err := e.lowerFlat(rt, "result")
			if err != nil {
				return nil, wrapFunc(fn, err)
			}
			if len(flat) == 1 {
				call.lower = flat[0]
			}
		}
	}

	call.stmts = e.stmts
	return call, nil
}

func wrapFunc(fn *idl.Function, err error) error {
	var e *errors.Error
	if stderrors.As(err, &e) && e.Kind == errors.KindUnsupported {
		return unsupported("%s: %s", fn.Name, e.Detail)
	}
	return err
}

// WITType spells t the way an interface file would, using declared names
// where def has them.
func WITType(def *idl.Definition, t wit.Type) string {
	return witName(def, t)
}

func witName(def *idl.Definition, t wit.Type) string {
	if t == nil {
		return "_"
	}
	if name, ok := def.NameOf(t); ok {
		return name
	}
	if kind := primKind(t); kind != "" {
		return kind
	}
	if _, ok := t.(wit.String); ok {
		return "string"
	}
	td, ok := t.(*wit.TypeDef)
	if !ok {
		return fmt.Sprintf("%T", t)
	}
	switch kind := td.Kind.(type) {
	case *wit.List:
		return "list<" + witName(def, kind.Type) + ">"
	case *wit.Option:
		return "option<" + witName(def, kind.Type) + ">"
	case *wit.Result:
		return "result<" + witName(def, kind.OK) + ", " + witName(def, kind.Err) + ">"
	case *wit.Tuple:
		parts := make([]string, len(kind.Types))
		for i, elem := range kind.Types {
			parts[i] = witName(def, elem)
		}
		return "tuple<" + strings.Join(parts, ", ") + ">"
	case wit.Type:
		return witName(def, kind)
	}
	return "anonymous type"
}
