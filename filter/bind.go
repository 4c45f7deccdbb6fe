package filter

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/packetcap/go-dfilter/ftypes"
	"github.com/packetcap/go-dfilter/registry"
)

// boundExpr a syntax tree node with names resolved and literals typed
type boundExpr interface {
	bound()
}

type boundLogical struct {
	op       logicalOp
	children []boundExpr
}

type testKind int

const (
	// testPresent any occurrence of the operand is set
	testPresent testKind = iota
	// testCompare the operand against another operand, a pattern or a set
	testCompare
)

type boundTest struct {
	kind testKind
	op   relOp
	mode ftypes.Mode
	lhs  *operand
	rhs  *operand
	re   *regexp.Regexp
	set  *valueSet
}

type operandKind int

const (
	operandField operandKind = iota
	operandConst
	operandCall
)

// operand a value list producer: a field load, a constant or a call
type operand struct {
	kind   operandKind
	field  *registry.Descriptor
	layer  int
	ranges []ftypes.Range
	value  ftypes.Value
	fn     *function
	arg    *operand
	typ    ftypes.Type
}

// setMember one value of a set literal, or an inclusive range of values
type setMember struct {
	low     ftypes.Value
	high    ftypes.Value
	isRange bool
}

type valueSet struct {
	members []setMember
}

func (*boundLogical) bound() {}
func (*boundTest) bound()    {}

// DeprecatedToken a retired field name found in a filter, and the name that
// replaced it
type DeprecatedToken struct {
	Name        string
	Replacement string
	Offset      int
}

type binder struct {
	ctx        context.Context
	reg        *registry.Registry
	opts       *Options
	deprecated []DeprecatedToken
	warnings   []string
	fields     map[registry.FieldID]bool
}

func newBinder(ctx context.Context, reg *registry.Registry, opts *Options) *binder {
	return &binder{ctx: ctx, reg: reg, opts: opts, fields: map[registry.FieldID]bool{}}
}

// interesting the ids of every field the bound tree reads, sorted
func (b *binder) interesting() []registry.FieldID {
	ids := make([]registry.FieldID, 0, len(b.fields))
	for id := range b.fields {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (b *binder) bind(n node) (boundExpr, error) {
	switch n := n.(type) {
	case *logicalExpr:
		out := &boundLogical{op: n.op, children: make([]boundExpr, 0, len(n.children))}
		for _, c := range n.children {
			bc, err := b.bind(c)
			if err != nil {
				return nil, err
			}
			out.children = append(out.children, bc)
		}
		return out, nil
	case *relationExpr:
		return b.bindRelation(n)
	case *fieldRef, *functionCall:
		op, err := b.bindOperand(n)
		if err != nil {
			return nil, err
		}
		return &boundTest{kind: testPresent, lhs: op}, nil
	case *literal:
		if f, ok := b.literalAsField(n); ok {
			return b.bind(f)
		}
		return nil, &UnknownFieldError{Name: n.text, Offset: n.start}
	}
	return nil, fmt.Errorf("unexpected %T in expression", n)
}

type binderState struct {
	fields     map[registry.FieldID]bool
	deprecated int
}

// save what binding an operand would add, so a speculative bind can be undone
func (b *binder) save() binderState {
	fields := make(map[registry.FieldID]bool, len(b.fields))
	for id := range b.fields {
		fields[id] = true
	}
	return binderState{fields: fields, deprecated: len(b.deprecated)}
}

func (b *binder) restore(s binderState) {
	b.fields = s.fields
	b.deprecated = b.deprecated[:s.deprecated]
}

// lookup resolve a name, translating retired spellings
func (b *binder) lookup(name string, offset int) (*registry.Descriptor, bool) {
	if repl, ok := b.reg.Replacement(name); ok {
		if d, ok := b.reg.Resolve(repl); ok {
			b.deprecated = append(b.deprecated, DeprecatedToken{Name: name, Replacement: repl, Offset: offset})
			return d, true
		}
	}
	return b.reg.Resolve(name)
}

// known whether a name resolves, without recording anything
func (b *binder) known(name string) bool {
	if repl, ok := b.reg.Replacement(name); ok {
		if _, ok := b.reg.Resolve(repl); ok {
			return true
		}
	}
	_, ok := b.reg.Resolve(name)
	return ok
}

// literalAsField an unquoted literal that spells a registered name, such as
// a protocol whose name reads like a byte string
func (b *binder) literalAsField(l *literal) (*fieldRef, bool) {
	if l.class.quoted() || l.class == classChar || !b.known(l.text) {
		return nil, false
	}
	return &fieldRef{pos: l.pos, name: l.text, layer: noLayer}, true
}

// fieldLike whether n binds to a field load or call
func (b *binder) fieldLike(n node) bool {
	switch n := n.(type) {
	case *fieldRef:
		return b.known(n.name)
	case *functionCall:
		return true
	case *literal:
		_, ok := b.literalAsField(n)
		return ok
	}
	return false
}

func (b *binder) bindOperand(n node) (*operand, error) {
	switch n := n.(type) {
	case *fieldRef:
		d, ok := b.lookup(n.name, n.start)
		if !ok {
			return nil, &UnknownFieldError{Name: n.name, Offset: n.start}
		}
		return b.bindField(d, n)
	case *functionCall:
		return b.bindCall(n)
	case *literal:
		if f, ok := b.literalAsField(n); ok {
			return b.bindOperand(f)
		}
		return nil, &UnknownFieldError{Name: n.text, Offset: n.start}
	}
	start, end := n.span()
	return nil, &ParseError{Offset: start, End: end, Expected: "a field or function", Found: n.String()}
}

// bindField apply the layer and slice suffixes. A bare [n] on a field that
// cannot be sliced picks the n-th occurrence, like #n.
func (b *binder) bindField(d *registry.Descriptor, f *fieldRef) (*operand, error) {
	op := &operand{kind: operandField, field: d, layer: f.layer, typ: d.Type}
	ranges := f.ranges
	if len(ranges) > 0 && !d.Type.Sliceable() {
		if !f.index || f.layer != noLayer || ranges[0].Start < 0 {
			return nil, &TypeMismatchError{Op: "slice", LHS: d.Type, Offset: f.start, End: f.end, Reason: d.Name + " cannot be sliced"}
		}
		op.layer = ranges[0].Start
		ranges = nil
	}
	if len(ranges) > 0 {
		op.ranges = ranges
		op.typ = ftypes.SliceType(d.Type)
	}
	b.fields[d.ID] = true
	return op, nil
}

func (b *binder) bindCall(c *functionCall) (*operand, error) {
	fn, ok := functions[c.name]
	if !ok {
		return nil, &UnknownFieldError{Name: c.name, Offset: c.start, Function: true}
	}
	if len(c.args) != 1 {
		return nil, &TypeMismatchError{Op: fn.String(), Offset: c.start, End: c.end,
			Reason: fmt.Sprintf("takes one argument, %d given", len(c.args))}
	}
	argNode := c.args[0]
	if l, isLit := argNode.(*literal); isLit {
		if f, ok := b.literalAsField(l); ok {
			argNode = f
		} else {
			return nil, &TypeMismatchError{Op: fn.String(), Offset: l.start, End: l.end, Reason: "the argument must be a field"}
		}
	}
	arg, err := b.bindOperand(argNode)
	if err != nil {
		return nil, err
	}
	if fn.fieldOnly && arg.kind != operandField {
		start, end := argNode.span()
		return nil, &TypeMismatchError{Op: fn.String(), LHS: arg.typ, Offset: start, End: end, Reason: "the argument must be a field"}
	}
	typ, ok := fn.result(arg.typ)
	if !ok {
		start, end := argNode.span()
		return nil, &TypeMismatchError{Op: fn.String(), LHS: arg.typ, Offset: start, End: end}
	}
	op := &operand{kind: operandCall, fn: fn, arg: arg, layer: noLayer, typ: typ}
	if len(c.ranges) > 0 {
		if !typ.Sliceable() {
			return nil, &TypeMismatchError{Op: "slice", LHS: typ, Offset: c.start, End: c.end, Reason: "the result of " + fn.String() + " cannot be sliced"}
		}
		op.ranges = c.ranges
		op.typ = ftypes.SliceType(typ)
	}
	return op, nil
}

func (b *binder) bindRelation(r *relationExpr) (boundExpr, error) {
	op, lhsNode, rhsNode := r.op, r.lhs, r.rhs
	// a literal or unknown name on the left with a field on the right is
	// turned around, "80 == tcp.port" reads as "tcp.port == 80"
	if !b.fieldLike(lhsNode) && op != relContains && op != relMatches && op != relIn && b.fieldLike(rhsNode) {
		if f, ok := lhsNode.(*fieldRef); !ok || (f.ranges == nil && f.layer == noLayer) {
			lhsNode, rhsNode = rhsNode, lhsNode
			op = op.mirror()
		}
	}
	if l, ok := lhsNode.(*literal); ok {
		if f, ok := b.literalAsField(l); ok {
			lhsNode = f
		} else if l.class == classWord {
			return nil, &UnknownFieldError{Name: l.text, Offset: l.start}
		} else if f, ok := rhsNode.(*fieldRef); ok {
			return nil, &UnknownFieldError{Name: f.name, Offset: f.start}
		} else {
			return nil, &TypeMismatchError{Op: op.String(), Offset: r.start, End: r.end, Reason: "neither side is a field"}
		}
	}
	lhs, err := b.bindOperand(lhsNode)
	if err != nil {
		return nil, err
	}
	test := &boundTest{kind: testCompare, op: op, lhs: lhs, mode: ftypes.ModeFor(lhs.typ, lhs.typ)}
	switch op {
	case relIn:
		test.set, err = b.bindSet(lhs, rhsNode.(*setLiteral), r)
	case relMatches:
		test.re, err = b.bindPattern(lhs, rhsNode, r)
	case relContains:
		test.rhs, err = b.bindContains(lhs, rhsNode, r)
	default:
		test.rhs, test.mode, err = b.bindCompare(lhs, op, rhsNode, r)
	}
	if err != nil {
		return nil, err
	}
	return test, nil
}

func (b *binder) mismatch(op relOp, lhs, rhs ftypes.Type, n node, reason string) error {
	start, end := n.span()
	return &TypeMismatchError{Op: op.String(), LHS: lhs, RHS: rhs, Offset: start, End: end, Reason: reason}
}

// bindCompare the right side of ==, !=, <, <=, > or >=
func (b *binder) bindCompare(lhs *operand, op relOp, rhsNode node, r *relationExpr) (*operand, ftypes.Mode, error) {
	if op.ordering() && !lhs.typ.Ordered() {
		return nil, 0, b.mismatch(op, lhs.typ, ftypes.TypeNone, r, "values of this type have no order")
	}
	var fieldErr error
	if b.fieldLike(rhsNode) {
		saved := b.save()
		rhs, err := b.bindOperand(rhsNode)
		if err != nil {
			return nil, 0, err
		}
		mode, err := b.compatible(op, lhs.typ, rhs.typ, r)
		if err == nil {
			return rhs, mode, nil
		}
		// a name that is also a valid value, e.g. a string equal to a protocol name
		f, isRef := rhsNode.(*fieldRef)
		if !isRef || f.ranges != nil || f.layer != noLayer {
			return nil, 0, err
		}
		b.restore(saved)
		fieldErr = err
		rhsNode = &literal{pos: f.pos, class: classWord, text: f.name}
	}
	lit, err := b.asLiteral(rhsNode)
	if err != nil {
		return nil, 0, err
	}
	v, err := b.literalValue(lhs, op, lit)
	if err != nil {
		if fieldErr != nil {
			return nil, 0, fieldErr
		}
		return nil, 0, err
	}
	return &operand{kind: operandConst, value: v, typ: v.Type(), layer: noLayer}, ftypes.ModeFor(lhs.typ, v.Type()), nil
}

// asLiteral the literal on the right of a relation, where an unknown name
// is read as an unquoted literal
func (b *binder) asLiteral(n node) (*literal, error) {
	switch n := n.(type) {
	case *literal:
		return n, nil
	case *fieldRef:
		if n.ranges != nil || n.layer != noLayer {
			return nil, &UnknownFieldError{Name: n.name, Offset: n.start}
		}
		return &literal{pos: n.pos, class: classWord, text: n.name}, nil
	}
	start, end := n.span()
	return nil, &ParseError{Offset: start, End: end, Expected: "a literal", Found: n.String()}
}

// compatible the comparison mode for two operands, or a mismatch
func (b *binder) compatible(op relOp, l, r ftypes.Type, at node) (ftypes.Mode, error) {
	switch {
	case l.IsNumeric() && r.IsNumeric():
		if l.IsInteger() && r.IsInteger() && l.IsSigned() != r.IsSigned() {
			b.warnings = append(b.warnings, fmt.Sprintf("%s compares signed and unsigned integers (%s, %s) as %s",
				at, l, r, ftypes.Wider(l, r)))
		}
		return ftypes.ModeFor(l, r), nil
	case l == r:
		return ftypes.ModeNatural, nil
	case bytesLike(l) && bytesLike(r):
		return ftypes.ModeNatural, nil
	}
	return 0, b.mismatch(op, l, r, at, "")
}

func bytesLike(t ftypes.Type) bool {
	return t == ftypes.TypeBytes || t == ftypes.TypeProtocol || t == ftypes.TypeEther
}

// literalValue read a literal as the type of the operand it is compared with
func (b *binder) literalValue(lhs *operand, op relOp, lit *literal) (ftypes.Value, error) {
	t := lhs.typ
	invalid := func(err error) error {
		return &InvalidLiteralError{Text: lit.text, Type: t, Offset: lit.start, End: lit.end, Err: err}
	}
	switch {
	case t == ftypes.TypeString:
		switch lit.class {
		case classBytes:
			return ftypes.Value{}, b.mismatch(op, t, ftypes.TypeBytes, lit, "use contains or matches to compare a string with bytes")
		case classChar:
			v, err := ftypes.Parse(ftypes.TypeUint32, lit.text)
			if err != nil {
				return ftypes.Value{}, invalid(err)
			}
			return ftypes.NewString(string(rune(v.Uint()))), nil
		}
		return ftypes.NewString(lit.text), nil
	case lit.class == classChar:
		if !t.IsInteger() {
			return ftypes.Value{}, b.mismatch(op, t, ftypes.TypeUint32, lit, "character constants compare with integers and strings")
		}
	case (t == ftypes.TypeBytes || t == ftypes.TypeProtocol) && lit.class.quoted():
		return ftypes.NewBytes([]byte(lit.text)), nil
	case t == ftypes.TypeGUID || t == ftypes.TypeBoolean:
		if op != relEQ && op != relNE {
			return ftypes.Value{}, b.mismatch(op, t, ftypes.TypeNone, lit, "only == and != apply")
		}
	}
	v, err := ftypes.Parse(t, lit.text)
	if err == nil {
		return v, nil
	}
	if t.IsInteger() && lhs.kind == operandField {
		if v, ok := valueByName(lhs.field, lit.text); ok {
			return v, nil
		}
	}
	if (t == ftypes.TypeIPv4 || t == ftypes.TypeIPv6) && b.opts.resolver != nil && (lit.class == classWord || lit.class.quoted()) {
		if v, rerr := b.opts.resolve(b.ctx, t, lit.text); rerr == nil {
			return v, nil
		}
	}
	return ftypes.Value{}, invalid(err)
}

// valueByName the integer a value string names, matched case-insensitively.
// The smallest value wins when several share a name.
func valueByName(d *registry.Descriptor, name string) (ftypes.Value, bool) {
	var (
		found bool
		best  uint64
	)
	for v, s := range d.Strings {
		if strings.EqualFold(s, name) && (!found || v < best) {
			best, found = v, true
		}
	}
	if !found {
		return ftypes.Value{}, false
	}
	if d.Type.IsSigned() {
		return ftypes.NewInt(d.Type, int64(best)), true
	}
	return ftypes.NewUint(d.Type, best), true
}

// bindContains the right side of contains: a field, a string or a byte string
func (b *binder) bindContains(lhs *operand, rhsNode node, r *relationExpr) (*operand, error) {
	if !lhs.typ.Searchable() {
		return nil, b.mismatch(relContains, lhs.typ, ftypes.TypeNone, r, "contains applies to strings and byte strings")
	}
	if _, isLit := rhsNode.(*literal); !isLit && b.fieldLike(rhsNode) {
		rhs, err := b.bindOperand(rhsNode)
		if err != nil {
			return nil, err
		}
		if !rhs.typ.Searchable() {
			return nil, b.mismatch(relContains, lhs.typ, rhs.typ, r, "")
		}
		return rhs, nil
	}
	lit, err := b.asLiteral(rhsNode)
	if err != nil {
		return nil, err
	}
	var v ftypes.Value
	switch {
	case lit.class.quoted():
		v = ftypes.NewBytes([]byte(lit.text))
	case lit.class == classChar:
		c, err := ftypes.Parse(ftypes.TypeUint8, lit.text)
		if err != nil {
			return nil, &InvalidLiteralError{Text: lit.text, Type: ftypes.TypeUint8, Offset: lit.start, End: lit.end, Err: err}
		}
		v = ftypes.NewBytes([]byte{byte(c.Uint())})
	case lhs.typ == ftypes.TypeString && lit.class == classWord:
		v = ftypes.NewBytes([]byte(lit.text))
	default:
		raw, err := ftypes.ParseByteString(lit.text)
		if err != nil {
			return nil, &InvalidLiteralError{Text: lit.text, Type: ftypes.TypeBytes, Offset: lit.start, End: lit.end, Err: err}
		}
		v = ftypes.NewBytes(raw)
	}
	return &operand{kind: operandConst, value: v, typ: v.Type(), layer: noLayer}, nil
}

// bindPattern compile the regular expression on the right of matches. Like
// the rest of the language patterns ignore case unless they say otherwise.
func (b *binder) bindPattern(lhs *operand, rhsNode node, r *relationExpr) (*regexp.Regexp, error) {
	if lhs.typ != ftypes.TypeString && lhs.typ != ftypes.TypeBytes && lhs.typ != ftypes.TypeProtocol {
		return nil, b.mismatch(relMatches, lhs.typ, ftypes.TypeNone, r, "matches applies to strings and byte strings")
	}
	lit, ok := rhsNode.(*literal)
	if !ok || !lit.class.quoted() {
		start, end := rhsNode.span()
		return nil, &TypeMismatchError{Op: relMatches.String(), LHS: lhs.typ, Offset: start, End: end, Reason: "the pattern must be a quoted string"}
	}
	re, err := regexp.Compile("(?i)" + lit.text)
	if err != nil {
		return nil, &InvalidLiteralError{Text: lit.text, Offset: lit.start, End: lit.end, Err: err}
	}
	return re, nil
}

func (b *binder) bindSet(lhs *operand, set *setLiteral, r *relationExpr) (*valueSet, error) {
	if lhs.typ == ftypes.TypeProtocol {
		return nil, b.mismatch(relIn, lhs.typ, ftypes.TypeNone, r, "")
	}
	out := &valueSet{members: make([]setMember, 0, len(set.elements))}
	for _, el := range set.elements {
		low, err := b.literalValue(lhs, relEQ, el.low)
		if err != nil {
			return nil, err
		}
		m := setMember{low: low}
		if el.high != nil {
			if !lhs.typ.Ordered() {
				return nil, b.mismatch(relIn, lhs.typ, ftypes.TypeNone, el.high, "ranges need ordered values")
			}
			if m.high, err = b.literalValue(lhs, relLE, el.high); err != nil {
				return nil, err
			}
			if c, ok := ftypes.Compare(m.low, m.high, ftypes.ModeFor(lhs.typ, lhs.typ)); !ok || c > 0 {
				return nil, &InvalidLiteralError{Text: el.low.text + ".." + el.high.text, Type: lhs.typ,
					Offset: el.low.start, End: el.high.end, Err: errEmptyRange}
			}
			m.isRange = true
		}
		out.members = append(out.members, m)
	}
	return out, nil
}
