package filter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/packetcap/go-dfilter/ftypes"
)

// node an element of the syntax tree. Every node knows the bytes of the
// filter text it was parsed from.
type node interface {
	span() (int, int)
	String() string
}

type pos struct {
	start, end int
}

func (p pos) span() (int, int) {
	return p.start, p.end
}

// logicalExpr and/or over two or more children, or not over one
type logicalExpr struct {
	pos
	op       logicalOp
	children []node
}

func (e *logicalExpr) String() string {
	parts := make([]string, 0, len(e.children)+1)
	parts = append(parts, e.op.String())
	for _, c := range e.children {
		parts = append(parts, c.String())
	}
	return "(" + strings.Join(parts, " ") + ")"
}

// relationExpr a comparison, membership test or pattern match
type relationExpr struct {
	pos
	op  relOp
	lhs node
	rhs node
	// where the operator was written, for diagnostics
	opPos pos
}

func (e *relationExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", e.op, e.lhs, e.rhs)
}

// fieldRef a name, with the layer and slice suffixes written after it
type fieldRef struct {
	pos
	name   string
	layer  int
	ranges []ftypes.Range
	// index the slice was a bare [n], which means a layer for fields that
	// cannot be sliced
	index bool
}

func (f *fieldRef) String() string {
	s := f.name
	if f.layer != noLayer {
		s += "#" + strconv.Itoa(f.layer)
	}
	return s + formatRanges(f.ranges)
}

func formatRanges(ranges []ftypes.Range) string {
	if len(ranges) == 0 {
		return ""
	}
	parts := make([]string, len(ranges))
	for i, r := range ranges {
		parts[i] = r.String()
	}
	return "[" + strings.Join(parts, ",") + "]"
}

type literal struct {
	pos
	class literalClass
	text  string
}

func (l *literal) String() string {
	if l.class.quoted() {
		return strconv.Quote(l.text)
	}
	return l.text
}

type functionCall struct {
	pos
	name   string
	args   []node
	ranges []ftypes.Range
}

func (f *functionCall) String() string {
	args := make([]string, len(f.args))
	for i, a := range f.args {
		args[i] = a.String()
	}
	return f.name + "(" + strings.Join(args, ", ") + ")" + formatRanges(f.ranges)
}

// setElement a single value, or an inclusive range when high is set
type setElement struct {
	low  *literal
	high *literal
}

type setLiteral struct {
	pos
	elements []setElement
}

func (s *setLiteral) String() string {
	parts := make([]string, len(s.elements))
	for i, e := range s.elements {
		parts[i] = e.low.String()
		if e.high != nil {
			parts[i] += ".." + e.high.String()
		}
	}
	return "{" + strings.Join(parts, " ") + "}"
}
