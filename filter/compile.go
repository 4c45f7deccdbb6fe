package filter

import (
	"github.com/packetcap/go-dfilter/ftypes"
)

// generator lower a bound tree to a program. Constants are pooled so the
// same value written twice is stored once.
type generator struct {
	prog     *program
	constIdx map[string]int
	funcIdx  map[*function]int
}

func generate(root boundExpr) *program {
	g := &generator{
		prog:     &program{},
		constIdx: map[string]int{},
		funcIdx:  map[*function]int{},
	}
	g.expr(root)
	g.emit(instruction{op: opReturn, layer: noLayer})
	return g.prog
}

// emit append an instruction, returning where it went
func (g *generator) emit(in instruction) int {
	g.prog.insns = append(g.prog.insns, in)
	return len(g.prog.insns) - 1
}

func (g *generator) expr(e boundExpr) {
	switch e := e.(type) {
	case *boundLogical:
		g.logical(e)
	case *boundTest:
		g.test(e)
	}
}

func (g *generator) test(t *boundTest) {
	g.operand(t.lhs)
	switch {
	case t.kind == testPresent:
		g.emit(instruction{op: opPresent, layer: noLayer})
	case t.set != nil:
		g.prog.sets = append(g.prog.sets, t.set)
		g.emit(instruction{op: opInSet, arg: len(g.prog.sets) - 1, mode: t.mode, cmp: relIn, layer: noLayer})
	case t.re != nil:
		g.prog.regexps = append(g.prog.regexps, t.re)
		g.emit(instruction{op: opMatches, arg: len(g.prog.regexps) - 1, cmp: relMatches, layer: noLayer})
	default:
		g.operand(t.rhs)
		g.emit(instruction{op: opCompare, cmp: t.op, mode: t.mode, layer: noLayer})
	}
}

func (g *generator) operand(o *operand) {
	switch o.kind {
	case operandConst:
		g.emit(instruction{op: opPushConst, arg: g.constant(o.value), layer: noLayer})
	case operandField:
		g.emit(instruction{op: opLoadField, field: o.field, layer: o.layer})
	case operandCall:
		g.operand(o.arg)
		idx, ok := g.funcIdx[o.fn]
		if !ok {
			g.prog.funcs = append(g.prog.funcs, o.fn)
			idx = len(g.prog.funcs) - 1
			g.funcIdx[o.fn] = idx
		}
		g.emit(instruction{op: opCall, arg: idx, layer: noLayer})
	}
	if len(o.ranges) > 0 {
		g.prog.ranges = append(g.prog.ranges, o.ranges)
		g.emit(instruction{op: opSlice, arg: len(g.prog.ranges) - 1, layer: noLayer})
	}
}

func (g *generator) constant(v ftypes.Value) int {
	key := v.Type().String() + "|" + v.String()
	if idx, ok := g.constIdx[key]; ok {
		return idx
	}
	g.prog.consts = append(g.prog.consts, v)
	idx := len(g.prog.consts) - 1
	g.constIdx[key] = idx
	return idx
}
