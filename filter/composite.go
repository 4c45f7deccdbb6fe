package filter

// logical lower and/or/not. Each operand of an and/or chain but the last is
// followed by a conditional jump to the end of the chain:
//   - for and, a false operand decides the chain, so jump when false
//   - for or, a true operand decides the chain, so jump when true
//
// The accumulator already holds the deciding value when the jump is taken,
// and the operands after it are never evaluated.
func (g *generator) logical(l *boundLogical) {
	if l.op == logicalNot {
		g.expr(l.children[0])
		g.emit(instruction{op: opNot, layer: noLayer})
		return
	}
	jump := opAndJumpFalse
	if l.op == logicalOr {
		jump = opOrJumpTrue
	}
	pending := make([]int, 0, len(l.children)-1)
	for i, c := range l.children {
		g.expr(c)
		if i < len(l.children)-1 {
			pending = append(pending, g.emit(instruction{op: jump, layer: noLayer}))
		}
	}
	end := len(g.prog.insns)
	for _, at := range pending {
		g.prog.insns[at].arg = end
	}
}
