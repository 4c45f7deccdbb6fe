package filter

import (
	"github.com/packetcap/go-dfilter/ftypes"
	"github.com/packetcap/go-dfilter/registry"
)

// tracker records the occurrences field loads read, once each, in the order
// they were first read
type tracker struct {
	refs []Reference
	seen map[trackKey]bool
}

type trackKey struct {
	field registry.FieldID
	index int
}

func newTracker() *tracker {
	return &tracker{seen: map[trackKey]bool{}}
}

func (t *tracker) add(id registry.FieldID, index int, o Occurrence) {
	key := trackKey{field: id, index: index}
	if t.seen[key] {
		return
	}
	t.seen[key] = true
	t.refs = append(t.refs, Reference{Field: id, Occurrence: o})
}

// run execute the program against one packet. Comparisons hold when any
// occurrence on the left satisfies them against any value on the right; an
// absent field or a slice past the end of a value simply yields no values.
// The program is only read, so concurrent runs are safe.
func (p *program) run(b Binding, t *tracker) bool {
	var buf [4][]ftypes.Value
	stack := buf[:0]
	pop := func() []ftypes.Value {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return top
	}
	acc := false
	for pc := 0; pc < len(p.insns); {
		in := &p.insns[pc]
		pc++
		switch in.op {
		case opReturn:
			return acc
		case opPushConst:
			stack = append(stack, p.consts[in.arg:in.arg+1])
		case opLoadField:
			stack = append(stack, load(b, in, t))
		case opSlice:
			stack = append(stack, sliceAll(pop(), p.ranges[in.arg]))
		case opCall:
			stack = append(stack, p.funcs[in.arg].call(pop()))
		case opCompare:
			rhs := pop()
			acc = compareAny(in.cmp, in.mode, pop(), rhs)
		case opMatches:
			re := p.regexps[in.arg]
			acc = false
			for _, v := range pop() {
				if re.Match(v.Bytes()) {
					acc = true
					break
				}
			}
		case opInSet:
			acc = inSet(p.sets[in.arg], in.mode, pop())
		case opPresent:
			acc = false
			for _, v := range pop() {
				if ftypes.Truthy(v) {
					acc = true
					break
				}
			}
		case opNot:
			acc = !acc
		case opAndJumpFalse:
			if !acc {
				pc = in.arg
			}
		case opOrJumpTrue:
			if acc {
				pc = in.arg
			}
		}
	}
	return acc
}

func load(b Binding, in *instruction, t *tracker) []ftypes.Value {
	if b == nil {
		return nil
	}
	occs := b.Occurrences(in.field.ID)
	first := 0
	if in.layer != noLayer {
		if in.layer >= len(occs) {
			return nil
		}
		first = in.layer
		occs = occs[in.layer : in.layer+1]
	}
	if len(occs) == 0 {
		return nil
	}
	vals := make([]ftypes.Value, len(occs))
	for i, o := range occs {
		vals[i] = o.Value
		if t != nil {
			t.add(in.field.ID, first+i, o)
		}
	}
	return vals
}

// sliceAll slice every value, dropping those the ranges do not fit
func sliceAll(vals []ftypes.Value, ranges []ftypes.Range) []ftypes.Value {
	out := make([]ftypes.Value, 0, len(vals))
	for _, v := range vals {
		if s, ok := ftypes.Slice(v, ranges); ok {
			out = append(out, s)
		}
	}
	return out
}

func compareAny(op relOp, mode ftypes.Mode, lhs, rhs []ftypes.Value) bool {
	for _, l := range lhs {
		for _, r := range rhs {
			if compareOne(op, mode, l, r) {
				return true
			}
		}
	}
	return false
}

func compareOne(op relOp, mode ftypes.Mode, l, r ftypes.Value) bool {
	switch op {
	case relEQ:
		return ftypes.Equal(l, r, mode)
	case relNE:
		return !ftypes.Equal(l, r, mode)
	case relContains:
		return ftypes.Contains(l, r)
	}
	c, ok := ftypes.Compare(l, r, mode)
	if !ok {
		return false
	}
	switch op {
	case relLT:
		return c < 0
	case relLE:
		return c <= 0
	case relGT:
		return c > 0
	case relGE:
		return c >= 0
	}
	return false
}

func inSet(s *valueSet, mode ftypes.Mode, vals []ftypes.Value) bool {
	for _, v := range vals {
		for _, m := range s.members {
			if !m.isRange {
				if ftypes.Equal(v, m.low, mode) {
					return true
				}
				continue
			}
			lo, ok1 := ftypes.Compare(m.low, v, mode)
			hi, ok2 := ftypes.Compare(v, m.high, mode)
			if ok1 && ok2 && lo <= 0 && hi <= 0 {
				return true
			}
		}
	}
	return false
}
