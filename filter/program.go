package filter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/packetcap/go-dfilter/ftypes"
	"github.com/packetcap/go-dfilter/registry"
)

// opcode one instruction of the filter machine. The machine keeps a stack of
// value lists and a single boolean accumulator; tests pop their operands and
// set the accumulator, so the stack is empty between tests.
type opcode uint8

const (
	opReturn opcode = iota
	opPushConst
	opLoadField
	opSlice
	opCall
	opCompare
	opMatches
	opInSet
	opPresent
	opNot
	opAndJumpFalse
	opOrJumpTrue
)

var opcodeNames = map[opcode]string{
	opReturn:       "RETURN",
	opPushConst:    "PUSH_CONST",
	opLoadField:    "LOAD_FIELD",
	opSlice:        "SLICE",
	opCall:         "CALL",
	opCompare:      "CMP",
	opMatches:      "MATCHES",
	opInSet:        "IN_SET",
	opPresent:      "EXISTS",
	opNot:          "NOT",
	opAndJumpFalse: "AND_JUMP_FALSE",
	opOrJumpTrue:   "OR_JUMP_TRUE",
}

func (o opcode) String() string {
	return opcodeNames[o]
}

type instruction struct {
	op opcode
	// arg indexes the pool the opcode reads from, or is the jump target
	arg   int
	field *registry.Descriptor
	layer int
	cmp   relOp
	mode  ftypes.Mode
}

// program the compiled form of a filter: instructions and the pools they index
type program struct {
	insns   []instruction
	consts  []ftypes.Value
	ranges  [][]ftypes.Range
	funcs   []*function
	regexps []*regexp.Regexp
	sets    []*valueSet
}

func (in instruction) format(p *program) string {
	name := fmt.Sprintf("%-15s", in.op)
	switch in.op {
	case opPushConst:
		v := p.consts[in.arg]
		return fmt.Sprintf("%s#%d <%s> %s", name, in.arg, v.Type(), v)
	case opLoadField:
		s := name + in.field.Name
		if in.layer != noLayer {
			s += fmt.Sprintf("#%d", in.layer)
		}
		return s
	case opSlice:
		return name + formatRanges(p.ranges[in.arg])
	case opCall:
		return name + p.funcs[in.arg].String()
	case opCompare:
		return fmt.Sprintf("%s%s (%s)", name, in.cmp, in.mode)
	case opMatches:
		return fmt.Sprintf("%s%q", name, p.regexps[in.arg].String())
	case opInSet:
		return fmt.Sprintf("%s$%d (%s)", name, in.arg, in.mode)
	case opAndJumpFalse, opOrJumpTrue:
		return fmt.Sprintf("%s%04d", name, in.arg)
	}
	return strings.TrimSpace(name)
}

func (s *valueSet) String() string {
	parts := make([]string, len(s.members))
	for i, m := range s.members {
		parts[i] = m.low.String()
		if m.isRange {
			parts[i] += ".." + m.high.String()
		}
	}
	return "{" + strings.Join(parts, " ") + "}"
}

// dump a listing of the program, the same for every compilation of the same text
func (p *program) dump() string {
	var b strings.Builder
	b.WriteString("Instructions:\n")
	for i, in := range p.insns {
		fmt.Fprintf(&b, "  %04d %s\n", i, in.format(p))
	}
	if len(p.consts) > 0 {
		b.WriteString("Constants:\n")
		for i, v := range p.consts {
			fmt.Fprintf(&b, "  #%d <%s> %s\n", i, v.Type(), v)
		}
	}
	if len(p.sets) > 0 {
		b.WriteString("Sets:\n")
		for i, s := range p.sets {
			fmt.Fprintf(&b, "  $%d %s\n", i, s)
		}
	}
	return b.String()
}
