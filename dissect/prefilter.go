package dissect

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/bpf"
)

var (
	errNoProgram    = errors.New("capture filter is empty")
	errShortProgram = errors.New("capture filter has fewer instructions than its header announces")
)

// Prefilter a capture filter in classic BPF, run over raw frames before they
// are dissected, so that packets it rejects cost nothing more. Safe for
// concurrent use.
type Prefilter struct {
	insns []bpf.Instruction
	vm    *bpf.VM
}

// NewPrefilter load a program that is already assembled
func NewPrefilter(insns []bpf.Instruction) (*Prefilter, error) {
	if len(insns) == 0 {
		return nil, errNoProgram
	}
	vm, err := bpf.NewVM(insns)
	if err != nil {
		return nil, errors.Wrap(err, "invalid capture filter")
	}
	return &Prefilter{insns: insns, vm: vm}, nil
}

// ParsePrefilter read a program in the decimal form "tcpdump -ddd" prints: the
// instruction count on the first line, then one "code jt jf k" line per
// instruction
func ParsePrefilter(r io.Reader) (*Prefilter, error) {
	scanner := bufio.NewScanner(r)
	var (
		raw   []bpf.RawInstruction
		count = -1
		line  int
	)
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		fields := strings.Fields(text)
		if count < 0 {
			n, err := strconv.Atoi(text)
			if err != nil || n <= 0 {
				return nil, errors.Errorf("line %d: expected an instruction count, found %q", line, text)
			}
			count = n
			continue
		}
		if len(fields) != 4 {
			return nil, errors.Errorf("line %d: expected \"code jt jf k\", found %q", line, text)
		}
		var nums [4]uint64
		for i, f := range fields {
			bits := 8
			switch i {
			case 0:
				bits = 16
			case 3:
				bits = 32
			}
			n, err := strconv.ParseUint(f, 10, bits)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d", line)
			}
			nums[i] = n
		}
		raw = append(raw, bpf.RawInstruction{Op: uint16(nums[0]), Jt: uint8(nums[1]), Jf: uint8(nums[2]), K: uint32(nums[3])})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.WithStack(err)
	}
	if count < 0 {
		return nil, errNoProgram
	}
	if len(raw) != count {
		return nil, errShortProgram
	}
	insns, ok := bpf.Disassemble(raw)
	if !ok {
		log.WithField("instructions", len(raw)).Debug("capture filter holds instructions with no symbolic form")
	}
	return NewPrefilter(insns)
}

// LoadPrefilter read a "tcpdump -ddd" program from a file
func LoadPrefilter(filename string) (*Prefilter, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()
	p, err := ParsePrefilter(f)
	return p, errors.Wrapf(err, "loading capture filter %s", filename)
}

// Match whether the program accepts the frame
func (p *Prefilter) Match(data []byte) bool {
	n, err := p.vm.Run(data)
	if err != nil {
		log.WithError(err).Trace("capture filter failed on frame")
		return false
	}
	return n > 0
}

// Instructions the program, one instruction per line
func (p *Prefilter) String() string {
	var b strings.Builder
	for i, in := range p.insns {
		b.WriteString(strconv.Itoa(i))
		b.WriteString(": ")
		if s, ok := in.(interface{ String() string }); ok {
			b.WriteString(s.String())
		} else {
			raw, _ := in.Assemble()
			b.WriteString(strconv.FormatUint(uint64(raw.Op), 10))
		}
		b.WriteByte('\n')
	}
	return b.String()
}
