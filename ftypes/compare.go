package ftypes

import (
	"bytes"
	"cmp"
	"fmt"
)

// Mode how two values are brought to a common representation before comparing
type Mode int

const (
	// ModeNatural compares values of the same type by their own ordering
	ModeNatural Mode = iota
	// ModeUnsigned compares integers as uint64, reinterpreting signed values
	ModeUnsigned
	// ModeSigned compares integers as int64
	ModeSigned
	// ModeFloat compares numbers as float64
	ModeFloat
)

var modeNames = map[Mode]string{
	ModeNatural:  "natural",
	ModeUnsigned: "unsigned",
	ModeSigned:   "signed",
	ModeFloat:    "float",
}

func (m Mode) String() string {
	return modeNames[m]
}

// ModeFor the comparison mode two types compare under
func ModeFor(a, b Type) Mode {
	switch {
	case a.IsFloat() || b.IsFloat():
		if a.IsNumeric() && b.IsNumeric() {
			return ModeFloat
		}
	case a.IsInteger() && b.IsInteger():
		if a.IsSigned() && b.IsSigned() {
			return ModeSigned
		}
		return ModeUnsigned
	}
	return ModeNatural
}

// Compare order a relative to b. ok is false when the two cannot be ordered.
func Compare(a, b Value, mode Mode) (c int, ok bool) {
	switch mode {
	case ModeUnsigned:
		return cmp.Compare(a.num, b.num), a.typ.IsInteger() && b.typ.IsInteger()
	case ModeSigned:
		return cmp.Compare(a.Signed(), b.Signed()), a.typ.IsInteger() && b.typ.IsInteger()
	case ModeFloat:
		return cmp.Compare(a.AsFloat(), b.AsFloat()), a.typ.IsNumeric() && b.typ.IsNumeric()
	}
	if a.typ != b.typ {
		// strings and bytes meet on their raw bytes, e.g. slices of strings
		if isRaw(a.typ) && isRaw(b.typ) {
			return bytes.Compare(a.raw, b.raw), true
		}
		return 0, false
	}
	switch {
	case a.typ.IsUnsigned(), a.typ == TypeBoolean:
		return cmp.Compare(a.num, b.num), true
	case a.typ.IsSigned():
		return cmp.Compare(int64(a.num), int64(b.num)), true
	case a.typ.IsFloat():
		return cmp.Compare(a.flt, b.flt), true
	}
	switch a.typ {
	case TypeString, TypeBytes, TypeEther, TypeProtocol:
		return bytes.Compare(a.raw, b.raw), true
	case TypeIPv4, TypeIPv6:
		return a.addr.Addr().Compare(b.addr.Addr()), true
	case TypeGUID:
		return bytes.Compare(a.guid[:], b.guid[:]), true
	case TypeAbsoluteTime:
		return a.tm.Compare(b.tm), true
	case TypeRelativeTime:
		return cmp.Compare(a.dur, b.dur), true
	}
	return 0, false
}

// Equal whether a equals b. When b is a network, a matches if it falls inside it.
func Equal(a, b Value, mode Mode) bool {
	if mode == ModeNatural && (a.typ == TypeIPv4 || a.typ == TypeIPv6) && a.typ == b.typ {
		switch {
		case b.IsNetwork():
			return b.addr.Contains(a.addr.Addr())
		case a.IsNetwork():
			return a.addr.Contains(b.addr.Addr())
		}
	}
	c, ok := Compare(a, b, mode)
	return ok && c == 0
}

// Contains whether the bytes of a contain the bytes of b
func Contains(a, b Value) bool {
	if !a.typ.Searchable() {
		return false
	}
	return bytes.Contains(a.Bytes(), b.Bytes())
}

// Truthy whether a present value counts as set: booleans must be true and
// numbers non-zero, anything else only has to exist
func Truthy(v Value) bool {
	switch {
	case v.typ == TypeBoolean, v.typ.IsInteger():
		return v.num != 0
	case v.typ.IsFloat():
		return v.flt != 0
	case v.typ == TypeRelativeTime:
		return v.dur != 0
	}
	return v.typ != TypeNone
}

func isRaw(t Type) bool {
	return t == TypeString || t == TypeBytes || t == TypeProtocol || t == TypeEther
}

// Range one element of a slice suffix. Start may be negative, counting from
// the end. When ToEnd is set Length is ignored.
type Range struct {
	Start  int
	Length int
	ToEnd  bool
}

func (r Range) String() string {
	switch {
	case r.ToEnd:
		return fmt.Sprintf("%d:", r.Start)
	case r.Length == 1:
		return fmt.Sprintf("%d", r.Start)
	}
	return fmt.Sprintf("%d:%d", r.Start, r.Length)
}

// bounds resolve the range against a value of n bytes
func (r Range) bounds(n int) (int, int, bool) {
	start := r.Start
	if start < 0 {
		start += n
	}
	if start < 0 || start > n {
		return 0, 0, false
	}
	end := n
	if !r.ToEnd {
		end = start + r.Length
	}
	if end > n || end < start {
		return 0, 0, false
	}
	return start, end, true
}

// Slice take the concatenation of ranges from a sliceable value. Strings
// stay strings, everything else becomes bytes. ok is false when any range
// falls outside the value.
func Slice(v Value, ranges []Range) (Value, bool) {
	if !v.typ.Sliceable() {
		return Value{}, false
	}
	src := v.Bytes()
	var out []byte
	for _, r := range ranges {
		start, end, ok := r.bounds(len(src))
		if !ok {
			return Value{}, false
		}
		out = append(out, src[start:end]...)
	}
	if out == nil {
		out = []byte{}
	}
	if v.typ == TypeString {
		return Value{typ: TypeString, raw: out}, true
	}
	return NewBytes(out), true
}

// SliceType the type a slice of t produces
func SliceType(t Type) Type {
	if t == TypeString {
		return TypeString
	}
	return TypeBytes
}
