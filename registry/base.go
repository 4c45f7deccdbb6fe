package registry

import (
	"fmt"

	"github.com/packetcap/go-dfilter/ftypes"
)

// Base how the integer values of a field are displayed
type Base int

const (
	BaseNone Base = iota
	BaseDec
	BaseHex
	BaseOct
	BaseDecHex
	BaseHexDec
)

var bases = map[string]Base{
	"none":    BaseNone,
	"dec":     BaseDec,
	"hex":     BaseHex,
	"oct":     BaseOct,
	"dec_hex": BaseDecHex,
	"hex_dec": BaseHexDec,
}

func (b Base) String() string {
	for name, v := range bases {
		if v == b {
			return name
		}
	}
	return "unknown"
}

// ParseBase look up a display base by name, e.g. "hex"
func ParseBase(name string) (Base, bool) {
	b, ok := bases[name]
	return b, ok
}

// Format render a value the way the field displays it
func (d *Descriptor) Format(v ftypes.Value) string {
	if !v.Type().IsInteger() {
		return v.String()
	}
	var s string
	switch {
	case v.Type().IsSigned():
		s = formatSigned(d.Base, v.Int(), d.Type.Bits())
	default:
		s = formatUnsigned(d.Base, v.Uint(), d.Type.Bits())
	}
	if name, ok := d.Strings[v.Uint()]; ok && name != "" {
		return fmt.Sprintf("%s (%s)", name, s)
	}
	return s
}

func formatUnsigned(b Base, u uint64, bits int) string {
	width := (bits + 3) / 4
	switch b {
	case BaseHex:
		return fmt.Sprintf("0x%0*x", width, u)
	case BaseOct:
		return fmt.Sprintf("0%o", u)
	case BaseDecHex:
		return fmt.Sprintf("%d (0x%0*x)", u, width, u)
	case BaseHexDec:
		return fmt.Sprintf("0x%0*x (%d)", width, u, u)
	}
	return fmt.Sprintf("%d", u)
}

func formatSigned(b Base, i int64, bits int) string {
	if b == BaseDec || b == BaseNone || i < 0 {
		return fmt.Sprintf("%d", i)
	}
	return formatUnsigned(b, uint64(i), bits)
}
