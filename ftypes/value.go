package ftypes

import (
	"encoding/hex"
	"fmt"
	"math"
	"net"
	"net/netip"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Value a typed field value. The zero Value has TypeNone.
type Value struct {
	typ  Type
	num  uint64
	flt  float64
	raw  []byte
	addr netip.Prefix
	guid uuid.UUID
	tm   time.Time
	dur  time.Duration
}

// NewUint value of an unsigned integer type
func NewUint(t Type, v uint64) Value {
	return Value{typ: t, num: v}
}

// NewInt value of a signed integer type
func NewInt(t Type, v int64) Value {
	return Value{typ: t, num: uint64(v)}
}

func NewBool(b bool) Value {
	v := Value{typ: TypeBoolean}
	if b {
		v.num = 1
	}
	return v
}

// NewFloat value of TypeFloat or TypeDouble
func NewFloat(t Type, f float64) Value {
	if t == TypeFloat {
		f = float64(float32(f))
	}
	return Value{typ: t, flt: f}
}

func NewString(s string) Value {
	return Value{typ: TypeString, raw: []byte(s)}
}

func NewBytes(b []byte) Value {
	return Value{typ: TypeBytes, raw: b}
}

// NewProtocol value of a protocol node, holding the bytes the protocol covers
func NewProtocol(b []byte) Value {
	return Value{typ: TypeProtocol, raw: b}
}

func NewEther(hw net.HardwareAddr) Value {
	return Value{typ: TypeEther, raw: []byte(hw)}
}

// NewIP an IPv4 or IPv6 host address, depending on the address family
func NewIP(addr netip.Addr) Value {
	return NewPrefix(netip.PrefixFrom(addr, addr.BitLen()))
}

// NewPrefix an IPv4 or IPv6 network. Anything shorter than the full address
// length compares with masked equality.
func NewPrefix(p netip.Prefix) Value {
	t := TypeIPv6
	if p.Addr().Is4() {
		t = TypeIPv4
	}
	return Value{typ: t, addr: p}
}

func NewGUID(u uuid.UUID) Value {
	return Value{typ: TypeGUID, guid: u}
}

func NewAbsoluteTime(t time.Time) Value {
	return Value{typ: TypeAbsoluteTime, tm: t}
}

func NewRelativeTime(d time.Duration) Value {
	return Value{typ: TypeRelativeTime, dur: d}
}

func (v Value) Type() Type {
	return v.typ
}

func (v Value) Uint() uint64 {
	return v.num
}

func (v Value) Int() int64 {
	return int64(v.num)
}

func (v Value) Bool() bool {
	return v.num != 0
}

func (v Value) Float() float64 {
	return v.flt
}

// Bytes the raw bytes of a string, byte array, hardware address or protocol,
// or the address bytes of an IP value
func (v Value) Bytes() []byte {
	switch v.typ {
	case TypeIPv4, TypeIPv6:
		return v.addr.Addr().AsSlice()
	case TypeGUID:
		return v.guid[:]
	}
	return v.raw
}

// Str the contents of a string value
func (v Value) Str() string {
	return string(v.raw)
}

func (v Value) Prefix() netip.Prefix {
	return v.addr
}

func (v Value) GUID() uuid.UUID {
	return v.guid
}

func (v Value) Time() time.Time {
	return v.tm
}

func (v Value) Duration() time.Duration {
	return v.dur
}

// IsNetwork whether an address value carries a prefix shorter than a host address
func (v Value) IsNetwork() bool {
	if v.typ != TypeIPv4 && v.typ != TypeIPv6 {
		return false
	}
	return v.addr.Bits() < v.addr.Addr().BitLen()
}

// Len number of bytes in a sliceable value
func (v Value) Len() int {
	return len(v.Bytes())
}

// Signed the value as a signed integer, whatever its integer type
func (v Value) Signed() int64 {
	if v.typ.IsSigned() {
		return int64(v.num)
	}
	if v.num > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(v.num)
}

// AsFloat the value of any numeric type as a float64
func (v Value) AsFloat() float64 {
	switch {
	case v.typ.IsFloat():
		return v.flt
	case v.typ.IsSigned():
		return float64(int64(v.num))
	}
	return float64(v.num)
}

func (v Value) String() string {
	switch {
	case v.typ == TypeBoolean:
		if v.Bool() {
			return "True"
		}
		return "False"
	case v.typ.IsUnsigned():
		return strconv.FormatUint(v.num, 10)
	case v.typ.IsSigned():
		return strconv.FormatInt(int64(v.num), 10)
	case v.typ.IsFloat():
		return strconv.FormatFloat(v.flt, 'g', -1, 64)
	}
	switch v.typ {
	case TypeString:
		return strconv.Quote(string(v.raw))
	case TypeBytes, TypeProtocol:
		return formatBytes(v.raw, ':')
	case TypeEther:
		return net.HardwareAddr(v.raw).String()
	case TypeIPv4, TypeIPv6:
		if v.IsNetwork() {
			return v.addr.String()
		}
		return v.addr.Addr().String()
	case TypeGUID:
		return v.guid.String()
	case TypeAbsoluteTime:
		return v.tm.UTC().Format(time.RFC3339Nano)
	case TypeRelativeTime:
		return fmt.Sprintf("%.9f", v.dur.Seconds())
	}
	return "<none>"
}

func formatBytes(b []byte, sep byte) string {
	if len(b) == 0 {
		return ""
	}
	out := make([]byte, 0, len(b)*3-1)
	buf := make([]byte, 2)
	for i, c := range b {
		if i > 0 {
			out = append(out, sep)
		}
		hex.Encode(buf, []byte{c})
		out = append(out, buf...)
	}
	return string(out)
}
