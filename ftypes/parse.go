package ftypes

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	errEmptyLiteral   = errors.New("empty literal")
	errNotBoolean     = errors.New("not a valid boolean, expected true, false, 1 or 0")
	errNotByteString  = errors.New("not a valid byte string")
	errNotEther       = errors.New("not a valid hardware address")
	errNotTime        = errors.New("not a valid absolute time")
	errNotDuration    = errors.New("not a valid time offset in seconds")
	errAddressFamily  = errors.New("address family does not match the field")
	errAddressHasZone = errors.New("address zones are not supported")
)

// absoluteTimeLayouts accepted for absolute time literals, tried in order.
// Literals without a zone are read as UTC.
var absoluteTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
	"Jan _2, 2006 15:04:05.999999999",
	"Jan _2, 2006 15:04:05.999999999 MST",
	"Jan _2, 2006",
}

var nanosPerSecond = decimal.New(1, 9)

// Parse interpret the text of a literal as a value of type t
func Parse(t Type, s string) (Value, error) {
	if s == "" && t != TypeString && t != TypeBytes && t != TypeProtocol {
		return Value{}, errEmptyLiteral
	}
	switch {
	case t.IsUnsigned():
		return parseUnsigned(t, s)
	case t.IsSigned():
		return parseSigned(t, s)
	case t.IsFloat():
		bits := 64
		if t == TypeFloat {
			bits = 32
		}
		f, err := strconv.ParseFloat(s, bits)
		if err != nil {
			return Value{}, fmt.Errorf("%q is not a valid floating point number", s)
		}
		return NewFloat(t, f), nil
	}
	switch t {
	case TypeBoolean:
		switch strings.ToLower(s) {
		case "1", "true":
			return NewBool(true), nil
		case "0", "false":
			return NewBool(false), nil
		}
		return Value{}, errNotBoolean
	case TypeString:
		return NewString(s), nil
	case TypeBytes:
		b, err := ParseByteString(s)
		if err != nil {
			return Value{}, err
		}
		return NewBytes(b), nil
	case TypeProtocol:
		b, err := ParseByteString(s)
		if err != nil {
			return Value{}, err
		}
		return NewProtocol(b), nil
	case TypeEther:
		return parseEther(s)
	case TypeIPv4, TypeIPv6:
		return parseIP(t, s)
	case TypeGUID:
		u, err := uuid.Parse(s)
		if err != nil {
			return Value{}, fmt.Errorf("%q is not a valid GUID", s)
		}
		return NewGUID(u), nil
	case TypeAbsoluteTime:
		return parseAbsoluteTime(s)
	case TypeRelativeTime:
		d, err := parseSeconds(s)
		if err != nil {
			return Value{}, errNotDuration
		}
		return NewRelativeTime(d), nil
	}
	return Value{}, fmt.Errorf("literals of type %s are not supported", t)
}

func parseUnsigned(t Type, s string) (Value, error) {
	u, err := strconv.ParseUint(s, 0, t.Bits())
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && numErr.Err == strconv.ErrRange {
			return Value{}, fmt.Errorf("%s is too big for a %d-bit unsigned integer", s, t.Bits())
		}
		return Value{}, fmt.Errorf("%q is not a valid unsigned integer", s)
	}
	return NewUint(t, u), nil
}

func parseSigned(t Type, s string) (Value, error) {
	i, err := strconv.ParseInt(s, 0, t.Bits())
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && numErr.Err == strconv.ErrRange {
			return Value{}, fmt.Errorf("%s is out of range for a %d-bit signed integer", s, t.Bits())
		}
		return Value{}, fmt.Errorf("%q is not a valid signed integer", s)
	}
	return NewInt(t, i), nil
}

// ParseByteString parse hex byte groups separated by ':', '.' or '-', e.g. "aa:bb:cc",
// or a run of hex digit pairs without separators
func ParseByteString(s string) ([]byte, error) {
	if s == "" {
		return []byte{}, nil
	}
	sep := strings.IndexAny(s, ":.-")
	if sep < 0 {
		if len(s)%2 != 0 {
			if len(s) == 1 {
				s = "0" + s
			} else {
				return nil, errNotByteString
			}
		}
		b, err := hex.DecodeString(s)
		if err != nil {
			return nil, errNotByteString
		}
		return b, nil
	}
	sepChar := s[sep]
	groups := strings.Split(s, string(sepChar))
	out := make([]byte, 0, len(groups))
	for _, g := range groups {
		if len(g) == 0 || len(g) > 2 {
			return nil, errNotByteString
		}
		if len(g) == 1 {
			g = "0" + g
		}
		b, err := hex.DecodeString(g)
		if err != nil {
			return nil, errNotByteString
		}
		out = append(out, b[0])
	}
	return out, nil
}

func parseEther(s string) (Value, error) {
	if hw, err := net.ParseMAC(s); err == nil && len(hw) == 6 {
		return NewEther(hw), nil
	}
	b, err := ParseByteString(s)
	if err != nil || len(b) != 6 {
		return Value{}, errNotEther
	}
	return NewEther(net.HardwareAddr(b)), nil
}

func parseIP(t Type, s string) (Value, error) {
	var (
		p   netip.Prefix
		err error
	)
	if strings.Contains(s, "/") {
		p, err = netip.ParsePrefix(s)
		if err != nil {
			return Value{}, fmt.Errorf("%q is not a valid network", s)
		}
		p = p.Masked()
	} else {
		addr, perr := netip.ParseAddr(s)
		if perr != nil {
			return Value{}, fmt.Errorf("%q is not a valid %s address", s, t)
		}
		if addr.Zone() != "" {
			return Value{}, errAddressHasZone
		}
		p = netip.PrefixFrom(addr, addr.BitLen())
	}
	if (t == TypeIPv4) != p.Addr().Is4() {
		return Value{}, errAddressFamily
	}
	return NewPrefix(p), nil
}

func parseAbsoluteTime(s string) (Value, error) {
	for _, layout := range absoluteTimeLayouts {
		if tm, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return NewAbsoluteTime(tm), nil
		}
	}
	// seconds since the epoch
	d, err := parseSeconds(s)
	if err != nil {
		return Value{}, errNotTime
	}
	return NewAbsoluteTime(time.Unix(0, 0).UTC().Add(d)), nil
}

// parseSeconds decimal seconds to a duration, exact to the nanosecond
func parseSeconds(s string) (time.Duration, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	ns := d.Mul(nanosPerSecond).Truncate(0)
	if !ns.IsInteger() || ns.Abs().GreaterThan(decimal.NewFromInt(1<<62)) {
		return 0, errNotDuration
	}
	return time.Duration(ns.IntPart()), nil
}
