package ftypes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, typ Type, s string) Value {
	t.Helper()
	v, err := Parse(typ, s)
	require.NoError(t, err, "%s %q", typ, s)
	return v
}

func TestModeFor(t *testing.T) {
	tests := []struct {
		a, b Type
		mode Mode
	}{
		{TypeUint8, TypeUint32, ModeUnsigned},
		{TypeInt8, TypeInt64, ModeSigned},
		{TypeInt8, TypeUint8, ModeUnsigned},
		{TypeDouble, TypeUint8, ModeFloat},
		{TypeInt16, TypeFloat, ModeFloat},
		{TypeString, TypeString, ModeNatural},
		{TypeIPv4, TypeIPv4, ModeNatural},
		{TypeDouble, TypeString, ModeNatural},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.mode, ModeFor(tt.a, tt.b), "%s %s", tt.a, tt.b)
	}
}

func TestCompareNumbers(t *testing.T) {
	small := NewInt(TypeInt8, -5)
	big := NewUint(TypeUint8, 250)

	c, ok := Compare(small, NewInt(TypeInt32, -100), ModeSigned)
	assert.True(t, ok)
	assert.Equal(t, 1, c)

	// -5 reinterpreted as uint64 is larger than any uint8
	c, ok = Compare(small, big, ModeUnsigned)
	assert.True(t, ok)
	assert.Equal(t, 1, c)

	c, ok = Compare(NewFloat(TypeDouble, 2.5), NewUint(TypeUint8, 2), ModeFloat)
	assert.True(t, ok)
	assert.Equal(t, 1, c)

	_, ok = Compare(NewString("a"), NewUint(TypeUint8, 2), ModeFloat)
	assert.False(t, ok)
}

func TestCompareNatural(t *testing.T) {
	tests := []struct {
		typ  Type
		a, b string
		c    int
	}{
		{TypeString, "Apple", "Hello", -1},
		{TypeBytes, "01:02", "01:02", 0},
		{TypeEther, "00:00:00:00:00:02", "00:00:00:00:00:01", 1},
		{TypeIPv4, "10.0.0.1", "10.0.0.2", -1},
		{TypeIPv6, "::2", "::1", 1},
		{TypeAbsoluteTime, "2024-01-01", "2024-03-01", -1},
		{TypeRelativeTime, "1.5", "1.5", 0},
		{TypeBoolean, "true", "false", 1},
		{TypeGUID, "00000000-0000-0000-0000-000000000001", "00000000-0000-0000-0000-000000000001", 0},
	}
	for _, tt := range tests {
		c, ok := Compare(mustParse(t, tt.typ, tt.a), mustParse(t, tt.typ, tt.b), ModeNatural)
		assert.True(t, ok, "%s", tt.typ)
		assert.Equal(t, tt.c, c, "%s %s %s", tt.typ, tt.a, tt.b)
	}

	// strings meet bytes on their raw contents
	c, ok := Compare(NewString("GET"), NewBytes([]byte("GET")), ModeNatural)
	assert.True(t, ok)
	assert.Equal(t, 0, c)

	_, ok = Compare(mustParse(t, TypeIPv4, "10.0.0.1"), NewString("10.0.0.1"), ModeNatural)
	assert.False(t, ok)
}

func TestEqualNetworks(t *testing.T) {
	host := mustParse(t, TypeIPv4, "10.1.2.3")
	net8 := mustParse(t, TypeIPv4, "10.0.0.0/8")
	net16 := mustParse(t, TypeIPv4, "192.168.0.0/16")

	assert.True(t, Equal(host, net8, ModeNatural))
	assert.True(t, Equal(net8, host, ModeNatural))
	assert.False(t, Equal(host, net16, ModeNatural))
	assert.True(t, Equal(host, mustParse(t, TypeIPv4, "10.1.2.3"), ModeNatural))

	v6 := mustParse(t, TypeIPv6, "fe80::1")
	assert.True(t, Equal(v6, mustParse(t, TypeIPv6, "fe80::/10"), ModeNatural))
	assert.False(t, Equal(v6, net8, ModeNatural))
}

func TestContains(t *testing.T) {
	assert.True(t, Contains(NewString("Hello World"), NewString("World")))
	assert.True(t, Contains(NewBytes([]byte{1, 2, 3}), NewBytes([]byte{2, 3})))
	assert.False(t, Contains(NewBytes([]byte{1, 2, 3}), NewBytes([]byte{3, 2})))
	assert.False(t, Contains(NewUint(TypeUint8, 1), NewUint(TypeUint8, 1)))
}

func TestTruthy(t *testing.T) {
	assert.True(t, Truthy(NewBool(true)))
	assert.False(t, Truthy(NewBool(false)))
	assert.True(t, Truthy(NewUint(TypeUint16, 80)))
	assert.False(t, Truthy(NewUint(TypeUint16, 0)))
	assert.True(t, Truthy(NewInt(TypeInt8, -1)))
	assert.False(t, Truthy(NewFloat(TypeDouble, 0)))
	assert.True(t, Truthy(NewString("")))
	assert.True(t, Truthy(NewProtocol(nil)))
	assert.False(t, Truthy(Value{}))
}

func TestSlice(t *testing.T) {
	payload := NewBytes([]byte{0x47, 0x45, 0x54, 0x20, 0x2f})
	tests := []struct {
		ranges []Range
		want   []byte
		ok     bool
	}{
		{[]Range{{Start: 0, Length: 3}}, []byte("GET"), true},
		{[]Range{{Start: -1, Length: 1}}, []byte{0x2f}, true},
		{[]Range{{Start: 3, ToEnd: true}}, []byte{0x20, 0x2f}, true},
		{[]Range{{Start: 5, ToEnd: true}}, []byte{}, true},
		{[]Range{{Start: 0, Length: 1}, {Start: 4, Length: 1}}, []byte{0x47, 0x2f}, true},
		{[]Range{{Start: 4, Length: 2}}, nil, false},
		{[]Range{{Start: -6, Length: 1}}, nil, false},
		{[]Range{{Start: 6, ToEnd: true}}, nil, false},
	}
	for _, tt := range tests {
		got, ok := Slice(payload, tt.ranges)
		assert.Equal(t, tt.ok, ok, "%v", tt.ranges)
		if tt.ok {
			assert.Equal(t, TypeBytes, got.Type())
			assert.Equal(t, tt.want, got.Bytes(), "%v", tt.ranges)
		}
	}

	s, ok := Slice(NewString("Hello"), []Range{{Start: 1, Length: 3}})
	require.True(t, ok)
	assert.Equal(t, TypeString, s.Type())
	assert.Equal(t, "ell", s.Str())

	_, ok = Slice(NewUint(TypeUint8, 1), []Range{{Start: 0, Length: 1}})
	assert.False(t, ok)
}

func TestRangeString(t *testing.T) {
	assert.Equal(t, "3", Range{Start: 3, Length: 1}.String())
	assert.Equal(t, "-2:", Range{Start: -2, ToEnd: true}.String())
	assert.Equal(t, "1:4", Range{Start: 1, Length: 4}.String())
}

func TestWider(t *testing.T) {
	assert.Equal(t, TypeInt32, Wider(TypeInt8, TypeInt32))
	assert.Equal(t, TypeUint16, Wider(TypeInt8, TypeUint16))
	assert.Equal(t, TypeUint32, Wider(TypeInt32, TypeUint8))
	assert.Equal(t, TypeUint64, Wider(TypeUint64, TypeInt64))
}
