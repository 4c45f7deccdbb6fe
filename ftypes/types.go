package ftypes

// Type the value type of a registered field
type Type int

const (
	TypeNone Type = iota
	TypeProtocol
	TypeBoolean
	TypeUint8
	TypeUint16
	TypeUint24
	TypeUint32
	TypeUint64
	TypeInt8
	TypeInt16
	TypeInt24
	TypeInt32
	TypeInt64
	TypeFloat
	TypeDouble
	TypeString
	TypeBytes
	TypeIPv4
	TypeIPv6
	TypeEther
	TypeGUID
	TypeAbsoluteTime
	TypeRelativeTime
)

var typeNames = map[Type]string{
	TypeNone:         "none",
	TypeProtocol:     "protocol",
	TypeBoolean:      "boolean",
	TypeUint8:        "uint8",
	TypeUint16:       "uint16",
	TypeUint24:       "uint24",
	TypeUint32:       "uint32",
	TypeUint64:       "uint64",
	TypeInt8:         "int8",
	TypeInt16:        "int16",
	TypeInt24:        "int24",
	TypeInt32:        "int32",
	TypeInt64:        "int64",
	TypeFloat:        "float",
	TypeDouble:       "double",
	TypeString:       "string",
	TypeBytes:        "bytes",
	TypeIPv4:         "ipv4",
	TypeIPv6:         "ipv6",
	TypeEther:        "ether",
	TypeGUID:         "guid",
	TypeAbsoluteTime: "absolute_time",
	TypeRelativeTime: "relative_time",
}

var types = map[string]Type{}

func init() {
	for t, name := range typeNames {
		types[name] = t
	}
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "unknown"
}

// ParseType look up a type by its name, e.g. "uint16"
func ParseType(name string) (Type, bool) {
	t, ok := types[name]
	return t, ok
}

// Bits width of an integer type, 0 for anything else
func (t Type) Bits() int {
	switch t {
	case TypeUint8, TypeInt8:
		return 8
	case TypeUint16, TypeInt16:
		return 16
	case TypeUint24, TypeInt24:
		return 24
	case TypeUint32, TypeInt32:
		return 32
	case TypeUint64, TypeInt64:
		return 64
	}
	return 0
}

func (t Type) IsUnsigned() bool {
	return t >= TypeUint8 && t <= TypeUint64
}

func (t Type) IsSigned() bool {
	return t >= TypeInt8 && t <= TypeInt64
}

func (t Type) IsInteger() bool {
	return t.IsUnsigned() || t.IsSigned()
}

func (t Type) IsFloat() bool {
	return t == TypeFloat || t == TypeDouble
}

func (t Type) IsNumeric() bool {
	return t.IsInteger() || t.IsFloat()
}

func (t Type) IsAddress() bool {
	return t == TypeIPv4 || t == TypeIPv6 || t == TypeEther || t == TypeGUID
}

// Sliceable whether a byte range can be taken from values of this type
func (t Type) Sliceable() bool {
	switch t {
	case TypeBytes, TypeString, TypeEther, TypeProtocol:
		return true
	}
	return false
}

// Ordered whether values of this type support <, <=, > and >=
func (t Type) Ordered() bool {
	switch {
	case t.IsNumeric():
		return true
	case t == TypeString, t == TypeBytes, t == TypeIPv4, t == TypeIPv6, t == TypeEther:
		return true
	case t == TypeAbsoluteTime, t == TypeRelativeTime:
		return true
	}
	return false
}

// Searchable whether "contains" applies to values of this type
func (t Type) Searchable() bool {
	switch t {
	case TypeString, TypeBytes, TypeProtocol, TypeEther:
		return true
	}
	return false
}

// Comparable whether == and != apply to values of this type
func (t Type) Comparable() bool {
	return t != TypeNone
}

// Wider the wider of two integer types, keeping signedness when both agree.
// Mixed signedness resolves to the unsigned type of the larger width.
func Wider(a, b Type) Type {
	bits := a.Bits()
	if b.Bits() > bits {
		bits = b.Bits()
	}
	signed := a.IsSigned() && b.IsSigned()
	for _, t := range []Type{TypeUint8, TypeUint16, TypeUint24, TypeUint32, TypeUint64, TypeInt8, TypeInt16, TypeInt24, TypeInt32, TypeInt64} {
		if t.Bits() == bits && t.IsSigned() == signed {
			return t
		}
	}
	return TypeUint64
}
