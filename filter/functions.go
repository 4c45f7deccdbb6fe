package filter

import (
	"fmt"
	"strings"

	"github.com/packetcap/go-dfilter/ftypes"
)

// function a builtin callable from a filter. Arguments arrive as the value
// lists of their operands and the result is again a list, so a call over a
// field with several occurrences yields one result per occurrence.
type function struct {
	name string
	// fieldOnly the argument must be a plain field reference
	fieldOnly bool
	// result the type returned for an argument of type t, false if t is not accepted
	result func(t ftypes.Type) (ftypes.Type, bool)
	call   func(args []ftypes.Value) []ftypes.Value
}

var functions = map[string]*function{
	"len": {
		name: "len",
		result: func(t ftypes.Type) (ftypes.Type, bool) {
			return ftypes.TypeUint32, t.Sliceable() || t.IsAddress() || t == ftypes.TypeGUID
		},
		call: mapValues(func(v ftypes.Value) ftypes.Value {
			return ftypes.NewUint(ftypes.TypeUint32, uint64(v.Len()))
		}),
	},
	"count": {
		name:      "count",
		fieldOnly: true,
		result: func(t ftypes.Type) (ftypes.Type, bool) {
			return ftypes.TypeUint32, true
		},
		call: func(args []ftypes.Value) []ftypes.Value {
			return []ftypes.Value{ftypes.NewUint(ftypes.TypeUint32, uint64(len(args)))}
		},
	},
	"upper": {
		name:   "upper",
		result: stringOnly,
		call: mapValues(func(v ftypes.Value) ftypes.Value {
			return ftypes.NewString(strings.ToUpper(v.Str()))
		}),
	},
	"lower": {
		name:   "lower",
		result: stringOnly,
		call: mapValues(func(v ftypes.Value) ftypes.Value {
			return ftypes.NewString(strings.ToLower(v.Str()))
		}),
	},
	"string": {
		name: "string",
		result: func(t ftypes.Type) (ftypes.Type, bool) {
			return ftypes.TypeString, t != ftypes.TypeProtocol
		},
		call: mapValues(func(v ftypes.Value) ftypes.Value {
			if v.Type() == ftypes.TypeString {
				return v
			}
			return ftypes.NewString(v.String())
		}),
	},
}

func stringOnly(t ftypes.Type) (ftypes.Type, bool) {
	return ftypes.TypeString, t == ftypes.TypeString
}

func mapValues(fn func(ftypes.Value) ftypes.Value) func([]ftypes.Value) []ftypes.Value {
	return func(args []ftypes.Value) []ftypes.Value {
		out := make([]ftypes.Value, len(args))
		for i, v := range args {
			out[i] = fn(v)
		}
		return out
	}
}

// FunctionNames the builtins a filter may call, for help output
func FunctionNames() []string {
	return []string{"count", "len", "lower", "string", "upper"}
}

func (f *function) String() string {
	return fmt.Sprintf("%s()", f.name)
}
