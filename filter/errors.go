package filter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/packetcap/go-dfilter/ftypes"
)

var (
	errEmptyRange = errors.New("range ends before it starts")
	errNoAddress  = errors.New("host name has no address of the right family")
)

// Spanned an error that points at the bytes of the filter text it is about
type Spanned interface {
	error
	Span() (start, end int)
}

// LexError the filter text could not be split into tokens
type LexError struct {
	Offset int
	End    int
	Reason string
}

func (e *LexError) Error() string {
	return fmt.Sprintf("%s at offset %d", e.Reason, e.Offset)
}

func (e *LexError) Span() (int, int) {
	return e.Offset, e.End
}

// ParseError the tokens do not form an expression
type ParseError struct {
	Offset   int
	End      int
	Expected string
	Found    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("expected %s but found %s at offset %d", e.Expected, e.Found, e.Offset)
}

func (e *ParseError) Span() (int, int) {
	return e.Offset, e.End
}

// UnknownFieldError a name is neither a registered field nor a retired
// spelling of one, or a call names no builtin function
type UnknownFieldError struct {
	Name     string
	Offset   int
	Function bool
}

func (e *UnknownFieldError) Error() string {
	if e.Function {
		return fmt.Sprintf("%q is not a function", e.Name)
	}
	return fmt.Sprintf("%q is neither a field nor a protocol name", e.Name)
}

func (e *UnknownFieldError) Span() (int, int) {
	return e.Offset, e.Offset + len(e.Name)
}

// TypeMismatchError an operator was applied to operands it does not accept
type TypeMismatchError struct {
	Op     string
	LHS    ftypes.Type
	RHS    ftypes.Type
	Offset int
	End    int
	Reason string
}

func (e *TypeMismatchError) Error() string {
	var msg string
	switch {
	case e.LHS == ftypes.TypeNone:
		msg = e.Op
	case e.RHS == ftypes.TypeNone:
		msg = fmt.Sprintf("%s cannot be applied to %s", e.Op, e.LHS)
	default:
		msg = fmt.Sprintf("%s cannot be applied to %s and %s", e.Op, e.LHS, e.RHS)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *TypeMismatchError) Span() (int, int) {
	return e.Offset, e.End
}

// InvalidLiteralError a literal cannot be read as the type it is compared with
type InvalidLiteralError struct {
	Text   string
	Type   ftypes.Type
	Offset int
	End    int
	Err    error
}

func (e *InvalidLiteralError) Error() string {
	if e.Type == ftypes.TypeNone {
		return fmt.Sprintf("%q is not a valid literal: %v", e.Text, e.Err)
	}
	return fmt.Sprintf("%q is not a valid %s: %v", e.Text, e.Type, e.Err)
}

func (e *InvalidLiteralError) Span() (int, int) {
	return e.Offset, e.End
}

func (e *InvalidLiteralError) Unwrap() error {
	return e.Err
}

// Caret render err below the filter text with the offending bytes
// underlined. Errors without a position are returned as their message.
func Caret(text string, err error) string {
	var sp Spanned
	if !errors.As(err, &sp) {
		return err.Error()
	}
	start, end := sp.Span()
	if start < 0 {
		start = 0
	}
	if start > len(text) {
		start = len(text)
	}
	if end <= start {
		end = start + 1
	}
	if end > len(text)+1 {
		end = len(text) + 1
	}
	var b strings.Builder
	b.WriteString(text)
	b.WriteByte('\n')
	b.WriteString(strings.Repeat(" ", start))
	b.WriteByte('^')
	if end-start > 1 {
		b.WriteString(strings.Repeat("~", end-start-1))
	}
	b.WriteByte('\n')
	b.WriteString(err.Error())
	return b.String()
}
