package filter

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/packetcap/go-dfilter/ftypes"
)

var (
	numberSyntax     = regexp.MustCompile(`^-?(0[xX][0-9a-fA-F]+|0[bB][01]+|[0-9]+(\.[0-9]+)?([eE][-+]?[0-9]+)?)$`)
	byteStringSyntax = regexp.MustCompile(`^[0-9a-fA-F]{1,2}([:.\-][0-9a-fA-F]{1,2})+$`)
	// a byte string cut off after a separator, e.g. "aa:bb:"
	openByteString = regexp.MustCompile(`^[0-9a-fA-F]{1,2}([:.\-][0-9a-fA-F]{1,2})*[:.\-]$`)
)

type token struct {
	kind tokenKind
	// text the lexeme, or the decoded contents of a string or character
	text  string
	op    relOp
	class literalClass
	// ranges of a slice token; index is set when it was written as a bare [n]
	ranges []ftypes.Range
	index  bool
	layer  int
	start  int
	end    int
}

type lexer struct {
	input  string
	pos    int
	tokens []token
}

// lex split a filter into tokens. The result always ends with tokenEOF.
func lex(input string) ([]token, error) {
	l := &lexer{input: input}
	for {
		l.skipSpace()
		if l.pos >= len(l.input) {
			l.tokens = append(l.tokens, token{kind: tokenEOF, start: l.pos, end: l.pos})
			return l.tokens, nil
		}
		if err := l.next(); err != nil {
			return nil, err
		}
	}
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.input) {
		switch l.input[l.pos] {
		case ' ', '\t', '\n', '\r', '\f', '\v':
			l.pos++
		default:
			return
		}
	}
}

func (l *lexer) peek(n int) byte {
	if l.pos+n < len(l.input) {
		return l.input[l.pos+n]
	}
	return 0
}

func (l *lexer) emit(kind tokenKind, width int) {
	l.tokens = append(l.tokens, token{kind: kind, text: l.input[l.pos : l.pos+width], start: l.pos, end: l.pos + width})
	l.pos += width
}

func (l *lexer) emitCompare(width int) {
	text := l.input[l.pos : l.pos+width]
	l.tokens = append(l.tokens, token{kind: tokenCompare, text: text, op: relOps[text], start: l.pos, end: l.pos + width})
	l.pos += width
}

func (l *lexer) fail(start, end int, reason string) error {
	return &LexError{Offset: start, End: end, Reason: reason}
}

func (l *lexer) next() error {
	c := l.input[l.pos]
	switch {
	case c == '(':
		l.emit(tokenLParen, 1)
	case c == ')':
		l.emit(tokenRParen, 1)
	case c == '{':
		l.emit(tokenLBrace, 1)
	case c == '}':
		l.emit(tokenRBrace, 1)
	case c == ',':
		l.emit(tokenComma, 1)
	case c == '[':
		return l.lexSlice()
	case c == '#':
		return l.lexLayer()
	case c == '"':
		return l.lexString(false)
	case (c == 'r' || c == 'R') && l.peek(1) == '"':
		return l.lexString(true)
	case c == '\'':
		return l.lexChar()
	case c == '=':
		if l.peek(1) != '=' {
			return l.fail(l.pos, l.pos+1, `"=" is not an operator, use "=="`)
		}
		l.emitCompare(2)
	case c == '!':
		if l.peek(1) == '=' {
			l.emitCompare(2)
		} else {
			l.emit(tokenNot, 1)
		}
	case c == '<', c == '>':
		if l.peek(1) == '=' {
			l.emitCompare(2)
		} else {
			l.emitCompare(1)
		}
	case c == '~':
		l.emitCompare(1)
	case c == '&':
		if l.peek(1) != '&' {
			return l.fail(l.pos, l.pos+1, `unexpected "&", use "&&" or "and"`)
		}
		l.emit(tokenAnd, 2)
	case c == '|':
		if l.peek(1) != '|' {
			return l.fail(l.pos, l.pos+1, `unexpected "|", use "||" or "or"`)
		}
		l.emit(tokenOr, 2)
	case c == '.' && l.peek(1) == '.':
		l.emit(tokenDotDot, 2)
	case isWordStart(c, l.peek(1)):
		return l.lexWord()
	default:
		r, width := utf8.DecodeRuneInString(l.input[l.pos:])
		return l.fail(l.pos, l.pos+width, "invalid character "+strconv.QuoteRune(r))
	}
	return nil
}

func isWordStart(c, next byte) bool {
	switch {
	case isAlnum(c), c == '_', c == ':':
		return true
	case c == '-':
		return next >= '0' && next <= '9'
	}
	return false
}

func isWordChar(c byte) bool {
	return isAlnum(c) || c == '_' || c == '.' || c == ':' || c == '-' || c == '/'
}

func isAlnum(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// lexWord scan a name or unquoted literal and classify it
func (l *lexer) lexWord() error {
	start := l.pos
	end := start + 1
	for end < len(l.input) && isWordChar(l.input[end]) {
		// ".." separates the ends of a set range
		if l.input[end] == '.' && end+1 < len(l.input) && l.input[end+1] == '.' {
			break
		}
		end++
	}
	text := l.input[start:end]
	tok := token{kind: tokenWord, text: text, class: classWord, start: start, end: end}
	if kind, ok := keywords[text]; ok {
		tok.kind = kind
	} else if op, ok := relOps[text]; ok {
		tok.kind = tokenCompare
		tok.op = op
	} else {
		switch {
		case numberSyntax.MatchString(text):
			tok.kind, tok.class = tokenNumber, classNumber
		case byteStringSyntax.MatchString(text):
			tok.kind, tok.class = tokenBytes, classBytes
		case openByteString.MatchString(text):
			return l.fail(start, end, "unterminated byte string")
		}
	}
	l.tokens = append(l.tokens, tok)
	l.pos = end
	return nil
}

// lexLayer scan a "#n" layer suffix
func (l *lexer) lexLayer() error {
	start := l.pos
	end := start + 1
	for end < len(l.input) && isDigit(l.input[end]) {
		end++
	}
	if end == start+1 {
		return l.fail(start, end, `"#" must be followed by a layer number`)
	}
	n, err := strconv.Atoi(l.input[start+1 : end])
	if err != nil {
		return l.fail(start, end, "layer number out of range")
	}
	l.tokens = append(l.tokens, token{kind: tokenLayer, text: l.input[start:end], layer: n, start: start, end: end})
	l.pos = end
	return nil
}

// lexSlice scan a bracketed range list such as [0], [1:2], [2-5], [:3],
// [4:] or [0,2:2]. Offsets may be negative, counting from the end.
func (l *lexer) lexSlice() error {
	start := l.pos
	closing := strings.IndexByte(l.input[start:], ']')
	if closing < 0 {
		return l.fail(start, len(l.input), `unterminated slice, missing "]"`)
	}
	end := start + closing + 1
	body := l.input[start+1 : end-1]
	if strings.TrimSpace(body) == "" {
		return l.fail(start, end, "empty slice")
	}
	var ranges []ftypes.Range
	index := false
	for _, part := range strings.Split(body, ",") {
		r, bare, err := parseRange(strings.TrimSpace(part))
		if err != nil {
			return l.fail(start, end, err.Error())
		}
		ranges = append(ranges, r)
		index = bare
	}
	if len(ranges) > 1 {
		index = false
	}
	l.tokens = append(l.tokens, token{kind: tokenSlice, text: l.input[start:end], ranges: ranges, index: index, start: start, end: end})
	l.pos = end
	return nil
}

type rangeError string

func (e rangeError) Error() string {
	return string(e)
}

// parseRange read one range of a slice. bare reports the single offset form.
func parseRange(s string) (r ftypes.Range, bare bool, err error) {
	if s == "" {
		return r, false, rangeError("empty range in slice")
	}
	if i := strings.IndexByte(s, ':'); i >= 0 {
		from, length := strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+1:])
		if from != "" {
			if r.Start, err = strconv.Atoi(from); err != nil {
				return r, false, rangeError("invalid slice offset " + strconv.Quote(from))
			}
		}
		if length == "" {
			r.ToEnd = true
			return r, false, nil
		}
		if r.Length, err = strconv.Atoi(length); err != nil || r.Length <= 0 {
			return r, false, rangeError("invalid slice length " + strconv.Quote(length))
		}
		return r, false, nil
	}
	// "i-j" is inclusive; a leading '-' belongs to a negative offset
	if i := strings.IndexByte(s[1:], '-'); i >= 0 {
		from, to := strings.TrimSpace(s[:i+1]), strings.TrimSpace(s[i+2:])
		first, err1 := strconv.Atoi(from)
		last, err2 := strconv.Atoi(to)
		if err1 != nil || err2 != nil {
			return r, false, rangeError("invalid slice range " + strconv.Quote(s))
		}
		if (first < 0) != (last < 0) || last < first {
			return r, false, rangeError("slice range " + strconv.Quote(s) + " ends before it starts")
		}
		return ftypes.Range{Start: first, Length: last - first + 1}, false, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return r, false, rangeError("invalid slice offset " + strconv.Quote(s))
	}
	return ftypes.Range{Start: n, Length: 1}, true, nil
}

// lexString scan a double quoted string. Raw strings keep backslashes, but
// still do not end at an escaped quote.
func (l *lexer) lexString(raw bool) error {
	start := l.pos
	i := start + 1
	class := classString
	if raw {
		i++
		class = classRawString
	}
	var b strings.Builder
	for {
		if i >= len(l.input) {
			return l.fail(start, len(l.input), "unterminated string")
		}
		c := l.input[i]
		switch {
		case c == '"':
			i++
			l.tokens = append(l.tokens, token{kind: tokenString, text: b.String(), class: class, start: start, end: i})
			l.pos = i
			return nil
		case c == '\\' && raw:
			b.WriteByte(c)
			if i+1 < len(l.input) && l.input[i+1] == '"' {
				b.WriteByte('"')
				i++
			}
			i++
		case c == '\\':
			n, err := unescape(l.input[i:], &b)
			if err != nil {
				return l.fail(i, i+2, err.Error())
			}
			i += n
		default:
			b.WriteByte(c)
			i++
		}
	}
}

// lexChar scan a character constant such as 'a' or '\n', which stands for
// its code point
func (l *lexer) lexChar() error {
	start := l.pos
	i := start + 1
	if i >= len(l.input) {
		return l.fail(start, len(l.input), "unterminated character constant")
	}
	var b strings.Builder
	if l.input[i] == '\\' {
		n, err := unescape(l.input[i:], &b)
		if err != nil {
			return l.fail(i, i+2, err.Error())
		}
		i += n
	} else {
		_, width := utf8.DecodeRuneInString(l.input[i:])
		b.WriteString(l.input[i : i+width])
		i += width
	}
	if i >= len(l.input) || l.input[i] != '\'' {
		return l.fail(start, i, "unterminated character constant")
	}
	i++
	s := b.String()
	var code int
	if r, width := utf8.DecodeRuneInString(s); r != utf8.RuneError && width == len(s) {
		code = int(r)
	} else {
		// a single escaped byte such as '\xff'
		code = int(s[0])
	}
	l.tokens = append(l.tokens, token{kind: tokenChar, text: strconv.Itoa(code), class: classChar, start: start, end: i})
	l.pos = i
	return nil
}

var simpleEscapes = map[byte]byte{
	'a':  '\a',
	'b':  '\b',
	'f':  '\f',
	'n':  '\n',
	'r':  '\r',
	't':  '\t',
	'v':  '\v',
	'\\': '\\',
	'"':  '"',
	'\'': '\'',
}

// unescape decode the escape sequence at the start of s into b, returning its length
func unescape(s string, b *strings.Builder) (int, error) {
	if len(s) < 2 {
		return 0, rangeError("unterminated escape sequence")
	}
	if c, ok := simpleEscapes[s[1]]; ok {
		b.WriteByte(c)
		return 2, nil
	}
	switch s[1] {
	case 'x':
		if len(s) < 4 {
			return 0, rangeError(`\x needs two hex digits`)
		}
		v, err := strconv.ParseUint(s[2:4], 16, 8)
		if err != nil {
			return 0, rangeError(`\x needs two hex digits`)
		}
		b.WriteByte(byte(v))
		return 4, nil
	case 'u', 'U':
		width := 4
		if s[1] == 'U' {
			width = 8
		}
		if len(s) < 2+width {
			return 0, rangeError("truncated unicode escape")
		}
		v, err := strconv.ParseUint(s[2:2+width], 16, 32)
		if err != nil || !utf8.ValidRune(rune(v)) {
			return 0, rangeError("invalid unicode escape")
		}
		b.WriteRune(rune(v))
		return 2 + width, nil
	case '0', '1', '2', '3', '4', '5', '6', '7':
		if len(s) < 4 {
			return 0, rangeError("octal escape needs three digits")
		}
		v, err := strconv.ParseUint(s[1:4], 8, 8)
		if err != nil {
			return 0, rangeError("invalid octal escape")
		}
		b.WriteByte(byte(v))
		return 4, nil
	}
	return 0, rangeError("unknown escape sequence " + strconv.Quote(s[:2]))
}
