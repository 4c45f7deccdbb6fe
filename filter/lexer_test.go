package filter

import (
	"testing"

	"github.com/packetcap/go-dfilter/ftypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kinds(toks []token) []tokenKind {
	out := make([]tokenKind, 0, len(toks))
	for _, t := range toks {
		out = append(out, t.kind)
	}
	return out
}

func TestLexKinds(t *testing.T) {
	tests := []struct {
		input string
		kinds []tokenKind
	}{
		{"", []tokenKind{tokenEOF}},
		{"tcp", []tokenKind{tokenWord, tokenEOF}},
		{"tcp.port == 80", []tokenKind{tokenWord, tokenCompare, tokenNumber, tokenEOF}},
		{"tcp.port eq 80", []tokenKind{tokenWord, tokenCompare, tokenNumber, tokenEOF}},
		{"a and b or not c", []tokenKind{tokenWord, tokenAnd, tokenWord, tokenOr, tokenNot, tokenWord, tokenEOF}},
		{"a && b || !c", []tokenKind{tokenWord, tokenAnd, tokenWord, tokenOr, tokenNot, tokenWord, tokenEOF}},
		{"(a)", []tokenKind{tokenLParen, tokenWord, tokenRParen, tokenEOF}},
		{"x in {1, 2..3}", []tokenKind{tokenWord, tokenIn, tokenLBrace, tokenNumber, tokenComma, tokenNumber, tokenDotDot, tokenNumber, tokenRBrace, tokenEOF}},
		{"eth.src == 00:11:22", []tokenKind{tokenWord, tokenCompare, tokenBytes, tokenEOF}},
		{`x contains "abc"`, []tokenKind{tokenWord, tokenCompare, tokenString, tokenEOF}},
		{"x == 'a'", []tokenKind{tokenWord, tokenCompare, tokenChar, tokenEOF}},
		{"x#2[1:2]", []tokenKind{tokenWord, tokenLayer, tokenSlice, tokenEOF}},
		{"len(x)", []tokenKind{tokenWord, tokenLParen, tokenWord, tokenRParen, tokenEOF}},
		{"x ~ y", []tokenKind{tokenWord, tokenCompare, tokenWord, tokenEOF}},
		{"x <= -3", []tokenKind{tokenWord, tokenCompare, tokenNumber, tokenEOF}},
		{"ipv6.addr == ::1", []tokenKind{tokenWord, tokenCompare, tokenWord, tokenEOF}},
	}
	for _, tt := range tests {
		toks, err := lex(tt.input)
		require.NoError(t, err, tt.input)
		assert.Equal(t, tt.kinds, kinds(toks), tt.input)
	}
}

func TestLexSpans(t *testing.T) {
	toks, err := lex("  tcp.port   >= 0x50")
	require.NoError(t, err)
	require.Len(t, toks, 4)
	assert.Equal(t, 2, toks[0].start)
	assert.Equal(t, 10, toks[0].end)
	assert.Equal(t, 13, toks[1].start)
	assert.Equal(t, relGE, toks[1].op)
	assert.Equal(t, "0x50", toks[2].text)
	assert.Equal(t, 20, toks[3].start)
}

func TestLexOperators(t *testing.T) {
	for text, op := range map[string]relOp{
		"==": relEQ, "eq": relEQ, "!=": relNE, "ne": relNE,
		"<": relLT, "lt": relLT, "<=": relLE, "le": relLE,
		">": relGT, "gt": relGT, ">=": relGE, "ge": relGE,
		"contains": relContains, "matches": relMatches, "~": relMatches,
	} {
		toks, err := lex("a " + text + " b")
		require.NoError(t, err, text)
		assert.Equal(t, tokenCompare, toks[1].kind, text)
		assert.Equal(t, op, toks[1].op, text)
	}
}

func TestLexStrings(t *testing.T) {
	tests := []struct {
		input string
		text  string
		class literalClass
	}{
		{`"abc"`, "abc", classString},
		{`"a\"b"`, `a"b`, classString},
		{`"tab\there"`, "tab\there", classString},
		{`"\x41\102é"`, "ABé", classString},
		{`r"a\.b"`, `a\.b`, classRawString},
		{`r"a\"b"`, `a\"b`, classRawString},
		{`""`, "", classString},
	}
	for _, tt := range tests {
		toks, err := lex(tt.input)
		require.NoError(t, err, tt.input)
		assert.Equal(t, tokenString, toks[0].kind, tt.input)
		assert.Equal(t, tt.text, toks[0].text, tt.input)
		assert.Equal(t, tt.class, toks[0].class, tt.input)
		assert.Equal(t, len(tt.input), toks[0].end, tt.input)
	}
}

func TestLexChars(t *testing.T) {
	for input, code := range map[string]string{
		`'a'`:    "97",
		`'\n'`:   "10",
		`'\''`:   "39",
		`'\xff'`: "255",
		`'é'`:    "233",
	} {
		toks, err := lex(input)
		require.NoError(t, err, input)
		assert.Equal(t, tokenChar, toks[0].kind, input)
		assert.Equal(t, code, toks[0].text, input)
	}
}

func TestLexSlices(t *testing.T) {
	tests := []struct {
		input  string
		ranges []ftypes.Range
		index  bool
	}{
		{"[0]", []ftypes.Range{{Start: 0, Length: 1}}, true},
		{"[-1]", []ftypes.Range{{Start: -1, Length: 1}}, true},
		{"[1:2]", []ftypes.Range{{Start: 1, Length: 2}}, false},
		{"[2-5]", []ftypes.Range{{Start: 2, Length: 4}}, false},
		{"[-3--1]", []ftypes.Range{{Start: -3, Length: 3}}, false},
		{"[:3]", []ftypes.Range{{Start: 0, Length: 3}}, false},
		{"[4:]", []ftypes.Range{{Start: 4, ToEnd: true}}, false},
		{"[0, 2:2]", []ftypes.Range{{Start: 0, Length: 1}, {Start: 2, Length: 2}}, false},
		{"[0,1]", []ftypes.Range{{Start: 0, Length: 1}, {Start: 1, Length: 1}}, false},
	}
	for _, tt := range tests {
		toks, err := lex("x" + tt.input)
		require.NoError(t, err, tt.input)
		require.Equal(t, tokenSlice, toks[1].kind, tt.input)
		assert.Equal(t, tt.ranges, toks[1].ranges, tt.input)
		assert.Equal(t, tt.index, toks[1].index, tt.input)
	}
}

func TestLexLayer(t *testing.T) {
	toks, err := lex("ip.src#12")
	require.NoError(t, err)
	assert.Equal(t, tokenLayer, toks[1].kind)
	assert.Equal(t, 12, toks[1].layer)
	assert.Equal(t, 6, toks[1].start)
}

func TestLexWordStopsAtRange(t *testing.T) {
	toks, err := lex("{10..20}")
	require.NoError(t, err)
	assert.Equal(t, []tokenKind{tokenLBrace, tokenNumber, tokenDotDot, tokenNumber, tokenRBrace, tokenEOF}, kinds(toks))
	assert.Equal(t, "10", toks[1].text)
	assert.Equal(t, "20", toks[3].text)
}

func TestLexErrors(t *testing.T) {
	tests := []struct {
		input  string
		offset int
	}{
		{"a = b", 2},
		{"a & b", 2},
		{"a | b", 2},
		{"a == @", 5},
		{`"open`, 0},
		{`"bad \z"`, 5},
		{`"\x4"`, 1},
		{"'ab'", 0},
		{"'", 0},
		{"x[1", 1},
		{"x[]", 1},
		{"x[1:0]", 1},
		{"x[a]", 1},
		{"x[-1-2]", 1},
		{"x#", 1},
		{"aa:bb:", 0},
	}
	for _, tt := range tests {
		_, err := lex(tt.input)
		var lexErr *LexError
		require.ErrorAs(t, err, &lexErr, tt.input)
		assert.Equal(t, tt.offset, lexErr.Offset, tt.input)
		start, end := lexErr.Span()
		assert.Equal(t, tt.offset, start, tt.input)
		assert.True(t, end > start, tt.input)
	}
}
