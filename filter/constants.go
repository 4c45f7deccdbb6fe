package filter

const (
	// maxDepth bounds nesting of parentheses, not and function calls
	maxDepth = 256
	// noLayer marks a field reference without a layer suffix
	noLayer = -1
)

type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenWord
	tokenNumber
	tokenBytes
	tokenString
	tokenChar
	tokenCompare
	tokenIn
	tokenAnd
	tokenOr
	tokenNot
	tokenLParen
	tokenRParen
	tokenLBrace
	tokenRBrace
	tokenComma
	tokenDotDot
	tokenSlice
	tokenLayer
)

var tokenNames = map[tokenKind]string{
	tokenEOF:     "end of filter",
	tokenWord:    "name",
	tokenNumber:  "number",
	tokenBytes:   "byte string",
	tokenString:  "string",
	tokenChar:    "character constant",
	tokenCompare: "comparison",
	tokenIn:      "\"in\"",
	tokenAnd:     "\"and\"",
	tokenOr:      "\"or\"",
	tokenNot:     "\"not\"",
	tokenLParen:  "\"(\"",
	tokenRParen:  "\")\"",
	tokenLBrace:  "\"{\"",
	tokenRBrace:  "\"}\"",
	tokenComma:   "\",\"",
	tokenDotDot:  "\"..\"",
	tokenSlice:   "slice",
	tokenLayer:   "layer",
}

func (k tokenKind) String() string {
	if name, ok := tokenNames[k]; ok {
		return name
	}
	return "unknown"
}

type relOp int

const (
	relEQ relOp = iota
	relNE
	relLT
	relLE
	relGT
	relGE
	relContains
	relMatches
	relIn
)

var relOpNames = map[relOp]string{
	relEQ:       "==",
	relNE:       "!=",
	relLT:       "<",
	relLE:       "<=",
	relGT:       ">",
	relGE:       ">=",
	relContains: "contains",
	relMatches:  "matches",
	relIn:       "in",
}

func (o relOp) String() string {
	return relOpNames[o]
}

// ordering whether the operator needs ordered operands
func (o relOp) ordering() bool {
	return o == relLT || o == relLE || o == relGT || o == relGE
}

// mirror the operator to use once the operands are swapped
func (o relOp) mirror() relOp {
	switch o {
	case relLT:
		return relGT
	case relLE:
		return relGE
	case relGT:
		return relLT
	case relGE:
		return relLE
	}
	return o
}

// relOps spellings of the comparison operators, symbolic and keyword
var relOps = map[string]relOp{
	"==":       relEQ,
	"eq":       relEQ,
	"!=":       relNE,
	"ne":       relNE,
	"<":        relLT,
	"lt":       relLT,
	"<=":       relLE,
	"le":       relLE,
	">":        relGT,
	"gt":       relGT,
	">=":       relGE,
	"ge":       relGE,
	"contains": relContains,
	"matches":  relMatches,
	"~":        relMatches,
}

var keywords = map[string]tokenKind{
	"and": tokenAnd,
	"or":  tokenOr,
	"not": tokenNot,
	"in":  tokenIn,
}

type logicalOp int

const (
	logicalAnd logicalOp = iota
	logicalOr
	logicalNot
)

var logicalOpNames = map[logicalOp]string{
	logicalAnd: "and",
	logicalOr:  "or",
	logicalNot: "not",
}

func (o logicalOp) String() string {
	return logicalOpNames[o]
}

// literalClass the syntax a literal was written in. The value it denotes is
// only known once the type of the other operand is.
type literalClass int

const (
	classWord literalClass = iota
	classNumber
	classBytes
	classString
	classRawString
	classChar
)

var literalClassNames = map[literalClass]string{
	classWord:      "unquoted literal",
	classNumber:    "number",
	classBytes:     "byte string",
	classString:    "string",
	classRawString: "raw string",
	classChar:      "character constant",
}

func (c literalClass) String() string {
	return literalClassNames[c]
}

func (c literalClass) quoted() bool {
	return c == classString || c == classRawString
}
