package filter

// expression a cursor over the tokens of one filter, parsed by recursive
// descent. Precedence from loosest to tightest: or, and, not, relations.
type expression struct {
	raw     string
	tokens  []token
	current int
	depth   int
}

// parse turn filter text into a syntax tree. Blank text parses to nil.
func parse(text string) (node, error) {
	tokens, err := lex(text)
	if err != nil {
		return nil, err
	}
	e := &expression{raw: text, tokens: tokens}
	if e.peek().kind == tokenEOF {
		return nil, nil
	}
	n, err := e.parseOr()
	if err != nil {
		return nil, err
	}
	if t := e.peek(); t.kind != tokenEOF {
		return nil, e.unexpected(t, `"and", "or" or end of filter`)
	}
	return n, nil
}

func (e *expression) peek() token {
	return e.tokens[e.current]
}

func (e *expression) peekAt(n int) token {
	if e.current+n < len(e.tokens) {
		return e.tokens[e.current+n]
	}
	return e.tokens[len(e.tokens)-1]
}

// next consume the current token. The trailing tokenEOF is never consumed.
func (e *expression) next() token {
	t := e.tokens[e.current]
	if t.kind != tokenEOF {
		e.current++
	}
	return t
}

func (e *expression) unexpected(t token, expected string) error {
	found := tokenNames[t.kind]
	if t.kind != tokenEOF {
		found = "\"" + e.raw[t.start:t.end] + "\""
	}
	end := t.end
	if end == t.start {
		end = t.start + 1
	}
	return &ParseError{Offset: t.start, End: end, Expected: expected, Found: found}
}

func (e *expression) enter(t token) error {
	e.depth++
	if e.depth > maxDepth {
		return &ParseError{Offset: t.start, End: t.end, Expected: "a shallower expression", Found: "nesting too deep"}
	}
	return nil
}

func (e *expression) leave() {
	e.depth--
}

func (e *expression) parseOr() (node, error) {
	return e.parseChain(tokenOr, logicalOr, e.parseAnd)
}

func (e *expression) parseAnd() (node, error) {
	return e.parseChain(tokenAnd, logicalAnd, e.parseNot)
}

// parseChain collect "x op y op z" into one logical node
func (e *expression) parseChain(kind tokenKind, op logicalOp, operand func() (node, error)) (node, error) {
	first, err := operand()
	if err != nil {
		return nil, err
	}
	if e.peek().kind != kind {
		return first, nil
	}
	children := []node{first}
	for e.peek().kind == kind {
		e.next()
		n, err := operand()
		if err != nil {
			return nil, err
		}
		children = append(children, n)
	}
	start, _ := first.span()
	_, end := children[len(children)-1].span()
	return &logicalExpr{pos: pos{start, end}, op: op, children: children}, nil
}

func (e *expression) parseNot() (node, error) {
	t := e.peek()
	if t.kind != tokenNot {
		return e.parseRelation()
	}
	e.next()
	if err := e.enter(t); err != nil {
		return nil, err
	}
	defer e.leave()
	child, err := e.parseNot()
	if err != nil {
		return nil, err
	}
	_, end := child.span()
	return &logicalExpr{pos: pos{t.start, end}, op: logicalNot, children: []node{child}}, nil
}

// parseRelation a parenthesized expression, or an operand optionally
// followed by a comparison or membership test. A lone operand is a test for
// the presence of a field.
func (e *expression) parseRelation() (node, error) {
	t := e.peek()
	if t.kind == tokenLParen {
		e.next()
		if err := e.enter(t); err != nil {
			return nil, err
		}
		defer e.leave()
		inner, err := e.parseOr()
		if err != nil {
			return nil, err
		}
		if closing := e.peek(); closing.kind != tokenRParen {
			return nil, e.unexpected(closing, `")"`)
		}
		e.next()
		return inner, nil
	}
	lhs, err := e.parseOperand()
	if err != nil {
		return nil, err
	}
	start, _ := lhs.span()
	op := e.peek()
	switch {
	case op.kind == tokenCompare:
		e.next()
		rhs, err := e.parseOperand()
		if err != nil {
			return nil, err
		}
		_, end := rhs.span()
		return &relationExpr{pos: pos{start, end}, op: op.op, lhs: lhs, rhs: rhs, opPos: pos{op.start, op.end}}, nil
	case op.kind == tokenIn:
		e.next()
		return e.parseMembership(lhs, op)
	case op.kind == tokenNot && e.peekAt(1).kind == tokenIn:
		// "x not in {...}"
		e.next()
		in := e.next()
		rel, err := e.parseMembership(lhs, in)
		if err != nil {
			return nil, err
		}
		_, end := rel.span()
		return &logicalExpr{pos: pos{start, end}, op: logicalNot, children: []node{rel}}, nil
	}
	return lhs, nil
}

func (e *expression) parseMembership(lhs node, op token) (node, error) {
	set, err := e.parseSet()
	if err != nil {
		return nil, err
	}
	start, _ := lhs.span()
	return &relationExpr{pos: pos{start, set.end}, op: relIn, lhs: lhs, rhs: set, opPos: pos{op.start, op.end}}, nil
}

// parseSet "{a b c}", "{a, b, c}" or with ranges, "{1..10 443}"
func (e *expression) parseSet() (*setLiteral, error) {
	open := e.peek()
	if open.kind != tokenLBrace {
		return nil, e.unexpected(open, `"{" after "in"`)
	}
	e.next()
	set := &setLiteral{pos: pos{start: open.start}}
	for {
		t := e.peek()
		if t.kind == tokenRBrace {
			if len(set.elements) == 0 {
				return nil, e.unexpected(t, "a set element")
			}
			e.next()
			set.end = t.end
			return set, nil
		}
		if len(set.elements) > 0 && t.kind == tokenComma {
			e.next()
		}
		low, err := e.parseSetValue()
		if err != nil {
			return nil, err
		}
		el := setElement{low: low}
		if e.peek().kind == tokenDotDot {
			e.next()
			if el.high, err = e.parseSetValue(); err != nil {
				return nil, err
			}
		}
		set.elements = append(set.elements, el)
	}
}

func (e *expression) parseSetValue() (*literal, error) {
	t := e.peek()
	lit, ok := literalFromToken(t)
	if !ok {
		return nil, e.unexpected(t, "a literal set element")
	}
	e.next()
	if s := e.peek(); s.kind == tokenSlice || s.kind == tokenLayer {
		return nil, e.unexpected(s, `"," or "}"`)
	}
	return lit, nil
}

func literalFromToken(t token) (*literal, bool) {
	switch t.kind {
	case tokenWord, tokenNumber, tokenBytes, tokenString, tokenChar:
		return &literal{pos: pos{t.start, t.end}, class: t.class, text: t.text}, true
	}
	return nil, false
}

// parseOperand a field reference, literal or function call, with any layer
// and slice suffixes
func (e *expression) parseOperand() (node, error) {
	t := e.peek()
	switch t.kind {
	case tokenWord:
		e.next()
		if e.peek().kind == tokenLParen {
			return e.parseCall(t)
		}
		f := &fieldRef{pos: pos{t.start, t.end}, name: t.text, layer: noLayer}
		return f, e.parseSuffixes(f)
	case tokenNumber, tokenBytes, tokenString, tokenChar:
		e.next()
		lit, _ := literalFromToken(t)
		if s := e.peek(); s.kind == tokenSlice || s.kind == tokenLayer {
			return nil, e.unexpected(s, "an operator after a literal")
		}
		return lit, nil
	}
	return nil, e.unexpected(t, "a field, literal or function")
}

// parseSuffixes "#n" and "[...]" after a name, in either order
func (e *expression) parseSuffixes(f *fieldRef) error {
	for {
		t := e.peek()
		switch t.kind {
		case tokenLayer:
			if f.layer != noLayer {
				return e.unexpected(t, "a single layer suffix")
			}
			f.layer = t.layer
		case tokenSlice:
			if f.ranges != nil {
				return e.unexpected(t, "a single slice")
			}
			f.ranges = t.ranges
			f.index = t.index
		default:
			return nil
		}
		e.next()
		f.end = t.end
	}
}

func (e *expression) parseCall(name token) (node, error) {
	if err := e.enter(name); err != nil {
		return nil, err
	}
	defer e.leave()
	e.next() // "("
	call := &functionCall{pos: pos{start: name.start}, name: name.text}
	if e.peek().kind != tokenRParen {
		for {
			arg, err := e.parseOperand()
			if err != nil {
				return nil, err
			}
			call.args = append(call.args, arg)
			if e.peek().kind != tokenComma {
				break
			}
			e.next()
		}
	}
	closing := e.peek()
	if closing.kind != tokenRParen {
		return nil, e.unexpected(closing, `"," or ")"`)
	}
	e.next()
	call.end = closing.end
	if t := e.peek(); t.kind == tokenSlice {
		e.next()
		call.ranges = t.ranges
		call.end = t.end
	}
	return call, nil
}
