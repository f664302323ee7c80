package relic

import (
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/rlch/relic/rel"
)

// Predicate and computation sub-parsers. Computation expressions are the
// second parser entry point: inside them * and / are arithmetic, and an
// identifier followed by ( is a function call rather than an attribute.

// =============================================================================
// Predicates
// =============================================================================

// parsePredAtom parses the argument of a filter: a single comparison, or a
// parenthesized boolean combination. & and | combine predicates only inside
// parentheses; bare, they belong to the chain.
func (p *parser) parsePredAtom() (Pred, error) {
	if p.at(tLParen) {
		p.next()

		pred, err := p.parseOrPred()
		if err != nil {
			return nil, err
		}

		if _, err := p.expect(tRParen, "')'"); err != nil {
			return nil, err
		}

		return pred, nil
	}

	return p.parseCmp()
}

func (p *parser) parseOrPred() (Pred, error) {
	left, err := p.parseAndPred()
	if err != nil {
		return nil, err
	}

	for p.atOp("|") {
		tok := p.next()

		right, err := p.parseAndPred()
		if err != nil {
			return nil, err
		}

		left = &Or{Pos: tok.Pos, L: left, R: right}
	}

	return left, nil
}

func (p *parser) parseAndPred() (Pred, error) {
	left, err := p.parsePredAtom()
	if err != nil {
		return nil, err
	}

	for p.atOp("&") {
		tok := p.next()

		right, err := p.parsePredAtom()
		if err != nil {
			return nil, err
		}

		left = &And{Pos: tok.Pos, L: left, R: right}
	}

	return left, nil
}

// parseCmp parses expr op rhs. The right-hand side of = may also be a set
// literal or a parenthesized subquery, both meaning membership.
func (p *parser) parseCmp() (Pred, error) {
	left, err := p.parseCompExpr()
	if err != nil {
		return nil, err
	}

	if !p.atOp("=", "!=", "<", "<=", ">", ">=") {
		return nil, unexpectedToken(p.cur(), "comparison operator")
	}

	op := p.next()

	if op.Value == "=" {
		if p.at(tLBrace) {
			set, err := p.parseSetLit()
			if err != nil {
				return nil, err
			}

			return &Cmp{Pos: op.Pos, Op: op.Value, L: left, R: set}, nil
		}

		if p.at(tLParen) {
			sub := p.cur().Pos

			p.next()

			inner, err := p.parseChain()
			if err != nil {
				return nil, err
			}

			if _, err := p.expect(tRParen, "')'"); err != nil {
				return nil, err
			}

			return &Cmp{Pos: op.Pos, Op: op.Value, L: left, R: &Subquery{Pos: sub, Rel: inner}}, nil
		}
	}

	right, err := p.parseCompExpr()
	if err != nil {
		return nil, err
	}

	return &Cmp{Pos: op.Pos, Op: op.Value, L: left, R: right}, nil
}

// parseSetLit parses {v1, v2, ...} of literal values.
func (p *parser) parseSetLit() (*SetLit, error) {
	open, err := p.expect(tLBrace, "'{'")
	if err != nil {
		return nil, err
	}

	set := &SetLit{Pos: open.Pos}

	for !p.at(tRBrace) {
		if len(set.Elems) > 0 {
			if _, err := p.expect(tComma, "','"); err != nil {
				return nil, err
			}
		}

		v, err := p.parseLitValue()
		if err != nil {
			return nil, err
		}

		set.Elems = append(set.Elems, v)
	}

	p.next() // }

	return set, nil
}

// parseLitValue parses one literal value, with an optional leading minus on
// numbers.
func (p *parser) parseLitValue() (rel.Value, error) {
	neg := false
	if p.atOp("-") {
		p.next()

		neg = true
	}

	tok := p.cur()

	switch tok.Type {
	case tInt:
		p.next()

		i, err := strconv.ParseInt(tok.Value, 10, 64)
		if err != nil {
			return rel.Value{}, &ParseError{Pos: tok.Pos, Msg: "invalid integer " + strconvQuote(tok.Value)}
		}

		if neg {
			i = -i
		}

		return rel.Int(i), nil
	case tDecimal:
		p.next()

		d, err := decimal.NewFromString(tok.Value)
		if err != nil {
			return rel.Value{}, &ParseError{Pos: tok.Pos, Msg: "invalid number " + strconvQuote(tok.Value)}
		}

		if neg {
			d = d.Neg()
		}

		return rel.Dec(d), nil
	case tString:
		if neg {
			return rel.Value{}, unexpectedToken(tok, "number")
		}

		p.next()

		return rel.String(unquoteString(tok.Value)), nil
	case tIdent:
		if neg {
			return rel.Value{}, unexpectedToken(tok, "number")
		}

		switch tok.Value {
		case "true":
			p.next()

			return rel.Bool(true), nil
		case "false":
			p.next()

			return rel.Bool(false), nil
		}
	}

	return rel.Value{}, unexpectedToken(tok, "literal value")
}

// =============================================================================
// Computation expressions
// =============================================================================

var aggKinds = map[string]AggKind{
	"#.": AggCount,
	"+.": AggSum,
	">.": AggMax,
	"<.": AggMin,
	"%.": AggMean,
}

// parseCompExpr parses an arithmetic expression: additive over
// multiplicative, both left-associative, parentheses overriding.
func (p *parser) parseCompExpr() (Expr, error) {
	return p.parseAdd()
}

func (p *parser) parseAdd() (Expr, error) {
	left, err := p.parseMul()
	if err != nil {
		return nil, err
	}

	for p.atOp("+", "-") && p.operandFollows(1) {
		tok := p.next()

		right, err := p.parseMul()
		if err != nil {
			return nil, err
		}

		left = &Arith{Pos: tok.Pos, Op: tok.Value, L: left, R: right}
	}

	return left, nil
}

func (p *parser) parseMul() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	for p.atOp("*", "/") && p.operandFollows(1) {
		// / key [aggs] is a summarize of the chain, not a division by key.
		if p.cur().Value == "/" && p.peek(1).Type == tIdent && p.peek(2).Type == tLBracket {
			break
		}

		tok := p.next()

		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}

		left = &Arith{Pos: tok.Pos, Op: tok.Value, L: left, R: right}
	}

	return left, nil
}

// operandFollows reports whether the token n ahead can begin an arithmetic
// operand. It is the lookahead that keeps a chain operator after a
// computation (+ [x: ...], / [keys] [aggs]) from being eaten as
// arithmetic; parseMul also stops before / key [aggs].
func (p *parser) operandFollows(n int) bool {
	tok := p.peek(n)

	switch tok.Type {
	case tInt, tDecimal, tString, tIdent, tLParen:
		return true
	case tOp:
		return tok.Value == "-"
	default:
		return false
	}
}

func (p *parser) parseUnary() (Expr, error) {
	if p.atOp("-") {
		tok := p.next()

		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}

		// Fold the sign into numeric literals.
		if lit, ok := operand.(*Lit); ok {
			switch lit.Val.Kind() {
			case rel.KindInt:
				return &Lit{Pos: tok.Pos, Val: rel.Int(-lit.Val.AsInt())}, nil
			case rel.KindDecimal:
				return &Lit{Pos: tok.Pos, Val: rel.Dec(lit.Val.AsDecimal().Neg())}, nil
			}
		}

		zero := &Lit{Pos: tok.Pos, Val: rel.Int(0)}

		return &Arith{Pos: tok.Pos, Op: "-", L: zero, R: operand}, nil
	}

	return p.parseAtomExpr()
}

// parseAtomExpr parses an atomic computation: a literal, attribute path,
// function call, aggregate call, ternary, or parenthesized expression.
// Ternary branches reuse this production, which is what keeps bare binary
// arithmetic out of them: a / there would be stolen as summarize otherwise.
func (p *parser) parseAtomExpr() (Expr, error) {
	tok := p.cur()

	switch tok.Type {
	case tInt, tDecimal, tString:
		v, err := p.parseLitValue()
		if err != nil {
			return nil, err
		}

		return &Lit{Pos: tok.Pos, Val: v}, nil
	case tIdent:
		if tok.Value == "true" || tok.Value == "false" {
			p.next()

			return &Lit{Pos: tok.Pos, Val: rel.Bool(tok.Value == "true")}, nil
		}

		if p.peek(1).Type == tLParen {
			return p.parseFuncCall()
		}

		return p.parseAttrRef()
	case tLParen:
		p.next()

		expr, err := p.parseCompExpr()
		if err != nil {
			return nil, err
		}

		if _, err := p.expect(tRParen, "')'"); err != nil {
			return nil, err
		}

		return expr, nil
	case tOp:
		if kind, ok := aggKinds[tok.Value]; ok {
			return p.parseAggCall(kind)
		}

		if tok.Value == "?" {
			return p.parseTernary()
		}
	}

	return nil, unexpectedToken(tok, "expression")
}

func (p *parser) parseAttrRef() (*AttrRef, error) {
	name, err := p.expect(tIdent, "attribute name")
	if err != nil {
		return nil, err
	}

	ref := &AttrRef{Pos: name.Pos, Parts: []string{name.Value}}

	for p.at(tDot) {
		p.next()

		part, err := p.expect(tIdent, "attribute name")
		if err != nil {
			return nil, err
		}

		ref.Parts = append(ref.Parts, part.Value)
	}

	return ref, nil
}

func (p *parser) parseFuncCall() (Expr, error) {
	name := p.next()

	p.next() // (

	call := &FuncCall{Pos: name.Pos, Name: name.Value}

	for !p.at(tRParen) {
		if len(call.Args) > 0 {
			if _, err := p.expect(tComma, "','"); err != nil {
				return nil, err
			}
		}

		arg, err := p.parseCompExpr()
		if err != nil {
			return nil, err
		}

		call.Args = append(call.Args, arg)
	}

	p.next() // )

	return call, nil
}

// parseAggCall parses an aggregate token and its optional argument. An
// identifier argument is taken only when it is not the name of the next
// name: expression pair in an enclosing list.
func (p *parser) parseAggCall(kind AggKind) (Expr, error) {
	tok := p.next()

	call := &AggCall{Pos: tok.Pos, Kind: kind}

	switch {
	case p.at(tIdent) && p.peek(1).Type != tColon && p.cur().Value != "true" && p.cur().Value != "false":
		arg, err := p.parseAttrRef()
		if err != nil {
			return nil, err
		}

		call.Arg = arg
	case p.at(tLParen):
		p.next()

		arg, err := p.parseCompExpr()
		if err != nil {
			return nil, err
		}

		if _, err := p.expect(tRParen, "')'"); err != nil {
			return nil, err
		}

		call.Arg = arg
	}

	return call, nil
}

// parseTernary parses ? cond then else. The condition is a predicate atom;
// the branches are atomic expressions, so arithmetic in a branch must be
// parenthesized.
func (p *parser) parseTernary() (Expr, error) {
	tok := p.next()

	cond, err := p.parsePredAtom()
	if err != nil {
		return nil, err
	}

	then, err := p.parseAtomExpr()
	if err != nil {
		return nil, err
	}

	els, err := p.parseAtomExpr()
	if err != nil {
		return nil, err
	}

	return &Ternary{Pos: tok.Pos, Cond: cond, Then: then, Else: els}, nil
}
