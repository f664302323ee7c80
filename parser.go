package relic

import (
	"strconv"

	"github.com/alecthomas/participle/v2/lexer"
)

// algebraLexer is the custom lexer for the algebra.
// Implements lexer.Definition for full control over tokenization.
var algebraLexer = newLexer()

// The parser is recursive descent over the token stream. Its structural
// idea is the left-to-right postfix chain: an atom followed by any number
// of postfix operators, each wrapping the chain so far as its left operand.
// Two entry points resolve the algebra's context-dependent symbols: in a
// chain, * is natural join and / is summarize; inside an extend computation
// or a comparison they are multiply and divide, except that / followed by a
// key name and [ always starts a summarize.

// Parse parses a relational chain. It is purely syntactic; names resolve
// at evaluation time.
func Parse(source string) (RelExpr, error) {
	p, err := newParser(source)
	if err != nil {
		return nil, err
	}

	expr, err := p.parseChain()
	if err != nil {
		return nil, err
	}

	if !p.cur().EOF() {
		return nil, unexpectedToken(p.cur(), "end of input")
	}

	return expr, nil
}

// ParseStatement parses one line of driver input: an optional binding
// prefix (name :=, name |=, name -=) followed by a chain.
func ParseStatement(source string) (*Statement, error) {
	p, err := newParser(source)
	if err != nil {
		return nil, err
	}

	stmt := &Statement{Pos: p.cur().Pos, Assign: AssignNone}

	if p.at(tIdent) && p.peek(1).Type == tOp {
		switch p.peek(1).Value {
		case ":=":
			stmt.Assign = AssignBind
		case "|=":
			stmt.Assign = AssignUnion
		case "-=":
			stmt.Assign = AssignDiff
		case "?=":
			return nil, reservedOperator(p.peek(1))
		}

		if stmt.Assign != AssignNone {
			stmt.Name = p.next().Value
			p.next() // assignment operator
		}
	}

	expr, err := p.parseChain()
	if err != nil {
		return nil, err
	}

	if !p.cur().EOF() {
		return nil, unexpectedToken(p.cur(), "end of input")
	}

	stmt.Expr = expr

	return stmt, nil
}

// parser holds the token stream and a cursor. The stream always ends with
// an EOF token, so cur never runs off the end.
type parser struct {
	tokens []lexer.Token
	pos    int
}

func newParser(source string) (*parser, error) {
	lx, err := algebraLexer.LexString("", source)
	if err != nil {
		return nil, err
	}

	var tokens []lexer.Token

	for {
		tok, err := lx.Next()
		if err != nil {
			return nil, err
		}

		if tok.Type == tWhitespace || tok.Type == tComment {
			continue
		}

		tokens = append(tokens, tok)

		if tok.EOF() {
			break
		}
	}

	return &parser{tokens: tokens}, nil
}

func (p *parser) cur() lexer.Token { return p.tokens[p.pos] }

func (p *parser) peek(n int) lexer.Token {
	if p.pos+n >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}

	return p.tokens[p.pos+n]
}

func (p *parser) next() lexer.Token {
	tok := p.cur()
	if !tok.EOF() {
		p.pos++
	}

	return tok
}

func (p *parser) at(typ lexer.TokenType) bool { return p.cur().Type == typ }

func (p *parser) atOp(vals ...string) bool {
	if p.cur().Type != tOp {
		return false
	}

	for _, v := range vals {
		if p.cur().Value == v {
			return true
		}
	}

	return false
}

func (p *parser) expect(typ lexer.TokenType, what string) (lexer.Token, error) {
	if p.cur().Type != typ {
		return lexer.Token{}, unexpectedToken(p.cur(), what)
	}

	return p.next(), nil
}

func (p *parser) expectOp(val, what string) (lexer.Token, error) {
	if !p.atOp(val) {
		return lexer.Token{}, unexpectedToken(p.cur(), what)
	}

	return p.next(), nil
}

// =============================================================================
// Chains
// =============================================================================

// parseChain parses Atom PostfixOp*.
func (p *parser) parseChain() (RelExpr, error) {
	left, err := p.parseAtom()
	if err != nil {
		return nil, err
	}

	for {
		if p.cur().Type != tOp {
			return left, nil
		}

		tok := p.cur()

		switch tok.Value {
		case "?", "?!":
			left, err = p.parseFilter(left)
		case "#", "#!":
			left, err = p.parseProject(left)
		case "*":
			left, err = p.parseJoin(left)
		case "*:":
			left, err = p.parseNestJoin(left)
		case "<:":
			left, err = p.parseUnnest(left)
		case "+":
			left, err = p.parseExtend(left)
		case "@":
			left, err = p.parseRename(left)
		case "|", "-", "&":
			left, err = p.parseSetOp(left)
		case "/":
			left, err = p.parseSummarize(left)
		case "/.":
			left, err = p.parseSummarizeAll(left)
		case "/:":
			left, err = p.parseNestBy(left)
		case "$":
			left, err = p.parseSort(left)
		case "^":
			left, err = p.parseTake(left)
		case "~", "!~", "?=", "::", "+:":
			return nil, reservedOperator(tok)
		default:
			return left, nil
		}

		if err != nil {
			return nil, err
		}
	}
}

// parseAtom parses Identifier | '(' Chain ')'.
func (p *parser) parseAtom() (RelExpr, error) {
	switch p.cur().Type {
	case tIdent:
		tok := p.next()

		return &RelName{Pos: tok.Pos, Name: tok.Value}, nil
	case tLParen:
		p.next()

		expr, err := p.parseChain()
		if err != nil {
			return nil, err
		}

		if _, err := p.expect(tRParen, "')'"); err != nil {
			return nil, err
		}

		return expr, nil
	default:
		return nil, unexpectedToken(p.cur(), "relation name", "'('")
	}
}

// =============================================================================
// Postfix operators
// =============================================================================

func (p *parser) parseFilter(left RelExpr) (RelExpr, error) {
	tok := p.next()

	pred, err := p.parsePredAtom()
	if err != nil {
		return nil, err
	}

	return &Filter{Pos: tok.Pos, In: left, Pred: pred, Negate: tok.Value == "?!"}, nil
}

func (p *parser) parseProject(left RelExpr) (RelExpr, error) {
	tok := p.next()

	attrs, err := p.parseAttrList()
	if err != nil {
		return nil, err
	}

	return &Project{Pos: tok.Pos, In: left, Attrs: attrs, Remove: tok.Value == "#!"}, nil
}

func (p *parser) parseJoin(left RelExpr) (RelExpr, error) {
	tok := p.next()

	name, err := p.expect(tIdent, "relation name")
	if err != nil {
		return nil, err
	}

	return &Join{Pos: tok.Pos, In: left, Right: name.Value}, nil
}

func (p *parser) parseNestJoin(left RelExpr) (RelExpr, error) {
	tok := p.next()

	name, err := p.expect(tIdent, "relation name")
	if err != nil {
		return nil, err
	}

	if _, err := p.expectOp(">", "'>' alias"); err != nil {
		return nil, err
	}

	alias, err := p.expect(tIdent, "alias")
	if err != nil {
		return nil, err
	}

	return &NestJoin{Pos: tok.Pos, In: left, Right: name.Value, Alias: alias.Value}, nil
}

func (p *parser) parseUnnest(left RelExpr) (RelExpr, error) {
	tok := p.next()

	alias, err := p.expect(tIdent, "alias")
	if err != nil {
		return nil, err
	}

	return &Unnest{Pos: tok.Pos, In: left, Alias: alias.Value}, nil
}

func (p *parser) parseExtend(left RelExpr) (RelExpr, error) {
	tok := p.next()

	cols, err := p.parseNamedExprs("computed attribute")
	if err != nil {
		return nil, err
	}

	ext := &Extend{Pos: tok.Pos, In: left, Cols: make([]ExtendCol, len(cols))}
	for i, c := range cols {
		ext.Cols[i] = ExtendCol(c)
	}

	return ext, nil
}

func (p *parser) parseRename(left RelExpr) (RelExpr, error) {
	tok := p.next()

	var pairs []RenamePair

	if p.at(tLBracket) {
		p.next()

		for !p.at(tRBracket) {
			pair, err := p.parseRenamePair()
			if err != nil {
				return nil, err
			}

			pairs = append(pairs, pair)
		}

		if len(pairs) == 0 {
			return nil, unexpectedToken(p.cur(), "rename pair")
		}

		p.next() // ]
	} else {
		pair, err := p.parseRenamePair()
		if err != nil {
			return nil, err
		}

		pairs = append(pairs, pair)
	}

	return &Rename{Pos: tok.Pos, In: left, Pairs: pairs}, nil
}

func (p *parser) parseRenamePair() (RenamePair, error) {
	from, err := p.expect(tIdent, "attribute name")
	if err != nil {
		return RenamePair{}, err
	}

	if _, err := p.expectOp(">", "'>'"); err != nil {
		return RenamePair{}, err
	}

	to, err := p.expect(tIdent, "attribute name")
	if err != nil {
		return RenamePair{}, err
	}

	return RenamePair{Pos: from.Pos, From: from.Value, To: to.Value}, nil
}

// parseSetOp parses union, difference, and intersection. The right operand
// is a bare relation name or a parenthesized chain - nothing else.
func (p *parser) parseSetOp(left RelExpr) (RelExpr, error) {
	tok := p.next()

	var kind SetOpKind

	switch tok.Value {
	case "|":
		kind = SetUnion
	case "-":
		kind = SetDiff
	case "&":
		kind = SetIntersect
	}

	var right RelExpr

	switch p.cur().Type {
	case tIdent:
		name := p.next()
		right = &RelName{Pos: name.Pos, Name: name.Value}
	case tLParen:
		p.next()

		inner, err := p.parseChain()
		if err != nil {
			return nil, err
		}

		if _, err := p.expect(tRParen, "')'"); err != nil {
			return nil, err
		}

		right = inner
	default:
		return nil, invalidRightOperand(p.cur(), tok.Value)
	}

	return &SetOp{Pos: tok.Pos, Kind: kind, L: left, R: right}, nil
}

func (p *parser) parseSummarize(left RelExpr) (RelExpr, error) {
	tok := p.next()

	keys, err := p.parseAttrList()
	if err != nil {
		return nil, err
	}

	aggs, err := p.parseAggList()
	if err != nil {
		return nil, err
	}

	return &Summarize{Pos: tok.Pos, In: left, Keys: keys, Aggs: aggs}, nil
}

func (p *parser) parseSummarizeAll(left RelExpr) (RelExpr, error) {
	tok := p.next()

	aggs, err := p.parseAggList()
	if err != nil {
		return nil, err
	}

	return &SummarizeAll{Pos: tok.Pos, In: left, Aggs: aggs}, nil
}

func (p *parser) parseNestBy(left RelExpr) (RelExpr, error) {
	tok := p.next()

	keys, err := p.parseAttrList()
	if err != nil {
		return nil, err
	}

	if _, err := p.expectOp(">", "'>' alias"); err != nil {
		return nil, err
	}

	alias, err := p.expect(tIdent, "alias")
	if err != nil {
		return nil, err
	}

	return &NestBy{Pos: tok.Pos, In: left, Keys: keys, Alias: alias.Value}, nil
}

func (p *parser) parseSort(left RelExpr) (RelExpr, error) {
	tok := p.next()

	var keys []SortKey

	if p.at(tLBracket) {
		p.next()

		for !p.at(tRBracket) {
			key, err := p.parseSortKey()
			if err != nil {
				return nil, err
			}

			keys = append(keys, key)
		}

		if len(keys) == 0 {
			return nil, unexpectedToken(p.cur(), "sort key")
		}

		p.next() // ]
	} else {
		key, err := p.parseSortKey()
		if err != nil {
			return nil, err
		}

		keys = append(keys, key)
	}

	return &Sort{Pos: tok.Pos, In: left, Keys: keys}, nil
}

func (p *parser) parseSortKey() (SortKey, error) {
	attr, err := p.expect(tIdent, "sort key")
	if err != nil {
		return SortKey{}, err
	}

	key := SortKey{Attr: attr.Value}

	if p.atOp("-") {
		p.next()

		key.Desc = true
	}

	return key, nil
}

// parseTake parses ^ N. Take requires an immediately preceding sort; the
// check here is what keeps the type boundary a parse error in the common
// case rather than a runtime one.
func (p *parser) parseTake(left RelExpr) (RelExpr, error) {
	tok := p.next()

	if _, ok := left.(*Sort); !ok {
		return nil, &ParseError{Pos: tok.Pos, Msg: "take requires an immediately preceding sort"}
	}

	num, err := p.expect(tInt, "count")
	if err != nil {
		return nil, err
	}

	n, err := strconv.Atoi(num.Value)
	if err != nil {
		return nil, &ParseError{Pos: num.Pos, Msg: "invalid count " + strconvQuote(num.Value)}
	}

	return &Take{Pos: tok.Pos, In: left, N: n}, nil
}

// =============================================================================
// Argument shapes
// =============================================================================

// parseAttrList parses attribute names with bracket elision: a single name
// needs no brackets, several must be enclosed in [...], separated by
// whitespace.
func (p *parser) parseAttrList() ([]string, error) {
	if p.at(tIdent) {
		return []string{p.next().Value}, nil
	}

	if !p.at(tLBracket) {
		return nil, unexpectedToken(p.cur(), "attribute name", "'['")
	}

	p.next()

	var attrs []string

	for p.at(tIdent) {
		attrs = append(attrs, p.next().Value)
	}

	if len(attrs) == 0 {
		return nil, unexpectedToken(p.cur(), "attribute name")
	}

	if _, err := p.expect(tRBracket, "']'"); err != nil {
		return nil, err
	}

	return attrs, nil
}

// namedExpr is a name: expression pair shared by extend and summarize.
type namedExpr struct {
	Pos  lexer.Position
	Name string
	Expr Expr
}

// parseNamedExprs parses name: expr pairs with bracket elision.
func (p *parser) parseNamedExprs(what string) ([]namedExpr, error) {
	if p.at(tLBracket) {
		p.next()

		var items []namedExpr

		for !p.at(tRBracket) {
			item, err := p.parseNamedExpr(what)
			if err != nil {
				return nil, err
			}

			items = append(items, item)
		}

		if len(items) == 0 {
			return nil, unexpectedToken(p.cur(), what)
		}

		p.next() // ]

		return items, nil
	}

	item, err := p.parseNamedExpr(what)
	if err != nil {
		return nil, err
	}

	return []namedExpr{item}, nil
}

func (p *parser) parseNamedExpr(what string) (namedExpr, error) {
	name, err := p.expect(tIdent, what)
	if err != nil {
		return namedExpr{}, err
	}

	if _, err := p.expect(tColon, "':'"); err != nil {
		return namedExpr{}, err
	}

	expr, err := p.parseCompExpr()
	if err != nil {
		return namedExpr{}, err
	}

	return namedExpr{Pos: name.Pos, Name: name.Value, Expr: expr}, nil
}

// parseAggList parses the bracketed name: aggregate-expression list of
// summarize and summarize-all. Brackets are mandatory here.
func (p *parser) parseAggList() ([]AggCol, error) {
	if !p.at(tLBracket) {
		return nil, unexpectedToken(p.cur(), "'[' aggregate list")
	}

	items, err := p.parseNamedExprs("aggregate")
	if err != nil {
		return nil, err
	}

	aggs := make([]AggCol, len(items))
	for i, it := range items {
		aggs[i] = AggCol(it)
	}

	return aggs, nil
}
