package relic

import (
	"errors"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
)

// Sentinel errors.
var (
	// ErrConfigNotFound is returned when no .relic.yaml is found.
	ErrConfigNotFound = errors.New("relic: no .relic.yaml found")

	// ErrNotRelation is returned when a binding statement produces ordered
	// tuples; only relations are bindable in the environment.
	ErrNotRelation = errors.New("relic: only a relation can be bound to a name")
)

// ParseError reports a syntactic failure with its source position.
type ParseError struct {
	Pos      lexer.Position
	Msg      string
	Expected []string
}

func (e *ParseError) Error() string {
	s := e.Pos.String() + ": " + e.Msg
	if len(e.Expected) > 0 {
		s += " (expected " + strings.Join(e.Expected, " or ") + ")"
	}

	return s
}

// unexpectedToken builds the ParseError for a token that does not fit any
// expected shape.
func unexpectedToken(tok lexer.Token, expected ...string) *ParseError {
	if tok.EOF() {
		return &ParseError{Pos: tok.Pos, Msg: "unexpected end of input", Expected: expected}
	}

	return &ParseError{Pos: tok.Pos, Msg: "unexpected token " + strconvQuote(tok.Value), Expected: expected}
}

// invalidRightOperand reports a binary set operator whose right side is not
// a relation name or a parenthesized chain.
func invalidRightOperand(tok lexer.Token, op string) *ParseError {
	return &ParseError{
		Pos:      tok.Pos,
		Msg:      "invalid right operand of " + op,
		Expected: []string{"relation name", "parenthesized chain"},
	}
}

// reservedOperator reports use of an operator the lexer recognizes but the
// language does not evaluate.
func reservedOperator(tok lexer.Token) *ParseError {
	return &ParseError{Pos: tok.Pos, Msg: "operator " + strconvQuote(tok.Value) + " is reserved"}
}

func strconvQuote(s string) string { return "'" + s + "'" }

// EvalError attaches the position of the operator that failed to a runtime
// error from the data model.
type EvalError struct {
	Pos lexer.Position
	Err error
}

func (e *EvalError) Error() string {
	return e.Pos.String() + ": " + e.Err.Error()
}

func (e *EvalError) Unwrap() error { return e.Err }

// evalErr wraps err with pos unless it is already positioned.
func evalErr(pos lexer.Position, err error) error {
	var ee *EvalError
	if errors.As(err, &ee) {
		return err
	}

	return &EvalError{Pos: pos, Err: err}
}
