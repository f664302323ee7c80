// Package relic implements an interpreter for a terse, symbolic relational
// algebra: a lexer with digraph tokens, a recursive-descent parser, and a
// tree-walking evaluator over in-memory relations.
package relic

import (
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/rlch/relic/rel"
)

// The AST splits into two closed node families: scalar/predicate
// expressions, which evaluate to a value against a tuple context, and
// relational expressions, which evaluate to a relation or an ordered tuple
// sequence. Every node carries the position of the token that introduced it.

// =============================================================================
// Scalar and predicate expressions
// =============================================================================

// Expr is a scalar expression evaluated against a tuple context.
type Expr interface {
	exprNode()
	Position() lexer.Position
}

// Pred is a predicate evaluated against a tuple context.
type Pred interface {
	predNode()
	Position() lexer.Position
}

// Lit is a literal value: integer, decimal, string, or boolean.
type Lit struct {
	Pos lexer.Position
	Val rel.Value
}

// SetLit is an unordered collection of literal values. It appears only as
// the right-hand side of = in a filter, expressing membership.
type SetLit struct {
	Pos   lexer.Position
	Elems []rel.Value
}

// AttrRef references an attribute of the current tuple, optionally
// reaching through a relation-valued attribute (team.salary).
type AttrRef struct {
	Pos   lexer.Position
	Parts []string
}

// Name returns the dotted form of the reference.
func (a *AttrRef) Name() string {
	s := a.Parts[0]
	for _, p := range a.Parts[1:] {
		s += "." + p
	}

	return s
}

// Arith is binary arithmetic: + - * /.
type Arith struct {
	Pos  lexer.Position
	Op   string
	L, R Expr
}

// Ternary is ? cond then else. The parser accepts it wherever a computation
// expression is parsed (extend columns, comparison operands, aggregate
// lists); it is not restricted to extend.
type Ternary struct {
	Pos  lexer.Position
	Cond Pred
	Then Expr
	Else Expr
}

// AggKind identifies an aggregate.
type AggKind int

const (
	AggCount AggKind = iota // #.
	AggSum                  // +.
	AggMax                  // >.
	AggMin                  // <.
	AggMean                 // %.
)

// Symbol returns the aggregate's surface token.
func (k AggKind) Symbol() string {
	switch k {
	case AggCount:
		return "#."
	case AggSum:
		return "+."
	case AggMax:
		return ">."
	case AggMin:
		return "<."
	case AggMean:
		return "%."
	default:
		return "?"
	}
}

// AggCall applies an aggregate to a group or to an expression over one,
// typically an attribute path into a relation-valued attribute. Arg is nil
// for bare #. (count of the group).
type AggCall struct {
	Pos  lexer.Position
	Kind AggKind
	Arg  Expr
}

// FuncCall invokes a registered built-in function.
type FuncCall struct {
	Pos  lexer.Position
	Name string
	Args []Expr
}

// Subquery is a full relational expression used as the right-hand side of
// = in a filter: a membership test against the resulting relation.
type Subquery struct {
	Pos lexer.Position
	Rel RelExpr
}

// Cmp compares a scalar expression with a scalar, a set literal, or a
// subquery. Op is one of = != < <= > >=.
type Cmp struct {
	Pos  lexer.Position
	Op   string
	L, R Expr
}

// And is predicate conjunction (&).
type And struct {
	Pos  lexer.Position
	L, R Pred
}

// Or is predicate disjunction (|).
type Or struct {
	Pos  lexer.Position
	L, R Pred
}

func (*Lit) exprNode()      {}
func (*SetLit) exprNode()   {}
func (*AttrRef) exprNode()  {}
func (*Arith) exprNode()    {}
func (*Ternary) exprNode()  {}
func (*AggCall) exprNode()  {}
func (*FuncCall) exprNode() {}
func (*Subquery) exprNode() {}

func (*Cmp) predNode() {}
func (*And) predNode() {}
func (*Or) predNode()  {}

func (n *Lit) Position() lexer.Position      { return n.Pos }
func (n *SetLit) Position() lexer.Position   { return n.Pos }
func (n *AttrRef) Position() lexer.Position  { return n.Pos }
func (n *Arith) Position() lexer.Position    { return n.Pos }
func (n *Ternary) Position() lexer.Position  { return n.Pos }
func (n *AggCall) Position() lexer.Position  { return n.Pos }
func (n *FuncCall) Position() lexer.Position { return n.Pos }
func (n *Subquery) Position() lexer.Position { return n.Pos }
func (n *Cmp) Position() lexer.Position      { return n.Pos }
func (n *And) Position() lexer.Position      { return n.Pos }
func (n *Or) Position() lexer.Position       { return n.Pos }

// =============================================================================
// Relational expressions
// =============================================================================

// RelExpr is a relational expression. Evaluation yields a rel.Result.
type RelExpr interface {
	relNode()
	Position() lexer.Position
}

// RelName looks up a relation in the environment.
type RelName struct {
	Pos  lexer.Position
	Name string
}

// Filter retains tuples matching the predicate (?), or failing it (?!).
type Filter struct {
	Pos    lexer.Position
	In     RelExpr
	Pred   Pred
	Negate bool
}

// Project keeps only the named attributes (#), or removes them (#!).
type Project struct {
	Pos    lexer.Position
	In     RelExpr
	Attrs  []string
	Remove bool
}

// Join is the natural join (*). The right operand is always a bare
// relation name.
type Join struct {
	Pos   lexer.Position
	In    RelExpr
	Right string
}

// NestJoin is *: R > alias - a join that nests the matching right-side
// tuples as a relation-valued attribute instead of multiplying rows.
type NestJoin struct {
	Pos   lexer.Position
	In    RelExpr
	Right string
	Alias string
}

// Unnest is <: alias - the inverse of nest join.
type Unnest struct {
	Pos   lexer.Position
	In    RelExpr
	Alias string
}

// ExtendCol is one computed attribute of an extend.
type ExtendCol struct {
	Pos  lexer.Position
	Name string
	Expr Expr
}

// Extend adds computed attributes (+). All columns evaluate against the
// original tuple, not sequentially.
type Extend struct {
	Pos  lexer.Position
	In   RelExpr
	Cols []ExtendCol
}

// RenamePair renames one attribute: old > new.
type RenamePair struct {
	Pos  lexer.Position
	From string
	To   string
}

// Rename renames attributes (@) as a simultaneous substitution.
type Rename struct {
	Pos   lexer.Position
	In    RelExpr
	Pairs []RenamePair
}

// SetOpKind identifies a binary set operation.
type SetOpKind int

const (
	SetUnion SetOpKind = iota // |
	SetDiff                   // -
	SetIntersect              // &
)

// Symbol returns the operation's surface token.
func (k SetOpKind) Symbol() string {
	switch k {
	case SetUnion:
		return "|"
	case SetDiff:
		return "-"
	case SetIntersect:
		return "&"
	default:
		return "?"
	}
}

// SetOp is union, difference, or intersection. Both sides must share a
// schema.
type SetOp struct {
	Pos  lexer.Position
	Kind SetOpKind
	L    RelExpr
	R    RelExpr
}

// AggCol is one named aggregate of a summarize.
type AggCol struct {
	Pos  lexer.Position
	Name string
	Expr Expr
}

// Summarize partitions by the grouping keys and collapses each group to one
// tuple of keys plus aggregates (/).
type Summarize struct {
	Pos  lexer.Position
	In   RelExpr
	Keys []string
	Aggs []AggCol
}

// SummarizeAll aggregates the whole input into at most one tuple (/.).
type SummarizeAll struct {
	Pos  lexer.Position
	In   RelExpr
	Aggs []AggCol
}

// NestBy partitions like summarize but keeps each group as a
// relation-valued attribute (/: keys > alias).
type NestBy struct {
	Pos   lexer.Position
	In    RelExpr
	Keys  []string
	Alias string
}

// SortKey is one sort key; Desc is the - suffix.
type SortKey struct {
	Attr string
	Desc bool
}

// Sort orders the input ($), leaving the relational world: the result is an
// ordered tuple sequence, not a relation.
type Sort struct {
	Pos  lexer.Position
	In   RelExpr
	Keys []SortKey
}

// Take returns the first N tuples of a sort (^).
type Take struct {
	Pos lexer.Position
	In  RelExpr
	N   int
}

func (*RelName) relNode()      {}
func (*Filter) relNode()       {}
func (*Project) relNode()      {}
func (*Join) relNode()         {}
func (*NestJoin) relNode()     {}
func (*Unnest) relNode()       {}
func (*Extend) relNode()       {}
func (*Rename) relNode()       {}
func (*SetOp) relNode()        {}
func (*Summarize) relNode()    {}
func (*SummarizeAll) relNode() {}
func (*NestBy) relNode()       {}
func (*Sort) relNode()         {}
func (*Take) relNode()         {}

func (n *RelName) Position() lexer.Position      { return n.Pos }
func (n *Filter) Position() lexer.Position       { return n.Pos }
func (n *Project) Position() lexer.Position      { return n.Pos }
func (n *Join) Position() lexer.Position         { return n.Pos }
func (n *NestJoin) Position() lexer.Position     { return n.Pos }
func (n *Unnest) Position() lexer.Position       { return n.Pos }
func (n *Extend) Position() lexer.Position       { return n.Pos }
func (n *Rename) Position() lexer.Position       { return n.Pos }
func (n *SetOp) Position() lexer.Position        { return n.Pos }
func (n *Summarize) Position() lexer.Position    { return n.Pos }
func (n *SummarizeAll) Position() lexer.Position { return n.Pos }
func (n *NestBy) Position() lexer.Position       { return n.Pos }
func (n *Sort) Position() lexer.Position         { return n.Pos }
func (n *Take) Position() lexer.Position         { return n.Pos }

// =============================================================================
// Statements
// =============================================================================

// AssignKind identifies the binding form of a statement.
type AssignKind int

const (
	AssignNone  AssignKind = iota // bare expression
	AssignBind                    // :=
	AssignUnion                   // |=
	AssignDiff                    // -=
)

// Statement is one line of driver input: an optional binding prefix and a
// relational chain.
type Statement struct {
	Pos    lexer.Position
	Assign AssignKind
	Name   string
	Expr   RelExpr
}
