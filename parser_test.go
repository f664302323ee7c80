package relic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseChainShapes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		verify func(t *testing.T, expr RelExpr)
	}{
		{
			name:  "bare name",
			input: "E",
			verify: func(t *testing.T, expr RelExpr) {
				t.Helper()
				n, ok := expr.(*RelName)
				require.True(t, ok)
				assert.Equal(t, "E", n.Name)
			},
		},
		{
			name:  "filter then project",
			input: "E ? salary > 50000 # [name salary]",
			verify: func(t *testing.T, expr RelExpr) {
				t.Helper()
				p, ok := expr.(*Project)
				require.True(t, ok)
				assert.Equal(t, []string{"name", "salary"}, p.Attrs)
				assert.False(t, p.Remove)

				f, ok := p.In.(*Filter)
				require.True(t, ok)
				assert.False(t, f.Negate)

				cmp, ok := f.Pred.(*Cmp)
				require.True(t, ok)
				assert.Equal(t, ">", cmp.Op)
			},
		},
		{
			name:  "negated filter",
			input: "E ?! dept_id = 10",
			verify: func(t *testing.T, expr RelExpr) {
				t.Helper()
				f, ok := expr.(*Filter)
				require.True(t, ok)
				assert.True(t, f.Negate)
			},
		},
		{
			name:  "remove single attribute elides brackets",
			input: "E #! emp_id",
			verify: func(t *testing.T, expr RelExpr) {
				t.Helper()
				p, ok := expr.(*Project)
				require.True(t, ok)
				assert.True(t, p.Remove)
				assert.Equal(t, []string{"emp_id"}, p.Attrs)
			},
		},
		{
			name:  "natural join takes a bare name",
			input: "E * D",
			verify: func(t *testing.T, expr RelExpr) {
				t.Helper()
				j, ok := expr.(*Join)
				require.True(t, ok)
				assert.Equal(t, "D", j.Right)
			},
		},
		{
			name:  "nest join with alias",
			input: "E *: Phone > phones",
			verify: func(t *testing.T, expr RelExpr) {
				t.Helper()
				j, ok := expr.(*NestJoin)
				require.True(t, ok)
				assert.Equal(t, "Phone", j.Right)
				assert.Equal(t, "phones", j.Alias)
			},
		},
		{
			name:  "unnest",
			input: "N <: phones",
			verify: func(t *testing.T, expr RelExpr) {
				t.Helper()
				u, ok := expr.(*Unnest)
				require.True(t, ok)
				assert.Equal(t, "phones", u.Alias)
			},
		},
		{
			name:  "extend with bracketed columns",
			input: "E + [bonus: salary / 10 senior: ? salary > 70000 true false]",
			verify: func(t *testing.T, expr RelExpr) {
				t.Helper()
				e, ok := expr.(*Extend)
				require.True(t, ok)
				require.Len(t, e.Cols, 2)
				assert.Equal(t, "bonus", e.Cols[0].Name)
				assert.Equal(t, "senior", e.Cols[1].Name)

				_, ok = e.Cols[0].Expr.(*Arith)
				assert.True(t, ok)

				_, ok = e.Cols[1].Expr.(*Ternary)
				assert.True(t, ok)
			},
		},
		{
			name:  "rename pairs",
			input: "ContractorPay @ [pay > salary]",
			verify: func(t *testing.T, expr RelExpr) {
				t.Helper()
				r, ok := expr.(*Rename)
				require.True(t, ok)
				require.Len(t, r.Pairs, 1)
				assert.Equal(t, "pay", r.Pairs[0].From)
				assert.Equal(t, "salary", r.Pairs[0].To)
			},
		},
		{
			name:  "difference with parenthesized right operand",
			input: "E # emp_id - (Phone # emp_id)",
			verify: func(t *testing.T, expr RelExpr) {
				t.Helper()
				s, ok := expr.(*SetOp)
				require.True(t, ok)
				assert.Equal(t, SetDiff, s.Kind)

				_, ok = s.R.(*Project)
				assert.True(t, ok)
			},
		},
		{
			name:  "summarize keys and aggregates",
			input: "E / dept_id [n: #. avg: %. salary]",
			verify: func(t *testing.T, expr RelExpr) {
				t.Helper()
				s, ok := expr.(*Summarize)
				require.True(t, ok)
				assert.Equal(t, []string{"dept_id"}, s.Keys)
				require.Len(t, s.Aggs, 2)

				count, ok := s.Aggs[0].Expr.(*AggCall)
				require.True(t, ok)
				assert.Equal(t, AggCount, count.Kind)
				assert.Nil(t, count.Arg)

				mean, ok := s.Aggs[1].Expr.(*AggCall)
				require.True(t, ok)
				assert.Equal(t, AggMean, mean.Kind)
				require.NotNil(t, mean.Arg)
			},
		},
		{
			name:  "summarize all",
			input: "E /. [n: #. total: +. salary]",
			verify: func(t *testing.T, expr RelExpr) {
				t.Helper()
				s, ok := expr.(*SummarizeAll)
				require.True(t, ok)
				require.Len(t, s.Aggs, 2)
			},
		},
		{
			name:  "nest by",
			input: "E /: dept_id > team",
			verify: func(t *testing.T, expr RelExpr) {
				t.Helper()
				n, ok := expr.(*NestBy)
				require.True(t, ok)
				assert.Equal(t, []string{"dept_id"}, n.Keys)
				assert.Equal(t, "team", n.Alias)
			},
		},
		{
			name:  "sort and take",
			input: "E $ [salary- name] ^ 3",
			verify: func(t *testing.T, expr RelExpr) {
				t.Helper()
				tk, ok := expr.(*Take)
				require.True(t, ok)
				assert.Equal(t, 3, tk.N)

				s, ok := tk.In.(*Sort)
				require.True(t, ok)
				require.Len(t, s.Keys, 2)
				assert.True(t, s.Keys[0].Desc)
				assert.False(t, s.Keys[1].Desc)
			},
		},
		{
			name:  "parenthesized chain as atom",
			input: "(E ? dept_id = 10) * D",
			verify: func(t *testing.T, expr RelExpr) {
				t.Helper()
				j, ok := expr.(*Join)
				require.True(t, ok)

				_, ok = j.In.(*Filter)
				assert.True(t, ok)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			expr, err := Parse(tt.input)
			require.NoError(t, err)
			tt.verify(t, expr)
		})
	}
}

// The same symbols mean different things by context: * and / are join and
// summarize in a chain, multiply and divide inside a computation.
func TestParseContextSensitivity(t *testing.T) {
	t.Parallel()

	expr, err := Parse("E + [x: salary * 2 y: salary / 4]")
	require.NoError(t, err)

	e, ok := expr.(*Extend)
	require.True(t, ok)

	mul, ok := e.Cols[0].Expr.(*Arith)
	require.True(t, ok)
	assert.Equal(t, "*", mul.Op)

	div, ok := e.Cols[1].Expr.(*Arith)
	require.True(t, ok)
	assert.Equal(t, "/", div.Op)

	expr, err = Parse("E * D / dept_id [n: #.]")
	require.NoError(t, err)

	s, ok := expr.(*Summarize)
	require.True(t, ok)

	_, ok = s.In.(*Join)
	assert.True(t, ok)
}

func TestParseArithmeticPrecedence(t *testing.T) {
	t.Parallel()

	expr, err := Parse("E + x: a + b * c")
	require.NoError(t, err)

	e := expr.(*Extend)

	add, ok := e.Cols[0].Expr.(*Arith)
	require.True(t, ok)
	assert.Equal(t, "+", add.Op)

	mul, ok := add.R.(*Arith)
	require.True(t, ok)
	assert.Equal(t, "*", mul.Op)

	// Parentheses override.
	expr, err = Parse("E + x: (a + b) * c")
	require.NoError(t, err)

	e = expr.(*Extend)

	mul, ok = e.Cols[0].Expr.(*Arith)
	require.True(t, ok)
	assert.Equal(t, "*", mul.Op)

	add, ok = mul.L.(*Arith)
	require.True(t, ok)
	assert.Equal(t, "+", add.Op)
}

func TestParseFunctionVsAttribute(t *testing.T) {
	t.Parallel()

	expr, err := Parse("E + [r: round(salary, 2) a: salary]")
	require.NoError(t, err)

	e := expr.(*Extend)

	call, ok := e.Cols[0].Expr.(*FuncCall)
	require.True(t, ok)
	assert.Equal(t, "round", call.Name)
	assert.Len(t, call.Args, 2)

	_, ok = e.Cols[1].Expr.(*AttrRef)
	assert.True(t, ok)
}

func TestParsePredicates(t *testing.T) {
	t.Parallel()

	expr, err := Parse("E ? (dept_id = 10 & salary > 70000 | dept_id = 20)")
	require.NoError(t, err)

	f := expr.(*Filter)

	or, ok := f.Pred.(*Or)
	require.True(t, ok)

	_, ok = or.L.(*And)
	assert.True(t, ok)

	// Set literal membership.
	expr, err = Parse("E ? dept_id = {10, 20}")
	require.NoError(t, err)

	cmp := expr.(*Filter).Pred.(*Cmp)

	set, ok := cmp.R.(*SetLit)
	require.True(t, ok)
	assert.Len(t, set.Elems, 2)

	// Subquery membership.
	expr, err = Parse("E ? emp_id = (Phone # emp_id)")
	require.NoError(t, err)

	cmp = expr.(*Filter).Pred.(*Cmp)

	_, ok = cmp.R.(*Subquery)
	assert.True(t, ok)
}

func TestParseAggregateOverPath(t *testing.T) {
	t.Parallel()

	expr, err := Parse("E /: dept_id > team + [top: >. team.salary]")
	require.NoError(t, err)

	e, ok := expr.(*Extend)
	require.True(t, ok)

	agg, ok := e.Cols[0].Expr.(*AggCall)
	require.True(t, ok)
	assert.Equal(t, AggMax, agg.Kind)

	ref, ok := agg.Arg.(*AttrRef)
	require.True(t, ok)
	assert.Equal(t, []string{"team", "salary"}, ref.Parts)
}

func TestParseStatements(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		assign AssignKind
		bound  string
	}{
		{"bare chain", "E ? x = 1", AssignNone, ""},
		{"bind", "Big := E ? salary > 50000", AssignBind, "Big"},
		{"union assign", "All |= NewRows", AssignUnion, "All"},
		{"difference assign", "All -= OldRows", AssignDiff, "All"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			stmt, err := ParseStatement(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.assign, stmt.Assign)
			assert.Equal(t, tt.bound, stmt.Name)
			assert.NotNil(t, stmt.Expr)
		})
	}
}

func TestParseErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
	}{
		{"empty input", ""},
		{"dangling operator", "E ?"},
		{"take without sort", "E ^ 3"},
		{"join right operand must be a name", "E * (D ? x = 1)"},
		{"set op right operand", "E - 42"},
		{"missing aggregate brackets", "E /. n: #."},
		{"empty attribute brackets", "E # []"},
		{"reserved operator", "E ~ D"},
		{"reserved match assign", "x ?= E"},
		{"trailing garbage", "E ? x = 1 )"},
		{"alias required for nest join", "E *: Phone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := ParseStatement(tt.input)
			require.Error(t, err)

			var parseErr *ParseError
			assert.ErrorAs(t, err, &parseErr)
		})
	}
}

func TestParseErrorPositions(t *testing.T) {
	t.Parallel()

	_, err := Parse("E ? salary >")

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, 1, parseErr.Pos.Line)
}

func TestParseInvalidRightOperandMessage(t *testing.T) {
	t.Parallel()

	_, err := Parse("E | 42")

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Contains(t, parseErr.Error(), "invalid right operand")
}
