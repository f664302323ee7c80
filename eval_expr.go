package relic

import (
	"github.com/shopspring/decimal"

	"github.com/rlch/relic/rel"
)

// Scalar and predicate evaluation. Attribute references resolve through a
// two-level scope: the current tuple first, the environment second. The
// environment fallback is what lets an aggregate reach a named relation
// from inside an extend.

// scope is the tuple-context resolution chain.
type scope struct {
	tuple *rel.Tuple
	env   *rel.Env
}

func (sc scope) lookup(name string) (rel.Value, bool) {
	if sc.tuple != nil {
		if v, ok := sc.tuple.Get(name); ok {
			return v, true
		}
	}

	if r, ok := sc.env.Get(name); ok {
		return rel.Rel(r), true
	}

	return rel.Value{}, false
}

// evalExpr evaluates a scalar expression against sc.
func (ev *Evaluator) evalExpr(e Expr, sc scope) (rel.Value, error) {
	switch n := e.(type) {
	case *Lit:
		return n.Val, nil
	case *AttrRef:
		return ev.evalAttrRef(n, sc)
	case *Arith:
		return ev.evalArith(n, sc)
	case *Ternary:
		return ev.evalTernary(n, sc)
	case *AggCall:
		return ev.evalScalarAgg(n, sc)
	case *FuncCall:
		return ev.evalFuncCall(n, sc)
	case *SetLit:
		return rel.Value{}, evalErr(n.Pos, &rel.TypeError{Msg: "set literal is only valid as the right side of = in a filter"})
	case *Subquery:
		return rel.Value{}, evalErr(n.Pos, &rel.TypeError{Msg: "subquery is only valid as the right side of = in a filter"})
	default:
		return rel.Value{}, evalErr(e.Position(), &rel.TypeError{Msg: "unsupported expression"})
	}
}

func (ev *Evaluator) evalAttrRef(n *AttrRef, sc scope) (rel.Value, error) {
	v, ok := sc.lookup(n.Parts[0])
	if !ok {
		return rel.Value{}, evalErr(n.Pos, &rel.NameError{Name: n.Parts[0], Kind: rel.NameAttribute})
	}

	if len(n.Parts) > 1 {
		return rel.Value{}, evalErr(n.Pos, &rel.TypeError{Msg: "attribute path " + n.Name() + " is only valid as an aggregate argument"})
	}

	return v, nil
}

func (ev *Evaluator) evalArith(n *Arith, sc scope) (rel.Value, error) {
	l, err := ev.evalExpr(n.L, sc)
	if err != nil {
		return rel.Value{}, err
	}

	r, err := ev.evalExpr(n.R, sc)
	if err != nil {
		return rel.Value{}, err
	}

	var v rel.Value

	switch n.Op {
	case "+":
		v, err = rel.Add(l, r)
	case "-":
		v, err = rel.Sub(l, r)
	case "*":
		v, err = rel.Mul(l, r)
	case "/":
		v, err = rel.Div(l, r)
	default:
		err = &rel.TypeError{Msg: "unknown operator " + n.Op}
	}

	if err != nil {
		return rel.Value{}, evalErr(n.Pos, err)
	}

	return v, nil
}

func (ev *Evaluator) evalTernary(n *Ternary, sc scope) (rel.Value, error) {
	pred, err := ev.compilePred(n.Cond)
	if err != nil {
		return rel.Value{}, err
	}

	ok, err := pred(sc)
	if err != nil {
		return rel.Value{}, err
	}

	if ok {
		return ev.evalExpr(n.Then, sc)
	}

	return ev.evalExpr(n.Else, sc)
}

func (ev *Evaluator) evalFuncCall(n *FuncCall, sc scope) (rel.Value, error) {
	fn, ok := ev.funcs.Lookup(n.Name)
	if !ok {
		return rel.Value{}, evalErr(n.Pos, &rel.NameError{Name: n.Name, Kind: rel.NameFunction})
	}

	args := make([]rel.Value, len(n.Args))

	for i, a := range n.Args {
		v, err := ev.evalExpr(a, sc)
		if err != nil {
			return rel.Value{}, err
		}

		args[i] = v
	}

	v, err := fn(args)
	if err != nil {
		return rel.Value{}, evalErr(n.Pos, err)
	}

	return v, nil
}

// evalScalarAgg evaluates an aggregate outside grouping: the argument is an
// attribute path whose prefix resolves to a relation, typically a
// relation-valued attribute bound by a nest join or nest-by.
func (ev *Evaluator) evalScalarAgg(n *AggCall, sc scope) (rel.Value, error) {
	ref, ok := n.Arg.(*AttrRef)
	if !ok || n.Arg == nil {
		return rel.Value{}, evalErr(n.Pos, &rel.TypeError{Msg: "aggregate " + n.Kind.Symbol() + " needs a relation argument outside grouping"})
	}

	if len(ref.Parts) > 2 {
		return rel.Value{}, evalErr(ref.Pos, &rel.TypeError{Msg: "attribute path " + ref.Name() + " nests too deeply"})
	}

	v, found := sc.lookup(ref.Parts[0])
	if !found {
		return rel.Value{}, evalErr(ref.Pos, &rel.NameError{Name: ref.Parts[0], Kind: rel.NameAttribute})
	}

	if v.Kind() != rel.KindRelation {
		return rel.Value{}, evalErr(ref.Pos, &rel.TypeError{Msg: ref.Parts[0] + " is not a relation"})
	}

	r := v.AsRelation()

	if n.Kind == AggCount && len(ref.Parts) == 1 {
		return rel.Int(int64(r.Len())), nil
	}

	if len(ref.Parts) < 2 {
		return rel.Value{}, evalErr(ref.Pos, &rel.TypeError{Msg: "aggregate " + n.Kind.Symbol() + " needs an attribute of " + ref.Parts[0]})
	}

	attr := ref.Parts[1]
	if !r.HasAttr(attr) {
		return rel.Value{}, evalErr(ref.Pos, &rel.NameError{Name: attr, Kind: rel.NameAttribute})
	}

	values := make([]rel.Value, 0, r.Len())

	for _, t := range r.Tuples() {
		av, _ := t.Get(attr)
		values = append(values, av)
	}

	return foldAgg(n.Kind, values)
}

// evalGroupExpr evaluates a summarize expression over a group. Aggregate
// calls fold the group; attribute references see the grouping keys; plain
// arithmetic and function calls compose around both.
func (ev *Evaluator) evalGroupExpr(e Expr, group []rel.Tuple, sc scope) (rel.Value, error) {
	switch n := e.(type) {
	case *AggCall:
		return ev.evalGroupAgg(n, group, sc)
	case *Arith:
		l, err := ev.evalGroupExpr(n.L, group, sc)
		if err != nil {
			return rel.Value{}, err
		}

		r, err := ev.evalGroupExpr(n.R, group, sc)
		if err != nil {
			return rel.Value{}, err
		}

		return ev.evalArith(&Arith{Pos: n.Pos, Op: n.Op, L: &Lit{Pos: n.Pos, Val: l}, R: &Lit{Pos: n.Pos, Val: r}}, sc)
	case *FuncCall:
		args := make([]Expr, len(n.Args))

		for i, a := range n.Args {
			v, err := ev.evalGroupExpr(a, group, sc)
			if err != nil {
				return rel.Value{}, err
			}

			args[i] = &Lit{Pos: a.Position(), Val: v}
		}

		return ev.evalFuncCall(&FuncCall{Pos: n.Pos, Name: n.Name, Args: args}, sc)
	default:
		return ev.evalExpr(e, sc)
	}
}

func (ev *Evaluator) evalGroupAgg(n *AggCall, group []rel.Tuple, sc scope) (rel.Value, error) {
	if n.Arg == nil {
		if n.Kind != AggCount {
			return rel.Value{}, evalErr(n.Pos, &rel.TypeError{Msg: "aggregate " + n.Kind.Symbol() + " needs an argument"})
		}

		return rel.Int(int64(len(group))), nil
	}

	values := make([]rel.Value, 0, len(group))

	for i := range group {
		v, err := ev.evalExpr(n.Arg, scope{tuple: &group[i], env: ev.env})
		if err != nil {
			return rel.Value{}, err
		}

		values = append(values, v)
	}

	return foldAgg(n.Kind, values)
}

// foldAgg folds values under an aggregate. Over the empty input count, sum,
// and mean are zero by convention; min and max are a domain error.
func foldAgg(kind AggKind, values []rel.Value) (rel.Value, error) {
	switch kind {
	case AggCount:
		return rel.Int(int64(len(values))), nil
	case AggSum:
		return sumValues(values)
	case AggMin, AggMax:
		if len(values) == 0 {
			return rel.Value{}, &rel.DomainError{Msg: kind.Symbol() + " over empty input"}
		}

		best := values[0]

		for _, v := range values[1:] {
			c, err := v.Compare(best)
			if err != nil {
				return rel.Value{}, err
			}

			if (kind == AggMax && c > 0) || (kind == AggMin && c < 0) {
				best = v
			}
		}

		return best, nil
	case AggMean:
		return meanValues(values)
	default:
		return rel.Value{}, &rel.TypeError{Msg: "unknown aggregate"}
	}
}

func sumValues(values []rel.Value) (rel.Value, error) {
	var (
		intSum int64
		decSum decimal.Decimal
		sawDec bool
	)

	for _, v := range values {
		switch v.Kind() {
		case rel.KindInt:
			intSum += v.AsInt()
		case rel.KindDecimal:
			sawDec = true
			decSum = decSum.Add(v.AsDecimal())
		default:
			return rel.Value{}, &rel.TypeError{Msg: "aggregate on non-numeric " + v.Kind().String() + " value"}
		}
	}

	if sawDec {
		return rel.Dec(decSum.Add(decimal.NewFromInt(intSum))), nil
	}

	return rel.Int(intSum), nil
}

// meanValues averages a numeric group. All-integer groups use floor
// division; any decimal promotes the whole group to decimal.
func meanValues(values []rel.Value) (rel.Value, error) {
	if len(values) == 0 {
		return rel.Int(0), nil
	}

	sum, err := sumValues(values)
	if err != nil {
		return rel.Value{}, err
	}

	if sum.Kind() == rel.KindInt {
		return rel.Int(rel.MeanInt(sum.AsInt(), int64(len(values)))), nil
	}

	return rel.Dec(rel.MeanDec(sum.AsDecimal(), int64(len(values)))), nil
}

// =============================================================================
// Predicates
// =============================================================================

// predFn is a compiled predicate: constant right-hand sides are already
// evaluated, set literals hashed, and subqueries materialized.
type predFn func(sc scope) (bool, error)

func (ev *Evaluator) compilePred(p Pred) (predFn, error) {
	switch n := p.(type) {
	case *And:
		l, err := ev.compilePred(n.L)
		if err != nil {
			return nil, err
		}

		r, err := ev.compilePred(n.R)
		if err != nil {
			return nil, err
		}

		return func(sc scope) (bool, error) {
			ok, err := l(sc)
			if err != nil || !ok {
				return false, err
			}

			return r(sc)
		}, nil
	case *Or:
		l, err := ev.compilePred(n.L)
		if err != nil {
			return nil, err
		}

		r, err := ev.compilePred(n.R)
		if err != nil {
			return nil, err
		}

		return func(sc scope) (bool, error) {
			ok, err := l(sc)
			if err != nil || ok {
				return ok, err
			}

			return r(sc)
		}, nil
	case *Cmp:
		return ev.compileCmp(n)
	default:
		return nil, evalErr(p.Position(), &rel.TypeError{Msg: "unsupported predicate"})
	}
}

func (ev *Evaluator) compileCmp(n *Cmp) (predFn, error) {
	switch r := n.R.(type) {
	case *SetLit:
		members := make(map[string]bool, len(r.Elems))
		for _, v := range r.Elems {
			members[memberKey(v)] = true
		}

		return func(sc scope) (bool, error) {
			lv, err := ev.evalExpr(n.L, sc)
			if err != nil {
				return false, err
			}

			return members[memberKey(lv)], nil
		}, nil
	case *Subquery:
		relation, err := ev.evalRelation(r.Rel, r.Pos)
		if err != nil {
			return nil, err
		}

		schema := relation.Schema()
		if len(schema) != 1 {
			return nil, evalErr(r.Pos, &rel.SchemaError{Msg: "subquery membership requires a single-attribute relation"})
		}

		members := make(map[string]bool, relation.Len())

		for _, t := range relation.Tuples() {
			v, _ := t.Get(schema[0])
			members[memberKey(v)] = true
		}

		return func(sc scope) (bool, error) {
			lv, err := ev.evalExpr(n.L, sc)
			if err != nil {
				return false, err
			}

			return members[memberKey(lv)], nil
		}, nil
	}

	return func(sc scope) (bool, error) {
		lv, err := ev.evalExpr(n.L, sc)
		if err != nil {
			return false, err
		}

		rv, err := ev.evalExpr(n.R, sc)
		if err != nil {
			return false, err
		}

		switch n.Op {
		case "=":
			eq, err := valueEq(lv, rv)
			if err != nil {
				return false, evalErr(n.Pos, err)
			}

			return eq, nil
		case "!=":
			eq, err := valueEq(lv, rv)
			if err != nil {
				return false, evalErr(n.Pos, err)
			}

			return !eq, nil
		default:
			c, err := lv.Compare(rv)
			if err != nil {
				return false, evalErr(n.Pos, err)
			}

			switch n.Op {
			case "<":
				return c < 0, nil
			case "<=":
				return c <= 0, nil
			case ">":
				return c > 0, nil
			case ">=":
				return c >= 0, nil
			default:
				return false, evalErr(n.Pos, &rel.TypeError{Msg: "unknown comparison " + n.Op})
			}
		}
	}, nil
}

// valueEq is = semantics: numeric values compare across int and decimal;
// any other cross-domain pair is a type error.
func valueEq(a, b rel.Value) (bool, error) {
	if a.IsNumeric() && b.IsNumeric() {
		c, err := a.Compare(b)
		if err != nil {
			return false, err
		}

		return c == 0, nil
	}

	if a.Kind() != b.Kind() {
		return false, &rel.TypeError{Msg: "cannot compare " + a.Kind().String() + " with " + b.Kind().String()}
	}

	return a.Equal(b), nil
}

// memberKey canonicalizes a value for hashed membership so that integer 5
// and decimal 5.0 land on the same key.
func memberKey(v rel.Value) string {
	if v.IsNumeric() {
		return "n" + v.Decimal().String()
	}

	return v.Key()
}
