package relic

import (
	"sort"

	"github.com/alecthomas/participle/v2/lexer"

	"github.com/rlch/relic/rel"
)

// The executor is a tree-walking evaluator. Each relational node evaluates
// its children and applies set-based operator semantics. Evaluation is
// eager, single-threaded, and never mutates the environment.

// Evaluate evaluates a relational expression against env using the default
// function registry. It is purely semantic; parse first.
func Evaluate(expr RelExpr, env *rel.Env) (rel.Result, error) {
	return NewEvaluator(env).Eval(expr)
}

// Run parses and evaluates source against env: the compile-and-eval
// convenience.
func Run(source string, env *rel.Env) (rel.Result, error) {
	expr, err := Parse(source)
	if err != nil {
		return nil, err
	}

	return Evaluate(expr, env)
}

// Evaluator evaluates relational expressions against one environment. The
// zero value is not usable; construct with NewEvaluator.
type Evaluator struct {
	env   *rel.Env
	funcs *Registry
}

// NewEvaluator builds an evaluator over env with the default registry.
func NewEvaluator(env *rel.Env) *Evaluator {
	return &Evaluator{env: env, funcs: DefaultRegistry()}
}

// WithRegistry replaces the function registry.
func (ev *Evaluator) WithRegistry(r *Registry) *Evaluator {
	ev.funcs = r

	return ev
}

// Eval evaluates expr to a relation or an ordered tuple sequence.
func (ev *Evaluator) Eval(expr RelExpr) (rel.Result, error) {
	switch n := expr.(type) {
	case *RelName:
		r, ok := ev.env.Get(n.Name)
		if !ok {
			return nil, evalErr(n.Pos, &rel.NameError{Name: n.Name, Kind: rel.NameRelation})
		}

		return r, nil
	case *Filter:
		return ev.evalFilter(n)
	case *Project:
		return ev.evalProject(n)
	case *Join:
		return ev.evalJoin(n)
	case *NestJoin:
		return ev.evalNestJoin(n)
	case *Unnest:
		return ev.evalUnnest(n)
	case *Extend:
		return ev.evalExtend(n)
	case *Rename:
		return ev.evalRename(n)
	case *SetOp:
		return ev.evalSetOp(n)
	case *Summarize:
		return ev.evalSummarize(n)
	case *SummarizeAll:
		return ev.evalSummarizeAll(n)
	case *NestBy:
		return ev.evalNestBy(n)
	case *Sort:
		return ev.evalSort(n)
	case *Take:
		return ev.evalTake(n)
	default:
		return nil, evalErr(expr.Position(), &rel.TypeError{Msg: "unsupported expression"})
	}
}

// evalRelation evaluates in and enforces the type boundary: every
// relational operator takes a relation, never ordered tuples.
func (ev *Evaluator) evalRelation(in RelExpr, at lexer.Position) (*rel.Relation, error) {
	res, err := ev.Eval(in)
	if err != nil {
		return nil, err
	}

	r, ok := res.(*rel.Relation)
	if !ok {
		return nil, evalErr(at, &rel.BoundaryError{Msg: "relational operator applied to ordered tuples"})
	}

	return r, nil
}

func (ev *Evaluator) evalFilter(n *Filter) (rel.Result, error) {
	in, err := ev.evalRelation(n.In, n.Pos)
	if err != nil {
		return nil, err
	}

	pred, err := ev.compilePred(n.Pred)
	if err != nil {
		return nil, err
	}

	b := rel.NewBuilder(in.Schema())

	for _, t := range in.Tuples() {
		ok, err := pred(ev.tupleScope(t))
		if err != nil {
			return nil, err
		}

		if ok != n.Negate {
			if err := b.Add(t); err != nil {
				return nil, evalErr(n.Pos, err)
			}
		}
	}

	return b.Relation(), nil
}

func (ev *Evaluator) evalProject(n *Project) (rel.Result, error) {
	in, err := ev.evalRelation(n.In, n.Pos)
	if err != nil {
		return nil, err
	}

	for _, a := range n.Attrs {
		if !in.HasAttr(a) {
			return nil, evalErr(n.Pos, &rel.SchemaError{Msg: "cannot project absent attribute " + a})
		}
	}

	keep := n.Attrs
	if n.Remove {
		removed := make(map[string]bool, len(n.Attrs))
		for _, a := range n.Attrs {
			removed[a] = true
		}

		keep = nil

		for _, a := range in.Schema() {
			if !removed[a] {
				keep = append(keep, a)
			}
		}
	}

	b := rel.NewBuilder(keep)

	for _, t := range in.Tuples() {
		pt, _ := t.Project(keep)
		if err := b.Add(pt); err != nil {
			return nil, evalErr(n.Pos, err)
		}
	}

	return b.Relation(), nil
}

func (ev *Evaluator) evalJoin(n *Join) (rel.Result, error) {
	left, err := ev.evalRelation(n.In, n.Pos)
	if err != nil {
		return nil, err
	}

	right, ok := ev.env.Get(n.Right)
	if !ok {
		return nil, evalErr(n.Pos, &rel.NameError{Name: n.Right, Kind: rel.NameRelation})
	}

	shared := intersectNames(left.Schema(), right.Schema())
	out := unionNames(left.Schema(), right.Schema())

	index := indexBy(right, shared)
	b := rel.NewBuilder(out)

	for _, l := range left.Tuples() {
		lk, _ := l.Project(shared)
		for _, r := range index[lk.Key()] {
			if err := b.Add(l.Merge(r)); err != nil {
				return nil, evalErr(n.Pos, err)
			}
		}
	}

	return b.Relation(), nil
}

func (ev *Evaluator) evalNestJoin(n *NestJoin) (rel.Result, error) {
	left, err := ev.evalRelation(n.In, n.Pos)
	if err != nil {
		return nil, err
	}

	right, ok := ev.env.Get(n.Right)
	if !ok {
		return nil, evalErr(n.Pos, &rel.NameError{Name: n.Right, Kind: rel.NameRelation})
	}

	if left.HasAttr(n.Alias) {
		return nil, evalErr(n.Pos, &rel.SchemaError{Msg: "alias " + n.Alias + " collides with an existing attribute"})
	}

	shared := intersectNames(left.Schema(), right.Schema())
	inner := subtractNames(right.Schema(), left.Schema())

	index := indexBy(right, shared)
	b := rel.NewBuilder(append(left.Schema(), n.Alias))

	// Tuples without matches keep the empty relation over the inner
	// schema; nothing is dropped.
	for _, l := range left.Tuples() {
		lk, _ := l.Project(shared)
		ib := rel.NewBuilder(inner)

		for _, r := range index[lk.Key()] {
			pr, _ := r.Project(inner)
			if err := ib.Add(pr); err != nil {
				return nil, evalErr(n.Pos, err)
			}
		}

		if err := b.Add(l.With(n.Alias, rel.Rel(ib.Relation()))); err != nil {
			return nil, evalErr(n.Pos, err)
		}
	}

	return b.Relation(), nil
}

func (ev *Evaluator) evalUnnest(n *Unnest) (rel.Result, error) {
	in, err := ev.evalRelation(n.In, n.Pos)
	if err != nil {
		return nil, err
	}

	if !in.HasAttr(n.Alias) {
		return nil, evalErr(n.Pos, &rel.SchemaError{Msg: "cannot unnest absent attribute " + n.Alias})
	}

	outer := subtractNames(in.Schema(), []string{n.Alias})

	tuples := in.Tuples()
	if len(tuples) == 0 {
		return rel.Empty(outer), nil
	}

	first, _ := tuples[0].Get(n.Alias)
	if first.Kind() != rel.KindRelation {
		return nil, evalErr(n.Pos, &rel.TypeError{Msg: "cannot unnest non-relation attribute " + n.Alias})
	}

	innerSchema := first.AsRelation().Schema()

	for _, a := range innerSchema {
		for _, o := range outer {
			if a == o {
				return nil, evalErr(n.Pos, &rel.SchemaError{Msg: "unnest of " + n.Alias + " collides on attribute " + a})
			}
		}
	}

	b := rel.NewBuilder(append(outer, innerSchema...))

	for _, t := range tuples {
		v, _ := t.Get(n.Alias)
		if v.Kind() != rel.KindRelation {
			return nil, evalErr(n.Pos, &rel.TypeError{Msg: "cannot unnest non-relation attribute " + n.Alias})
		}

		base := t.Drop(n.Alias)

		for _, it := range v.AsRelation().Tuples() {
			if err := b.Add(base.Merge(it)); err != nil {
				return nil, evalErr(n.Pos, err)
			}
		}
	}

	return b.Relation(), nil
}

func (ev *Evaluator) evalExtend(n *Extend) (rel.Result, error) {
	in, err := ev.evalRelation(n.In, n.Pos)
	if err != nil {
		return nil, err
	}

	schema := in.Schema()
	seen := make(map[string]bool, len(n.Cols))

	for _, c := range n.Cols {
		if in.HasAttr(c.Name) || seen[c.Name] {
			return nil, evalErr(c.Pos, &rel.SchemaError{Msg: "extended attribute " + c.Name + " collides with an existing one"})
		}

		seen[c.Name] = true
		schema = append(schema, c.Name)
	}

	b := rel.NewBuilder(schema)

	// All columns evaluate against the original tuple, not sequentially.
	for _, t := range in.Tuples() {
		out := t

		for _, c := range n.Cols {
			v, err := ev.evalExpr(c.Expr, ev.tupleScope(t))
			if err != nil {
				return nil, evalErr(c.Pos, err)
			}

			out = out.With(c.Name, v)
		}

		if err := b.Add(out); err != nil {
			return nil, evalErr(n.Pos, err)
		}
	}

	return b.Relation(), nil
}

func (ev *Evaluator) evalRename(n *Rename) (rel.Result, error) {
	in, err := ev.evalRelation(n.In, n.Pos)
	if err != nil {
		return nil, err
	}

	subst := make(map[string]string, len(n.Pairs))

	for _, pr := range n.Pairs {
		if !in.HasAttr(pr.From) {
			return nil, evalErr(pr.Pos, &rel.SchemaError{Msg: "cannot rename absent attribute " + pr.From})
		}

		if _, dup := subst[pr.From]; dup {
			return nil, evalErr(pr.Pos, &rel.SchemaError{Msg: "attribute " + pr.From + " renamed twice"})
		}

		subst[pr.From] = pr.To
	}

	// All pairs apply as one simultaneous substitution, so swaps are legal.
	var schema []string

	seen := map[string]bool{}

	for _, a := range in.Schema() {
		name := a
		if to, ok := subst[a]; ok {
			name = to
		}

		if seen[name] {
			return nil, evalErr(n.Pos, &rel.SchemaError{Msg: "rename target " + name + " collides"})
		}

		seen[name] = true
		schema = append(schema, name)
	}

	b := rel.NewBuilder(schema)

	for _, t := range in.Tuples() {
		m := make(map[string]rel.Value, t.Len())

		for _, a := range t.Names() {
			v, _ := t.Get(a)

			name := a
			if to, ok := subst[a]; ok {
				name = to
			}

			m[name] = v
		}

		if err := b.Add(rel.NewTuple(m)); err != nil {
			return nil, evalErr(n.Pos, err)
		}
	}

	return b.Relation(), nil
}

func (ev *Evaluator) evalSetOp(n *SetOp) (rel.Result, error) {
	left, err := ev.evalRelation(n.L, n.Pos)
	if err != nil {
		return nil, err
	}

	right, err := ev.evalRelation(n.R, n.Pos)
	if err != nil {
		return nil, err
	}

	if !left.SameSchema(right) {
		return nil, evalErr(n.Pos, &rel.SchemaError{Msg: n.Kind.Symbol() + " requires identical schemas"})
	}

	b := rel.NewBuilder(left.Schema())

	add := func(t rel.Tuple) error {
		if err := b.Add(t); err != nil {
			return evalErr(n.Pos, err)
		}

		return nil
	}

	switch n.Kind {
	case SetUnion:
		for _, t := range left.Tuples() {
			if err := add(t); err != nil {
				return nil, err
			}
		}

		for _, t := range right.Tuples() {
			if err := add(t); err != nil {
				return nil, err
			}
		}
	case SetDiff:
		for _, t := range left.Tuples() {
			if !right.Has(t) {
				if err := add(t); err != nil {
					return nil, err
				}
			}
		}
	case SetIntersect:
		for _, t := range left.Tuples() {
			if right.Has(t) {
				if err := add(t); err != nil {
					return nil, err
				}
			}
		}
	}

	return b.Relation(), nil
}

func (ev *Evaluator) evalSummarize(n *Summarize) (rel.Result, error) {
	in, err := ev.evalRelation(n.In, n.Pos)
	if err != nil {
		return nil, err
	}

	for _, k := range n.Keys {
		if !in.HasAttr(k) {
			return nil, evalErr(n.Pos, &rel.SchemaError{Msg: "cannot group by absent attribute " + k})
		}
	}

	schema, err := aggSchema(n.Keys, n.Aggs)
	if err != nil {
		return nil, evalErr(n.Pos, err)
	}

	keys, groups := partition(in, n.Keys)
	b := rel.NewBuilder(schema)

	for i, keyTuple := range keys {
		out := keyTuple

		for _, a := range n.Aggs {
			v, err := ev.evalGroupExpr(a.Expr, groups[i], ev.tupleScope(keyTuple))
			if err != nil {
				return nil, evalErr(a.Pos, err)
			}

			out = out.With(a.Name, v)
		}

		if err := b.Add(out); err != nil {
			return nil, evalErr(n.Pos, err)
		}
	}

	return b.Relation(), nil
}

func (ev *Evaluator) evalSummarizeAll(n *SummarizeAll) (rel.Result, error) {
	in, err := ev.evalRelation(n.In, n.Pos)
	if err != nil {
		return nil, err
	}

	schema, err := aggSchema(nil, n.Aggs)
	if err != nil {
		return nil, evalErr(n.Pos, err)
	}

	b := rel.NewBuilder(schema)
	out := rel.NewTuple(nil)

	for _, a := range n.Aggs {
		v, err := ev.evalGroupExpr(a.Expr, in.Tuples(), scope{env: ev.env})
		if err != nil {
			return nil, evalErr(a.Pos, err)
		}

		out = out.With(a.Name, v)
	}

	if err := b.Add(out); err != nil {
		return nil, evalErr(n.Pos, err)
	}

	return b.Relation(), nil
}

func (ev *Evaluator) evalNestBy(n *NestBy) (rel.Result, error) {
	in, err := ev.evalRelation(n.In, n.Pos)
	if err != nil {
		return nil, err
	}

	for _, k := range n.Keys {
		if !in.HasAttr(k) {
			return nil, evalErr(n.Pos, &rel.SchemaError{Msg: "cannot group by absent attribute " + k})
		}

		if k == n.Alias {
			return nil, evalErr(n.Pos, &rel.SchemaError{Msg: "alias " + n.Alias + " collides with a grouping key"})
		}
	}

	inner := subtractNames(in.Schema(), n.Keys)
	keys, groups := partition(in, n.Keys)
	b := rel.NewBuilder(append(append([]string{}, n.Keys...), n.Alias))

	for i, keyTuple := range keys {
		ib := rel.NewBuilder(inner)

		for _, t := range groups[i] {
			pt, _ := t.Project(inner)
			if err := ib.Add(pt); err != nil {
				return nil, evalErr(n.Pos, err)
			}
		}

		if err := b.Add(keyTuple.With(n.Alias, rel.Rel(ib.Relation()))); err != nil {
			return nil, evalErr(n.Pos, err)
		}
	}

	return b.Relation(), nil
}

func (ev *Evaluator) evalSort(n *Sort) (rel.Result, error) {
	in, err := ev.evalRelation(n.In, n.Pos)
	if err != nil {
		return nil, err
	}

	for _, k := range n.Keys {
		if !in.HasAttr(k.Attr) {
			return nil, evalErr(n.Pos, &rel.SchemaError{Msg: "cannot sort by absent attribute " + k.Attr})
		}
	}

	// Canonical order in, so equal-key runs have a deterministic tie-break.
	ts := in.Tuples()

	var sortErr error

	sort.SliceStable(ts, func(i, j int) bool {
		if sortErr != nil {
			return false
		}

		for _, k := range n.Keys {
			a, _ := ts[i].Get(k.Attr)
			b, _ := ts[j].Get(k.Attr)

			c, err := a.Compare(b)
			if err != nil {
				sortErr = err

				return false
			}

			if c == 0 {
				continue
			}

			if k.Desc {
				return c > 0
			}

			return c < 0
		}

		return false
	})

	if sortErr != nil {
		return nil, evalErr(n.Pos, sortErr)
	}

	return rel.NewOrderedTuples(in.Schema(), ts), nil
}

func (ev *Evaluator) evalTake(n *Take) (rel.Result, error) {
	res, err := ev.Eval(n.In)
	if err != nil {
		return nil, err
	}

	ot, ok := res.(*rel.OrderedTuples)
	if !ok {
		return nil, evalErr(n.Pos, &rel.BoundaryError{Msg: "take requires ordered tuples"})
	}

	return ot.Take(n.N), nil
}

// =============================================================================
// Helpers
// =============================================================================

func (ev *Evaluator) tupleScope(t rel.Tuple) scope {
	return scope{tuple: &t, env: ev.env}
}

// partition splits in by the grouping keys, returning the key tuples and
// their groups in the relation's canonical order.
func partition(in *rel.Relation, keys []string) ([]rel.Tuple, [][]rel.Tuple) {
	var (
		keyTuples []rel.Tuple
		groups    [][]rel.Tuple
	)

	index := map[string]int{}

	for _, t := range in.Tuples() {
		kt, _ := t.Project(keys)

		i, ok := index[kt.Key()]
		if !ok {
			i = len(keyTuples)
			index[kt.Key()] = i
			keyTuples = append(keyTuples, kt)
			groups = append(groups, nil)
		}

		groups[i] = append(groups[i], t)
	}

	return keyTuples, groups
}

// aggSchema derives keys + aggregate names, rejecting collisions.
func aggSchema(keys []string, aggs []AggCol) ([]string, error) {
	schema := append([]string{}, keys...)
	seen := make(map[string]bool, len(schema))

	for _, k := range keys {
		seen[k] = true
	}

	for _, a := range aggs {
		if seen[a.Name] {
			return nil, &rel.SchemaError{Msg: "aggregate name " + a.Name + " collides"}
		}

		seen[a.Name] = true
		schema = append(schema, a.Name)
	}

	return schema, nil
}

func indexBy(r *rel.Relation, attrs []string) map[string][]rel.Tuple {
	index := map[string][]rel.Tuple{}

	for _, t := range r.Tuples() {
		kt, _ := t.Project(attrs)
		index[kt.Key()] = append(index[kt.Key()], t)
	}

	return index
}

func intersectNames(a, b []string) []string {
	inB := make(map[string]bool, len(b))
	for _, n := range b {
		inB[n] = true
	}

	var out []string

	for _, n := range a {
		if inB[n] {
			out = append(out, n)
		}
	}

	return out
}

func unionNames(a, b []string) []string {
	out := append([]string{}, a...)

	inA := make(map[string]bool, len(a))
	for _, n := range a {
		inA[n] = true
	}

	for _, n := range b {
		if !inA[n] {
			out = append(out, n)
		}
	}

	return out
}

func subtractNames(a, b []string) []string {
	inB := make(map[string]bool, len(b))
	for _, n := range b {
		inB[n] = true
	}

	var out []string

	for _, n := range a {
		if !inB[n] {
			out = append(out, n)
		}
	}

	return out
}
