package relic

import (
	"github.com/rlch/relic/rel"
)

// The statement layer is driver sugar over parse and evaluate: an optional
// binding prefix decides what happens to the result. A failed statement
// leaves the environment untouched.

// Exec evaluates stmt against env, applying its binding form. Bare
// statements return their result; binding statements also return the bound
// relation.
func Exec(stmt *Statement, env *rel.Env) (rel.Result, error) {
	res, err := Evaluate(stmt.Expr, env)
	if err != nil {
		return nil, err
	}

	if stmt.Assign == AssignNone {
		return res, nil
	}

	r, ok := res.(*rel.Relation)
	if !ok {
		return nil, ErrNotRelation
	}

	switch stmt.Assign {
	case AssignBind:
		env.Set(stmt.Name, r)

		return r, nil
	case AssignUnion, AssignDiff:
		cur, ok := env.Get(stmt.Name)
		if !ok {
			return nil, evalErr(stmt.Pos, &rel.NameError{Name: stmt.Name, Kind: rel.NameRelation})
		}

		if !cur.SameSchema(r) {
			return nil, evalErr(stmt.Pos, &rel.SchemaError{Msg: "accumulate into " + stmt.Name + " requires identical schemas"})
		}

		b := rel.NewBuilder(cur.Schema())

		if stmt.Assign == AssignUnion {
			for _, t := range cur.Tuples() {
				if err := b.Add(t); err != nil {
					return nil, evalErr(stmt.Pos, err)
				}
			}

			for _, t := range r.Tuples() {
				if err := b.Add(t); err != nil {
					return nil, evalErr(stmt.Pos, err)
				}
			}
		} else {
			for _, t := range cur.Tuples() {
				if !r.Has(t) {
					if err := b.Add(t); err != nil {
						return nil, evalErr(stmt.Pos, err)
					}
				}
			}
		}

		out := b.Relation()
		env.Set(stmt.Name, out)

		return out, nil
	default:
		return res, nil
	}
}

// RunStatement parses and executes one line of driver input.
func RunStatement(source string, env *rel.Env) (rel.Result, error) {
	stmt, err := ParseStatement(source)
	if err != nil {
		return nil, err
	}

	return Exec(stmt, env)
}
