package relic

import (
	"github.com/shopspring/decimal"

	"github.com/rlch/relic/rel"
)

// BuiltinFunc is a scalar function callable from computation expressions.
type BuiltinFunc func(args []rel.Value) (rel.Value, error)

// Registry maps function names to implementations. New functions register
// through it; the language core never special-cases a name.
type Registry struct {
	funcs map[string]BuiltinFunc
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{funcs: map[string]BuiltinFunc{}}
}

// Register binds name to fn, replacing any previous binding.
func (r *Registry) Register(name string, fn BuiltinFunc) {
	r.funcs[name] = fn
}

// Lookup resolves a function by name.
func (r *Registry) Lookup(name string) (BuiltinFunc, bool) {
	fn, ok := r.funcs[name]

	return fn, ok
}

// DefaultRegistry returns a registry with the built-in functions.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("round", builtinRound)

	return r
}

// builtinRound rounds x to n fractional digits. Decimal inputs stay
// decimal; integer inputs stay integers.
func builtinRound(args []rel.Value) (rel.Value, error) {
	if len(args) != 2 {
		return rel.Value{}, &rel.TypeError{Msg: "round takes two arguments"}
	}

	x, n := args[0], args[1]

	if n.Kind() != rel.KindInt {
		return rel.Value{}, &rel.TypeError{Msg: "round places must be an integer"}
	}

	places := n.AsInt()

	switch x.Kind() {
	case rel.KindInt:
		if places >= 0 {
			return x, nil
		}

		d := decimal.NewFromInt(x.AsInt()).Round(int32(places))

		return rel.Int(d.IntPart()), nil
	case rel.KindDecimal:
		return rel.Dec(x.AsDecimal().Round(int32(places))), nil
	default:
		return rel.Value{}, &rel.TypeError{Msg: "round on " + x.Kind().String() + " value"}
	}
}
