// Package rel defines the value model of the algebra: tagged values,
// immutable hashable tuples, relations with first-class schemas, ordered
// tuple sequences, and the environment that binds names to relations.
package rel

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Kind discriminates the cases of a Value.
type Kind int

const (
	KindInt Kind = iota
	KindDecimal
	KindBool
	KindString
	KindRelation
)

// String returns the domain name used in error messages.
func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindDecimal:
		return "decimal"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindRelation:
		return "relation"
	default:
		return "unknown"
	}
}

// Value is a tagged union over the five value domains. The relation case is
// what enables relation-valued attributes. The zero Value is Int(0).
type Value struct {
	kind Kind
	i    int64
	d    decimal.Decimal
	b    bool
	s    string
	r    *Relation
}

// Int builds an integer value.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Dec builds a decimal value.
func Dec(d decimal.Decimal) Value { return Value{kind: KindDecimal, d: d} }

// Bool builds a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// String builds a string value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Rel builds a relation-valued attribute value.
func Rel(r *Relation) Value { return Value{kind: KindRelation, r: r} }

// Kind reports the value's domain.
func (v Value) Kind() Kind { return v.kind }

// IsNumeric reports whether the value is int or decimal.
func (v Value) IsNumeric() bool { return v.kind == KindInt || v.kind == KindDecimal }

// AsInt returns the integer payload. Valid only when Kind is KindInt.
func (v Value) AsInt() int64 { return v.i }

// AsDecimal returns the decimal payload. Valid only when Kind is KindDecimal.
func (v Value) AsDecimal() decimal.Decimal { return v.d }

// AsBool returns the boolean payload. Valid only when Kind is KindBool.
func (v Value) AsBool() bool { return v.b }

// AsString returns the string payload. Valid only when Kind is KindString.
func (v Value) AsString() string { return v.s }

// AsRelation returns the relation payload. Valid only when Kind is KindRelation.
func (v Value) AsRelation() *Relation { return v.r }

// Decimal returns the numeric value widened to decimal.
// Valid only for numeric values.
func (v Value) Decimal() decimal.Decimal {
	if v.kind == KindInt {
		return decimal.NewFromInt(v.i)
	}

	return v.d
}

// Equal reports structural equality. Values of different kinds are never
// equal; in particular Int(1) and Dec(1) are distinct set members.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}

	switch v.kind {
	case KindInt:
		return v.i == o.i
	case KindDecimal:
		return v.d.Equal(o.d)
	case KindBool:
		return v.b == o.b
	case KindString:
		return v.s == o.s
	case KindRelation:
		return v.r.Equal(o.r)
	default:
		return false
	}
}

// Compare orders two values within a comparable domain. Int and decimal
// compare numerically against each other; strings lexicographically; bools
// with false < true. Relations and cross-domain pairs are not comparable.
func (v Value) Compare(o Value) (int, error) {
	if v.IsNumeric() && o.IsNumeric() {
		if v.kind == KindInt && o.kind == KindInt {
			switch {
			case v.i < o.i:
				return -1, nil
			case v.i > o.i:
				return 1, nil
			default:
				return 0, nil
			}
		}

		return v.Decimal().Cmp(o.Decimal()), nil
	}

	if v.kind != o.kind {
		return 0, &TypeError{Msg: "cannot compare " + v.kind.String() + " with " + o.kind.String()}
	}

	switch v.kind {
	case KindString:
		return strings.Compare(v.s, o.s), nil
	case KindBool:
		switch {
		case v.b == o.b:
			return 0, nil
		case !v.b:
			return -1, nil
		default:
			return 1, nil
		}
	default:
		return 0, &TypeError{Msg: v.kind.String() + " values are not comparable"}
	}
}

// Key returns a canonical encoding used for tuple hashing and set
// membership. Equal values always produce identical keys.
func (v Value) Key() string {
	switch v.kind {
	case KindInt:
		return "i" + strconv.FormatInt(v.i, 10)
	case KindDecimal:
		return "d" + canonicalDecimal(v.d)
	case KindBool:
		if v.b {
			return "bT"
		}

		return "bF"
	case KindString:
		return "s" + v.s
	case KindRelation:
		return "r" + v.r.Key()
	default:
		return ""
	}
}

// String renders the value for display.
func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindDecimal:
		return v.d.String()
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindString:
		return v.s
	case KindRelation:
		return v.r.String()
	default:
		return ""
	}
}

// canonicalDecimal trims insignificant trailing zeros so that equal decimals
// constructed with different exponents key identically.
func canonicalDecimal(d decimal.Decimal) string {
	s := d.String()
	if !strings.ContainsRune(s, '.') {
		return s
	}

	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")

	if s == "" || s == "-" {
		return "0"
	}

	return s
}
