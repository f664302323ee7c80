package rel

import (
	"sort"
	"strings"
)

// Tuple is an immutable, unordered mapping from attribute name to Value.
// Equality and the canonical key depend only on the set of (name, value)
// pairs, never on construction order. The key is computed once at
// construction.
type Tuple struct {
	attrs map[string]Value
	key   string
}

// NewTuple builds a tuple from the given attributes. The map is copied.
func NewTuple(attrs map[string]Value) Tuple {
	m := make(map[string]Value, len(attrs))
	for k, v := range attrs {
		m[k] = v
	}

	return Tuple{attrs: m, key: tupleKey(m)}
}

// Get returns the value bound to name.
func (t Tuple) Get(name string) (Value, bool) {
	v, ok := t.attrs[name]

	return v, ok
}

// Has reports whether the tuple has an attribute of the given name.
func (t Tuple) Has(name string) bool {
	_, ok := t.attrs[name]

	return ok
}

// Names returns the attribute names in sorted order.
func (t Tuple) Names() []string {
	names := make([]string, 0, len(t.attrs))
	for k := range t.attrs {
		names = append(names, k)
	}

	sort.Strings(names)

	return names
}

// Len returns the number of attributes.
func (t Tuple) Len() int { return len(t.attrs) }

// Key returns the canonical key. Two tuples are equal iff their keys are
// equal.
func (t Tuple) Key() string { return t.key }

// Equal reports tuple equality.
func (t Tuple) Equal(o Tuple) bool { return t.key == o.key }

// Project returns a tuple restricted to names. The second result is false
// if any name is absent.
func (t Tuple) Project(names []string) (Tuple, bool) {
	m := make(map[string]Value, len(names))

	for _, n := range names {
		v, ok := t.attrs[n]
		if !ok {
			return Tuple{}, false
		}

		m[n] = v
	}

	return Tuple{attrs: m, key: tupleKey(m)}, true
}

// Drop returns a tuple without the given names.
func (t Tuple) Drop(names ...string) Tuple {
	dropped := make(map[string]bool, len(names))
	for _, n := range names {
		dropped[n] = true
	}

	m := make(map[string]Value, len(t.attrs))

	for k, v := range t.attrs {
		if !dropped[k] {
			m[k] = v
		}
	}

	return Tuple{attrs: m, key: tupleKey(m)}
}

// Merge returns the union of t and o. Attributes present in both must agree
// in the caller; o wins on overlap.
func (t Tuple) Merge(o Tuple) Tuple {
	m := make(map[string]Value, len(t.attrs)+len(o.attrs))

	for k, v := range t.attrs {
		m[k] = v
	}

	for k, v := range o.attrs {
		m[k] = v
	}

	return Tuple{attrs: m, key: tupleKey(m)}
}

// With returns a tuple extended by one attribute.
func (t Tuple) With(name string, v Value) Tuple {
	m := make(map[string]Value, len(t.attrs)+1)

	for k, val := range t.attrs {
		m[k] = val
	}

	m[name] = v

	return Tuple{attrs: m, key: tupleKey(m)}
}

// String renders the tuple as {name: value, ...} with sorted names.
func (t Tuple) String() string {
	var b strings.Builder

	b.WriteByte('{')

	for i, n := range t.Names() {
		if i > 0 {
			b.WriteString(", ")
		}

		b.WriteString(n)
		b.WriteString(": ")
		b.WriteString(t.attrs[n].String())
	}

	b.WriteByte('}')

	return b.String()
}

// tupleKey encodes the attribute set canonically: sorted names, each paired
// with its value key, joined by unit separators.
func tupleKey(attrs map[string]Value) string {
	names := make([]string, 0, len(attrs))
	for k := range attrs {
		names = append(names, k)
	}

	sort.Strings(names)

	var b strings.Builder

	for i, n := range names {
		if i > 0 {
			b.WriteByte(0x1e)
		}

		b.WriteString(n)
		b.WriteByte(0x1f)
		b.WriteString(attrs[n].Key())
	}

	return b.String()
}
