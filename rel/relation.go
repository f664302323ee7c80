package rel

import (
	"sort"
	"strings"
)

// Relation is an immutable, unordered set of tuples over a fixed attribute
// schema. The schema is first-class: an empty relation still knows its
// attributes. Duplicate tuples collapse by the set discipline.
type Relation struct {
	schema []string // sorted
	tuples map[string]Tuple
}

// NewRelation builds a relation over schema from the given tuples. Every
// tuple must carry exactly the schema's attribute set; duplicates collapse.
func NewRelation(schema []string, tuples ...Tuple) (*Relation, error) {
	b := NewBuilder(schema)

	for _, t := range tuples {
		if err := b.Add(t); err != nil {
			return nil, err
		}
	}

	return b.Relation(), nil
}

// MustRelation is NewRelation that panics on schema violations. Intended for
// literals in tests and fixtures.
func MustRelation(schema []string, tuples ...Tuple) *Relation {
	r, err := NewRelation(schema, tuples...)
	if err != nil {
		panic(err)
	}

	return r
}

// Empty returns the empty relation over schema.
func Empty(schema []string) *Relation {
	return &Relation{schema: sortedCopy(schema), tuples: map[string]Tuple{}}
}

// Schema returns a copy of the sorted attribute names.
func (r *Relation) Schema() []string { return sortedCopy(r.schema) }

// HasAttr reports whether name is in the schema.
func (r *Relation) HasAttr(name string) bool {
	i := sort.SearchStrings(r.schema, name)

	return i < len(r.schema) && r.schema[i] == name
}

// Len returns the cardinality.
func (r *Relation) Len() int { return len(r.tuples) }

// Has reports set membership.
func (r *Relation) Has(t Tuple) bool {
	_, ok := r.tuples[t.Key()]

	return ok
}

// Tuples returns the tuples in canonical key order. The order is an
// implementation detail, not a public contract; it exists so that
// iteration, rendering, and sort tie-breaking are deterministic.
func (r *Relation) Tuples() []Tuple {
	keys := make([]string, 0, len(r.tuples))
	for k := range r.tuples {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	ts := make([]Tuple, len(keys))
	for i, k := range keys {
		ts[i] = r.tuples[k]
	}

	return ts
}

// SameSchema reports whether r and o have identical attribute sets.
func (r *Relation) SameSchema(o *Relation) bool {
	if len(r.schema) != len(o.schema) {
		return false
	}

	for i := range r.schema {
		if r.schema[i] != o.schema[i] {
			return false
		}
	}

	return true
}

// Equal reports set equality over identical schemas.
func (r *Relation) Equal(o *Relation) bool {
	if r == nil || o == nil {
		return r == o
	}

	if !r.SameSchema(o) || len(r.tuples) != len(o.tuples) {
		return false
	}

	for k := range r.tuples {
		if _, ok := o.tuples[k]; !ok {
			return false
		}
	}

	return true
}

// Key returns a canonical encoding of the whole relation, used when a
// relation appears as an attribute value inside a tuple.
func (r *Relation) Key() string {
	keys := make([]string, 0, len(r.tuples))
	for k := range r.tuples {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return strings.Join(r.schema, "\x1f") + "\x1d" + strings.Join(keys, "\x1d")
}

// String renders the relation compactly as {tuple, tuple, ...}.
func (r *Relation) String() string {
	var b strings.Builder

	b.WriteByte('{')

	for i, t := range r.Tuples() {
		if i > 0 {
			b.WriteString(", ")
		}

		b.WriteString(t.String())
	}

	b.WriteByte('}')

	return b.String()
}

func (r *Relation) isResult() {}

// Builder accumulates tuples for a relation under construction. Operators
// build their outputs through it; the resulting Relation is immutable.
type Builder struct {
	schema []string
	tuples map[string]Tuple
}

// NewBuilder starts an empty relation over schema.
func NewBuilder(schema []string) *Builder {
	return &Builder{schema: sortedCopy(schema), tuples: map[string]Tuple{}}
}

// Add inserts a tuple. Tuples whose attribute set differs from the schema
// are rejected; duplicates are absorbed.
func (b *Builder) Add(t Tuple) error {
	if t.Len() != len(b.schema) {
		return &SchemaError{Msg: "tuple does not conform to schema {" + strings.Join(b.schema, " ") + "}"}
	}

	for _, n := range b.schema {
		if !t.Has(n) {
			return &SchemaError{Msg: "tuple missing attribute " + n}
		}
	}

	b.tuples[t.Key()] = t

	return nil
}

// Relation finishes construction. The builder must not be reused.
func (b *Builder) Relation() *Relation {
	return &Relation{schema: b.schema, tuples: b.tuples}
}

func sortedCopy(s []string) []string {
	out := make([]string, len(s))
	copy(out, s)
	sort.Strings(out)

	return out
}
