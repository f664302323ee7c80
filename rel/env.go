package rel

import "sort"

// Env binds relation names for a session. The driver mutates it between
// queries; evaluation only reads it. Relations themselves are immutable and
// may be shared freely.
type Env struct {
	rels map[string]*Relation
}

// NewEnv returns an empty environment.
func NewEnv() *Env {
	return &Env{rels: map[string]*Relation{}}
}

// Get looks up a relation by name.
func (e *Env) Get(name string) (*Relation, bool) {
	r, ok := e.rels[name]

	return r, ok
}

// Set binds name to r, replacing any previous binding.
func (e *Env) Set(name string, r *Relation) {
	e.rels[name] = r
}

// Drop removes a binding. Dropping an unbound name is a no-op.
func (e *Env) Drop(name string) {
	delete(e.rels, name)
}

// Names returns the bound names in sorted order.
func (e *Env) Names() []string {
	names := make([]string, 0, len(e.rels))
	for n := range e.rels {
		names = append(names, n)
	}

	sort.Strings(names)

	return names
}

// Len returns the number of bindings.
func (e *Env) Len() int { return len(e.rels) }
