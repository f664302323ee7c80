package rel

// NameKind says which namespace a failed lookup was in.
type NameKind int

const (
	NameRelation NameKind = iota
	NameAttribute
	NameFunction
)

func (k NameKind) String() string {
	switch k {
	case NameAttribute:
		return "attribute"
	case NameFunction:
		return "function"
	default:
		return "relation"
	}
}

// NameError reports a reference to an unbound relation, attribute, or
// function name.
type NameError struct {
	Name string
	Kind NameKind
}

func (e *NameError) Error() string {
	return "unknown " + e.Kind.String() + ": " + e.Name
}

// SchemaError reports an operation whose attribute sets do not line up:
// mismatched set-operation schemas, projection of an absent attribute,
// rename collisions, and the like.
type SchemaError struct {
	Msg string
}

func (e *SchemaError) Error() string { return e.Msg }

// TypeError reports an operation applied across incompatible value domains.
type TypeError struct {
	Msg string
}

func (e *TypeError) Error() string { return e.Msg }

// DomainError reports a value outside an operation's domain, such as
// division by zero or min/max over an empty group.
type DomainError struct {
	Msg string
}

func (e *DomainError) Error() string { return e.Msg }

// BoundaryError reports a crossing of the relation/ordered-tuples boundary:
// a relational operator applied to ordered tuples, or take applied to a
// relation.
type BoundaryError struct {
	Msg string
}

func (e *BoundaryError) Error() string { return e.Msg }
