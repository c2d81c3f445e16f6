package erp

// Condition is a single (field, operator, value) filter triple in the object
// layer's domain notation.
type Condition struct {
	Field string
	Op    string
	Value any
}

// Domain is a conjunction of conditions. It is always serialized from the
// typed form; raw client input never reaches the wire unparsed.
type Domain []Condition

// Wire renders the domain in the triple-list form the object layer expects.
func (d Domain) Wire() []any {
	out := make([]any, 0, len(d))
	for _, c := range d {
		out = append(out, []any{c.Field, c.Op, c.Value})
	}
	return out
}

// Eq builds an equality condition.
func Eq(field string, value any) Condition {
	return Condition{Field: field, Op: "=", Value: value}
}
