package domain

import "time"

// Field is a match dimension of a filter term. The set is fixed: these
// five dimensions are the only ones the evaluator and synthesizer reason
// about.
type Field string

const (
	FieldSourceAddress      Field = "source-address"
	FieldDestinationAddress Field = "destination-address"
	FieldSourcePort         Field = "source-port"
	FieldDestinationPort    Field = "destination-port"
	FieldProtocol           Field = "protocol"
)

// Fields lists all match dimensions in synthesis iteration order:
// protocol outermost, destination-port innermost.
var Fields = []Field{
	FieldProtocol,
	FieldSourceAddress,
	FieldSourcePort,
	FieldDestinationAddress,
	FieldDestinationPort,
}

// ValidField reports whether f is one of the five known dimensions.
func ValidField(f Field) bool {
	for _, known := range Fields {
		if f == known {
			return true
		}
	}
	return false
}

// Action is what a term does to traffic it matches.
type Action string

const (
	ActionAccept  Action = "accept"
	ActionDiscard Action = "discard"
	ActionReject  Action = "reject"
)

// ValidAction reports whether a is a recognized term action.
func ValidAction(a Action) bool {
	return a == ActionAccept || a == ActionDiscard || a == ActionReject
}

// ValueSet is the accepted values for one constrained field of a term.
// A Term's match map distinguishes three states per field: no map entry
// means the field is unconstrained (any value matches); an entry with an
// empty Values slice means constrained-to-nothing (nothing matches); an
// entry with values means only those values match. Callers must not
// collapse the first two.
type ValueSet struct {
	Values []string `json:"values"`
}

// Contains reports whether v is one of the accepted values.
func (s ValueSet) Contains(v string) bool {
	for _, have := range s.Values {
		if have == v {
			return true
		}
	}
	return false
}

// Term is a single ordered filter rule: match criteria plus an action.
type Term struct {
	Name     string             `json:"name"`
	Action   Action             `json:"action"`
	Match    map[Field]ValueSet `json:"match,omitempty"`
	Comments []string           `json:"comments,omitempty"`
	Inactive bool               `json:"inactive,omitempty"`
}

// Constrained returns the accepted values for a field and whether the
// term constrains that field at all.
func (t *Term) Constrained(f Field) (ValueSet, bool) {
	vs, ok := t.Match[f]
	return vs, ok
}

// RuleList is an ordered sequence of terms. Order is first-match
// significant; names need not be unique.
type RuleList []Term

// FlowRequest is a candidate traffic flow: each requested field carries
// one or more concrete values. A field absent from the map is "don't
// care" and takes no part in matching.
type FlowRequest map[Field][]string

// RuleSet is a persisted, named rule list.
type RuleSet struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Terms     RuleList  `json:"terms"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CreateRuleSetRequest is the request body for creating a rule set.
type CreateRuleSetRequest struct {
	Name  string   `json:"name"`
	Terms RuleList `json:"terms"`
}

// UpdateRuleSetRequest is the request body for replacing a rule set's
// terms.
type UpdateRuleSetRequest struct {
	Terms RuleList `json:"terms"`
}
