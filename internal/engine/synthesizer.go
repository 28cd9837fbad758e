package engine

import (
	"fmt"

	"github.com/netfield/fleetacl/internal/domain"
)

// wildcard stands in for a field the request leaves open.
const wildcard = "any"

// DefaultMaxTerms bounds the Cartesian expansion of a multi-valued flow
// request. The product of per-field cardinalities grows fast; a request
// that expands past the cap is refused rather than ground through.
const DefaultMaxTerms = 10000

// Synthesizer computes the minimal single-valued terms a rule list is
// missing for a requested flow.
type Synthesizer struct {
	// MaxTerms caps the expansion size. Zero means DefaultMaxTerms.
	MaxTerms int
}

// Synthesize expands the flow request into atomic single-valued
// combinations and returns, in deterministic expansion order, a term for
// every combination the rule list does not already permit. Appending the
// returned terms to the list closes the gap.
//
// Expansion iterates protocol outermost, then source-address,
// source-port, destination-address, destination-port. Fields absent from
// the request expand to a single wildcard and are omitted from the
// generated terms.
func (s *Synthesizer) Synthesize(list domain.RuleList, flow domain.FlowRequest) ([]domain.Term, error) {
	limit := s.MaxTerms
	if limit <= 0 {
		limit = DefaultMaxTerms
	}

	sets := make([][]string, len(domain.Fields))
	total := 1
	for i, field := range domain.Fields {
		values := flow[field]
		if len(values) == 0 {
			values = []string{wildcard}
		}
		sets[i] = values
		total *= len(values)
		if total > limit {
			return nil, fmt.Errorf("%w: %d candidate terms, limit %d",
				domain.ErrExpansionTooLarge, total, limit)
		}
	}

	var missing []domain.Term
	combo := make([]string, len(domain.Fields))
	var walk func(depth int)
	walk = func(depth int) {
		if depth == len(sets) {
			candidate := atomicTerm(combo)
			if Evaluate(list, candidateFlow(candidate)) != Permit {
				missing = append(missing, candidate)
			}
			return
		}
		for _, v := range sets[depth] {
			combo[depth] = v
			walk(depth + 1)
		}
	}
	walk(0)

	return missing, nil
}

// atomicTerm builds a single-valued accept term from one expansion
// combination, leaving wildcard fields unconstrained.
func atomicTerm(combo []string) domain.Term {
	t := domain.Term{
		Name:   "generated_term",
		Action: domain.ActionAccept,
	}
	for i, field := range domain.Fields {
		if combo[i] == wildcard {
			continue
		}
		if t.Match == nil {
			t.Match = make(map[domain.Field]domain.ValueSet)
		}
		t.Match[field] = domain.ValueSet{Values: []string{combo[i]}}
	}
	return t
}

// candidateFlow views a generated term's match criteria as a flow
// request so it can be tested through the evaluator.
func candidateFlow(t domain.Term) domain.FlowRequest {
	flow := make(domain.FlowRequest, len(t.Match))
	for field, vs := range t.Match {
		flow[field] = vs.Values
	}
	return flow
}
