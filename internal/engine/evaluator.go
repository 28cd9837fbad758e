// Package engine implements the access decision logic: first-match
// evaluation of a rule list against a requested flow, and synthesis of
// the minimal terms needed to authorize a flow that is not yet covered.
package engine

import (
	"strings"

	"github.com/netfield/fleetacl/internal/domain"
)

// Decision is the outcome of evaluating a flow against a rule list.
type Decision string

const (
	// Permit: an active term provably accepts every requested value.
	Permit Decision = "permit"
	// Deny: an active term provably discards or rejects the flow.
	Deny Decision = "deny"
	// Indeterminate: the rule list neither provably permits nor provably
	// denies the flow. Not an error.
	Indeterminate Decision = "indeterminate"
)

// forceDiscardDirective, when present in a term comment, overrides the
// term's stored action with discard during evaluation.
const forceDiscardDirective = "make discard"

// auditComment is appended to the deciding term in trace mode when the
// decision is permit, so the annotated list can be rendered for review.
const auditComment = "check-access: PERMITTED HERE"

// TraceEntry records one term that hit the flow during a traced
// evaluation, in list order.
type TraceEntry struct {
	Index int         `json:"index"`
	Term  domain.Term `json:"term"`
	// Decisive is true for the single entry that fixed the decision.
	Decisive bool `json:"decisive,omitempty"`
	// Unproven is true when the term hit but left at least one requested
	// field unconstrained, so its effect could not be trusted as final.
	Unproven bool `json:"unproven,omitempty"`
	// Action is the effective action, after any forced discard.
	Action domain.Action `json:"action"`
}

// Evaluate decides whether the flow is already permitted or denied by
// the rule list. It never fails: absence of a qualifying term yields
// Indeterminate.
func Evaluate(list domain.RuleList, flow domain.FlowRequest) Decision {
	d, _ := evaluate(list, flow, false)
	return d
}

// EvaluateTrace is Evaluate plus an audit trail of every hitting term.
// Scanning continues past the deciding term so the trail shows all later
// hits, but the decision is fixed by the first qualifying one. When the
// decision is permit, an audit annotation is appended to the deciding
// term's comments in the trace (the input list is not modified).
func EvaluateTrace(list domain.RuleList, flow domain.FlowRequest) (Decision, []TraceEntry) {
	return evaluate(list, flow, true)
}

func evaluate(list domain.RuleList, flow domain.FlowRequest, trace bool) (Decision, []TraceEntry) {
	decision := Indeterminate
	var entries []TraceEntry

	for i := range list {
		term := &list[i]
		if term.Inactive {
			continue
		}

		action := effectiveAction(term)
		hit, unproven := matchTerm(term, flow)
		if !hit {
			continue
		}

		decisive := false
		if !unproven && decision == Indeterminate {
			switch action {
			case domain.ActionAccept:
				decision = Permit
				decisive = true
			case domain.ActionDiscard, domain.ActionReject:
				decision = Deny
				decisive = true
			}
		}

		if !trace {
			if decisive {
				return decision, nil
			}
			continue
		}

		entry := TraceEntry{
			Index:    i,
			Term:     *term,
			Decisive: decisive,
			Unproven: unproven,
			Action:   action,
		}
		if decisive && decision == Permit {
			entry.Term.Comments = append(append([]string(nil), term.Comments...), auditComment)
		}
		entries = append(entries, entry)
	}

	return decision, entries
}

// matchTerm tests a term against every field the flow requests.
//
// A field the term constrains hits only when the flow's whole value set
// for it is contained in the term's accepted values; one uncontained
// value misses the term entirely. A requested field the term leaves
// unconstrained cannot be proven either way (the term accepts all
// values, including ones outside the requested set), so the hit is
// reported unproven and cannot fix the decision. Fields absent from the
// flow are don't-care and are not tested.
func matchTerm(term *domain.Term, flow domain.FlowRequest) (hit, unproven bool) {
	for field, values := range flow {
		if len(values) == 0 {
			continue
		}
		accepted, constrained := term.Constrained(field)
		if !constrained {
			unproven = true
			continue
		}
		for _, v := range values {
			if !accepted.Contains(v) {
				return false, false
			}
		}
	}
	return true, unproven
}

// effectiveAction returns the term's action after applying any forced
// discard directive carried in its comments.
func effectiveAction(term *domain.Term) domain.Action {
	for _, c := range term.Comments {
		if strings.Contains(c, forceDiscardDirective) {
			return domain.ActionDiscard
		}
	}
	return term.Action
}
