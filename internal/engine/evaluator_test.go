package engine_test

import (
	"testing"

	"github.com/netfield/fleetacl/internal/domain"
	"github.com/netfield/fleetacl/internal/engine"
)

func constraint(values ...string) domain.ValueSet {
	return domain.ValueSet{Values: values}
}

func webTerm() domain.Term {
	return domain.Term{
		Name:   "allow-web",
		Action: domain.ActionAccept,
		Match: map[domain.Field]domain.ValueSet{
			domain.FieldProtocol:        constraint("tcp"),
			domain.FieldSourceAddress:   constraint("10.0.0.1", "10.0.0.2"),
			domain.FieldDestinationPort: constraint("80", "443"),
		},
	}
}

func denyAllTerm() domain.Term {
	return domain.Term{
		Name:   "deny-rest",
		Action: domain.ActionDiscard,
		Match: map[domain.Field]domain.ValueSet{
			domain.FieldProtocol:        constraint("tcp", "udp", "icmp"),
			domain.FieldSourceAddress:   constraint("10.0.0.1", "10.0.0.2", "10.0.0.3"),
			domain.FieldDestinationPort: constraint("80", "443", "8080"),
		},
	}
}

func TestEvaluate_EmptyListIsIndeterminate(t *testing.T) {
	flow := domain.FlowRequest{domain.FieldProtocol: {"tcp"}}
	if got := engine.Evaluate(nil, flow); got != engine.Indeterminate {
		t.Errorf("Expected indeterminate for empty list, got %s", got)
	}
}

func TestEvaluate_Decisions(t *testing.T) {
	list := domain.RuleList{webTerm(), denyAllTerm()}

	tests := []struct {
		name string
		flow domain.FlowRequest
		want engine.Decision
	}{
		{
			name: "covered flow is permitted",
			flow: domain.FlowRequest{
				domain.FieldProtocol:        {"tcp"},
				domain.FieldSourceAddress:   {"10.0.0.1"},
				domain.FieldDestinationPort: {"443"},
			},
			want: engine.Permit,
		},
		{
			name: "all requested values must be accepted",
			flow: domain.FlowRequest{
				domain.FieldProtocol:        {"tcp"},
				domain.FieldSourceAddress:   {"10.0.0.1", "10.0.0.2"},
				domain.FieldDestinationPort: {"80", "443"},
			},
			want: engine.Permit,
		},
		{
			name: "source outside the accept term falls to the deny term",
			flow: domain.FlowRequest{
				domain.FieldProtocol:        {"tcp"},
				domain.FieldSourceAddress:   {"10.0.0.3"},
				domain.FieldDestinationPort: {"80"},
			},
			want: engine.Deny,
		},
		{
			name: "value outside every term is indeterminate",
			flow: domain.FlowRequest{
				domain.FieldProtocol:        {"gre"},
				domain.FieldSourceAddress:   {"10.0.0.1"},
				domain.FieldDestinationPort: {"80"},
			},
			want: engine.Indeterminate,
		},
		{
			name: "one uncontained value misses the whole term",
			flow: domain.FlowRequest{
				domain.FieldProtocol:        {"tcp"},
				domain.FieldSourceAddress:   {"10.0.0.1", "192.168.0.9"},
				domain.FieldDestinationPort: {"80"},
			},
			want: engine.Indeterminate,
		},
		{
			name: "field absent from the flow is not tested",
			flow: domain.FlowRequest{
				domain.FieldProtocol: {"tcp"},
			},
			// Destination port and source address are don't-care; the
			// accept term constrains them but that is not tested.
			want: engine.Permit,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := engine.Evaluate(list, tt.flow); got != tt.want {
				t.Errorf("Evaluate() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestEvaluate_RejectDenies(t *testing.T) {
	list := domain.RuleList{{
		Name:   "reject-telnet",
		Action: domain.ActionReject,
		Match: map[domain.Field]domain.ValueSet{
			domain.FieldDestinationPort: constraint("23"),
		},
	}}
	flow := domain.FlowRequest{domain.FieldDestinationPort: {"23"}}
	if got := engine.Evaluate(list, flow); got != engine.Deny {
		t.Errorf("Expected deny for reject action, got %s", got)
	}
}

func TestEvaluate_UnconstrainedRequestedFieldCannotDecide(t *testing.T) {
	// The term accepts any protocol, so it cannot prove anything about
	// a flow that asks about protocol: the hit is not decisive.
	broad := domain.Term{
		Name:   "broad",
		Action: domain.ActionAccept,
		Match: map[domain.Field]domain.ValueSet{
			domain.FieldSourceAddress: constraint("10.0.0.1"),
		},
	}
	flow := domain.FlowRequest{
		domain.FieldSourceAddress: {"10.0.0.1"},
		domain.FieldProtocol:      {"tcp"},
	}

	if got := engine.Evaluate(domain.RuleList{broad}, flow); got != engine.Indeterminate {
		t.Errorf("Expected indeterminate from an unproven hit, got %s", got)
	}

	// A later, fully constrained term still decides.
	narrow := domain.Term{
		Name:   "narrow",
		Action: domain.ActionDiscard,
		Match: map[domain.Field]domain.ValueSet{
			domain.FieldSourceAddress: constraint("10.0.0.1"),
			domain.FieldProtocol:      constraint("tcp"),
		},
	}
	if got := engine.Evaluate(domain.RuleList{broad, narrow}, flow); got != engine.Deny {
		t.Errorf("Expected the narrow term to decide deny, got %s", got)
	}
}

func TestEvaluate_EmptyConstraintIsNotUnconstrained(t *testing.T) {
	// A field constrained to an empty value set matches nothing; that
	// is different from the field being absent.
	empty := domain.Term{
		Name:   "constrained-to-nothing",
		Action: domain.ActionAccept,
		Match: map[domain.Field]domain.ValueSet{
			domain.FieldProtocol: {},
		},
	}
	flow := domain.FlowRequest{domain.FieldProtocol: {"tcp"}}
	if got := engine.Evaluate(domain.RuleList{empty}, flow); got != engine.Indeterminate {
		t.Errorf("Expected miss (indeterminate) for empty constraint, got %s", got)
	}
}

func TestEvaluate_FirstMatchWins(t *testing.T) {
	accept := webTerm()
	deny := denyAllTerm()
	flow := domain.FlowRequest{
		domain.FieldProtocol:        {"tcp"},
		domain.FieldSourceAddress:   {"10.0.0.1"},
		domain.FieldDestinationPort: {"80"},
	}

	if got := engine.Evaluate(domain.RuleList{accept, deny}, flow); got != engine.Permit {
		t.Errorf("Expected the earlier accept term to win, got %s", got)
	}
	if got := engine.Evaluate(domain.RuleList{deny, accept}, flow); got != engine.Deny {
		t.Errorf("Expected the earlier deny term to win, got %s", got)
	}
}

func TestEvaluate_InactiveTermsAreSkipped(t *testing.T) {
	accept := webTerm()
	accept.Inactive = true
	deny := denyAllTerm()
	flow := domain.FlowRequest{
		domain.FieldProtocol:        {"tcp"},
		domain.FieldSourceAddress:   {"10.0.0.1"},
		domain.FieldDestinationPort: {"80"},
	}

	if got := engine.Evaluate(domain.RuleList{accept, deny}, flow); got != engine.Deny {
		t.Errorf("Expected the inactive accept term to be skipped, got %s", got)
	}

	// Deactivating a non-hitting term changes nothing.
	miss := domain.Term{
		Name:     "other-net",
		Action:   domain.ActionAccept,
		Inactive: true,
		Match: map[domain.Field]domain.ValueSet{
			domain.FieldSourceAddress: constraint("172.16.0.1"),
		},
	}
	active := webTerm()
	if got := engine.Evaluate(domain.RuleList{miss, active}, flow); got != engine.Permit {
		t.Errorf("Expected decision unchanged by inactive non-hitting term, got %s", got)
	}
}

func TestEvaluate_ForceDiscardDirective(t *testing.T) {
	term := webTerm()
	term.Comments = []string{"ticket NET-1234", "ops: make discard"}
	flow := domain.FlowRequest{
		domain.FieldProtocol:        {"tcp"},
		domain.FieldSourceAddress:   {"10.0.0.1"},
		domain.FieldDestinationPort: {"80"},
	}

	if got := engine.Evaluate(domain.RuleList{term}, flow); got != engine.Deny {
		t.Errorf("Expected directive to override accept with discard, got %s", got)
	}
}

func TestEvaluateTrace(t *testing.T) {
	accept := webTerm()
	deny := denyAllTerm()
	list := domain.RuleList{accept, deny}
	flow := domain.FlowRequest{
		domain.FieldProtocol:        {"tcp"},
		domain.FieldSourceAddress:   {"10.0.0.1"},
		domain.FieldDestinationPort: {"80"},
	}

	decision, entries := engine.EvaluateTrace(list, flow)
	if decision != engine.Permit {
		t.Fatalf("Expected permit, got %s", decision)
	}

	// Scanning continues past the deciding term: both hits rendered.
	if len(entries) != 2 {
		t.Fatalf("Expected 2 trace entries, got %d", len(entries))
	}
	if !entries[0].Decisive || entries[0].Index != 0 {
		t.Errorf("Expected first entry to be the decisive hit, got %+v", entries[0])
	}
	if entries[1].Decisive {
		t.Errorf("Later hit must not be decisive: %+v", entries[1])
	}

	// The deciding term carries the audit annotation on permit.
	comments := entries[0].Term.Comments
	if len(comments) == 0 || comments[len(comments)-1] != "check-access: PERMITTED HERE" {
		t.Errorf("Expected audit annotation on the deciding term, got %v", comments)
	}

	// The input list stays untouched.
	if len(list[0].Comments) != 0 {
		t.Errorf("Input term comments were modified: %v", list[0].Comments)
	}
}

func TestEvaluateTrace_UnprovenHitIsRecorded(t *testing.T) {
	broad := domain.Term{
		Name:   "broad",
		Action: domain.ActionAccept,
		Match: map[domain.Field]domain.ValueSet{
			domain.FieldSourceAddress: constraint("10.0.0.1"),
		},
	}
	flow := domain.FlowRequest{
		domain.FieldSourceAddress: {"10.0.0.1"},
		domain.FieldProtocol:      {"tcp"},
	}

	decision, entries := engine.EvaluateTrace(domain.RuleList{broad}, flow)
	if decision != engine.Indeterminate {
		t.Fatalf("Expected indeterminate, got %s", decision)
	}
	if len(entries) != 1 || !entries[0].Unproven {
		t.Errorf("Expected one unproven trace entry, got %+v", entries)
	}
}
