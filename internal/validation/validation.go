// Package validation checks rule-set, device and flow inputs at the API
// boundary. Malformed terms are rejected here so the decision logic
// downstream can stay total.
package validation

import (
	"fmt"

	"github.com/netfield/fleetacl/internal/domain"
)

// isAlphaNum returns true if the byte is an ASCII letter or digit.
func isAlphaNum(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// ValidateRuleSetName validates a rule-set name: non-empty, starting
// with a letter or digit, containing only letters, digits, dots,
// dashes or underscores.
func ValidateRuleSetName(name string) error {
	if name == "" {
		return fmt.Errorf("rule-set name must not be empty")
	}
	if !isAlphaNum(name[0]) {
		return fmt.Errorf("rule-set name must start with a letter or digit")
	}
	for _, b := range []byte(name) {
		if !isAlphaNum(b) && b != '.' && b != '-' && b != '_' {
			return fmt.Errorf("rule-set names can only contain letters, digits, dots, dashes or underscores")
		}
	}
	return nil
}

// ValidateDeviceName validates a device name: non-empty, lower-case
// letters, digits, dashes and dots only.
func ValidateDeviceName(name string) error {
	if name == "" {
		return fmt.Errorf("device name must not be empty")
	}
	for _, b := range []byte(name) {
		lower := (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
		if !lower && b != '-' && b != '.' {
			return fmt.Errorf("device names can only contain lower-case letters, digits, dashes or dots")
		}
	}
	return nil
}

// ValidateTerm checks a single term: a recognized action and recognized
// match fields. An unrecognized action is a data-quality problem and is
// reported rather than silently treated as a non-match.
func ValidateTerm(index int, t *domain.Term, errs *ValidationErrors) {
	field := fmt.Sprintf("terms[%d]", index)
	if t.Name == "" {
		errs.Add(field+".name", "", "term name must not be empty")
	}
	if !domain.ValidAction(t.Action) {
		errs.Add(field+".action", string(t.Action), "action must be accept, discard or reject")
	}
	for f := range t.Match {
		if !domain.ValidField(f) {
			errs.Add(field+".match", string(f), "unknown match field")
		}
	}
}

// ValidateRuleList checks every term of a rule list.
func ValidateRuleList(terms domain.RuleList) ValidationErrors {
	var errs ValidationErrors
	for i := range terms {
		ValidateTerm(i, &terms[i], &errs)
	}
	return errs
}

// ValidateFlowRequest checks that a flow request only names known
// fields and that every requested field carries at least one value.
func ValidateFlowRequest(flow domain.FlowRequest) ValidationErrors {
	var errs ValidationErrors
	for f, values := range flow {
		if !domain.ValidField(f) {
			errs.Add("flow", string(f), "unknown match field")
		}
		if len(values) == 0 {
			errs.Add("flow", string(f), "requested field must carry at least one value")
		}
	}
	return errs
}

// ValidateDeviceType checks the device-type attribute.
func ValidateDeviceType(t domain.DeviceType) error {
	switch t {
	case domain.DeviceRouter, domain.DeviceSwitch, domain.DeviceFirewall:
		return nil
	}
	return fmt.Errorf("device type must be ROUTER, SWITCH or FIREWALL")
}
