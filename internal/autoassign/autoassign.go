// Package autoassign decides which rule sets a device must carry
// implicitly, on top of whatever was explicitly associated with it.
//
// The policy is an ordered list of independent attribute checks, each
// contributing zero or more rule-set names. Checks do not see each
// other's contributions; the single exception is the explicit-precedence
// rule at the bottom, where an explicitly assigned special name
// suppresses its default counterpart.
package autoassign

import (
	"strings"

	"github.com/netfield/fleetacl/internal/domain"
)

// SpecialOverrideName is the explicit assignment that suppresses the
// default protection rule set for routers and switches.
const SpecialOverrideName = "10.special"

// Classifier holds the configured guard rails for auto-assignment.
type Classifier struct {
	// ValidOwners are the owning-team identifiers eligible for
	// auto-assignment. Devices owned by anyone else get nothing.
	ValidOwners map[string]struct{}
	// NameTokens are substrings, at least one of which must appear in a
	// device name for it to be considered well-formed. Empty disables
	// the check.
	NameTokens []string
}

// New builds a classifier from the configured owner and naming lists.
func New(owners []string, nameTokens []string) *Classifier {
	c := &Classifier{
		ValidOwners: make(map[string]struct{}, len(owners)),
		NameTokens:  nameTokens,
	}
	for _, o := range owners {
		c.ValidOwners[o] = struct{}{}
	}
	return c
}

// Classify returns the implicit rule-set names for a device. It is a
// pure, total function: unrecognized attributes simply match nothing,
// so the failure mode is under-assignment, never over-assignment.
func (c *Classifier) Classify(dev *domain.Device, explicit domain.NameSet) domain.NameSet {
	acls := domain.NameSet{}

	// Skip anything not owned by a recognized team.
	if _, ok := c.ValidOwners[dev.OwningTeam]; !ok {
		return acls
	}

	// Skip firewall devices.
	if dev.DeviceType == domain.DeviceFirewall {
		return acls
	}

	// Skip devices whose names fail the naming convention.
	if !c.nameOK(dev.Name) {
		return acls
	}

	if dev.Manufacturer == "BROCADE" || dev.Manufacturer == "CISCO SYSTEMS" || dev.Manufacturer == "FOUNDRY" {
		acls.Add("118")
		acls.Add("119")
	}

	if dev.Manufacturer == "CISCO SYSTEMS" {
		acls.Add("117")
		if dev.Make == "12000 SERIES" && (strings.HasPrefix(dev.Name, "pop") || strings.HasPrefix(dev.Name, "bb")) {
			acls.Add("backbone-acl")
		} else if dev.Make == "12000 SERIES" {
			acls.Add("gsr-acl")
		}
	}

	if dev.Manufacturer == "JUNIPER" {
		if dev.DeviceType == domain.DeviceSwitch {
			acls.Add("juniper-switch-protect")
		} else {
			acls.Add("juniper-router-protect")
			acls.Add("juniper-router.policer")
		}
	}

	// Explicit assignment wins over the default: the special name, when
	// explicitly associated, suppresses the default protection set.
	if explicit.Has(SpecialOverrideName) {
		// suppressed
	} else if dev.DeviceType == domain.DeviceRouter {
		acls.Add("10")
	} else if dev.DeviceType == domain.DeviceSwitch {
		acls.Add("10.sw")
	}

	return acls
}

func (c *Classifier) nameOK(name string) bool {
	if len(c.NameTokens) == 0 {
		return true
	}
	for _, tok := range c.NameTokens {
		if strings.Contains(name, tok) {
			return true
		}
	}
	return false
}
