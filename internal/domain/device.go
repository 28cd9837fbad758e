package domain

import (
	"regexp"
	"time"
)

// DeviceType is the functional class of a network device.
type DeviceType string

const (
	DeviceRouter   DeviceType = "ROUTER"
	DeviceSwitch   DeviceType = "SWITCH"
	DeviceFirewall DeviceType = "FIREWALL"
)

// Device is one entry in the network inventory. Devices are read-only to
// the decision logic; only the storage layer mutates them.
type Device struct {
	ID           string     `json:"id" db:"id"`
	Name         string     `json:"name" db:"name"`
	OwningTeam   string     `json:"owning_team" db:"owning_team"`
	DeviceType   DeviceType `json:"device_type" db:"device_type"`
	Manufacturer string     `json:"manufacturer" db:"manufacturer"`
	Make         string     `json:"make" db:"make"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

// groupKeyPat extracts the rollout grouping tokens from a device name:
// a letter prefix with an optional one- or two-digit numeric suffix,
// a dash, then an alphanumeric site token. "edge1-nyc" -> ("edge","nyc").
var groupKeyPat = regexp.MustCompile(`^([a-z]+)\d{0,2}-([a-z0-9]+)`)

// GroupKey identifies a (prefix, site) rollout group.
type GroupKey struct {
	Prefix string `json:"prefix"`
	Site   string `json:"site"`
}

// ParseGroupKey derives the rollout group key from a device name.
// Names that do not follow the prefix-site convention return ok=false;
// callers treat those devices as ungroupable and leave them alone.
func ParseGroupKey(name string) (GroupKey, bool) {
	m := groupKeyPat.FindStringSubmatch(name)
	if m == nil {
		return GroupKey{}, false
	}
	return GroupKey{Prefix: m[1], Site: m[2]}, true
}

// NameSet is an unordered collection of rule-set names.
type NameSet map[string]struct{}

// NewNameSet builds a set from the given names.
func NewNameSet(names ...string) NameSet {
	s := make(NameSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// Has reports membership.
func (s NameSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Add inserts a name.
func (s NameSet) Add(name string) { s[name] = struct{}{} }

// Remove deletes a name if present.
func (s NameSet) Remove(name string) { delete(s, name) }

// Union returns a new set containing members of both sets.
func (s NameSet) Union(other NameSet) NameSet {
	out := make(NameSet, len(s)+len(other))
	for n := range s {
		out[n] = struct{}{}
	}
	for n := range other {
		out[n] = struct{}{}
	}
	return out
}

// WorkQueue maps a device name to the rule-set names still awaiting
// deployment on it. The admission controller only ever removes entries.
type WorkQueue map[string]NameSet

// CreateDeviceRequest is the request body for adding a device to the
// inventory.
type CreateDeviceRequest struct {
	Name         string     `json:"name"`
	OwningTeam   string     `json:"owning_team"`
	DeviceType   DeviceType `json:"device_type"`
	Manufacturer string     `json:"manufacturer"`
	Make         string     `json:"make,omitempty"`
}

// UpdateDeviceRequest is the request body for updating a device.
type UpdateDeviceRequest struct {
	OwningTeam   *string     `json:"owning_team,omitempty"`
	DeviceType   *DeviceType `json:"device_type,omitempty"`
	Manufacturer *string     `json:"manufacturer,omitempty"`
	Make         *string     `json:"make,omitempty"`
}
