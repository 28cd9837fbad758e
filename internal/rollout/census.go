package rollout

import "github.com/netfield/fleetacl/internal/domain"

// UsageCounts tallies, per rule-set name, how many devices carry it.
// assigned is a point-in-time snapshot of the full inventory's
// assignments (explicit and implicit combined); the caller must not
// update it while a throttling pass is using the result.
func UsageCounts(assigned map[string]domain.NameSet) map[string]int {
	counts := make(map[string]int)
	for _, acls := range assigned {
		for name := range acls {
			if name == "" {
				continue
			}
			counts[name]++
		}
	}
	return counts
}

// BulkACLs returns the high fan-out rule sets: those applied to at least
// minUsage devices fleet-wide. These are the names throttled by default
// during a rollout.
func BulkACLs(assigned map[string]domain.NameSet, minUsage int) domain.NameSet {
	bulk := domain.NameSet{}
	for name, count := range UsageCounts(assigned) {
		if count >= minUsage {
			bulk.Add(name)
		}
	}
	return bulk
}
