// Package rollout bounds the blast radius of fleet-wide rule-set pushes.
// Devices queued for the same rule set are admitted per (prefix, site)
// group up to a threshold; the overflow keeps its queue entry for other
// rule sets but is not touched for the throttled one in this batch.
package rollout

import (
	"log"
	"sort"

	"github.com/netfield/fleetacl/internal/domain"
)

// Removal records one queue entry dropped by the admission controller.
type Removal struct {
	RuleSet   string          `json:"rule_set"`
	Device    string          `json:"device"`
	Threshold int             `json:"threshold"`
	Group     domain.GroupKey `json:"group"`
}

// GroupHits counts, per (prefix, site) group, how many devices have been
// admitted for a rule set so far in one rollout batch. The map is scoped
// to a batch: pass nil to start one, and feed the returned map back in
// to continue the same batch across calls.
type GroupHits map[domain.GroupKey]int

// Controller applies per-group admission thresholds to a work queue.
type Controller struct {
	// DefaultThreshold admits up to this many devices per group for a
	// rule set with no override.
	DefaultThreshold int
	// Overrides raises or lowers the threshold for specific rule sets.
	Overrides map[string]int
	// Quiet suppresses the removal log lines.
	Quiet bool
}

// Throttle walks the queue in sorted device-name order and removes, in
// place, every (device, rule set) entry whose admission would push its
// (prefix, site) group past the threshold for that rule set.
//
// assigned maps each device name to all rule-set names it carries;
// bulk is the census-derived set of high fan-out rule sets. Only bulk
// names are examined unless forceAll is set, in which case every
// assigned name is. Devices whose names yield no group key are left
// untouched. Returns the updated hit counters and the removal log.
func (c *Controller) Throttle(
	queue domain.WorkQueue,
	assigned map[string]domain.NameSet,
	bulk domain.NameSet,
	hits GroupHits,
	forceAll bool,
) (GroupHits, []Removal) {
	if hits == nil {
		hits = GroupHits{}
	}

	devices := make([]string, 0, len(queue))
	for name := range queue {
		devices = append(devices, name)
	}
	sort.Strings(devices)

	var removals []Removal
	for _, dev := range devices {
		candidates := assigned[dev]
		if !forceAll {
			candidates = intersect(candidates, bulk)
		}

		for _, ruleSet := range sortedNames(candidates) {
			if !queue[dev].Has(ruleSet) {
				continue
			}

			key, ok := domain.ParseGroupKey(dev)
			if !ok {
				// No group key, no throttling: leave the entry queued.
				continue
			}

			threshold := c.DefaultThreshold
			if override, ok := c.Overrides[ruleSet]; ok {
				threshold = override
			}

			hits[key]++
			if hits[key] > threshold {
				queue[dev].Remove(ruleSet)
				removals = append(removals, Removal{
					RuleSet:   ruleSet,
					Device:    dev,
					Threshold: threshold,
					Group:     key,
				})
				if !c.Quiet {
					log.Printf("removing %s on %s from job queue: threshold of %d exceeded for %q devices in %q",
						ruleSet, dev, threshold, key.Prefix, key.Site)
				}
			}
		}
	}

	return hits, removals
}

func intersect(a, b domain.NameSet) domain.NameSet {
	out := domain.NameSet{}
	for n := range a {
		if b.Has(n) {
			out.Add(n)
		}
	}
	return out
}

func sortedNames(s domain.NameSet) []string {
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
