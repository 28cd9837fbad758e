package rollout_test

import (
	"testing"

	"github.com/netfield/fleetacl/internal/domain"
	"github.com/netfield/fleetacl/internal/rollout"
)

func queueOf(entries map[string][]string) domain.WorkQueue {
	q := domain.WorkQueue{}
	for dev, acls := range entries {
		q[dev] = domain.NewNameSet(acls...)
	}
	return q
}

func TestThrottle_GroupThreshold(t *testing.T) {
	// Three devices share the ("edge", "nyc") group, each queued for
	// rule set X with a threshold of 2: sorted processing admits the
	// first two and removes X from the third only.
	c := &rollout.Controller{DefaultThreshold: 2, Quiet: true}
	queue := queueOf(map[string][]string{
		"edge1-nyc": {"X"},
		"edge2-nyc": {"X"},
		"edge3-nyc": {"X"},
	})
	assigned := map[string]domain.NameSet{
		"edge1-nyc": domain.NewNameSet("X"),
		"edge2-nyc": domain.NewNameSet("X"),
		"edge3-nyc": domain.NewNameSet("X"),
	}
	bulk := domain.NewNameSet("X")

	_, removals := c.Throttle(queue, assigned, bulk, nil, false)

	if len(removals) != 1 {
		t.Fatalf("Expected exactly 1 removal, got %d", len(removals))
	}
	r := removals[0]
	if r.Device != "edge3-nyc" || r.RuleSet != "X" || r.Threshold != 2 {
		t.Errorf("Unexpected removal record: %+v", r)
	}
	if r.Group.Prefix != "edge" || r.Group.Site != "nyc" {
		t.Errorf("Unexpected group key: %+v", r.Group)
	}

	if !queue["edge1-nyc"].Has("X") || !queue["edge2-nyc"].Has("X") {
		t.Errorf("First two devices must keep X queued: %v", queue)
	}
	if queue["edge3-nyc"].Has("X") {
		t.Errorf("Third device must lose X: %v", queue["edge3-nyc"])
	}
}

func TestThrottle_PartialAdmissionPerRuleSet(t *testing.T) {
	// Removal is per rule set: the throttled device keeps its queue
	// entry for other rule sets.
	c := &rollout.Controller{DefaultThreshold: 1, Quiet: true}
	queue := queueOf(map[string][]string{
		"edge1-nyc": {"X"},
		"edge2-nyc": {"X", "Y"},
	})
	assigned := map[string]domain.NameSet{
		"edge1-nyc": domain.NewNameSet("X"),
		"edge2-nyc": domain.NewNameSet("X", "Y"),
	}
	bulk := domain.NewNameSet("X")

	_, removals := c.Throttle(queue, assigned, bulk, nil, false)

	if len(removals) != 1 || removals[0].Device != "edge2-nyc" {
		t.Fatalf("Expected one removal on edge2-nyc, got %+v", removals)
	}
	if queue["edge2-nyc"].Has("X") {
		t.Errorf("X must be removed from edge2-nyc")
	}
	if !queue["edge2-nyc"].Has("Y") {
		t.Errorf("Y is not throttled and must stay queued")
	}
}

func TestThrottle_UnparseableNameIsLeftAlone(t *testing.T) {
	c := &rollout.Controller{DefaultThreshold: 1, Quiet: true}
	queue := queueOf(map[string][]string{
		"UPPERCASE_HOST": {"X"},
		"edge1-nyc":      {"X"},
		"edge2-nyc":      {"X"},
	})
	assigned := map[string]domain.NameSet{
		"UPPERCASE_HOST": domain.NewNameSet("X"),
		"edge1-nyc":      domain.NewNameSet("X"),
		"edge2-nyc":      domain.NewNameSet("X"),
	}
	bulk := domain.NewNameSet("X")

	_, removals := c.Throttle(queue, assigned, bulk, nil, false)

	if !queue["UPPERCASE_HOST"].Has("X") {
		t.Errorf("Ungroupable device must keep its queue entries")
	}
	for _, r := range removals {
		if r.Device == "UPPERCASE_HOST" {
			t.Errorf("Ungroupable device must not produce removals: %+v", r)
		}
	}
	// The two groupable devices still count against the threshold.
	if len(removals) != 1 || removals[0].Device != "edge2-nyc" {
		t.Errorf("Expected one removal on edge2-nyc, got %+v", removals)
	}
}

func TestThrottle_Idempotent(t *testing.T) {
	c := &rollout.Controller{DefaultThreshold: 2, Quiet: true}
	assigned := map[string]domain.NameSet{
		"edge1-nyc": domain.NewNameSet("X"),
		"edge2-nyc": domain.NewNameSet("X"),
		"edge3-nyc": domain.NewNameSet("X"),
	}
	bulk := domain.NewNameSet("X")
	queue := queueOf(map[string][]string{
		"edge1-nyc": {"X"},
		"edge2-nyc": {"X"},
		"edge3-nyc": {"X"},
	})

	_, first := c.Throttle(queue, assigned, bulk, nil, false)
	if len(first) != 1 {
		t.Fatalf("Expected 1 removal on the first pass, got %d", len(first))
	}

	// Re-running on the already-throttled output removes nothing more.
	_, second := c.Throttle(queue, assigned, bulk, nil, false)
	if len(second) != 0 {
		t.Errorf("Expected no removals on the second pass, got %+v", second)
	}
}

func TestThrottle_PerRuleSetOverride(t *testing.T) {
	c := &rollout.Controller{
		DefaultThreshold: 5,
		Overrides:        map[string]int{"X": 1},
		Quiet:            true,
	}
	queue := queueOf(map[string][]string{
		"edge1-nyc": {"X", "Y"},
		"edge2-nyc": {"X", "Y"},
	})
	assigned := map[string]domain.NameSet{
		"edge1-nyc": domain.NewNameSet("X", "Y"),
		"edge2-nyc": domain.NewNameSet("X", "Y"),
	}
	bulk := domain.NewNameSet("X", "Y")

	_, removals := c.Throttle(queue, assigned, bulk, nil, false)

	if len(removals) != 1 || removals[0].RuleSet != "X" || removals[0].Threshold != 1 {
		t.Fatalf("Expected one removal of X at threshold 1, got %+v", removals)
	}
	if !queue["edge2-nyc"].Has("Y") {
		t.Errorf("Y uses the default threshold and must survive")
	}
}

func TestThrottle_OnlyBulkNamesUnlessForced(t *testing.T) {
	c := &rollout.Controller{DefaultThreshold: 1, Quiet: true}
	assigned := map[string]domain.NameSet{
		"edge1-nyc": domain.NewNameSet("rare"),
		"edge2-nyc": domain.NewNameSet("rare"),
	}
	queue := queueOf(map[string][]string{
		"edge1-nyc": {"rare"},
		"edge2-nyc": {"rare"},
	})

	// "rare" is not a bulk rule set: nothing is throttled.
	_, removals := c.Throttle(queue, assigned, domain.NameSet{}, nil, false)
	if len(removals) != 0 {
		t.Fatalf("Non-bulk rule sets must not be throttled, got %+v", removals)
	}

	// force_all throttles every assigned name.
	_, removals = c.Throttle(queue, assigned, domain.NameSet{}, nil, true)
	if len(removals) != 1 || removals[0].Device != "edge2-nyc" {
		t.Errorf("Expected forced throttling to remove from edge2-nyc, got %+v", removals)
	}
}

func TestThrottle_HitCountersSpanCalls(t *testing.T) {
	// Feeding the returned counters back in continues the same batch.
	c := &rollout.Controller{DefaultThreshold: 2, Quiet: true}
	assigned := map[string]domain.NameSet{
		"edge1-nyc": domain.NewNameSet("X"),
		"edge2-nyc": domain.NewNameSet("X"),
	}
	bulk := domain.NewNameSet("X")

	firstQueue := queueOf(map[string][]string{"edge1-nyc": {"X"}, "edge2-nyc": {"X"}})
	hits, removals := c.Throttle(firstQueue, assigned, bulk, nil, false)
	if len(removals) != 0 {
		t.Fatalf("First call fits the threshold, got removals %+v", removals)
	}

	secondQueue := queueOf(map[string][]string{"edge3-nyc": {"X"}})
	secondAssigned := map[string]domain.NameSet{"edge3-nyc": domain.NewNameSet("X")}
	_, removals = c.Throttle(secondQueue, secondAssigned, bulk, hits, false)
	if len(removals) != 1 || removals[0].Device != "edge3-nyc" {
		t.Errorf("Expected the carried counters to throttle edge3-nyc, got %+v", removals)
	}
}

func TestUsageCounts(t *testing.T) {
	assigned := map[string]domain.NameSet{
		"edge1-nyc": domain.NewNameSet("X", "Y"),
		"edge2-nyc": domain.NewNameSet("X"),
		"edge3-sfo": domain.NewNameSet("X", ""),
	}

	counts := rollout.UsageCounts(assigned)
	if counts["X"] != 3 || counts["Y"] != 1 {
		t.Errorf("Unexpected counts: %v", counts)
	}
	if _, ok := counts[""]; ok {
		t.Errorf("Empty names must not be counted")
	}
}

func TestBulkACLs(t *testing.T) {
	assigned := map[string]domain.NameSet{
		"edge1-nyc": domain.NewNameSet("X", "Y"),
		"edge2-nyc": domain.NewNameSet("X"),
	}

	bulk := rollout.BulkACLs(assigned, 2)
	if !bulk.Has("X") || bulk.Has("Y") {
		t.Errorf("Expected only X at fan-out 2, got %v", bulk)
	}
}
