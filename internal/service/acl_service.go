// Package service orchestrates the decision logic over the storage
// layer: assignment resolution, fleet census, rollout throttling and
// worklog recording.
package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/netfield/fleetacl/internal/autoassign"
	"github.com/netfield/fleetacl/internal/domain"
	"github.com/netfield/fleetacl/internal/rollout"
	"github.com/netfield/fleetacl/internal/storage"
)

// ACLService resolves device/rule-set associations and runs fleet-wide
// operations over them.
type ACLService struct {
	store         storage.Storage
	classifier    *autoassign.Classifier
	controller    *rollout.Controller
	bulkThreshold int
}

// NewACLService creates a new ACLService.
func NewACLService(store storage.Storage, classifier *autoassign.Classifier, controller *rollout.Controller, bulkThreshold int) *ACLService {
	return &ACLService{
		store:         store,
		classifier:    classifier,
		controller:    controller,
		bulkThreshold: bulkThreshold,
	}
}

// ACLSets breaks a device's rule-set associations down by origin.
type ACLSets struct {
	Explicit domain.NameSet `json:"explicit"`
	Implicit domain.NameSet `json:"implicit"`
	All      domain.NameSet `json:"all"`
}

// GetACLSets returns the explicit, implicit and combined rule-set names
// for one device. Implicit names are computed from device attributes,
// with the explicit set available to the classifier for its precedence
// rule.
func (s *ACLService) GetACLSets(ctx context.Context, deviceName string) (*ACLSets, error) {
	dev, err := s.store.GetDeviceByName(ctx, deviceName)
	if err != nil {
		return nil, err
	}
	explicit, err := s.store.ListDeviceACLs(ctx, deviceName)
	if err != nil {
		return nil, err
	}
	implicit := s.classifier.Classify(dev, explicit)
	return &ACLSets{
		Explicit: explicit,
		Implicit: implicit,
		All:      explicit.Union(implicit),
	}, nil
}

// AllAssignments snapshots every device's combined (explicit plus
// implicit) rule-set names. The result is a consistent point-in-time
// view for a census or throttling pass.
func (s *ACLService) AllAssignments(ctx context.Context) (map[string]domain.NameSet, error) {
	devices, err := s.store.ListDevices(ctx)
	if err != nil {
		return nil, err
	}
	explicitAll, err := s.store.ListAllDeviceACLs(ctx)
	if err != nil {
		return nil, err
	}

	assigned := make(map[string]domain.NameSet, len(devices))
	for _, dev := range devices {
		explicit := explicitAll[dev.Name]
		if explicit == nil {
			explicit = domain.NameSet{}
		}
		assigned[dev.Name] = explicit.Union(s.classifier.Classify(dev, explicit))
	}
	return assigned, nil
}

// Census counts, per rule-set name, how many devices carry it.
func (s *ACLService) Census(ctx context.Context) (map[string]int, error) {
	assigned, err := s.AllAssignments(ctx)
	if err != nil {
		return nil, err
	}
	return rollout.UsageCounts(assigned), nil
}

// BulkACLs returns the high fan-out rule sets subject to throttled
// rollout.
func (s *ACLService) BulkACLs(ctx context.Context) (domain.NameSet, error) {
	assigned, err := s.AllAssignments(ctx)
	if err != nil {
		return nil, err
	}
	return rollout.BulkACLs(assigned, s.bulkThreshold), nil
}

// ThrottleQueue runs one admission pass over the work queue, mutating
// it in place and returning the removal log.
func (s *ACLService) ThrottleQueue(ctx context.Context, queue domain.WorkQueue, forceAll bool) ([]rollout.Removal, error) {
	assigned, err := s.AllAssignments(ctx)
	if err != nil {
		return nil, err
	}
	bulk := rollout.BulkACLs(assigned, s.bulkThreshold)
	_, removals := s.controller.Throttle(queue, assigned, bulk, nil, forceAll)
	return removals, nil
}

// DeviceMatch pairs a device name with the rule-set names that matched
// a query against it.
type DeviceMatch struct {
	Device string   `json:"device"`
	ACLs   []string `json:"acls"`
}

// MatchingACLs returns, sorted by device name, the devices carrying at
// least one of the wanted rule sets and the names that matched on each.
// Without exact, names match by prefix.
func (s *ACLService) MatchingACLs(ctx context.Context, wanted []string, exact bool) ([]DeviceMatch, error) {
	assigned, err := s.AllAssignments(ctx)
	if err != nil {
		return nil, err
	}

	var found []DeviceMatch
	for dev, acls := range assigned {
		var matched []string
		for acl := range acls {
			for _, want := range wanted {
				if acl == want || (!exact && strings.HasPrefix(acl, want)) {
					matched = append(matched, acl)
					break
				}
			}
		}
		if len(matched) > 0 {
			sort.Strings(matched)
			found = append(found, DeviceMatch{Device: dev, ACLs: matched})
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].Device < found[j].Device })
	return found, nil
}

// RecordChange appends a titled diff to the worklog.
func (s *ACLService) RecordChange(ctx context.Context, title, diff, author string) (*domain.ChangeRecord, error) {
	if title == "" || diff == "" {
		return nil, domain.ErrInvalidInput
	}
	rec := &domain.ChangeRecord{
		ID:        uuid.New().String(),
		Title:     title,
		Diff:      diff,
		Author:    author,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateChangeRecord(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}
