// Package memory is an in-memory implementation of the storage
// interface, used in tests and as a reference implementation.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/netfield/fleetacl/internal/domain"
)

// Store is an in-memory implementation of the storage interface.
type Store struct {
	mu sync.RWMutex

	apiKeys       map[string]*domain.APIKey  // key: id
	devices       map[string]*domain.Device  // key: name
	deviceACLs    map[string]domain.NameSet  // key: device name
	ruleSets      map[string]*domain.RuleSet // key: name
	changeRecords []*domain.ChangeRecord
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		apiKeys:    make(map[string]*domain.APIKey),
		devices:    make(map[string]*domain.Device),
		deviceACLs: make(map[string]domain.NameSet),
		ruleSets:   make(map[string]*domain.RuleSet),
	}
}

func (s *Store) Close() error { return nil }

// ============================================
// API Keys
// ============================================

func (s *Store) CreateAPIKey(ctx context.Context, key *domain.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.apiKeys[key.ID]; ok {
		return domain.ErrAlreadyExists
	}
	cp := *key
	s.apiKeys[key.ID] = &cp
	return nil
}

func (s *Store) GetAPIKeyByHash(ctx context.Context, keyHash string) (*domain.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, k := range s.apiKeys {
		if k.KeyHash == keyHash {
			cp := *k
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *Store) ListAPIKeys(ctx context.Context) ([]*domain.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]*domain.APIKey, 0, len(s.apiKeys))
	for _, k := range s.apiKeys {
		cp := *k
		keys = append(keys, &cp)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].CreatedAt.Before(keys[j].CreatedAt) })
	return keys, nil
}

func (s *Store) DeleteAPIKey(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.apiKeys[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.apiKeys, id)
	return nil
}

func (s *Store) UpdateAPIKeyLastUsed(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.apiKeys[id]
	if !ok {
		return domain.ErrNotFound
	}
	now := time.Now()
	k.LastUsedAt = &now
	return nil
}

func (s *Store) CountAPIKeys(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.apiKeys), nil
}

// ============================================
// Devices
// ============================================

func (s *Store) CreateDevice(ctx context.Context, dev *domain.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.devices[dev.Name]; ok {
		return domain.ErrAlreadyExists
	}
	cp := *dev
	s.devices[dev.Name] = &cp
	return nil
}

func (s *Store) GetDeviceByName(ctx context.Context, name string) (*domain.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dev, ok := s.devices[name]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *dev
	return &cp, nil
}

func (s *Store) ListDevices(ctx context.Context) ([]*domain.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	devices := make([]*domain.Device, 0, len(s.devices))
	for _, dev := range s.devices {
		cp := *dev
		devices = append(devices, &cp)
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].Name < devices[j].Name })
	return devices, nil
}

func (s *Store) UpdateDevice(ctx context.Context, dev *domain.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.devices[dev.Name]; !ok {
		return domain.ErrNotFound
	}
	cp := *dev
	s.devices[dev.Name] = &cp
	return nil
}

func (s *Store) DeleteDevice(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.devices[name]; !ok {
		return domain.ErrNotFound
	}
	delete(s.devices, name)
	delete(s.deviceACLs, name)
	return nil
}

// ============================================
// Explicit ACL assignments
// ============================================

func (s *Store) AddDeviceACL(ctx context.Context, deviceName, acl string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.devices[deviceName]; !ok {
		return domain.ErrNotFound
	}
	acls := s.deviceACLs[deviceName]
	if acls == nil {
		acls = domain.NameSet{}
		s.deviceACLs[deviceName] = acls
	}
	if acls.Has(acl) {
		return domain.ErrAlreadyExists
	}
	acls.Add(acl)
	return nil
}

func (s *Store) RemoveDeviceACL(ctx context.Context, deviceName, acl string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.devices[deviceName]; !ok {
		return domain.ErrNotFound
	}
	acls := s.deviceACLs[deviceName]
	if !acls.Has(acl) {
		return domain.ErrNotFound
	}
	acls.Remove(acl)
	return nil
}

func (s *Store) ListDeviceACLs(ctx context.Context, deviceName string) (domain.NameSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.devices[deviceName]; !ok {
		return nil, domain.ErrNotFound
	}
	out := domain.NameSet{}
	for acl := range s.deviceACLs[deviceName] {
		out.Add(acl)
	}
	return out, nil
}

func (s *Store) ListAllDeviceACLs(ctx context.Context) (map[string]domain.NameSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]domain.NameSet, len(s.devices))
	for name := range s.devices {
		acls := domain.NameSet{}
		for acl := range s.deviceACLs[name] {
			acls.Add(acl)
		}
		out[name] = acls
	}
	return out, nil
}

// ============================================
// Rule sets
// ============================================

func (s *Store) CreateRuleSet(ctx context.Context, rs *domain.RuleSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ruleSets[rs.Name]; ok {
		return domain.ErrAlreadyExists
	}
	cp := *rs
	cp.Terms = append(domain.RuleList(nil), rs.Terms...)
	s.ruleSets[rs.Name] = &cp
	return nil
}

func (s *Store) GetRuleSetByName(ctx context.Context, name string) (*domain.RuleSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rs, ok := s.ruleSets[name]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *rs
	cp.Terms = append(domain.RuleList(nil), rs.Terms...)
	return &cp, nil
}

func (s *Store) ListRuleSets(ctx context.Context) ([]*domain.RuleSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sets := make([]*domain.RuleSet, 0, len(s.ruleSets))
	for _, rs := range s.ruleSets {
		cp := *rs
		cp.Terms = append(domain.RuleList(nil), rs.Terms...)
		sets = append(sets, &cp)
	}
	sort.Slice(sets, func(i, j int) bool { return sets[i].Name < sets[j].Name })
	return sets, nil
}

func (s *Store) UpdateRuleSet(ctx context.Context, rs *domain.RuleSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ruleSets[rs.Name]; !ok {
		return domain.ErrNotFound
	}
	cp := *rs
	cp.Terms = append(domain.RuleList(nil), rs.Terms...)
	s.ruleSets[rs.Name] = &cp
	return nil
}

func (s *Store) DeleteRuleSet(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ruleSets[name]; !ok {
		return domain.ErrNotFound
	}
	delete(s.ruleSets, name)
	return nil
}

// ============================================
// Change log
// ============================================

func (s *Store) CreateChangeRecord(ctx context.Context, rec *domain.ChangeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.changeRecords = append(s.changeRecords, &cp)
	return nil
}

func (s *Store) ListChangeRecords(ctx context.Context, limit, offset int) ([]*domain.ChangeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	// Newest first.
	ordered := make([]*domain.ChangeRecord, len(s.changeRecords))
	copy(ordered, s.changeRecords)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.After(ordered[j].CreatedAt)
	})
	if offset >= len(ordered) {
		return nil, nil
	}
	ordered = ordered[offset:]
	if limit > 0 && limit < len(ordered) {
		ordered = ordered[:limit]
	}
	out := make([]*domain.ChangeRecord, len(ordered))
	for i, rec := range ordered {
		cp := *rec
		out[i] = &cp
	}
	return out, nil
}
