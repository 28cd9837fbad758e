package storage

import (
	"context"

	"github.com/netfield/fleetacl/internal/domain"
)

// Storage defines the interface for the storage layer.
// Implementations must be safe for concurrent use.
type Storage interface {
	// Close closes the storage connection.
	Close() error

	// API Keys
	CreateAPIKey(ctx context.Context, key *domain.APIKey) error
	GetAPIKeyByHash(ctx context.Context, keyHash string) (*domain.APIKey, error)
	ListAPIKeys(ctx context.Context) ([]*domain.APIKey, error)
	DeleteAPIKey(ctx context.Context, id string) error
	UpdateAPIKeyLastUsed(ctx context.Context, id string) error
	CountAPIKeys(ctx context.Context) (int, error)

	// Devices
	CreateDevice(ctx context.Context, dev *domain.Device) error
	GetDeviceByName(ctx context.Context, name string) (*domain.Device, error)
	ListDevices(ctx context.Context) ([]*domain.Device, error)
	UpdateDevice(ctx context.Context, dev *domain.Device) error
	DeleteDevice(ctx context.Context, name string) error

	// Explicit ACL assignments. Adding an assignment a device already
	// has, or removing one it does not, is an error.
	AddDeviceACL(ctx context.Context, deviceName, acl string) error
	RemoveDeviceACL(ctx context.Context, deviceName, acl string) error
	ListDeviceACLs(ctx context.Context, deviceName string) (domain.NameSet, error)
	ListAllDeviceACLs(ctx context.Context) (map[string]domain.NameSet, error)

	// Rule sets
	CreateRuleSet(ctx context.Context, rs *domain.RuleSet) error
	GetRuleSetByName(ctx context.Context, name string) (*domain.RuleSet, error)
	ListRuleSets(ctx context.Context) ([]*domain.RuleSet, error)
	UpdateRuleSet(ctx context.Context, rs *domain.RuleSet) error
	DeleteRuleSet(ctx context.Context, name string) error

	// Change log (worklog). Records are append-only.
	CreateChangeRecord(ctx context.Context, rec *domain.ChangeRecord) error
	ListChangeRecords(ctx context.Context, limit, offset int) ([]*domain.ChangeRecord, error)
}
