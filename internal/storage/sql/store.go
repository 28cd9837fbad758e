// Package sql implements the storage interface on a relational
// database via sqlx, with goose-managed migrations. SQLite and
// PostgreSQL are supported.
package sql

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/netfield/fleetacl/internal/domain"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// isUniqueViolation checks if an error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	// SQLite
	if strings.Contains(errStr, "UNIQUE constraint failed") {
		return true
	}
	// PostgreSQL
	if strings.Contains(errStr, "duplicate key value violates unique constraint") {
		return true
	}
	return false
}

// wrapUniqueError converts UNIQUE violations to domain.ErrAlreadyExists.
func wrapUniqueError(err error) error {
	if isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	return err
}

// wrapNotFound converts sql.ErrNoRows to domain.ErrNotFound.
func wrapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}

// Store implements the storage.Storage interface using SQL.
type Store struct {
	db     *sqlx.DB
	driver string
}

// New creates a new SQL store and runs pending migrations.
func New(driver, dsn string) (*Store, error) {
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect(driver); err != nil {
		return nil, fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := goose.Up(db.DB, "migrations"); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db, driver: driver}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ============================================
// API Keys
// ============================================

func (s *Store) CreateAPIKey(ctx context.Context, key *domain.APIKey) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO api_keys (id, name, key_hash, key_prefix, created_at, last_used_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		key.ID, key.Name, key.KeyHash, key.KeyPrefix, key.CreatedAt, key.LastUsedAt)
	return wrapUniqueError(err)
}

func (s *Store) GetAPIKeyByHash(ctx context.Context, keyHash string) (*domain.APIKey, error) {
	var key domain.APIKey
	err := s.db.GetContext(ctx, &key,
		`SELECT id, name, key_hash, key_prefix, created_at, last_used_at
		 FROM api_keys WHERE key_hash = $1`, keyHash)
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return &key, nil
}

func (s *Store) ListAPIKeys(ctx context.Context) ([]*domain.APIKey, error) {
	var keys []*domain.APIKey
	err := s.db.SelectContext(ctx, &keys,
		`SELECT id, name, key_hash, key_prefix, created_at, last_used_at
		 FROM api_keys ORDER BY created_at`)
	return keys, err
}

func (s *Store) DeleteAPIKey(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM api_keys WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireRows(res)
}

func (s *Store) UpdateAPIKeyLastUsed(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE api_keys SET last_used_at = CURRENT_TIMESTAMP WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireRows(res)
}

func (s *Store) CountAPIKeys(ctx context.Context) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM api_keys`)
	return count, err
}

// ============================================
// Devices
// ============================================

func (s *Store) CreateDevice(ctx context.Context, dev *domain.Device) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO devices (id, name, owning_team, device_type, manufacturer, make, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		dev.ID, dev.Name, dev.OwningTeam, dev.DeviceType, dev.Manufacturer, dev.Make,
		dev.CreatedAt, dev.UpdatedAt)
	return wrapUniqueError(err)
}

func (s *Store) GetDeviceByName(ctx context.Context, name string) (*domain.Device, error) {
	var dev domain.Device
	err := s.db.GetContext(ctx, &dev,
		`SELECT id, name, owning_team, device_type, manufacturer, make, created_at, updated_at
		 FROM devices WHERE name = $1`, name)
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return &dev, nil
}

func (s *Store) ListDevices(ctx context.Context) ([]*domain.Device, error) {
	var devices []*domain.Device
	err := s.db.SelectContext(ctx, &devices,
		`SELECT id, name, owning_team, device_type, manufacturer, make, created_at, updated_at
		 FROM devices ORDER BY name`)
	return devices, err
}

func (s *Store) UpdateDevice(ctx context.Context, dev *domain.Device) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE devices SET owning_team = $1, device_type = $2, manufacturer = $3,
		 make = $4, updated_at = $5 WHERE name = $6`,
		dev.OwningTeam, dev.DeviceType, dev.Manufacturer, dev.Make, dev.UpdatedAt, dev.Name)
	if err != nil {
		return err
	}
	return requireRows(res)
}

func (s *Store) DeleteDevice(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM device_acls WHERE device_name = $1`, name); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM devices WHERE name = $1`, name)
	if err != nil {
		return err
	}
	return requireRows(res)
}

// ============================================
// Explicit ACL assignments
// ============================================

func (s *Store) AddDeviceACL(ctx context.Context, deviceName, acl string) error {
	if _, err := s.GetDeviceByName(ctx, deviceName); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO device_acls (device_name, acl) VALUES ($1, $2)`,
		deviceName, acl)
	return wrapUniqueError(err)
}

func (s *Store) RemoveDeviceACL(ctx context.Context, deviceName, acl string) error {
	if _, err := s.GetDeviceByName(ctx, deviceName); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM device_acls WHERE device_name = $1 AND acl = $2`,
		deviceName, acl)
	if err != nil {
		return err
	}
	return requireRows(res)
}

func (s *Store) ListDeviceACLs(ctx context.Context, deviceName string) (domain.NameSet, error) {
	if _, err := s.GetDeviceByName(ctx, deviceName); err != nil {
		return nil, err
	}
	var acls []string
	err := s.db.SelectContext(ctx, &acls,
		`SELECT acl FROM device_acls WHERE device_name = $1`, deviceName)
	if err != nil {
		return nil, err
	}
	return domain.NewNameSet(acls...), nil
}

func (s *Store) ListAllDeviceACLs(ctx context.Context) (map[string]domain.NameSet, error) {
	devices, err := s.ListDevices(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]domain.NameSet, len(devices))
	for _, dev := range devices {
		out[dev.Name] = domain.NameSet{}
	}

	rows, err := s.db.QueryxContext(ctx, `SELECT device_name, acl FROM device_acls`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var deviceName, acl string
		if err := rows.Scan(&deviceName, &acl); err != nil {
			return nil, err
		}
		if acls, ok := out[deviceName]; ok {
			acls.Add(acl)
		}
	}
	return out, rows.Err()
}

// ============================================
// Rule sets
// ============================================

// Terms are stored as a JSON document; the device-native rule-file
// grammar is parsed and rendered outside this service.

func (s *Store) CreateRuleSet(ctx context.Context, rs *domain.RuleSet) error {
	terms, err := json.Marshal(rs.Terms)
	if err != nil {
		return fmt.Errorf("encoding terms: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO rule_sets (id, name, terms, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		rs.ID, rs.Name, string(terms), rs.CreatedAt, rs.UpdatedAt)
	return wrapUniqueError(err)
}

func (s *Store) GetRuleSetByName(ctx context.Context, name string) (*domain.RuleSet, error) {
	row := s.db.QueryRowxContext(ctx,
		`SELECT id, name, terms, created_at, updated_at FROM rule_sets WHERE name = $1`, name)
	return scanRuleSet(row)
}

func (s *Store) ListRuleSets(ctx context.Context) ([]*domain.RuleSet, error) {
	rows, err := s.db.QueryxContext(ctx,
		`SELECT id, name, terms, created_at, updated_at FROM rule_sets ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sets []*domain.RuleSet
	for rows.Next() {
		rs, err := scanRuleSet(rows)
		if err != nil {
			return nil, err
		}
		sets = append(sets, rs)
	}
	return sets, rows.Err()
}

func (s *Store) UpdateRuleSet(ctx context.Context, rs *domain.RuleSet) error {
	terms, err := json.Marshal(rs.Terms)
	if err != nil {
		return fmt.Errorf("encoding terms: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE rule_sets SET terms = $1, updated_at = $2 WHERE name = $3`,
		string(terms), rs.UpdatedAt, rs.Name)
	if err != nil {
		return err
	}
	return requireRows(res)
}

func (s *Store) DeleteRuleSet(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM rule_sets WHERE name = $1`, name)
	if err != nil {
		return err
	}
	return requireRows(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRuleSet(row rowScanner) (*domain.RuleSet, error) {
	var rs domain.RuleSet
	var terms string
	if err := row.Scan(&rs.ID, &rs.Name, &terms, &rs.CreatedAt, &rs.UpdatedAt); err != nil {
		return nil, wrapNotFound(err)
	}
	if err := json.Unmarshal([]byte(terms), &rs.Terms); err != nil {
		return nil, fmt.Errorf("decoding terms: %w", err)
	}
	return &rs, nil
}

// ============================================
// Change log
// ============================================

func (s *Store) CreateChangeRecord(ctx context.Context, rec *domain.ChangeRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO change_log (id, title, diff, author, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		rec.ID, rec.Title, rec.Diff, rec.Author, rec.CreatedAt)
	return wrapUniqueError(err)
}

func (s *Store) ListChangeRecords(ctx context.Context, limit, offset int) ([]*domain.ChangeRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var records []*domain.ChangeRecord
	err := s.db.SelectContext(ctx, &records,
		`SELECT id, title, diff, author, created_at FROM change_log
		 ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	return records, err
}

// requireRows converts a zero-row result into domain.ErrNotFound.
func requireRows(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
