package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/netfield/fleetacl/internal/domain"
)

func TestDeviceLifecycle(t *testing.T) {
	store := New()
	ctx := context.Background()

	dev := &domain.Device{
		ID:         "dev-1",
		Name:       "edge1-nyc.net.example.com",
		OwningTeam: "Data Center",
		DeviceType: domain.DeviceRouter,
	}
	if err := store.CreateDevice(ctx, dev); err != nil {
		t.Fatalf("CreateDevice failed: %v", err)
	}
	if err := store.CreateDevice(ctx, dev); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Errorf("Expected ErrAlreadyExists, got %v", err)
	}

	got, err := store.GetDeviceByName(ctx, dev.Name)
	if err != nil {
		t.Fatalf("GetDeviceByName failed: %v", err)
	}
	// Reads hand out copies; mutating one must not leak into the store.
	got.OwningTeam = "changed"
	again, _ := store.GetDeviceByName(ctx, dev.Name)
	if again.OwningTeam != "Data Center" {
		t.Errorf("Store contents were mutated through a read copy")
	}

	if err := store.DeleteDevice(ctx, dev.Name); err != nil {
		t.Fatalf("DeleteDevice failed: %v", err)
	}
	if _, err := store.GetDeviceByName(ctx, dev.Name); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
}

func TestDeviceACLs(t *testing.T) {
	store := New()
	ctx := context.Background()

	if err := store.AddDeviceACL(ctx, "no-such-device", "abc123"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for an unknown device, got %v", err)
	}

	dev := &domain.Device{ID: "dev-1", Name: "edge1-nyc", DeviceType: domain.DeviceRouter}
	if err := store.CreateDevice(ctx, dev); err != nil {
		t.Fatalf("CreateDevice failed: %v", err)
	}

	if err := store.AddDeviceACL(ctx, "edge1-nyc", "abc123"); err != nil {
		t.Fatalf("AddDeviceACL failed: %v", err)
	}
	if err := store.AddDeviceACL(ctx, "edge1-nyc", "abc123"); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Errorf("Expected ErrAlreadyExists for a duplicate, got %v", err)
	}

	acls, err := store.ListDeviceACLs(ctx, "edge1-nyc")
	if err != nil {
		t.Fatalf("ListDeviceACLs failed: %v", err)
	}
	if len(acls) != 1 || !acls.Has("abc123") {
		t.Errorf("Unexpected ACL set: %v", acls)
	}

	if err := store.RemoveDeviceACL(ctx, "edge1-nyc", "other"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound removing a missing ACL, got %v", err)
	}
	if err := store.RemoveDeviceACL(ctx, "edge1-nyc", "abc123"); err != nil {
		t.Fatalf("RemoveDeviceACL failed: %v", err)
	}

	// Deleting the device drops its assignments too.
	if err := store.AddDeviceACL(ctx, "edge1-nyc", "abc123"); err != nil {
		t.Fatalf("AddDeviceACL failed: %v", err)
	}
	if err := store.DeleteDevice(ctx, "edge1-nyc"); err != nil {
		t.Fatalf("DeleteDevice failed: %v", err)
	}
	if err := store.CreateDevice(ctx, dev); err != nil {
		t.Fatalf("CreateDevice failed: %v", err)
	}
	acls, _ = store.ListDeviceACLs(ctx, "edge1-nyc")
	if len(acls) != 0 {
		t.Errorf("Expected assignments gone after device delete, got %v", acls)
	}
}

func TestRuleSetCRUD(t *testing.T) {
	store := New()
	ctx := context.Background()

	rs := &domain.RuleSet{
		ID:   "rs-1",
		Name: "edge-protect",
		Terms: domain.RuleList{{
			Name:   "allow-dns",
			Action: domain.ActionAccept,
		}},
	}
	if err := store.CreateRuleSet(ctx, rs); err != nil {
		t.Fatalf("CreateRuleSet failed: %v", err)
	}
	if err := store.CreateRuleSet(ctx, rs); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Errorf("Expected ErrAlreadyExists, got %v", err)
	}

	got, err := store.GetRuleSetByName(ctx, "edge-protect")
	if err != nil {
		t.Fatalf("GetRuleSetByName failed: %v", err)
	}
	got.Terms[0].Name = "changed"
	again, _ := store.GetRuleSetByName(ctx, "edge-protect")
	if again.Terms[0].Name != "allow-dns" {
		t.Errorf("Terms were mutated through a read copy")
	}

	got.Terms = append(got.Terms, domain.Term{Name: "deny-rest", Action: domain.ActionDiscard})
	if err := store.UpdateRuleSet(ctx, got); err != nil {
		t.Fatalf("UpdateRuleSet failed: %v", err)
	}
	updated, _ := store.GetRuleSetByName(ctx, "edge-protect")
	if len(updated.Terms) != 2 {
		t.Errorf("Expected 2 terms after update, got %d", len(updated.Terms))
	}

	if err := store.DeleteRuleSet(ctx, "edge-protect"); err != nil {
		t.Fatalf("DeleteRuleSet failed: %v", err)
	}
	if _, err := store.GetRuleSetByName(ctx, "edge-protect"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
}

func TestChangeRecordsPagination(t *testing.T) {
	store := New()
	ctx := context.Background()

	base := time.Now()
	for i := 0; i < 3; i++ {
		err := store.CreateChangeRecord(ctx, &domain.ChangeRecord{
			ID:        string(rune('a' + i)),
			Title:     "change",
			Diff:      "diff",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("CreateChangeRecord failed: %v", err)
		}
	}

	records, err := store.ListChangeRecords(ctx, 2, 0)
	if err != nil {
		t.Fatalf("ListChangeRecords failed: %v", err)
	}
	if len(records) != 2 || records[0].ID != "c" {
		t.Errorf("Expected the 2 newest records first, got %+v", records)
	}

	records, _ = store.ListChangeRecords(ctx, 2, 2)
	if len(records) != 1 || records[0].ID != "a" {
		t.Errorf("Expected the oldest record on the second page, got %+v", records)
	}

	records, _ = store.ListChangeRecords(ctx, 10, 10)
	if len(records) != 0 {
		t.Errorf("Expected nothing past the end, got %+v", records)
	}
}
