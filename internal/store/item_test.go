package store

import (
	"context"
	"errors"
	"testing"

	"github.com/dukerupert/shelfkeep/internal/model"
)

func strPtr(s string) *string { return &s }

func intPtr(n int) *int { return &n }

func TestItemCRUD(t *testing.T) {
	h := setupTestHandle(t)
	items := NewItemStore(h)
	ctx := context.Background()

	created, err := items.Create(ctx, model.Item{
		Name:        "Cordless Drill",
		Category:    "Tools",
		LocationID:  strPtr("loc_garage"),
		Quantity:    1,
		MinQuantity: intPtr(1),
		Barcode:     "0123456789",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected generated id")
	}
	if created.Synced {
		t.Error("new item should start unsynced")
	}
	if created.CreatedAt != created.UpdatedAt {
		t.Errorf("created_at %d != updated_at %d", created.CreatedAt, created.UpdatedAt)
	}
	if created.LocationID == nil || *created.LocationID != "loc_garage" {
		t.Errorf("location_id = %v, want loc_garage", created.LocationID)
	}
	if created.ContainerID != nil {
		t.Errorf("container_id = %v, want nil", *created.ContainerID)
	}
	if !created.LowStock() {
		t.Error("expected item at its minimum to be low stock")
	}

	got, err := items.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Cordless Drill" || got.Barcode != "0123456789" {
		t.Errorf("got %+v", got)
	}

	updated, err := items.Update(ctx, created.ID, Patch{"quantity": 3, "description": "18V"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Quantity != 3 || updated.Description != "18V" {
		t.Errorf("updated = %+v", updated)
	}

	byBarcode, err := items.FindByBarcode(ctx, "0123456789")
	if err != nil {
		t.Fatalf("find by barcode: %v", err)
	}
	if len(byBarcode) != 1 || byBarcode[0].ID != created.ID {
		t.Errorf("find by barcode = %+v", byBarcode)
	}

	if err := items.Delete(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	gone, err := items.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if gone != nil {
		t.Error("expected nil after delete")
	}
}

func TestItemGetNotFound(t *testing.T) {
	items := NewItemStore(setupTestHandle(t))

	item, err := items.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if item != nil {
		t.Errorf("expected nil, got %+v", item)
	}
}

func TestItemUpdateMissingReturnsNil(t *testing.T) {
	items := NewItemStore(setupTestHandle(t))

	item, err := items.Update(context.Background(), "missing", Patch{"quantity": 2})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if item != nil {
		t.Errorf("expected nil, got %+v", item)
	}
}

func TestItemUpdateRejectsImmutable(t *testing.T) {
	h := setupTestHandle(t)
	items := NewItemStore(h)
	ctx := context.Background()

	item, _ := items.Create(ctx, model.Item{Name: "Tape", Quantity: 1})
	if _, err := items.Update(ctx, item.ID, Patch{"created_at": int64(1)}); !errors.Is(err, ErrImmutableField) {
		t.Errorf("err = %v, want ErrImmutableField", err)
	}
	if _, err := items.Update(ctx, item.ID, Patch{"id": "other"}); !errors.Is(err, ErrImmutableField) {
		t.Errorf("err = %v, want ErrImmutableField", err)
	}
}

func TestItemUpdateBumpsTimestamp(t *testing.T) {
	h := setupTestHandle(t)
	items := NewItemStore(h)
	ctx := context.Background()
	clock := fixClock(t, 1000)

	item, _ := items.Create(ctx, model.Item{Name: "Glue", Quantity: 1})

	// Clock has not moved; updated_at must still strictly increase.
	first, err := items.Update(ctx, item.ID, Patch{"quantity": 2})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if first.UpdatedAt <= item.UpdatedAt {
		t.Errorf("updated_at %d not after %d", first.UpdatedAt, item.UpdatedAt)
	}

	// Clock went backwards.
	*clock = 10
	second, _ := items.Update(ctx, item.ID, Patch{"quantity": 3})
	if second.UpdatedAt <= first.UpdatedAt {
		t.Errorf("updated_at %d not after %d", second.UpdatedAt, first.UpdatedAt)
	}

	*clock = 5000
	third, _ := items.Update(ctx, item.ID, Patch{"quantity": 4})
	if third.UpdatedAt != 5000 {
		t.Errorf("updated_at = %d, want 5000", third.UpdatedAt)
	}
}

func TestItemUpdateLeavesSyncedAlone(t *testing.T) {
	h := setupTestHandle(t)
	items := NewItemStore(h)
	ctx := context.Background()

	item, _ := items.Create(ctx, model.Item{Name: "Ladder", Quantity: 1})
	if err := items.MarkSynced(ctx, item.ID); err != nil {
		t.Fatalf("mark synced: %v", err)
	}

	updated, _ := items.Update(ctx, item.ID, Patch{"description": "6ft"})
	if !updated.Synced {
		t.Error("update without synced key should not change synced")
	}

	updated, _ = items.Update(ctx, item.ID, Patch{"description": "8ft", "synced": false})
	if updated.Synced {
		t.Error("expected synced=false after explicit patch")
	}
}

func TestItemMarkSyncedLeavesUnsyncedScan(t *testing.T) {
	h := setupTestHandle(t)
	items := NewItemStore(h)
	ctx := context.Background()
	fixClock(t, 1000)

	item, err := items.Create(ctx, model.Item{ID: "a", Name: "Hammer", Quantity: 1})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if item.CreatedAt != 1000 || item.UpdatedAt != 1000 || item.Synced {
		t.Fatalf("created = %+v", item)
	}

	unsynced, _ := items.ListUnsynced(ctx)
	if len(unsynced) != 1 || unsynced[0].ID != "a" {
		t.Fatalf("unsynced = %+v", unsynced)
	}

	if err := items.MarkSynced(ctx, "a"); err != nil {
		t.Fatalf("mark synced: %v", err)
	}
	unsynced, _ = items.ListUnsynced(ctx)
	if len(unsynced) != 0 {
		t.Errorf("expected no unsynced items, got %d", len(unsynced))
	}

	got, _ := items.Get(ctx, "a")
	if got.UpdatedAt != 1000 {
		t.Errorf("updated_at = %d, want 1000 (mark synced must not bump)", got.UpdatedAt)
	}
}

func TestItemDeleteCascadesReceiptsAndUnlinksProjects(t *testing.T) {
	h := setupTestHandle(t)
	items := NewItemStore(h)
	receipts := NewReceiptStore(h)
	projects := NewProjectStore(h)
	ctx := context.Background()

	item, _ := items.Create(ctx, model.Item{Name: "Paint", Quantity: 2})
	if _, err := receipts.Create(ctx, model.Receipt{ItemID: item.ID, PhotoURL: "https://example.com/r.jpg"}); err != nil {
		t.Fatalf("create receipt: %v", err)
	}
	project, _ := projects.Create(ctx, model.Project{Name: "Repaint fence"})
	req, err := projects.CreateItem(ctx, model.ProjectItem{ProjectID: project.ID, Name: "Paint", InventoryItemID: &item.ID})
	if err != nil {
		t.Fatalf("create project item: %v", err)
	}
	if !req.IsFulfilled {
		t.Fatal("linked requirement should be fulfilled")
	}

	if err := items.Delete(ctx, item.ID); err != nil {
		t.Fatalf("delete item: %v", err)
	}

	left, _ := receipts.ListByItem(ctx, item.ID)
	if len(left) != 0 {
		t.Errorf("expected receipts removed, got %d", len(left))
	}

	req, _ = projects.GetItem(ctx, req.ID)
	if req == nil {
		t.Fatal("requirement should survive item deletion")
	}
	if req.InventoryItemID != nil {
		t.Errorf("inventory_item_id = %q, want nil", *req.InventoryItemID)
	}
	if req.IsFulfilled {
		t.Error("unlinked requirement should be missing")
	}
}

func TestItemListFilters(t *testing.T) {
	h := setupTestHandle(t)
	items := NewItemStore(h)
	containers := NewContainerStore(h)
	ctx := context.Background()

	bin, _ := containers.Create(ctx, model.Container{Name: "Red bin", LocationID: strPtr("loc_basement")})
	items.Create(ctx, model.Item{Name: "Bolts", Quantity: 50, ContainerID: &bin.ID, LocationID: strPtr("loc_basement")})
	items.Create(ctx, model.Item{Name: "Apron", Quantity: 1, LocationID: strPtr("loc_kitchen")})
	items.Create(ctx, model.Item{Name: "Nails", Quantity: 2, MinQuantity: intPtr(10), ContainerID: &bin.ID})

	inBin, _ := items.ListByContainer(ctx, bin.ID)
	if len(inBin) != 2 || inBin[0].Name != "Bolts" || inBin[1].Name != "Nails" {
		t.Errorf("by container = %+v", inBin)
	}
	inKitchen, _ := items.ListByLocation(ctx, "loc_kitchen")
	if len(inKitchen) != 1 || inKitchen[0].Name != "Apron" {
		t.Errorf("by location = %+v", inKitchen)
	}
	low, _ := items.ListLowStock(ctx)
	if len(low) != 1 || low[0].Name != "Nails" {
		t.Errorf("low stock = %+v", low)
	}
}
