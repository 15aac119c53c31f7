package store

import (
	"context"
	"testing"

	"github.com/dukerupert/shelfkeep/internal/model"
)

func TestContainerCRUD(t *testing.T) {
	h := setupTestHandle(t)
	containers := NewContainerStore(h)
	ctx := context.Background()

	c, err := containers.Create(ctx, model.Container{Name: "Toolbox", LocationID: strPtr("loc_garage")})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.Synced {
		t.Error("expected new container unsynced")
	}

	inGarage, _ := containers.ListByLocation(ctx, "loc_garage")
	if len(inGarage) != 1 || inGarage[0].ID != c.ID {
		t.Errorf("by location = %+v", inGarage)
	}

	updated, err := containers.Update(ctx, c.ID, Patch{"name": "Blue toolbox", "location_id": nil})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "Blue toolbox" || updated.LocationID != nil {
		t.Errorf("updated = %+v", updated)
	}

	if err := containers.MarkSynced(ctx, c.ID); err != nil {
		t.Fatalf("mark synced: %v", err)
	}
	unsynced, _ := containers.ListUnsynced(ctx)
	if len(unsynced) != 0 {
		t.Errorf("unsynced = %d, want 0", len(unsynced))
	}
}

func TestContainerDeleteDetachesItems(t *testing.T) {
	h := setupTestHandle(t)
	containers := NewContainerStore(h)
	items := NewItemStore(h)
	ctx := context.Background()

	c, _ := containers.Create(ctx, model.Container{Name: "Shoebox"})
	item, _ := items.Create(ctx, model.Item{Name: "Batteries", Quantity: 8, ContainerID: &c.ID})

	if err := containers.Delete(ctx, c.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	got, err := items.Get(ctx, item.ID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if got == nil {
		t.Fatal("item should survive container deletion")
	}
	if got.ContainerID != nil {
		t.Errorf("container_id = %q, want nil", *got.ContainerID)
	}
	if got.UpdatedAt <= item.UpdatedAt {
		t.Errorf("updated_at %d not after %d", got.UpdatedAt, item.UpdatedAt)
	}
}
