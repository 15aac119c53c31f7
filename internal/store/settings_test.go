package store

import (
	"context"
	"testing"
)

func TestSettingsGetNotFound(t *testing.T) {
	ss := NewSettingsStore(setupTestHandle(t))

	_, found, err := ss.Get(context.Background(), "nonexistent_key")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if found {
		t.Error("expected missing key to report not found")
	}
}

func TestSettingsSet(t *testing.T) {
	ss := NewSettingsStore(setupTestHandle(t))
	ctx := context.Background()

	if err := ss.Set(ctx, "offline_queue", "[]"); err != nil {
		t.Fatalf("set: %v", err)
	}
	// Overwrite
	if err := ss.Set(ctx, "offline_queue", `[{"id":"m1"}]`); err != nil {
		t.Fatalf("set again: %v", err)
	}

	val, found, err := ss.Get(ctx, "offline_queue")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !found || val != `[{"id":"m1"}]` {
		t.Errorf("offline_queue = %q (found=%v)", val, found)
	}

	all, err := ss.GetAll(ctx)
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("expected 1 setting, got %d", len(all))
	}
}

func TestSettingsDelete(t *testing.T) {
	ss := NewSettingsStore(setupTestHandle(t))
	ctx := context.Background()

	ss.Set(ctx, "auth_token", "abc")
	if err := ss.Delete(ctx, "auth_token"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, found, _ := ss.Get(ctx, "auth_token"); found {
		t.Error("expected key to be deleted")
	}
}
