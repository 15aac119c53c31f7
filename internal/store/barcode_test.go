package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestBarcodeCache(t *testing.T) {
	h := setupTestHandle(t)
	cache := NewBarcodeCache(h)
	ctx := context.Background()
	clock := fixClock(t, 1_000_000)

	if err := cache.Put(ctx, "4006381333931", json.RawMessage(`{"title":"Highlighter"}`)); err != nil {
		t.Fatalf("put: %v", err)
	}

	hit, err := cache.Get(ctx, "4006381333931", time.Hour)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if hit == nil || string(hit.Payload) != `{"title":"Highlighter"}` {
		t.Fatalf("hit = %+v", hit)
	}

	*clock += time.Hour.Milliseconds() + 1
	stale, _ := cache.Get(ctx, "4006381333931", time.Hour)
	if stale != nil {
		t.Error("expected expired entry to read as a miss")
	}

	n, err := cache.Prune(ctx, time.Hour)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n != 1 {
		t.Errorf("pruned %d, want 1", n)
	}
}

func TestBarcodeCacheRejectsInvalidJSON(t *testing.T) {
	cache := NewBarcodeCache(setupTestHandle(t))

	if err := cache.Put(context.Background(), "123", json.RawMessage(`{oops`)); err == nil {
		t.Fatal("expected error for invalid payload")
	}
}
