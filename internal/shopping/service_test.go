package shopping

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dukerupert/shelfkeep/internal/database"
	"github.com/dukerupert/shelfkeep/internal/model"
	"github.com/dukerupert/shelfkeep/internal/reachability"
	"github.com/dukerupert/shelfkeep/internal/remote"
	"github.com/dukerupert/shelfkeep/internal/store"
)

// fakeRemote is an in-memory shopping list service.
type fakeRemote struct {
	mu       sync.Mutex
	items    map[string]remote.ShoppingItem
	writes   int
	clock    int64
	failList bool
	failName string
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{items: map[string]remote.ShoppingItem{}, clock: 1_000_000}
}

func (f *fakeRemote) put(item remote.ShoppingItem) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[item.ID] = item
}

func (f *fakeRemote) byName(name string) (remote.ShoppingItem, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, it := range f.items {
		if it.ItemName == name {
			return it, true
		}
	}
	return remote.ShoppingItem{}, false
}

func (f *fakeRemote) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

func (f *fakeRemote) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /shopping-list", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.failList {
			http.Error(w, "down", http.StatusBadGateway)
			return
		}
		out := make([]remote.ShoppingItem, 0, len(f.items))
		for _, it := range f.items {
			out = append(out, it)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
		json.NewEncoder(w).Encode(out)
	})
	mux.HandleFunc("POST /shopping-list", func(w http.ResponseWriter, r *http.Request) {
		var in remote.ShoppingItem
		json.NewDecoder(r.Body).Decode(&in)
		f.mu.Lock()
		defer f.mu.Unlock()
		if in.ItemName == f.failName {
			http.Error(w, "rejected", http.StatusUnprocessableEntity)
			return
		}
		f.writes++
		f.clock++
		in.UpdatedAt = f.clock
		f.items[in.ID] = in
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(in)
	})
	mux.HandleFunc("PUT /shopping-list/{id}", func(w http.ResponseWriter, r *http.Request) {
		var in remote.ShoppingItem
		json.NewDecoder(r.Body).Decode(&in)
		f.mu.Lock()
		defer f.mu.Unlock()
		if _, ok := f.items[r.PathValue("id")]; !ok {
			http.NotFound(w, r)
			return
		}
		f.writes++
		f.clock++
		in.UpdatedAt = f.clock
		f.items[in.ID] = in
		json.NewEncoder(w).Encode(in)
	})
	mux.HandleFunc("DELETE /shopping-list/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.writes++
		delete(f.items, r.PathValue("id"))
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

type staticToken string

func (s staticToken) Token(context.Context) (string, error) { return string(s), nil }

type fixedConn struct{ online atomic.Bool }

func (c *fixedConn) Online() bool { return c.online.Load() }

type fixedCreds bool

func (c fixedCreds) HasCredential(context.Context) bool { return bool(c) }

type harness struct {
	svc    *Service
	local  *store.ShoppingStore
	remote *fakeRemote
	conn   *fixedConn
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	fr := newFakeRemote()
	server := httptest.NewServer(fr.handler())
	t.Cleanup(server.Close)

	h := database.NewHandle(":memory:", nil)
	require.NoError(t, h.Initialize(context.Background()))
	t.Cleanup(func() { h.Close() })

	local := store.NewShoppingStore(h)
	client := remote.NewClient(remote.Config{BaseURL: server.URL}, staticToken("tok"))
	conn := &fixedConn{}
	conn.online.Store(true)

	svc := NewService(local, client, conn, fixedCreds(true), nil)
	t.Cleanup(svc.Close)
	return &harness{svc: svc, local: local, remote: fr, conn: conn}
}

// seedLocal inserts a row directly, bypassing the mirror. Synced rows are
// stored as if pulled earlier and carry updatedAt; unsynced rows keep their
// creation time.
func (h *harness) seedLocal(t *testing.T, name string, qty int, synced bool, updatedAt int64) *model.ShoppingItem {
	t.Helper()
	ctx := context.Background()
	var item *model.ShoppingItem
	var err error
	if synced {
		item, err = h.local.InsertRemote(ctx, model.ShoppingItem{ItemName: name, Quantity: qty, UpdatedAt: updatedAt})
	} else {
		item, err = h.local.Create(ctx, model.ShoppingItem{ItemName: name, Quantity: qty})
	}
	require.NoError(t, err)
	require.GreaterOrEqual(t, item.UpdatedAt, item.CreatedAt)
	return item
}

func TestReconcilePushesLocalOnly(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	eggs := h.seedLocal(t, "Eggs", 2, false, 0)

	rep, err := h.svc.Reconcile(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, rep.Pushed)

	got, ok := h.remote.byName("Eggs")
	require.True(t, ok)
	require.Equal(t, 2, got.Quantity)

	local, err := h.local.Get(ctx, eggs.ID)
	require.NoError(t, err)
	require.True(t, local.Synced)
}

func TestReconcilePullsRemoteOnly(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.remote.put(remote.ShoppingItem{ID: "r-milk", ItemName: "Milk", Quantity: 3, IsPurchased: true, UpdatedAt: 777})

	rep, err := h.svc.Reconcile(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, rep.Pulled)

	local, err := h.local.GetByName(ctx, "Milk")
	require.NoError(t, err)
	require.NotNil(t, local)
	require.Equal(t, "r-milk", local.ID)
	require.Equal(t, int64(777), local.UpdatedAt)
	require.LessOrEqual(t, local.CreatedAt, local.UpdatedAt)
	require.Equal(t, 3, local.Quantity)
	require.True(t, local.IsPurchased)
	require.True(t, local.Synced)
	require.Equal(t, int64(777), local.UpdatedAt)
}

func TestReconcileLastWriteWins(t *testing.T) {
	tests := []struct {
		name      string
		localAt   int64
		remoteAt  int64
		wantQty   int
		wantWrite bool
	}{
		{"remote newer", 100, 200, 9, true},
		{"local newer", 300, 200, 1, false},
		{"equal timestamps keep local", 200, 200, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			ctx := context.Background()
			local := h.seedLocal(t, "Bread", 1, true, tt.localAt)
			h.remote.put(remote.ShoppingItem{ID: "r-bread", ItemName: "Bread", Quantity: 9, UpdatedAt: tt.remoteAt})

			rep, err := h.svc.Reconcile(ctx)
			require.NoError(t, err)

			got, err := h.local.Get(ctx, local.ID)
			require.NoError(t, err)
			require.Equal(t, tt.wantQty, got.Quantity)
			if tt.wantWrite {
				require.Equal(t, 1, rep.Updated)
				require.Equal(t, tt.remoteAt, got.UpdatedAt)
			} else {
				require.Equal(t, 0, rep.Updated)
				require.Equal(t, tt.localAt, got.UpdatedAt)
			}
			require.Equal(t, 0, h.remote.writeCount(), "matched entries never write remotely")
		})
	}
}

func TestReconcileLeavesSyncedLocalOnlyAlone(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedLocal(t, "Jam", 1, true, 100)

	rep, err := h.svc.Reconcile(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, rep.Pushed)
	require.Equal(t, 0, rep.Writes)
	_, ok := h.remote.byName("Jam")
	require.False(t, ok, "synced rows missing remotely are not resurrected")
}

func TestReconcileIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedLocal(t, "Eggs", 2, false, 0)
	h.seedLocal(t, "Bread", 1, true, 100)
	h.seedLocal(t, "Rice", 1, false, 0)
	h.remote.put(remote.ShoppingItem{ID: "r-bread", ItemName: "Bread", Quantity: 4, UpdatedAt: 200})
	h.remote.put(remote.ShoppingItem{ID: "r-rice", ItemName: "Rice", Quantity: 5, UpdatedAt: 300})
	h.remote.put(remote.ShoppingItem{ID: "r-milk", ItemName: "Milk", Quantity: 1, UpdatedAt: 400})

	first, err := h.svc.Reconcile(ctx)
	require.NoError(t, err)
	require.Greater(t, first.Writes, 0)

	remoteWrites := h.remote.writeCount()
	before, err := h.local.List(ctx)
	require.NoError(t, err)

	second, err := h.svc.Reconcile(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, second.Writes)
	require.Equal(t, remoteWrites, h.remote.writeCount())

	after, err := h.local.List(ctx)
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestReconcileDuplicateLocalNamesFirstWins(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	first := h.seedLocal(t, "Butter", 1, false, 0)
	h.seedLocal(t, "Butter", 7, false, 0)

	rep, err := h.svc.Reconcile(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, rep.Pushed)

	got, ok := h.remote.byName("Butter")
	require.True(t, ok)
	require.Equal(t, first.ID, got.ID)
	require.Equal(t, 1, got.Quantity)
}

func TestReconcileIsolatesEntryFailures(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.remote.mu.Lock()
	h.remote.failName = "Caviar"
	h.remote.mu.Unlock()
	caviar := h.seedLocal(t, "Caviar", 1, false, 0)
	h.seedLocal(t, "Oats", 1, false, 0)

	rep, err := h.svc.Reconcile(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, rep.Pushed)
	require.Len(t, rep.Failures, 1)
	require.Equal(t, "Caviar", rep.Failures[0].ItemName)

	got, _ := h.local.Get(ctx, caviar.ID)
	require.False(t, got.Synced)
	_, ok := h.remote.byName("Oats")
	require.True(t, ok)
}

func TestReconcileGuards(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.conn.online.Store(false)
	rep, err := h.svc.Reconcile(ctx)
	require.NoError(t, err)
	require.True(t, rep.Skipped)
	require.Equal(t, ReasonOffline, rep.Reason)

	h.conn.online.Store(true)
	h.svc.creds = fixedCreds(false)
	rep, err = h.svc.Reconcile(ctx)
	require.NoError(t, err)
	require.Equal(t, ReasonUnauthenticated, rep.Reason)

	h.svc.creds = fixedCreds(true)
	h.svc.syncing.Store(true)
	rep, err = h.svc.Reconcile(ctx)
	require.NoError(t, err)
	require.Equal(t, ReasonInProgress, rep.Reason)
	h.svc.syncing.Store(false)
}

func TestReconcileFetchErrorClearsInProgress(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.remote.mu.Lock()
	h.remote.failList = true
	h.remote.mu.Unlock()

	_, err := h.svc.Reconcile(ctx)
	require.Error(t, err)
	require.False(t, h.svc.syncing.Load())

	h.remote.mu.Lock()
	h.remote.failList = false
	h.remote.mu.Unlock()
	rep, err := h.svc.Reconcile(ctx)
	require.NoError(t, err)
	require.False(t, rep.Skipped)
}

func TestCreateMirrorsWhenOnline(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	item, mr, err := h.svc.Create(ctx, "Coffee", 1)
	require.NoError(t, err)
	require.True(t, mr.Attempted)
	require.NoError(t, mr.Err)
	require.True(t, item.Synced)

	_, ok := h.remote.byName("Coffee")
	require.True(t, ok)
}

func TestCreateOfflineStaysLocal(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.conn.online.Store(false)

	item, mr, err := h.svc.Create(ctx, "Tea", 2)
	require.NoError(t, err)
	require.False(t, mr.Attempted)
	require.False(t, item.Synced)
	require.Equal(t, 0, h.remote.writeCount())
}

func TestUpdateMirrorFailureIsSwallowed(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.conn.online.Store(false)
	item, _, err := h.svc.Create(ctx, "Salt", 1)
	require.NoError(t, err)
	h.conn.online.Store(true)

	// Remote has never seen the row, so the PUT fails with 404.
	updated, mr, err := h.svc.Update(ctx, item.ID, store.Patch{"quantity": 2})
	require.NoError(t, err)
	require.True(t, mr.Attempted)
	require.Error(t, mr.Err)
	require.Equal(t, 2, updated.Quantity)
	require.False(t, updated.Synced)

	rep, err := h.svc.Reconcile(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, rep.Pushed)
	got, _ := h.remote.byName("Salt")
	require.Equal(t, 2, got.Quantity)
}

func TestTogglePurchasedAndDelete(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	item, _, err := h.svc.Create(ctx, "Apples", 6)
	require.NoError(t, err)

	toggled, mr, err := h.svc.TogglePurchased(ctx, item.ID)
	require.NoError(t, err)
	require.NoError(t, mr.Err)
	require.True(t, toggled.IsPurchased)
	require.True(t, toggled.Synced)
	got, _ := h.remote.byName("Apples")
	require.True(t, got.IsPurchased)

	mr, err = h.svc.Delete(ctx, item.ID)
	require.NoError(t, err)
	require.True(t, mr.Attempted)
	_, ok := h.remote.byName("Apples")
	require.False(t, ok)

	gone, err := h.local.Get(ctx, item.ID)
	require.NoError(t, err)
	require.Nil(t, gone)
}

func TestOnReachabilityReconcilesOnTransition(t *testing.T) {
	h := newHarness(t)
	h.seedLocal(t, "Pasta", 1, false, 0)

	events := make(chan Event, 4)
	h.svc.Subscribe(func(e Event) { events <- e })

	h.svc.OnReachability(reachability.Status{Online: true, Changed: false})
	h.svc.OnReachability(reachability.Status{Online: true, Changed: true})

	e := <-events
	require.Equal(t, ActionReconciled, e.Action)
	require.Equal(t, 1, e.Report.Pushed)
}
