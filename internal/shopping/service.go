package shopping

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/dukerupert/shelfkeep/internal/model"
	"github.com/dukerupert/shelfkeep/internal/reachability"
	"github.com/dukerupert/shelfkeep/internal/remote"
	"github.com/dukerupert/shelfkeep/internal/store"
)

// LocalStore is the shopping list table of the local store.
type LocalStore interface {
	Create(ctx context.Context, item model.ShoppingItem) (*model.ShoppingItem, error)
	InsertRemote(ctx context.Context, item model.ShoppingItem) (*model.ShoppingItem, error)
	Get(ctx context.Context, id string) (*model.ShoppingItem, error)
	List(ctx context.Context) ([]model.ShoppingItem, error)
	Update(ctx context.Context, id string, p store.Patch) (*model.ShoppingItem, error)
	ApplyRemote(ctx context.Context, id string, quantity int, purchased bool, updatedAt int64) (bool, error)
	MarkSynced(ctx context.Context, id string, remoteUpdatedAt int64) error
	Delete(ctx context.Context, id string) error
}

// Remote is the remote shopping list endpoint.
type Remote interface {
	ListShoppingItems(ctx context.Context) ([]remote.ShoppingItem, error)
	CreateShoppingItem(ctx context.Context, item remote.ShoppingItem) (*remote.ShoppingItem, error)
	UpdateShoppingItem(ctx context.Context, item remote.ShoppingItem) (*remote.ShoppingItem, error)
	DeleteShoppingItem(ctx context.Context, id string) error
}

// Connectivity reports the last observed reachability of the remote.
type Connectivity interface {
	Online() bool
}

// Credentials reports whether a bearer credential is available.
type Credentials interface {
	HasCredential(ctx context.Context) bool
}

const (
	ActionCreated    = "created"
	ActionUpdated    = "updated"
	ActionDeleted    = "deleted"
	ActionReconciled = "reconciled"
)

// Event is delivered to subscribers after local changes and reconciles.
type Event struct {
	Action string
	ItemID string
	Report *Report
}

// Service is the shopping list as the screens see it: local first, with a
// best-effort remote mirror and a full two-way Reconcile.
type Service struct {
	store  LocalStore
	remote Remote
	conn   Connectivity
	creds  Credentials
	logger *slog.Logger

	syncing atomic.Bool

	lmu       sync.RWMutex
	listeners []func(Event)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewService(local LocalStore, rem Remote, conn Connectivity, creds Credentials, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		store:  local,
		remote: rem,
		conn:   conn,
		creds:  creds,
		logger: logger.With("component", "shopping"),
		ctx:    ctx,
		cancel: cancel,
	}
}

// MirrorResult reports the immediate remote call made after a local change.
// Err is informational: the local change stands and the next Reconcile
// converges the remote.
type MirrorResult struct {
	Attempted bool  `json:"attempted"`
	Err       error `json:"-"`
}

func (s *Service) List(ctx context.Context) ([]model.ShoppingItem, error) {
	return s.store.List(ctx)
}

func (s *Service) Create(ctx context.Context, name string, quantity int) (*model.ShoppingItem, MirrorResult, error) {
	item, err := s.store.Create(ctx, model.ShoppingItem{ItemName: name, Quantity: quantity})
	if err != nil {
		return nil, MirrorResult{}, err
	}
	s.emit(Event{Action: ActionCreated, ItemID: item.ID})

	mr := s.mirror(ctx, "create", func(ctx context.Context) error {
		created, err := s.remote.CreateShoppingItem(ctx, toRemote(*item))
		if err != nil {
			return err
		}
		return s.store.MarkSynced(ctx, item.ID, created.UpdatedAt)
	})
	return s.reload(ctx, item, mr)
}

// Update applies p locally, leaving the row unsynced until the mirror call
// succeeds.
func (s *Service) Update(ctx context.Context, id string, p store.Patch) (*model.ShoppingItem, MirrorResult, error) {
	local := make(store.Patch, len(p)+1)
	for k, v := range p {
		local[k] = v
	}
	local["synced"] = false

	item, err := s.store.Update(ctx, id, local)
	if err != nil || item == nil {
		return item, MirrorResult{}, err
	}
	s.emit(Event{Action: ActionUpdated, ItemID: item.ID})

	mr := s.mirror(ctx, "update", func(ctx context.Context) error {
		updated, err := s.remote.UpdateShoppingItem(ctx, toRemote(*item))
		if err != nil {
			return err
		}
		return s.store.MarkSynced(ctx, item.ID, updated.UpdatedAt)
	})
	return s.reload(ctx, item, mr)
}

// TogglePurchased flips the purchased flag of the entry.
func (s *Service) TogglePurchased(ctx context.Context, id string) (*model.ShoppingItem, MirrorResult, error) {
	item, err := s.store.Get(ctx, id)
	if err != nil || item == nil {
		return nil, MirrorResult{}, err
	}
	return s.Update(ctx, id, store.Patch{"is_purchased": !item.IsPurchased})
}

// Delete removes the entry locally and asks the remote to do the same.
// There is no tombstone, so a failed remote delete is not retried.
func (s *Service) Delete(ctx context.Context, id string) (MirrorResult, error) {
	if err := s.store.Delete(ctx, id); err != nil {
		return MirrorResult{}, err
	}
	s.emit(Event{Action: ActionDeleted, ItemID: id})

	return s.mirror(ctx, "delete", func(ctx context.Context) error {
		return s.remote.DeleteShoppingItem(ctx, id)
	}), nil
}

func (s *Service) mirror(ctx context.Context, op string, fn func(context.Context) error) MirrorResult {
	if !s.conn.Online() || !s.creds.HasCredential(ctx) {
		return MirrorResult{}
	}
	err := fn(ctx)
	if err != nil {
		s.logger.Warn("shopping mirror failed", "op", op, "error", err)
	}
	return MirrorResult{Attempted: true, Err: err}
}

func (s *Service) reload(ctx context.Context, item *model.ShoppingItem, mr MirrorResult) (*model.ShoppingItem, MirrorResult, error) {
	if !mr.Attempted || mr.Err != nil {
		return item, mr, nil
	}
	fresh, err := s.store.Get(ctx, item.ID)
	if err != nil || fresh == nil {
		return item, mr, err
	}
	return fresh, mr, nil
}

func toRemote(item model.ShoppingItem) remote.ShoppingItem {
	return remote.ShoppingItem{
		ID:          item.ID,
		ItemName:    item.ItemName,
		Quantity:    item.Quantity,
		IsPurchased: item.IsPurchased,
		UpdatedAt:   item.UpdatedAt,
	}
}

// Subscribe registers fn for shopping events. Listeners must not block.
func (s *Service) Subscribe(fn func(Event)) {
	s.lmu.Lock()
	s.listeners = append(s.listeners, fn)
	s.lmu.Unlock()
}

func (s *Service) emit(e Event) {
	s.lmu.RLock()
	listeners := s.listeners
	s.lmu.RUnlock()
	for _, fn := range listeners {
		fn(e)
	}
}

// OnReachability is a reachability listener. Coming back online starts a
// background Reconcile.
func (s *Service) OnReachability(st reachability.Status) {
	if !st.Online || !st.Changed || s.ctx.Err() != nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if _, err := s.Reconcile(s.ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("background reconcile failed", "error", err)
		}
	}()
}

// Close stops background reconciles and waits for them to return.
func (s *Service) Close() {
	s.cancel()
	s.wg.Wait()
}
