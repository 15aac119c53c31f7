package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/shelfkeep/internal/model"
	"github.com/dukerupert/shelfkeep/internal/reachability"
)

// StorageKey is the settings key holding the persisted queue.
const StorageKey = "offline_queue"

// MaxRetries is the number of failed attempts after which a mutation is
// evicted.
const MaxRetries = 3

var (
	ErrInvalidKind    = errors.New("invalid mutation kind")
	ErrEmptyEndpoint  = errors.New("endpoint is required")
	ErrInvalidPayload = errors.New("payload is not valid JSON")
)

// Storage persists the queue as a single value.
type Storage interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Sender delivers one mutation to the remote service.
type Sender interface {
	Send(ctx context.Context, method, endpoint string, payload json.RawMessage) error
}

// Connectivity reports whether the remote can be reached right now.
type Connectivity interface {
	Check(ctx context.Context) bool
}

type EventType string

const (
	EventQueueChanged    EventType = "queue_changed"
	EventMutationEvicted EventType = "mutation_evicted"
)

// Event is delivered to subscribers whenever the queue changes.
type Event struct {
	Type     EventType
	Mutation model.QueuedMutation
	Len      int
	Err      error
}

// Failure records one unsuccessful delivery attempt.
type Failure struct {
	MutationID string
	Kind       model.MutationKind
	Endpoint   string
	Attempt    int
	Err        error
}

// DrainResult summarises a drain. Delivery errors are reported here rather
// than returned, since they are expected while the remote is flaky.
type DrainResult struct {
	Attempted int       `json:"attempted"`
	Delivered int       `json:"delivered"`
	Evicted   int       `json:"evicted"`
	Failures  []Failure `json:"-"`
	Remaining int       `json:"remaining"`
	Offline   bool      `json:"offline,omitempty"`
	Skipped   bool      `json:"skipped,omitempty"`
}

// Method maps a mutation kind to its HTTP method.
func Method(k model.MutationKind) string {
	switch k {
	case model.MutationCreate:
		return http.MethodPost
	case model.MutationUpdate:
		return http.MethodPut
	case model.MutationDelete:
		return http.MethodDelete
	}
	return ""
}

type Option func(*Queue)

// WithMaxRetries overrides the eviction ceiling.
func WithMaxRetries(n int) Option {
	return func(q *Queue) { q.maxRetries = n }
}

// WithClock overrides the clock used for mutation timestamps.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// Queue is a persisted FIFO of mutations waiting for the remote. Delivery
// is strictly in enqueue order and at most one drain runs at a time.
type Queue struct {
	mu    sync.Mutex
	items []model.QueuedMutation

	storage Storage
	sender  Sender
	conn    Connectivity
	logger  *slog.Logger

	maxRetries int
	now        func() time.Time

	draining atomic.Bool
	rerun    atomic.Bool

	lmu       sync.RWMutex
	listeners []func(Event)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(storage Storage, sender Sender, conn Connectivity, logger *slog.Logger, opts ...Option) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		storage:    storage,
		sender:     sender,
		conn:       conn,
		logger:     logger.With("component", "queue"),
		maxRetries: MaxRetries,
		now:        time.Now,
		ctx:        ctx,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Load replaces the in-memory queue with the persisted one.
func (q *Queue) Load(ctx context.Context) error {
	raw, found, err := q.storage.Get(ctx, StorageKey)
	if err != nil {
		return fmt.Errorf("load queue: %w", err)
	}
	var items []model.QueuedMutation
	if found && raw != "" {
		if err := json.Unmarshal([]byte(raw), &items); err != nil {
			return fmt.Errorf("decode queue: %w", err)
		}
	}

	q.mu.Lock()
	q.items = items
	q.mu.Unlock()

	if len(items) > 0 {
		q.logger.Info("queue loaded", "pending", len(items))
	}
	return nil
}

// Enqueue appends a mutation, persists the queue and then tries to drain
// it. The returned mutation is queued even if that drain fails.
func (q *Queue) Enqueue(ctx context.Context, kind model.MutationKind, endpoint string, payload json.RawMessage) (model.QueuedMutation, error) {
	if !kind.Valid() {
		return model.QueuedMutation{}, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	if endpoint == "" {
		return model.QueuedMutation{}, ErrEmptyEndpoint
	}
	if len(payload) > 0 && !json.Valid(payload) {
		return model.QueuedMutation{}, ErrInvalidPayload
	}

	m := model.QueuedMutation{
		ID:        uuid.NewString(),
		Kind:      kind,
		Endpoint:  endpoint,
		Payload:   payload,
		Timestamp: q.now().UnixMilli(),
	}

	q.mu.Lock()
	q.items = append(q.items, m)
	if err := q.saveLocked(ctx); err != nil {
		q.items = q.items[:len(q.items)-1]
		q.mu.Unlock()
		return model.QueuedMutation{}, err
	}
	n := len(q.items)
	q.mu.Unlock()

	q.logger.Debug("mutation queued", "id", m.ID, "kind", m.Kind, "endpoint", m.Endpoint)
	q.emit(Event{Type: EventQueueChanged, Mutation: m, Len: n})

	if _, err := q.Drain(ctx); err != nil {
		q.logger.Warn("drain after enqueue failed", "error", err)
	}
	return m, nil
}

// Drain delivers pending mutations head first. It stops at the first
// failure that has not reached the retry ceiling. A call made while another
// drain is running returns immediately and makes that drain run again.
func (q *Queue) Drain(ctx context.Context) (DrainResult, error) {
	var total DrainResult
	var err error
	for {
		if !q.draining.CompareAndSwap(false, true) {
			q.rerun.Store(true)
			if total.Attempted == 0 {
				total.Skipped = true
			}
			break
		}
		q.rerun.Store(false)

		var res DrainResult
		var blocked bool
		res, blocked, err = q.drainOnce(ctx)
		total.add(res)
		q.draining.Store(false)

		if err != nil || blocked || res.Offline || !q.rerun.Load() {
			break
		}
	}
	total.Remaining = q.Len()
	return total, err
}

func (r *DrainResult) add(o DrainResult) {
	r.Attempted += o.Attempted
	r.Delivered += o.Delivered
	r.Evicted += o.Evicted
	r.Failures = append(r.Failures, o.Failures...)
	r.Offline = o.Offline
}

func (q *Queue) drainOnce(ctx context.Context) (DrainResult, bool, error) {
	var res DrainResult
	if q.Len() == 0 {
		return res, false, nil
	}
	if !q.conn.Check(ctx) {
		res.Offline = true
		return res, false, nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return res, false, err
		}
		head, ok := q.head()
		if !ok {
			return res, false, nil
		}

		res.Attempted++
		sendErr := q.sender.Send(ctx, Method(head.Kind), head.Endpoint, head.Payload)
		if sendErr == nil {
			n, err := q.remove(ctx, head.ID)
			if err != nil {
				return res, false, err
			}
			res.Delivered++
			q.logger.Debug("mutation delivered", "id", head.ID, "endpoint", head.Endpoint)
			q.emit(Event{Type: EventQueueChanged, Mutation: head, Len: n})
			continue
		}
		if ctx.Err() != nil {
			return res, false, ctx.Err()
		}

		m, n, err := q.recordFailure(ctx, head.ID)
		if err != nil {
			return res, false, err
		}
		res.Failures = append(res.Failures, Failure{
			MutationID: m.ID,
			Kind:       m.Kind,
			Endpoint:   m.Endpoint,
			Attempt:    m.RetryCount,
			Err:        sendErr,
		})

		if m.RetryCount >= q.maxRetries {
			n, err = q.remove(ctx, m.ID)
			if err != nil {
				return res, false, err
			}
			res.Evicted++
			q.logger.Warn("mutation evicted after max retries",
				"id", m.ID, "kind", m.Kind, "endpoint", m.Endpoint, "attempts", m.RetryCount, "error", sendErr)
			q.emit(Event{Type: EventMutationEvicted, Mutation: m, Len: n, Err: sendErr})
			continue
		}

		q.logger.Warn("mutation delivery failed",
			"id", m.ID, "endpoint", m.Endpoint, "attempt", m.RetryCount, "error", sendErr)
		q.emit(Event{Type: EventQueueChanged, Mutation: m, Len: n, Err: sendErr})
		return res, true, nil
	}
}

func (q *Queue) head() (model.QueuedMutation, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return model.QueuedMutation{}, false
	}
	return q.items[0], true
}

func (q *Queue) remove(ctx context.Context, id string) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range q.items {
		if q.items[i].ID == id {
			q.items = append(q.items[:i:i], q.items[i+1:]...)
			break
		}
	}
	return len(q.items), q.saveLocked(ctx)
}

func (q *Queue) recordFailure(ctx context.Context, id string) (model.QueuedMutation, int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var m model.QueuedMutation
	for i := range q.items {
		if q.items[i].ID == id {
			q.items[i].RetryCount++
			m = q.items[i]
			break
		}
	}
	return m, len(q.items), q.saveLocked(ctx)
}

// saveLocked rewrites the persisted queue. q.mu must be held.
func (q *Queue) saveLocked(ctx context.Context) error {
	items := q.items
	if items == nil {
		items = []model.QueuedMutation{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode queue: %w", err)
	}
	if err := q.storage.Set(ctx, StorageKey, string(b)); err != nil {
		return fmt.Errorf("save queue: %w", err)
	}
	return nil
}

// Len returns the number of pending mutations.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Pending returns a copy of the queue in delivery order.
func (q *Queue) Pending() []model.QueuedMutation {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]model.QueuedMutation, len(q.items))
	copy(out, q.items)
	return out
}

// Subscribe registers fn for queue events. Listeners must not block.
func (q *Queue) Subscribe(fn func(Event)) {
	q.lmu.Lock()
	q.listeners = append(q.listeners, fn)
	q.lmu.Unlock()
}

func (q *Queue) emit(e Event) {
	q.lmu.RLock()
	listeners := q.listeners
	q.lmu.RUnlock()
	for _, fn := range listeners {
		fn(e)
	}
}

// OnReachability is a reachability listener. Every online poll starts a
// background drain.
func (q *Queue) OnReachability(s reachability.Status) {
	if !s.Online || q.ctx.Err() != nil {
		return
	}
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		res, err := q.Drain(q.ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			q.logger.Error("background drain", "error", err)
			return
		}
		if res.Attempted > 0 {
			q.logger.Info("background drain finished",
				"delivered", res.Delivered, "evicted", res.Evicted, "remaining", res.Remaining)
		}
	}()
}

// Close stops background drains and waits for them to return.
func (q *Queue) Close() {
	q.cancel()
	q.wg.Wait()
}
