package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/dukerupert/shelfkeep/internal/auth"
	"github.com/dukerupert/shelfkeep/internal/backup"
	"github.com/dukerupert/shelfkeep/internal/config"
	"github.com/dukerupert/shelfkeep/internal/database"
	"github.com/dukerupert/shelfkeep/internal/handler"
	"github.com/dukerupert/shelfkeep/internal/middleware"
	"github.com/dukerupert/shelfkeep/internal/queue"
	"github.com/dukerupert/shelfkeep/internal/reachability"
	"github.com/dukerupert/shelfkeep/internal/remote"
	"github.com/dukerupert/shelfkeep/internal/shopping"
	"github.com/dukerupert/shelfkeep/internal/store"
	ws "github.com/dukerupert/shelfkeep/internal/websocket"
)

var errNoRemote = errors.New("remote base URL not configured")

// Server owns the sync components and the local HTTP API the screens use.
type Server struct {
	h              *database.Handle
	hub            *ws.Hub
	monitor        *reachability.Monitor
	queue          *queue.Queue
	shopping       *shopping.Service
	backupManager  *backup.Manager
	barcodeCache   *store.BarcodeCache
	rateLimiter    *middleware.RateLimiter
	allowedOrigins []string
	barcodeMaxAge  time.Duration

	itemH      *handler.ItemHandler
	containerH *handler.ContainerHandler
	locationH  *handler.LocationHandler
	projectH   *handler.ProjectHandler
	shoppingH  *handler.ShoppingHandler
	syncH      *handler.SyncHandler
	barcodeH   *handler.BarcodeHandler
	backupH    *handler.BackupHandler

	logger *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg *config.Config, h *database.Handle, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger)

	itemStore := store.NewItemStore(h)
	settingsStore := store.NewSettingsStore(h)
	barcodeCache := store.NewBarcodeCache(h)
	tokens := auth.NewTokenStore(settingsStore)

	client := remote.NewClient(remote.Config{
		BaseURL: cfg.Remote.BaseURL,
		Timeout: cfg.Remote.Timeout,
	}, tokens)

	var prober reachability.Prober = reachability.ProberFunc(func(context.Context) error { return errNoRemote })
	if url := cfg.ProbeURL(); url != "" {
		prober = reachability.NewHTTPProber(url, cfg.Reachability.Timeout)
	}
	monitor := reachability.NewMonitor(prober, cfg.Reachability.Interval, logger)

	q := queue.New(settingsStore, client, monitor, logger)
	svc := shopping.NewService(store.NewShoppingStore(h), client, monitor, tokens, logger)

	monitor.Subscribe(hub.OnReachability)
	monitor.Subscribe(q.OnReachability)
	monitor.Subscribe(svc.OnReachability)
	q.Subscribe(hub.OnQueueEvent)
	svc.Subscribe(hub.OnShoppingEvent)
	hub.SetSnapshot(func() []ws.Message {
		network := "offline"
		if monitor.Online() {
			network = "online"
		}
		return []ws.Message{
			ws.NewMessage("network", network, "", nil),
			ws.NewMessage("queue", "pending", "", map[string]any{"pending": q.Len()}),
		}
	})

	backupMgr := backup.NewManager(backup.Config{
		S3: backup.S3Config{
			Endpoint:  cfg.Backup.S3.Endpoint,
			Bucket:    cfg.Backup.S3.Bucket,
			Region:    cfg.Backup.S3.Region,
			AccessKey: cfg.Backup.S3.AccessKey,
			SecretKey: cfg.Backup.S3.SecretKey,
			Prefix:    cfg.Backup.S3.Prefix,
		},
		Interval:   cfg.Backup.Interval,
		Passphrase: cfg.Backup.Passphrase,
		Keep:       cfg.Backup.Keep,
	}, h, logger, func(s backup.Status) {
		hub.Broadcast(ws.NewMessage("backup", string(s.State), "", map[string]any{
			"in_progress": s.InProgress,
			"error":       s.Error,
		}))
	})

	return &Server{
		h:              h,
		hub:            hub,
		monitor:        monitor,
		queue:          q,
		shopping:       svc,
		backupManager:  backupMgr,
		barcodeCache:   barcodeCache,
		rateLimiter:    middleware.NewRateLimiter(6, time.Minute),
		allowedOrigins: cfg.AllowedOrigins,
		barcodeMaxAge:  cfg.BarcodeMaxAge,

		itemH:      handler.NewItemHandler(itemStore, store.NewReceiptStore(h), hub, logger.With("component", "item")),
		containerH: handler.NewContainerHandler(store.NewContainerStore(h), itemStore, hub, logger.With("component", "container")),
		locationH:  handler.NewLocationHandler(store.NewLocationStore(h), hub, logger.With("component", "location")),
		projectH:   handler.NewProjectHandler(store.NewProjectStore(h), itemStore, hub, logger.With("component", "project")),
		shoppingH:  handler.NewShoppingHandler(svc, logger.With("component", "shopping_handler")),
		syncH:      handler.NewSyncHandler(q, svc, monitor, tokens, logger.With("component", "sync")),
		barcodeH:   handler.NewBarcodeHandler(barcodeCache, itemStore, cfg.BarcodeMaxAge, logger.With("component", "barcode")),
		backupH:    handler.NewBackupHandler(backupMgr, logger.With("component", "backup_handler")),

		logger: logger,
	}
}

// Start initialises the local store, restores the persisted queue and
// starts the background loops.
func (s *Server) Start(ctx context.Context) error {
	if err := s.h.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize local store: %w", err)
	}
	if err := s.queue.Load(ctx); err != nil {
		return fmt.Errorf("load offline queue: %w", err)
	}
	if s.barcodeMaxAge > 0 {
		if n, err := s.barcodeCache.Prune(ctx, s.barcodeMaxAge); err != nil {
			s.logger.Warn("prune barcode cache", "error", err)
		} else if n > 0 {
			s.logger.Info("pruned barcode cache", "deleted", n)
		}
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.monitor.Start(ctx)
	s.backupManager.Start(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.rateLimiter.Cleanup()
			}
		}
	}()
	return nil
}

// Stop halts background work. The database handle is left open for the
// caller to close.
func (s *Server) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.monitor.Stop()
	s.backupManager.Stop()
	s.queue.Close()
	s.shopping.Close()
	s.wg.Wait()
}

func (s *Server) Hub() *ws.Hub {
	return s.hub
}

func (s *Server) Queue() *queue.Queue {
	return s.queue
}

func (s *Server) Shopping() *shopping.Service {
	return s.shopping
}

func (s *Server) Monitor() *reachability.Monitor {
	return s.monitor
}

func (s *Server) BackupManager() *backup.Manager {
	return s.backupManager
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.allowedOrigins))

	// Items and receipts
	mux.HandleFunc("GET /api/items", s.itemH.List)
	mux.HandleFunc("POST /api/items", s.itemH.Create)
	mux.HandleFunc("GET /api/items/{id}", s.itemH.Get)
	mux.HandleFunc("PATCH /api/items/{id}", s.itemH.Update)
	mux.HandleFunc("DELETE /api/items/{id}", s.itemH.Delete)
	mux.HandleFunc("POST /api/items/{id}/synced", s.itemH.MarkSynced)
	mux.HandleFunc("GET /api/items/{id}/receipts", s.itemH.ListReceipts)
	mux.HandleFunc("POST /api/items/{id}/receipts", s.itemH.CreateReceipt)
	mux.HandleFunc("DELETE /api/receipts/{id}", s.itemH.DeleteReceipt)

	// Containers and locations
	mux.HandleFunc("GET /api/containers", s.containerH.List)
	mux.HandleFunc("POST /api/containers", s.containerH.Create)
	mux.HandleFunc("GET /api/containers/{id}", s.containerH.Get)
	mux.HandleFunc("GET /api/containers/{id}/items", s.containerH.Items)
	mux.HandleFunc("PATCH /api/containers/{id}", s.containerH.Update)
	mux.HandleFunc("DELETE /api/containers/{id}", s.containerH.Delete)
	mux.HandleFunc("GET /api/locations", s.locationH.List)
	mux.HandleFunc("POST /api/locations", s.locationH.Create)
	mux.HandleFunc("PATCH /api/locations/{id}", s.locationH.Update)
	mux.HandleFunc("DELETE /api/locations/{id}", s.locationH.Delete)

	// Projects
	mux.HandleFunc("GET /api/projects", s.projectH.List)
	mux.HandleFunc("POST /api/projects", s.projectH.Create)
	mux.HandleFunc("GET /api/projects/{id}", s.projectH.Get)
	mux.HandleFunc("PATCH /api/projects/{id}", s.projectH.Update)
	mux.HandleFunc("DELETE /api/projects/{id}", s.projectH.Delete)
	mux.HandleFunc("POST /api/projects/{id}/items", s.projectH.CreateItem)
	mux.HandleFunc("PATCH /api/project-items/{id}", s.projectH.UpdateItem)
	mux.HandleFunc("PUT /api/project-items/{id}/link", s.projectH.LinkItem)
	mux.HandleFunc("DELETE /api/project-items/{id}", s.projectH.DeleteItem)

	// Shopping list
	mux.HandleFunc("GET /api/shopping", s.shoppingH.List)
	mux.HandleFunc("POST /api/shopping", s.shoppingH.Create)
	mux.HandleFunc("PATCH /api/shopping/{id}", s.shoppingH.Update)
	mux.HandleFunc("POST /api/shopping/{id}/toggle", s.shoppingH.TogglePurchased)
	mux.HandleFunc("DELETE /api/shopping/{id}", s.shoppingH.Delete)

	// Barcodes
	mux.HandleFunc("GET /api/barcodes/{barcode}", s.barcodeH.Get)
	mux.HandleFunc("PUT /api/barcodes/{barcode}", s.barcodeH.Put)

	// Sync
	mux.HandleFunc("GET /api/sync/status", s.syncH.Status)
	mux.HandleFunc("GET /api/queue", s.syncH.ListQueue)
	mux.HandleFunc("POST /api/queue", s.syncH.Enqueue)
	mux.Handle("POST /api/queue/drain", s.rateLimiter.Limit(http.HandlerFunc(s.syncH.Drain)))
	mux.Handle("POST /api/sync/shopping", s.rateLimiter.Limit(http.HandlerFunc(s.syncH.ReconcileShopping)))
	mux.HandleFunc("PUT /api/auth/token", s.syncH.SetToken)
	mux.HandleFunc("DELETE /api/auth/token", s.syncH.ClearToken)

	// Backups
	mux.HandleFunc("GET /api/backup", s.backupH.Status)
	mux.HandleFunc("GET /api/backups", s.backupH.List)
	mux.Handle("POST /api/backup", s.rateLimiter.Limit(http.HandlerFunc(s.backupH.Snapshot)))

	return middleware.RequestLogger(s.logger.With("component", "http"))(mux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if !s.h.Initialized() {
		status = "starting"
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]any{
		"status":  status,
		"online":  s.monitor.Online(),
		"pending": s.queue.Len(),
	})
}
