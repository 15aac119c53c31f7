package database

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sync"
)

// ErrNotInitialized is returned by DB before Initialize has succeeded.
var ErrNotInitialized = errors.New("store not initialized")

// Handle owns the process-wide database connection. It is built once at
// startup and passed to every component that touches the local store.
type Handle struct {
	path   string
	logger *slog.Logger

	mu sync.RWMutex
	db *sql.DB
}

// NewHandle returns an uninitialised handle for the database at path.
func NewHandle(path string, logger *slog.Logger) *Handle {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handle{path: path, logger: logger}
}

// Initialize opens the database and runs schema setup. Calls after the first
// successful one are no-ops, so callers may invoke it eagerly.
func (h *Handle) Initialize(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.db != nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	db, err := Open(h.path)
	if err != nil {
		return err
	}
	h.db = db
	h.logger.Info("local store initialized", "path", h.path)
	return nil
}

// DB returns the shared connection or ErrNotInitialized.
func (h *Handle) DB() (*sql.DB, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.db == nil {
		return nil, ErrNotInitialized
	}
	return h.db, nil
}

// Initialized reports whether Initialize has completed.
func (h *Handle) Initialized() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.db != nil
}

// Path returns the database file path.
func (h *Handle) Path() string {
	return h.path
}

// Close closes the connection. The handle can be initialised again afterwards.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.db == nil {
		return nil
	}
	err := h.db.Close()
	h.db = nil
	return err
}
