package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/shelfkeep/internal/auth"
	"github.com/dukerupert/shelfkeep/internal/model"
	"github.com/dukerupert/shelfkeep/internal/queue"
	"github.com/dukerupert/shelfkeep/internal/reachability"
	"github.com/dukerupert/shelfkeep/internal/shopping"
)

// SyncHandler exposes the mutation queue, the shopping reconcile and the
// stored credential.
type SyncHandler struct {
	queue    *queue.Queue
	shopping *shopping.Service
	monitor  *reachability.Monitor
	tokens   *auth.TokenStore
	logger   *slog.Logger
}

func NewSyncHandler(q *queue.Queue, svc *shopping.Service, m *reachability.Monitor, ts *auth.TokenStore, logger *slog.Logger) *SyncHandler {
	return &SyncHandler{queue: q, shopping: svc, monitor: m, tokens: ts, logger: loggerOrDefault(logger)}
}

type syncStatus struct {
	Online        bool                   `json:"online"`
	CheckedAt     *time.Time             `json:"checked_at,omitempty"`
	HasCredential bool                   `json:"has_credential"`
	Pending       int                    `json:"pending"`
	Queue         []model.QueuedMutation `json:"queue"`
}

func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	st := h.monitor.Status()
	resp := syncStatus{
		Online:        st.Online,
		HasCredential: h.tokens.HasCredential(r.Context()),
		Queue:         h.queue.Pending(),
	}
	if !st.CheckedAt.IsZero() {
		resp.CheckedAt = &st.CheckedAt
	}
	if resp.Queue == nil {
		resp.Queue = []model.QueuedMutation{}
	}
	resp.Pending = len(resp.Queue)
	writeJSON(w, http.StatusOK, resp)
}

type enqueueRequest struct {
	Kind     model.MutationKind `json:"kind"`
	Endpoint string             `json:"endpoint"`
	Payload  json.RawMessage    `json:"payload"`
}

// Enqueue records a remote mutation. Delivery is attempted before the
// response is written, so a 202 may already have been delivered.
func (h *SyncHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	m, err := h.queue.Enqueue(r.Context(), req.Kind, strings.TrimSpace(req.Endpoint), req.Payload)
	if err != nil {
		if errors.Is(err, queue.ErrInvalidKind) || errors.Is(err, queue.ErrEmptyEndpoint) || errors.Is(err, queue.ErrInvalidPayload) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeStoreError(w, h.logger, "enqueue mutation", err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"mutation": m, "pending": h.queue.Len()})
}

func (h *SyncHandler) ListQueue(w http.ResponseWriter, r *http.Request) {
	pending := h.queue.Pending()
	if pending == nil {
		pending = []model.QueuedMutation{}
	}
	writeJSON(w, http.StatusOK, pending)
}

func (h *SyncHandler) Drain(w http.ResponseWriter, r *http.Request) {
	res, err := h.queue.Drain(r.Context())
	if err != nil {
		writeStoreError(w, h.logger, "drain queue", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *SyncHandler) ReconcileShopping(w http.ResponseWriter, r *http.Request) {
	rep, err := h.shopping.Reconcile(r.Context())
	if err != nil {
		h.logger.Warn("shopping reconcile failed", "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (h *SyncHandler) SetToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Token = strings.TrimSpace(req.Token)
	if req.Token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	if err := h.tokens.SetToken(r.Context(), req.Token); err != nil {
		writeStoreError(w, h.logger, "store credential", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"has_credential": h.tokens.HasCredential(r.Context())})
}

func (h *SyncHandler) ClearToken(w http.ResponseWriter, r *http.Request) {
	if err := h.tokens.Clear(r.Context()); err != nil {
		writeStoreError(w, h.logger, "clear credential", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
