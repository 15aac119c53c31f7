package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/shelfkeep/internal/model"
	"github.com/dukerupert/shelfkeep/internal/store"
	"github.com/dukerupert/shelfkeep/internal/websocket"
)

type LocationHandler struct {
	locationStore *store.LocationStore
	hub           *websocket.Hub
	logger        *slog.Logger
}

func NewLocationHandler(ls *store.LocationStore, hub *websocket.Hub, logger *slog.Logger) *LocationHandler {
	return &LocationHandler{locationStore: ls, hub: hub, logger: loggerOrDefault(logger)}
}

func (h *LocationHandler) List(w http.ResponseWriter, r *http.Request) {
	locations, err := h.locationStore.List(r.Context())
	if err != nil {
		writeStoreError(w, h.logger, "list locations", err)
		return
	}
	if locations == nil {
		locations = []model.Location{}
	}
	writeJSON(w, http.StatusOK, locations)
}

func (h *LocationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	l, err := h.locationStore.Create(r.Context(), model.Location{Name: req.Name})
	if err != nil {
		writeStoreError(w, h.logger, "create location", err)
		return
	}

	broadcast(h.hub, websocket.NewMessage("location", "created", l.ID, nil))
	writeJSON(w, http.StatusCreated, l)
}

func (h *LocationHandler) Update(w http.ResponseWriter, r *http.Request) {
	p, err := decodePatch(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	l, err := h.locationStore.Update(r.Context(), r.PathValue("id"), p)
	if err != nil {
		writeStoreError(w, h.logger, "update location", err)
		return
	}
	if l == nil {
		writeError(w, http.StatusNotFound, "location not found")
		return
	}

	broadcast(h.hub, websocket.NewMessage("location", "updated", l.ID, nil))
	writeJSON(w, http.StatusOK, l)
}

func (h *LocationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	existing, err := h.locationStore.Get(r.Context(), id)
	if err != nil {
		writeStoreError(w, h.logger, "get location", err)
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "location not found")
		return
	}

	if err := h.locationStore.Delete(r.Context(), id); err != nil {
		writeStoreError(w, h.logger, "delete location", err)
		return
	}

	broadcast(h.hub, websocket.NewMessage("location", "deleted", id, nil))
	w.WriteHeader(http.StatusNoContent)
}
