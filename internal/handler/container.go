package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/shelfkeep/internal/model"
	"github.com/dukerupert/shelfkeep/internal/store"
	"github.com/dukerupert/shelfkeep/internal/websocket"
)

type ContainerHandler struct {
	containerStore *store.ContainerStore
	itemStore      *store.ItemStore
	hub            *websocket.Hub
	logger         *slog.Logger
}

func NewContainerHandler(cs *store.ContainerStore, is *store.ItemStore, hub *websocket.Hub, logger *slog.Logger) *ContainerHandler {
	return &ContainerHandler{containerStore: cs, itemStore: is, hub: hub, logger: loggerOrDefault(logger)}
}

func (h *ContainerHandler) List(w http.ResponseWriter, r *http.Request) {
	var containers []model.Container
	var err error
	if loc := r.URL.Query().Get("location_id"); loc != "" {
		containers, err = h.containerStore.ListByLocation(r.Context(), loc)
	} else {
		containers, err = h.containerStore.List(r.Context())
	}
	if err != nil {
		writeStoreError(w, h.logger, "list containers", err)
		return
	}
	if containers == nil {
		containers = []model.Container{}
	}
	writeJSON(w, http.StatusOK, containers)
}

func (h *ContainerHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.Container
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	c, err := h.containerStore.Create(r.Context(), req)
	if err != nil {
		writeStoreError(w, h.logger, "create container", err)
		return
	}

	broadcast(h.hub, websocket.NewMessage("container", "created", c.ID, nil))
	writeJSON(w, http.StatusCreated, c)
}

func (h *ContainerHandler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.containerStore.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, h.logger, "get container", err)
		return
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "container not found")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Items lists the contents of a container.
func (h *ContainerHandler) Items(w http.ResponseWriter, r *http.Request) {
	items, err := h.itemStore.ListByContainer(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, h.logger, "list container items", err)
		return
	}
	if items == nil {
		items = []model.Item{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *ContainerHandler) Update(w http.ResponseWriter, r *http.Request) {
	p, err := decodePatch(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	c, err := h.containerStore.Update(r.Context(), r.PathValue("id"), p)
	if err != nil {
		writeStoreError(w, h.logger, "update container", err)
		return
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "container not found")
		return
	}

	broadcast(h.hub, websocket.NewMessage("container", "updated", c.ID, nil))
	writeJSON(w, http.StatusOK, c)
}

func (h *ContainerHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	existing, err := h.containerStore.Get(r.Context(), id)
	if err != nil {
		writeStoreError(w, h.logger, "get container", err)
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "container not found")
		return
	}

	if err := h.containerStore.Delete(r.Context(), id); err != nil {
		writeStoreError(w, h.logger, "delete container", err)
		return
	}

	broadcast(h.hub, websocket.NewMessage("container", "deleted", id, nil))
	w.WriteHeader(http.StatusNoContent)
}
