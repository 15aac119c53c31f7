package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/shelfkeep/internal/model"
	"github.com/dukerupert/shelfkeep/internal/store"
	"github.com/dukerupert/shelfkeep/internal/websocket"
)

type ProjectHandler struct {
	projectStore *store.ProjectStore
	itemStore    *store.ItemStore
	hub          *websocket.Hub
	logger       *slog.Logger
}

func NewProjectHandler(ps *store.ProjectStore, is *store.ItemStore, hub *websocket.Hub, logger *slog.Logger) *ProjectHandler {
	return &ProjectHandler{projectStore: ps, itemStore: is, hub: hub, logger: loggerOrDefault(logger)}
}

// projectDetail is a project with its requirements.
type projectDetail struct {
	*model.Project
	Items     []model.ProjectItem `json:"items"`
	Fulfilled int                 `json:"fulfilled"`
	Missing   int                 `json:"missing"`
}

func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	projects, err := h.projectStore.List(r.Context())
	if err != nil {
		writeStoreError(w, h.logger, "list projects", err)
		return
	}
	if projects == nil {
		projects = []model.Project{}
	}
	writeJSON(w, http.StatusOK, projects)
}

func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.Project
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	p, err := h.projectStore.Create(r.Context(), req)
	if err != nil {
		writeStoreError(w, h.logger, "create project", err)
		return
	}

	broadcast(h.hub, websocket.NewMessage("project", "created", p.ID, nil))
	writeJSON(w, http.StatusCreated, p)
}

func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.projectStore.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, h.logger, "get project", err)
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "project not found")
		return
	}

	items, err := h.projectStore.ListItems(r.Context(), p.ID)
	if err != nil {
		writeStoreError(w, h.logger, "list project items", err)
		return
	}

	detail := projectDetail{Project: p, Items: items}
	if detail.Items == nil {
		detail.Items = []model.ProjectItem{}
	}
	for _, pi := range items {
		if pi.IsFulfilled {
			detail.Fulfilled++
		} else {
			detail.Missing++
		}
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	patch, err := decodePatch(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	p, err := h.projectStore.Update(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		writeStoreError(w, h.logger, "update project", err)
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "project not found")
		return
	}

	broadcast(h.hub, websocket.NewMessage("project", "updated", p.ID, nil))
	writeJSON(w, http.StatusOK, p)
}

func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	existing, err := h.projectStore.Get(r.Context(), id)
	if err != nil {
		writeStoreError(w, h.logger, "get project", err)
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "project not found")
		return
	}

	if err := h.projectStore.Delete(r.Context(), id); err != nil {
		writeStoreError(w, h.logger, "delete project", err)
		return
	}

	broadcast(h.hub, websocket.NewMessage("project", "deleted", id, nil))
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProjectHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")

	var req model.ProjectItem
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	p, err := h.projectStore.Get(r.Context(), projectID)
	if err != nil {
		writeStoreError(w, h.logger, "get project", err)
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "project not found")
		return
	}

	req.ProjectID = projectID
	pi, err := h.projectStore.CreateItem(r.Context(), req)
	if err != nil {
		writeStoreError(w, h.logger, "create project item", err)
		return
	}

	broadcast(h.hub, websocket.NewMessage("project_item", "created", pi.ID, map[string]any{"project_id": projectID}))
	writeJSON(w, http.StatusCreated, pi)
}

func (h *ProjectHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	patch, err := decodePatch(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	pi, err := h.projectStore.UpdateItem(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		writeStoreError(w, h.logger, "update project item", err)
		return
	}
	if pi == nil {
		writeError(w, http.StatusNotFound, "project item not found")
		return
	}

	broadcast(h.hub, websocket.NewMessage("project_item", "updated", pi.ID, map[string]any{"project_id": pi.ProjectID}))
	writeJSON(w, http.StatusOK, pi)
}

// LinkItem fulfils a requirement with an inventory item. An empty item_id
// unlinks it.
func (h *ProjectHandler) LinkItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ItemID string `json:"item_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if req.ItemID != "" {
		item, err := h.itemStore.Get(r.Context(), req.ItemID)
		if err != nil {
			writeStoreError(w, h.logger, "get item", err)
			return
		}
		if item == nil {
			writeError(w, http.StatusBadRequest, "item not found")
			return
		}
	}

	pi, err := h.projectStore.LinkItem(r.Context(), r.PathValue("id"), req.ItemID)
	if err != nil {
		writeStoreError(w, h.logger, "link project item", err)
		return
	}
	if pi == nil {
		writeError(w, http.StatusNotFound, "project item not found")
		return
	}

	broadcast(h.hub, websocket.NewMessage("project_item", "updated", pi.ID, map[string]any{"project_id": pi.ProjectID}))
	writeJSON(w, http.StatusOK, pi)
}

func (h *ProjectHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	existing, err := h.projectStore.GetItem(r.Context(), id)
	if err != nil {
		writeStoreError(w, h.logger, "get project item", err)
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "project item not found")
		return
	}

	if err := h.projectStore.DeleteItem(r.Context(), id); err != nil {
		writeStoreError(w, h.logger, "delete project item", err)
		return
	}

	broadcast(h.hub, websocket.NewMessage("project_item", "deleted", id, map[string]any{"project_id": existing.ProjectID}))
	w.WriteHeader(http.StatusNoContent)
}
