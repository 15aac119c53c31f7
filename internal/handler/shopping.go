package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/shelfkeep/internal/model"
	"github.com/dukerupert/shelfkeep/internal/shopping"
)

// ShoppingHandler serves the local-first shopping list. Broadcasts come from
// the service's own events.
type ShoppingHandler struct {
	svc    *shopping.Service
	logger *slog.Logger
}

func NewShoppingHandler(svc *shopping.Service, logger *slog.Logger) *ShoppingHandler {
	return &ShoppingHandler{svc: svc, logger: loggerOrDefault(logger)}
}

type mirrorStatus struct {
	Attempted bool   `json:"attempted"`
	Error     string `json:"error,omitempty"`
}

type shoppingResponse struct {
	Item   *model.ShoppingItem `json:"item,omitempty"`
	Mirror mirrorStatus        `json:"mirror"`
}

func newMirrorStatus(mr shopping.MirrorResult) mirrorStatus {
	ms := mirrorStatus{Attempted: mr.Attempted}
	if mr.Err != nil {
		ms.Error = mr.Err.Error()
	}
	return ms
}

func (h *ShoppingHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.List(r.Context())
	if err != nil {
		writeStoreError(w, h.logger, "list shopping items", err)
		return
	}
	if items == nil {
		items = []model.ShoppingItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *ShoppingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ItemName string `json:"item_name"`
		Quantity *int   `json:"quantity"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.ItemName = strings.TrimSpace(req.ItemName)
	if req.ItemName == "" {
		writeError(w, http.StatusBadRequest, "item_name is required")
		return
	}
	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}

	item, mr, err := h.svc.Create(r.Context(), req.ItemName, qty)
	if err != nil {
		writeStoreError(w, h.logger, "create shopping item", err)
		return
	}
	writeJSON(w, http.StatusCreated, shoppingResponse{Item: item, Mirror: newMirrorStatus(mr)})
}

func (h *ShoppingHandler) Update(w http.ResponseWriter, r *http.Request) {
	p, err := decodePatch(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	item, mr, err := h.svc.Update(r.Context(), r.PathValue("id"), p)
	if err != nil {
		writeStoreError(w, h.logger, "update shopping item", err)
		return
	}
	if item == nil {
		writeError(w, http.StatusNotFound, "shopping item not found")
		return
	}
	writeJSON(w, http.StatusOK, shoppingResponse{Item: item, Mirror: newMirrorStatus(mr)})
}

func (h *ShoppingHandler) TogglePurchased(w http.ResponseWriter, r *http.Request) {
	item, mr, err := h.svc.TogglePurchased(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, h.logger, "toggle shopping item", err)
		return
	}
	if item == nil {
		writeError(w, http.StatusNotFound, "shopping item not found")
		return
	}
	writeJSON(w, http.StatusOK, shoppingResponse{Item: item, Mirror: newMirrorStatus(mr)})
}

func (h *ShoppingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	mr, err := h.svc.Delete(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, h.logger, "delete shopping item", err)
		return
	}
	writeJSON(w, http.StatusOK, shoppingResponse{Mirror: newMirrorStatus(mr)})
}
