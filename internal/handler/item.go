package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/shelfkeep/internal/category"
	"github.com/dukerupert/shelfkeep/internal/model"
	"github.com/dukerupert/shelfkeep/internal/store"
	"github.com/dukerupert/shelfkeep/internal/websocket"
)

type ItemHandler struct {
	itemStore    *store.ItemStore
	receiptStore *store.ReceiptStore
	hub          *websocket.Hub
	logger       *slog.Logger
}

func NewItemHandler(is *store.ItemStore, rs *store.ReceiptStore, hub *websocket.Hub, logger *slog.Logger) *ItemHandler {
	return &ItemHandler{itemStore: is, receiptStore: rs, hub: hub, logger: loggerOrDefault(logger)}
}

// List returns items, optionally filtered by one of container_id,
// location_id, barcode, unsynced=true or low_stock=true.
func (h *ItemHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ctx := r.Context()

	var items []model.Item
	var err error
	switch {
	case q.Get("container_id") != "":
		items, err = h.itemStore.ListByContainer(ctx, q.Get("container_id"))
	case q.Get("location_id") != "":
		items, err = h.itemStore.ListByLocation(ctx, q.Get("location_id"))
	case q.Get("barcode") != "":
		items, err = h.itemStore.FindByBarcode(ctx, q.Get("barcode"))
	case q.Get("unsynced") == "true":
		items, err = h.itemStore.ListUnsynced(ctx)
	case q.Get("low_stock") == "true":
		items, err = h.itemStore.ListLowStock(ctx)
	default:
		items, err = h.itemStore.List(ctx)
	}
	if err != nil {
		writeStoreError(w, h.logger, "list items", err)
		return
	}
	if items == nil {
		items = []model.Item{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *ItemHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.Item
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Quantity < 0 {
		writeError(w, http.StatusBadRequest, store.ErrInvalidQuantity.Error())
		return
	}

	// Auto-categorize if no category provided
	if req.Category == "" {
		req.Category = category.Categorize(req.Name)
	}

	item, err := h.itemStore.Create(r.Context(), req)
	if err != nil {
		writeStoreError(w, h.logger, "create item", err)
		return
	}

	broadcast(h.hub, websocket.NewMessage("item", "created", item.ID, nil))
	writeJSON(w, http.StatusCreated, item)
}

func (h *ItemHandler) Get(w http.ResponseWriter, r *http.Request) {
	item, err := h.itemStore.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, h.logger, "get item", err)
		return
	}
	if item == nil {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *ItemHandler) Update(w http.ResponseWriter, r *http.Request) {
	p, err := decodePatch(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	item, err := h.itemStore.Update(r.Context(), r.PathValue("id"), p)
	if err != nil {
		writeStoreError(w, h.logger, "update item", err)
		return
	}
	if item == nil {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}

	broadcast(h.hub, websocket.NewMessage("item", "updated", item.ID, nil))
	writeJSON(w, http.StatusOK, item)
}

func (h *ItemHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	existing, err := h.itemStore.Get(r.Context(), id)
	if err != nil {
		writeStoreError(w, h.logger, "get item", err)
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}

	if err := h.itemStore.Delete(r.Context(), id); err != nil {
		writeStoreError(w, h.logger, "delete item", err)
		return
	}

	broadcast(h.hub, websocket.NewMessage("item", "deleted", id, nil))
	w.WriteHeader(http.StatusNoContent)
}

// MarkSynced records that the remote has accepted the item.
func (h *ItemHandler) MarkSynced(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	existing, err := h.itemStore.Get(r.Context(), id)
	if err != nil {
		writeStoreError(w, h.logger, "get item", err)
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}

	if err := h.itemStore.MarkSynced(r.Context(), id); err != nil {
		writeStoreError(w, h.logger, "mark item synced", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ItemHandler) ListReceipts(w http.ResponseWriter, r *http.Request) {
	receipts, err := h.receiptStore.ListByItem(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, h.logger, "list receipts", err)
		return
	}
	if receipts == nil {
		receipts = []model.Receipt{}
	}
	writeJSON(w, http.StatusOK, receipts)
}

type receiptRequest struct {
	PhotoURL      string `json:"photo_url"`
	LocalPhotoURI string `json:"local_photo_uri"`
}

func (h *ItemHandler) CreateReceipt(w http.ResponseWriter, r *http.Request) {
	itemID := r.PathValue("id")

	var req receiptRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.PhotoURL == "" && req.LocalPhotoURI == "" {
		writeError(w, http.StatusBadRequest, "photo_url or local_photo_uri is required")
		return
	}

	item, err := h.itemStore.Get(r.Context(), itemID)
	if err != nil {
		writeStoreError(w, h.logger, "get item", err)
		return
	}
	if item == nil {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}

	receipt, err := h.receiptStore.Create(r.Context(), model.Receipt{
		ItemID:        itemID,
		PhotoURL:      req.PhotoURL,
		LocalPhotoURI: req.LocalPhotoURI,
	})
	if err != nil {
		writeStoreError(w, h.logger, "create receipt", err)
		return
	}

	broadcast(h.hub, websocket.NewMessage("receipt", "created", receipt.ID, map[string]any{"item_id": itemID}))
	writeJSON(w, http.StatusCreated, receipt)
}

func (h *ItemHandler) DeleteReceipt(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	existing, err := h.receiptStore.Get(r.Context(), id)
	if err != nil {
		writeStoreError(w, h.logger, "get receipt", err)
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "receipt not found")
		return
	}

	if err := h.receiptStore.Delete(r.Context(), id); err != nil {
		writeStoreError(w, h.logger, "delete receipt", err)
		return
	}

	broadcast(h.hub, websocket.NewMessage("receipt", "deleted", id, map[string]any{"item_id": existing.ItemID}))
	w.WriteHeader(http.StatusNoContent)
}
