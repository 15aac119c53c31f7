package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/shelfkeep/internal/model"
	"github.com/dukerupert/shelfkeep/internal/store"
)

const maxLookupBytes = 64 << 10

// BarcodeHandler answers scans from the local store: the cached product
// lookup for the code, if fresh, and any items already carrying it.
type BarcodeHandler struct {
	cache     *store.BarcodeCache
	itemStore *store.ItemStore
	maxAge    time.Duration
	logger    *slog.Logger
}

func NewBarcodeHandler(cache *store.BarcodeCache, is *store.ItemStore, maxAge time.Duration, logger *slog.Logger) *BarcodeHandler {
	return &BarcodeHandler{cache: cache, itemStore: is, maxAge: maxAge, logger: loggerOrDefault(logger)}
}

type barcodeResponse struct {
	Barcode string          `json:"barcode"`
	Lookup  json.RawMessage `json:"lookup"`
	Items   []model.Item    `json:"items"`
}

func (h *BarcodeHandler) Get(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("barcode")

	lookup, err := h.cache.Get(r.Context(), code, h.maxAge)
	if err != nil {
		writeStoreError(w, h.logger, "get barcode lookup", err)
		return
	}
	items, err := h.itemStore.FindByBarcode(r.Context(), code)
	if err != nil {
		writeStoreError(w, h.logger, "find items by barcode", err)
		return
	}

	resp := barcodeResponse{Barcode: code, Lookup: json.RawMessage("null"), Items: items}
	if lookup != nil {
		resp.Lookup = lookup.Payload
	}
	if resp.Items == nil {
		resp.Items = []model.Item{}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Put caches a product lookup body for the barcode.
func (h *BarcodeHandler) Put(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxLookupBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	if !json.Valid(body) {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if err := h.cache.Put(r.Context(), r.PathValue("barcode"), body); err != nil {
		writeStoreError(w, h.logger, "cache barcode lookup", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
