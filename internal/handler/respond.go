package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/shelfkeep/internal/database"
	"github.com/dukerupert/shelfkeep/internal/store"
	"github.com/dukerupert/shelfkeep/internal/websocket"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	return dec.Decode(v)
}

// decodePatch reads a partial update. Numbers arrive as json.Number and are
// narrowed to int64 or float64 so the store sees plain values.
func decodePatch(r *http.Request) (store.Patch, error) {
	var p store.Patch
	if err := decodeJSON(r, &p); err != nil {
		return nil, err
	}
	for k, v := range p {
		n, ok := v.(json.Number)
		if !ok {
			continue
		}
		if i, err := n.Int64(); err == nil {
			p[k] = i
		} else if f, err := n.Float64(); err == nil {
			p[k] = f
		}
	}
	return p, nil
}

// isValidation reports errors caused by the request rather than the store.
func isValidation(err error) bool {
	for _, target := range []error{
		store.ErrNameRequired,
		store.ErrImmutableField,
		store.ErrUnknownField,
		store.ErrEmptyPatch,
		store.ErrInvalidQuantity,
		store.ErrInvalidStatus,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// writeStoreError maps a store error to a response. Unexpected errors are
// logged and reported as "failed to <op>".
func writeStoreError(w http.ResponseWriter, logger *slog.Logger, op string, err error) {
	switch {
	case isValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, database.ErrNotInitialized):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case strings.Contains(err.Error(), "FOREIGN KEY constraint failed"):
		writeError(w, http.StatusBadRequest, "referenced record does not exist")
	default:
		logger.Error("request failed", "op", op, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to "+op)
	}
}

func broadcast(hub *websocket.Hub, msg websocket.Message) {
	if hub != nil {
		hub.Broadcast(msg)
	}
}

func loggerOrDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
