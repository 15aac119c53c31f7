package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dukerupert/shelfkeep/internal/backup"
	"github.com/dukerupert/shelfkeep/internal/database"
)

// BackupHandler triggers and lists encrypted snapshots. Restore replaces the
// database file and is only offered by the CLI.
type BackupHandler struct {
	mgr    *backup.Manager
	logger *slog.Logger
}

func NewBackupHandler(mgr *backup.Manager, logger *slog.Logger) *BackupHandler {
	return &BackupHandler{mgr: mgr, logger: loggerOrDefault(logger)}
}

func (h *BackupHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.mgr.Status())
}

func (h *BackupHandler) List(w http.ResponseWriter, r *http.Request) {
	snaps, err := h.mgr.List(r.Context())
	if err != nil {
		h.writeBackupError(w, "list snapshots", err)
		return
	}
	if snaps == nil {
		snaps = []backup.Snapshot{}
	}
	writeJSON(w, http.StatusOK, snaps)
}

func (h *BackupHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Passphrase string `json:"passphrase"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	snap, err := h.mgr.Snapshot(r.Context(), req.Passphrase)
	if err != nil {
		h.writeBackupError(w, "create snapshot", err)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

func (h *BackupHandler) writeBackupError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, backup.ErrNoPassphrase):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, backup.ErrDisabled), errors.Is(err, database.ErrNotInitialized):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		h.logger.Error("backup request failed", "op", op, "error", err)
		writeError(w, http.StatusBadGateway, "failed to "+op)
	}
}
