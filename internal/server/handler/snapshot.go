package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/detradefi/navoracle/internal/domain"
)

// SnapshotHandler serves persisted snapshots for inspection.
type SnapshotHandler struct {
	store          domain.SnapshotStore
	defaultAddress string
	logger         *slog.Logger
}

// NewSnapshotHandler creates a SnapshotHandler. defaultAddress is used
// when a request does not name an address explicitly.
func NewSnapshotHandler(store domain.SnapshotStore, defaultAddress string, logger *slog.Logger) *SnapshotHandler {
	return &SnapshotHandler{
		store:          store,
		defaultAddress: defaultAddress,
		logger:         logger.With(slog.String("handler", "snapshot")),
	}
}

// Latest returns the most recent snapshot for an address.
// GET /api/v1/snapshots/latest?address=0x...
func (h *SnapshotHandler) Latest(w http.ResponseWriter, r *http.Request) {
	addr := h.address(r)
	if addr == "" {
		writeError(w, http.StatusBadRequest, "address is required")
		return
	}

	snap, err := h.store.Latest(r.Context(), addr)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no snapshot for address")
			return
		}
		h.logger.ErrorContext(r.Context(), "latest snapshot lookup failed",
			slog.String("address", addr),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "snapshot lookup failed")
		return
	}

	writeJSON(w, http.StatusOK, snap.Document())
}

// Get returns a snapshot by its ID.
// GET /api/v1/snapshots/{id}
func (h *SnapshotHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	snap, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "snapshot not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "snapshot lookup failed",
			slog.String("snapshot_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "snapshot lookup failed")
		return
	}

	writeJSON(w, http.StatusOK, snap.Document())
}

// List returns recent snapshots for an address, newest first.
// GET /api/v1/snapshots?address=0x...&limit=20
func (h *SnapshotHandler) List(w http.ResponseWriter, r *http.Request) {
	addr := h.address(r)
	if addr == "" {
		writeError(w, http.StatusBadRequest, "address is required")
		return
	}

	snaps, err := h.store.ListRecent(r.Context(), addr, parseLimit(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "snapshot list failed",
			slog.String("address", addr),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "snapshot list failed")
		return
	}

	docs := make([]map[string]any, 0, len(snaps))
	for _, snap := range snaps {
		docs = append(docs, snap.Document())
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"address":   addr,
		"count":     len(docs),
		"snapshots": docs,
	})
}

// address resolves the requested address, falling back to the configured
// default.
func (h *SnapshotHandler) address(r *http.Request) string {
	if v := strings.TrimSpace(r.URL.Query().Get("address")); v != "" {
		return v
	}
	return h.defaultAddress
}
