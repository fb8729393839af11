// Package admin serves the key administration API used by veilctl serve.
// Responses carry key metadata only; material never leaves the process.
package admin

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zoobzio/veil/keys"
)

// KeyAdmin is the subset of *keys.Manager the API drives.
type KeyAdmin interface {
	Slots(ctx context.Context) ([]string, error)
	History(ctx context.Context, slot string) ([]keys.Metadata, error)
	Rotate(ctx context.Context, slot string) (keys.Key, error)
	Sweep(ctx context.Context) ([]string, error)
}

// Handler serves the admin endpoints.
type Handler struct {
	keys   KeyAdmin
	logger *slog.Logger
}

// NewHandler returns a Handler over k.
func NewHandler(k KeyAdmin, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{keys: k, logger: logger}
}

// KeyResponse describes one key version.
type KeyResponse struct {
	Slot        string `json:"slot"`
	Version     int64  `json:"version"`
	KeyID       string `json:"key_id,omitempty"`
	Status      string `json:"status,omitempty"`
	EffectiveAt string `json:"effective_at,omitempty"`
	ExpiresAt   string `json:"expires_at,omitempty"`
	Creator     string `json:"creator,omitempty"`
	Remark      string `json:"remark,omitempty"`
}

// KeyListResponse lists key versions, newest first.
type KeyListResponse struct {
	Keys []KeyResponse `json:"keys"`
}

// SlotListResponse lists slots.
type SlotListResponse struct {
	Slots []string `json:"slots"`
}

// SweepResponse lists the slots a sweep rotated.
type SweepResponse struct {
	Rotated []string `json:"rotated"`
	Errors  string   `json:"errors,omitempty"`
}

func toResponse(m keys.Metadata) KeyResponse {
	resp := KeyResponse{
		Slot:        m.Slot,
		Version:     m.Version,
		KeyID:       m.KeyID,
		Status:      string(m.Status),
		EffectiveAt: m.EffectiveAt.Format(time.RFC3339),
		Creator:     m.Creator,
		Remark:      m.Remark,
	}
	if !m.ExpiresAt.IsZero() {
		resp.ExpiresAt = m.ExpiresAt.Format(time.RFC3339)
	}
	return resp
}

func (h *Handler) audit(ctx context.Context, op, slot string, version int64, result string) {
	h.logger.InfoContext(ctx, "audit",
		"operation", op,
		"slot", slot,
		"version", version,
		"result", result,
	)
}

// slotParam reads and validates the {slot} URL parameter.
func (h *Handler) slotParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	slot := chi.URLParam(r, "slot")
	if err := keys.ValidateSlot(slot); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_SLOT", "invalid slot name")
		return "", false
	}
	return slot, true
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListSlots lists every known slot.
func (h *Handler) ListSlots(w http.ResponseWriter, r *http.Request) {
	slots, err := h.keys.Slots(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list slots", "operation", "list_slots", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		return
	}
	if slots == nil {
		slots = []string{}
	}
	writeJSON(w, http.StatusOK, SlotListResponse{Slots: slots})
}

// ListKeys lists every version of a slot.
func (h *Handler) ListKeys(w http.ResponseWriter, r *http.Request) {
	slot, ok := h.slotParam(w, r)
	if !ok {
		return
	}

	history, err := h.keys.History(r.Context(), slot)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list keys", "operation", "list_keys", "slot", slot, "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		return
	}

	resp := KeyListResponse{Keys: make([]KeyResponse, 0, len(history))}
	for _, m := range history {
		resp.Keys = append(resp.Keys, toResponse(m))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetCurrentKey describes the active version of a slot.
func (h *Handler) GetCurrentKey(w http.ResponseWriter, r *http.Request) {
	slot, ok := h.slotParam(w, r)
	if !ok {
		return
	}

	history, err := h.keys.History(r.Context(), slot)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to get current key", "operation", "get_current_key", "slot", slot, "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		return
	}
	for _, m := range history {
		if m.Active {
			writeJSON(w, http.StatusOK, toResponse(m))
			return
		}
	}
	writeError(w, http.StatusNotFound, "KEY_NOT_FOUND", "no active key for this slot")
}

// RotateKey installs a new version for a slot.
func (h *Handler) RotateKey(w http.ResponseWriter, r *http.Request) {
	slot, ok := h.slotParam(w, r)
	if !ok {
		return
	}

	k, err := h.keys.Rotate(r.Context(), slot)
	if err != nil {
		h.audit(r.Context(), "ROTATE_KEY", slot, 0, "FAILED")
		if errors.Is(err, keys.ErrInvalidSlot) {
			writeError(w, http.StatusBadRequest, "INVALID_SLOT", "invalid slot name")
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to rotate key", "operation", "rotate", "slot", slot, "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		return
	}

	h.audit(r.Context(), "ROTATE_KEY", slot, k.Version, "SUCCESS")
	writeJSON(w, http.StatusCreated, KeyResponse{Slot: k.Slot, Version: k.Version})
}

// Sweep rotates every expired active key.
func (h *Handler) Sweep(w http.ResponseWriter, r *http.Request) {
	rotated, err := h.keys.Sweep(r.Context())
	if rotated == nil {
		rotated = []string{}
	}
	resp := SweepResponse{Rotated: rotated}
	status := http.StatusOK
	if err != nil {
		resp.Errors = err.Error()
		status = http.StatusMultiStatus
	}
	h.audit(r.Context(), "SWEEP", "", int64(len(rotated)), http.StatusText(status))
	writeJSON(w, status, resp)
}
