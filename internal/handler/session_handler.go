package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"planwise/tracking-engine/internal/models"
	"planwise/tracking-engine/internal/session"

	"go.uber.org/zap"
)

type SessionHandler struct {
	machine *session.Machine
	logger  *zap.Logger
}

func NewSessionHandler(machine *session.Machine, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		machine: machine,
		logger:  logger,
	}
}

type conflictResponse struct {
	Error   string                `json:"error"`
	Foreign *models.SessionMarker `json:"foreign_session"`
}

func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var sel session.Selection
	if err := json.NewDecoder(r.Body).Decode(&sel); err != nil {
		h.logger.Error("Failed to decode request", zap.Error(err))
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	// The start instant is captured here, before any store round trip.
	err := h.machine.Start(sel, time.Now())

	var conflict *session.ConflictError
	if errors.As(err, &conflict) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(conflictResponse{
			Error:   "another session is active",
			Foreign: conflict.Foreign,
		})
		return
	}
	if err != nil {
		h.logger.Error("Failed to start session", zap.Error(err))
		http.Error(w, "Failed to start session", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(h.machine.Status())
}

func (h *SessionHandler) Stop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Capture the stop instant synchronously; the recorded duration must
	// reflect the user's action, not store latency.
	if err := h.machine.Stop(time.Now()); err != nil {
		h.logger.Error("Failed to stop session", zap.Error(err))
		http.Error(w, "Failed to stop session", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.machine.Status())
}

func (h *SessionHandler) ResolveConflict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Action string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("Failed to decode request", zap.Error(err))
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.machine.ResolveConflict(session.ConflictAction(req.Action)); err != nil {
		h.logger.Error("Failed to resolve conflict", zap.Error(err))
		http.Error(w, "Failed to resolve conflict", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.machine.Status())
}

func (h *SessionHandler) Status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.machine.Status())
}
