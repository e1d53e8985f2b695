package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"planwise/tracking-engine/internal/models"
	"planwise/tracking-engine/internal/recurrence"
	"planwise/tracking-engine/internal/repository"
	"planwise/tracking-engine/internal/scope"
)

type EventHandler struct {
	events     *repository.EventRepository
	recurrence *recurrence.Service
	series     *scope.Service
	logger     *zap.Logger
}

func NewEventHandler(
	events *repository.EventRepository,
	recurrenceService *recurrence.Service,
	series *scope.Service,
	logger *zap.Logger,
) *EventHandler {
	return &EventHandler{
		events:     events,
		recurrence: recurrenceService,
		series:     series,
		logger:     logger,
	}
}

func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req models.CreateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("Failed to decode request", zap.Error(err))
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if !req.StartTime.Before(req.EndTime) {
		http.Error(w, "start_time must be before end_time", http.StatusBadRequest)
		return
	}

	seed := &models.Event{
		ID:        uuid.New().String(),
		Title:     req.Title,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		ProjectID: req.ProjectID,
		Color:     req.Color,
		Kind:      models.KindPlanned,
	}

	var created *models.Event
	var err error
	if req.Recurrence != nil {
		created, err = h.recurrence.CreateRecurring(seed, *req.Recurrence)
	} else {
		err = h.events.Create(seed)
		created = seed
	}
	if err != nil {
		h.logger.Error("Failed to create event", zap.Error(err))
		http.Error(w, "Failed to create event", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(created)
}

func (h *EventHandler) QueryEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	from, err := time.Parse(time.RFC3339, r.URL.Query().Get("from"))
	if err != nil {
		http.Error(w, "Invalid from parameter", http.StatusBadRequest)
		return
	}
	to, err := time.Parse(time.RFC3339, r.URL.Query().Get("to"))
	if err != nil {
		http.Error(w, "Invalid to parameter", http.StatusBadRequest)
		return
	}

	// A query near the generation horizon nudges open-ended series forward
	// so the visible range never outruns generation.
	if err := h.recurrence.EnsureHorizon(to); err != nil {
		h.logger.Warn("Horizon extension failed", zap.Error(err))
	}

	events, err := h.events.QueryRange(from, to)
	if err != nil {
		h.logger.Error("Failed to query events", zap.Error(err))
		http.Error(w, "Failed to query events", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(events)
}

func (h *EventHandler) EditSeries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		InstanceID string                    `json:"instance_id"`
		Scope      string                    `json:"scope"`
		Patch      models.UpdateEventRequest `json:"patch"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("Failed to decode request", zap.Error(err))
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	seriesScope, err := scope.ParseScope(req.Scope)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ids, err := h.series.EditSeries(req.InstanceID, seriesScope, &req.Patch)
	if err != nil {
		h.logger.Error("Failed to edit series", zap.Error(err))
		http.Error(w, "Failed to edit series", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"updated_ids": ids})
}

func (h *EventHandler) DeleteSeries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	instanceID := r.URL.Query().Get("instance_id")
	if instanceID == "" {
		http.Error(w, "Missing instance_id parameter", http.StatusBadRequest)
		return
	}

	seriesScope, err := scope.ParseScope(r.URL.Query().Get("scope"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ids, err := h.series.DeleteSeries(instanceID, seriesScope)
	if err != nil {
		h.logger.Error("Failed to delete series", zap.Error(err))
		http.Error(w, "Failed to delete series", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"deleted_ids": ids})
}
