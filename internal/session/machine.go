// Package session owns the tracking session state machine: start, stop,
// conflict resolution and crash recovery.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"planwise/tracking-engine/internal/models"
)

type State string

const (
	StateIdle       State = "idle"
	StateStarting   State = "starting"
	StateActive     State = "active"
	StateStopping   State = "stopping"
	StateRecovering State = "recovering"
	StateError      State = "error"
)

// Selection identifies what the session tracks against: a project or a
// free-text client label.
type Selection struct {
	ProjectID   *string `json:"project_id,omitempty"`
	ClientLabel *string `json:"client_label,omitempty"`
}

func (s Selection) Valid() bool {
	return s.ProjectID != nil || s.ClientLabel != nil
}

func (s Selection) title() string {
	if s.ClientLabel != nil {
		return *s.ClientLabel
	}
	return "Tracked time"
}

// ConflictAction is the user's answer to a ConflictError.
type ConflictAction string

const (
	// ActionCancel adopts the foreign session read-only instead of starting
	// a new one.
	ActionCancel ConflictAction = "cancel"
	// ActionStopOtherAndStartNew finalizes the foreign session, waits for
	// its marker to disappear, then starts the requested session.
	ActionStopOtherAndStartNew ConflictAction = "stop_other_and_start_new"
)

// EventStore is the slice of the event store the machine writes through.
type EventStore interface {
	Create(event *models.Event) error
	Update(id string, update *models.UpdateEventRequest) (*models.Event, error)
	Delete(id string) error
}

// MarkerStore persists the per-account session marker.
type MarkerStore interface {
	Get(accountID string) (*models.SessionMarker, error)
	AnyActive(accountID string) (*models.SessionMarker, error)
	Put(marker *models.SessionMarker) error
	Delete(accountID string) error
}

// Reconciler resolves a finalized tracked interval against planned events.
type Reconciler interface {
	Reconcile(start, end time.Time) ([]string, error)
}

// Status is the machine's externally visible state.
type Status struct {
	State          State    `json:"state"`
	IsActive       bool     `json:"is_active"`
	ElapsedSeconds int64    `json:"elapsed_seconds"`
	EventID        string   `json:"event_id,omitempty"`
	LastReconciled []string `json:"last_reconciled_event_ids,omitempty"`
}

// Machine drives a single account's tracking session.
type Machine struct {
	accountID      string
	events         EventStore
	markers        MarkerStore
	reconciler     Reconciler
	tickInterval   time.Duration
	reconcileDelay time.Duration
	logger         *zap.Logger

	mu             sync.RWMutex
	state          State
	startTime      time.Time
	eventID        string
	selection      Selection
	elapsed        int64
	adopted        bool
	lastReconciled []string

	// pending is the selection of a start blocked by a conflict, replayed
	// by ResolveConflict.
	pending *Selection

	tickStop       chan struct{}
	wg             sync.WaitGroup
	reconcileTimer *time.Timer
}

func NewMachine(
	accountID string,
	events EventStore,
	markers MarkerStore,
	reconciler Reconciler,
	tickInterval time.Duration,
	reconcileDelay time.Duration,
	logger *zap.Logger,
) *Machine {
	return &Machine{
		accountID:      accountID,
		events:         events,
		markers:        markers,
		reconciler:     reconciler,
		tickInterval:   tickInterval,
		reconcileDelay: reconcileDelay,
		logger:         logger,
		state:          StateIdle,
	}
}

// Start begins a tracking session at `now`. It fails with *ConflictError if
// the store shows any active marker for the account, and *CreationFailure if
// the initial tracked event cannot be written. A Start issued while another
// transition is pending is ignored.
func (m *Machine) Start(sel Selection, now time.Time) error {
	if !sel.Valid() {
		return fmt.Errorf("selection must name a project or a client label")
	}

	m.mu.Lock()
	switch m.state {
	case StateStarting, StateStopping:
		m.mu.Unlock()
		m.logger.Warn("Start ignored, transition in progress", zap.String("state", string(m.state)))
		return nil
	case StateActive:
		// Fall through to the marker check; it produces the conflict.
	}
	prev := m.state
	m.state = StateStarting
	m.mu.Unlock()

	foreign, err := m.markers.AnyActive(m.accountID)
	if err != nil {
		m.setState(prev)
		return fmt.Errorf("failed to check for active sessions: %w", err)
	}
	if foreign != nil {
		m.mu.Lock()
		m.state = prev
		m.pending = &sel
		m.mu.Unlock()
		m.logger.Info("Start blocked by active session",
			zap.String("foreign_event_id", foreign.EventID),
			zap.Time("foreign_start", foreign.StartTime),
		)
		return &ConflictError{Foreign: foreign}
	}

	event := &models.Event{
		ID:        uuid.New().String(),
		Title:     sel.title(),
		StartTime: now,
		EndTime:   now,
		ProjectID: sel.ProjectID,
		Kind:      models.KindTracked,
	}
	if err := m.events.Create(event); err != nil {
		m.setState(StateIdle)
		return &CreationFailure{Err: err}
	}

	marker := &models.SessionMarker{
		AccountID:   m.accountID,
		IsActive:    true,
		EventID:     event.ID,
		StartTime:   now,
		ProjectID:   sel.ProjectID,
		ClientLabel: sel.ClientLabel,
	}
	if err := m.markers.Put(marker); err != nil {
		// Best effort: remove the orphaned event so a half-started session
		// does not linger.
		if delErr := m.events.Delete(event.ID); delErr != nil {
			m.logger.Error("Failed to remove orphaned tracked event", zap.Error(delErr))
		}
		m.setState(StateIdle)
		return &CreationFailure{Err: err}
	}

	m.mu.Lock()
	m.state = StateActive
	m.startTime = now
	m.eventID = event.ID
	m.selection = sel
	m.elapsed = 0
	m.adopted = false
	m.pending = nil
	m.startTickLocked()
	m.reconcileTimer = time.AfterFunc(m.reconcileDelay, m.startupReconcilePass)
	m.mu.Unlock()

	m.logger.Info("Session started",
		zap.String("event_id", event.ID),
		zap.Time("start_time", now),
	)
	return nil
}

// Stop finalizes the session. The stop timestamp is the `now` argument,
// captured by the caller at the moment of the user action; everything
// asynchronous happens after it. A Stop issued while a start is pending is
// ignored; a Stop while Idle is a no-op.
func (m *Machine) Stop(now time.Time) error {
	m.mu.Lock()
	switch m.state {
	case StateStarting, StateStopping:
		m.mu.Unlock()
		m.logger.Warn("Stop ignored, transition in progress", zap.String("state", string(m.state)))
		return nil
	case StateActive:
	default:
		m.mu.Unlock()
		return nil
	}

	m.state = StateStopping
	startTime := m.startTime
	eventID := m.eventID
	adopted := m.adopted
	m.stopTickLocked()
	m.mu.Unlock()

	kind := models.KindCompleted
	completed := true
	if _, err := m.events.Update(eventID, &models.UpdateEventRequest{
		EndTime:   &now,
		Kind:      &kind,
		Completed: &completed,
	}); err != nil {
		// Not retried: reset locally and report. A partial record may
		// remain in the store for manual correction.
		m.logger.Error("Failed to finalize tracked event, forcing reset",
			zap.Error(err),
			zap.String("event_id", eventID),
		)
		m.reset()
		return fmt.Errorf("failed to finalize tracked event: %w", err)
	}

	mutated, err := m.reconciler.Reconcile(startTime, now)
	if err != nil {
		m.logger.Error("Reconciliation pass failed", zap.Error(err))
	}

	if err := m.markers.Delete(m.accountID); err != nil {
		m.logger.Error("Failed to delete session marker", zap.Error(err))
	}

	m.mu.Lock()
	m.state = StateIdle
	m.startTime = time.Time{}
	m.eventID = ""
	m.elapsed = 0
	m.adopted = false
	if mutated != nil {
		m.lastReconciled = mutated
	}
	m.mu.Unlock()

	m.logger.Info("Session stopped",
		zap.String("event_id", eventID),
		zap.Time("stop_time", now),
		zap.Int64("duration_seconds", int64(now.Sub(startTime).Seconds())),
		zap.Bool("was_adopted", adopted),
	)
	return nil
}

// ResolveConflict answers a previously returned ConflictError.
func (m *Machine) ResolveConflict(action ConflictAction) error {
	switch action {
	case ActionCancel:
		foreign, err := m.markers.AnyActive(m.accountID)
		if err != nil {
			return fmt.Errorf("failed to read foreign session: %w", err)
		}
		m.mu.Lock()
		m.pending = nil
		m.mu.Unlock()
		if foreign == nil {
			return nil
		}
		m.AdoptForeign(foreign)
		return nil

	case ActionStopOtherAndStartNew:
		m.mu.Lock()
		pending := m.pending
		m.mu.Unlock()
		if pending == nil {
			return fmt.Errorf("no blocked start to resume")
		}

		if err := m.stopForeign(); err != nil {
			return err
		}
		return m.Start(*pending, time.Now())

	default:
		return fmt.Errorf("unknown conflict action %q", action)
	}
}

// stopForeign finalizes the foreign session recorded in the marker, deletes
// the marker and waits until it is gone.
func (m *Machine) stopForeign() error {
	foreign, err := m.markers.AnyActive(m.accountID)
	if err != nil {
		return fmt.Errorf("failed to read foreign session: %w", err)
	}
	if foreign == nil {
		return nil
	}

	now := time.Now()
	kind := models.KindCompleted
	completed := true
	if _, err := m.events.Update(foreign.EventID, &models.UpdateEventRequest{
		EndTime:   &now,
		Kind:      &kind,
		Completed: &completed,
	}); err != nil {
		m.logger.Error("Failed to finalize foreign tracked event",
			zap.Error(err),
			zap.String("event_id", foreign.EventID),
		)
	}

	if err := m.markers.Delete(m.accountID); err != nil {
		return fmt.Errorf("failed to delete foreign session marker: %w", err)
	}

	// Confirm removal before starting fresh; the marker is the single
	// source of truth for "someone is tracking".
	for attempt := 0; attempt < 10; attempt++ {
		active, err := m.markers.AnyActive(m.accountID)
		if err != nil {
			return fmt.Errorf("failed to confirm marker removal: %w", err)
		}
		if active == nil {
			m.logger.Info("Foreign session stopped", zap.String("event_id", foreign.EventID))
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("foreign session marker did not disappear")
}

// Recover is invoked once on process init. A complete marker resumes the
// session with elapsed recomputed from its start time; a partial marker is
// discarded as an anomaly, never repaired.
func (m *Machine) Recover(now time.Time) error {
	m.setState(StateRecovering)

	marker, err := m.markers.Get(m.accountID)
	if err != nil {
		m.setState(StateIdle)
		return fmt.Errorf("failed to read session marker: %w", err)
	}
	if marker == nil {
		m.setState(StateIdle)
		return nil
	}

	if !marker.Complete() {
		m.logger.Warn("Discarding partial session marker",
			zap.Bool("is_active", marker.IsActive),
			zap.String("event_id", marker.EventID),
			zap.Time("start_time", marker.StartTime),
		)
		if err := m.markers.Delete(m.accountID); err != nil {
			m.logger.Error("Failed to delete partial session marker", zap.Error(err))
		}
		m.setState(StateIdle)
		return nil
	}

	m.mu.Lock()
	m.state = StateActive
	m.startTime = marker.StartTime
	m.eventID = marker.EventID
	m.selection = Selection{ProjectID: marker.ProjectID, ClientLabel: marker.ClientLabel}
	m.elapsed = int64(now.Sub(marker.StartTime).Seconds())
	m.adopted = false
	m.startTickLocked()
	m.mu.Unlock()

	m.logger.Info("Session recovered",
		zap.String("event_id", marker.EventID),
		zap.Time("start_time", marker.StartTime),
		zap.Int64("elapsed_seconds", int64(now.Sub(marker.StartTime).Seconds())),
	)
	return nil
}

// AdoptForeign rehydrates local state read-only from another window's
// session. The adopting machine never writes the marker or the event; the
// watcher clears it when the marker disappears.
func (m *Machine) AdoptForeign(marker *models.SessionMarker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateIdle {
		return
	}
	m.state = StateActive
	m.startTime = marker.StartTime
	m.eventID = marker.EventID
	m.selection = Selection{ProjectID: marker.ProjectID, ClientLabel: marker.ClientLabel}
	m.elapsed = int64(time.Since(marker.StartTime).Seconds())
	m.adopted = true
	m.startTickLocked()
	m.logger.Info("Adopted foreign session",
		zap.String("event_id", marker.EventID),
		zap.Time("start_time", marker.StartTime),
	)
}

// ClearForeign drops an adopted session after its marker disappeared.
func (m *Machine) ClearForeign() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.adopted {
		return
	}
	m.stopTickLocked()
	m.state = StateIdle
	m.startTime = time.Time{}
	m.eventID = ""
	m.elapsed = 0
	m.adopted = false
	m.logger.Info("Adopted session ended elsewhere, cleared local state")
}

// ForceReset abandons the session locally: timers cleared, marker deleted,
// state Idle. Nothing is recreated. Used when the backing record vanished or
// a finalize could not be committed.
func (m *Machine) ForceReset(reason string) {
	m.mu.Lock()
	eventID := m.eventID
	adopted := m.adopted
	m.mu.Unlock()

	if !adopted {
		if err := m.markers.Delete(m.accountID); err != nil {
			m.logger.Error("Failed to delete stale session marker", zap.Error(err))
		}
	}

	m.reset()
	m.logger.Error("Session force-reset",
		zap.String("reason", reason),
		zap.String("event_id", eventID),
	)
}

// ForceResetLocal abandons the session locally without touching the durable
// marker, for when the marker already names a different session.
func (m *Machine) ForceResetLocal(reason string) {
	m.mu.Lock()
	eventID := m.eventID
	m.mu.Unlock()

	m.reset()
	m.logger.Warn("Session reset locally",
		zap.String("reason", reason),
		zap.String("event_id", eventID),
	)
}

// Close tears down local timers without touching the durable session; the
// session survives window teardown.
func (m *Machine) Close() {
	m.mu.Lock()
	m.stopTickLocked()
	m.mu.Unlock()
	m.wg.Wait()
}

func (m *Machine) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Status{
		State:          m.state,
		IsActive:       m.state == StateActive,
		ElapsedSeconds: m.elapsed,
		EventID:        m.eventID,
		LastReconciled: m.lastReconciled,
	}
}

// IsActive reports whether a session is running (owned or adopted).
func (m *Machine) IsActive() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state == StateActive
}

// OwnsSession reports whether this machine started the active session, as
// opposed to having adopted a foreign one read-only.
func (m *Machine) OwnsSession() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state == StateActive && !m.adopted
}

func (m *Machine) EventID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.eventID
}

func (m *Machine) StartTime() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.startTime
}

func (m *Machine) ElapsedSeconds() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.elapsed
}

func (m *Machine) setState(state State) {
	m.mu.Lock()
	m.state = state
	m.mu.Unlock()
}

func (m *Machine) reset() {
	m.mu.Lock()
	m.stopTickLocked()
	m.state = StateIdle
	m.startTime = time.Time{}
	m.eventID = ""
	m.elapsed = 0
	m.adopted = false
	m.mu.Unlock()
}

// startTickLocked launches the 1s elapsed loop. Elapsed is always recomputed
// as now - startTime, never incremented, so a suspended or throttled process
// self-corrects on the next tick. Caller holds mu.
func (m *Machine) startTickLocked() {
	m.tickStop = make(chan struct{})
	stop := m.tickStop
	start := m.startTime

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.mu.Lock()
				m.elapsed = int64(time.Since(start).Seconds())
				m.mu.Unlock()
			case <-stop:
				return
			}
		}
	}()
}

// stopTickLocked stops the elapsed loop and the pending startup reconcile
// pass. Caller holds mu.
func (m *Machine) stopTickLocked() {
	if m.tickStop != nil {
		close(m.tickStop)
		m.tickStop = nil
	}
	if m.reconcileTimer != nil {
		m.reconcileTimer.Stop()
		m.reconcileTimer = nil
	}
}

// startupReconcilePass runs once shortly after start, clearing planned
// events that already overlap the young tracked interval.
func (m *Machine) startupReconcilePass() {
	m.mu.RLock()
	active := m.state == StateActive && !m.adopted
	start := m.startTime
	m.mu.RUnlock()
	if !active {
		return
	}

	mutated, err := m.reconciler.Reconcile(start, time.Now())
	if err != nil {
		m.logger.Error("Startup reconciliation pass failed", zap.Error(err))
		return
	}
	if len(mutated) > 0 {
		m.mu.Lock()
		m.lastReconciled = mutated
		m.mu.Unlock()
	}
}
