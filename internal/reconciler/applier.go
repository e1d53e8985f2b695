package reconciler

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"planwise/tracking-engine/internal/models"
)

// ReconciliationFailure reports that the plan for one event could not be
// committed. The event is left untouched; the rest of the plan still runs.
type ReconciliationFailure struct {
	EventID string
	Err     error
}

func (e *ReconciliationFailure) Error() string {
	return fmt.Sprintf("reconciliation failed for event %s: %v", e.EventID, e.Err)
}

func (e *ReconciliationFailure) Unwrap() error { return e.Err }

// EventStore is the slice of the event store the applier mutates through.
type EventStore interface {
	QueryPlannedOverlapping(from, to time.Time) ([]*models.Event, error)
	Update(id string, update *models.UpdateEventRequest) (*models.Event, error)
	Delete(id string) error
	ReplaceWithRemainders(id string, remainders []*models.Event) error
}

// Applier plans and commits reconciliation against the store. Each event's
// plan commits atomically; a failed event is logged and skipped.
type Applier struct {
	store  EventStore
	logger *zap.Logger
}

func NewApplier(store EventStore, logger *zap.Logger) *Applier {
	return &Applier{store: store, logger: logger}
}

// Reconcile runs the full pass for a tracked interval and returns the ids of
// every event it mutated, for undo/toast surfacing.
func (a *Applier) Reconcile(start, end time.Time) ([]string, error) {
	if !start.Before(end) {
		return nil, nil
	}

	planned, err := a.store.QueryPlannedOverlapping(start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load overlapping events: %w", err)
	}

	var mutated []string
	for _, action := range Plan(start, end, planned) {
		if action.Kind == ActionKeep {
			continue
		}
		if err := a.apply(action); err != nil {
			a.logger.Error("Reconciliation action failed",
				zap.Error(&ReconciliationFailure{EventID: action.Event.ID, Err: err}),
				zap.String("action", string(action.Kind)),
			)
			continue
		}
		mutated = append(mutated, action.Event.ID)
	}

	if len(mutated) > 0 {
		a.logger.Info("Reconciliation applied",
			zap.Time("interval_start", start),
			zap.Time("interval_end", end),
			zap.Int("mutated_count", len(mutated)),
		)
	}
	return mutated, nil
}

func (a *Applier) apply(action Action) error {
	switch action.Kind {
	case ActionDelete:
		return a.store.Delete(action.Event.ID)
	case ActionTrimEnd:
		newEnd := action.NewEnd
		_, err := a.store.Update(action.Event.ID, &models.UpdateEventRequest{EndTime: &newEnd})
		return err
	case ActionTrimStart:
		newStart := action.NewStart
		_, err := a.store.Update(action.Event.ID, &models.UpdateEventRequest{StartTime: &newStart})
		return err
	case ActionSplit:
		return a.store.ReplaceWithRemainders(action.Event.ID, action.Remainders)
	default:
		return fmt.Errorf("unknown action kind %q", action.Kind)
	}
}
