// Package reconciler resolves overlap between a finalized tracked interval
// and pre-existing planned events so work time is never double-counted.
package reconciler

import (
	"time"

	"github.com/google/uuid"

	"planwise/tracking-engine/internal/models"
)

type ActionKind string

const (
	ActionKeep      ActionKind = "keep"
	ActionDelete    ActionKind = "delete"     // event fully inside the tracked interval
	ActionTrimEnd   ActionKind = "trim_end"   // right edge of the event overlaps
	ActionTrimStart ActionKind = "trim_start" // left edge of the event overlaps
	ActionSplit     ActionKind = "split"      // tracked interval strictly inside the event
)

// Action is the per-event outcome of planning. Trims carry the adjusted
// bound; splits carry the remainder events replacing the original.
type Action struct {
	Kind       ActionKind
	Event      *models.Event
	NewStart   time.Time
	NewEnd     time.Time
	Remainders []*models.Event
}

// Plan classifies each planned event against the tracked interval
// [start, end). Pure: nothing is mutated or persisted.
//
// Planning is idempotent: every produced trim or remainder lies outside
// the tracked interval, so replanning over the adjusted set keeps
// everything.
func Plan(start, end time.Time, planned []*models.Event) []Action {
	actions := make([]Action, 0, len(planned))
	for _, event := range planned {
		actions = append(actions, classify(start, end, event))
	}
	return actions
}

func classify(start, end time.Time, event *models.Event) Action {
	if !event.Intersects(start, end) {
		return Action{Kind: ActionKeep, Event: event}
	}

	startsBefore := event.StartTime.Before(start)
	endsAfter := event.EndTime.After(end)

	switch {
	case !startsBefore && !endsAfter:
		// event ⊆ tracked: fully superseded.
		return Action{Kind: ActionDelete, Event: event}

	case startsBefore && endsAfter:
		// tracked strictly inside the event: split into up to two
		// remainders preserving title, project and color.
		return Action{
			Kind:  ActionSplit,
			Event: event,
			Remainders: []*models.Event{
				remainder(event, event.StartTime, start),
				remainder(event, end, event.EndTime),
			},
		}

	case startsBefore:
		// right-edge overlap: the event ran into the tracked interval.
		return Action{Kind: ActionTrimEnd, Event: event, NewEnd: start}

	default:
		// left-edge overlap: the event starts inside the tracked interval.
		return Action{Kind: ActionTrimStart, Event: event, NewStart: end}
	}
}

func remainder(original *models.Event, start, end time.Time) *models.Event {
	return &models.Event{
		ID:        uuid.New().String(),
		Title:     original.Title,
		StartTime: start,
		EndTime:   end,
		ProjectID: original.ProjectID,
		Color:     original.Color,
		Kind:      models.KindPlanned,
	}
}
