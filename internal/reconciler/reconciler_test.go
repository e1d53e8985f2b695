package reconciler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planwise/tracking-engine/internal/models"
)

func at(hour, min int) time.Time {
	return time.Date(2025, time.June, 2, hour, min, 0, 0, time.UTC)
}

func plannedEvent(id string, start, end time.Time) *models.Event {
	color := "#4287f5"
	project := "project-1"
	return &models.Event{
		ID:        id,
		Title:     "Design review",
		StartTime: start,
		EndTime:   end,
		ProjectID: &project,
		Color:     &color,
		Kind:      models.KindPlanned,
	}
}

func TestPlan_TrackedInsideEvent_Splits(t *testing.T) {
	// Planned 09:00-11:00, tracked 09:30-10:30: two remainders, original
	// deleted.
	event := plannedEvent("e1", at(9, 0), at(11, 0))

	actions := Plan(at(9, 30), at(10, 30), []*models.Event{event})
	require.Len(t, actions, 1)

	action := actions[0]
	assert.Equal(t, ActionSplit, action.Kind)
	require.Len(t, action.Remainders, 2)

	first, second := action.Remainders[0], action.Remainders[1]
	assert.Equal(t, at(9, 0), first.StartTime)
	assert.Equal(t, at(9, 30), first.EndTime)
	assert.Equal(t, at(10, 30), second.StartTime)
	assert.Equal(t, at(11, 0), second.EndTime)

	for _, remainder := range action.Remainders {
		assert.Equal(t, event.Title, remainder.Title)
		assert.Equal(t, event.ProjectID, remainder.ProjectID)
		assert.Equal(t, event.Color, remainder.Color)
		assert.NotEqual(t, event.ID, remainder.ID)
	}
}

func TestPlan_RightEdgeOverlap_TrimsEnd(t *testing.T) {
	// Planned 09:00-10:00, tracked 09:30-11:00: planned trimmed to
	// 09:00-09:30.
	event := plannedEvent("e1", at(9, 0), at(10, 0))

	actions := Plan(at(9, 30), at(11, 0), []*models.Event{event})
	require.Len(t, actions, 1)
	assert.Equal(t, ActionTrimEnd, actions[0].Kind)
	assert.Equal(t, at(9, 30), actions[0].NewEnd)
}

func TestPlan_LeftEdgeOverlap_TrimsStart(t *testing.T) {
	event := plannedEvent("e1", at(10, 0), at(12, 0))

	actions := Plan(at(9, 0), at(11, 0), []*models.Event{event})
	require.Len(t, actions, 1)
	assert.Equal(t, ActionTrimStart, actions[0].Kind)
	assert.Equal(t, at(11, 0), actions[0].NewStart)
}

func TestPlan_ContainedEvent_Deleted(t *testing.T) {
	event := plannedEvent("e1", at(9, 30), at(10, 0))

	actions := Plan(at(9, 0), at(11, 0), []*models.Event{event})
	require.Len(t, actions, 1)
	assert.Equal(t, ActionDelete, actions[0].Kind)
}

func TestPlan_ExactMatch_Deleted(t *testing.T) {
	event := plannedEvent("e1", at(9, 0), at(11, 0))

	actions := Plan(at(9, 0), at(11, 0), []*models.Event{event})
	require.Len(t, actions, 1)
	assert.Equal(t, ActionDelete, actions[0].Kind)
}

func TestPlan_DisjointEvent_Kept(t *testing.T) {
	before := plannedEvent("e1", at(7, 0), at(8, 0))
	adjacent := plannedEvent("e2", at(8, 0), at(9, 0))
	after := plannedEvent("e3", at(11, 0), at(12, 0))

	actions := Plan(at(9, 0), at(11, 0), []*models.Event{before, adjacent, after})
	require.Len(t, actions, 3)
	for _, action := range actions {
		assert.Equal(t, ActionKeep, action.Kind, "event %s", action.Event.ID)
	}
}

func TestPlan_Idempotent(t *testing.T) {
	// Applying the plan and replanning over the adjusted set must be a
	// no-op: nothing produced by a plan still intersects the interval.
	start, end := at(9, 30), at(10, 30)
	initial := []*models.Event{
		plannedEvent("split-me", at(9, 0), at(11, 0)),
		plannedEvent("trim-my-end", at(9, 0), at(10, 0)),
		plannedEvent("trim-my-start", at(10, 0), at(11, 0)),
		plannedEvent("delete-me", at(9, 45), at(10, 15)),
	}

	var adjusted []*models.Event
	for _, action := range Plan(start, end, initial) {
		switch action.Kind {
		case ActionKeep:
			adjusted = append(adjusted, action.Event)
		case ActionDelete:
		case ActionTrimEnd:
			trimmed := *action.Event
			trimmed.EndTime = action.NewEnd
			adjusted = append(adjusted, &trimmed)
		case ActionTrimStart:
			trimmed := *action.Event
			trimmed.StartTime = action.NewStart
			adjusted = append(adjusted, &trimmed)
		case ActionSplit:
			adjusted = append(adjusted, action.Remainders...)
		}
	}

	for _, action := range Plan(start, end, adjusted) {
		assert.Equal(t, ActionKeep, action.Kind,
			"second pass must keep %s [%s, %s)", action.Event.ID,
			action.Event.StartTime.Format("15:04"), action.Event.EndTime.Format("15:04"))
	}
}
