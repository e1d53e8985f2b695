package scope

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planwise/tracking-engine/internal/models"
)

func weeklyGroup(groupID string, count int) []*models.Event {
	base := time.Date(2025, time.June, 2, 9, 0, 0, 0, time.UTC)
	events := make([]*models.Event, count)
	for i := range events {
		events[i] = &models.Event{
			ID:        string(rune('a' + i)),
			Title:     "Standup",
			StartTime: base.AddDate(0, 0, 7*i),
			EndTime:   base.AddDate(0, 0, 7*i).Add(time.Hour),
			Kind:      models.KindPlanned,
			Recurrence: &models.Recurrence{
				Type:     models.RecurWeekly,
				Interval: 1,
				End:      models.EndCondition{Kind: models.EndNever},
				GroupID:  groupID,
			},
		}
	}
	return events
}

func idsOf(events []*models.Event) []string {
	ids := make([]string, len(events))
	for i, event := range events {
		ids[i] = event.ID
	}
	return ids
}

func TestResolve_This(t *testing.T) {
	group := weeklyGroup("g1", 4)

	resolved := Resolve(group[1], group, ScopeThis)
	assert.Equal(t, []string{"b"}, idsOf(resolved))
}

func TestResolve_Future(t *testing.T) {
	// Deleting "future" from instance #2 of 4 covers #2-#4 and keeps #1.
	group := weeklyGroup("g1", 4)

	resolved := Resolve(group[1], group, ScopeFuture)
	assert.Equal(t, []string{"b", "c", "d"}, idsOf(resolved))
}

func TestResolve_All(t *testing.T) {
	group := weeklyGroup("g1", 4)

	resolved := Resolve(group[2], group, ScopeAll)
	assert.Equal(t, []string{"a", "b", "c", "d"}, idsOf(resolved))
}

func TestResolve_IgnoresOtherGroups(t *testing.T) {
	group := weeklyGroup("g1", 2)
	other := weeklyGroup("g2", 2)

	resolved := Resolve(group[0], append(group, other...), ScopeAll)
	assert.Equal(t, []string{"a", "b"}, idsOf(resolved))
}

func TestResolve_NoGroupDegradesToInstance(t *testing.T) {
	single := &models.Event{
		ID:        "solo",
		StartTime: time.Date(2025, time.June, 2, 9, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2025, time.June, 2, 10, 0, 0, 0, time.UTC),
		Kind:      models.KindPlanned,
	}

	for _, s := range []Scope{ScopeThis, ScopeFuture, ScopeAll} {
		resolved := Resolve(single, nil, s)
		require.Len(t, resolved, 1, "scope %s", s)
		assert.Equal(t, "solo", resolved[0].ID)
	}
}

func TestParseScope(t *testing.T) {
	for _, valid := range []string{"this", "future", "all"} {
		parsed, err := ParseScope(valid)
		require.NoError(t, err)
		assert.Equal(t, Scope(valid), parsed)
	}

	_, err := ParseScope("everything")
	assert.Error(t, err)
}
