package recurrence

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"planwise/tracking-engine/internal/models"
)

type fakeStore struct {
	mu         sync.Mutex
	events     []*models.Event
	failCreate bool
}

func (s *fakeStore) Create(event *models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreate {
		return errors.New("store rejected create")
	}
	s.events = append(s.events, event)
	return nil
}

func (s *fakeStore) CreateBatch(events []*models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreate {
		return errors.New("store rejected batch")
	}
	s.events = append(s.events, events...)
	return nil
}

func (s *fakeStore) QueryByGroup(groupID string) ([]*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Event
	for _, event := range s.events {
		if event.GroupID() == groupID {
			out = append(out, event)
		}
	}
	return out, nil
}

func (s *fakeStore) LastInstance(groupID string) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var last *models.Event
	for _, event := range s.events {
		if event.GroupID() != groupID {
			continue
		}
		if last == nil || event.StartTime.After(last.StartTime) {
			last = event
		}
	}
	return last, nil
}

func (s *fakeStore) OpenEndedGroups() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	for _, event := range s.events {
		if event.Recurrence == nil || !event.Recurrence.OpenEnded() {
			continue
		}
		groupID := event.Recurrence.GroupID
		if !seen[groupID] {
			seen[groupID] = true
			out = append(out, groupID)
		}
	}
	return out, nil
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func serviceSeed() *models.Event {
	start := time.Now().Truncate(time.Hour).Add(24 * time.Hour)
	return &models.Event{
		ID:        "seed",
		Title:     "Standup",
		StartTime: start,
		EndTime:   start.Add(30 * time.Minute),
		Kind:      models.KindPlanned,
	}
}

func TestCreateRecurring_PersistsWholeSeries(t *testing.T) {
	store := &fakeStore{}
	service := NewService(store, 365, 1000, zap.NewNop())

	count := 4
	first, err := service.CreateRecurring(serviceSeed(), models.Recurrence{
		Type:     models.RecurWeekly,
		Interval: 1,
		End:      models.EndCondition{Kind: models.EndCount, Count: &count},
	})
	require.NoError(t, err)
	service.Wait()

	// The first instance came back synchronously and kept the seed's id.
	assert.Equal(t, "seed", first.ID)
	require.NotNil(t, first.Recurrence)

	group, err := store.QueryByGroup(first.Recurrence.GroupID)
	require.NoError(t, err)
	assert.Len(t, group, 4)
	for _, instance := range group {
		assert.Equal(t, first.Recurrence.GroupID, instance.GroupID())
	}
}

func TestCreateRecurring_InvalidRule(t *testing.T) {
	store := &fakeStore{}
	service := NewService(store, 365, 1000, zap.NewNop())

	_, err := service.CreateRecurring(serviceSeed(), models.Recurrence{
		Type:     models.RecurWeekly,
		Interval: 0,
		End:      models.EndCondition{Kind: models.EndNever},
	})
	require.Error(t, err)
	assert.Equal(t, 0, store.count())
}

func TestCreateRecurring_FirstInstanceFailureAborts(t *testing.T) {
	store := &fakeStore{failCreate: true}
	service := NewService(store, 365, 1000, zap.NewNop())

	count := 3
	_, err := service.CreateRecurring(serviceSeed(), models.Recurrence{
		Type:     models.RecurDaily,
		Interval: 1,
		End:      models.EndCondition{Kind: models.EndCount, Count: &count},
	})
	require.Error(t, err)
	service.Wait()
	assert.Equal(t, 0, store.count())
}

func TestExtendThrough_AppendsOnlyNewInstances(t *testing.T) {
	store := &fakeStore{}
	service := NewService(store, 14, 1000, zap.NewNop())

	first, err := service.CreateRecurring(serviceSeed(), models.Recurrence{
		Type:     models.RecurWeekly,
		Interval: 1,
		End:      models.EndCondition{Kind: models.EndNever},
	})
	require.NoError(t, err)
	service.Wait()

	groupID := first.Recurrence.GroupID
	before := store.count()
	require.GreaterOrEqual(t, before, 2)

	require.NoError(t, service.ExtendThrough(groupID, time.Now().AddDate(0, 0, 28)))

	after, err := store.QueryByGroup(groupID)
	require.NoError(t, err)
	assert.Greater(t, len(after), before, "extension must add instances")

	// No duplicates: every start time appears once, every instance keeps the
	// group.
	starts := make(map[int64]bool)
	for _, instance := range after {
		key := instance.StartTime.Unix()
		assert.False(t, starts[key], "duplicate instance at %s", instance.StartTime)
		starts[key] = true
		assert.Equal(t, groupID, instance.GroupID())
	}
}

func TestExtendThrough_TerminatedGroupUntouched(t *testing.T) {
	store := &fakeStore{}
	service := NewService(store, 365, 1000, zap.NewNop())

	count := 3
	first, err := service.CreateRecurring(serviceSeed(), models.Recurrence{
		Type:     models.RecurWeekly,
		Interval: 1,
		End:      models.EndCondition{Kind: models.EndCount, Count: &count},
	})
	require.NoError(t, err)
	service.Wait()

	before := store.count()
	require.NoError(t, service.ExtendThrough(first.Recurrence.GroupID, time.Now().AddDate(1, 0, 0)))
	assert.Equal(t, before, store.count())
}

func TestExtendThrough_UnknownGroup(t *testing.T) {
	service := NewService(&fakeStore{}, 365, 1000, zap.NewNop())
	assert.NoError(t, service.ExtendThrough("no-such-group", time.Now()))
}

func TestEnsureHorizon_ExtendsAllOpenEndedGroups(t *testing.T) {
	store := &fakeStore{}
	service := NewService(store, 7, 1000, zap.NewNop())

	openEnded, err := service.CreateRecurring(serviceSeed(), models.Recurrence{
		Type:     models.RecurDaily,
		Interval: 1,
		End:      models.EndCondition{Kind: models.EndNever},
	})
	require.NoError(t, err)

	terminatedSeed := serviceSeed()
	terminatedSeed.ID = "seed-2"
	count := 2
	terminated, err := service.CreateRecurring(terminatedSeed, models.Recurrence{
		Type:     models.RecurWeekly,
		Interval: 1,
		End:      models.EndCondition{Kind: models.EndCount, Count: &count},
	})
	require.NoError(t, err)
	service.Wait()

	openBefore, _ := store.QueryByGroup(openEnded.Recurrence.GroupID)
	terminatedBefore, _ := store.QueryByGroup(terminated.Recurrence.GroupID)

	require.NoError(t, service.EnsureHorizon(time.Now().AddDate(0, 0, 21)))

	openAfter, _ := store.QueryByGroup(openEnded.Recurrence.GroupID)
	terminatedAfter, _ := store.QueryByGroup(terminated.Recurrence.GroupID)
	assert.Greater(t, len(openAfter), len(openBefore))
	assert.Len(t, terminatedAfter, len(terminatedBefore))
}
