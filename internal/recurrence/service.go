package recurrence

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"planwise/tracking-engine/internal/models"
)

// EventStore is the slice of the event store the recurrence service needs.
type EventStore interface {
	Create(event *models.Event) error
	CreateBatch(events []*models.Event) error
	QueryByGroup(groupID string) ([]*models.Event, error)
	LastInstance(groupID string) (*models.Event, error)
	OpenEndedGroups() ([]string, error)
}

// Service persists expanded recurrences. The first instance is written
// synchronously so the caller gets an immediate result; the remainder is a
// best-effort background batch.
type Service struct {
	store        EventStore
	horizonDays  int
	maxInstances int
	logger       *zap.Logger
	wg           sync.WaitGroup
}

func NewService(store EventStore, horizonDays, maxInstances int, logger *zap.Logger) *Service {
	return &Service{
		store:        store,
		horizonDays:  horizonDays,
		maxInstances: maxInstances,
		logger:       logger,
	}
}

// CreateRecurring expands the seed and persists the series. The returned
// event is the synchronously created first instance. A background batch
// failure leaves the first instance valid; the batch itself is atomic and
// nothing is retried.
func (s *Service) CreateRecurring(seed *models.Event, rec models.Recurrence) (*models.Event, error) {
	horizon := time.Now().AddDate(0, 0, s.horizonDays)

	instances, err := Expand(seed, rec, horizon, s.maxInstances)
	if err != nil {
		return nil, fmt.Errorf("failed to expand recurrence: %w", err)
	}

	first := instances[0]
	if err := s.store.Create(first); err != nil {
		return nil, fmt.Errorf("failed to create first instance: %w", err)
	}

	remainder := instances[1:]
	if len(remainder) > 0 {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.createAll(remainder)
		}()
	}

	s.logger.Info("Recurring series created",
		zap.String("group_id", first.Recurrence.GroupID),
		zap.String("type", string(rec.Type)),
		zap.Int("instance_count", len(instances)),
	)
	return first, nil
}

// ExtendThrough generates further instances of an open-ended group past the
// last one already stored, up to and including `through`. Groups with a
// terminating end condition are left alone.
func (s *Service) ExtendThrough(groupID string, through time.Time) error {
	last, err := s.store.LastInstance(groupID)
	if err != nil {
		return fmt.Errorf("failed to load last instance: %w", err)
	}
	if last == nil || last.Recurrence == nil || !last.Recurrence.OpenEnded() {
		return nil
	}
	if !last.StartTime.Before(through) {
		return nil
	}

	// Re-expand from the last stored instance; it anchors the rule so the
	// first produced occurrence is the one already stored.
	instances, err := Expand(last, *last.Recurrence, through, s.maxInstances)
	if err != nil {
		return fmt.Errorf("failed to expand extension: %w", err)
	}

	fresh := instances[1:]
	if len(fresh) == 0 {
		return nil
	}
	s.createAll(fresh)

	s.logger.Info("Open-ended series extended",
		zap.String("group_id", groupID),
		zap.Time("through", through),
		zap.Int("new_instances", len(fresh)),
	)
	return nil
}

// EnsureHorizon extends every open-ended group whose generated instances do
// not yet reach `through`. Called when a visible range query approaches the
// generation horizon.
func (s *Service) EnsureHorizon(through time.Time) error {
	groups, err := s.store.OpenEndedGroups()
	if err != nil {
		return fmt.Errorf("failed to list open-ended groups: %w", err)
	}

	for _, groupID := range groups {
		if err := s.ExtendThrough(groupID, through); err != nil {
			s.logger.Error("Failed to extend open-ended group",
				zap.Error(err),
				zap.String("group_id", groupID),
			)
		}
	}
	return nil
}

// createAll inserts a generation batch in one transaction; a failure is
// logged, never retried.
func (s *Service) createAll(instances []*models.Event) {
	if err := s.store.CreateBatch(instances); err != nil {
		s.logger.Error("Failed to persist recurrence batch",
			zap.Error(err),
			zap.String("group_id", instances[0].Recurrence.GroupID),
			zap.Int("instance_count", len(instances)),
		)
	}
}

// Wait blocks until in-flight background generation finishes.
func (s *Service) Wait() {
	s.wg.Wait()
}
