package scope

import (
	"fmt"

	"go.uber.org/zap"

	"planwise/tracking-engine/internal/models"
)

// EventStore is the slice of the event store series operations need.
type EventStore interface {
	GetByID(id string) (*models.Event, error)
	QueryByGroup(groupID string) ([]*models.Event, error)
	UpdateMany(ids []string, update *models.UpdateEventRequest) error
	DeleteByIDs(ids []string) error
}

// Service loads an instance's siblings, resolves the scope and hands the
// resolved set unmodified to a bulk store operation.
type Service struct {
	store  EventStore
	logger *zap.Logger
}

func NewService(store EventStore, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger}
}

func (s *Service) resolve(instanceID string, scope Scope) ([]*models.Event, error) {
	instance, err := s.store.GetByID(instanceID)
	if err != nil {
		return nil, err
	}

	var siblings []*models.Event
	if instance.GroupID() != "" {
		siblings, err = s.store.QueryByGroup(instance.GroupID())
		if err != nil {
			return nil, fmt.Errorf("failed to load group members: %w", err)
		}
	}

	return Resolve(instance, siblings, scope), nil
}

// EditSeries applies one patch to every instance the scope covers and
// returns the touched ids.
func (s *Service) EditSeries(instanceID string, scope Scope, patch *models.UpdateEventRequest) ([]string, error) {
	resolved, err := s.resolve(instanceID, scope)
	if err != nil {
		return nil, err
	}

	ids := eventIDs(resolved)
	if err := s.store.UpdateMany(ids, patch); err != nil {
		return nil, fmt.Errorf("failed to update series: %w", err)
	}

	s.logger.Info("Series edited",
		zap.String("instance_id", instanceID),
		zap.String("scope", string(scope)),
		zap.Int("count", len(ids)),
	)
	return ids, nil
}

// DeleteSeries removes every instance the scope covers and returns the
// deleted ids.
func (s *Service) DeleteSeries(instanceID string, scope Scope) ([]string, error) {
	resolved, err := s.resolve(instanceID, scope)
	if err != nil {
		return nil, err
	}

	ids := eventIDs(resolved)
	if err := s.store.DeleteByIDs(ids); err != nil {
		return nil, fmt.Errorf("failed to delete series: %w", err)
	}

	s.logger.Info("Series deleted",
		zap.String("instance_id", instanceID),
		zap.String("scope", string(scope)),
		zap.Int("count", len(ids)),
	)
	return ids, nil
}

func eventIDs(events []*models.Event) []string {
	ids := make([]string, len(events))
	for i, event := range events {
		ids[i] = event.ID
	}
	return ids
}
