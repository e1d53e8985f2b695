// Package horizon keeps open-ended recurrences generated ahead of time.
package horizon

import (
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"planwise/tracking-engine/internal/models"
)

// GroupStore lists the open-ended groups and their frontier instances.
type GroupStore interface {
	OpenEndedGroups() ([]string, error)
	LastInstance(groupID string) (*models.Event, error)
}

// Extender appends instances to a group up to a point in time.
type Extender interface {
	ExtendThrough(groupID string, through time.Time) error
}

// Maintainer runs a scheduled pass extending any open-ended series whose
// last generated instance has come within half the horizon of now.
type Maintainer struct {
	store       GroupStore
	extender    Extender
	horizonDays int
	schedule    string
	logger      *zap.Logger
	cron        *cron.Cron
}

func NewMaintainer(store GroupStore, extender Extender, horizonDays int, schedule string, logger *zap.Logger) *Maintainer {
	return &Maintainer{
		store:       store,
		extender:    extender,
		horizonDays: horizonDays,
		schedule:    schedule,
		logger:      logger,
		cron:        cron.New(),
	}
}

func (m *Maintainer) Start() error {
	if _, err := m.cron.AddFunc(m.schedule, m.run); err != nil {
		return err
	}
	m.cron.Start()
	m.logger.Info("Horizon maintenance scheduled",
		zap.String("schedule", m.schedule),
		zap.Int("horizon_days", m.horizonDays),
	)
	return nil
}

func (m *Maintainer) Stop() {
	ctx := m.cron.Stop()
	<-ctx.Done()
	m.logger.Info("Horizon maintenance stopped")
}

func (m *Maintainer) run() {
	groups, err := m.store.OpenEndedGroups()
	if err != nil {
		m.logger.Error("Failed to list open-ended groups", zap.Error(err))
		return
	}

	now := time.Now()
	threshold := now.AddDate(0, 0, m.horizonDays/2)

	for _, groupID := range groups {
		last, err := m.store.LastInstance(groupID)
		if err != nil {
			m.logger.Error("Failed to load group frontier", zap.Error(err), zap.String("group_id", groupID))
			continue
		}
		if last == nil || last.StartTime.After(threshold) {
			continue
		}
		if err := m.extender.ExtendThrough(groupID, now.AddDate(0, 0, m.horizonDays)); err != nil {
			m.logger.Error("Failed to extend group", zap.Error(err), zap.String("group_id", groupID))
		}
	}
}
