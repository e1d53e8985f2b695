// Package sync periodically writes the running session through to the
// durable store and keeps multiple windows consistent via the session
// marker.
package sync

import (
	gosync "sync"
	"time"

	"go.uber.org/zap"

	"planwise/tracking-engine/internal/models"
)

// Session is the slice of the state machine the syncer drives.
type Session interface {
	IsActive() bool
	OwnsSession() bool
	EventID() string
	StartTime() time.Time
	ForceReset(reason string)
	ForceResetLocal(reason string)
	AdoptForeign(marker *models.SessionMarker)
	ClearForeign()
}

// EventStore is the slice of the event store the syncer patches.
type EventStore interface {
	Exists(id string) (bool, error)
	Update(id string, update *models.UpdateEventRequest) (*models.Event, error)
}

// MarkerStore reads and refreshes the session marker.
type MarkerStore interface {
	Get(accountID string) (*models.SessionMarker, error)
	UpdateElapsed(accountID string, elapsedSeconds int64) error
}

// Syncer runs two loops: the write-through loop patching the backing event
// while a session is active, and the marker watcher that rehydrates or
// clears local state when another window starts or stops a session.
type Syncer struct {
	accountID     string
	session       Session
	events        EventStore
	markers       MarkerStore
	syncInterval  time.Duration
	watchInterval time.Duration
	logger        *zap.Logger

	stopChan chan struct{}
	wg       gosync.WaitGroup
}

func NewSyncer(
	accountID string,
	session Session,
	events EventStore,
	markers MarkerStore,
	syncInterval time.Duration,
	watchInterval time.Duration,
	logger *zap.Logger,
) *Syncer {
	return &Syncer{
		accountID:     accountID,
		session:       session,
		events:        events,
		markers:       markers,
		syncInterval:  syncInterval,
		watchInterval: watchInterval,
		logger:        logger,
		stopChan:      make(chan struct{}),
	}
}

func (s *Syncer) Start() {
	s.wg.Add(2)
	go s.syncLoop()
	go s.watchLoop()
	s.logger.Info("Durable sync started",
		zap.Duration("sync_interval", s.syncInterval),
		zap.Duration("watch_interval", s.watchInterval),
	)
}

func (s *Syncer) Stop() {
	select {
	case <-s.stopChan:
		return
	default:
		close(s.stopChan)
	}
	s.wg.Wait()
	s.logger.Info("Durable sync stopped")
}

func (s *Syncer) syncLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.syncOnce(time.Now())
		case <-s.stopChan:
			return
		}
	}
}

// syncOnce writes the current elapsed state through to the store. The
// existence check comes first: an event deleted out-of-band is fatal for the
// session and is never recreated.
func (s *Syncer) syncOnce(now time.Time) {
	if !s.session.IsActive() || !s.session.OwnsSession() {
		return
	}

	eventID := s.session.EventID()
	startTime := s.session.StartTime()

	exists, err := s.events.Exists(eventID)
	if err != nil {
		s.logger.Warn("Sync tick failed, will retry next tick",
			zap.Error(&SyncFailure{EventID: eventID, Err: err}),
		)
		return
	}
	if !exists {
		missing := &BackingRecordMissing{EventID: eventID}
		s.logger.Error("Backing event missing, resetting session", zap.Error(missing))
		s.session.ForceReset(missing.Error())
		return
	}

	elapsed := int64(now.Sub(startTime).Seconds())
	if _, err := s.events.Update(eventID, &models.UpdateEventRequest{EndTime: &now}); err != nil {
		s.logger.Warn("Sync tick failed, will retry next tick",
			zap.Error(&SyncFailure{EventID: eventID, Err: err}),
		)
		return
	}
	if err := s.markers.UpdateElapsed(s.accountID, elapsed); err != nil {
		s.logger.Warn("Failed to refresh marker elapsed",
			zap.Error(&SyncFailure{EventID: eventID, Err: err}),
		)
		return
	}

	s.logger.Debug("Session synced",
		zap.String("event_id", eventID),
		zap.Int64("elapsed_seconds", elapsed),
	)
}

func (s *Syncer) watchLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.watchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.watchOnce()
		case <-s.stopChan:
			return
		}
	}
}

// watchOnce reconciles local state against the marker, the single source of
// truth across windows.
func (s *Syncer) watchOnce() {
	marker, err := s.markers.Get(s.accountID)
	if err != nil {
		s.logger.Warn("Failed to read session marker", zap.Error(err))
		return
	}

	active := s.session.IsActive()
	owned := s.session.OwnsSession()

	switch {
	case !active && marker != nil && marker.IsActive:
		// Another window started tracking: rehydrate read-only.
		s.session.AdoptForeign(marker)

	case active && !owned && (marker == nil || !marker.IsActive):
		// The adopted session was stopped elsewhere.
		s.session.ClearForeign()

	case active && owned && marker != nil && marker.IsActive && marker.EventID != s.session.EventID():
		// Our session was replaced out from under us (conflict resolution in
		// another window). Local timers are stale; drop them without
		// touching the new session's marker.
		s.logger.Warn("Session marker now names a different event, clearing local state",
			zap.String("local_event_id", s.session.EventID()),
			zap.String("marker_event_id", marker.EventID),
		)
		s.session.ForceResetLocal("session replaced by another window")
	}
}
