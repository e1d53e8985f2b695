package repository

import (
	"database/sql"
	"fmt"
	"time"

	"planwise/tracking-engine/internal/models"
)

type SessionMarkerRepository struct {
	db *sql.DB
}

func NewSessionMarkerRepository(db *sql.DB) *SessionMarkerRepository {
	return &SessionMarkerRepository{db: db}
}

// Get returns the account's marker, or nil when no session is recorded.
func (r *SessionMarkerRepository) Get(accountID string) (*models.SessionMarker, error) {
	query := `
		SELECT account_id, is_active, event_id, start_time, project_id, client_label, elapsed_seconds, updated_at
		FROM session_markers
		WHERE account_id = ?
	`

	var marker models.SessionMarker
	var eventID sql.NullString
	var startTime sql.NullTime

	err := r.db.QueryRow(query, accountID).Scan(
		&marker.AccountID,
		&marker.IsActive,
		&eventID,
		&startTime,
		&marker.ProjectID,
		&marker.ClientLabel,
		&marker.ElapsedSeconds,
		&marker.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session marker: %w", err)
	}

	marker.EventID = eventID.String
	if startTime.Valid {
		marker.StartTime = startTime.Time
	}
	return &marker, nil
}

// AnyActive returns the active marker for the account, or nil. The check is
// advisory: two windows racing through it is tolerated and surfaced as a
// conflict, not prevented.
func (r *SessionMarkerRepository) AnyActive(accountID string) (*models.SessionMarker, error) {
	marker, err := r.Get(accountID)
	if err != nil {
		return nil, err
	}
	if marker == nil || !marker.IsActive {
		return nil, nil
	}
	return marker, nil
}

// Put upserts the marker. The account id is the primary key, so at most one
// row per account can exist.
func (r *SessionMarkerRepository) Put(marker *models.SessionMarker) error {
	query := `
		INSERT INTO session_markers (account_id, is_active, event_id, start_time, project_id, client_label, elapsed_seconds, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(account_id) DO UPDATE SET
			is_active = excluded.is_active,
			event_id = excluded.event_id,
			start_time = excluded.start_time,
			project_id = excluded.project_id,
			client_label = excluded.client_label,
			elapsed_seconds = excluded.elapsed_seconds,
			updated_at = excluded.updated_at
	`

	_, err := r.db.Exec(
		query,
		marker.AccountID,
		marker.IsActive,
		marker.EventID,
		marker.StartTime,
		marker.ProjectID,
		marker.ClientLabel,
		marker.ElapsedSeconds,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to put session marker: %w", err)
	}
	return nil
}

// UpdateElapsed refreshes only the elapsed counter on an existing marker.
func (r *SessionMarkerRepository) UpdateElapsed(accountID string, elapsedSeconds int64) error {
	_, err := r.db.Exec(`
		UPDATE session_markers
		SET elapsed_seconds = ?, updated_at = ?
		WHERE account_id = ?
	`, elapsedSeconds, time.Now(), accountID)
	if err != nil {
		return fmt.Errorf("failed to update marker elapsed: %w", err)
	}
	return nil
}

func (r *SessionMarkerRepository) Delete(accountID string) error {
	if _, err := r.db.Exec("DELETE FROM session_markers WHERE account_id = ?", accountID); err != nil {
		return fmt.Errorf("failed to delete session marker: %w", err)
	}
	return nil
}
