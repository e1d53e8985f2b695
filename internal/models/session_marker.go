package models

import "time"

// SessionMarker is the single durable record meaning "someone, somewhere, is
// currently tracking" for an account. Every open window trusts the marker
// over its own in-memory counters; at most one exists per account.
type SessionMarker struct {
	AccountID      string    `json:"account_id"`
	IsActive       bool      `json:"is_active"`
	EventID        string    `json:"event_id"`
	StartTime      time.Time `json:"start_time"`
	ProjectID      *string   `json:"project_id,omitempty"`
	ClientLabel    *string   `json:"client_label,omitempty"`
	ElapsedSeconds int64     `json:"elapsed_seconds"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Complete reports whether the marker carries the full tuple needed to
// resume a session after a restart. A partial marker is an anomaly to be
// discarded, not repaired.
func (m *SessionMarker) Complete() bool {
	return m.IsActive &&
		m.EventID != "" &&
		!m.StartTime.IsZero() &&
		(m.ProjectID != nil || m.ClientLabel != nil)
}
