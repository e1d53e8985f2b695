package models

import (
	"time"
)

// EventKind distinguishes planned calendar events from tracked work.
type EventKind string

const (
	KindPlanned   EventKind = "planned"
	KindTracked   EventKind = "tracked"
	KindCompleted EventKind = "completed"
)

type Event struct {
	ID              string      `json:"id"`
	Title           string      `json:"title"`
	StartTime       time.Time   `json:"start_time"`
	EndTime         time.Time   `json:"end_time"`
	ProjectID       *string     `json:"project_id,omitempty"`
	Color           *string     `json:"color,omitempty"`
	Completed       bool        `json:"completed"`
	DurationSeconds *int64      `json:"duration_seconds,omitempty"`
	Kind            EventKind   `json:"kind"`
	Recurrence      *Recurrence `json:"recurrence,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// Finalize closes the event at end. The duration is derived from the
// interval so the two can never disagree once a session is finished.
func (e *Event) Finalize(end time.Time) {
	e.EndTime = end
	duration := int64(end.Sub(e.StartTime).Seconds())
	e.DurationSeconds = &duration
	e.Kind = KindCompleted
	e.Completed = true
}

// GroupID returns the recurrence correlation key, or "" for one-off events.
func (e *Event) GroupID() string {
	if e.Recurrence == nil {
		return ""
	}
	return e.Recurrence.GroupID
}

// Intersects reports whether the event overlaps the half-open
// interval [start, end).
func (e *Event) Intersects(start, end time.Time) bool {
	return e.StartTime.Before(end) && start.Before(e.EndTime)
}

type CreateEventRequest struct {
	Title      string      `json:"title"`
	StartTime  time.Time   `json:"start_time"`
	EndTime    time.Time   `json:"end_time"`
	ProjectID  *string     `json:"project_id,omitempty"`
	Color      *string     `json:"color,omitempty"`
	Recurrence *Recurrence `json:"recurrence,omitempty"`
}

type UpdateEventRequest struct {
	Title           *string    `json:"title,omitempty"`
	Kind            *EventKind `json:"kind,omitempty"`
	StartTime       *time.Time `json:"start_time,omitempty"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	ProjectID       *string    `json:"project_id,omitempty"`
	Color           *string    `json:"color,omitempty"`
	Completed       *bool      `json:"completed,omitempty"`
	DurationSeconds *int64     `json:"duration_seconds,omitempty"`
}
