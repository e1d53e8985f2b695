package session

import (
	"fmt"

	"planwise/tracking-engine/internal/models"
)

// ConflictError reports that another active session already exists for the
// account. It carries the foreign marker so the caller can surface who is
// tracking what, and must be resolved via ResolveConflict. It is never
// auto-retried.
type ConflictError struct {
	Foreign *models.SessionMarker
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("another session is already active (event %s, started %s)",
		e.Foreign.EventID, e.Foreign.StartTime.Format("15:04:05"))
}

// CreationFailure reports that the store rejected the initial tracked event.
// The session never left Idle.
type CreationFailure struct {
	Err error
}

func (e *CreationFailure) Error() string {
	return fmt.Sprintf("failed to create tracked event: %v", e.Err)
}

func (e *CreationFailure) Unwrap() error { return e.Err }
