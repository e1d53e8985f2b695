package sync

import "fmt"

// SyncFailure reports a failed periodic write-through. Tracking continues
// locally; the next tick is the only retry.
type SyncFailure struct {
	EventID string
	Err     error
}

func (e *SyncFailure) Error() string {
	return fmt.Sprintf("sync failed for event %s: %v", e.EventID, e.Err)
}

func (e *SyncFailure) Unwrap() error { return e.Err }

// BackingRecordMissing reports that the tracked event disappeared from the
// store while the session was running. Fatal for the session: it is reset,
// never recreated.
type BackingRecordMissing struct {
	EventID string
}

func (e *BackingRecordMissing) Error() string {
	return fmt.Sprintf("backing event %s no longer exists in the store", e.EventID)
}
