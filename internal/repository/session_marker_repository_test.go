package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planwise/tracking-engine/internal/models"
)

func TestSessionMarkerRepository_Lifecycle(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSessionMarkerRepository(db.DB)

	// No session recorded yet.
	marker, err := repo.Get("acct-1")
	require.NoError(t, err)
	assert.Nil(t, marker)

	project := "project-1"
	start := time.Date(2025, time.June, 2, 9, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Put(&models.SessionMarker{
		AccountID: "acct-1",
		IsActive:  true,
		EventID:   "event-1",
		StartTime: start,
		ProjectID: &project,
	}))

	marker, err = repo.Get("acct-1")
	require.NoError(t, err)
	require.NotNil(t, marker)
	assert.True(t, marker.IsActive)
	assert.Equal(t, "event-1", marker.EventID)
	assert.Equal(t, start.Unix(), marker.StartTime.Unix())
	assert.True(t, marker.Complete())

	require.NoError(t, repo.UpdateElapsed("acct-1", 120))
	marker, err = repo.Get("acct-1")
	require.NoError(t, err)
	assert.Equal(t, int64(120), marker.ElapsedSeconds)

	require.NoError(t, repo.Delete("acct-1"))
	marker, err = repo.Get("acct-1")
	require.NoError(t, err)
	assert.Nil(t, marker)
}

func TestSessionMarkerRepository_PutUpserts(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSessionMarkerRepository(db.DB)

	label := "Acme"
	first := &models.SessionMarker{
		AccountID:   "acct-1",
		IsActive:    true,
		EventID:     "event-1",
		StartTime:   time.Now().UTC(),
		ClientLabel: &label,
	}
	require.NoError(t, repo.Put(first))

	// A second Put for the same account replaces the row, it never adds one.
	second := *first
	second.EventID = "event-2"
	require.NoError(t, repo.Put(&second))

	marker, err := repo.Get("acct-1")
	require.NoError(t, err)
	assert.Equal(t, "event-2", marker.EventID)
	require.NotNil(t, marker.ClientLabel)
	assert.Equal(t, "Acme", *marker.ClientLabel)
}

func TestSessionMarkerRepository_AnyActive(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSessionMarkerRepository(db.DB)

	active, err := repo.AnyActive("acct-1")
	require.NoError(t, err)
	assert.Nil(t, active)

	project := "project-1"
	require.NoError(t, repo.Put(&models.SessionMarker{
		AccountID: "acct-1",
		IsActive:  false,
		EventID:   "event-1",
		StartTime: time.Now().UTC(),
		ProjectID: &project,
	}))

	// An inactive marker does not count as a running session.
	active, err = repo.AnyActive("acct-1")
	require.NoError(t, err)
	assert.Nil(t, active)

	require.NoError(t, repo.Put(&models.SessionMarker{
		AccountID: "acct-1",
		IsActive:  true,
		EventID:   "event-1",
		StartTime: time.Now().UTC(),
		ProjectID: &project,
	}))

	active, err = repo.AnyActive("acct-1")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "event-1", active.EventID)
}
