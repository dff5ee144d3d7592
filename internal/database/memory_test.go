package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotel-security-backend/internal/models"
)

func TestMemoryStoreDeviceLifecycle(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.GetDevice(ctx, "tab-1")
	assert.ErrorIs(t, err, ErrNotFound)

	device := &models.Device{DeviceID: "tab-1", HotelID: "h1", Status: models.StatusOK}
	require.NoError(t, store.UpsertDevice(ctx, device))

	// Mutating the caller's copy must not leak into the store.
	device.Status = models.StatusBreach
	stored, err := store.GetDevice(ctx, "tab-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusOK, stored.Status)

	devices, err := store.ListDevices(ctx, "h1")
	require.NoError(t, err)
	assert.Len(t, devices, 1)

	devices, err = store.ListDevices(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, devices)

	require.NoError(t, store.DeleteDevice(ctx, "tab-1"))
	assert.ErrorIs(t, store.DeleteDevice(ctx, "tab-1"), ErrNotFound)
}

func TestMemoryStoreListStaleDevices(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.UpsertDevice(ctx, &models.Device{
		DeviceID: "stale-ok", Status: models.StatusOK, LastSeen: now.Add(-time.Minute),
	}))
	require.NoError(t, store.UpsertDevice(ctx, &models.Device{
		DeviceID: "fresh-ok", Status: models.StatusOK, LastSeen: now,
	}))
	require.NoError(t, store.UpsertDevice(ctx, &models.Device{
		DeviceID: "stale-breach", Status: models.StatusBreach, LastSeen: now.Add(-time.Minute),
	}))
	require.NoError(t, store.UpsertDevice(ctx, &models.Device{
		DeviceID: "never-seen", Status: models.StatusOK,
	}))

	stale, err := store.ListStaleDevices(ctx, models.StatusOK, now.Add(-10*time.Second))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "stale-ok", stale[0].DeviceID)
}

func TestMemoryStoreAlerts(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	for i, id := range []string{"a-1", "a-2", "a-3"} {
		require.NoError(t, store.SaveAlert(ctx, &models.Alert{
			ID:       id,
			Type:     models.AlertTypeBreach,
			DeviceID: "tab-1",
			HotelID:  "h1",
			TS:       now.Add(time.Duration(i) * time.Second),
		}))
	}

	alerts, err := store.RecentAlerts(ctx, "h1", 2)
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, "a-3", alerts[0].ID, "newest first")

	require.NoError(t, store.AcknowledgeAlert(ctx, "a-1", "admin", "handled"))
	assert.ErrorIs(t, store.AcknowledgeAlert(ctx, "a-1", "admin", ""), ErrAlreadyAcknowledged)
	assert.ErrorIs(t, store.AcknowledgeAlert(ctx, "missing", "admin", ""), ErrNotFound)

	require.NoError(t, store.DeleteDeviceAlerts(ctx, "tab-1"))
	alerts, err = store.RecentAlerts(ctx, "h1", 10)
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestMemoryStoreCounts(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.UpsertDevice(ctx, &models.Device{DeviceID: "tab-1", Status: models.StatusOK}))
	require.NoError(t, store.UpsertDevice(ctx, &models.Device{DeviceID: "tab-2", Status: models.StatusBreach}))
	require.NoError(t, store.SaveAlert(ctx, &models.Alert{ID: "a-1", TS: time.Now()}))

	counts, err := store.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counts.Devices)
	assert.Equal(t, 1, counts.Alerts)
	assert.Equal(t, 1, counts.BreachedDevices)
}
