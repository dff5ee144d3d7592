package presence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotel-security-backend/internal/database"
	"hotel-security-backend/internal/models"
)

func TestWatchdogSweepBreachesSilentDevices(t *testing.T) {
	engine, store, bus, notifier := testEngine()
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, store.UpsertDevice(ctx, &models.Device{
		DeviceID: "tab-silent",
		RoomID:   "room-101",
		Status:   models.StatusOK,
		LastSeen: now.Add(-30 * time.Second),
	}))
	require.NoError(t, store.UpsertDevice(ctx, &models.Device{
		DeviceID: "tab-fresh",
		RoomID:   "room-102",
		Status:   models.StatusOK,
		LastSeen: now,
	}))
	require.NoError(t, store.UpsertDevice(ctx, &models.Device{
		DeviceID: "tab-already-breached",
		Status:   models.StatusBreach,
		LastSeen: now.Add(-30 * time.Second),
	}))

	w := NewWatchdog(store, engine, WatchdogConfig{Period: 5 * time.Second, Cutoff: 12 * time.Second})
	w.sweep(ctx)

	silent, err := store.GetDevice(ctx, "tab-silent")
	require.NoError(t, err)
	assert.Equal(t, models.StatusBreach, silent.Status)

	fresh, err := store.GetDevice(ctx, "tab-fresh")
	require.NoError(t, err)
	assert.Equal(t, models.StatusOK, fresh.Status)

	alerts := bus.byType(models.EventAlert)
	require.Len(t, alerts, 1, "already-breached device is not re-alerted")
	assert.Equal(t, "tab-silent", alerts[0].Data["deviceId"])

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	assert.Equal(t, []string{"tab-silent"}, notifier.breaches)
}

func TestWatchdogSweepIsIdempotent(t *testing.T) {
	engine, store, bus, _ := testEngine()
	ctx := context.Background()

	require.NoError(t, store.UpsertDevice(ctx, &models.Device{
		DeviceID: "tab-1",
		Status:   models.StatusOK,
		LastSeen: time.Now().UTC().Add(-30 * time.Second),
	}))

	w := NewWatchdog(store, engine, WatchdogConfig{Period: 5 * time.Second, Cutoff: 12 * time.Second})
	w.sweep(ctx)
	w.sweep(ctx)

	assert.Len(t, bus.byType(models.EventAlert), 1)
}

func TestOfflineScannerMarksOfflineAndNotifies(t *testing.T) {
	store := database.NewMemoryStore()
	notifier := &recordingNotifier{}
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, store.UpsertDevice(ctx, &models.Device{
		DeviceID: "tab-gone",
		RoomID:   "room-101",
		Status:   models.StatusOK,
		LastSeen: now.Add(-2 * time.Minute),
	}))
	require.NoError(t, store.UpsertDevice(ctx, &models.Device{
		DeviceID: "tab-here",
		Status:   models.StatusOK,
		LastSeen: now,
	}))

	s := NewOfflineScanner(store, notifier, OfflineScannerConfig{Period: 30 * time.Second, Cutoff: 40 * time.Second})
	s.sweep(ctx)

	gone, err := store.GetDevice(ctx, "tab-gone")
	require.NoError(t, err)
	assert.Equal(t, models.StatusOffline, gone.Status)

	here, err := store.GetDevice(ctx, "tab-here")
	require.NoError(t, err)
	assert.Equal(t, models.StatusOK, here.Status)

	alerts, err := store.RecentAlerts(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.AlertTypeOffline, alerts[0].Type)

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	assert.Equal(t, []string{"tab-gone"}, notifier.offline)
}
