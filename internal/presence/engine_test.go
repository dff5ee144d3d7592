package presence

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotel-security-backend/internal/database"
	"hotel-security-backend/internal/models"
)

type recordingBus struct {
	mu     sync.Mutex
	events []recordedEvent
}

type recordedEvent struct {
	Type string
	Data map[string]interface{}
}

func (b *recordingBus) Publish(eventType string, data map[string]interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, recordedEvent{Type: eventType, Data: data})
}

func (b *recordingBus) byType(eventType string) []recordedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []recordedEvent
	for _, ev := range b.events {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}

type recordingNotifier struct {
	mu       sync.Mutex
	breaches []string
	battery  []string
	offline  []string
}

func (n *recordingNotifier) BreachAlert(deviceID, roomID string, rssi int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.breaches = append(n.breaches, deviceID)
}

func (n *recordingNotifier) BatteryAlert(deviceID string, level int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.battery = append(n.battery, deviceID)
}

func (n *recordingNotifier) OfflineAlert(deviceID, lastSeen string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.offline = append(n.offline, deviceID)
}

func testEngine() (*Engine, *database.MemoryStore, *recordingBus, *recordingNotifier) {
	store := database.NewMemoryStore()
	bus := &recordingBus{}
	notifier := &recordingNotifier{}
	engine := NewEngine(store, testEvaluator(), bus, notifier)
	return engine, store, bus, notifier
}

func TestEngineHeartbeatPersistsAndPublishes(t *testing.T) {
	engine, store, bus, _ := testEngine()
	ctx := context.Background()

	status, err := engine.HandleHeartbeat(ctx, &models.Heartbeat{
		DeviceID:  "tab-1",
		RoomID:    "room-101",
		WifiBSSID: "aa:bb:cc:dd:ee:ff",
		RSSI:      -55,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusOK, status)

	device, err := store.GetDevice(ctx, "tab-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusOK, device.Status)
	assert.Equal(t, -55, device.RSSI)

	updates := bus.byType(models.EventDeviceUpdate)
	require.Len(t, updates, 1)
	assert.Equal(t, "tab-1", updates[0].Data["deviceId"])
	assert.Empty(t, bus.byType(models.EventAlert))
}

func TestEngineRepeatHeartbeatNoSecondAlert(t *testing.T) {
	engine, store, bus, notifier := testEngine()
	ctx := context.Background()

	require.NoError(t, store.UpsertRoom(ctx, &models.Room{
		RoomID:        "room-101",
		BSSID:         "aa:bb:cc:dd:ee:ff",
		RSSIThreshold: -80,
	}))

	hb := &models.Heartbeat{
		DeviceID:  "tab-1",
		RoomID:    "room-101",
		WifiBSSID: "11:22:33:44:55:66",
		RSSI:      -55,
	}

	status, err := engine.HandleHeartbeat(ctx, hb)
	require.NoError(t, err)
	assert.Equal(t, models.StatusBreach, status)

	status, err = engine.HandleHeartbeat(ctx, hb)
	require.NoError(t, err)
	assert.Equal(t, models.StatusBreach, status)

	// One breach alert, one breach notification, two device updates.
	assert.Len(t, bus.byType(models.EventAlert), 1)
	assert.Len(t, bus.byType(models.EventDeviceUpdate), 2)

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	assert.Equal(t, []string{"tab-1"}, notifier.breaches)
}

func TestEngineTamperAlertsWithoutNotification(t *testing.T) {
	engine, store, bus, notifier := testEngine()
	ctx := context.Background()

	status, err := engine.HandleTamper(ctx, &models.Tamper{
		DeviceID: "tab-1",
		RoomID:   "room-101",
		Threats:  []string{"adb_enabled"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompromised, status)

	device, err := store.GetDevice(ctx, "tab-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompromised, device.Status)

	assert.Len(t, bus.byType(models.EventAlert), 1)

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	assert.Empty(t, notifier.breaches)
	assert.Empty(t, notifier.battery)
}

func TestEngineBatteryNotifies(t *testing.T) {
	engine, _, _, notifier := testEngine()
	ctx := context.Background()

	status, err := engine.HandleBattery(ctx, &models.Battery{DeviceID: "tab-1", Level: 10})
	require.NoError(t, err)
	assert.Equal(t, models.StatusOK, status)

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	assert.Equal(t, []string{"tab-1"}, notifier.battery)
}

func TestEngineMissingDeviceID(t *testing.T) {
	engine, _, _, _ := testEngine()
	ctx := context.Background()

	_, err := engine.HandleHeartbeat(ctx, &models.Heartbeat{})
	assert.ErrorIs(t, err, ErrMissingDeviceID)
	_, err = engine.HandleBreachHint(ctx, &models.BreachHint{})
	assert.ErrorIs(t, err, ErrMissingDeviceID)
	_, err = engine.HandleTamper(ctx, &models.Tamper{})
	assert.ErrorIs(t, err, ErrMissingDeviceID)
	_, err = engine.HandleBattery(ctx, &models.Battery{})
	assert.ErrorIs(t, err, ErrMissingDeviceID)
}

func TestEngineSilenceRechecksUnderLock(t *testing.T) {
	engine, store, bus, _ := testEngine()
	ctx := context.Background()

	lastSeen := time.Now().UTC().Add(-30 * time.Second)
	require.NoError(t, store.UpsertDevice(ctx, &models.Device{
		DeviceID: "tab-1",
		RoomID:   "room-101",
		Status:   models.StatusOK,
		LastSeen: lastSeen,
	}))

	cutoff := time.Now().UTC().Add(-12 * time.Second)
	breached, err := engine.HandleSilence(ctx, "tab-1", cutoff)
	require.NoError(t, err)
	assert.True(t, breached)

	device, err := store.GetDevice(ctx, "tab-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusBreach, device.Status)
	assert.Equal(t, SyntheticRSSI, device.RSSI)
	assert.Len(t, bus.byType(models.EventAlert), 1)

	// A fresh heartbeat arriving before the sweep wins: the device is no
	// longer stale when re-read.
	require.NoError(t, store.UpsertDevice(ctx, &models.Device{
		DeviceID: "tab-2",
		Status:   models.StatusOK,
		LastSeen: time.Now().UTC(),
	}))
	breached, err = engine.HandleSilence(ctx, "tab-2", cutoff)
	require.NoError(t, err)
	assert.False(t, breached)
}
