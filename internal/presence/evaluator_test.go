package presence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotel-security-backend/internal/models"
)

func testEvaluator() *Evaluator {
	return NewEvaluator(DefaultEvaluatorConfig())
}

func okDevice(lastSeen time.Time) *models.Device {
	return &models.Device{
		DeviceID: "tab-1",
		RoomID:   "room-101",
		HotelID:  "default",
		Status:   models.StatusOK,
		RSSI:     -50,
		BSSID:    "aa:bb:cc:dd:ee:ff",
		LastSeen: lastSeen,
	}
}

func fencedRoom() *models.Room {
	return &models.Room{
		RoomID:        "room-101",
		BSSID:         "aa:bb:cc:dd:ee:ff",
		RSSIThreshold: -80,
	}
}

func TestEvaluateHeartbeatHealthy(t *testing.T) {
	now := time.Now().UTC()
	hb := &models.Heartbeat{
		DeviceID:  "tab-1",
		RoomID:    "room-101",
		WifiBSSID: "aa:bb:cc:dd:ee:ff",
		RSSI:      -55,
	}

	out, err := testEvaluator().EvaluateHeartbeat(okDevice(now.Add(-5*time.Second)), fencedRoom(), hb, now)
	require.NoError(t, err)

	assert.Equal(t, models.StatusOK, out.Device.Status)
	assert.False(t, out.Transition)
	assert.Empty(t, out.Alerts)
	assert.Equal(t, -55, out.Device.RSSI)
	assert.Equal(t, now, out.Device.LastSeen)
}

func TestEvaluateHeartbeatRepeatIsIdempotent(t *testing.T) {
	now := time.Now().UTC()
	eval := testEvaluator()
	hb := &models.Heartbeat{
		DeviceID:  "tab-1",
		RoomID:    "room-101",
		WifiBSSID: "aa:bb:cc:dd:ee:ff",
		RSSI:      -55,
	}

	out1, err := eval.EvaluateHeartbeat(okDevice(now.Add(-5*time.Second)), fencedRoom(), hb, now)
	require.NoError(t, err)
	out2, err := eval.EvaluateHeartbeat(out1.Device, fencedRoom(), hb, now.Add(time.Second))
	require.NoError(t, err)

	assert.Equal(t, models.StatusOK, out2.Device.Status)
	assert.Empty(t, out2.Alerts)
}

func TestEvaluateHeartbeatUnknownDeviceRegisters(t *testing.T) {
	now := time.Now().UTC()
	hb := &models.Heartbeat{
		DeviceID:  "tab-new",
		RoomID:    "room-101",
		WifiBSSID: "aa:bb:cc:dd:ee:ff",
		RSSI:      -55,
	}

	out, err := testEvaluator().EvaluateHeartbeat(nil, fencedRoom(), hb, now)
	require.NoError(t, err)

	assert.Equal(t, models.StatusOK, out.Device.Status)
	assert.Equal(t, "default", out.Device.HotelID)
	assert.Equal(t, now, out.Device.RegisteredAt)
	assert.Empty(t, out.Alerts)
}

func TestEvaluateHeartbeatBSSIDMismatch(t *testing.T) {
	now := time.Now().UTC()
	hb := &models.Heartbeat{
		DeviceID:  "tab-1",
		RoomID:    "room-101",
		WifiBSSID: "11:22:33:44:55:66",
		RSSI:      -40,
	}

	out, err := testEvaluator().EvaluateHeartbeat(okDevice(now.Add(-5*time.Second)), fencedRoom(), hb, now)
	require.NoError(t, err)

	assert.Equal(t, models.StatusBreach, out.Device.Status)
	assert.True(t, out.Transition)
	require.Len(t, out.Alerts, 1)
	assert.Equal(t, models.AlertTypeBreach, out.Alerts[0].Type)
	assert.Equal(t, ReasonBSSIDMismatch, out.Alerts[0].Payload["reason"])
}

func TestEvaluateHeartbeatBSSIDCaseInsensitive(t *testing.T) {
	now := time.Now().UTC()
	hb := &models.Heartbeat{
		DeviceID:  "tab-1",
		RoomID:    "room-101",
		WifiBSSID: "AA:BB:CC:DD:EE:FF",
		RSSI:      -40,
	}

	out, err := testEvaluator().EvaluateHeartbeat(okDevice(now.Add(-5*time.Second)), fencedRoom(), hb, now)
	require.NoError(t, err)

	assert.Equal(t, models.StatusOK, out.Device.Status)
	assert.Empty(t, out.Alerts)
}

func TestEvaluateHeartbeatWeakSignal(t *testing.T) {
	now := time.Now().UTC()
	hb := &models.Heartbeat{
		DeviceID:  "tab-1",
		RoomID:    "room-101",
		WifiBSSID: "aa:bb:cc:dd:ee:ff",
		RSSI:      -85,
	}

	out, err := testEvaluator().EvaluateHeartbeat(okDevice(now.Add(-5*time.Second)), fencedRoom(), hb, now)
	require.NoError(t, err)

	assert.Equal(t, models.StatusBreach, out.Device.Status)
	require.Len(t, out.Alerts, 1)
	assert.Equal(t, ReasonWeakSignal, out.Alerts[0].Payload["reason"])
}

func TestEvaluateHeartbeatNoRoomSkipsFence(t *testing.T) {
	now := time.Now().UTC()
	hb := &models.Heartbeat{
		DeviceID:  "tab-1",
		RoomID:    "room-unknown",
		WifiBSSID: "ff:ff:ff:ff:ff:ff",
		RSSI:      -120,
	}

	out, err := testEvaluator().EvaluateHeartbeat(okDevice(now.Add(-5*time.Second)), nil, hb, now)
	require.NoError(t, err)

	assert.Equal(t, models.StatusOK, out.Device.Status)
	assert.Empty(t, out.Alerts)
}

func TestEvaluateHeartbeatRetroactiveGapOverridesHealthyFields(t *testing.T) {
	now := time.Now().UTC()
	hb := &models.Heartbeat{
		DeviceID:  "tab-1",
		RoomID:    "room-101",
		WifiBSSID: "aa:bb:cc:dd:ee:ff",
		RSSI:      -40,
	}

	out, err := testEvaluator().EvaluateHeartbeat(okDevice(now.Add(-30*time.Second)), fencedRoom(), hb, now)
	require.NoError(t, err)

	assert.Equal(t, models.StatusBreach, out.Device.Status)
	require.Len(t, out.Alerts, 1)
	assert.Equal(t, models.SeverityCritical, out.Alerts[0].Severity)
	assert.Equal(t, ReasonSilentInterval, out.Alerts[0].Payload["reason"])
	assert.InDelta(t, 30.0, out.Alerts[0].Payload["offlineDuration"], 1.0)
}

func TestEvaluateHeartbeatBreachIsSticky(t *testing.T) {
	now := time.Now().UTC()
	device := okDevice(now.Add(-5 * time.Second))
	device.Status = models.StatusBreach

	hb := &models.Heartbeat{
		DeviceID:  "tab-1",
		RoomID:    "room-101",
		WifiBSSID: "aa:bb:cc:dd:ee:ff",
		RSSI:      -40,
	}

	out, err := testEvaluator().EvaluateHeartbeat(device, fencedRoom(), hb, now)
	require.NoError(t, err)

	assert.Equal(t, models.StatusBreach, out.Device.Status)
	assert.Empty(t, out.Alerts)
	assert.Equal(t, now, out.Device.LastSeen, "telemetry still updates while breached")
}

func TestEvaluateHeartbeatHealsOffline(t *testing.T) {
	now := time.Now().UTC()
	device := okDevice(now.Add(-5 * time.Second))
	device.Status = models.StatusOffline

	hb := &models.Heartbeat{
		DeviceID:  "tab-1",
		RoomID:    "room-101",
		WifiBSSID: "aa:bb:cc:dd:ee:ff",
		RSSI:      -40,
	}

	out, err := testEvaluator().EvaluateHeartbeat(device, fencedRoom(), hb, now)
	require.NoError(t, err)

	assert.Equal(t, models.StatusOK, out.Device.Status)
	assert.True(t, out.Transition)
	assert.Empty(t, out.Alerts, "recovery is silent")
}

func TestEvaluateHeartbeatMissingDeviceID(t *testing.T) {
	_, err := testEvaluator().EvaluateHeartbeat(nil, nil, &models.Heartbeat{}, time.Now())
	assert.ErrorIs(t, err, ErrMissingDeviceID)
}

func TestEvaluateBreachHintAlwaysAlerts(t *testing.T) {
	now := time.Now().UTC()
	eval := testEvaluator()
	hint := &models.BreachHint{DeviceID: "tab-1", RoomID: "room-101", RSSI: -90}

	out, err := eval.EvaluateBreachHint(okDevice(now.Add(-2*time.Second)), hint, now)
	require.NoError(t, err)
	assert.Equal(t, models.StatusBreach, out.Device.Status)
	assert.True(t, out.Transition)
	require.Len(t, out.Alerts, 1)

	// A second hint re-alerts but is no longer a transition.
	out2, err := eval.EvaluateBreachHint(out.Device, hint, now.Add(time.Second))
	require.NoError(t, err)
	assert.False(t, out2.Transition)
	require.Len(t, out2.Alerts, 1)
}

func TestEvaluateTamperForcesCompromised(t *testing.T) {
	now := time.Now().UTC()
	device := okDevice(now.Add(-2 * time.Second))
	device.Status = models.StatusBreach

	tamper := &models.Tamper{
		DeviceID: "tab-1",
		RoomID:   "room-101",
		Threats:  []string{"developer_mode"},
	}

	out, err := testEvaluator().EvaluateTamper(device, tamper, now)
	require.NoError(t, err)

	assert.Equal(t, models.StatusCompromised, out.Device.Status)
	require.Len(t, out.Alerts, 1)
	assert.Equal(t, models.AlertTypeTamper, out.Alerts[0].Type)
	assert.Equal(t, models.SeverityCritical, out.Alerts[0].Severity)
	assert.Contains(t, out.Alerts[0].Message, "developer_mode")
}

func TestEvaluateBatteryAlwaysAlerts(t *testing.T) {
	now := time.Now().UTC()

	out, err := testEvaluator().EvaluateBattery(okDevice(now.Add(-2*time.Second)), &models.Battery{DeviceID: "tab-1", Level: 15}, now)
	require.NoError(t, err)

	assert.Equal(t, models.StatusOK, out.Device.Status)
	require.NotNil(t, out.Device.Battery)
	assert.Equal(t, 15, *out.Device.Battery)
	require.Len(t, out.Alerts, 1)
	assert.Equal(t, models.AlertTypeBatteryLow, out.Alerts[0].Type)
}

func TestEvaluateBatteryGapBreaches(t *testing.T) {
	now := time.Now().UTC()

	out, err := testEvaluator().EvaluateBattery(okDevice(now.Add(-60*time.Second)), &models.Battery{DeviceID: "tab-1", Level: 15}, now)
	require.NoError(t, err)

	assert.Equal(t, models.StatusBreach, out.Device.Status)
	require.Len(t, out.Alerts, 2)
	assert.Equal(t, models.AlertTypeBreach, out.Alerts[0].Type)
	assert.Equal(t, models.AlertTypeBatteryLow, out.Alerts[1].Type)
}

func TestEvaluateBatteryDoesNotHealBreach(t *testing.T) {
	now := time.Now().UTC()
	device := okDevice(now.Add(-2 * time.Second))
	device.Status = models.StatusBreach

	out, err := testEvaluator().EvaluateBattery(device, &models.Battery{DeviceID: "tab-1", Level: 50}, now)
	require.NoError(t, err)

	assert.Equal(t, models.StatusBreach, out.Device.Status)
}

func TestEvaluateSilence(t *testing.T) {
	now := time.Now().UTC()
	device := okDevice(now.Add(-20 * time.Second))

	out := testEvaluator().EvaluateSilence(device, 20*time.Second, now)

	assert.Equal(t, models.StatusBreach, out.Device.Status)
	assert.True(t, out.Transition)
	assert.Equal(t, SyntheticRSSI, out.Device.RSSI)
	require.Len(t, out.Alerts, 1)

	alert := out.Alerts[0]
	assert.Equal(t, models.SeverityCritical, alert.Severity)
	assert.Equal(t, SyntheticRSSI, alert.RSSI)
	assert.Equal(t, "unknown", alert.BSSID)
	assert.Equal(t, "heartbeat_monitoring", alert.Payload["detectionMethod"])
}

func TestCheckFenceDefaultThreshold(t *testing.T) {
	eval := testEvaluator()
	room := &models.Room{RoomID: "room-101", BSSID: "aa:bb:cc:dd:ee:ff"}

	reason, breached := eval.checkFence(room, "aa:bb:cc:dd:ee:ff", -81)
	assert.True(t, breached)
	assert.Equal(t, ReasonWeakSignal, reason)

	_, breached = eval.checkFence(room, "aa:bb:cc:dd:ee:ff", -79)
	assert.False(t, breached)
}
