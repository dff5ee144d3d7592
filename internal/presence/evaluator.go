package presence

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"hotel-security-backend/internal/models"
)

// ErrMissingDeviceID rejects reports that cannot be attributed to a device.
var ErrMissingDeviceID = errors.New("missing device id")

// Transition reasons recorded in alert payloads.
const (
	ReasonSilentInterval = "silent interval exceeded"
	ReasonBSSIDMismatch  = "network identity mismatch"
	ReasonWeakSignal     = "signal below threshold"
	ReasonHeartbeatLost  = "heartbeat silence"
)

// SyntheticRSSI is the worst-case signal value recorded when the watchdog
// breaches a silent device; no real report carried a reading.
const SyntheticRSSI = -127

// Outcome is the result of evaluating one report (or a silence signal)
// against a device's prior state.
type Outcome struct {
	// Device is the next state to persist.
	Device *models.Device
	// Transition is true when the status differs from the stored one.
	Transition bool
	// Alerts to append to the alert log. Transition alerts and report-kind
	// alerts (tamper, battery_low) both land here.
	Alerts []*models.Alert
}

// EvaluatorConfig holds the thresholds for the decision function.
type EvaluatorConfig struct {
	// RetroactiveGap flags a gap covered by a late-arriving report. It is
	// deliberately larger than the watchdog cutoff: the watchdog fires near
	// the boundary, this path catches breaches that happened during an
	// already-ended connectivity gap.
	RetroactiveGap time.Duration
	// DefaultRSSIThreshold applies when a room has no threshold configured.
	DefaultRSSIThreshold int
}

// DefaultEvaluatorConfig returns default configuration
func DefaultEvaluatorConfig() EvaluatorConfig {
	return EvaluatorConfig{
		RetroactiveGap:       15 * time.Second,
		DefaultRSSIThreshold: -80,
	}
}

// Evaluator is the pure decision function mapping (prior state, report) to
// (next status, alerts). It performs no I/O; the engine owns persistence and
// fan-out.
type Evaluator struct {
	cfg EvaluatorConfig
}

func NewEvaluator(cfg EvaluatorConfig) *Evaluator {
	if cfg.RetroactiveGap <= 0 {
		cfg.RetroactiveGap = DefaultEvaluatorConfig().RetroactiveGap
	}
	if cfg.DefaultRSSIThreshold == 0 {
		cfg.DefaultRSSIThreshold = DefaultEvaluatorConfig().DefaultRSSIThreshold
	}
	return &Evaluator{cfg: cfg}
}

// EvaluateHeartbeat applies the full precedence order: retroactive silence
// check first, then the room fence, with breach/compromised sticky against
// routine heartbeats.
func (e *Evaluator) EvaluateHeartbeat(prior *models.Device, room *models.Room, hb *models.Heartbeat, now time.Time) (Outcome, error) {
	if hb.DeviceID == "" {
		return Outcome{}, ErrMissingDeviceID
	}

	ts := reportTime(hb.TS, now)
	next := nextDevice(prior, hb.DeviceID, ts)
	next.RoomID = hb.RoomID
	next.RSSI = hb.RSSI
	next.BSSID = hb.WifiBSSID
	if hb.IP != "" {
		next.IP = hb.IP
	}
	if hb.Battery != nil {
		b := *hb.Battery
		next.Battery = &b
	}
	next.LastSeen = ts

	existing := priorStatus(prior)
	status := existing
	var alerts []*models.Alert

	if gap, ok := e.silentGap(prior, ts); ok {
		// The device went quiet and came back: the report itself may look
		// healthy, but the gap it covers is a breach.
		status = models.StatusBreach
		alerts = append(alerts, &models.Alert{
			ID:       uuid.NewString(),
			Type:     models.AlertTypeBreach,
			Severity: models.SeverityCritical,
			DeviceID: hb.DeviceID,
			RoomID:   hb.RoomID,
			HotelID:  next.HotelID,
			Message:  fmt.Sprintf("device was silent for %.0f seconds before reporting again", gap.Seconds()),
			Payload: map[string]interface{}{
				"reason":          ReasonSilentInterval,
				"offlineDuration": gap.Seconds(),
				"rssi":            hb.RSSI,
				"bssid":           hb.WifiBSSID,
			},
			RSSI:  hb.RSSI,
			BSSID: hb.WifiBSSID,
			TS:    ts,
		})
	} else if existing == models.StatusOK || existing == models.StatusOffline {
		status = models.StatusOK // heals a prior offline
		if room != nil {
			if reason, breached := e.checkFence(room, hb.WifiBSSID, hb.RSSI); breached {
				status = models.StatusBreach
				alerts = append(alerts, &models.Alert{
					ID:       uuid.NewString(),
					Type:     models.AlertTypeBreach,
					Severity: models.SeverityHigh,
					DeviceID: hb.DeviceID,
					RoomID:   hb.RoomID,
					HotelID:  next.HotelID,
					Message:  fmt.Sprintf("security boundary breach detected via heartbeat (BSSID: %s, RSSI: %d)", hb.WifiBSSID, hb.RSSI),
					Payload: map[string]interface{}{
						"reason": reason,
						"rssi":   hb.RSSI,
						"bssid":  hb.WifiBSSID,
					},
					RSSI:  hb.RSSI,
					BSSID: hb.WifiBSSID,
					TS:    ts,
				})
			}
		}
	}
	// breach/compromised are sticky: a routine heartbeat never auto-heals
	// them; only re-registration does.

	next.Status = status
	return Outcome{
		Device:     next,
		Transition: status != existing,
		Alerts:     alerts,
	}, nil
}

// EvaluateBreachHint records an explicit client-observed breach. It bypasses
// fence evaluation and always produces an alert.
func (e *Evaluator) EvaluateBreachHint(prior *models.Device, hint *models.BreachHint, now time.Time) (Outcome, error) {
	if hint.DeviceID == "" {
		return Outcome{}, ErrMissingDeviceID
	}

	ts := reportTime(hint.TS, now)
	next := nextDevice(prior, hint.DeviceID, ts)
	next.RoomID = hint.RoomID
	next.RSSI = hint.RSSI
	next.LastSeen = ts
	next.Status = models.StatusBreach

	alert := &models.Alert{
		ID:       uuid.NewString(),
		Type:     models.AlertTypeBreach,
		Severity: models.SeverityHigh,
		DeviceID: hint.DeviceID,
		RoomID:   hint.RoomID,
		HotelID:  next.HotelID,
		Message:  fmt.Sprintf("breach reported by device (RSSI: %d)", hint.RSSI),
		Payload: map[string]interface{}{
			"deviceId": hint.DeviceID,
			"roomId":   hint.RoomID,
			"rssi":     hint.RSSI,
			"ts":       ts.Format(time.RFC3339),
		},
		RSSI: hint.RSSI,
		TS:   ts,
	}

	return Outcome{
		Device:     next,
		Transition: priorStatus(prior) != models.StatusBreach,
		Alerts:     []*models.Alert{alert},
	}, nil
}

// EvaluateTamper unconditionally forces compromised and always emits an
// alert; tamper reports never go through fence evaluation.
func (e *Evaluator) EvaluateTamper(prior *models.Device, t *models.Tamper, now time.Time) (Outcome, error) {
	if t.DeviceID == "" {
		return Outcome{}, ErrMissingDeviceID
	}

	ts := reportTime(t.TS, now)
	next := nextDevice(prior, t.DeviceID, ts)
	if t.RoomID != "" {
		next.RoomID = t.RoomID
	}
	next.LastSeen = ts
	next.Status = models.StatusCompromised

	alert := &models.Alert{
		ID:       uuid.NewString(),
		Type:     models.AlertTypeTamper,
		Severity: models.SeverityCritical,
		DeviceID: t.DeviceID,
		RoomID:   next.RoomID,
		HotelID:  next.HotelID,
		Message:  fmt.Sprintf("tamper detected: %s", strings.Join(t.Threats, ", ")),
		Payload: map[string]interface{}{
			"deviceId":     t.DeviceID,
			"roomId":       t.RoomID,
			"threats":      t.Threats,
			"descriptions": t.Descriptions,
			"ts":           ts.Format(time.RFC3339),
		},
		TS: ts,
	}

	return Outcome{
		Device:     next,
		Transition: priorStatus(prior) != models.StatusCompromised,
		Alerts:     []*models.Alert{alert},
	}, nil
}

// EvaluateBattery is the lightweight report: it runs the retroactive silence
// check but skips the fence, and only forces ok when no gap breach applies
// and the device is not already breached or compromised.
func (e *Evaluator) EvaluateBattery(prior *models.Device, b *models.Battery, now time.Time) (Outcome, error) {
	if b.DeviceID == "" {
		return Outcome{}, ErrMissingDeviceID
	}

	ts := reportTime(b.TS, now)
	next := nextDevice(prior, b.DeviceID, ts)
	level := b.Level
	next.Battery = &level
	next.LastSeen = ts

	existing := priorStatus(prior)
	status := existing
	var alerts []*models.Alert

	if gap, ok := e.silentGap(prior, ts); ok {
		status = models.StatusBreach
		alerts = append(alerts, &models.Alert{
			ID:       uuid.NewString(),
			Type:     models.AlertTypeBreach,
			Severity: models.SeverityCritical,
			DeviceID: b.DeviceID,
			RoomID:   next.RoomID,
			HotelID:  next.HotelID,
			Message:  fmt.Sprintf("device was silent for %.0f seconds before reporting again", gap.Seconds()),
			Payload: map[string]interface{}{
				"reason":          ReasonSilentInterval,
				"offlineDuration": gap.Seconds(),
			},
			TS: ts,
		})
	} else if existing == models.StatusOK || existing == models.StatusOffline {
		status = models.StatusOK
	}

	alerts = append(alerts, &models.Alert{
		ID:       uuid.NewString(),
		Type:     models.AlertTypeBatteryLow,
		Severity: models.SeverityWarning,
		DeviceID: b.DeviceID,
		RoomID:   next.RoomID,
		HotelID:  next.HotelID,
		Message:  fmt.Sprintf("battery level at %d%%", b.Level),
		Payload: map[string]interface{}{
			"deviceId": b.DeviceID,
			"level":    b.Level,
			"ts":       ts.Format(time.RFC3339),
		},
		TS: ts,
	})

	next.Status = status
	return Outcome{
		Device:     next,
		Transition: status != existing,
		Alerts:     alerts,
	}, nil
}

// EvaluateSilence is the watchdog path: the device never sent another report,
// so the alert carries a synthetic worst-case signal value.
func (e *Evaluator) EvaluateSilence(device *models.Device, elapsed time.Duration, now time.Time) Outcome {
	next := device.Clone()
	next.Status = models.StatusBreach
	next.RSSI = SyntheticRSSI

	alert := &models.Alert{
		ID:       uuid.NewString(),
		Type:     models.AlertTypeBreach,
		Severity: models.SeverityCritical,
		DeviceID: device.DeviceID,
		RoomID:   device.RoomID,
		HotelID:  device.HotelID,
		Message:  fmt.Sprintf("device silent for %.0f seconds - no heartbeat received", elapsed.Seconds()),
		Payload: map[string]interface{}{
			"reason":          ReasonHeartbeatLost,
			"offlineDuration": elapsed.Seconds(),
			"detectionMethod": "heartbeat_monitoring",
		},
		RSSI:  SyntheticRSSI,
		BSSID: "unknown",
		TS:    now,
	}

	return Outcome{
		Device:     next,
		Transition: device.Status != models.StatusBreach,
		Alerts:     []*models.Alert{alert},
	}
}

// silentGap reports whether the gap between the stored last-seen timestamp
// and this report exceeds the retroactive threshold. Only an ok device can
// gap-breach: anything else is either already alerted or administratively
// parked.
func (e *Evaluator) silentGap(prior *models.Device, ts time.Time) (time.Duration, bool) {
	if prior == nil || prior.Status != models.StatusOK || prior.LastSeen.IsZero() {
		return 0, false
	}
	gap := ts.Sub(prior.LastSeen)
	if gap > e.cfg.RetroactiveGap {
		return gap, true
	}
	return 0, false
}

// checkFence evaluates the room fence: BSSID identity first, signal strength
// second. BSSID comparison is case-insensitive.
func (e *Evaluator) checkFence(room *models.Room, bssid string, rssi int) (string, bool) {
	if room.BSSID != "" && !strings.EqualFold(bssid, room.BSSID) {
		return ReasonBSSIDMismatch, true
	}
	threshold := room.RSSIThreshold
	if threshold == 0 {
		threshold = e.cfg.DefaultRSSIThreshold
	}
	if rssi < threshold {
		return ReasonWeakSignal, true
	}
	return "", false
}

func reportTime(ts *time.Time, now time.Time) time.Time {
	if ts != nil && !ts.IsZero() {
		return *ts
	}
	return now
}

func priorStatus(prior *models.Device) models.Status {
	if prior == nil {
		return models.StatusOK
	}
	return prior.Status
}

// nextDevice starts the next state from the stored one, or creates a fresh
// registration when the device reports before being registered (upsert
// semantics).
func nextDevice(prior *models.Device, deviceID string, ts time.Time) *models.Device {
	if prior != nil {
		return prior.Clone()
	}
	return &models.Device{
		DeviceID:     deviceID,
		HotelID:      "default",
		Status:       models.StatusOK,
		RegisteredAt: ts,
	}
}
