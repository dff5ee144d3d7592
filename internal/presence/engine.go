package presence

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"hotel-security-backend/internal/database"
	"hotel-security-backend/internal/events"
	"hotel-security-backend/internal/models"
)

// Notifier is the engine's view of the notification dispatcher. Calls must
// never block or fail the report path.
type Notifier interface {
	BreachAlert(deviceID, roomID string, rssi int)
	BatteryAlert(deviceID string, level int)
	OfflineAlert(deviceID, lastSeen string)
}

// Engine orchestrates the presence pipeline: evaluate, persist, log the
// alert, publish events, hand off notifications. Reports and the watchdog
// both funnel through it, so the event bus sees one producer contract.
type Engine struct {
	store    database.Store
	eval     *Evaluator
	bus      events.Bus
	notifier Notifier

	// Per-device serialization point: concurrent reports for the same
	// device are applied one at a time, so the registry never sees a
	// last-write-wins race on status.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewEngine(store database.Store, eval *Evaluator, bus events.Bus, notifier Notifier) *Engine {
	return &Engine{
		store:    store,
		eval:     eval,
		bus:      bus,
		notifier: notifier,
		locks:    make(map[string]*sync.Mutex),
	}
}

// HandleHeartbeat processes a periodic device report and returns the
// resulting status.
func (e *Engine) HandleHeartbeat(ctx context.Context, hb *models.Heartbeat) (models.Status, error) {
	if hb.DeviceID == "" {
		return "", ErrMissingDeviceID
	}

	unlock := e.lockDevice(hb.DeviceID)
	defer unlock()

	prior, err := e.loadDevice(ctx, hb.DeviceID)
	if err != nil {
		return "", err
	}
	room := e.loadRoom(ctx, hb.RoomID)

	out, err := e.eval.EvaluateHeartbeat(prior, room, hb, time.Now().UTC())
	if err != nil {
		return "", err
	}

	if err := e.commit(ctx, out); err != nil {
		return "", err
	}
	return out.Device.Status, nil
}

// HandleBreachHint processes an explicit client-observed breach report.
func (e *Engine) HandleBreachHint(ctx context.Context, hint *models.BreachHint) (models.Status, error) {
	if hint.DeviceID == "" {
		return "", ErrMissingDeviceID
	}

	unlock := e.lockDevice(hint.DeviceID)
	defer unlock()

	prior, err := e.loadDevice(ctx, hint.DeviceID)
	if err != nil {
		return "", err
	}

	out, err := e.eval.EvaluateBreachHint(prior, hint, time.Now().UTC())
	if err != nil {
		return "", err
	}

	if err := e.commit(ctx, out); err != nil {
		return "", err
	}
	return out.Device.Status, nil
}

// HandleTamper processes a tamper report.
func (e *Engine) HandleTamper(ctx context.Context, t *models.Tamper) (models.Status, error) {
	if t.DeviceID == "" {
		return "", ErrMissingDeviceID
	}

	unlock := e.lockDevice(t.DeviceID)
	defer unlock()

	prior, err := e.loadDevice(ctx, t.DeviceID)
	if err != nil {
		return "", err
	}

	out, err := e.eval.EvaluateTamper(prior, t, time.Now().UTC())
	if err != nil {
		return "", err
	}

	if err := e.commit(ctx, out); err != nil {
		return "", err
	}
	return out.Device.Status, nil
}

// HandleBattery processes a low-battery report.
func (e *Engine) HandleBattery(ctx context.Context, b *models.Battery) (models.Status, error) {
	if b.DeviceID == "" {
		return "", ErrMissingDeviceID
	}

	unlock := e.lockDevice(b.DeviceID)
	defer unlock()

	prior, err := e.loadDevice(ctx, b.DeviceID)
	if err != nil {
		return "", err
	}

	out, err := e.eval.EvaluateBattery(prior, b, time.Now().UTC())
	if err != nil {
		return "", err
	}

	if err := e.commit(ctx, out); err != nil {
		return "", err
	}
	return out.Device.Status, nil
}

// HandleSilence is the watchdog path. The device is re-read under the
// per-device lock and the staleness re-checked, so a heartbeat that raced
// the scan wins.
func (e *Engine) HandleSilence(ctx context.Context, deviceID string, cutoff time.Time) (bool, error) {
	unlock := e.lockDevice(deviceID)
	defer unlock()

	device, err := e.loadDevice(ctx, deviceID)
	if err != nil {
		return false, err
	}
	if device == nil || device.Status != models.StatusOK || device.LastSeen.IsZero() {
		return false, nil
	}
	if !device.LastSeen.Before(cutoff) {
		return false, nil
	}

	now := time.Now().UTC()
	out := e.eval.EvaluateSilence(device, now.Sub(device.LastSeen), now)
	if err := e.commit(ctx, out); err != nil {
		return false, err
	}
	return true, nil
}

// commit runs the three-step pipeline. The registry write is authoritative;
// alert log and event publish are independent at-least-once steps and their
// failures are logged, not returned.
func (e *Engine) commit(ctx context.Context, out Outcome) error {
	if err := e.store.UpsertDevice(ctx, out.Device); err != nil {
		return fmt.Errorf("failed to persist device state: %w", err)
	}

	for _, alert := range out.Alerts {
		if err := e.store.SaveAlert(ctx, alert); err != nil {
			log.Printf("Engine: error saving %s alert for %s: %v", alert.Type, alert.DeviceID, err)
		}
	}

	for _, alert := range out.Alerts {
		e.bus.Publish(models.EventAlert, map[string]interface{}{
			"alertId":  alert.ID,
			"type":     alert.Type,
			"severity": alert.Severity,
			"deviceId": alert.DeviceID,
			"roomId":   alert.RoomID,
			"message":  alert.Message,
			"rssi":     alert.RSSI,
		})
	}

	update := map[string]interface{}{
		"deviceId": out.Device.DeviceID,
		"status":   string(out.Device.Status),
		"rssi":     out.Device.RSSI,
	}
	if out.Device.Battery != nil {
		update["battery"] = *out.Device.Battery
	}
	e.bus.Publish(models.EventDeviceUpdate, update)

	// Notifications go out last: the state transition is already committed
	// and must not depend on them.
	if e.notifier != nil {
		for _, alert := range out.Alerts {
			switch alert.Type {
			case models.AlertTypeBreach:
				e.notifier.BreachAlert(alert.DeviceID, alert.RoomID, alert.RSSI)
			case models.AlertTypeBatteryLow:
				if out.Device.Battery != nil {
					e.notifier.BatteryAlert(alert.DeviceID, *out.Device.Battery)
				}
			}
		}
	}

	return nil
}

func (e *Engine) loadDevice(ctx context.Context, deviceID string) (*models.Device, error) {
	device, err := e.store.GetDevice(ctx, deviceID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil // first report registers the device
		}
		return nil, fmt.Errorf("failed to load device %s: %w", deviceID, err)
	}
	return device, nil
}

// loadRoom treats an unknown room as "no fence configured", not an error.
func (e *Engine) loadRoom(ctx context.Context, roomID string) *models.Room {
	if roomID == "" {
		return nil
	}
	room, err := e.store.GetRoom(ctx, roomID)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			log.Printf("Engine: error loading room %s, skipping fence: %v", roomID, err)
		}
		return nil
	}
	return room
}

func (e *Engine) lockDevice(deviceID string) func() {
	e.mu.Lock()
	l, ok := e.locks[deviceID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[deviceID] = l
	}
	e.mu.Unlock()

	l.Lock()
	return l.Unlock
}
