package presence

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"hotel-security-backend/internal/database"
	"hotel-security-backend/internal/models"
)

// WatchdogConfig holds the silence scan parameters
type WatchdogConfig struct {
	Period time.Duration
	Cutoff time.Duration
}

func DefaultWatchdogConfig() WatchdogConfig {
	return WatchdogConfig{
		Period: 5 * time.Second,
		Cutoff: 12 * time.Second,
	}
}

// Watchdog periodically scans the registry for healthy devices that went
// silent and pushes them through the engine's silence path. It is the
// server-side counterpart of the device heartbeat: a device that stops
// reporting is treated as taken out of range.
type Watchdog struct {
	store  database.Store
	engine *Engine
	config WatchdogConfig
}

func NewWatchdog(store database.Store, engine *Engine, config WatchdogConfig) *Watchdog {
	return &Watchdog{
		store:  store,
		engine: engine,
		config: config,
	}
}

// Start runs the scan loop until the context is cancelled. Errors in a pass
// are logged and the loop continues with the next tick.
func (w *Watchdog) Start(ctx context.Context) {
	log.Printf("Watchdog: starting, scanning every %v for devices silent over %v", w.config.Period, w.config.Cutoff)

	ticker := time.NewTicker(w.config.Period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Watchdog: stopping")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *Watchdog) sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-w.config.Cutoff)

	stale, err := w.store.ListStaleDevices(ctx, models.StatusOK, cutoff)
	if err != nil {
		log.Printf("Watchdog: error listing stale devices: %v", err)
		return
	}

	for _, device := range stale {
		breached, err := w.engine.HandleSilence(ctx, device.DeviceID, cutoff)
		if err != nil {
			log.Printf("Watchdog: error handling silence for %s: %v", device.DeviceID, err)
			continue
		}
		if breached {
			log.Printf("Watchdog: device %s silent since %v, marked breached", device.DeviceID, device.LastSeen)
		}
	}
}

// OfflineScannerConfig holds the coarse offline scan parameters
type OfflineScannerConfig struct {
	Period time.Duration
	Cutoff time.Duration
}

func DefaultOfflineScannerConfig() OfflineScannerConfig {
	return OfflineScannerConfig{
		Period: 30 * time.Second,
		Cutoff: 40 * time.Second,
	}
}

// OfflineScanner is a coarse backstop run by the notifier process. It marks
// long-silent healthy devices offline and sends an offline notification. The
// fast watchdog normally wins the race and escalates to breach first; this
// scanner only catches devices the watchdog's process never saw.
type OfflineScanner struct {
	store    database.Store
	notifier Notifier
	config   OfflineScannerConfig
}

func NewOfflineScanner(store database.Store, notifier Notifier, config OfflineScannerConfig) *OfflineScanner {
	return &OfflineScanner{
		store:    store,
		notifier: notifier,
		config:   config,
	}
}

func (s *OfflineScanner) Start(ctx context.Context) {
	log.Printf("OfflineScanner: starting, scanning every %v for devices silent over %v", s.config.Period, s.config.Cutoff)

	ticker := time.NewTicker(s.config.Period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("OfflineScanner: stopping")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *OfflineScanner) sweep(ctx context.Context) {
	now := time.Now().UTC()
	cutoff := now.Add(-s.config.Cutoff)

	stale, err := s.store.ListStaleDevices(ctx, models.StatusOK, cutoff)
	if err != nil {
		log.Printf("OfflineScanner: error listing stale devices: %v", err)
		return
	}

	for _, device := range stale {
		device.Status = models.StatusOffline
		if err := s.store.UpsertDevice(ctx, device); err != nil {
			log.Printf("OfflineScanner: error marking %s offline: %v", device.DeviceID, err)
			continue
		}

		alert := &models.Alert{
			ID:       uuid.NewString(),
			Type:     models.AlertTypeOffline,
			Severity: models.SeverityHigh,
			DeviceID: device.DeviceID,
			RoomID:   device.RoomID,
			HotelID:  device.HotelID,
			Message:  "device stopped sending heartbeats",
			Payload: map[string]interface{}{
				"lastSeen": device.LastSeen.Format(time.RFC3339),
			},
			RSSI:  device.RSSI,
			BSSID: device.BSSID,
			TS:    now,
		}
		if err := s.store.SaveAlert(ctx, alert); err != nil {
			log.Printf("OfflineScanner: error saving offline alert for %s: %v", device.DeviceID, err)
		}

		if s.notifier != nil {
			s.notifier.OfflineAlert(device.DeviceID, device.LastSeen.Format(time.RFC3339))
		}
		log.Printf("OfflineScanner: device %s silent since %v, marked offline", device.DeviceID, device.LastSeen)
	}
}
