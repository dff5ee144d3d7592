package database

import (
	"context"
	"sort"
	"sync"
	"time"

	"hotel-security-backend/internal/models"
)

// MemoryStore is an in-memory Store used by tests and local development
// without a ClickHouse instance.
type MemoryStore struct {
	mu      sync.RWMutex
	devices map[string]*models.Device
	rooms   map[string]*models.Room
	alerts  map[string]*models.Alert
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		devices: make(map[string]*models.Device),
		rooms:   make(map[string]*models.Room),
		alerts:  make(map[string]*models.Alert),
	}
}

func (m *MemoryStore) UpsertDevice(ctx context.Context, device *models.Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.devices[device.DeviceID] = device.Clone()
	return nil
}

func (m *MemoryStore) GetDevice(ctx context.Context, deviceID string) (*models.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	device, ok := m.devices[deviceID]
	if !ok {
		return nil, ErrNotFound
	}
	return device.Clone(), nil
}

func (m *MemoryStore) ListDevices(ctx context.Context, hotelID string) ([]*models.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var devices []*models.Device
	for _, d := range m.devices {
		if hotelID != "" && d.HotelID != hotelID {
			continue
		}
		devices = append(devices, d.Clone())
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].DeviceID < devices[j].DeviceID })
	return devices, nil
}

func (m *MemoryStore) ListStaleDevices(ctx context.Context, status models.Status, cutoff time.Time) ([]*models.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var devices []*models.Device
	for _, d := range m.devices {
		if d.Status == status && !d.LastSeen.IsZero() && d.LastSeen.Before(cutoff) {
			devices = append(devices, d.Clone())
		}
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].DeviceID < devices[j].DeviceID })
	return devices, nil
}

func (m *MemoryStore) DeleteDevice(ctx context.Context, deviceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.devices[deviceID]; !ok {
		return ErrNotFound
	}
	delete(m.devices, deviceID)
	return nil
}

func (m *MemoryStore) UpsertRoom(ctx context.Context, room *models.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := *room
	m.rooms[room.RoomID] = &r
	return nil
}

func (m *MemoryStore) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[roomID]
	if !ok {
		return nil, ErrNotFound
	}
	r := *room
	return &r, nil
}

func (m *MemoryStore) SaveAlert(ctx context.Context, alert *models.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := *alert
	m.alerts[alert.ID] = &a
	return nil
}

func (m *MemoryStore) RecentAlerts(ctx context.Context, hotelID string, limit int) ([]*models.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var alerts []*models.Alert
	for _, a := range m.alerts {
		if hotelID != "" && a.HotelID != hotelID {
			continue
		}
		copied := *a
		alerts = append(alerts, &copied)
	}
	sort.Slice(alerts, func(i, j int) bool { return alerts[i].TS.After(alerts[j].TS) })
	if limit > 0 && len(alerts) > limit {
		alerts = alerts[:limit]
	}
	return alerts, nil
}

func (m *MemoryStore) AcknowledgeAlert(ctx context.Context, alertID, acknowledgedBy, notes string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	alert, ok := m.alerts[alertID]
	if !ok {
		return ErrNotFound
	}
	if alert.Acknowledged {
		return ErrAlreadyAcknowledged
	}
	now := time.Now()
	alert.Acknowledged = true
	alert.AcknowledgedBy = acknowledgedBy
	alert.AcknowledgedAt = &now
	alert.Notes = notes
	return nil
}

func (m *MemoryStore) DeleteDeviceAlerts(ctx context.Context, deviceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, a := range m.alerts {
		if a.DeviceID == deviceID {
			delete(m.alerts, id)
		}
	}
	return nil
}

func (m *MemoryStore) Counts(ctx context.Context) (*Counts, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := &Counts{
		Devices: len(m.devices),
		Alerts:  len(m.alerts),
	}
	for _, d := range m.devices {
		if d.Status == models.StatusBreach {
			counts.BreachedDevices++
		}
	}
	return counts, nil
}

func (m *MemoryStore) Ping(ctx context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }
