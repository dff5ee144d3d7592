package database

import (
	"context"
	"errors"
	"time"

	"hotel-security-backend/internal/models"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrAlreadyExists       = errors.New("already exists")
	ErrAlreadyAcknowledged = errors.New("alert already acknowledged")
)

// Store is the persistence boundary for the presence engine and the HTTP
// surface. The ClickHouse implementation is the production one; MemoryStore
// backs the tests.
type Store interface {
	UpsertDevice(ctx context.Context, device *models.Device) error
	GetDevice(ctx context.Context, deviceID string) (*models.Device, error)
	ListDevices(ctx context.Context, hotelID string) ([]*models.Device, error)
	// ListStaleDevices returns devices in the given status whose last-seen
	// timestamp is strictly before cutoff.
	ListStaleDevices(ctx context.Context, status models.Status, cutoff time.Time) ([]*models.Device, error)
	DeleteDevice(ctx context.Context, deviceID string) error

	UpsertRoom(ctx context.Context, room *models.Room) error
	GetRoom(ctx context.Context, roomID string) (*models.Room, error)

	SaveAlert(ctx context.Context, alert *models.Alert) error
	RecentAlerts(ctx context.Context, hotelID string, limit int) ([]*models.Alert, error)
	AcknowledgeAlert(ctx context.Context, alertID, acknowledgedBy, notes string) error
	DeleteDeviceAlerts(ctx context.Context, deviceID string) error

	Counts(ctx context.Context) (*Counts, error)
	Ping(ctx context.Context) error
	Close() error
}

// Counts holds the numbers served by the metrics endpoint.
type Counts struct {
	Devices         int
	Alerts          int
	BreachedDevices int
}
