package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"hotel-security-backend/internal/models"
)

type ClickHouseDB struct {
	conn driver.Conn
}

// NewClickHouseDB creates a new ClickHouse database connection
func NewClickHouseDB(addr, database, username, password string) (*ClickHouseDB, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: database,
			Username: username,
			Password: password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout: 5 * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})

	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	log.Printf("Connected to ClickHouse at %s", addr)

	db := &ClickHouseDB{conn: conn}

	// Initialize schema
	if err := db.InitSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// InitSchema creates the necessary tables if they don't exist
func (db *ClickHouseDB) InitSchema() error {
	ctx := context.Background()

	tables := AllTables()
	for _, tableSQL := range tables {
		if err := db.conn.Exec(ctx, tableSQL); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	log.Println("Database schema initialized successfully")
	return nil
}

// UpsertDevice inserts a new version of the device row. The ReplacingMergeTree
// keeps the row with the highest updated_at per device_id.
func (db *ClickHouseDB) UpsertDevice(ctx context.Context, device *models.Device) error {
	query := `
		INSERT INTO devices (device_id, room_id, hotel_id, status, rssi, bssid, ip, battery, last_seen, registered_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var battery *int32
	if device.Battery != nil {
		b := int32(*device.Battery)
		battery = &b
	}

	err := db.conn.Exec(ctx, query,
		device.DeviceID,
		device.RoomID,
		device.HotelID,
		string(device.Status),
		int32(device.RSSI),
		device.BSSID,
		device.IP,
		battery,
		device.LastSeen,
		device.RegisteredAt,
		time.Now(),
	)

	if err != nil {
		return fmt.Errorf("failed to upsert device: %w", err)
	}

	return nil
}

// GetDevice returns the current version of a device row.
func (db *ClickHouseDB) GetDevice(ctx context.Context, deviceID string) (*models.Device, error) {
	query := `
		SELECT device_id, room_id, hotel_id, status, rssi, bssid, ip, battery, last_seen, registered_at
		FROM devices FINAL
		WHERE device_id = ?
	`

	row := db.conn.QueryRow(ctx, query, deviceID)
	device, err := scanDevice(row)
	if err != nil {
		return nil, ErrNotFound
	}
	return device, nil
}

// ListDevices returns all devices, optionally filtered by hotel.
func (db *ClickHouseDB) ListDevices(ctx context.Context, hotelID string) ([]*models.Device, error) {
	query := `
		SELECT device_id, room_id, hotel_id, status, rssi, bssid, ip, battery, last_seen, registered_at
		FROM devices FINAL
	`
	args := []interface{}{}
	if hotelID != "" {
		query += " WHERE hotel_id = ?"
		args = append(args, hotelID)
	}

	rows, err := db.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	defer rows.Close()

	var devices []*models.Device
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		devices = append(devices, device)
	}
	return devices, rows.Err()
}

// ListStaleDevices returns devices in the given status last seen before cutoff.
func (db *ClickHouseDB) ListStaleDevices(ctx context.Context, status models.Status, cutoff time.Time) ([]*models.Device, error) {
	query := `
		SELECT device_id, room_id, hotel_id, status, rssi, bssid, ip, battery, last_seen, registered_at
		FROM devices FINAL
		WHERE status = ? AND last_seen < ?
	`

	rows, err := db.conn.Query(ctx, query, string(status), cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale devices: %w", err)
	}
	defer rows.Close()

	var devices []*models.Device
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		devices = append(devices, device)
	}
	return devices, rows.Err()
}

// DeleteDevice removes a device row. Deletion is an administrative action;
// the presence engine itself never deletes devices.
func (db *ClickHouseDB) DeleteDevice(ctx context.Context, deviceID string) error {
	if _, err := db.GetDevice(ctx, deviceID); err != nil {
		return err
	}

	query := `ALTER TABLE devices DELETE WHERE device_id = ?`
	if err := db.conn.Exec(ctx, query, deviceID); err != nil {
		return fmt.Errorf("failed to delete device: %w", err)
	}
	return nil
}

// UpsertRoom inserts a new version of the room fence config.
func (db *ClickHouseDB) UpsertRoom(ctx context.Context, room *models.Room) error {
	query := `
		INSERT INTO rooms (room_id, hotel_id, name, ssid, bssid, rssi_threshold, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	err := db.conn.Exec(ctx, query,
		room.RoomID,
		room.HotelID,
		room.Name,
		room.SSID,
		room.BSSID,
		int32(room.RSSIThreshold),
		time.Now(),
	)

	if err != nil {
		return fmt.Errorf("failed to upsert room: %w", err)
	}
	return nil
}

// GetRoom returns the fence config for a room.
func (db *ClickHouseDB) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	query := `
		SELECT room_id, hotel_id, name, ssid, bssid, rssi_threshold
		FROM rooms FINAL
		WHERE room_id = ?
	`

	var room models.Room
	var threshold int32
	row := db.conn.QueryRow(ctx, query, roomID)
	if err := row.Scan(&room.RoomID, &room.HotelID, &room.Name, &room.SSID, &room.BSSID, &threshold); err != nil {
		return nil, ErrNotFound
	}
	room.RSSIThreshold = int(threshold)
	return &room, nil
}

// SaveAlert appends an alert to the alert log.
func (db *ClickHouseDB) SaveAlert(ctx context.Context, alert *models.Alert) error {
	payload := "{}"
	if alert.Payload != nil {
		raw, err := json.Marshal(alert.Payload)
		if err != nil {
			return fmt.Errorf("failed to marshal alert payload: %w", err)
		}
		payload = string(raw)
	}

	query := `
		INSERT INTO alerts (alert_id, type, severity, device_id, room_id, hotel_id, message, payload, rssi, bssid, ts, acknowledged, acknowledged_by, acknowledged_at, notes, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := db.conn.Exec(ctx, query,
		alert.ID,
		alert.Type,
		alert.Severity,
		alert.DeviceID,
		alert.RoomID,
		alert.HotelID,
		alert.Message,
		payload,
		int32(alert.RSSI),
		alert.BSSID,
		alert.TS,
		alert.Acknowledged,
		alert.AcknowledgedBy,
		alert.AcknowledgedAt,
		alert.Notes,
		time.Now(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}

// RecentAlerts returns the newest alerts, optionally filtered by hotel.
func (db *ClickHouseDB) RecentAlerts(ctx context.Context, hotelID string, limit int) ([]*models.Alert, error) {
	query := `
		SELECT alert_id, type, severity, device_id, room_id, hotel_id, message, payload, rssi, bssid, ts, acknowledged, acknowledged_by, acknowledged_at, notes
		FROM alerts FINAL
	`
	args := []interface{}{}
	if hotelID != "" {
		query += " WHERE hotel_id = ?"
		args = append(args, hotelID)
	}
	query += " ORDER BY ts DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*models.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}

// AcknowledgeAlert sets the one-time acknowledgement sub-record.
func (db *ClickHouseDB) AcknowledgeAlert(ctx context.Context, alertID, acknowledgedBy, notes string) error {
	query := `
		SELECT alert_id, type, severity, device_id, room_id, hotel_id, message, payload, rssi, bssid, ts, acknowledged, acknowledged_by, acknowledged_at, notes
		FROM alerts FINAL
		WHERE alert_id = ?
	`

	row := db.conn.QueryRow(ctx, query, alertID)
	alert, err := scanAlert(row)
	if err != nil {
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

	return db.SaveAlert(ctx, alert)
}

// DeleteDeviceAlerts purges all alerts belonging to a device.
func (db *ClickHouseDB) DeleteDeviceAlerts(ctx context.Context, deviceID string) error {
	query := `ALTER TABLE alerts DELETE WHERE device_id = ?`
	if err := db.conn.Exec(ctx, query, deviceID); err != nil {
		return fmt.Errorf("failed to delete device alerts: %w", err)
	}
	return nil
}

// Counts returns device/alert totals for the metrics endpoint.
func (db *ClickHouseDB) Counts(ctx context.Context) (*Counts, error) {
	var devices, alerts, breached uint64

	if err := db.conn.QueryRow(ctx, `SELECT count() FROM devices FINAL`).Scan(&devices); err != nil {
		return nil, fmt.Errorf("failed to count devices: %w", err)
	}
	if err := db.conn.QueryRow(ctx, `SELECT count() FROM alerts FINAL`).Scan(&alerts); err != nil {
		return nil, fmt.Errorf("failed to count alerts: %w", err)
	}
	if err := db.conn.QueryRow(ctx, `SELECT count() FROM devices FINAL WHERE status = 'breach'`).Scan(&breached); err != nil {
		return nil, fmt.Errorf("failed to count breached devices: %w", err)
	}

	return &Counts{
		Devices:         int(devices),
		Alerts:          int(alerts),
		BreachedDevices: int(breached),
	}, nil
}

// Ping checks the ClickHouse connection.
func (db *ClickHouseDB) Ping(ctx context.Context) error {
	return db.conn.Ping(ctx)
}

// Close closes the ClickHouse connection
func (db *ClickHouseDB) Close() error {
	if db.conn != nil {
		if err := db.conn.Close(); err != nil {
			return fmt.Errorf("failed to close ClickHouse connection: %w", err)
		}
		log.Println("ClickHouse connection closed")
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDevice(row rowScanner) (*models.Device, error) {
	var device models.Device
	var status string
	var rssi int32
	var battery *int32

	err := row.Scan(
		&device.DeviceID,
		&device.RoomID,
		&device.HotelID,
		&status,
		&rssi,
		&device.BSSID,
		&device.IP,
		&battery,
		&device.LastSeen,
		&device.RegisteredAt,
	)
	if err != nil {
		return nil, err
	}

	device.Status = models.Status(status)
	device.RSSI = int(rssi)
	if battery != nil {
		b := int(*battery)
		device.Battery = &b
	}
	return &device, nil
}

func scanAlert(row rowScanner) (*models.Alert, error) {
	var alert models.Alert
	var payload string
	var rssi int32

	err := row.Scan(
		&alert.ID,
		&alert.Type,
		&alert.Severity,
		&alert.DeviceID,
		&alert.RoomID,
		&alert.HotelID,
		&alert.Message,
		&payload,
		&rssi,
		&alert.BSSID,
		&alert.TS,
		&alert.Acknowledged,
		&alert.AcknowledgedBy,
		&alert.AcknowledgedAt,
		&alert.Notes,
	)
	if err != nil {
		return nil, err
	}

	alert.RSSI = int(rssi)
	if payload != "" && payload != "{}" {
		if err := json.Unmarshal([]byte(payload), &alert.Payload); err != nil {
			log.Printf("Warning: failed to unmarshal alert payload for %s: %v", alert.ID, err)
		}
	}
	return &alert, nil
}
