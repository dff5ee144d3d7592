package database

// SQL schemas for all ClickHouse tables.
//
// Mutable rows (device status, room config, alert acknowledgement) live in
// ReplacingMergeTree tables versioned by updated_at; readers use FINAL.

const (
	// DevicesTableSQL creates the devices registry table
	DevicesTableSQL = `
		CREATE TABLE IF NOT EXISTS devices (
			device_id String,
			room_id String,
			hotel_id String,
			status String,
			rssi Int32,
			bssid String,
			ip String,
			battery Nullable(Int32),
			last_seen DateTime64(3),
			registered_at DateTime64(3),
			updated_at DateTime64(3)
		) ENGINE = ReplacingMergeTree(updated_at)
		ORDER BY device_id
	`

	// RoomsTableSQL creates the room fence config table
	RoomsTableSQL = `
		CREATE TABLE IF NOT EXISTS rooms (
			room_id String,
			hotel_id String,
			name String,
			ssid String,
			bssid String,
			rssi_threshold Int32,
			updated_at DateTime64(3)
		) ENGINE = ReplacingMergeTree(updated_at)
		ORDER BY room_id
	`

	// AlertsTableSQL creates the alert log table
	AlertsTableSQL = `
		CREATE TABLE IF NOT EXISTS alerts (
			alert_id String,
			type String,
			severity String,
			device_id String,
			room_id String,
			hotel_id String,
			message String,
			payload String,
			rssi Int32,
			bssid String,
			ts DateTime64(3),
			acknowledged Bool,
			acknowledged_by String,
			acknowledged_at Nullable(DateTime64(3)),
			notes String,
			updated_at DateTime64(3)
		) ENGINE = ReplacingMergeTree(updated_at)
		ORDER BY alert_id
	`
)

// AllTables returns all table creation SQL statements
func AllTables() []string {
	return []string{
		DevicesTableSQL,
		RoomsTableSQL,
		AlertsTableSQL,
	}
}
