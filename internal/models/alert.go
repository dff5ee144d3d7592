package models

import "time"

// Alert types.
const (
	AlertTypeBreach     = "breach"
	AlertTypeTamper     = "tamper"
	AlertTypeBatteryLow = "battery_low"
	AlertTypeOffline    = "offline"
)

// Alert severities.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Alert is immutable once created, except for the one-time acknowledgement
// sub-record.
type Alert struct {
	ID       string                 `json:"id"`
	Type     string                 `json:"type"`
	Severity string                 `json:"severity"`
	DeviceID string                 `json:"deviceId"`
	RoomID   string                 `json:"roomId,omitempty"`
	HotelID  string                 `json:"hotelId,omitempty"`
	Message  string                 `json:"message"`
	Payload  map[string]interface{} `json:"payload,omitempty"`
	RSSI     int                    `json:"rssi"`
	BSSID    string                 `json:"bssid,omitempty"`
	TS       time.Time              `json:"ts"`

	Acknowledged   bool       `json:"acknowledged"`
	AcknowledgedBy string     `json:"acknowledgedBy,omitempty"`
	AcknowledgedAt *time.Time `json:"acknowledgedAt,omitempty"`
	Notes          string     `json:"notes,omitempty"`
}
