package models

import "time"

// Event types pushed to live subscribers.
const (
	EventConnected         = "connected"
	EventPing              = "ping"
	EventDeviceUpdate      = "device_update"
	EventAlert             = "alert"
	EventAlertAcknowledged = "alert_acknowledged"
	EventDeviceAdded       = "device_added"
	EventDeviceDeleted     = "device_deleted"
)

// Event is the transient envelope broadcast to subscribers. It is never
// persisted and has no identity beyond delivery order within one
// subscriber's stream.
type Event struct {
	Type      string                 `json:"type"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
}
