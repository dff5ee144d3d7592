package models

import "time"

// Status is the authoritative device state. It is only ever written from the
// presence engine's output or the administrative registration path.
type Status string

const (
	StatusOK          Status = "ok"
	StatusBreach      Status = "breach"
	StatusOffline     Status = "offline"
	StatusCompromised Status = "compromised"
)

// Device represents a registered tablet and its last observed telemetry.
type Device struct {
	DeviceID     string    `json:"deviceId"`
	RoomID       string    `json:"roomId"`
	HotelID      string    `json:"hotelId"`
	Status       Status    `json:"status"`
	RSSI         int       `json:"rssi"`
	BSSID        string    `json:"bssid"`
	IP           string    `json:"ip,omitempty"`
	Battery      *int      `json:"battery,omitempty"`
	LastSeen     time.Time `json:"lastSeen"`
	RegisteredAt time.Time `json:"registeredAt"`
}

// Clone returns a copy of the device so the evaluator can compute the next
// state without mutating the stored one.
func (d *Device) Clone() *Device {
	c := *d
	if d.Battery != nil {
		b := *d.Battery
		c.Battery = &b
	}
	return &c
}

// Room holds the expected network identity for a room. An empty BSSID means
// no fence is enforced for the room.
type Room struct {
	RoomID        string `json:"roomId"`
	HotelID       string `json:"hotelId,omitempty"`
	Name          string `json:"name,omitempty"`
	SSID          string `json:"ssid,omitempty"`
	BSSID         string `json:"bssid,omitempty"`
	RSSIThreshold int    `json:"rssiThreshold"`
}
