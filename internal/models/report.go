package models

import "time"

// Inbound device reports. Each kind is its own struct and is dispatched
// explicitly to its evaluation function; there is no payload sniffing.

// Heartbeat is the periodic report carrying the device's observed network
// identity and signal strength.
type Heartbeat struct {
	DeviceID  string     `json:"deviceId"`
	RoomID    string     `json:"roomId"`
	WifiBSSID string     `json:"wifiBssid"`
	RSSI      int        `json:"rssi"`
	IP        string     `json:"ip,omitempty"`
	Battery   *int       `json:"battery,omitempty"`
	TS        *time.Time `json:"ts,omitempty"`
}

// BreachHint is an explicit client-observed breach report.
type BreachHint struct {
	DeviceID string     `json:"deviceId"`
	RoomID   string     `json:"roomId"`
	RSSI     int        `json:"rssi"`
	TS       *time.Time `json:"ts,omitempty"`
}

// Tamper reports on-device tamper detection (ADB enabled, developer mode,
// uninstall attempt and so on).
type Tamper struct {
	DeviceID     string     `json:"deviceId"`
	RoomID       string     `json:"roomId"`
	Threats      []string   `json:"threats"`
	Descriptions []string   `json:"descriptions"`
	TS           *time.Time `json:"ts,omitempty"`
}

// Battery is the low-battery report.
type Battery struct {
	DeviceID string     `json:"deviceId"`
	Level    int        `json:"level"`
	TS       *time.Time `json:"ts,omitempty"`
}
