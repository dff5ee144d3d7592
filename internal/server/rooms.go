package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"hotel-security-backend/internal/database"
	"hotel-security-backend/internal/models"
)

type roomUpsertRequest struct {
	RoomID        string `json:"roomId"`
	HotelID       string `json:"hotelId"`
	Name          string `json:"name"`
	SSID          string `json:"ssid"`
	BSSID         string `json:"bssid"`
	RSSIThreshold *int   `json:"rssiThreshold"`
}

// handleRoomUpsert creates or updates a room's fence configuration. A
// missing threshold gets the admin default; an empty BSSID disables the
// identity check for that room.
func (s *Server) handleRoomUpsert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req roomUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.RoomID == "" {
		writeError(w, http.StatusBadRequest, "roomId is required")
		return
	}
	if req.HotelID == "" {
		req.HotelID = "default"
	}

	threshold := s.config.AdminRSSIThreshold
	if req.RSSIThreshold != nil {
		threshold = *req.RSSIThreshold
	}

	room := &models.Room{
		RoomID:        req.RoomID,
		HotelID:       req.HotelID,
		Name:          req.Name,
		SSID:          req.SSID,
		BSSID:         req.BSSID,
		RSSIThreshold: threshold,
	}

	if err := s.store.UpsertRoom(r.Context(), room); err != nil {
		log.Printf("Server: error upserting room %s: %v", req.RoomID, err)
		writeError(w, http.StatusInternalServerError, "failed to save room")
		return
	}

	writeJSON(w, http.StatusOK, room)
}

// handleDeviceConfig serves GET /api/config/{device_id}: the provisioning
// parameters a tablet fetches at boot. An unknown device or room still gets
// usable defaults so a factory-fresh tablet can start reporting.
func (s *Server) handleDeviceConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	deviceID := strings.TrimPrefix(r.URL.Path, "/api/config/")
	if deviceID == "" || strings.Contains(deviceID, "/") {
		http.NotFound(w, r)
		return
	}

	cfg := map[string]interface{}{
		"deviceId":       deviceID,
		"pin":            s.config.DevicePIN,
		"batteryLow":     s.config.BatteryLowLevel,
		"breachGraceSec": 10,
	}

	device, err := s.store.GetDevice(r.Context(), deviceID)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusInternalServerError, "failed to load device")
			return
		}
		writeJSON(w, http.StatusOK, cfg)
		return
	}

	cfg["roomId"] = device.RoomID
	if room, err := s.store.GetRoom(r.Context(), device.RoomID); err == nil {
		cfg["ssid"] = room.SSID
		cfg["bssid"] = room.BSSID
		cfg["rssiThreshold"] = room.RSSIThreshold
	}

	writeJSON(w, http.StatusOK, cfg)
}
