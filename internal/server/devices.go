package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"hotel-security-backend/internal/database"
	"hotel-security-backend/internal/models"
)

type registerRequest struct {
	DeviceID string `json:"deviceId"`
	RoomID   string `json:"roomId"`
	HotelID  string `json:"hotelId"`
}

// handleDeviceRegister provisions (or re-provisions) a tablet. Registration
// is the one path that resets a breached or compromised device back to ok,
// and it returns the device's long-lived report token.
func (s *Server) handleDeviceRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.DeviceID == "" {
		writeError(w, http.StatusBadRequest, "deviceId is required")
		return
	}
	if req.HotelID == "" {
		req.HotelID = "default"
	}

	now := time.Now().UTC()
	device := &models.Device{
		DeviceID:     req.DeviceID,
		RoomID:       req.RoomID,
		HotelID:      req.HotelID,
		Status:       models.StatusOK,
		RegisteredAt: now,
		LastSeen:     now,
	}

	if existing, err := s.store.GetDevice(r.Context(), req.DeviceID); err == nil {
		device.RegisteredAt = existing.RegisteredAt
		device.Battery = existing.Battery
		device.IP = existing.IP
	}

	if err := s.store.UpsertDevice(r.Context(), device); err != nil {
		log.Printf("Server: error registering device %s: %v", req.DeviceID, err)
		writeError(w, http.StatusInternalServerError, "failed to register device")
		return
	}

	token, err := s.authSvc.DeviceToken(req.DeviceID, req.RoomID, req.HotelID)
	if err != nil {
		log.Printf("Server: error issuing token for device %s: %v", req.DeviceID, err)
		writeError(w, http.StatusInternalServerError, "failed to issue device token")
		return
	}

	s.bus.Publish(models.EventDeviceUpdate, map[string]interface{}{
		"deviceId": device.DeviceID,
		"status":   string(device.Status),
		"roomId":   device.RoomID,
	})

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"deviceId": device.DeviceID,
		"status":   string(device.Status),
		"token":    token,
	})
}

type quickAddRequest struct {
	DeviceID string `json:"deviceId"`
	RoomID   string `json:"roomId"`
	HotelID  string `json:"hotelId"`
}

// handleDeviceQuickAdd creates a device from the dashboard without issuing a
// token. Unlike registration it refuses to overwrite an existing device.
func (s *Server) handleDeviceQuickAdd(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req quickAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.DeviceID == "" {
		writeError(w, http.StatusBadRequest, "deviceId is required")
		return
	}
	if req.HotelID == "" {
		req.HotelID = "default"
	}

	if _, err := s.store.GetDevice(r.Context(), req.DeviceID); err == nil {
		writeError(w, http.StatusConflict, "device already exists")
		return
	} else if !errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "failed to check device")
		return
	}

	now := time.Now().UTC()
	device := &models.Device{
		DeviceID:     req.DeviceID,
		RoomID:       req.RoomID,
		HotelID:      req.HotelID,
		Status:       models.StatusOK,
		RegisteredAt: now,
	}

	if err := s.store.UpsertDevice(r.Context(), device); err != nil {
		log.Printf("Server: error adding device %s: %v", req.DeviceID, err)
		writeError(w, http.StatusInternalServerError, "failed to add device")
		return
	}

	s.bus.Publish(models.EventDeviceAdded, map[string]interface{}{
		"deviceId": device.DeviceID,
		"roomId":   device.RoomID,
		"hotelId":  device.HotelID,
	})

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"deviceId": device.DeviceID,
		"status":   string(device.Status),
	})
}

func (s *Server) handleDeviceList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	hotelID := r.URL.Query().Get("hotel_id")
	devices, err := s.store.ListDevices(r.Context(), hotelID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list devices")
		return
	}
	if devices == nil {
		devices = []*models.Device{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"devices": devices,
		"count":   len(devices),
	})
}

// handleDeviceOperations covers GET and DELETE on /api/devices/{device_id}.
func (s *Server) handleDeviceOperations(w http.ResponseWriter, r *http.Request) {
	deviceID := strings.TrimPrefix(r.URL.Path, "/api/devices/")
	if deviceID == "" || strings.Contains(deviceID, "/") {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		device, err := s.store.GetDevice(r.Context(), deviceID)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				writeError(w, http.StatusNotFound, "device not found")
				return
			}
			writeError(w, http.StatusInternalServerError, "failed to load device")
			return
		}
		writeJSON(w, http.StatusOK, device)

	case http.MethodDelete:
		if err := s.store.DeleteDevice(r.Context(), deviceID); err != nil {
			if errors.Is(err, database.ErrNotFound) {
				writeError(w, http.StatusNotFound, "device not found")
				return
			}
			writeError(w, http.StatusInternalServerError, "failed to delete device")
			return
		}

		// Alert cleanup runs off the request path; a failure leaves orphaned
		// rows, not a failed delete.
		go func(deviceID string) {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := s.store.DeleteDeviceAlerts(ctx, deviceID); err != nil {
				log.Printf("Server: error purging alerts for deleted device %s: %v", deviceID, err)
			}
		}(deviceID)

		s.bus.Publish(models.EventDeviceDeleted, map[string]interface{}{
			"deviceId": deviceID,
		})

		writeJSON(w, http.StatusOK, map[string]string{"deleted": deviceID})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}
