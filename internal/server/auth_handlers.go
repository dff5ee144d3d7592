package server

import (
	"encoding/json"
	"log"
	"net/http"
)

type deviceTokenRequest struct {
	DeviceID string `json:"deviceId"`
	RoomID   string `json:"roomId"`
	HotelID  string `json:"hotelId"`
}

// handleDeviceToken re-issues a report token for an already-registered
// device without resetting its status.
func (s *Server) handleDeviceToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req deviceTokenRequest
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

	token, err := s.authSvc.DeviceToken(req.DeviceID, req.RoomID, req.HotelID)
	if err != nil {
		log.Printf("Server: error issuing device token for %s: %v", req.DeviceID, err)
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"token": token,
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// handleLogin issues a dashboard token. Credentials are a fixed admin pair;
// per-user accounts live behind the hotel's SSO, not here.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	if req.Username != "admin" || req.Password != "admin" {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := s.authSvc.UserToken(req.Username, "admin")
	if err != nil {
		log.Printf("Server: error issuing user token for %s: %v", req.Username, err)
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"token": token,
		"role":  "admin",
	})
}
