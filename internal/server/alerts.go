package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"hotel-security-backend/internal/auth"
	"hotel-security-backend/internal/database"
	"hotel-security-backend/internal/models"
)

func (s *Server) handleAlertList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	hotelID := r.URL.Query().Get("hotel_id")
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	alerts, err := s.store.RecentAlerts(r.Context(), hotelID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list alerts")
		return
	}
	if alerts == nil {
		alerts = []*models.Alert{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

type acknowledgeRequest struct {
	Notes string `json:"notes"`
}

// handleAlertOperations covers POST /api/alerts/{alert_id}/acknowledge.
// Acknowledgement is one-time; a second attempt conflicts instead of
// silently overwriting who acted first.
func (s *Server) handleAlertOperations(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/alerts/")
	alertID, action, found := strings.Cut(rest, "/")
	if !found || action != "acknowledge" || alertID == "" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req acknowledgeRequest
	if r.Body != nil {
		// Empty body is fine; notes are optional.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	acknowledgedBy := "unknown"
	if claims, ok := auth.ClaimsFromContext(r.Context()); ok && claims.UserID != "" {
		acknowledgedBy = claims.UserID
	}

	if err := s.store.AcknowledgeAlert(r.Context(), alertID, acknowledgedBy, req.Notes); err != nil {
		switch {
		case errors.Is(err, database.ErrNotFound):
			writeError(w, http.StatusNotFound, "alert not found")
		case errors.Is(err, database.ErrAlreadyAcknowledged):
			writeError(w, http.StatusConflict, "alert already acknowledged")
		default:
			log.Printf("Server: error acknowledging alert %s: %v", alertID, err)
			writeError(w, http.StatusInternalServerError, "failed to acknowledge alert")
		}
		return
	}

	s.bus.Publish(models.EventAlertAcknowledged, map[string]interface{}{
		"alertId":        alertID,
		"acknowledgedBy": acknowledgedBy,
	})

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"alertId":        alertID,
		"acknowledged":   true,
		"acknowledgedBy": acknowledgedBy,
	})
}
