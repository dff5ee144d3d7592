package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"hotel-security-backend/internal/models"
	"hotel-security-backend/internal/presence"
)

// handleHeartbeat ingests the periodic device report and returns the
// resulting status so the device can react (e.g. sound its local alarm).
func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var hb models.Heartbeat
	if err := json.NewDecoder(r.Body).Decode(&hb); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	status, err := s.engine.HandleHeartbeat(r.Context(), &hb)
	if err != nil {
		s.writeReportError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": string(status),
	})
}

func (s *Server) handleBreach(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var hint models.BreachHint
	if err := json.NewDecoder(r.Body).Decode(&hint); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	status, err := s.engine.HandleBreachHint(r.Context(), &hint)
	if err != nil {
		s.writeReportError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": string(status),
	})
}

func (s *Server) handleTamper(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var t models.Tamper
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	status, err := s.engine.HandleTamper(r.Context(), &t)
	if err != nil {
		s.writeReportError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": string(status),
	})
}

func (s *Server) handleBattery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var b models.Battery
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	status, err := s.engine.HandleBattery(r.Context(), &b)
	if err != nil {
		s.writeReportError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": string(status),
	})
}

func (s *Server) writeReportError(w http.ResponseWriter, err error) {
	if errors.Is(err, presence.ErrMissingDeviceID) {
		writeError(w, http.StatusBadRequest, "deviceId is required")
		return
	}
	writeError(w, http.StatusInternalServerError, "failed to process report")
}
