package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"hotel-security-backend/internal/models"
)

// handleEventStream serves the live event feed as Server-Sent Events. Each
// envelope goes out as a "message" event; a "ping" goes out on the keep-alive
// interval so proxies do not reap idle connections.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	sub := s.hub.Subscribe()
	defer sub.Close()

	keepAlive := time.NewTicker(s.config.SSEKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			name := "message"
			if ev.Type == models.EventConnected {
				name = models.EventConnected
			}
			if err := writeSSE(w, name, ev); err != nil {
				log.Printf("Server: error writing event stream: %v", err)
				return
			}
			flusher.Flush()

		case <-keepAlive.C:
			ping := models.Event{
				Type:      models.EventPing,
				Data:      map[string]interface{}{},
				Timestamp: time.Now().UTC(),
			}
			if err := writeSSE(w, models.EventPing, ping); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, name string, ev models.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, payload)
	return err
}
