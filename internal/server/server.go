package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"hotel-security-backend/internal/auth"
	"hotel-security-backend/internal/database"
	"hotel-security-backend/internal/events"
	"hotel-security-backend/internal/presence"
)

// Server is the HTTP front door: device reports, admin endpoints, and the
// live event stream.
type Server struct {
	httpServer *http.Server
	addr       string
	config     Config

	store   database.Store
	engine  *presence.Engine
	hub     *events.Hub
	bus     events.Bus
	authSvc *auth.Service
}

// Config holds server configuration
type Config struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// DevicePIN is returned by the provisioning config endpoint.
	DevicePIN string
	// BatteryLowLevel is the threshold handed to devices at provisioning.
	BatteryLowLevel int
	// AdminRSSIThreshold is the default fence threshold applied when an
	// admin creates a room without one.
	AdminRSSIThreshold int
	// SSEKeepAlive is the ping interval on the event stream.
	SSEKeepAlive time.Duration
}

// DefaultConfig returns a default server configuration
func DefaultConfig() Config {
	return Config{
		Host:               "0.0.0.0",
		Port:               8080,
		ReadTimeout:        15 * time.Second,
		IdleTimeout:        60 * time.Second,
		DevicePIN:          "832504",
		BatteryLowLevel:    20,
		AdminRSSIThreshold: -70,
		SSEKeepAlive:       30 * time.Second,
	}
}

// New creates a new server instance
func New(
	cfg Config,
	store database.Store,
	engine *presence.Engine,
	hub *events.Hub,
	bus events.Bus,
	authSvc *auth.Service,
) *Server {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	mux := http.NewServeMux()

	server := &Server{
		addr:    addr,
		config:  cfg,
		store:   store,
		engine:  engine,
		hub:     hub,
		bus:     bus,
		authSvc: authSvc,
	}
	server.registerRoutes(mux)

	server.httpServer = &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: cfg.ReadTimeout,
		// WriteTimeout stays zero so the event stream can outlive it.
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return server
}

// Start starts the HTTP server and blocks until context is cancelled
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		log.Printf("Server starting on %s", s.addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Println("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		log.Println("Server shut down gracefully")
		return nil
	case err := <-errChan:
		return err
	}
}

// registerRoutes registers all API endpoints
func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/stats", s.handleStats)

	// Auth endpoints
	mux.HandleFunc("/api/auth/device-token", s.handleDeviceToken)
	mux.HandleFunc("/api/auth/login", s.handleLogin)

	// Device report endpoints
	mux.HandleFunc("/api/report/heartbeat", s.authSvc.Middleware(s.handleHeartbeat))
	mux.HandleFunc("/api/report/breach", s.authSvc.Middleware(s.handleBreach))
	mux.HandleFunc("/api/report/tamper", s.authSvc.Middleware(s.handleTamper))
	mux.HandleFunc("/api/report/battery", s.authSvc.Middleware(s.handleBattery))

	// Device management endpoints
	mux.HandleFunc("/api/devices/register", s.handleDeviceRegister)
	mux.HandleFunc("/api/devices/quick-add", s.authSvc.Middleware(s.handleDeviceQuickAdd))
	mux.HandleFunc("/api/devices", s.authSvc.Middleware(s.handleDeviceList))
	mux.HandleFunc("/api/devices/", s.authSvc.Middleware(s.handleDeviceOperations))

	// Room fence config endpoints
	mux.HandleFunc("/api/rooms", s.authSvc.Middleware(s.handleRoomUpsert))
	mux.HandleFunc("/api/config/", s.handleDeviceConfig)

	// Alert endpoints
	mux.HandleFunc("/api/alerts", s.authSvc.Middleware(s.handleAlertList))
	mux.HandleFunc("/api/alerts/", s.authSvc.Middleware(s.handleAlertOperations))

	// Live event stream
	mux.HandleFunc("/api/events/stream", s.handleEventStream)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service": "hotel-security-backend",
		"status":  "running",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := "ok"
	code := http.StatusOK
	if err := s.store.Ping(r.Context()); err != nil {
		log.Printf("Server: health check database error: %v", err)
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]interface{}{
		"status":      status,
		"subscribers": s.hub.SubscriberCount(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	counts, err := s.store.Counts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"devices":         counts.Devices,
		"alerts":          counts.Alerts,
		"breachedDevices": counts.BreachedDevices,
		"subscribers":     s.hub.SubscriberCount(),
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("Server: error encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
