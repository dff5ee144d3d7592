package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"hotel-security-backend/internal/auth"
	"hotel-security-backend/internal/database"
	"hotel-security-backend/internal/events"
	"hotel-security-backend/internal/mqtt"
	"hotel-security-backend/internal/notify"
	"hotel-security-backend/internal/presence"
	"hotel-security-backend/internal/server"
	"hotel-security-backend/pkg/config"
)

func main() {
	log.Println("Starting Hotel Security Backend...")

	// Load configuration
	cfg := config.Load()

	// Initialize ClickHouse database
	db, err := database.NewClickHouseDB(
		cfg.ClickHouseAddr,
		cfg.ClickHouseDB,
		cfg.ClickHouseUser,
		cfg.ClickHousePass,
	)
	if err != nil {
		log.Fatalf("Failed to initialize ClickHouse: %v", err)
	}
	defer db.Close()

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// === Event fan-out ===
	hub := events.NewHub(events.HubConfig{QueueSize: cfg.SubscriberQueueSize})
	defer hub.Close()

	// The MQTT broker carries events between instances and jobs to the
	// notifier. When it is unreachable the server runs in local mode:
	// events fan out in-process only and notifications go straight to the
	// channels.
	var bus events.Bus = hub
	var queue notify.JobPublisher

	log.Println("Connecting to MQTT broker...")
	mqttClient, err := mqtt.NewClient(mqtt.ClientConfig{
		Broker:   cfg.MQTTBroker,
		ClientID: cfg.MQTTClientID,
		Username: cfg.MQTTUsername,
		Password: cfg.MQTTPassword,
	})
	if err != nil {
		log.Printf("Warning: MQTT broker unavailable, running in local mode: %v", err)
	} else {
		defer mqttClient.Close()

		brokerBus, err := events.NewBrokerBus(mqttClient.GetNativeClient(), hub, cfg.MQTTTopicEvents)
		if err != nil {
			log.Printf("Warning: event relay unavailable, running in local mode: %v", err)
		} else {
			bus = brokerBus
		}

		queue = notify.NewQueue(mqttClient.GetNativeClient(), cfg.MQTTTopicJobs)
	}

	// === Notification dispatcher ===
	channels := buildChannels(cfg)
	breaker := notify.NewBreaker(notify.DefaultBreakerConfig())
	dispatcher := notify.NewDispatcher(queue, breaker, channels)

	// === Presence engine ===
	evaluator := presence.NewEvaluator(presence.EvaluatorConfig{
		RetroactiveGap:       cfg.RetroactiveGap,
		DefaultRSSIThreshold: cfg.DefaultRSSIThreshold,
	})
	engine := presence.NewEngine(db, evaluator, bus, dispatcher)

	watchdog := presence.NewWatchdog(db, engine, presence.WatchdogConfig{
		Period: cfg.WatchdogPeriod,
		Cutoff: cfg.SilenceCutoff,
	})
	go watchdog.Start(ctx)

	// === Auth ===
	authSvc := auth.NewService(cfg.JWTSecret, time.Duration(cfg.JWTExpirationMins)*time.Minute)

	// === HTTP server ===
	srvConfig := server.DefaultConfig()
	srvConfig.Host = cfg.HTTPHost
	srvConfig.Port = cfg.HTTPPort
	srvConfig.DevicePIN = cfg.DevicePIN
	srvConfig.BatteryLowLevel = cfg.BatteryLowLevel
	srvConfig.SSEKeepAlive = cfg.SSEKeepAlive

	srv := server.New(srvConfig, db, engine, hub, bus, authSvc)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start(ctx)
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Printf("Received signal %v, shutting down...", sig)
		cancel()
		if err := <-errChan; err != nil {
			log.Printf("Server error during shutdown: %v", err)
		}
	case err := <-errChan:
		if err != nil {
			log.Fatalf("Server error: %v", err)
		}
	}

	log.Println("Hotel Security Backend stopped")
}

// buildChannels assembles the configured direct notification channels.
func buildChannels(cfg *config.Config) []notify.Channel {
	var channels []notify.Channel

	if cfg.SMTPEnabled {
		var recipients []string
		for _, addr := range strings.Split(cfg.AlertEmailRecipients, ",") {
			if addr = strings.TrimSpace(addr); addr != "" {
				recipients = append(recipients, addr)
			}
		}
		channels = append(channels, notify.NewEmailChannel(notify.EmailConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFromEmail,
			To:       recipients,
		}))
	}

	if cfg.SlackEnabled {
		channels = append(channels, notify.NewSlackChannel(notify.SlackConfig{
			WebhookURL: cfg.SlackWebhookURL,
		}))
	}

	return channels
}
