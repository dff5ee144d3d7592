package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"hotel-security-backend/internal/database"
	"hotel-security-backend/internal/mqtt"
	"hotel-security-backend/internal/notify"
	"hotel-security-backend/internal/presence"
	"hotel-security-backend/pkg/config"
)

// The notifier is the delivery side of the system: it drains the
// notification job queue and runs the coarse offline scan. It is deployed
// separately from the API server so slow SMTP or webhook calls never share a
// process with the report path.
func main() {
	log.Println("Starting Hotel Security Notifier...")

	cfg := config.Load()

	// The queue is this process's input; without the broker there is
	// nothing to drain.
	mqttClient, err := mqtt.NewClient(mqtt.ClientConfig{
		Broker:   cfg.MQTTBroker,
		ClientID: cfg.MQTTClientID + "-notifier",
		Username: cfg.MQTTUsername,
		Password: cfg.MQTTPassword,
	})
	if err != nil {
		log.Fatalf("Failed to initialize MQTT client: %v", err)
	}
	defer mqttClient.Close()

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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	channels := buildChannels(cfg)
	if len(channels) == 0 {
		log.Println("Warning: no notification channels configured, jobs will be consumed but not delivered")
	}

	// === Job worker ===
	worker := notify.NewWorker(mqttClient.GetNativeClient(), cfg.MQTTTopicJobs, channels, notify.WorkerConfig{
		MaxRetries:   cfg.NotifyMaxRetries,
		RetryBackoff: cfg.NotifyRetryBackoff,
	})
	go func() {
		if err := worker.Start(ctx); err != nil {
			log.Fatalf("Worker failed: %v", err)
		}
	}()

	// === Offline scanner ===
	// Offline notifications from the scanner go straight to the channels;
	// queueing them back through the broker this process already drains
	// would only add a hop.
	dispatcher := notify.NewDispatcher(nil, notify.NewBreaker(notify.DefaultBreakerConfig()), channels)
	scanner := presence.NewOfflineScanner(db, dispatcher, presence.OfflineScannerConfig{
		Period: cfg.OfflineScanPeriod,
		Cutoff: cfg.OfflineCutoff,
	})
	go scanner.Start(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Printf("Received signal %v, shutting down...", sig)
	cancel()

	log.Println("Hotel Security Notifier stopped")
}

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
