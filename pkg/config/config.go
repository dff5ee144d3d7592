package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// HTTP server
	HTTPHost string
	HTTPPort int

	// ClickHouse Configuration
	ClickHouseAddr string
	ClickHouseDB   string
	ClickHouseUser string
	ClickHousePass string

	// MQTT Configuration (shared event backbone + notification job queue)
	MQTTBroker   string
	MQTTClientID string
	MQTTUsername string
	MQTTPassword string

	MQTTTopicEvents string
	MQTTTopicJobs   string

	// Auth
	JWTSecret         string
	JWTExpirationMins int

	// SMTP
	SMTPEnabled          bool
	SMTPHost             string
	SMTPPort             int
	SMTPUsername         string
	SMTPPassword         string
	SMTPFromEmail        string
	AlertEmailRecipients string

	// Slack
	SlackEnabled    bool
	SlackWebhookURL string

	// Presence engine thresholds
	WatchdogPeriod       time.Duration // scan period for the silence watchdog
	SilenceCutoff        time.Duration // watchdog: ok device silent longer than this -> breach
	RetroactiveGap       time.Duration // heartbeat path: gap covered by a late report -> breach
	OfflineScanPeriod    time.Duration // worker-side stale scan period
	OfflineCutoff        time.Duration // worker-side stale scan: ok device silent -> offline
	DefaultRSSIThreshold int
	BatteryLowLevel      int

	// Event fan-out
	SSEKeepAlive        time.Duration
	SubscriberQueueSize int

	// Notification retry policy
	NotifyMaxRetries   int
	NotifyRetryBackoff time.Duration

	// Device provisioning
	DevicePIN string

	// App
	AppEnv string
	Debug  bool
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		HTTPHost: getEnv("HTTP_HOST", "0.0.0.0"),
		HTTPPort: getEnvInt("HTTP_PORT", 8080),

		ClickHouseAddr: getEnv("CLICKHOUSE_ADDR", "localhost:9000"),
		ClickHouseDB:   getEnv("CLICKHOUSE_DB", "hotel_security"),
		ClickHouseUser: getEnv("CLICKHOUSE_USER", "default"),
		ClickHousePass: getEnv("CLICKHOUSE_PASS", ""),

		MQTTBroker:   getEnv("MQTT_BROKER", "tcp://localhost:1883"),
		MQTTClientID: getEnv("MQTT_CLIENT_ID", "hotel-security-backend"),
		MQTTUsername: getEnv("MQTT_USERNAME", ""),
		MQTTPassword: getEnv("MQTT_PASSWORD", ""),

		MQTTTopicEvents: getEnv("MQTT_TOPIC_EVENTS", "hotel/events/broadcast"),
		MQTTTopicJobs:   getEnv("MQTT_TOPIC_JOBS", "hotel/notify/jobs"),

		JWTSecret:         getEnv("JWT_SECRET", "dev-secret-key-change-in-prod"),
		JWTExpirationMins: getEnvInt("JWT_EXPIRATION_MINUTES", 43200),

		SMTPEnabled:          getEnvBool("SMTP_ENABLED", false),
		SMTPHost:             getEnv("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:             getEnvInt("SMTP_PORT", 587),
		SMTPUsername:         getEnv("SMTP_USERNAME", ""),
		SMTPPassword:         getEnv("SMTP_PASSWORD", ""),
		SMTPFromEmail:        getEnv("SMTP_FROM_EMAIL", "alerts@hotel-security.com"),
		AlertEmailRecipients: getEnv("ALERT_EMAIL_RECIPIENTS", ""),

		SlackEnabled:    getEnvBool("SLACK_ENABLED", false),
		SlackWebhookURL: getEnv("SLACK_WEBHOOK_URL", ""),

		WatchdogPeriod:       getEnvDuration("WATCHDOG_PERIOD", 5*time.Second),
		SilenceCutoff:        getEnvDuration("SILENCE_CUTOFF", 12*time.Second),
		RetroactiveGap:       getEnvDuration("RETROACTIVE_GAP", 15*time.Second),
		OfflineScanPeriod:    getEnvDuration("OFFLINE_SCAN_PERIOD", 30*time.Second),
		OfflineCutoff:        getEnvDuration("OFFLINE_CUTOFF", 40*time.Second),
		DefaultRSSIThreshold: getEnvInt("DEFAULT_RSSI_THRESHOLD", -80),
		BatteryLowLevel:      getEnvInt("BATTERY_LOW_LEVEL", 20),

		SSEKeepAlive:        getEnvDuration("SSE_KEEPALIVE", 30*time.Second),
		SubscriberQueueSize: getEnvInt("SUBSCRIBER_QUEUE_SIZE", 64),

		NotifyMaxRetries:   getEnvInt("NOTIFY_MAX_RETRIES", 3),
		NotifyRetryBackoff: getEnvDuration("NOTIFY_RETRY_BACKOFF", 60*time.Second),

		DevicePIN: getEnv("DEVICE_PIN", "832504"),

		AppEnv: getEnv("APP_ENV", "development"),
		Debug:  getEnvBool("DEBUG", true),
	}
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Warning: failed to parse %s as int, using default: %v", key, err)
		return defaultValue
	}
	return intValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		log.Printf("Warning: failed to parse %s as bool, using default: %v", key, err)
		return defaultValue
	}
	return boolValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Warning: failed to parse %s as duration, using default: %v", key, err)
		return defaultValue
	}
	return d
}
