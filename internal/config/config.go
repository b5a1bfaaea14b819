package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends.
const (
	StoreBackendDynamo   = "dynamodb"
	StoreBackendPostgres = "postgres"
	StoreBackendMemory   = "memory"
)

// Dispatch modes for inbound webhooks.
const (
	DispatchSync  = "sync"
	DispatchQueue = "queue"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string

	StoreBackend string
	DatabaseURL  string

	DispatchMode    string
	UseMemoryQueue  bool
	WorkerCount     int
	InboundQueueURL string

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	ClientsTable       string
	ReservationsTable  string
	ConversationsTable string
	MessagesTable      string
	ClientPhoneIndex   string
	ReservationIndex   string

	MediaArchiveBucket string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
	DedupeTTL     time.Duration

	// Staff alert email
	EmailProvider     string
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	StaffAlertEmail   string

	AdminJWTSecret     string
	CORSAllowedOrigins []string
	BusinessTimezone   string
	RateLimitRPS       float64
	RateLimitBurst     int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", ""), "/"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		StoreBackend: strings.ToLower(strings.TrimSpace(getEnv("STORE_BACKEND", StoreBackendDynamo))),
		DatabaseURL:  getEnv("DATABASE_URL", ""),

		DispatchMode:    strings.ToLower(strings.TrimSpace(getEnv("DISPATCH_MODE", DispatchQueue))),
		UseMemoryQueue:  getEnvAsBool("USE_MEMORY_QUEUE", false),
		WorkerCount:     getEnvAsInt("WORKER_COUNT", 2),
		InboundQueueURL: getEnv("INBOUND_QUEUE_URL", ""),

		TwilioAccountSID: getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber: getEnv("TWILIO_FROM_NUMBER", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		ClientsTable:       getEnv("DYNAMO_CLIENTS_TABLE", "clientes"),
		ReservationsTable:  getEnv("DYNAMO_RESERVATIONS_TABLE", "reservas"),
		ConversationsTable: getEnv("DYNAMO_CONVERSATIONS_TABLE", "conversations"),
		MessagesTable:      getEnv("DYNAMO_MESSAGES_TABLE", "messages"),
		ClientPhoneIndex:   getEnv("DYNAMO_CLIENT_PHONE_INDEX", "phone-index"),
		ReservationIndex:   getEnv("DYNAMO_RESERVATION_CLIENT_INDEX", "clientId-date-index"),

		MediaArchiveBucket: getEnv("MEDIA_ARCHIVE_BUCKET", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
		DedupeTTL:     getEnvAsDuration("DEDUPE_TTL", 24*time.Hour),

		EmailProvider:     strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "sendgrid"))),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "VATOS ALFA"),
		StaffAlertEmail:   getEnv("STAFF_ALERT_EMAIL", ""),

		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
		BusinessTimezone:   getEnv("BUSINESS_TIMEZONE", ""),
		RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 40),
	}
}

// Location resolves BusinessTimezone, falling back to the server's local zone.
func (c *Config) Location() *time.Location {
	if c == nil || strings.TrimSpace(c.BusinessTimezone) == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(strings.TrimSpace(c.BusinessTimezone))
	if err != nil {
		return time.Local
	}
	return loc
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	raw := strings.TrimSpace(getEnv(key, ""))
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
