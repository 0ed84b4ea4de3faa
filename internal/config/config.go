package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Auth     AuthConfig
	Status   StatusConfig
	Settings *Settings
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	// SQLitePath is the local ticket store. ":memory:" is accepted for tests.
	SQLitePath string
	// ReplicaDSN is the optional Postgres disaster-recovery target used by
	// cmd/replicate; the API service never touches it.
	ReplicaDSN    string
	MigrationsDir string
}

type RedisConfig struct {
	Enabled     bool
	Addr        string
	SnapshotTTL time.Duration
}

type KafkaConfig struct {
	Enabled  bool
	MockMode bool
	Brokers  []string
	Topics   TopicConfig
}

type TopicConfig struct {
	TicketCreated string
	TicketUpdated string
	TicketDeleted string
}

type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// StatusConfig carries the status enumeration as configuration rather than a
// hardcoded type: deployments with On Hold/Cancelled extend STATUS_CODES
// without a code change. The intake and delivered codes are singled out
// because insert defaults and earnings queries key on them.
type StatusConfig struct {
	Codes            []string
	DisplayOverrides map[string]string
	IntakeCode       string
	DeliveredCode    string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", ":8090"),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			SQLitePath:    getEnv("SQLITE_PATH", "ticketdesk.db"),
			ReplicaDSN:    getEnv("REPLICA_DSN", ""),
			MigrationsDir: getEnv("MIGRATIONS_DIR", "./migrations"),
		},
		Redis: RedisConfig{
			Enabled:     getEnvBool("REDIS_ENABLED", false),
			Addr:        getEnv("REDIS_ADDR", "localhost:6379"),
			SnapshotTTL: time.Duration(getEnvInt("REDIS_SNAPSHOT_TTL_SECONDS", 30)) * time.Second,
		},
		Kafka: KafkaConfig{
			Enabled:  getEnvBool("KAFKA_ENABLED", false),
			MockMode: getEnvBool("KAFKA_MOCK_MODE", false),
			Brokers:  []string{getEnv("KAFKA_BROKERS", "localhost:9092")},
			Topics: TopicConfig{
				TicketCreated: getEnv("KAFKA_TOPIC_TICKET_CREATED", "ticketdesk.ticket.created"),
				TicketUpdated: getEnv("KAFKA_TOPIC_TICKET_UPDATED", "ticketdesk.ticket.updated"),
				TicketDeleted: getEnv("KAFKA_TOPIC_TICKET_DELETED", "ticketdesk.ticket.deleted"),
			},
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", "ticketdesk-dev-secret"),
			TokenTTL:  time.Duration(getEnvInt("TOKEN_TTL_HOURS", 24)) * time.Hour,
		},
		Status: loadStatusConfig(),
		Settings: NewSettings(
			getEnvFloat("DEFAULT_TICKET_PRICE", 5.5),
			getEnv("COMPANY_NAME", "My Business"),
			getEnv("BATCH_PREFIX", "Batch-"),
		),
	}
}

func loadStatusConfig() StatusConfig {
	codes := splitList(getEnv("STATUS_CODES", "Intake,Return,Delivered"))

	// Format: "Code=Label;Code=Label". The default maps the stored "Return"
	// code to the "Ready to Deliver" label shown everywhere in the UI.
	overrides := make(map[string]string)
	for _, pair := range strings.Split(getEnv("STATUS_DISPLAY_OVERRIDES", "Return=Ready to Deliver"), ";") {
		code, label, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		code, label = strings.TrimSpace(code), strings.TrimSpace(label)
		if code != "" && label != "" {
			overrides[code] = label
		}
	}

	return StatusConfig{
		Codes:            codes,
		DisplayOverrides: overrides,
		IntakeCode:       getEnv("STATUS_INTAKE_CODE", "Intake"),
		DeliveredCode:    getEnv("STATUS_DELIVERED_CODE", "Delivered"),
	}
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}
