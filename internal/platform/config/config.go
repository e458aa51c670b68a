package config

import (
	"os"
	"strings"
	"time"

	strutil "passport-id/pkg/platform/strings"
)

// DefaultClients mirrors the clients that shipped with the passport flow.
var DefaultClients = []string{"dashboard", "passports", "authority", "auth-test"}

// Server captures HTTP server level configuration.
type Server struct {
	Addr        string
	Environment string
	// AdminToken enables /admin/clients when a database is configured.
	AdminToken string

	Scan     ScanConfig
	Session  SessionConfig
	Clients  ClientsConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
}

// ScanConfig points at the external scan/lock service and tunes polling.
type ScanConfig struct {
	BaseURL        string
	RequestTimeout time.Duration
	PollInterval   time.Duration
	// PollTimeout bounds the scan window; zero disables the bound.
	PollTimeout time.Duration
	// AuthorizeEndpoint receives the final allow/deny redirect.
	AuthorizeEndpoint string
	// BreakerThreshold consecutive upstream faults open the scan circuit for
	// BreakerCooldown.
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

// SessionConfig controls in-memory authorization session lifetime.
type SessionConfig struct {
	IdleTTL         time.Duration
	CleanupInterval time.Duration
}

// ClientsConfig holds the static client allowlist and the cache TTL used when
// the allowlist comes from the database.
type ClientsConfig struct {
	Allowlist []string
	CacheTTL  time.Duration
}

// DatabaseConfig holds the postgres connection used for the oauth_client table.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds redis connection settings for the client allowlist cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig enables audit publishing when Brokers is set.
type KafkaConfig struct {
	Brokers         string
	AuditTopic      string
	Acks            string
	Retries         int
	DeliveryTimeout time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	return Server{
		Addr:        stringEnv("PASSPORT_ID_ADDR", ":8080"),
		Environment: stringEnv("ENVIRONMENT", "development"),
		AdminToken:  os.Getenv("ADMIN_API_TOKEN"),
		Scan: ScanConfig{
			BaseURL:           strings.TrimRight(stringEnv("SCAN_SERVICE_URL", "http://localhost:3000"), "/"),
			RequestTimeout:    durationEnv("SCAN_REQUEST_TIMEOUT", 10*time.Second),
			PollInterval:      durationEnv("SCAN_POLL_INTERVAL", 3*time.Second),
			PollTimeout:       durationEnv("SCAN_POLL_TIMEOUT", 5*time.Minute),
			AuthorizeEndpoint: stringEnv("AUTHORIZE_ENDPOINT", "/api/authorize"),
			BreakerThreshold:  5,
			BreakerCooldown:   durationEnv("SCAN_BREAKER_COOLDOWN", 10*time.Second),
		},
		Session: SessionConfig{
			IdleTTL:         durationEnv("SESSION_IDLE_TTL", 15*time.Minute),
			CleanupInterval: durationEnv("SESSION_CLEANUP_INTERVAL", time.Minute),
		},
		Clients: ClientsConfig{
			Allowlist: listEnv("CLIENT_ALLOWLIST", DefaultClients),
			CacheTTL:  durationEnv("CLIENT_CACHE_TTL", 5*time.Minute),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 1,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:         os.Getenv("KAFKA_BROKERS"),
			AuditTopic:      stringEnv("AUDIT_TOPIC", "passport-id.audit"),
			Acks:            stringEnv("KAFKA_ACKS", "all"),
			Retries:         3,
			DeliveryTimeout: durationEnv("KAFKA_DELIVERY_TIMEOUT", 30*time.Second),
		},
	}
}

func stringEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// durationEnv keeps the fallback when the variable is unset or unparseable.
func durationEnv(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

func listEnv(key string, fallback []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return append([]string(nil), fallback...)
	}
	return strutil.SplitList(raw)
}
