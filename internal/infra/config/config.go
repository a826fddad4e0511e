package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"rentme-reservations/internal/domain/shared/money"
)

const (
	DriverMemory   = "memory"
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
)

// Config aggregates application configuration values loaded from environment variables.
type Config struct {
	Env           string
	HTTPAddr      string
	LogLevel      string
	CORSOrigins   []string
	StorageDriver string

	MongoURI    string
	MongoDB     string
	PostgresDSN string

	KafkaBrokers     []string
	KafkaTopicPrefix string
	KafkaGroupID     string
	PropertyTopic    string
	EventSource      string

	IdempotencyTTL     time.Duration
	OutboxPollInterval time.Duration
	RetryBackoff       []time.Duration
	TxRetryBackoff     []time.Duration
	LockTTL            time.Duration
	LockBackoff        []time.Duration

	Currency          string
	CommissionRate    money.BasisPoints
	OwnerPenaltyFixed int64
	OwnerPenaltyRate  money.BasisPoints

	SweepSchedule    string
	SweepEnabled     bool
	PaymentsURL      string
	PaymentsTimeout  time.Duration
	PropertyFixtures string
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(getEnv("ENV_FILE", ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}
	return FromEnv()
}

// FromEnv parses configuration from the current environment only.
func FromEnv() (Config, error) {
	cfg := Config{
		Env:              getEnv("APP_ENV", "dev"),
		HTTPAddr:         getEnv("HTTP_ADDR", ":8080"),
		LogLevel:         strings.ToLower(getEnv("LOG_LEVEL", "info")),
		StorageDriver:    strings.ToLower(getEnv("STORAGE_DRIVER", DriverMemory)),
		MongoURI:         os.Getenv("MONGO_URI"),
		MongoDB:          getEnv("MONGO_DB", "reservations"),
		PostgresDSN:      os.Getenv("POSTGRES_DSN"),
		KafkaTopicPrefix: getEnv("KAFKA_TOPIC_PREFIX", ""),
		KafkaGroupID:     getEnv("KAFKA_GROUP_ID", "reservations"),
		PropertyTopic:    getEnv("PROPERTY_TOPIC", "property.events.v1"),
		EventSource:      getEnv("EVENT_SOURCE", "app://rentme-reservations"),
		Currency:         strings.ToUpper(getEnv("CURRENCY", "RUB")),
		SweepSchedule:    getEnv("SWEEP_SCHEDULE", "@every 15m"),
		PaymentsURL:      os.Getenv("PAYMENTS_URL"),
		PropertyFixtures: os.Getenv("PROPERTY_FIXTURES"),
	}
	cfg.KafkaBrokers = parseListEnv("KAFKA_BROKERS")
	cfg.CORSOrigins = parseListEnv("CORS_ORIGINS")

	var err error
	if cfg.IdempotencyTTL, err = parseDurationEnv("IDEMP_TTL", 168*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.OutboxPollInterval, err = parseDurationEnv("OUTBOX_POLL_INTERVAL", 500*time.Millisecond); err != nil {
		return Config{}, err
	}
	if cfg.LockTTL, err = parseDurationEnv("LOCK_TTL", 10*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.PaymentsTimeout, err = parseDurationEnv("PAYMENTS_TIMEOUT", 5*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.RetryBackoff, err = parseDurationListEnv("RETRY_BACKOFF", "1s,5s,30s"); err != nil {
		return Config{}, err
	}
	if cfg.TxRetryBackoff, err = parseDurationListEnv("TX_RETRY_BACKOFF", "10ms,50ms,200ms"); err != nil {
		return Config{}, err
	}
	if cfg.LockBackoff, err = parseDurationListEnv("LOCK_BACKOFF", "20ms,100ms,250ms,500ms"); err != nil {
		return Config{}, err
	}

	if cfg.SweepEnabled, err = parseBoolEnv("SWEEP_ENABLED", true); err != nil {
		return Config{}, err
	}

	commission, err := parseIntEnv("COMMISSION_RATE_BP", 1500)
	if err != nil {
		return Config{}, err
	}
	cfg.CommissionRate = money.BasisPoints(commission)
	if cfg.OwnerPenaltyFixed, err = parseIntEnv("OWNER_PENALTY_FIXED", 0); err != nil {
		return Config{}, err
	}
	penaltyRate, err := parseIntEnv("OWNER_PENALTY_RATE_BP", 1000)
	if err != nil {
		return Config{}, err
	}
	cfg.OwnerPenaltyRate = money.BasisPoints(penaltyRate)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.StorageDriver {
	case DriverMemory:
	case DriverMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required for STORAGE_DRIVER=%s", c.StorageDriver)
		}
	case DriverPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required for STORAGE_DRIVER=%s", c.StorageDriver)
		}
	default:
		return fmt.Errorf("invalid STORAGE_DRIVER %q", c.StorageDriver)
	}
	if err := c.CommissionRate.Validate(); err != nil {
		return fmt.Errorf("invalid COMMISSION_RATE_BP: %w", err)
	}
	if err := c.OwnerPenaltyRate.Validate(); err != nil {
		return fmt.Errorf("invalid OWNER_PENALTY_RATE_BP: %w", err)
	}
	if c.OwnerPenaltyFixed < 0 {
		return fmt.Errorf("invalid OWNER_PENALTY_FIXED: must be non-negative")
	}
	if len(c.Currency) != 3 {
		return fmt.Errorf("invalid CURRENCY %q", c.Currency)
	}
	return nil
}

// Dev reports whether human readable output is preferred.
func (c Config) Dev() bool {
	return c.Env == "dev" || c.Env == "local"
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseListEnv(key string) []string {
	var out []string
	for _, raw := range strings.Split(os.Getenv(key), ",") {
		if v := strings.TrimSpace(raw); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", key, err)
	}
	return d, nil
}

func parseDurationListEnv(key, def string) ([]time.Duration, error) {
	var out []time.Duration
	for _, raw := range strings.Split(getEnv(key, def), ",") {
		val := strings.TrimSpace(raw)
		if val == "" {
			continue
		}
		d, err := time.ParseDuration(val)
		if err != nil {
			return nil, fmt.Errorf("invalid %s component %q: %w", key, raw, err)
		}
		out = append(out, d)
	}
	return out, nil
}

func parseIntEnv(key string, def int64) (int64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s integer: %w", key, err)
	}
	return v, nil
}

func parseBoolEnv(key string, def bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "t", "true", "yes", "y", "on":
		return true, nil
	case "0", "f", "false", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid %s boolean: %q", key, raw)
	}
}
