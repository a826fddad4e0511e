package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentme-reservations/internal/domain/shared/money"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, DriverMemory, cfg.StorageDriver)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 168*time.Hour, cfg.IdempotencyTTL)
	assert.Equal(t, money.BasisPoints(1500), cfg.CommissionRate)
	assert.Equal(t, "RUB", cfg.Currency)
	assert.Equal(t, []time.Duration{time.Second, 5 * time.Second, 30 * time.Second}, cfg.RetryBackoff)
	assert.True(t, cfg.SweepEnabled)
	assert.True(t, cfg.Dev())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("STORAGE_DRIVER", "Mongo")
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("LOCK_BACKOFF", "5ms, 10ms")
	t.Setenv("COMMISSION_RATE_BP", "1200")
	t.Setenv("SWEEP_ENABLED", "off")
	t.Setenv("CURRENCY", "eur")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, DriverMongo, cfg.StorageDriver)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, []time.Duration{5 * time.Millisecond, 10 * time.Millisecond}, cfg.LockBackoff)
	assert.Equal(t, money.BasisPoints(1200), cfg.CommissionRate)
	assert.Equal(t, "EUR", cfg.Currency)
	assert.False(t, cfg.SweepEnabled)
	assert.False(t, cfg.Dev())
}

func TestFromEnvErrorsNameTheKey(t *testing.T) {
	cases := map[string]map[string]string{
		"IDEMP_TTL":             {"IDEMP_TTL": "soon"},
		"TX_RETRY_BACKOFF":      {"TX_RETRY_BACKOFF": "10ms,later"},
		"COMMISSION_RATE_BP":    {"COMMISSION_RATE_BP": "20000"},
		"OWNER_PENALTY_RATE_BP": {"OWNER_PENALTY_RATE_BP": "x"},
		"STORAGE_DRIVER":        {"STORAGE_DRIVER": "sqlite"},
		"POSTGRES_DSN":          {"STORAGE_DRIVER": "postgres"},
		"SWEEP_ENABLED":         {"SWEEP_ENABLED": "maybe"},
	}
	for key, env := range cases {
		t.Run(key, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := FromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}
