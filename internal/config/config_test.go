package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, StorageMemory, cfg.StorageDriver)
	assert.Equal(t, "https://etor.onrender.com/api", cfg.BackendURL)
	assert.Equal(t, 10*time.Second, cfg.BackendTimeout)
	assert.Equal(t, 30*time.Minute, cfg.SessionIdleTTL)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.False(t, cfg.KafkaEnabled())
}

func TestLoad_KafkaBrokers(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.KafkaEnabled())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"port", map[string]string{"STOREFRONT_HTTP_PORT": "0"}, "invalid HTTP port"},
		{"relative backend", map[string]string{"BACKEND_URL": "/api"}, "BACKEND_URL"},
		{"storage driver", map[string]string{"STORAGE_DRIVER": "postgres"}, "STORAGE_DRIVER"},
		{"retry waits", map[string]string{"BACKEND_RETRY_WAIT_MIN": "10s", "BACKEND_RETRY_WAIT_MAX": "1s"}, "exceeds"},
		{"idle ttl", map[string]string{"SESSION_IDLE_TTL": "0s"}, "SESSION_IDLE_TTL"},
		{"sample rate", map[string]string{"OTEL_SAMPLE_RATE": "2.0"}, "OTEL_SAMPLE_RATE"},
		{"insecure production", map[string]string{"ENVIRONMENT": "production"}, "SECURE_COOKIES"},
		{"wildcard cors in production", map[string]string{"ENVIRONMENT": "production", "SECURE_COOKIES": "true"}, "CORS_ALLOWED_ORIGINS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Load()

			assert.Nil(t, cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MalformedDuration(t *testing.T) {
	t.Setenv("CATALOG_TTL", "soon")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_ProductionWithExplicitOrigins(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("SECURE_COOKIES", "true")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://shop.az,https://admin.shop.az")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, []string{"https://shop.az", "https://admin.shop.az"}, cfg.CORSAllowedOrigins)
}
