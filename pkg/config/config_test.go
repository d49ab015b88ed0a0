package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Port    int           `env:"TEST_CFG_PORT" envDefault:"8080"`
	Backend string        `env:"TEST_CFG_BACKEND" envDefault:"http://localhost:9000"`
	Timeout time.Duration `env:"TEST_CFG_TIMEOUT" envDefault:"10s"`
	Origins []string      `env:"TEST_CFG_ORIGINS" envSeparator:","`
}

func TestLoad_Defaults(t *testing.T) {
	var cfg testConfig
	require.NoError(t, Load(&cfg))

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "http://localhost:9000", cfg.Backend)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.Empty(t, cfg.Origins)
}

func TestLoad_FromEnvVars(t *testing.T) {
	t.Setenv("TEST_CFG_PORT", "9090")
	t.Setenv("TEST_CFG_TIMEOUT", "2s")
	t.Setenv("TEST_CFG_ORIGINS", "https://a.az,https://b.az")

	var cfg testConfig
	require.NoError(t, Load(&cfg))

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 2*time.Second, cfg.Timeout)
	assert.Equal(t, []string{"https://a.az", "https://b.az"}, cfg.Origins)
}

func TestLoad_InvalidType(t *testing.T) {
	t.Setenv("TEST_CFG_PORT", "not-a-number")

	var cfg testConfig
	err := Load(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}
