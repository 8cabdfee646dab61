package config_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cerbyonvault/vaultclient/client"
	"github.com/cerbyonvault/vaultclient/internal/config"
)

func TestDefaults(t *testing.T) {
	cfg, err := config.Load()

	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000/api", cfg.APIURL)
	assert.Equal(t, client.DefaultMargin, cfg.Margin)
	assert.Equal(t, client.DefaultRefreshTimeout, cfg.RefreshTimeout)
	assert.Equal(t, config.StoreFile, cfg.Store)
	assert.Equal(t, "default", cfg.Profile)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "127.0.0.1:8080", cfg.ConsoleAddr)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("VAULT_API_URL", "https://vault.example.com/api")
	t.Setenv("VAULT_MARGIN", "30s")
	t.Setenv("VAULT_REFRESH_TIMEOUT", "2s")
	t.Setenv("VAULT_STORE", "redis")
	t.Setenv("VAULT_REDIS_ADDR", "cache:6379")
	t.Setenv("VAULT_REDIS_DB", "3")
	t.Setenv("VAULT_PROFILE", "work")
	t.Setenv("VAULT_LOG_LEVEL", "debug")

	cfg, err := config.Load()

	require.NoError(t, err)
	assert.Equal(t, "https://vault.example.com/api", cfg.APIURL)
	assert.Equal(t, 30*time.Second, cfg.Margin)
	assert.Equal(t, 2*time.Second, cfg.RefreshTimeout)
	assert.Equal(t, config.StoreRedis, cfg.Store)
	assert.Equal(t, "cache:6379", cfg.RedisAddr)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, "work", cfg.Profile)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Len(t, cfg.ClientOptions(), 2)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"zero margin", map[string]string{"VAULT_MARGIN": "0s"}},
		{"negative margin", map[string]string{"VAULT_MARGIN": "-1s"}},
		{"empty api url", map[string]string{"VAULT_API_URL": " "}},
		{"unknown store", map[string]string{"VAULT_STORE": "keychain"}},
		{"gorm without path", map[string]string{"VAULT_STORE": "gorm"}},
		{"gae without project", map[string]string{"VAULT_STORE": "gae"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := config.Load()

			assert.True(t, errors.Is(err, config.ErrInvalidConfig), "got %v", err)
		})
	}
}
