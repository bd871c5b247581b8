package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STATE_BACKEND", "")
	t.Setenv("API_BASE_URL", "")
	t.Setenv("CHAT_POLL_INTERVAL", "")
	t.Setenv("API_TIMEOUT", "")
	t.Setenv("SERVER_PORT", "")

	cfg, err := Load()
	assert.NoError(t, err)
	assert.Equal(t, "8090", cfg.ServerPort)
	assert.Equal(t, "http://localhost:8080/api/v1", cfg.API.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.API.Timeout)
	assert.Equal(t, BackendFile, cfg.State.Backend)
	assert.Equal(t, 3*time.Second, cfg.ChatPollInterval)
}

func TestLoad_PostgresRequiresDatabaseURL(t *testing.T) {
	t.Setenv("STATE_BACKEND", BackendPostgres)
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("STATE_BACKEND", "")
	t.Setenv("CHAT_POLL_INTERVAL", "soon")

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "CHAT_POLL_INTERVAL")
}

func TestLoad_UnknownBackend(t *testing.T) {
	t.Setenv("STATE_BACKEND", "redis")

	_, err := Load()
	assert.Error(t, err)
}
