package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

type Config struct {
	ServerPort string

	API struct {
		BaseURL string
		Timeout time.Duration
	}

	State struct {
		Backend     string
		Dir         string
		DatabaseURL string
	}

	Gemini struct {
		APIKey string
		Model  string
	}

	ChatPollInterval time.Duration
}

func Load() (*Config, error) {
	// Load .env file if it exists (useful for local dev)
	_ = godotenv.Load()

	cfg := &Config{
		ServerPort: getenv("SERVER_PORT", "8090"),
	}

	cfg.API.BaseURL = getenv("API_BASE_URL", "http://localhost:8080/api/v1")

	timeout, err := durationEnv("API_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.API.Timeout = timeout

	cfg.State.Backend = getenv("STATE_BACKEND", BackendFile)
	cfg.State.Dir = getenv("STATE_DIR", ".shopsphere")
	cfg.State.DatabaseURL = os.Getenv("DATABASE_URL")

	switch cfg.State.Backend {
	case BackendFile:
	case BackendPostgres:
		if cfg.State.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL must be set when STATE_BACKEND=%s", BackendPostgres)
		}
	default:
		return nil, fmt.Errorf("unknown STATE_BACKEND %q", cfg.State.Backend)
	}

	// An empty key disables the generator; descriptions fall back to placeholders.
	cfg.Gemini.APIKey = os.Getenv("GEMINI_API_KEY")
	cfg.Gemini.Model = getenv("GEMINI_MODEL", "gemini-1.5-flash")

	poll, err := durationEnv("CHAT_POLL_INTERVAL", 3*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.ChatPollInterval = poll

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}
