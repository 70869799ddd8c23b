package web

import (
	"time"

	"github.com/osm-versailles/internal/config"
)

// Config represents the web server configuration
type Config struct {
	Addr            string
	APIKey          string
	CacheTTL        time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a default configuration
func DefaultConfig() Config {
	return Config{
		Addr:            "0.0.0.0:8080",
		CacheTTL:        5 * time.Minute,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    60 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}
}

// ConfigFrom builds the server configuration from the application settings.
func ConfigFrom(cfg config.WebConfig) Config {
	c := DefaultConfig()
	c.Addr = cfg.Addr()
	c.APIKey = cfg.APIKey
	c.CacheTTL = cfg.CacheTTL
	return c
}
