// Package config loads the server configuration from the environment.
package config

import (
	"errors"
	"os"
	"strconv"
	"time"
)

const devJWTSecret = "dev-secret-change-me"

// Config is the server configuration.
type Config struct {
	Env string

	HTTP struct {
		Addr            string
		ShutdownTimeout time.Duration
		CORSOrigin      string
	}
	DB struct {
		Path string
	}
	Auth struct {
		JWTSecret string
		TokenTTL  time.Duration
	}
	Log struct {
		Level  string
		Format string
	}
	Seed struct {
		Admin         bool
		AdminEmail    string
		AdminPassword string
		SiteName      string
	}
}

// Load reads the configuration. It fails outside development when no
// JWT secret is set.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.Env = getEnv("APP_ENV", "development")

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")
	cfg.HTTP.ShutdownTimeout = parseDuration(getEnv("SHUTDOWN_TIMEOUT", "10s"), 10*time.Second)
	cfg.HTTP.CORSOrigin = getEnv("CORS_ORIGIN", "*")

	cfg.DB.Path = getEnv("DB_PATH", "./data/clinic.db")

	cfg.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	cfg.Auth.TokenTTL = parseDuration(getEnv("TOKEN_TTL", "24h"), 24*time.Hour)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "text")

	cfg.Seed.Admin = parseBool(getEnv("SEED_ADMIN", "false"))
	cfg.Seed.AdminEmail = getEnv("ADMIN_EMAIL", "admin@localhost")
	cfg.Seed.AdminPassword = os.Getenv("ADMIN_PASSWORD")
	cfg.Seed.SiteName = getEnv("SEED_SITE", "Sede principal")

	if cfg.Auth.JWTSecret == "" {
		if !cfg.IsDevelopment() {
			return nil, errors.New("JWT_SECRET is required outside development")
		}
		cfg.Auth.JWTSecret = devJWTSecret
	}
	if cfg.Seed.Admin && len(cfg.Seed.AdminPassword) < 8 {
		return nil, errors.New("ADMIN_PASSWORD must be at least 8 characters when SEED_ADMIN is set")
	}

	return cfg, nil
}

// IsDevelopment reports whether the server runs with development defaults.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(s)
	return err == nil && b
}
