// internal/config/config.go
//
// Environment configuration for the apple game server.
// Load() reads a .env file when present (missing file is fine) and then the
// process environment; every value has a development default.

package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds server settings.
type Config struct {
	Port         string        // PORT
	LogLevel     string        // LOG_LEVEL
	LogFormat    string        // LOG_FORMAT: json | console
	ClientOrigin string        // CLIENT_ORIGIN, allowed CORS origin
	JWTSecret    string        // JWT_SECRET, signs round tokens
	TokenTTL     time.Duration // ROUND_TOKEN_HOURS
	DatabasePath string        // DATABASE_PATH, empty disables the registry
	IdleTTL      time.Duration // ROUND_IDLE_TTL, how long finished rounds are kept
	SweepEvery   time.Duration // SWEEP_EVERY
	Production   bool          // APP_ENV=production: Secure, SameSite=None cookies
}

// Load reads .env (if any) and the environment.
func Load() Config {
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg("loaded .env")
	}
	return Config{
		Port:         GetEnv("PORT", "5175"),
		LogLevel:     GetEnv("LOG_LEVEL", "info"),
		LogFormat:    GetEnv("LOG_FORMAT", "json"),
		ClientOrigin: GetEnv("CLIENT_ORIGIN", "http://localhost:5173"),
		JWTSecret:    GetEnv("JWT_SECRET", "dev_secret_change_me"),
		TokenTTL:     time.Duration(envInt("ROUND_TOKEN_HOURS", 2)) * time.Hour,
		DatabasePath: lookupEnv("DATABASE_PATH", "./data/apple.db"),
		IdleTTL:      envDuration("ROUND_IDLE_TTL", 10*time.Minute),
		SweepEvery:   envDuration("SWEEP_EVERY", time.Minute),
		Production:   os.Getenv("APP_ENV") == "production",
	}
}

// GetEnv returns the value of k or def if unset/empty.
func GetEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// lookupEnv is GetEnv, except an explicitly empty variable stays empty.
func lookupEnv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok {
		return v
	}
	return def
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Warn().Str("key", k).Str("value", v).Msg("ignoring non-integer env value")
	}
	return def
}

func envDuration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
		log.Warn().Str("key", k).Str("value", v).Msg("ignoring invalid duration")
	}
	return def
}
