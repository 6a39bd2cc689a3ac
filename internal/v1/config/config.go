package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds validated environment configuration.
type Config struct {
	// Listening port for both the websocket and the HTTP read surface.
	Port string

	// Match-history store path (sqlite file).
	DBPath string

	// Session tuning. Stored as durations; the env vars are whole seconds.
	PingInterval     time.Duration
	RoomExpiry       time.Duration
	ReconnectTimeout time.Duration
	TurnDuration     time.Duration

	// Per-player game_action ceiling inside a sliding one-second window.
	MaxActionsPerSecond int

	// Optional variables with defaults
	LogLevel        string
	DevelopmentMode bool
	AllowedOrigins  string

	// Rate Limits (ulule/limiter formatted, e.g. "100-M")
	RateLimitAPI  string
	RateLimitWsIP string
}

// ValidateEnv validates all recognised environment variables and returns a
// Config object. Returns an error listing every invalid variable.
func ValidateEnv() (*Config, error) {
	cfg := &Config{}
	var errs []string

	// PORT (valid port number, defaults to 8000)
	cfg.Port = getEnvOrDefault("PORT", "8000")
	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("PORT must be a valid port number between 1 and 65535 (got '%s')", cfg.Port))
	}

	// DB_PATH (match-history sqlite file)
	cfg.DBPath = getEnvOrDefault("DB_PATH", "/data/gamehistory.db")

	// Timing knobs, all whole seconds.
	cfg.PingInterval = envSeconds("PING_INTERVAL", 30, &errs)
	cfg.RoomExpiry = envSeconds("ROOM_EXPIRY", 3600, &errs)
	cfg.ReconnectTimeout = envSeconds("RECONNECT_TIMEOUT", 120, &errs)
	cfg.TurnDuration = envSeconds("TURN_DURATION", 90, &errs)

	// MAX_ACTIONS_PER_SECOND (positive integer, defaults to 10)
	maxActions := getEnvOrDefault("MAX_ACTIONS_PER_SECOND", "10")
	if n, err := strconv.Atoi(maxActions); err != nil || n < 1 {
		errs = append(errs, fmt.Sprintf("MAX_ACTIONS_PER_SECOND must be a positive integer (got '%s')", maxActions))
	} else {
		cfg.MaxActionsPerSecond = n
	}

	// Optional: LOG_LEVEL (defaults to "info")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	cfg.DevelopmentMode = os.Getenv("DEVELOPMENT_MODE") == "true"
	cfg.AllowedOrigins = os.Getenv("ALLOWED_ORIGINS")

	// Rate Limits (Defaults: M = Minute, H = Hour)
	cfg.RateLimitAPI = getEnvOrDefault("RATE_LIMIT_API", "300-M")
	cfg.RateLimitWsIP = getEnvOrDefault("RATE_LIMIT_WS_IP", "60-M")

	if len(errs) > 0 {
		return nil, fmt.Errorf("environment validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return cfg, nil
}

// envSeconds reads a whole-second duration variable, appending to errs when
// the value is present but not a positive integer.
func envSeconds(key string, def int, errs *[]string) time.Duration {
	raw := getEnvOrDefault(key, strconv.Itoa(def))
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		*errs = append(*errs, fmt.Sprintf("%s must be a positive number of seconds (got '%s')", key, raw))
		return time.Duration(def) * time.Second
	}
	return time.Duration(n) * time.Second
}

// getEnvOrDefault returns the value of the environment variable or a default value if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// AllowedOriginList splits ALLOWED_ORIGINS into a slice, falling back to the
// provided defaults when unset.
func (c *Config) AllowedOriginList(defaults []string) []string {
	if c.AllowedOrigins == "" {
		return defaults
	}
	parts := strings.Split(c.AllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	if len(origins) == 0 {
		return defaults
	}
	return origins
}
