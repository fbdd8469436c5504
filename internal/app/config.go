package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/layer-3/storefront/core"
)

type Config struct {
	Env       string // Environment (dev, staging, prod) (default: dev)
	LogLevel  string // Log level (debug, info, warn, error) (default: info)
	LogFormat string // Log format (json, text) (default: json)
	Port      int    // HTTP server port (default: 9000)

	DefaultDomain    string        // Domain used when a request carries no Host (default: localhost:3000)
	ChainID          string        // Chain id embedded in challenges (default: 1)
	Statement        string        // Human readable statement embedded in challenges
	Issuer           string        // Issuer claim for access tokens (default: storefront-auth)
	AccessTTL        time.Duration // Access token lifetime (default: 1h)
	SigningKeyFile   string        // Optional: PEM encoded EC P-256 key; ephemeral when unset
	ReplayProtection bool          // Enforce challenge expiry and single-use nonces (default: false)

	DatabaseFile string // Optional: SQLite database file; identities are kept in memory when unset
	RedisURL     string // Optional: enables the Redis nonce store and login event stream

	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)
	TrustedProxies      []string      // Proxy IPs/CIDRs allowed to set X-Forwarded-For (default: none)

	RateLimitRequests int           // Auth requests per window per client IP (default: 30, 0 disables)
	RateLimitWindow   time.Duration // Rate limit window (default: 1m)
	RateLimitBurst    int           // Burst above the sustained rate (default: 10)
}

func LoadConfig() Config {
	return Config{
		Env:       getEnvOrDefault("ENV", "dev"),
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "json"),
		Port:      getEnvIntOrDefault("PORT", 9000),

		DefaultDomain:    getEnvOrDefault("AUTH_DEFAULT_DOMAIN", core.DefaultDomain),
		ChainID:          getEnvOrDefault("AUTH_CHAIN_ID", core.DefaultChainID),
		Statement:        getEnvOrDefault("AUTH_STATEMENT", core.DefaultStatement),
		Issuer:           getEnvOrDefault("AUTH_ISSUER", "storefront-auth"),
		AccessTTL:        getEnvDurationOrDefault("AUTH_ACCESS_TTL", time.Hour),
		SigningKeyFile:   os.Getenv("AUTH_SIGNING_KEY_FILE"),
		ReplayProtection: getEnvBool("AUTH_REPLAY_PROTECTION"),

		DatabaseFile: os.Getenv("DATABASE_FILE"),
		RedisURL:     os.Getenv("REDIS_URL"),

		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		TrustedProxies:      getEnvList("TRUSTED_PROXIES"),

		RateLimitRequests: getEnvIntOrDefault("RATELIMIT_AUTH_REQUESTS", 30),
		RateLimitWindow:   getEnvDurationOrDefault("RATELIMIT_AUTH_WINDOW", time.Minute),
		RateLimitBurst:    getEnvIntOrDefault("RATELIMIT_AUTH_BURST", 10),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are seconds
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}

// getEnvList splits a comma separated value, dropping empty items
func getEnvList(key string) []string {
	var items []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func getEnvBool(key string) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
