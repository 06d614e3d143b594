package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Rate provider
	ProviderURL  string
	Pairs        string // comma-separated, e.g. "EUR/USD,GBP/USD"
	HistoryYears int
	PollInterval time.Duration

	// Alerting
	AlertCooldown time.Duration

	// Infrastructure
	RedisAddr     string
	RedisPassword string
	SQLitePath    string
	ListenAddr    string
	MetricsAddr   string

	// Email delivery (optional; alerts fall back to log delivery)
	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string
	SMTPFrom string

	// Generic webhook delivery (optional)
	WebhookURL string

	// Auth
	SessionTTL time.Duration
	TOTPIssuer string

	LogLevel string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		ProviderURL:  getEnv("PROVIDER_URL", "https://api.frankfurter.app"),
		Pairs:        getEnv("PAIRS", "EUR/USD"),
		HistoryYears: getEnvInt("HISTORY_YEARS", 10),
		PollInterval: getEnvDuration("POLL_INTERVAL", 5*time.Minute),

		AlertCooldown: getEnvDuration("ALERT_COOLDOWN", time.Hour),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SQLitePath:    getEnv("SQLITE_PATH", "data/fxmonitor.db"),
		ListenAddr:    getEnv("LISTEN_ADDR", ":8080"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),

		SMTPHost: getEnv("SMTP_HOST", ""),
		SMTPPort: getEnvInt("SMTP_PORT", 587),
		SMTPUser: getEnv("SMTP_USER", ""),
		SMTPPass: getEnv("SMTP_PASS", ""),
		SMTPFrom: getEnv("SMTP_FROM", ""),

		WebhookURL: getEnv("WEBHOOK_URL", ""),

		SessionTTL: getEnvDuration("SESSION_TTL", 24*time.Hour),
		TOTPIssuer: getEnv("TOTP_ISSUER", "fxmonitor"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// ParsePairs splits the Pairs string into normalized "BASE/QUOTE" pairs.
// Invalid entries are skipped with a warning rather than failing startup.
func (c *Config) ParsePairs() []string {
	parts := strings.Split(c.Pairs, ",")
	pairs := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		halves := strings.Split(p, "/")
		if len(halves) != 2 || len(halves[0]) != 3 || len(halves[1]) != 3 {
			log.Printf("[config] skipping invalid pair: %q", p)
			continue
		}
		pairs = append(pairs, p)
	}
	return pairs
}

// EmailEnabled reports whether SMTP delivery is fully configured.
func (c *Config) EmailEnabled() bool {
	return c.SMTPHost != "" && c.SMTPFrom != ""
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %s", key, v, fallback)
		return fallback
	}
	return d
}
