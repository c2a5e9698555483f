package server

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the premium backend.
type Config struct {
	DataDir        string
	BindAddress    string
	Port           int
	AdminKey       string   // admin endpoints stay locked when empty
	AllowedOrigins []string // CORS allowlist; "*" admits any origin
	LogLevel       string
	LogFormat      string
	StripeAPIKey   string
	WebhookSecret  string
	PriceID        string // recurring price for subscriptions
	StripeTimeout  time.Duration
}

// EntitlementsDir returns the directory where the entitlement database lives.
func (c *Config) EntitlementsDir() string {
	return filepath.Join(c.DataDir, "entitlements")
}

// LoadConfig loads configuration from environment variables.
// A .env file is loaded if present but not required.
func LoadConfig() (*Config, error) {
	// Best-effort .env loading (not required)
	_ = godotenv.Load()

	port, err := envOrDefaultInt("PORT", 4242)
	if err != nil {
		return nil, err
	}
	timeoutSeconds, err := envOrDefaultInt("STRIPE_TIMEOUT_SECONDS", 15)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DataDir:        envOrDefault("DATA_DIR", "/data"),
		BindAddress:    envOrDefault("BIND_ADDRESS", "0.0.0.0"),
		Port:           port,
		AdminKey:       strings.TrimSpace(os.Getenv("ADMIN_KEY")),
		AllowedOrigins: splitCSV(envOrDefault("ALLOWED_ORIGINS", "*")),
		LogLevel:       envOrDefault("LOG_LEVEL", "info"),
		LogFormat:      envOrDefault("LOG_FORMAT", "auto"),
		StripeAPIKey:   strings.TrimSpace(os.Getenv("STRIPE_SECRET_KEY")),
		WebhookSecret:  strings.TrimSpace(os.Getenv("STRIPE_WEBHOOK_SECRET")),
		PriceID:        strings.TrimSpace(os.Getenv("STRIPE_PRICE_ID")),
		StripeTimeout:  time.Duration(timeoutSeconds) * time.Second,
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var missing []string
	if c.StripeAPIKey == "" {
		missing = append(missing, "STRIPE_SECRET_KEY")
	}
	if c.WebhookSecret == "" {
		missing = append(missing, "STRIPE_WEBHOOK_SECRET")
	}
	if c.PriceID == "" {
		missing = append(missing, "STRIPE_PRICE_ID")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	if c.StripeTimeout <= 0 {
		return fmt.Errorf("STRIPE_TIMEOUT_SECONDS must be greater than 0")
	}
	return nil
}

func splitCSV(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) (int, error) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
		}
		return n, nil
	}
	return fallback, nil
}
