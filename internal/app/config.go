package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (PIZZA_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (PIZZA_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	APIKeyPepper string `usage:"HMAC pepper for API key hashing (PIZZA_API_KEY_PEPPER)" flag:"api-key-pepper"`
	Pricing      PricingConfig
	Loyalty      LoyaltyConfig
	Assignment   AssignmentConfig
	Sweep        SweepConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// PricingConfig holds the pricing multipliers applied to ingredient costs.
type PricingConfig struct {
	MarginPercent int `default:"40" usage:"Margin percentage applied to ingredient cost" flag:"margin-percent"`
	VATPercent    int `default:"9"  usage:"VAT percentage applied after margin" flag:"vat-percent"`
}

// LoyaltyConfig controls the loyalty reward program and the birthday
// discount's day boundary.
type LoyaltyConfig struct {
	Threshold int    `default:"10" usage:"Pizzas required for a loyalty reward" flag:"loyalty-threshold"`
	Timezone  string `default:"Local" usage:"IANA timezone for the birthday-day boundary" flag:"loyalty-timezone"`
}

// AssignmentConfig controls courier assignment.
type AssignmentConfig struct {
	Cooldown time.Duration `default:"30m" usage:"Courier cooldown between assignments" flag:"courier-cooldown"`
}

// SweepConfig controls the background delivery-status sweep.
type SweepConfig struct {
	Schedule string `default:"@every 1m" usage:"Cron schedule for the delivered-status sweep" flag:"sweep-schedule"`
}

// RateLimitConfig controls the per-client rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config
// files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "PIZZA",
		Files:     []string{"config.yaml", "/etc/pizzeria/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set PIZZA_DATABASE_URL or DATABASE_URL")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables that
// use standard names like DATABASE_URL and PORT to the PIZZA_-prefixed
// configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
