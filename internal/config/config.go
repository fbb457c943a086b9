package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	BackendSandbox  = "sandbox"
	BackendPostgres = "postgres"
)

type Config struct {
	Port           string        `mapstructure:"PORT"`
	Env            string        `mapstructure:"ENV"`
	LogLevel       string        `mapstructure:"LOG_LEVEL"`
	Backend        string        `mapstructure:"BACKEND"`
	DatabaseURL    string        `mapstructure:"DATABASE_URL"`
	DBMaxConns     int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns     int32         `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins    []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS   float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int           `mapstructure:"RATE_LIMIT_BURST"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	OTLPEndpoint   string        `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	// Dashboard presentation and feed behaviour.
	Locale          string        `mapstructure:"LOCALE"`
	Currency        string        `mapstructure:"CURRENCY"`
	DateLayout      string        `mapstructure:"DATE_LAYOUT"`
	ItemsPerPage    int           `mapstructure:"ITEMS_PER_PAGE"`
	ExpansionPolicy string        `mapstructure:"EXPANSION_POLICY"`
	ResolutionMode  string        `mapstructure:"RESOLUTION_MODE"`
	FeedTimeout     time.Duration `mapstructure:"FEED_TIMEOUT"`
	EnabledFeeds    string        `mapstructure:"ENABLED_FEEDS"`
	SessionTTL      time.Duration `mapstructure:"SESSION_TTL"`
	MaxSessions     int           `mapstructure:"MAX_SESSIONS"`

	// Synthetic backend.
	SandboxSeed        int64         `mapstructure:"SANDBOX_SEED"`
	SandboxCustomers   int           `mapstructure:"SANDBOX_CUSTOMERS"`
	SandboxLatency     time.Duration `mapstructure:"SANDBOX_LATENCY"`
	SandboxFailureRate float64       `mapstructure:"SANDBOX_FAILURE_RATE"`
}

var keys = []string{
	"PORT", "ENV", "LOG_LEVEL", "BACKEND", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "REQUEST_TIMEOUT",
	"OTEL_EXPORTER_OTLP_ENDPOINT",
	"LOCALE", "CURRENCY", "DATE_LAYOUT", "ITEMS_PER_PAGE", "EXPANSION_POLICY",
	"RESOLUTION_MODE", "FEED_TIMEOUT", "ENABLED_FEEDS", "SESSION_TTL", "MAX_SESSIONS",
	"SANDBOX_SEED", "SANDBOX_CUSTOMERS", "SANDBOX_LATENCY", "SANDBOX_FAILURE_RATE",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("BACKEND", BackendSandbox)
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("LOCALE", "es-MX")
	v.SetDefault("CURRENCY", "MXN")
	v.SetDefault("DATE_LAYOUT", "02 January 2006")
	v.SetDefault("ITEMS_PER_PAGE", 5)
	v.SetDefault("EXPANSION_POLICY", "preserve")
	v.SetDefault("RESOLUTION_MODE", "indirect")
	v.SetDefault("FEED_TIMEOUT", "10s")
	v.SetDefault("ENABLED_FEEDS", "all")
	v.SetDefault("SESSION_TTL", "30m")
	v.SetDefault("MAX_SESSIONS", 1000)
	v.SetDefault("SANDBOX_SEED", 1)
	v.SetDefault("SANDBOX_CUSTOMERS", 25)
	v.SetDefault("SANDBOX_LATENCY", "0s")
	v.SetDefault("SANDBOX_FAILURE_RATE", 0)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is usable. Option values owned by
// the dashboard package (locale, feeds, policies) are checked when the engine
// is built.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendSandbox:
		if c.IsProduction() {
			return fmt.Errorf("BACKEND=sandbox is not allowed in production")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when BACKEND is %q", BackendPostgres)
		}
	default:
		return fmt.Errorf("BACKEND must be %q or %q, got %q", BackendSandbox, BackendPostgres, c.Backend)
	}

	if c.ItemsPerPage < 1 {
		return fmt.Errorf("ITEMS_PER_PAGE must be positive, got %d", c.ItemsPerPage)
	}
	if c.MaxSessions < 1 {
		return fmt.Errorf("MAX_SESSIONS must be positive, got %d", c.MaxSessions)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive, got %s", c.SessionTTL)
	}
	if c.FeedTimeout < 0 || c.RequestTimeout < 0 || c.SandboxLatency < 0 {
		return fmt.Errorf("timeouts and latency must not be negative")
	}
	if c.SandboxFailureRate < 0 || c.SandboxFailureRate > 1 {
		return fmt.Errorf("SANDBOX_FAILURE_RATE must be between 0 and 1, got %v", c.SandboxFailureRate)
	}
	if c.SandboxCustomers < 1 {
		return fmt.Errorf("SANDBOX_CUSTOMERS must be positive, got %d", c.SandboxCustomers)
	}
	return nil
}
