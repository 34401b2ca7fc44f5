package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (ACADEMY_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (ACADEMY_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	JWT         JWTConfig
	Redis       RedisConfig
	Checkout    CheckoutConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// JWTConfig configures bearer token verification.
type JWTConfig struct {
	Secret string `usage:"HS256 secret shared with the identity service (ACADEMY_JWT_SECRET or JWT_SECRET)"`
	Issuer string `default:"" usage:"Required iss claim; empty accepts any issuer"`
}

// RedisConfig configures the idempotency store. Idempotent checkout is off
// when URL is empty.
type RedisConfig struct {
	URL            string        `usage:"Redis URL, e.g. redis://localhost:6379/0 (ACADEMY_REDIS_URL or REDIS_URL)"`
	IdempotencyTTL time.Duration `default:"24h" usage:"How long idempotency keys are remembered" flag:"idempotency-ttl"`
}

// CheckoutConfig tunes the checkout orchestrator.
type CheckoutConfig struct {
	OrderNumberAttempts int `default:"3" usage:"Attempts to commit with a fresh order number after a collision" flag:"order-number-attempts"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"15m" usage:"Rate limit window duration"`
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

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "ACADEMY",
		Files:     []string{"config.yaml", "/etc/academy/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults(os.Getenv)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps the unprefixed variables hosting platforms set
// (DATABASE_URL, PORT, JWT_SECRET, REDIS_URL) onto empty settings.
func (c *Config) applyPlatformDefaults(getenv func(string) string) {
	fill := func(dst *string, name string) {
		if *dst == "" {
			*dst = getenv(name)
		}
	}
	fill(&c.DatabaseURL, "DATABASE_URL")
	fill(&c.JWT.Secret, "JWT_SECRET")
	fill(&c.Redis.URL, "REDIS_URL")
	if port := getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}

func (c *Config) validate() error {
	switch {
	case c.DatabaseURL == "":
		return errors.New("database URL is required: set ACADEMY_DATABASE_URL or DATABASE_URL")
	case c.JWT.Secret == "":
		return errors.New("JWT secret is required: set ACADEMY_JWT_SECRET or JWT_SECRET")
	case c.Checkout.OrderNumberAttempts < 1:
		return errors.Errorf("checkout order number attempts must be positive, got %d", c.Checkout.OrderNumberAttempts)
	case c.RateLimit.Max < 1 || c.RateLimit.Window <= 0:
		return errors.New("rate limit max and window must be positive")
	}
	return nil
}
