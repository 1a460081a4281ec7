// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"billing-service/internal/pkg/jwt"
)

type AppConfig struct {
	Environment         string        `env:"ENVIRONMENT" envDefault:"development"`
	HTTPPort            string        `env:"HTTP_PORT" envDefault:"8080"`
	CORSAllowedOrigins  []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	ShutdownTimeout     time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
	CompensationTimeout time.Duration `env:"COMPENSATION_TIMEOUT" envDefault:"30s"`

	Database DatabaseConfig
	Redis    RedisConfig
	Stripe   StripeConfig
	Auth     AuthConfig
	Billing  BillingConfig
}

type DatabaseConfig struct {
	URL            string        `env:"DATABASE_URL,required"`
	MaxConns       int32         `env:"DB_MAX_CONNS" envDefault:"10"`
	MinConns       int32         `env:"DB_MIN_CONNS" envDefault:"2"`
	ConnectRetries int           `env:"DB_CONNECT_RETRIES" envDefault:"5"`
	RetryInterval  time.Duration `env:"DB_RETRY_INTERVAL" envDefault:"2s"`
	RunMigrations  bool          `env:"DB_RUN_MIGRATIONS" envDefault:"true"`
}

// RedisConfig is optional; an empty address list disables Redis.
type RedisConfig struct {
	Addresses []string `env:"REDIS_ADDRESSES" envSeparator:","`
	Password  string   `env:"REDIS_PASSWORD"`
	DB        int      `env:"REDIS_DB" envDefault:"0"`
	PoolSize  int      `env:"REDIS_POOL_SIZE" envDefault:"10"`
}

type StripeConfig struct {
	SecretKey     string `env:"STRIPE_SECRET_KEY"`
	WebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`
}

type AuthConfig struct {
	JWTSecret        string `env:"AUTH_JWT_SECRET"`
	JWTPublicKeyPath string `env:"AUTH_JWT_PUBLIC_KEY_PATH"`
	Issuer           string `env:"AUTH_JWT_ISSUER"`
	Audience         string `env:"AUTH_JWT_AUDIENCE" envDefault:"authenticated"`
}

type BillingConfig struct {
	WebhookMaxEventAge time.Duration `env:"WEBHOOK_MAX_EVENT_AGE" envDefault:"24h"`
	WebhookDedupeTTL   time.Duration `env:"WEBHOOK_DEDUPE_TTL" envDefault:"48h"`
	WebhookClaimLease  time.Duration `env:"WEBHOOK_CLAIM_LEASE" envDefault:"2m"`
	CheckoutRateLimit  int           `env:"CHECKOUT_RATE_LIMIT" envDefault:"10"`
	DefaultPlanName    string        `env:"BILLING_DEFAULT_PLAN_NAME" envDefault:"Pro"`
	HistoryLimit       int64         `env:"BILLING_HISTORY_LIMIT" envDefault:"100"`
	CatalogCacheTTL    time.Duration `env:"CATALOG_CACHE_TTL" envDefault:"5m"`
}

// Load reads an optional .env file and parses the environment into AppConfig.
func Load() (*AppConfig, error) {
	// .env is optional outside local development
	_ = godotenv.Load()

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadAuth parses only the environment and auth settings, for tooling that
// never touches the database or the processor.
func LoadAuth() (*AppConfig, error) {
	_ = godotenv.Load()

	var cfg AppConfig
	if err := env.Parse(&cfg.Auth); err != nil {
		return nil, fmt.Errorf("parse auth environment: %w", err)
	}
	cfg.Environment = os.Getenv("ENVIRONMENT")
	return &cfg, nil
}

// Validate checks settings that env tags cannot express.
func (c *AppConfig) Validate() error {
	var errs []error
	if c.Stripe.SecretKey == "" {
		errs = append(errs, errors.New("STRIPE_SECRET_KEY is required"))
	}
	if c.Stripe.WebhookSecret == "" {
		errs = append(errs, errors.New("STRIPE_WEBHOOK_SECRET is required"))
	}
	if c.Auth.JWTSecret == "" && c.Auth.JWTPublicKeyPath == "" {
		errs = append(errs, errors.New("one of AUTH_JWT_SECRET or AUTH_JWT_PUBLIC_KEY_PATH is required"))
	}
	if c.Billing.WebhookMaxEventAge <= 0 {
		errs = append(errs, errors.New("WEBHOOK_MAX_EVENT_AGE must be positive"))
	}
	if c.Billing.HistoryLimit <= 0 || c.Billing.HistoryLimit > 100 {
		errs = append(errs, errors.New("BILLING_HISTORY_LIMIT must be between 1 and 100"))
	}
	return errors.Join(errs...)
}

// IsProduction reports whether the service runs against live keys.
func (c *AppConfig) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// JWT converts the auth section into verifier settings.
func (c *AppConfig) JWT() jwt.Config {
	return jwt.Config{
		Secret:   c.Auth.JWTSecret,
		PubPath:  c.Auth.JWTPublicKeyPath,
		Issuer:   c.Auth.Issuer,
		Audience: c.Auth.Audience,
	}
}
