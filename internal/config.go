package internal

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/DukeRupert/podforge/internal/billing"
	"github.com/DukeRupert/podforge/internal/domain"
	"github.com/DukeRupert/podforge/internal/ratelimit"
	"github.com/DukeRupert/podforge/internal/storage"
	"github.com/DukeRupert/podforge/internal/worker"
)

type Config struct {
	Env         string
	Port        int
	LogLevel    string
	DatabaseUrl string

	// Public origin used for checkout and portal return links
	BaseURL string

	// Header carrying the user id set by the authenticating proxy
	IdentityHeader string

	// Storage Configuration
	StorageProvider string // "local" or "r2"

	// Local Storage (development)
	LocalStoragePath string // Base directory for local file storage
	LocalStorageURL  string // Base URL for accessing local files

	// R2 Storage (production)
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicURL       string // Optional custom domain URL

	// Largest accepted upload in bytes
	MaxUploadSize int64

	// Worker Configuration
	WorkerEnabled      bool
	WorkerConcurrency  int
	WorkerPollInterval time.Duration
	WorkerJobTimeout   time.Duration

	// Generation provider ("mock" is the only provider today)
	GenerationProvider string

	// Rate limiting: one fixed window per action kind, plus the random delay
	// added to every retry instant
	RateLimits     ratelimit.Rules
	RetryJitterMax time.Duration

	// Stripe Billing Configuration
	// These are required when billing is enabled in production.
	// In development, billing endpoints answer 503 if these are empty.
	StripeSecretKey     string // Stripe API secret key (sk_test_... or sk_live_...)
	StripeWebhookSecret string // Stripe webhook signing secret (whsec_...)

	// Stripe Price IDs for subscription plans
	StripeProMonthlyPriceID        string
	StripeProYearlyPriceID         string
	StripeEnterpriseMonthlyPriceID string
	StripeEnterpriseYearlyPriceID  string

	// Metrics endpoint authentication
	// If both are empty, the /metrics endpoint will be unprotected (not recommended)
	MetricsUsername string
	MetricsPassword string
}

func NewConfig() (*Config, error) {
	// Load .env file if it exists (ignored in production)
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Base URL defaults to localhost for development
		BaseURL:        getEnv("BASE_URL", "http://localhost:8080"),
		IdentityHeader: getEnv("IDENTITY_HEADER", "X-User-ID"),

		// Storage defaults to local filesystem for development
		StorageProvider:  getEnv("STORAGE_PROVIDER", storage.ProviderLocal),
		LocalStoragePath: getEnv("LOCAL_STORAGE_PATH", "./storage"),
		LocalStorageURL:  getEnv("LOCAL_STORAGE_URL", "http://localhost:8080/files"),

		// R2 configuration (production only)
		R2AccountID:       getEnv("R2_ACCOUNT_ID", ""),
		R2AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
		R2SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2BucketName:      getEnv("R2_BUCKET_NAME", ""),
		R2PublicURL:       getEnv("R2_PUBLIC_URL", ""),

		MaxUploadSize: int64(getEnvInt("MAX_UPLOAD_MB", 25)) << 20,

		// Worker defaults
		WorkerEnabled:      getEnvBool("WORKER_ENABLED", true),
		WorkerConcurrency:  getEnvInt("WORKER_CONCURRENCY", 2),
		WorkerPollInterval: getEnvDuration("WORKER_POLL_INTERVAL", 5*time.Second),
		WorkerJobTimeout:   getEnvDuration("WORKER_JOB_TIMEOUT", 5*time.Minute),

		GenerationProvider: getEnv("GENERATION_PROVIDER", "mock"),

		RetryJitterMax: getEnvDuration("RETRY_JITTER_MAX", ratelimit.DefaultJitterMax),

		// Stripe billing (optional, endpoints are disabled without these)
		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),

		// Stripe price IDs (optional, required when billing is enabled)
		StripeProMonthlyPriceID:        getEnv("STRIPE_PRO_MONTHLY_PRICE_ID", ""),
		StripeProYearlyPriceID:         getEnv("STRIPE_PRO_YEARLY_PRICE_ID", ""),
		StripeEnterpriseMonthlyPriceID: getEnv("STRIPE_ENTERPRISE_MONTHLY_PRICE_ID", ""),
		StripeEnterpriseYearlyPriceID:  getEnv("STRIPE_ENTERPRISE_YEARLY_PRICE_ID", ""),

		// Metrics authentication
		MetricsUsername: getEnv("METRICS_USERNAME", ""),
		MetricsPassword: getEnv("METRICS_PASSWORD", ""),
	}

	rules, err := loadRateLimits()
	if err != nil {
		return nil, err
	}
	cfg.RateLimits = rules

	// Required
	cfg.DatabaseUrl = os.Getenv("DATABASE_URL")
	if cfg.DatabaseUrl == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// BillingEnabled reports whether Stripe credentials are configured.
func (c *Config) BillingEnabled() bool {
	return c.StripeSecretKey != "" && c.StripeWebhookSecret != ""
}

// Prices returns the configured Stripe price ids.
func (c *Config) Prices() billing.PriceConfig {
	return billing.PriceConfig{
		ProMonthlyPriceID:        c.StripeProMonthlyPriceID,
		ProYearlyPriceID:         c.StripeProYearlyPriceID,
		EnterpriseMonthlyPriceID: c.StripeEnterpriseMonthlyPriceID,
		EnterpriseYearlyPriceID:  c.StripeEnterpriseYearlyPriceID,
	}
}

// Storage returns the local and R2 storage settings.
func (c *Config) Storage() (storage.LocalConfig, storage.R2Config) {
	return storage.LocalConfig{
			BasePath: c.LocalStoragePath,
			BaseURL:  c.LocalStorageURL,
		}, storage.R2Config{
			AccountID:       c.R2AccountID,
			AccessKeyID:     c.R2AccessKeyID,
			SecretAccessKey: c.R2SecretAccessKey,
			BucketName:      c.R2BucketName,
			PublicURL:       c.R2PublicURL,
		}
}

// Worker returns the job worker settings on top of worker.DefaultConfig.
func (c *Config) Worker() worker.Config {
	wc := worker.DefaultConfig()
	wc.Concurrency = c.WorkerConcurrency
	wc.PollInterval = c.WorkerPollInterval
	wc.JobTimeout = c.WorkerJobTimeout
	return wc
}

func (c *Config) validate() error {
	// Validate storage configuration
	if c.StorageProvider == storage.ProviderR2 {
		if c.R2AccountID == "" {
			return fmt.Errorf("R2_ACCOUNT_ID is required when STORAGE_PROVIDER is 'r2'")
		}
		if c.R2AccessKeyID == "" {
			return fmt.Errorf("R2_ACCESS_KEY_ID is required when STORAGE_PROVIDER is 'r2'")
		}
		if c.R2SecretAccessKey == "" {
			return fmt.Errorf("R2_SECRET_ACCESS_KEY is required when STORAGE_PROVIDER is 'r2'")
		}
		if c.R2BucketName == "" {
			return fmt.Errorf("R2_BUCKET_NAME is required when STORAGE_PROVIDER is 'r2'")
		}
	} else if c.StorageProvider != storage.ProviderLocal {
		return fmt.Errorf("STORAGE_PROVIDER must be either 'local' or 'r2', got: %s", c.StorageProvider)
	}

	if c.GenerationProvider != "mock" {
		return fmt.Errorf("GENERATION_PROVIDER must be 'mock', got: %s", c.GenerationProvider)
	}

	if c.MaxUploadSize <= 0 {
		return fmt.Errorf("MAX_UPLOAD_MB must be positive")
	}
	if c.RetryJitterMax < 0 {
		return fmt.Errorf("RETRY_JITTER_MAX must not be negative, got %v", c.RetryJitterMax)
	}

	// A webhook secret without an API key (or the reverse) is a half-configured deploy
	if (c.StripeSecretKey == "") != (c.StripeWebhookSecret == "") {
		return fmt.Errorf("STRIPE_SECRET_KEY and STRIPE_WEBHOOK_SECRET must be set together")
	}

	if c.WorkerEnabled {
		if err := c.Worker().Validate(); err != nil {
			return fmt.Errorf("invalid worker configuration: %w", err)
		}
	}
	return nil
}

// loadRateLimits starts from the defaults and applies RATE_LIMIT_<KIND>
// overrides, e.g. RATE_LIMIT_AUDIO=3/2m.
func loadRateLimits() (ratelimit.Rules, error) {
	rules := ratelimit.DefaultRules()

	kinds := append([]domain.ActionKind{}, domain.ActionKinds...)
	kinds = append(kinds, ratelimit.KindBilling)

	for _, kind := range kinds {
		key := "RATE_LIMIT_" + strings.ToUpper(string(kind))
		value := os.Getenv(key)
		if value == "" {
			continue
		}
		rule, err := ratelimit.ParseRule(value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		rules[kind] = rule
	}
	return rules, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
