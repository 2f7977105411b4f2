// Package config defines the service configuration tree, loaded from YAML and
// environment variables by pkg/config.
package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	pkgconfig "github.com/lewisedginton/present_ponder/pkg/config"
	"github.com/lewisedginton/present_ponder/pkg/logger"
)

// AppConfig holds all application configuration
type AppConfig struct {
	// Service configuration
	ServiceName string `env:"SERVICE_NAME" yaml:"service_name" default:"present-ponder"`
	Version     string `env:"VERSION" yaml:"version" default:"dev"`
	Environment string `env:"ENVIRONMENT" yaml:"environment" default:"development"`

	HTTP        pkgconfig.HTTPServerConfig `yaml:"http"`
	Logging     LoggingConfig              `yaml:"logging"`
	Guest       GuestConfig                `yaml:"guest"`
	Store       StoreConfig                `yaml:"store"`
	Recommender RecommenderConfig          `yaml:"recommender"`
	Auth        AuthConfig                 `yaml:"auth"`
	Security    SecurityConfig             `yaml:"security"`
	Health      HealthConfig               `yaml:"health"`
	Metrics     pkgconfig.MetricsConfig    `yaml:"metrics"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL" yaml:"level" default:"info"`
	Format string `env:"LOG_FORMAT" yaml:"format" default:"json"`
}

// GuestConfig selects where guest sessions live and how long browsers are kept in memory.
type GuestConfig struct {
	Backend   string        `env:"GUEST_BACKEND" yaml:"backend" default:"local"` // "memory", "local", "s3" or "redis"
	Freshness time.Duration `env:"GUEST_FRESHNESS" yaml:"freshness" default:"24h"`

	LocalDir string `env:"GUEST_LOCAL_DIR" yaml:"local_dir" default:"./data/guest"`

	S3Bucket  string `env:"GUEST_S3_BUCKET" yaml:"s3_bucket"`
	S3Prefix  string `env:"GUEST_S3_PREFIX" yaml:"s3_prefix"`
	S3Region  string `env:"GUEST_S3_REGION" yaml:"s3_region"`
	S3Profile string `env:"GUEST_S3_PROFILE" yaml:"s3_profile"`

	RedisURL    string        `env:"GUEST_REDIS_URL" yaml:"redis_url"`
	RedisPrefix string        `env:"GUEST_REDIS_PREFIX" yaml:"redis_prefix" default:"present-ponder:guest:"`
	RedisTTL    time.Duration `env:"GUEST_REDIS_TTL" yaml:"redis_ttl" default:"48h"`

	// BrowserIdleTimeout is how long an untouched browser session stays in memory.
	BrowserIdleTimeout time.Duration `env:"BROWSER_IDLE_TIMEOUT" yaml:"browser_idle_timeout" default:"2h"`
	SweepInterval      time.Duration `env:"BROWSER_SWEEP_INTERVAL" yaml:"sweep_interval" default:"10m"`
}

// StoreConfig selects the persistent store for account data.
type StoreConfig struct {
	Backend     string                   `env:"STORE_BACKEND" yaml:"backend" default:"postgres"` // "memory", "postgres" or "supabase"
	Postgres    pkgconfig.DatabaseConfig `yaml:"postgres"`
	AutoMigrate bool                     `env:"STORE_AUTO_MIGRATE" yaml:"auto_migrate" default:"true"`
	SupabaseURL string                   `env:"SUPABASE_URL" yaml:"supabase_url"`
	SupabaseKey string                   `env:"SUPABASE_KEY" yaml:"-"`
}

// RecommenderConfig configures the external recommendation service client.
type RecommenderConfig struct {
	BaseURL           string        `env:"RECOMMENDER_URL" yaml:"base_url" default:"http://localhost:8000"`
	Timeout           time.Duration `env:"RECOMMENDER_TIMEOUT" yaml:"timeout" default:"60s"`
	Location          string        `env:"RECOMMENDER_LOCATION" yaml:"location" default:"United Kingdom"`
	Count             int           `env:"RECOMMENDER_COUNT" yaml:"count" default:"4"`
	RequestsPerSecond float64       `env:"RECOMMENDER_RPS" yaml:"requests_per_second" default:"5"`
	Burst             int           `env:"RECOMMENDER_BURST" yaml:"burst" default:"10"`
}

// AuthConfig configures bearer token verification.
type AuthConfig struct {
	JWTSecret string        `env:"AUTH_JWT_SECRET" yaml:"-" required:"true"`
	Issuer    string        `env:"AUTH_JWT_ISSUER" yaml:"issuer"`
	Audience  string        `env:"AUTH_JWT_AUDIENCE" yaml:"audience"`
	Leeway    time.Duration `env:"AUTH_JWT_LEEWAY" yaml:"leeway" default:"30s"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" yaml:"cors_allowed_origins" default:"http://localhost:3000,http://localhost:8080"`
	MaxRequestSize     int64    `env:"MAX_REQUEST_SIZE" yaml:"max_request_size" default:"1048576"` // 1MB default
	SecureCookies      bool     `env:"SECURE_COOKIES" yaml:"secure_cookies" default:"false"`
}

// HealthConfig holds health check configuration
type HealthConfig struct {
	Timeout          time.Duration `env:"HEALTH_TIMEOUT" yaml:"timeout" default:"5s"`
	FailureThreshold int           `env:"HEALTH_FAILURE_THRESHOLD" yaml:"failure_threshold" default:"3"`
	// CheckRecommender adds the recommendation service's /health to readiness.
	CheckRecommender bool `env:"HEALTH_CHECK_RECOMMENDER" yaml:"check_recommender" default:"false"`
}

var (
	guestBackends = []string{"memory", "local", "s3", "redis"}
	storeBackends = []string{"memory", "postgres", "supabase"}
)

// Validate validates the configuration and returns an error if invalid
func (c AppConfig) Validate() error {
	var result error

	if err := (pkgconfig.CommonConfig{LogLevel: c.Logging.Level, LogFormat: c.Logging.Format}).Validate(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := c.HTTP.Validate(); err != nil {
		result = multierror.Append(result, err)
	}
	if c.HTTP.WriteTimeout() <= c.Recommender.Timeout {
		result = multierror.Append(result, fmt.Errorf("http write timeout (%s) must exceed the recommender timeout (%s)",
			c.HTTP.WriteTimeout(), c.Recommender.Timeout))
	}
	if err := c.Metrics.Validate(); err != nil {
		result = multierror.Append(result, err)
	}

	if !slices.Contains(guestBackends, c.Guest.Backend) {
		result = multierror.Append(result, fmt.Errorf("guest backend must be one of %v, got %q", guestBackends, c.Guest.Backend))
	}
	if c.Guest.Freshness <= 0 {
		result = multierror.Append(result, fmt.Errorf("guest freshness must be greater than 0"))
	}
	switch c.Guest.Backend {
	case "s3":
		if c.Guest.S3Bucket == "" {
			result = multierror.Append(result, fmt.Errorf("guest s3_bucket is required for the s3 backend"))
		}
	case "redis":
		if c.Guest.RedisURL == "" {
			result = multierror.Append(result, fmt.Errorf("guest redis_url is required for the redis backend"))
		}
	}
	if c.Guest.BrowserIdleTimeout <= 0 || c.Guest.SweepInterval <= 0 {
		result = multierror.Append(result, fmt.Errorf("browser_idle_timeout and sweep_interval must be greater than 0"))
	}

	if !slices.Contains(storeBackends, c.Store.Backend) {
		result = multierror.Append(result, fmt.Errorf("store backend must be one of %v, got %q", storeBackends, c.Store.Backend))
	}
	switch c.Store.Backend {
	case "postgres":
		if err := c.Store.Postgres.Validate(); err != nil {
			result = multierror.Append(result, err)
		}
	case "supabase":
		if c.Store.SupabaseURL == "" || c.Store.SupabaseKey == "" {
			result = multierror.Append(result, fmt.Errorf("supabase_url and SUPABASE_KEY are required for the supabase backend"))
		}
	}

	if c.Recommender.BaseURL == "" {
		result = multierror.Append(result, fmt.Errorf("recommender base_url is required"))
	}
	if c.Recommender.Timeout <= 0 {
		result = multierror.Append(result, fmt.Errorf("recommender timeout must be greater than 0"))
	}
	if c.Recommender.Count <= 0 {
		result = multierror.Append(result, fmt.Errorf("recommender count must be greater than 0"))
	}
	if c.Recommender.RequestsPerSecond < 0 {
		result = multierror.Append(result, fmt.Errorf("recommender requests_per_second cannot be negative"))
	}

	if c.Security.MaxRequestSize <= 0 {
		result = multierror.Append(result, fmt.Errorf("max_request_size must be greater than 0"))
	}
	if c.Health.FailureThreshold < 1 {
		result = multierror.Append(result, fmt.Errorf("health failure_threshold must be at least 1"))
	}

	return result
}

// GetLogLevel returns the parsed logger level
func (c *AppConfig) GetLogLevel() logger.Level {
	return logger.ParseLevel(c.Logging.Level)
}

// IsProduction returns true if running in production environment
func (c *AppConfig) IsProduction() bool {
	return strings.ToLower(c.Environment) == "production"
}

// IsDevelopment returns true if running in development environment
func (c *AppConfig) IsDevelopment() bool {
	env := strings.ToLower(c.Environment)
	return env == "development" || env == "dev"
}

// LogConfig logs the current configuration (without sensitive data)
func (c *AppConfig) LogConfig(log logger.Logger) {
	log.Info("Application configuration loaded",
		logger.StringField("service_name", c.ServiceName),
		logger.StringField("version", c.Version),
		logger.StringField("environment", c.Environment),
		logger.IntField("port", c.HTTP.Port),
		logger.StringField("log_level", c.Logging.Level),
		logger.StringField("log_format", c.Logging.Format),
		logger.StringField("guest_backend", c.Guest.Backend),
		logger.DurationField("guest_freshness", c.Guest.Freshness),
		logger.StringField("store_backend", c.Store.Backend),
		logger.StringField("recommender_url", c.Recommender.BaseURL),
		logger.BoolField("metrics_exposed", c.Metrics.ExposeMetrics),
	)
}
