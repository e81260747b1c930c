// Package config loads the process-wide settings of the GovRFP AI backend
// from the environment (and an optional .env file). The resulting Config is
// built once at startup and handed to every component; nothing reads the
// environment after Load returns.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// DefaultSecretKey is the development signing key. Production refuses it.
const DefaultSecretKey = "dev-secret-key-change-in-production"

const (
	defaultDatabaseURL      = "sqlite:///govrfp.db"
	defaultMaxContentLength = 16 * 1024 * 1024
)

type Config struct {
	Server   ServerConfig
	Security SecurityConfig
	Database DatabaseConfig
	Upload   UploadConfig
	Storage  StorageConfig
	Logging  LoggingConfig
	Limits   LimitsConfig
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host            string
	Port            int    `validate:"min=1,max=65535"`
	Environment     string `validate:"oneof=development staging production"`
	Debug           bool
	TrustProxy      bool // take the client address from X-Forwarded-For / X-Real-IP
	RequestTimeout  time.Duration `validate:"gt=0"`
	ShutdownTimeout time.Duration `validate:"gt=0"`
}

// Addr returns the host:port pair the server listens on.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// SecurityConfig holds signing secrets.
type SecurityConfig struct {
	SecretKey string `validate:"required"`
}

// DatabaseConfig holds the storage connection string. Only Postgres URLs are
// used (for the audit trail); any other value is accepted and ignored.
type DatabaseConfig struct {
	URL string
}

// UploadConfig bounds and locates accepted uploads.
type UploadConfig struct {
	Dir              string `validate:"required"`
	MaxContentLength int64  `validate:"gt=0"`
}

// StorageConfig selects the upload backend.
type StorageConfig struct {
	Backend   string `validate:"oneof=disk minio"`
	Endpoint  string `validate:"required_if=Backend minio"`
	AccessKey string `validate:"required_if=Backend minio"`
	SecretKey string `validate:"required_if=Backend minio"`
	Bucket    string `validate:"required_if=Backend minio"`
}

type LoggingConfig struct {
	Level  string `validate:"oneof=debug info warn error"`
	Format string `validate:"oneof=json console"`
}

// LimitsConfig holds request throttling settings for the /api routes.
type LimitsConfig struct {
	RateLimitRPS   float64 `validate:"gte=0"`
	RateLimitBurst int     `validate:"gte=0"`
	Workers        int     `validate:"min=1"`
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// Default returns the configuration used when no environment is set.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            5000,
			Environment:     "development",
			RequestTimeout:  120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Security: SecurityConfig{SecretKey: DefaultSecretKey},
		Database: DatabaseConfig{URL: defaultDatabaseURL},
		Upload: UploadConfig{
			Dir:              "uploads",
			MaxContentLength: defaultMaxContentLength,
		},
		Storage: StorageConfig{Backend: "disk"},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Limits: LimitsConfig{
			RateLimitRPS:   10,
			RateLimitBurst: 20,
			Workers:        4,
		},
	}
}

// Load reads the configuration from the environment on top of Default.
func Load() (*Config, error) {
	// A .env file is a local-development convenience; a missing one is fine.
	_ = godotenv.Load()

	cfg := Default()
	p := &parser{}

	cfg.Server.Host = getEnvOrDefault("HOST", cfg.Server.Host)
	cfg.Server.Port = p.getInt("PORT", cfg.Server.Port)
	cfg.Server.Environment = strings.ToLower(getEnvOrDefault("APP_ENV", cfg.Server.Environment))
	cfg.Server.Debug = p.getBool("DEBUG", cfg.Server.Debug)
	cfg.Server.TrustProxy = p.getBool("TRUST_PROXY", cfg.Server.TrustProxy)
	cfg.Server.RequestTimeout = p.getDuration("REQUEST_TIMEOUT", cfg.Server.RequestTimeout)
	cfg.Server.ShutdownTimeout = p.getDuration("SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)

	cfg.Security.SecretKey = getEnvOrDefault("SECRET_KEY", cfg.Security.SecretKey)
	cfg.Database.URL = getEnvOrDefault("DATABASE_URL", cfg.Database.URL)

	cfg.Upload.Dir = getEnvOrDefault("UPLOAD_FOLDER", cfg.Upload.Dir)
	cfg.Upload.MaxContentLength = p.getInt64("MAX_CONTENT_LENGTH", cfg.Upload.MaxContentLength)

	cfg.Storage = StorageConfig{
		Backend:   strings.ToLower(getEnvOrDefault("STORAGE_BACKEND", cfg.Storage.Backend)),
		Endpoint:  os.Getenv("S3_ENDPOINT"),
		AccessKey: os.Getenv("S3_ACCESS_KEY"),
		SecretKey: os.Getenv("S3_SECRET_KEY"),
		Bucket:    os.Getenv("S3_BUCKET"),
	}

	cfg.Logging.Level = normalizeLevel(getEnvOrDefault("LOG_LEVEL", cfg.Logging.Level))
	cfg.Logging.Format = strings.ToLower(getEnvOrDefault("LOG_FORMAT", cfg.Logging.Format))
	if cfg.Server.Debug {
		cfg.Logging.Level = "debug"
		cfg.Logging.Format = "console"
	}

	cfg.Limits.RateLimitRPS = p.getFloat("RATE_LIMIT_RPS", cfg.Limits.RateLimitRPS)
	cfg.Limits.RateLimitBurst = p.getInt("RATE_LIMIT_BURST", cfg.Limits.RateLimitBurst)
	cfg.Limits.Workers = p.getInt("WORKERS", cfg.Limits.Workers)

	if len(p.errs) > 0 {
		return nil, fmt.Errorf("configuration parsing failed:\n%w", errors.Join(p.errs...))
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MustLoad is like Load but panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

var structValidator = validator.New()

// validate checks struct constraints and the rules that span fields.
func (c *Config) validate() error {
	var errs []error

	if err := structValidator.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				errs = append(errs, fmt.Errorf("%s: failed %q check (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
		} else {
			errs = append(errs, err)
		}
	}

	if c.IsProduction() && c.Security.SecretKey == DefaultSecretKey {
		errs = append(errs, errors.New("SECRET_KEY must be overridden in production"))
	}
	if c.Limits.RateLimitRPS > 0 && c.Limits.RateLimitBurst < 1 {
		errs = append(errs, errors.New("RATE_LIMIT_BURST must be at least 1 when rate limiting is enabled"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n%w", errors.Join(errs...))
	}
	return nil
}

// normalizeLevel maps level aliases such as WARNING onto the names the logger knows.
func normalizeLevel(level string) string {
	level = strings.ToLower(strings.TrimSpace(level))
	switch level {
	case "warning":
		return "warn"
	case "critical", "fatal":
		return "error"
	}
	return level
}

// getEnvOrDefault returns the env value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parser collects typed lookups so every bad value is reported at once.
type parser struct {
	errs []error
}

func (p *parser) getInt(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return v
}

func (p *parser) getInt64(key string, def int64) int64 {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return v
}

func (p *parser) getFloat(key string, def float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return v
}

func (p *parser) getBool(key string, def bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return v
}

func (p *parser) getDuration(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return v
}
