package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const devSigningKey = "dev-secret-key-change-in-production"

// Config is the full runtime configuration, grouped by concern.
type Config struct {
	Environment string
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Auth        AuthConfig
	Spaces      SpacesConfig
	Upload      UploadConfig
	Logging     LoggingConfig
}

// ServerConfig captures HTTP server level configuration.
type ServerConfig struct {
	Addr              string
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	RequestTimeout    time.Duration
	ShutdownTimeout   time.Duration
}

// DatabaseConfig configures the shared Postgres pool.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnectTimeout  time.Duration
	QueryTimeout    time.Duration
	ApplySchema     bool
}

// RedisConfig configures the profile cache. An empty URL disables caching.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	ProfileTTL   time.Duration
}

// AuthConfig configures bearer token verification.
type AuthConfig struct {
	SigningKey string
	Issuer     string
	Audience   string
	Leeway     time.Duration
}

// SpacesConfig configures the S3-compatible object store. An empty Bucket
// disables photo uploads.
type SpacesConfig struct {
	Endpoint       string
	Region         string
	Bucket         string
	AccessKey      string
	SecretKey      string
	CDNBaseURL     string
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
	MaxRetries     int
	// Consecutive upload failures before uploads fail fast, and how long
	// they fail fast before a probe is let through.
	BreakerFailures int
	BreakerCooldown time.Duration
}

// UploadConfig bounds contributor uploads.
type UploadConfig struct {
	MaxBytes int64
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string
	Format string
}

// IsProduction reports whether the service runs with production defaults disabled.
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

// LoadDotEnv loads variables from the given .env files without overriding the
// process environment. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// FromEnv builds the configuration from environment variables, applying
// development defaults where a value is absent.
func FromEnv() (Config, error) {
	var errs []error
	p := parser{errs: &errs}

	cfg := Config{
		Environment: p.str("APP_ENV", "development"),
		Server: ServerConfig{
			Addr:              p.str("HTTP_ADDR", ":8080"),
			ReadHeaderTimeout: p.duration("HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
			ReadTimeout:       p.duration("HTTP_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:      p.duration("HTTP_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:       p.duration("HTTP_IDLE_TIMEOUT", 120*time.Second),
			RequestTimeout:    p.duration("HTTP_REQUEST_TIMEOUT", 25*time.Second),
			ShutdownTimeout:   p.duration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			URL:             p.str("DATABASE_URL", ""),
			MaxOpenConns:    p.integer("DATABASE_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    p.integer("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: p.duration("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnectTimeout:  p.duration("DATABASE_CONNECT_TIMEOUT", 5*time.Second),
			QueryTimeout:    p.duration("DATABASE_QUERY_TIMEOUT", 5*time.Second),
			ApplySchema:     p.boolean("DATABASE_APPLY_SCHEMA", false),
		},
		Redis: RedisConfig{
			URL:          p.str("REDIS_URL", ""),
			PoolSize:     p.integer("REDIS_POOL_SIZE", 10),
			MinIdleConns: p.integer("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  p.duration("REDIS_DIAL_TIMEOUT", 2*time.Second),
			ReadTimeout:  p.duration("REDIS_READ_TIMEOUT", time.Second),
			WriteTimeout: p.duration("REDIS_WRITE_TIMEOUT", time.Second),
			ProfileTTL:   p.duration("REDIS_PROFILE_TTL", 5*time.Minute),
		},
		Auth: AuthConfig{
			SigningKey: p.str("JWT_SIGNING_KEY", ""),
			Issuer:     p.str("JWT_ISSUER", "openmediamap"),
			Audience:   p.str("JWT_AUDIENCE", "openmediamap-api"),
			Leeway:     p.duration("JWT_LEEWAY", 30*time.Second),
		},
		Spaces: SpacesConfig{
			Endpoint:        p.str("SPACES_ENDPOINT", ""),
			Region:          p.str("SPACES_REGION", "us-east-1"),
			Bucket:          p.str("SPACES_BUCKET", ""),
			AccessKey:       p.str("SPACES_KEY", ""),
			SecretKey:       p.str("SPACES_SECRET", ""),
			CDNBaseURL:      strings.TrimRight(p.str("SPACES_CDN_URL", ""), "/"),
			ConnectTimeout:  p.duration("SPACES_CONNECT_TIMEOUT", 5*time.Second),
			RequestTimeout:  p.duration("SPACES_REQUEST_TIMEOUT", 15*time.Second),
			MaxRetries:      p.integer("SPACES_MAX_RETRIES", 2),
			BreakerFailures: p.integer("SPACES_BREAKER_FAILURES", 5),
			BreakerCooldown: p.duration("SPACES_BREAKER_COOLDOWN", 30*time.Second),
		},
		Upload: UploadConfig{
			MaxBytes: int64(p.integer("UPLOAD_MAX_BYTES", 10<<20)),
		},
		Logging: LoggingConfig{
			Level:  p.str("LOG_LEVEL", "info"),
			Format: p.str("LOG_FORMAT", "json"),
		},
	}

	if cfg.Auth.SigningKey == "" {
		if cfg.IsProduction() {
			errs = append(errs, errors.New("JWT_SIGNING_KEY is required in production"))
		} else {
			cfg.Auth.SigningKey = devSigningKey
		}
	}
	if cfg.Database.URL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if cfg.Spaces.Bucket != "" && cfg.Spaces.CDNBaseURL == "" {
		errs = append(errs, errors.New("SPACES_CDN_URL is required when SPACES_BUCKET is set"))
	}
	if cfg.Upload.MaxBytes <= 0 {
		errs = append(errs, errors.New("UPLOAD_MAX_BYTES must be positive"))
	}

	if len(errs) > 0 {
		return Config{}, fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return cfg, nil
}

type parser struct {
	errs *[]error
}

func (p parser) str(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (p parser) integer(key string, def int) int {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*p.errs = append(*p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (p parser) duration(key string, def time.Duration) time.Duration {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*p.errs = append(*p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

func (p parser) boolean(key string, def bool) bool {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*p.errs = append(*p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return b
}
