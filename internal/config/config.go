package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/covercompare/membergate/internal/vault"
	"github.com/joho/godotenv"
)

// Config aggregates daemon configuration values.
type Config struct {
	Environment string
	HTTP        HTTPConfig
	Store       StoreConfig
	Auth        AuthConfig
	Logging     LoggingConfig
}

// HTTPConfig governs HTTP server behaviour.
type HTTPConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
	TLS             bool
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Backend string // memory|file|postgres|sqlite
	DataDir string
	// DatabaseURL is the ordinary credential used for a principal's own reads.
	DatabaseURL string
	// ServiceDatabaseURL, when set, is the elevated credential used for administration.
	ServiceDatabaseURL string
	// DataKey seals profile files of the file backend when set.
	DataKey []byte
}

type AuthConfig struct {
	JWTSecret string
	JWTIssuer string
}

type LoggingConfig struct {
	Level  string
	Format string // json|console
}

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	defaultHost            = "0.0.0.0"
	defaultPort            = 7002
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 15 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultStore           = "file"
	defaultDataDir         = "./data"
	defaultEnvFile         = ".env"
)

// IsProduction reports whether backend diagnostics must be withheld from clients.
func (c Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// Load reads configuration from environment variables, applying defaults.
// An env file (MEMBERGATE_ENV_FILE, default .env) is read first when present;
// variables already set in the environment win.
func Load() (Config, error) {
	envFile := valueOrDefault("MEMBERGATE_ENV_FILE", defaultEnvFile)
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", envFile, err)
	}

	cfg := Config{
		Environment: valueOrDefault("MEMBERGATE_ENV", EnvDevelopment),
		HTTP: HTTPConfig{
			Host:           valueOrDefault("MEMBERGATE_HOST", defaultHost),
			AllowedOrigins: splitCSV(os.Getenv("MEMBERGATE_ALLOWED_ORIGINS")),
		},
		Store: StoreConfig{
			Backend:            valueOrDefault("MEMBERGATE_STORE", defaultStore),
			DataDir:            valueOrDefault("MEMBERGATE_DATA_DIR", defaultDataDir),
			DatabaseURL:        os.Getenv("MEMBERGATE_DATABASE_URL"),
			ServiceDatabaseURL: os.Getenv("MEMBERGATE_SERVICE_DATABASE_URL"),
		},
		Auth: AuthConfig{
			JWTSecret: os.Getenv("MEMBERGATE_JWT_SECRET"),
			JWTIssuer: os.Getenv("MEMBERGATE_JWT_ISSUER"),
		},
		Logging: LoggingConfig{
			Level:  valueOrDefault("MEMBERGATE_LOG_LEVEL", "info"),
			Format: valueOrDefault("MEMBERGATE_LOG_FORMAT", "json"),
		},
	}

	switch cfg.Environment {
	case EnvDevelopment, EnvProduction:
	default:
		return Config{}, fmt.Errorf("invalid MEMBERGATE_ENV value %q", cfg.Environment)
	}

	var err error
	if cfg.HTTP.Port, err = parsePort("MEMBERGATE_PORT", defaultPort); err != nil {
		return Config{}, err
	}
	if cfg.HTTP.ReadTimeout, err = parseDuration("MEMBERGATE_READ_TIMEOUT", defaultReadTimeout); err != nil {
		return Config{}, err
	}
	if cfg.HTTP.WriteTimeout, err = parseDuration("MEMBERGATE_WRITE_TIMEOUT", defaultWriteTimeout); err != nil {
		return Config{}, err
	}
	if cfg.HTTP.ShutdownTimeout, err = parseDuration("MEMBERGATE_SHUTDOWN_TIMEOUT", defaultShutdownTimeout); err != nil {
		return Config{}, err
	}
	if cfg.HTTP.TLS, err = parseBool("MEMBERGATE_TLS", false); err != nil {
		return Config{}, err
	}
	if v := os.Getenv("MEMBERGATE_DATA_KEY"); v != "" {
		if cfg.Store.DataKey, err = vault.ParseKey(v); err != nil {
			return Config{}, fmt.Errorf("invalid MEMBERGATE_DATA_KEY: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints. The daemon calls it again after flag overrides.
func (c Config) Validate() error {
	switch c.Store.Backend {
	case "memory", "file":
	case "postgres", "sqlite":
		if c.Store.DatabaseURL == "" {
			return fmt.Errorf("MEMBERGATE_DATABASE_URL is required for store %q", c.Store.Backend)
		}
	default:
		return fmt.Errorf("invalid MEMBERGATE_STORE value %q", c.Store.Backend)
	}
	if c.Store.ServiceDatabaseURL != "" && c.Store.Backend != "postgres" && c.Store.Backend != "sqlite" {
		return fmt.Errorf("MEMBERGATE_SERVICE_DATABASE_URL requires a SQL store, got %q", c.Store.Backend)
	}
	return nil
}

// Addr returns the listen address.
func (h HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}

func valueOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, v, err)
	}
	return b, nil
}

func parseDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func parsePort(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	port, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, v, err)
	}
	if port <= 0 || port > 65535 {
		return 0, fmt.Errorf("%s %d is out of range", key, port)
	}
	return port, nil
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
