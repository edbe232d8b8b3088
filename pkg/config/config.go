package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage drivers understood by the API process.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds all application configuration
type Config struct {
	Env      string
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Stats    StatsConfig
	OTEL     OTELConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver       string
	URL          string
	Host         string
	Port         int
	User         string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// StatsConfig holds settings for the statistics endpoints
type StatsConfig struct {
	CacheTTL     time.Duration
	AuditTimeout time.Duration
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// Load loads configuration from environment variables and an optional .env file
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("APP_ENV", "development")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 3000)
	v.SetDefault("ALLOWED_ORIGINS", "*")
	v.SetDefault("DB_DRIVER", DriverPostgres)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "")
	v.SetDefault("DB_NAME", "patient_survey")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("STATS_CACHE_TTL_SECONDS", 60)
	v.SetDefault("AUDIT_TIMEOUT_SECONDS", 5)
	v.SetDefault("OTEL_SERVICE_NAME", "patient-survey")
	v.SetDefault("OTEL_SERVICE_VERSION", "1.0.0")
	v.SetDefault("OTEL_ENDPOINT", "")
	v.SetDefault("OTEL_ENABLED", false)

	// A missing .env file is fine; the environment alone is enough.
	_ = v.ReadInConfig()

	cfg := &Config{
		Env: v.GetString("APP_ENV"),
		Server: ServerConfig{
			Host:           v.GetString("SERVER_HOST"),
			Port:           v.GetInt("SERVER_PORT"),
			AllowedOrigins: splitList(v.GetString("ALLOWED_ORIGINS")),
		},
		Database: DatabaseConfig{
			Driver:       strings.ToLower(v.GetString("DB_DRIVER")),
			URL:          v.GetString("DATABASE_URL"),
			Host:         v.GetString("DB_HOST"),
			Port:         v.GetInt("DB_PORT"),
			User:         v.GetString("DB_USER"),
			Password:     v.GetString("DB_PASSWORD"),
			Database:     v.GetString("DB_NAME"),
			SSLMode:      v.GetString("DB_SSLMODE"),
			MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("REDIS_ENABLED"),
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetInt("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Stats: StatsConfig{
			CacheTTL:     time.Duration(v.GetInt("STATS_CACHE_TTL_SECONDS")) * time.Second,
			AuditTimeout: time.Duration(v.GetInt("AUDIT_TIMEOUT_SECONDS")) * time.Second,
		},
		OTEL: OTELConfig{
			ServiceName:    v.GetString("OTEL_SERVICE_NAME"),
			ServiceVersion: v.GetString("OTEL_SERVICE_VERSION"),
			Endpoint:       v.GetString("OTEL_ENDPOINT"),
			Enabled:        v.GetBool("OTEL_ENABLED"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values that must be sane before the process starts serving.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.URL == "" && c.Database.Host == "" {
			return fmt.Errorf("DATABASE_URL or DB_HOST is required for the postgres driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q (expected %q or %q)", c.Database.Driver, DriverPostgres, DriverMemory)
	}

	if c.Stats.CacheTTL < 0 {
		return fmt.Errorf("STATS_CACHE_TTL_SECONDS must not be negative")
	}
	if c.Stats.AuditTimeout <= 0 {
		return fmt.Errorf("AUDIT_TIMEOUT_SECONDS must be positive")
	}
	return nil
}

// IsDev reports whether the process runs in development mode
func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// ServerAddr returns the listen address
func (c *ServerConfig) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
