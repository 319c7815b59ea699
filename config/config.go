package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Tracking TrackingConfig
	Kafka    KafkaConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string        `mapstructure:"SERVER_HOST"`
	Port         int           `mapstructure:"SERVER_PORT"`
	ReadTimeout  time.Duration `mapstructure:"SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `mapstructure:"SERVER_WRITE_TIMEOUT"`
	IdleTimeout  time.Duration `mapstructure:"SERVER_IDLE_TIMEOUT"`
}

// Store drivers.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// StoreConfig selects the shipment store. The memory driver keeps
// everything in process and is meant for demos and local development.
type StoreConfig struct {
	Driver string `mapstructure:"STORE_DRIVER"`
}

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `mapstructure:"POSTGRES_HOST"`
	Port     int    `mapstructure:"POSTGRES_PORT"`
	User     string `mapstructure:"POSTGRES_USER"`
	Password string `mapstructure:"POSTGRES_PASSWORD"`
	DBName   string `mapstructure:"POSTGRES_DB"`
	SSLMode  string `mapstructure:"POSTGRES_SSLMODE"`
	MaxConns int32  `mapstructure:"POSTGRES_MAX_CONNS"`
	MinConns int32  `mapstructure:"POSTGRES_MIN_CONNS"`
}

// RedisConfig holds Redis connection settings.
// An empty Host disables the tracking view cache.
type RedisConfig struct {
	Host     string `mapstructure:"REDIS_HOST"`
	Port     int    `mapstructure:"REDIS_PORT"`
	Password string `mapstructure:"REDIS_PASSWORD"`
	DB       int    `mapstructure:"REDIS_DB"`
	PoolSize int    `mapstructure:"REDIS_POOL_SIZE"`
}

// TrackingConfig holds the knobs of the tracking/simulation engine.
type TrackingConfig struct {
	// StoreTimeout bounds every store round-trip made while serving a request.
	StoreTimeout time.Duration `mapstructure:"TRACKING_STORE_TIMEOUT"`
	// CacheTTL is how long a rendered tracking view is served from Redis.
	// Zero disables caching.
	CacheTTL time.Duration `mapstructure:"TRACKING_CACHE_TTL"`
}

// KafkaConfig holds domain-event publishing settings.
// An empty Brokers list disables publishing.
type KafkaConfig struct {
	Brokers        []string      `mapstructure:"KAFKA_BROKERS"`
	Topic          string        `mapstructure:"KAFKA_TOPIC"`
	PublishTimeout time.Duration `mapstructure:"KAFKA_PUBLISH_TIMEOUT"`
}

// DSN returns the PostgreSQL connection string.
func (p *PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.DBName, p.SSLMode,
	)
}

// Addr returns the Redis address in host:port format.
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// Enabled reports whether a Redis host is configured.
func (r *RedisConfig) Enabled() bool {
	return r.Host != ""
}

// Enabled reports whether at least one Kafka broker is configured.
func (k *KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// ServerAddr returns the HTTP listen address in host:port format.
func (s *ServerConfig) ServerAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Load reads configuration from environment variables and .env file.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	// ── Defaults ────────────────────────────────────────
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("SERVER_READ_TIMEOUT", "5s")
	v.SetDefault("SERVER_WRITE_TIMEOUT", "10s")
	v.SetDefault("SERVER_IDLE_TIMEOUT", "120s")

	v.SetDefault("STORE_DRIVER", StoreDriverPostgres)

	v.SetDefault("POSTGRES_HOST", "localhost")
	v.SetDefault("POSTGRES_PORT", 5432)
	v.SetDefault("POSTGRES_USER", "shiptrack")
	v.SetDefault("POSTGRES_PASSWORD", "shiptrack_secret")
	v.SetDefault("POSTGRES_DB", "shiptrack_db")
	v.SetDefault("POSTGRES_SSLMODE", "disable")
	v.SetDefault("POSTGRES_MAX_CONNS", 20)
	v.SetDefault("POSTGRES_MIN_CONNS", 2)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_POOL_SIZE", 20)

	v.SetDefault("TRACKING_STORE_TIMEOUT", "5s")
	v.SetDefault("TRACKING_CACHE_TTL", "1s")

	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_TOPIC", "shipment-events")
	v.SetDefault("KAFKA_PUBLISH_TIMEOUT", "5s")

	// Try to read .env file. If it doesn't exist (e.g., inside Docker),
	// env vars injected by docker-compose env_file are used instead.
	_ = v.ReadInConfig()

	cfg := &Config{}

	// ── Server ──────────────────────────────────────────
	cfg.Server = ServerConfig{
		Host:         v.GetString("SERVER_HOST"),
		Port:         v.GetInt("SERVER_PORT"),
		ReadTimeout:  v.GetDuration("SERVER_READ_TIMEOUT"),
		WriteTimeout: v.GetDuration("SERVER_WRITE_TIMEOUT"),
		IdleTimeout:  v.GetDuration("SERVER_IDLE_TIMEOUT"),
	}

	// ── Store ───────────────────────────────────────────
	cfg.Store = StoreConfig{Driver: strings.ToLower(v.GetString("STORE_DRIVER"))}
	if cfg.Store.Driver != StoreDriverPostgres && cfg.Store.Driver != StoreDriverMemory {
		return nil, fmt.Errorf("config: STORE_DRIVER must be %q or %q, got %q",
			StoreDriverPostgres, StoreDriverMemory, cfg.Store.Driver)
	}

	// ── Postgres ────────────────────────────────────────
	cfg.Postgres = PostgresConfig{
		Host:     v.GetString("POSTGRES_HOST"),
		Port:     v.GetInt("POSTGRES_PORT"),
		User:     v.GetString("POSTGRES_USER"),
		Password: v.GetString("POSTGRES_PASSWORD"),
		DBName:   v.GetString("POSTGRES_DB"),
		SSLMode:  v.GetString("POSTGRES_SSLMODE"),
		MaxConns: v.GetInt32("POSTGRES_MAX_CONNS"),
		MinConns: v.GetInt32("POSTGRES_MIN_CONNS"),
	}

	// ── Redis ───────────────────────────────────────────
	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
		PoolSize: v.GetInt("REDIS_POOL_SIZE"),
	}

	// ── Tracking ────────────────────────────────────────
	cfg.Tracking = TrackingConfig{
		StoreTimeout: v.GetDuration("TRACKING_STORE_TIMEOUT"),
		CacheTTL:     v.GetDuration("TRACKING_CACHE_TTL"),
	}
	if cfg.Tracking.StoreTimeout <= 0 {
		return nil, fmt.Errorf("config: TRACKING_STORE_TIMEOUT must be positive, got %s", cfg.Tracking.StoreTimeout)
	}
	if cfg.Tracking.CacheTTL < 0 {
		return nil, fmt.Errorf("config: TRACKING_CACHE_TTL must not be negative, got %s", cfg.Tracking.CacheTTL)
	}

	// ── Kafka ───────────────────────────────────────────
	cfg.Kafka = KafkaConfig{
		Brokers:        splitList(v.GetString("KAFKA_BROKERS")),
		Topic:          v.GetString("KAFKA_TOPIC"),
		PublishTimeout: v.GetDuration("KAFKA_PUBLISH_TIMEOUT"),
	}

	return cfg, nil
}

// splitList turns "a:9092, b:9092" into ["a:9092", "b:9092"].
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
