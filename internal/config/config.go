// Package config provides layered configuration management for the
// notification platform: defaults, an optional YAML file, then environment
// variables, unmarshalled into a typed, validated Config.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper" // v1.17.0
)

// Config is the root configuration structure for every component of the
// platform (ingress, channel workers, and the retry/scheduler loop all load
// the same struct and read the sections relevant to them).
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Email    EmailProviderConfig
	WhatsApp WhatsAppProviderConfig
	Retry    RetryConfig
}

// ServerConfig holds HTTP server configuration for the ingestion gateway.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Host            string        `mapstructure:"host"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL (Message Store) configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Name            string        `mapstructure:"name"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	QueryTimeout    time.Duration `mapstructure:"query_timeout"`
}

// DSN builds the lib/pq connection string from the configured fields.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		d.Host, d.Port, d.Name, d.User, d.Password, d.SSLMode,
	)
}

// RedisConfig holds Redis (Bus Abstraction) configuration.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// Addr returns the host:port address go-redis expects.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// AuthConfig holds tenant API-key hashing configuration.
type AuthConfig struct {
	BcryptCost int `mapstructure:"bcrypt_cost"`
}

// EmailProviderConfig holds process-wide defaults for the SendGrid-shaped
// email provider, used when a site has no per-tenant override configured.
type EmailProviderConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	Endpoint    string        `mapstructure:"endpoint"`
	FromEmail   string        `mapstructure:"from_email"`
	FromName    string        `mapstructure:"from_name"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// WhatsAppProviderConfig holds process-wide defaults for the WASender-shaped
// WhatsApp provider and the mandatory inter-message session delay.
type WhatsAppProviderConfig struct {
	APIKey               string        `mapstructure:"api_key"`
	Endpoint             string        `mapstructure:"endpoint"`
	Timeout              time.Duration `mapstructure:"timeout"`
	InterMessageDelay    time.Duration `mapstructure:"inter_message_delay"`
}

// BackoffPolicy is a per-classification retry policy, per spec §4.5/§6.
type BackoffPolicy struct {
	Base        time.Duration `mapstructure:"base"`
	Multiplier  float64       `mapstructure:"mult"`
	Max         time.Duration `mapstructure:"max"`
	MaxAttempts int           `mapstructure:"attempts"`
}

// Delay computes min(base * multiplier^retryCount, max).
func (p BackoffPolicy) Delay(retryCount int) time.Duration {
	d := float64(p.Base)
	for i := 0; i < retryCount; i++ {
		d *= p.Multiplier
	}
	if d > float64(p.Max) {
		d = float64(p.Max)
	}
	return time.Duration(d)
}

// RetryConfig configures the C5 retry & scheduler loop.
type RetryConfig struct {
	IntervalSeconds           int           `mapstructure:"interval_seconds"`
	BatchSize                 int           `mapstructure:"batch_size"`
	TransientPolicy           BackoffPolicy `mapstructure:"transient_policy"`
	RateLimitPolicy           BackoffPolicy `mapstructure:"rate_limit_policy"`
	PermanentToDLQImmediately bool          `mapstructure:"permanent_to_dlq_immediately"`
}

// Load loads and validates configuration from environment variables and an
// optional config file, in the manner of the platform's original message
// service: defaults first, then an optional YAML file, then environment
// variables (prefix NOTIFY) take final precedence.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvPrefix("NOTIFY")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/notification-platform/")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")

	v.SetDefault("database.port", 5432)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 25)
	v.SetDefault("database.conn_max_lifetime", "15m")
	v.SetDefault("database.query_timeout", "5s")

	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("auth.bcrypt_cost", 12)

	v.SetDefault("email.timeout", "30s")
	v.SetDefault("whatsapp.timeout", "30s")
	v.SetDefault("whatsapp.inter_message_delay", "1200ms")

	v.SetDefault("retry.interval_seconds", 60)
	v.SetDefault("retry.batch_size", 200)
	v.SetDefault("retry.permanent_to_dlq_immediately", true)

	v.SetDefault("retry.transient_policy.base", "1s")
	v.SetDefault("retry.transient_policy.mult", 2.0)
	v.SetDefault("retry.transient_policy.max", "60s")
	v.SetDefault("retry.transient_policy.attempts", 3)

	v.SetDefault("retry.rate_limit_policy.base", "5s")
	v.SetDefault("retry.rate_limit_policy.mult", 2.0)
	v.SetDefault("retry.rate_limit_policy.max", "300s")
	v.SetDefault("retry.rate_limit_policy.attempts", 5)
}

func (cfg *Config) validate() error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}
	if cfg.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if cfg.Database.Name == "" {
		return fmt.Errorf("database name is required")
	}
	if cfg.Redis.Host == "" {
		return fmt.Errorf("redis host is required")
	}
	if cfg.Retry.BatchSize <= 0 {
		return fmt.Errorf("retry batch size must be positive")
	}
	if cfg.Retry.IntervalSeconds <= 0 {
		return fmt.Errorf("retry interval_seconds must be positive")
	}
	if cfg.WhatsApp.InterMessageDelay < 0 {
		return fmt.Errorf("whatsapp inter_message_delay cannot be negative")
	}
	return nil
}
