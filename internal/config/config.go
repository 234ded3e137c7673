package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full service configuration, loaded from YAML and SKILLEX_* env vars.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Payment  PaymentConfig  `mapstructure:"payment"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Business BusinessConfig `mapstructure:"business"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	// WorkerID seeds the snowflake generator and must differ between instances
	// sharing a database.
	WorkerID        int64         `mapstructure:"worker_id"`
}

// DatabaseConfig selects the gorm dialector. Driver is one of mysql, postgres or sqlite.
type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"`
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	LogLevel     string `mapstructure:"log_level"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	LockTTL  time.Duration `mapstructure:"lock_ttl"`
}

type KafkaConfig struct {
	Enabled bool             `mapstructure:"enabled"`
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	LedgerEvents string `mapstructure:"ledger_events"`
}

type PaymentConfig struct {
	Verify       bool          `mapstructure:"verify"`
	BaseURL      string        `mapstructure:"base_url"`
	SecretKey    string        `mapstructure:"secret_key"`
	Currency     string        `mapstructure:"currency"`
	CoinsPerUnit string        `mapstructure:"coins_per_unit"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Secret  string `mapstructure:"secret"`
	Issuer  string `mapstructure:"issuer"`
}

type BusinessConfig struct {
	// CommunityUserID receives donations without a concrete receiver. Zero disables them.
	CommunityUserID int64         `mapstructure:"community_user_id"`
	MaxRetryCount   int           `mapstructure:"max_retry_count"`
	AuditInterval   time.Duration `mapstructure:"audit_interval"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.worker_id", 1)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "file:skillexchange.db?_pragma=busy_timeout(5000)")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.lock_ttl", 30*time.Second)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"127.0.0.1:9092"})
	v.SetDefault("kafka.topic.ledger_events", "skillexchange.ledger")

	v.SetDefault("payment.verify", false)
	v.SetDefault("payment.currency", "NGN")
	v.SetDefault("payment.coins_per_unit", "1")
	v.SetDefault("payment.timeout", 10*time.Second)

	v.SetDefault("auth.enabled", false)

	v.SetDefault("business.community_user_id", 0)
	v.SetDefault("business.max_retry_count", 5)
	v.SetDefault("business.audit_interval", 10*time.Minute)
}

// Load reads the config file at path (optional when empty) and applies env overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("SKILLEX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.WorkerID < 0 || c.Server.WorkerID > 1023 {
		return fmt.Errorf("server.worker_id must be between 0 and 1023, got %d", c.Server.WorkerID)
	}
	switch c.Database.Driver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Payment.Verify && c.Payment.BaseURL == "" {
		return fmt.Errorf("payment.base_url is required when payment.verify is on")
	}
	if c.Auth.Enabled && c.Auth.Secret == "" {
		return fmt.Errorf("auth.secret is required when auth is enabled")
	}
	if c.Business.CommunityUserID < 0 {
		return fmt.Errorf("business.community_user_id must not be negative")
	}
	return nil
}
