package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type HTTPConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	PoolSize int    `yaml:"pool_size"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"` // payment status cache TTL
}

// ProviderCredentials is one shop id + secret key pair. An empty pair
// disables that provider's adapter entirely.
type ProviderCredentials struct {
	MerchantID string `yaml:"merchant_id"`
	SecretKey  string `yaml:"secret_key"`
}

func (c ProviderCredentials) Configured() bool {
	return c.MerchantID != "" && c.SecretKey != ""
}

type PaymentConfig struct {
	Payture   ProviderCredentials `yaml:"payture"`   // domestic cards
	Ecommpay  ProviderCredentials `yaml:"ecommpay"`  // international cards
	ReturnURL string              `yaml:"return_url"`
	Timeout   time.Duration       `yaml:"timeout"` // per vendor HTTP call
}

type BillingConfig struct {
	Interval      time.Duration `yaml:"interval"`       // billing run period
	Workers       int           `yaml:"workers"`        // bounded fan-out per run
	ChargeTimeout time.Duration `yaml:"charge_timeout"` // per recurring charge
	SweepAge      time.Duration `yaml:"sweep_age"`      // stale pending payment age
	LockTTL       time.Duration `yaml:"lock_ttl"`       // billing run lock
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type NotifyConfig struct {
	TelegramToken  string `yaml:"telegram_token"`
	TelegramChatID int64  `yaml:"telegram_chat_id"`
}

type Config struct {
	Log      LogConfig      `yaml:"log"`
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Payment  PaymentConfig  `yaml:"payment"`
	Billing  BillingConfig  `yaml:"billing"`
	Auth     AuthConfig     `yaml:"auth"`
	Notify   NotifyConfig   `yaml:"notify"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	// defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.HTTP.ShutdownTimeout <= 0 {
		cfg.HTTP.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Database.PoolSize <= 0 {
		cfg.Database.PoolSize = 10
	}
	if cfg.Redis.TTL <= 0 {
		cfg.Redis.TTL = 30 * time.Second
	}
	if cfg.Payment.Timeout <= 0 {
		cfg.Payment.Timeout = 15 * time.Second
	}
	if cfg.Billing.Interval <= 0 {
		cfg.Billing.Interval = 24 * time.Hour
	}
	if cfg.Billing.Workers <= 0 {
		cfg.Billing.Workers = 8
	}
	if cfg.Billing.ChargeTimeout <= 0 {
		cfg.Billing.ChargeTimeout = 30 * time.Second
	}
	if cfg.Billing.SweepAge <= 0 {
		cfg.Billing.SweepAge = 24 * time.Hour
	}
	if cfg.Billing.LockTTL <= 0 {
		cfg.Billing.LockTTL = 10 * time.Minute
	}

	// Minimal validation. Provider credentials are validated at startup so
	// a misconfigured provider fails fast instead of on a live donation.
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("auth.jwt_secret is required")
	}
	if !cfg.Payment.Payture.Configured() && !cfg.Payment.Ecommpay.Configured() {
		return nil, errors.New("at least one payment provider must be configured")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
