package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"
)

// Config is assembled in three layers: defaults, then an optional YAML file,
// then LIGHTHOUSE_* environment variables on top.
type Config struct {
	LogLevel string `yaml:"log_level" env:"LIGHTHOUSE_LOG_LEVEL"`

	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Platform PlatformConfig `yaml:"platform"`
	Gateway  GatewayConfig  `yaml:"gateway"`
}

type ServerConfig struct {
	Addr           string  `yaml:"addr" env:"LIGHTHOUSE_SERVER_ADDR"`
	RateLimitRPS   float64 `yaml:"rate_limit_rps" env:"LIGHTHOUSE_RATE_LIMIT_RPS"`
	RateLimitBurst int     `yaml:"rate_limit_burst" env:"LIGHTHOUSE_RATE_LIMIT_BURST"`
}

type DatabaseConfig struct {
	// DSN empty means the in-memory store is used.
	DSN string `yaml:"dsn" env:"LIGHTHOUSE_DATABASE_DSN"`
}

type RedisConfig struct {
	// Addr empty disables the routing cache.
	Addr     string        `yaml:"addr" env:"LIGHTHOUSE_REDIS_ADDR"`
	Password string        `yaml:"password" env:"LIGHTHOUSE_REDIS_PASSWORD"`
	DB       int           `yaml:"db" env:"LIGHTHOUSE_REDIS_DB"`
	RouteTTL time.Duration `yaml:"route_ttl" env:"LIGHTHOUSE_REDIS_ROUTE_TTL"`
}

type PlatformConfig struct {
	DomainSuffix      string        `yaml:"domain_suffix" env:"LIGHTHOUSE_DOMAIN_SUFFIX"`
	ActivationWait    time.Duration `yaml:"activation_wait" env:"LIGHTHOUSE_ACTIVATION_WAIT"`
	LogPageCap        int           `yaml:"log_page_cap" env:"LIGHTHOUSE_LOG_PAGE_CAP"`
	LogRetention      time.Duration `yaml:"log_retention" env:"LIGHTHOUSE_LOG_RETENTION"`
	RetentionSchedule string        `yaml:"retention_schedule" env:"LIGHTHOUSE_RETENTION_SCHEDULE"`
}

type GatewayConfig struct {
	// PackageStoreURL empty selects the in-process package gateway.
	PackageStoreURL   string `yaml:"package_store_url" env:"LIGHTHOUSE_PACKAGE_STORE_URL"`
	PackageStoreToken string `yaml:"package_store_token" env:"LIGHTHOUSE_PACKAGE_STORE_TOKEN"`
	// RuntimeURL empty selects the no-op runtime controller.
	RuntimeURL   string        `yaml:"runtime_url" env:"LIGHTHOUSE_RUNTIME_URL"`
	RuntimeToken string        `yaml:"runtime_token" env:"LIGHTHOUSE_RUNTIME_TOKEN"`
	Timeout      time.Duration `yaml:"timeout" env:"LIGHTHOUSE_GATEWAY_TIMEOUT"`
}

func Default() Config {
	return Config{
		LogLevel: "info",
		Server: ServerConfig{
			Addr:           ":8080",
			RateLimitRPS:   50,
			RateLimitBurst: 100,
		},
		Redis: RedisConfig{
			RouteTTL: 10 * time.Minute,
		},
		Platform: PlatformConfig{
			DomainSuffix:      "lighthouse.dev",
			ActivationWait:    5 * time.Second,
			LogPageCap:        500,
			LogRetention:      7 * 24 * time.Hour,
			RetentionSchedule: "@hourly",
		},
		Gateway: GatewayConfig{
			Timeout: 15 * time.Second,
		},
	}
}

// Load builds the config. path may be empty; a missing file at the default
// location is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if path == "" {
		path = "lighthouse.yaml"
	}
	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
		// No file, defaults stand.
	default:
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}

	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("environment overrides: %w", err)
	}
	return cfg, nil
}
