/*
Package config loads server configuration.

Resolution order: defaults, then an optional config.yaml in the working
directory or /etc/booking-engine/, then environment variables prefixed
with BOOKING_ (BOOKING_PORT, BOOKING_DB_PATH, BOOKING_REDIS_ADDR, ...).
Environment wins.
*/
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port   int    `mapstructure:"port"`
	Env    string `mapstructure:"env"` // "development" or "production"
	DBPath string `mapstructure:"db_path"`

	// RedisAddr enables the shared idempotency key store when non-empty.
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`

	IdempotencyTTL time.Duration `mapstructure:"idempotency_ttl"`

	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

func (c Config) Production() bool {
	return strings.EqualFold(c.Env, "production")
}

func Load() (Config, error) {
	v := viper.New()

	v.SetDefault("port", 8080)
	v.SetDefault("env", "development")
	v.SetDefault("db_path", "booking.db")
	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("idempotency_ttl", 5*time.Minute)
	v.SetDefault("shutdown_timeout", 30*time.Second)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/booking-engine/")

	v.SetEnvPrefix("BOOKING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine; a malformed one is not.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}
