// Package config loads server configuration from an optional config
// file and environment variables, with sane defaults for local use.
package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	APIHost         string        `mapstructure:"API_HOST"`
	APIPort         int           `mapstructure:"API_PORT"`
	StoragePath     string        `mapstructure:"STORAGE_PATH"`
	DevMode         bool          `mapstructure:"DEV_MODE"`
	SessionTTL      time.Duration `mapstructure:"SESSION_TTL"`
	CleanupInterval time.Duration `mapstructure:"CLEANUP_INTERVAL"`
	LogLevel        string        `mapstructure:"LOG_LEVEL"`
}

// Setup reads configuration. cfgPath may be empty, in which case only
// environment variables and defaults apply.
func Setup(cfgPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("API_HOST", "127.0.0.1")
	v.SetDefault("API_PORT", 8080)
	v.SetDefault("STORAGE_PATH", "")
	v.SetDefault("DEV_MODE", false)
	v.SetDefault("SESSION_TTL", 2*time.Hour)
	v.SetDefault("CLEANUP_INTERVAL", 5*time.Minute)
	v.SetDefault("LOG_LEVEL", "info")

	v.AutomaticEnv()

	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
