// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"sitecheck/internal/checker"
)

// Config captures all service knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Manager  ManagerConfig  `mapstructure:"manager"`
	Defaults DefaultsConfig `mapstructure:"defaults"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// ManagerConfig governs job admission.
type ManagerConfig struct {
	MaxConcurrentJobs int `mapstructure:"max_concurrent_jobs"`
}

// DefaultsConfig seeds RuntimeOptions when a request omits them. Values are
// clamped to the checker's safe ranges on use.
type DefaultsConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	Retries        int `mapstructure:"retries"`
	Concurrency    int `mapstructure:"concurrency"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SITECHECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	defaults := checker.DefaultRuntimeOptions()
	v.SetDefault("server.port", 8080)
	v.SetDefault("manager.max_concurrent_jobs", 1)
	v.SetDefault("defaults.timeout_seconds", defaults.TimeoutSeconds)
	v.SetDefault("defaults.retries", defaults.Retries)
	v.SetDefault("defaults.concurrency", defaults.Concurrency)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Manager.MaxConcurrentJobs <= 0 {
		return fmt.Errorf("manager.max_concurrent_jobs must be > 0")
	}
	if c.Defaults.TimeoutSeconds <= 0 {
		return fmt.Errorf("defaults.timeout_seconds must be > 0")
	}
	return nil
}

// RuntimeDefaults converts the configured defaults into clamped
// RuntimeOptions.
func (c Config) RuntimeDefaults() checker.RuntimeOptions {
	return checker.RuntimeOptions{
		TimeoutSeconds: c.Defaults.TimeoutSeconds,
		Retries:        c.Defaults.Retries,
		Concurrency:    c.Defaults.Concurrency,
	}.Clamp()
}
