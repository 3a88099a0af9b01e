// Package config loads the resolver service configuration from file and
// environment.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds all configuration for the resolver service.
type Config struct {
	// Resolver configuration
	Resolver ResolverConfig `mapstructure:"resolver"`

	// HTTP/WS API configuration
	Server ServerConfig `mapstructure:"server"`

	// Logging configuration
	Logging LoggingConfig `mapstructure:"logging"`
}

// ResolverConfig holds orchestration parameters.
type ResolverConfig struct {
	// TimelockMargin is the minimum gap the source expiry must keep ahead
	// of the destination expiry so the resolver can observe a reveal and
	// still claim the source leg.
	TimelockMargin time.Duration `mapstructure:"timelock_margin"`

	// Polling interval for the expiry monitor
	SwapPollInterval time.Duration `mapstructure:"swap_poll_interval"`

	// Retry configuration for source-leg claims
	ClaimRetries  uint64        `mapstructure:"claim_retries"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
}

// ServerConfig holds the API listener configuration.
type ServerConfig struct {
	ListenAddr   string        `mapstructure:"listen_addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LoadConfig loads configuration from file and environment variables.
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	setDefaults()

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("$HOME/.fusion-escrow")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("FUSION")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// setDefaults sets default configuration values.
func setDefaults() {
	viper.SetDefault("resolver.timelock_margin", "10m")
	viper.SetDefault("resolver.swap_poll_interval", "10s")
	viper.SetDefault("resolver.claim_retries", 5)
	viper.SetDefault("resolver.retry_interval", "2s")

	viper.SetDefault("server.listen_addr", ":8080")
	viper.SetDefault("server.read_timeout", "10s")
	viper.SetDefault("server.write_timeout", "10s")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}

// validateConfig validates the loaded configuration.
func validateConfig(config *Config) error {
	if config.Resolver.TimelockMargin <= 0 {
		return fmt.Errorf("resolver.timelock_margin must be positive")
	}
	if config.Resolver.SwapPollInterval <= 0 {
		return fmt.Errorf("resolver.swap_poll_interval must be positive")
	}
	if config.Resolver.RetryInterval <= 0 {
		return fmt.Errorf("resolver.retry_interval must be positive")
	}
	if config.Server.ListenAddr == "" {
		return fmt.Errorf("server.listen_addr is required")
	}
	switch config.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console")
	}
	return nil
}

// GetConfigFromEnv loads configuration from environment variables only.
func GetConfigFromEnv() (*Config, error) {
	config := &Config{
		Resolver: ResolverConfig{
			TimelockMargin:   getDurationOrDefault("FUSION_RESOLVER_TIMELOCK_MARGIN", 10*time.Minute),
			SwapPollInterval: getDurationOrDefault("FUSION_RESOLVER_SWAP_POLL_INTERVAL", 10*time.Second),
			ClaimRetries:     5,
			RetryInterval:    getDurationOrDefault("FUSION_RESOLVER_RETRY_INTERVAL", 2*time.Second),
		},
		Server: ServerConfig{
			ListenAddr:   getEnvOrDefault("FUSION_SERVER_LISTEN_ADDR", ":8080"),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("FUSION_LOGGING_LEVEL", "info"),
			Format: getEnvOrDefault("FUSION_LOGGING_FORMAT", "json"),
		},
	}

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

// BuildLogger constructs a zap logger for the configured level and format.
func BuildLogger(cfg LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}

// getEnvOrDefault gets environment variable or returns default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
