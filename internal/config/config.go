package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	// Set defaults
	config := GetDefaults()

	// Configure viper
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("/etc/medscrub/")
	viper.AddConfigPath("$HOME/.medscrub/")

	// Environment variable overrides
	viper.SetEnvPrefix("MEDSCRUB")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Use specific config file if provided
	if configPath != "" {
		viper.SetConfigFile(configPath)
	}

	// Read configuration
	if err := viper.ReadInConfig(); err != nil {
		// Config file not found is not an error - we'll use defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Unmarshal into config struct
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// validateConfig validates the loaded configuration
func validateConfig(config *Config) error {
	if config.Pipeline.Workers <= 0 {
		return fmt.Errorf("invalid worker count: %d", config.Pipeline.Workers)
	}

	if config.Pipeline.MetadataFormat != "json" && config.Pipeline.MetadataFormat != "parquet" {
		return fmt.Errorf("invalid metadata format: %s (must be json or parquet)", config.Pipeline.MetadataFormat)
	}

	switch config.Vault.Backend {
	case "file":
		if config.Vault.MappingFile == "" {
			return fmt.Errorf("vault backend %q requires mapping_file", config.Vault.Backend)
		}
	case "redis":
		if config.Vault.Redis.URL == "" {
			return fmt.Errorf("vault backend %q requires redis.url", config.Vault.Backend)
		}
	case "postgres":
		if config.Vault.Postgres.DatabaseURL == "" {
			return fmt.Errorf("vault backend %q requires postgres.database_url", config.Vault.Backend)
		}
	default:
		return fmt.Errorf("invalid vault backend: %s (must be file, redis, or postgres)", config.Vault.Backend)
	}

	if config.Logging.Level != "debug" && config.Logging.Level != "info" && config.Logging.Level != "warn" && config.Logging.Level != "error" {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.Logging.Level)
	}

	if config.Logging.Format != "json" && config.Logging.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", config.Logging.Format)
	}

	return nil
}

// Watch starts watching the configuration file for changes. The callback
// receives the re-validated configuration; rule seed changes take effect on
// the next batch, never mid-pass.
func Watch(config *Config, callback func(*Config)) error {
	viper.WatchConfig()
	viper.OnConfigChange(func(e fsnotify.Event) {
		newConfig := GetDefaults()
		if err := viper.Unmarshal(newConfig); err != nil {
			// Log error but don't crash
			return
		}

		if err := validateConfig(newConfig); err != nil {
			// Log error but don't crash
			return
		}

		callback(newConfig)
	})

	return nil
}
