package config

import (
	"time"

	"github.com/medscrub/medscrub/internal/redact"
	"github.com/medscrub/medscrub/internal/vault"
)

// Config represents the main configuration structure
type Config struct {
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Redaction RedactionConfig `yaml:"redaction" mapstructure:"redaction"`
	Vault     VaultConfig     `yaml:"vault" mapstructure:"vault"`
	Logging   LoggingConfig   `yaml:"logging" mapstructure:"logging"`
}

// PipelineConfig contains batch processing configuration
type PipelineConfig struct {
	InputDir       string  `yaml:"input_dir" mapstructure:"input_dir"`
	OutputDir      string  `yaml:"output_dir" mapstructure:"output_dir"`
	MetadataFile   string  `yaml:"metadata_file" mapstructure:"metadata_file"`
	MetadataFormat string  `yaml:"metadata_format" mapstructure:"metadata_format"` // json or parquet
	Workers        int     `yaml:"workers" mapstructure:"workers"`
	RateLimit      float64 `yaml:"rate_limit" mapstructure:"rate_limit"` // documents per second, 0 = unlimited
}

// RedactionConfig contains the redaction rule seed configuration
type RedactionConfig struct {
	// UseDefaults seeds the registry with the built-in Safe Harbor rules
	// before applying Rules, so config entries can extend or override the
	// defaults by name.
	UseDefaults bool              `yaml:"use_defaults" mapstructure:"use_defaults"`
	Rules       []redact.RuleSpec `yaml:"rules" mapstructure:"rules"`
}

// VaultConfig contains identifier vault configuration
type VaultConfig struct {
	Backend     string               `yaml:"backend" mapstructure:"backend"` // file, redis, or postgres
	MappingFile string               `yaml:"mapping_file" mapstructure:"mapping_file"`
	Redis       vault.RedisConfig    `yaml:"redis" mapstructure:"redis"`
	Postgres    vault.PostgresConfig `yaml:"postgres" mapstructure:"postgres"`
	MaxRetries  int                  `yaml:"max_retries" mapstructure:"max_retries"`
	RetryDelay  time.Duration        `yaml:"retry_delay" mapstructure:"retry_delay"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // json or console
	File   struct {
		Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
		Path     string `yaml:"path" mapstructure:"path"`
		MaxSize  int    `yaml:"max_size" mapstructure:"max_size"`
		MaxAge   int    `yaml:"max_age" mapstructure:"max_age"`
		Compress bool   `yaml:"compress" mapstructure:"compress"`
	} `yaml:"file" mapstructure:"file"`
}

// GetDefaults returns a configuration with sensible defaults
func GetDefaults() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			InputDir:       "data/raw_reports",
			OutputDir:      "data/anonymized_reports",
			MetadataFile:   "data/patient_metadata.json",
			MetadataFormat: "json",
			Workers:        4,
			RateLimit:      0,
		},
		Redaction: RedactionConfig{
			UseDefaults: true,
		},
		Vault: VaultConfig{
			Backend:     "file",
			MappingFile: "data/id_map.json",
			MaxRetries:  3,
			RetryDelay:  250 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			File: struct {
				Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
				Path     string `yaml:"path" mapstructure:"path"`
				MaxSize  int    `yaml:"max_size" mapstructure:"max_size"`
				MaxAge   int    `yaml:"max_age" mapstructure:"max_age"`
				Compress bool   `yaml:"compress" mapstructure:"compress"`
			}{
				Enabled:  false,
				Path:     "logs/medscrub.log",
				MaxSize:  100, // MB
				MaxAge:   30,  // days
				Compress: true,
			},
		},
	}
}
