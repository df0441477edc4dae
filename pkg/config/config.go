// Package config provides configuration management for the steelcut-optimizer service.
package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/steelcut-optimizer/pkg/model"
)

// EnvPrefix is the prefix for environment variable overrides (e.g. HGJ_WASTE_THRESHOLD).
const EnvPrefix = "HGJ"

// Config holds all configuration for the application.
type Config struct {
	Optimizer OptimizerConfig `mapstructure:"optimizer"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
}

// OptimizerConfig holds the engine defaults applied when a job leaves a
// constraint unset, plus the post-pass tunables.
type OptimizerConfig struct {
	WasteThreshold     float64 `mapstructure:"waste_threshold"`      // mm
	TargetLossRate     float64 `mapstructure:"target_loss_rate"`     // percent, advisory
	TimeLimit          int64   `mapstructure:"time_limit"`           // ms
	MaxWeldingSegments int     `mapstructure:"max_welding_segments"` //
	// WeldCostMM is the per-weld cost surrogate used by the post-pass
	// benefit estimate, in equivalent millimeters of material.
	WeldCostMM float64 `mapstructure:"weld_cost_mm"`
	// WeldBenefitFloorMM is the minimum benefit a post-pass swap must clear.
	WeldBenefitFloorMM float64 `mapstructure:"weld_benefit_floor_mm"`
	// PostPassIterations caps the MW-CD improvement loop.
	PostPassIterations int `mapstructure:"post_pass_iterations"`
	// MaxParallelGroups caps concurrent group planners. 0 means NumCPU.
	MaxParallelGroups int `mapstructure:"max_parallel_groups"`
}

// DatabaseConfig holds task store configuration. The URL scheme selects the
// driver: postgres://, mysql:// or sqlite://.
type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	MaxConns int    `mapstructure:"max_conns"`
}

// StorageConfig holds result archive configuration.
type StorageConfig struct {
	Type      string `mapstructure:"type"` // local, cos or none
	LocalPath string `mapstructure:"local_path"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	SecretID  string `mapstructure:"secret_id"`
	SecretKey string `mapstructure:"secret_key"`
	Domain    string `mapstructure:"domain"`
	Scheme    string `mapstructure:"scheme"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int `mapstructure:"port"`
	ReadTimeoutSec  int `mapstructure:"read_timeout"`
	WriteTimeoutSec int `mapstructure:"write_timeout"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"` // json or text
}

// Load reads configuration from the specified file path. Environment values
// with the HGJ_ prefix override file values, which override built-in defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)
	bindEnv(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/steelcut-optimizer")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found, use defaults
		} else if os.IsNotExist(err) {
			// File specified but doesn't exist, use defaults
		} else {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadFromReader loads configuration from raw content (useful for testing).
func LoadFromReader(configType string, content []byte) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	bindEnv(v)

	v.SetConfigType(configType)
	if err := v.ReadConfig(bytes.NewReader(content)); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// bindEnv binds the documented HGJ_* environment variables.
func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	// Flat spellings documented for operators.
	_ = v.BindEnv("optimizer.waste_threshold", "HGJ_WASTE_THRESHOLD")
	_ = v.BindEnv("optimizer.target_loss_rate", "HGJ_TARGET_LOSS_RATE")
	_ = v.BindEnv("optimizer.time_limit", "HGJ_TIME_LIMIT")
	_ = v.BindEnv("optimizer.max_welding_segments", "HGJ_MAX_WELDING_SEGMENTS")
	_ = v.BindEnv("database.url", "HGJ_DATABASE_URL")
	_ = v.BindEnv("server.port", "HGJ_PORT")
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("optimizer.waste_threshold", model.DefaultWasteThreshold)
	v.SetDefault("optimizer.target_loss_rate", model.DefaultTargetLossRate)
	v.SetDefault("optimizer.time_limit", model.DefaultTimeLimit)
	v.SetDefault("optimizer.max_welding_segments", model.DefaultMaxWeldingSegments)
	v.SetDefault("optimizer.weld_cost_mm", 50.0)
	v.SetDefault("optimizer.weld_benefit_floor_mm", 50.0)
	v.SetDefault("optimizer.post_pass_iterations", 10)
	v.SetDefault("optimizer.max_parallel_groups", 0)

	v.SetDefault("database.url", "sqlite://steelcut.db")
	v.SetDefault("database.max_conns", 10)

	v.SetDefault("storage.type", "none")
	v.SetDefault("storage.local_path", "./archive")
	v.SetDefault("storage.scheme", "https")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 30)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.output_path", "")
	v.SetDefault("log.format", "text")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("database url is required")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Optimizer.WasteThreshold <= 0 {
		return fmt.Errorf("waste threshold must be positive")
	}
	if c.Optimizer.MaxWeldingSegments < 1 {
		return fmt.Errorf("max welding segments must be at least 1")
	}
	if c.Optimizer.TimeLimit <= 0 {
		return fmt.Errorf("time limit must be positive")
	}
	return nil
}

// DefaultConstraints builds job constraints from the configured engine defaults.
func (c *Config) DefaultConstraints() model.Constraints {
	return model.Constraints{
		WasteThreshold:     c.Optimizer.WasteThreshold,
		TargetLossRate:     c.Optimizer.TargetLossRate,
		TimeLimit:          c.Optimizer.TimeLimit,
		MaxWeldingSegments: c.Optimizer.MaxWeldingSegments,
	}
}
