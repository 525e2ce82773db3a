// Package config provides configuration management for the trade journal.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	apperrors "trade-journal/internal/errors"
	"trade-journal/internal/importer"
	"trade-journal/internal/logging"
)

// Config holds all application configuration.
type Config struct {
	Import      ImportConfig       `mapstructure:"import"`
	Multipliers map[string]float64 `mapstructure:"multipliers"`
	Database    DatabaseConfig     `mapstructure:"database"`
	Logging     LoggingConfig      `mapstructure:"logging"`

	dir string
}

// ImportConfig holds CSV import defaults.
type ImportConfig struct {
	DefaultProfile string        `mapstructure:"default_profile"`
	DefaultAccount string        `mapstructure:"default_account"`
	MatchWindow    time.Duration `mapstructure:"match_window"`
	ImportedTag    string        `mapstructure:"imported_tag"`
	Timezone       string        `mapstructure:"timezone"` // zone for dates without an offset
}

// DatabaseConfig holds the trade store location.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig mirrors logging.LogConfig in the config file.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/trade-journal"
	}
	return filepath.Join(home, ".config", "trade-journal")
}

// Path returns the config file location inside configDir.
func Path(configDir string) string {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}
	return filepath.Join(configDir, "config.toml")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory. A missing
// config file is created from the template and defaults are used.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := &Config{dir: configDir}
	if err := loadConfigFile(configDir, "config", cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("import.default_profile", "tradovate")
	v.SetDefault("import.default_account", "")
	v.SetDefault("import.match_window", importer.DefaultMatchWindow.String())
	v.SetDefault("import.imported_tag", importer.ImportedTag)
	v.SetDefault("import.timezone", "Local")

	v.SetDefault("database.path", filepath.Join(configDir, "journal.db"))

	logs := logging.DefaultLogConfig()
	v.SetDefault("logging.level", logs.Level)
	v.SetDefault("logging.console", logs.Console)
	v.SetDefault("logging.file", logs.File)
	v.SetDefault("logging.file_path", filepath.Join(configDir, "logs", "journal.log"))
	v.SetDefault("logging.max_size", logs.MaxSize)
	v.SetDefault("logging.max_backups", logs.MaxBackups)
	v.SetDefault("logging.max_age", logs.MaxAge)
}

func loadConfigFile(configDir, name string, target *Config) error {
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v, configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
		if err := createTemplateConfig(configDir, name); err != nil {
			return err
		}
	}

	return v.Unmarshal(target)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TRADE_JOURNAL_DB"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("TRADE_JOURNAL_PROFILE"); v != "" {
		cfg.Import.DefaultProfile = v
	}
	if v := os.Getenv("TRADE_JOURNAL_ACCOUNT"); v != "" {
		cfg.Import.DefaultAccount = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Import.MatchWindow <= 0 {
		return fmt.Errorf("%w: match_window must be positive", apperrors.ErrConfigInvalid)
	}
	if strings.TrimSpace(c.Import.ImportedTag) == "" {
		return fmt.Errorf("%w: imported_tag must not be empty", apperrors.ErrConfigInvalid)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("%w: timezone %q: %v", apperrors.ErrConfigInvalid, c.Import.Timezone, err)
	}
	if p := c.Import.DefaultProfile; p != "" && !strings.HasPrefix(p, importer.CustomPrefix) {
		if _, ok := importer.BuiltInProfile(strings.ToLower(p)); !ok {
			return fmt.Errorf("%w: unknown default_profile %q", apperrors.ErrConfigInvalid, p)
		}
	}
	for market, m := range c.Multipliers {
		if m <= 0 {
			return fmt.Errorf("%w: multiplier for %s must be positive", apperrors.ErrConfigInvalid, strings.ToUpper(market))
		}
	}
	if c.Database.Path == "" {
		return fmt.Errorf("%w: database path must be set", apperrors.ErrConfigInvalid)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: unknown log level %q", apperrors.ErrConfigInvalid, c.Logging.Level)
	}
	return nil
}

// Dir returns the directory the config was loaded from.
func (c *Config) Dir() string {
	return c.dir
}

// Location returns the zone used for dates that carry no offset.
func (c *Config) Location() (*time.Location, error) {
	switch c.Import.Timezone {
	case "", "Local", "local":
		return time.Local, nil
	}
	return time.LoadLocation(c.Import.Timezone)
}

// ContractMultipliers returns the built-in multiplier table with the
// [multipliers] overrides applied.
func (c *Config) ContractMultipliers() importer.Multipliers {
	return importer.DefaultMultipliers().With(c.Multipliers)
}

// LogConfig converts the [logging] table for the logging package.
func (c *Config) LogConfig() logging.LogConfig {
	return logging.LogConfig{
		Level:      c.Logging.Level,
		Console:    c.Logging.Console,
		File:       c.Logging.File,
		FilePath:   c.Logging.FilePath,
		MaxSize:    c.Logging.MaxSize,
		MaxBackups: c.Logging.MaxBackups,
		MaxAge:     c.Logging.MaxAge,
	}
}
