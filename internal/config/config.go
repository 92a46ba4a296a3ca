package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Paths   PathsConfig   `mapstructure:"paths"`
	History HistoryConfig `mapstructure:"history"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// PathsConfig contains the store-wide directories. These are read once at
// startup and passed explicitly to every component.
type PathsConfig struct {
	PackagesDirectory     string `mapstructure:"packages_directory"`
	DesktopFilesDirectory string `mapstructure:"desktop_files_directory"`
	RegistryFile          string `mapstructure:"registry_file"`
	LogFile               string `mapstructure:"log_file"`
}

// HistoryConfig contains the operation journal configuration
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DBFile  string `mapstructure:"db_file"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Color      string `mapstructure:"color"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// LockFile returns the advisory lock path guarding the registry
func (c *Config) LockFile() string {
	return c.Paths.RegistryFile + ".lock"
}

// Load loads configuration from file and environment
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("toml")

	homeDir, err := os.UserHomeDir()
	if err == nil {
		viper.AddConfigPath(filepath.Join(homeDir, ".config", "appstash"))
	}
	viper.AddConfigPath(".")

	setDefaults()

	viper.SetEnvPrefix("APPSTASH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file not found - use defaults
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Paths.PackagesDirectory = expandPath(cfg.Paths.PackagesDirectory)
	cfg.Paths.DesktopFilesDirectory = expandPath(cfg.Paths.DesktopFilesDirectory)
	cfg.Paths.RegistryFile = expandPath(cfg.Paths.RegistryFile)
	cfg.Paths.LogFile = expandPath(cfg.Paths.LogFile)
	cfg.History.DBFile = expandPath(cfg.History.DBFile)

	// The registry lives inside the packages directory unless overridden
	if cfg.Paths.RegistryFile == "" {
		cfg.Paths.RegistryFile = filepath.Join(cfg.Paths.PackagesDirectory, "registry.json")
	}

	return &cfg, nil
}

func setDefaults() {
	homeDir, err := os.UserHomeDir()
	if err != nil || homeDir == "" {
		homeDir = os.Getenv("HOME")
	}
	if homeDir == "" {
		homeDir = "."
	}

	dataDir := filepath.Join(homeDir, ".local", "share", "appstash")

	viper.SetDefault("paths.packages_directory", filepath.Join(homeDir, "AppImages"))
	viper.SetDefault("paths.desktop_files_directory", filepath.Join(homeDir, ".local", "share", "applications"))
	viper.SetDefault("paths.registry_file", "")
	viper.SetDefault("paths.log_file", filepath.Join(dataDir, "appstash.log"))

	viper.SetDefault("history.enabled", true)
	viper.SetDefault("history.db_file", filepath.Join(dataDir, "history.db"))

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.color", "auto")
	viper.SetDefault("logging.max_size_mb", 10)
	viper.SetDefault("logging.max_backups", 3)
	viper.SetDefault("logging.max_age_days", 28)
}

// expandPath expands ~ and environment variables in paths
func expandPath(path string) string {
	if path == "" {
		return path
	}

	if path[0] == '~' {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(homeDir, path[1:])
		}
	}

	return os.ExpandEnv(path)
}
