package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config represents the cliphist engine configuration
type Config struct {
	CacheDir       string `yaml:"cache_dir,omitempty"`
	LogFile        string `yaml:"log_file"`
	// LegacyRegistry is the clipboard-indicator extension's registry.txt
	// to import once, absolute or relative to the cache directory. Empty
	// disables the import.
	LegacyRegistry string `yaml:"legacy_registry,omitempty"`
	SettingsDB     string `yaml:"settings_db,omitempty"`
	MaxWastedOps   int64  `yaml:"max_wasted_ops"`
	WriteRetries   int    `yaml:"write_retries"`
	LogLevel       string `yaml:"log_level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		LogFile:      "database.log",
		SettingsDB:   "settings.db",
		MaxWastedOps: 500,
		WriteRetries: 3,
		LogLevel:     "info",
	}
}

// Level returns the parsed log level
func (c *Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

// ConfigManager manages configuration persistence
type ConfigManager struct {
	configPath string
}

// NewConfigManager creates a new configuration manager
func NewConfigManager() (*ConfigManager, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user home directory: %w", err)
	}

	configDir := filepath.Join(homeDir, ".config", "cliphist")
	configPath := filepath.Join(configDir, "config.yaml")

	return &ConfigManager{
		configPath: configPath,
	}, nil
}

// NewConfigManagerWithPath creates a config manager with custom config path
func NewConfigManagerWithPath(configPath string) *ConfigManager {
	return &ConfigManager{
		configPath: configPath,
	}
}

// Load reads the configuration from file, or returns default if file doesn't exist.
// Keys missing from the file keep their default values.
func (cm *ConfigManager) Load() (*Config, error) {
	if _, err := os.Stat(cm.configPath); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(cm.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cm.validate(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Save writes the configuration to file
func (cm *ConfigManager) Save(config *Config) error {
	if err := cm.validate(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	configDir := filepath.Dir(cm.configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(cm.configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// validate checks the configuration values
func (cm *ConfigManager) validate(config *Config) error {
	if config.LogFile == "" {
		return fmt.Errorf("log_file must not be empty")
	}
	if filepath.IsAbs(config.LogFile) || filepath.Base(config.LogFile) != config.LogFile {
		return fmt.Errorf("log_file must be a plain file name")
	}
	if config.MaxWastedOps <= 0 {
		return fmt.Errorf("max_wasted_ops must be greater than 0")
	}
	if config.WriteRetries < 0 {
		return fmt.Errorf("write_retries cannot be negative")
	}
	if config.WriteRetries > 20 {
		return fmt.Errorf("write_retries cannot exceed 20")
	}
	if _, err := logrus.ParseLevel(config.LogLevel); err != nil {
		return fmt.Errorf("log_level %q is not a valid level", config.LogLevel)
	}

	return nil
}

// GetConfigPath returns the path to the config file
func (cm *ConfigManager) GetConfigPath() string {
	return cm.configPath
}

// Update modifies a specific configuration value
func (cm *ConfigManager) Update(key, value string) error {
	config, err := cm.Load()
	if err != nil {
		return err
	}

	switch key {
	case "cache-dir":
		config.CacheDir = value
	case "log-file":
		config.LogFile = value
	case "legacy-registry":
		config.LegacyRegistry = value
	case "settings-db":
		config.SettingsDB = value
	case "max-wasted-ops":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer value for max-wasted-ops: %s", value)
		}
		config.MaxWastedOps = n
	case "write-retries":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value for write-retries: %s", value)
		}
		config.WriteRetries = n
	case "log-level":
		config.LogLevel = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}

	return cm.Save(config)
}

// Get returns the value for a specific configuration key
func (cm *ConfigManager) Get(key string) (string, error) {
	values, err := cm.List()
	if err != nil {
		return "", err
	}

	value, ok := values[key]
	if !ok {
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
	return value, nil
}

// List returns all configuration keys and values
func (cm *ConfigManager) List() (map[string]string, error) {
	config, err := cm.Load()
	if err != nil {
		return nil, err
	}

	result := map[string]string{
		"cache-dir":       config.CacheDir,
		"log-file":        config.LogFile,
		"legacy-registry": config.LegacyRegistry,
		"settings-db":     config.SettingsDB,
		"max-wasted-ops":  strconv.FormatInt(config.MaxWastedOps, 10),
		"write-retries":   strconv.Itoa(config.WriteRetries),
		"log-level":       config.LogLevel,
	}

	if result["cache-dir"] == "" {
		result["cache-dir"] = "[default]"
	}
	if result["legacy-registry"] == "" {
		result["legacy-registry"] = "[disabled]"
	}

	return result, nil
}
