package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.LogFile != "database.log" {
		t.Errorf("Expected default log file database.log, got %s", config.LogFile)
	}

	if config.MaxWastedOps != 500 {
		t.Errorf("Expected default max wasted ops 500, got %d", config.MaxWastedOps)
	}

	if config.WriteRetries != 3 {
		t.Errorf("Expected default write retries 3, got %d", config.WriteRetries)
	}

	if config.CacheDir != "" {
		t.Errorf("Expected default cache dir empty, got %s", config.CacheDir)
	}

	if config.LegacyRegistry != "" {
		t.Errorf("Expected legacy import disabled by default, got %s", config.LegacyRegistry)
	}

	if config.Level() != logrus.InfoLevel {
		t.Errorf("Expected default level info, got %s", config.Level())
	}
}

func TestConfigManager_LoadNonExistent(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "config.yaml")

	cm := NewConfigManagerWithPath(configPath)

	config, err := cm.Load()
	if err != nil {
		t.Fatalf("Expected no error loading non-existent config, got: %v", err)
	}

	expectedDefault := DefaultConfig()
	if *config != *expectedDefault {
		t.Errorf("Expected default config %+v, got %+v", expectedDefault, config)
	}
}

func TestConfigManager_SaveAndLoad(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "config.yaml")

	cm := NewConfigManagerWithPath(configPath)

	testConfig := &Config{
		CacheDir:       "/custom/cache",
		LogFile:        "history.log",
		LegacyRegistry: "old.json",
		SettingsDB:     "prefs.db",
		MaxWastedOps:   100,
		WriteRetries:   5,
		LogLevel:       "debug",
	}

	err := cm.Save(testConfig)
	if err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Fatal("Config file was not created")
	}

	loadedConfig, err := cm.Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if *loadedConfig != *testConfig {
		t.Errorf("Expected %+v, got %+v", testConfig, loadedConfig)
	}

	if loadedConfig.Level() != logrus.DebugLevel {
		t.Errorf("Expected level debug, got %s", loadedConfig.Level())
	}
}

func TestConfigManager_PartialFileKeepsDefaults(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "config.yaml")

	if err := os.WriteFile(configPath, []byte("max_wasted_ops: 42\n"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	config, err := NewConfigManagerWithPath(configPath).Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if config.MaxWastedOps != 42 {
		t.Errorf("Expected max wasted ops 42, got %d", config.MaxWastedOps)
	}
	if config.LogFile != "database.log" {
		t.Errorf("Expected default log file, got %s", config.LogFile)
	}
	if config.WriteRetries != 3 {
		t.Errorf("Expected default write retries, got %d", config.WriteRetries)
	}
}

func TestConfigManager_Validation(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "config.yaml")
	cm := NewConfigManagerWithPath(configPath)

	valid := func(mut func(*Config)) *Config {
		c := DefaultConfig()
		mut(c)
		return c
	}

	tests := []struct {
		name        string
		config      *Config
		expectError bool
		errorMsg    string
	}{
		{
			name:        "valid config",
			config:      DefaultConfig(),
			expectError: false,
		},
		{
			name:        "zero max wasted ops",
			config:      valid(func(c *Config) { c.MaxWastedOps = 0 }),
			expectError: true,
			errorMsg:    "max_wasted_ops must be greater than 0",
		},
		{
			name:        "negative write retries",
			config:      valid(func(c *Config) { c.WriteRetries = -1 }),
			expectError: true,
			errorMsg:    "write_retries cannot be negative",
		},
		{
			name:        "excessive write retries",
			config:      valid(func(c *Config) { c.WriteRetries = 50 }),
			expectError: true,
			errorMsg:    "write_retries cannot exceed 20",
		},
		{
			name:        "empty log file",
			config:      valid(func(c *Config) { c.LogFile = "" }),
			expectError: true,
			errorMsg:    "log_file must not be empty",
		},
		{
			name:        "log file with directory",
			config:      valid(func(c *Config) { c.LogFile = "sub/database.log" }),
			expectError: true,
			errorMsg:    "log_file must be a plain file name",
		},
		{
			name:        "bad log level",
			config:      valid(func(c *Config) { c.LogLevel = "loud" }),
			expectError: true,
			errorMsg:    `log_level "loud" is not a valid level`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := cm.Save(tt.config)

			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error for %s, but got none", tt.name)
				} else if tt.errorMsg != "" && err.Error() != "invalid configuration: "+tt.errorMsg {
					t.Errorf("Expected error message '%s', got '%s'", tt.errorMsg, err.Error())
				}
			} else {
				if err != nil {
					t.Errorf("Unexpected error for %s: %v", tt.name, err)
				}
			}
		})
	}
}

func TestConfigManager_Update(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "config.yaml")
	cm := NewConfigManagerWithPath(configPath)

	tests := []struct {
		name        string
		key         string
		value       string
		expectError bool
	}{
		{"valid cache-dir", "cache-dir", "/custom/path", false},
		{"valid log-file", "log-file", "other.log", false},
		{"valid max-wasted-ops", "max-wasted-ops", "1000", false},
		{"valid write-retries", "write-retries", "0", false},
		{"valid log-level", "log-level", "warning", false},
		{"invalid key", "invalid-key", "value", true},
		{"invalid max-wasted-ops", "max-wasted-ops", "not-a-number", true},
		{"zero max-wasted-ops", "max-wasted-ops", "0", true},
		{"invalid log-level", "log-level", "maybe", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := cm.Update(tt.key, tt.value)

			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error for %s, but got none", tt.name)
				}
			} else {
				if err != nil {
					t.Errorf("Unexpected error for %s: %v", tt.name, err)
				}

				retrievedValue, err := cm.Get(tt.key)
				if err != nil {
					t.Errorf("Failed to get value after update: %v", err)
				} else if retrievedValue != tt.value {
					t.Errorf("Expected retrieved value %s, got %s", tt.value, retrievedValue)
				}
			}
		})
	}
}

func TestConfigManager_Get(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "config.yaml")
	cm := NewConfigManagerWithPath(configPath)

	config := DefaultConfig()
	config.CacheDir = "/test/path"
	config.MaxWastedOps = 75

	err := cm.Save(config)
	if err != nil {
		t.Fatalf("Failed to save test config: %v", err)
	}

	tests := []struct {
		name          string
		key           string
		expectedValue string
		expectError   bool
	}{
		{"get max-wasted-ops", "max-wasted-ops", "75", false},
		{"get cache-dir", "cache-dir", "/test/path", false},
		{"get log-level", "log-level", "info", false},
		{"get invalid key", "invalid-key", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, err := cm.Get(tt.key)

			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error for %s, but got none", tt.name)
				}
			} else {
				if err != nil {
					t.Errorf("Unexpected error for %s: %v", tt.name, err)
				} else if value != tt.expectedValue {
					t.Errorf("Expected value %s, got %s", tt.expectedValue, value)
				}
			}
		})
	}
}

func TestConfigManager_List(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "config.yaml")
	cm := NewConfigManagerWithPath(configPath)

	values, err := cm.List()
	if err != nil {
		t.Fatalf("Failed to list default config: %v", err)
	}

	expectedKeys := []string{
		"cache-dir", "log-file", "legacy-registry", "settings-db",
		"max-wasted-ops", "write-retries", "log-level",
	}
	for _, key := range expectedKeys {
		if _, exists := values[key]; !exists {
			t.Errorf("Expected key %s to exist in list output", key)
		}
	}

	if values["max-wasted-ops"] != "500" {
		t.Errorf("Expected default max-wasted-ops 500, got %s", values["max-wasted-ops"])
	}

	if values["cache-dir"] != "[default]" {
		t.Errorf("Expected default cache-dir [default], got %s", values["cache-dir"])
	}

	if values["legacy-registry"] != "[disabled]" {
		t.Errorf("Expected default legacy-registry [disabled], got %s", values["legacy-registry"])
	}
}

func TestConfigManager_GetConfigPath(t *testing.T) {
	configPath := "/test/config/path.yaml"
	cm := NewConfigManagerWithPath(configPath)

	if cm.GetConfigPath() != configPath {
		t.Errorf("Expected config path %s, got %s", configPath, cm.GetConfigPath())
	}
}

func TestNewConfigManager(t *testing.T) {
	cm, err := NewConfigManager()
	if err != nil {
		t.Fatalf("Failed to create config manager: %v", err)
	}

	configPath := cm.GetConfigPath()
	if !filepath.IsAbs(configPath) {
		t.Errorf("Expected absolute config path, got %s", configPath)
	}

	if !strings.HasSuffix(configPath, ".config/cliphist/config.yaml") {
		t.Errorf("Expected config path to end with .config/cliphist/config.yaml, got %s", configPath)
	}
}
