// Package dbstore keeps user preferences in a SQLite database through GORM.
package dbstore

import (
	"errors"
	"fmt"

	"github.com/yiblet/cliphist/internal/store"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DefaultSettings are written on first open for every key that is missing.
var DefaultSettings = map[string]string{
	"history-size":         "50",
	"cache-size":           "5",
	"cache-only-favorites": "false",
	"move-item-first":      "false",
	"strip-text":           "false",
	"settings-version":     "1",
}

// SettingsStore is a SQLite-backed implementation of store.ConfigStore
type SettingsStore struct {
	db     *gorm.DB
	dbPath string
}

var _ store.ConfigStore = (*SettingsStore)(nil)

// NewSettingsStore opens (or creates) the settings database at dbPath.
// It initializes the schema and fills in default settings.
func NewSettingsStore(dbPath string) (*SettingsStore, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&SettingModel{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	s := &SettingsStore{
		db:     db,
		dbPath: dbPath,
	}

	if err := s.initDefaults(); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to init settings: %w", err)
	}

	return s, nil
}

// Path returns the database file path
func (s *SettingsStore) Path() string {
	return s.dbPath
}

// initDefaults sets up default values for keys that are not present yet
func (s *SettingsStore) initDefaults() error {
	for key, value := range DefaultSettings {
		if _, err := s.Get(key); err != nil {
			if err := s.Set(key, value); err != nil {
				return err
			}
		}
	}
	return nil
}

// Get retrieves a setting by key
func (s *SettingsStore) Get(key string) (string, error) {
	var model SettingModel
	if err := s.db.First(&model, "key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("setting not found: %s", key)
		}
		return "", fmt.Errorf("failed to get setting: %w", err)
	}
	return model.Value, nil
}

// Set stores a setting (upsert)
func (s *SettingsStore) Set(key, value string) error {
	model := &SettingModel{
		Key:   key,
		Value: value,
	}

	result := s.db.Where("key = ?", key).
		Assign(map[string]interface{}{"value": value, "updated_at": s.db.NowFunc()}).
		FirstOrCreate(model)

	if result.Error != nil {
		return fmt.Errorf("failed to set setting: %w", result.Error)
	}

	return nil
}

// List returns all settings
func (s *SettingsStore) List() (map[string]string, error) {
	var models []SettingModel
	if err := s.db.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}

	result := make(map[string]string, len(models))
	for _, model := range models {
		result[model.Key] = model.Value
	}

	return result, nil
}

// Delete removes a setting
func (s *SettingsStore) Delete(key string) error {
	result := s.db.Delete(&SettingModel{}, "key = ?", key)
	if result.Error != nil {
		return fmt.Errorf("failed to delete setting: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("setting not found: %s", key)
	}
	return nil
}

// Close closes the database connection
func (s *SettingsStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
