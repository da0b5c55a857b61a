package dbstore

import (
	"time"
)

// SettingModel represents a user preference key-value pair
type SettingModel struct {
	Key       string    `gorm:"primaryKey;size:100"`
	Value     string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName returns the table name for SettingModel
func (SettingModel) TableName() string {
	return "settings"
}
