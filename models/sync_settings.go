package models

import "time"

// SyncSettingsID keys the single process-wide settings row.
const SyncSettingsID = "default"

// DefaultCronExpression runs the batch sync daily at 02:00.
const DefaultCronExpression = "0 2 * * *"

// SyncSettings is the singleton scheduling configuration. It is created
// lazily with defaults on first read and updated last-writer-wins.
type SyncSettings struct {
	ID             string     `gorm:"primaryKey" json:"id"`
	CronExpression string     `gorm:"not null" json:"cronExpression"`
	IsEnabled      bool       `gorm:"default:true" json:"isEnabled"`
	LastSync       *time.Time `json:"lastSync,omitempty"`
	NextSync       *time.Time `json:"nextSync,omitempty"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
}
