package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Reminder is an append-only log entry for a dispatched notification. Rows
// are written only after the email provider accepts the message.
type Reminder struct {
	ID           string    `gorm:"primaryKey;type:uuid" json:"id"`
	Type         string    `gorm:"type:varchar(32);not null" json:"type"`
	StudentID    string    `gorm:"type:uuid;index;not null" json:"studentId"`
	SentAt       time.Time `gorm:"autoCreateTime" json:"sentAt"`
	EmailContent string    `json:"emailContent"`
}

func (r *Reminder) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
