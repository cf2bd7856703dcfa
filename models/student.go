package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Student is a tracked competitive-programming student. Rating fields and
// LastDataSync are maintained by the sync pipeline; the rest is editable
// through the CRUD endpoints.
type Student struct {
	ID                    string     `gorm:"primaryKey;type:uuid" json:"id"`
	Name                  string     `gorm:"not null" json:"name"`
	Email                 string     `gorm:"uniqueIndex;not null" json:"email"`
	PhoneNumber           *string    `json:"phoneNumber,omitempty"`
	CodeforcesHandle      string     `gorm:"uniqueIndex;not null" json:"codeforcesHandle"`
	CurrentRating         int        `gorm:"default:0" json:"currentRating"`
	MaxRating             int        `gorm:"default:0" json:"maxRating"`
	IsActive              bool       `gorm:"default:true" json:"isActive"`
	EmailRemindersEnabled bool       `gorm:"default:true" json:"emailRemindersEnabled"`
	LastDataSync          *time.Time `json:"lastDataSync,omitempty"`
	CreatedAt             time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt             time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`

	Contests    []Contest    `gorm:"foreignKey:StudentID;constraint:OnDelete:CASCADE" json:"contests,omitempty"`
	Submissions []Submission `gorm:"foreignKey:StudentID;constraint:OnDelete:CASCADE" json:"submissions,omitempty"`
	Reminders   []Reminder   `gorm:"foreignKey:StudentID;constraint:OnDelete:CASCADE" json:"reminders,omitempty"`
}

func (s *Student) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}
