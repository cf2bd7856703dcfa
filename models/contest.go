package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Contest is one student's participation in one rated contest. It is a
// derived view of the rating history: every sync deletes and recreates the
// student's contest rows, so the table never needs in-place updates.
type Contest struct {
	ID                string    `gorm:"primaryKey;type:uuid" json:"id"`
	ContestID         int       `gorm:"index;not null" json:"contestId"`
	Name              string    `gorm:"not null" json:"name"`
	StartTime         time.Time `json:"startTime"`
	Duration          int       `gorm:"default:0" json:"duration"` // not provided by the rating API
	Type              string    `gorm:"type:varchar(16);default:'CF'" json:"type"`
	Rank              int       `json:"rank"`
	RatingChange      int       `json:"ratingChange"`
	ProblemsSolved    int       `json:"problemsSolved"`
	ProblemsAttempted int       `json:"problemsAttempted"`
	StudentID         string    `gorm:"type:uuid;index;not null" json:"studentId"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (c *Contest) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}
