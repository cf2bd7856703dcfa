package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Problem is immutable reference data about a judge problem. Rows are created
// on first observation and never updated afterwards, even if a later fetch
// disagrees about rating or tags.
//
// ProblemID is the contest-local index concatenated with the problem name,
// matching the judge's own dedup granularity.
type Problem struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	ProblemID string    `gorm:"uniqueIndex;not null" json:"problemId"`
	Name      string    `gorm:"not null" json:"name"`
	Slug      string    `gorm:"index" json:"slug"`
	Rating    *int      `json:"rating,omitempty"`
	Tags      string    `json:"tags"` // JSON-encoded string array
	ContestID int       `json:"contestId"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (p *Problem) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
