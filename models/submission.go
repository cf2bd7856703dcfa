package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Submission is one judged attempt. SubmissionID is the judge-assigned id and
// the upsert key: re-fetching the same attempt updates the row in place
// instead of duplicating it.
type Submission struct {
	ID             string    `gorm:"primaryKey;type:uuid" json:"id"`
	SubmissionID   int64     `gorm:"uniqueIndex;not null" json:"submissionId"`
	ProblemID      string    `gorm:"index;not null" json:"problemId"` // Problem.ProblemID natural key
	Verdict        string    `json:"verdict"`
	Language       string    `json:"language"`
	SubmissionTime time.Time `gorm:"index" json:"submissionTime"`
	ExecutionTime  int       `json:"executionTime"`  // milliseconds
	MemoryConsumed float64   `json:"memoryConsumed"` // KiB
	StudentID      string    `gorm:"type:uuid;index;not null" json:"studentId"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (s *Submission) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}
