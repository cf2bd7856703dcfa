package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"student-progress-system/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// syncFreshnessWindow is how long a student's synced data is considered
// fresh; syncs inside the window are skipped unless forced.
const syncFreshnessWindow = 24 * time.Hour

var (
	// ErrSyncInProgress is returned when a batch run is requested while
	// another one is still running. Batch runs are serialized, never queued.
	ErrSyncInProgress = errors.New("a sync batch is already running")

	ErrStudentNotFound = errors.New("student not found")
)

// StudentSyncResult is one student's outcome in a sync pass.
type StudentSyncResult struct {
	StudentID            string `json:"studentId"`
	StudentName          string `json:"studentName"`
	Status               string `json:"status"` // success, skipped, failed
	Reason               string `json:"reason,omitempty"`
	Error                string `json:"error,omitempty"`
	ContestsProcessed    int    `json:"contestsProcessed,omitempty"`
	SubmissionsProcessed int    `json:"submissionsProcessed,omitempty"`
}

// InactivityResult is one student's activity signal in a batch pass.
type InactivityResult struct {
	StudentID         string `json:"studentId"`
	StudentName       string `json:"studentName"`
	Status            string `json:"status"` // active, inactive
	DaysInactive      int    `json:"daysInactive,omitempty"`
	RecentSubmissions int    `json:"recentSubmissions"`
}

// EmailResult is one reminder dispatch outcome in a batch pass.
type EmailResult struct {
	StudentID   string `json:"studentId"`
	StudentName string `json:"studentName"`
	Status      string `json:"status"` // sent, failed
	Type        string `json:"type,omitempty"`
	Error       string `json:"error,omitempty"`
}

// BatchResults aggregates everything a full batch pass produced.
type BatchResults struct {
	SyncResults       []StudentSyncResult `json:"syncResults"`
	InactivityResults []InactivityResult  `json:"inactivityResults"`
	EmailResults      []EmailResult       `json:"emailResults"`
}

// SyncService orchestrates the per-student fetch → reconcile → detect →
// notify pipeline. Students are processed sequentially and failures are
// isolated per student.
type SyncService struct {
	DB     *gorm.DB
	Judge  JudgeClient
	Mailer EmailSender

	mu sync.Mutex // serializes batch runs
}

func NewSyncService(db *gorm.DB, judge JudgeClient, mailer EmailSender) *SyncService {
	return &SyncService{DB: db, Judge: judge, Mailer: mailer}
}

// RunBatch processes every active student once: skip-or-sync, then the
// inactivity check and reminder for freshly synced students. SyncSettings'
// last/next sync timestamps are advanced even when individual students fail.
func (s *SyncService) RunBatch(ctx context.Context) (*BatchResults, error) {
	if !s.mu.TryLock() {
		return nil, ErrSyncInProgress
	}
	defer s.mu.Unlock()

	var students []models.Student
	if err := s.DB.Where("is_active = ?", true).Find(&students).Error; err != nil {
		return nil, fmt.Errorf("load active students: %w", err)
	}

	results := &BatchResults{
		SyncResults:       []StudentSyncResult{},
		InactivityResults: []InactivityResult{},
		EmailResults:      []EmailResult{},
	}

	log.Printf("[SYNC] starting batch for %d active student(s)", len(students))

	for i := range students {
		student := &students[i]

		syncResult, submissions := s.syncStudent(ctx, student, false)
		results.SyncResults = append(results.SyncResults, syncResult)
		if syncResult.Status != "success" {
			continue
		}

		now := time.Now()
		recent := CountRecentSubmissions(submissions, now, InactivityWindow)
		if recent > 0 {
			results.InactivityResults = append(results.InactivityResults, InactivityResult{
				StudentID:         student.ID,
				StudentName:       student.Name,
				Status:            "active",
				RecentSubmissions: recent,
			})
			continue
		}

		results.InactivityResults = append(results.InactivityResults, InactivityResult{
			StudentID:    student.ID,
			StudentName:  student.Name,
			Status:       "inactive",
			DaysInactive: int(InactivityWindow / (24 * time.Hour)),
		})

		if !student.EmailRemindersEnabled {
			continue
		}

		if err := s.sendInactivityReminder(ctx, student); err != nil {
			log.Printf("[SYNC] reminder dispatch failed for %s (%s): %v", student.Name, student.ID, err)
			results.EmailResults = append(results.EmailResults, EmailResult{
				StudentID:   student.ID,
				StudentName: student.Name,
				Status:      "failed",
				Error:       err.Error(),
			})
			continue
		}
		results.EmailResults = append(results.EmailResults, EmailResult{
			StudentID:   student.ID,
			StudentName: student.Name,
			Status:      "sent",
			Type:        "inactivity",
		})
	}

	if err := s.touchSyncSettings(); err != nil {
		log.Printf("[SYNC] failed to update sync settings timestamps: %v", err)
	}

	log.Printf("[SYNC] batch done: %d sync result(s), %d email(s)",
		len(results.SyncResults), len(results.EmailResults))
	return results, nil
}

// SyncStudentByID runs the skip-or-sync logic for one student, typically in
// response to a user action. It does not run inactivity detection.
func (s *SyncService) SyncStudentByID(ctx context.Context, studentID string, force bool) (*StudentSyncResult, error) {
	var student models.Student
	if err := s.DB.Where("id = ?", studentID).First(&student).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStudentNotFound
		}
		return nil, err
	}

	result, _ := s.syncStudent(ctx, &student, force)
	return &result, nil
}

// SyncAllStudents runs the skip-or-sync logic for every active student and
// returns the per-student results directly. Used by the on-demand endpoint;
// no inactivity pass.
func (s *SyncService) SyncAllStudents(ctx context.Context, force bool) ([]StudentSyncResult, error) {
	var students []models.Student
	if err := s.DB.Where("is_active = ?", true).Find(&students).Error; err != nil {
		return nil, fmt.Errorf("load active students: %w", err)
	}

	results := make([]StudentSyncResult, 0, len(students))
	for i := range students {
		result, _ := s.syncStudent(ctx, &students[i], force)
		results = append(results, result)
	}
	return results, nil
}

// syncStudent performs one student's fetch + reconcile. Every failure mode is
// converted into a result entry so callers never have to unwind a batch. On
// success the freshly fetched submissions are returned for the inactivity
// check.
func (s *SyncService) syncStudent(ctx context.Context, student *models.Student, force bool) (StudentSyncResult, []CFSubmission) {
	result := StudentSyncResult{
		StudentID:   student.ID,
		StudentName: student.Name,
	}

	if !force && student.LastDataSync != nil && time.Since(*student.LastDataSync) < syncFreshnessWindow {
		result.Status = "skipped"
		result.Reason = "Recently synced"
		return result, nil
	}

	user, err := s.Judge.FetchUserInfo(ctx, student.CodeforcesHandle)
	if err != nil {
		return failed(result, student, "user info", err), nil
	}

	submissions, err := s.Judge.FetchSubmissions(ctx, student.CodeforcesHandle, SubmissionFetchLimit)
	if err != nil {
		return failed(result, student, "submissions", err), nil
	}

	history, err := s.Judge.FetchRatingHistory(ctx, student.CodeforcesHandle)
	if err != nil {
		return failed(result, student, "rating history", err), nil
	}

	if err := s.reconcile(student, user, submissions, history); err != nil {
		return failed(result, student, "reconcile", err), nil
	}

	result.Status = "success"
	result.ContestsProcessed = len(history)
	result.SubmissionsProcessed = len(submissions)
	return result, submissions
}

func failed(result StudentSyncResult, student *models.Student, stage string, err error) StudentSyncResult {
	log.Printf("[SYNC] %s failed for %s (handle=%s): %v", stage, student.Name, student.CodeforcesHandle, err)
	result.Status = "failed"
	result.Error = fmt.Sprintf("%s: %v", stage, err)
	return result
}

// sendInactivityReminder dispatches the reminder email and, strictly after a
// successful dispatch, appends the Reminder record.
func (s *SyncService) sendInactivityReminder(ctx context.Context, student *models.Student) error {
	textBody := fmt.Sprintf(`Dear %s,

We noticed that you haven't made any submissions on Codeforces in the last 7 days.
Regular practice is key to improving your competitive programming skills!

Your current rating: %d
Your max rating: %d

Keep up the great work and don't forget to practice regularly!

Best regards,
Student Progress Management System
`, student.Name, student.CurrentRating, student.MaxRating)

	subject := "Reminder: Keep Practicing on Codeforces!"
	htmlBody := strings.ReplaceAll(textBody, "\n", "<br>")

	if err := s.Mailer.Send(ctx, student.Email, subject, textBody, htmlBody); err != nil {
		return err
	}

	reminder := models.Reminder{
		Type:         "inactivity",
		StudentID:    student.ID,
		EmailContent: fmt.Sprintf("Inactivity reminder sent to %s (%s)", student.Name, student.Email),
	}
	return s.DB.Create(&reminder).Error
}

// touchSyncSettings advances the singleton's last/next sync stamps after a
// batch pass, creating the row if the settings endpoint was never hit.
func (s *SyncService) touchSyncSettings() error {
	now := time.Now()
	next := now.Add(syncFreshnessWindow)
	settings := models.SyncSettings{
		ID:             models.SyncSettingsID,
		CronExpression: models.DefaultCronExpression,
		IsEnabled:      true,
		LastSync:       &now,
		NextSync:       &next,
	}
	return s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_sync", "next_sync", "updated_at"}),
	}).Create(&settings).Error
}
