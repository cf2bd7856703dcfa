package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"student-progress-system/models"
)

type fakeJudge struct {
	user    CFUser
	subs    []CFSubmission
	history []CFRatingChange
	errs    map[string]error // per-handle failure

	infoCalls int
}

func (f *fakeJudge) FetchUserInfo(ctx context.Context, handle string) (*CFUser, error) {
	f.infoCalls++
	if err := f.errs[handle]; err != nil {
		return nil, err
	}
	user := f.user
	user.Handle = handle
	return &user, nil
}

func (f *fakeJudge) FetchSubmissions(ctx context.Context, handle string, count int) ([]CFSubmission, error) {
	if err := f.errs[handle]; err != nil {
		return nil, err
	}
	return f.subs, nil
}

func (f *fakeJudge) FetchRatingHistory(ctx context.Context, handle string) ([]CFRatingChange, error) {
	if err := f.errs[handle]; err != nil {
		return nil, err
	}
	return f.history, nil
}

type fakeMailer struct {
	err  error
	sent []string // recipient emails
}

func (f *fakeMailer) Send(ctx context.Context, toEmail, subject, textBody, htmlBody string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, toEmail)
	return nil
}

func staleSubmissions(now time.Time) []CFSubmission {
	return []CFSubmission{{
		ID:                  11,
		ContestID:           100,
		CreationTimeSeconds: now.Add(-10 * 24 * time.Hour).Unix(),
		Verdict:             "OK",
		Problem:             CFProblem{ContestID: 100, Index: "A", Name: "Theatre Square"},
	}}
}

func freshSubmissions(now time.Time) []CFSubmission {
	return []CFSubmission{{
		ID:                  12,
		ContestID:           100,
		CreationTimeSeconds: now.Add(-time.Hour).Unix(),
		Verdict:             "OK",
		Problem:             CFProblem{ContestID: 100, Index: "A", Name: "Theatre Square"},
	}}
}

func TestBatchSkipsRecentlySyncedStudent(t *testing.T) {
	db := openTestDB(t)
	judge := &fakeJudge{user: CFUser{Rating: 1500, MaxRating: 1600}}
	svc := NewSyncService(db, judge, &fakeMailer{})

	student := createTestStudent(t, db, "fresh")
	syncedAt := time.Now().Add(-time.Hour)
	db.Model(student).Update("last_data_sync", syncedAt)

	results, err := svc.RunBatch(context.Background())
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if len(results.SyncResults) != 1 || results.SyncResults[0].Status != "skipped" {
		t.Fatalf("expected a skipped outcome, got %+v", results.SyncResults)
	}
	if judge.infoCalls != 0 {
		t.Fatalf("expected no judge API calls for a skipped student, got %d", judge.infoCalls)
	}
}

func TestBatchSyncsStaleStudent(t *testing.T) {
	db := openTestDB(t)
	now := time.Now()
	judge := &fakeJudge{
		user: CFUser{Rating: 1500, MaxRating: 1600},
		subs: freshSubmissions(now),
	}
	svc := NewSyncService(db, judge, &fakeMailer{})

	student := createTestStudent(t, db, "stale")
	syncedAt := now.Add(-25 * time.Hour)
	db.Model(student).Update("last_data_sync", syncedAt)

	results, err := svc.RunBatch(context.Background())
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if len(results.SyncResults) != 1 || results.SyncResults[0].Status != "success" {
		t.Fatalf("expected a success outcome, got %+v", results.SyncResults)
	}
	if judge.infoCalls != 1 {
		t.Fatalf("expected 1 user info call, got %d", judge.infoCalls)
	}
}

func TestForcedSyncBypassesSkipPolicy(t *testing.T) {
	db := openTestDB(t)
	judge := &fakeJudge{user: CFUser{Rating: 1500, MaxRating: 1600}}
	svc := NewSyncService(db, judge, &fakeMailer{})

	student := createTestStudent(t, db, "fresh")
	syncedAt := time.Now().Add(-time.Hour)
	db.Model(student).Update("last_data_sync", syncedAt)

	result, err := svc.SyncStudentByID(context.Background(), student.ID, true)
	if err != nil {
		t.Fatalf("SyncStudentByID: %v", err)
	}
	if result.Status != "success" {
		t.Fatalf("expected forced sync to proceed, got %+v", result)
	}
}

func TestBatchIsolatesPerStudentFailures(t *testing.T) {
	db := openTestDB(t)
	now := time.Now()
	judge := &fakeJudge{
		user: CFUser{Rating: 1500, MaxRating: 1600},
		subs: freshSubmissions(now),
		errs: map[string]error{"broken": ErrRemoteUnavailable},
	}
	svc := NewSyncService(db, judge, &fakeMailer{})

	createTestStudent(t, db, "broken")
	healthy := createTestStudent(t, db, "healthy")

	results, err := svc.RunBatch(context.Background())
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if len(results.SyncResults) != 2 {
		t.Fatalf("expected 2 sync results, got %d", len(results.SyncResults))
	}

	byID := make(map[string]StudentSyncResult, 2)
	for _, r := range results.SyncResults {
		byID[r.StudentID] = r
	}
	if byID[healthy.ID].Status != "success" {
		t.Fatalf("expected the healthy student to succeed, got %+v", byID[healthy.ID])
	}

	var failed StudentSyncResult
	for id, r := range byID {
		if id != healthy.ID {
			failed = r
		}
	}
	if failed.Status != "failed" || failed.Error == "" {
		t.Fatalf("expected the broken student to fail with an error message, got %+v", failed)
	}

	// The settings timestamps advance regardless of per-student failures.
	var settings models.SyncSettings
	if err := db.First(&settings, "id = ?", models.SyncSettingsID).Error; err != nil {
		t.Fatalf("load settings: %v", err)
	}
	if settings.LastSync == nil || settings.NextSync == nil {
		t.Fatal("expected lastSync and nextSync to be set after the batch")
	}
}

func TestReminderRecordedOnlyOnDispatchSuccess(t *testing.T) {
	db := openTestDB(t)
	now := time.Now()
	judge := &fakeJudge{
		user: CFUser{Rating: 1500, MaxRating: 1600},
		subs: staleSubmissions(now),
	}
	mailer := &fakeMailer{}
	svc := NewSyncService(db, judge, mailer)
	student := createTestStudent(t, db, "idle")

	results, err := svc.RunBatch(context.Background())
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if len(results.InactivityResults) != 1 || results.InactivityResults[0].Status != "inactive" {
		t.Fatalf("expected an inactive outcome, got %+v", results.InactivityResults)
	}
	if len(results.EmailResults) != 1 || results.EmailResults[0].Status != "sent" {
		t.Fatalf("expected a sent email outcome, got %+v", results.EmailResults)
	}
	if len(mailer.sent) != 1 || mailer.sent[0] != student.Email {
		t.Fatalf("expected one email to %s, got %v", student.Email, mailer.sent)
	}

	var reminders int64
	db.Model(&models.Reminder{}).Where("student_id = ?", student.ID).Count(&reminders)
	if reminders != 1 {
		t.Fatalf("expected exactly 1 reminder row, got %d", reminders)
	}
}

func TestDispatchFailureWritesNoReminder(t *testing.T) {
	db := openTestDB(t)
	now := time.Now()
	judge := &fakeJudge{
		user: CFUser{Rating: 1500, MaxRating: 1600},
		subs: staleSubmissions(now),
	}
	mailer := &fakeMailer{err: errors.New("provider rejected the message")}
	svc := NewSyncService(db, judge, mailer)
	student := createTestStudent(t, db, "idle")

	results, err := svc.RunBatch(context.Background())
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if len(results.EmailResults) != 1 || results.EmailResults[0].Status != "failed" {
		t.Fatalf("expected a failed email outcome, got %+v", results.EmailResults)
	}

	var reminders int64
	db.Model(&models.Reminder{}).Where("student_id = ?", student.ID).Count(&reminders)
	if reminders != 0 {
		t.Fatalf("expected no reminder rows after a failed dispatch, got %d", reminders)
	}
}

func TestOptedOutStudentGetsNoEmail(t *testing.T) {
	db := openTestDB(t)
	now := time.Now()
	judge := &fakeJudge{
		user: CFUser{Rating: 1500, MaxRating: 1600},
		subs: staleSubmissions(now),
	}
	mailer := &fakeMailer{}
	svc := NewSyncService(db, judge, mailer)

	student := createTestStudent(t, db, "optout")
	db.Model(student).Update("email_reminders_enabled", false)

	results, err := svc.RunBatch(context.Background())
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	// The activity signal is still recorded; only the email is gated.
	if len(results.InactivityResults) != 1 || results.InactivityResults[0].Status != "inactive" {
		t.Fatalf("expected an inactive outcome, got %+v", results.InactivityResults)
	}
	if len(results.EmailResults) != 0 || len(mailer.sent) != 0 {
		t.Fatalf("expected no email activity, got %+v / %v", results.EmailResults, mailer.sent)
	}
}

func TestActiveStudentGetsNoEmail(t *testing.T) {
	db := openTestDB(t)
	now := time.Now()
	judge := &fakeJudge{
		user: CFUser{Rating: 1500, MaxRating: 1600},
		subs: freshSubmissions(now),
	}
	mailer := &fakeMailer{}
	svc := NewSyncService(db, judge, mailer)
	createTestStudent(t, db, "active")

	results, err := svc.RunBatch(context.Background())
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if len(results.InactivityResults) != 1 || results.InactivityResults[0].Status != "active" {
		t.Fatalf("expected an active outcome, got %+v", results.InactivityResults)
	}
	if results.InactivityResults[0].RecentSubmissions != 1 {
		t.Fatalf("expected 1 recent submission, got %d", results.InactivityResults[0].RecentSubmissions)
	}
	if len(mailer.sent) != 0 {
		t.Fatalf("expected no emails, got %v", mailer.sent)
	}
}

func TestOnDemandSyncRunsNoInactivityPass(t *testing.T) {
	db := openTestDB(t)
	now := time.Now()
	judge := &fakeJudge{
		user: CFUser{Rating: 1500, MaxRating: 1600},
		subs: staleSubmissions(now),
	}
	mailer := &fakeMailer{}
	svc := NewSyncService(db, judge, mailer)
	student := createTestStudent(t, db, "idle")

	result, err := svc.SyncStudentByID(context.Background(), student.ID, false)
	if err != nil {
		t.Fatalf("SyncStudentByID: %v", err)
	}
	if result.Status != "success" {
		t.Fatalf("expected success, got %+v", result)
	}
	if len(mailer.sent) != 0 {
		t.Fatalf("on-demand sync must not send reminders, got %v", mailer.sent)
	}
}

func TestInactiveStudentsAreSkippedEntirely(t *testing.T) {
	db := openTestDB(t)
	judge := &fakeJudge{user: CFUser{Rating: 1500, MaxRating: 1600}}
	svc := NewSyncService(db, judge, &fakeMailer{})

	student := createTestStudent(t, db, "disabled")
	db.Model(student).Update("is_active", false)

	results, err := svc.RunBatch(context.Background())
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if len(results.SyncResults) != 0 {
		t.Fatalf("expected no results for deactivated students, got %+v", results.SyncResults)
	}
}

func TestSyncStudentByIDUnknownStudent(t *testing.T) {
	db := openTestDB(t)
	svc := NewSyncService(db, &fakeJudge{}, &fakeMailer{})

	_, err := svc.SyncStudentByID(context.Background(), "no-such-id", false)
	if !errors.Is(err, ErrStudentNotFound) {
		t.Fatalf("expected ErrStudentNotFound, got %v", err)
	}
}

func TestConcurrentBatchRunsAreRejected(t *testing.T) {
	db := openTestDB(t)
	svc := NewSyncService(db, &fakeJudge{}, &fakeMailer{})

	svc.mu.Lock()
	defer svc.mu.Unlock()

	_, err := svc.RunBatch(context.Background())
	if !errors.Is(err, ErrSyncInProgress) {
		t.Fatalf("expected ErrSyncInProgress while a run holds the guard, got %v", err)
	}
}
