package services

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"student-progress-system/models"
	"student-progress-system/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// StudentService carries the thin CRUD surface around the sync pipeline:
// registration, profile edits, CSV export and the test-email endpoint.
type StudentService struct {
	DB      *gorm.DB
	Mailer  EmailSender
	Archive *utils.ArchiveStore // nil when export archival is not configured
}

func NewStudentService(db *gorm.DB, mailer EmailSender, archive *utils.ArchiveStore) *StudentService {
	return &StudentService{DB: db, Mailer: mailer, Archive: archive}
}

type studentRequest struct {
	Name                  *string `json:"name"`
	Email                 *string `json:"email"`
	PhoneNumber           *string `json:"phoneNumber"`
	CodeforcesHandle      *string `json:"codeforcesHandle"`
	IsActive              *bool   `json:"isActive"`
	EmailRemindersEnabled *bool   `json:"emailRemindersEnabled"`
}

// GetStudents handles GET /students.
func (s *StudentService) GetStudents(c *fiber.Ctx) error {
	var students []models.Student
	if err := s.DB.Order("created_at DESC").Find(&students).Error; err != nil {
		log.Printf("[STUDENTS] list failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch students"})
	}

	reminderCounts, err := s.countByStudent(&models.Reminder{})
	if err != nil {
		log.Printf("[STUDENTS] reminder counts failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch students"})
	}

	type studentSummary struct {
		models.Student
		ReminderCount int64 `json:"reminderCount"`
	}
	res := make([]studentSummary, len(students))
	for i, st := range students {
		res[i] = studentSummary{Student: st, ReminderCount: reminderCounts[st.ID]}
	}
	return c.JSON(res)
}

// CreateStudent handles POST /students.
func (s *StudentService) CreateStudent(c *fiber.Ctx) error {
	var body studentRequest
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if body.Name == nil || *body.Name == "" ||
		body.Email == nil || *body.Email == "" ||
		body.CodeforcesHandle == nil || *body.CodeforcesHandle == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Name, email, and Codeforces handle are required",
		})
	}

	var existing models.Student
	err := s.DB.Where("email = ? OR codeforces_handle = ?", *body.Email, *body.CodeforcesHandle).
		First(&existing).Error
	if err == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Student with this email or Codeforces handle already exists",
		})
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Printf("[STUDENTS] conflict check failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create student"})
	}

	student := models.Student{
		Name:                  *body.Name,
		Email:                 *body.Email,
		PhoneNumber:           body.PhoneNumber,
		CodeforcesHandle:      *body.CodeforcesHandle,
		IsActive:              true,
		EmailRemindersEnabled: true,
	}
	if err := s.DB.Create(&student).Error; err != nil {
		log.Printf("[STUDENTS] create failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create student"})
	}
	return c.Status(fiber.StatusCreated).JSON(student)
}

// GetStudent handles GET /students/:id with the student's contests,
// submissions and reminders.
func (s *StudentService) GetStudent(c *fiber.Ctx) error {
	var student models.Student
	err := s.DB.
		Preload("Contests", func(db *gorm.DB) *gorm.DB { return db.Order("start_time DESC") }).
		Preload("Submissions", func(db *gorm.DB) *gorm.DB { return db.Order("submission_time DESC") }).
		Preload("Reminders", func(db *gorm.DB) *gorm.DB { return db.Order("sent_at DESC") }).
		Where("id = ?", c.Params("id")).
		First(&student).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Student not found"})
	}
	if err != nil {
		log.Printf("[STUDENTS] fetch failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch student"})
	}
	return c.JSON(student)
}

// UpdateStudent handles PUT /students/:id.
func (s *StudentService) UpdateStudent(c *fiber.Ctx) error {
	var student models.Student
	if err := s.DB.Where("id = ?", c.Params("id")).First(&student).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Student not found"})
		}
		log.Printf("[STUDENTS] fetch failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update student"})
	}

	var body studentRequest
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if body.Email != nil || body.CodeforcesHandle != nil {
		email := student.Email
		if body.Email != nil {
			email = *body.Email
		}
		handle := student.CodeforcesHandle
		if body.CodeforcesHandle != nil {
			handle = *body.CodeforcesHandle
		}
		var conflicting models.Student
		err := s.DB.Where("(email = ? OR codeforces_handle = ?) AND id <> ?", email, handle, student.ID).
			First(&conflicting).Error
		if err == nil {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "Email or Codeforces handle already exists",
			})
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("[STUDENTS] conflict check failed: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update student"})
		}
	}

	if body.Name != nil && *body.Name != "" {
		student.Name = *body.Name
	}
	if body.Email != nil && *body.Email != "" {
		student.Email = *body.Email
	}
	if body.PhoneNumber != nil {
		student.PhoneNumber = body.PhoneNumber
	}
	if body.CodeforcesHandle != nil && *body.CodeforcesHandle != "" {
		student.CodeforcesHandle = *body.CodeforcesHandle
	}
	if body.IsActive != nil {
		student.IsActive = *body.IsActive
	}
	if body.EmailRemindersEnabled != nil {
		student.EmailRemindersEnabled = *body.EmailRemindersEnabled
	}

	if err := s.DB.Save(&student).Error; err != nil {
		log.Printf("[STUDENTS] save failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update student"})
	}
	return c.JSON(student)
}

// DeleteStudent handles DELETE /students/:id. Contests, submissions and
// reminders owned by the student go with it.
func (s *StudentService) DeleteStudent(c *fiber.Ctx) error {
	id := c.Params("id")

	var student models.Student
	if err := s.DB.Where("id = ?", id).First(&student).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Student not found"})
		}
		log.Printf("[STUDENTS] fetch failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete student"})
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("student_id = ?", id).Delete(&models.Contest{}).Error; err != nil {
			return err
		}
		if err := tx.Where("student_id = ?", id).Delete(&models.Submission{}).Error; err != nil {
			return err
		}
		if err := tx.Where("student_id = ?", id).Delete(&models.Reminder{}).Error; err != nil {
			return err
		}
		return tx.Delete(&student).Error
	})
	if err != nil {
		log.Printf("[STUDENTS] delete failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete student"})
	}
	return c.JSON(fiber.Map{"message": "Student deleted successfully"})
}

// ExportStudentsCSV handles GET /students/export. When an archive store is
// configured a copy of the snapshot is uploaded there as well.
func (s *StudentService) ExportStudentsCSV(c *fiber.Ctx) error {
	var students []models.Student
	if err := s.DB.Order("created_at DESC").Find(&students).Error; err != nil {
		log.Printf("[EXPORT] list failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to export students"})
	}

	counts := make([]map[string]int64, 3)
	for i, model := range []interface{}{&models.Contest{}, &models.Submission{}, &models.Reminder{}} {
		byStudent, err := s.countByStudent(model)
		if err != nil {
			log.Printf("[EXPORT] counts failed: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to export students"})
		}
		counts[i] = byStudent
	}

	csvBytes, err := buildStudentsCSV(students, counts[0], counts[1], counts[2])
	if err != nil {
		log.Printf("[EXPORT] csv build failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to export students"})
	}

	filename := fmt.Sprintf("students-%s.csv", time.Now().Format("2006-01-02"))
	if s.Archive != nil {
		if err := s.Archive.Upload(c.Context(), "exports/"+filename, csvBytes, "text/csv"); err != nil {
			log.Printf("[EXPORT] archive upload failed: %v", err)
		}
	}

	c.Set("Content-Type", "text/csv")
	c.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	return c.Send(csvBytes)
}

// SendTestEmail handles POST /students/:id/testmail.
func (s *StudentService) SendTestEmail(c *fiber.Ctx) error {
	var student models.Student
	if err := s.DB.Where("id = ?", c.Params("id")).First(&student).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Student not found"})
		}
		log.Printf("[STUDENTS] fetch failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to send test email"})
	}

	textBody := fmt.Sprintf(`Hello %s,

This is a test email from Student Progress Management System.

If you received this, your email setup is working!

Best regards,
Student Progress Management System
`, student.Name)
	htmlBody := "<p>" + student.Name + ", this is a test email from Student Progress Management System. If you received this, your email setup is working!</p>"

	if err := s.Mailer.Send(c.Context(), student.Email, "Test Email from Student Progress Management System", textBody, htmlBody); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"success": true, "message": "Test email sent successfully!"})
}

// countByStudent groups rows of the given model by student id.
func (s *StudentService) countByStudent(model interface{}) (map[string]int64, error) {
	type row struct {
		StudentID string
		N         int64
	}
	var rows []row
	if err := s.DB.Model(model).
		Select("student_id, COUNT(*) AS n").
		Group("student_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.StudentID] = r.N
	}
	return counts, nil
}

func buildStudentsCSV(students []models.Student, contests, submissions, reminders map[string]int64) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{
		"Name", "Email", "Phone Number", "Codeforces Handle", "Current Rating",
		"Max Rating", "Is Active", "Last Data Sync", "Total Contests",
		"Total Submissions", "Reminders Sent", "Created At", "Updated At",
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}

	for _, st := range students {
		phone := ""
		if st.PhoneNumber != nil {
			phone = *st.PhoneNumber
		}
		active := "No"
		if st.IsActive {
			active = "Yes"
		}
		lastSync := "Never"
		if st.LastDataSync != nil {
			lastSync = st.LastDataSync.UTC().Format(time.RFC3339)
		}
		record := []string{
			st.Name, st.Email, phone, st.CodeforcesHandle,
			strconv.Itoa(st.CurrentRating), strconv.Itoa(st.MaxRating),
			active, lastSync,
			strconv.FormatInt(contests[st.ID], 10),
			strconv.FormatInt(submissions[st.ID], 10),
			strconv.FormatInt(reminders[st.ID], 10),
			st.CreatedAt.UTC().Format(time.RFC3339),
			st.UpdatedAt.UTC().Format(time.RFC3339),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
