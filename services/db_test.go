package services

import (
	"path/filepath"
	"testing"

	"student-progress-system/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// openTestDB gives each test its own migrated sqlite database.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}

	if err := db.AutoMigrate(
		&models.Student{},
		&models.Problem{},
		&models.Contest{},
		&models.Submission{},
		&models.Reminder{},
		&models.SyncSettings{},
	); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func createTestStudent(t *testing.T, db *gorm.DB, handle string) *models.Student {
	t.Helper()

	student := models.Student{
		Name:                  "Student " + handle,
		Email:                 handle + "@example.com",
		CodeforcesHandle:      handle,
		IsActive:              true,
		EmailRemindersEnabled: true,
	}
	if err := db.Create(&student).Error; err != nil {
		t.Fatalf("create test student: %v", err)
	}
	return &student
}
