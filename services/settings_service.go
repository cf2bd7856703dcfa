package services

import (
	"errors"
	"log"
	"strconv"
	"strings"

	"student-progress-system/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// SettingsService manages the singleton sync-schedule configuration.
type SettingsService struct {
	DB *gorm.DB
}

func NewSettingsService(db *gorm.DB) *SettingsService {
	return &SettingsService{DB: db}
}

// GetOrCreate returns the singleton settings row, creating it with defaults
// on first read.
func (s *SettingsService) GetOrCreate() (*models.SyncSettings, error) {
	var settings models.SyncSettings
	err := s.DB.Where("id = ?", models.SyncSettingsID).First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		settings = models.SyncSettings{
			ID:             models.SyncSettingsID,
			CronExpression: models.DefaultCronExpression,
			IsEnabled:      true,
		}
		if err := s.DB.Create(&settings).Error; err != nil {
			return nil, err
		}
		return &settings, nil
	}
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

// GetSyncSettings handles GET /settings/sync.
func (s *SettingsService) GetSyncSettings(c *fiber.Ctx) error {
	settings, err := s.GetOrCreate()
	if err != nil {
		log.Printf("[SETTINGS] fetch failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch sync settings"})
	}
	return c.JSON(settings)
}

// UpdateSyncSettings handles PUT /settings/sync. An invalid cron expression
// is rejected before anything is persisted.
func (s *SettingsService) UpdateSyncSettings(c *fiber.Ctx) error {
	var body struct {
		CronExpression *string `json:"cronExpression"`
		IsEnabled      *bool   `json:"isEnabled"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if body.CronExpression != nil && !IsValidCronExpression(*body.CronExpression) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid cron expression"})
	}

	settings, err := s.GetOrCreate()
	if err != nil {
		log.Printf("[SETTINGS] fetch failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update sync settings"})
	}

	if body.CronExpression != nil {
		settings.CronExpression = *body.CronExpression
	}
	if body.IsEnabled != nil {
		settings.IsEnabled = *body.IsEnabled
	}

	if err := s.DB.Save(settings).Error; err != nil {
		log.Printf("[SETTINGS] save failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update sync settings"})
	}
	return c.JSON(settings)
}

// IsValidCronExpression checks a five-field cron expression: minute, hour,
// day-of-month, month, weekday. Accepted per field: "*", single values,
// ranges ("a-b"), lists ("a,b,c") and steps ("*/n").
func IsValidCronExpression(expr string) bool {
	parts := strings.Split(expr, " ")
	if len(parts) != 5 {
		return false
	}

	bounds := [5][2]int{
		{0, 59}, // minute
		{0, 23}, // hour
		{1, 31}, // day of month
		{1, 12}, // month
		{0, 6},  // weekday
	}
	for i, part := range parts {
		if !isValidCronField(part, bounds[i][0], bounds[i][1]) {
			return false
		}
	}
	return true
}

func isValidCronField(part string, min, max int) bool {
	if part == "*" {
		return true
	}
	if strings.Contains(part, "/") {
		rangePart, stepPart, _ := strings.Cut(part, "/")
		if rangePart != "*" {
			return false
		}
		step, err := strconv.Atoi(stepPart)
		return err == nil && step > 0
	}
	if strings.Contains(part, "-") {
		startPart, endPart, _ := strings.Cut(part, "-")
		start, err1 := strconv.Atoi(startPart)
		end, err2 := strconv.Atoi(endPart)
		return err1 == nil && err2 == nil && start >= min && end <= max && start <= end
	}
	if strings.Contains(part, ",") {
		for _, item := range strings.Split(part, ",") {
			n, err := strconv.Atoi(item)
			if err != nil || n < min || n > max {
				return false
			}
		}
		return true
	}
	n, err := strconv.Atoi(part)
	return err == nil && n >= min && n <= max
}
