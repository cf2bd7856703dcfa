package services

import (
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
)

// HandleCronSync handles POST /cron/sync, the authenticated batch trigger.
func (s *SyncService) HandleCronSync(c *fiber.Ctx) error {
	results, err := s.RunBatch(c.Context())
	if err != nil {
		if errors.Is(err, ErrSyncInProgress) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
		}
		log.Printf("[SYNC] batch trigger failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Cron job failed",
			"details": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"success":   true,
		"message":   "Cron job completed successfully",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"results":   results,
	})
}

// HandleOnDemandSync handles POST /sync/codeforces: one student when an id is
// given, otherwise all active students. Supports a force flag; runs no
// inactivity detection.
func (s *SyncService) HandleOnDemandSync(c *fiber.Ctx) error {
	var body struct {
		StudentID string `json:"studentId"`
		ForceSync bool   `json:"forceSync"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&body); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
	}

	if body.StudentID != "" {
		result, err := s.SyncStudentByID(c.Context(), body.StudentID, body.ForceSync)
		if err != nil {
			if errors.Is(err, ErrStudentNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Student not found"})
			}
			log.Printf("[SYNC] on-demand sync failed for %s: %v", body.StudentID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to sync Codeforces data"})
		}
		return c.JSON(result)
	}

	results, err := s.SyncAllStudents(c.Context(), body.ForceSync)
	if err != nil {
		log.Printf("[SYNC] on-demand bulk sync failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to sync Codeforces data"})
	}
	return c.JSON(fiber.Map{"results": results})
}
