package handlers

import (
	"student-progress-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupSettingsRoutes(app *fiber.App, settingsService *services.SettingsService) {
	app.Get("/settings/sync", settingsService.GetSyncSettings)
	app.Put("/settings/sync", settingsService.UpdateSyncSettings)
}
