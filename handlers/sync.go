package handlers

import (
	"student-progress-system/middleware"
	"student-progress-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupSyncRoutes(app *fiber.App, syncService *services.SyncService, cronSecret string) {
	// The batch trigger is for external schedulers and requires the shared
	// secret; the on-demand sync backs user actions in the dashboard.
	app.Post("/cron/sync", middleware.CronAuthMiddleware(cronSecret), syncService.HandleCronSync)
	app.Post("/sync/codeforces", syncService.HandleOnDemandSync)
}
