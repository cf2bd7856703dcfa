package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"student-progress-system/handlers"
	"student-progress-system/models"
	"student-progress-system/services"
	"student-progress-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, reading environment variables directly")
	}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}
	cronSecret := os.Getenv("CRON_SECRET")
	if cronSecret == "" {
		log.Fatal("CRON_SECRET environment variable not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Student{},
		&models.Problem{},
		&models.Contest{},
		&models.Submission{},
		&models.Reminder{},
		&models.SyncSettings{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	judgeBaseURL := os.Getenv("CODEFORCES_API_URL")
	if judgeBaseURL == "" {
		judgeBaseURL = "https://codeforces.com/api"
	}
	judge := services.NewCodeforcesClient(judgeBaseURL)

	awsRegion := os.Getenv("SES_REGION")
	if awsRegion == "" {
		awsRegion = "us-east-1"
	}
	mailer, err := services.NewEmailService(awsRegion, os.Getenv("SES_FROM_EMAIL"), os.Getenv("SES_FROM_NAME"))
	if err != nil {
		log.Fatal("failed to initialize email service:", err)
	}

	var archive *utils.ArchiveStore
	if endpoint := os.Getenv("ARCHIVE_ENDPOINT_URL"); endpoint != "" {
		archive, err = utils.NewArchiveStore(
			endpoint,
			os.Getenv("ARCHIVE_ACCESS_KEY_ID"),
			os.Getenv("ARCHIVE_ACCESS_KEY_SECRET"),
			os.Getenv("ARCHIVE_BUCKET"),
		)
		if err != nil {
			log.Fatal("failed to initialize export archive store:", err)
		}
		log.Println("export archive store enabled")
	}

	syncService := services.NewSyncService(db, judge, mailer)
	settingsService := services.NewSettingsService(db)
	studentService := services.NewStudentService(db, mailer, archive)

	scheduler, err := services.NewSyncScheduler(syncService, settingsService)
	if err != nil {
		log.Fatal("failed to create scheduler:", err)
	}
	if err := scheduler.Start(); err != nil {
		log.Fatal("failed to start scheduler:", err)
	}

	app := fiber.New(fiber.Config{
		AppName: "student-progress-system",
	})

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:3000"
	}
	origins := strings.Split(allowedOrigins, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(origins, ","),
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	handlers.SetupStudentRoutes(app, studentService)
	handlers.SetupSyncRoutes(app, syncService, cronSecret)
	handlers.SetupSettingsRoutes(app, settingsService)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Printf("server error: %v", err)
		}
	}()
	log.Printf("server running on http://localhost:%s", port)

	<-ctx.Done()
	log.Println("shutting down...")
	if err := scheduler.Stop(); err != nil {
		log.Printf("scheduler shutdown error: %v", err)
	}
	if err := app.Shutdown(); err != nil {
		log.Printf("server shutdown error: %v", err)
	}
}
