package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	config "github.com/postpipe/postpipe/configs"
	"github.com/postpipe/postpipe/internal/api/handlers"
	job "github.com/postpipe/postpipe/internal/jobs"
	"github.com/postpipe/postpipe/internal/repository"
	"github.com/postpipe/postpipe/internal/service"
	"github.com/robfig/cron"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()
	auditConfig(cfg)

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer closeDB(db)

	if err := db.Ping(); err != nil {
		log.Fatalf("Database is unreachable: %v", err)
	}

	ctx := context.Background()

	postRepo := repository.NewScheduledPostRepository(db)
	if err := postRepo.EnsureSchema(ctx); err != nil {
		log.Fatalf("Failed to prepare database schema: %v", err)
	}

	googleClient, err := service.NewGoogleClient(ctx, *cfg)
	if err != nil {
		log.Fatalf("Failed to build Google client: %v", err)
	}
	archiveService, err := service.NewDriveService(ctx, googleClient)
	if err != nil {
		log.Fatalf("Failed to initialize Drive service: %v", err)
	}
	calendarService, err := service.NewCalendarService(ctx, googleClient)
	if err != nil {
		log.Fatalf("Failed to initialize Calendar service: %v", err)
	}

	r2Service := service.NewR2Service(*cfg)
	graphService := service.NewGraphService(*cfg)
	mediaResolver := service.NewMediaResolver(r2Service, archiveService)
	imageService := service.NewImageService(r2Service, archiveService)
	generatorService := service.NewGeneratorService(cfg)
	schedulerService := service.NewSchedulerService(
		postRepo, r2Service, archiveService, calendarService,
		mediaResolver, imageService, graphService)

	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		BodyLimit:    100 * 1024 * 1024, // 100 MB
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOriginsFunc: func(origin string) bool {
			return true
		},
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	api := app.Group("/api")

	content := handlers.NewContentHandler(generatorService)
	api.Post("/content/generate", content.GenerateContent)

	schedule := handlers.NewScheduleHandler(schedulerService)
	api.Post("/schedule", schedule.SchedulePost)

	webhook := handlers.NewWebhookHandler(schedulerService)
	api.Post("/webhook/schedule", webhook.HandleWebhook)
	api.Post("/webhook/static", webhook.Typed("static"))
	api.Post("/webhook/video", webhook.Typed("video"))
	for n := 2; n <= 10; n++ {
		postType := fmt.Sprintf("carousel_%d", n)
		api.Post("/webhook/"+postType, webhook.Typed(postType))
	}

	calendarWebhook := handlers.NewCalendarWebhookHandler(schedulerService)
	api.Post("/calendar/webhook", calendarWebhook.HandleNotification)

	instagramWebhook := handlers.NewInstagramWebhookHandler(cfg)
	api.Get("/webhook/instagram", instagramWebhook.Verify)
	api.Post("/webhook/instagram", instagramWebhook.Receive)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	// cron jobs
	triggerJob := job.NewTriggerJob(postRepo, r2Service, mediaResolver, imageService, graphService)
	cleanupJob := job.NewCleanupJob(postRepo, archiveService, time.Duration(cfg.DeleteDelayHours)*time.Hour)

	c := cron.New()
	c.AddFunc("@every 00h01m00s", triggerJob.Run)
	c.AddFunc("@every 00h15m00s", cleanupJob.Run)
	c.Start()

	if cfg.CalendarWebhookURL != "" {
		channelID, err := calendarService.Watch(ctx, cfg.CalendarWebhookURL)
		if err != nil {
			slog.Error("failed to register calendar watch channel", "error", err.Error())
		} else {
			slog.Info("calendar watch channel registered", "channel", channelID)
		}
	}

	go func() {
		if err := app.Listen(":3000"); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Println("Server is running on http://localhost:3000")

	gracefulShutdown(app, db)
}

// auditConfig reports which optional integrations are usable so a
// misconfigured deployment is visible at startup instead of at post time.
func auditConfig(cfg *config.Config) {
	if cfg.GeminiAPIKey == "" {
		slog.Warn("GEMINI_API_KEY not set, caption generation will use placeholders")
	}
	if cfg.StaticPostPrompt == "" && cfg.CarouselPostPrompt == "" && cfg.VideoPostPrompt == "" {
		slog.Warn("no prompt templates configured, generation will rely on request prompts")
	}
	if cfg.R2.AccountID == "" || cfg.R2.AccessKey == "" || cfg.R2.SecretKey == "" || cfg.R2.BucketName == "" {
		slog.Warn("R2 storage not fully configured, media staging will fall back to the archive")
	}
	if cfg.Graph.PageAccessToken == "" || cfg.Graph.IGUserID == "" {
		slog.Warn("Graph API credentials not set, publishing will fail")
	}
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, db *sql.DB) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Fatalf("Failed to shut down server: %v", err)
	}

	closeDB(db)
	log.Println("Server shutdown complete.")
}
