package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/minima-lms/minima-api/internal/config"
	"github.com/minima-lms/minima-api/internal/database"
	"github.com/minima-lms/minima-api/internal/events"
	"github.com/minima-lms/minima-api/internal/handler"
	"github.com/minima-lms/minima-api/internal/middleware"
	"github.com/minima-lms/minima-api/internal/repository"
	"github.com/minima-lms/minima-api/internal/router"
	"github.com/minima-lms/minima-api/internal/service"
	"github.com/minima-lms/minima-api/pkg/certificate"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	publisher := events.NewNoopPublisher()
	if cfg.NatsURL != "" {
		conn, err := nats.Connect(cfg.NatsURL)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer conn.Drain()
		publisher = events.NewNATSPublisher(conn, logger)
	}

	var certificates certificate.Client
	if cfg.CertificateBaseURL != "" {
		certificates, err = certificate.NewClient(certificate.Config{
			BaseURL: cfg.CertificateBaseURL,
			APIKey:  cfg.CertificateAPIKey,
		})
		if err != nil {
			log.Fatalf("failed to create certificate client: %v", err)
		}
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	itemRepo := repository.NewItemRepository(db)
	questionRepo := repository.NewQuestionRepository(db)
	attemptRepo := repository.NewAttemptRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	scratchRepo := repository.NewScratchRepository(db)
	gradeRepo := repository.NewGradeRepository(db)
	appealRepo := repository.NewAppealRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	publicAccessRepo := repository.NewPublicAccessRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	engagementRepo := repository.NewEngagementRepository(db)
	gradebookRepo := repository.NewGradebookRepository(db)
	watchRepo := repository.NewWatchRepository(db)
	verificationRepo := repository.NewVerificationRepository(db)

	resolver := service.NewAccessResolver(enrollmentRepo, publicAccessRepo, courseRepo, logger)
	verificationService := service.NewVerificationService(verificationRepo, cfg.JWTSecret, cfg.VerificationTTL, logger)
	gradingService := service.NewGradingService(attemptRepo, questionRepo, gradeRepo, appealRepo, validate, publisher, logger)
	statsService := service.NewStatsService(gradeRepo, redisClient, cfg.StatsCacheTTL, logger)
	sessionService := service.NewSessionService(service.SessionServiceDeps{
		Items:        itemRepo,
		Questions:    questionRepo,
		Attempts:     attemptRepo,
		Submissions:  submissionRepo,
		Scratch:      scratchRepo,
		Grades:       gradeRepo,
		Appeals:      appealRepo,
		Engagements:  engagementRepo,
		Resolver:     resolver,
		Verification: verificationService,
		Grading:      gradingService,
		Stats:        statsService,
		Validator:    validate,
		Publisher:    publisher,
		GracePeriod:  cfg.SubmissionGrace,
		Logger:       logger,
	})
	courseGradingService := service.NewCourseGradingService(courseRepo, engagementRepo, gradebookRepo, gradeRepo, watchRepo, publisher, logger)
	engagementService := service.NewEngagementService(courseRepo, engagementRepo, gradebookRepo, watchRepo, resolver, verificationService, certificates, logger)
	appealService := service.NewAppealService(appealRepo, questionRepo, validate, logger)

	sessionHandler := handler.NewSessionHandler(sessionService, logger)
	courseHandler := handler.NewCourseHandler(engagementService, logger)
	gradingHandler := handler.NewGradingHandler(gradingService, courseGradingService, logger)
	appealHandler := handler.NewAppealHandler(appealService, logger)
	verificationHandler := handler.NewVerificationHandler(verificationService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		SessionHandler:      sessionHandler,
		CourseHandler:       courseHandler,
		GradingHandler:      gradingHandler,
		AppealHandler:       appealHandler,
		VerificationHandler: verificationHandler,
		JWTMiddleware:       middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
