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

	"github.com/noah-isme/skole-api/internal/config"
	"github.com/noah-isme/skole-api/internal/database"
	"github.com/noah-isme/skole-api/internal/handler"
	"github.com/noah-isme/skole-api/internal/middleware"
	"github.com/noah-isme/skole-api/internal/repository"
	"github.com/noah-isme/skole-api/internal/router"
	"github.com/noah-isme/skole-api/internal/service"
	"github.com/noah-isme/skole-api/pkg/ai"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(rootCtx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	} else {
		logger.Warn().Msg("redis not configured; published list cache and cross-node feed relay disabled")
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Drain()
	}

	var generator ai.Generator = ai.Disabled{}
	if cfg.OpenAIAPIKey != "" {
		openAI, err := ai.NewOpenAIGenerator(ai.OpenAIConfig{
			APIKey: cfg.OpenAIAPIKey,
			Model:  cfg.AIModel,
			Logger: logger,
		})
		if err != nil {
			log.Fatalf("failed to configure text generator: %v", err)
		}
		generator = openAI
	} else {
		logger.Warn().Msg("openai api key missing; text generation disabled")
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	profileRepo := repository.NewProfileRepository(db)
	draftRepo := repository.NewLessonDraftRepository(db)
	publishedRepo := repository.NewPublishedLessonRepository(db)
	spaceRepo := repository.NewSpaceRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	libraryRepo := repository.NewLibrarySubmissionRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	auditService := service.NewAuditService(auditRepo, logger)
	profileService := service.NewProfileService(profileRepo, auditService, validate, logger)
	draftService := service.NewLessonDraftService(draftRepo, profileRepo, validate, logger)
	generationService := service.NewContentGenerationService(draftRepo, profileRepo, generator, validate, logger)
	lifecycleService := service.NewLessonLifecycleService(service.LessonLifecycleConfig{
		Drafts:    draftRepo,
		Published: publishedRepo,
		Profiles:  profileRepo,
		Audit:     auditService,
		Cache:     redisClient,
		CacheTTL:  cfg.PublishedCacheTTL,
		Signing: service.SigningConfig{
			Org:                cfg.SigningOrg,
			AttestationVersion: cfg.SigningAttestationVersion,
		},
		Validator: validate,
		Logger:    logger,
	})

	feedService := service.NewSpaceFeedService(redisClient, cfg.RealtimeChannel, natsConn, logger)
	feedService.Start(rootCtx)

	spaceService := service.NewSpaceService(service.SpaceServiceConfig{
		Spaces:       spaceRepo,
		Submissions:  submissionRepo,
		Published:    publishedRepo,
		Profiles:     profileRepo,
		Feed:         feedService,
		Validator:    validate,
		Logger:       logger,
		CodeAttempts: cfg.SpaceCodeAttempts,
	})
	libraryService := service.NewLibrarySubmissionService(libraryRepo, publishedRepo, auditService, cfg.AdminQueryToken, cfg.AdminQueryMaxPageSize, validate, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    2 * 1024 * 1024,
	})

	middleware.Register(app, middleware.Config{
		Logger:       &logger,
		AllowOrigins: cfg.CORSOrigins,
		AccessLog:    cfg.IsDevelopment(),
	})
	router.Register(app, cfg, router.Dependencies{
		DB:                       db,
		Redis:                    redisClient,
		Profiles:                 profileRepo,
		ProfileHandler:           handler.NewProfileHandler(profileService, logger),
		LessonDraftHandler:       handler.NewLessonDraftHandler(draftService, generationService, logger),
		LessonLifecycleHandler:   handler.NewLessonLifecycleHandler(lifecycleService, validate, logger),
		LibrarySubmissionHandler: handler.NewLibrarySubmissionHandler(libraryService, logger),
		SpaceHandler:             handler.NewSpaceHandler(spaceService, feedService, logger, cfg.StreamKeepAlive),
		AuditHandler:             handler.NewAuditHandler(auditService, logger),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	logger.Info().Str("addr", cfg.HTTPAddress()).Msg("server started")
	waitForShutdown(app, cancelRoot)
}

func waitForShutdown(app *fiber.App, stopBackground context.CancelFunc) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()
	stopBackground()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
