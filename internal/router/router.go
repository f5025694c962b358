package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/noah-isme/skole-api/internal/authz"
	"github.com/noah-isme/skole-api/internal/config"
	"github.com/noah-isme/skole-api/internal/handler"
	"github.com/noah-isme/skole-api/internal/middleware"
	"github.com/noah-isme/skole-api/internal/observability"
	"github.com/noah-isme/skole-api/internal/repository"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	DB                       *gorm.DB
	Redis                    *redis.Client
	Profiles                 repository.ProfileRepository
	ProfileHandler           *handler.ProfileHandler
	LessonDraftHandler       *handler.LessonDraftHandler
	LessonLifecycleHandler   *handler.LessonLifecycleHandler
	LibrarySubmissionHandler *handler.LibrarySubmissionHandler
	SpaceHandler             *handler.SpaceHandler
	AuditHandler             *handler.AuditHandler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.DB, deps.Redis))

	authenticated := []fiber.Handler{middleware.JWTProtected(cfg.JWTSecret), middleware.LoadProfile(deps.Profiles)}
	optional := []fiber.Handler{middleware.JWTOptional(cfg.JWTSecret), middleware.LoadProfile(deps.Profiles)}
	guards := handler.RouteGuards{
		Authenticated: authenticated,
		Optional:      optional,
		Limited:       []fiber.Handler{middleware.RateLimit("public", 30, time.Minute)},
	}

	if deps.ProfileHandler != nil {
		deps.ProfileHandler.Register(api.Group("/profile", authenticated...))
	}

	lessons := api.Group("/lessons")
	if deps.LessonDraftHandler != nil {
		deps.LessonDraftHandler.Register(lessons.Group("/drafts", authenticated...))
	}
	if deps.LessonLifecycleHandler != nil {
		deps.LessonLifecycleHandler.Register(lessons, guards)
	}
	if deps.LibrarySubmissionHandler != nil {
		lessons.Post("/published/:id/submissions", handler.Chain(handler.Chain(optional, guards.Limited...), deps.LibrarySubmissionHandler.Submit)...)
		api.Patch("/library-submissions/:id", handler.Chain(authenticated, deps.LibrarySubmissionHandler.Update)...)
	}

	if deps.SpaceHandler != nil {
		deps.SpaceHandler.Register(api.Group("/spaces"), guards, authz.Requirement{Role: authz.RoleTeacher, ApprovedTeacher: true})
	}

	// The submissions query authenticates with the shared admin token instead of a bearer token.
	admin := app.Group("/api/admin")
	if deps.LibrarySubmissionHandler != nil {
		admin.Get("/submissions", deps.LibrarySubmissionHandler.AdminQuery)
	}

	adminOnly := handler.Chain(authenticated, middleware.RequireRole(authz.RoleAdmin))
	if deps.AuditHandler != nil {
		deps.AuditHandler.Register(admin, adminOnly...)
	}
	if deps.ProfileHandler != nil {
		deps.ProfileHandler.RegisterAdmin(admin, adminOnly...)
	}
}
