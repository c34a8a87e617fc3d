package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/minima-lms/minima-api/internal/config"
	"github.com/minima-lms/minima-api/internal/handler"
	"github.com/minima-lms/minima-api/internal/middleware"
	"github.com/minima-lms/minima-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	SessionHandler      *handler.SessionHandler
	CourseHandler       *handler.CourseHandler
	GradingHandler      *handler.GradingHandler
	AppealHandler       *handler.AppealHandler
	VerificationHandler *handler.VerificationHandler
	JWTMiddleware       fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))
	app.Get("/metrics", observability.MetricsHandler())

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.SessionHandler != nil {
		items := api.Group("/items", jwtMiddleware, middleware.RequireRole(middleware.RoleLearner))
		deps.SessionHandler.Register(items)
	}
	if deps.CourseHandler != nil {
		courses := api.Group("/courses", jwtMiddleware, middleware.RequireRole(middleware.RoleLearner))
		deps.CourseHandler.Register(courses)
	}
	if deps.AppealHandler != nil {
		questions := api.Group("/questions", jwtMiddleware, middleware.RequireRole(middleware.RoleLearner))
		deps.AppealHandler.Register(questions)
	}
	if deps.VerificationHandler != nil {
		// Verification checks hit an external identity provider; throttle
		// retries per learner.
		verification := api.Group("/verification", jwtMiddleware, middleware.RateLimit("verification", 10, time.Minute))
		deps.VerificationHandler.Register(verification)
	}
	if deps.GradingHandler != nil {
		grading := api.Group("/grading", jwtMiddleware, middleware.RequireRole(middleware.RoleGrader))
		deps.GradingHandler.Register(grading)
	}
}
