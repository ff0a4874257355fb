package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/izumi-lms/izumi-api/internal/config"
	"github.com/izumi-lms/izumi-api/internal/handler"
	"github.com/izumi-lms/izumi-api/internal/middleware"
	"github.com/izumi-lms/izumi-api/internal/observability"
)

// Dependencies groups router dependencies for registration. Nil handlers
// leave their routes unregistered.
type Dependencies struct {
	AuthHandler           *handler.AuthHandler
	CourseHandler         *handler.CourseHandler
	EnrollmentHandler     *handler.EnrollmentHandler
	QuestionHandler       *handler.QuestionHandler
	GamificationHandler   *handler.GamificationHandler
	AdminUserHandler      *handler.AdminUserHandler
	AdminActivityHandler  *handler.AdminActivityHandler
	AdminAnalyticsHandler *handler.AdminAnalyticsHandler
	HealthProbes          []handler.HealthProbe
	JWTMiddleware         fiber.Handler
	OptionalJWTMiddleware fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes...))

	// Use provided JWT middlewares, or no-ops if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}
	optionalJWT := deps.OptionalJWTMiddleware
	if optionalJWT == nil {
		optionalJWT = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.AuthHandler != nil {
		auth := api.Group("/auth", middleware.RateLimit("auth", cfg.AuthRequestsPerMin, time.Minute))
		deps.AuthHandler.Register(auth)
		api.Get("/me", jwtMiddleware, middleware.WithAuth(deps.AuthHandler.Me, middleware.AuthOptions{RequireUser: true}))
	}

	// Catalog and per-course Q&A
	courses := api.Group("/courses")
	if deps.QuestionHandler != nil {
		deps.QuestionHandler.RegisterCourse(courses, jwtMiddleware, middleware.RequireRole(middleware.AuthRoleStudent, middleware.AuthRoleInstructor, middleware.AuthRoleAdmin))

		questions := api.Group("/questions", jwtMiddleware, middleware.RequireRole(middleware.AuthRoleStudent, middleware.AuthRoleInstructor, middleware.AuthRoleAdmin))
		deps.QuestionHandler.Register(questions)
	}
	if deps.CourseHandler != nil {
		deps.CourseHandler.RegisterCatalog(courses, optionalJWT)
	}

	if deps.EnrollmentHandler != nil {
		enrollments := api.Group("/enrollments", jwtMiddleware, middleware.RequireRole(middleware.AuthRoleStudent))
		deps.EnrollmentHandler.Register(enrollments)
	}

	// Instructor authoring
	instructor := api.Group("/instructor/courses", jwtMiddleware, middleware.RequireRole(middleware.AuthRoleInstructor, middleware.AuthRoleAdmin))
	if deps.CourseHandler != nil {
		deps.CourseHandler.RegisterAuthoring(instructor)
	}
	if deps.EnrollmentHandler != nil {
		deps.EnrollmentHandler.RegisterInstructor(instructor)
	}

	if deps.GamificationHandler != nil {
		gamification := api.Group("/gamification", jwtMiddleware, middleware.RequireRole(middleware.AuthRoleStudent, middleware.AuthRoleInstructor, middleware.AuthRoleAdmin))
		deps.GamificationHandler.Register(gamification)
	}

	// Admin
	admin := api.Group("/admin", jwtMiddleware, middleware.RequireRole(middleware.AuthRoleAdmin))
	if deps.AdminUserHandler != nil {
		deps.AdminUserHandler.Register(admin.Group("/users"))
	}
	if deps.CourseHandler != nil {
		deps.CourseHandler.RegisterAdmin(admin.Group("/courses"))
	}
	if deps.AdminAnalyticsHandler != nil {
		deps.AdminAnalyticsHandler.Register(admin.Group("/analytics"))
	}
	if deps.AdminActivityHandler != nil {
		deps.AdminActivityHandler.Register(admin.Group("/activities"))
		deps.AdminActivityHandler.RegisterLoginAudits(admin.Group("/login-audits"))
	}
}
