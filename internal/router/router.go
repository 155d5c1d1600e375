package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/codearena/codearena-go-api/internal/authz"
	"github.com/codearena/codearena-go-api/internal/config"
	"github.com/codearena/codearena-go-api/internal/handler"
	"github.com/codearena/codearena-go-api/internal/middleware"
	"github.com/codearena/codearena-go-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	Policy                *authz.Policy
	UserActionsHandler    *handler.UserActionsHandler
	ProblemActionsHandler *handler.ProblemActionsHandler
	RequestHandler        *handler.RequestHandler
	AuditHandler          *handler.AuditHandler
	DashboardHandler      *handler.DashboardHandler
	JWTMiddleware         fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	// Common v1 group for health & headers
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))
	app.Get("/metrics", observability.MetricsHandler())

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	dashboard := app.Group("/api/v2/dashboard", jwtMiddleware, middleware.RateLimit("dashboard", 120, time.Minute))

	if deps.DashboardHandler != nil {
		deps.DashboardHandler.Register(dashboard)
	}

	// Route-level gates reject the obviously unauthorized before the services
	// evaluate the full permission rules.
	if deps.UserActionsHandler != nil {
		users := dashboard.Group("/users", middleware.RequirePermission(deps.Policy, authz.ActionManageUsers))
		deps.UserActionsHandler.Register(users)
	}

	if deps.ProblemActionsHandler != nil {
		problems := dashboard.Group("/problems", middleware.RequirePermission(deps.Policy, authz.ActionEditAnyProblem))
		deps.ProblemActionsHandler.Register(problems)
	}

	if deps.RequestHandler != nil {
		deps.RequestHandler.RegisterSelfService(dashboard.Group("", middleware.RequirePermission(deps.Policy, authz.ActionRequestPromotion)))

		requests := dashboard.Group("/requests", middleware.RequirePermission(deps.Policy, authz.ActionViewPendingRequests))
		deps.RequestHandler.Register(requests)
		deps.RequestHandler.RegisterReview(requests.Group("", middleware.RequireRole(string(authz.RoleSuperAdmin))))
	}

	if deps.AuditHandler != nil {
		audit := dashboard.Group("/audit-logs", middleware.RequirePermission(deps.Policy, authz.ActionViewAuditLogs))
		deps.AuditHandler.Register(audit)
	}
}
