package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/delivery-issue-service/internal/api/http/handlers"
	"github.com/spec-kit/delivery-issue-service/internal/auth"
	"github.com/spec-kit/delivery-issue-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Issues         *handlers.IssuesHandler
	AuthMiddleware *auth.AuthMiddleware
	RateLimiter    *RateLimiter
}

// RegisterRoutes wires HTTP routes. Health endpoints stay outside the rate
// limited groups.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health", cfg.Health.Health)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth", cfg.RateLimiter.Limit(RouteClassAuth))
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/refresh", cfg.Auth.Refresh)
	authGroup.Post("/logout", cfg.Auth.Logout)

	authProtected := authGroup.Group("", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
	authProtected.Post("/logout-all", cfg.Auth.LogoutAll)
	authProtected.Get("/me", cfg.Auth.Me)

	issues := app.Group("/issues",
		cfg.RateLimiter.Limit(RouteClassGeneral),
		cfg.AuthMiddleware.Handle,
		auth.RequireRole(domain.RoleCustomer, domain.RoleSupport))
	issues.Post("", cfg.RateLimiter.Limit(RouteClassCreate), cfg.Issues.Create)
	issues.Get("", cfg.Issues.List)
	issues.Get("/:id", cfg.Issues.Get)
	issues.Patch("/:id/triage", auth.RequireRole(domain.RoleSupport), cfg.Issues.Triage)
}
