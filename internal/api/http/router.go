package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Methdul/newkingdom/internal/api/http/handlers"
	"github.com/Methdul/newkingdom/internal/auth"
	"github.com/Methdul/newkingdom/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health    *handlers.HealthHandler
	Auth      *handlers.AuthHandler
	Members   *handlers.MembersHandler
	Resolver  *auth.Resolver
	Policy    *auth.Policy
	RateLimit *auth.RateLimiter
}

// RegisterRoutes wires HTTP routes. Protected routes chain resolver then
// guards; the first denial short-circuits.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/login", cfg.RateLimit.AuthMiddleware(), cfg.Auth.Login)
	authGroup.Post("/refresh-token", cfg.RateLimit.AuthMiddleware(), cfg.Auth.Refresh)

	// every authenticated route carries the general per-role budget,
	// keyed by subject once the resolver has attached the identity
	authenticated := authGroup.Group("",
		cfg.Resolver.Middleware(),
		cfg.RateLimit.Middleware(),
	)
	authenticated.Post("/logout", cfg.Auth.Logout)
	authenticated.Get("/me", cfg.Auth.Me)
	authenticated.Post("/change-password", cfg.Auth.ChangePassword)
	authenticated.Post("/sessions/revoke-all",
		cfg.Policy.RequireRole(domain.RoleAdmin),
		cfg.Auth.RevokeAll,
	)

	members := app.Group("/members",
		cfg.Resolver.Middleware(),
		cfg.RateLimit.Middleware(),
		cfg.Policy.RequireRole(domain.RoleAdmin, domain.RoleStaff),
	)
	members.Get("", cfg.Policy.RequirePermission(domain.CapMembersRead), cfg.Members.List)
	members.Post("/:subject_id/reactivate",
		cfg.Policy.RequirePermission(domain.CapMembersWrite),
		cfg.Members.Reactivate,
	)
}
