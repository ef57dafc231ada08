package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ticketflow/ticketflow/internal/api/http/handlers"
	"github.com/ticketflow/ticketflow/internal/auth"
	"github.com/ticketflow/ticketflow/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Files          *handlers.FilesHandler
	Users          *handlers.UsersHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	api := app.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/register", cfg.Auth.Register)

	tickets := api.Group("/tickets", cfg.AuthMiddleware.Handle)
	tickets.Post("/", cfg.Tickets.Create)
	tickets.Get("/my-tickets", cfg.Tickets.ListMine)
	tickets.Get("/assigned", auth.RequireStaff(), cfg.Tickets.ListAssigned)
	tickets.Get("/all", auth.RequireStaff(), cfg.Tickets.ListAll)
	tickets.Get("/search", cfg.Tickets.Search)
	tickets.Get("/:id", cfg.Tickets.Get)
	tickets.Patch("/:id/status", auth.RequireStaff(), cfg.Tickets.UpdateStatus)
	tickets.Patch("/:id/assign", auth.RequireStaff(), cfg.Tickets.Assign)
	tickets.Post("/:id/comments", cfg.Tickets.AddComment)
	tickets.Get("/:id/comments", cfg.Tickets.ListComments)
	tickets.Post("/:id/rate", cfg.Tickets.Rate)

	files := api.Group("/files", cfg.AuthMiddleware.Handle)
	files.Post("/upload", cfg.Files.Upload)
	files.Get("/ticket/:id", cfg.Files.ListByTicket)
	files.Get("/download/:id", cfg.Files.Download)

	users := api.Group("/users", cfg.AuthMiddleware.Handle)
	users.Get("/agents", auth.RequireStaff(), cfg.Users.ListAgents)

	admin := api.Group("/admin", cfg.AuthMiddleware.Handle, auth.RequireRole(domain.RoleAdmin))
	admin.Get("/users", cfg.Users.List)
	admin.Post("/users", cfg.Users.Create)
	admin.Get("/users/:id", cfg.Users.Get)
	admin.Patch("/users/:id/role", cfg.Users.UpdateRole)
	admin.Patch("/users/:id/toggle-status", cfg.Users.ToggleEnabled)
	admin.Delete("/users/:id", cfg.Users.Delete)
}
