package http

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/pet-registry/internal/api/http/handlers"
	"github.com/spec-kit/pet-registry/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Verification   *handlers.VerificationHandler
	Pets           *handlers.PetsHandler
	Transfers      *handlers.TransfersHandler
	AuthMiddleware *auth.AuthMiddleware
	// Metrics serves the prometheus exposition format; nil disables /metrics.
	Metrics http.Handler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics))
	}

	api := app.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Post("/register", cfg.Users.Register)
	authGroup.Post("/login", cfg.Users.Login)
	authGroup.Post("/verification/request", cfg.Verification.Request)
	authGroup.Post("/verification/verify", cfg.Verification.Verify)
	authGroup.Post("/password/change", cfg.AuthMiddleware.HandleTemporary, cfg.Verification.ChangePassword)

	// Groups with middleware match their whole prefix, so each protected
	// resource gets its own group instead of sharing "/api".
	requireUser := []fiber.Handler{cfg.AuthMiddleware.Handle, auth.RequireAuthenticated()}

	users := api.Group("/users", requireUser...)
	users.Get("/me", cfg.Users.Me)

	animalTypes := api.Group("/animal-types", requireUser...)
	animalTypes.Get("/", cfg.Pets.AnimalTypes)
	animalTypes.Get("/:id/breeds", cfg.Pets.Breeds)

	pets := api.Group("/pets", requireUser...)
	pets.Post("/", cfg.Pets.Create)
	pets.Get("/", cfg.Pets.List)
	pets.Get("/:id", cfg.Pets.Get)
	pets.Patch("/:id", cfg.Pets.Update)
	pets.Delete("/:id", cfg.Pets.Delete)
	pets.Put("/:id/photo", cfg.Pets.UploadPhoto)
	pets.Get("/:id/photo", cfg.Pets.Photo)
	pets.Get("/:id/transfers", cfg.Transfers.ListForPet)
	pets.Post("/:id/transfers", cfg.Transfers.Start)
	pets.Post("/:id/transfers/accept", cfg.Transfers.Accept)
	pets.Post("/:id/transfers/cancel", cfg.Transfers.Cancel)

	transfers := api.Group("/transfers", requireUser...)
	transfers.Get("/incoming", cfg.Transfers.Incoming)
}
