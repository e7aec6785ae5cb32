package routes

import (
	"github.com/foodcourt/storefront-api/internal/config"
	"github.com/foodcourt/storefront-api/internal/handlers"
	"github.com/foodcourt/storefront-api/internal/middleware"
	"github.com/foodcourt/storefront-api/internal/repository"
	"github.com/foodcourt/storefront-api/internal/services"
	"github.com/foodcourt/storefront-api/internal/tokens"
	"github.com/gofiber/fiber/v2"
)

type Deps struct {
	Config   *config.Config
	Issuer   *tokens.Issuer
	Sessions *services.SessionService
	Users    repository.UserRepository
	// LimiterStorage holds rate limit counters; nil means in-process memory.
	LimiterStorage fiber.Storage

	Auth    *handlers.AuthHandler
	Health  *handlers.HealthHandler
	Catalog *handlers.CatalogHandler
	Cart    *handlers.CartHandler
	Orders  *handlers.OrderHandler
}

func Setup(app *fiber.App, d Deps) {
	cfg := d.Config
	api := app.Group("/api")

	api.Use(middleware.RateLimit("api", cfg.APIRateLimit, cfg.RateLimitWindow, d.LimiterStorage, d.Sessions))

	api.Get("/health", d.Health.Check)

	// Auth: stricter per-IP limit
	auth := api.Group("/auth")
	auth.Use(middleware.RateLimit("auth", cfg.AuthRateLimit, cfg.RateLimitWindow, d.LimiterStorage, nil))
	auth.Post("/register", d.Auth.Register)
	auth.Post("/login", d.Auth.Login)
	auth.Post("/refresh-token", d.Auth.Refresh)
	auth.Post("/logout", d.Auth.Logout)

	requireAuth := middleware.RequireAuth(d.Issuer)

	api.Get("/me", requireAuth, d.Auth.Me)
	api.Put("/me/address", requireAuth, d.Auth.UpdateAddress)

	// Catalog (public)
	api.Get("/menu", d.Catalog.List)
	api.Get("/menu/search", d.Catalog.Search)
	api.Get("/menu/categories", d.Catalog.Categories)
	api.Get("/menu/:id", d.Catalog.Get)

	cart := api.Group("/cart", requireAuth)
	cart.Get("/", d.Cart.Get)
	cart.Delete("/", d.Cart.Clear)
	cart.Post("/items", d.Cart.AddItem)
	cart.Put("/items/:menuItemId", d.Cart.UpdateItem)
	cart.Delete("/items/:menuItemId", d.Cart.RemoveItem)

	orders := api.Group("/orders", requireAuth)
	orders.Post("/", d.Orders.Create)
	orders.Post("/verify", d.Orders.Verify)
	orders.Get("/", d.Orders.List)
	orders.Get("/:id", d.Orders.Get)

	admin := api.Group("/admin", requireAuth, middleware.AdminRequired(d.Users))
	admin.Post("/menu", d.Catalog.Create)
	admin.Put("/menu/:id", d.Catalog.Update)
	admin.Delete("/menu/:id", d.Catalog.Delete)
}
