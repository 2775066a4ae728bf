package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/config"
	"github.com/example/storefront/internal/handlers"
	"github.com/example/storefront/internal/middleware"
	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/services"
)

// Dependencies are the long lived clients built once at startup.
// Google, Facebook, Limiter and Notifier may be nil.
type Dependencies struct {
	DB       *gorm.DB
	Config   *config.Config
	Logger   *zap.Logger
	Mailer   services.Mailer
	Google   services.SocialVerifier
	Facebook services.SocialVerifier
	Limiter  services.RateLimiter
	Notifier services.OrderNotifier
}

// Register wires up all HTTP routes.
func Register(app *fiber.App, deps Dependencies) {
	db, cfg, log := deps.DB, deps.Config, deps.Logger

	otpService := services.NewOTPService(db, cfg, deps.Mailer, log)
	authService := services.NewAuthService(db, cfg, otpService, deps.Google, deps.Facebook, log)
	cartService := services.NewCartService(db)
	orderService := services.NewOrderService(db, deps.Notifier, log)

	authHandler := handlers.NewAuthHandler(authService, cfg)
	passwordResetHandler := handlers.NewPasswordResetHandler(authService)
	profileHandler := handlers.NewProfileHandler(db, authService)
	productHandler := handlers.NewProductHandler(db)
	catalogHandler := handlers.NewCatalogHandler(db)
	favouriteHandler := handlers.NewFavouriteHandler(db)
	cartHandler := handlers.NewCartHandler(cartService)
	orderHandler := handlers.NewOrderHandler(orderService)
	adminHandler := handlers.NewAdminHandler(db, orderService)

	requireAuth := middleware.AuthMiddleware(cfg)
	adminOnly := middleware.RequireRole(models.RoleAdmin)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"success": true, "status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")

	// Auth routes
	auth := api.Group("/auth", middleware.RateLimit(deps.Limiter, "auth", cfg.AuthRateLimit, cfg.AuthRateLimitSpan, log))
	auth.Post("/register", authHandler.Register)
	auth.Post("/resend-otp", authHandler.ResendOTP)
	auth.Post("/verify-otp", authHandler.VerifyOTP)
	auth.Post("/login", authHandler.Login)
	auth.Post("/refresh", authHandler.Refresh)
	auth.Post("/logout", authHandler.Logout)
	auth.Post("/google", authHandler.GoogleLogin)
	auth.Post("/facebook", authHandler.FacebookLogin)
	auth.Post("/forgot-password", passwordResetHandler.ForgotPassword)
	auth.Post("/verify-forgot-otp", passwordResetHandler.VerifyForgotOTP)
	auth.Post("/reset-password", passwordResetHandler.ResetPassword)

	// Catalog routes
	products := api.Group("/products")
	products.Get("/", productHandler.ListProducts)
	products.Get("/:id", productHandler.GetProduct)
	products.Post("/", requireAuth, adminOnly, productHandler.CreateProduct)
	products.Put("/:id", requireAuth, adminOnly, productHandler.UpdateProduct)
	products.Delete("/:id", requireAuth, adminOnly, productHandler.DeleteProduct)

	categories := api.Group("/categories")
	categories.Get("/", catalogHandler.ListCategories)
	categories.Get("/:category/products", catalogHandler.ListCategoryProducts)

	// Signed-in user routes
	profile := api.Group("/profile", requireAuth)
	profile.Get("/", profileHandler.GetProfile)
	profile.Patch("/", profileHandler.UpdateProfile)

	addresses := api.Group("/addresses", requireAuth)
	addresses.Get("/", profileHandler.ListAddresses)
	addresses.Post("/", profileHandler.CreateAddress)
	addresses.Put("/:id", profileHandler.UpdateAddress)
	addresses.Patch("/:id/default", profileHandler.SetDefaultAddress)
	addresses.Delete("/:id", profileHandler.DeleteAddress)

	favourites := api.Group("/favourites", requireAuth)
	favourites.Get("/", favouriteHandler.ListFavourites)
	favourites.Post("/", favouriteHandler.AddFavourite)
	favourites.Delete("/:product_id", favouriteHandler.RemoveFavourite)

	cart := api.Group("/cart", requireAuth)
	cart.Get("/", cartHandler.GetCart)
	cart.Post("/items", cartHandler.AddItem)
	cart.Patch("/items/:id", cartHandler.UpdateItem)
	cart.Delete("/items/:id", cartHandler.RemoveItem)
	cart.Delete("/clear", cartHandler.ClearCart)

	orders := api.Group("/orders", requireAuth)
	orders.Post("/", orderHandler.CreateOrder)
	orders.Get("/", orderHandler.ListOrders)
	orders.Get("/:id", orderHandler.GetOrder)

	// Admin routes
	admin := api.Group("/admin", requireAuth, adminOnly)
	admin.Get("/stats", adminHandler.DashboardStats)
	admin.Get("/orders", adminHandler.ListAllOrders)
	admin.Patch("/orders/:id/status", adminHandler.UpdateOrderStatus)
	admin.Get("/users", adminHandler.ListAllUsers)
	admin.Post("/categories", catalogHandler.CreateCategory)
	admin.Delete("/categories/:id", catalogHandler.DeleteCategory)
}
