package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/example/storefront/internal/config"
	"github.com/example/storefront/internal/database"
	"github.com/example/storefront/internal/middleware"
	"github.com/example/storefront/internal/routes"
	"github.com/example/storefront/internal/services"
	"github.com/example/storefront/internal/utils"
)

func main() {
	cfg := config.Load()

	log := utils.NewLogger(cfg.LogLevel, cfg.Environment)
	defer func() { _ = log.Sync() }()

	db := database.Connect(cfg.DatabaseURL, log, cfg.IsProduction())

	ctx := context.Background()
	deps := routes.Dependencies{
		DB:       db,
		Config:   cfg,
		Logger:   log,
		Mailer:   services.NewMailer(cfg.Mail, log),
		Facebook: services.NewFacebookVerifier(cfg.FacebookAppID, cfg.FacebookAppSecret, cfg.FacebookGraphURL),
		Notifier: services.NewTelegramService(cfg.TelegramBotToken, cfg.TelegramAdminChat, log),
	}

	if len(cfg.GoogleClientIDs) > 0 {
		google, err := services.NewGoogleVerifier(ctx, cfg.GoogleClientIDs)
		if err != nil {
			log.Fatal("google sign-in setup failed", zap.Error(err))
		}
		deps.Google = google
	} else {
		log.Warn("GOOGLE_CLIENT_IDS not set, google sign-in disabled")
	}

	if cfg.RedisURL != "" {
		limiter, err := services.NewRedisRateLimiter(cfg.RedisURL)
		if err != nil {
			log.Fatal("redis rate limiter setup failed", zap.Error(err))
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := limiter.Ping(pingCtx); err != nil {
			log.Warn("redis unreachable, auth rate limit will fail open", zap.Error(err))
		}
		cancel()
		defer func() { _ = limiter.Close() }()
		deps.Limiter = limiter
	} else {
		log.Info("REDIS_URL not set, auth rate limit disabled")
	}

	app := fiber.New(fiber.Config{
		AppName:      "Storefront Backend",
		ErrorHandler: middleware.ErrorHandler(log),
	})

	app.Use(recover.New())
	app.Use(logger.New())

	routes.Register(app, deps)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Info("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error("shutdown failed", zap.Error(err))
		}
	}()

	log.Info("starting server", zap.String("port", cfg.AppPort), zap.String("env", cfg.Environment))
	if err := app.Listen(":" + cfg.AppPort); err != nil {
		log.Fatal("fiber.Listen error", zap.Error(err))
	}
}
