package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"

	"github.com/maxjeffwell/microservices-platform/config"
	"github.com/maxjeffwell/microservices-platform/db"
	"github.com/maxjeffwell/microservices-platform/internal/auth/handler"
	repo "github.com/maxjeffwell/microservices-platform/internal/auth/repository/postgres"
	"github.com/maxjeffwell/microservices-platform/internal/auth/service"
	"github.com/maxjeffwell/microservices-platform/internal/mailer"
	"github.com/maxjeffwell/microservices-platform/internal/observability"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()

	if err := observability.InitSentry(cfg.SentryDSN, cfg.Env); err != nil {
		log.Printf("warn: failed to init sentry: %v", err)
	}
	defer observability.FlushSentry()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := db.NewPostgresPool(ctx, cfg.DBURL)
	if err != nil {
		log.Fatalf("failed to set up database: %v", err)
	}
	defer dbPool.Close()

	userRepo := repo.NewPostgresRepository(dbPool)
	tokenService := service.NewTokenService(cfg.AccessTokenSecret, cfg.TokenIssuer,
		cfg.TokenAudience, cfg.AccessExpiryMin)
	mail := mailer.NewLogMailer(cfg.AppBaseURL)
	verificationService := service.NewVerificationService(userRepo, tokenService, mail, cfg)
	resetService := service.NewPasswordResetService(userRepo, tokenService, mail, cfg)
	userService := service.NewUserService(userRepo, tokenService, verificationService, mail, cfg)
	authHandler := handler.NewAuthHandler(userService, resetService, verificationService,
		tokenService, cfg.AdminAPIKey)

	reaper := service.NewReaper(userRepo, time.Duration(cfg.ReaperIntervalMin)*time.Minute)
	go reaper.Run(ctx)

	app := fiber.New()
	handler.RegisterRoutes(app, authHandler)

	go func() {
		<-ctx.Done()
		_ = app.Shutdown()
	}()

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
