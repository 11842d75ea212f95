package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arzan03/natours/internal/config"
	"github.com/arzan03/natours/internal/db"
	"github.com/arzan03/natours/internal/handlers"
	"github.com/arzan03/natours/internal/logging"
	"github.com/arzan03/natours/internal/router"
	"github.com/arzan03/natours/internal/services"
	"github.com/arzan03/natours/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx := context.Background()

	client, err := db.Connect(ctx, cfg.DatabaseURI())
	if err != nil {
		logging.Fatal().Err(err).Msg("database connection failed")
	}
	database := client.Database(cfg.DatabaseName)
	if err := db.EnsureIndexes(ctx, database); err != nil {
		logging.Fatal().Err(err).Msg("index creation failed")
	}

	images, err := storage.NewImageStore(ctx, storage.Config{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		Bucket:    cfg.MinioBucket,
		UseSSL:    cfg.MinioUseSSL,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("image storage unavailable")
	}

	users := db.NewUserRepository(database)
	tours := db.NewTourRepository(database)
	reviews := db.NewReviewRepository(database)

	auth := services.NewAuthService(users, services.LogMailer{}, services.AuthConfig{
		Secret:     cfg.JWTSecret,
		ExpiresIn:  cfg.JWTExpiresIn,
		BcryptCost: cfg.BcryptCost,
	})
	reviewService := services.NewReviewService(reviews, tours, tours, users)
	tourService := services.NewTourService(tours, users, reviews, reviewService)
	imageService := services.NewImageService(images)

	secure := cfg.Env.IsProduction()
	cookieTTL := time.Duration(cfg.JWTCookieExpiresIn) * 24 * time.Hour
	app := router.New(cfg, router.Handlers{
		Verifier: auth,
		Auth:     handlers.NewAuthHandler(auth, cookieTTL, secure),
		Tours:    handlers.NewTourHandler(tours, tourService, imageService, images),
		Users:    handlers.NewUserHandler(users, imageService),
		Reviews:  handlers.NewReviewResource(reviews, reviewService),
	})

	listenErr := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", cfg.Addr()).Str("env", string(cfg.Env)).Msg("server starting")
		listenErr <- app.Listen(cfg.Addr())
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case sig := <-quit:
		logging.Info().Str("signal", sig.String()).Msg("shutting down gracefully")
	case err := <-listenErr:
		logging.Error().Err(err).Msg("server stopped unexpectedly, shutting down")
		exitCode = 1
	}

	if err := app.ShutdownWithTimeout(cfg.ShutdownTimeout); err != nil {
		logging.Error().Err(err).Msg("server shutdown failed")
		exitCode = 1
	}

	disconnectCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	if err := client.Disconnect(disconnectCtx); err != nil {
		logging.Error().Err(err).Msg("database disconnect failed")
	}
	cancel()

	logging.Info().Msg("process terminated")
	os.Exit(exitCode)
}
