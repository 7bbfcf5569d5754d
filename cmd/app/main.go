package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bookledger/auth"
	"bookledger/config"
	"bookledger/handlers"
	"bookledger/migrations"
	"bookledger/repository"
	"bookledger/service"

	"github.com/rs/zerolog"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.Level(level)
	}
	if cfg.SecretKey == config.DefaultSecretKey {
		logger.Warn().Msg("SECRET_KEY is not set, using the development default")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.AutoMigrate {
		if err := migrations.Up(cfg.DatabaseURL, logger); err != nil {
			logger.Fatal().Err(err).Msg("apply migrations")
		}
	}

	db, err := config.InitDB(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer func() { _ = db.Close() }()

	tokens, err := auth.NewTokenService(cfg.SecretKey, cfg.JWTAlgorithm, cfg.AccessTokenTTL())
	if err != nil {
		logger.Fatal().Err(err).Msg("token service")
	}

	repoImpl := repository.NewPostgresRepository(db)

	svc := service.NewService(repoImpl, auth.NewPasswordHasher(cfg.BcryptCost), tokens)

	h := handlers.NewHandler(svc)

	srv := http.Server{
		Handler:      handlers.NewRouter(h, logger, cfg.AllowOrigins),
		Addr:         ":" + cfg.ServerPort,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown")
		}
	}()

	logger.Info().Str("port", cfg.ServerPort).Msg("server started")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		_ = db.Close()
		logger.Fatal().Err(err).Msg("serve")
	}
	logger.Info().Msg("server stopped")
}
