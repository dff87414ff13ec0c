package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"

	"github.com/teamtrack/teamtrack/config"
	"github.com/teamtrack/teamtrack/db"
	"github.com/teamtrack/teamtrack/handlers"
	"github.com/teamtrack/teamtrack/realtime"
	"github.com/teamtrack/teamtrack/repositories"
	api "github.com/teamtrack/teamtrack/routes"
	"github.com/teamtrack/teamtrack/services"
	"github.com/teamtrack/teamtrack/storage"
)

const codeSweepInterval = 10 * time.Minute

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	logger.Info("database connection established")

	uploader, err := storage.NewCloudflareR2Uploader(storage.CloudflareR2UploaderConfig{
		AccountID:       cfg.R2AccountID,
		AccessKeyID:     cfg.R2AccessKeyID,
		SecretAccessKey: cfg.R2SecretAccessKey,
		BucketName:      cfg.R2BucketName,
		PublicBaseURL:   cfg.R2PublicBaseURL,
	})
	if err != nil {
		logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Cloudflare R2 uploader initialized")

	hub := realtime.NewHub(logger)
	go hub.Run()
	logger.Info("realtime hub started")

	userRepo := repositories.NewPostgresUserRepository(dbConn)
	codeRepo := repositories.NewPostgresSignInCodeRepository(dbConn)
	teamRepo := repositories.NewPostgresTeamRepository(dbConn)
	sessionRepo := repositories.NewPostgresSessionRepository(dbConn)
	logger.Info("repositories initialized")

	authService := services.NewAuthService(userRepo, codeRepo, services.NewLogCodeSender(logger))
	userService := services.NewUserService(userRepo, uploader)
	teamService := services.NewTeamService(teamRepo, userRepo, uploader, hub)
	sessionService := services.NewSessionService(sessionRepo, teamRepo, userRepo, hub, cfg.TimeZone)
	exportService := services.NewExportService(cfg.TimeZone)
	emailService := services.NewEmailService(cfg)
	logger.Info("services initialized")

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	go func() {
		ticker := time.NewTicker(codeSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-rootCtx.Done():
				return
			case <-ticker.C:
				n, err := authService.SweepExpiredCodes(rootCtx)
				if err != nil {
					logger.Error("sign-in code sweep failed", slog.Any("error", err))
				} else if n > 0 {
					logger.Info("expired sign-in codes removed", slog.Int64("count", n))
				}
			}
		}
	}()
	logger.Info("sign-in code sweep scheduled", slog.Duration("interval", codeSweepInterval))

	if cfg.DigestTo != "" {
		digestService := services.NewDigestService(
			sessionRepo,
			teamRepo,
			userRepo,
			emailService,
			logger,
			cfg.DigestTo,
			cfg.DigestHour,
			cfg.TimeZone,
		)
		go digestService.Run(rootCtx)
		logger.Info("daily digest scheduled",
			slog.String("to", cfg.DigestTo),
			slog.Int("hour", cfg.DigestHour),
		)
	} else {
		logger.Info("daily digest disabled: DIGEST_TO not set")
	}

	authHandler := handlers.NewAuthHandler(authService, cfg.JWTSecretKey)
	userHandler := handlers.NewUserHandler(userService)
	teamHandler := handlers.NewTeamHandler(teamService)
	sessionHandler := handlers.NewSessionHandler(sessionService, exportService)
	webSocketHandler := handlers.NewWebSocketHandler(hub, teamService, userService, logger)
	logger.Info("HTTP handlers initialized")

	router := chi.NewRouter()
	api.SetupRoutes(
		router,
		cfg.JWTSecretKey,
		authHandler,
		userHandler,
		teamHandler,
		sessionHandler,
		webSocketHandler,
	)
	logger.Info("routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("server stopped gracefully")
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		cancelRoot()

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		logger.Info("shutting down server", slog.Duration("timeout", 15*time.Second))
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		}
		logger.Info("server shutdown complete")
	}
	logger.Info("application exited")
}
