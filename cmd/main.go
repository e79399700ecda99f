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

	"github.com/Dosada05/rating-system/config"
	"github.com/Dosada05/rating-system/db"
	"github.com/Dosada05/rating-system/handlers"
	"github.com/Dosada05/rating-system/live"
	"github.com/Dosada05/rating-system/rating"
	"github.com/Dosada05/rating-system/repositories"
	api "github.com/Dosada05/rating-system/routes"
	"github.com/Dosada05/rating-system/services"
	"github.com/Dosada05/rating-system/storage"
	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
)

func main() {
	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	// Подключение к базе данных
	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		}
	}()
	logger.Info("database connection established")

	// Инициализация WebSocket Hub
	wsHub := live.NewHub()
	go wsHub.Run()
	logger.Info("WebSocket Hub started")

	// Инициализация репозиториев
	transactor := repositories.NewSQLTransactor(dbConn)
	ratingRepo := repositories.NewPostgresRatingRepository(dbConn)
	matchRepo := repositories.NewPostgresMatchRepository(dbConn)
	registrationRepo := repositories.NewPostgresRegistrationRepository(dbConn)
	tournamentRepo := repositories.NewPostgresTournamentRepository(dbConn)
	logger.Info("repositories initialized")

	// Движок рейтинга - чистая функция с параметрами из конфигурации
	engine := rating.NewEngine(rating.Config{
		InitialMu:    cfg.RatingInitialMu,
		InitialSigma: cfg.RatingInitialSigma,
		SigmaFloor:   cfg.RatingSigmaFloor,
	})

	// Инициализация сервисов
	matchService := services.NewMatchService(
		transactor,
		matchRepo,
		ratingRepo,
		tournamentRepo,
		engine,
		wsHub,
		logger,
	)
	registrationService := services.NewRegistrationService(
		transactor,
		registrationRepo,
		tournamentRepo,
	)
	ratingService := services.NewRatingService(ratingRepo, engine)
	logger.Info("services initialized")

	// Экспорт архивов истории рейтингов (включается при наличии реквизитов R2)
	if cfg.ArchiveEnabled() {
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
		archiveService := services.NewArchiveService(tournamentRepo, ratingRepo, uploader, logger)

		go func() {
			ticker := time.NewTicker(cfg.ArchiveInterval)
			defer ticker.Stop()
			logger.Info("rating history archive scheduler started", slog.Duration("interval", cfg.ArchiveInterval))

			if err := archiveService.ArchiveCompletedTournaments(context.Background()); err != nil {
				logger.Error("archive scheduler: initial run failed", slog.Any("error", err))
			}
			for range ticker.C {
				if err := archiveService.ArchiveCompletedTournaments(context.Background()); err != nil {
					logger.Error("archive scheduler: periodic run failed", slog.Any("error", err))
				}
			}
		}()
	} else {
		logger.Info("rating history archiving disabled: R2 credentials not configured")
	}

	// Инициализация обработчиков HTTP
	ratingHandler := handlers.NewRatingHandler(ratingService)
	matchHandler := handlers.NewMatchHandler(matchService)
	registrationHandler := handlers.NewRegistrationHandler(registrationService)
	webSocketHandler := handlers.NewWebSocketHandler(wsHub)

	// Настройка маршрутизатора
	router := chi.NewRouter()
	api.SetupRoutes(
		router,
		cfg.JWTSecretKey,
		ratingHandler,
		matchHandler,
		registrationHandler,
		webSocketHandler,
	)
	logger.Info("routes configured")

	// Настройка и запуск HTTP-сервера
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		}
	}
	logger.Info("application exited")
}
