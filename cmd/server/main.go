package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SAP-F-2025/test-attempt-service/internal/cache"
	"github.com/SAP-F-2025/test-attempt-service/internal/config"
	"github.com/SAP-F-2025/test-attempt-service/internal/handlers"
	"github.com/SAP-F-2025/test-attempt-service/internal/repositories"
	"github.com/SAP-F-2025/test-attempt-service/internal/repositories/memory"
	"github.com/SAP-F-2025/test-attempt-service/internal/repositories/mongodb"
	"github.com/SAP-F-2025/test-attempt-service/internal/repositories/postgres"
	"github.com/SAP-F-2025/test-attempt-service/internal/services"
	"github.com/SAP-F-2025/test-attempt-service/internal/utils"
	"github.com/SAP-F-2025/test-attempt-service/internal/validator"
	"github.com/SAP-F-2025/test-attempt-service/pkg"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := utils.NewSlog(cfg.Environment)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, closeStore, err := openRepository(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialise storage", "driver", cfg.StorageDriver, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	publisher, err := cfg.Events.CreateEventPublisher(logger)
	if err != nil {
		logger.Error("Failed to create event publisher", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()

	v := validator.New()
	attemptService := services.NewAttemptService(repo, publisher, logger)
	definitionService := services.NewTestDefinitionService(repo, logger, v)
	exportService := services.NewExportService(repo, logger)

	verifier := handlers.NewCasdoorTokenVerifier(handlers.CasdoorConfig{
		Endpoint:         cfg.Casdoor.Endpoint,
		ClientID:         cfg.Casdoor.ClientID,
		ClientSecret:     cfg.Casdoor.ClientSecret,
		Certificate:      cfg.Casdoor.Certificate,
		OrganizationName: cfg.Casdoor.OrganizationName,
		ApplicationName:  cfg.Casdoor.ApplicationName,
	})

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	appLogger := utils.NewSlogLogger(logger)
	router := gin.New()
	router.Use(utils.RequestIDMiddleware())
	router.Use(utils.LoggerMiddleware(appLogger))
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSAllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", utils.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", utils.RequestIDHeader},
		AllowCredentials: !allowsAnyOrigin(cfg.CORSAllowedOrigins),
		MaxAge:           12 * time.Hour,
	}))

	hm := handlers.NewHandlerManager(attemptService, definitionService, exportService, verifier, v, appLogger)
	hm.SetupRoutes(router)

	if cfg.SweepInterval > 0 {
		sweeper := services.NewExpirySweeper(attemptService, cfg.SweepInterval, cfg.SweepBatchSize, logger)
		go sweeper.Run(ctx)
	} else {
		logger.Info("Expiry sweeper disabled, relying on lazy expiry")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("HTTP server starting", "port", cfg.Port, "storage", cfg.StorageDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	logger.Info("Server stopped")
}

// openRepository builds the storage adapters selected by STORAGE_DRIVER and
// wraps definition reads in the Redis cache when one is configured.
func openRepository(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repositories.Repository, func(), error) {
	var (
		attempts    repositories.AttemptRepository
		definitions repositories.TestDefinitionRepository
		closers     []func()
	)

	switch cfg.StorageDriver {
	case config.StorageDriverPostgres:
		db, err := pkg.InitDatabase(cfg)
		if err != nil {
			return nil, nil, err
		}
		if err := postgres.Migrate(db); err != nil {
			return nil, nil, err
		}
		if sqlDB, err := db.DB(); err == nil {
			closers = append(closers, func() { _ = sqlDB.Close() })
		}
		attempts = postgres.NewAttemptPostgreSQL(db)
		definitions = postgres.NewTestDefinitionPostgreSQL(db)
	case config.StorageDriverMongo:
		client, err := pkg.NewMongoClient(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, func() { _ = client.Disconnect(context.Background()) })

		database := client.Database(cfg.MongoDatabase)
		attemptStore := mongodb.NewAttemptMongo(database)
		if err := attemptStore.EnsureIndexes(ctx); err != nil {
			return nil, nil, err
		}
		definitionStore := mongodb.NewTestDefinitionMongo(database)
		if err := definitionStore.EnsureIndexes(ctx); err != nil {
			return nil, nil, err
		}
		attempts, definitions = attemptStore, definitionStore
	default:
		logger.Warn("Using in-memory storage, data is lost on restart")
		attempts = memory.NewAttemptMemory()
		definitions = memory.NewTestDefinitionMemory()
	}

	if cfg.RedisURL != "" {
		client, err := pkg.NewRedisClient(ctx, cfg)
		if err != nil {
			logger.Warn("Redis unavailable, test definition cache disabled", "error", err)
		} else {
			closers = append(closers, func() { _ = client.Close() })
			definitions = cache.NewCachedTestDefinitionRepository(definitions,
				cache.NewRedisCache(client, logger), cfg.DefinitionCacheTTL, logger)
		}
	}

	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	return repositories.NewRepository(attempts, definitions), closeAll, nil
}

func allowsAnyOrigin(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
