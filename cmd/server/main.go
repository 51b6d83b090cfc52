package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/glaucoma-screening-server/internal/api"
	"github.com/glaucoma-screening-server/internal/cache"
	"github.com/glaucoma-screening-server/internal/config"
	"github.com/glaucoma-screening-server/internal/database"
	"github.com/glaucoma-screening-server/internal/domain"
	"github.com/glaucoma-screening-server/internal/repository"
	"github.com/glaucoma-screening-server/internal/results"
	"github.com/glaucoma-screening-server/internal/service"
	"github.com/glaucoma-screening-server/pkg/tablestore"
)

func main() {
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}
	cfg := configManager.GetConfig()

	logger := newLogger(cfg.Logging)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down")
		cancel()
	}()

	db, err := database.NewConnection(ctx, cfg.Database, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	runner, err := database.NewMigrationRunner(configManager.GetDatabaseURL(), cfg.Database.MigrationsPath, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create migration runner")
	}
	if err := runner.Up(); err != nil {
		logger.WithError(err).Fatal("Failed to run migrations")
	}
	runner.Close()

	questionRepo := repository.NewQuestionRepository(db.Pool, logger)
	adviceRepo := repository.NewAdviceRepository(db.Pool, logger)

	// The hosted table backend replaces the local read path when enabled;
	// admin mutations always go through Postgres.
	var catalogSource domain.CatalogSource = questionRepo
	var adviceSource domain.AdviceSource = adviceRepo
	if cfg.TableStore.Enabled {
		client := tablestore.NewClient(cfg.TableStore)
		catalogSource = client
		adviceSource = client
		logger.WithField("base_url", cfg.TableStore.BaseURL).Info("Using hosted table backend for catalog reads")
	}

	var loader domain.CatalogLoader = service.NewCatalogService(logger, catalogSource, adviceSource)

	var invalidator domain.Invalidator
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedisClient(cfg.Cache)
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, continuing with in-memory cache only")
			redisClient = nil
		}
		cached := cache.NewCachedLoader(loader, redisClient, cfg.Cache, logger)
		loader = cached
		invalidator = cached
	}

	resultStore, err := newResultStore(configManager, cfg)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open result store")
	}
	defer resultStore.Close()

	engine := service.NewScoringEngine(logger, cfg.Risk)
	screenings := service.NewScreeningService(logger, loader, engine, resultStore)

	handlers := api.NewHandlers(logger, screenings, loader, questionRepo, adviceRepo, invalidator, cfg.Server)
	server := api.NewServer(cfg, logger, handlers, db)

	logger.WithFields(logrus.Fields{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Starting glaucoma screening server")

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	logger.Info("Server stopped")
}

// newResultStore opens the configured screening archive backend
func newResultStore(configManager *config.Manager, cfg *domain.Config) (domain.ResultStore, error) {
	switch cfg.Results.Backend {
	case "sqlite":
		return results.NewSQLiteStore(cfg.Results.SQLitePath)
	default:
		return results.NewPostgresStoreFromURL(configManager.GetDatabaseURL())
	}
}

// newLogger builds the process logger from configuration
func newLogger(cfg domain.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if cfg.Output == "stderr" {
		logger.SetOutput(os.Stderr)
	} else {
		logger.SetOutput(os.Stdout)
	}

	return logger
}
