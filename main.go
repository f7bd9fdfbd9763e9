package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql (migrations)
	"go.uber.org/zap"

	"github.com/lexwatch/lexwatch-engine/pkg/config"
	"github.com/lexwatch/lexwatch-engine/pkg/crypto"
	"github.com/lexwatch/lexwatch-engine/pkg/database"
	"github.com/lexwatch/lexwatch-engine/pkg/fetch"
	"github.com/lexwatch/lexwatch-engine/pkg/handlers"
	"github.com/lexwatch/lexwatch-engine/pkg/llm"
	"github.com/lexwatch/lexwatch-engine/pkg/logging"
	"github.com/lexwatch/lexwatch-engine/pkg/middleware"
	"github.com/lexwatch/lexwatch-engine/pkg/normalize"
	"github.com/lexwatch/lexwatch-engine/pkg/repositories"
	"github.com/lexwatch/lexwatch-engine/pkg/services"
	"github.com/lexwatch/lexwatch-engine/pkg/storage"
)

// Version is set at build time via ldflags
var Version = "dev"

const shutdownTimeout = 15 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("database", cfg.Database.Host),
		zap.String("ai_provider", cfg.AI.Provider),
		zap.String("ai_model", cfg.AI.Model),
		zap.Bool("scheduler_enabled", cfg.Scheduler.Enabled),
	)

	// Database
	db, err := database.NewConnectionFromConfig(ctx, &cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := runMigrations(cfg, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	// Redis is optional: an empty host disables the scan guard and event
	// publishing.
	redisClient, err := database.NewRedisClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	if redisClient == nil {
		logger.Info("Redis not configured, scan guard and events disabled")
	} else {
		defer func() { _ = redisClient.Close() }()
	}

	// Raw-content archive is optional: an empty endpoint disables it.
	var archive storage.ObjectStore
	if cfg.Archive.Endpoint != "" {
		store, err := storage.NewMinioStore(ctx, &cfg.Archive, logger)
		if err != nil {
			logger.Fatal("Failed to connect to archive store", zap.Error(err))
		}
		archive = store
	} else {
		logger.Info("Archive store not configured, raw-content archiving disabled")
	}

	// LLM client
	llmClient, err := llm.NewClientForProvider(cfg.AI.Provider, &llm.Config{
		Endpoint:  cfg.AI.BaseURL,
		Model:     cfg.AI.Model,
		APIKey:    cfg.AI.APIKey,
		MaxTokens: cfg.AI.MaxTokens,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create LLM client", zap.Error(err))
	}
	circuitBreaker := llm.NewCircuitBreaker(llm.DefaultCircuitBreakerConfig())

	// Credential encryption is optional: without a key, auth credentials are
	// stored as plaintext JSON.
	var encryptor *crypto.CredentialEncryptor
	if cfg.CredentialsKey != "" {
		encryptor, err = crypto.NewCredentialEncryptor(cfg.CredentialsKey)
		if err != nil {
			logger.Fatal("Failed to create credential encryptor", zap.Error(err))
		}
		logger.Info("Credential encryption enabled")
	} else {
		logger.Info("Credential encryption not configured, auth credentials stored as plaintext")
	}

	// Repositories
	sourceRepo := repositories.NewSourceRepository(db, encryptor)
	revisionRepo := repositories.NewRevisionRepository(db)
	diffRepo := repositories.NewChangeDiffRepository(db)

	// Services
	fetcher := fetch.NewHTTPFetcher(&cfg.Fetcher, logger)
	normalizer := normalize.NewNormalizer(logger)
	extractor := services.NewExtractor(llmClient, circuitBreaker, &cfg.AI, &cfg.Extractor, logger)
	detector := services.NewChangeDetector(&cfg.Detector, logger)
	guard := services.NewScanGuard(redisClient, logger)
	events := services.NewEventPublisher(redisClient, logger)
	pipeline := services.NewPipeline(
		sourceRepo, revisionRepo,
		fetcher, normalizer, extractor, detector,
		archive, guard, events,
		&cfg.Scheduler, logger,
	)

	var scheduler services.Scheduler
	if cfg.Scheduler.Enabled {
		scheduler = services.NewScheduler(pipeline, &cfg.Scheduler, logger)
		if err := scheduler.Start(); err != nil {
			logger.Fatal("Failed to start scheduler", zap.Error(err))
		}
	}

	// HTTP surface
	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewSourcesHandler(sourceRepo, logger).RegisterRoutes(mux)
	handlers.NewScansHandler(pipeline, logger).RegisterRoutes(mux)
	handlers.NewRevisionsHandler(sourceRepo, revisionRepo, diffRepo, logger).RegisterRoutes(mux)

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler:           middleware.RequestLogger(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting lexwatch-engine",
			zap.String("addr", srv.Addr),
			zap.String("version", cfg.Version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if scheduler != nil {
		scheduler.Stop(shutdownCtx)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Server shutdown did not complete cleanly", zap.Error(err))
	}
	logger.Info("Stopped")
}

// runMigrations opens a database/sql handle for golang-migrate and applies
// pending migrations. The handle is closed once migrations finish; the
// application itself runs on the pgx pool.
func runMigrations(cfg *config.Config, logger *zap.Logger) error {
	sqlDB, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		return err
	}
	defer func() { _ = sqlDB.Close() }()
	return database.RunMigrations(sqlDB, cfg.MigrationsPath, logger)
}
