package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/minhvt/imagedit-be/internal/api/handler"
	"github.com/minhvt/imagedit-be/internal/api/router"
	"github.com/minhvt/imagedit-be/internal/config"
	"github.com/minhvt/imagedit-be/internal/provider/seedream"
	"github.com/minhvt/imagedit-be/internal/service"
	"github.com/minhvt/imagedit-be/internal/storage"
	"github.com/minhvt/imagedit-be/internal/storage/memory"
	"github.com/minhvt/imagedit-be/internal/storage/postgres"
	"github.com/minhvt/imagedit-be/shared/logger"
	"github.com/minhvt/imagedit-be/shared/postgresql"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	defaultConfigPath := os.Getenv("API_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/api-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting API service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
		slog.String("storage_backend", cfg.Storage.Backend),
	)

	// Select the job store backend
	store, dbClient, err := initStore(cfg, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize job store: %w", err)
	}
	defer func() {
		if dbClient != nil {
			dbClient.Close()
		}
	}()

	// Editing provider client
	editor, err := seedream.NewClient(seedream.Options{
		APIKey:         os.Getenv("SEEDREAM_API_KEY"),
		BaseURL:        cfg.Provider.BaseURL,
		Model:          cfg.Provider.Model,
		PollInterval:   cfg.Provider.PollInterval.Std(),
		RequestTimeout: cfg.Provider.RequestTimeout.Std(),
		Logger:         appLogger.Logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize editing provider: %w", err)
	}

	jobService, err := service.NewJobService(service.Options{
		Store:           store,
		Editor:          editor,
		Logger:          appLogger.Logger,
		ProgressTick:    cfg.Editing.ProgressTick.Std(),
		ProgressStep:    cfg.Editing.ProgressStep,
		ProgressCeiling: cfg.Editing.ProgressCeiling,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize job service: %w", err)
	}

	r := initRouter(cfg.App.Environment, appLogger.Logger, jobService)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout.Std(),
		WriteTimeout: cfg.Server.WriteTimeout.Std(),
		IdleTimeout:  cfg.Server.IdleTimeout.Std(),
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Server failed to start",
				slog.Any("error", err),
			)
			os.Exit(1)
		}
	}()

	appLogger.Info("API service is running",
		slog.String("address", addr),
	)

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown",
			slog.Any("error", err),
		)
		return err
	}

	// Let in-flight editing tasks write their terminal state
	waitDone := make(chan struct{})
	go func() {
		jobService.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
	case <-time.After(cfg.Server.ShutdownTimeout.Std()):
		appLogger.Warn("Shutdown timeout reached with editing tasks still running")
	}

	appLogger.Info("Server shutdown complete")
	return nil
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	}

	return logger.New(loggerCfg)
}

// initStore builds the configured job store backend. The returned client is
// non-nil only for the postgres backend and must be closed by the caller.
func initStore(cfg *config.Config, log *slog.Logger) (storage.JobStore, *postgresql.Client, error) {
	if cfg.Storage.Backend == config.BackendMemory {
		return memory.NewStore(), nil, nil
	}

	db := cfg.Storage.Database
	client, err := postgresql.NewClient(&postgresql.Config{
		Host:            db.Host,
		Port:            db.Port,
		User:            db.User,
		Password:        db.Password,
		Database:        db.Database,
		SSLMode:         db.SSLMode,
		MaxOpenConns:    db.MaxOpenConns,
		MaxIdleConns:    db.MaxIdleConns,
		ConnMaxLifetime: db.ConnMaxLifetime.Std(),
		ConnMaxIdleTime: db.ConnMaxIdleTime.Std(),
	}, log)
	if err != nil {
		return nil, nil, err
	}

	store := postgres.NewStore(client.GetDB(), log)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.EnsureSchema(ctx); err != nil {
		client.Close()
		return nil, nil, err
	}

	return store, client, nil
}

// initRouter initializes the Gin router with all routes and middleware
func initRouter(environment string, log *slog.Logger, jobService *service.JobService) *gin.Engine {
	if environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	deps := &handler.Dependencies{
		Logger:  log,
		Service: jobService,
	}

	return router.SetupRouter(deps)
}
