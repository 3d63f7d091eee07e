// Package main implements the chesskit server: a RESTful API over
// game sessions with long-poll and websocket event delivery, and
// optional SQLite persistence.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"chesskit/internal/config"
	"chesskit/internal/position"
	"chesskit/internal/processor"
	"chesskit/internal/service"
	"chesskit/internal/storage"
	"chesskit/internal/transport/http"
)

const gracefulShutdownTimeout = time.Second * 5

func main() {
	var (
		cfgPath     = flag.String("config", "", "Path to config file (optional)")
		apiHost     = flag.String("api-host", "", "API server host (overrides config)")
		apiPort     = flag.Int("api-port", 0, "API server port (overrides config)")
		dev         = flag.Bool("dev", false, "Development mode (relaxed rate limits, WAL storage)")
		storagePath = flag.String("storage-path", "", "Path to SQLite database file (overrides config)")
	)
	flag.Parse()

	cfg, err := config.Setup(*cfgPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *apiHost != "" {
		cfg.APIHost = *apiHost
	}
	if *apiPort != 0 {
		cfg.APIPort = *apiPort
	}
	if *storagePath != "" {
		cfg.StoragePath = *storagePath
	}
	if *dev {
		cfg.DevMode = true
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	// 1. Initialize storage (optional)
	var store *storage.Store
	if cfg.StoragePath != "" {
		sugar.Infow("initializing persistent storage", "path", cfg.StoragePath)
		store, err = storage.NewStore(cfg.StoragePath, cfg.DevMode, sugar)
		if err != nil {
			sugar.Fatalw("failed to initialize storage", "error", err)
		}
		if err := store.InitDB(); err != nil {
			sugar.Fatalw("failed to initialize schema", "error", err)
		}
	} else {
		sugar.Infow("persistent storage disabled")
	}

	// 2. Initialize the service with the rules engine
	engine := position.NewEngine(sugar)
	svc := service.New(sugar, engine, store)

	// Reap idle sessions in the background
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	go svc.RunCleanupJob(cleanupCtx, cfg.CleanupInterval, cfg.SessionTTL)

	// 3. Initialize the processor, injecting the service
	proc := processor.New(sugar, svc)

	// 4. Initialize the Fiber app
	app := http.NewFiberApp(proc, svc, cfg.DevMode)

	apiAddr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort)

	go func() {
		sugar.Infow("chesskit API server starting",
			"addr", apiAddr,
			"devMode", cfg.DevMode,
			"storage", cfg.StoragePath != "",
		)
		sugar.Infof("API endpoints: http://%s/api/v1/sessions", apiAddr)
		sugar.Infof("Event stream: ws://%s/ws/{sessionId}", apiAddr)
		sugar.Infof("Health: http://%s/health", apiAddr)

		if err := app.Listen(apiAddr); err != nil {
			sugar.Errorw("API server listen error", "error", err)
		}
	}()

	// Wait for an interrupt signal to gracefully shut down
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	sugar.Infow("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		sugar.Warnw("server forced to shutdown", "error", err)
	}

	cleanupCancel()

	// Service shutdown closes the wait registry and storage
	if err := svc.Shutdown(gracefulShutdownTimeout); err != nil {
		sugar.Warnw("service shutdown error", "error", err)
	}

	sugar.Infow("server exited")
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}

	var zc zap.Config
	if cfg.DevMode {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
