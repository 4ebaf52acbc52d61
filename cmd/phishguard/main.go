package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/phishguard/phishguard/internal/adapters/httpapi"
	"github.com/phishguard/phishguard/internal/config"
	"github.com/phishguard/phishguard/internal/core"
	"github.com/phishguard/phishguard/internal/di"
	"github.com/phishguard/phishguard/internal/factory"
	"go.uber.org/zap"
)

func main() {
	// Build the dependency injection container
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	cfg *config.Config,
	logger *zap.Logger,
	server *httpapi.Server,
	scorer core.Scorer,
	scoreCache core.ScoreCache,
	stores factory.Store,
) error {
	defer logger.Sync()
	defer di.Shutdown(logger, scorer, scoreCache, stores)

	serverCfg, err := cfg.GetServer()
	if err != nil {
		return err
	}

	if scorer == nil {
		logger.Warn("Starting without a classifier; scans and predictions will report not ready")
	} else {
		logger.Info("Classifier loaded", zap.String("model_version", scorer.ModelVersion()))
	}

	if err := server.Start(); err != nil {
		logger.Error("Failed to start HTTP API", zap.Error(err))
		return err
	}

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), serverCfg.ShutdownTimeout)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		logger.Error("Failed to stop HTTP API", zap.Error(err))
	}

	logger.Info("Shutdown complete")
	return nil
}
