package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/trendflow-go/internal/services/trending/server"
	"github.com/trendflow-go/pkg/config"
	"github.com/trendflow-go/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load("trending")
	if err != nil {
		panic(err)
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:     cfg.Logger.Level,
		Format:    cfg.Logger.Format,
		Output:    cfg.Logger.Output,
		AddCaller: cfg.Logger.AddCaller,
	})

	// Create server
	srv, err := server.New(cfg, log)
	if err != nil {
		log.Fatal("Failed to create server", "error", err)
	}

	// Start server in goroutine
	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal("Failed to start server", "error", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Trending service exited")
}
