package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"planwise/tracking-engine/internal/config"
	"planwise/tracking-engine/internal/database"
	"planwise/tracking-engine/internal/handler"
	"planwise/tracking-engine/internal/horizon"
	"planwise/tracking-engine/internal/logger"
	"planwise/tracking-engine/internal/reconciler"
	"planwise/tracking-engine/internal/recurrence"
	"planwise/tracking-engine/internal/repository"
	"planwise/tracking-engine/internal/router"
	"planwise/tracking-engine/internal/scope"
	"planwise/tracking-engine/internal/session"
	enginesync "planwise/tracking-engine/internal/sync"

	"go.uber.org/zap"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config/local.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting tracking engine",
		zap.String("env", cfg.Env),
		zap.String("config_path", *configPath),
		zap.String("account_id", cfg.Account.ID),
	)

	// Initialize database
	db, err := database.New(cfg.StoragePath, log.Logger)
	if err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Failed to close database", zap.Error(err))
		}
	}()

	// Initialize repositories
	eventRepo := repository.NewEventRepository(db.DB)
	markerRepo := repository.NewSessionMarkerRepository(db.DB)

	// Initialize reconciler
	applier := reconciler.NewApplier(eventRepo, log.Logger)

	// Initialize session state machine
	machine := session.NewMachine(
		cfg.Account.ID,
		eventRepo,
		markerRepo,
		applier,
		time.Duration(cfg.Tracking.TickInterval)*time.Second,
		time.Duration(cfg.Tracking.ReconcileDelay)*time.Millisecond,
		log.Logger,
	)

	// Recover any session that survived a restart before anything else runs.
	if err := machine.Recover(time.Now()); err != nil {
		log.Error("Session recovery failed", zap.Error(err))
	}

	// Initialize durable sync
	syncer := enginesync.NewSyncer(
		cfg.Account.ID,
		machine,
		eventRepo,
		markerRepo,
		time.Duration(cfg.Tracking.SyncInterval)*time.Second,
		time.Duration(cfg.Tracking.MarkerWatchInterval)*time.Second,
		log.Logger,
	)
	syncer.Start()

	// Initialize recurrence services
	recurrenceService := recurrence.NewService(
		eventRepo,
		cfg.Recurrence.HorizonDays,
		cfg.Recurrence.MaxInstances,
		log.Logger,
	)
	seriesService := scope.NewService(eventRepo, log.Logger)

	maintainer := horizon.NewMaintainer(
		eventRepo,
		recurrenceService,
		cfg.Recurrence.HorizonDays,
		cfg.Recurrence.HorizonSchedule,
		log.Logger,
	)
	if err := maintainer.Start(); err != nil {
		log.Fatal("Failed to start horizon maintenance", zap.Error(err))
	}

	// Initialize HTTP surface for the host UI
	var httpServer *http.Server
	if cfg.Server.Enabled {
		sessionHandler := handler.NewSessionHandler(machine, log.Logger)
		eventHandler := handler.NewEventHandler(eventRepo, recurrenceService, seriesService, log.Logger)

		addr := fmt.Sprintf("localhost:%d", cfg.Server.Port)
		httpServer = &http.Server{
			Addr:         addr,
			Handler:      router.New(sessionHandler, eventHandler, log.Logger),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		go func() {
			log.Info("Starting HTTP server", zap.String("address", addr))
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("HTTP server error", zap.Error(err))
			}
		}()
	} else {
		log.Info("HTTP server disabled in configuration")
	}

	log.Info("Tracking engine started successfully")

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	log.Info("Received shutdown signal", zap.String("signal", sig.String()))

	if httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			log.Warn("HTTP server shutdown error", zap.Error(err))
		} else {
			log.Info("HTTP server stopped")
		}
	}

	maintainer.Stop()
	syncer.Stop()
	recurrenceService.Wait()

	// Local timers only: the durable session survives process teardown and
	// is picked up again by Recover on the next start.
	machine.Close()

	log.Info("Tracking engine stopped")
}
