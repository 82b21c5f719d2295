package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/voltlab/galvana/internal/common"
	"github.com/voltlab/galvana/internal/devices"
	"github.com/voltlab/galvana/internal/handlers"
	"github.com/voltlab/galvana/internal/interfaces"
	"github.com/voltlab/galvana/internal/scheduler"
	"github.com/voltlab/galvana/internal/services/events"
	"github.com/voltlab/galvana/internal/services/maintenance"
	"github.com/voltlab/galvana/internal/storage"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	ctx            context.Context
	cancelCtx      context.CancelFunc
	StorageManager interfaces.StorageManager

	// Event-driven services
	EventService interfaces.EventService

	// Engine
	Registry *scheduler.SlotRegistry
	Executor interfaces.DeviceExecutor
	Manager  *scheduler.Manager

	// Background maintenance
	MaintenanceService *maintenance.Service

	// HTTP handlers
	APIHandler    *handlers.APIHandler
	RunHandler    *handlers.RunHandler
	SlotHandler   *handlers.SlotHandler
	StatusHandler *handlers.StatusHandler
	WSHandler     *handlers.WebSocketHandler
}

// New creates a new application with all services and handlers wired
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())

	app := &App{
		Config:    cfg,
		Logger:    logger,
		ctx:       ctx,
		cancelCtx: cancel,
	}

	// Storage layer (Badger-backed run history)
	storageManager, err := storage.NewManager(cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create storage manager: %w", err)
	}
	app.StorageManager = storageManager

	// Event service for engine notifications
	app.EventService = events.NewService(logger)

	// Slot inventory and registry
	slots, err := devices.LoadSlots(&cfg.Devices, logger)
	if err != nil {
		storageManager.Close()
		cancel()
		return nil, fmt.Errorf("failed to load slot inventory: %w", err)
	}
	app.Registry = scheduler.NewSlotRegistry(slots, logger)

	// Device executor
	if !cfg.Devices.Simulator.Enabled {
		storageManager.Close()
		cancel()
		return nil, fmt.Errorf("no device executor available: hardware drivers not configured and simulator disabled")
	}
	app.Executor = devices.NewSimulator(&cfg.Devices.Simulator, logger)

	// Run manager (the engine core)
	app.Manager = scheduler.NewManager(app.Registry, app.Executor, storageManager.RunStorage(), app.EventService, logger)

	// Background maintenance (Badger GC, history pruning, status log)
	if cfg.Maintenance.Enabled {
		app.MaintenanceService = maintenance.NewService(&cfg.Maintenance, storageManager, app.Manager, logger)
		if err := app.MaintenanceService.Start(); err != nil {
			storageManager.Close()
			cancel()
			return nil, fmt.Errorf("failed to start maintenance service: %w", err)
		}
	}

	// HTTP handlers
	app.APIHandler = handlers.NewAPIHandler()
	app.RunHandler = handlers.NewRunHandler(app.Manager, storageManager.RunStorage(), logger)
	app.SlotHandler = handlers.NewSlotHandler(app.Registry, logger)
	app.StatusHandler = handlers.NewStatusHandler(app.Manager, logger)
	app.WSHandler = handlers.NewWebSocketHandler(app.EventService, logger, &cfg.WebSocket)

	logger.Info().
		Int("slots", len(slots)).
		Bool("simulator", cfg.Devices.Simulator.Enabled).
		Bool("maintenance", cfg.Maintenance.Enabled).
		Msg("Application initialization complete")

	return app, nil
}

// Close shuts down all application components in reverse initialization order
func (a *App) Close() error {
	if a.cancelCtx != nil {
		a.cancelCtx()
	}

	// Stop accepting new work and wait for in-flight runs to observe cancellation
	if a.Manager != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.Manager.Shutdown(shutdownCtx); err != nil {
			a.Logger.Warn().Err(err).Msg("Engine shutdown did not complete cleanly")
		}
	}

	if a.MaintenanceService != nil {
		a.MaintenanceService.Stop()
		a.Logger.Info().Msg("Maintenance service stopped")
	}

	if a.WSHandler != nil {
		a.WSHandler.CloseAll()
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close storage manager")
			return err
		}
		a.Logger.Info().Msg("Storage manager closed")
	}

	return nil
}
