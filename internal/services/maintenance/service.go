// -----------------------------------------------------------------------
// Maintenance Service - Scheduled housekeeping (Badger GC, status log,
// run history pruning)
// -----------------------------------------------------------------------

package maintenance

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/voltlab/galvana/internal/common"
	"github.com/voltlab/galvana/internal/interfaces"
	"github.com/voltlab/galvana/internal/scheduler"
)

// Service runs periodic housekeeping on a cron schedule
type Service struct {
	config  *common.MaintenanceConfig
	cron    *cron.Cron
	storage interfaces.StorageManager
	manager *scheduler.Manager
	logger  arbor.ILogger
}

// NewService creates the maintenance service
func NewService(config *common.MaintenanceConfig, storage interfaces.StorageManager, manager *scheduler.Manager, logger arbor.ILogger) *Service {
	return &Service{
		config:  config,
		cron:    cron.New(),
		storage: storage,
		manager: manager,
		logger:  logger,
	}
}

// Start registers the scheduled jobs and starts the cron runner
func (s *Service) Start() error {
	if !s.config.Enabled {
		s.logger.Debug().Msg("Maintenance service disabled")
		return nil
	}

	gcSchedule := s.config.GCSchedule
	if gcSchedule == "" {
		gcSchedule = "@every 10m"
	}
	if _, err := s.cron.AddFunc(gcSchedule, s.runGC); err != nil {
		return fmt.Errorf("invalid gc_schedule %q: %w", gcSchedule, err)
	}

	statusSchedule := s.config.StatusSchedule
	if statusSchedule == "" {
		statusSchedule = "@every 1m"
	}
	if _, err := s.cron.AddFunc(statusSchedule, s.logStatus); err != nil {
		return fmt.Errorf("invalid status_schedule %q: %w", statusSchedule, err)
	}

	s.cron.Start()
	s.logger.Info().
		Str("gc_schedule", gcSchedule).
		Str("status_schedule", statusSchedule).
		Msg("Maintenance service started")
	return nil
}

// Stop stops the cron runner and waits for in-flight jobs
func (s *Service) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Debug().Msg("Maintenance service stopped")
}

// runGC collects Badger value-log garbage and prunes run history beyond the
// retention limit
func (s *Service) runGC() {
	if err := s.storage.RunValueLogGC(); err != nil {
		s.logger.Warn().Err(err).Msg("Badger value-log GC failed")
	}

	if s.config.HistoryRetained > 0 {
		pruned, err := s.storage.RunStorage().PruneRuns(context.Background(), s.config.HistoryRetained)
		if err != nil {
			s.logger.Warn().Err(err).Msg("Run history pruning failed")
		} else if pruned > 0 {
			s.logger.Info().Int("pruned", pruned).Msg("Run history pruned")
		}
	}
}

// logStatus writes a periodic engine summary line
func (s *Service) logStatus() {
	status := s.manager.Status()
	s.logger.Info().
		Int("slots_total", status.SlotsTotal).
		Int("slots_reserved", status.SlotsReserved).
		Int("active_runs", status.ActiveRuns).
		Msg("Engine status")
}
