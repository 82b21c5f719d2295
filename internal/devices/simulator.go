// -----------------------------------------------------------------------
// Simulator - Simulated device executor for development and testing
// -----------------------------------------------------------------------

package devices

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/voltlab/galvana/internal/common"
	"github.com/voltlab/galvana/internal/interfaces"
	"github.com/voltlab/galvana/internal/models"
	"github.com/voltlab/galvana/internal/scheduler"
)

// defaultModeDuration is used for modes the estimator cannot plan, so the
// simulator still makes visible progress in development
const defaultModeDuration = 2 * time.Second

// Simulator is a DeviceExecutor that sleeps for each mode's planned duration
// scaled by the configured time factor. A mode with a truthy
// "simulate_error" parameter fails, which makes fail-fast paths reproducible
// without hardware.
type Simulator struct {
	timeScale float64
	estimator *scheduler.ProgressEstimator
	logger    arbor.ILogger
}

// NewSimulator creates a simulated executor
func NewSimulator(config *common.SimConfig, logger arbor.ILogger) *Simulator {
	scale := config.TimeScale
	if scale <= 0 {
		scale = 1.0
	}
	return &Simulator{
		timeScale: scale,
		estimator: scheduler.NewProgressEstimator(),
		logger:    logger,
	}
}

// Execute simulates one mode on a slot. Honors context cancellation so
// service shutdown can abort in-flight simulated measurements.
func (s *Simulator) Execute(ctx context.Context, slotID string, mode models.ModeSpec) error {
	if fail, ok := mode.Params["simulate_error"]; ok {
		if b, isBool := fail.(bool); isBool && b {
			return &interfaces.DeviceError{
				SlotID: slotID,
				Mode:   mode.Name,
				Err:    fmt.Errorf("simulated device fault"),
			}
		}
	}

	duration, known := s.estimator.PlannedDuration(mode)
	if !known {
		duration = defaultModeDuration
	}
	duration = time.Duration(float64(duration) * s.timeScale)

	s.logger.Debug().
		Str("slot_id", slotID).
		Str("mode", mode.Name).
		Dur("duration", duration).
		Msg("Simulating mode execution")

	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return &interfaces.DeviceError{
			SlotID: slotID,
			Mode:   mode.Name,
			Err:    ctx.Err(),
		}
	}
}
