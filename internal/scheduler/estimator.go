// -----------------------------------------------------------------------
// Progress Estimator - Planned mode durations and progress/ETA derivation
// -----------------------------------------------------------------------

package scheduler

import (
	"math"
	"time"

	"github.com/voltlab/galvana/internal/models"
)

// Sweep-type modes estimated from potential range, scan rate and cycle count
const (
	ModeCyclicVoltammetry = "CV"  // Full sweep per cycle (forward + reverse)
	ModeLinearSweep       = "LSV" // Single sweep
)

// runningPctCeiling keeps progress strictly below 100 while a run is still
// executing; exactly 100 is reserved for status == done.
const runningPctCeiling = 99.9

// ProgressEstimator maps modes to planned durations and derives progress
// percentages and remaining-seconds estimates. All methods are pure and safe
// for concurrent use.
type ProgressEstimator struct{}

// NewProgressEstimator creates a progress estimator
func NewProgressEstimator() *ProgressEstimator {
	return &ProgressEstimator{}
}

// PlannedDuration returns the planned duration for one mode. The second
// return value is false for unestimable modes - the estimator never guesses.
//
// An explicit duration_s parameter always wins. Sweep modes without one are
// derived from start/end potential, scan rate and cycle count.
func (e *ProgressEstimator) PlannedDuration(mode models.ModeSpec) (time.Duration, bool) {
	if secs, ok := mode.ParamFloat("duration_s"); ok && secs >= 0 {
		return time.Duration(secs * float64(time.Second)), true
	}

	switch mode.Name {
	case ModeCyclicVoltammetry, ModeLinearSweep:
		start, okStart := mode.ParamFloat("start_potential_v")
		end, okEnd := mode.ParamFloat("end_potential_v")
		rate, okRate := mode.ParamFloat("scan_rate_v_s")
		if !okStart || !okEnd || !okRate || rate <= 0 {
			return 0, false
		}

		sweep := math.Abs(end-start) / rate
		if mode.Name == ModeCyclicVoltammetry {
			cycles := 1.0
			if c, ok := mode.ParamFloat("cycles"); ok && c > 0 {
				cycles = c
			}
			// One cycle sweeps forward and back
			sweep *= 2 * cycles
		}
		return time.Duration(sweep * float64(time.Second)), true
	}

	return 0, false
}

// Plan computes planned durations for an ordered mode sequence
func (e *ProgressEstimator) Plan(modes []models.ModeSpec) []models.ModePlan {
	plans := make([]models.ModePlan, len(modes))
	for i, mode := range modes {
		duration, known := e.PlannedDuration(mode)
		plans[i] = models.ModePlan{
			Name:     mode.Name,
			Duration: duration,
			Known:    known,
		}
	}
	return plans
}

// Progress derives (progress_pct, remaining_s) from the current slot state
// and the run's planned durations.
//
//   - queued: 0 with the full planned total as remaining
//   - running: completed-duration fraction plus linear interpolation within
//     the current mode, clamped below 100
//   - done: exactly 100, remaining 0
//   - failed/cancelled: frozen at the value computed from the terminal
//     timestamps; never changes retroactively
//
// remaining_s is nil whenever the current or any remaining mode is
// unestimable. When any planned duration is unknown the percentage falls
// back to a completed-mode count fraction.
func (e *ProgressEstimator) Progress(state *models.SlotState, plans []models.ModePlan, now time.Time) (float64, *float64) {
	switch state.Status {
	case models.RunStatusQueued:
		return 0, e.totalRemaining(plans, 0)

	case models.RunStatusDone:
		zero := 0.0
		return 100, &zero

	case models.RunStatusFailed, models.RunStatusCancelled:
		// Freeze at the terminal timestamp
		at := now
		if state.EndedAt != nil {
			at = *state.EndedAt
		}
		pct := e.runningPct(state, plans, at)
		return pct, nil
	}

	// running
	pct := e.runningPct(state, plans, now)
	remaining := e.remainingSeconds(state, plans, now)
	return pct, remaining
}

// runningPct computes the in-flight percentage at a point in time
func (e *ProgressEstimator) runningPct(state *models.SlotState, plans []models.ModePlan, at time.Time) float64 {
	idx := state.CurrentModeIndex
	if len(plans) == 0 {
		return 0
	}

	if !allKnown(plans) {
		// Count fraction when any duration is unknown
		pct := float64(completedModes(state)) / float64(len(plans)) * 100
		return clampRunning(pct)
	}

	var total, done time.Duration
	for _, plan := range plans {
		total += plan.Duration
	}
	if total <= 0 {
		return 0
	}
	for i := 0; i < idx && i < len(plans); i++ {
		done += plans[i].Duration
	}

	// Linear interpolation within the current mode
	if idx < len(plans) && idx < len(state.Modes) {
		if started := state.Modes[idx].StartedAt; started != nil {
			elapsed := at.Sub(*started)
			if elapsed < 0 {
				elapsed = 0
			}
			if elapsed > plans[idx].Duration {
				elapsed = plans[idx].Duration
			}
			done += elapsed
		}
	}

	return clampRunning(float64(done) / float64(total) * 100)
}

// remainingSeconds estimates seconds left across the current and remaining
// modes; nil when any of them is unestimable
func (e *ProgressEstimator) remainingSeconds(state *models.SlotState, plans []models.ModePlan, now time.Time) *float64 {
	idx := state.CurrentModeIndex

	var remaining time.Duration
	for i := idx; i < len(plans); i++ {
		if !plans[i].Known {
			return nil
		}
		remaining += plans[i].Duration
	}

	// Subtract elapsed time in the current mode
	if idx < len(state.Modes) {
		if started := state.Modes[idx].StartedAt; started != nil {
			elapsed := now.Sub(*started)
			if elapsed > 0 {
				remaining -= elapsed
			}
		}
	}
	if remaining < 0 {
		remaining = 0
	}

	secs := remaining.Seconds()
	return &secs
}

// totalRemaining sums planned durations from startIndex; nil if any unknown
func (e *ProgressEstimator) totalRemaining(plans []models.ModePlan, startIndex int) *float64 {
	var total time.Duration
	for i := startIndex; i < len(plans); i++ {
		if !plans[i].Known {
			return nil
		}
		total += plans[i].Duration
	}
	secs := total.Seconds()
	return &secs
}

func allKnown(plans []models.ModePlan) bool {
	for _, plan := range plans {
		if !plan.Known {
			return false
		}
	}
	return true
}

// completedModes counts modes with a recorded end time. Only modes that ran
// to a successful end carry one; an errored mode never counts.
func completedModes(state *models.SlotState) int {
	count := 0
	for _, timing := range state.Modes {
		if timing.EndedAt != nil {
			count++
		}
	}
	return count
}

func clampRunning(pct float64) float64 {
	if pct < 0 {
		return 0
	}
	if pct > runningPctCeiling {
		return runningPctCeiling
	}
	return pct
}
