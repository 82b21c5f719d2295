// -----------------------------------------------------------------------
// Status Aggregator - Derived run snapshots, recomputed on every read
// -----------------------------------------------------------------------

package scheduler

import (
	"time"

	"github.com/voltlab/galvana/internal/models"
)

// StatusAggregator derives RunSnapshots from current slot state. It holds no
// state of its own and is safe for any number of concurrent readers; a
// snapshot is always recomputed, never cached.
type StatusAggregator struct {
	estimator *ProgressEstimator
}

// NewStatusAggregator creates a status aggregator
func NewStatusAggregator(estimator *ProgressEstimator) *StatusAggregator {
	return &StatusAggregator{estimator: estimator}
}

// Aggregate computes a fresh snapshot of one run
func (a *StatusAggregator) Aggregate(run *models.Run) models.RunSnapshot {
	return a.AggregateAt(run, time.Now())
}

// AggregateAt computes a snapshot at a given instant (exposed for tests)
func (a *StatusAggregator) AggregateAt(run *models.Run, now time.Time) models.RunSnapshot {
	state := run.State()
	pct, remaining := a.estimator.Progress(state, run.Plans, now)

	return models.RunSnapshot{
		RunID:          run.ID,
		SlotID:         run.Request.SlotID,
		Name:           run.Request.Name,
		Status:         state.Status,
		ProgressPct:    pct,
		RemainingS:     remaining,
		CurrentMode:    state.CurrentMode,
		RemainingModes: append([]string(nil), state.RemainingModes...),
		LastError:      state.LastError,
		StartedAt:      state.StartedAt,
		EndedAt:        state.EndedAt,
	}
}

// AllDone reports whether every run in the batch has reached a terminal
// state. Computed fresh on each call since workers mutate state
// asynchronously - collaborators (auto-download triggers) watch this signal.
func (a *StatusAggregator) AllDone(runs []*models.Run) bool {
	for _, run := range runs {
		if !run.State().Status.IsTerminal() {
			return false
		}
	}
	return true
}

// RecordSnapshot converts a persisted history record into snapshot form so
// bulk polls degrade gracefully after a restart
func RecordSnapshot(record *models.RunRecord) models.RunSnapshot {
	snapshot := models.RunSnapshot{
		RunID:          record.ID,
		SlotID:         record.SlotID,
		Name:           record.Name,
		Status:         record.Status,
		ProgressPct:    record.ProgressPct,
		RemainingModes: []string{},
		LastError:      record.LastError,
		StartedAt:      record.StartedAt,
		EndedAt:        record.EndedAt,
	}
	if record.Status == models.RunStatusDone {
		zero := 0.0
		snapshot.RemainingS = &zero
	}
	return snapshot
}
