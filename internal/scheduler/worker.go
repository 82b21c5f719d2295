// -----------------------------------------------------------------------
// Slot Worker - Per-slot mode sequence execution
// -----------------------------------------------------------------------

package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/voltlab/galvana/internal/interfaces"
	"github.com/voltlab/galvana/internal/models"
)

// slotWorker executes one run's ordered mode sequence on its reserved slot.
// It is the single writer of the run's SlotState and publishes every change
// as a fresh snapshot. Cancellation is cooperative: the flag is checked only
// between modes, never mid-mode, so hardware is never interrupted in an
// undefined state.
type slotWorker struct {
	run        *models.Run
	cancelFlag *atomic.Bool
	registry   *SlotRegistry
	executor   interfaces.DeviceExecutor
	aggregator *StatusAggregator
	events     interfaces.EventService // Optional: may be nil for testing
	storage    interfaces.RunStorage   // Optional: may be nil for testing
	logger     arbor.ILogger
}

// execute runs the mode sequence to a terminal state. The slot is released
// exactly once on every exit path via the deferred Release.
func (w *slotWorker) execute(ctx context.Context) {
	slotID := w.run.Request.SlotID
	defer w.registry.Release([]string{slotID})

	w.markRunning()
	w.publishEvent(ctx, interfaces.EventRunStarted, nil)

	modes := w.run.Request.Modes
	for i, mode := range modes {
		// Cancellation checkpoint: no mode starts after the flag is set
		if w.cancelFlag.Load() {
			w.finalize(ctx, models.RunStatusCancelled, "")
			return
		}

		w.markModeStarted(i, mode.Name)
		w.publishEvent(ctx, interfaces.EventRunModeStarted, map[string]interface{}{
			"mode":       mode.Name,
			"mode_index": i,
		})

		if err := w.executor.Execute(ctx, slotID, mode); err != nil {
			// Fail fast for this run; sibling slots are unaffected. The
			// errored mode keeps no end time so it never counts as completed.
			w.finalize(ctx, models.RunStatusFailed, err.Error())
			return
		}

		w.markModeEnded(i)
		w.publishProgress(ctx)
	}

	w.finalize(ctx, models.RunStatusDone, "")
}

// markRunning transitions queued -> running
func (w *slotWorker) markRunning() {
	state := w.run.State().Clone()
	now := time.Now()
	state.Status = models.RunStatusRunning
	state.StartedAt = &now
	w.run.Publish(state)
}

// markModeStarted records the current mode and its start time
func (w *slotWorker) markModeStarted(index int, name string) {
	state := w.run.State().Clone()
	now := time.Now()
	state.CurrentModeIndex = index
	state.CurrentMode = name
	state.Modes[index].StartedAt = &now

	remaining := make([]string, 0, len(state.Modes)-index-1)
	for _, mode := range w.run.Request.Modes[index+1:] {
		remaining = append(remaining, mode.Name)
	}
	state.RemainingModes = remaining

	w.run.Publish(state)
}

// markModeEnded records the end time of a successfully completed mode
func (w *slotWorker) markModeEnded(index int) {
	state := w.run.State().Clone()
	now := time.Now()
	state.Modes[index].EndedAt = &now
	w.run.Publish(state)
}

// finalize transitions to a terminal state, persists the run record and
// publishes the terminal event. Terminal writes are monotonic: once
// committed, no further state change is possible.
func (w *slotWorker) finalize(ctx context.Context, status models.RunStatus, lastError string) {
	state := w.run.State().Clone()
	now := time.Now()
	state.Status = status
	state.EndedAt = &now
	if lastError != "" {
		state.LastError = lastError
	}
	w.run.Publish(state)

	snapshot := w.aggregator.Aggregate(w.run)

	logEvent := w.logger.Info().
		Str("run_id", w.run.ID).
		Str("slot_id", w.run.Request.SlotID).
		Str("status", string(status))
	if lastError != "" {
		logEvent = logEvent.Str("error", lastError)
	}
	logEvent.Msg("Run finished")

	if w.storage != nil {
		record := models.NewRunRecord(w.run, snapshot.ProgressPct)
		if err := w.storage.SaveRun(ctx, record); err != nil {
			w.logger.Warn().Err(err).Str("run_id", w.run.ID).Msg("Failed to persist run record")
		}
	}

	eventType := interfaces.EventRunCompleted
	switch status {
	case models.RunStatusFailed:
		eventType = interfaces.EventRunFailed
	case models.RunStatusCancelled:
		eventType = interfaces.EventRunCancelled
	}
	w.publishEvent(ctx, eventType, map[string]interface{}{
		"progress_pct": snapshot.ProgressPct,
		"last_error":   lastError,
	})
}

// publishProgress emits a run_progress event with the freshly derived snapshot
func (w *slotWorker) publishProgress(ctx context.Context) {
	if w.events == nil {
		return
	}
	snapshot := w.aggregator.Aggregate(w.run)
	w.publishEvent(ctx, interfaces.EventRunProgress, map[string]interface{}{
		"progress_pct": snapshot.ProgressPct,
		"current_mode": snapshot.CurrentMode,
	})
}

func (w *slotWorker) publishEvent(ctx context.Context, eventType interfaces.EventType, extra map[string]interface{}) {
	if w.events == nil {
		return
	}

	payload := map[string]interface{}{
		"run_id":  w.run.ID,
		"slot_id": w.run.Request.SlotID,
	}
	for k, v := range extra {
		payload[k] = v
	}

	if err := w.events.Publish(ctx, interfaces.Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Payload:   payload,
	}); err != nil {
		w.logger.Warn().Err(err).Str("event_type", string(eventType)).Msg("Failed to publish event")
	}
}
