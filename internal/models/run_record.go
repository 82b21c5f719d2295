package models

import "time"

// RunRecord is the persisted form of a terminal run, stored in the history
// database. Live runs are served from the in-memory registry; records exist
// so operators keep history across restarts.
type RunRecord struct {
	ID          string                 `json:"id" badgerhold:"key"`
	SlotID      string                 `json:"slot_id"`
	Name        string                 `json:"name,omitempty"`
	Status      RunStatus              `json:"status"`
	Modes       []ModeTiming           `json:"modes"`
	ProgressPct float64                `json:"progress_pct"`
	LastError   string                 `json:"last_error,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	StartedAt   *time.Time             `json:"started_at,omitempty"`
	EndedAt     *time.Time             `json:"ended_at,omitempty"`
}

// NewRunRecord snapshots a terminal run for persistence
func NewRunRecord(run *Run, progressPct float64) *RunRecord {
	state := run.State()
	return &RunRecord{
		ID:          run.ID,
		SlotID:      run.Request.SlotID,
		Name:        run.Request.Name,
		Status:      state.Status,
		Modes:       append([]ModeTiming(nil), state.Modes...),
		ProgressPct: progressPct,
		LastError:   state.LastError,
		Metadata:    run.Request.Metadata,
		CreatedAt:   run.CreatedAt,
		StartedAt:   state.StartedAt,
		EndedAt:     state.EndedAt,
	}
}
