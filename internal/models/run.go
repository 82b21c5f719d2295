// -----------------------------------------------------------------------
// Run - Immutable request plus single-writer execution state
// -----------------------------------------------------------------------

package models

import (
	"fmt"
	"sync/atomic"
	"time"
)

// RunStatus represents the state of one slot run
type RunStatus string

const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusRunning   RunStatus = "running"
	RunStatusDone      RunStatus = "done"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// IsTerminal returns true if the status is terminal (no further transitions)
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusDone || s == RunStatusFailed || s == RunStatusCancelled
}

// ModeSpec is one named measurement technique with its parameter set.
// Parameters are opaque to the engine except where the duration estimator
// recognises them.
type ModeSpec struct {
	Name   string                 `json:"name"`
	Params map[string]interface{} `json:"params,omitempty"`
}

// ParamFloat retrieves a numeric parameter. JSON unmarshaling delivers
// numbers as float64; integer literals from TOML arrive as int64.
func (m ModeSpec) ParamFloat(key string) (float64, bool) {
	val, ok := m.Params[key]
	if !ok {
		return 0, false
	}
	switch v := val.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// RunRequest is one unit of work for one slot: an ordered mode sequence plus
// naming/output metadata. Immutable after submission.
type RunRequest struct {
	SlotID   string                 `json:"slot_id" validate:"required"`
	Modes    []ModeSpec             `json:"modes" validate:"required,min=1,dive"`
	Name     string                 `json:"name,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"` // Opaque, passed through to storage
}

// Validate checks structural validity of a run request
func (r *RunRequest) Validate() error {
	if r.SlotID == "" {
		return fmt.Errorf("slot_id is required")
	}
	if len(r.Modes) == 0 {
		return fmt.Errorf("at least one mode is required")
	}
	for i, mode := range r.Modes {
		if mode.Name == "" {
			return fmt.Errorf("mode %d: name is required", i)
		}
	}
	return nil
}

// ModeTiming records execution timestamps for one mode in the sequence.
// A mode that never started has a nil StartedAt.
type ModeTiming struct {
	Name      string     `json:"name"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// ModePlan is the estimator's planned duration for one mode. Known is false
// when the mode is unestimable; the engine never fabricates a duration.
type ModePlan struct {
	Name     string
	Duration time.Duration
	Known    bool
}

// SlotState is the mutable execution state of one run. Only the owning slot
// worker writes it, and always by publishing a fresh copy - readers never see
// a partially updated state.
type SlotState struct {
	Status           RunStatus    `json:"status"`
	CurrentModeIndex int          `json:"current_mode_index"`
	CurrentMode      string       `json:"current_mode,omitempty"`
	RemainingModes   []string     `json:"remaining_modes"`
	LastError        string       `json:"last_error,omitempty"`
	StartedAt        *time.Time   `json:"started_at,omitempty"`
	EndedAt          *time.Time   `json:"ended_at,omitempty"`
	Modes            []ModeTiming `json:"modes"`
}

// Clone returns a deep copy suitable for mutation before publishing
func (s *SlotState) Clone() *SlotState {
	clone := *s
	clone.RemainingModes = append([]string(nil), s.RemainingModes...)
	clone.Modes = append([]ModeTiming(nil), s.Modes...)
	return &clone
}

// Run binds an immutable RunRequest to its execution state. The state is
// published via atomic pointer replacement: the worker is the single writer,
// any number of pollers read the latest committed snapshot without locking.
type Run struct {
	ID        string
	Request   RunRequest
	Plans     []ModePlan // Planned durations per mode, fixed at start
	CreatedAt time.Time

	state atomic.Pointer[SlotState]
}

// NewRun creates a run in the queued state
func NewRun(id string, request RunRequest, plans []ModePlan) *Run {
	remaining := make([]string, len(request.Modes))
	timings := make([]ModeTiming, len(request.Modes))
	for i, mode := range request.Modes {
		remaining[i] = mode.Name
		timings[i] = ModeTiming{Name: mode.Name}
	}

	run := &Run{
		ID:        id,
		Request:   request,
		Plans:     plans,
		CreatedAt: time.Now(),
	}
	run.state.Store(&SlotState{
		Status:         RunStatusQueued,
		RemainingModes: remaining,
		Modes:          timings,
	})
	return run
}

// State returns the latest committed state. Callers must treat the result as
// read-only; writers publish replacements via Publish.
func (r *Run) State() *SlotState {
	return r.state.Load()
}

// Publish commits a new state snapshot. Writes to a terminal state are
// rejected to keep terminal status monotonic.
func (r *Run) Publish(s *SlotState) bool {
	for {
		current := r.state.Load()
		if current.Status.IsTerminal() {
			return false
		}
		if r.state.CompareAndSwap(current, s) {
			return true
		}
	}
}
