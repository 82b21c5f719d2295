// -----------------------------------------------------------------------
// Run Manager - Job lifecycle orchestration over the slot pool
// -----------------------------------------------------------------------

package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/voltlab/galvana/internal/common"
	"github.com/voltlab/galvana/internal/interfaces"
	"github.com/voltlab/galvana/internal/models"
)

// Manager owns the run registry and orchestrates the lifecycle of submitted
// batches: validation, atomic slot reservation, worker spawning, polling,
// cancellation and eviction. It is the only owner of job-level state; each
// worker exclusively owns writes to its run's SlotState.
type Manager struct {
	mu   sync.Mutex
	runs map[string]*models.Run

	registry   *SlotRegistry
	cancels    *CancellationController
	estimator  *ProgressEstimator
	aggregator *StatusAggregator
	executor   interfaces.DeviceExecutor
	events     interfaces.EventService // Optional: may be nil for testing
	storage    interfaces.RunStorage   // Optional: may be nil for testing
	logger     arbor.ILogger

	ctx       context.Context
	cancelCtx context.CancelFunc
	wg        sync.WaitGroup
	startedAt time.Time
}

// NewManager creates a run manager over the given slot registry and device
// executor. events and storage may be nil for testing.
func NewManager(registry *SlotRegistry, executor interfaces.DeviceExecutor, storage interfaces.RunStorage, events interfaces.EventService, logger arbor.ILogger) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	estimator := NewProgressEstimator()

	return &Manager{
		runs:       make(map[string]*models.Run),
		registry:   registry,
		cancels:    NewCancellationController(),
		estimator:  estimator,
		aggregator: NewStatusAggregator(estimator),
		executor:   executor,
		events:     events,
		storage:    storage,
		logger:     logger,
		ctx:        ctx,
		cancelCtx:  cancel,
		startedAt:  time.Now(),
	}
}

// Aggregator exposes the snapshot derivation for collaborators that watch
// batch completion
func (m *Manager) Aggregator() *StatusAggregator {
	return m.aggregator
}

// Start validates a batch of run requests, reserves every targeted slot
// atomically and spawns one worker per run. On any validation or reservation
// failure nothing is started and no partial state is left behind.
func (m *Manager) Start(requests []models.RunRequest) ([]string, error) {
	if len(requests) == 0 {
		return nil, &ValidationError{Reason: "at least one run request is required"}
	}

	assignments := make(map[string]string, len(requests))
	runs := make([]*models.Run, 0, len(requests))
	runIDs := make([]string, 0, len(requests))

	for i, request := range requests {
		if err := request.Validate(); err != nil {
			return nil, &ValidationError{Reason: fmt.Sprintf("request %d: %v", i, err)}
		}
		if _, dup := assignments[request.SlotID]; dup {
			return nil, &ValidationError{Reason: fmt.Sprintf("duplicate slot target: %s", request.SlotID)}
		}

		runID := common.NewRunID()
		assignments[request.SlotID] = runID

		plans := m.estimator.Plan(request.Modes)
		runs = append(runs, models.NewRun(runID, request, plans))
		runIDs = append(runIDs, runID)
	}

	// All-or-nothing: the whole batch is rejected when any slot is busy
	if err := m.registry.ReserveBatch(assignments); err != nil {
		return nil, err
	}

	m.mu.Lock()
	for _, run := range runs {
		m.runs[run.ID] = run
	}
	m.mu.Unlock()

	for _, run := range runs {
		flag := m.cancels.Register(run.ID)
		worker := &slotWorker{
			run:        run,
			cancelFlag: flag,
			registry:   m.registry,
			executor:   m.executor,
			aggregator: m.aggregator,
			events:     m.events,
			storage:    m.storage,
			logger:     m.logger,
		}

		m.wg.Add(1)
		common.SafeGo(m.logger, "slot-worker-"+run.Request.SlotID, func() {
			defer m.wg.Done()
			worker.execute(m.ctx)
		})
	}

	m.logger.Info().
		Int("runs", len(runs)).
		Msg("Batch started")

	return runIDs, nil
}

// Poll returns fresh snapshots for the requested run ids. Unknown ids yield
// typed not_found entries so bulk polling degrades gracefully; terminal runs
// evicted from memory are served from history storage when available.
func (m *Manager) Poll(runIDs []string) []models.RunSnapshot {
	snapshots := make([]models.RunSnapshot, 0, len(runIDs))
	for _, runID := range runIDs {
		snapshots = append(snapshots, m.snapshot(runID))
	}
	return snapshots
}

// snapshot derives the current view of one run
func (m *Manager) snapshot(runID string) models.RunSnapshot {
	m.mu.Lock()
	run, ok := m.runs[runID]
	m.mu.Unlock()

	if ok {
		return m.aggregator.Aggregate(run)
	}

	if m.storage != nil {
		if record, err := m.storage.GetRun(m.ctx, runID); err == nil {
			return RecordSnapshot(record)
		}
	}

	return models.NewNotFoundSnapshot(runID)
}

// List returns snapshots of every registered run, newest first
func (m *Manager) List() []models.RunSnapshot {
	m.mu.Lock()
	runs := make([]*models.Run, 0, len(m.runs))
	for _, run := range m.runs {
		runs = append(runs, run)
	}
	m.mu.Unlock()

	snapshots := make([]models.RunSnapshot, 0, len(runs))
	for _, run := range runs {
		snapshots = append(snapshots, m.aggregator.Aggregate(run))
	}
	sortSnapshotsByStart(snapshots)
	return snapshots
}

// Cancel requests cancellation of a run. It returns immediately once the
// flag is set: the worker observes it at the next mode boundary and the
// caller polls to see the eventual cancelled state. Cancelling an
// already-terminal run is a no-op, not an error.
func (m *Manager) Cancel(runID string) error {
	m.mu.Lock()
	run, ok := m.runs[runID]
	m.mu.Unlock()

	if !ok {
		// A historical (persisted) run is terminal by definition: no-op
		if m.storage != nil {
			if _, err := m.storage.GetRun(m.ctx, runID); err == nil {
				return nil
			}
		}
		return &NotFoundError{RunID: runID}
	}

	if run.State().Status.IsTerminal() {
		return nil
	}

	// Already flagged: the worker will observe it at the next boundary
	if m.cancels.IsCancelled(runID) {
		return nil
	}

	m.cancels.Cancel(runID)
	m.logger.Info().Str("run_id", runID).Msg("Cancellation requested")
	return nil
}

// CancelAll applies Cancel to each id independently, never aborting early
// when one id is unknown
func (m *Manager) CancelAll(runIDs []string) {
	for _, runID := range runIDs {
		if err := m.Cancel(runID); err != nil {
			m.logger.Debug().Str("run_id", runID).Msg("Cancel skipped: run not found")
		}
	}
}

// Evict removes a terminal run from the in-memory registry. Runs are never
// destroyed silently - this is the explicit operator action. The persisted
// history record is kept.
func (m *Manager) Evict(runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	run, ok := m.runs[runID]
	if !ok {
		return &NotFoundError{RunID: runID}
	}
	if !run.State().Status.IsTerminal() {
		return &ValidationError{Reason: fmt.Sprintf("run %s is still %s", runID, run.State().Status)}
	}

	delete(m.runs, runID)
	m.cancels.Remove(runID)
	return nil
}

// AllDone reports whether every run in the given set is terminal. Unknown
// ids count as done (they can only be evicted terminal runs).
func (m *Manager) AllDone(runIDs []string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, runID := range runIDs {
		if run, ok := m.runs[runID]; ok {
			if !run.State().Status.IsTerminal() {
				return false
			}
		}
	}
	return true
}

// EngineStatus summarizes the engine for the status endpoint and the
// maintenance log line
type EngineStatus struct {
	SlotsTotal    int            `json:"slots_total"`
	SlotsReserved int            `json:"slots_reserved"`
	RunsByStatus  map[string]int `json:"runs_by_status"`
	ActiveRuns    int            `json:"active_runs"`
	UptimeSeconds float64        `json:"uptime_seconds"`
}

// Status derives a fresh engine summary
func (m *Manager) Status() EngineStatus {
	total, reserved := m.registry.Counts()

	m.mu.Lock()
	byStatus := make(map[string]int)
	active := 0
	for _, run := range m.runs {
		status := run.State().Status
		byStatus[string(status)]++
		if !status.IsTerminal() {
			active++
		}
	}
	m.mu.Unlock()

	return EngineStatus{
		SlotsTotal:    total,
		SlotsReserved: reserved,
		RunsByStatus:  byStatus,
		ActiveRuns:    active,
		UptimeSeconds: time.Since(m.startedAt).Seconds(),
	}
}

// Shutdown requests cancellation of all active runs and waits for workers to
// finish, bounded by ctx. The manager context is cancelled so executors may
// abort in-flight device calls on their own terms.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	for runID, run := range m.runs {
		if !run.State().Status.IsTerminal() {
			m.cancels.Cancel(runID)
		}
	}
	m.mu.Unlock()

	m.cancelCtx()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown wait: %w", ctx.Err())
	}
}

// sortSnapshotsByStart orders newest-started first, queued runs ahead
func sortSnapshotsByStart(snapshots []models.RunSnapshot) {
	sort.SliceStable(snapshots, func(i, j int) bool {
		a, b := snapshots[i], snapshots[j]
		if a.StartedAt == nil {
			return true
		}
		if b.StartedAt == nil {
			return false
		}
		return a.StartedAt.After(*b.StartedAt)
	})
}
