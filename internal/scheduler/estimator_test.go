package scheduler

import (
	"testing"
	"time"

	"github.com/voltlab/galvana/internal/models"
)

func TestPlannedDuration(t *testing.T) {
	estimator := NewProgressEstimator()

	tests := []struct {
		name     string
		mode     models.ModeSpec
		expected time.Duration
		known    bool
	}{
		{
			name:     "Explicit duration",
			mode:     models.ModeSpec{Name: "OCP", Params: map[string]interface{}{"duration_s": 30.0}},
			expected: 30 * time.Second,
			known:    true,
		},
		{
			name: "Explicit duration wins over sweep parameters",
			mode: models.ModeSpec{Name: "CV", Params: map[string]interface{}{
				"duration_s":        5.0,
				"start_potential_v": 0.0,
				"end_potential_v":   1.0,
				"scan_rate_v_s":     0.1,
			}},
			expected: 5 * time.Second,
			known:    true,
		},
		{
			name: "CV single cycle sweeps forward and back",
			mode: models.ModeSpec{Name: "CV", Params: map[string]interface{}{
				"start_potential_v": -0.2,
				"end_potential_v":   0.8,
				"scan_rate_v_s":     0.05,
			}},
			expected: 40 * time.Second,
			known:    true,
		},
		{
			name: "CV with cycles multiplier",
			mode: models.ModeSpec{Name: "CV", Params: map[string]interface{}{
				"start_potential_v": 0.0,
				"end_potential_v":   1.0,
				"scan_rate_v_s":     0.1,
				"cycles":            3,
			}},
			expected: 60 * time.Second,
			known:    true,
		},
		{
			name: "LSV single sweep",
			mode: models.ModeSpec{Name: "LSV", Params: map[string]interface{}{
				"start_potential_v": 0.0,
				"end_potential_v":   0.5,
				"scan_rate_v_s":     0.05,
			}},
			expected: 10 * time.Second,
			known:    true,
		},
		{
			name: "Sweep with missing scan rate is unestimable",
			mode: models.ModeSpec{Name: "CV", Params: map[string]interface{}{
				"start_potential_v": 0.0,
				"end_potential_v":   1.0,
			}},
			known: false,
		},
		{
			name:  "Unknown mode without duration",
			mode:  models.ModeSpec{Name: "EIS", Params: map[string]interface{}{"frequency_hz": 1000.0}},
			known: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			duration, known := estimator.PlannedDuration(tt.mode)
			if known != tt.known {
				t.Fatalf("Expected known=%v, got %v", tt.known, known)
			}
			if known && duration != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, duration)
			}
		})
	}
}

// newPlannedRun builds a run whose every mode has an explicit duration
func newPlannedRun(t *testing.T, durations ...float64) *models.Run {
	t.Helper()
	estimator := NewProgressEstimator()

	modes := make([]models.ModeSpec, len(durations))
	for i, d := range durations {
		modes[i] = models.ModeSpec{Name: "OCP", Params: map[string]interface{}{"duration_s": d}}
	}
	request := models.RunRequest{SlotID: "slot01", Modes: modes}
	return models.NewRun("run_test", request, estimator.Plan(modes))
}

func TestProgressQueued(t *testing.T) {
	estimator := NewProgressEstimator()
	run := newPlannedRun(t, 10, 20)

	pct, remaining := estimator.Progress(run.State(), run.Plans, time.Now())
	if pct != 0 {
		t.Errorf("Expected 0%% for queued run, got %v", pct)
	}
	if remaining == nil || *remaining != 30 {
		t.Errorf("Expected 30s remaining, got %v", remaining)
	}
}

func TestProgressRunningInterpolates(t *testing.T) {
	estimator := NewProgressEstimator()
	run := newPlannedRun(t, 10, 10)

	now := time.Now()
	started := now.Add(-5 * time.Second)
	modeStart := now.Add(-2 * time.Second)

	state := run.State().Clone()
	state.Status = models.RunStatusRunning
	state.StartedAt = &started
	state.CurrentModeIndex = 1
	state.CurrentMode = "OCP"
	state.Modes[0].StartedAt = &started
	ended := modeStart
	state.Modes[0].EndedAt = &ended
	state.Modes[1].StartedAt = &modeStart
	run.Publish(state)

	// 10s done + 2s into a 10s mode = 12/20 = 60%
	pct, remaining := estimator.Progress(run.State(), run.Plans, now)
	if pct < 59.9 || pct > 60.1 {
		t.Errorf("Expected ~60%%, got %v", pct)
	}
	if remaining == nil {
		t.Fatal("Expected remaining estimate")
	}
	if *remaining < 7.9 || *remaining > 8.1 {
		t.Errorf("Expected ~8s remaining, got %v", *remaining)
	}
}

func TestProgressRunningNeverReaches100(t *testing.T) {
	estimator := NewProgressEstimator()
	run := newPlannedRun(t, 1)

	now := time.Now()
	longAgo := now.Add(-time.Hour)
	state := run.State().Clone()
	state.Status = models.RunStatusRunning
	state.StartedAt = &longAgo
	state.CurrentModeIndex = 0
	state.Modes[0].StartedAt = &longAgo
	run.Publish(state)

	pct, remaining := estimator.Progress(run.State(), run.Plans, now)
	if pct >= 100 {
		t.Errorf("Running progress must stay below 100, got %v", pct)
	}
	if remaining == nil || *remaining != 0 {
		t.Errorf("Expected 0s remaining for overdue mode, got %v", remaining)
	}
}

func TestProgressMonotonicWhileRunning(t *testing.T) {
	estimator := NewProgressEstimator()
	run := newPlannedRun(t, 10, 30)

	start := time.Now()
	state := run.State().Clone()
	state.Status = models.RunStatusRunning
	state.StartedAt = &start
	state.CurrentModeIndex = 0
	state.CurrentMode = "OCP"
	state.Modes[0].StartedAt = &start
	run.Publish(state)

	var pcts []float64
	sample := func(at time.Time) {
		pct, _ := estimator.Progress(run.State(), run.Plans, at)
		pcts = append(pcts, pct)
	}

	// Successive samples within the first mode, including past its planned
	// end where interpolation caps at the plan duration
	for _, offset := range []time.Duration{0, 2 * time.Second, 6 * time.Second, 9 * time.Second, 12 * time.Second} {
		sample(start.Add(offset))
	}

	// Mode boundary: done-duration accounting switches from interpolation to
	// the summed plan of the finished mode
	boundary := start.Add(10 * time.Second)
	next := run.State().Clone()
	next.CurrentModeIndex = 1
	next.CurrentMode = "OCP"
	next.Modes[0].EndedAt = &boundary
	next.Modes[1].StartedAt = &boundary
	run.Publish(next)

	for _, offset := range []time.Duration{10 * time.Second, 11 * time.Second, 25 * time.Second, 39 * time.Second, time.Hour} {
		sample(start.Add(offset))
	}

	for i := 1; i < len(pcts); i++ {
		if pcts[i] < pcts[i-1] {
			t.Fatalf("Progress regressed from %v to %v at sample %d: %v", pcts[i-1], pcts[i], i, pcts)
		}
	}
	if pcts[len(pcts)-1] >= 100 {
		t.Errorf("Running progress must stay below 100, got %v", pcts[len(pcts)-1])
	}
}

func TestProgressDone(t *testing.T) {
	estimator := NewProgressEstimator()
	run := newPlannedRun(t, 10)

	now := time.Now()
	state := run.State().Clone()
	state.Status = models.RunStatusDone
	state.EndedAt = &now
	run.Publish(state)

	pct, remaining := estimator.Progress(run.State(), run.Plans, time.Now())
	if pct != 100 {
		t.Errorf("Expected exactly 100%% for done run, got %v", pct)
	}
	if remaining == nil || *remaining != 0 {
		t.Errorf("Expected 0s remaining for done run, got %v", remaining)
	}
}

func TestProgressFrozenAfterFailure(t *testing.T) {
	estimator := NewProgressEstimator()
	run := newPlannedRun(t, 10, 10)

	now := time.Now()
	started := now.Add(-5 * time.Second)
	ended := now

	state := run.State().Clone()
	state.Status = models.RunStatusFailed
	state.LastError = "device fault"
	state.StartedAt = &started
	state.EndedAt = &ended
	state.CurrentModeIndex = 0
	state.Modes[0].StartedAt = &started
	run.Publish(state)

	pct1, remaining := estimator.Progress(run.State(), run.Plans, now)
	if remaining != nil {
		t.Errorf("Expected nil remaining for failed run, got %v", *remaining)
	}

	// The value must not drift as wall-clock time advances
	pct2, _ := estimator.Progress(run.State(), run.Plans, now.Add(time.Hour))
	if pct1 != pct2 {
		t.Errorf("Failed-run progress drifted: %v then %v", pct1, pct2)
	}
}

func TestProgressUnknownDurationFallsBackToCount(t *testing.T) {
	estimator := NewProgressEstimator()

	modes := []models.ModeSpec{
		{Name: "OCP", Params: map[string]interface{}{"duration_s": 10.0}},
		{Name: "EIS"}, // unestimable
		{Name: "OCP", Params: map[string]interface{}{"duration_s": 10.0}},
	}
	request := models.RunRequest{SlotID: "slot01", Modes: modes}
	run := models.NewRun("run_test", request, estimator.Plan(modes))

	now := time.Now()
	started := now.Add(-time.Minute)
	state := run.State().Clone()
	state.Status = models.RunStatusRunning
	state.StartedAt = &started
	state.CurrentModeIndex = 1
	state.Modes[0].StartedAt = &started
	ended := now.Add(-30 * time.Second)
	state.Modes[0].EndedAt = &ended
	state.Modes[1].StartedAt = &ended
	run.Publish(state)

	// One of three modes completed
	pct, remaining := estimator.Progress(run.State(), run.Plans, now)
	expected := 100.0 / 3.0
	if pct < expected-0.1 || pct > expected+0.1 {
		t.Errorf("Expected count-based %v%%, got %v", expected, pct)
	}
	if remaining != nil {
		t.Errorf("Expected nil remaining with unestimable mode in sequence, got %v", *remaining)
	}
}

func TestProgressQueuedUnknownTotal(t *testing.T) {
	estimator := NewProgressEstimator()

	modes := []models.ModeSpec{{Name: "EIS"}}
	request := models.RunRequest{SlotID: "slot01", Modes: modes}
	run := models.NewRun("run_test", request, estimator.Plan(modes))

	pct, remaining := estimator.Progress(run.State(), run.Plans, time.Now())
	if pct != 0 {
		t.Errorf("Expected 0%%, got %v", pct)
	}
	if remaining != nil {
		t.Errorf("Expected nil remaining for unestimable queued run, got %v", *remaining)
	}
}
