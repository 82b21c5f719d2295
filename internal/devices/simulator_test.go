package devices

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/voltlab/galvana/internal/common"
	"github.com/voltlab/galvana/internal/interfaces"
	"github.com/voltlab/galvana/internal/models"
)

func newTestSimulator(timeScale float64) *Simulator {
	return NewSimulator(&common.SimConfig{Enabled: true, TimeScale: timeScale}, arbor.NewLogger())
}

func TestSimulatorCompletesScaledMode(t *testing.T) {
	sim := newTestSimulator(0.001)

	mode := models.ModeSpec{Name: "OCP", Params: map[string]interface{}{"duration_s": 10.0}}
	start := time.Now()
	if err := sim.Execute(context.Background(), "slot01", mode); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	// 10s scaled by 0.001 is 10ms
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Expected scaled execution, took %v", elapsed)
	}
}

func TestSimulatorInjectedError(t *testing.T) {
	sim := newTestSimulator(1.0)

	mode := models.ModeSpec{Name: "CV", Params: map[string]interface{}{"simulate_error": true}}
	err := sim.Execute(context.Background(), "slot01", mode)

	var deviceErr *interfaces.DeviceError
	if !errors.As(err, &deviceErr) {
		t.Fatalf("Expected DeviceError, got %v", err)
	}
	if deviceErr.SlotID != "slot01" || deviceErr.Mode != "CV" {
		t.Errorf("Expected error identity slot01/CV, got %s/%s", deviceErr.SlotID, deviceErr.Mode)
	}
}

func TestSimulatorHonorsContextCancellation(t *testing.T) {
	sim := newTestSimulator(1.0)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	mode := models.ModeSpec{Name: "OCP", Params: map[string]interface{}{"duration_s": 60.0}}
	start := time.Now()
	err := sim.Execute(ctx, "slot01", mode)

	var deviceErr *interfaces.DeviceError
	if !errors.As(err, &deviceErr) {
		t.Fatalf("Expected DeviceError on cancellation, got %v", err)
	}
	if !errors.Is(deviceErr.Err, context.Canceled) {
		t.Errorf("Expected wrapped context.Canceled, got %v", deviceErr.Err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Cancellation must abort the sleep, took %v", elapsed)
	}
}
