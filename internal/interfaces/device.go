package interfaces

import (
	"context"
	"fmt"

	"github.com/voltlab/galvana/internal/models"
)

// DeviceExecutor executes one measurement mode against the hardware channel
// behind a slot. Execution may block for seconds to minutes; implementations
// should honor context cancellation for service shutdown, but the engine only
// requests cooperative cancellation between modes.
type DeviceExecutor interface {
	Execute(ctx context.Context, slotID string, mode models.ModeSpec) error
}

// DeviceError is a failure raised by the device execution collaborator during
// a mode. The worker recovers it locally and converts it into a terminal
// failed state - it never crosses the worker boundary as a panic or crash.
type DeviceError struct {
	SlotID string
	Mode   string
	Err    error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("device error on %s during %s: %v", e.SlotID, e.Mode, e.Err)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}
