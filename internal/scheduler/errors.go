package scheduler

import (
	"fmt"
	"strings"
)

// SlotBusyError reports which requested slots were already reserved. Start
// rejects the whole batch - partial reservation is never observable.
type SlotBusyError struct {
	Slots []string
}

func (e *SlotBusyError) Error() string {
	return fmt.Sprintf("slots already reserved: %s", strings.Join(e.Slots, ", "))
}

// UnknownSlotError reports a slot id that is not in the static inventory
type UnknownSlotError struct {
	SlotID string
}

func (e *UnknownSlotError) Error() string {
	return fmt.Sprintf("unknown slot: %s", e.SlotID)
}

// ValidationError reports a malformed start request (duplicate slot targets,
// empty mode list, ...). Surfaced synchronously; no state is created.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid request: %s", e.Reason)
}

// NotFoundError reports an unknown run id on cancel or evict. Bulk polls
// report unknown ids per item instead of returning this error.
type NotFoundError struct {
	RunID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("run not found: %s", e.RunID)
}
