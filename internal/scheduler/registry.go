// -----------------------------------------------------------------------
// Slot Registry - Static slot inventory and reservation table
// -----------------------------------------------------------------------

package scheduler

import (
	"sort"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/voltlab/galvana/internal/models"
)

// SlotRegistry tracks the static slot inventory and which run currently
// occupies each slot. The reservation table is the only state it owns and is
// guarded by a single mutex scoped around the read-modify-write - never held
// across device I/O.
type SlotRegistry struct {
	mu           sync.Mutex
	slots        map[string]models.Slot
	order        []string          // Inventory order for stable listings
	reservations map[string]string // slot id -> occupying run id
	logger       arbor.ILogger
}

// NewSlotRegistry creates a registry from the static hardware inventory.
// The inventory is immutable for the process lifetime.
func NewSlotRegistry(slots []models.Slot, logger arbor.ILogger) *SlotRegistry {
	r := &SlotRegistry{
		slots:        make(map[string]models.Slot, len(slots)),
		order:        make([]string, 0, len(slots)),
		reservations: make(map[string]string),
		logger:       logger,
	}
	for _, slot := range slots {
		if _, exists := r.slots[slot.ID]; exists {
			continue
		}
		r.slots[slot.ID] = slot
		r.order = append(r.order, slot.ID)
	}
	return r
}

// Reserve atomically reserves every requested slot for runID. Either all
// requested slots become reserved or none do; a failure names every busy
// slot so the caller gets a single yes/no answer.
func (r *SlotRegistry) Reserve(slotIDs []string, runID string) error {
	assignments := make(map[string]string, len(slotIDs))
	for _, slotID := range slotIDs {
		assignments[slotID] = runID
	}
	return r.ReserveBatch(assignments)
}

// ReserveBatch atomically reserves each slot for its assigned run in one
// critical section. Used by the manager to claim all slots of a submitted
// batch at once so concurrent batches cannot interleave partial holds.
func (r *SlotRegistry) ReserveBatch(assignments map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var busy []string
	for slotID := range assignments {
		if _, known := r.slots[slotID]; !known {
			return &UnknownSlotError{SlotID: slotID}
		}
		if _, taken := r.reservations[slotID]; taken {
			busy = append(busy, slotID)
		}
	}
	if len(busy) > 0 {
		sort.Strings(busy)
		return &SlotBusyError{Slots: busy}
	}

	for slotID, runID := range assignments {
		r.reservations[slotID] = runID
	}

	if r.logger != nil {
		r.logger.Debug().Int("slots", len(assignments)).Msg("Slots reserved")
	}
	return nil
}

// Release marks slots free. Idempotent: releasing an already-free slot is a
// no-op.
func (r *SlotRegistry) Release(slotIDs []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, slotID := range slotIDs {
		delete(r.reservations, slotID)
	}
}

// StatusOf reports the reservation state of one slot
func (r *SlotRegistry) StatusOf(slotID string) (runID string, reserved bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, known := r.slots[slotID]; !known {
		return "", false, &UnknownSlotError{SlotID: slotID}
	}
	runID, reserved = r.reservations[slotID]
	return runID, reserved, nil
}

// Slots returns the inventory with current reservation state in stable order
func (r *SlotRegistry) Slots() []models.SlotStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]models.SlotStatus, 0, len(r.order))
	for _, slotID := range r.order {
		runID, reserved := r.reservations[slotID]
		result = append(result, models.SlotStatus{
			Slot:     r.slots[slotID],
			Reserved: reserved,
			RunID:    runID,
		})
	}
	return result
}

// Counts returns total and reserved slot counts
func (r *SlotRegistry) Counts() (total, reserved int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.slots), len(r.reservations)
}
