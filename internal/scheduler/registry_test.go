package scheduler

import (
	"errors"
	"sync"
	"testing"

	"github.com/ternarybob/arbor"
	"github.com/voltlab/galvana/internal/models"
)

func newTestRegistry(ids ...string) *SlotRegistry {
	slots := make([]models.Slot, 0, len(ids))
	for _, id := range ids {
		slots = append(slots, models.Slot{ID: id, Port: "sim://" + id})
	}
	return NewSlotRegistry(slots, arbor.NewLogger())
}

func TestReserveAndRelease(t *testing.T) {
	registry := newTestRegistry("slot01", "slot02")

	if err := registry.Reserve([]string{"slot01"}, "run_a"); err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}

	runID, reserved, err := registry.StatusOf("slot01")
	if err != nil {
		t.Fatalf("StatusOf failed: %v", err)
	}
	if !reserved || runID != "run_a" {
		t.Errorf("Expected slot01 reserved by run_a, got reserved=%v runID=%s", reserved, runID)
	}

	registry.Release([]string{"slot01"})

	_, reserved, _ = registry.StatusOf("slot01")
	if reserved {
		t.Error("Expected slot01 free after release")
	}
}

func TestReserveBusySlot(t *testing.T) {
	registry := newTestRegistry("slot01", "slot02")

	if err := registry.Reserve([]string{"slot01"}, "run_a"); err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}

	err := registry.Reserve([]string{"slot01"}, "run_b")
	var busy *SlotBusyError
	if !errors.As(err, &busy) {
		t.Fatalf("Expected SlotBusyError, got %v", err)
	}
	if len(busy.Slots) != 1 || busy.Slots[0] != "slot01" {
		t.Errorf("Expected busy slots [slot01], got %v", busy.Slots)
	}

	// The original reservation is untouched
	runID, _, _ := registry.StatusOf("slot01")
	if runID != "run_a" {
		t.Errorf("Expected slot01 still held by run_a, got %s", runID)
	}
}

func TestReserveAllOrNothing(t *testing.T) {
	registry := newTestRegistry("slot01", "slot02", "slot03")

	if err := registry.Reserve([]string{"slot02"}, "run_a"); err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}

	// One busy slot in the set rejects the whole request
	err := registry.Reserve([]string{"slot01", "slot02", "slot03"}, "run_b")
	var busy *SlotBusyError
	if !errors.As(err, &busy) {
		t.Fatalf("Expected SlotBusyError, got %v", err)
	}

	// The free slots must not have been taken
	for _, slotID := range []string{"slot01", "slot03"} {
		_, reserved, _ := registry.StatusOf(slotID)
		if reserved {
			t.Errorf("Expected %s free after rejected batch", slotID)
		}
	}
}

func TestReserveBatchReportsAllBusySlots(t *testing.T) {
	registry := newTestRegistry("slot01", "slot02", "slot03")

	if err := registry.ReserveBatch(map[string]string{"slot03": "run_a", "slot01": "run_a"}); err != nil {
		t.Fatalf("ReserveBatch failed: %v", err)
	}

	err := registry.ReserveBatch(map[string]string{
		"slot01": "run_b",
		"slot02": "run_b",
		"slot03": "run_b",
	})
	var busy *SlotBusyError
	if !errors.As(err, &busy) {
		t.Fatalf("Expected SlotBusyError, got %v", err)
	}
	if len(busy.Slots) != 2 || busy.Slots[0] != "slot01" || busy.Slots[1] != "slot03" {
		t.Errorf("Expected busy slots [slot01 slot03], got %v", busy.Slots)
	}
}

func TestReserveUnknownSlot(t *testing.T) {
	registry := newTestRegistry("slot01")

	err := registry.Reserve([]string{"slot99"}, "run_a")
	var unknown *UnknownSlotError
	if !errors.As(err, &unknown) {
		t.Fatalf("Expected UnknownSlotError, got %v", err)
	}
	if unknown.SlotID != "slot99" {
		t.Errorf("Expected slot99 in error, got %s", unknown.SlotID)
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	registry := newTestRegistry("slot01")

	if err := registry.Reserve([]string{"slot01"}, "run_a"); err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}

	registry.Release([]string{"slot01"})
	registry.Release([]string{"slot01"})
	registry.Release([]string{"never-reserved"})

	if err := registry.Reserve([]string{"slot01"}, "run_b"); err != nil {
		t.Errorf("Expected slot01 reservable after double release: %v", err)
	}
}

func TestConcurrentReserveSingleWinner(t *testing.T) {
	registry := newTestRegistry("slot01")

	const contenders = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0

	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := registry.Reserve([]string{"slot01"}, "run"); err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if winners != 1 {
		t.Errorf("Expected exactly one winning reservation, got %d", winners)
	}
}

func TestSlotsStableOrder(t *testing.T) {
	registry := newTestRegistry("slotB", "slotA", "slotC")

	if err := registry.Reserve([]string{"slotA"}, "run_a"); err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}

	statuses := registry.Slots()
	if len(statuses) != 3 {
		t.Fatalf("Expected 3 slots, got %d", len(statuses))
	}

	// Inventory order, not sorted order
	for i, want := range []string{"slotB", "slotA", "slotC"} {
		if statuses[i].Slot.ID != want {
			t.Errorf("Position %d: expected %s, got %s", i, want, statuses[i].Slot.ID)
		}
	}
	if !statuses[1].Reserved || statuses[1].RunID != "run_a" {
		t.Errorf("Expected slotA reserved by run_a, got %+v", statuses[1])
	}

	total, reserved := registry.Counts()
	if total != 3 || reserved != 1 {
		t.Errorf("Expected counts (3,1), got (%d,%d)", total, reserved)
	}
}
