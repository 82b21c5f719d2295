package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/voltlab/galvana/internal/scheduler"
)

// SlotHandler exposes the slot inventory and reservation state
type SlotHandler struct {
	registry *scheduler.SlotRegistry
	logger   arbor.ILogger
}

// NewSlotHandler creates a new slot handler
func NewSlotHandler(registry *scheduler.SlotRegistry, logger arbor.ILogger) *SlotHandler {
	return &SlotHandler{
		registry: registry,
		logger:   logger,
	}
}

// ListSlotsHandler returns the inventory with current reservation state
// GET /api/slots
func (h *SlotHandler) ListSlotsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	slots := h.registry.Slots()
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"slots": slots,
		"count": len(slots),
	})
}
