package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/voltlab/galvana/internal/common"
	"github.com/voltlab/galvana/internal/scheduler"
)

// StatusHandler reports engine-wide status
type StatusHandler struct {
	manager *scheduler.Manager
	logger  arbor.ILogger
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(manager *scheduler.Manager, logger arbor.ILogger) *StatusHandler {
	return &StatusHandler{
		manager: manager,
		logger:  logger,
	}
}

// StatusResponse is the payload for GET /api/status
type StatusResponse struct {
	Status        string         `json:"status"`
	Version       string         `json:"version"`
	SlotsTotal    int            `json:"slots_total"`
	SlotsReserved int            `json:"slots_reserved"`
	RunsByStatus  map[string]int `json:"runs_by_status"`
	ActiveRuns    int            `json:"active_runs"`
	UptimeSeconds float64        `json:"uptime_seconds"`
}

// EngineStatusHandler returns slot counts, active runs and uptime
// GET /api/status
func (h *StatusHandler) EngineStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	status := h.manager.Status()
	resp := StatusResponse{
		Status:        "running",
		Version:       common.GetVersion(),
		SlotsTotal:    status.SlotsTotal,
		SlotsReserved: status.SlotsReserved,
		RunsByStatus:  status.RunsByStatus,
		ActiveRuns:    status.ActiveRuns,
		UptimeSeconds: status.UptimeSeconds,
	}
	WriteJSON(w, http.StatusOK, resp)
}
