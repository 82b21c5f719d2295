// -----------------------------------------------------------------------
// Run Handler - Start / poll / cancel / evict API for experiment runs
// -----------------------------------------------------------------------

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/voltlab/galvana/internal/interfaces"
	"github.com/voltlab/galvana/internal/models"
	"github.com/voltlab/galvana/internal/scheduler"
)

// RunHandler handles run-related API requests
type RunHandler struct {
	manager    *scheduler.Manager
	runStorage interfaces.RunStorage
	validate   *validator.Validate
	logger     arbor.ILogger
}

// NewRunHandler creates a new run handler
func NewRunHandler(manager *scheduler.Manager, runStorage interfaces.RunStorage, logger arbor.ILogger) *RunHandler {
	return &RunHandler{
		manager:    manager,
		runStorage: runStorage,
		validate:   validator.New(),
		logger:     logger,
	}
}

// SubmitRequest is the POST /api/runs payload: a batch of run requests
// submitted together
type SubmitRequest struct {
	Runs []models.RunRequest `json:"runs" validate:"required,min=1,dive"`
}

// SubmitHandler starts a batch of runs
// POST /api/runs
func (h *RunHandler) SubmitHandler(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	if err := h.validate.Struct(&req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	runIDs, err := h.manager.Start(req.Runs)
	if err != nil {
		h.writeStartError(w, err)
		return
	}

	h.logger.Info().Int("runs", len(runIDs)).Msg("Batch accepted")
	WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"run_ids": runIDs,
	})
}

// writeStartError maps engine start failures to structured rejections
func (h *RunHandler) writeStartError(w http.ResponseWriter, err error) {
	var busy *scheduler.SlotBusyError
	if errors.As(err, &busy) {
		WriteJSON(w, http.StatusConflict, map[string]interface{}{
			"status":     "error",
			"error":      busy.Error(),
			"busy_slots": busy.Slots,
		})
		return
	}

	var unknown *scheduler.UnknownSlotError
	if errors.As(err, &unknown) {
		WriteError(w, http.StatusBadRequest, unknown.Error())
		return
	}

	var invalid *scheduler.ValidationError
	if errors.As(err, &invalid) {
		WriteError(w, http.StatusBadRequest, invalid.Error())
		return
	}

	h.logger.Error().Err(err).Msg("Failed to start batch")
	WriteError(w, http.StatusInternalServerError, "Failed to start batch")
}

// ListRunsHandler returns registered runs, or persisted history with
// ?source=history
// GET /api/runs?source=history&status=done&slot=slot01&limit=50&offset=0
func (h *RunHandler) ListRunsHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("source") == "history" {
		h.listHistory(w, r)
		return
	}

	snapshots := h.manager.List()
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  snapshots,
		"count": len(snapshots),
	})
}

func (h *RunHandler) listHistory(w http.ResponseWriter, r *http.Request) {
	if h.runStorage == nil {
		WriteError(w, http.StatusServiceUnavailable, "Run history storage not configured")
		return
	}

	limit := 50
	offset := 0
	if parsed, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && parsed > 0 {
		limit = parsed
	}
	if parsed, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && parsed > 0 {
		offset = parsed
	}

	opts := &interfaces.RunListOptions{
		Status:   r.URL.Query().Get("status"),
		SlotID:   r.URL.Query().Get("slot"),
		Limit:    limit,
		Offset:   offset,
		OrderBy:  "CreatedAt",
		OrderDir: "DESC",
	}

	records, err := h.runStorage.ListRuns(r.Context(), opts)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list run history")
		WriteError(w, http.StatusInternalServerError, "Failed to list run history")
		return
	}

	totalCount, err := h.runStorage.CountRuns(r.Context())
	if err != nil {
		h.logger.Warn().Err(err).Msg("Failed to count run history")
		totalCount = len(records)
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"runs":        records,
		"total_count": totalCount,
		"limit":       limit,
		"offset":      offset,
	})
}

// GetRunHandler returns a single run snapshot
// GET /api/runs/{id}
func (h *RunHandler) GetRunHandler(w http.ResponseWriter, r *http.Request, runID string) {
	snapshots := h.manager.Poll([]string{runID})
	snapshot := snapshots[0]

	if snapshot.NotFound {
		WriteJSON(w, http.StatusNotFound, snapshot)
		return
	}
	WriteJSON(w, http.StatusOK, snapshot)
}

// PollRequest is the bulk poll payload
type PollRequest struct {
	RunIDs []string `json:"run_ids" validate:"required,min=1"`
}

// PollRunsHandler returns fresh snapshots for a set of run ids. Unknown ids
// yield per-item not_found entries instead of failing the request.
// POST /api/runs/poll
func (h *RunHandler) PollRunsHandler(w http.ResponseWriter, r *http.Request) {
	var req PollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	snapshots := h.manager.Poll(req.RunIDs)
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"runs":     snapshots,
		"all_done": h.manager.AllDone(req.RunIDs),
	})
}

// CancelRunHandler requests cancellation of one run. The response is an
// acknowledgement only; the caller polls to observe the cancelled state.
// POST /api/runs/{id}/cancel
func (h *RunHandler) CancelRunHandler(w http.ResponseWriter, r *http.Request, runID string) {
	if err := h.manager.Cancel(runID); err != nil {
		var notFound *scheduler.NotFoundError
		if errors.As(err, &notFound) {
			WriteError(w, http.StatusNotFound, notFound.Error())
			return
		}
		h.logger.Error().Err(err).Str("run_id", runID).Msg("Failed to cancel run")
		WriteError(w, http.StatusInternalServerError, "Failed to cancel run")
		return
	}

	WriteAccepted(w, "Cancellation requested")
}

// CancelBatchRequest is the batch cancel payload
type CancelBatchRequest struct {
	RunIDs []string `json:"run_ids" validate:"required,min=1"`
}

// CancelBatchHandler cancels each run independently, never aborting early
// when one id is unknown
// POST /api/runs/cancel
func (h *RunHandler) CancelBatchHandler(w http.ResponseWriter, r *http.Request) {
	var req CancelBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.manager.CancelAll(req.RunIDs)
	WriteAccepted(w, "Cancellation requested")
}

// DeleteRunHandler evicts a terminal run from the registry (explicit
// operator action; the history record is kept)
// DELETE /api/runs/{id}
func (h *RunHandler) DeleteRunHandler(w http.ResponseWriter, r *http.Request, runID string) {
	if err := h.manager.Evict(runID); err != nil {
		var notFound *scheduler.NotFoundError
		if errors.As(err, &notFound) {
			WriteError(w, http.StatusNotFound, notFound.Error())
			return
		}
		var invalid *scheduler.ValidationError
		if errors.As(err, &invalid) {
			WriteError(w, http.StatusConflict, invalid.Error())
			return
		}
		h.logger.Error().Err(err).Str("run_id", runID).Msg("Failed to evict run")
		WriteError(w, http.StatusInternalServerError, "Failed to evict run")
		return
	}

	WriteSuccess(w, "Run evicted")
}
