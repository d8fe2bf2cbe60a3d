package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gibsonxiong/vtrader/internal/domain"
)

// BacktestRunner defines the methods that the backtest handler requires.
type BacktestRunner interface {
	CreateRun(ctx context.Context, strategyName string, params map[string]any, settings domain.BacktestSettings) (domain.BacktestRun, error)
	Run(ctx context.Context, id string) (domain.BacktestRun, error)
	GetRun(ctx context.Context, id string) (domain.BacktestRun, error)
	ListRuns(ctx context.Context, opts domain.ListOpts) ([]domain.BacktestRun, error)
	DeleteRun(ctx context.Context, id string) error
}

// BacktestHandler serves backtest run HTTP endpoints.
type BacktestHandler struct {
	backtests BacktestRunner
	logger    *slog.Logger
}

// NewBacktestHandler creates a BacktestHandler with the given service and logger.
func NewBacktestHandler(backtests BacktestRunner, logger *slog.Logger) *BacktestHandler {
	return &BacktestHandler{
		backtests: backtests,
		logger:    logHandler(logger, "backtests"),
	}
}

// createRunRequest is the JSON body for creating a run.
type createRunRequest struct {
	Strategy string                  `json:"strategy"`
	Params   map[string]any          `json:"params"`
	Settings domain.BacktestSettings `json:"settings"`
}

// Create registers a new pending run.
// POST /api/backtests
func (h *BacktestHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Strategy == "" {
		writeError(w, http.StatusBadRequest, "strategy is required")
		return
	}

	run, err := h.backtests.CreateRun(r.Context(), req.Strategy, req.Params, req.Settings)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownStrategy) {
			writeError(w, http.StatusBadRequest, "unknown strategy: "+req.Strategy)
			return
		}
		h.logger.ErrorContext(r.Context(), "create run failed",
			slog.String("strategy", req.Strategy),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to create run")
		return
	}

	writeJSON(w, http.StatusCreated, run)
}

// Run executes a pending run synchronously and returns the finished run.
// POST /api/backtests/{id}/run
func (h *BacktestHandler) Run(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	run, err := h.backtests.Run(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "run not found")
		case errors.Is(err, domain.ErrAlreadyExists):
			writeError(w, http.StatusConflict, "run is already executing")
		default:
			h.logger.ErrorContext(r.Context(), "run failed",
				slog.String("run_id", id),
				slog.String("error", err.Error()),
			)
			// The run record carries the failure detail.
			run, getErr := h.backtests.GetRun(r.Context(), id)
			if getErr == nil {
				writeJSON(w, http.StatusUnprocessableEntity, run)
				return
			}
			writeError(w, http.StatusInternalServerError, "run failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, run)
}

// List returns persisted runs newest-first.
// GET /api/backtests
func (h *BacktestHandler) List(w http.ResponseWriter, r *http.Request) {
	runs, err := h.backtests.ListRuns(r.Context(), parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list runs failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count": len(runs),
		"runs":  runs,
	})
}

// Get returns one run by ID.
// GET /api/backtests/{id}
func (h *BacktestHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	run, err := h.backtests.GetRun(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load run")
		return
	}

	writeJSON(w, http.StatusOK, run)
}

// Result returns only the statistics of a finished run.
// GET /api/backtests/{id}/result
func (h *BacktestHandler) Result(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	run, err := h.backtests.GetRun(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load run")
		return
	}

	if run.Result == nil {
		writeError(w, http.StatusConflict, "run has not finished")
		return
	}

	writeJSON(w, http.StatusOK, run.Result)
}

// Delete removes a run.
// DELETE /api/backtests/{id}
func (h *BacktestHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	if err := h.backtests.DeleteRun(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete run")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
