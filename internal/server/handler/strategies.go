package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gibsonxiong/vtrader/internal/domain"
	"github.com/gibsonxiong/vtrader/internal/strategy"
)

// StrategiesHandler serves the strategy catalogue.
type StrategiesHandler struct {
	registry *strategy.Registry
	logger   *slog.Logger
}

// NewStrategiesHandler creates a StrategiesHandler over the given registry.
func NewStrategiesHandler(registry *strategy.Registry, logger *slog.Logger) *StrategiesHandler {
	return &StrategiesHandler{
		registry: registry,
		logger:   logHandler(logger, "strategies"),
	}
}

// List returns all registered strategies with their parameter schemas.
// GET /api/strategies
func (h *StrategiesHandler) List(w http.ResponseWriter, r *http.Request) {
	defs := h.registry.List()
	writeJSON(w, http.StatusOK, map[string]any{
		"count":      len(defs),
		"strategies": defs,
	})
}

// Get returns one strategy definition by name.
// GET /api/strategies/{name}
func (h *StrategiesHandler) Get(w http.ResponseWriter, r *http.Request) {
	name := pathParam(r, "name")

	def, err := h.registry.Get(name)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownStrategy) {
			writeError(w, http.StatusNotFound, "unknown strategy: "+name)
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load strategy")
		return
	}

	writeJSON(w, http.StatusOK, def)
}
