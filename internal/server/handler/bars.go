package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gibsonxiong/vtrader/internal/domain"
)

// BarService defines the methods that the bar handler requires.
type BarService interface {
	GetBars(ctx context.Context, q domain.BarQuery) ([]domain.Bar, error)
	Download(ctx context.Context, symbol string, interval domain.Interval, start, end int64) (int64, error)
	Count(ctx context.Context, symbol string, interval domain.Interval) (int64, error)
}

// BarHandler serves bar history HTTP endpoints.
type BarHandler struct {
	market BarService
	logger *slog.Logger
}

// NewBarHandler creates a BarHandler with the given service and logger.
func NewBarHandler(market BarService, logger *slog.Logger) *BarHandler {
	return &BarHandler{
		market: market,
		logger: logHandler(logger, "bars"),
	}
}

// GetBars returns bars for a symbol, interval and time range.
// GET /api/bars?symbol=BTCUSDT&interval=1h&start=<ms>&end=<ms>
func (h *BarHandler) GetBars(w http.ResponseWriter, r *http.Request) {
	q, ok := parseBarQuery(w, r)
	if !ok {
		return
	}

	bars, err := h.market.GetBars(r.Context(), q)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "get bars failed",
			slog.String("symbol", q.Symbol),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load bars")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"symbol":   q.Symbol,
		"interval": q.Interval,
		"count":    len(bars),
		"bars":     bars,
	})
}

// Download fetches missing history from the exchange into the store.
// POST /api/bars/download?symbol=BTCUSDT&interval=1h&start=<ms>&end=<ms>
func (h *BarHandler) Download(w http.ResponseWriter, r *http.Request) {
	q, ok := parseBarQuery(w, r)
	if !ok {
		return
	}

	count, err := h.market.Download(r.Context(), q.Symbol, q.Interval, q.Start, q.End)
	if err != nil {
		if errors.Is(err, domain.ErrRateLimited) {
			writeError(w, http.StatusTooManyRequests, "exchange rate limit reached")
			return
		}
		h.logger.ErrorContext(r.Context(), "download failed",
			slog.String("symbol", q.Symbol),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, "download failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"symbol":     q.Symbol,
		"interval":   q.Interval,
		"downloaded": count,
	})
}

// Count reports how many bars are stored for a series.
// GET /api/bars/count?symbol=BTCUSDT&interval=1h
func (h *BarHandler) Count(w http.ResponseWriter, r *http.Request) {
	symbol, interval, ok := parseSeries(w, r)
	if !ok {
		return
	}

	count, err := h.market.Count(r.Context(), symbol, interval)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to count bars")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"symbol":   symbol,
		"interval": interval,
		"count":    count,
	})
}

func parseSeries(w http.ResponseWriter, r *http.Request) (string, domain.Interval, bool) {
	q := r.URL.Query()

	symbol := q.Get("symbol")
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return "", "", false
	}

	interval := domain.Interval(q.Get("interval"))
	if interval == "" {
		writeError(w, http.StatusBadRequest, "interval is required")
		return "", "", false
	}
	if !interval.Valid() {
		writeError(w, http.StatusBadRequest, "unknown interval: "+string(interval))
		return "", "", false
	}

	return symbol, interval, true
}

func parseBarQuery(w http.ResponseWriter, r *http.Request) (domain.BarQuery, bool) {
	symbol, interval, ok := parseSeries(w, r)
	if !ok {
		return domain.BarQuery{}, false
	}

	q := r.URL.Query()

	start, err := strconv.ParseInt(q.Get("start"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "start must be epoch milliseconds")
		return domain.BarQuery{}, false
	}
	end, err := strconv.ParseInt(q.Get("end"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "end must be epoch milliseconds")
		return domain.BarQuery{}, false
	}
	if end < start {
		writeError(w, http.StatusBadRequest, "end must not precede start")
		return domain.BarQuery{}, false
	}

	return domain.BarQuery{
		Symbol:   symbol,
		Interval: interval,
		Start:    start,
		End:      end,
	}, true
}
