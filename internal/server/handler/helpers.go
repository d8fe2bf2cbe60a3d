package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gibsonxiong/vtrader/internal/domain"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// writeJSON marshals v and writes it with the given status. A marshal
// failure degrades to a plain 500 body.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON error body.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// parseListOpts reads limit, offset, and the optional since/until
// RFC 3339 bounds from the query string. Malformed values fall back to
// defaults rather than erroring, so list endpoints stay permissive.
func parseListOpts(r *http.Request) domain.ListOpts {
	q := r.URL.Query()

	opts := domain.ListOpts{Limit: defaultListLimit}
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 {
		opts.Limit = min(n, maxListLimit)
	}
	if n, err := strconv.Atoi(q.Get("offset")); err == nil && n >= 0 {
		opts.Offset = n
	}
	if ts, err := time.Parse(time.RFC3339, q.Get("since")); err == nil {
		opts.Since = &ts
	}
	if ts, err := time.Parse(time.RFC3339, q.Get("until")); err == nil {
		opts.Until = &ts
	}
	return opts
}

// pathParam reads a named path segment from the Go 1.22 router.
func pathParam(r *http.Request, name string) string {
	return r.PathValue(name)
}

// logHandler scopes a logger to one handler for request-level logs.
func logHandler(logger *slog.Logger, handler string) *slog.Logger {
	return logger.With(slog.String("handler", handler))
}
