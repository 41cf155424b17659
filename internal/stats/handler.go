package stats

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// Handler serves the daily statistics endpoint.
type Handler struct {
	counter Counter
	now     func() time.Time
}

func NewHandler(counter Counter) *Handler {
	return &Handler{counter: counter, now: time.Now}
}

// HandleDaily returns the counters for one day, today by default.
// GET /api/v1/statistics/daily?date=2026-03-01
func (h *Handler) HandleDaily(w http.ResponseWriter, r *http.Request) {
	day := h.now()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "date must be YYYY-MM-DD", "success": false})
			return
		}
		day = parsed
	}

	d, err := h.counter.Daily(r.Context(), day)
	if err != nil {
		slog.Error("reading daily statistics", "error", err, "date", DayKey(day))
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "statistics unavailable", "success": false})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"backend": h.counter.Backend(),
		"daily":   d,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
