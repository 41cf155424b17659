package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/valinor-ai/promptguard/internal/sentinel"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 200
)

// Reader is the query side of the validation log.
type Reader interface {
	List(ctx context.Context, p ListParams) (Page, error)
	Statistics(ctx context.Context, from, to *time.Time) (Summary, error)
}

// Handler serves validation log query endpoints.
type Handler struct {
	reader Reader
}

// NewHandler creates a log query handler. A nil reader serves empty results.
func NewHandler(reader Reader) *Handler {
	return &Handler{reader: reader}
}

// HandleListLogs returns a page of validation log entries.
// GET /api/v1/logs?page=1&limit=50&level=BLOCKED&from=2026-01-01&to=2026-01-31&q=***
func (h *Handler) HandleListLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p := ListParams{
		Page:  parsePositiveInt(q.Get("page"), 1),
		Limit: parsePositiveInt(q.Get("limit"), defaultPageLimit),
		Query: q.Get("q"),
	}
	if p.Limit > maxPageLimit {
		p.Limit = maxPageLimit
	}

	if raw := q.Get("level"); raw != "" {
		level, err := sentinel.ParseLevel(raw)
		if err != nil {
			writeAuditError(w, http.StatusBadRequest, "invalid level")
			return
		}
		p.Level = &level
	}

	var ok bool
	if p.From, p.To, ok = parseRange(w, r); !ok {
		return
	}

	if h.reader == nil {
		writeAuditJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"logs":    []Entry{},
			"total":   0,
			"page":    p.Page,
			"limit":   p.Limit,
		})
		return
	}

	page, err := h.reader.List(r.Context(), p)
	if err != nil {
		slog.Error("listing validation logs", "error", err)
		writeAuditError(w, http.StatusInternalServerError, "query failed")
		return
	}

	writeAuditJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"logs":        page.Logs,
		"total":       page.Total,
		"page":        page.Page,
		"limit":       page.Limit,
		"total_pages": page.TotalPages,
	})
}

// HandleStatistics returns level totals and the most frequent violation types.
// GET /api/v1/statistics?from=2026-01-01&to=2026-01-31
func (h *Handler) HandleStatistics(w http.ResponseWriter, r *http.Request) {
	from, to, ok := parseRange(w, r)
	if !ok {
		return
	}

	var sum Summary
	if h.reader != nil {
		var err error
		sum, err = h.reader.Statistics(r.Context(), from, to)
		if err != nil {
			slog.Error("aggregating validation logs", "error", err)
			writeAuditError(w, http.StatusInternalServerError, "query failed")
			return
		}
	}
	if sum.TopViolations == nil {
		sum.TopViolations = []TypeCount{}
	}

	writeAuditJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"statistics": sum,
	})
}

// parseRange reads the from/to query parameters. A bare date in "to" covers
// the whole day. On failure it writes a 400 and returns ok=false.
func parseRange(w http.ResponseWriter, r *http.Request) (from, to *time.Time, ok bool) {
	var err error
	if raw := r.URL.Query().Get("from"); raw != "" {
		if from, err = parseTimeParam(raw, false); err != nil {
			writeAuditError(w, http.StatusBadRequest, "invalid from")
			return nil, nil, false
		}
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		if to, err = parseTimeParam(raw, true); err != nil {
			writeAuditError(w, http.StatusBadRequest, "invalid to")
			return nil, nil, false
		}
	}
	return from, to, true
}

func parseTimeParam(raw string, endOfDay bool) (*time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.AddDate(0, 0, 1)
	}
	return &t, nil
}

func parsePositiveInt(raw string, fallback int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

func writeAuditJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeAuditError(w http.ResponseWriter, status int, message string) {
	writeAuditJSON(w, status, map[string]any{"error": message, "success": false})
}
