package audit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valinor-ai/promptguard/internal/sentinel"
)

type fakeReader struct {
	params   ListParams
	from, to *time.Time
	page     Page
	summary  Summary
	err      error
}

func (f *fakeReader) List(_ context.Context, p ListParams) (Page, error) {
	f.params = p
	return f.page, f.err
}

func (f *fakeReader) Statistics(_ context.Context, from, to *time.Time) (Summary, error) {
	f.from, f.to = from, to
	return f.summary, f.err
}

func TestHandleListLogs_NilReader(t *testing.T) {
	h := NewHandler(nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/logs", nil)
	w := httptest.NewRecorder()

	h.HandleListLogs(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":0`)
	assert.Contains(t, w.Body.String(), `"logs":[]`)
}

func TestHandleListLogs_ParsesFilters(t *testing.T) {
	reader := &fakeReader{page: Page{Logs: []Entry{testEntry(sentinel.Blocked)}, Total: 1, Page: 2, Limit: 200, TotalPages: 1}}
	h := NewHandler(reader)
	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/logs?page=2&limit=500&level=blocked&from=2026-03-01&to=2026-03-31&q=SCADA", nil)
	w := httptest.NewRecorder()

	h.HandleListLogs(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, reader.params.Page)
	assert.Equal(t, maxPageLimit, reader.params.Limit)
	require.NotNil(t, reader.params.Level)
	assert.Equal(t, sentinel.Blocked, *reader.params.Level)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), *reader.params.From)
	assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), *reader.params.To)
	assert.Equal(t, "SCADA", reader.params.Query)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(1), body["total"])
	logs := body["logs"].([]any)
	require.Len(t, logs, 1)
	assert.Equal(t, "BLOCKED", logs[0].(map[string]any)["security_level"])
}

func TestHandleListLogs_Defaults(t *testing.T) {
	reader := &fakeReader{}
	h := NewHandler(reader)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/logs?page=-3&limit=abc", nil)
	w := httptest.NewRecorder()

	h.HandleListLogs(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, reader.params.Page)
	assert.Equal(t, defaultPageLimit, reader.params.Limit)
	assert.Nil(t, reader.params.Level)
	assert.Nil(t, reader.params.From)
}

func TestHandleListLogs_BadRequests(t *testing.T) {
	tests := []struct {
		name  string
		query string
		msg   string
	}{
		{"bad level", "level=CRITICAL", "invalid level"},
		{"bad from", "from=yesterday", "invalid from"},
		{"bad to", "to=2026-13-40", "invalid to"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHandler(&fakeReader{})
			req := httptest.NewRequest(http.MethodGet, "/api/v1/logs?"+tc.query, nil)
			w := httptest.NewRecorder()

			h.HandleListLogs(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), tc.msg)
			assert.Contains(t, w.Body.String(), `"success":false`)
		})
	}
}

func TestHandleListLogs_ReaderError(t *testing.T) {
	h := NewHandler(&fakeReader{err: assert.AnError})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/logs", nil)
	w := httptest.NewRecorder()

	h.HandleListLogs(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "query failed")
}

func TestHandleStatistics(t *testing.T) {
	reader := &fakeReader{summary: Summary{
		Total: 4, Safe: 1, Warning: 1, Blocked: 2, AverageRiskScore: 51.5,
		TopViolations: []TypeCount{{Type: sentinel.SystemInfo, Count: 8}},
	}}
	h := NewHandler(reader)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/statistics?from=2026-01-01T00:00:00Z", nil)
	w := httptest.NewRecorder()

	h.HandleStatistics(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, reader.from)
	assert.Nil(t, reader.to)

	var body struct {
		Success    bool    `json:"success"`
		Statistics Summary `json:"statistics"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, 4, body.Statistics.Total)
	assert.Equal(t, 2, body.Statistics.Blocked)
	assert.Equal(t, []TypeCount{{Type: sentinel.SystemInfo, Count: 8}}, body.Statistics.TopViolations)
}

func TestHandleStatistics_NilReader(t *testing.T) {
	h := NewHandler(nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/statistics", nil)
	w := httptest.NewRecorder()

	h.HandleStatistics(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":0`)
	assert.Contains(t, w.Body.String(), `"top_violations":[]`)
}
