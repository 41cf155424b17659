package stats

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valinor-ai/promptguard/internal/audit"
	"github.com/valinor-ai/promptguard/internal/sentinel"
)

var (
	day1 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	day2 = time.Date(2026, 3, 2, 23, 59, 0, 0, time.UTC)
)

func TestDayKey(t *testing.T) {
	kst := time.FixedZone("KST", 9*60*60)
	assert.Equal(t, "2026-03-01", DayKey(day1))
	// 2026-03-02 05:00 KST is still March 1st in UTC.
	assert.Equal(t, "2026-03-01", DayKey(time.Date(2026, 3, 2, 5, 0, 0, 0, kst)))
}

func TestMemoryCounter(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCounter()

	require.NoError(t, c.Add(ctx, day1, sentinel.Safe, 3))
	require.NoError(t, c.Add(ctx, day1, sentinel.Blocked, 1))
	require.NoError(t, c.Add(ctx, day2, sentinel.Warning, 2))

	d, err := c.Daily(ctx, day1)
	require.NoError(t, err)
	assert.Equal(t, Daily{Date: "2026-03-01", Total: 4, Safe: 3, Blocked: 1}, d)

	d, err = c.Daily(ctx, day2)
	require.NoError(t, err)
	assert.Equal(t, Daily{Date: "2026-03-02", Total: 2, Warning: 2}, d)

	d, err = c.Daily(ctx, day2.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, Daily{Date: "2026-03-03"}, d)
	assert.Equal(t, "memory", c.Backend())
}

func entry(ts time.Time, level sentinel.Level) audit.Entry {
	return audit.Entry{ID: uuid.New(), Timestamp: ts, Level: level}
}

func TestSink_GroupsByDayAndLevel(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCounter()
	sink := NewSink(c)

	require.NoError(t, sink.Write(ctx, []audit.Entry{
		entry(day1, sentinel.Danger),
		entry(day1, sentinel.Danger),
		entry(day1.Add(time.Hour), sentinel.Safe),
		entry(day2, sentinel.Blocked),
	}))

	d, err := c.Daily(ctx, day1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), d.Total)
	assert.Equal(t, int64(2), d.Danger)
	assert.Equal(t, int64(1), d.Safe)
	assert.Equal(t, d.Total, d.Safe+d.Warning+d.Danger+d.Blocked)

	d, err = c.Daily(ctx, day2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), d.Blocked)

	require.NoError(t, sink.Write(ctx, nil))
}

type failingCounter struct{}

func (failingCounter) Backend() string { return "failing" }

func (failingCounter) Add(context.Context, time.Time, sentinel.Level, int64) error {
	return assert.AnError
}

func (failingCounter) Daily(context.Context, time.Time) (Daily, error) {
	return Daily{}, assert.AnError
}

func TestSink_PropagatesCounterErrors(t *testing.T) {
	err := NewSink(&failingCounter{}).Write(context.Background(), []audit.Entry{entry(day1, sentinel.Safe)})
	assert.ErrorIs(t, err, assert.AnError)
}

func TestHandleDaily(t *testing.T) {
	c := NewMemoryCounter()
	require.NoError(t, c.Add(context.Background(), day1, sentinel.Warning, 5))
	h := NewHandler(c)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/statistics/daily?date=2026-03-01", nil)
	w := httptest.NewRecorder()
	h.HandleDaily(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Success bool   `json:"success"`
		Backend string `json:"backend"`
		Daily   Daily  `json:"daily"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, "memory", body.Backend)
	assert.Equal(t, Daily{Date: "2026-03-01", Total: 5, Warning: 5}, body.Daily)
}

func TestHandleDaily_DefaultsToToday(t *testing.T) {
	h := NewHandler(NewMemoryCounter())
	h.now = func() time.Time { return day2 }

	w := httptest.NewRecorder()
	h.HandleDaily(w, httptest.NewRequest(http.MethodGet, "/api/v1/statistics/daily", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"date":"2026-03-02"`)
}

func TestHandleDaily_Errors(t *testing.T) {
	w := httptest.NewRecorder()
	NewHandler(NewMemoryCounter()).HandleDaily(w, httptest.NewRequest(http.MethodGet, "/api/v1/statistics/daily?date=03/01/2026", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	NewHandler(&failingCounter{}).HandleDaily(w, httptest.NewRequest(http.MethodGet, "/api/v1/statistics/daily", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "statistics unavailable")
}

func TestRedisCounter(t *testing.T) {
	if os.Getenv("PROMPTGUARD_REDIS_TEST") != "1" {
		t.Skip("set PROMPTGUARD_REDIS_TEST=1 to run against a local Redis")
	}
	url := os.Getenv("PROMPTGUARD_STATS_REDISURL")
	if url == "" {
		url = "redis://localhost:6379/15"
	}

	ctx := context.Background()
	c, err := OpenRedisCounter(ctx, url, time.Hour)
	require.NoError(t, err)
	defer c.Close()

	day := time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	raw := redis.NewClient(opts)
	defer raw.Close()
	require.NoError(t, raw.Del(ctx, key(day)).Err())

	require.NoError(t, c.Add(ctx, day, sentinel.Blocked, 2))
	require.NoError(t, c.Add(ctx, day, sentinel.Safe, 1))

	d, err := c.Daily(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, Daily{Date: "2001-01-01", Total: 3, Safe: 1, Blocked: 2}, d)

	ttl, err := raw.TTL(ctx, key(day)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.Equal(t, "redis", c.Backend())
	assert.NoError(t, c.Ping(ctx))
}

func TestOpenRedisCounter_BadURL(t *testing.T) {
	_, err := OpenRedisCounter(context.Background(), "not-a-url", 0)
	assert.Error(t, err)
}
