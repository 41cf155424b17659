// Package stats keeps per-day validation counters by security level.
package stats

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/valinor-ai/promptguard/internal/sentinel"
)

// Daily is the counter set for one calendar day (UTC).
type Daily struct {
	Date    string `json:"date"`
	Total   int64  `json:"total"`
	Safe    int64  `json:"safe"`
	Warning int64  `json:"warning"`
	Danger  int64  `json:"danger"`
	Blocked int64  `json:"blocked"`
}

func (d *Daily) add(field string, n int64) {
	switch field {
	case "total":
		d.Total += n
	case "safe":
		d.Safe += n
	case "warning":
		d.Warning += n
	case "danger":
		d.Danger += n
	case "blocked":
		d.Blocked += n
	}
}

// Counter stores daily counters.
type Counter interface {
	// Add increments the total and the level counter for day by n.
	Add(ctx context.Context, day time.Time, level sentinel.Level, n int64) error
	// Daily returns the counters for day; a day with no traffic is all zero.
	Daily(ctx context.Context, day time.Time) (Daily, error)
	// Backend names the storage, e.g. "redis" or "memory".
	Backend() string
}

// DayKey formats day as the counter key date.
func DayKey(day time.Time) string {
	return day.UTC().Format(time.DateOnly)
}

func levelField(level sentinel.Level) string {
	return strings.ToLower(level.Code())
}

// MemoryCounter is an in-process Counter for single-instance deployments and tests.
type MemoryCounter struct {
	mu   sync.Mutex
	days map[string]*Daily
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{days: make(map[string]*Daily)}
}

func (m *MemoryCounter) Add(_ context.Context, day time.Time, level sentinel.Level, n int64) error {
	key := DayKey(day)
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.days[key]
	if !ok {
		d = &Daily{Date: key}
		m.days[key] = d
	}
	d.add("total", n)
	d.add(levelField(level), n)
	return nil
}

func (m *MemoryCounter) Daily(_ context.Context, day time.Time) (Daily, error) {
	key := DayKey(day)
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.days[key]; ok {
		return *d, nil
	}
	return Daily{Date: key}, nil
}

func (m *MemoryCounter) Backend() string { return "memory" }
