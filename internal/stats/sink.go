package stats

import (
	"context"
	"errors"
	"time"

	"github.com/valinor-ai/promptguard/internal/audit"
	"github.com/valinor-ai/promptguard/internal/sentinel"
)

// Sink feeds audit batches into a Counter so every logged validation is
// counted once.
type Sink struct {
	counter Counter
}

func NewSink(counter Counter) *Sink {
	return &Sink{counter: counter}
}

type bucket struct {
	day   string
	level sentinel.Level
}

// Write implements audit.Sink, grouping the batch by day and level.
func (s *Sink) Write(ctx context.Context, entries []audit.Entry) error {
	counts := make(map[bucket]int64)
	days := make(map[string]time.Time)
	for _, e := range entries {
		b := bucket{day: DayKey(e.Timestamp), level: e.Level}
		counts[b]++
		days[b.day] = e.Timestamp
	}

	var errs []error
	for b, n := range counts {
		if err := s.counter.Add(ctx, days[b.day], b.level, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ audit.Sink = (*Sink)(nil)
