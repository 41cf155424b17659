package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// LoggerConfig configures the async audit logger.
type LoggerConfig struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
}

// AsyncLogger implements Logger with a buffered channel and background worker.
// The worker is the only writer to the sink.
type AsyncLogger struct {
	ch     chan Entry
	sink   Sink
	cfg    LoggerConfig
	wg     sync.WaitGroup
	cancel context.CancelFunc
	once   sync.Once
}

// NewAsyncLogger creates and starts an async audit logger.
func NewAsyncLogger(sink Sink, cfg LoggerConfig) *AsyncLogger {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1000
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	l := &AsyncLogger{
		ch:     make(chan Entry, cfg.BufferSize),
		sink:   sink,
		cfg:    cfg,
		cancel: cancel,
	}

	l.wg.Add(1)
	go l.worker(ctx)

	return l
}

// Log enqueues an entry. Never blocks the caller; drops if the buffer is full.
func (l *AsyncLogger) Log(_ context.Context, entry Entry) {
	select {
	case l.ch <- entry:
	default:
		slog.Warn("audit buffer full, dropping entry", "id", entry.ID, "security_level", entry.Level)
	}
}

// Close flushes remaining entries and stops the worker. Safe to call twice.
func (l *AsyncLogger) Close() error {
	l.once.Do(func() {
		l.cancel()
		l.wg.Wait()
		l.flush(l.drainAll())
	})
	return nil
}

func (l *AsyncLogger) worker(ctx context.Context) {
	defer l.wg.Done()

	ticker := time.NewTicker(l.cfg.FlushInterval)
	defer ticker.Stop()

	var batch []Entry

	for {
		select {
		case <-ctx.Done():
			batch = append(batch, l.drainAll()...)
			l.flush(batch)
			return

		case e := <-l.ch:
			batch = append(batch, e)
			if len(batch) >= l.cfg.BatchSize {
				l.flush(batch)
				batch = nil
			}

		case <-ticker.C:
			if len(batch) > 0 {
				l.flush(batch)
				batch = nil
			}
		}
	}
}

func (l *AsyncLogger) flush(entries []Entry) {
	if len(entries) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := l.sink.Write(ctx, entries); err != nil {
		slog.Error("audit flush failed", "error", err, "count", len(entries))
	}
}

func (l *AsyncLogger) drainAll() []Entry {
	var entries []Entry
	for {
		select {
		case e := <-l.ch:
			entries = append(entries, e)
		default:
			return entries
		}
	}
}
