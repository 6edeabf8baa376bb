// Package session tracks the identity and progress counters of one scrape
// run. Counters are atomic and monotone: they only move up, and a snapshot
// taken at any moment satisfies sent <= discovered.
package session

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rekohub/storefront-scraper/internal/deliver"
	"github.com/rekohub/storefront-scraper/internal/models"
)

type Session struct {
	ID       string
	StoreURL string

	startedAt  time.Time
	discovered atomic.Int64
	sent       atomic.Int64
	created    atomic.Int64

	sink   *deliver.Sink
	emitMu sync.Mutex
	logger *slog.Logger
}

func New(storeURL string, sink *deliver.Sink) *Session {
	id := uuid.New().String()
	return &Session{
		ID:        id,
		StoreURL:  storeURL,
		startedAt: time.Now(),
		sink:      sink,
		logger:    slog.Default().With("component", "session", "session_id", id, "store_url", storeURL),
	}
}

// RecordDiscovered raises the discovered counter to n. Lower values are
// ignored so stale callbacks can never move the counter backwards.
func (s *Session) RecordDiscovered(n int64) {
	for {
		cur := s.discovered.Load()
		if n <= cur || s.discovered.CompareAndSwap(cur, n) {
			return
		}
	}
}

// RecordSent increments the sent counter and returns the new value.
func (s *Session) RecordSent() int64 {
	return s.sent.Add(1)
}

// RecordCreated increments the created counter, tracking items the backend
// acknowledged.
func (s *Session) RecordCreated() int64 {
	return s.created.Add(1)
}

func (s *Session) Discovered() int64 { return s.discovered.Load() }
func (s *Session) Sent() int64       { return s.sent.Load() }

func (s *Session) Elapsed() time.Duration {
	return time.Since(s.startedAt)
}

// Snapshot captures the counters as a progress event. TotalCount is set
// once discovery has finished and the workload is known.
func (s *Session) Snapshot(phase models.Phase, message string, total *int64) models.ProgressEvent {
	event := models.ProgressEvent{
		DiscoveredCount: s.discovered.Load(),
		SentCount:       s.sent.Load(),
		Phase:           phase,
		Message:         message,
		TotalCount:      total,
	}
	if created := s.created.Load(); created > 0 {
		event.CreatedCount = &created
	}
	return event
}

// Emit snapshots the counters and reports them. Snapshot and enqueue happen
// under one lock, so the sink's FIFO worker sees counters in non-decreasing
// order even with concurrent emitters.
func (s *Session) Emit(phase models.Phase, message string, total *int64) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	event := s.Snapshot(phase, message, total)
	s.logger.Debug("progress",
		"phase", event.Phase,
		"discovered", event.DiscoveredCount,
		"sent", event.SentCount,
		"message", event.Message)
	s.sink.ReportProgress(event)
}
