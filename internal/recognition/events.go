package recognition

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event records a single identification attempt for auditing and stats.
type Event struct {
	ID               string    `json:"id"`
	IdentityID       string    `json:"identity_id,omitempty"`
	Score            float64   `json:"score"`
	Outcome          Outcome   `json:"outcome"`
	ProcessingTimeMs int64     `json:"processing_time_ms"`
	CacheHit         bool      `json:"cache_hit"`
	Timestamp        time.Time `json:"timestamp"`
}

// NewEvent builds an event with a fresh id and the current time.
func NewEvent(outcome Outcome, identityID string, score float64, elapsed time.Duration, cacheHit bool) Event {
	return Event{
		ID:               uuid.NewString(),
		IdentityID:       identityID,
		Score:            score,
		Outcome:          outcome,
		ProcessingTimeMs: elapsed.Milliseconds(),
		CacheHit:         cacheHit,
		Timestamp:        time.Now().UTC(),
	}
}

// EventSink receives identification events. Recording is best-effort;
// the pipeline logs sink errors but never fails a request over them.
type EventSink interface {
	Record(ctx context.Context, ev Event) error
}

// NopSink discards events. Used when no database is configured.
type NopSink struct{}

func (NopSink) Record(ctx context.Context, ev Event) error { return nil }

// EventQuery narrows EventStore reads. Zero values mean no filter.
type EventQuery struct {
	IdentityID string
	Outcome    Outcome
	Since      time.Time
	Limit      int
	Offset     int
}

// EventStore is a queryable event sink backing the audit endpoints.
type EventStore interface {
	EventSink
	RecentEvents(ctx context.Context, q EventQuery) ([]Event, error)
	Stats(ctx context.Context, since time.Time) (Stats, error)
}

// Stats aggregates events over a time window.
type Stats struct {
	Total       int             `json:"total"`
	ByOutcome   map[Outcome]int `json:"by_outcome"`
	AvgTimeMs   float64         `json:"avg_processing_time_ms"`
	CacheHits   int             `json:"cache_hits"`
	SuccessRate float64         `json:"success_rate"`
}

// Aggregate computes stats over a slice of events.
func Aggregate(events []Event) Stats {
	s := Stats{ByOutcome: make(map[Outcome]int)}
	if len(events) == 0 {
		return s
	}

	var totalMs int64
	for _, ev := range events {
		s.Total++
		s.ByOutcome[ev.Outcome]++
		totalMs += ev.ProcessingTimeMs
		if ev.CacheHit {
			s.CacheHits++
		}
	}
	s.AvgTimeMs = float64(totalMs) / float64(s.Total)
	s.SuccessRate = float64(s.ByOutcome[OutcomeSuccess]) / float64(s.Total)
	return s
}
