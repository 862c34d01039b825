package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/facegate/facegate/internal/recognition"
)

// EventLog persists recognition events and serves the audit endpoints.
type EventLog struct {
	pool *Pool
}

func NewEventLog(pool *Pool) *EventLog {
	return &EventLog{pool: pool}
}

var _ recognition.EventStore = (*EventLog)(nil)

// Record stores one identification event.
func (l *EventLog) Record(ctx context.Context, ev recognition.Event) error {
	query := `
		INSERT INTO recognition_events (id, identity_id, score, outcome, processing_time_ms, cache_hit, created_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7)
	`
	_, err := l.pool.Exec(ctx, query,
		ev.ID, ev.IdentityID, ev.Score, string(ev.Outcome), ev.ProcessingTimeMs, ev.CacheHit, ev.Timestamp)
	if err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	return nil
}

// RecentEvents returns events newest first.
func (l *EventLog) RecentEvents(ctx context.Context, f recognition.EventQuery) ([]recognition.Event, error) {
	limit := f.Limit
	if limit < 1 || limit > 1000 {
		limit = 100
	}

	query := `
		SELECT id, COALESCE(identity_id, ''), score, outcome, processing_time_ms, cache_hit, created_at
		FROM recognition_events
		WHERE ($1 = '' OR identity_id = $1)
		  AND ($2 = '' OR outcome = $2)
		  AND ($3::timestamptz IS NULL OR created_at >= $3)
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5
	`

	var since sql.NullTime
	if !f.Since.IsZero() {
		since = sql.NullTime{Time: f.Since, Valid: true}
	}

	rows, err := l.pool.Query(ctx, query, f.IdentityID, string(f.Outcome), since, limit, f.Offset)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []recognition.Event
	for rows.Next() {
		var ev recognition.Event
		var outcome string
		if err := rows.Scan(&ev.ID, &ev.IdentityID, &ev.Score, &outcome, &ev.ProcessingTimeMs, &ev.CacheHit, &ev.Timestamp); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Outcome = recognition.Outcome(outcome)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// Stats aggregates events recorded since the given time.
func (l *EventLog) Stats(ctx context.Context, since time.Time) (recognition.Stats, error) {
	s := recognition.Stats{ByOutcome: make(map[recognition.Outcome]int)}

	rows, err := l.pool.Query(ctx, `
		SELECT outcome, COUNT(*), COALESCE(AVG(processing_time_ms), 0), COUNT(*) FILTER (WHERE cache_hit)
		FROM recognition_events
		WHERE created_at >= $1
		GROUP BY outcome
	`, since)
	if err != nil {
		return s, fmt.Errorf("query event stats: %w", err)
	}
	defer rows.Close()

	var weightedMs float64
	for rows.Next() {
		var outcome string
		var count, hits int
		var avgMs float64
		if err := rows.Scan(&outcome, &count, &avgMs, &hits); err != nil {
			return s, fmt.Errorf("scan event stats: %w", err)
		}
		s.ByOutcome[recognition.Outcome(outcome)] = count
		s.Total += count
		s.CacheHits += hits
		weightedMs += avgMs * float64(count)
	}
	if err := rows.Err(); err != nil {
		return s, fmt.Errorf("iterate event stats: %w", err)
	}

	if s.Total > 0 {
		s.AvgTimeMs = weightedMs / float64(s.Total)
		s.SuccessRate = float64(s.ByOutcome[recognition.OutcomeSuccess]) / float64(s.Total)
	}
	return s, nil
}
