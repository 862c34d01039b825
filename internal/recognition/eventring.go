package recognition

import (
	"context"
	"sync"
	"time"
)

// EventRing is an in-memory EventStore keeping the most recent events.
// It backs the audit endpoints when no database is configured.
type EventRing struct {
	mu       sync.RWMutex
	capacity int
	events   []Event // oldest first
}

// NewEventRing creates a ring holding at most capacity events. Capacity
// below 1 is treated as 1.
func NewEventRing(capacity int) *EventRing {
	if capacity < 1 {
		capacity = 1
	}
	return &EventRing{capacity: capacity}
}

var _ EventStore = (*EventRing)(nil)

func (r *EventRing) Record(ctx context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.events) >= r.capacity {
		r.events = r.events[1:]
	}
	r.events = append(r.events, ev)
	return nil
}

// RecentEvents returns matching events newest first.
func (r *EventRing) RecentEvents(ctx context.Context, q EventQuery) ([]Event, error) {
	limit := q.Limit
	if limit < 1 || limit > 1000 {
		limit = 100
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Event
	skipped := 0
	for i := len(r.events) - 1; i >= 0 && len(out) < limit; i-- {
		ev := r.events[i]
		if q.IdentityID != "" && ev.IdentityID != q.IdentityID {
			continue
		}
		if q.Outcome != "" && ev.Outcome != q.Outcome {
			continue
		}
		if !q.Since.IsZero() && ev.Timestamp.Before(q.Since) {
			continue
		}
		if skipped < q.Offset {
			skipped++
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

// Stats aggregates events recorded since the given time.
func (r *EventRing) Stats(ctx context.Context, since time.Time) (Stats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var window []Event
	for _, ev := range r.events {
		if !ev.Timestamp.Before(since) {
			window = append(window, ev)
		}
	}
	return Aggregate(window), nil
}
