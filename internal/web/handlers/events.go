package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/facegate/facegate/internal/recognition"
)

// EventsHandler serves the recognition audit log and aggregate stats.
type EventsHandler struct {
	service Service
	store   recognition.EventStore
}

func NewEventsHandler(service Service, store recognition.EventStore) *EventsHandler {
	return &EventsHandler{service: service, store: store}
}

// List handles GET /events with optional identity_id, outcome, since
// (RFC 3339), limit and offset query parameters.
func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := recognition.EventQuery{
		IdentityID: r.URL.Query().Get("identity_id"),
		Outcome:    recognition.Outcome(r.URL.Query().Get("outcome")),
	}
	if s := r.URL.Query().Get("since"); s != "" {
		since, err := time.Parse(time.RFC3339, s)
		if err != nil {
			respondError(w, http.StatusBadRequest, "since must be RFC 3339")
			return
		}
		q.Since = since
	}
	if s := r.URL.Query().Get("limit"); s != "" {
		q.Limit, _ = strconv.Atoi(s)
	}
	if s := r.URL.Query().Get("offset"); s != "" {
		q.Offset, _ = strconv.Atoi(s)
	}

	events, err := h.store.RecentEvents(r.Context(), q)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"count":  len(events),
		"events": events,
	})
}

// Stats handles GET /stats: outcome counts over a window (default 24h)
// plus cache counters.
func (h *EventsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	window := 24 * time.Hour
	if s := r.URL.Query().Get("window"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil || d <= 0 {
			respondError(w, http.StatusBadRequest, "window must be a positive duration like 1h or 30m")
			return
		}
		window = d
	}

	stats, err := h.store.Stats(r.Context(), time.Now().Add(-window))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	hits, misses, size := h.service.CacheStats()
	respondJSON(w, http.StatusOK, map[string]any{
		"window": window.String(),
		"events": stats,
		"cache": map[string]any{
			"hits":   hits,
			"misses": misses,
			"size":   size,
		},
	})
}
