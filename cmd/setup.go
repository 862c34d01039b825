package cmd

import (
	"context"
	"fmt"

	"github.com/facegate/facegate/internal/config"
	"github.com/facegate/facegate/internal/embedding"
	"github.com/facegate/facegate/internal/identity"
	"github.com/facegate/facegate/internal/index"
	"github.com/facegate/facegate/internal/index/memory"
	"github.com/facegate/facegate/internal/index/postgres"
	"github.com/facegate/facegate/internal/recognition"
)

// eventRingCapacity bounds the in-memory audit log used when no database
// is configured.
const eventRingCapacity = 10000

// services bundles everything a command needs, wired per configuration.
type services struct {
	cfg      *config.Config
	pipeline *recognition.Pipeline
	events   recognition.EventStore
	index    index.Index
	dbPool   *postgres.Pool // nil for the memory backend
}

// buildServices assembles the pipeline for the configured index backend.
// The memory backend needs no external services besides the extractor;
// the postgres backend also persists identities and the event log.
func buildServices(ctx context.Context) (*services, error) {
	cfg := config.Load()

	var (
		idx    index.Index
		dir    identity.Directory
		events recognition.EventStore
		dbPool *postgres.Pool
	)

	switch cfg.Index.Backend {
	case "postgres":
		pool, err := postgres.NewPool(cfg.Index)
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		if err := pool.Migrate(ctx, cfg.Extractor.Dim); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
		idx = postgres.NewStore(pool)
		dir = postgres.NewDirectory(pool)
		events = postgres.NewEventLog(pool)
		dbPool = pool
	case "memory":
		idx = memory.New()
		events = recognition.NewEventRing(eventRingCapacity)
	default:
		return nil, fmt.Errorf("unknown index backend %q (use memory or postgres)", cfg.Index.Backend)
	}

	extractor := embedding.NewClient(cfg.Extractor)
	pipeline := recognition.NewPipeline(cfg, extractor, idx, dir, events)

	return &services{
		cfg:      cfg,
		pipeline: pipeline,
		events:   events,
		index:    idx,
		dbPool:   dbPool,
	}, nil
}

// warmup probes the extractor so the first request doesn't pay the model
// load cost.
func (s *services) warmup(ctx context.Context) error {
	fmt.Println("Warming up embedding extractor...")
	if err := s.pipeline.Warmup(ctx); err != nil {
		return fmt.Errorf("extractor warm-up failed: %w", err)
	}
	return nil
}

func (s *services) close() {
	s.pipeline.Close()
	s.index.Close()
	if s.dbPool != nil {
		s.dbPool.Close()
	}
}
