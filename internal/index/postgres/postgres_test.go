//go:build integration

package postgres

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/facegate/facegate/internal/config"
	"github.com/facegate/facegate/internal/identity"
	"github.com/facegate/facegate/internal/index"
	"github.com/facegate/facegate/internal/recognition"
)

const testDim = 8

func setupTestContainer(t *testing.T) (*Pool, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}
	if container == nil {
		t.Skip("Docker not available, skipping integration test")
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	cfg := config.IndexConfig{
		DatabaseURL:  fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port()),
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}

	pool, err := NewPool(cfg)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to create pool: %v", err)
	}

	if err := pool.Migrate(ctx, testDim); err != nil {
		pool.Close()
		container.Terminate(ctx)
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		pool.Close()
		container.Terminate(ctx)
	}

	return pool, cleanup
}

func unit(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	n := math.Sqrt(sum)
	out := make([]float32, len(v))
	for i := range v {
		out[i] = float32(float64(v[i]) / n)
	}
	return out
}

func TestStore(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	store := NewStore(pool)

	a := unit([]float32{1, 2, 3, 4, 5, 6, 7, 8})
	b := unit([]float32{0, 1, 0, 0, 0, 0, 0, 0})

	t.Run("UpsertAndQuerySelf", func(t *testing.T) {
		if err := store.Upsert(ctx, "alice", [][]float32{a}, index.Metadata{Model: "facenet512"}); err != nil {
			t.Fatalf("upsert failed: %v", err)
		}
		if err := store.Upsert(ctx, "bob", [][]float32{b}, index.Metadata{Model: "facenet512"}); err != nil {
			t.Fatalf("upsert failed: %v", err)
		}

		matches, err := store.Query(ctx, a, 5, 0.6)
		if err != nil {
			t.Fatalf("query failed: %v", err)
		}
		if len(matches) != 1 || matches[0].IdentityID != "alice" {
			t.Fatalf("expected only alice above threshold, got %+v", matches)
		}
		if math.Abs(matches[0].Score-1.0) > 1e-4 {
			t.Errorf("self-query score should be ~1.0, got %f", matches[0].Score)
		}
	})

	t.Run("DeleteRemovesAllEmbeddings", func(t *testing.T) {
		if err := store.Delete(ctx, "alice"); err != nil {
			t.Fatalf("delete failed: %v", err)
		}
		matches, err := store.Query(ctx, a, 5, 0.0)
		if err != nil {
			t.Fatalf("query after delete failed: %v", err)
		}
		for _, m := range matches {
			if m.IdentityID == "alice" {
				t.Error("deleted identity must not appear in results")
			}
		}

		n, err := store.Count(ctx)
		if err != nil {
			t.Fatalf("count failed: %v", err)
		}
		if n != 1 {
			t.Errorf("expected 1 embedding after delete, got %d", n)
		}
	})
}

func TestDirectory(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	dir := NewDirectory(pool)

	rec := identity.Identity{ID: "p1", DisplayName: "Jan Novák", Active: true, CanUseFaceAuth: true}
	if err := dir.Put(ctx, rec); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	got, err := dir.GetIdentity(ctx, "p1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.DisplayName != rec.DisplayName || !got.Active || !got.CanUseFaceAuth {
		t.Errorf("unexpected record: %+v", got)
	}

	if _, err := dir.GetIdentity(ctx, "missing"); !errors.Is(err, identity.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	byName, err := dir.FindByName(ctx, "jan-novak")
	if err != nil {
		t.Fatalf("find by name failed: %v", err)
	}
	if byName.ID != "p1" {
		t.Errorf("expected p1 for normalized name lookup, got %+v", byName)
	}
	if _, err := dir.FindByName(ctx, "nobody"); !errors.Is(err, identity.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown name, got %v", err)
	}

	if err := dir.DeleteIdentity(ctx, "p1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := dir.GetIdentity(ctx, "p1"); !errors.Is(err, identity.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestEventLog(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	log := NewEventLog(pool)

	events := []recognition.Event{
		recognition.NewEvent(recognition.OutcomeSuccess, "p1", 0.91, 120*time.Millisecond, false),
		recognition.NewEvent(recognition.OutcomeNoMatch, "", 0.31, 80*time.Millisecond, true),
		recognition.NewEvent(recognition.OutcomeSuccess, "p2", 0.85, 100*time.Millisecond, false),
	}
	for _, ev := range events {
		if err := log.Record(ctx, ev); err != nil {
			t.Fatalf("record failed: %v", err)
		}
	}

	got, err := log.RecentEvents(ctx, recognition.EventQuery{Outcome: recognition.OutcomeSuccess})
	if err != nil {
		t.Fatalf("recent events failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 SUCCESS events, got %d", len(got))
	}

	stats, err := log.Stats(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.Total != 3 || stats.ByOutcome[recognition.OutcomeSuccess] != 2 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if stats.CacheHits != 1 {
		t.Errorf("expected 1 cache hit, got %d", stats.CacheHits)
	}
}
