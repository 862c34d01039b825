package pool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestSubmitReturnsValue(t *testing.T) {
	p := New(2)
	defer p.Close()

	f := Submit(context.Background(), p, func(ctx context.Context) (int, error) {
		return 42, nil
	})
	v, err := f.Wait(context.Background())
	if err != nil {
		t.Fatalf("wait failed: %v", err)
	}
	if v != 42 {
		t.Errorf("expected 42, got %d", v)
	}
}

func TestSubmitPropagatesError(t *testing.T) {
	p := New(1)
	defer p.Close()

	boom := errors.New("boom")
	f := Submit(context.Background(), p, func(ctx context.Context) (string, error) {
		return "", boom
	})
	if _, err := f.Wait(context.Background()); !errors.Is(err, boom) {
		t.Errorf("expected task error, got %v", err)
	}
}

func TestConcurrencyIsBounded(t *testing.T) {
	const size = 3
	p := New(size)
	defer p.Close()

	var running, peak atomic.Int32
	ctx := context.Background()

	futures := make([]*Future[struct{}], 0, 20)
	for range 20 {
		f := Submit(ctx, p, func(ctx context.Context) (struct{}, error) {
			n := running.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
			return struct{}{}, nil
		})
		futures = append(futures, f)
	}
	for _, f := range futures {
		if _, err := f.Wait(ctx); err != nil {
			t.Fatalf("wait failed: %v", err)
		}
	}
	if peak.Load() > size {
		t.Errorf("pool ran %d tasks at once, limit is %d", peak.Load(), size)
	}
}

func TestCanceledContextSkipsQueuedTask(t *testing.T) {
	p := New(1)
	defer p.Close()

	release := make(chan struct{})
	blocker := Submit(context.Background(), p, func(ctx context.Context) (struct{}, error) {
		<-release
		return struct{}{}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	var ran atomic.Bool
	queued := Submit(ctx, p, func(ctx context.Context) (struct{}, error) {
		ran.Store(true)
		return struct{}{}, nil
	})
	cancel()

	if _, err := queued.Wait(context.Background()); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if ran.Load() {
		t.Error("canceled task must not run")
	}

	close(release)
	if _, err := blocker.Wait(context.Background()); err != nil {
		t.Fatalf("blocker failed: %v", err)
	}
}

func TestSubmitAfterClose(t *testing.T) {
	p := New(1)
	p.Close()

	f := Submit(context.Background(), p, func(ctx context.Context) (int, error) {
		return 1, nil
	})
	if _, err := f.Wait(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}
