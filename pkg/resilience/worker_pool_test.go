package resilience

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

func TestWorkerPoolExecutesJobs(t *testing.T) {
	pool := NewWorkerPool(3, 6)
	defer pool.Close()

	var count int32
	for i := 0; i < 10; i++ {
		if err := pool.Submit(context.Background(), func() {
			atomic.AddInt32(&count, 1)
		}); err != nil {
			t.Fatalf("submit failed: %v", err)
		}
	}

	pool.Close()
	pool.Wait()

	if got := atomic.LoadInt32(&count); got != 10 {
		t.Fatalf("expected 10 jobs executed, got %d", got)
	}
}

func TestWorkerPoolSubmitAfterClose(t *testing.T) {
	pool := NewWorkerPool(1, 1)
	pool.Close()
	if err := pool.Submit(context.Background(), func() {}); err != ErrWorkerPoolClosed {
		t.Fatalf("expected ErrWorkerPoolClosed, got %v", err)
	}
}

func TestWorkerPoolEachWaitsForAll(t *testing.T) {
	pool := NewWorkerPool(2, 2)
	defer pool.Close()

	results := make([]int, 8)
	if err := pool.Each(context.Background(), len(results), func(i int) {
		results[i] = i * i
	}); err != nil {
		t.Fatalf("each failed: %v", err)
	}
	for i, v := range results {
		if v != i*i {
			t.Fatalf("result %d = %d, want %d", i, v, i*i)
		}
	}
}

func TestWorkerPoolEachOnClosedPool(t *testing.T) {
	pool := NewWorkerPool(1, 1)
	pool.Close()

	var ran int32
	err := pool.Each(context.Background(), 3, func(int) {
		atomic.AddInt32(&ran, 1)
	})
	if !errors.Is(err, ErrWorkerPoolClosed) {
		t.Fatalf("expected ErrWorkerPoolClosed, got %v", err)
	}
	if atomic.LoadInt32(&ran) != 0 {
		t.Fatalf("expected no jobs to run")
	}
}
