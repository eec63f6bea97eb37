package scanning

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestLimiter_Acquire(t *testing.T) {
	t.Run("successful acquisition", func(t *testing.T) {
		l := NewLimiter(5)

		if err := l.Acquire(context.Background()); err != nil {
			t.Fatalf("Expected successful acquisition, got error: %v", err)
		}
		if l.InFlight() != 1 {
			t.Errorf("Expected 1 slot in flight, got %d", l.InFlight())
		}
		if l.Peak() != 1 {
			t.Errorf("Expected peak of 1, got %d", l.Peak())
		}

		l.Release()
	})

	t.Run("resource exhaustion", func(t *testing.T) {
		l := NewLimiter(2)
		ctx := context.Background()

		if err := l.Acquire(ctx); err != nil {
			t.Fatal(err)
		}
		if err := l.Acquire(ctx); err != nil {
			t.Fatal(err)
		}

		ctx3, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()
		if err := l.Acquire(ctx3); err == nil {
			t.Error("Expected timeout error, got success")
		}
		if l.TryAcquire() {
			t.Error("TryAcquire should fail while the limiter is full")
		}

		l.Release()
		if !l.TryAcquire() {
			t.Error("TryAcquire should succeed after a release")
		}
	})

	t.Run("cancelled context wins over a free slot", func(t *testing.T) {
		l := NewLimiter(1)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		for i := 0; i < 100; i++ {
			if err := l.Acquire(ctx); err == nil {
				t.Fatal("Expected cancellation error, got success")
			}
		}
		if l.InFlight() != 0 {
			t.Errorf("Expected no slots held, got %d", l.InFlight())
		}
	})

	t.Run("waiter is released by another goroutine", func(t *testing.T) {
		l := NewLimiter(1)
		if err := l.Acquire(context.Background()); err != nil {
			t.Fatal(err)
		}

		acquired := make(chan struct{})
		go func() {
			if err := l.Acquire(context.Background()); err == nil {
				close(acquired)
			}
		}()

		select {
		case <-acquired:
			t.Fatal("Second acquisition must wait for a release")
		case <-time.After(20 * time.Millisecond):
		}

		l.Release()
		select {
		case <-acquired:
		case <-time.After(time.Second):
			t.Fatal("Waiter was not woken by release")
		}
	})
}

func TestLimiter_Release(t *testing.T) {
	l := NewLimiter(2)

	// Releasing without holding a slot must not go negative.
	l.Release()
	if l.InFlight() != 0 {
		t.Errorf("Expected 0 in flight, got %d", l.InFlight())
	}
	if l.Capacity() != 2 {
		t.Errorf("Expected capacity 2, got %d", l.Capacity())
	}
}

func TestLimiter_InvalidCapacity(t *testing.T) {
	if got := NewLimiter(0).Capacity(); got != 1 {
		t.Errorf("Expected capacity to default to 1, got %d", got)
	}
	if got := NewLimiter(-4).Capacity(); got != 1 {
		t.Errorf("Expected capacity to default to 1, got %d", got)
	}
}

func TestLimiter_ConcurrentAccess(t *testing.T) {
	const capacity = 10
	l := NewLimiter(capacity)

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Acquire(context.Background()); err != nil {
				t.Error(err)
				return
			}
			defer l.Release()
			if n := l.InFlight(); n > capacity {
				t.Errorf("in flight %d exceeds capacity %d", n, capacity)
			}
			time.Sleep(time.Millisecond)
		}()
	}
	wg.Wait()

	if l.InFlight() != 0 {
		t.Errorf("Expected all slots released, got %d", l.InFlight())
	}
	if l.Peak() < 1 || l.Peak() > capacity {
		t.Errorf("Peak %d outside [1, %d]", l.Peak(), capacity)
	}
}
