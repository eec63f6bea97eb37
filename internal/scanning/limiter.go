package scanning

import (
	"context"
	"sync/atomic"
)

// Limiter bounds the number of concurrently held slots. Slots are handed out
// as soon as one is released, so work is refilled continuously rather than in
// waves.
type Limiter struct {
	capacity int
	slots    chan struct{}
	inFlight atomic.Int64
	peak     atomic.Int64
}

// NewLimiter creates a limiter with the specified capacity.
func NewLimiter(capacity int) *Limiter {
	if capacity <= 0 {
		capacity = 1
	}

	return &Limiter{
		capacity: capacity,
		slots:    make(chan struct{}, capacity),
	}
}

// Acquire blocks until a slot is available or the context is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	// A ready slot must not win over an already cancelled context.
	if err := ctx.Err(); err != nil {
		return err
	}

	select {
	case l.slots <- struct{}{}:
		l.track()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryAcquire takes a slot only if one is free right now.
func (l *Limiter) TryAcquire() bool {
	select {
	case l.slots <- struct{}{}:
		l.track()
		return true
	default:
		return false
	}
}

func (l *Limiter) track() {
	n := l.inFlight.Add(1)
	for {
		p := l.peak.Load()
		if n <= p || l.peak.CompareAndSwap(p, n) {
			return
		}
	}
}

// Release returns a slot. Releasing more than was acquired is a no-op.
func (l *Limiter) Release() {
	select {
	case <-l.slots:
		l.inFlight.Add(-1)
	default:
	}
}

// Capacity returns the maximum number of slots.
func (l *Limiter) Capacity() int {
	return l.capacity
}

// InFlight returns the number of slots currently held.
func (l *Limiter) InFlight() int {
	return int(l.inFlight.Load())
}

// Peak returns the highest number of slots ever held at once.
func (l *Limiter) Peak() int {
	return int(l.peak.Load())
}
