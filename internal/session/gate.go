package session

import (
	"container/list"
	"context"
	"sync"
	"time"

	"steerd/internal/metrics"
)

// Gate admits one holder at a time in strict arrival order. A release hands
// the turn directly to the oldest waiter, so a late arrival can never barge
// ahead of a queued one.
type Gate struct {
	maxQueue int
	maxWait  time.Duration

	mu      sync.Mutex
	busy    bool
	waiters list.List // of chan struct{}
}

// NewGate returns a gate. maxQueue bounds the number of waiters (0 means
// unbounded) and maxWait bounds how long a waiter queues (0 means until ctx
// is done).
func NewGate(maxQueue int, maxWait time.Duration) *Gate {
	return &Gate{maxQueue: maxQueue, maxWait: maxWait}
}

// Acquire blocks until the caller holds the turn. The returned release must
// be called exactly once; extra calls are ignored. A waiter that gives up
// (ctx done or maxWait elapsed) leaves the queue without disturbing order.
func (g *Gate) Acquire(ctx context.Context) (func(), error) {
	return g.acquire(ctx, g.maxQueue, g.maxWait)
}

// AcquireUnbounded is Acquire without the queue bound and max wait. Used to
// drain a session before closing it.
func (g *Gate) AcquireUnbounded(ctx context.Context) (func(), error) {
	return g.acquire(ctx, 0, 0)
}

func (g *Gate) acquire(ctx context.Context, maxQueue int, maxWait time.Duration) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	if !g.busy && g.waiters.Len() == 0 {
		g.busy = true
		g.mu.Unlock()
		metrics.QueueWait.Observe(0)
		return g.admitted(), nil
	}
	if maxQueue > 0 && g.waiters.Len() >= maxQueue {
		g.mu.Unlock()
		metrics.TooBusy.WithLabelValues("queue_full").Inc()
		return nil, tooBusyError{reason: "queue_full"}
	}
	ready := make(chan struct{})
	elem := g.waiters.PushBack(ready)
	g.mu.Unlock()

	metrics.QueueLength.Inc()
	defer metrics.QueueLength.Dec()
	start := time.Now()

	var timeout <-chan time.Time
	if maxWait > 0 {
		timer := time.NewTimer(maxWait)
		defer timer.Stop()
		timeout = timer.C
	}

	var err error
	select {
	case <-ready:
		metrics.QueueWait.Observe(time.Since(start).Seconds())
		return g.admitted(), nil
	case <-ctx.Done():
		err = ctx.Err()
	case <-timeout:
		metrics.TooBusy.WithLabelValues("max_wait").Inc()
		err = tooBusyError{reason: "max_wait"}
	}

	g.mu.Lock()
	select {
	case <-ready:
		// Handed the turn while giving up: pass it on.
		g.handoffLocked()
	default:
		g.waiters.Remove(elem)
	}
	g.mu.Unlock()
	return nil, err
}

func (g *Gate) admitted() func() {
	metrics.Inflight.Inc()
	var once sync.Once
	return func() {
		once.Do(func() {
			metrics.Inflight.Dec()
			g.mu.Lock()
			g.handoffLocked()
			g.mu.Unlock()
		})
	}
}

func (g *Gate) handoffLocked() {
	front := g.waiters.Front()
	if front == nil {
		g.busy = false
		return
	}
	g.waiters.Remove(front)
	close(front.Value.(chan struct{}))
}

// Busy reports whether the turn is held.
func (g *Gate) Busy() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.busy
}

// Waiting reports the number of queued callers.
func (g *Gate) Waiting() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.waiters.Len()
}

// MaxQueue is the configured queue bound (0 for unbounded).
func (g *Gate) MaxQueue() int { return g.maxQueue }
