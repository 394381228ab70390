// Package dispatch schedules inbound chat events: per-key FIFO ordering,
// bounded parallelism across keys.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"
)

// DefaultWorkers bounds the chats processed concurrently when no size is
// configured.
const DefaultWorkers = 8

// ErrClosed is returned by Submit after Shutdown.
var ErrClosed = errors.New("dispatch: queue closed")

// Task is one unit of work. ctx is cancelled when Shutdown gives up waiting.
type Task func(ctx context.Context)

// Queue runs tasks of the same key one after another in submission order
// and tasks of different keys in parallel, at most Workers at a time.
//
// Each key with pending work owns exactly one runner goroutine that drains
// its FIFO, so a slow chat never reorders or blocks another chat's tasks
// beyond the worker cap.
type Queue[K comparable] struct {
	logger zerolog.Logger
	pool   *pool.Pool
	ctx    context.Context
	cancel context.CancelFunc

	// gate orders Submit's pool.Go against Shutdown's pool.Wait.
	gate sync.RWMutex

	mu      sync.Mutex
	pending map[K][]Task
	closed  bool
}

// NewQueue creates a queue with the given worker cap (DefaultWorkers when
// workers <= 0).
func NewQueue[K comparable](workers int, logger zerolog.Logger) *Queue[K] {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue[K]{
		logger:  logger,
		pool:    pool.New().WithMaxGoroutines(workers),
		ctx:     ctx,
		cancel:  cancel,
		pending: make(map[K][]Task),
	}
}

// Submit enqueues task under key. It may block while every worker is busy
// and a new key needs a runner.
func (q *Queue[K]) Submit(key K, task Task) error {
	q.gate.RLock()
	defer q.gate.RUnlock()

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	queued, running := q.pending[key]
	q.pending[key] = append(queued, task)
	q.mu.Unlock()

	if !running {
		q.pool.Go(func() { q.drain(key) })
	}
	return nil
}

// drain runs the tasks of key until its FIFO is empty, then retires the
// key so the next Submit starts a fresh runner.
func (q *Queue[K]) drain(key K) {
	for {
		q.mu.Lock()
		tasks := q.pending[key]
		if len(tasks) == 0 {
			delete(q.pending, key)
			q.mu.Unlock()
			return
		}
		task := tasks[0]
		tasks[0] = nil
		q.pending[key] = tasks[1:]
		q.mu.Unlock()

		q.run(key, task)
	}
}

func (q *Queue[K]) run(key K, task Task) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error().
				Str("key", fmt.Sprint(key)).
				Interface("panic", r).
				Msg("dispatch task panicked")
		}
	}()
	task(q.ctx)
}

// Pending reports the number of queued (not yet started) tasks.
func (q *Queue[K]) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	var n int
	for _, tasks := range q.pending {
		n += len(tasks)
	}
	return n
}

// Shutdown stops accepting tasks and waits for queued ones to finish. If
// ctx ends first, running tasks see their context cancelled and Shutdown
// returns ctx.Err() once they have returned.
func (q *Queue[K]) Shutdown(ctx context.Context) error {
	q.gate.Lock()
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.gate.Unlock()
		return nil
	}
	q.closed = true
	q.mu.Unlock()
	q.gate.Unlock()

	done := make(chan struct{})
	go func() {
		q.pool.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.cancel()
		return nil
	case <-ctx.Done():
		q.cancel()
		<-done
		return ctx.Err()
	}
}
