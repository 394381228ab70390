package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLaneLock_SameKeySerial(t *testing.T) {
	t.Parallel()

	ll := NewLaneLock[string]()
	var inside, peak atomic.Int32
	var wg sync.WaitGroup

	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ll.Acquire("chat")
			defer ll.Release("chat")

			cur := inside.Add(1)
			for {
				old := peak.Load()
				if cur <= old || peak.CompareAndSwap(old, cur) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), peak.Load())
	assert.Zero(t, ll.Len(), "lanes are dropped once released")
}

func TestLaneLock_DifferentKeysParallel(t *testing.T) {
	t.Parallel()

	ll := NewLaneLock[int64]()
	enteredA := make(chan struct{})
	enteredB := make(chan struct{})
	done := make(chan struct{})

	go func() {
		ll.Acquire(1)
		close(enteredA)
		<-enteredB
		ll.Release(1)
	}()
	go func() {
		ll.Acquire(2)
		close(enteredB)
		<-enteredA
		ll.Release(2)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("different keys blocked each other")
	}
}

func TestLaneLock_ReleaseUnknownKey(t *testing.T) {
	t.Parallel()
	ll := NewLaneLock[string]()
	ll.Release("never-acquired")
	assert.Zero(t, ll.Len())
}

func TestQueue_PerKeyOrder(t *testing.T) {
	t.Parallel()

	q := NewQueue[int64](4, zerolog.Nop())
	var mu sync.Mutex
	got := map[int64][]int{}

	for i := range 50 {
		key := int64(i % 3)
		require.NoError(t, q.Submit(key, func(context.Context) {
			if i%7 == 0 {
				time.Sleep(time.Millisecond)
			}
			mu.Lock()
			got[key] = append(got[key], i)
			mu.Unlock()
		}))
	}
	require.NoError(t, q.Shutdown(context.Background()))

	for key, seq := range got {
		for j := 1; j < len(seq); j++ {
			assert.Less(t, seq[j-1], seq[j], "key %d out of order: %v", key, seq)
		}
	}
	assert.Len(t, got[0], 17)
	assert.Len(t, got[1], 17)
	assert.Len(t, got[2], 16)
}

func TestQueue_KeysRunInParallel(t *testing.T) {
	t.Parallel()

	q := NewQueue[string](2, zerolog.Nop())
	enteredA := make(chan struct{})
	enteredB := make(chan struct{})

	require.NoError(t, q.Submit("a", func(context.Context) {
		close(enteredA)
		<-enteredB
	}))
	require.NoError(t, q.Submit("b", func(context.Context) {
		close(enteredB)
		<-enteredA
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, q.Shutdown(ctx))
}

func TestQueue_WorkerCap(t *testing.T) {
	t.Parallel()

	q := NewQueue[int](2, zerolog.Nop())
	var inside, peak atomic.Int32

	for i := range 8 {
		require.NoError(t, q.Submit(i, func(context.Context) {
			cur := inside.Add(1)
			for {
				old := peak.Load()
				if cur <= old || peak.CompareAndSwap(old, cur) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			inside.Add(-1)
		}))
	}
	require.NoError(t, q.Shutdown(context.Background()))
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestQueue_SubmitAfterShutdown(t *testing.T) {
	t.Parallel()

	q := NewQueue[string](0, zerolog.Nop())
	require.NoError(t, q.Shutdown(context.Background()))
	assert.ErrorIs(t, q.Submit("x", func(context.Context) {}), ErrClosed)
	assert.NoError(t, q.Shutdown(context.Background()))
}

func TestQueue_PanicIsContained(t *testing.T) {
	t.Parallel()

	q := NewQueue[string](1, zerolog.Nop())
	var ran atomic.Bool

	require.NoError(t, q.Submit("k", func(context.Context) { panic("boom") }))
	require.NoError(t, q.Submit("k", func(context.Context) { ran.Store(true) }))
	require.NoError(t, q.Shutdown(context.Background()))
	assert.True(t, ran.Load())
}

func TestQueue_ShutdownDeadlineCancelsTasks(t *testing.T) {
	t.Parallel()

	q := NewQueue[string](1, zerolog.Nop())
	started := make(chan struct{})
	require.NoError(t, q.Submit("slow", func(ctx context.Context) {
		close(started)
		<-ctx.Done()
	}))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Shutdown(ctx), context.DeadlineExceeded)
	assert.Zero(t, q.Pending())
}
