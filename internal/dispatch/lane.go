package dispatch

import "sync"

// LaneLock serializes work per key while letting different keys proceed
// in parallel. A global mutex guards the lane map only long enough to find
// or create the per-key mutex.
type LaneLock[K comparable] struct {
	mu    sync.Mutex
	lanes map[K]*lane
}

// lane counts goroutines holding or waiting on it; it is dropped from the
// map when that count reaches zero.
type lane struct {
	mu   sync.Mutex
	refs int
}

// NewLaneLock creates a ready-to-use LaneLock.
func NewLaneLock[K comparable]() *LaneLock[K] {
	return &LaneLock[K]{lanes: make(map[K]*lane)}
}

// Acquire locks the lane of key. The caller must call Release with the
// same key when done.
func (l *LaneLock[K]) Acquire(key K) {
	l.mu.Lock()
	ln, ok := l.lanes[key]
	if !ok {
		ln = &lane{}
		l.lanes[key] = ln
	}
	ln.refs++
	l.mu.Unlock()

	// Lock outside the global mutex so other keys are not blocked.
	ln.mu.Lock()
}

// Release unlocks the lane of key.
func (l *LaneLock[K]) Release(key K) {
	l.mu.Lock()
	ln, ok := l.lanes[key]
	if !ok {
		l.mu.Unlock()
		return
	}
	ln.refs--
	if ln.refs == 0 {
		delete(l.lanes, key)
	}
	l.mu.Unlock()

	ln.mu.Unlock()
}

// Len reports how many lanes are held or awaited.
func (l *LaneLock[K]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lanes)
}
