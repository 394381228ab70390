package history

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/flemzord/chatrelay/internal/conversation"
	"github.com/google/uuid"
)

type storedTurn struct {
	turn conversation.Turn
	seq  uint64
}

// MemoryStore is a thread-safe, in-memory Store. Turns of each conversation
// key are kept in insertion order.
type MemoryStore struct {
	mu     sync.RWMutex
	now    Clock
	seq    uint64
	turns  map[conversation.Key][]storedTurn
	closed bool
}

// NewMemoryStore creates an empty store. A nil clock means SystemClock.
func NewMemoryStore(clock Clock) *MemoryStore {
	if clock == nil {
		clock = SystemClock
	}
	return &MemoryStore{
		now:   clock,
		turns: make(map[conversation.Key][]storedTurn),
	}
}

// Compile-time interface check.
var _ Store = (*MemoryStore)(nil)

// Append implements Store.
func (s *MemoryStore) Append(_ context.Context, turn conversation.Turn) (conversation.Turn, error) {
	if err := turn.Validate(); err != nil {
		return conversation.Turn{}, Fail("append", turn.Key, err)
	}
	id, err := uuid.NewV7()
	if err != nil {
		return conversation.Turn{}, Fail("append", turn.Key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return conversation.Turn{}, Fail("append", turn.Key, ErrClosed)
	}

	s.seq++
	turn.ID = id.String()
	turn.CreatedAt = s.now()
	s.turns[turn.Key] = append(s.turns[turn.Key], storedTurn{turn: turn, seq: s.seq})
	return turn, nil
}

// RecentWindow implements Store.
func (s *MemoryStore) RecentWindow(_ context.Context, key conversation.Key, maxAge time.Duration, maxCount int) ([]conversation.Turn, error) {
	if maxCount <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, Fail("window", key, ErrClosed)
	}

	cutoff := s.now().Add(-maxAge)
	ordered := sortedCopy(s.turns[key])

	var window []conversation.Turn
	for i := len(ordered) - 1; i >= 0 && len(window) < maxCount; i-- {
		if ordered[i].turn.CreatedAt.Before(cutoff) {
			continue
		}
		window = append(window, ordered[i].turn)
	}
	slices.Reverse(window)
	return window, nil
}

// Trim implements Store.
func (s *MemoryStore) Trim(_ context.Context, partition conversation.Partition, keepCount int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, Fail("trim", partition.Key, ErrClosed)
	}

	all := s.turns[partition.Key]
	var inPartition []storedTurn
	for _, st := range all {
		if st.turn.Provider == partition.Provider {
			inPartition = append(inPartition, st)
		}
	}
	excess := len(inPartition) - max(keepCount, 0)
	if excess <= 0 {
		return 0, nil
	}

	doomed := make(map[uint64]struct{}, excess)
	for _, st := range sortedCopy(inPartition)[:excess] {
		doomed[st.seq] = struct{}{}
	}
	s.turns[partition.Key] = slices.DeleteFunc(all, func(st storedTurn) bool {
		_, ok := doomed[st.seq]
		return ok
	})
	return excess, nil
}

// Sweep implements Store.
func (s *MemoryStore) Sweep(_ context.Context, olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, Fail("sweep", conversation.Key{}, ErrClosed)
	}

	var deleted int
	for key, turns := range s.turns {
		before := len(turns)
		turns = slices.DeleteFunc(turns, func(st storedTurn) bool {
			return st.turn.CreatedAt.Before(olderThan)
		})
		deleted += before - len(turns)
		if len(turns) == 0 {
			delete(s.turns, key)
			continue
		}
		s.turns[key] = turns
	}
	return deleted, nil
}

// Ping implements Store.
func (s *MemoryStore) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Len returns the number of turns stored for a conversation key.
func (s *MemoryStore) Len(key conversation.Key) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns[key])
}

// sortedCopy orders turns by (CreatedAt, insertion order).
func sortedCopy(turns []storedTurn) []storedTurn {
	out := slices.Clone(turns)
	slices.SortStableFunc(out, func(a, b storedTurn) int {
		if c := a.turn.CreatedAt.Compare(b.turn.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})
	return out
}
