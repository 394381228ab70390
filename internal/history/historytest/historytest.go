// Package historytest provides a conformance suite every history.Store
// implementation runs against, plus a controllable clock.
package historytest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/flemzord/chatrelay/internal/conversation"
	"github.com/flemzord/chatrelay/internal/history"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Clock is a manually advanced clock safe for concurrent use.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a clock frozen at a fixed, second-aligned instant.
func NewClock() *Clock {
	return &Clock{now: time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set moves the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Factory opens a fresh, empty store driven by clock.
type Factory func(t *testing.T, clock history.Clock) history.Store

// Run executes the conformance suite against stores produced by open.
func Run(t *testing.T, open Factory) {
	t.Helper()

	t.Run("AppendAssignsIdentity", func(t *testing.T) { testAppendAssignsIdentity(t, open) })
	t.Run("AppendRejectsInvalidTurn", func(t *testing.T) { testAppendRejectsInvalid(t, open) })
	t.Run("TrimKeepsMostRecent", func(t *testing.T) { testTrimKeepsMostRecent(t, open) })
	t.Run("TrimIsPerProvider", func(t *testing.T) { testTrimIsPerProvider(t, open) })
	t.Run("WindowIsolation", func(t *testing.T) { testWindowIsolation(t, open) })
	t.Run("WindowAgeBoundary", func(t *testing.T) { testWindowAgeBoundary(t, open) })
	t.Run("WindowCountCap", func(t *testing.T) { testWindowCountCap(t, open) })
	t.Run("WindowSameInstantKeepsInsertionOrder", func(t *testing.T) { testSameInstant(t, open) })
	t.Run("Sweep", func(t *testing.T) { testSweep(t, open) })
	t.Run("ConcurrentAppendsConverge", func(t *testing.T) { testConcurrentConverge(t, open) })
}

var (
	keyA = conversation.Key{ChatID: 1001, Persona: "blueme"}
	keyB = conversation.Key{ChatID: 1002, Persona: "blueme"}
	keyC = conversation.Key{ChatID: 1001, Persona: "other"}
)

// UserTurn builds a valid user turn for tests.
func UserTurn(key conversation.Key, provider, content string) conversation.Turn {
	return conversation.Turn{Key: key, Role: conversation.RoleUser, Provider: provider, Content: content}
}

// Contents extracts turn contents in order.
func Contents(turns []conversation.Turn) []string {
	out := make([]string, len(turns))
	for i, turn := range turns {
		out[i] = turn.Content
	}
	return out
}

func mustAppend(t *testing.T, s history.Store, turn conversation.Turn) conversation.Turn {
	t.Helper()
	stored, err := s.Append(context.Background(), turn)
	require.NoError(t, err)
	return stored
}

func window(t *testing.T, s history.Store, key conversation.Key, maxAge time.Duration, maxCount int) []conversation.Turn {
	t.Helper()
	turns, err := s.RecentWindow(context.Background(), key, maxAge, maxCount)
	require.NoError(t, err)
	return turns
}

func testAppendAssignsIdentity(t *testing.T, open Factory) {
	clock := NewClock()
	s := open(t, clock.Now)

	first := mustAppend(t, s, UserTurn(keyA, "openai", "hi"))
	clock.Advance(time.Second)
	second := mustAppend(t, s, conversation.Turn{
		Key: keyA, Role: conversation.RoleAssistant, Provider: "openai", Content: "hello there",
	})

	assert.NotEmpty(t, first.ID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.True(t, first.CreatedAt.Equal(clock.Now().Add(-time.Second)), "created_at = %v", first.CreatedAt)
	assert.True(t, second.CreatedAt.After(first.CreatedAt))

	got := window(t, s, keyA, time.Hour, 10)
	require.Len(t, got, 2)
	assert.Equal(t, first.ID, got[0].ID)
	assert.Equal(t, conversation.RoleUser, got[0].Role)
	assert.Equal(t, conversation.RoleAssistant, got[1].Role)
	assert.Equal(t, "openai", got[1].Provider)
	assert.Equal(t, keyA, got[1].Key)
}

func testAppendRejectsInvalid(t *testing.T, open Factory) {
	s := open(t, NewClock().Now)

	bad := UserTurn(keyA, "openai", "x")
	bad.Role = "system"
	_, err := s.Append(context.Background(), bad)

	var sf *history.StorageFailure
	require.ErrorAs(t, err, &sf)
	require.ErrorIs(t, err, conversation.ErrInvalidRole)
	assert.Empty(t, window(t, s, keyA, time.Hour, 10))
}

func testTrimKeepsMostRecent(t *testing.T, open Factory) {
	for _, n := range []int{1, 9, 10, 11, 25} {
		t.Run(fmt.Sprintf("N=%d", n), func(t *testing.T) {
			clock := NewClock()
			s := open(t, clock.Now)
			partition := conversation.Partition{Key: keyA, Provider: "openai"}

			for i := 1; i <= n; i++ {
				mustAppend(t, s, UserTurn(keyA, "openai", fmt.Sprint(i)))
				_, err := s.Trim(context.Background(), partition, 10)
				require.NoError(t, err)
				clock.Advance(time.Second)
			}

			got := window(t, s, keyA, 24*time.Hour, 100)
			want := make([]string, 0, 10)
			for i := max(1, n-9); i <= n; i++ {
				want = append(want, fmt.Sprint(i))
			}
			assert.Equal(t, want, Contents(got))
		})
	}
}

func testTrimIsPerProvider(t *testing.T, open Factory) {
	clock := NewClock()
	s := open(t, clock.Now)

	for i := range 4 {
		mustAppend(t, s, UserTurn(keyA, "openai", fmt.Sprint("o", i)))
		clock.Advance(time.Second)
		mustAppend(t, s, UserTurn(keyA, "gemini", fmt.Sprint("g", i)))
		clock.Advance(time.Second)
	}

	deleted, err := s.Trim(context.Background(), conversation.Partition{Key: keyA, Provider: "openai"}, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	deleted, err = s.Trim(context.Background(), conversation.Partition{Key: keyA, Provider: "openai"}, 2)
	require.NoError(t, err)
	assert.Zero(t, deleted)

	got := window(t, s, keyA, time.Hour, 100)
	assert.Equal(t, []string{"g0", "g1", "o2", "g2", "o3", "g3"}, Contents(got))
}

func testWindowIsolation(t *testing.T, open Factory) {
	clock := NewClock()
	s := open(t, clock.Now)

	for i := range 5 {
		mustAppend(t, s, UserTurn(keyA, "openai", fmt.Sprint("a", i)))
		mustAppend(t, s, UserTurn(keyB, "openai", fmt.Sprint("b", i)))
		mustAppend(t, s, UserTurn(keyC, "openai", fmt.Sprint("c", i)))
		clock.Advance(time.Second)
	}

	for key, prefix := range map[conversation.Key]string{keyA: "a", keyB: "b", keyC: "c"} {
		got := window(t, s, key, time.Hour, 100)
		require.Len(t, got, 5)
		for _, turn := range got {
			assert.Equal(t, key, turn.Key)
			assert.Equal(t, prefix, turn.Content[:1])
		}
	}
}

func testWindowAgeBoundary(t *testing.T, open Factory) {
	clock := NewClock()
	s := open(t, clock.Now)
	start := clock.Now()

	mustAppend(t, s, UserTurn(keyA, "openai", "old"))
	clock.Set(start.Add(2 * time.Second))
	mustAppend(t, s, UserTurn(keyA, "openai", "new"))

	clock.Set(start.Add(1801 * time.Second))
	got := window(t, s, keyA, 1800*time.Second, 10)
	assert.Equal(t, []string{"new"}, Contents(got))

	clock.Set(start.Add(3600 * time.Second))
	assert.Empty(t, window(t, s, keyA, 1800*time.Second, 10))
}

func testWindowCountCap(t *testing.T, open Factory) {
	clock := NewClock()
	s := open(t, clock.Now)

	for i := 1; i <= 15; i++ {
		mustAppend(t, s, UserTurn(keyA, "openai", fmt.Sprint(i)))
		clock.Advance(time.Second)
	}

	got := window(t, s, keyA, time.Hour, 10)
	assert.Equal(t, []string{"6", "7", "8", "9", "10", "11", "12", "13", "14", "15"}, Contents(got))
	assert.Empty(t, window(t, s, keyA, time.Hour, 0))
}

func testSameInstant(t *testing.T, open Factory) {
	clock := NewClock()
	s := open(t, clock.Now)

	for i := range 6 {
		mustAppend(t, s, UserTurn(keyA, "openai", fmt.Sprint(i)))
	}

	got := window(t, s, keyA, time.Hour, 4)
	assert.Equal(t, []string{"2", "3", "4", "5"}, Contents(got))

	_, err := s.Trim(context.Background(), conversation.Partition{Key: keyA, Provider: "openai"}, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "4", "5"}, Contents(window(t, s, keyA, time.Hour, 10)))
}

func testSweep(t *testing.T, open Factory) {
	clock := NewClock()
	s := open(t, clock.Now)
	start := clock.Now()

	mustAppend(t, s, UserTurn(keyA, "openai", "a-old"))
	mustAppend(t, s, UserTurn(keyB, "gemini", "b-old"))
	clock.Advance(48 * time.Hour)
	mustAppend(t, s, UserTurn(keyA, "openai", "a-new"))

	deleted, err := s.Sweep(context.Background(), start.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	assert.Equal(t, []string{"a-new"}, Contents(window(t, s, keyA, 1000*time.Hour, 10)))
	assert.Empty(t, window(t, s, keyB, 1000*time.Hour, 10))
}

func testConcurrentConverge(t *testing.T, open Factory) {
	clock := NewClock()
	s := open(t, clock.Now)
	partition := conversation.Partition{Key: keyA, Provider: "openai"}

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Append(context.Background(), UserTurn(keyA, "openai", fmt.Sprint(i)))
			assert.NoError(t, err)
			_, err = s.Trim(context.Background(), partition, 10)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	_, err := s.Trim(context.Background(), partition, 10)
	require.NoError(t, err)
	assert.Len(t, window(t, s, keyA, time.Hour, 100), 10)
}
