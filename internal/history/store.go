// Package history stores conversation turns and serves the bounded,
// time-windowed view of them that is sent to a provider.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/flemzord/chatrelay/internal/conversation"
	"github.com/flemzord/chatrelay/internal/core"
)

// Service is the name under which the loaded history module publishes its
// Store. Exactly one history module is loaded per app.
const Service = "history.store"

// PolicyService is the name under which the effective window Policy is
// published, for modules that must not undercut it.
const PolicyService = "history.policy"

// Default retention policy: at most ten turns no older than thirty minutes
// are sent, and ten are kept per partition.
const (
	DefaultMaxTurns  = 10
	DefaultMaxAge    = 30 * time.Minute
	DefaultKeepTurns = 10
)

// Policy bounds both what is sent to the provider and what is stored.
// The count cap limits cost; the age cap keeps a conversation resumed after
// a long silence from being primed with stale turns.
type Policy struct {
	MaxTurns  int           `yaml:"max_turns"`
	MaxAge    time.Duration `yaml:"max_age"`
	KeepTurns int           `yaml:"keep_turns"`
}

// DefaultPolicy returns the policy used when none is configured.
func DefaultPolicy() Policy {
	return Policy{MaxTurns: DefaultMaxTurns, MaxAge: DefaultMaxAge, KeepTurns: DefaultKeepTurns}
}

// WithDefaults fills zero fields from DefaultPolicy.
func (p Policy) WithDefaults() Policy {
	d := DefaultPolicy()
	if p.MaxTurns <= 0 {
		p.MaxTurns = d.MaxTurns
	}
	if p.MaxAge <= 0 {
		p.MaxAge = d.MaxAge
	}
	if p.KeepTurns <= 0 {
		p.KeepTurns = d.KeepTurns
	}
	return p
}

// Store is a durable append-only log of turns.
// Implementations must be safe for concurrent use.
type Store interface {
	// Append persists turn with a freshly assigned ID and CreatedAt and
	// returns the stored copy. Failures are *StorageFailure.
	Append(ctx context.Context, turn conversation.Turn) (conversation.Turn, error)

	// RecentWindow returns at most maxCount turns of key created no earlier
	// than maxAge before now, oldest first. Turns of other keys are never
	// returned.
	RecentWindow(ctx context.Context, key conversation.Key, maxAge time.Duration, maxCount int) ([]conversation.Turn, error)

	// Trim deletes the oldest turns of the partition so that at most
	// keepCount remain, and reports how many were deleted.
	Trim(ctx context.Context, partition conversation.Partition, keepCount int) (int, error)

	// Sweep deletes every turn created before olderThan.
	Sweep(ctx context.Context, olderThan time.Time) (int, error)

	// Ping reports whether the underlying medium is reachable.
	Ping(ctx context.Context) error

	// Close releases the underlying medium.
	Close() error
}

// Clock returns the current time. Stores take one so tests can control
// CreatedAt and the window cutoff.
type Clock func() time.Time

// SystemClock is the wall clock.
func SystemClock() time.Time { return time.Now().UTC() }

// FromApp returns the Store published by the loaded history module.
func FromApp(ctx *core.AppContext) (Store, error) {
	store, err := core.ServiceAs[Store](ctx, Service)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	return store, nil
}
