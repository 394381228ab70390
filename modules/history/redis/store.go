package redis

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/flemzord/chatrelay/internal/conversation"
	"github.com/flemzord/chatrelay/internal/history"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// Store is a history.Store kept in Redis sorted sets scored by CreatedAt.
type Store struct {
	rdb  goredis.UniversalClient
	keys keyspace
	now  history.Clock
}

var _ history.Store = (*Store)(nil)

// NewStore wraps an existing client. A nil clock means history.SystemClock.
func NewStore(rdb goredis.UniversalClient, prefix string, clock history.Clock) *Store {
	if clock == nil {
		clock = history.SystemClock
	}
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Store{rdb: rdb, keys: keyspace(prefix), now: clock}
}

// Append implements history.Store.
func (s *Store) Append(ctx context.Context, turn conversation.Turn) (conversation.Turn, error) {
	if err := turn.Validate(); err != nil {
		return conversation.Turn{}, history.Fail("append", turn.Key, err)
	}
	id, err := uuid.NewV7()
	if err != nil {
		return conversation.Turn{}, history.Fail("append", turn.Key, err)
	}
	turn.ID = id.String()
	turn.CreatedAt = s.now().UTC().Truncate(time.Microsecond)

	member, err := encodeTurn(turn)
	if err != nil {
		return conversation.Turn{}, history.Fail("append", turn.Key, err)
	}

	conv := s.keys.conversation(turn.Key)
	part := s.keys.partition(turn.Partition())
	z := goredis.Z{Score: score(turn.CreatedAt), Member: member}

	_, err = s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.ZAdd(ctx, conv, z)
		pipe.ZAdd(ctx, part, z)
		pipe.SAdd(ctx, s.keys.index(), conv, part)
		return nil
	})
	if err != nil {
		return conversation.Turn{}, history.Fail("append", turn.Key, fmt.Errorf("redis: add turn: %w", err))
	}
	return turn, nil
}

// RecentWindow implements history.Store.
func (s *Store) RecentWindow(ctx context.Context, key conversation.Key, maxAge time.Duration, maxCount int) ([]conversation.Turn, error) {
	if maxCount <= 0 {
		return nil, nil
	}
	cutoff := s.now().Add(-maxAge).UnixMicro()

	members, err := s.rdb.ZRevRangeByScore(ctx, s.keys.conversation(key), &goredis.ZRangeBy{
		Min:   strconv.FormatInt(cutoff, 10),
		Max:   "+inf",
		Count: int64(maxCount),
	}).Result()
	if err != nil {
		return nil, history.Fail("window", key, fmt.Errorf("redis: range window: %w", err))
	}

	turns := make([]conversation.Turn, 0, len(members))
	for _, member := range members {
		turn, err := decodeTurn(key, member)
		if err != nil {
			return nil, history.Fail("window", key, err)
		}
		turns = append(turns, turn)
	}
	slices.Reverse(turns)
	return turns, nil
}

// Trim implements history.Store.
func (s *Store) Trim(ctx context.Context, partition conversation.Partition, keepCount int) (int, error) {
	part := s.keys.partition(partition)

	// Everything except the newest keepCount members.
	doomed, err := s.rdb.ZRange(ctx, part, 0, int64(-max(keepCount, 0)-1)).Result()
	if err != nil {
		return 0, history.Fail("trim", partition.Key, fmt.Errorf("redis: range %s: %w", partition, err))
	}
	if len(doomed) == 0 {
		return 0, nil
	}

	members := make([]any, len(doomed))
	for i, m := range doomed {
		members[i] = m
	}

	var removed *goredis.IntCmd
	_, err = s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		removed = pipe.ZRem(ctx, part, members...)
		pipe.ZRem(ctx, s.keys.conversation(partition.Key), members...)
		return nil
	})
	if err != nil {
		return 0, history.Fail("trim", partition.Key, fmt.Errorf("redis: trim %s: %w", partition, err))
	}
	return int(removed.Val()), nil
}

// Sweep implements history.Store.
func (s *Store) Sweep(ctx context.Context, olderThan time.Time) (int, error) {
	names, err := s.rdb.SMembers(ctx, s.keys.index()).Result()
	if err != nil {
		return 0, history.Fail("sweep", conversation.Key{}, fmt.Errorf("redis: list keys: %w", err))
	}

	limit := "(" + strconv.FormatInt(olderThan.UnixMicro(), 10)
	var deleted int
	for _, name := range names {
		var (
			removed *goredis.IntCmd
			left    *goredis.IntCmd
		)
		_, err := s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			removed = pipe.ZRemRangeByScore(ctx, name, "-inf", limit)
			left = pipe.ZCard(ctx, name)
			return nil
		})
		if err != nil {
			return deleted, history.Fail("sweep", conversation.Key{}, fmt.Errorf("redis: sweep %s: %w", name, err))
		}
		if s.keys.isConversation(name) {
			deleted += int(removed.Val())
		}
		if left.Val() == 0 {
			if err := s.rdb.SRem(ctx, s.keys.index(), name).Err(); err != nil {
				return deleted, history.Fail("sweep", conversation.Key{}, fmt.Errorf("redis: unindex %s: %w", name, err))
			}
		}
	}
	return deleted, nil
}

// Ping implements history.Store.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w", err)
	}
	return nil
}

// Close implements history.Store.
func (s *Store) Close() error {
	return s.rdb.Close()
}
