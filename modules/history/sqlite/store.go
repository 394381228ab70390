package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/flemzord/chatrelay/internal/conversation"
	"github.com/flemzord/chatrelay/internal/history"
	"github.com/google/uuid"

	_ "modernc.org/sqlite" // SQLite driver registration
)

// Store is a history.Store backed by a single SQLite database.
type Store struct {
	db      *sql.DB
	now     history.Clock
	version int64
}

var _ history.Store = (*Store)(nil)

// Open opens (creating if needed) the database described by cfg and applies
// pending migrations. A nil clock means history.SystemClock.
//
// SQLite serialises writers, so the pool is limited to one connection and
// the PRAGMAs below hold for every statement.
func Open(ctx context.Context, cfg Config, clock history.Clock) (*Store, error) {
	cfg.defaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = history.SystemClock
	}

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("sqlite: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", cfg.Path, err)
	}
	db.SetMaxOpenConns(1)

	if cfg.walEnabled() {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: enable WAL: %w", err)
		}
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", cfg.BusyTimeout)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: set busy_timeout: %w", err)
	}

	version, err := migrate(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, now: clock, version: version}, nil
}

// SchemaVersion reports the migration version the database is at.
func (s *Store) SchemaVersion() int64 { return s.version }

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
	turn.CreatedAt = s.now().UTC()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO turns (id, chat_id, persona, provider, role, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		turn.ID, turn.Key.ChatID, turn.Key.Persona, turn.Provider,
		string(turn.Role), turn.Content, turn.CreatedAt.UnixMicro(),
	)
	if err != nil {
		return conversation.Turn{}, history.Fail("append", turn.Key, fmt.Errorf("sqlite: insert turn: %w", err))
	}
	return turn, nil
}

// RecentWindow implements history.Store.
func (s *Store) RecentWindow(ctx context.Context, key conversation.Key, maxAge time.Duration, maxCount int) ([]conversation.Turn, error) {
	if maxCount <= 0 {
		return nil, nil
	}
	cutoff := s.now().Add(-maxAge).UnixMicro()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, provider, role, content, created_at
		FROM turns
		WHERE chat_id = ? AND persona = ? AND created_at >= ?
		ORDER BY created_at DESC, seq DESC
		LIMIT ?`,
		key.ChatID, key.Persona, cutoff, maxCount,
	)
	if err != nil {
		return nil, history.Fail("window", key, fmt.Errorf("sqlite: query window: %w", err))
	}
	defer func() { _ = rows.Close() }()

	var turns []conversation.Turn
	for rows.Next() {
		var (
			turn    = conversation.Turn{Key: key}
			role    string
			created int64
		)
		if err := rows.Scan(&turn.ID, &turn.Provider, &role, &turn.Content, &created); err != nil {
			return nil, history.Fail("window", key, fmt.Errorf("sqlite: scan turn: %w", err))
		}
		turn.Role = conversation.Role(role)
		turn.CreatedAt = time.UnixMicro(created).UTC()
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, history.Fail("window", key, fmt.Errorf("sqlite: window rows: %w", err))
	}

	slices.Reverse(turns)
	return turns, nil
}

// Trim implements history.Store.
func (s *Store) Trim(ctx context.Context, partition conversation.Partition, keepCount int) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM turns
		WHERE seq IN (
			SELECT seq FROM turns
			WHERE chat_id = ? AND persona = ? AND provider = ?
			ORDER BY created_at DESC, seq DESC
			LIMIT -1 OFFSET ?
		)`,
		partition.ChatID, partition.Persona, partition.Provider, max(keepCount, 0),
	)
	if err != nil {
		return 0, history.Fail("trim", partition.Key, fmt.Errorf("sqlite: trim %s: %w", partition, err))
	}
	return rowsAffected(res), nil
}

// Sweep implements history.Store.
func (s *Store) Sweep(ctx context.Context, olderThan time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM turns WHERE created_at < ?", olderThan.UnixMicro())
	if err != nil {
		return 0, history.Fail("sweep", conversation.Key{}, fmt.Errorf("sqlite: sweep: %w", err))
	}
	return rowsAffected(res), nil
}

// Ping implements history.Store.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite: ping: %w", err)
	}
	return nil
}

// Close implements history.Store.
func (s *Store) Close() error {
	return s.db.Close()
}

func rowsAffected(res sql.Result) int {
	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	return int(n)
}
