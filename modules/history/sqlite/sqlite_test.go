package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/flemzord/chatrelay/internal/conversation"
	"github.com/flemzord/chatrelay/internal/core"
	"github.com/flemzord/chatrelay/internal/history"
	"github.com/flemzord/chatrelay/internal/history/historytest"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func openTestStore(t *testing.T, clock history.Clock) *Store {
	t.Helper()

	s, err := Open(context.Background(), Config{Path: filepath.Join(t.TempDir(), "test.db")}, clock)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_Conformance(t *testing.T) {
	historytest.Run(t, func(t *testing.T, clock history.Clock) history.Store {
		return openTestStore(t, clock)
	})
}

func TestStore_WALMode(t *testing.T) {
	s := openTestStore(t, nil)

	var mode string
	require.NoError(t, s.db.QueryRowContext(context.Background(), "PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestStore_MigrationIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "test.db")
	key := conversation.Key{ChatID: 42, Persona: "blueme"}

	first, err := Open(context.Background(), Config{Path: path}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.SchemaVersion())
	_, err = first.Append(context.Background(), historytest.UserTurn(key, "openai", "persisted"))
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(context.Background(), Config{Path: path}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Close() })
	assert.Equal(t, int64(1), second.SchemaVersion())

	turns, err := second.RecentWindow(context.Background(), key, time.Hour, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"persisted"}, historytest.Contents(turns))
}

func TestStore_RoleConstraint(t *testing.T) {
	s := openTestStore(t, nil)

	_, err := s.db.ExecContext(context.Background(),
		`INSERT INTO turns (id, chat_id, persona, provider, role, content, created_at)
		 VALUES ('x', 1, 'p', 'openai', 'system', '', 0)`)
	assert.Error(t, err)
}

func TestStore_ClosedIsStorageFailure(t *testing.T) {
	s := openTestStore(t, nil)
	require.NoError(t, s.Close())

	key := conversation.Key{ChatID: 42, Persona: "blueme"}
	_, err := s.Append(context.Background(), historytest.UserTurn(key, "openai", "lost"))

	var sf *history.StorageFailure
	require.ErrorAs(t, err, &sf)
	assert.Equal(t, "append", sf.Op)
	assert.Equal(t, key, sf.Key)
	assert.Error(t, s.Ping(context.Background()))
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults with path", Config{Path: "x.db"}, false},
		{"missing path", Config{}, true},
		{"negative busy timeout", Config{Path: "x.db", BusyTimeout: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.defaults()
			err := tt.cfg.validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.True(t, tt.cfg.walEnabled())
			assert.Equal(t, defaultBusyTimeout, tt.cfg.BusyTimeout)
		})
	}
}

func TestModule_PublishesStore(t *testing.T) {
	dir := t.TempDir()
	ctx := core.NewAppContext(zerolog.Nop(), dir)

	m := &Module{}
	require.NoError(t, m.Configure(&yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}))
	require.NoError(t, m.Provision(ctx))
	require.NoError(t, m.Validate())
	t.Cleanup(func() { _ = m.Stop(context.Background()) })

	assert.Equal(t, filepath.Join(dir, defaultDBFile), m.config.Path)

	store, err := history.FromApp(ctx)
	require.NoError(t, err)
	assert.Same(t, m.Store(), store)
}
