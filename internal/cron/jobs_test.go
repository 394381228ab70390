package cron_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/flemzord/chatrelay/internal/conversation"
	"github.com/flemzord/chatrelay/internal/core"
	"github.com/flemzord/chatrelay/internal/cron"
	"github.com/flemzord/chatrelay/internal/cron/crontest"
	"github.com/flemzord/chatrelay/internal/gateway"
	"github.com/flemzord/chatrelay/internal/history"
	"github.com/flemzord/chatrelay/internal/history/historytest"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

var now = time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

func TestRetentionJob_Defaults(t *testing.T) {
	j := &cron.RetentionJob{Now: func() time.Time { return now }}
	assert.Equal(t, "history_retention", j.Name())
	assert.Equal(t, cron.DefaultRetentionSchedule, j.Schedule())
	assert.Equal(t, now.Add(-24*time.Hour), j.Cutoff())
}

func TestRetentionJob_Run(t *testing.T) {
	sweeper := &crontest.MockSweeper{Deleted: 3}
	var reported int
	j := &cron.RetentionJob{
		Store:   sweeper,
		MaxAge:  time.Hour,
		Now:     func() time.Time { return now },
		Logger:  zerolog.Nop(),
		OnSwept: func(n int) { reported = n },
	}

	require.NoError(t, j.Run(context.Background()))
	assert.Equal(t, []time.Time{now.Add(-time.Hour)}, sweeper.Cutoffs())
	assert.Equal(t, 3, reported)
}

func TestRetentionJob_RunError(t *testing.T) {
	cause := errors.New("disk I/O error")
	j := &cron.RetentionJob{Store: &crontest.MockSweeper{Err: cause}, Logger: zerolog.Nop()}

	err := j.Run(context.Background())
	assert.ErrorIs(t, err, cause)
}

func TestRetentionJob_ThroughScheduler(t *testing.T) {
	job := &crontest.MockJob{NameVal: "mock", ScheduleVal: "0 * * * *"}
	s := cron.NewScheduler(zerolog.Nop())
	require.NoError(t, s.RegisterJob(job))

	assert.True(t, s.Trigger("mock"))
	assert.Equal(t, 1, job.CallCount())
}

func configure(t *testing.T, src string) *cron.RetentionModule {
	t.Helper()
	var node yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte(src), &node))
	m := &cron.RetentionModule{}
	require.NoError(t, m.Configure(node.Content[0]))
	return m
}

func TestRetentionModule_Validate(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr bool
	}{
		{"defaults", "{}", false},
		{"custom", "{schedule: '*/10 * * * *', max_age: 2h}", false},
		{"bad schedule", "{schedule: 'every hour'}", true},
		{"negative age", "{max_age: -1h}", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := configure(t, tt.src)
			if tt.wantErr {
				assert.Error(t, m.Validate())
			} else {
				assert.NoError(t, m.Validate())
			}
		})
	}
}

func TestRetentionModule_MaxAgeCoversWindow(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		window  time.Duration
		wantErr bool
	}{
		{"shorter than window", "{max_age: 1m}", 30 * time.Minute, true},
		{"equal to window", "{max_age: 30m}", 30 * time.Minute, false},
		{"default age", "{}", 30 * time.Minute, false},
		{"default age under long window", "{}", 48 * time.Hour, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := core.NewAppContext(zerolog.Nop(), t.TempDir())
			ctx.RegisterService(history.PolicyService, history.Policy{MaxAge: tt.window}.WithDefaults())

			m := configure(t, tt.src)
			require.NoError(t, m.Provision(ctx))
			if tt.wantErr {
				assert.ErrorContains(t, m.Validate(), "window.max_age")
			} else {
				assert.NoError(t, m.Validate())
			}
		})
	}
}

func TestRetentionModule_SweepsExpiredTurns(t *testing.T) {
	clock := historytest.NewClock()
	store := history.NewMemoryStore(clock.Now)
	key := conversation.Key{ChatID: 1, Persona: "blueme"}

	_, err := store.Append(context.Background(), historytest.UserTurn(key, "openai", "stale"))
	require.NoError(t, err)
	// The job measures age against wall time.
	clock.Set(time.Now().UTC())
	_, err = store.Append(context.Background(), historytest.UserTurn(key, "openai", "fresh"))
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	ctx := core.NewAppContext(zerolog.Nop(), t.TempDir())
	ctx.RegisterService(history.Service, store)
	ctx.RegisterService(gateway.MetricsService, reg)

	m := configure(t, "{max_age: 2h}")
	require.NoError(t, m.Provision(ctx))
	require.NoError(t, m.Validate())
	require.NoError(t, m.Start())
	t.Cleanup(func() { _ = m.Stop(context.Background()) })

	require.True(t, m.Scheduler().Trigger("history_retention"))

	turns, err := store.RecentWindow(context.Background(), key, 24*time.Hour, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh"}, historytest.Contents(turns))

	expected := `
# HELP chatrelay_swept_turns_total Turns deleted by the retention job.
# TYPE chatrelay_swept_turns_total counter
chatrelay_swept_turns_total 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "chatrelay_swept_turns_total"))
}

func TestRetentionModule_StartRequiresStore(t *testing.T) {
	m := configure(t, "{}")
	require.NoError(t, m.Provision(core.NewAppContext(zerolog.Nop(), t.TempDir())))
	assert.Error(t, m.Start())
	assert.NoError(t, m.Stop(context.Background()))
}
