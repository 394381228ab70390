package cron

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// simpleJob is a minimal Job for scheduler tests.
type simpleJob struct {
	name     string
	schedule string
	runFunc  func(ctx context.Context) error
	calls    atomic.Int32
}

func (j *simpleJob) Name() string     { return j.name }
func (j *simpleJob) Schedule() string { return j.schedule }
func (j *simpleJob) Run(ctx context.Context) error {
	j.calls.Add(1)
	if j.runFunc != nil {
		return j.runFunc(ctx)
	}
	return nil
}

func TestScheduler_RegisterJob_DuplicateName(t *testing.T) {
	s := NewScheduler(zerolog.Nop())
	require.NoError(t, s.RegisterJob(&simpleJob{name: "test", schedule: "* * * * *"}))
	assert.Error(t, s.RegisterJob(&simpleJob{name: "test", schedule: "* * * * *"}))
}

func TestScheduler_Start_InvalidSchedule(t *testing.T) {
	s := NewScheduler(zerolog.Nop())
	require.NoError(t, s.RegisterJob(&simpleJob{name: "bad", schedule: "invalid"}))

	err := s.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"bad"`)
	assert.NoError(t, s.Stop(context.Background()))
}

func TestScheduler_StartStop(t *testing.T) {
	s := NewScheduler(zerolog.Nop())
	require.NoError(t, s.RegisterJob(&simpleJob{name: "noop", schedule: "* * * * *"}))
	require.NoError(t, s.Start())
	require.NoError(t, s.Stop(context.Background()))
}

func TestScheduler_StopWithoutStart(t *testing.T) {
	s := NewScheduler(zerolog.Nop())
	assert.NoError(t, s.Stop(context.Background()))
}

func TestScheduler_Trigger(t *testing.T) {
	s := NewScheduler(zerolog.Nop())
	job := &simpleJob{name: "once", schedule: "0 0 1 1 *"}
	require.NoError(t, s.RegisterJob(job))

	assert.True(t, s.Trigger("once"))
	assert.False(t, s.Trigger("missing"))
	assert.Equal(t, int32(1), job.calls.Load())
}

func TestScheduler_NoParallelExecution(t *testing.T) {
	s := NewScheduler(zerolog.Nop())
	started := make(chan struct{})
	release := make(chan struct{})
	job := &simpleJob{
		name:     "slow",
		schedule: "* * * * *",
		runFunc: func(context.Context) error {
			close(started)
			<-release
			return nil
		},
	}
	require.NoError(t, s.RegisterJob(job))

	done := make(chan bool)
	go func() { done <- s.Trigger("slow") }()
	<-started

	assert.False(t, s.Trigger("slow"), "a running job must not start again")
	close(release)
	assert.True(t, <-done)
	assert.Equal(t, int32(1), job.calls.Load())
}

func TestScheduler_JobErrorIsContained(t *testing.T) {
	s := NewScheduler(zerolog.Nop())
	job := &simpleJob{name: "failing", schedule: "* * * * *", runFunc: func(context.Context) error {
		return errors.New("job failed")
	}}
	require.NoError(t, s.RegisterJob(job))

	assert.True(t, s.Trigger("failing"))
	assert.True(t, s.Trigger("failing"))
	assert.Equal(t, int32(2), job.calls.Load())
}

func TestScheduler_StopCancelsJobContext(t *testing.T) {
	s := NewScheduler(zerolog.Nop())
	var cancelled atomic.Bool
	started := make(chan struct{})
	job := &simpleJob{name: "waits", schedule: "* * * * *", runFunc: func(ctx context.Context) error {
		close(started)
		select {
		case <-ctx.Done():
			cancelled.Store(true)
		case <-time.After(5 * time.Second):
		}
		return ctx.Err()
	}}
	require.NoError(t, s.RegisterJob(job))
	require.NoError(t, s.Start())

	done := make(chan struct{})
	go func() {
		s.Trigger("waits")
		close(done)
	}()
	<-started

	require.NoError(t, s.Stop(context.Background()))
	<-done
	assert.True(t, cancelled.Load())
}

func TestParseSchedule(t *testing.T) {
	tests := []struct {
		expr    string
		wantErr bool
	}{
		{"0 * * * *", false},
		{"*/15 * * * *", false},
		{"@hourly", true},
		{"0 25 * * *", true},
		{"* * * * * *", true},
		{"", true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			if tt.wantErr {
				assert.Error(t, ParseSchedule(tt.expr))
			} else {
				assert.NoError(t, ParseSchedule(tt.expr))
			}
		})
	}
}
