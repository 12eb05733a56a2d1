package scheduler

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sartorproj/stockarima/logger"
)

func quietLog() *logger.Log {
	l := logger.Logger()
	l.SetOutput(io.Discard)
	return l
}

func TestNewSchedulerInvalid(t *testing.T) {
	noop := func(context.Context) error { return nil }

	_, err := NewScheduler(context.Background(), "not a cron spec", noop, quietLog())
	assert.Error(t, err)

	// five-field specs are rejected: the seconds field is required
	_, err = NewScheduler(context.Background(), "0 6 * * 1", noop, quietLog())
	assert.Error(t, err)

	_, err = NewScheduler(context.Background(), "0 0 6 * * 1", nil, quietLog())
	assert.Error(t, err)
}

func TestRunNow(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	s, err := NewScheduler(context.Background(), "0 0 6 * * 1", func(context.Context) error {
		calls++
		if calls == 2 {
			return boom
		}
		return nil
	}, quietLog())
	require.NoError(t, err)

	assert.NoError(t, s.RunNow())
	assert.ErrorIs(t, s.RunNow(), boom)
	assert.Equal(t, int64(2), s.Runs())
	assert.Equal(t, int64(1), s.fails.Load())
}

func TestRunNowCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s, err := NewScheduler(ctx, "0 0 6 * * 1", func(context.Context) error { return nil }, quietLog())
	require.NoError(t, err)

	assert.ErrorIs(t, s.RunNow(), context.Canceled)
	assert.Zero(t, s.Runs())
}

func TestNext(t *testing.T) {
	s, err := NewScheduler(context.Background(), "0 0 6 * * 1", func(context.Context) error { return nil }, quietLog())
	require.NoError(t, err)
	assert.True(t, s.Next().IsZero())

	s.Start()
	defer s.Stop()
	next := s.Next()
	assert.Equal(t, time.Monday, next.Weekday())
	assert.Equal(t, 6, next.Hour())
	assert.True(t, next.After(time.Now()))
}

func TestScheduledTrigger(t *testing.T) {
	var calls atomic.Int64
	s, err := NewScheduler(context.Background(), "* * * * * *", func(context.Context) error {
		calls.Add(1)
		return nil
	}, quietLog())
	require.NoError(t, err)

	s.Start()
	assert.Eventually(t, func() bool { return calls.Load() > 0 }, 3*time.Second, 20*time.Millisecond)
	s.Stop()
	assert.Equal(t, calls.Load(), s.Runs())
}

func TestSkipIfStillRunning(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int64
	s, err := NewScheduler(context.Background(), "* * * * * *", func(context.Context) error {
		calls.Add(1)
		<-release
		return nil
	}, quietLog())
	require.NoError(t, err)

	s.Start()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, 3*time.Second, 20*time.Millisecond)
	time.Sleep(2100 * time.Millisecond)
	assert.Equal(t, int64(1), calls.Load())
	close(release)
	s.Stop()
}

func TestRunNowIsExclusive(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool
	s, err := NewScheduler(context.Background(), "* * * * * *", func(context.Context) error {
		close(started)
		<-release
		finished.Store(true)
		return nil
	}, quietLog())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- s.RunNow() }()
	<-started

	assert.ErrorIs(t, s.RunNow(), ErrAlreadyRunning)

	// a cron tick while RunNow is in progress is skipped
	s.Start()
	time.Sleep(1100 * time.Millisecond)
	assert.Equal(t, int64(1), s.Runs())

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
		t.Fatal("Stop returned before the running job finished")
	case <-time.After(100 * time.Millisecond):
	}

	close(release)
	<-stopped
	assert.True(t, finished.Load())
	assert.NoError(t, <-done)
	assert.ErrorIs(t, s.RunNow(), ErrStopped)
}
